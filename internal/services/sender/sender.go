// Package sender обрабатывает события напоминаний из очереди и отправляет письма
// не больше одного раза на ключ события.
package sender

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/subscription-alerts/internal/lib/clock"
	"github.com/magabrotheeeer/subscription-alerts/internal/lib/metrics"
	"github.com/magabrotheeeer/subscription-alerts/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/subscription-alerts/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-alerts/internal/lib/smtp"
	"github.com/magabrotheeeer/subscription-alerts/internal/models"
	"github.com/magabrotheeeer/subscription-alerts/internal/services/dedup"
	"github.com/magabrotheeeer/subscription-alerts/internal/storage/repository"
)

// SubscriptionChecker проверяет, что подписка ещё существует.
type SubscriptionChecker interface {
	SubscriptionExists(ctx context.Context, id int64) error
}

// DedupGate защита от повторной отправки.
type DedupGate interface {
	AlreadySent(ctx context.Context, e models.AlertEvent) (bool, error)
	Acquire(ctx context.Context, e models.AlertEvent) (bool, error)
	Release(ctx context.Context, e models.AlertEvent)
	MarkSent(ctx context.Context, e models.AlertEvent, sentAt time.Time) (bool, error)
}

// MailSender отправляет письмо.
type MailSender interface {
	Send(ctx context.Context, msg smtp.Message) error
}

// SenderService превращает события очереди в письма.
type SenderService struct {
	subs    SubscriptionChecker
	gate    DedupGate
	mail    MailSender
	limiter *rate.Limiter
	clock   clock.Clock
	metrics *metrics.Metrics
	log     *slog.Logger
}

// NewSenderService создает новый экземпляр SenderService. limiter может быть nil.
func NewSenderService(subs SubscriptionChecker, gate DedupGate, mail MailSender, limiter *rate.Limiter,
	clk clock.Clock, m *metrics.Metrics, log *slog.Logger) *SenderService {
	return &SenderService{
		subs:    subs,
		gate:    gate,
		mail:    mail,
		limiter: limiter,
		clock:   clk,
		metrics: m,
		log:     log,
	}
}

// HandleAlert обрабатывает одно сообщение очереди.
// Нераспознанное сообщение возвращается как постоянная ошибка. Временные ошибки
// (БД, почта) возвращаются как есть, чтобы очередь доставила событие повторно.
// Дубликаты и удалённые подписки подтверждаются без отправки. Событие, которое
// сейчас отправляет другой обработчик, возвращается как временная ошибка.
func (s *SenderService) HandleAlert(ctx context.Context, body []byte) error {
	const op = "sender.HandleAlert"

	var event models.AlertEvent
	if err := json.Unmarshal(body, &event); err != nil {
		s.log.Error("failed to unmarshal alert event", slog.String("body", string(body)), sl.Err(err))
		return rabbitmq.Permanent(fmt.Errorf("%s: %w", op, err))
	}
	log := s.log.With(sl.Event(event))

	if err := s.subs.SubscriptionExists(ctx, event.SubscriptionID); err != nil {
		if errors.Is(err, repository.ErrSubscriptionNotFound) {
			log.Info("subscription no longer exists, dropping alert")
			return nil
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	sent, err := s.gate.AlreadySent(ctx, event)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if sent {
		log.Info("alert already sent, skipping")
		return nil
	}

	acquired, err := s.gate.Acquire(ctx, event)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !acquired {
		log.Info("alert is being processed by another worker, returning to queue")
		return fmt.Errorf("%s: %w", op, dedup.ErrInFlight)
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			s.gate.Release(ctx, event)
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	if err := s.mail.Send(ctx, BuildAlertMessage(event)); err != nil {
		s.metrics.SendFailed()
		log.Error("failed to send alert email", sl.Err(err))
		s.gate.Release(ctx, event)
		if errors.Is(err, smtp.ErrInvalidHeader) {
			return rabbitmq.Permanent(fmt.Errorf("%s: %w", op, err))
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	s.metrics.Sent(event.AlertType)

	inserted, err := s.gate.MarkSent(ctx, event, s.clock.Now())
	if err != nil {
		// Письмо уже ушло: повторная доставка дала бы дубликат.
		log.Error("alert sent but not recorded", sl.Err(err))
		return nil
	}
	if !inserted {
		log.Warn("alert record already existed after send")
	}
	log.Info("alert sent")
	return nil
}

var lineBreaks = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")

// BuildAlertMessage собирает письмо-напоминание для события.
// Переводы строк в названии сервиса заменяются пробелами.
func BuildAlertMessage(e models.AlertEvent) smtp.Message {
	service := lineBreaks.Replace(e.ServiceName)
	return smtp.Message{
		To:      []string{e.UserEmail},
		Subject: "[NextBill] Subscription payment reminder - " + service,
		Body: fmt.Sprintf("Hello.\n\nThe following subscription payment is coming up:\n\n"+
			"Service: %s\nPayment date: %s (%s)\n\nThank you.\n- NextBill",
			service, e.AlertDate.Format(models.DateLayout), e.AlertType.DisplayName()),
	}
}
