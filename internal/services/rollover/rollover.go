// Package rollover переносит просроченные даты платежа на следующий цикл оплаты.
package rollover

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/subscription-alerts/internal/lib/billing"
	"github.com/magabrotheeeer/subscription-alerts/internal/lib/metrics"
	"github.com/magabrotheeeer/subscription-alerts/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-alerts/internal/models"
)

// SubscriptionRepository выборка просроченных подписок и условное обновление даты.
type SubscriptionRepository interface {
	FindOverdue(ctx context.Context, today time.Time) ([]models.Subscription, error)
	UpdateNextPaymentDate(ctx context.Context, id int64, old, next time.Time) (int, error)
}

// Service движок переноса дат платежа.
type Service struct {
	repo    SubscriptionRepository
	metrics *metrics.Metrics
	log     *slog.Logger
}

// NewRolloverService создает новый экземпляр Service.
func NewRolloverService(repo SubscriptionRepository, m *metrics.Metrics, log *slog.Logger) *Service {
	return &Service{
		repo:    repo,
		metrics: m,
		log:     log,
	}
}

// AdvanceOverdue сдвигает каждую активную подписку с датой платежа раньше today
// ровно на один цикл от текущей даты. Подписка, отставшая на несколько циклов,
// догоняет по одному шагу за запуск. Возвращает число перенесённых подписок.
func (s *Service) AdvanceOverdue(ctx context.Context, today time.Time) (int, error) {
	const op = "rollover.AdvanceOverdue"
	today = models.DateOf(today)

	overdue, err := s.repo.FindOverdue(ctx, today)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if len(overdue) == 0 {
		s.log.Info("no overdue subscriptions found")
		return 0, nil
	}

	advanced := 0
	for _, sub := range overdue {
		if err := ctx.Err(); err != nil {
			return advanced, fmt.Errorf("%s: %w", op, err)
		}
		log := s.log.With(
			slog.Int64("subscription_id", sub.ID),
			slog.String("billing_cycle", string(sub.BillingCycle)),
			slog.String("next_payment_date", sub.NextPaymentDate.Format(models.DateLayout)),
		)

		next, err := billing.NextPaymentDate(sub.BillingCycle, sub.NextPaymentDate)
		if err != nil {
			log.Error("cannot compute next payment date, skipping", sl.Err(err))
			continue
		}

		n, err := s.repo.UpdateNextPaymentDate(ctx, sub.ID, sub.NextPaymentDate, next)
		if err != nil {
			log.Error("failed to update next payment date", sl.Err(err))
			continue
		}
		if n == 0 {
			log.Warn("subscription changed concurrently, skipping")
			continue
		}
		advanced++
	}

	s.metrics.RolledOver(advanced)
	s.log.Info("rollover finished", slog.Int("overdue", len(overdue)), slog.Int("advanced", advanced))
	return advanced, nil
}
