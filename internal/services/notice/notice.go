// Package notice создаёт ежедневные уведомления о платежах в ленте пользователя.
package notice

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/subscription-alerts/internal/lib/metrics"
	"github.com/magabrotheeeer/subscription-alerts/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-alerts/internal/models"
)

// Repository источник подписок и хранилище уведомлений.
type Repository interface {
	FindActiveDueIn(ctx context.Context, dates []time.Time) ([]models.Subscription, error)
	CreateNotification(ctx context.Context, n models.Notification) (int64, error)
}

// Service генератор уведомлений о платежах.
type Service struct {
	repo    Repository
	metrics *metrics.Metrics
	log     *slog.Logger
}

// NewNoticeService создает новый экземпляр Service.
func NewNoticeService(repo Repository, m *metrics.Metrics, log *slog.Logger) *Service {
	return &Service{
		repo:    repo,
		metrics: m,
		log:     log,
	}
}

// CreatePaymentNotices создаёт уведомления для платежей через три дня, сегодня
// и вчерашних. Повторный запуск в тот же день создаст уведомления ещё раз.
func (s *Service) CreatePaymentNotices(ctx context.Context, today time.Time) (int, error) {
	const op = "notice.CreatePaymentNotices"
	today = models.DateOf(today)

	subs, err := s.repo.FindActiveDueIn(ctx, []time.Time{
		today.AddDate(0, 0, 3),
		today,
		today.AddDate(0, 0, -1),
	})
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	created := 0
	for _, sub := range subs {
		t, p, days, ok := models.ClassifyPayment(today, sub.NextPaymentDate)
		if !ok {
			continue
		}
		n := models.NewPaymentNotification(sub, t, p, days)
		if _, err := s.repo.CreateNotification(ctx, n); err != nil {
			s.log.Error("failed to create payment notice",
				slog.Int64("subscription_id", sub.ID), sl.Err(err))
			continue
		}
		s.metrics.NoticeCreated(t)
		created++
	}

	s.log.Info("payment notices created", slog.Int("candidates", len(subs)), slog.Int("created", created))
	return created, nil
}
