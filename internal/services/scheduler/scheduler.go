// Package scheduler формирует события напоминаний по этапам и публикует их в очередь.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/magabrotheeeer/subscription-alerts/internal/lib/clock"
	"github.com/magabrotheeeer/subscription-alerts/internal/lib/metrics"
	"github.com/magabrotheeeer/subscription-alerts/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/subscription-alerts/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-alerts/internal/models"
)

// DueResolver отбирает подписки для этапа на целевую дату.
type DueResolver interface {
	FindDue(ctx context.Context, m models.Milestone, targetDate time.Time) ([]models.DueAlert, error)
}

// Service генерирует события напоминаний.
type Service struct {
	resolver DueResolver
	channel  rabbitmq.Publisher
	clock    clock.Clock
	metrics  *metrics.Metrics
	log      *slog.Logger
}

// NewSchedulerService создает новый экземпляр Service.
func NewSchedulerService(resolver DueResolver, channel rabbitmq.Publisher, clk clock.Clock, m *metrics.Metrics, log *slog.Logger) *Service {
	return &Service{
		resolver: resolver,
		channel:  channel,
		clock:    clk,
		metrics:  m,
		log:      log,
	}
}

// RunMilestone публикует по событию на каждую подписку с платежом через OffsetDays дней.
// Ошибка публикации одного события логируется и не останавливает остальные.
// Возвращает количество опубликованных событий.
func (s *Service) RunMilestone(ctx context.Context, m models.Milestone) (int, error) {
	const op = "scheduler.RunMilestone"
	targetDate := clock.Today(s.clock).AddDate(0, 0, m.OffsetDays())
	log := s.log.With(
		slog.String("milestone", string(m)),
		slog.String("target_date", targetDate.Format(models.DateLayout)),
	)

	log.Info("starting alert generation")
	due, err := s.resolver.FindDue(ctx, m, targetDate)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if len(due) == 0 {
		log.Info("no due subscriptions found")
		return 0, nil
	}

	published := 0
	for _, d := range due {
		if err := ctx.Err(); err != nil {
			return published, fmt.Errorf("%s: %w", op, err)
		}
		event := models.NewAlertEvent(d, m, targetDate)
		err := rabbitmq.PublishMessage(s.channel, rabbitmq.AlertExchange, rabbitmq.AlertRoutingKey, event.Key(), event)
		if err != nil {
			s.metrics.PublishFailed()
			log.Error("failed to publish alert event", sl.Event(event), sl.Err(err))
			continue
		}
		s.metrics.Published(m)
		published++
	}

	log.Info("alert generation finished", slog.Int("due", len(due)), slog.Int("published", published))
	return published, nil
}

// RunAll прогоняет все этапы по порядку от D_7 к D_DAY. Сбой одного этапа не мешает следующим.
func (s *Service) RunAll(ctx context.Context) (map[models.Milestone]int, error) {
	counts := make(map[models.Milestone]int, len(models.Milestones))
	var errs []error
	for _, m := range models.Milestones {
		n, err := s.RunMilestone(ctx, m)
		counts[m] = n
		if err != nil {
			errs = append(errs, err)
		}
	}
	return counts, errors.Join(errs...)
}

// Job оборачивает задание для cron: ограничивает время прогона, ловит панику и логирует ошибку.
// Сбой задания не останавливает процесс и остальные задания.
func Job(log *slog.Logger, name string, timeout time.Duration, fn func(ctx context.Context) error) func() {
	return func() {
		ctx := context.Background()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		log := log.With(slog.String("job", name))
		defer func() {
			if r := recover(); r != nil {
				log.Error("job panicked", slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
			}
		}()

		start := time.Now()
		if err := fn(ctx); err != nil {
			log.Error("job failed", sl.Err(err), slog.Duration("elapsed", time.Since(start)))
			return
		}
		log.Info("job finished", slog.Duration("elapsed", time.Since(start)))
	}
}
