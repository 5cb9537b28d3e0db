// Package resolver отбирает подписки, по которым нужно напоминание для этапа.
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/subscription-alerts/internal/models"
)

// SubscriptionRepository выборка активных подписок с владельцами на точную дату.
type SubscriptionRepository interface {
	FindDueOn(ctx context.Context, date time.Time) ([]models.DueAlert, error)
}

// Resolver находит пары подписка-владелец для этапа напоминания.
type Resolver struct {
	repo SubscriptionRepository
	log  *slog.Logger
}

// New создает новый экземпляр Resolver.
func New(repo SubscriptionRepository, log *slog.Logger) *Resolver {
	return &Resolver{
		repo: repo,
		log:  log,
	}
}

// FindDue возвращает подписки с датой платежа targetDate, владельцы которых
// не отключили напоминания для этапа m.
func (r *Resolver) FindDue(ctx context.Context, m models.Milestone, targetDate time.Time) ([]models.DueAlert, error) {
	const op = "resolver.FindDue"
	if _, err := models.ParseMilestone(string(m)); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	candidates, err := r.repo.FindDueOn(ctx, models.DateOf(targetDate))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	due := make([]models.DueAlert, 0, len(candidates))
	for _, c := range candidates {
		if !c.Owner.Preferences.Allows(m) {
			continue
		}
		due = append(due, c)
	}
	r.log.Debug("due set resolved",
		slog.String("milestone", string(m)),
		slog.String("target_date", targetDate.Format(models.DateLayout)),
		slog.Int("candidates", len(candidates)),
		slog.Int("due", len(due)),
	)
	return due, nil
}
