package repository

import (
	"context"
	"fmt"

	"github.com/magabrotheeeer/subscription-alerts/internal/models"
)

// CreateNotification добавляет уведомление в ленту пользователя и возвращает его ID.
func (s *Storage) CreateNotification(ctx context.Context, n models.Notification) (int64, error) {
	const op = "storage.CreateNotification"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO notifications (user_id, subscription_id, message, type, priority, days_until, is_read)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)
			  RETURNING id`
	var id int64
	err := s.DB.QueryRowContext(ctx, query,
		n.UserID, n.SubscriptionID, n.Message, string(n.Type), string(n.Priority), n.DaysUntil, n.IsRead).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return id, nil
}
