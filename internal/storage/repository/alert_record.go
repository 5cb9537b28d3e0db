package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/magabrotheeeer/subscription-alerts/internal/models"
)

// InsertAlertRecord сохраняет отметку об отправке, если такой ещё нет.
// Возвращает false, когда запись с тем же ключом уже существовала; это не ошибка.
func (s *Storage) InsertAlertRecord(ctx context.Context, r models.AlertRecord) (bool, error) {
	const op = "storage.InsertAlertRecord"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO alert_records (subscription_id, alert_date, alert_type, is_sent, sent_at)
			  VALUES ($1, $2, $3, $4, $5)
			  ON CONFLICT (subscription_id, alert_date, alert_type) DO NOTHING`
	result, err := s.DB.ExecContext(ctx, query,
		r.SubscriptionID, models.DateOf(r.AlertDate), string(r.AlertType), r.IsSent, r.SentAt)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return rowsAffected == 1, nil
}

// AlertRecordExists проверяет, было ли отправлено напоминание для тройки ключа.
func (s *Storage) AlertRecordExists(ctx context.Context, subscriptionID int64, alertDate time.Time, m models.Milestone) (bool, error) {
	const op = "storage.AlertRecordExists"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var exists bool
	query := `SELECT EXISTS (
				  SELECT 1 FROM alert_records
				  WHERE subscription_id = $1 AND alert_date = $2 AND alert_type = $3 AND is_sent
			  )`
	if err := s.DB.QueryRowContext(ctx, query, subscriptionID, models.DateOf(alertDate), string(m)).Scan(&exists); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return exists, nil
}
