package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/magabrotheeeer/subscription-alerts/internal/models"
)

const activeSubscriptionColumns = `s.id, s.user_id, s.name, s.cost, s.billing_cycle, s.start_date,
	s.next_payment_date, s.is_paused, s.deleted_at`

// FindDueOn возвращает активные подписки с датой платежа date вместе с владельцами
// и их настройками уведомлений.
func (s *Storage) FindDueOn(ctx context.Context, date time.Time) ([]models.DueAlert, error) {
	const op = "storage.FindDueOn"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + activeSubscriptionColumns + `,
				  u.id, u.email, COALESCE(u.name, ''), u.is_email_alert_enabled,
				  u.email_alert_7_days, u.email_alert_3_days, u.email_alert_1_day, u.email_alert_d_day
			  FROM subscriptions s
			  JOIN users u ON u.id = s.user_id
			  WHERE s.is_paused = FALSE
			    AND s.deleted_at IS NULL
			    AND s.next_payment_date = $1
			  ORDER BY s.id`
	rows, err := s.DB.QueryContext(ctx, query, models.DateOf(date))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var result []models.DueAlert
	for rows.Next() {
		var due models.DueAlert
		raw, scanArgs := subscriptionScanArgs(&due.Subscription)
		owner := &due.Owner
		scanArgs = append(scanArgs,
			&owner.ID, &owner.Email, &owner.Name, &owner.Preferences.EmailAlertEnabled,
			&owner.Preferences.EmailAlert7Days, &owner.Preferences.EmailAlert3Days,
			&owner.Preferences.EmailAlert1Day, &owner.Preferences.EmailAlertDDay,
		)
		if err := rows.Scan(scanArgs...); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		raw.apply(&due.Subscription)
		result = append(result, due)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// FindOverdue возвращает активные подписки, дата платежа которых раньше today.
func (s *Storage) FindOverdue(ctx context.Context, today time.Time) ([]models.Subscription, error) {
	const op = "storage.FindOverdue"
	return s.listSubscriptions(ctx, op, `SELECT `+activeSubscriptionColumns+`
			  FROM subscriptions s
			  WHERE s.is_paused = FALSE
			    AND s.deleted_at IS NULL
			    AND s.next_payment_date < $1
			  ORDER BY s.id`, models.DateOf(today))
}

// FindActiveDueIn возвращает активные подписки с датой платежа из списка dates.
func (s *Storage) FindActiveDueIn(ctx context.Context, dates []time.Time) ([]models.Subscription, error) {
	const op = "storage.FindActiveDueIn"
	if len(dates) == 0 {
		return nil, nil
	}
	days := make([]time.Time, 0, len(dates))
	for _, d := range dates {
		days = append(days, models.DateOf(d))
	}
	return s.listSubscriptions(ctx, op, `SELECT `+activeSubscriptionColumns+`
			  FROM subscriptions s
			  WHERE s.is_paused = FALSE
			    AND s.deleted_at IS NULL
			    AND s.next_payment_date = ANY($1::date[])
			  ORDER BY s.id`, days)
}

func (s *Storage) listSubscriptions(ctx context.Context, op, query string, args ...any) ([]models.Subscription, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var result []models.Subscription
	for rows.Next() {
		var sub models.Subscription
		raw, scanArgs := subscriptionScanArgs(&sub)
		if err := rows.Scan(scanArgs...); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		raw.apply(&sub)
		result = append(result, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// UpdateNextPaymentDate переносит дату платежа только если она всё ещё равна old.
// Возвращает количество изменённых строк: 0 означает, что запись успели изменить.
func (s *Storage) UpdateNextPaymentDate(ctx context.Context, id int64, old, next time.Time) (int, error) {
	const op = "storage.UpdateNextPaymentDate"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE subscriptions
			  SET next_payment_date = $1
			  WHERE id = $2 AND next_payment_date = $3 AND deleted_at IS NULL`
	result, err := s.DB.ExecContext(ctx, query, models.DateOf(next), id, models.DateOf(old))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}

// SubscriptionExists возвращает ErrSubscriptionNotFound, если подписки нет или она удалена.
func (s *Storage) SubscriptionExists(ctx context.Context, id int64) error {
	const op = "storage.SubscriptionExists"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var exists bool
	err := s.DB.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM subscriptions WHERE id = $1 AND deleted_at IS NULL)`, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !exists {
		return fmt.Errorf("%s: %w", op, ErrSubscriptionNotFound)
	}
	return nil
}

type subscriptionRow struct {
	cycle     string
	deletedAt sql.NullTime
}

func subscriptionScanArgs(sub *models.Subscription) (*subscriptionRow, []any) {
	raw := &subscriptionRow{}
	return raw, []any{
		&sub.ID, &sub.UserID, &sub.Name, &sub.Cost, &raw.cycle, &sub.StartDate,
		&sub.NextPaymentDate, &sub.IsPaused, &raw.deletedAt,
	}
}

// apply переносит в подписку поля, требующие разбора. Неизвестный цикл не считается
// ошибкой чтения: его отбрасывает движок переноса дат.
func (r *subscriptionRow) apply(sub *models.Subscription) {
	sub.BillingCycle = models.BillingCycle(r.cycle)
	sub.StartDate = models.DateOf(sub.StartDate)
	sub.NextPaymentDate = models.DateOf(sub.NextPaymentDate)
	if r.deletedAt.Valid {
		t := r.deletedAt.Time
		sub.DeletedAt = &t
	}
}
