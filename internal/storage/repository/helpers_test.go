package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/magabrotheeeer/subscription-alerts/internal/migrations"
	"github.com/magabrotheeeer/subscription-alerts/internal/models"
)

// TestDataFactory создаёт тестовые данные напрямую через SQL.
type TestDataFactory struct {
	storage *Storage
}

// NewTestDataFactory создает новую фабрику тестовых данных
func NewTestDataFactory(storage *Storage) *TestDataFactory {
	return &TestDataFactory{storage: storage}
}

// CreateUser создает пользователя с настройками уведомлений
func (f *TestDataFactory) CreateUser(t *testing.T, email string, prefs models.NotificationPreference) int64 {
	var id int64
	err := f.storage.DB.QueryRow(`INSERT INTO users
		(email, name, is_email_alert_enabled, email_alert_7_days, email_alert_3_days, email_alert_1_day, email_alert_d_day)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		email, "Test User", prefs.EmailAlertEnabled, prefs.EmailAlert7Days, prefs.EmailAlert3Days,
		prefs.EmailAlert1Day, prefs.EmailAlertDDay).Scan(&id)
	require.NoError(t, err)
	return id
}

// CreateSubscription создает подписку пользователя
func (f *TestDataFactory) CreateSubscription(t *testing.T, sub models.Subscription) int64 {
	var id int64
	err := f.storage.DB.QueryRow(`INSERT INTO subscriptions
		(user_id, name, cost, billing_cycle, start_date, next_payment_date, is_paused, deleted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		sub.UserID, sub.Name, sub.Cost, string(sub.BillingCycle), sub.StartDate, sub.NextPaymentDate,
		sub.IsPaused, sub.DeletedAt).Scan(&id)
	require.NoError(t, err)
	return id
}

// NextPaymentDate читает текущую дату платежа подписки
func (f *TestDataFactory) NextPaymentDate(t *testing.T, id int64) time.Time {
	var d time.Time
	require.NoError(t, f.storage.DB.QueryRow(`SELECT next_payment_date FROM subscriptions WHERE id = $1`, id).Scan(&d))
	return models.DateOf(d)
}

// CountAlertRecords считает отметки об отправке для подписки
func (f *TestDataFactory) CountAlertRecords(t *testing.T, subscriptionID int64) int {
	var n int
	require.NoError(t, f.storage.DB.QueryRow(`SELECT COUNT(*) FROM alert_records WHERE subscription_id = $1`, subscriptionID).Scan(&n))
	return n
}

func allAlerts() models.NotificationPreference {
	return models.NotificationPreference{
		EmailAlertEnabled: true,
		EmailAlert7Days:   true,
		EmailAlert3Days:   true,
		EmailAlert1Day:    true,
		EmailAlertDDay:    true,
	}
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// setupTestDatabase поднимает PostgreSQL в контейнере и применяет миграции
func setupTestDatabase(t *testing.T) (*Storage, func()) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		),
	)
	require.NoError(t, err, "failed to start container")

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	var storage *Storage
	for range 10 {
		storage, err = New(dsn)
		if err == nil {
			break
		}
		time.Sleep(time.Second)
	}
	require.NoError(t, err, "failed to create storage after retries")

	migrationsPath, err := filepath.Abs("../../../migrations")
	require.NoError(t, err)
	require.NoError(t, migrations.Run(storage.DB, migrationsPath))

	cleanup := func() {
		_ = storage.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}
	return storage, cleanup
}
