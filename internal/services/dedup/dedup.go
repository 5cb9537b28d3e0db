// Package dedup реализует двухуровневую защиту от повторной отправки напоминаний:
// быстрый уровень в redis и долговременный в PostgreSQL.
//
// Долговременная запись делается после отправки письма. Если процесс упадёт между
// отправкой и записью, повторная доставка события приведёт ко второму письму.
// Больше двух писем на один ключ не бывает: claim в redis не даёт двум обработчикам
// отправлять одновременно, а уникальный ключ в БД оставляет одну запись.
package dedup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/subscription-alerts/internal/lib/metrics"
	"github.com/magabrotheeeer/subscription-alerts/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-alerts/internal/models"
)

const claimPrefix = "alert:lock:"

// ErrInFlight событие сейчас отправляет другой обработчик. Ошибка временная:
// сообщение нужно вернуть в очередь, а не подтверждать, иначе падение владельца
// claim до отправки потеряет напоминание.
var ErrInFlight = errors.New("alert is being sent by another worker")

// DurableStore долговременный уровень: отметки об отправке с уникальным ключом.
type DurableStore interface {
	AlertRecordExists(ctx context.Context, subscriptionID int64, alertDate time.Time, m models.Milestone) (bool, error)
	InsertAlertRecord(ctx context.Context, r models.AlertRecord) (bool, error)
}

// Cache быстрый уровень, общий для всех экземпляров отправителя.
type Cache interface {
	Exists(ctx context.Context, key string) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) (bool, error)
	Invalidate(ctx context.Context, key string) error
}

// Gate проверяет и отмечает отправленные напоминания.
type Gate struct {
	store    DurableStore
	cache    Cache
	sentTTL  time.Duration
	claimTTL time.Duration
	metrics  *metrics.Metrics
	log      *slog.Logger
}

// NewGate создает новый экземпляр Gate.
func NewGate(store DurableStore, cache Cache, sentTTL, claimTTL time.Duration, m *metrics.Metrics, log *slog.Logger) *Gate {
	return &Gate{
		store:    store,
		cache:    cache,
		sentTTL:  sentTTL,
		claimTTL: claimTTL,
		metrics:  m,
		log:      log,
	}
}

// AlreadySent сообщает, было ли напоминание уже отправлено.
// Сначала проверяется кэш, затем БД; попадание в БД восстанавливает запись в кэше.
// Недоступный кэш не ошибка: решение принимает БД.
func (g *Gate) AlreadySent(ctx context.Context, e models.AlertEvent) (bool, error) {
	const op = "dedup.AlreadySent"
	key := e.CacheKey()

	hit, err := g.cache.Exists(ctx, key)
	if err != nil {
		g.log.Warn("fast tier unavailable, falling back to durable store", slog.String("key", key), sl.Err(err))
	}
	if hit {
		g.metrics.Duplicate(metrics.TierCache)
		return true, nil
	}

	exists, err := g.store.AlertRecordExists(ctx, e.SubscriptionID, e.AlertDate, e.AlertType)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if !exists {
		return false, nil
	}

	g.metrics.Duplicate(metrics.TierDurable)
	if err := g.cache.Set(ctx, key, true, g.sentTTL); err != nil {
		g.log.Warn("failed to backfill fast tier", slog.String("key", key), sl.Err(err))
	}
	return true, nil
}

// Acquire занимает ключ события на время отправки. false означает, что событие
// сейчас обрабатывает другой обработчик. Без redis claim не берётся и отправка
// продолжается: единственность записи обеспечивает БД.
func (g *Gate) Acquire(ctx context.Context, e models.AlertEvent) (bool, error) {
	key := claimPrefix + e.Key()
	ok, err := g.cache.SetNX(ctx, key, true, g.claimTTL)
	if err != nil {
		g.log.Warn("failed to acquire claim, proceeding without it", slog.String("key", key), sl.Err(err))
		return true, nil
	}
	if !ok {
		g.metrics.Duplicate(metrics.TierClaim)
	}
	return ok, nil
}

// Release освобождает ключ после неудачной отправки, чтобы повторная доставка не ждала TTL.
func (g *Gate) Release(ctx context.Context, e models.AlertEvent) {
	key := claimPrefix + e.Key()
	if err := g.cache.Invalidate(ctx, key); err != nil {
		g.log.Warn("failed to release claim", slog.String("key", key), sl.Err(err))
	}
}

// MarkSent сохраняет отметку об отправке: сначала в БД, затем в кэш.
// Возвращает false, если запись с тем же ключом уже была (конфликт не ошибка).
// Кэш заполняется и при ошибке БД, чтобы повторная доставка не отправила письмо ещё раз.
func (g *Gate) MarkSent(ctx context.Context, e models.AlertEvent, sentAt time.Time) (bool, error) {
	const op = "dedup.MarkSent"
	inserted, storeErr := g.store.InsertAlertRecord(ctx, models.NewAlertRecord(e, sentAt))

	if err := g.cache.Set(ctx, e.CacheKey(), true, g.sentTTL); err != nil {
		g.log.Warn("failed to write fast tier", slog.String("key", e.CacheKey()), sl.Err(err))
	}

	if storeErr != nil {
		return false, fmt.Errorf("%s: %w", op, storeErr)
	}
	return inserted, nil
}
