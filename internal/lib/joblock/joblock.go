// Package joblock не даёт нескольким экземплярам планировщика выполнять одно задание
// одновременно. Блокировка берётся в redis через redsync с одной попыткой: если задание
// уже выполняется на другом экземпляре, текущий запуск пропускается.
package joblock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"

	"github.com/magabrotheeeer/subscription-alerts/internal/lib/sl"
)

const keyPrefix = "job:lock:"

// Guard выдаёт блокировки заданий.
type Guard struct {
	rs  *redsync.Redsync
	ttl time.Duration
	log *slog.Logger
}

// New создает Guard. ttl должен быть не меньше таймаута задания.
func New(client *redis.Client, ttl time.Duration, log *slog.Logger) *Guard {
	return &Guard{
		rs:  redsync.New(goredis.NewPool(client)),
		ttl: ttl,
		log: log,
	}
}

// Wrap возвращает fn, выполняемую только под блокировкой name.
// Занятая блокировка означает пропуск запуска без ошибки. Если redis недоступен,
// задание выполняется без блокировки: повторный запуск переживут дедупликация
// и оптимистичное обновление дат. На nil Guard fn возвращается как есть.
func (g *Guard) Wrap(name string, fn func(ctx context.Context) error) func(ctx context.Context) error {
	if g == nil {
		return fn
	}
	return func(ctx context.Context) error {
		const op = "joblock.Wrap"
		log := g.log.With(slog.String("op", op), slog.String("job", name))

		mutex := g.rs.NewMutex(keyPrefix+name, redsync.WithExpiry(g.ttl), redsync.WithTries(1))
		if err := mutex.LockContext(ctx); err != nil {
			var taken *redsync.ErrTaken
			if errors.As(err, &taken) || errors.Is(err, redsync.ErrFailed) {
				log.Info("job is running on another instance, skipping")
				return nil
			}
			if ctx.Err() != nil {
				return fmt.Errorf("%s: %w", op, ctx.Err())
			}
			log.Warn("job lock unavailable, running without it", sl.Err(err))
			return fn(ctx)
		}
		defer func() {
			if _, err := mutex.UnlockContext(context.WithoutCancel(ctx)); err != nil {
				log.Warn("failed to release job lock", sl.Err(err))
			}
		}()

		return fn(ctx)
	}
}
