// Package sl содержит вспомогательные функции для работы с логгером slog.
// Даёт единообразные структурированные поля: ошибки и события напоминаний.
package sl

import (
	"io"
	"log/slog"
	"os"

	"github.com/magabrotheeeer/subscription-alerts/internal/models"
)

const (
	envLocal = "local"
	envDev   = "dev"
)

// Err возвращает slog.Attr с ключом "error" и значением текста ошибки.
//
// Пример:
//
//	log.Error("failed to do something", sl.Err(err))
func Err(err error) slog.Attr {
	return slog.Attr{
		Key:   "error",
		Value: slog.StringValue(err.Error()),
	}
}

// Event возвращает группу "event" с полями события напоминания.
func Event(e models.AlertEvent) slog.Attr {
	return slog.Group("event",
		slog.Int64("subscription_id", e.SubscriptionID),
		slog.String("milestone", string(e.AlertType)),
		slog.String("alert_date", e.AlertDate.Format(models.DateLayout)),
		slog.String("service_name", e.ServiceName),
		slog.String("email", e.UserEmail),
	)
}

// New создаёт логгер для окружения env: текст и debug локально, JSON и info в остальных.
func New(env string) *slog.Logger {
	return newLogger(env, os.Stdout)
}

func newLogger(env string, w io.Writer) *slog.Logger {
	switch env {
	case envLocal, envDev:
		return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
	default:
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
}

// Discard логгер, который ничего не пишет. Используется в тестах.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}
