// Package health отвечает на проверку живости сервиса.
package health

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/subscription-alerts/internal/http/response"
	"github.com/magabrotheeeer/subscription-alerts/internal/lib/sl"
)

// Checker проверяет зависимость сервиса. nil означает, что зависимость доступна.
type Checker func(ctx context.Context) error

// Handler обработчик /health.
type Handler struct {
	log    *slog.Logger
	checks map[string]Checker
}

// New создает Handler с именованными проверками зависимостей.
func New(log *slog.Logger, checks map[string]Checker) *Handler {
	return &Handler{
		log:    log,
		checks: checks,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.health"

	status := map[string]string{}
	healthy := true
	for name, check := range h.checks {
		if err := check(r.Context()); err != nil {
			h.log.Warn("dependency check failed", slog.String("op", op), slog.String("dependency", name), sl.Err(err))
			status[name] = "down"
			healthy = false
			continue
		}
		status[name] = "up"
	}

	if !healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
		render.JSON(w, r, response.ErrorWithData("dependency unavailable", status))
		return
	}
	render.JSON(w, r, response.StatusOKWithData(status))
}
