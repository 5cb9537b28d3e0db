// Package runrollover реализует ручной запуск переноса дат платежа.
package runrollover

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/subscription-alerts/internal/http/response"
	"github.com/magabrotheeeer/subscription-alerts/internal/lib/clock"
	"github.com/magabrotheeeer/subscription-alerts/internal/lib/sl"
)

// Service описывает движок переноса дат.
type Service interface {
	AdvanceOverdue(ctx context.Context, today time.Time) (int, error)
}

// Handler обрабатывает POST /api/v1/admin/rollover/run.
type Handler struct {
	log     *slog.Logger
	service Service
	clock   clock.Clock
}

// New создает новый Handler.
func New(log *slog.Logger, service Service, clk clock.Clock) *Handler {
	return &Handler{
		log:     log,
		service: service,
		clock:   clk,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.runrollover"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	n, err := h.service.AdvanceOverdue(r.Context(), clock.Today(h.clock))
	if err != nil {
		log.Error("forced rollover failed", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.ErrorWithData("rollover failed", map[string]any{"advanced": n}))
		return
	}

	log.Info("forced rollover finished", slog.Int("advanced", n))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{"advanced": n}))
}
