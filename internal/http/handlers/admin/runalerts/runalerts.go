// Package runalerts реализует ручной запуск генерации напоминаний.
//
// Тело запроса необязательно: без этапа прогоняются все этапы по порядку.
package runalerts

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/subscription-alerts/internal/http/response"
	"github.com/magabrotheeeer/subscription-alerts/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-alerts/internal/models"
)

// Request тело запроса на запуск.
type Request struct {
	Milestone string `json:"milestone" validate:"omitempty,oneof=D_7 D_3 D_1 D_DAY"`
}

// Service описывает генератор напоминаний.
type Service interface {
	RunMilestone(ctx context.Context, m models.Milestone) (int, error)
	RunAll(ctx context.Context) (map[models.Milestone]int, error)
}

// Handler обрабатывает POST /api/v1/admin/alerts/run.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создает новый Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.runalerts"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		log.Error("failed to decode request", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	counts := map[models.Milestone]int{}
	var err error
	if req.Milestone == "" {
		counts, err = h.service.RunAll(r.Context())
	} else {
		m := models.Milestone(req.Milestone)
		var n int
		n, err = h.service.RunMilestone(r.Context(), m)
		counts[m] = n
	}

	data := map[string]any{"published": counts}
	if err != nil {
		log.Error("forced alert run failed", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.ErrorWithData("alert generation failed", data))
		return
	}

	log.Info("forced alert run finished", slog.Any("published", counts))
	render.JSON(w, r, response.StatusOKWithData(data))
}
