package scheduler

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/subscription-alerts/internal/http/handlers/admin/runalerts"
	"github.com/magabrotheeeer/subscription-alerts/internal/http/handlers/admin/runrollover"
	"github.com/magabrotheeeer/subscription-alerts/internal/http/handlers/health"
	"github.com/magabrotheeeer/subscription-alerts/internal/http/middlewarectx"
	"github.com/magabrotheeeer/subscription-alerts/internal/lib/clock"
)

// RegisterRoutes регистрирует административные маршруты планировщика.
func RegisterRoutes(r chi.Router, logger *slog.Logger, limiter *rate.Limiter, clk clock.Clock,
	alerts runalerts.Service, rollover runrollover.Service, checks map[string]health.Checker) {
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
	)

	r.Route("/api/v1/admin", func(r chi.Router) {
		r.Use(middlewarectx.RateLimitMiddleware(logger, limiter))
		r.Post("/alerts/run", runalerts.New(logger, alerts).ServeHTTP)
		r.Post("/rollover/run", runrollover.New(logger, rollover, clk).ServeHTTP)
	})

	r.Get("/health", health.New(logger, checks).ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())
}
