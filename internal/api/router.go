package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

type RouterConfig struct {
	Engine  Engine
	Health  *HealthHandler
	Metrics http.Handler // mounted at /metrics when set
	Logger  zerolog.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(middleware.Recoverer)

	if cfg.Health != nil {
		r.Get("/health/live", cfg.Health.Liveness)
		r.Get("/health/ready", cfg.Health.Readiness)
	}
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	h := &handlers{engine: cfg.Engine, logger: cfg.Logger.With().Str("component", "api").Logger()}

	r.Post("/sessions", h.startSession)
	r.Route("/sessions/{id}", func(r chi.Router) {
		r.Post("/identity", h.resolveIdentity)
		r.Post("/availability", h.checkAvailability)
		r.Post("/bookings", h.book)
		r.Post("/cancellations", h.cancel)
		r.Post("/log", h.logCall)
		r.Post("/end", h.endSession)
	})

	return r
}
