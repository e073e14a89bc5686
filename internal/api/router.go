package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/medoc/opd-token-engine/internal/booking"
)

type RouterConfig struct {
	Service *booking.Service
	PgPool  *pgxpool.Pool
	Redis   *redis.Client
	Env     string
	Version string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/book", bookTokenHandler(cfg.Service))

		r.Patch("/appointments/{id}/cancel", cancelAppointmentHandler(cfg.Service))
		r.Patch("/appointments/{id}/serve", serveAppointmentHandler(cfg.Service))

		r.Post("/doctors", createDoctorHandler(cfg.Service))
		r.Get("/doctors", listDoctorsHandler(cfg.Service))
		r.Get("/doctors/{id}", getDoctorHandler(cfg.Service))
		r.Get("/doctors/{id}/queue", getQueueHandler(cfg.Service))
		r.Post("/doctors/{id}/slots", createSlotHandler(cfg.Service))
		r.Get("/doctors/{id}/slots", listSlotsHandler(cfg.Service))
	})

	return r
}
