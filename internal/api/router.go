package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/turnomed/scheduling-engine/internal/schedule"
)

type RouterConfig struct {
	Service *schedule.Service
	Slots   *schedule.Generator
	PgPool  *pgxpool.Pool
	Redis   *redis.Client
	Env     string
	Version string
	Logger  zerolog.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Availability
	r.Get("/providers/{id}/slots", providerSlotsHandler(cfg.Slots))
	r.Get("/providers/{id}/calendar", providerCalendarHandler(cfg.Slots))

	// Booking workflow
	r.Post("/appointments", bookAppointmentHandler(cfg.Service))
	r.Get("/appointments/{id}", getAppointmentHandler(cfg.Service))
	r.Post("/appointments/{id}/reschedule", rescheduleAppointmentHandler(cfg.Service))
	r.Post("/appointments/{id}/confirm", transitionHandler(func(req *http.Request, id uuid.UUID) (*schedule.Appointment, error) {
		return cfg.Service.Confirm(req.Context(), id)
	}))
	r.Post("/appointments/{id}/cancel", transitionHandler(func(req *http.Request, id uuid.UUID) (*schedule.Appointment, error) {
		return cfg.Service.Cancel(req.Context(), id)
	}))
	r.Post("/appointments/{id}/complete", transitionHandler(func(req *http.Request, id uuid.UUID) (*schedule.Appointment, error) {
		return cfg.Service.Complete(req.Context(), id)
	}))
	r.Post("/appointments/{id}/no-show", transitionHandler(func(req *http.Request, id uuid.UUID) (*schedule.Appointment, error) {
		return cfg.Service.MarkNoShow(req.Context(), id)
	}))

	return r
}
