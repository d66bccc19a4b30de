package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/clinicware/clinic-ops/internal/auth"
	"github.com/clinicware/clinic-ops/internal/dispatch"
	"github.com/clinicware/clinic-ops/internal/reservation"
)

type RouterConfig struct {
	Reservations *reservation.Service
	Dispatch     *dispatch.Service
	PgPool       *pgxpool.Pool
	Redis        *redis.Client
	Logger       *zap.Logger
	Env          string
	Version      string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(httprate.LimitByIP(120, time.Minute))
	r.Use(auth.Middleware)

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Reservation endpoints
	r.Post("/appointments/hold", createHoldHandler(cfg.Reservations))
	r.Post("/appointments/{id}/confirm", confirmHoldHandler(cfg.Reservations))
	r.Post("/appointments/{id}/cancel", cancelAppointmentHandler(cfg.Reservations))
	r.Get("/doctors/{id}/schedule", busyScheduleHandler(cfg.Reservations))

	// Dispatch endpoints
	r.Post("/emergencies/dispatch", dispatchHandler(cfg.Dispatch))
	r.Post("/emergencies/{id}/reassign", reassignHandler(cfg.Dispatch))
	r.Post("/emergencies/{id}/status", updateEmergencyStatusHandler(cfg.Dispatch))

	return r
}
