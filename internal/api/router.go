package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/danteprogrammer/clinica-core/internal/billing"
	"github.com/danteprogrammer/clinica-core/internal/booking"
	"github.com/danteprogrammer/clinica-core/internal/encounter"
	"github.com/danteprogrammer/clinica-core/internal/schedule"
)

type RouterConfig struct {
	Availability *schedule.AvailabilityEngine
	Ledger       *booking.Ledger
	Encounters   *encounter.Service
	Billing      *billing.Service
	PgPool       *pgxpool.Pool
	Redis        *redis.Client
	Env          string
	Version      string
	Log          zerolog.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Log))

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	r.Get("/availability", availabilityHandler(cfg.Availability))

	r.Post("/appointments", createAppointmentHandler(cfg.Ledger))
	r.Get("/appointments/{id}", getAppointmentHandler(cfg.Ledger))
	r.Post("/appointments/{id}/cancel", cancelAppointmentHandler(cfg.Ledger))
	r.Post("/appointments/{id}/reschedule", rescheduleAppointmentHandler(cfg.Ledger))
	r.Post("/appointments/{id}/transition", transitionHandler(cfg.Encounters))
	r.Get("/appointments/{id}/encounter", getEncounterHandler(cfg.Encounters))
	r.Get("/appointments/{id}/invoice", getInvoiceHandler(cfg.Billing))

	r.Get("/patients/{id}/appointments", listPatientAppointmentsHandler(cfg.Ledger))
	r.Post("/lab-orders/{orderID}/start", startLabOrderHandler(cfg.Encounters))

	return r
}
