package controller

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/cassiomorais/payments-gateway/internal/infrastructure/config"
	"github.com/cassiomorais/payments-gateway/internal/infrastructure/observability"
	customMW "github.com/cassiomorais/payments-gateway/internal/middleware"
)

type RouterDeps struct {
	Payments       *PaymentController
	Health         *HealthController
	Metrics        *observability.Metrics
	MetricsHandler http.Handler
	CORSConfig     config.CORSConfig
	RateLimit      int
	JWTSecret      string
	Logger         zerolog.Logger
}

func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(customMW.Tracing())
	r.Use(chimw.RealIP)
	r.Use(customMW.RequestLogger(deps.Logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(customMW.SecurityHeaders())
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.CORSConfig.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: deps.CORSConfig.AllowCredentials,
		MaxAge:           300,
	}))
	r.Use(customMW.Metrics(deps.Metrics))

	r.Get("/health", deps.Health.Health)
	r.Get("/health/live", deps.Health.Liveness)
	r.Get("/health/ready", deps.Health.Readiness)

	metricsHandler := deps.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.Handle("/metrics", metricsHandler)

	// Processor-facing routes. The webhook is authenticated by its signature.
	r.Route("/payments", func(r chi.Router) {
		r.Post("/webhook", deps.Payments.Webhook)
		r.Get("/success", deps.Payments.Success)
		r.Get("/cancel", deps.Payments.Cancel)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(customMW.RateLimit(deps.RateLimit))
		r.Use(customMW.RequireAuth(deps.JWTSecret))

		r.Post("/payments/session", deps.Payments.CreateSession)
	})

	return r
}
