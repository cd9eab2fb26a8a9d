package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/iho/stockledger/internal/adapter/http/handler"
	"github.com/iho/stockledger/internal/adapter/http/middleware"
	"github.com/iho/stockledger/internal/usecase"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	ContractHandler  *handler.ContractHandler
	LedgerHandler    *handler.LedgerHandler
	AuditHandler     *handler.AuditHandler // optional
	HealthHandler    *handler.HealthHandler
	IdempotencyStore usecase.IdempotencyStore
	IdempotencyTTL   time.Duration
	RateLimiter      *middleware.RateLimiter // optional
	Logger           zerolog.Logger
	MetricsHandler   http.Handler
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewLoggingMiddleware(cfg.Logger).Wrap)
	r.Use(middleware.Recovery)
	r.Use(middleware.Metrics)

	// Health endpoints
	r.Get("/health", cfg.HealthHandler.Liveness)
	r.Get("/ready", cfg.HealthHandler.Readiness)

	metricsHandler := cfg.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.Handle("/metrics", metricsHandler)

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/contracts/{id}", cfg.ContractHandler.Get)
		if cfg.AuditHandler != nil {
			r.Get("/contracts/{id}/history", cfg.AuditHandler.ContractHistory)
		}
		r.Get("/ledger-entries/{id}", cfg.LedgerHandler.GetEntry)
		r.Get("/ledger/consistency", cfg.LedgerHandler.CheckConsistency)

		// Mutations act on behalf of the gateway-supplied user.
		r.Group(func(r chi.Router) {
			r.Use(middleware.Actor)

			if cfg.RateLimiter != nil {
				r.Use(cfg.RateLimiter.Limit)
			}

			if cfg.IdempotencyStore != nil {
				r.Use(middleware.NewIdempotencyMiddleware(cfg.IdempotencyStore, cfg.IdempotencyTTL).Wrap)
			}

			r.Post("/contracts", cfg.ContractHandler.Create)
			r.Post("/contracts/{id}/cancel", cfg.ContractHandler.Cancel)
		})
	})

	return r
}
