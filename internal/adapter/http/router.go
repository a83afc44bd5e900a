package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/WaldoAlejo/punto-cambio-ledger/internal/adapter/http/handler"
	"github.com/WaldoAlejo/punto-cambio-ledger/internal/adapter/http/middleware"
	"github.com/WaldoAlejo/punto-cambio-ledger/internal/usecase"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	MovementHandler       *handler.MovementHandler
	BalanceHandler        *handler.BalanceHandler
	AnchorHandler         *handler.AnchorHandler
	TransferHandler       *handler.TransferHandler
	ReconciliationHandler *handler.ReconciliationHandler
	ChainHandler          *handler.ChainHandler
	AuditHandler          *handler.AuditHandler
	HealthHandler         *handler.HealthHandler
	IdempotencyStore      usecase.IdempotencyStore
	RateLimiter           *middleware.RateLimiter
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Metrics)
	r.Use(middleware.Recovery)
	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Limit)
	}

	// Health and metrics endpoints
	r.Get("/health", cfg.HealthHandler.Liveness)
	r.Get("/ready", cfg.HealthHandler.Readiness)
	r.Handle("/metrics", promhttp.Handler())

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		// Idempotency middleware for mutating requests
		if cfg.IdempotencyStore != nil {
			idempotencyMiddleware := middleware.NewIdempotencyMiddleware(cfg.IdempotencyStore)
			r.Use(idempotencyMiddleware.Wrap)
		}

		// Movements
		r.Route("/movements", func(r chi.Router) {
			r.Post("/", cfg.MovementHandler.Record)
			r.Get("/{id}", cfg.MovementHandler.Get)
			r.Post("/{id}/reverse", cfg.MovementHandler.Reverse)
		})

		// Balances and per-stream resources
		r.Route("/balances", func(r chi.Router) {
			r.Get("/", cfg.BalanceHandler.List)
			r.Route("/{pointID}/{currencyID}", func(r chi.Router) {
				r.Get("/", cfg.BalanceHandler.Get)
				r.Get("/history", cfg.BalanceHandler.History)
				r.Get("/movements", cfg.MovementHandler.ListByStream)
				r.Get("/anchor", cfg.AnchorHandler.GetActive)
				r.Get("/chain", cfg.ChainHandler.Check)
				r.Post("/chain/repair", cfg.ChainHandler.Repair)
				r.Post("/chain/dedup", cfg.ChainHandler.SweepDuplicates)
			})
		})

		// Anchors
		r.Post("/anchors", cfg.AnchorHandler.Set)

		// Transfers
		r.Route("/transfers", func(r chi.Router) {
			r.Post("/", cfg.TransferHandler.Create)
			r.Get("/{id}", cfg.TransferHandler.Get)
			r.Post("/{id}/dispatch", cfg.TransferHandler.Dispatch)
			r.Post("/{id}/complete", cfg.TransferHandler.Complete)
			r.Post("/{id}/cancel", cfg.TransferHandler.Cancel)
		})
		r.Get("/points/{pointID}/transfers", cfg.TransferHandler.ListByPoint)

		// Reconciliation
		r.Route("/reconciliation", func(r chi.Router) {
			r.Post("/run", cfg.ReconciliationHandler.Reconcile)
			r.Get("/all", cfg.ReconciliationHandler.ReconcileAll)
			r.Post("/corrections", cfg.ReconciliationHandler.ApplyCorrection)
		})

		// Chain integrity across all streams
		r.Get("/chain", cfg.ChainHandler.CheckAll)

		// Audit trail
		r.Get("/audit/{resourceType}/{resourceID}", cfg.AuditHandler.ListByResource)
	})

	return r
}
