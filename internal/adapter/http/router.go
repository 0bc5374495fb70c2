package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/iho/betledger/internal/adapter/http/handler"
	"github.com/iho/betledger/internal/adapter/http/middleware"
	"github.com/iho/betledger/internal/infrastructure/metrics"
	"github.com/iho/betledger/internal/usecase"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	HealthHandler     *handler.HealthHandler
	AuthHandler       *handler.AuthHandler
	DepositHandler    *handler.DepositHandler
	WebhookHandler    *handler.WebhookHandler
	WithdrawalHandler *handler.WithdrawalHandler
	EntryHandler      *handler.EntryHandler
	GameplayHandler   *handler.GameplayHandler
	TrackingHandler   *handler.TrackingHandler
	AdminHandler      *handler.AdminHandler
	AuditHandler      *handler.AuditHandler

	// Authenticator puts the caller's principal in the request context.
	Authenticator    func(http.Handler) http.Handler
	IdempotencyStore usecase.IdempotencyStore
	IdempotencyTTL   time.Duration
	RateLimiter      *middleware.RateLimiter
	Metrics          *metrics.Metrics
	MetricsHandler   http.Handler
	Logger           zerolog.Logger

	// CORSOrigins enables CORS for browser clients when non-empty.
	CORSOrigins []string
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.NewLoggingMiddleware(cfg.Logger).Wrap)
	r.Use(middleware.SecurityHeaders)
	if len(cfg.CORSOrigins) > 0 {
		r.Use(middleware.CORS(cfg.CORSOrigins))
	}
	if cfg.Metrics != nil {
		r.Use(middleware.Metrics(cfg.Metrics))
	}
	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Limit)
	}

	// Health endpoints
	r.Get("/health", cfg.HealthHandler.Liveness)
	r.Get("/ready", cfg.HealthHandler.Readiness)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	authenticate := cfg.Authenticator
	if authenticate == nil {
		authenticate = middleware.HeaderIdentity
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Called by the payment gateway and the landing page; no caller identity.
		r.Post("/pix/webhook", cfg.WebhookHandler.Pix)
		r.Route("/tracking/utms", func(r chi.Router) {
			r.Post("/", cfg.TrackingHandler.Save)
			r.Get("/", cfg.TrackingHandler.Get)
		})

		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			// Keys are scoped per caller, so this runs after authentication.
			if cfg.IdempotencyStore != nil {
				r.Use(middleware.NewIdempotencyMiddleware(cfg.IdempotencyStore, cfg.IdempotencyTTL, cfg.Logger).Wrap)
			}

			r.Get("/me", cfg.AuthHandler.Me)

			r.Route("/pix", func(r chi.Router) {
				r.Post("/generate", cfg.DepositHandler.Generate)
				r.Get("/status/{reference}", cfg.DepositHandler.Status)
			})

			r.Route("/withdrawals", func(r chi.Router) {
				r.Post("/", cfg.WithdrawalHandler.Request)
				r.Get("/", cfg.WithdrawalHandler.History)
				r.Get("/limits", cfg.WithdrawalHandler.Limits)
				r.Post("/{id}/cancel", cfg.WithdrawalHandler.Cancel)
				r.With(middleware.RequireSettler).Post("/{id}/confirm", cfg.WithdrawalHandler.Confirm)
				r.With(middleware.RequireSettler).Post("/{id}/fail", cfg.WithdrawalHandler.Fail)
			})

			r.Route("/entries", func(r chi.Router) {
				r.Get("/", cfg.EntryHandler.List)
				r.Get("/{id}", cfg.EntryHandler.Get)
			})

			r.Post("/bets", cfg.GameplayHandler.Bet)
			r.With(middleware.RequireSettler).Post("/wins", cfg.GameplayHandler.Win)
			r.With(middleware.RequireSettler).Post("/bonuses", cfg.GameplayHandler.Bonus)

			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.RequireSettler)
				r.Get("/users/{id}", cfg.AdminHandler.GetUser)
				r.Get("/users/{id}/consistency", cfg.AdminHandler.Consistency)
				r.Post("/entries/{id}/cancel", cfg.WithdrawalHandler.CancelEntry)
				r.Post("/entries/{id}/fail", cfg.WithdrawalHandler.FailEntry)
				if cfg.AuditHandler != nil {
					r.Get("/audit", cfg.AuditHandler.Trail)
					r.Get("/entries/{id}/history", cfg.AuditHandler.EntryHistory)
				}

				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireAdmin)
					r.Post("/users", cfg.AdminHandler.CreateUser)
					r.Put("/users/{id}/status", cfg.AdminHandler.SetStatus)
					r.Put("/users/{id}/balance", cfg.AdminHandler.AdjustBalance)
					r.Post("/tokens", cfg.AuthHandler.IssueToken)
				})
			})
		})
	})

	return r
}
