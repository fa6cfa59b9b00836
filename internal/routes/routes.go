package routes

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/BradenHooton/farmgate/internal/auth"
	"github.com/BradenHooton/farmgate/internal/handlers"
	"github.com/BradenHooton/farmgate/internal/metrics"
	"github.com/BradenHooton/farmgate/internal/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterConfig carries the handlers and cross-cutting collaborators mounted
// by NewRouter
type RouterConfig struct {
	AuthHandler   *handlers.AuthHandler
	AdminHandler  *handlers.AdminHandler
	HealthHandler *handlers.HealthHandler
	Tokens        auth.TokenVerifier
	Metrics       *metrics.Metrics
	// Gatherer backs /metrics. Nil leaves the endpoint unmounted.
	Gatherer       prometheus.Gatherer
	Logger         *slog.Logger
	Env            string
	CORS           *middleware.CORSConfig
	RateLimit      middleware.RateLimitConfig
	RequestTimeout time.Duration
}

// NewRouter builds the HTTP surface with its middleware stack
func NewRouter(cfg RouterConfig) chi.Router {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(middleware.SecurityHeaders(middleware.SecurityHeadersConfig{Env: cfg.Env}))
	if cfg.CORS != nil {
		router.Use(middleware.CORS(cfg.CORS))
	}
	router.Use(middleware.SecureLogger(cfg.Logger))
	router.Use(middleware.RequestMetrics(cfg.Metrics))
	router.Use(chimiddleware.Recoverer)
	router.Use(chimiddleware.Timeout(cfg.RequestTimeout))

	RegisterRoutes(router, cfg)
	return router
}

// RegisterRoutes registers all application routes
func RegisterRoutes(router chi.Router, cfg RouterConfig) {
	router.Get("/health", cfg.HealthHandler.Health)
	if cfg.Gatherer != nil {
		router.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	// Public routes - no authentication required
	router.Route("/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimitByIP(cfg.RateLimit))
			r.Post("/login", cfg.AuthHandler.Login)
			r.Post("/forgot-password", cfg.AuthHandler.ForgotPassword)
			r.Post("/reset-password", cfg.AuthHandler.ResetPassword)
		})

		r.With(auth.AuthMiddleware(cfg.Tokens)).Get("/me", cfg.AuthHandler.Me)
	})

	// Protected routes - authentication required
	router.Route("/admin", func(r chi.Router) {
		r.Use(auth.AuthMiddleware(cfg.Tokens))
		r.With(auth.RequirePermission("user_account", "update")).Post("/accounts/{id}/unlock", cfg.AdminHandler.UnlockAccount)
	})
}
