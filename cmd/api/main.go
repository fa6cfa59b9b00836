package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/BradenHooton/farmgate/internal/auth"
	"github.com/BradenHooton/farmgate/internal/background"
	"github.com/BradenHooton/farmgate/internal/config"
	"github.com/BradenHooton/farmgate/internal/database"
	"github.com/BradenHooton/farmgate/internal/handlers"
	"github.com/BradenHooton/farmgate/internal/metrics"
	"github.com/BradenHooton/farmgate/internal/middleware"
	"github.com/BradenHooton/farmgate/internal/postgrest"
	"github.com/BradenHooton/farmgate/internal/repositories"
	"github.com/BradenHooton/farmgate/internal/routes"
	"github.com/BradenHooton/farmgate/internal/services"
	pkgauth "github.com/BradenHooton/farmgate/pkg/auth"
	pkghttp "github.com/BradenHooton/farmgate/pkg/http"
	pkglogger "github.com/BradenHooton/farmgate/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

// backend is the data store selected by DATA_BACKEND
type backend struct {
	store  services.Store
	health handlers.HealthChecker
	otps   background.OTPPurger
	close  func()
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.Server.LogLevel)}))
	slog.SetDefault(logger)

	logger.Info("configuration loaded",
		slog.String("env", cfg.Server.Env),
		slog.String("backend", cfg.DataStore.Backend),
		slog.String("email_provider", cfg.Email.Provider),
	)

	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	data, err := openBackend(startupCtx, cfg, logger)
	startupCancel()
	if err != nil {
		logger.Error("failed to initialize data backend", slog.Any("error", err))
		os.Exit(1)
	}
	defer data.close()

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.New(registry)

	// Reset throttle (optional)
	var throttle services.ResetThrottle
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			logger.Error("invalid REDIS_URL", slog.Any("error", err))
			os.Exit(1)
		}
		redisClient := redis.NewClient(opts)
		defer redisClient.Close()
		throttle = repositories.NewResetThrottleRepository(redisClient)
		logger.Info("forgot-password throttle enabled", slog.Duration("window", cfg.Auth.ResetThrottleWindow))
	}

	// Hashing and tokens
	hashPool := pkgauth.NewHashPool(cfg.Auth.HashWorkers)
	passwordHasher := hashPool.Hasher(cfg.Auth.PasswordBcryptCost)
	otpHasher := hashPool.Hasher(cfg.Auth.OTPBcryptCost)
	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenExpiry)
	timingDelay := auth.NewTimingDelay(auth.TimingConfig{
		MinDuration: cfg.Auth.ForgotPasswordMinDuration,
		Jitter:      cfg.Auth.ForgotPasswordMinDuration / 5,
	})

	// Mail delivery
	mailer, err := newMailer(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize email service", slog.Any("error", err))
		os.Exit(1)
	}

	// Initialize services
	auditLogger := pkglogger.NewAuditLogger(logger)
	notificationService := services.NewNotificationService(data.store.Notifications, mailer, services.NotificationConfig{}, logger, appMetrics)
	auditService := services.NewAuditService(data.store.AuditLog, auditLogger, logger, appMetrics)
	permissionService := services.NewPermissionService(data.store.RBAC)

	authService := services.NewAuthService(services.AuthDependencies{
		Store:          data.store,
		Permissions:    permissionService,
		PasswordHasher: passwordHasher,
		OTPHasher:      otpHasher,
		Tokens:         tokenManager,
		Notifier:       notificationService,
		Audit:          auditService,
		Throttle:       throttle,
		Timing:         timingDelay,
		AuditLogger:    auditLogger,
		Logger:         logger,
		Metrics:        appMetrics,
	}, services.AuthConfig{
		LockoutThreshold:    cfg.Auth.LockoutThreshold,
		OTPTTL:              cfg.Auth.OTPTTL,
		ResetThrottleWindow: cfg.Auth.ResetThrottleWindow,
	})
	adminService := services.NewAdminService(data.store.Accounts, auditService, logger)

	// Initialize handlers
	ipConfig, invalidProxies := pkghttp.NewIPConfig(cfg.Server.TrustedProxies)
	for _, cidr := range invalidProxies {
		logger.Warn("ignoring invalid trusted proxy", slog.String("cidr", cidr))
	}

	authHandler := handlers.NewAuthHandler(authService, ipConfig)
	adminHandler := handlers.NewAdminHandler(adminService)
	healthHandler := handlers.NewHealthHandler(data.health, cfg.DataStore.Backend, logger)

	// Setup router
	router := routes.NewRouter(routes.RouterConfig{
		AuthHandler:   authHandler,
		AdminHandler:  adminHandler,
		HealthHandler: healthHandler,
		Tokens:        tokenManager,
		Metrics:       appMetrics,
		Gatherer:      registry,
		Logger:        logger,
		Env:           cfg.Server.Env,
		CORS:          middleware.DefaultCORSConfig(cfg.Server.AllowedOrigins),
		RateLimit: middleware.RateLimitConfig{
			RequestsPerMinute: cfg.Auth.LoginRatePerMinute,
			IPConfig:          ipConfig,
		},
		RequestTimeout: cfg.Server.RequestTimeout,
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start cleanup task
	cleanupManager := background.NewCleanupManager(data.otps, logger, cfg.Auth.OTPCleanupInterval, cfg.Auth.OTPRetention)
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()

	go cleanupManager.Start(cleanupCtx)

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cleanupCancel()
	cleanupManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
	}

	// Flush queued OTP mails after handlers have stopped enqueueing
	notificationService.Close()
	logger.Info("server stopped gracefully", slog.Uint64("notifications_dropped", notificationService.Dropped()))
}

// openBackend connects to the configured data store and wires its
// repositories into a services.Store
func openBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*backend, error) {
	switch cfg.DataStore.Backend {
	case config.BackendPostgres:
		if cfg.Database.MigrateOnStart {
			if err := database.Migrate(ctx, &cfg.Database, logger); err != nil {
				return nil, fmt.Errorf("failed to run migrations: %w", err)
			}
		}

		db, err := database.NewConnection(&cfg.Database, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		otps := repositories.NewOTPRepository(db)
		return &backend{
			store: services.Store{
				Accounts:      repositories.NewAccountRepository(db),
				LoginAttempts: repositories.NewLoginAttemptRepository(db),
				OTPs:          otps,
				Resets:        repositories.NewPasswordResetRepository(db),
				RBAC:          repositories.NewRBACRepository(db),
				Profiles:      repositories.NewProfileRepository(db),
				AuditLog:      repositories.NewAuditLogRepository(db),
				Notifications: repositories.NewNotificationRepository(db),
			},
			health: db,
			otps:   otps,
			close:  db.Close,
		}, nil

	case config.BackendPostgREST:
		client, err := postgrest.NewClient(cfg.DataStore.PostgRESTURL, cfg.DataStore.PostgRESTToken, cfg.DataStore.Timeout)
		if err != nil {
			return nil, fmt.Errorf("failed to create postgrest client: %w", err)
		}
		if err := client.HealthCheck(ctx); err != nil {
			logger.Warn("postgrest not reachable at startup", slog.Any("error", err))
		}

		otps := postgrest.NewOTPStore(client)
		return &backend{
			store: services.Store{
				Accounts:      postgrest.NewAccountStore(client),
				LoginAttempts: postgrest.NewLoginAttemptStore(client),
				OTPs:          otps,
				Resets:        postgrest.NewPasswordResetStore(client),
				RBAC:          postgrest.NewRBACStore(client),
				Profiles:      postgrest.NewProfileStore(client),
				AuditLog:      postgrest.NewAuditLogStore(client),
				Notifications: postgrest.NewNotificationStore(client),
			},
			health: client,
			otps:   otps,
			close:  func() {},
		}, nil
	}

	return nil, fmt.Errorf("unknown data backend %q", cfg.DataStore.Backend)
}

func newMailer(cfg *config.Config, logger *slog.Logger) (services.Mailer, error) {
	if cfg.Email.Provider == config.EmailProviderSES {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return services.NewSESMailer(ctx, cfg.Email.AWSRegion, cfg.Email.From, cfg.Auth.OTPTTL, logger)
	}
	logger.Warn("EMAIL_PROVIDER=log: OTP mails are written to the log, not delivered")
	return services.NewLogMailer(logger, cfg.Server.Env), nil
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
