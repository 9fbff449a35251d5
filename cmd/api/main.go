package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/BradenHooton/kafedra/internal/auth"
	"github.com/BradenHooton/kafedra/internal/background"
	"github.com/BradenHooton/kafedra/internal/config"
	"github.com/BradenHooton/kafedra/internal/database"
	"github.com/BradenHooton/kafedra/internal/handlers"
	"github.com/BradenHooton/kafedra/internal/metrics"
	middlewareCustom "github.com/BradenHooton/kafedra/internal/middleware"
	"github.com/BradenHooton/kafedra/internal/repositories"
	"github.com/BradenHooton/kafedra/internal/routes"
	"github.com/BradenHooton/kafedra/internal/security"
	"github.com/BradenHooton/kafedra/internal/services"
	"github.com/BradenHooton/kafedra/internal/storage"
	pkgauth "github.com/BradenHooton/kafedra/pkg/auth"
	pkghttp "github.com/BradenHooton/kafedra/pkg/http"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited with error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.Server.LogLevel)}))
	slog.SetDefault(logger)
	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	if err := security.ValidateEventTypes(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Database.AutoMigrate {
		migrator, err := database.OpenMigrator(&cfg.Database, logger)
		if err != nil {
			return err
		}
		err = migrator.Up(ctx)
		_ = migrator.Close()
		if err != nil {
			return err
		}
	}

	db, err := database.NewConnection(ctx, &cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		return err
	}
	defer db.Close()

	// Metrics and the security event log
	var appMetrics *metrics.Metrics
	if cfg.Metrics.Enabled {
		appMetrics = metrics.New()
	}
	events := security.NewEventLogger(logger, cfg.Security.EventBufferSize)
	if appMetrics != nil {
		events.SetRecorder(appMetrics)
	}

	// Rate limiting: Redis when configured, process memory otherwise
	memoryLimiter := security.NewMemoryLimiter()
	var limiter security.RateLimiter = memoryLimiter
	if cfg.Redis.URL != "" {
		client, err := newRedisClient(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer client.Close()
		limiter = security.NewRedisLimiter(client, "")
		logger.Info("rate limiting backed by redis")
	}

	tracker := security.NewIPTracker(cfg.Security.SuspiciousWindow, cfg.Security.SuspiciousThreshold)
	ipConfig := pkghttp.NewIPConfig(cfg.Server.TrustedProxies)

	// Avatar storage is optional. A host outside the allow-list disables it.
	var avatars *storage.AvatarStore
	if cfg.Storage.Endpoint != "" {
		avatars, err = storage.NewAvatarStore(cfg.Storage)
		if err != nil {
			logger.Warn("avatar storage disabled", slog.Any("error", err))
			avatars = nil
		}
	}

	// Email delivery
	var emailService services.EmailService = services.NewLogEmailService(cfg.Email.ResetURLBase, cfg.Server.Env, logger)
	if cfg.Email.Enabled {
		ses, err := services.NewAWSSESEmailService(ctx, cfg.Email.AWSRegion, cfg.Email.FromAddress, cfg.Email.ResetURLBase, logger)
		if err != nil {
			logger.Error("failed to initialize email service", slog.Any("error", err))
			return err
		}
		emailService = ses
	}

	// Repositories and services
	userRepo := repositories.NewUserRepository(db)
	resetRepo := repositories.NewPasswordResetRepository(db)
	hasher := pkgauth.NewHasher(cfg.Auth.BcryptCost)

	authService := services.NewAuthService(userRepo, hasher, limiter, events, logger)
	registrationService := services.NewRegistrationService(userRepo, hasher, events, logger)
	resetService := services.NewPasswordResetService(userRepo, resetRepo, emailService, hasher, events, logger, cfg.Email.ResetTTL)

	// Session and CSRF
	sessions := auth.NewSessionManager(cfg.Auth.SessionSecret, cfg.Auth.SessionMaxAge)
	csrf := auth.NewCSRFTokenManager(cfg.Auth.CSRFTokenTTL)
	cookies := auth.CookieConfig{Secure: cfg.Server.IsProduction(), SameSite: "lax"}

	authHandler := handlers.NewAuthHandler(authService, sessions, csrf, cookies, events, ipConfig, logger)
	if avatars != nil {
		authHandler.WithAvatars(avatars)
	}

	firewallConfig := middlewareCustom.DefaultFirewallConfig()
	firewallConfig.APILimit = security.RateLimitConfig{Window: cfg.Security.APIRateWindow, MaxRequests: cfg.Security.APIRateMax}
	firewallConfig.MaxBodyBytes = cfg.Security.MaxBodyBytes

	firewallDeps := middlewareCustom.FirewallDeps{
		Tracker:  tracker,
		Limiter:  limiter,
		Sessions: auth.CookieSessions{Manager: sessions, Cookies: cookies},
		Events:   events,
		CORS:     middlewareCustom.NewCORSConfig(cfg.Server.AppURL),
		IPConfig: ipConfig,
		Logger:   logger,
	}
	var rateLimitMetrics middlewareCustom.RateLimitMetrics
	if appMetrics != nil {
		firewallDeps.Metrics = appMetrics
		rateLimitMetrics = appMetrics
	}

	deps := routes.Dependencies{
		Firewall:      middlewareCustom.NewFirewall(firewallConfig, firewallDeps),
		ActionLimiter: middlewareCustom.NewActionLimiter(limiter, events, rateLimitMetrics, ipConfig, logger),
		Sessions:      sessions,
		CSRF:          csrf,
		Cookies:       cookies,
		Events:        events,
		IPConfig:      ipConfig,
		Headers: middlewareCustom.SecurityHeadersConfig{
			Env:             cfg.Server.Env,
			StorageSuffixes: cfg.Storage.AllowedSuffixes,
		},
		PageRequestsPerMin: cfg.Security.PageRequestsPerMin,
		Logger:             logger,
		Health:             healthHandler(db),
	}
	if appMetrics != nil {
		deps.Metrics = appMetrics.Handler()
	}

	router := routes.NewRouter(routes.Handlers{
		Pages:         handlers.NewPageHandler(csrf, cookies, logger),
		Register:      handlers.NewRegisterHandler(registrationService, events, ipConfig, logger),
		Auth:          authHandler,
		PasswordReset: handlers.NewPasswordResetHandler(resetService, events, ipConfig, logger),
		Admin:         handlers.NewAdminHandler(events),
	}, deps)

	cleanup := background.NewCleanupManager(logger, cfg.Security.SweepInterval).
		Register("rate_limiter", memoryLimiter).
		Register("ip_tracker", tracker).
		Register("csrf_tokens", csrf).
		WithTokenStore(resetRepo)
	if appMetrics != nil {
		cleanup.WithRecorder(appMetrics)
	}

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		cleanup.Start(gctx)
		return nil
	})

	g.Go(func() error {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received")
		cleanup.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		err := server.Shutdown(shutdownCtx)
		resetService.Wait()
		return err
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server stopped gracefully")
	return nil
}

func newRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}
	opts.PoolSize = cfg.PoolSize
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

func healthHandler(db *database.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.HealthCheck(ctx); err != nil {
			pkghttp.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "database": "down"})
			return
		}
		pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy", "database": "up"})
	}
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
