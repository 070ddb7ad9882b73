// Package main is the entrypoint for the ThaiDeals product API server.
package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/werserver/thaideals/internal/cache"
	"github.com/werserver/thaideals/internal/clicks"
	"github.com/werserver/thaideals/internal/config"
	"github.com/werserver/thaideals/internal/handler"
	"github.com/werserver/thaideals/internal/metrics"
	"github.com/werserver/thaideals/internal/middleware"
	"github.com/werserver/thaideals/internal/model"
	"github.com/werserver/thaideals/internal/server"
	"github.com/werserver/thaideals/internal/service"
	"github.com/werserver/thaideals/internal/source/remote"
	"github.com/werserver/thaideals/internal/source/tabular"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)

	bootSource, err := model.ParseDataSource(cfg.DataSource)
	if err != nil {
		logger.Error("invalid DATA_SOURCE", "value", cfg.DataSource)
		os.Exit(1)
	}

	// Cache backend: Redis when configured, in-memory otherwise.
	var store cache.Store
	var redisStore *cache.Redis
	if cfg.RedisURL != "" {
		redisStore, err = cache.NewRedis(ctx, cfg.RedisURL, cfg.PageCacheTTL)
		if err != nil {
			logger.Error(
				"failed to connect to Redis",
				slog.String("error", sanitizeError(err, cfg.RedisURL)),
				slog.String("redis_url", redactURL(cfg.RedisURL)),
			)
			os.Exit(1)
		}
		defer redisStore.Close()
		store = redisStore
		logger.Info("connected to Redis")
	} else {
		store = cache.NewMemory(cfg.PageCacheTTL)
		logger.Info("using in-memory cache")
	}

	metricsRecorder := metrics.NewInMemory()

	settings := service.NewSettings(bootSource, cfg.ProductsAPIToken, cfg.CloakToken, cfg.CloakBaseURL, cfg.DefaultCurrency)

	remoteLoader := remote.New(settings, store, remote.Options{
		BaseURL:       cfg.ProductsAPIURL,
		Timeout:       cfg.UpstreamTimeout,
		UpstreamRPS:   float64(cfg.UpstreamRPS),
		UpstreamBurst: cfg.UpstreamBurst,
	}, metricsRecorder, logger)

	registry := tabular.NewRegistry()
	tabularLoader := tabular.New(registry, settings, tabular.Options{
		FallbackPath: cfg.TabularFallbackPath,
		FallbackURL:  cfg.TabularFallbackURL,
		FetchTimeout: cfg.UpstreamTimeout,
		TTL:          cfg.TabularCacheTTL,
	}, metricsRecorder, logger)

	catalog := service.NewCatalog(settings, remoteLoader, tabularLoader, store, logger)

	// Cloaking or currency changes make every cached product stale.
	settings.OnInvalidate(func() {
		if err := catalog.InvalidateAll(context.Background()); err != nil {
			logger.Error("cache invalidation after settings change failed", "error", err)
		}
	})

	clickRecorder := clicks.NewRecorder(cfg.ClickBuffer, metricsRecorder, logger)

	h := handler.New()
	healthHandler := newHealthHandler(redisStore)
	productHandler := handler.NewProductHandler(catalog, logger)
	redirectHandler := handler.NewRedirectHandler(catalog, settings, clickRecorder, logger)
	adminHandler := handler.NewAdminHandler(settings, catalog, registry, metricsRecorder, clickRecorder, logger)

	r := setupRouter(h, healthHandler, productHandler, redirectHandler, adminHandler, cfg, logger)

	srv := server.New(
		r,
		cfg.AppPort,
		cfg.ReadTimeout,
		cfg.WriteTimeout,
		cfg.ShutdownTimeout,
		logger,
	)
	srv.OnShutdown("clicks", clickRecorder.Shutdown)

	logger.Info("starting server",
		"port", cfg.AppPort,
		"source", string(bootSource),
		"env", cfg.AppEnv,
	)

	if err := srv.Run(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// newHealthHandler avoids handing the health handler a typed-nil
// checker when Redis is not configured.
func newHealthHandler(redisStore *cache.Redis) *handler.HealthHandler {
	if redisStore == nil {
		return handler.NewHealthHandler(nil)
	}
	return handler.NewHealthHandler(redisStore)
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// setupRouter configures the chi router with all routes and middleware.
func setupRouter(
	h *handler.Handler,
	healthHandler *handler.HealthHandler,
	productHandler *handler.ProductHandler,
	redirectHandler *handler.RedirectHandler,
	adminHandler *handler.AdminHandler,
	cfg *config.Config,
	logger *slog.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.Security(middleware.SecurityConfig{
		IsDevelopment:      cfg.IsDevelopment(),
		MaxRequestBodySize: cfg.MaxRequestBodySize,
	}))

	r.Get("/healthz", healthHandler.Healthz)
	r.Get("/readyz", healthHandler.Readyz)

	r.Get("/", h.Hello)

	rateLimitCfg := middleware.RateLimitConfig{
		Logger:  logger,
		Enabled: cfg.RateLimitRedirectEnabled,
		RPS:     cfg.RateLimitRedirectRPS,
		Burst:   cfg.RateLimitRedirectBurst,
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/products", func(r chi.Router) {
			r.Get("/", productHandler.List)
			r.Get("/{id}", productHandler.Get)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.AdminAuth(middleware.AdminAuthConfig{
				Logger:    logger,
				TokenHash: cfg.AdminTokenHash,
			}))
			// Tabular uploads are bigger than normal API bodies.
			r.Use(middleware.MaxBodySize(10 << 20))

			r.Get("/settings", adminHandler.GetSettings)
			r.Patch("/settings", adminHandler.UpdateSettings)
			r.Get("/sources", adminHandler.ListSources)
			r.Put("/sources/{category}", adminHandler.UploadSource)
			r.Delete("/sources/{category}", adminHandler.DeleteSource)
			r.Post("/cache/invalidate", adminHandler.Invalidate)
			r.Get("/metrics", adminHandler.Metrics)
			r.Get("/clicks", adminHandler.Clicks)
		})
	})

	// Outbound click-through with IP-based rate limiting (no auth).
	r.With(middleware.RateLimitIP(rateLimitCfg)).Get("/out/{id}", redirectHandler.Outbound)

	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)

	return r
}

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return msg
}
