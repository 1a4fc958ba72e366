package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	specpkg "github.com/momentokidspass/mkp/api"
	"github.com/momentokidspass/mkp/internal/api"
	"github.com/momentokidspass/mkp/internal/api/handler"
	"github.com/momentokidspass/mkp/internal/api/middleware"
	"github.com/momentokidspass/mkp/internal/config"
	"github.com/momentokidspass/mkp/internal/identity"
	"github.com/momentokidspass/mkp/internal/metrics"
	"github.com/momentokidspass/mkp/internal/ratelimit"
	"github.com/momentokidspass/mkp/internal/session"
	"github.com/momentokidspass/mkp/internal/telemetry"
	"github.com/momentokidspass/mkp/internal/user"
)

const serviceName = "mkp"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:     cfg.TracingEnabled,
		ServiceName: serviceName,
		Version:     cfg.Version,
		Protocol:    cfg.OTLPProtocol,
	})
	if err != nil {
		slog.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		slog.Warn("database not reachable at startup; health will report degraded", "error", err)
	}

	trustedProxies, err := middleware.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		slog.Error("invalid TRUSTED_PROXIES", "error", err)
		os.Exit(1)
	}

	provider := newProvider(cfg)
	users := user.NewRepository(pool)

	registry := session.NewRegistry(func() *session.Session {
		return session.New(provider, users,
			session.WithEmailDomain(cfg.EmailDomain),
			session.WithTimeout(cfg.IdentityTimeout),
		)
	}, cfg.SessionIdleTTL)
	go registry.Start(ctx)

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m, err := metrics.New(promRegistry, registry.Len)
	if err != nil {
		slog.Error("failed to register metrics", "error", err)
		os.Exit(1)
	}

	deps := api.RouterDeps{
		Sessions: registry,
		Cookie: middleware.CookieConfig{
			Name:   cfg.SessionCookieName,
			Secure: cfg.SessionCookieSecure,
			MaxAge: cfg.SessionIdleTTL,
		},
		DBPinger:       pool,
		Version:        cfg.Version,
		OpenAPISpec:    specpkg.OpenAPISpec,
		TrustedProxies: trustedProxies,
		Metrics:        m,
		Gatherer:       promRegistry,
	}

	if cfg.RedisURL != "" {
		rdb, err := ratelimit.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			slog.Warn("redis unavailable; login rate limiting disabled", "error", err)
		} else {
			defer rdb.Close()
			deps.RedisPinger = redisPinger(rdb)
			deps.LoginLimiter = ratelimit.NewRedisLimiter(rdb, ratelimit.Config{
				Capacity:       cfg.LoginRateCapacity,
				RefillTokens:   cfg.LoginRateRefill,
				RefillInterval: cfg.LoginRateInterval,
				Prefix:         "mkp:login",
			})
		}
	}

	router := api.NewRouter(deps)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           otelhttp.NewHandler(router, serviceName),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("starting server", "port", cfg.Port, "version", cfg.Version)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down server")
	case err := <-serverErr:
		slog.Error("server error", "error", err)
		registry.Close()
		os.Exit(1)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	registry.Close()

	if err := shutdownTracing(shutdownCtx); err != nil {
		slog.Error("failed to flush traces", "error", err)
	}

	slog.Info("server stopped gracefully")
}

func setupLogger(level string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	logHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(logHandler))
}

func newProvider(cfg *config.Config) *identity.GoTrue {
	opts := []identity.GoTrueOption{identity.WithTimeout(cfg.IdentityTimeout)}
	if cfg.SupabaseJWTSecret != "" {
		opts = append(opts, identity.WithVerifier(identity.NewTokenVerifier(cfg.SupabaseJWTSecret)))
	} else {
		slog.Warn("SUPABASE_JWT_SECRET not set; access tokens are not verified")
	}
	return identity.NewGoTrue(cfg.SupabaseURL, cfg.SupabaseAnonKey, opts...)
}

func redisPinger(rdb *redis.Client) handler.PingFunc {
	return func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	}
}
