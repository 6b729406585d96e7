// Package main is the entrypoint for the intelliparse console server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/intelliparse/console/internal/api"
	"github.com/intelliparse/console/internal/api/handler"
	mw "github.com/intelliparse/console/internal/api/middleware"
	"github.com/intelliparse/console/internal/auth"
	"github.com/intelliparse/console/internal/cache"
	"github.com/intelliparse/console/internal/config"
	"github.com/intelliparse/console/internal/intelliparse"
	"github.com/intelliparse/console/internal/jobs"
	"github.com/intelliparse/console/internal/session"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("console failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config, fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "env", cfg.Server.Env, "intelliparse", cfg.Intelliparse.BaseURL, "session_backend", cfg.Session.Backend)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Cache: Redis when configured, in-process otherwise
	c, err := openCache(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer c.Close()

	// 3. Session provider, loaded once and shared by every component
	slot, err := openSessionSlot(cfg.Session, c)
	if err != nil {
		return fmt.Errorf("open session slot: %w", err)
	}
	sessions, err := session.NewProvider(ctx, slot)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if s, ok := sessions.Get(); ok {
		slog.Info("cached session restored", "identity", s.Identity)
	}

	// 4. Analysis server client and job pipeline
	client := intelliparse.NewHTTPClient(cfg.Intelliparse.BaseURL, cfg.Intelliparse.Timeout, sessions)
	poller := jobs.NewPoller(client, c, pollPolicy(cfg.Poll), cfg.Poll.CacheTTL)
	tracker := jobs.NewTracker(jobs.NewSubmitter(client), poller)
	defer tracker.Close()

	// 5. Build router with dependencies. Signing out, either explicitly or
	// because the server rejected the session, drops every tracked job.
	authSvc := auth.NewService(client, sessions)
	authSvc.OnSignOut(tracker.Reset)
	guard := auth.NewGuard(client, sessions)
	guard.OnSignOut(tracker.Reset)

	deps := api.Dependencies{
		Session:        mw.NewSession(guard),
		RateLimit:      mw.NewRateLimit(c, sessions, cfg.Server.RateLimitPerMin),
		AllowedOrigins: cfg.Server.AllowedOrigins,

		HealthHandler:   handler.NewHealthHandler(c, client),
		RouteHandler:    handler.NewRouteHandler(),
		LoginHandler:    handler.NewLoginHandler(authSvc),
		LogoutHandler:   handler.NewLogoutHandler(authSvc),
		MeHandler:       handler.NewMeHandler(),
		SubmitHandler:   handler.NewSubmitHandler(tracker, cfg.Server.MaxUploadBytes),
		ViewHandler:     handler.NewViewHandler(tracker),
		MetricsHandler:  handler.NewMetricsHandler(client),
		CheckoutHandler: handler.NewCheckoutHandler(client),

		EnrollHandler:        handler.NewEnrollHandler(client),
		DeleteProfileHandler: handler.NewDeleteProfileHandler(client),
	}
	if cfg.Intelliparse.WebhookSecret != "" {
		deps.WebhookHandler = handler.NewWebhookHandler(cfg.Intelliparse.WebhookSecret, tracker)
	} else {
		slog.Info("webhook secret not set, job callbacks disabled")
	}

	router := api.NewRouter(deps)

	// 6. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:        addr,
		Handler:     router,
		ReadTimeout: 5 * time.Minute, // uploads can be large
		IdleTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("console listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("console stopped gracefully")
	return nil
}

func openCache(ctx context.Context, cfg config.RedisConfig) (cache.Cache, error) {
	if cfg.URL == "" {
		slog.Info("REDIS_URL not set, using in-process cache")
		return cache.NewMemoryCache(), nil
	}

	redisCache, err := cache.NewRedisCache(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("create redis cache: %w", err)
	}
	if err := redisCache.Ping(ctx); err != nil {
		redisCache.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")
	return redisCache, nil
}

func openSessionSlot(cfg config.SessionConfig, c cache.Cache) (session.Slot, error) {
	if cfg.Backend == config.SessionBackendRedis {
		return session.NewCacheSlot(c), nil
	}

	path := cfg.File
	if path == "" {
		var err error
		if path, err = session.DefaultFilePath(); err != nil {
			return nil, err
		}
	}
	return session.NewFileSlot(path), nil
}

func pollPolicy(cfg config.PollConfig) jobs.PollPolicy {
	return jobs.PollPolicy{
		Interval:    cfg.Interval,
		Multiplier:  cfg.Multiplier,
		MaxInterval: cfg.MaxInterval,
		Jitter:      cfg.Jitter,
		MaxAttempts: cfg.MaxAttempts,
		MaxElapsed:  cfg.MaxElapsed,
	}
}
