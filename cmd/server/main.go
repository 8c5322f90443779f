package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Priya8975/session-gateway/internal/api"
	"github.com/Priya8975/session-gateway/internal/config"
	"github.com/Priya8975/session-gateway/internal/domain"
	"github.com/Priya8975/session-gateway/internal/engine"
	"github.com/Priya8975/session-gateway/internal/session"
	"github.com/Priya8975/session-gateway/internal/store"
	"github.com/Priya8975/session-gateway/internal/webhook"
	ws "github.com/Priya8975/session-gateway/internal/websocket"
)

// eventFan routes each session event to both the live monitoring hub and
// the webhook dispatcher.
type eventFan struct {
	dispatcher *engine.Dispatcher
	hub        *ws.Hub
}

func (f *eventFan) Publish(evt domain.Event) {
	f.hub.BroadcastSession(evt)
	f.dispatcher.Publish(evt)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))

	// Initialize PostgreSQL
	ctx := context.Background()
	pgStore, err := store.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pgStore.Close()
	logger.Info("connected to PostgreSQL")

	// Run database migrations
	if err := pgStore.RunMigrations(ctx, "migrations"); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	logger.Info("database migrations applied")

	// Redis is optional: without it deliveries skip rate limiting and
	// circuit breaking.
	var (
		limiter *engine.RateLimiter
		breaker *engine.CircuitBreaker
	)
	if cfg.RedisURL != "" {
		redisStore, err := store.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer redisStore.Close()
		logger.Info("connected to Redis")

		limiter = engine.NewRateLimiter(redisStore.Client(), logger)
		breaker = engine.NewCircuitBreaker(redisStore.Client(), logger)
	} else {
		logger.Warn("REDIS_URL not set, rate limiting and circuit breaking disabled")
	}

	hub := ws.NewHub(logger)
	go hub.Run()

	registry := webhook.NewRegistry(pgStore)
	deliverer := engine.NewDeliverer(limiter, breaker, logger)
	dispatcher := engine.NewDispatcher(registry, deliverer, pgStore, hub, logger)

	sessions := session.NewStore()
	machine := session.NewMachine(sessions, &eventFan{dispatcher: dispatcher, hub: hub}, pgStore, logger)
	coordinator := session.NewCoordinator(sessions)
	manager := session.NewManager(sessions, machine, func(sessionID string) session.Driver {
		return session.NewSimulatedDriver(sessionID)
	}, pgStore, logger)

	if cfg.OutcomeRetentionHours > 0 {
		go pruneLoop(ctx, pgStore, time.Duration(cfg.OutcomeRetentionHours)*time.Hour, logger)
	}

	router := api.NewRouter(manager, coordinator, registry, pgStore, breaker, hub)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	// Let in-flight webhook deliveries run out their retry schedules.
	dispatcher.Drain()

	logger.Info("server stopped")
}

func parseLogLevel(level string) slog.Level {
	switch level {
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

// pruneLoop periodically drops delivery outcomes past the retention
// window so the delivery log does not grow without bound.
func pruneLoop(ctx context.Context, pg *store.PostgresStore, retention time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pruned, err := pg.PruneOutcomes(ctx, time.Now().Add(-retention))
			if err != nil {
				logger.Error("failed to prune delivery outcomes", "error", err)
				continue
			}
			if pruned > 0 {
				logger.Info("pruned delivery outcomes", "count", pruned)
			}
		}
	}
}
