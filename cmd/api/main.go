package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/eventix-edge/api/controllers"
	"github.com/angelmondragon/eventix-edge/api/routes"
	"github.com/angelmondragon/eventix-edge/internal/identity"
	"github.com/angelmondragon/eventix-edge/internal/notifications"
	"github.com/angelmondragon/eventix-edge/pkg/config"
	"github.com/angelmondragon/eventix-edge/pkg/logger"
	"github.com/angelmondragon/eventix-edge/pkg/metrics"
	"github.com/angelmondragon/eventix-edge/pkg/realtime"
	"github.com/angelmondragon/eventix-edge/pkg/redis"
	"github.com/angelmondragon/eventix-edge/pkg/validation"
)

func main() {
	os.Exit(run())
}

func run() int {
	logg := logger.New(logger.Options{ServiceName: "eventix-edge"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		return 1
	}

	logg = logger.New(logger.Options{
		ServiceName: "eventix-edge",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      logFormat(cfg.App),
	})

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	var readiness controllers.Pinger
	if cfg.Redis.Enabled() {
		redisClient, err := redis.New(runCtx, cfg.Redis, logg)
		if err != nil {
			logg.Error(runCtx, "failed to bootstrap redis", err)
			return 1
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
		readiness = redisClient
	}

	tokens := identity.NewTokenHolder()
	resolver, err := identity.NewResolver(cfg, tokens)
	if err != nil {
		logg.Error(runCtx, "failed to build identity resolver", err)
		return 1
	}

	manager, err := notifications.NewManager(
		notifications.Config{
			Credentials:    realtime.Credentials{Key: cfg.Realtime.Key, Cluster: cfg.Realtime.Cluster},
			ToastTTL:       cfg.Notifications.ToastTTL,
			HistoryLimit:   cfg.Notifications.HistoryLimit,
			ResolveTimeout: cfg.Identity.ResolveTimeout,
		},
		resolver,
		logg,
		notifications.WithMetrics(metrics.NewRealtimeMetrics(registry)),
	)
	if err != nil {
		logg.Error(runCtx, "failed to create notification provider", err)
		return 1
	}
	// A failed dial leaves the provider degraded; the API keeps serving.
	if err := manager.Initialize(runCtx); err != nil {
		logg.Error(runCtx, "realtime connection failed; live notifications disabled", err)
	}
	manager.Refresh(runCtx)

	addr := ":" + cfg.App.Port
	ctx := logg.WithFields(runCtx, map[string]any{
		"env":           cfg.App.Env,
		"addr":          addr,
		"identity_mode": cfg.Identity.NormalizedMode(),
		"realtime":      cfg.Realtime.Configured(),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, readiness, registry, manager, tokens, validation.Default),
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	exitCode := 0
	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			exitCode = 1
		}
	case <-runCtx.Done():
		logg.Info(ctx, "shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logg.Error(ctx, "api server shutdown", err)
	}
	if err := manager.Teardown(); err != nil {
		logg.Error(ctx, "notification provider teardown", err)
	}
	return exitCode
}

// logFormat keeps LOG_FORMAT authoritative and defaults dev runs to console output.
func logFormat(app config.AppConfig) string {
	if os.Getenv("LOG_FORMAT") == "" && app.IsDev() {
		return "console"
	}
	return ""
}
