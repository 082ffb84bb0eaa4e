// Command api serves the FarmOps HTTP API.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/harvestdesk/farmops-backend/api/routes"
	"github.com/harvestdesk/farmops-backend/internal/app"
	"github.com/harvestdesk/farmops-backend/pkg/config"
	"github.com/harvestdesk/farmops-backend/pkg/db"
	"github.com/harvestdesk/farmops-backend/pkg/instance"
	"github.com/harvestdesk/farmops-backend/pkg/logger"
	"github.com/harvestdesk/farmops-backend/pkg/metrics"
	"github.com/harvestdesk/farmops-backend/pkg/migrate"
	"github.com/harvestdesk/farmops-backend/pkg/redis"
)

const (
	serviceKind     = "api"
	shutdownTimeout = 15 * time.Second
)

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		logger.New(logger.Options{ServiceName: serviceKind}).Error(context.Background(), "load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = serviceKind

	logg := logger.New(logger.Options{
		ServiceName: serviceKind,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": serviceKind,
		"instance":    instance.GetID(),
	})

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(ctx, "api exited", err)
		stop()
		os.Exit(1)
	}
	logg.Info(ctx, "api stopped")
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	dbClient, err := db.Open(ctx, cfg, logg)
	if err != nil {
		return err
	}
	defer closeWith(ctx, logg, "database", dbClient.Close)
	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	var redisClient *redis.Client
	switch {
	case cfg.Redis.Configured():
		if redisClient, err = redis.New(ctx, cfg.Redis, logg); err != nil {
			return err
		}
		defer closeWith(ctx, logg, "redis", redisClient.Close)
	case cfg.FeatureFlags.Idempotency:
		logg.Warn(ctx, "idempotency enabled but redis not configured, replay is off")
	}

	services, err := app.Build(app.Params{
		DB:      dbClient,
		Config:  cfg,
		Metrics: metrics.NewDomainMetrics(prometheus.DefaultRegisterer),
		Logger:  logg,
	})
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr: listenAddr(cfg),
		Handler: routes.NewRouter(cfg, logg, routes.Dependencies{
			DB:          dbClient,
			Redis:       redisClient,
			Inventory:   services.Inventory,
			Movements:   services.Movements,
			Locations:   services.Locations,
			Orders:      services.Orders,
			Customers:   services.Customers,
			Production:  services.Production,
			Reports:     services.Reports,
			HTTPMetrics: metrics.NewHTTPMetrics(prometheus.DefaultRegisterer),
			Gatherer:    prometheus.DefaultGatherer,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	ctx = logg.WithFields(ctx, map[string]any{"addr": server.Addr, "store": dbClient.Dialect()})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logg.Info(ctx, "api listening")
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logg.Info(ctx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// listenAddr prefers a platform-injected PORT over FARMOPS_APP_PORT.
func listenAddr(cfg *config.Config) string {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = cfg.App.Port
	}
	return ":" + port
}

func closeWith(ctx context.Context, logg *logger.Logger, what string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logg.Error(logg.WithField(ctx, "resource", what), "close failed", err)
	}
}
