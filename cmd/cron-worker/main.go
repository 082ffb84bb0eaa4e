package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/harvestdesk/farmops-backend/internal/app"
	"github.com/harvestdesk/farmops-backend/internal/cron"
	"github.com/harvestdesk/farmops-backend/pkg/config"
	"github.com/harvestdesk/farmops-backend/pkg/db"
	"github.com/harvestdesk/farmops-backend/pkg/instance"
	"github.com/harvestdesk/farmops-backend/pkg/logger"
	"github.com/harvestdesk/farmops-backend/pkg/metrics"
	"github.com/harvestdesk/farmops-backend/pkg/migrate"
	"github.com/harvestdesk/farmops-backend/pkg/redis"
)

func main() {
	once := flag.Bool("once", false, "run one cycle and exit")
	only := flag.String("jobs", "", "comma separated job names to run (default all)")
	flag.Parse()

	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		logger.New(logger.Options{ServiceName: "cron-worker"}).Error(context.Background(), "load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = "cron-worker"

	logg := logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.GetID(),
	})

	if err := run(ctx, cfg, logg, *once, splitJobs(*only)); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker exited", err)
		stop()
		os.Exit(1)
	}
	logg.Info(ctx, "cron worker stopped")
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger, once bool, jobs []string) error {
	dbClient, err := db.Open(ctx, cfg, logg)
	if err != nil {
		return err
	}
	defer closeWith(ctx, logg, "database", dbClient.Close)

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	var lock cron.Lock
	if cfg.Redis.Configured() {
		redisClient, err := redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return err
		}
		defer closeWith(ctx, logg, "redis", redisClient.Close)
		if lock, err = cron.NewRedisLock(redisClient, redis.LockKey(cfg.App.Env, "cron-worker"), 0); err != nil {
			return err
		}
	} else {
		logg.Warn(ctx, "redis not configured, cycles are only serialized inside this process")
	}

	cronMetrics := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	services, err := app.Build(app.Params{
		DB:      dbClient,
		Config:  cfg,
		Metrics: metrics.NewDomainMetrics(prometheus.DefaultRegisterer),
		Logger:  logg,
	})
	if err != nil {
		return err
	}

	registry, err := buildRegistry(cfg, logg, dbClient, services, cronMetrics)
	if err != nil {
		return err
	}
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  cronMetrics,
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		return err
	}

	if once || len(jobs) > 0 {
		logg.Info(logg.WithField(ctx, "jobs", jobs), "running a single cycle")
		return service.RunOnce(ctx, jobs...)
	}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return metrics.Serve(ctx, cfg.Service.MetricsAddr, prometheus.DefaultGatherer, logg)
	})
	g.Go(func() error {
		logg.Info(logg.WithField(ctx, "jobs", registry.Names()), "cron worker started")
		return service.Run(ctx)
	})
	return g.Wait()
}

func buildRegistry(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, services *app.Services, m *metrics.CronJobMetrics) (*cron.Registry, error) {
	segments, err := cron.NewSegmentRefreshJob(cron.SegmentRefreshJobParams{
		Logger:    logg,
		Segments:  services.Customers,
		Metrics:   m,
		AutoApply: cfg.Cron.AutoApplySegments,
	})
	if err != nil {
		return nil, err
	}
	journal, err := cron.NewJournalRetentionJob(cron.JournalRetentionJobParams{
		Logger:        logg,
		Journal:       services.Movements,
		Metrics:       m,
		RetentionDays: cfg.Cron.JournalRetentionDays,
	})
	if err != nil {
		return nil, err
	}
	outbox, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:         logg,
		DB:             dbClient,
		Repository:     services.Outbox,
		Metrics:        m,
		RetentionDays:  cfg.Outbox.RetentionDays,
		GiveUpAttempts: cfg.Outbox.MaxAttempts,
	})
	if err != nil {
		return nil, err
	}
	return cron.NewRegistry(segments, journal, outbox)
}

func splitJobs(raw string) []string {
	var out []string
	for _, name := range strings.Split(raw, ",") {
		if name = strings.TrimSpace(name); name != "" {
			out = append(out, name)
		}
	}
	return out
}

func closeWith(ctx context.Context, logg *logger.Logger, what string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logg.Error(logg.WithField(ctx, "resource", what), "close failed", err)
	}
}
