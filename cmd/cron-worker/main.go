package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/geodirectory-backend/internal/assets"
	"github.com/angelmondragon/geodirectory-backend/internal/cron"
	"github.com/angelmondragon/geodirectory-backend/pkg/config"
	"github.com/angelmondragon/geodirectory-backend/pkg/db"
	"github.com/angelmondragon/geodirectory-backend/pkg/logger"
	"github.com/angelmondragon/geodirectory-backend/pkg/metrics"
	"github.com/angelmondragon/geodirectory-backend/pkg/migrate"
	"github.com/angelmondragon/geodirectory-backend/pkg/outbox"
	"github.com/angelmondragon/geodirectory-backend/pkg/redis"
)

const serviceKind = "cron-worker"

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceKind})
	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = serviceKind
	logg = logger.New(logger.Options{
		ServiceName: serviceKind,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": serviceKind,
	})

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		stop()
		os.Exit(1)
	}
	logg.Info(ctx, "cron worker shut down")
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("bootstrap database: %w", err)
	}
	defer closeWith(ctx, logg, "database", dbClient.Close)

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return fmt.Errorf("dev migrations: %w", err)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return fmt.Errorf("bootstrap redis: %w", err)
	}
	defer closeWith(ctx, logg, "redis", redisClient.Close)

	registry, err := buildRegistry(ctx, cfg, logg, dbClient)
	if err != nil {
		return err
	}

	ttl := leaseTTL(cfg.Cron, len(registry.Jobs()))
	lock, err := cron.NewRedisLock(redisClient, leaseName(cfg.App.Env), ttl)
	if err != nil {
		return fmt.Errorf("cron lock: %w", err)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:     logg,
		Registry:   registry,
		Lock:       lock,
		Metrics:    metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval:   cfg.Cron.Interval,
		JobTimeout: cfg.Cron.JobTimeout,
	})
	if err != nil {
		return fmt.Errorf("cron service: %w", err)
	}

	go func() {
		if err := metrics.Serve(ctx, cfg.Service.MetricsPort, prometheus.DefaultGatherer, logg); err != nil {
			logg.Error(ctx, "metrics server stopped", err)
		}
	}()

	logg.Info(logg.WithField(ctx, "lease_ttl", ttl.String()), "starting cron worker")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func buildRegistry(ctx context.Context, cfg *config.Config, logg *logger.Logger, dbClient *db.Client) (*cron.Registry, error) {
	backend, err := assets.NewBackend(ctx, cfg.Storage, cfg.S3, logg)
	if err != nil {
		return nil, fmt.Errorf("bootstrap storage: %w", err)
	}
	assetStore, err := assets.NewStore(backend, cfg.Assets.MaxFileBytes(), logg)
	if err != nil {
		return nil, fmt.Errorf("asset store: %w", err)
	}

	stagingJob, err := cron.NewStagingReaperJob(cron.StagingReaperJobParams{
		Logger:    logg,
		Assets:    assetStore,
		Retention: cfg.Cron.StagingRetention,
	})
	if err != nil {
		return nil, fmt.Errorf("staging reaper: %w", err)
	}
	retentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		Repository: outbox.NewRepository(dbClient.DB()),
		Retention:  cfg.Outbox.Retention,
	})
	if err != nil {
		return nil, fmt.Errorf("outbox retention: %w", err)
	}
	return cron.NewRegistry(stagingJob, retentionJob)
}

func leaseName(env string) string {
	if env == "" {
		env = "local"
	}
	return serviceKind + ":" + env
}

// leaseTTL stays under the cadence so a crashed holder costs one cycle, but
// never below the longest a full cycle may legitimately take.
func leaseTTL(cfg config.CronConfig, jobs int) time.Duration {
	ttl := cfg.Interval * 5 / 6
	if cfg.Interval <= 0 {
		ttl = 50 * time.Minute
	}
	if cycle := cfg.JobTimeout * time.Duration(jobs); cycle > ttl {
		ttl = cycle
	}
	return ttl
}

func closeWith(ctx context.Context, logg *logger.Logger, name string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logg.Error(ctx, "error closing "+name, err)
	}
}
