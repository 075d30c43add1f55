package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/geodirectory-backend/internal/assets"
	"github.com/angelmondragon/geodirectory-backend/internal/assets/consumer"
	"github.com/angelmondragon/geodirectory-backend/pkg/config"
	"github.com/angelmondragon/geodirectory-backend/pkg/logger"
	"github.com/angelmondragon/geodirectory-backend/pkg/pubsub"
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "asset-worker"})

	_ = godotenv.Load()

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	cfg.Service.Kind = "asset-worker"

	logg = logger.New(logger.Options{
		ServiceName: "asset-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	if !strings.EqualFold(strings.TrimSpace(cfg.Events.Backend), config.EventsBackendPubSub) {
		requireResource(ctx, logg, "events backend", fmt.Errorf("asset worker needs %s=%s", config.EnvEventsBackend, config.EventsBackendPubSub))
	}

	backend, err := assets.NewBackend(ctx, cfg.Storage, cfg.S3, logg)
	requireResource(ctx, logg, "storage", err)

	assetStore, err := assets.NewStore(backend, cfg.Assets.MaxFileBytes(), logg)
	requireResource(ctx, logg, "asset store", err)

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	requireResource(ctx, logg, "pubsub", err)
	defer pubsubClient.Close()

	requireResource(ctx, logg, "assets subscription", pubsubClient.EnsureSubscription(ctx, cfg.PubSub.AssetsSubscription))

	cleanup, err := consumer.NewCleanupConsumer(assetStore, pubsubClient.AssetsSubscription(), logg)
	requireResource(ctx, logg, "asset cleanup consumer", err)

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"serviceKind":  cfg.Service.Kind,
		"env":          cfg.App.Env,
		"subscription": cfg.PubSub.AssetsSubscription,
	})
	logg.Info(runCtx, "asset worker ready")

	if err := cleanup.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(runCtx, "asset worker not working", err)
		os.Exit(1)
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
