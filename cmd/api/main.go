package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/geodirectory-backend/api/controllers"
	"github.com/angelmondragon/geodirectory-backend/api/routes"
	"github.com/angelmondragon/geodirectory-backend/internal/assets"
	"github.com/angelmondragon/geodirectory-backend/internal/auth"
	"github.com/angelmondragon/geodirectory-backend/internal/categories"
	"github.com/angelmondragon/geodirectory-backend/internal/listings"
	"github.com/angelmondragon/geodirectory-backend/internal/moderation"
	"github.com/angelmondragon/geodirectory-backend/internal/users"
	"github.com/angelmondragon/geodirectory-backend/pkg/config"
	"github.com/angelmondragon/geodirectory-backend/pkg/db"
	"github.com/angelmondragon/geodirectory-backend/pkg/logger"
	"github.com/angelmondragon/geodirectory-backend/pkg/metrics"
	"github.com/angelmondragon/geodirectory-backend/pkg/migrate"
	"github.com/angelmondragon/geodirectory-backend/pkg/outbox"
	"github.com/angelmondragon/geodirectory-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	backend, err := assets.NewBackend(context.Background(), cfg.Storage, cfg.S3, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap storage", err)
		os.Exit(1)
	}
	assetStore, err := assets.NewStore(backend, cfg.Assets.MaxFileBytes(), logg)
	if err != nil {
		logg.Error(context.Background(), "failed to build asset store", err)
		os.Exit(1)
	}

	var viewportCache redis.ViewportCache
	if cfg.FeatureFlags.ViewportCache {
		viewportCache = redisClient
	}

	userRepo := users.NewRepository(dbClient.DB())
	listingRepo := listings.NewRepository(dbClient.DB())
	events := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       userRepo,
		JWTConfig:      cfg.JWT,
		PasswordConfig: &cfg.Password,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}
	registerService, err := auth.NewRegisterService(auth.RegisterServiceParams{
		DB:             dbClient,
		PasswordConfig: cfg.Password,
		AuthConfig:     cfg.Auth,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create register service", err)
		os.Exit(1)
	}

	listingService, err := listings.NewService(listingRepo, dbClient, assetStore, events, viewportCache, listings.Config{
		MaxGalleryFiles: cfg.Assets.MaxGalleryFiles,
		ViewportTTL:     cfg.Cache.ViewportTTL,
	}, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create listing service", err)
		os.Exit(1)
	}
	moderationService, err := moderation.NewService(listingRepo, dbClient, events, viewportCache, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create moderation service", err)
		os.Exit(1)
	}
	userService, err := moderation.NewUserService(moderation.UserServiceParams{
		Users:    userRepo,
		Listings: listingRepo,
		DB:       dbClient,
		Assets:   assetStore,
		Events:   events,
		Cache:    viewportCache,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create user service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// A dedicated metrics port keeps /metrics off the public listener.
	var gatherer prometheus.Gatherer = prometheus.DefaultGatherer
	if cfg.Service.MetricsPort != "" {
		gatherer = nil
		go func() {
			if err := metrics.Serve(ctx, cfg.Service.MetricsPort, prometheus.DefaultGatherer, logg); err != nil {
				logg.Error(ctx, "metrics server stopped", err)
			}
		}()
	}

	handler := routes.NewRouter(
		cfg,
		logg,
		map[string]controllers.Pinger{
			"db":      dbClient,
			"redis":   redisClient,
			"storage": assetStore,
		},
		redisClient,
		gatherer,
		metrics.NewHTTPMetrics(prometheus.DefaultRegisterer),
		authService,
		registerService,
		listingService,
		moderationService,
		userService,
		categories.NewRepository(dbClient.DB()),
	)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	logCtx := logg.WithFields(ctx, map[string]any{
		"env":     cfg.App.Env,
		"addr":    addr,
		"storage": cfg.Storage.Backend,
	})
	logg.Info(logCtx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(logCtx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(logCtx, "api server shutdown failed", err)
		}
		logg.Info(logCtx, "api server shut down gracefully")
	}
}
