package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oggyb/pupmatch/internal/app"
	"github.com/oggyb/pupmatch/internal/cache"
	"github.com/oggyb/pupmatch/internal/config"
	"github.com/oggyb/pupmatch/internal/db"
	"github.com/oggyb/pupmatch/internal/logger"
	"github.com/oggyb/pupmatch/internal/metrics"
	"github.com/oggyb/pupmatch/internal/repository"
	"github.com/oggyb/pupmatch/internal/scheduler"
	"github.com/oggyb/pupmatch/internal/server"
	"github.com/oggyb/pupmatch/internal/service/explore"
	"github.com/oggyb/pupmatch/internal/service/profile"
)

const shutdownTimeout = 10 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	cfg := config.New()

	// Init logger (global singleton)
	logger.InitFromConfig(cfg)
	log := logger.L()

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "err", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Init DB
	database, err := db.NewDB(cfg)
	if err != nil {
		log.Error("failed to init db", "err", err)
		return 1
	}
	sqlDB, err := database.DB()
	if err != nil {
		log.Error("failed to get sql handle", "err", err)
		return 1
	}
	defer sqlDB.Close()

	// Init Redis; the engine degrades without it, so a failed ping is not fatal
	redisCache := cache.NewRedisCache(cfg, log)
	defer redisCache.Close()
	if err := redisCache.Ping(ctx); err != nil {
		log.Warn("redis unreachable at startup, serving without shared cache", "addr", cfg.Redis.Addr, "err", err)
	}

	appCtx, err := app.New(cfg, database, redisCache, log)
	if err != nil {
		log.Error("failed to build app context", "err", err)
		return 1
	}

	if cfg.App.ENV == "development" {
		if err := db.SeedTestData(database, log); err != nil {
			log.Error("failed to seed", "err", err)
		}
	}

	tree := server.NewTree(log, shutdownTimeout)

	// background: invalidation fan-in, local cache sweeping, scheduled refresh
	tree.AddBackground(cache.NewSubscriber(appCtx.Broadcaster, appCtx.Recommendations.HandleInvalidation))
	tree.AddBackground(cache.NewJanitor(appCtx.Recommendations.Local(), cfg.Cache.LocalTTL, func(removed, size int) {
		metrics.LocalCacheEntries.Set(float64(size))
		if removed > 0 {
			log.Debug("local cache swept", "removed", removed, "size", size)
		}
	}))
	if cfg.Refresh.Enabled {
		tree.AddBackground(scheduler.NewRefreshService(
			repository.NewUserRepository(database),
			appCtx.Generator,
			appCtx.Recommendations,
			scheduler.Config{
				Interval:      cfg.Refresh.Interval,
				ActiveWindow:  cfg.Refresh.ActiveWindow,
				Concurrency:   cfg.Refresh.Concurrency,
				RatePerSecond: cfg.Refresh.RatePerSecond,
				UserTimeout:   cfg.Recommend.GenerateTimeout,
				OnStartup:     cfg.Refresh.OnStartup,
			},
			log,
		))
	}

	// api: gRPC and the admin HTTP server
	tree.AddAPI(server.NewGRPCService(cfg, log,
		explore.NewRegistrar(appCtx),
		profile.NewRegistrar(appCtx),
	))
	tree.AddAPI(server.NewHTTPService(&http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           server.NewAdminRouter(server.PingFunc(sqlDB.PingContext), redisCache, log),
		ReadHeaderTimeout: 5 * time.Second,
	}, shutdownTimeout))

	log.Info("starting pupmatch",
		"grpc", cfg.GRPC.Host+":"+cfg.GRPC.Port, "admin", cfg.HTTP.Addr, "instance", cfg.App.InstanceID)

	if err := tree.Serve(ctx); err != nil && ctx.Err() == nil {
		log.Error("supervisor stopped", "err", err)
		return 1
	}
	log.Info("shutdown complete")
	return 0
}
