package app

import (
	"log/slog"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/oggyb/pupmatch/internal/cache"
	"github.com/oggyb/pupmatch/internal/config"
	"github.com/oggyb/pupmatch/internal/notify"
	"github.com/oggyb/pupmatch/internal/recommend"
	"github.com/oggyb/pupmatch/internal/repository"
	"github.com/oggyb/pupmatch/internal/service/feed"
	"github.com/oggyb/pupmatch/internal/service/match"
)

// AppContext holds shared dependencies (DB, Redis, Logger, etc.) and the
// engine components built on top of them.
type AppContext struct {
	Config     *config.Config
	DB         *gorm.DB
	RedisCache *cache.RedisCache
	Logger     *slog.Logger

	Broadcaster     *cache.RedisBroadcaster
	Recommendations *cache.RecommendationCache
	Generator       *recommend.Generator
	Notifier        notify.Notifier
	Engine          *match.Engine
	Feed            *feed.Service
}

// New wires the engine from its stores. It fails only on invalid cache
// settings.
func New(cfg *config.Config, database *gorm.DB, rdb *cache.RedisCache, logger *slog.Logger) (*AppContext, error) {
	if cfg.App.InstanceID == "" {
		cfg.App.InstanceID = uuid.NewString()
	}

	bus := cache.NewRedisBroadcaster(rdb, cfg.Cache.InvalidationChannel, cfg.App.InstanceID, logger)
	recs, err := cache.NewRecommendationCache(cache.Options{
		LocalTTL:      cfg.Cache.LocalTTL,
		SharedTTL:     cfg.Cache.SharedTTL,
		LastKnownTTL:  cfg.Cache.LastKnownTTL,
		LocalCapacity: cfg.Cache.LocalCapacity,
		// generation has its own deadline; this one also covers loading the pool
		FillTimeout: 2 * cfg.Recommend.GenerateTimeout,
	}, rdb, bus, logger)
	if err != nil {
		return nil, err
	}

	filter := recommend.NewExclusionFilter(repository.NewDecisionRepository(database), cfg.Recommend.ExcludePassedBy)
	gen := recommend.NewGenerator(
		repository.NewPoolRepository(database, repository.PoolOptions{
			MaxRadiusKm:     cfg.Recommend.MaxRadiusKm,
			ExcludePassedBy: cfg.Recommend.ExcludePassedBy,
		}),
		filter,
		recommend.GeneratorConfig{Limit: cfg.Recommend.Limit, PoolSize: cfg.Recommend.PoolSize},
		logger,
	)
	notifier := notify.NewRedisNotifier(rdb, cfg.Notify.Channel, logger)

	return &AppContext{
		Config:          cfg,
		DB:              database,
		RedisCache:      rdb,
		Logger:          logger,
		Broadcaster:     bus,
		Recommendations: recs,
		Generator:       gen,
		Notifier:        notifier,
		Engine: match.NewEngine(database, match.Options{
			Recommendations: recs,
			LikeCounts:      rdb,
			Notifier:        notifier,
		}, logger),
		Feed: feed.NewService(gen, filter, recs, repository.NewUserRepository(database),
			feed.Config{GenerateTimeout: cfg.Recommend.GenerateTimeout}, logger),
	}, nil
}
