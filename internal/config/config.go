package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Log struct {
		Level     string
		Format    string
		Component string
		Source    bool
	}

	App struct {
		ENV        string
		InstanceID string
	}

	DB struct {
		Driver   string // mysql|sqlite
		Path     string // sqlite file
		DSN      string
		Host     string
		Port     string
		User     string
		Password string
		Name     string
	}

	Redis struct {
		Addr     string
		Password string
		DB       int
	}

	GRPC struct {
		Host string
		Port string
	}

	HTTP struct {
		Addr string
	}

	// Cache holds the two-tier recommendation cache settings.
	// LocalTTL must stay strictly below SharedTTL.
	Cache struct {
		LocalTTL            time.Duration
		SharedTTL           time.Duration
		LastKnownTTL        time.Duration
		LocalCapacity       int
		InvalidationChannel string
	}

	Recommend struct {
		Limit           int
		PoolSize        int
		MaxRadiusKm     float64
		GenerateTimeout time.Duration
		ExcludePassedBy bool
	}

	Refresh struct {
		Enabled       bool
		Interval      time.Duration
		ActiveWindow  time.Duration
		Concurrency   int
		RatePerSecond float64
		OnStartup     bool
	}

	Breaker struct {
		FailureThreshold uint32
		OpenTimeout      time.Duration
	}

	Notify struct {
		Channel string
	}
}

func New() *Config {
	cfg := &Config{}

	// Logger
	cfg.Log.Level = getEnvDefault("LOG_LEVEL", "info")
	cfg.Log.Format = getEnvDefault("LOG_FORMAT", "text")
	cfg.Log.Component = getEnvDefault("LOG_COMPONENT", "pupmatch")
	cfg.Log.Source = isTruthy(os.Getenv("LOG_SOURCE"))

	// App
	cfg.App.ENV = getEnvDefault("APP_ENV", "development")
	cfg.App.InstanceID = os.Getenv("INSTANCE_ID")

	// Database
	cfg.DB.Driver = getEnvDefault("DB_DRIVER", "mysql")
	cfg.DB.Path = getEnvDefault("DB_PATH", "pupmatch.db")
	cfg.DB.DSN = os.Getenv("MYSQL_DSN")
	if cfg.DB.DSN == "" {
		cfg.DB.Host = getEnvDefault("DB_HOST", "localhost")
		cfg.DB.Port = getEnvDefault("DB_PORT", "3306")
		cfg.DB.User = getEnvDefault("DB_USER", "root")
		cfg.DB.Password = getEnvDefault("DB_PASSWORD", "root")
		cfg.DB.Name = getEnvDefault("DB_NAME", "pupmatch")

		cfg.DB.DSN = fmt.Sprintf(
			"%s:%s@tcp(%s:%s)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
			cfg.DB.User, cfg.DB.Password, cfg.DB.Host, cfg.DB.Port, cfg.DB.Name,
		)
	}

	// Redis
	cfg.Redis.Addr = getEnvDefault("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnvDefault("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	// gRPC
	cfg.GRPC.Host = getEnvDefault("GRPC_HOST", "127.0.0.1")
	cfg.GRPC.Port = getEnvDefault("GRPC_PORT", "50051")

	// Admin HTTP (health + metrics)
	cfg.HTTP.Addr = getEnvDefault("HTTP_ADDR", "127.0.0.1:8081")

	// Recommendation cache
	cfg.Cache.LocalTTL = getEnvDuration("CACHE_LOCAL_TTL", time.Minute)
	cfg.Cache.SharedTTL = getEnvDuration("CACHE_SHARED_TTL", 15*time.Minute)
	cfg.Cache.LastKnownTTL = getEnvDuration("CACHE_LAST_KNOWN_TTL", 24*time.Hour)
	cfg.Cache.LocalCapacity = getEnvInt("CACHE_LOCAL_CAPACITY", 10000)
	cfg.Cache.InvalidationChannel = getEnvDefault("CACHE_INVALIDATION_CHANNEL", "recs:invalidate")

	// Recommendation generation
	cfg.Recommend.Limit = getEnvInt("RECOMMEND_LIMIT", 20)
	cfg.Recommend.PoolSize = getEnvInt("RECOMMEND_POOL_SIZE", 500)
	cfg.Recommend.MaxRadiusKm = getEnvFloat("RECOMMEND_MAX_RADIUS_KM", 160)
	cfg.Recommend.GenerateTimeout = getEnvDuration("RECOMMEND_TIMEOUT", 2*time.Second)
	cfg.Recommend.ExcludePassedBy = getEnvBool("RECOMMEND_EXCLUDE_PASSED_BY", true)

	// Background refresh
	cfg.Refresh.Enabled = getEnvBool("REFRESH_ENABLED", true)
	cfg.Refresh.Interval = getEnvDuration("REFRESH_INTERVAL", 15*time.Minute)
	cfg.Refresh.ActiveWindow = getEnvDuration("REFRESH_ACTIVE_WINDOW", 24*time.Hour)
	cfg.Refresh.Concurrency = getEnvInt("REFRESH_CONCURRENCY", 8)
	cfg.Refresh.RatePerSecond = getEnvFloat("REFRESH_RATE_PER_SECOND", 50)
	cfg.Refresh.OnStartup = getEnvBool("REFRESH_ON_STARTUP", false)

	// Tier-2 circuit breaker
	cfg.Breaker.FailureThreshold = uint32(getEnvInt("REDIS_BREAKER_FAILURES", 5))
	cfg.Breaker.OpenTimeout = getEnvDuration("REDIS_BREAKER_OPEN_TIMEOUT", 30*time.Second)

	// Match notifications
	cfg.Notify.Channel = getEnvDefault("NOTIFY_CHANNEL", "matches:events")

	return cfg
}

// Validate checks cross-field constraints that env parsing cannot express.
func (c *Config) Validate() error {
	if c.Cache.LocalTTL <= 0 || c.Cache.SharedTTL <= 0 {
		return fmt.Errorf("cache TTLs must be positive")
	}
	if c.Cache.LocalTTL >= c.Cache.SharedTTL {
		return fmt.Errorf("cache local TTL (%s) must be shorter than shared TTL (%s)",
			c.Cache.LocalTTL, c.Cache.SharedTTL)
	}
	if c.DB.Driver != "mysql" && c.DB.Driver != "sqlite" {
		return fmt.Errorf("unknown DB_DRIVER %q", c.DB.Driver)
	}
	if c.Recommend.Limit <= 0 {
		return fmt.Errorf("recommend limit must be positive")
	}
	if c.Refresh.Enabled && c.Refresh.Interval <= 0 {
		return fmt.Errorf("refresh interval must be positive")
	}
	return nil
}

func getEnvDefault(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getEnvInt(k string, def int) int {
	if v, err := strconv.Atoi(getEnvDefault(k, "")); err == nil {
		return v
	}
	return def
}

func getEnvFloat(k string, def float64) float64 {
	if v, err := strconv.ParseFloat(getEnvDefault(k, ""), 64); err == nil {
		return v
	}
	return def
}

func getEnvDuration(k string, def time.Duration) time.Duration {
	if v, err := time.ParseDuration(getEnvDefault(k, "")); err == nil {
		return v
	}
	return def
}

func getEnvBool(k string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	return isTruthy(v)
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y", "on":
		return true
	}
	return false
}
