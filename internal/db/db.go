package db

import (
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/oggyb/pupmatch/internal/config"
)

// NewDB initializes the database connection using DSN from config.
// DB_DRIVER=sqlite opens a single-process database at DB_PATH instead of MySQL.
func NewDB(cfg *config.Config) (*gorm.DB, error) {
	level := logger.Warn
	if cfg.App.ENV == "development" {
		level = logger.Info // log SQL queries
	}

	if cfg.DB.Driver == "sqlite" {
		return OpenSQLite(cfg.DB.Path, level)
	}

	db, err := gorm.Open(mysql.Open(cfg.DB.DSN), gormConfig(level))
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// OpenSQLite opens and migrates a SQLite database. path may be ":memory:".
// The pool is capped at one connection: each connection to an in-memory
// database is a separate database, and SQLite allows a single writer anyway.
func OpenSQLite(path string, level logger.LogLevel) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), gormConfig(level))
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite %s: %w", path, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// NowMillis is the clock behind every autoCreateTime/autoUpdateTime column.
// Pagination cursors carry milliseconds, so stored timestamps must not be
// finer than that or rows sharing a millisecond fall between pages.
func NowMillis() time.Time { return time.Now().UTC().Truncate(time.Millisecond) }

func gormConfig(level logger.LogLevel) *gorm.Config {
	return &gorm.Config{
		NowFunc: NowMillis,
		Logger:  logger.Default.LogMode(level),
	}
}

// Migrate ensures the schema is in sync with the models.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(All()...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}
