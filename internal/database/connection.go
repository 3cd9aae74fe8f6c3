package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var log = logrus.New()

func init() {
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetLevel(logrus.InfoLevel)
}

var retryDelays = []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second}

// GormConfig is shared by the server and the test helpers. TranslateError
// maps driver unique-violation errors onto gorm.ErrDuplicatedKey.
func GormConfig(silent bool) *gorm.Config {
	cfg := &gorm.Config{TranslateError: true}
	if silent {
		cfg.Logger = logger.Default.LogMode(logger.Silent)
	} else {
		cfg.Logger = logger.Default.LogMode(logger.Warn)
	}
	return cfg
}

// Open picks the gorm dialector for the configured driver
func Open(cfg DatabaseConfig, gormCfg *gorm.Config) (*gorm.DB, error) {
	switch cfg.NormalizedDriver() {
	case "postgres":
		log.WithField("dsn_host", cfg.Host).Debug("Connecting to PostgreSQL")
		return gorm.Open(postgres.Open(cfg.DSN()), gormCfg)
	case "sqlite":
		log.WithField("db_path", cfg.Path).Debug("Connecting to SQLite")
		return gorm.Open(sqlite.Open(cfg.DSN()), gormCfg)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s (supported: postgres, sqlite)", cfg.Driver)
	}
}

// InitDatabase initializes the database connection based on the provided configuration.
// It retries with exponential backoff until the database answers a ping or ctx is done.
func InitDatabase(ctx context.Context, cfg DatabaseConfig) (*gorm.DB, error) {
	driver := cfg.NormalizedDriver()
	if driver != "postgres" && driver != "sqlite" {
		return nil, fmt.Errorf("unsupported database driver: %s (supported: postgres, sqlite)", cfg.Driver)
	}

	log.WithFields(logrus.Fields{
		"db_driver": driver,
		"db_host":   cfg.Host,
		"db_name":   cfg.Name,
		"db_path":   cfg.Path,
	}).Info("Initializing database connection")

	var lastErr error
	for attempt := 1; attempt <= len(retryDelays); attempt++ {
		db, err := connect(ctx, cfg)
		if err == nil {
			log.WithFields(logrus.Fields{
				"db_driver": driver,
				"attempt":   attempt,
			}).Info("Database initialized successfully")
			return db, nil
		}
		lastErr = err

		log.WithFields(logrus.Fields{
			"attempt":     attempt,
			"max_retries": len(retryDelays),
			"error":       err.Error(),
		}).Warn("Database connection attempt failed")

		if attempt == len(retryDelays) {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("database connection cancelled: %w", ctx.Err())
		case <-time.After(retryDelays[attempt-1]):
		}
	}

	return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", len(retryDelays), lastErr)
}

func connect(ctx context.Context, cfg DatabaseConfig) (*gorm.DB, error) {
	db, err := Open(cfg, GormConfig(false))
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	configureConnectionPool(sqlDB, cfg.NormalizedDriver())
	return db, nil
}

// configureConnectionPool sets up connection pool parameters. SQLite gets a
// single writer connection since it serializes writes anyway.
func configureConnectionPool(sqlDB *sql.DB, driver string) {
	open := maxOpenConns
	if driver == "sqlite" {
		open = 1
	}
	sqlDB.SetMaxOpenConns(open)
	sqlDB.SetMaxIdleConns(min(maxIdleConns, open))
	sqlDB.SetConnMaxLifetime(connMaxLifetime)

	log.WithFields(logrus.Fields{
		"max_open_conns":    open,
		"max_idle_conns":    min(maxIdleConns, open),
		"conn_max_lifetime": connMaxLifetime.String(),
	}).Debug("Connection pool configured")
}

// Close releases the underlying connection pool
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
