package config

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/akeren/waitlist-intake/internal/log"
	"github.com/akeren/waitlist-intake/pkg/retry"
	"github.com/akeren/waitlist-intake/pkg/utils"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const dbPingTimeout = 5 * time.Second

type DBConfig struct {
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	SSLMode         string // Default: "require" for prod safety

	// ConnectRetry bounds the startup ping. Requests never retry.
	ConnectRetry *retry.Config
}

func DefaultDBConfig() *DBConfig {
	return &DBConfig{
		MaxIdleConns:    utils.GetEnvPositiveInt("DB_MAX_IDLE_CONNS", 10),
		MaxOpenConns:    utils.GetEnvPositiveInt("DB_MAX_OPEN_CONNS", 50),
		ConnMaxLifetime: utils.GetEnvPositiveDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		SSLMode:         "require",
		ConnectRetry: &retry.Config{
			MaxAttempts: utils.GetEnvPositiveInt("DB_CONNECT_ATTEMPTS", 5),
			BaseDelay:   500 * time.Millisecond,
			MaxDelay:    10 * time.Second,
			Multiplier:  2,
		},
	}
}

func NewDatabase(logger *log.Logger, cfg *DBConfig) (*gorm.DB, error) {
	if cfg == nil {
		cfg = DefaultDBConfig()
	}

	dsn, err := resolveDSN(logger, cfg)
	if err != nil {
		return nil, err
	}

	// The first connection happens in pingWithRetry, not in gorm.Open.
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:               gormlogger.Default.LogMode(gormlogger.Warn),
		DisableAutomaticPing: true,
	})
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := pingWithRetry(logger, sqlDB, cfg.ConnectRetry); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	logger.Info("Database connection established", "max_open_conns", cfg.MaxOpenConns)
	return gdb, nil
}

// pingWithRetry waits for PostgreSQL to accept connections.
func pingWithRetry(logger *log.Logger, sqlDB *sql.DB, cfg *retry.Config) error {
	attempt := 0

	err := retry.NewExponentialBackoff(cfg).Execute(context.Background(), func() error {
		attempt++
		ctx, cancel := context.WithTimeout(context.Background(), dbPingTimeout)
		defer cancel()

		if err := sqlDB.PingContext(ctx); err != nil {
			logger.Warn("Database ping failed", "attempt", attempt, "error", err)
			return err
		}
		return nil
	})
	if err != nil {
		logger.Error("Database unreachable", "attempts", attempt, "error", err)
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

// resolveDSN prefers APP_DATABASE_URL and otherwise assembles a keyword DSN
// from the POSTGRES_* variables.
func resolveDSN(logger *log.Logger, cfg *DBConfig) (string, error) {
	if url := sanitizeEnv(GetValueFromEnvironmentVariable("APP_DATABASE_URL", "")); url != "" {
		logger.Info("Using APP_DATABASE_URL for database connection")
		return url, nil
	}

	params := readPostgresEnv()
	if params.sslMode == "" {
		params.sslMode = cfg.SSLMode
	}

	if missing := params.missing(); len(missing) > 0 {
		logger.Error("Missing required database environment variables", "missing_vars", strings.Join(missing, ", "))
		return "", fmt.Errorf("missing required database env vars: %s", strings.Join(missing, ", "))
	}

	port, err := strconv.Atoi(params.port)
	if err != nil || port <= 0 {
		return "", fmt.Errorf("invalid POSTGRES_PORT %q", params.port)
	}

	logger.Info("Connecting to database",
		"host", params.host,
		"port", port,
		"user", params.user,
		"dbname", params.dbName,
		"sslmode", params.sslMode,
	)

	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		params.host, port, params.user, params.password, params.dbName, params.sslMode,
	), nil
}

type postgresEnv struct {
	host, port, user, password, dbName, sslMode string
}

func readPostgresEnv() postgresEnv {
	get := func(key string) string {
		return sanitizeEnv(GetValueFromEnvironmentVariable(key, ""))
	}

	return postgresEnv{
		host:     get("POSTGRES_HOST"),
		port:     get("POSTGRES_PORT"),
		user:     get("POSTGRES_USER"),
		password: get("POSTGRES_PASSWORD"),
		dbName:   get("POSTGRES_DB_NAME"),
		sslMode:  get("POSTGRES_SSLMODE"),
	}
}

func (p postgresEnv) missing() []string {
	var missing []string
	for _, v := range []struct{ name, value string }{
		{"POSTGRES_HOST", p.host},
		{"POSTGRES_PORT", p.port},
		{"POSTGRES_USER", p.user},
		{"POSTGRES_DB_NAME", p.dbName},
	} {
		if v.value == "" {
			missing = append(missing, v.name)
		}
	}
	return missing
}

func sanitizeEnv(v string) string {
	s := strings.TrimSpace(v)

	if len(s) >= 2 && ((s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'')) {
		s = s[1 : len(s)-1]
	}

	return s
}

func AutoMigrate(logger *log.Logger, db *gorm.DB, models ...interface{}) error {
	if db == nil {
		logger.Error("Cannot migrate: db is empty")
		return fmt.Errorf("cannot migrate: db is empty")
	}

	if err := db.AutoMigrate(models...); err != nil {
		logger.Error("Database migration failed", "error", err)
		return fmt.Errorf("auto-migrate failed: %w", err)
	}

	logger.Info("Database migration completed successfully")

	return nil
}

func CloseDatabase(db *gorm.DB, logger *log.Logger) {
	if db == nil {
		return
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Error("Failed to get SQL DB instance", "error", err)
		return
	}

	if err := sqlDB.Close(); err != nil {
		logger.Error("Failed to close database", "error", err)
	} else {
		logger.Info("Database closed successfully")
	}
}
