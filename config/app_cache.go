package config

import (
	"context"
	"time"

	"github.com/akeren/waitlist-intake/internal/log"
	pkgredis "github.com/akeren/waitlist-intake/pkg/redis"
	"github.com/akeren/waitlist-intake/pkg/utils"
)

// Cache is the external counter store. Rate counters are its only keys.
type Cache interface {
	// Get returns ("", nil) when a key is not found.
	Get(ctx context.Context, key string) (string, error)
	// Set uses ttl=0 for no expiry.
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}

type CacheConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Timeout  time.Duration
}

func NewCacheConfig() *CacheConfig {
	return &CacheConfig{
		Host:     sanitizeEnv(GetValueFromEnvironmentVariable("REDIS_HOST", "")),
		Port:     utils.GetEnvTrimmedOrDefault("REDIS_PORT", "6379"),
		Password: GetValueFromEnvironmentVariable("REDIS_PASSWORD", ""),
		DB:       utils.GetEnvPositiveInt("REDIS_DB", 0),
		Timeout:  utils.GetEnvPositiveDuration("REDIS_TIMEOUT", 2*time.Second),
	}
}

func (cc *CacheConfig) IsConfigured() bool {
	return cc.Host != ""
}

func (cc *CacheConfig) NewCache(logger *log.Logger) (Cache, error) {
	if !cc.IsConfigured() {
		logger.Error("Cache (Redis) configuration is missing")
		return nil, ErrCacheNotConfigured
	}

	cache, err := pkgredis.NewRedisCache(&pkgredis.Config{
		Host:         cc.Host,
		Port:         cc.Port,
		Password:     cc.Password,
		DB:           cc.DB,
		DialTimeout:  cc.Timeout,
		ReadTimeout:  cc.Timeout,
		WriteTimeout: cc.Timeout,
	})
	if err != nil {
		logger.Error("Failed to create Cache (Redis)", "error", err)
		return nil, err
	}

	logger.Info("Cache (Redis) connected successfully", "host", cc.Host, "db", cc.DB)
	return cache, nil
}

// NewCacheOrNil returns nil when Redis is unset or unreachable; the rate
// limiter then keeps its counters in memory.
func (cc *CacheConfig) NewCacheOrNil(logger *log.Logger) Cache {
	if !cc.IsConfigured() {
		logger.Info("Cache (Redis) is not configured; rate counters stay in memory")
		return nil
	}

	cache, err := cc.NewCache(logger)
	if err != nil {
		logger.Warn("Cache (Redis) unavailable; rate counters stay in memory", "error", err)
		return nil
	}

	return cache
}

func CloseCache(cache Cache, logger *log.Logger) error {
	if cache == nil {
		logger.Info("No cache provided; skipping cache close")
		return nil
	}

	if err := cache.Close(); err != nil {
		logger.Error("Failed to close cache", "error", err)
		return err
	}

	logger.Info("Cache connection closed")
	return nil
}

var ErrCacheNotConfigured = &CacheError{Message: "cache host is not configured"}

type CacheError struct {
	Message string
}

func (e *CacheError) Error() string {
	return e.Message
}
