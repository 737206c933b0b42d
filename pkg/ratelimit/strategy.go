package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/akeren/waitlist-intake/pkg/constants"
)

//go:generate mockgen -source=strategy.go -destination=mock_store.go -package=ratelimit

type Logger interface {
	Error(msg string, args ...interface{})
}

// CounterStore is the key-value contract the limiter needs from its backing store.
type CounterStore interface {
	// Get returns ("", nil) when a key is not found.
	Get(ctx context.Context, key string) (string, error)
	// Set stores value for key, expiring ttl from now.
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
}

// RateLimiter defines the strategy interface for rate limiting
type RateLimiter interface {
	GetLimitDetails() (int, time.Duration)
	IsLimited(ctx context.Context, clientID string) (bool, error)
	Close() error
}

// CounterRateLimiter counts accepted requests per client under a key whose
// TTL is renewed on every accepted request. The read and the write are two
// separate store calls, so concurrent requests from one client can overrun
// the limit slightly, and a client spreading requests just inside the TTL
// can exceed the limit over any strict window.
type CounterRateLimiter struct {
	store     CounterStore
	requests  int
	window    time.Duration
	keyPrefix string
	logger    Logger
}

func NewCounterRateLimiter(store CounterStore, requests int, window time.Duration, logger Logger) *CounterRateLimiter {
	return &CounterRateLimiter{
		store:     store,
		requests:  requests,
		window:    window,
		keyPrefix: constants.RateLimitKeyPrefix,
		logger:    logger,
	}
}

func (r *CounterRateLimiter) GetLimitDetails() (int, time.Duration) {
	return r.requests, r.window
}

// IsLimited reports whether clientID has used up its window. Allowed calls
// are counted. An empty clientID is never limited.
func (r *CounterRateLimiter) IsLimited(ctx context.Context, clientID string) (bool, error) {
	if clientID == "" {
		return false, nil
	}

	key := r.Key(clientID)

	raw, err := r.store.Get(ctx, key)
	if err != nil {
		r.logError("Rate limit counter read failed", "key", key, "error", err)
		return false, fmt.Errorf("rate limiter store read: %w", err)
	}

	current := parseCount(raw)
	if current >= r.requests {
		return true, nil
	}

	if err := r.store.Set(ctx, key, strconv.Itoa(current+1), r.window); err != nil {
		r.logError("Rate limit counter write failed", "key", key, "error", err)
		return false, fmt.Errorf("rate limiter store write: %w", err)
	}

	return false, nil
}

// Key returns the namespaced store key for a client.
func (r *CounterRateLimiter) Key(clientID string) string {
	return r.keyPrefix + clientID
}

// The store is owned by the ApplicationConfig and closed there
func (r *CounterRateLimiter) Close() error {
	return nil
}

func (r *CounterRateLimiter) logError(msg string, args ...interface{}) {
	if r.logger != nil {
		r.logger.Error(msg, args...)
	}
}

// parseCount treats a missing or corrupt counter as zero.
func parseCount(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// RateLimitConfig holds configuration for rate limiting
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
	Store    CounterStore // Optional, if nil uses in-memory
	Logger   Logger       // Optional logger for store failures
}

// NewRateLimiter creates a rate limiter based on configuration
func NewRateLimiter(config *RateLimitConfig) RateLimiter {
	store := config.Store
	if store == nil {
		store = NewMemoryStore()
	}
	return NewCounterRateLimiter(store, config.Requests, config.Window, config.Logger)
}
