package constants

import "time"

// ISO8601MillisUTCFormat is ISO-8601 with millisecond precision and a
// literal Z. Always format a UTC time with it.
const ISO8601MillisUTCFormat = "2006-01-02T15:04:05.000Z"

// Default rate limiting configuration
const (
	// DefaultRateLimitRequests is the number of accepted submissions per client per window
	DefaultRateLimitRequests = 20
	// DefaultRateLimitWindowSeconds is the counter TTL, renewed on every accepted submission
	DefaultRateLimitWindowSeconds = 3600
	// RateLimitKeyPrefix namespaces counter keys in the store
	RateLimitKeyPrefix = "rl:"
)

// DefaultRateLimitWindow returns the default rate limit window duration
func DefaultRateLimitWindow() time.Duration {
	return time.Duration(DefaultRateLimitWindowSeconds) * time.Second
}

const (
	// DefaultFallbackOrigin is echoed in Access-Control-Allow-Origin when the
	// caller's origin is rejected.
	DefaultFallbackOrigin = "https://inkledger.app"

	// DefaultWaitlistSource is stored when a submission carries no source tag.
	DefaultWaitlistSource = "unknown"

	// DefaultMaxRequestBodyBytes bounds the JSON body of a submission.
	DefaultMaxRequestBodyBytes = 16 << 10
)
