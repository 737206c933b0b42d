package router

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/akeren/waitlist-intake/internal/log"
	"github.com/akeren/waitlist-intake/pkg/constants"
	apperrors "github.com/akeren/waitlist-intake/pkg/errors"
	"github.com/akeren/waitlist-intake/pkg/ratelimit"
	"github.com/akeren/waitlist-intake/pkg/utils"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const (
	// DefaultTimeoutDuration is the default request timeout
	DefaultTimeoutDuration = 30 * time.Second

	decisionAllowed = "allowed"
	decisionLimited = "limited"
	decisionError   = "error"
	decisionSkipped = "skipped"
)

type MiddlewareConfig struct {
	TimeoutDuration time.Duration
	MaxBodyBytes    int64
}

// Cache is the optional external counter store. When it answers a ping at
// startup it backs the rate limiter; otherwise an in-memory store is used.
type Cache interface {
	Ping(ctx context.Context) error
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
}

type RouterService struct {
	engine            *gin.Engine
	opsEngine         *gin.Engine
	server            *http.Server
	opsServer         *http.Server
	logger            *log.Logger
	rateLimiter       ratelimit.RateLimiter
	rateLimitRequests int
	rateLimitWindow   time.Duration
	middlewareConfig  *MiddlewareConfig
	allowedOrigins    OriginAllowList
	fallbackOrigin    string
	registry          *prometheus.Registry
	metrics           *metrics
}

type RouterConfig struct {
	AllowedOrigins    OriginAllowList
	FallbackOrigin    string
	RateLimitRequests int
	RateLimitWindow   time.Duration
	RequestTimeout    time.Duration
}

func CreateRouterService(logger *log.Logger, cache Cache, routerConfig *RouterConfig) *RouterService {
	if mode, ok := os.LookupEnv("GIN_MODE"); ok && mode != "" {
		logger.Info("Setting Gin mode", "mode", mode)
		gin.SetMode(mode)
	}

	if routerConfig.RequestTimeout <= 0 {
		routerConfig.RequestTimeout = DefaultTimeoutDuration
	}

	fallbackOrigin := strings.TrimSpace(routerConfig.FallbackOrigin)
	if fallbackOrigin == "" {
		fallbackOrigin = constants.DefaultFallbackOrigin
	}

	ginRouter := gin.New()
	ginRouter.HandleMethodNotAllowed = true
	// Path matching is exact; "/waitlist/" is not "/waitlist".
	ginRouter.RedirectTrailingSlash = false
	ginRouter.RedirectFixedPath = false

	rs := &RouterService{
		engine:            ginRouter,
		opsEngine:         newOpsEngine(),
		logger:            logger,
		rateLimitRequests: routerConfig.RateLimitRequests,
		rateLimitWindow:   routerConfig.RateLimitWindow,
		allowedOrigins:    routerConfig.AllowedOrigins,
		fallbackOrigin:    fallbackOrigin,
		middlewareConfig: &MiddlewareConfig{
			TimeoutDuration: routerConfig.RequestTimeout,
			MaxBodyBytes:    maxBodyBytesFromEnv(),
		},
	}

	ginRouter.Use(gin.CustomRecovery(rs.recoveryHandler))

	if utils.IsTracingEnabled() {
		serviceName := utils.OTelServiceName()
		ginRouter.Use(otelgin.Middleware(serviceName))
		logger.Info("Tracing middleware enabled")
	}

	rs.configureClientIP()
	rs.initRateLimiting(cache)
	rs.initMetrics()

	ginRouter.Use(rs.correlationIDMiddleware())
	ginRouter.Use(rs.loggerInjectionMiddleware())
	ginRouter.Use(rs.requestLoggingMiddleware())
	ginRouter.Use(rs.securityHeadersMiddleware())
	ginRouter.Use(rs.originGateMiddleware())
	ginRouter.Use(rs.maxBodySizeMiddleware())
	ginRouter.Use(rs.timeoutMiddleware())
	ginRouter.Use(rs.rateLimitMiddleware())

	ginRouter.NoRoute(rs.fallbackHandler)
	ginRouter.NoMethod(rs.fallbackHandler)

	rs.opsEngine.Use(rs.requestLoggingMiddleware())

	rs.server = &http.Server{
		Addr:    ":8080", // Default, will be overridden in RunHTTPServer
		Handler: ginRouter,

		// Gin's Context is not goroutine-safe, so time limits are enforced by the
		// server and by the request context deadline.
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       routerConfig.RequestTimeout,
		WriteTimeout:      routerConfig.RequestTimeout,
		IdleTimeout:       60 * time.Second,
	}

	rs.opsServer = &http.Server{
		Addr:              ":9090",
		Handler:           log.Middleware(logger, rs.opsEngine),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
	}

	if rs.allowedOrigins.Len() == 0 {
		logger.Warn("ALLOWED_ORIGINS is empty; every public request will be rejected")
	}

	logger.Info("Router service initialized",
		"allowed_origins", rs.allowedOrigins.Origins(),
		"fallback_origin", rs.fallbackOrigin,
	)
	return rs
}

func newOpsEngine() *gin.Engine {
	opsRouter := gin.New()
	opsRouter.Use(gin.Recovery())
	opsRouter.RedirectTrailingSlash = false
	opsRouter.NoRoute(func(c *gin.Context) {
		respond(c, NotFoundResult())
	})
	return opsRouter
}

// configureClientIP decides where the client identifier comes from. Gin
// trusts all proxies by default, which makes ClientIP() depend on spoofable
// X-Forwarded-For headers, so trust is off unless configured.
func (routerService *RouterService) configureClientIP() {
	ginRouter := routerService.engine
	logger := routerService.logger

	trustedProxies := parseTrustedProxiesEnv(os.Getenv("TRUSTED_PROXIES"))
	if err := ginRouter.SetTrustedProxies(trustedProxies); err != nil {
		logger.Error("Invalid TRUSTED_PROXIES; disabling trusted proxies", "error", err)
		_ = ginRouter.SetTrustedProxies(nil)
	} else if trustedProxies == nil {
		logger.Info("Trusted proxies disabled (TRUSTED_PROXIES not set)")
	}

	if platform := parseTrustedPlatform(os.Getenv("TRUSTED_PLATFORM")); platform != "" {
		ginRouter.TrustedPlatform = platform
		logger.Info("Client IP taken from trusted platform header", "header", platform)
	}
}

func parseTrustedProxiesEnv(v string) []string {
	s := strings.TrimSpace(v)
	if s == "" {
		// Disable trusted proxies: ClientIP() will use RemoteAddr.
		return nil
	}
	if s == "*" {
		// Explicit escape hatch for local/dev.
		return []string{"0.0.0.0/0", "::/0"}
	}
	proxies := utils.SplitCommaList(s)
	if len(proxies) == 0 {
		return nil
	}
	return proxies
}

// parseTrustedPlatform maps a platform name to the header carrying the
// client address. Any other value is used as the header name itself.
func parseTrustedPlatform(v string) string {
	s := strings.TrimSpace(v)
	switch strings.ToLower(s) {
	case "":
		return ""
	case "cloudflare":
		return gin.PlatformCloudflare
	case "google", "appengine":
		return gin.PlatformGoogleAppEngine
	default:
		return http.CanonicalHeaderKey(s)
	}
}

func maxBodyBytesFromEnv() int64 {
	maxBytes := int64(constants.DefaultMaxRequestBodyBytes)
	if raw := utils.GetEnvTrimmed("MAX_REQUEST_BODY_BYTES"); raw != "" {
		if parsed, err := strconv.ParseInt(raw, 10, 64); err == nil && parsed > 0 {
			maxBytes = parsed
		}
	}
	return maxBytes
}

func (routerService *RouterService) initRateLimiting(cache Cache) {
	requests := routerService.rateLimitRequests
	window := routerService.rateLimitWindow

	var store ratelimit.CounterStore
	backend := "in-memory"

	if cache != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err := cache.Ping(ctx)
		cancel()

		if err != nil {
			routerService.logger.Warn("Counter store unreachable, falling back to in-memory counters", "error", err)
		} else {
			store = cache
			backend = "redis"
		}
	}

	if store == nil {
		store = ratelimit.NewMemoryStore()
	}

	routerService.rateLimiter = ratelimit.NewRateLimiter(&ratelimit.RateLimitConfig{
		Requests: requests,
		Window:   window,
		Store:    store,
		Logger:   routerService.logger,
	})

	routerService.logger.Info("Rate limiting initialized",
		"backend", backend,
		"requests", requests,
		"window", window)
}

func (routerService *RouterService) GetEngine() *gin.Engine {
	return routerService.engine
}

func (routerService *RouterService) GetOpsEngine() *gin.Engine {
	return routerService.opsEngine
}

func (routerService *RouterService) GetLogger(c *RequestContext) *log.Logger {
	return log.GetLoggerInstanceFromContext(c.Request.Context(), routerService.logger)
}

func (routerService *RouterService) Cleanup() {
	if routerService.rateLimiter != nil {
		if err := routerService.rateLimiter.Close(); err != nil {
			routerService.logger.Error("Failed to close rate limiter", "error", err)
		}
	}
	routerService.logger.Info("Router service cleanup completed")
}

func (routerService *RouterService) MountController(controller *RESTController) {
	routerService.logger.Info("Mounting controller",
		"name", controller.name,
		"path", controller.mountPoint,
		"ops", controller.surface == opsSurface,
	)

	controller.prepare(routerService, controller)

	routerService.logger.Info("Controller mounted",
		"name", controller.name,
		"handlers", controller.handlerCount,
	)
}

func (routerService *RouterService) RunHTTPServer() error {
	appPort := utils.GetEnvTrimmedOrDefault("APP_PORT", "8080")
	return routerService.listen(routerService.server, ":"+appPort, "HTTP")
}

func (routerService *RouterService) RunOpsServer() error {
	opsPort := utils.GetEnvTrimmedOrDefault("OPS_PORT", "9090")
	return routerService.listen(routerService.opsServer, ":"+opsPort, "ops")
}

func (routerService *RouterService) listen(server *http.Server, addr, name string) error {
	server.Addr = addr

	routerService.logger.Info("Starting server", "server", name, "addr", addr)

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		routerService.logger.Error("Failed to start server", "server", name, "error", err)
		return fmt.Errorf("failed to start %s server: %w", name, err)
	}

	return nil
}

func (routerService *RouterService) Shutdown(ctx context.Context) error {
	routerService.logger.Info("Shutting down HTTP servers gracefully...")

	publicErr := routerService.server.Shutdown(ctx)
	opsErr := routerService.opsServer.Shutdown(ctx)

	return errors.Join(publicErr, opsErr)
}

func (routerService *RouterService) recoveryHandler(c *gin.Context, recovered any) {
	GetLogger(c).Error("Panic recovered", "panic", fmt.Sprint(recovered), "path", c.Request.URL.Path)
	abortWith(c, InternalServerErrorResult())
}

// fallbackHandler answers every request that matched no route. Anything but
// POST is 405; a POST to an unknown path is 404.
func (routerService *RouterService) fallbackHandler(c *gin.Context) {
	if c.Request.Method != http.MethodPost {
		respond(c, MethodNotAllowedResult())
		return
	}
	respond(c, NotFoundResult())
}

// Middleware methods
func (routerService *RouterService) correlationIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := log.SanitizeCorrelationID(c.GetHeader(log.CorrelationIDHeader))
		c.Request = c.Request.WithContext(log.ContextWithCorrelationID(c.Request.Context(), id))
		c.Header(log.CorrelationIDHeader, id)
		c.Next()
	}
}

func (routerService *RouterService) loggerInjectionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		correlatedLogger := routerService.logger.WithCorrelationID(c.Request.Context())
		c.Request = c.Request.WithContext(log.ContextWithLogger(c.Request.Context(), correlatedLogger))
		c.Next()
	}
}

func (routerService *RouterService) requestLoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)

		routerService.GetLogger(c).Info("HTTP request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency_ms", latency.Milliseconds(),
			"remote_addr", c.ClientIP(),
		)
	}
}

func (routerService *RouterService) securityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")

		if shouldSetHSTS(c) {
			h.Set("Strict-Transport-Security", buildHSTSValue())
		}
		c.Next()
	}
}

func shouldSetHSTS(c *gin.Context) bool {
	appEnv := strings.ToLower(utils.GetEnvTrimmed("APP_ENV"))
	enabled := utils.GetEnvBool("HSTS_ENABLED", appEnv == "production" || appEnv == "prod")

	if !enabled {
		return false
	}

	if c.Request.TLS != nil {
		return true
	}
	// TLS terminated at a reverse proxy.
	proto := strings.ToLower(strings.TrimSpace(c.GetHeader("X-Forwarded-Proto")))
	return proto == "https"
}

func buildHSTSValue() string {
	maxAge := int64(31536000)
	if raw := utils.GetEnvTrimmed("HSTS_MAX_AGE"); raw != "" {
		if parsed, err := strconv.ParseInt(raw, 10, 64); err == nil && parsed > 0 {
			maxAge = parsed
		}
	}

	value := fmt.Sprintf("max-age=%d", maxAge)
	if utils.GetEnvBool("HSTS_INCLUDE_SUBDOMAINS", true) {
		value += "; includeSubDomains"
	}
	return value
}

// maxBodySizeMiddleware caps the body. Reading past the cap fails, and the
// handler reports that like any other unreadable payload.
func (routerService *RouterService) maxBodySizeMiddleware() gin.HandlerFunc {
	maxBytes := routerService.middlewareConfig.MaxBodyBytes

	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}

// timeoutMiddleware bounds collaborator calls made with the request context.
// c.Next() must not run in a goroutine; Gin's Context is not safe for
// concurrent use.
func (routerService *RouterService) timeoutMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), routerService.middlewareConfig.TimeoutDuration)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func (routerService *RouterService) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			// No route matched; the fallback handler answers.
			c.Next()
			return
		}

		logger := routerService.GetLogger(c)
		limiter := routerService.rateLimiter

		limit, window := limiter.GetLimitDetails()
		clientID := c.ClientIP()

		if clientID == "" {
			logger.Warn("Client identifier unavailable; request not rate limited")
			routerService.metrics.rateLimitDecision(decisionSkipped)
		}

		limited, err := limiter.IsLimited(c.Request.Context(), clientID)
		if err != nil {
			routerService.metrics.rateLimitDecision(decisionError)
			logger.Error("Rate limiter error", "error", err, "client_ip", clientID)
			abortWith(c, ErrorResultFrom(apperrors.NewDatabaseError(err)))
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Header("X-RateLimit-Window", window.String())

		if limited {
			routerService.metrics.rateLimitDecision(decisionLimited)
			logger.Warn("Rate limit exceeded", "client_ip", clientID)

			retryAfterSeconds := int(math.Ceil(window.Seconds()))
			if retryAfterSeconds < 1 {
				retryAfterSeconds = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfterSeconds))
			abortWith(c, ErrorResultFrom(apperrors.NewRateLimitExceededError(nil)))
			return
		}

		if clientID != "" {
			routerService.metrics.rateLimitDecision(decisionAllowed)
		}
		c.Next()
	}
}
