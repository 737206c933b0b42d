package router

import (
	"strconv"
	"time"

	"github.com/akeren/waitlist-intake/pkg/utils"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metrics struct {
	requestsTotal      *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
	rateLimitDecisions *prometheus.CounterVec
	originRejections   prometheus.Counter
}

func metricsEnabled() bool {
	return utils.GetEnvBool("METRICS_ENABLED", true)
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"method", "route", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
		rateLimitDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ratelimit_decisions_total",
				Help: "Rate limiter decisions by outcome.",
			},
			[]string{"decision"},
		),
		originRejections: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "origin_rejections_total",
				Help: "Requests rejected by the origin gate.",
			},
		),
	}

	reg.MustRegister(m.requestsTotal, m.requestDuration, m.rateLimitDecisions, m.originRejections)
	return m
}

func (m *metrics) rateLimitDecision(decision string) {
	if m == nil {
		return
	}
	m.rateLimitDecisions.WithLabelValues(decision).Inc()
}

func (m *metrics) originRejected() {
	if m == nil {
		return
	}
	m.originRejections.Inc()
}

func (m *metrics) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		status := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method

		m.requestsTotal.WithLabelValues(method, route, status).Inc()
		m.requestDuration.WithLabelValues(method, route, status).Observe(time.Since(start).Seconds())
	}
}

// initMetrics builds the registry shared by both listeners. Domain counters
// register into it through MetricsRegisterer even when the endpoint is off.
func (routerService *RouterService) initMetrics() {
	routerService.registry = prometheus.NewRegistry()

	if !metricsEnabled() {
		routerService.logger.Info("Metrics disabled (METRICS_ENABLED=false)")
		return
	}

	routerService.registry.MustRegister(prometheus.NewGoCollector())
	routerService.registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	routerService.metrics = newMetrics(routerService.registry)
	routerService.engine.Use(routerService.metrics.middleware())

	h := promhttp.HandlerFor(routerService.registry, promhttp.HandlerOpts{})
	routerService.opsEngine.GET("/metrics", gin.WrapH(h))

	routerService.logger.Info("Metrics endpoint mounted on ops listener", "path", "/metrics")
}

func (routerService *RouterService) MetricsRegisterer() prometheus.Registerer {
	return routerService.registry
}
