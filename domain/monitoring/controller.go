package monitoring

import (
	"context"
	"net/http"
	"time"

	"github.com/akeren/waitlist-intake/config/router"
	"github.com/akeren/waitlist-intake/internal/log"
	"gorm.io/gorm"
)

const healthCheckTimeout = 2 * time.Second

type Cache interface {
	Ping(ctx context.Context) error
}

type HealthStatus struct {
	Database            int    `json:"database"`      // 1 = healthy, 0 = unhealthy
	CounterStore        int    `json:"counter_store"` // 1 = healthy, 0 = unhealthy
	CounterStoreBackend string `json:"counter_store_backend"`
	Uptime              int    `json:"uptime"` // seconds
}

type MonitoringController struct {
	db        *gorm.DB
	logger    *log.Logger
	cache     Cache
	startTime time.Time
}

// NewMonitoringController serves GET /health on the ops listener. A nil cache
// means counters are kept in memory.
func NewMonitoringController(db *gorm.DB, logger *log.Logger, cache Cache) *router.RESTController {
	ctrl := &MonitoringController{
		db:        db,
		logger:    logger,
		cache:     cache,
		startTime: time.Now(),
	}

	return router.NewOpsController(
		"MonitoringController",
		"/",
		func(routerService *router.RouterService, controller *router.RESTController) {
			routerService.AddGetHandler(controller, "health", func(c *router.RequestContext) *router.ServiceResult {
				return ctrl.healthCheck(routerService, c)
			})
		},
	)
}

func (ctrl *MonitoringController) healthCheck(
	routerService *router.RouterService,
	c *router.RequestContext,
) *router.ServiceResult {
	logger := routerService.GetLogger(c)

	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	status := ctrl.performHealthChecks(ctx, logger)

	if status.Database == 0 || status.CounterStore == 0 {
		return &router.ServiceResult{
			StatusCode: http.StatusServiceUnavailable,
			Error:      "Service unavailable",
			Data:       status,
		}
	}

	return router.OKResult(status)
}

func (ctrl *MonitoringController) performHealthChecks(ctx context.Context, logger *log.Logger) HealthStatus {
	status := HealthStatus{
		Uptime: int(time.Since(ctrl.startTime).Seconds()),
	}

	checkDatabaseConnectivity(ctx, ctrl, &status, logger)
	checkCounterStoreConnectivity(ctx, ctrl, &status, logger)

	return status
}

func checkCounterStoreConnectivity(ctx context.Context, ctrl *MonitoringController, status *HealthStatus, logger *log.Logger) {
	if ctrl.cache == nil {
		status.CounterStoreBackend = "memory"
		status.CounterStore = 1
		return
	}

	status.CounterStoreBackend = "redis"
	if err := ctrl.cache.Ping(ctx); err != nil {
		logger.Error("Counter store health check failed", "error", err)
		return
	}
	status.CounterStore = 1
}

func checkDatabaseConnectivity(ctx context.Context, ctrl *MonitoringController, status *HealthStatus, logger *log.Logger) {
	if ctrl.checkDatabase(ctx) {
		status.Database = 1
		return
	}
	logger.Error("Database health check failed")
}

func (ctrl *MonitoringController) checkDatabase(ctx context.Context) bool {
	if ctrl.db == nil {
		return false
	}

	sqlDB, err := ctrl.db.DB()
	if err != nil {
		return false
	}

	return sqlDB.PingContext(ctx) == nil
}
