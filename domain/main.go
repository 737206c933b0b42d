package domain

import (
	"github.com/akeren/waitlist-intake/config"
	"github.com/akeren/waitlist-intake/domain/monitoring"
	"github.com/akeren/waitlist-intake/domain/waitlist"
)

func SetupCoreDomain(appConfig *config.ApplicationConfig) {
	var cache monitoring.Cache
	if appConfig.Cache != nil {
		cache = appConfig.Cache
	}

	appConfig.RouterService.MountController(
		monitoring.NewMonitoringControllerFactory(appConfig.DB, appConfig.Logger, cache).CreateController(),
	)
	appConfig.RouterService.MountController(
		waitlist.NewWaitlistServiceFactory(appConfig.DB, appConfig.Logger).CreateController(),
	)
}
