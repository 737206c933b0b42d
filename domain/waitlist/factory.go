package waitlist

import (
	"github.com/akeren/waitlist-intake/config/router"
	"github.com/akeren/waitlist-intake/internal/log"
	"gorm.io/gorm"
)

type WaitlistServiceFactory interface {
	CreateRepository() WaitlistRepository
	CreateController() *router.RESTController
}

type DefaultWaitlistServiceFactory struct {
	db     *gorm.DB
	logger *log.Logger
}

func NewWaitlistServiceFactory(db *gorm.DB, logger *log.Logger) WaitlistServiceFactory {
	return &DefaultWaitlistServiceFactory{
		db:     db,
		logger: logger,
	}
}

// CreateRepository returns the gorm repository behind the store circuit breaker.
func (f *DefaultWaitlistServiceFactory) CreateRepository() WaitlistRepository {
	return NewBreakerRepository(NewWaitlistRepository(f.db), NewStoreBreaker(f.logger))
}

func (f *DefaultWaitlistServiceFactory) CreateController() *router.RESTController {
	return NewWaitlistController(f.CreateRepository(), f.logger)
}
