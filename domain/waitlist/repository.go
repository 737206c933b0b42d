package waitlist

import (
	"context"

	"github.com/akeren/waitlist-intake/internal/log"
	"github.com/akeren/waitlist-intake/internal/models"
	"github.com/akeren/waitlist-intake/pkg/circuitbreaker"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

//go:generate mockgen -source=repository.go -destination=mock_repository.go -package=waitlist

type WaitlistRepository interface {
	// InsertEntry stores entry unless a row with the same email exists.
	// inserted is false for an ignored duplicate; existing rows are never changed.
	InsertEntry(ctx context.Context, entry *models.WaitlistEntry) (inserted bool, err error)
}

type waitlistRepository struct {
	db *gorm.DB
}

func NewWaitlistRepository(db *gorm.DB) WaitlistRepository {
	return &waitlistRepository{db: db}
}

func (wr *waitlistRepository) InsertEntry(ctx context.Context, entry *models.WaitlistEntry) (bool, error) {
	result := wr.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "email"}},
			DoNothing: true,
		}).
		Create(entry)

	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected > 0, nil
}

type breakerRepository struct {
	next    WaitlistRepository
	breaker circuitbreaker.CircuitBreaker
}

// NewBreakerRepository fails fast with circuitbreaker.ErrCircuitOpen while
// the store keeps failing. It never retries.
func NewBreakerRepository(next WaitlistRepository, breaker circuitbreaker.CircuitBreaker) WaitlistRepository {
	return &breakerRepository{next: next, breaker: breaker}
}

func (br *breakerRepository) InsertEntry(ctx context.Context, entry *models.WaitlistEntry) (bool, error) {
	var inserted bool

	err := br.breaker.Call(func() error {
		var callErr error
		inserted, callErr = br.next.InsertEntry(ctx, entry)
		return callErr
	})

	return inserted, err
}

// NewStoreBreaker logs every state change of the store circuit.
func NewStoreBreaker(logger *log.Logger) circuitbreaker.CircuitBreaker {
	cfg := circuitbreaker.DefaultConfig()
	cfg.SuccessThreshold = 1
	cfg.OnStateChange = func(from, to circuitbreaker.CircuitState) {
		logger.Warn("Waitlist store circuit changed state", "from", from.String(), "to", to.String())
	}
	return circuitbreaker.NewCircuitBreaker(cfg)
}
