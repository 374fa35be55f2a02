package monitoring

import (
	"context"
	"fmt"
	"time"

	"sketchroom/internal/core/ports"
	"sketchroom/pkg/circuitbreaker"
)

// Pinger is satisfied by the repository factory.
type Pinger interface {
	HealthCheck(ctx context.Context) error
}

// AddStorageCheck adds a check against the backing store.
func (h *HealthChecker) AddStorageCheck(p Pinger, interval, timeout time.Duration) {
	h.AddCheck("storage", func(ctx context.Context) (bool, error) {
		if err := p.HealthCheck(ctx); err != nil {
			return false, err
		}
		return true, nil
	}, interval, timeout)
}

// AddRepositoryCheck lists active rooms as a health check.
func (h *HealthChecker) AddRepositoryCheck(repo ports.RoomRepository, interval, timeout time.Duration) {
	h.AddCheck("repository", func(ctx context.Context) (bool, error) {
		if _, err := repo.ListActive(ctx); err != nil {
			return false, err
		}
		return true, nil
	}, interval, timeout)
}

// AddCapacityCheck fails once the live room count reaches max. A max of
// zero disables the check.
func (h *HealthChecker) AddCapacityCheck(count func() int, max int, timeout time.Duration) {
	h.AddCheck("capacity", func(ctx context.Context) (bool, error) {
		if max > 0 && count() >= max {
			return false, fmt.Errorf("room limit reached (%d)", max)
		}
		return true, nil
	}, 0, timeout)
}

// AddBreakerCheck reports unhealthy while the named circuit is open.
func (h *HealthChecker) AddBreakerCheck(name string, state func() circuitbreaker.State, timeout time.Duration) {
	h.AddCheck(name, func(ctx context.Context) (bool, error) {
		if s := state(); s == circuitbreaker.StateOpen {
			return false, fmt.Errorf("circuit %s", s)
		}
		return true, nil
	}, 0, timeout)
}
