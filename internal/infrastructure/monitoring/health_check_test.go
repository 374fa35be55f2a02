package monitoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"sketchroom/internal/infrastructure/repositories/memory"
	"sketchroom/pkg/circuitbreaker"

	"github.com/stretchr/testify/assert"
)

type stubPinger struct{ err error }

func (s stubPinger) HealthCheck(context.Context) error { return s.err }

func TestHealthChecker_AllHealthy(t *testing.T) {
	h := NewHealthChecker()
	h.AddStorageCheck(stubPinger{}, time.Minute, time.Second)
	h.AddRepositoryCheck(memory.NewMemoryRoomRepository(), time.Minute, time.Second)

	status := h.CheckAll(context.Background())

	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, "healthy", status.Checks["storage"])
	assert.Equal(t, "healthy", status.Checks["repository"])
	assert.True(t, h.IsReady(context.Background()))
}

func TestHealthChecker_ReportsFailure(t *testing.T) {
	h := NewHealthChecker()
	h.AddStorageCheck(stubPinger{err: errors.New("connection refused")}, time.Minute, time.Second)

	status := h.CheckAll(context.Background())

	assert.Equal(t, "unhealthy", status.Status)
	assert.Equal(t, "connection refused", status.Checks["storage"])
	assert.False(t, h.IsReady(context.Background()))
}

func TestHealthChecker_Capacity(t *testing.T) {
	rooms := 0
	h := NewHealthChecker()
	h.AddCapacityCheck(func() int { return rooms }, 2, time.Second)

	assert.True(t, h.IsReady(context.Background()))

	rooms = 2
	status := h.CheckAll(context.Background())
	assert.Equal(t, "unhealthy", status.Status)
	assert.Contains(t, status.Checks["capacity"], "room limit")
}

func TestHealthChecker_Breaker(t *testing.T) {
	state := circuitbreaker.StateHalfOpen
	h := NewHealthChecker()
	h.AddBreakerCheck("canvas_store", func() circuitbreaker.State { return state }, time.Second)

	assert.True(t, h.IsReady(context.Background()))

	state = circuitbreaker.StateOpen
	status := h.CheckAll(context.Background())
	assert.Equal(t, "unhealthy", status.Status)
	assert.Equal(t, "circuit open", status.Checks["canvas_store"])
}

func TestHealthChecker_TimeoutApplied(t *testing.T) {
	h := NewHealthChecker()
	h.AddCheck("slow", func(ctx context.Context) (bool, error) {
		<-ctx.Done()
		return false, ctx.Err()
	}, 0, 10*time.Millisecond)

	status := h.CheckAll(context.Background())
	assert.Equal(t, "unhealthy", status.Status)
	assert.Equal(t, context.DeadlineExceeded.Error(), status.Checks["slow"])
}
