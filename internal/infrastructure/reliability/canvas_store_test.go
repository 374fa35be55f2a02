package reliability

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"sketchroom/internal/core/domain"
	"sketchroom/internal/core/ports"
	"sketchroom/internal/infrastructure/repositories/memory"
	"sketchroom/pkg/cache"
	"sketchroom/pkg/circuitbreaker"
	"sketchroom/pkg/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var errDown = errors.New("connection refused")

// flakyStore fails the next `failures` calls before delegating.
type flakyStore struct {
	mu       sync.Mutex
	failures int
	calls    int
	inner    ports.CanvasStore
}

func (s *flakyStore) fail() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.failures != 0 {
		if s.failures > 0 {
			s.failures--
		}
		return true
	}
	return false
}

func (s *flakyStore) setFailures(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = n
	s.calls = 0
}

func (s *flakyStore) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *flakyStore) Save(ctx context.Context, name, dataURL string) error {
	if s.fail() {
		return errDown
	}
	return s.inner.Save(ctx, name, dataURL)
}

func (s *flakyStore) Load(ctx context.Context, name string) (string, error) {
	if s.fail() {
		return "", errDown
	}
	return s.inner.Load(ctx, name)
}

func (s *flakyStore) Delete(ctx context.Context, name string) error {
	if s.fail() {
		return errDown
	}
	return s.inner.Delete(ctx, name)
}

func newWrapper(t *testing.T, store *flakyStore) *CanvasStoreWrapper {
	t.Helper()
	recent := cache.New[string](time.Minute)
	t.Cleanup(recent.Stop)

	return NewCanvasStoreWrapper(store,
		retry.Config{Enabled: true, MaxAttempts: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1},
		circuitbreaker.Config{FailureThreshold: 2, SuccessThreshold: 1, Timeout: time.Hour, MaxRequestsHalfOpen: 1},
		recent,
		zap.NewNop().Sugar(),
	)
}

func TestCanvasStoreWrapper_RetriesTransientFailures(t *testing.T) {
	store := &flakyStore{inner: memory.NewMemoryCanvasStore(), failures: 2}
	w := newWrapper(t, store)

	require.NoError(t, w.Save(context.Background(), "s", "data:image/png;base64,AA=="))
	assert.Equal(t, 3, store.callCount())

	got, err := w.Load(context.Background(), "s")
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,AA==", got)
}

func TestCanvasStoreWrapper_NotFoundIsNotRetried(t *testing.T) {
	store := &flakyStore{inner: memory.NewMemoryCanvasStore()}
	w := newWrapper(t, store)

	for i := 0; i < 5; i++ {
		_, err := w.Load(context.Background(), "missing")
		assert.ErrorIs(t, err, domain.ErrSnapshotNotFound)
	}
	assert.Equal(t, 5, store.callCount())
	assert.Equal(t, circuitbreaker.StateClosed, w.State())
}

func TestCanvasStoreWrapper_ServesCachedCopyWhenOpen(t *testing.T) {
	store := &flakyStore{inner: memory.NewMemoryCanvasStore()}
	w := newWrapper(t, store)
	ctx := context.Background()

	require.NoError(t, w.Save(ctx, "board", "data:image/png;base64,AQ=="))

	store.setFailures(-1)
	for i := 0; i < 2; i++ {
		got, err := w.Load(ctx, "board")
		require.NoError(t, err)
		assert.Equal(t, "data:image/png;base64,AQ==", got)
	}
	assert.Equal(t, circuitbreaker.StateOpen, w.State())

	calls := store.callCount()
	got, err := w.Load(ctx, "board")
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,AQ==", got)
	assert.Equal(t, calls, store.callCount(), "open circuit must not reach the store")

	_, err = w.Load(ctx, "never-seen")
	assert.ErrorIs(t, err, circuitbreaker.ErrOpen)

	err = w.Save(ctx, "other", "x")
	assert.ErrorIs(t, err, circuitbreaker.ErrOpen)
}

func TestCanvasStoreWrapper_DeleteDropsCachedCopy(t *testing.T) {
	store := &flakyStore{inner: memory.NewMemoryCanvasStore()}
	w := newWrapper(t, store)
	ctx := context.Background()

	require.NoError(t, w.Save(ctx, "board", "x"))
	require.NoError(t, w.Delete(ctx, "board"))

	_, err := w.Load(ctx, "board")
	assert.ErrorIs(t, err, domain.ErrSnapshotNotFound)
}
