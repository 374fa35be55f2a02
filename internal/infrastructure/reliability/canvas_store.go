package reliability

import (
	"context"
	"errors"

	"sketchroom/internal/core/domain"
	"sketchroom/internal/core/ports"
	"sketchroom/pkg/cache"
	"sketchroom/pkg/circuitbreaker"
	"sketchroom/pkg/retry"

	"go.uber.org/zap"
)

// CanvasStoreWrapper guards a CanvasStore with retries and a circuit
// breaker. Snapshots it has seen are kept in a TTL cache and served while
// the circuit is open.
type CanvasStoreWrapper struct {
	store   ports.CanvasStore
	retry   retry.Config
	breaker *circuitbreaker.CircuitBreaker
	recent  *cache.Cache[string]
	logger  *zap.SugaredLogger
}

var _ ports.CanvasStore = (*CanvasStoreWrapper)(nil)

func NewCanvasStoreWrapper(
	store ports.CanvasStore,
	retryConfig retry.Config,
	cbConfig circuitbreaker.Config,
	recent *cache.Cache[string],
	logger *zap.SugaredLogger,
) *CanvasStoreWrapper {
	// A missing snapshot is an answer, not an outage.
	retryConfig.Permanent = append(append([]error(nil), retryConfig.Permanent...), domain.ErrSnapshotNotFound, context.Canceled, context.DeadlineExceeded)
	cbConfig.IsFailure = func(err error) bool {
		return !errors.Is(err, domain.ErrSnapshotNotFound)
	}

	w := &CanvasStoreWrapper{
		store:   store,
		retry:   retryConfig,
		breaker: circuitbreaker.New(cbConfig),
		recent:  recent,
		logger:  logger,
	}
	w.breaker.OnStateChange(func(from, to circuitbreaker.State) {
		logger.Warnw("canvas store circuit breaker state changed",
			"from", from.String(),
			"to", to.String(),
		)
	})
	return w
}

func (w *CanvasStoreWrapper) Save(ctx context.Context, name string, dataURL string) error {
	err := w.breaker.Execute(ctx, func() error {
		return retry.Retry(ctx, w.retry, func() error {
			return w.store.Save(ctx, name, dataURL)
		})
	})
	if err != nil {
		return err
	}
	w.recent.Set(name, dataURL)
	return nil
}

// Load falls back to the last copy seen by this process when the store
// is unavailable.
func (w *CanvasStoreWrapper) Load(ctx context.Context, name string) (string, error) {
	dataURL, err := circuitbreaker.Call(ctx, w.breaker, func() (string, error) {
		return retry.Do(ctx, w.retry, func() (string, error) {
			return w.store.Load(ctx, name)
		})
	})
	switch {
	case err == nil:
		w.recent.Set(name, dataURL)
		return dataURL, nil
	case errors.Is(err, domain.ErrSnapshotNotFound):
		w.recent.Delete(name)
		return "", err
	}

	if cached, ok := w.recent.Get(name); ok {
		w.logger.Warnw("serving cached canvas snapshot", "name", name, "error", err)
		return cached, nil
	}
	return "", err
}

func (w *CanvasStoreWrapper) Delete(ctx context.Context, name string) error {
	w.recent.Delete(name)
	return w.breaker.Execute(ctx, func() error {
		return retry.Retry(ctx, w.retry, func() error {
			return w.store.Delete(ctx, name)
		})
	})
}

// State reports the breaker state for health checks.
func (w *CanvasStoreWrapper) State() circuitbreaker.State {
	return w.breaker.GetState()
}
