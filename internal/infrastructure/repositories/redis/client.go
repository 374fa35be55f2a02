package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sketchroom/internal/core/domain"
	"sketchroom/pkg/tracing"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "sketchroom:"

const (
	roomsTable    = "rooms"
	canvasesTable = "canvases"
)

// startSpan traces one store call. The returned func ends the span and
// records err on it unless err is a not-found answer.
func startSpan(ctx context.Context, operation, table string) (context.Context, func(error)) {
	ctx, span := tracing.TraceDatabaseOperation(ctx, operation, table)
	return ctx, func(err error) {
		if err != nil && !errors.Is(err, domain.ErrRoomNotFound) && !errors.Is(err, domain.ErrSnapshotNotFound) {
			tracing.RecordError(ctx, err)
		}
		span.End()
	}
}

// ClientOptions mirrors the redis section of the service config.
type ClientOptions struct {
	Address  string
	Password string
	DB       int
	PoolSize int
}

// NewRedisClient connects, pings and migrates.
func NewRedisClient(opts ClientOptions, logger *zap.SugaredLogger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Address,
		Password:     opts.Password,
		DB:           opts.DB,
		PoolSize:     opts.PoolSize,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if err := Migrate(ctx, client, logger); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	if logger != nil {
		logger.Infow("Connected to Redis",
			"address", opts.Address,
			"db", opts.DB,
			"pool_size", opts.PoolSize,
		)
	}

	return client, nil
}

func CloseRedisClient(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
