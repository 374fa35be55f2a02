package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sketchroom/internal/core/domain"
	"sketchroom/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

// RedisCanvasStore keeps snapshots under sketchroom:canvas:<name>. A zero
// ttl keeps them forever.
type RedisCanvasStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisCanvasStore(client *redis.Client, ttl time.Duration) ports.CanvasStore {
	return &RedisCanvasStore{
		client: client,
		prefix: keyPrefix + "canvas:",
		ttl:    ttl,
	}
}

func (s *RedisCanvasStore) key(name string) string {
	return s.prefix + name
}

func (s *RedisCanvasStore) Save(ctx context.Context, name string, dataURL string) (err error) {
	ctx, end := startSpan(ctx, "save", canvasesTable)
	defer func() { end(err) }()

	if err := s.client.Set(ctx, s.key(name), dataURL, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save canvas snapshot: %w", err)
	}
	return nil
}

func (s *RedisCanvasStore) Load(ctx context.Context, name string) (_ string, err error) {
	ctx, end := startSpan(ctx, "load", canvasesTable)
	defer func() { end(err) }()

	dataURL, err := s.client.Get(ctx, s.key(name)).Result()
	if errors.Is(err, redis.Nil) {
		return "", domain.ErrSnapshotNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to load canvas snapshot: %w", err)
	}
	return dataURL, nil
}

func (s *RedisCanvasStore) Delete(ctx context.Context, name string) (err error) {
	ctx, end := startSpan(ctx, "delete", canvasesTable)
	defer func() { end(err) }()

	n, err := s.client.Del(ctx, s.key(name)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete canvas snapshot: %w", err)
	}
	if n == 0 {
		return domain.ErrSnapshotNotFound
	}
	return nil
}
