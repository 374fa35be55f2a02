package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"sketchroom/internal/core/domain"
	"sketchroom/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

type RedisRoomRepository struct {
	client *redis.Client
	prefix string
}

func NewRedisRoomRepository(client *redis.Client) ports.RoomRepository {
	return &RedisRoomRepository{
		client: client,
		prefix: keyPrefix + "room:",
	}
}

func (r *RedisRoomRepository) roomKey(id domain.RoomID) string {
	return r.prefix + string(id)
}

func (r *RedisRoomRepository) activeRoomsKey() string {
	return r.prefix + "active"
}

func (r *RedisRoomRepository) Create(ctx context.Context, room *domain.RoomInfo) (err error) {
	ctx, end := startSpan(ctx, "create", roomsTable)
	defer func() { end(err) }()

	data, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("failed to marshal room: %w", err)
	}

	created, err := r.client.SetNX(ctx, r.roomKey(room.ID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to set room in Redis: %w", err)
	}
	if !created {
		return fmt.Errorf("room already exists: %s", room.ID)
	}

	if room.Active {
		if err := r.client.SAdd(ctx, r.activeRoomsKey(), string(room.ID)).Err(); err != nil {
			return fmt.Errorf("failed to add room to active set: %w", err)
		}
	}

	return nil
}

func (r *RedisRoomRepository) GetByID(ctx context.Context, id domain.RoomID) (_ *domain.RoomInfo, err error) {
	ctx, end := startSpan(ctx, "get", roomsTable)
	defer func() { end(err) }()

	data, err := r.client.Get(ctx, r.roomKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get room from Redis: %w", err)
	}

	var room domain.RoomInfo
	if err := json.Unmarshal(data, &room); err != nil {
		return nil, fmt.Errorf("failed to unmarshal room: %w", err)
	}

	return &room, nil
}

func (r *RedisRoomRepository) Update(ctx context.Context, room *domain.RoomInfo) (err error) {
	ctx, end := startSpan(ctx, "update", roomsTable)
	defer func() { end(err) }()

	data, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("failed to marshal room: %w", err)
	}

	updated, err := r.client.SetXX(ctx, r.roomKey(room.ID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to update room in Redis: %w", err)
	}
	if !updated {
		return domain.ErrRoomNotFound
	}

	if room.Active {
		err = r.client.SAdd(ctx, r.activeRoomsKey(), string(room.ID)).Err()
	} else {
		err = r.client.SRem(ctx, r.activeRoomsKey(), string(room.ID)).Err()
	}
	if err != nil {
		return fmt.Errorf("failed to update active room set: %w", err)
	}

	return nil
}

func (r *RedisRoomRepository) Delete(ctx context.Context, id domain.RoomID) (err error) {
	ctx, end := startSpan(ctx, "delete", roomsTable)
	defer func() { end(err) }()

	pipe := r.client.TxPipeline()
	pipe.SRem(ctx, r.activeRoomsKey(), string(id))
	del := pipe.Del(ctx, r.roomKey(id))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete room from Redis: %w", err)
	}
	if del.Val() == 0 {
		return domain.ErrRoomNotFound
	}
	return nil
}

// ListActive returns active rooms, oldest first.
func (r *RedisRoomRepository) ListActive(ctx context.Context) (_ []*domain.RoomInfo, err error) {
	ctx, end := startSpan(ctx, "list_active", roomsTable)
	defer func() { end(err) }()

	ids, err := r.client.SMembers(ctx, r.activeRoomsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get active rooms from Redis: %w", err)
	}

	rooms := make([]*domain.RoomInfo, 0, len(ids))
	for _, id := range ids {
		room, err := r.GetByID(ctx, domain.RoomID(id))
		if err != nil {
			// Skip rooms that no longer exist
			continue
		}
		if room.Active {
			rooms = append(rooms, room)
		}
	}
	sort.Slice(rooms, func(i, j int) bool {
		return rooms[i].CreatedAt.Before(rooms[j].CreatedAt)
	})

	return rooms, nil
}
