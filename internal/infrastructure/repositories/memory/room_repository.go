package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"sketchroom/internal/core/domain"
	"sketchroom/internal/core/ports"
)

type MemoryRoomRepository struct {
	rooms map[domain.RoomID]domain.RoomInfo
	mu    sync.RWMutex
}

func NewMemoryRoomRepository() ports.RoomRepository {
	return &MemoryRoomRepository{
		rooms: make(map[domain.RoomID]domain.RoomInfo),
	}
}

func (r *MemoryRoomRepository) Create(ctx context.Context, room *domain.RoomInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.rooms[room.ID]; exists {
		return fmt.Errorf("room already exists: %s", room.ID)
	}

	r.rooms[room.ID] = *room
	return nil
}

func (r *MemoryRoomRepository) GetByID(ctx context.Context, id domain.RoomID) (*domain.RoomInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, exists := r.rooms[id]
	if !exists {
		return nil, domain.ErrRoomNotFound
	}

	return &room, nil
}

func (r *MemoryRoomRepository) Update(ctx context.Context, room *domain.RoomInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.rooms[room.ID]; !exists {
		return domain.ErrRoomNotFound
	}

	r.rooms[room.ID] = *room
	return nil
}

func (r *MemoryRoomRepository) Delete(ctx context.Context, id domain.RoomID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.rooms[id]; !exists {
		return domain.ErrRoomNotFound
	}

	delete(r.rooms, id)
	return nil
}

// ListActive returns active rooms, oldest first.
func (r *MemoryRoomRepository) ListActive(ctx context.Context) ([]*domain.RoomInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var active []*domain.RoomInfo
	for _, room := range r.rooms {
		if room.Active {
			room := room
			active = append(active, &room)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		return active[i].CreatedAt.Before(active[j].CreatedAt)
	})

	return active, nil
}
