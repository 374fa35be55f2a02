package ports

import (
	"context"

	"sketchroom/internal/core/domain"
)

// RoomRepository stores the room directory. Live room state never goes
// through it; only the metadata listed by the HTTP API does.
type RoomRepository interface {
	Create(ctx context.Context, room *domain.RoomInfo) error
	GetByID(ctx context.Context, id domain.RoomID) (*domain.RoomInfo, error)
	Update(ctx context.Context, room *domain.RoomInfo) error
	Delete(ctx context.Context, id domain.RoomID) error
	ListActive(ctx context.Context) ([]*domain.RoomInfo, error)
}

// CanvasStore keeps named canvas snapshots as PNG data URLs.
type CanvasStore interface {
	Save(ctx context.Context, name string, dataURL string) error
	Load(ctx context.Context, name string) (string, error)
	Delete(ctx context.Context, name string) error
}
