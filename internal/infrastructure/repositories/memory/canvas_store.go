package memory

import (
	"context"
	"sync"

	"sketchroom/internal/core/domain"
	"sketchroom/internal/core/ports"
)

type MemoryCanvasStore struct {
	snapshots map[string]string
	mu        sync.RWMutex
}

func NewMemoryCanvasStore() ports.CanvasStore {
	return &MemoryCanvasStore{
		snapshots: make(map[string]string),
	}
}

func (s *MemoryCanvasStore) Save(ctx context.Context, name string, dataURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[name] = dataURL
	return nil
}

func (s *MemoryCanvasStore) Load(ctx context.Context, name string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dataURL, exists := s.snapshots[name]
	if !exists {
		return "", domain.ErrSnapshotNotFound
	}
	return dataURL, nil
}

func (s *MemoryCanvasStore) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.snapshots[name]; !exists {
		return domain.ErrSnapshotNotFound
	}
	delete(s.snapshots, name)
	return nil
}
