package backup

import (
	"context"
	"errors"
	"sync"
	"time"

	"sketchroom/internal/core/domain"
	"sketchroom/internal/core/services"

	"go.uber.org/zap"
)

// AutosavePrefix names the snapshot kept for each live room.
const AutosavePrefix = "autosave-"

// RoomSource lists the rooms to autosave.
type RoomSource interface {
	Rooms() []*services.Room
}

// Snapshotter renders a room into the canvas store.
type Snapshotter interface {
	SaveSnapshot(ctx context.Context, room *services.Room, name string) error
}

// Scheduler periodically stores a snapshot of every live room whose board
// changed since its last save.
type Scheduler struct {
	rooms    RoomSource
	boards   Snapshotter
	interval time.Duration
	logger   *zap.SugaredLogger

	mu    sync.Mutex
	saved map[domain.RoomID]uint64

	stopOnce sync.Once
	stopChan chan struct{}
}

type Config struct {
	Interval time.Duration
}

func NewScheduler(rooms RoomSource, boards Snapshotter, cfg Config, logger *zap.SugaredLogger) *Scheduler {
	return &Scheduler{
		rooms:    rooms,
		boards:   boards,
		interval: cfg.Interval,
		logger:   logger,
		saved:    make(map[domain.RoomID]uint64),
		stopChan: make(chan struct{}),
	}
}

// AutosaveName is the snapshot name used for roomID.
func AutosaveName(roomID domain.RoomID) string {
	return AutosavePrefix + string(roomID)
}

// Start blocks, saving every interval until ctx is done or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.RunOnce(ctx)
		case <-s.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
}

// RunOnce saves each changed room and returns how many were written.
func (s *Scheduler) RunOnce(ctx context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	live := make(map[domain.RoomID]struct{})
	written := 0
	for _, room := range s.rooms.Rooms() {
		id := room.ID()
		live[id] = struct{}{}

		stats, err := room.Stats(ctx)
		if errors.Is(err, domain.ErrRoomClosed) {
			continue
		}
		if err != nil {
			s.logger.Warnw("autosave skipped room", "room_id", id, "error", err)
			continue
		}
		last, seen := s.saved[id]
		if seen && last == stats.Revision || !seen && stats.Revision == 0 {
			continue
		}

		if err := s.boards.SaveSnapshot(ctx, room, AutosaveName(id)); err != nil {
			s.logger.Errorw("autosave failed", "room_id", id, "error", err)
			continue
		}
		s.saved[id] = stats.Revision
		written++
	}

	for id := range s.saved {
		if _, ok := live[id]; !ok {
			delete(s.saved, id)
		}
	}

	if written > 0 {
		s.logger.Infow("autosave completed", "rooms", written)
	}
	return written
}
