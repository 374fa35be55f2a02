package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"sketchroom/internal/core/domain"
	"sketchroom/internal/core/ports"
	"sketchroom/pkg/utils"

	"go.uber.org/zap"
)

// ErrRoomLimit is returned when MaxRooms rooms are already live.
var ErrRoomLimit = errors.New("room limit reached")

// RoomManagerConfig holds room defaults and lifecycle limits.
type RoomManagerConfig struct {
	IdleTimeout   time.Duration
	MaxRooms      int
	DefaultWidth  int
	DefaultHeight int
	MailboxSize   int
}

// RoomManager owns the live rooms of this process. Rooms are created on
// first reference and reaped once they have been empty for IdleTimeout.
type RoomManager struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]*Room
	timer map[domain.RoomID]*time.Timer

	repo    ports.RoomRepository
	invites ports.InviteIssuer
	metrics ports.MetricsRecorder
	config  RoomManagerConfig
	logger  *zap.SugaredLogger
	closed  bool
}

func NewRoomManager(
	repo ports.RoomRepository,
	invites ports.InviteIssuer,
	metrics ports.MetricsRecorder,
	config RoomManagerConfig,
	logger *zap.SugaredLogger,
) *RoomManager {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &RoomManager{
		rooms:   make(map[domain.RoomID]*Room),
		timer:   make(map[domain.RoomID]*time.Timer),
		repo:    repo,
		invites: invites,
		metrics: metrics,
		config:  config,
		logger:  logger,
	}
}

// Create registers a new room with a generated id.
func (m *RoomManager) Create(ctx context.Context, opts RoomOptions) (*Room, error) {
	return m.GetOrCreate(ctx, domain.RoomID(utils.GenerateRoomID()), opts)
}

// GetOrCreate returns the live room, reviving it from the repository or
// creating it with opts when it is unknown.
func (m *RoomManager) GetOrCreate(ctx context.Context, id domain.RoomID, opts RoomOptions) (*Room, error) {
	if room, ok := m.live(id); ok {
		return room, nil
	}

	info, err := m.repo.GetByID(ctx, id)
	switch {
	case err == nil:
		opts.Name = info.Name
		opts.Type = info.Type
		opts.Settings = info.Settings
	case errors.Is(err, domain.ErrRoomNotFound):
		info = nil
	default:
		return nil, fmt.Errorf("failed to load room %s: %w", id, err)
	}

	return m.open(ctx, id, opts, info)
}

// Get returns a live room or revives one known to the repository.
func (m *RoomManager) Get(ctx context.Context, id domain.RoomID) (*Room, error) {
	if room, ok := m.live(id); ok {
		return room, nil
	}
	info, err := m.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return m.open(ctx, id, RoomOptions{Name: info.Name, Type: info.Type, Settings: info.Settings}, info)
}

// List returns public rooms from the directory.
func (m *RoomManager) List(ctx context.Context) ([]*domain.RoomInfo, error) {
	infos, err := m.repo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	public := make([]*domain.RoomInfo, 0, len(infos))
	for _, info := range infos {
		if !info.Settings.IsPrivate {
			public = append(public, info)
		}
	}
	return public, nil
}

// Rooms returns the rooms currently live in this process.
func (m *RoomManager) Rooms() []*Room {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Room, 0, len(m.rooms))
	for _, room := range m.rooms {
		out = append(out, room)
	}
	return out
}

func (m *RoomManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}

// Join joins conn to the room, opening it if needed. A room reaped between
// lookup and join is reopened once.
func (m *RoomManager) Join(ctx context.Context, id domain.RoomID, conn ports.Connection, displayName, token string) (*Room, domain.Participant, error) {
	for attempt := 0; attempt < 2; attempt++ {
		room, err := m.GetOrCreate(ctx, id, RoomOptions{})
		if err != nil {
			return nil, domain.Participant{}, err
		}
		p, err := room.Join(ctx, conn, displayName, token)
		if errors.Is(err, domain.ErrRoomClosed) {
			continue
		}
		if err != nil {
			return nil, domain.Participant{}, err
		}
		m.cancelReap(id)
		return room, p, nil
	}
	return nil, domain.Participant{}, domain.ErrRoomClosed
}

func (m *RoomManager) live(id domain.RoomID) (*Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	room, ok := m.rooms[id]
	return room, ok
}

func (m *RoomManager) open(ctx context.Context, id domain.RoomID, opts RoomOptions, stored *domain.RoomInfo) (*Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, domain.ErrRoomClosed
	}
	if room, ok := m.rooms[id]; ok {
		return room, nil
	}
	if m.config.MaxRooms > 0 && len(m.rooms) >= m.config.MaxRooms {
		return nil, fmt.Errorf("%w: %d", ErrRoomLimit, m.config.MaxRooms)
	}

	if opts.Settings.Width <= 0 {
		opts.Settings.Width = m.config.DefaultWidth
	}
	if opts.Settings.Height <= 0 {
		opts.Settings.Height = m.config.DefaultHeight
	}
	if opts.MailboxSize <= 0 {
		opts.MailboxSize = m.config.MailboxSize
	}
	opts.OnEmpty = m.scheduleReap

	room := NewRoom(id, opts, m.invites, m.metrics, m.logger)
	info := room.Info()

	var err error
	if stored == nil {
		err = m.repo.Create(ctx, &info)
	} else {
		info.CreatedAt = stored.CreatedAt
		err = m.repo.Update(ctx, &info)
	}
	if err != nil {
		room.Close()
		return nil, fmt.Errorf("failed to store room %s: %w", id, err)
	}

	m.rooms[id] = room
	m.metrics.RecordRoomOpened(id)
	m.logger.Infow("Room opened",
		"room_id", id,
		"type", info.Type,
		"private", info.Settings.IsPrivate,
		"width", info.Settings.Width,
		"height", info.Settings.Height,
	)

	// A room nobody joins is reaped like one everybody left.
	m.scheduleReapLocked(id)
	return room, nil
}

func (m *RoomManager) scheduleReap(id domain.RoomID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scheduleReapLocked(id)
}

func (m *RoomManager) scheduleReapLocked(id domain.RoomID) {
	if m.config.IdleTimeout <= 0 || m.closed {
		return
	}
	if t, ok := m.timer[id]; ok {
		t.Stop()
	}
	m.timer[id] = time.AfterFunc(m.config.IdleTimeout, func() { m.reap(id) })
}

func (m *RoomManager) cancelReap(id domain.RoomID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.timer[id]; ok {
		t.Stop()
		delete(m.timer, id)
	}
}

// reap closes the room if it is still empty.
func (m *RoomManager) reap(id domain.RoomID) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	m.mu.Lock()
	room, ok := m.rooms[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	if !room.closeIfEmpty(ctx) {
		m.mu.Unlock()
		return
	}
	delete(m.rooms, id)
	delete(m.timer, id)
	m.mu.Unlock()

	m.metrics.RecordRoomClosed(id)

	info := room.Info()
	info.Active = false
	if err := m.repo.Update(ctx, &info); err != nil {
		m.logger.Warnw("Failed to mark room inactive", "room_id", id, "error", err)
	}
	m.logger.Infow("Room reaped", "room_id", id, "idle_timeout", m.config.IdleTimeout)
}

// Close shuts down every live room.
func (m *RoomManager) Close() {
	m.mu.Lock()
	m.closed = true
	rooms := make([]*Room, 0, len(m.rooms))
	for id, room := range m.rooms {
		rooms = append(rooms, room)
		delete(m.rooms, id)
	}
	for id, t := range m.timer {
		t.Stop()
		delete(m.timer, id)
	}
	m.mu.Unlock()

	for _, room := range rooms {
		room.Close()
		m.metrics.RecordRoomClosed(room.ID())
	}
}
