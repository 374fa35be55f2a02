package client

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"sketchroom/internal/core/domain"
	"sketchroom/internal/core/protocol"
	"sketchroom/internal/render"
	"sketchroom/pkg/utils"

	"go.uber.org/zap"
)

const MaxLayers = domain.MaxLayers

var (
	ErrNoLocalStroke     = errors.New("no local stroke in progress")
	ErrLocalStrokeActive = errors.New("local stroke already in progress")
	ErrNotJoined         = errors.New("not joined to a room")
)

// ServerError is an error envelope received from the server.
type ServerError struct {
	Code    string
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error %s: %s", e.Code, e.Message)
}

type ChatLine struct {
	ParticipantID domain.ParticipantID
	DisplayName   string
	Text          string
}

type layer struct {
	canvas *render.Canvas
	// active holds in-progress strokes in begin order.
	active []*domain.Stroke
}

// Board is a client's view of a room: one canvas per layer, the strokes
// still being drawn, the roster and guessing game scores. Local and remote
// events are applied under one lock, so the board never observes a
// partially applied message.
type Board struct {
	mu sync.Mutex

	width, height int
	layers        map[int]*layer
	strokes       map[domain.StrokeID]*domain.Stroke

	self        domain.ParticipantID
	roomID      domain.RoomID
	roster      []protocol.RosterEntry
	scores      map[domain.ParticipantID]int
	chat        []ChatLine
	local       *domain.Stroke
	activeLayer int

	logger *zap.SugaredLogger
}

func NewBoard(width, height int, logger *zap.SugaredLogger) *Board {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Board{
		width:   width,
		height:  height,
		layers:  make(map[int]*layer),
		strokes: make(map[domain.StrokeID]*domain.Stroke),
		scores:  make(map[domain.ParticipantID]int),
		logger:  logger,
	}
}

func (b *Board) layerFor(n int) (*layer, error) {
	if n < 0 || n >= MaxLayers {
		return nil, fmt.Errorf("%w: layer %d out of range", protocol.ErrInvalidPayload, n)
	}
	l, ok := b.layers[n]
	if !ok {
		l = &layer{canvas: render.NewCanvas(b.width, b.height, render.WithLogger(b.logger))}
		b.layers[n] = l
	}
	return l, nil
}

// refresh redraws the layer as committed pixels plus its live strokes.
func (l *layer) refresh() error {
	return l.canvas.ReplayAll(l.active)
}

func (l *layer) remove(id domain.StrokeID) {
	for i, s := range l.active {
		if s.ID == id {
			l.active = append(l.active[:i], l.active[i+1:]...)
			return
		}
	}
}

func (b *Board) begin(s *domain.Stroke) error {
	if _, exists := b.strokes[s.ID]; exists {
		return domain.ErrStrokeExists
	}
	l, err := b.layerFor(s.Layer)
	if err != nil {
		return err
	}
	b.strokes[s.ID] = s
	l.active = append(l.active, s)
	return l.refresh()
}

func (b *Board) extend(s *domain.Stroke, points []domain.Point) error {
	if err := s.AddPoints(points); err != nil {
		return err
	}
	return b.layers[s.Layer].refresh()
}

// finish commits s to its layer and redraws the strokes still in flight.
func (b *Board) finish(s *domain.Stroke) error {
	s.End()
	l := b.layers[s.Layer]
	l.remove(s.ID)
	delete(b.strokes, s.ID)
	if err := l.canvas.Commit(s); err != nil {
		return err
	}
	return l.refresh()
}

func (b *Board) reset() {
	for _, l := range b.layers {
		l.canvas.Clear()
		l.active = nil
	}
	b.strokes = make(map[domain.StrokeID]*domain.Stroke)
	b.local = nil
}

// SetLayer selects the layer new local strokes are drawn on.
func (b *Board) SetLayer(n int) error {
	if n < 0 || n >= MaxLayers {
		return fmt.Errorf("%w: layer %d out of range", protocol.ErrInvalidPayload, n)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.activeLayer = n
	return nil
}

// BeginLocalStroke starts a stroke drawn by this client and returns the
// message announcing it.
func (b *Board) BeginLocalStroke(tool domain.Tool, p domain.Point) (protocol.Envelope, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.local != nil {
		return protocol.Envelope{}, ErrLocalStrokeActive
	}
	if err := tool.Validate(); err != nil {
		return protocol.Envelope{}, err
	}
	if err := p.Validate(b.width, b.height); err != nil {
		return protocol.Envelope{}, err
	}

	s := domain.BeginStroke(domain.StrokeID(utils.GenerateStrokeID()), b.activeLayer, tool, p)
	if err := b.begin(s); err != nil {
		return protocol.Envelope{}, err
	}
	b.local = s

	return protocol.NewEnvelope(protocol.TypeStrokeBegin, protocol.StrokeBeginPayload{
		StrokeID: string(s.ID),
		Layer:    s.Layer,
		Tool:     s.Tool,
		Point:    protocol.FromPoint(p),
	})
}

func (b *Board) ExtendLocalStroke(points []domain.Point) (protocol.Envelope, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.local == nil {
		return protocol.Envelope{}, ErrNoLocalStroke
	}
	for _, p := range points {
		if err := p.Validate(b.width, b.height); err != nil {
			return protocol.Envelope{}, err
		}
	}
	if err := b.extend(b.local, points); err != nil {
		return protocol.Envelope{}, err
	}

	return protocol.NewEnvelope(protocol.TypeStrokeUpdate, protocol.StrokeUpdatePayload{
		StrokeID: string(b.local.ID),
		Points:   protocol.FromPoints(points),
	})
}

func (b *Board) EndLocalStroke() (protocol.Envelope, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.local == nil {
		return protocol.Envelope{}, ErrNoLocalStroke
	}
	s := b.local
	b.local = nil
	if err := b.finish(s); err != nil {
		return protocol.Envelope{}, err
	}

	return protocol.NewEnvelope(protocol.TypeStrokeEnd, protocol.StrokeEndPayload{StrokeID: string(s.ID)})
}

// ClearLocal wipes the board and returns the clear message to send.
func (b *Board) ClearLocal() (protocol.Envelope, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reset()
	return protocol.NewEnvelope(protocol.TypeClear, protocol.ClearPayload{})
}

// Apply applies one message received from the server. Error envelopes are
// returned as *ServerError; update or end events for strokes the board does
// not know are dropped.
func (b *Board) Apply(env protocol.Envelope) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch env.Type {
	case protocol.TypeJoinAck:
		var p protocol.JoinAckPayload
		if err := env.DecodePayload(&p); err != nil {
			return err
		}
		b.self = p.ParticipantID
		b.roomID = p.RoomID
		return nil

	case protocol.TypeRoster:
		var p protocol.RosterPayload
		if err := env.DecodePayload(&p); err != nil {
			return err
		}
		b.roster = append([]protocol.RosterEntry(nil), p.Participants...)
		return nil

	case protocol.TypeRosterAdd:
		var p protocol.RosterChangePayload
		if err := env.DecodePayload(&p); err != nil {
			return err
		}
		b.roster = append(b.roster, p)
		return nil

	case protocol.TypeRosterRemove:
		var p protocol.RosterChangePayload
		if err := env.DecodePayload(&p); err != nil {
			return err
		}
		for i, e := range b.roster {
			if e.ParticipantID == p.ParticipantID {
				b.roster = append(b.roster[:i], b.roster[i+1:]...)
				break
			}
		}
		return nil

	case protocol.TypeBoardSync:
		var p protocol.BoardSyncPayload
		if err := env.DecodePayload(&p); err != nil {
			return err
		}
		return b.applyBoardSync(p)

	case protocol.TypeStrokeBegin:
		var p protocol.StrokeBeginPayload
		if err := env.DecodePayload(&p); err != nil {
			return err
		}
		s := domain.BeginStroke(domain.StrokeID(p.StrokeID), p.Layer, p.Tool, p.Point.ToPoint())
		return b.begin(s)

	case protocol.TypeStrokeUpdate:
		var p protocol.StrokeUpdatePayload
		if err := env.DecodePayload(&p); err != nil {
			return err
		}
		s, ok := b.strokes[domain.StrokeID(p.StrokeID)]
		if !ok {
			b.logger.Debugw("Dropping update for unknown stroke", "stroke_id", p.StrokeID)
			return nil
		}
		return b.extend(s, protocol.ToPoints(p.Points))

	case protocol.TypeStrokeEnd:
		var p protocol.StrokeEndPayload
		if err := env.DecodePayload(&p); err != nil {
			return err
		}
		s, ok := b.strokes[domain.StrokeID(p.StrokeID)]
		if !ok {
			b.logger.Debugw("Dropping end for unknown stroke", "stroke_id", p.StrokeID)
			return nil
		}
		return b.finish(s)

	case protocol.TypeChat:
		var p protocol.ChatPayload
		if err := env.DecodePayload(&p); err != nil {
			return err
		}
		b.chat = append(b.chat, ChatLine{ParticipantID: p.ParticipantID, DisplayName: p.DisplayName, Text: p.Text})
		return nil

	case protocol.TypeClear:
		b.reset()
		return nil

	case protocol.TypeGuessCorrect:
		var p protocol.GuessCorrectPayload
		if err := env.DecodePayload(&p); err != nil {
			return err
		}
		b.scores[p.ParticipantID] = p.Score
		return nil

	case protocol.TypeError:
		var p protocol.ErrorPayload
		if err := env.DecodePayload(&p); err != nil {
			return err
		}
		return &ServerError{Code: p.Code, Message: p.Message}
	}

	return fmt.Errorf("%w: %s is not sent by the server", protocol.ErrUnknownType, env.Type)
}

// applyBoardSync rebuilds every layer from the authoritative history:
// completed strokes are committed in order, in-progress strokes become live.
func (b *Board) applyBoardSync(p protocol.BoardSyncPayload) error {
	b.reset()

	for _, bs := range p.Strokes {
		s, err := bs.ToStroke()
		if err != nil {
			return err
		}
		l, err := b.layerFor(s.Layer)
		if err != nil {
			return err
		}
		if s.Complete {
			if err := l.canvas.Commit(s); err != nil {
				return err
			}
			continue
		}
		b.strokes[s.ID] = s
		l.active = append(l.active, s)
	}

	for _, l := range b.layers {
		if err := l.refresh(); err != nil {
			return err
		}
	}
	b.logger.Debugw("Board synced", "strokes", len(p.Strokes), "layers", len(b.layers))
	return nil
}

// Composite flattens every layer, lowest index first, onto a new surface.
func (b *Board) Composite() (*render.Surface, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := render.NewSurface(b.width, b.height)
	indices := make([]int, 0, len(b.layers))
	for n := range b.layers {
		indices = append(indices, n)
	}
	sort.Ints(indices)

	for _, n := range indices {
		if err := out.DrawSurface(b.layers[n].canvas.Visible()); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (b *Board) Self() domain.ParticipantID {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.self
}

func (b *Board) RoomID() domain.RoomID {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.roomID
}

func (b *Board) Roster() []protocol.RosterEntry {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]protocol.RosterEntry(nil), b.roster...)
}

func (b *Board) Scores() map[domain.ParticipantID]int {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[domain.ParticipantID]int, len(b.scores))
	for id, s := range b.scores {
		out[id] = s
	}
	return out
}

func (b *Board) Chat() []ChatLine {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]ChatLine(nil), b.chat...)
}

// InProgress counts strokes that have begun but not ended.
func (b *Board) InProgress() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.strokes)
}

func (b *Board) Size() (int, int) {
	return b.width, b.height
}
