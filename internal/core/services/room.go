package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"sketchroom/internal/core/domain"
	"sketchroom/internal/core/ports"
	"sketchroom/internal/core/protocol"
	"sketchroom/pkg/tracing"
	"sketchroom/pkg/utils"

	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

const defaultMailboxSize = 64

type participant struct {
	domain.Participant
	conn ports.Connection
}

type strokeRecord struct {
	stroke *domain.Stroke
	owner  domain.ParticipantID
}

// RoomOptions configures a new room.
type RoomOptions struct {
	Name        string
	Type        domain.RoomType
	Settings    domain.RoomSettings
	SecretWord  string
	MailboxSize int
	// OnEmpty is called after the last participant leaves.
	OnEmpty func(domain.RoomID)
}

// Room is the authoritative record of one drawing session. Every mutation
// runs on the room's own goroutine, so events from all participants are
// applied and relayed in a single total order.
type Room struct {
	info    domain.RoomInfo
	logger  *zap.SugaredLogger
	metrics ports.MetricsRecorder
	invites ports.InviteIssuer
	onEmpty func(domain.RoomID)

	mailbox   chan func()
	done      chan struct{}
	closeOnce sync.Once

	// Owned by the mailbox goroutine.
	state        domain.RoomState
	participants map[domain.ParticipantID]*participant
	joinOrder    []domain.ParticipantID
	strokes      map[domain.StrokeID]*strokeRecord
	beginOrder   []domain.StrokeID
	commitOrder  []domain.StrokeID
	secretWord   string
	scores       map[domain.ParticipantID]int
	// revision counts changes to the committed board.
	revision uint64
}

func NewRoom(
	id domain.RoomID,
	opts RoomOptions,
	invites ports.InviteIssuer,
	metrics ports.MetricsRecorder,
	logger *zap.SugaredLogger,
) *Room {
	if opts.Type == "" {
		opts.Type = domain.RoomTypeFreeform
	}
	if opts.Name == "" {
		opts.Name = string(id)
	}
	size := opts.MailboxSize
	if size <= 0 {
		size = defaultMailboxSize
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	r := &Room{
		info: domain.RoomInfo{
			ID:        id,
			Name:      opts.Name,
			Type:      opts.Type,
			Settings:  opts.Settings,
			Active:    true,
			CreatedAt: time.Now(),
		},
		logger:       logger.With("room_id", id),
		metrics:      metrics,
		invites:      invites,
		onEmpty:      opts.OnEmpty,
		mailbox:      make(chan func(), size),
		done:         make(chan struct{}),
		state:        domain.RoomStateEmpty,
		participants: make(map[domain.ParticipantID]*participant),
		strokes:      make(map[domain.StrokeID]*strokeRecord),
		secretWord:   opts.SecretWord,
		scores:       make(map[domain.ParticipantID]int),
	}

	go r.run()
	return r
}

func (r *Room) ID() domain.RoomID { return r.info.ID }

func (r *Room) Info() domain.RoomInfo { return r.info }

func (r *Room) run() {
	for {
		select {
		case fn := <-r.mailbox:
			fn()
		case <-r.done:
			return
		}
	}
}

// exec runs fn on the room goroutine and waits for it to finish. ctx only
// bounds the wait for a mailbox slot; once queued, fn runs to completion
// unless the room closes first.
func (r *Room) exec(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	task := func() {
		defer close(finished)
		fn()
	}

	select {
	case r.mailbox <- task:
	case <-r.done:
		return domain.ErrRoomClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-finished:
		return nil
	case <-r.done:
		return domain.ErrRoomClosed
	}
}

// Close stops the room goroutine and closes every participant connection.
func (r *Room) Close() {
	r.closeOnce.Do(func() {
		_ = r.exec(context.Background(), func() {
			for _, p := range r.participants {
				_ = p.conn.Close()
			}
			r.participants = make(map[domain.ParticipantID]*participant)
			r.joinOrder = nil
			r.state = domain.RoomStateClosed
		})
		close(r.done)
		r.logger.Infow("Room closed")
	})
}

// closeIfEmpty closes the room only if nobody is in it. The check and the
// transition to closed happen in one mailbox turn, so a join queued behind
// it fails with ErrRoomClosed instead of landing in a dead room.
func (r *Room) closeIfEmpty(ctx context.Context) bool {
	var empty bool
	if err := r.exec(ctx, func() {
		empty = len(r.participants) == 0
		if empty {
			r.state = domain.RoomStateClosed
		}
	}); err != nil {
		return false
	}
	if empty {
		r.closeOnce.Do(func() {
			close(r.done)
			r.logger.Infow("Room closed")
		})
	}
	return empty
}

func (r *Room) unicast(p *participant, env protocol.Envelope) {
	if err := p.conn.Send(env); err != nil {
		r.metrics.RecordRelayDropped()
		r.logger.Debugw("Dropped message",
			"participant_id", p.ID,
			"type", env.Type,
			"error", err,
		)
	}
}

func (r *Room) broadcastExcept(from domain.ParticipantID, env protocol.Envelope) {
	for _, id := range r.joinOrder {
		if id == from {
			continue
		}
		r.unicast(r.participants[id], env)
	}
}

func (r *Room) broadcastAll(env protocol.Envelope) {
	r.broadcastExcept("", env)
}

// traced runs op inside a room operation span and marks the span with
// its outcome.
func (r *Room) traced(ctx context.Context, operation string, op func(context.Context) error) error {
	ctx, span := tracing.TraceRoomOperation(ctx, operation, string(r.info.ID))
	defer span.End()

	if err := op(ctx); err != nil {
		tracing.RecordError(ctx, err)
		return err
	}
	tracing.SetSpanStatus(ctx, codes.Ok, "")
	return nil
}

// Join registers conn as a participant. The newcomer receives join_ack,
// roster and board_sync before any relay queued behind this call.
func (r *Room) Join(ctx context.Context, conn ports.Connection, displayName, token string) (domain.Participant, error) {
	var joined domain.Participant
	err := r.traced(ctx, "join", func(ctx context.Context) error {
		var err error
		joined, err = r.join(ctx, conn, displayName, token)
		return err
	})
	return joined, err
}

func (r *Room) join(ctx context.Context, conn ports.Connection, displayName, token string) (domain.Participant, error) {
	if r.info.Settings.IsPrivate {
		if r.invites == nil {
			return domain.Participant{}, domain.ErrInvalidInvite
		}
		if err := r.invites.VerifyInvite(token, r.info.ID); err != nil {
			return domain.Participant{}, err
		}
	}

	p := &participant{
		Participant: domain.Participant{
			ID:          conn.ID(),
			DisplayName: utils.SanitizeString(displayName),
			JoinedAt:    time.Now(),
		},
		conn: conn,
	}

	var joinErr error
	err := r.exec(ctx, func() {
		if r.state == domain.RoomStateClosed {
			joinErr = domain.ErrRoomClosed
			return
		}
		if _, exists := r.participants[p.ID]; exists {
			joinErr = domain.ErrAlreadyJoined
			return
		}

		roster := make([]protocol.RosterEntry, 0, len(r.joinOrder))
		for _, id := range r.joinOrder {
			other := r.participants[id]
			roster = append(roster, protocol.RosterEntry{ParticipantID: other.ID, DisplayName: other.DisplayName})
		}

		r.participants[p.ID] = p
		r.joinOrder = append(r.joinOrder, p.ID)
		r.state = domain.RoomStateActive

		r.unicast(p, protocol.MustEnvelope(protocol.TypeJoinAck, protocol.JoinAckPayload{
			ParticipantID: p.ID,
			RoomID:        r.info.ID,
			DisplayName:   p.DisplayName,
		}))
		r.broadcastExcept(p.ID, protocol.MustEnvelope(protocol.TypeRosterAdd, protocol.RosterChangePayload{
			ParticipantID: p.ID,
			DisplayName:   p.DisplayName,
		}))
		r.unicast(p, protocol.MustEnvelope(protocol.TypeRoster, protocol.RosterPayload{Participants: roster}))
		r.unicast(p, protocol.MustEnvelope(protocol.TypeBoardSync, protocol.BoardSyncPayload{Strokes: r.boardStrokes()}))

		r.metrics.RecordParticipantJoined(r.info.ID)
		r.logger.Infow("Participant joined",
			"participant_id", p.ID,
			"display_name", p.DisplayName,
			"participants", len(r.participants),
			"strokes", len(r.strokes),
		)
	})
	if err != nil {
		return domain.Participant{}, err
	}
	if joinErr != nil {
		return domain.Participant{}, joinErr
	}
	return p.Participant, nil
}

// Leave removes the participant and notifies the rest of the room.
func (r *Room) Leave(ctx context.Context, id domain.ParticipantID) error {
	return r.traced(ctx, "leave", func(ctx context.Context) error {
		return r.leave(ctx, id)
	})
}

func (r *Room) leave(ctx context.Context, id domain.ParticipantID) error {
	var leaveErr error
	var nowEmpty bool
	err := r.exec(ctx, func() {
		p, ok := r.participants[id]
		if !ok {
			leaveErr = domain.ErrParticipantNotFound
			return
		}
		delete(r.participants, id)
		for i, pid := range r.joinOrder {
			if pid == id {
				r.joinOrder = append(r.joinOrder[:i], r.joinOrder[i+1:]...)
				break
			}
		}

		r.broadcastAll(protocol.MustEnvelope(protocol.TypeRosterRemove, protocol.RosterChangePayload{
			ParticipantID: p.ID,
			DisplayName:   p.DisplayName,
		}))

		r.metrics.RecordParticipantLeft(r.info.ID)
		r.logger.Infow("Participant left",
			"participant_id", p.ID,
			"display_name", p.DisplayName,
			"participants", len(r.participants),
		)

		if len(r.participants) == 0 {
			r.state = domain.RoomStateEmpty
			nowEmpty = true
		}
	})
	if err != nil {
		return err
	}
	if nowEmpty && r.onEmpty != nil {
		r.onEmpty(r.info.ID)
	}
	return leaveErr
}

// BeginStroke records a new stroke and relays it to every other participant.
// A begin for an id the room already holds is rejected.
func (r *Room) BeginStroke(ctx context.Context, from domain.ParticipantID, payload protocol.StrokeBeginPayload) error {
	if err := payload.Validate(r.info.Settings.Width, r.info.Settings.Height); err != nil {
		return err
	}

	var opErr error
	err := r.exec(ctx, func() {
		if _, ok := r.participants[from]; !ok {
			opErr = domain.ErrParticipantNotFound
			return
		}
		id := domain.StrokeID(payload.StrokeID)
		if _, exists := r.strokes[id]; exists {
			opErr = fmt.Errorf("%w: %s", domain.ErrStrokeExists, id)
			return
		}

		stroke := domain.BeginStroke(id, payload.Layer, payload.Tool, payload.Point.ToPoint())
		r.strokes[id] = &strokeRecord{stroke: stroke, owner: from}
		r.beginOrder = append(r.beginOrder, id)

		payload.ParticipantID = from
		payload.Tool = stroke.Tool
		r.broadcastExcept(from, protocol.MustEnvelope(protocol.TypeStrokeBegin, payload))
		r.metrics.RecordStrokeEvent(protocol.TypeStrokeBegin)
	})
	if err != nil {
		return err
	}
	return opErr
}

// UpdateStroke appends points to an in-progress stroke and relays them.
// Updates for unknown, finished or foreign strokes are dropped without relay.
func (r *Room) UpdateStroke(ctx context.Context, from domain.ParticipantID, payload protocol.StrokeUpdatePayload) error {
	if err := payload.Validate(r.info.Settings.Width, r.info.Settings.Height); err != nil {
		return err
	}

	return r.exec(ctx, func() {
		rec := r.liveStroke(from, protocol.TypeStrokeUpdate, payload.StrokeID)
		if rec == nil {
			return
		}
		if err := rec.stroke.AddPoints(protocol.ToPoints(payload.Points)); err != nil {
			r.logger.Warnw("Failed to append points", "stroke_id", payload.StrokeID, "error", err)
			return
		}
		r.broadcastExcept(from, protocol.MustEnvelope(protocol.TypeStrokeUpdate, payload))
		r.metrics.RecordStrokeEvent(protocol.TypeStrokeUpdate)
	})
}

// EndStroke finalizes a stroke, moving it to the committed history.
func (r *Room) EndStroke(ctx context.Context, from domain.ParticipantID, payload protocol.StrokeEndPayload) error {
	if err := payload.Validate(); err != nil {
		return err
	}

	return r.exec(ctx, func() {
		rec := r.liveStroke(from, protocol.TypeStrokeEnd, payload.StrokeID)
		if rec == nil {
			return
		}
		rec.stroke.End()
		r.commitOrder = append(r.commitOrder, rec.stroke.ID)
		r.revision++
		r.broadcastExcept(from, protocol.MustEnvelope(protocol.TypeStrokeEnd, payload))
		r.metrics.RecordStrokeEvent(protocol.TypeStrokeEnd)
	})
}

// liveStroke looks up an in-progress stroke for an update or end. Events
// for unknown or finished strokes, or from anyone but the participant who
// began the stroke, yield nil and are counted as orphans.
func (r *Room) liveStroke(from domain.ParticipantID, kind protocol.MessageType, strokeID string) *strokeRecord {
	if _, ok := r.participants[from]; !ok {
		return nil
	}
	rec, ok := r.strokes[domain.StrokeID(strokeID)]
	if !ok || rec.stroke.Complete || rec.owner != from {
		r.metrics.RecordOrphanStrokeEvent(kind)
		r.logger.Debugw("Dropping orphan stroke event",
			"type", kind,
			"stroke_id", strokeID,
			"participant_id", from,
			"known", ok,
			"owned", ok && rec.owner == from,
		)
		return nil
	}
	return rec
}

// Chat relays a chat line. In a guessing game a correct guess is swallowed
// and announced to the whole room instead.
func (r *Room) Chat(ctx context.Context, from domain.ParticipantID, payload protocol.ChatPayload) error {
	if err := payload.Validate(); err != nil {
		return err
	}

	var opErr error
	err := r.exec(ctx, func() {
		p, ok := r.participants[from]
		if !ok {
			opErr = domain.ErrParticipantNotFound
			return
		}
		payload.ParticipantID = p.ID
		payload.DisplayName = p.DisplayName

		if r.info.Type == domain.RoomTypeGuessingGame && r.isCorrectGuess(payload.Text) {
			r.scores[p.ID]++
			r.broadcastAll(protocol.MustEnvelope(protocol.TypeGuessCorrect, protocol.GuessCorrectPayload{
				ParticipantID: p.ID,
				DisplayName:   p.DisplayName,
				Score:         r.scores[p.ID],
			}))
			r.logger.Infow("Correct guess", "participant_id", p.ID, "score", r.scores[p.ID])
			return
		}

		r.broadcastExcept(from, protocol.MustEnvelope(protocol.TypeChat, payload))
	})
	if err != nil {
		return err
	}
	return opErr
}

func (r *Room) isCorrectGuess(text string) bool {
	if r.secretWord == "" {
		return false
	}
	return utils.NormalizeGuess(text) == utils.NormalizeGuess(r.secretWord)
}

// SetSecretWord replaces the guessing game word.
func (r *Room) SetSecretWord(ctx context.Context, word string) error {
	return r.exec(ctx, func() {
		r.secretWord = word
	})
}

// Clear drops every stroke record. from is excluded from the relay; an
// empty from reaches every participant.
func (r *Room) Clear(ctx context.Context, from domain.ParticipantID) error {
	return r.traced(ctx, "clear", func(ctx context.Context) error {
		return r.clear(ctx, from)
	})
}

func (r *Room) clear(ctx context.Context, from domain.ParticipantID) error {
	var opErr error
	err := r.exec(ctx, func() {
		if from != "" {
			if _, ok := r.participants[from]; !ok {
				opErr = domain.ErrParticipantNotFound
				return
			}
		}
		cleared := len(r.strokes)
		r.strokes = make(map[domain.StrokeID]*strokeRecord)
		r.beginOrder = nil
		r.commitOrder = nil
		r.revision++

		r.broadcastExcept(from, protocol.MustEnvelope(protocol.TypeClear, protocol.ClearPayload{ParticipantID: from}))
		r.logger.Infow("Board cleared", "participant_id", from, "strokes", cleared)
	})
	if err != nil {
		return err
	}
	return opErr
}

// boardStrokes lists completed strokes in commit order followed by
// in-progress strokes in begin order.
func (r *Room) boardStrokes() []protocol.BoardStroke {
	out := make([]protocol.BoardStroke, 0, len(r.strokes))
	for _, id := range r.commitOrder {
		out = append(out, protocol.FromStroke(r.strokes[id].stroke))
	}
	for _, id := range r.beginOrder {
		if s := r.strokes[id].stroke; !s.Complete {
			out = append(out, protocol.FromStroke(s))
		}
	}
	return out
}

// Snapshot returns deep copies of the history in board sync order.
func (r *Room) Snapshot(ctx context.Context) ([]*domain.Stroke, error) {
	var out []*domain.Stroke
	err := r.exec(ctx, func() {
		out = make([]*domain.Stroke, 0, len(r.strokes))
		for _, id := range r.commitOrder {
			out = append(out, r.strokes[id].stroke.Clone())
		}
		for _, id := range r.beginOrder {
			if s := r.strokes[id].stroke; !s.Complete {
				out = append(out, s.Clone())
			}
		}
	})
	return out, err
}

// Participants lists current members in join order.
func (r *Room) Participants(ctx context.Context) ([]domain.Participant, error) {
	var out []domain.Participant
	err := r.exec(ctx, func() {
		out = make([]domain.Participant, 0, len(r.joinOrder))
		for _, id := range r.joinOrder {
			out = append(out, r.participants[id].Participant)
		}
	})
	return out, err
}

func (r *Room) Stats(ctx context.Context) (domain.RoomStats, error) {
	var stats domain.RoomStats
	err := r.exec(ctx, func() {
		scores := make(map[domain.ParticipantID]int, len(r.scores))
		for id, s := range r.scores {
			scores[id] = s
		}
		stats = domain.RoomStats{
			RoomID:           r.info.ID,
			State:            r.state,
			Participants:     len(r.participants),
			Strokes:          len(r.strokes),
			StrokesCommitted: len(r.commitOrder),
			Revision:         r.revision,
			Scores:           scores,
		}
	})
	return stats, err
}
