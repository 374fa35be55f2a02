package protocol

import (
	"encoding/json"
	"fmt"

	"sketchroom/internal/core/domain"
)

type MessageType string

const (
	TypeJoin         MessageType = "join"
	TypeJoinAck      MessageType = "join_ack"
	TypeRoster       MessageType = "roster"
	TypeRosterAdd    MessageType = "roster_add"
	TypeRosterRemove MessageType = "roster_remove"
	TypeBoardSync    MessageType = "board_sync"
	TypeStrokeBegin  MessageType = "stroke_begin"
	TypeStrokeUpdate MessageType = "stroke_update"
	TypeStrokeEnd    MessageType = "stroke_end"
	TypeChat         MessageType = "chat"
	TypeClear        MessageType = "clear"
	TypeGuessCorrect MessageType = "guess_correct"
	TypeError        MessageType = "error"
)

var knownTypes = map[MessageType]struct{}{
	TypeJoin: {}, TypeJoinAck: {}, TypeRoster: {}, TypeRosterAdd: {}, TypeRosterRemove: {},
	TypeBoardSync: {}, TypeStrokeBegin: {}, TypeStrokeUpdate: {}, TypeStrokeEnd: {},
	TypeChat: {}, TypeClear: {}, TypeGuessCorrect: {}, TypeError: {},
}

// Envelope is the single frame shape exchanged over the socket.
type Envelope struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type JoinPayload struct {
	RoomID      string `json:"room_id"`
	DisplayName string `json:"display_name"`
	Token       string `json:"token,omitempty"`
}

type JoinAckPayload struct {
	ParticipantID domain.ParticipantID `json:"participant_id"`
	RoomID        domain.RoomID        `json:"room_id"`
	DisplayName   string               `json:"display_name"`
}

type RosterEntry struct {
	ParticipantID domain.ParticipantID `json:"participant_id"`
	DisplayName   string               `json:"display_name"`
}

type RosterPayload struct {
	Participants []RosterEntry `json:"participants"`
}

// RosterChangePayload is shared by roster_add and roster_remove.
type RosterChangePayload = RosterEntry

// WirePoint omits pressure when the sender has none; absent means 1.0.
type WirePoint struct {
	X float64  `json:"x"`
	Y float64  `json:"y"`
	P *float64 `json:"p,omitempty"`
}

type BoardStroke struct {
	StrokeID string      `json:"stroke_id"`
	Layer    int         `json:"layer"`
	Tool     domain.Tool `json:"tool"`
	Points   []WirePoint `json:"points"`
	Complete bool        `json:"complete"`
}

type BoardSyncPayload struct {
	Strokes []BoardStroke `json:"strokes"`
}

type StrokeBeginPayload struct {
	StrokeID      string               `json:"stroke_id"`
	Layer         int                  `json:"layer"`
	Tool          domain.Tool          `json:"tool"`
	Point         WirePoint            `json:"point"`
	ParticipantID domain.ParticipantID `json:"participant_id,omitempty"`
}

type StrokeUpdatePayload struct {
	StrokeID string      `json:"stroke_id"`
	Points   []WirePoint `json:"points"`
}

type StrokeEndPayload struct {
	StrokeID string `json:"stroke_id"`
}

type ChatPayload struct {
	Text          string               `json:"text"`
	ParticipantID domain.ParticipantID `json:"participant_id,omitempty"`
	DisplayName   string               `json:"display_name,omitempty"`
}

type ClearPayload struct {
	ParticipantID domain.ParticipantID `json:"participant_id,omitempty"`
}

type GuessCorrectPayload struct {
	ParticipantID domain.ParticipantID `json:"participant_id"`
	DisplayName   string               `json:"display_name"`
	Score         int                  `json:"score"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewEnvelope marshals payload into an envelope of the given type.
func NewEnvelope(t MessageType, payload interface{}) (Envelope, error) {
	env := Envelope{Type: t}
	if payload == nil {
		return env, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to marshal %s payload: %w", t, err)
	}
	env.Payload = raw
	return env, nil
}

// MustEnvelope is NewEnvelope for payloads built from plain structs, which
// cannot fail to marshal.
func MustEnvelope(t MessageType, payload interface{}) Envelope {
	env, err := NewEnvelope(t, payload)
	if err != nil {
		panic(err)
	}
	return env
}

// NewError builds an error envelope.
func NewError(code, message string) Envelope {
	return MustEnvelope(TypeError, ErrorPayload{Code: code, Message: message})
}

func Encode(env Envelope) ([]byte, error) {
	return json.Marshal(env)
}

// Decode parses a frame and rejects unknown message types.
func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if _, ok := knownTypes[env.Type]; !ok {
		return Envelope{}, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
	return env, nil
}

// DecodePayload unmarshals the envelope payload into v.
func (e Envelope) DecodePayload(v interface{}) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("%w: %s has no payload", ErrMalformed, e.Type)
	}
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("%w: %s payload: %v", ErrMalformed, e.Type, err)
	}
	return nil
}
