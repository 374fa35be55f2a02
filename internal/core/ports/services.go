package ports

import (
	"time"

	"sketchroom/internal/core/domain"
	"sketchroom/internal/core/protocol"
)

// Connection is one participant's outbound channel. Send must not block:
// implementations enqueue and report domain.ErrSendBufferFull when the peer is
// too slow to keep up.
type Connection interface {
	ID() domain.ParticipantID
	Send(env protocol.Envelope) error
	Close() error
}

// InviteIssuer signs and verifies private room invite tokens.
type InviteIssuer interface {
	IssueInvite(roomID domain.RoomID) (string, error)
	VerifyInvite(token string, roomID domain.RoomID) error
}

// MetricsRecorder receives room level events for export.
type MetricsRecorder interface {
	RecordRoomOpened(roomID domain.RoomID)
	RecordRoomClosed(roomID domain.RoomID)
	RecordParticipantJoined(roomID domain.RoomID)
	RecordParticipantLeft(roomID domain.RoomID)
	RecordStrokeEvent(kind protocol.MessageType)
	RecordOrphanStrokeEvent(kind protocol.MessageType)
	RecordRelayDropped()
	RecordMessageReceived(kind protocol.MessageType)
	RecordReplayDuration(d time.Duration)
}
