package domain

import "errors"

var (
	ErrRoomNotFound        = errors.New("room not found")
	ErrRoomClosed          = errors.New("room closed")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrAlreadyJoined       = errors.New("participant already joined")
	ErrStrokeNotFound      = errors.New("stroke not found")
	ErrStrokeExists        = errors.New("stroke already exists")
	ErrStrokeComplete      = errors.New("stroke already complete")
	ErrSnapshotNotFound    = errors.New("snapshot not found")
	ErrInvalidTool         = errors.New("invalid tool")
	ErrInvalidPoint        = errors.New("invalid point")
	ErrInvalidInvite       = errors.New("invalid invite token")
	ErrSendBufferFull      = errors.New("send buffer full")
)
