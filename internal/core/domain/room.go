package domain

import "time"

type RoomID string
type ParticipantID string

type RoomType string

const (
	RoomTypeFreeform     RoomType = "freeform"
	RoomTypeGuessingGame RoomType = "guessing_game"
)

func (t RoomType) Valid() bool {
	switch t {
	case RoomTypeFreeform, RoomTypeGuessingGame:
		return true
	}
	return false
}

// RoomState tracks the room lifecycle. A room only ever moves between
// empty and active; closed is terminal and reached on teardown.
type RoomState string

const (
	RoomStateEmpty  RoomState = "empty"
	RoomStateActive RoomState = "active"
	RoomStateClosed RoomState = "closed"
)

type RoomSettings struct {
	IsPrivate bool `json:"is_private"`
	Width     int  `json:"width"`
	Height    int  `json:"height"`
}

// RoomInfo is the directory entry kept in the room repository.
type RoomInfo struct {
	ID        RoomID       `json:"id"`
	Name      string       `json:"name"`
	Type      RoomType     `json:"type"`
	Settings  RoomSettings `json:"settings"`
	Active    bool         `json:"active"`
	CreatedAt time.Time    `json:"created_at"`
}

type Participant struct {
	ID          ParticipantID `json:"participant_id"`
	DisplayName string        `json:"display_name"`
	JoinedAt    time.Time     `json:"joined_at"`
}

type RoomStats struct {
	RoomID           RoomID                `json:"room_id"`
	State            RoomState             `json:"state"`
	Participants     int                   `json:"participants"`
	Strokes          int                   `json:"strokes"`
	StrokesCommitted int                   `json:"strokes_committed"`
	Revision         uint64                `json:"revision"`
	Scores           map[ParticipantID]int `json:"scores,omitempty"`
}

// RoomRole is carried in room scoped tokens.
type RoomRole string

const (
	RoleGuest RoomRole = "guest"
	RoleOwner RoomRole = "owner"
)
