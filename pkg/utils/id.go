package utils

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// GenerateParticipantID generates a server assigned participant ID
func GenerateParticipantID() string {
	return uuid.NewString()
}

// GenerateRoomID generates a short URL safe room ID
func GenerateRoomID() string {
	return GenerateID("room")
}

// GenerateStrokeID generates a stroke ID unique across participants
func GenerateStrokeID() string {
	return uuid.NewString()
}

// GenerateRequestID generates a unique request ID
func GenerateRequestID() string {
	return fmt.Sprintf("req_%d_%s", time.Now().UnixNano(), GenerateID("")[1:9])
}

// GenerateID generates a random ID with prefix
func GenerateID(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, strings.ReplaceAll(uuid.NewString(), "-", "")[:16])
}
