package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	// RoomIDRegex validates room ID format
	RoomIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

	// StrokeIDRegex validates client supplied stroke IDs
	StrokeIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_.:-]+$`)

	// HexColorRegex validates #rgb, #rgba, #rrggbb and #rrggbbaa colors
	HexColorRegex = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{4}|[0-9a-fA-F]{6}|[0-9a-fA-F]{8})$`)
)

// ValidateRoomID validates room ID
func ValidateRoomID(roomID string) error {
	if roomID == "" {
		return fmt.Errorf("room ID is required")
	}
	if len(roomID) > 100 {
		return fmt.Errorf("room ID is too long (max 100 characters)")
	}
	if !RoomIDRegex.MatchString(roomID) {
		return fmt.Errorf("invalid room ID format")
	}
	return nil
}

// ValidateStrokeID validates stroke ID
func ValidateStrokeID(strokeID string) error {
	if strokeID == "" {
		return fmt.Errorf("stroke ID is required")
	}
	if len(strokeID) > 128 {
		return fmt.Errorf("stroke ID is too long (max 128 characters)")
	}
	if !StrokeIDRegex.MatchString(strokeID) {
		return fmt.Errorf("invalid stroke ID format")
	}
	return nil
}

// ValidateDisplayName validates a participant display name
func ValidateDisplayName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("display name is required")
	}
	if !utf8.ValidString(name) {
		return fmt.Errorf("display name contains invalid characters")
	}
	return ValidateStringLength(name, 1, 40, "display name")
}

// ValidateRoomName validates room name
func ValidateRoomName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("room name is required")
	}
	if !utf8.ValidString(name) {
		return fmt.Errorf("room name contains invalid characters")
	}
	return ValidateStringLength(name, 1, 100, "room name")
}

// ValidateHexColor validates a CSS style hex color
func ValidateHexColor(color string) error {
	if !HexColorRegex.MatchString(color) {
		return fmt.Errorf("invalid color %q (expected #rgb or #rrggbb)", color)
	}
	return nil
}

// ValidateChatText validates chat message text
func ValidateChatText(text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("chat text is required")
	}
	return ValidateStringLength(text, 1, 500, "chat text")
}

// ValidateSecretWord validates a guessing game word
func ValidateSecretWord(word string) error {
	word = strings.TrimSpace(word)
	if word == "" {
		return fmt.Errorf("secret word is required")
	}
	return ValidateStringLength(word, 1, 64, "secret word")
}

// ValidateNonEmptyString validates that string is not empty after trimming
func ValidateNonEmptyString(s, fieldName string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return fmt.Errorf("%s is required", fieldName)
	}
	return nil
}

// ValidateStringLength validates string length
func ValidateStringLength(s string, min, max int, fieldName string) error {
	length := utf8.RuneCountInString(s)
	if length < min {
		return fmt.Errorf("%s must be at least %d characters", fieldName, min)
	}
	if length > max {
		return fmt.Errorf("%s is too long (max %d characters)", fieldName, max)
	}
	return nil
}

// ValidateSnapshotName validates a stored canvas name
func ValidateSnapshotName(name string) error {
	if name == "" {
		return fmt.Errorf("snapshot name is required")
	}
	if len(name) > 100 {
		return fmt.Errorf("snapshot name is too long (max 100 characters)")
	}
	if !RoomIDRegex.MatchString(name) {
		return fmt.Errorf("invalid snapshot name format")
	}
	return nil
}
