package protocol

import "errors"

var (
	ErrMalformed      = errors.New("malformed message")
	ErrUnknownType    = errors.New("unknown message type")
	ErrInvalidPayload = errors.New("invalid payload")
	// ErrOutOfOrder covers messages that are valid on their own but not in
	// the current session state, such as a stroke before join.
	ErrOutOfOrder = errors.New("message out of order")
)
