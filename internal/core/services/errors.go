package services

import (
	"context"
	"net/http"

	"sketchroom/internal/core/domain"
	"sketchroom/internal/core/protocol"
	"sketchroom/pkg/circuitbreaker"
	apperrors "sketchroom/pkg/errors"
	"sketchroom/pkg/retry"
)

var errorMappings = []apperrors.Mapping{
	{Target: protocol.ErrMalformed, Code: apperrors.ErrCodeInvalidInput, HTTPStatus: http.StatusBadRequest},
	{Target: protocol.ErrUnknownType, Code: apperrors.ErrCodeInvalidInput, HTTPStatus: http.StatusBadRequest},
	{Target: protocol.ErrOutOfOrder, Code: apperrors.ErrCodeInvalidInput, HTTPStatus: http.StatusBadRequest},
	{Target: protocol.ErrInvalidPayload, Code: apperrors.ErrCodeInvalidInput, HTTPStatus: http.StatusBadRequest},
	{Target: domain.ErrInvalidTool, Code: apperrors.ErrCodeInvalidInput, HTTPStatus: http.StatusBadRequest},
	{Target: domain.ErrInvalidPoint, Code: apperrors.ErrCodeInvalidInput, HTTPStatus: http.StatusBadRequest},
	{Target: domain.ErrRoomNotFound, Code: apperrors.ErrCodeNotFound, HTTPStatus: http.StatusNotFound},
	{Target: domain.ErrParticipantNotFound, Code: apperrors.ErrCodeNotFound, HTTPStatus: http.StatusNotFound},
	{Target: domain.ErrStrokeNotFound, Code: apperrors.ErrCodeNotFound, HTTPStatus: http.StatusNotFound},
	{Target: domain.ErrSnapshotNotFound, Code: apperrors.ErrCodeNotFound, HTTPStatus: http.StatusNotFound},
	{Target: domain.ErrStrokeExists, Code: apperrors.ErrCodeConflict, HTTPStatus: http.StatusConflict},
	{Target: domain.ErrStrokeComplete, Code: apperrors.ErrCodeConflict, HTTPStatus: http.StatusConflict},
	{Target: domain.ErrAlreadyJoined, Code: apperrors.ErrCodeConflict, HTTPStatus: http.StatusConflict},
	{Target: domain.ErrInvalidInvite, Code: apperrors.ErrCodeForbidden, HTTPStatus: http.StatusForbidden},
	{Target: ErrUnauthorized, Code: apperrors.ErrCodeForbidden, HTTPStatus: http.StatusForbidden},
	{Target: ErrInvalidToken, Code: apperrors.ErrCodeUnauthorized, HTTPStatus: http.StatusUnauthorized},
	{Target: ErrExpiredToken, Code: apperrors.ErrCodeUnauthorized, HTTPStatus: http.StatusUnauthorized},
	{Target: ErrRoomLimit, Code: apperrors.ErrCodeServiceUnavailable, HTTPStatus: http.StatusServiceUnavailable},
	{Target: domain.ErrRoomClosed, Code: apperrors.ErrCodeServiceUnavailable, HTTPStatus: http.StatusServiceUnavailable},
	{Target: circuitbreaker.ErrOpen, Code: apperrors.ErrCodeServiceUnavailable, HTTPStatus: http.StatusServiceUnavailable},
	{Target: retry.ErrExhausted, Code: apperrors.ErrCodeServiceUnavailable, HTTPStatus: http.StatusServiceUnavailable},
	{Target: context.DeadlineExceeded, Code: apperrors.ErrCodeServiceUnavailable, HTTPStatus: http.StatusServiceUnavailable},
}

// ToAppError classifies room and protocol errors for HTTP responses and
// error envelopes.
func ToAppError(err error) *apperrors.AppError {
	return apperrors.Classify(err, errorMappings)
}

// ErrorEnvelope renders err as the error message sent back to a client.
func ErrorEnvelope(err error) protocol.Envelope {
	appErr := ToAppError(err)
	return protocol.NewError(string(appErr.Code), appErr.Message)
}
