package services

import (
	"time"

	"sketchroom/internal/core/domain"
	"sketchroom/internal/core/ports"
	"sketchroom/internal/core/protocol"
)

type noopMetrics struct{}

// NopMetrics returns a recorder that discards every event.
func NopMetrics() ports.MetricsRecorder { return noopMetrics{} }

func (noopMetrics) RecordRoomOpened(domain.RoomID)               {}
func (noopMetrics) RecordRoomClosed(domain.RoomID)               {}
func (noopMetrics) RecordParticipantJoined(domain.RoomID)        {}
func (noopMetrics) RecordParticipantLeft(domain.RoomID)          {}
func (noopMetrics) RecordStrokeEvent(protocol.MessageType)       {}
func (noopMetrics) RecordOrphanStrokeEvent(protocol.MessageType) {}
func (noopMetrics) RecordRelayDropped()                          {}
func (noopMetrics) RecordMessageReceived(protocol.MessageType)   {}
func (noopMetrics) RecordReplayDuration(time.Duration)           {}
