package monitoring

import (
	"time"

	"sketchroom/internal/core/domain"
	"sketchroom/internal/core/protocol"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusCollector implements ports.MetricsRecorder.
type PrometheusCollector struct {
	// Gauges
	roomsActive        prometheus.Gauge
	participantsActive prometheus.Gauge

	// Counters
	roomsOpenedTotal  prometheus.Counter
	strokeEventsTotal *prometheus.CounterVec
	orphanEventsTotal *prometheus.CounterVec
	messagesTotal     *prometheus.CounterVec
	relayDroppedTotal prometheus.Counter

	// Histograms
	replayDuration prometheus.Histogram

	// Room metrics
	roomParticipants *prometheus.GaugeVec
}

// NewPrometheusCollector registers the collectors with reg. A nil reg uses
// the default registry.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &PrometheusCollector{
		roomsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "sketchroom_rooms_active",
			Help: "Number of rooms currently open in memory",
		}),

		participantsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "sketchroom_participants_active",
			Help: "Number of connected participants across all rooms",
		}),

		roomsOpenedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "sketchroom_rooms_opened_total",
			Help: "Total number of rooms opened",
		}),

		strokeEventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sketchroom_stroke_events_total",
			Help: "Stroke events accepted into a room history",
		}, []string{"type"}),

		orphanEventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sketchroom_orphan_stroke_events_total",
			Help: "Stroke update/end events dropped because the stroke was unknown or complete",
		}, []string{"type"}),

		messagesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sketchroom_messages_received_total",
			Help: "Protocol messages received from clients",
		}, []string{"type"}),

		relayDroppedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "sketchroom_relay_dropped_total",
			Help: "Relayed messages dropped because a participant send buffer was full",
		}),

		replayDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "sketchroom_replay_duration_seconds",
			Help:    "Time spent replaying a full stroke history onto a canvas",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),

		roomParticipants: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sketchroom_room_participants",
			Help: "Number of participants in each room",
		}, []string{"room_id"}),
	}
}

func (p *PrometheusCollector) RecordRoomOpened(roomID domain.RoomID) {
	p.roomsActive.Inc()
	p.roomsOpenedTotal.Inc()
}

func (p *PrometheusCollector) RecordRoomClosed(roomID domain.RoomID) {
	p.roomsActive.Dec()
	p.roomParticipants.DeleteLabelValues(string(roomID))
}

func (p *PrometheusCollector) RecordParticipantJoined(roomID domain.RoomID) {
	p.participantsActive.Inc()
	p.roomParticipants.WithLabelValues(string(roomID)).Inc()
}

func (p *PrometheusCollector) RecordParticipantLeft(roomID domain.RoomID) {
	p.participantsActive.Dec()
	p.roomParticipants.WithLabelValues(string(roomID)).Dec()
}

func (p *PrometheusCollector) RecordStrokeEvent(kind protocol.MessageType) {
	p.strokeEventsTotal.WithLabelValues(string(kind)).Inc()
}

func (p *PrometheusCollector) RecordOrphanStrokeEvent(kind protocol.MessageType) {
	p.orphanEventsTotal.WithLabelValues(string(kind)).Inc()
}

func (p *PrometheusCollector) RecordRelayDropped() {
	p.relayDroppedTotal.Inc()
}

func (p *PrometheusCollector) RecordMessageReceived(kind protocol.MessageType) {
	p.messagesTotal.WithLabelValues(string(kind)).Inc()
}

func (p *PrometheusCollector) RecordReplayDuration(d time.Duration) {
	p.replayDuration.Observe(d.Seconds())
}
