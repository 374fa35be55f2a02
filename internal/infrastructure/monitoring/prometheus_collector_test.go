package monitoring

import (
	"testing"
	"time"

	"sketchroom/internal/core/ports"
	"sketchroom/internal/core/protocol"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ ports.MetricsRecorder = (*PrometheusCollector)(nil)

func TestPrometheusCollector_RoomLifecycle(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewPrometheusCollector(reg)

	c.RecordRoomOpened("room_a")
	c.RecordParticipantJoined("room_a")
	c.RecordParticipantJoined("room_a")
	c.RecordParticipantLeft("room_a")

	assert.Equal(t, 1.0, testutil.ToFloat64(c.roomsActive))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.participantsActive))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.roomParticipants.WithLabelValues("room_a")))

	c.RecordParticipantLeft("room_a")
	c.RecordRoomClosed("room_a")

	assert.Equal(t, 0.0, testutil.ToFloat64(c.roomsActive))
	assert.Equal(t, 0, testutil.CollectAndCount(c.roomParticipants))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.roomsOpenedTotal))
}

func TestPrometheusCollector_StrokeCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewPrometheusCollector(reg)

	c.RecordStrokeEvent(protocol.TypeStrokeBegin)
	c.RecordStrokeEvent(protocol.TypeStrokeUpdate)
	c.RecordStrokeEvent(protocol.TypeStrokeUpdate)
	c.RecordOrphanStrokeEvent(protocol.TypeStrokeEnd)
	c.RecordRelayDropped()
	c.RecordMessageReceived(protocol.TypeChat)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.strokeEventsTotal.WithLabelValues(string(protocol.TypeStrokeUpdate))))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.orphanEventsTotal.WithLabelValues(string(protocol.TypeStrokeEnd))))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.relayDroppedTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.messagesTotal.WithLabelValues(string(protocol.TypeChat))))
}

func TestPrometheusCollector_ReplayHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewPrometheusCollector(reg)

	c.RecordReplayDuration(20 * time.Millisecond)

	families, err := reg.Gather()
	require.NoError(t, err)

	var found bool
	for _, mf := range families {
		if mf.GetName() == "sketchroom_replay_duration_seconds" {
			found = true
			require.Len(t, mf.GetMetric(), 1)
			assert.Equal(t, uint64(1), mf.GetMetric()[0].GetHistogram().GetSampleCount())
		}
	}
	assert.True(t, found)
}

func TestPrometheusCollector_SeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		NewPrometheusCollector(prometheus.NewRegistry())
		NewPrometheusCollector(prometheus.NewRegistry())
	})
}
