package services

import (
	"context"
	"image/color"
	"testing"

	"sketchroom/internal/core/domain"
	"sketchroom/internal/core/protocol"
	"sketchroom/internal/infrastructure/repositories/memory"
	"sketchroom/internal/render"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestBoards() *BoardService {
	return NewBoardService(memory.NewMemoryCanvasStore(), nil, zap.NewNop().Sugar())
}

func dotOnLayer(t *testing.T, room *Room, from domain.ParticipantID, id string, layer int, tool domain.Tool) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, room.BeginStroke(ctx, from, protocol.StrokeBeginPayload{
		StrokeID: id, Layer: layer, Tool: tool, Point: protocol.WirePoint{X: 20, Y: 20},
	}))
	require.NoError(t, room.EndStroke(ctx, from, protocol.StrokeEndPayload{StrokeID: id}))
}

func TestBoardService_HigherLayerWinsRegardlessOfCommitOrder(t *testing.T) {
	room := newTestRoom(t, RoomOptions{Settings: domain.RoomSettings{Width: 40, Height: 40}})
	a := join(t, room, "a", "A")

	red := domain.DefaultTool()
	red.Color = "#ff0000"
	red.Size = 8
	blue := red
	blue.Color = "#0000ff"

	dotOnLayer(t, room, a.ID(), "s1", 1, red)
	dotOnLayer(t, room, a.ID(), "s2", 0, blue)

	data, err := newTestBoards().ExportPNG(context.Background(), room)
	require.NoError(t, err)
	surface, err := render.DecodePNG(data)
	require.NoError(t, err)

	assert.Equal(t, color.NRGBA{R: 255, A: 255}, surface.At(20, 20))
}

func TestBoardService_EraseStaysOnItsLayer(t *testing.T) {
	room := newTestRoom(t, RoomOptions{Settings: domain.RoomSettings{Width: 40, Height: 40}})
	a := join(t, room, "a", "A")

	blue := domain.DefaultTool()
	blue.Color = "#0000ff"
	blue.Size = 8
	eraser := blue
	eraser.Mode = domain.CompositeErase
	eraser.Size = 16

	dotOnLayer(t, room, a.ID(), "base", 0, blue)
	dotOnLayer(t, room, a.ID(), "wipe", 1, eraser)

	canvas, err := newTestBoards().Render(context.Background(), room)
	require.NoError(t, err)

	assert.Equal(t, color.NRGBA{B: 255, A: 255}, canvas.Committed().At(20, 20))
	assert.True(t, canvas.Visible().Equal(canvas.Committed()))
}

func TestBoardService_LiveStrokesStayOffExports(t *testing.T) {
	ctx := context.Background()
	room := newTestRoom(t, RoomOptions{Settings: domain.RoomSettings{Width: 40, Height: 40}})
	a := join(t, room, "a", "A")

	require.NoError(t, room.BeginStroke(ctx, a.ID(), protocol.StrokeBeginPayload{
		StrokeID: "live", Layer: 2, Tool: domain.DefaultTool(), Point: protocol.WirePoint{X: 20, Y: 20},
	}))

	canvas, err := newTestBoards().Render(ctx, room)
	require.NoError(t, err)

	assert.Equal(t, uint8(0), canvas.Committed().At(20, 20).A)
	assert.NotEqual(t, uint8(0), canvas.Visible().At(20, 20).A)
	assert.Equal(t, 40, canvas.Width())
	assert.Equal(t, 40, canvas.Height())
}
