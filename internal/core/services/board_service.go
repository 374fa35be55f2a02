package services

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"sketchroom/internal/core/domain"
	"sketchroom/internal/core/ports"
	"sketchroom/internal/render"
	"sketchroom/pkg/tracing"

	"go.uber.org/zap"
)

// BoardService renders a room's authoritative history on the server and
// moves rendered boards in and out of the canvas store.
type BoardService struct {
	store   ports.CanvasStore
	metrics ports.MetricsRecorder
	logger  *zap.SugaredLogger
}

func NewBoardService(store ports.CanvasStore, metrics ports.MetricsRecorder, logger *zap.SugaredLogger) *BoardService {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &BoardService{store: store, metrics: metrics, logger: logger}
}

// Render rebuilds the room history on one canvas per layer and stacks
// them, lowest layer first, into a canvas of the room size.
func (s *BoardService) Render(ctx context.Context, room *Room) (*render.Canvas, error) {
	strokes, err := room.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	ctx, span := tracing.TraceRender(ctx, "replay", len(strokes))
	defer span.End()

	settings := room.Info().Settings
	layers := make(map[int]*render.Canvas)
	live := make(map[int][]*domain.Stroke)
	layerFor := func(n int) *render.Canvas {
		c, ok := layers[n]
		if !ok {
			c = render.NewCanvas(settings.Width, settings.Height,
				render.WithLogger(s.logger),
				render.WithReplayObserver(s.metrics.RecordReplayDuration),
			)
			layers[n] = c
		}
		return c
	}

	// Completed strokes are committed in history order; in-progress ones
	// only reach the visible surface and are left out of exports.
	start := time.Now()
	for _, stroke := range strokes {
		canvas := layerFor(stroke.Layer)
		if !stroke.Complete {
			live[stroke.Layer] = append(live[stroke.Layer], stroke)
			continue
		}
		if err := canvas.Commit(stroke); err != nil {
			tracing.RecordError(ctx, err)
			return nil, fmt.Errorf("failed to render room %s: %w", room.ID(), err)
		}
	}

	indices := make([]int, 0, len(layers))
	for n := range layers {
		indices = append(indices, n)
	}
	sort.Ints(indices)

	ordered := make([]*render.Canvas, 0, len(indices))
	for _, n := range indices {
		if err := layers[n].ReplayAll(live[n]); err != nil {
			tracing.RecordError(ctx, err)
			return nil, fmt.Errorf("failed to replay room %s layer %d: %w", room.ID(), n, err)
		}
		ordered = append(ordered, layers[n])
	}

	canvas, err := render.Stack(settings.Width, settings.Height, ordered, render.WithLogger(s.logger))
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, fmt.Errorf("failed to composite room %s: %w", room.ID(), err)
	}
	tracing.MeasureDuration(ctx, start, "replay")
	return canvas, nil
}

func (s *BoardService) ExportPNG(ctx context.Context, room *Room) ([]byte, error) {
	canvas, err := s.Render(ctx, room)
	if err != nil {
		return nil, err
	}
	return canvas.ExportPNG()
}

func (s *BoardService) ExportPDF(ctx context.Context, room *Room, w io.Writer) error {
	canvas, err := s.Render(ctx, room)
	if err != nil {
		return err
	}
	return render.ExportPDF(w, canvas.Committed(), room.Info().Name)
}

// SaveSnapshot renders the room and stores it under name as a data URL.
func (s *BoardService) SaveSnapshot(ctx context.Context, room *Room, name string) error {
	canvas, err := s.Render(ctx, room)
	if err != nil {
		return err
	}
	dataURL, err := canvas.ExportDataURL()
	if err != nil {
		return err
	}
	if err := s.store.Save(ctx, name, dataURL); err != nil {
		return fmt.Errorf("failed to save snapshot %s: %w", name, err)
	}
	s.logger.Infow("Snapshot saved", "room_id", room.ID(), "name", name, "bytes", len(dataURL))
	return nil
}

// LoadSnapshot hydrates a canvas sized to the stored image.
func (s *BoardService) LoadSnapshot(ctx context.Context, name string) (*render.Canvas, string, error) {
	dataURL, err := s.store.Load(ctx, name)
	if err != nil {
		return nil, "", err
	}
	canvas, err := render.LoadCanvas(dataURL, render.WithLogger(s.logger))
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode snapshot %s: %w", name, err)
	}
	return canvas, dataURL, nil
}
