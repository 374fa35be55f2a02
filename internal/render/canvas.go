package render

import (
	"sync"
	"time"

	"sketchroom/internal/core/domain"

	"go.uber.org/zap"
)

type replayState int

const (
	replayIdle replayState = iota
	replayRunning
	// replayDirty means a newer list arrived while a replay was running.
	replayDirty
)

// Canvas pairs a visible surface with a committed surface. Finished strokes
// live only as pixels on the committed surface; in-progress strokes are
// drawn over a copy of it on the visible surface each frame.
type Canvas struct {
	width, height int

	drawMu    sync.Mutex
	visible   *Surface
	committed *Surface
	renderer  *Renderer

	stateMu sync.Mutex
	state   replayState
	pending []*domain.Stroke

	logger   *zap.SugaredLogger
	observer func(time.Duration)
}

type CanvasOption func(*Canvas)

func WithLogger(logger *zap.SugaredLogger) CanvasOption {
	return func(c *Canvas) { c.logger = logger }
}

// WithReplayObserver reports the duration of every completed replay pass.
func WithReplayObserver(fn func(time.Duration)) CanvasOption {
	return func(c *Canvas) { c.observer = fn }
}

func NewCanvas(width, height int, opts ...CanvasOption) *Canvas {
	c := &Canvas{
		width:     width,
		height:    height,
		visible:   NewSurface(width, height),
		committed: NewSurface(width, height),
		renderer:  NewRenderer(),
		logger:    zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Canvas) Width() int {
	c.drawMu.Lock()
	defer c.drawMu.Unlock()
	return c.width
}

func (c *Canvas) Height() int {
	c.drawMu.Lock()
	defer c.drawMu.Unlock()
	return c.height
}

// Visible returns the surface that shows committed pixels plus live strokes.
func (c *Canvas) Visible() *Surface {
	c.drawMu.Lock()
	defer c.drawMu.Unlock()
	return c.visible
}

// Committed returns the surface holding finished strokes.
func (c *Canvas) Committed() *Surface {
	c.drawMu.Lock()
	defer c.drawMu.Unlock()
	return c.committed
}

// redraw resets the visible surface to the committed pixels and renders
// strokes over it in order. drawMu must be held.
func (c *Canvas) redraw(strokes ...*domain.Stroke) error {
	if !c.visible.Available() || !c.committed.Available() {
		return ErrSurfaceUnavailable
	}
	if err := c.visible.CopyFrom(c.committed); err != nil {
		return err
	}
	for _, s := range strokes {
		if err := c.renderer.Render(s, c.visible); err != nil {
			return err
		}
	}
	return nil
}

// PreviewFrame shows s over the committed pixels without committing it.
func (c *Canvas) PreviewFrame(s *domain.Stroke) error {
	c.drawMu.Lock()
	defer c.drawMu.Unlock()
	return c.redraw(s)
}

// Commit renders s over the committed pixels and makes the result the new
// committed surface.
func (c *Canvas) Commit(s *domain.Stroke) error {
	c.drawMu.Lock()
	defer c.drawMu.Unlock()
	if err := c.redraw(s); err != nil {
		return err
	}
	return c.committed.CopyFrom(c.visible)
}

// ReplayAll redraws the visible surface as committed pixels plus every
// stroke in order. A call that arrives while a replay is running does not
// interrupt it; the latest such list is replayed once the running pass
// finishes and the call returns immediately.
func (c *Canvas) ReplayAll(strokes []*domain.Stroke) error {
	c.stateMu.Lock()
	if c.state != replayIdle {
		c.pending = strokes
		c.state = replayDirty
		c.stateMu.Unlock()
		return nil
	}
	c.state = replayRunning
	c.stateMu.Unlock()

	for {
		start := time.Now()
		c.drawMu.Lock()
		err := c.redraw(strokes...)
		c.drawMu.Unlock()
		if c.observer != nil {
			c.observer(time.Since(start))
		}

		c.stateMu.Lock()
		if err != nil || c.state != replayDirty {
			c.state = replayIdle
			c.pending = nil
			c.stateMu.Unlock()
			if err != nil {
				c.logger.Warnw("Replay failed", "strokes", len(strokes), "error", err)
			}
			return err
		}
		strokes = c.pending
		c.pending = nil
		c.state = replayRunning
		c.stateMu.Unlock()
		c.logger.Debugw("Replaying coalesced request", "strokes", len(strokes))
	}
}

// Clear wipes both surfaces.
func (c *Canvas) Clear() {
	c.drawMu.Lock()
	defer c.drawMu.Unlock()
	c.visible.Clear()
	c.committed.Clear()
}

// Hydrate replaces both surfaces with a copy of src.
func (c *Canvas) Hydrate(src *Surface) error {
	if !src.Available() {
		return ErrSurfaceUnavailable
	}
	c.drawMu.Lock()
	defer c.drawMu.Unlock()
	if src.Width() != c.width || src.Height() != c.height {
		c.width, c.height = src.Width(), src.Height()
		c.visible = NewSurface(c.width, c.height)
		c.committed = NewSurface(c.width, c.height)
	}
	if err := c.committed.CopyFrom(src); err != nil {
		return err
	}
	return c.visible.CopyFrom(src)
}

// Snapshot returns a copy of the committed surface.
func (c *Canvas) Snapshot() *Surface {
	c.drawMu.Lock()
	defer c.drawMu.Unlock()
	if !c.committed.Available() {
		return &Surface{}
	}
	return SurfaceFromImage(c.committed.img)
}

// Stack flattens layers, lowest first, onto a new canvas of the given size.
// Committed and visible surfaces are composited separately.
func Stack(width, height int, layers []*Canvas, opts ...CanvasOption) (*Canvas, error) {
	out := NewCanvas(width, height, opts...)
	for _, l := range layers {
		if err := out.stackOver(l); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (c *Canvas) stackOver(l *Canvas) error {
	l.drawMu.Lock()
	defer l.drawMu.Unlock()
	if err := c.committed.DrawSurface(l.committed); err != nil {
		return err
	}
	return c.visible.DrawSurface(l.visible)
}
