package render

import (
	"fmt"

	"sketchroom/internal/core/domain"

	"github.com/gogpu/gg"
)

// strokeAttrs is the drawing state last pushed into the scratch context.
type strokeAttrs struct {
	lineWidth float64
	r, g, b   float64
}

// Renderer rasterizes strokes with gg into a scratch coverage mask and
// composites the mask onto a target surface. A Renderer is not safe for
// concurrent use; each Canvas owns one.
type Renderer struct {
	pm *gg.Pixmap
	dc *gg.Context

	attrs    strokeAttrs
	hasAttrs bool
	// attrWrites counts attribute changes actually pushed to the context.
	attrWrites int
}

func NewRenderer() *Renderer {
	return &Renderer{}
}

func (r *Renderer) ensureScratch(width, height int) {
	if r.pm != nil && r.pm.Width() == width && r.pm.Height() == height {
		return
	}
	r.pm = gg.NewPixmap(width, height)
	r.dc = gg.NewContext(width, height, gg.WithPixmap(r.pm))
	r.dc.SetLineCap(gg.LineCapRound)
	r.dc.SetLineJoin(gg.LineJoinRound)
	r.hasAttrs = false
}

// apply pushes line width and color, skipping writes that match the state
// already in the context.
func (r *Renderer) apply(a strokeAttrs) {
	if r.hasAttrs && r.attrs == a {
		return
	}
	if !r.hasAttrs || r.attrs.lineWidth != a.lineWidth {
		r.dc.SetLineWidth(a.lineWidth)
		r.attrWrites++
	}
	if !r.hasAttrs || r.attrs.r != a.r || r.attrs.g != a.g || r.attrs.b != a.b {
		// The mask is always opaque; opacity is applied during compositing.
		r.dc.SetRGBA(a.r, a.g, a.b, 1)
		r.attrWrites++
	}
	r.attrs = a
	r.hasAttrs = true
}

// Render draws s onto target using the stroke's tool. Rendering the same
// stroke onto the same pixels always yields the same result.
func (r *Renderer) Render(s *domain.Stroke, target *Surface) error {
	if !target.Available() {
		return ErrSurfaceUnavailable
	}
	if s == nil || len(s.Points) == 0 {
		return nil
	}

	r.ensureScratch(target.Width(), target.Height())
	r.dc.Clear()

	col := gg.Hex(s.Tool.Color)
	r.apply(strokeAttrs{lineWidth: 2 * s.Tool.Size, r: col.R, g: col.G, b: col.B})

	var err error
	if s.IsDot() {
		p := s.Points[0]
		r.dc.DrawCircle(p.X, p.Y, s.Tool.Size)
		err = r.dc.Fill()
	} else {
		traceCurve(r.dc, s)
		err = r.dc.Stroke()
	}
	if err != nil {
		return fmt.Errorf("failed to rasterize stroke %s: %w", s.ID, err)
	}
	if err := r.dc.FlushGPU(); err != nil {
		return fmt.Errorf("failed to flush stroke %s: %w", s.ID, err)
	}

	target.compositeMask(r.pm.Data(), col.R, col.G, col.B, col.A*s.Tool.Opacity, s.Tool.Mode)
	return nil
}

// pathBuilder is the subset of gg.Context used to trace a stroke.
type pathBuilder interface {
	MoveTo(x, y float64)
	QuadraticTo(cx, cy, x, y float64)
	CubicTo(c1x, c1y, c2x, c2y, x, y float64)
}

// traceCurve emits one continuous path for a stroke of four or more points:
// a leading quadratic, one cubic per interior segment and a trailing
// quadratic that uses the closing pair.
func traceCurve(pb pathBuilder, s *domain.Stroke) {
	pts := s.Points
	ctl := s.Controls
	n := len(pts)

	pb.MoveTo(pts[0].X, pts[0].Y)
	pb.QuadraticTo(ctl[0].C1.X, ctl[0].C1.Y, pts[1].X, pts[1].Y)

	for i := 1; i <= n-3; i++ {
		c2 := ctl[i-1].C2
		var c1 domain.Point
		if i < len(ctl) {
			c1 = ctl[i].C1
		} else {
			c1 = s.ClosingPair().C1
		}
		pb.CubicTo(c2.X, c2.Y, c1.X, c1.Y, pts[i+1].X, pts[i+1].Y)
	}

	closing := s.ClosingPair()
	pb.QuadraticTo(closing.C2.X, closing.C2.Y, pts[n-1].X, pts[n-1].Y)
}
