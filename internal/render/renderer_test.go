package render

import (
	"testing"

	"sketchroom/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strokeOf(id string, tool domain.Tool, pts ...domain.Point) *domain.Stroke {
	s := domain.BeginStroke(domain.StrokeID(id), 0, tool, pts[0])
	_ = s.AddPoints(pts[1:])
	return s
}

func horizontalStroke(id string, tool domain.Tool) *domain.Stroke {
	return strokeOf(id, tool,
		domain.NewPoint(10, 20), domain.NewPoint(20, 20), domain.NewPoint(30, 20), domain.NewPoint(40, 20))
}

func TestRender_ShortStrokeIsDiscAtFirstPoint(t *testing.T) {
	tool := domain.DefaultTool()
	tool.Color = "#ff0000"

	var surfaces []*Surface
	for n := 1; n <= 3; n++ {
		pts := []domain.Point{domain.NewPoint(20, 20), domain.NewPoint(30, 25), domain.NewPoint(35, 5)}[:n]
		s := strokeOf("dot", tool, pts...)
		target := NewSurface(40, 40)
		require.NoError(t, NewRenderer().Render(s, target))
		surfaces = append(surfaces, target)
	}

	center := surfaces[0].At(20, 20)
	assert.Equal(t, uint8(255), center.R)
	assert.Equal(t, uint8(0), center.G)
	assert.Greater(t, center.A, uint8(200))
	assert.Equal(t, uint8(0), surfaces[0].At(30, 30).A, "outside the disc radius")

	assert.True(t, surfaces[0].Equal(surfaces[1]), "later points do not move the disc")
	assert.True(t, surfaces[0].Equal(surfaces[2]))
}

func TestRender_CurveCoversPath(t *testing.T) {
	tool := domain.DefaultTool()
	tool.Size = 2
	target := NewSurface(60, 40)

	require.NoError(t, NewRenderer().Render(horizontalStroke("line", tool), target))

	assert.Greater(t, target.At(25, 20).A, uint8(200))
	assert.Greater(t, target.At(12, 20).A, uint8(200))
	assert.Greater(t, target.At(38, 20).A, uint8(200))
	assert.Equal(t, uint8(0), target.At(25, 30).A)
}

func TestRender_Deterministic(t *testing.T) {
	tool := domain.DefaultTool()
	tool.Color = "#3366cc"
	tool.Opacity = 0.6
	s := strokeOf("s", tool,
		domain.NewPoint(5, 5), domain.NewPoint(15, 30), domain.NewPoint(35, 10),
		domain.NewPoint(50, 35), domain.NewPoint(55, 5))

	a, b := NewSurface(64, 40), NewSurface(64, 40)
	r := NewRenderer()
	require.NoError(t, r.Render(s, a))
	require.NoError(t, NewRenderer().Render(s, b))
	assert.True(t, a.Equal(b))

	c := NewSurface(64, 40)
	require.NoError(t, r.Render(s, c))
	assert.True(t, a.Equal(c), "a reused renderer produces the same pixels")
}

func TestRender_OpacityScalesAlpha(t *testing.T) {
	tool := domain.DefaultTool()
	tool.Opacity = 0.5
	target := NewSurface(40, 40)

	require.NoError(t, NewRenderer().Render(strokeOf("dot", tool, domain.NewPoint(20, 20)), target))

	assert.InDelta(t, 128, int(target.At(20, 20).A), 2)
}

func TestRender_EraseRemovesPixels(t *testing.T) {
	target := NewSurface(40, 40)
	r := NewRenderer()
	require.NoError(t, r.Render(strokeOf("paint", domain.DefaultTool(), domain.NewPoint(20, 20)), target))
	require.Greater(t, target.At(20, 20).A, uint8(200))

	eraser := domain.DefaultTool()
	eraser.Mode = domain.CompositeErase
	eraser.Size = 8
	require.NoError(t, r.Render(strokeOf("erase", eraser, domain.NewPoint(20, 20)), target))

	assert.Equal(t, uint8(0), target.At(20, 20).A)
}

func TestRender_OrderMatters(t *testing.T) {
	red := domain.DefaultTool()
	red.Color = "#ff0000"
	blue := domain.DefaultTool()
	blue.Color = "#0000ff"

	a := strokeOf("a", red, domain.NewPoint(20, 20))
	b := strokeOf("b", blue, domain.NewPoint(20, 20))

	ab, ba := NewSurface(40, 40), NewSurface(40, 40)
	r := NewRenderer()
	require.NoError(t, r.Render(a, ab))
	require.NoError(t, r.Render(b, ab))
	require.NoError(t, r.Render(b, ba))
	require.NoError(t, r.Render(a, ba))

	assert.Equal(t, uint8(255), ab.At(20, 20).B)
	assert.Equal(t, uint8(255), ba.At(20, 20).R)
}

func TestRender_SkipsRedundantAttributeWrites(t *testing.T) {
	r := NewRenderer()
	target := NewSurface(40, 40)
	tool := domain.DefaultTool()

	require.NoError(t, r.Render(strokeOf("a", tool, domain.NewPoint(10, 10)), target))
	first := r.attrWrites
	require.NoError(t, r.Render(strokeOf("b", tool, domain.NewPoint(20, 20)), target))
	assert.Equal(t, first, r.attrWrites)

	tool.Size = 9
	require.NoError(t, r.Render(strokeOf("c", tool, domain.NewPoint(20, 20)), target))
	assert.Equal(t, first+1, r.attrWrites, "only the line width changed")
}

func TestRender_UnavailableSurface(t *testing.T) {
	err := NewRenderer().Render(strokeOf("a", domain.DefaultTool(), domain.NewPoint(1, 1)), NewSurface(0, 0))
	assert.ErrorIs(t, err, ErrSurfaceUnavailable)
}

type pathOp struct {
	kind string
	args []float64
}

type recordingPath struct {
	ops []pathOp
}

func (r *recordingPath) MoveTo(x, y float64) {
	r.ops = append(r.ops, pathOp{"move", []float64{x, y}})
}

func (r *recordingPath) QuadraticTo(cx, cy, x, y float64) {
	r.ops = append(r.ops, pathOp{"quad", []float64{cx, cy, x, y}})
}

func (r *recordingPath) CubicTo(c1x, c1y, c2x, c2y, x, y float64) {
	r.ops = append(r.ops, pathOp{"cubic", []float64{c1x, c1y, c2x, c2y, x, y}})
}

func kinds(ops []pathOp) []string {
	out := make([]string, len(ops))
	for i, op := range ops {
		out[i] = op.kind
	}
	return out
}

func TestTraceCurve_FourPoints(t *testing.T) {
	s := strokeOf("s", domain.DefaultTool(),
		domain.NewPoint(0, 0), domain.NewPoint(10, 8), domain.NewPoint(20, 4), domain.NewPoint(30, 12))
	rec := &recordingPath{}

	traceCurve(rec, s)

	require.Equal(t, []string{"move", "quad", "cubic", "quad"}, kinds(rec.ops))

	pair := s.Controls[0]
	closing := s.ClosingPair()
	assert.Equal(t, []float64{pair.C1.X, pair.C1.Y, 10, 8}, rec.ops[1].args)
	assert.Equal(t, []float64{pair.C2.X, pair.C2.Y, closing.C1.X, closing.C1.Y, 20, 4}, rec.ops[2].args)
	assert.Equal(t, []float64{closing.C2.X, closing.C2.Y, 30, 12}, rec.ops[3].args)
}

func TestTraceCurve_InteriorCubicsUseAdjacentPairs(t *testing.T) {
	s := strokeOf("s", domain.DefaultTool(),
		domain.NewPoint(0, 0), domain.NewPoint(10, 8), domain.NewPoint(20, 4),
		domain.NewPoint(30, 12), domain.NewPoint(45, 2), domain.NewPoint(50, 20))
	rec := &recordingPath{}

	traceCurve(rec, s)

	require.Equal(t, []string{"move", "quad", "cubic", "cubic", "cubic", "quad"}, kinds(rec.ops))
	// segment p2 -> p3 uses C2 of pair 1 and C1 of pair 2
	seg := rec.ops[3].args
	assert.Equal(t, s.Controls[1].C2.X, seg[0])
	assert.Equal(t, s.Controls[2].C1.X, seg[2])
	assert.Equal(t, 30.0, seg[4])
}
