package domain

// Tension is the fixed smoothing scale applied to every control pair.
const Tension = 0.3

// MinCurvePoints is the path length at which a stroke stops being drawn
// as a disc and becomes a smoothed curve.
const MinCurvePoints = 4

// MaxLayers bounds the layer index a stroke may name.
const MaxLayers = 16

type StrokeID string

// ControlPair holds the two Bezier handles around one interior path point.
// C1 sits on the incoming side, C2 on the outgoing side.
type ControlPair struct {
	C1 Point
	C2 Point
}

// Stroke is one continuous gesture: a tool snapshot plus an append-only
// path and the control pairs derived from it.
type Stroke struct {
	ID       StrokeID
	Layer    int
	Tool     Tool
	Points   []Point
	Controls []ControlPair
	Complete bool
}

// BeginStroke starts a stroke from its first point. The tool is copied.
func BeginStroke(id StrokeID, layer int, tool Tool, first Point) *Stroke {
	s := &Stroke{
		ID:     id,
		Layer:  layer,
		Tool:   tool.Normalized(),
		Points: make([]Point, 0, 16),
	}
	s.Points = append(s.Points, first)
	return s
}

// AddPoint appends a point. Once the path holds four or more points one new
// control pair is appended, centred on the point three places back from the
// end; earlier pairs are left untouched.
func (s *Stroke) AddPoint(p Point) error {
	if s.Complete {
		return ErrStrokeComplete
	}
	s.Points = append(s.Points, p)
	if n := len(s.Points); n >= MinCurvePoints {
		s.Controls = append(s.Controls, ControlPoints(s.Points[n-4], s.Points[n-3], s.Points[n-2], Tension))
	}
	return nil
}

func (s *Stroke) AddPoints(points []Point) error {
	for _, p := range points {
		if err := s.AddPoint(p); err != nil {
			return err
		}
	}
	return nil
}

// End freezes the stroke.
func (s *Stroke) End() {
	s.Complete = true
}

func (s *Stroke) Len() int {
	return len(s.Points)
}

// IsDot reports whether the stroke is rendered as a single disc.
func (s *Stroke) IsDot() bool {
	return len(s.Points) < MinCurvePoints
}

// ClosingPair returns the pair centred on the second-to-last point. It is
// only needed at render time and is never stored, so the stored sequence
// stays a pure function of the path.
func (s *Stroke) ClosingPair() ControlPair {
	n := len(s.Points)
	return ControlPoints(s.Points[n-3], s.Points[n-2], s.Points[n-1], Tension)
}

// Clone returns a deep copy safe to hand to another goroutine.
func (s *Stroke) Clone() *Stroke {
	c := *s
	c.Points = append([]Point(nil), s.Points...)
	c.Controls = append([]ControlPair(nil), s.Controls...)
	return &c
}

// ControlPoints computes the handles around p2 for the triple p1, p2, p3.
// Coincident points (d1+d2 == 0) resolve to s1 = 0.
func ControlPoints(p1, p2, p3 Point, scale float64) ControlPair {
	d1 := distance(p1, p2)
	d2 := distance(p2, p3)

	var s1 float64
	if sum := d1 + d2; sum > 0 {
		s1 = scale * d1 / sum
	}
	s2 := scale - s1

	dx := p1.X - p3.X
	dy := p1.Y - p3.Y

	return ControlPair{
		C1: Point{X: p2.X + s1*dx, Y: p2.Y + s1*dy, Pressure: p2.Pressure},
		C2: Point{X: p2.X - s2*dx, Y: p2.Y - s2*dy, Pressure: p2.Pressure},
	}
}

// Scalars flattens the stored control pairs into x/y values, four per pair.
func (s *Stroke) Scalars() []float64 {
	out := make([]float64, 0, len(s.Controls)*4)
	for _, c := range s.Controls {
		out = append(out, c.C1.X, c.C1.Y, c.C2.X, c.C2.Y)
	}
	return out
}
