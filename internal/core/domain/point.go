package domain

import (
	"fmt"
	"math"
)

const DefaultPressure = 1.0

type Point struct {
	X        float64
	Y        float64
	Pressure float64
}

func NewPoint(x, y float64) Point {
	return Point{X: x, Y: y, Pressure: DefaultPressure}
}

// Validate checks that the point lies on a surface of the given size.
// A zero width or height disables the upper bound check.
func (p Point) Validate(width, height int) error {
	if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
		return fmt.Errorf("%w: coordinates must be finite", ErrInvalidPoint)
	}
	if p.X < 0 || p.Y < 0 {
		return fmt.Errorf("%w: (%g, %g) is negative", ErrInvalidPoint, p.X, p.Y)
	}
	if width > 0 && p.X > float64(width) {
		return fmt.Errorf("%w: x=%g exceeds width %d", ErrInvalidPoint, p.X, width)
	}
	if height > 0 && p.Y > float64(height) {
		return fmt.Errorf("%w: y=%g exceeds height %d", ErrInvalidPoint, p.Y, height)
	}
	if p.Pressure < 0 || p.Pressure > 1 {
		return fmt.Errorf("%w: pressure must be within [0, 1]", ErrInvalidPoint)
	}
	return nil
}

func distance(a, b Point) float64 {
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}
