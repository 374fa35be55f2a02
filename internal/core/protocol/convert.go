package protocol

import (
	"fmt"

	"sketchroom/internal/core/domain"
	"sketchroom/pkg/validation"
)

// ToPoint converts a wire point, defaulting a missing pressure to 1.0.
func (w WirePoint) ToPoint() domain.Point {
	p := domain.Point{X: w.X, Y: w.Y, Pressure: domain.DefaultPressure}
	if w.P != nil {
		p.Pressure = *w.P
	}
	return p
}

// FromPoint omits the pressure field when it carries the default.
func FromPoint(p domain.Point) WirePoint {
	w := WirePoint{X: p.X, Y: p.Y}
	if p.Pressure != domain.DefaultPressure {
		pressure := p.Pressure
		w.P = &pressure
	}
	return w
}

func ToPoints(ws []WirePoint) []domain.Point {
	out := make([]domain.Point, len(ws))
	for i, w := range ws {
		out[i] = w.ToPoint()
	}
	return out
}

func FromPoints(ps []domain.Point) []WirePoint {
	out := make([]WirePoint, len(ps))
	for i, p := range ps {
		out[i] = FromPoint(p)
	}
	return out
}

// FromStroke builds the board sync form of a stroke.
func FromStroke(s *domain.Stroke) BoardStroke {
	return BoardStroke{
		StrokeID: string(s.ID),
		Layer:    s.Layer,
		Tool:     s.Tool,
		Points:   FromPoints(s.Points),
		Complete: s.Complete,
	}
}

// ToStroke rebuilds the stroke, recomputing control pairs point by point so
// the result matches what the original author produced.
func (b BoardStroke) ToStroke() (*domain.Stroke, error) {
	if len(b.Points) == 0 {
		return nil, fmt.Errorf("%w: stroke %s has no points", ErrInvalidPayload, b.StrokeID)
	}
	pts := ToPoints(b.Points)
	s := domain.BeginStroke(domain.StrokeID(b.StrokeID), b.Layer, b.Tool, pts[0])
	if err := s.AddPoints(pts[1:]); err != nil {
		return nil, err
	}
	if b.Complete {
		s.End()
	}
	return s, nil
}

func validatePoints(points []WirePoint, width, height int) error {
	for i, w := range points {
		if err := w.ToPoint().Validate(width, height); err != nil {
			return fmt.Errorf("%w: point %d: %v", ErrInvalidPayload, i, err)
		}
	}
	return nil
}

func (p JoinPayload) Validate() error {
	if err := validation.ValidateRoomID(p.RoomID); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if err := validation.ValidateDisplayName(p.DisplayName); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}

// Validate checks the begin payload against a canvas of the given size.
func (p StrokeBeginPayload) Validate(width, height int) error {
	if err := validation.ValidateStrokeID(p.StrokeID); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if p.Layer < 0 || p.Layer >= domain.MaxLayers {
		return fmt.Errorf("%w: layer must be in [0, %d)", ErrInvalidPayload, domain.MaxLayers)
	}
	if err := p.Tool.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return validatePoints([]WirePoint{p.Point}, width, height)
}

func (p StrokeUpdatePayload) Validate(width, height int) error {
	if err := validation.ValidateStrokeID(p.StrokeID); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if len(p.Points) == 0 {
		return fmt.Errorf("%w: update carries no points", ErrInvalidPayload)
	}
	return validatePoints(p.Points, width, height)
}

func (p StrokeEndPayload) Validate() error {
	if err := validation.ValidateStrokeID(p.StrokeID); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}

func (p ChatPayload) Validate() error {
	if err := validation.ValidateChatText(p.Text); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}
