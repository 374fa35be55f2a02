package domain

import (
	"fmt"
	"math"
	"regexp"
)

// CompositeMode is the pixel blend rule used when a stroke is rendered.
// Render order matters for every mode except pure normal painting on an
// empty surface, so history replay must keep commit order.
type CompositeMode string

const (
	CompositeNormal CompositeMode = "normal"
	CompositeErase  CompositeMode = "erase"
)

var hexColorRegex = regexp.MustCompile(`^#?([0-9a-fA-F]{3}|[0-9a-fA-F]{4}|[0-9a-fA-F]{6}|[0-9a-fA-F]{8})$`)

// Tool is the brush snapshot a stroke is drawn with. It is copied by value
// when a stroke begins, so later edits to the caller's tool never reach
// strokes already in flight.
type Tool struct {
	Color   string        `json:"color"`
	Size    float64       `json:"size"`
	Opacity float64       `json:"opacity"`
	Mode    CompositeMode `json:"mode"`
}

func DefaultTool() Tool {
	return Tool{
		Color:   "#000000",
		Size:    4,
		Opacity: 1,
		Mode:    CompositeNormal,
	}
}

func (m CompositeMode) Valid() bool {
	switch m {
	case CompositeNormal, CompositeErase:
		return true
	}
	return false
}

// Validate checks the ranges a tool must respect before it can be rendered.
// An empty mode is accepted and treated as normal.
func (t Tool) Validate() error {
	if !hexColorRegex.MatchString(t.Color) {
		return fmt.Errorf("%w: color %q is not a hex color", ErrInvalidTool, t.Color)
	}
	if math.IsNaN(t.Size) || math.IsInf(t.Size, 0) || t.Size <= 0 {
		return fmt.Errorf("%w: size must be > 0", ErrInvalidTool)
	}
	if math.IsNaN(t.Opacity) || t.Opacity < 0 || t.Opacity > 1 {
		return fmt.Errorf("%w: opacity must be within [0, 1]", ErrInvalidTool)
	}
	if t.Mode != "" && !t.Mode.Valid() {
		return fmt.Errorf("%w: unknown composite mode %q", ErrInvalidTool, t.Mode)
	}
	return nil
}

// Normalized fills defaults for optional fields.
func (t Tool) Normalized() Tool {
	if t.Mode == "" {
		t.Mode = CompositeNormal
	}
	return t
}
