package render

import (
	"errors"
	"image"
	"image/color"
	"image/draw"

	"sketchroom/internal/core/domain"
)

// ErrSurfaceUnavailable is returned when a surface has no backing pixels.
var ErrSurfaceUnavailable = errors.New("render surface unavailable")

// Surface is a straight-alpha RGBA bitmap that strokes are composited onto.
type Surface struct {
	img *image.NRGBA
}

func NewSurface(width, height int) *Surface {
	if width <= 0 || height <= 0 {
		return &Surface{}
	}
	return &Surface{img: image.NewNRGBA(image.Rect(0, 0, width, height))}
}

// SurfaceFromImage copies img into a new surface.
func SurfaceFromImage(img image.Image) *Surface {
	b := img.Bounds()
	s := NewSurface(b.Dx(), b.Dy())
	if s.img != nil {
		draw.Draw(s.img, s.img.Bounds(), img, b.Min, draw.Src)
	}
	return s
}

func (s *Surface) Available() bool {
	return s != nil && s.img != nil
}

func (s *Surface) Width() int {
	if !s.Available() {
		return 0
	}
	return s.img.Rect.Dx()
}

func (s *Surface) Height() int {
	if !s.Available() {
		return 0
	}
	return s.img.Rect.Dy()
}

// Image exposes the backing bitmap. Callers must not retain it across
// canvas mutations.
func (s *Surface) Image() *image.NRGBA {
	return s.img
}

func (s *Surface) At(x, y int) color.NRGBA {
	return s.img.NRGBAAt(x, y)
}

func (s *Surface) Clear() {
	if !s.Available() {
		return
	}
	clear(s.img.Pix)
}

// CopyFrom replaces every pixel with the matching pixel of src.
func (s *Surface) CopyFrom(src *Surface) error {
	if !s.Available() || !src.Available() {
		return ErrSurfaceUnavailable
	}
	copy(s.img.Pix, src.img.Pix)
	return nil
}

// DrawSurface composites src over s with source-over.
func (s *Surface) DrawSurface(src *Surface) error {
	if !s.Available() || !src.Available() {
		return ErrSurfaceUnavailable
	}
	dst, sp := s.img.Pix, src.img.Pix
	n := min(len(dst), len(sp))
	for i := 0; i < n; i += 4 {
		sa := sp[i+3]
		switch {
		case sa == 0:
		case sa == 255 || dst[i+3] == 0:
			copy(dst[i:i+4], sp[i:i+4])
		default:
			blendOver(dst[i:i+4], float64(sp[i])/255, float64(sp[i+1])/255, float64(sp[i+2])/255, float64(sa)/255)
		}
	}
	return nil
}

// Equal reports whether both surfaces hold identical pixels.
func (s *Surface) Equal(o *Surface) bool {
	if !s.Available() || !o.Available() {
		return s.Available() == o.Available()
	}
	if s.img.Rect != o.img.Rect {
		return false
	}
	for i := range s.img.Pix {
		if s.img.Pix[i] != o.img.Pix[i] {
			return false
		}
	}
	return true
}

// compositeMask applies a solid color through an RGBA coverage mask whose
// alpha byte is the coverage of each pixel.
func (s *Surface) compositeMask(mask []uint8, r, g, b, alpha float64, mode domain.CompositeMode) {
	dst := s.img.Pix
	n := min(len(dst), len(mask))
	for i := 0; i < n; i += 4 {
		cov := mask[i+3]
		if cov == 0 {
			continue
		}
		sa := alpha * float64(cov) / 255
		if mode == domain.CompositeErase {
			blendOut(dst[i:i+4], sa)
			continue
		}
		blendOver(dst[i:i+4], r, g, b, sa)
	}
}

func blendOver(px []uint8, r, g, b, sa float64) {
	da := float64(px[3]) / 255
	outA := sa + da*(1-sa)
	if outA <= 0 {
		clear(px)
		return
	}
	w := da * (1 - sa)
	px[0] = to8((r*sa + float64(px[0])/255*w) / outA)
	px[1] = to8((g*sa + float64(px[1])/255*w) / outA)
	px[2] = to8((b*sa + float64(px[2])/255*w) / outA)
	px[3] = to8(outA)
}

func blendOut(px []uint8, sa float64) {
	outA := float64(px[3]) / 255 * (1 - sa)
	a := to8(outA)
	if a == 0 {
		clear(px)
		return
	}
	px[3] = a
}

func to8(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 1:
		return 255
	}
	return uint8(v*255 + 0.5)
}
