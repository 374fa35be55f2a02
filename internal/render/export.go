package render

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/png"
	"strings"
)

const dataURLPrefix = "data:image/png;base64,"

var ErrInvalidDataURL = errors.New("invalid PNG data URL")

// EncodePNG writes the surface as a lossless straight-alpha PNG.
func (s *Surface) EncodePNG() ([]byte, error) {
	if !s.Available() {
		return nil, ErrSurfaceUnavailable
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, s.img); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// ExportPNG encodes the committed surface.
func (c *Canvas) ExportPNG() ([]byte, error) {
	return c.Snapshot().EncodePNG()
}

// ExportDataURL encodes the committed surface as a data URL.
func (c *Canvas) ExportDataURL() (string, error) {
	data, err := c.ExportPNG()
	if err != nil {
		return "", err
	}
	return EncodeDataURL(data), nil
}

func EncodeDataURL(pngData []byte) string {
	return dataURLPrefix + base64.StdEncoding.EncodeToString(pngData)
}

// DecodePNG decodes PNG bytes into a surface.
func DecodePNG(data []byte) (*Surface, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode png: %w", err)
	}
	if nrgba, ok := img.(*image.NRGBA); ok {
		return &Surface{img: nrgba}, nil
	}
	return SurfaceFromImage(img), nil
}

// DecodeDataURL decodes a data:image/png;base64 URL into a surface.
func DecodeDataURL(dataURL string) (*Surface, error) {
	if !strings.HasPrefix(dataURL, dataURLPrefix) {
		return nil, ErrInvalidDataURL
	}
	raw, err := base64.StdEncoding.DecodeString(dataURL[len(dataURLPrefix):])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDataURL, err)
	}
	return DecodePNG(raw)
}

// LoadCanvas builds a canvas sized to the stored image with both surfaces
// holding its pixels.
func LoadCanvas(dataURL string, opts ...CanvasOption) (*Canvas, error) {
	src, err := DecodeDataURL(dataURL)
	if err != nil {
		return nil, err
	}
	c := NewCanvas(src.Width(), src.Height(), opts...)
	if err := c.Hydrate(src); err != nil {
		return nil, err
	}
	return c, nil
}
