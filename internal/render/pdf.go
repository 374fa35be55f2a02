package render

import (
	"bytes"
	"fmt"
	"io"

	"github.com/jung-kurt/gofpdf"
)

// ExportPDF writes a single page PDF sized to the surface with the surface
// embedded as a PNG image, one PDF point per pixel.
func ExportPDF(w io.Writer, s *Surface, title string) error {
	data, err := s.EncodePNG()
	if err != nil {
		return err
	}

	wd, ht := float64(s.Width()), float64(s.Height())
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           gofpdf.SizeType{Wd: wd, Ht: ht},
	})
	pdf.SetTitle(title, true)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("board", opts, bytes.NewReader(data))
	pdf.ImageOptions("board", 0, 0, wd, ht, false, opts, 0, "")

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("failed to write pdf: %w", err)
	}
	return nil
}
