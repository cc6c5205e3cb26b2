package redact

import (
	"bytes"
	"fmt"
	"image"
	"strings"

	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"github.com/vipul-space23/SafeDocs-Pdf-Redaction-System/internal/pdf"
)

// supportedExtensions lists every input type the pipeline accepts, lowercase
// with the leading dot.
var supportedExtensions = map[string]bool{
	".pdf":  true,
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".bmp":  true,
	".tiff": true,
	".tif":  true,
}

// SupportedExtension reports whether ext (with leading dot, any case) is an
// accepted input type.
func SupportedExtension(ext string) bool {
	return supportedExtensions[strings.ToLower(ext)]
}

// ingestImage wraps a standalone raster image as a single-page document
// whose page dimensions equal the pixel dimensions, so OCR coordinates map
// straight onto page coordinates.
func ingestImage(data []byte) (*pdf.Document, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	b := img.Bounds()
	doc := pdf.NewDocument()
	page := doc.AddPage(float64(b.Dx()), float64(b.Dy()))
	box := pdf.Rect{X1: float64(b.Dx()), Y1: float64(b.Dy())}
	page.Images = append(page.Images, pdf.NewImageObject(img, box))
	return doc, nil
}
