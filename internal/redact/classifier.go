package redact

import (
	"strings"

	"github.com/vipul-space23/SafeDocs-Pdf-Redaction-System/internal/pdf"
)

// A page counts as scanned when its extractable text is negligible while at
// least one raster image is present. Short OCR artifacts and stray
// watermark glyphs stay under this threshold.
const scannedTextThreshold = 20

// pageIsScanned reports whether a single page looks like a scanned raster
// rather than born-digital content.
func pageIsScanned(p *pdf.Page) bool {
	text := strings.TrimSpace(p.Text())
	return len(text) < scannedTextThreshold && len(p.Images) > 0
}

// classifyScanned reports whether the document as a whole should take the
// OCR path: more than half of its pages must look scanned. A document with
// no pages is treated as digital.
func classifyScanned(doc *pdf.Document) bool {
	if len(doc.Pages) == 0 {
		return false
	}
	scanned := 0
	for _, p := range doc.Pages {
		if pageIsScanned(p) {
			scanned++
		}
	}
	return scanned > len(doc.Pages)/2
}
