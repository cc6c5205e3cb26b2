// Package ocr defines the text recognition boundary used by the scanned
// document path and its Tesseract-backed implementation.
package ocr

import "context"

// Region is a word bounding box in raster pixel coordinates, origin at the
// top-left corner of the image.
type Region struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// Word is a single recognized token with its position and the engine's
// confidence in [0,1].
type Word struct {
	Text       string
	Bounds     Region
	Confidence float64
}

// Engine recognizes words in raster images. Implementations must be safe
// for concurrent use; the redaction engine calls Words from one goroutine
// per request.
type Engine interface {
	Name() string
	// Available reports whether the engine's backend is usable in this
	// process. Callers consult it once per request and fall back to
	// text-layer redaction when it returns false.
	Available() bool
	// Words runs recognition on an encoded image (PNG or JPEG) and returns
	// the detected words in reading order.
	Words(ctx context.Context, img []byte) ([]Word, error)
}
