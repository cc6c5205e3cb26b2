package ocr

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"
)

// TesseractEngine implements Engine on the gosseract client. A fresh client
// is created per call; the library is not reentrant on a shared client.
type TesseractEngine struct {
	languages     []string
	clientFactory func() *gosseract.Client

	probeOnce sync.Once
	probeOK   bool
}

// NewTesseractEngine constructs a Tesseract-backed engine. languages may be
// empty, leaving the library default ("eng").
func NewTesseractEngine(languages ...string) *TesseractEngine {
	return &TesseractEngine{
		languages:     languages,
		clientFactory: gosseract.NewClient,
	}
}

func (e *TesseractEngine) Name() string { return "tesseract" }

// Available probes the installed tesseract data once per process. A host
// without the native library or language packs reports false and the probe
// is not retried.
func (e *TesseractEngine) Available() bool {
	e.probeOnce.Do(func() {
		defer func() {
			// The cgo layer can panic when the native library is absent.
			if r := recover(); r != nil {
				e.probeOK = false
			}
		}()
		langs, err := gosseract.GetAvailableLanguages()
		e.probeOK = err == nil && len(langs) > 0
	})
	return e.probeOK
}

// Words recognizes word tokens with their pixel bounding boxes.
func (e *TesseractEngine) Words(ctx context.Context, img []byte) ([]Word, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c := e.clientFactory()
	defer c.Close()

	if err := c.SetImageFromBytes(img); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}
	if len(e.languages) > 0 {
		if err := c.SetLanguage(e.languages...); err != nil {
			return nil, fmt.Errorf("set languages: %w", err)
		}
	}
	boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, fmt.Errorf("get word boxes: %w", err)
	}
	words := make([]Word, 0, len(boxes))
	for _, b := range boxes {
		text := cleanWord(b.Word)
		if text == "" {
			continue
		}
		words = append(words, Word{
			Text: text,
			Bounds: Region{
				X:      float64(b.Box.Min.X),
				Y:      float64(b.Box.Min.Y),
				Width:  float64(b.Box.Dx()),
				Height: float64(b.Box.Dy()),
			},
			Confidence: b.Confidence / 100.0,
		})
	}
	return words, nil
}

// cleanWord normalizes one recognized token. Recognition sometimes pads
// tokens with whitespace; a padded token would put a double space into the
// joined page text and split values that tolerate single separators only.
func cleanWord(s string) string {
	return strings.TrimSpace(s)
}
