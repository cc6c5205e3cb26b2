package redact

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/vipul-space23/SafeDocs-Pdf-Redaction-System/internal/logger"
	"github.com/vipul-space23/SafeDocs-Pdf-Redaction-System/internal/ocr"
	"github.com/vipul-space23/SafeDocs-Pdf-Redaction-System/internal/pdf"
	"github.com/vipul-space23/SafeDocs-Pdf-Redaction-System/internal/pii"
)

const (
	// renderZoom upsamples pages before recognition; small print on ID
	// documents is unreadable at native resolution.
	renderZoom = 2.0
	// occlusionPad grows each redaction box so recognition jitter at the
	// glyph edges cannot leave a readable sliver.
	occlusionPad = 3.0
)

// pageWord is an OCR word with its box mapped back to page coordinates.
type pageWord struct {
	text string
	box  pdf.Rect
}

// redactScanned runs the OCR path: render each page, recognize words,
// detect matches in the joined word text, align each match back onto word
// boxes and destroy the pixels underneath. It returns the number of
// occluded regions and a per-label tally.
func redactScanned(ctx context.Context, log *logger.Logger, eng ocr.Engine, doc *pdf.Document, level pii.Level) (int, map[string]int, error) {
	total := 0
	labels := make(map[string]int)
	for pageNum, page := range doc.Pages {
		if err := ctx.Err(); err != nil {
			return total, labels, err
		}
		raster, err := page.Render(renderZoom)
		if err != nil {
			return total, labels, processingErr("render page", err)
		}
		rawWords, err := eng.Words(ctx, raster)
		if err != nil {
			return total, labels, processingErr("ocr page", err)
		}
		if len(rawWords) == 0 {
			continue
		}

		words := make([]pageWord, 0, len(rawWords))
		var blob strings.Builder
		for i, w := range rawWords {
			if i > 0 {
				blob.WriteByte(' ')
			}
			blob.WriteString(w.Text)
			words = append(words, pageWord{
				text: w.Text,
				box: pdf.Rect{
					X0: w.Bounds.X / renderZoom,
					Y0: w.Bounds.Y / renderZoom,
					X1: (w.Bounds.X + w.Bounds.Width) / renderZoom,
					Y1: (w.Bounds.Y + w.Bounds.Height) / renderZoom,
				},
			})
		}

		matches := pii.Find(blob.String(), level)
		consumed := make([]bool, len(words))
		var boxes []pdf.Rect
		for _, m := range matches {
			box, ok := alignMatch(words, consumed, m.Text)
			if !ok {
				// The match exists in the recognized text but its tokens
				// could not be mapped back to word boxes. Skip rather than
				// occlude a guessed region.
				log.Warn("ocr match could not be aligned to word boxes",
					zap.Int("page", pageNum),
					zap.String("label", string(m.Label)))
				continue
			}
			boxes = append(boxes, box.Pad(occlusionPad))
			labels[string(m.Label)]++
		}
		if len(boxes) == 0 {
			continue
		}

		for i := range page.Images {
			im := &page.Images[i]
			var hit []pdf.Rect
			for _, b := range boxes {
				if b.Intersects(im.Box) {
					hit = append(hit, b)
				}
			}
			if len(hit) == 0 {
				continue
			}
			if err := im.Burn(hit); err != nil {
				return total, labels, processingErr("occlude image", err)
			}
		}
		// A fill on top covers regions falling outside every image plane.
		for _, b := range boxes {
			page.Fills = append(page.Fills, pdf.FillRect{Box: b, Color: pdf.Black})
		}
		total += len(boxes)
		log.Debug("page occluded",
			zap.Int("page", pageNum),
			zap.Int("regions", len(boxes)))
	}
	return total, labels, nil
}

// alignMatch finds the first unconsumed run of words whose tokens equal the
// match text token-for-token, ignoring surrounding punctuation but not
// letter case. Matched words are consumed so a repeated value maps each
// occurrence to a distinct run. It returns the union of the matched word
// boxes.
func alignMatch(words []pageWord, consumed []bool, matchText string) (pdf.Rect, bool) {
	tokens := strings.Fields(matchText)
	normTokens := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if n := trimPunct(t); n != "" {
			normTokens = append(normTokens, n)
		}
	}
	if len(normTokens) == 0 {
		return pdf.Rect{}, false
	}

	for start := 0; start+len(normTokens) <= len(words); start++ {
		ok := true
		for j, tok := range normTokens {
			if consumed[start+j] || trimPunct(words[start+j].text) != tok {
				ok = false
				break
			}
		}
		if !ok {
			continue
		}
		var box pdf.Rect
		for j := range normTokens {
			consumed[start+j] = true
			box = box.Union(words[start+j].box)
		}
		return box, true
	}
	return pdf.Rect{}, false
}

// trimPunct strips leading and trailing characters that are neither letters
// nor digits. OCR output carries stray punctuation at token edges.
func trimPunct(s string) string {
	start, end := 0, len(s)
	for start < end && !isAlnum(s[start]) {
		start++
	}
	for end > start && !isAlnum(s[end-1]) {
		end--
	}
	return s[start:end]
}

func isAlnum(c byte) bool {
	return c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}
