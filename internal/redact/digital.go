package redact

import (
	"context"

	"go.uber.org/zap"

	"github.com/vipul-space23/SafeDocs-Pdf-Redaction-System/internal/logger"
	"github.com/vipul-space23/SafeDocs-Pdf-Redaction-System/internal/pdf"
	"github.com/vipul-space23/SafeDocs-Pdf-Redaction-System/internal/pii"
)

// redactDigital runs the text-layer path over every page: detect matches in
// the extracted text, locate each occurrence, and commit destructive marks.
// It returns the number of marks applied and a per-label tally.
func redactDigital(ctx context.Context, log *logger.Logger, doc *pdf.Document, level pii.Level) (int, map[string]int, error) {
	total := 0
	labels := make(map[string]int)
	for pageNum, page := range doc.Pages {
		if err := ctx.Err(); err != nil {
			return total, labels, err
		}
		matches := pii.Find(page.Text(), level)
		applied := 0
		for _, m := range matches {
			boxes := page.SearchFor(m.Text)
			if len(boxes) == 0 {
				// Text detected but not locatable on the page, e.g. a value
				// split across spans. Leaving it is safer than guessing at a
				// box that might cover unrelated content.
				log.Warn("detected value could not be located on page",
					zap.Int("page", pageNum),
					zap.String("label", string(m.Label)))
				continue
			}
			for _, box := range boxes {
				page.AddRedaction(pdf.RedactMark{Box: box, Mask: m.Mask})
				applied++
				labels[string(m.Label)]++
			}
		}
		page.ApplyRedactions()
		total += applied
		if applied > 0 {
			log.Debug("page redacted",
				zap.Int("page", pageNum),
				zap.Int("marks", applied))
		}
	}
	return total, labels, nil
}
