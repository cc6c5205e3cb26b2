package redact

import (
	"context"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/vipul-space23/SafeDocs-Pdf-Redaction-System/internal/logger"
	"github.com/vipul-space23/SafeDocs-Pdf-Redaction-System/internal/ocr"
	"github.com/vipul-space23/SafeDocs-Pdf-Redaction-System/internal/pdf"
	"github.com/vipul-space23/SafeDocs-Pdf-Redaction-System/internal/pii"
)

// Mode identifies which redaction path produced a result.
type Mode string

const (
	// ModeDigital is the text-layer path for born-digital documents.
	ModeDigital Mode = "digital"
	// ModeScanned is the OCR path for scanned documents.
	ModeScanned Mode = "scanned"
	// ModeDegraded marks a scanned document processed on the text-layer
	// path because no OCR backend was usable.
	ModeDegraded Mode = "degraded"
)

// Engine orchestrates the full pipeline for one document at a time. It is
// stateless between requests and safe for concurrent use.
type Engine struct {
	log *logger.Logger
	ocr ocr.Engine
}

// NewEngine builds an orchestrator. eng may be nil when no OCR backend is
// compiled in; scanned documents then degrade to the text-layer path.
func NewEngine(log *logger.Logger, eng ocr.Engine) *Engine {
	return &Engine{log: log.WithComponent("redact"), ocr: eng}
}

// Request carries one document through the pipeline.
type Request struct {
	Data     []byte
	Filename string
	Password string
	Level    string
}

// Result is the outcome of a completed redaction. LabelCounts tallies
// applied redactions by label; it never carries the matched values.
type Result struct {
	PDF         []byte
	Level       pii.Level
	Mode        Mode
	Pages       int
	Redactions  int
	LabelCounts map[string]int
}

// Redact runs the pipeline end to end: open, unlock, classify, redact and
// serialize. The output bytes never share storage with the input; removed
// content is not present in them.
func (e *Engine) Redact(ctx context.Context, req Request) (*Result, error) {
	level := pii.ParseLevel(req.Level)
	doc, err := e.open(req)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	mode := ModeDigital
	if classifyScanned(doc) {
		if e.ocrUsable() {
			mode = ModeScanned
		} else {
			// Text-layer redaction still runs; raster-only content is
			// beyond reach without recognition, and the caller needs to
			// know that.
			mode = ModeDegraded
			e.log.Warn("scanned document processed without ocr",
				zap.String("file", req.Filename),
				zap.Error(ErrOCRUnavailable))
		}
	}

	var count int
	var labels map[string]int
	switch mode {
	case ModeScanned:
		count, labels, err = redactScanned(ctx, e.log, e.ocr, doc, level)
	default:
		count, labels, err = redactDigital(ctx, e.log, doc, level)
	}
	if err != nil {
		return nil, err
	}

	out, err := doc.Save()
	if err != nil {
		return nil, processingErr("serialize document", err)
	}
	e.log.Info("document redacted",
		zap.String("file", req.Filename),
		zap.String("mode", string(mode)),
		zap.String("level", string(level)),
		zap.Int("pages", len(doc.Pages)),
		zap.Int("redactions", count))
	return &Result{
		PDF:         out,
		Level:       level,
		Mode:        mode,
		Pages:       len(doc.Pages),
		Redactions:  count,
		LabelCounts: labels,
	}, nil
}

// Inspection describes a document without modifying it.
type Inspection struct {
	Pages     int
	Scanned   bool
	Encrypted bool
	Text      string
	Matches   []pii.Match
}

// Inspect opens a document and reports what redaction would act on: page
// count, classification and the detected values. Scanned documents are read
// through OCR when a backend is usable.
func (e *Engine) Inspect(ctx context.Context, req Request) (*Inspection, error) {
	level := pii.ParseLevel(req.Level)
	doc, err := e.open(req)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	scanned := classifyScanned(doc)
	text := doc.Text()
	if scanned && e.ocrUsable() {
		text, err = e.recognizeText(ctx, doc)
		if err != nil {
			return nil, err
		}
	}
	return &Inspection{
		Pages:     len(doc.Pages),
		Scanned:   scanned,
		Encrypted: doc.IsEncrypted(),
		Text:      text,
		Matches:   pii.Find(text, level),
	}, nil
}

// open parses the input by extension and unlocks it if encrypted. A wrong
// and a missing password fail identically.
func (e *Engine) open(req Request) (*pdf.Document, error) {
	ext := strings.ToLower(filepath.Ext(req.Filename))
	if !SupportedExtension(ext) {
		return nil, ErrUnsupportedFormat
	}
	var doc *pdf.Document
	var err error
	if ext == ".pdf" {
		doc, err = pdf.Read(req.Data)
	} else {
		doc, err = ingestImage(req.Data)
	}
	if err != nil {
		return nil, processingErr("open document", err)
	}
	if doc.IsEncrypted() && !doc.Authenticate(req.Password) {
		doc.Close()
		return nil, ErrPasswordRequired
	}
	return doc, nil
}

func (e *Engine) ocrUsable() bool {
	return e.ocr != nil && e.ocr.Available()
}

// recognizeText renders every page and joins the recognized words, pages
// separated by blank lines.
func (e *Engine) recognizeText(ctx context.Context, doc *pdf.Document) (string, error) {
	var pages []string
	for _, page := range doc.Pages {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		raster, err := page.Render(renderZoom)
		if err != nil {
			return "", processingErr("render page", err)
		}
		words, err := e.ocr.Words(ctx, raster)
		if err != nil {
			return "", processingErr("ocr page", err)
		}
		texts := make([]string, 0, len(words))
		for _, w := range words {
			texts = append(texts, w.Text)
		}
		if len(texts) > 0 {
			pages = append(pages, strings.Join(texts, " "))
		}
	}
	return strings.Join(pages, "\n\n"), nil
}
