// Package redact implements the document redaction pipeline: document
// classification, the text-layer path for digital PDFs, the OCR path for
// scanned pages, and the orchestrator tying them together.
package redact

import (
	"errors"
	"fmt"
)

var (
	// ErrPasswordRequired is returned for encrypted input that could not be
	// unlocked. A missing password and a wrong password produce this same
	// error; callers cannot tell the two apart.
	ErrPasswordRequired = errors.New("redact: password required")

	// ErrUnsupportedFormat is returned when the input extension is not a
	// supported document or image type.
	ErrUnsupportedFormat = errors.New("redact: unsupported file format")

	// ErrOCRUnavailable marks the OCR backend as unusable on this host. The
	// orchestrator handles it internally by degrading to the text-layer
	// path; it escapes only when no fallback applies.
	ErrOCRUnavailable = errors.New("redact: ocr engine unavailable")
)

// ProcessingError wraps an unexpected failure inside the pipeline with the
// stage it occurred in.
type ProcessingError struct {
	Stage string
	Err   error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("redact: %s: %v", e.Stage, e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }

func processingErr(stage string, err error) error {
	return &ProcessingError{Stage: stage, Err: err}
}
