package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/vipul-space23/SafeDocs-Pdf-Redaction-System/internal/logger"
	"github.com/vipul-space23/SafeDocs-Pdf-Redaction-System/internal/pdf"
	"github.com/vipul-space23/SafeDocs-Pdf-Redaction-System/internal/pii"
	"github.com/vipul-space23/SafeDocs-Pdf-Redaction-System/internal/redact"
	"github.com/vipul-space23/SafeDocs-Pdf-Redaction-System/internal/websocket"
	"go.uber.org/zap"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// readUpload pulls the uploaded document out of a multipart form. The form
// field is named "file"; the request body is capped at the configured limit
// before any of it is parsed.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) ([]byte, string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes())
	if err := r.ParseMultipartForm(s.maxUploadBytes()); err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{
			"status": "upload_too_large",
		})
		return nil, "", false
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"status": "missing_file",
		})
		return nil, "", false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"status": "read_failed",
		})
		return nil, "", false
	}
	return data, filepath.Base(header.Filename), true
}

// requestLevel resolves the redaction level for a request: form field first,
// then the X-Redaction-Level header, then the configured default. Unknown
// values are coerced downstream, never rejected here.
func (s *Server) requestLevel(r *http.Request) string {
	if level := r.FormValue("redaction_level"); level != "" {
		return level
	}
	if level := r.FormValue("level"); level != "" {
		return level
	}
	if level := r.Header.Get("X-Redaction-Level"); level != "" {
		return level
	}
	return s.config.Redaction.DefaultLevel
}

// handleRedact accepts a document and returns the redacted PDF. The
// response bytes are a fresh serialization; nothing that was redacted
// survives in them.
func (s *Server) handleRedact(w http.ResponseWriter, r *http.Request) {
	requestID := getRequestID(r.Context())
	log := s.logger.WithRequestID(requestID)

	data, filename, ok := s.readUpload(w, r)
	if !ok {
		return
	}
	level := s.requestLevel(r)

	ctx, cancel := context.WithTimeout(r.Context(), s.config.Redaction.RequestTimeout)
	defer cancel()

	start := time.Now()
	res, err := s.engine.Redact(ctx, redact.Request{
		Data:     data,
		Filename: filename,
		Password: r.FormValue("password"),
		Level:    level,
	})
	if err != nil {
		s.writeRedactError(w, log, filename, err)
		return
	}

	s.wsHub.BroadcastEvent(websocket.Event{
		Type:      websocket.EventTypeRedaction,
		Timestamp: time.Now(),
		RequestID: requestID,
		Data: websocket.RedactionEvent{
			RequestID:    requestID,
			Filename:     filename,
			Mode:         string(res.Mode),
			Level:        string(res.Level),
			Pages:        res.Pages,
			Redactions:   res.Redactions,
			LabelCounts:  res.LabelCounts,
			ProcessingMS: float64(time.Since(start).Microseconds()) / 1000.0,
		},
	})

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="%s_redacted.pdf"`,
			strings.TrimSuffix(filename, filepath.Ext(filename))))
	w.Header().Set("X-Redaction-Level", string(res.Level))
	w.Header().Set("X-Redaction-Mode", string(res.Mode))
	w.WriteHeader(http.StatusOK)
	w.Write(res.PDF)
}

func (s *Server) writeRedactError(w http.ResponseWriter, log *logger.Logger, filename string, err error) {
	switch {
	case errors.Is(err, redact.ErrPasswordRequired):
		writeJSON(w, http.StatusLocked, map[string]string{
			"error": "password_required",
		})
	case errors.Is(err, redact.ErrUnsupportedFormat):
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "unsupported_format",
		})
	case errors.Is(err, context.DeadlineExceeded):
		log.Error("Redaction timed out", zap.String("file", filename), zap.Error(err))
		writeJSON(w, http.StatusGatewayTimeout, map[string]string{
			"error": "processing_timeout",
		})
	default:
		log.Error("Redaction failed", zap.String("file", filename), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "processing_failed",
		})
	}
}

// handleRedactInfo describes the available redaction levels.
func (s *Server) handleRedactInfo(w http.ResponseWriter, r *http.Request) {
	type levelInfo struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	levels := make([]levelInfo, 0, 3)
	for _, level := range pii.Levels() {
		levels = append(levels, levelInfo{
			Name:        string(level),
			Description: pii.Describe(level),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"levels":        levels,
		"default_level": s.config.Redaction.DefaultLevel,
		"ocr_available": s.ocrAvailable(),
	})
}

// handleUpload stores a document for later processing and reports whether a
// password is needed before anything can be done with it.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	data, filename, ok := s.readUpload(w, r)
	if !ok {
		return
	}
	if !redact.SupportedExtension(strings.ToLower(filepath.Ext(filename))) {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "unsupported_format",
		})
		return
	}

	fileID, err := s.store.Save(filename, data)
	if err != nil {
		s.logger.Error("Failed to store upload", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"status": "storage_failed",
		})
		return
	}

	status := "ready_for_processing"
	if strings.EqualFold(filepath.Ext(filename), ".pdf") {
		if doc, err := pdf.Read(data); err == nil {
			if doc.IsEncrypted() {
				status = "password_required"
			}
			doc.Close()
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":   status,
		"file_id":  fileID,
		"filename": filename,
	})
}

// handleDecrypt unlocks a stored PDF with the supplied password and keeps a
// decrypted copy alongside the original. A wrong password is reported the
// same way regardless of why authentication failed.
func (s *Server) handleDecrypt(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(s.maxUploadBytes()); err != nil {
		r.ParseForm()
	}
	fileID := r.FormValue("file_id")
	filename := r.FormValue("filename")
	password := r.FormValue("password")
	if fileID == "" || filename == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"status": "missing_parameters",
		})
		return
	}

	data, _, err := s.store.Read(fileID, filename)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"status": "file_not_found",
		})
		return
	}

	doc, err := pdf.Read(data)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"status": "invalid_pdf",
		})
		return
	}
	defer doc.Close()

	if doc.IsEncrypted() && !doc.Authenticate(password) {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"status": "wrong_password",
		})
		return
	}

	// Re-serialize without encryption so later stages read it directly.
	plain, err := doc.Save()
	if err != nil {
		s.logger.Error("Failed to re-serialize decrypted document", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"status": "processing_failed",
		})
		return
	}
	if err := s.store.SaveDecrypted(fileID, filename, plain); err != nil {
		s.logger.Error("Failed to store decrypted copy", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"status": "storage_failed",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "decrypted",
		"file_id":  fileID,
		"filename": filename,
	})
}

// handleExtractText reports the detected PII values in a stored document,
// one per line. Detection always runs at the widest level so the caller
// sees everything redaction could touch.
func (s *Server) handleExtractText(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	data, _, err := s.store.Read(vars["fileID"], vars["filename"])
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"status": "file_not_found",
		})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.config.Redaction.RequestTimeout)
	defer cancel()

	insp, err := s.engine.Inspect(ctx, redact.Request{
		Data:     data,
		Filename: vars["filename"],
		Level:    string(pii.LevelHigh),
	})
	if err != nil {
		if errors.Is(err, redact.ErrPasswordRequired) {
			writeJSON(w, http.StatusLocked, map[string]string{
				"status": "password_required",
			})
			return
		}
		s.logger.Error("Text extraction failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"status": "processing_failed",
		})
		return
	}

	lines := make([]string, 0, len(insp.Matches))
	for _, m := range insp.Matches {
		lines = append(lines, m.Text)
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "success",
		"text":   strings.Join(lines, "\n"),
	})
}

// handleFileGet serves a stored document, preferring the decrypted copy
// when one exists.
func (s *Server) handleFileGet(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	data, path, err := s.store.Read(vars["fileID"], vars["filename"])
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"status": "file_not_found",
			})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"status": "read_failed",
		})
		return
	}

	w.Header().Set("Content-Type", contentTypeFor(path))
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`inline; filename="%s"`, filepath.Base(path)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// handleFileDelete removes a stored document and its decrypted copy.
func (s *Server) handleFileDelete(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if !s.store.Delete(vars["fileID"], vars["filename"]) {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"status": "file_not_found",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "files_deleted",
	})
}

func contentTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return "application/pdf"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".bmp":
		return "image/bmp"
	case ".tiff", ".tif":
		return "image/tiff"
	default:
		return "application/octet-stream"
	}
}
