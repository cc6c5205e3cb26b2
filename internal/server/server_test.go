package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/vipul-space23/SafeDocs-Pdf-Redaction-System/internal/config"
	"github.com/vipul-space23/SafeDocs-Pdf-Redaction-System/internal/logger"
	"github.com/vipul-space23/SafeDocs-Pdf-Redaction-System/internal/pdf"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.GetDefaults()
	cfg.Storage.UploadDir = t.TempDir()
	cfg.Security.RateLimit.Enabled = false
	return cfg
}

func newTestServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()
	log := &logger.Logger{Logger: zap.NewNop()}
	srv, err := New(cfg, log, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return srv
}

func pdfFixture(t *testing.T, opts pdf.SaveOptions) []byte {
	t.Helper()
	doc := pdf.NewDocument()
	page := doc.AddPage(612, 792)
	page.Spans = append(page.Spans, pdf.TextSpan{
		Text:  "Applicant PAN: ABCDE1234F issued in Mumbai",
		Size:  12,
		Color: pdf.Black,
		Box:   pdf.Rect{X0: 72, Y0: 100, X1: 472, Y1: 112},
	})
	data, err := doc.SaveWithOptions(opts)
	if err != nil {
		t.Fatalf("SaveWithOptions: %v", err)
	}
	return data
}

func multipartUpload(t *testing.T, filename string, data []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("write part: %v", err)
	}
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func doRequest(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not JSON: %v\n%s", err, rec.Body.String())
	}
	return body
}

func TestHealthAndInfo(t *testing.T) {
	srv := newTestServer(t, testConfig(t))

	rec := doRequest(srv, httptest.NewRequest("GET", "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d", rec.Code)
	}
	if body := decodeJSON(t, rec); body["status"] != "healthy" {
		t.Errorf("health body = %v", body)
	}

	rec = doRequest(srv, httptest.NewRequest("GET", "/info", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("info status = %d", rec.Code)
	}
	body := decodeJSON(t, rec)
	if body["name"] != "safedocs" {
		t.Errorf("info name = %v", body["name"])
	}
	if body["ocr_available"] != false {
		t.Errorf("ocr_available = %v, want false without a backend", body["ocr_available"])
	}
}

func TestRedactEndpoint(t *testing.T) {
	srv := newTestServer(t, testConfig(t))
	fixture := pdfFixture(t, pdf.SaveOptions{})

	t.Run("RedactsAtRequestedLevel", func(t *testing.T) {
		buf, ctype := multipartUpload(t, "form.pdf", fixture, map[string]string{"redaction_level": "high"})
		req := httptest.NewRequest("POST", "/redact", buf)
		req.Header.Set("Content-Type", ctype)
		rec := doRequest(srv, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
		}
		if got := rec.Header().Get("Content-Type"); got != "application/pdf" {
			t.Errorf("Content-Type = %q", got)
		}
		if got := rec.Header().Get("X-Redaction-Level"); got != "high" {
			t.Errorf("X-Redaction-Level = %q", got)
		}
		doc, err := pdf.Read(rec.Body.Bytes())
		if err != nil {
			t.Fatalf("output does not parse: %v", err)
		}
		defer doc.Close()
		text := doc.Text()
		if strings.Contains(text, "ABCDE1234F") {
			t.Error("PAN value survived redaction")
		}
		if !strings.Contains(text, "XXXXX1234X") {
			t.Errorf("mask missing from output text: %q", text)
		}
	})

	t.Run("LevelHeaderFallback", func(t *testing.T) {
		buf, ctype := multipartUpload(t, "form.pdf", fixture, nil)
		req := httptest.NewRequest("POST", "/redact", buf)
		req.Header.Set("Content-Type", ctype)
		req.Header.Set("X-Redaction-Level", "medium")
		rec := doRequest(srv, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		if got := rec.Header().Get("X-Redaction-Level"); got != "medium" {
			t.Errorf("X-Redaction-Level = %q, want medium", got)
		}
	})

	t.Run("DefaultLevelWhenUnspecified", func(t *testing.T) {
		buf, ctype := multipartUpload(t, "form.pdf", fixture, nil)
		req := httptest.NewRequest("POST", "/redact", buf)
		req.Header.Set("Content-Type", ctype)
		rec := doRequest(srv, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		if got := rec.Header().Get("X-Redaction-Level"); got != "low" {
			t.Errorf("X-Redaction-Level = %q, want configured default", got)
		}
	})

	t.Run("UnknownLevelCoerced", func(t *testing.T) {
		buf, ctype := multipartUpload(t, "form.pdf", fixture, map[string]string{"redaction_level": "paranoid"})
		req := httptest.NewRequest("POST", "/redact", buf)
		req.Header.Set("Content-Type", ctype)
		rec := doRequest(srv, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		if got := rec.Header().Get("X-Redaction-Level"); got != "low" {
			t.Errorf("X-Redaction-Level = %q, want low", got)
		}
	})

	t.Run("UnsupportedFormat", func(t *testing.T) {
		buf, ctype := multipartUpload(t, "report.docx", []byte("not a pdf"), nil)
		req := httptest.NewRequest("POST", "/redact", buf)
		req.Header.Set("Content-Type", ctype)
		rec := doRequest(srv, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
		if body := decodeJSON(t, rec); body["error"] != "unsupported_format" {
			t.Errorf("body = %v", body)
		}
	})

	t.Run("MissingFile", func(t *testing.T) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		mw.WriteField("level", "high")
		mw.Close()
		req := httptest.NewRequest("POST", "/redact", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		rec := doRequest(srv, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("EncryptedWithoutPassword", func(t *testing.T) {
		locked := pdfFixture(t, pdf.SaveOptions{UserPassword: "s3cret"})
		buf, ctype := multipartUpload(t, "locked.pdf", locked, nil)
		req := httptest.NewRequest("POST", "/redact", buf)
		req.Header.Set("Content-Type", ctype)
		rec := doRequest(srv, req)

		if rec.Code != http.StatusLocked {
			t.Fatalf("status = %d, want 423", rec.Code)
		}
		if body := decodeJSON(t, rec); body["error"] != "password_required" {
			t.Errorf("body = %v", body)
		}
	})

	t.Run("EncryptedWrongPasswordSameAnswer", func(t *testing.T) {
		locked := pdfFixture(t, pdf.SaveOptions{UserPassword: "s3cret"})
		buf, ctype := multipartUpload(t, "locked.pdf", locked, map[string]string{"password": "nope"})
		req := httptest.NewRequest("POST", "/redact", buf)
		req.Header.Set("Content-Type", ctype)
		rec := doRequest(srv, req)

		if rec.Code != http.StatusLocked {
			t.Fatalf("status = %d, want 423", rec.Code)
		}
		if body := decodeJSON(t, rec); body["error"] != "password_required" {
			t.Errorf("body = %v", body)
		}
	})

	t.Run("EncryptedWithPassword", func(t *testing.T) {
		locked := pdfFixture(t, pdf.SaveOptions{UserPassword: "s3cret"})
		buf, ctype := multipartUpload(t, "locked.pdf", locked, map[string]string{
			"password": "s3cret",
			"level":    "high",
		})
		req := httptest.NewRequest("POST", "/redact", buf)
		req.Header.Set("Content-Type", ctype)
		rec := doRequest(srv, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
		}
		doc, err := pdf.Read(rec.Body.Bytes())
		if err != nil {
			t.Fatalf("output does not parse: %v", err)
		}
		defer doc.Close()
		if doc.IsEncrypted() {
			t.Error("redacted output is still encrypted")
		}
	})
}

func TestRedactInfo(t *testing.T) {
	srv := newTestServer(t, testConfig(t))
	rec := doRequest(srv, httptest.NewRequest("GET", "/redact-info", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeJSON(t, rec)
	levels, ok := body["levels"].([]any)
	if !ok || len(levels) != 3 {
		t.Fatalf("levels = %v", body["levels"])
	}
	first := levels[0].(map[string]any)
	if first["name"] != "low" {
		t.Errorf("first level = %v, want low", first["name"])
	}
	if body["default_level"] != "low" {
		t.Errorf("default_level = %v", body["default_level"])
	}
}

func TestUploadDecryptDownloadDelete(t *testing.T) {
	srv := newTestServer(t, testConfig(t))
	locked := pdfFixture(t, pdf.SaveOptions{UserPassword: "s3cret"})

	// Upload: an encrypted file must be flagged before processing.
	buf, ctype := multipartUpload(t, "locked.pdf", locked, nil)
	req := httptest.NewRequest("POST", "/upload", buf)
	req.Header.Set("Content-Type", ctype)
	rec := doRequest(srv, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("upload status = %d, body %s", rec.Code, rec.Body.String())
	}
	body := decodeJSON(t, rec)
	if body["status"] != "password_required" {
		t.Fatalf("upload status field = %v", body["status"])
	}
	fileID, _ := body["file_id"].(string)
	if fileID == "" {
		t.Fatal("upload returned no file_id")
	}

	decryptForm := func(password string) *httptest.ResponseRecorder {
		form := url.Values{}
		form.Set("file_id", fileID)
		form.Set("filename", "locked.pdf")
		form.Set("password", password)
		req := httptest.NewRequest("POST", "/decrypt", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return doRequest(srv, req)
	}

	// Wrong password is a 400, not a 423: the file is known, the caller
	// just supplied bad credentials.
	rec = decryptForm("wrong")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("decrypt wrong password status = %d", rec.Code)
	}
	if body := decodeJSON(t, rec); body["status"] != "wrong_password" {
		t.Errorf("decrypt body = %v", body)
	}

	rec = decryptForm("s3cret")
	if rec.Code != http.StatusOK {
		t.Fatalf("decrypt status = %d, body %s", rec.Code, rec.Body.String())
	}
	if body := decodeJSON(t, rec); body["status"] != "decrypted" {
		t.Errorf("decrypt body = %v", body)
	}

	// Download now serves the decrypted copy.
	path := fmt.Sprintf("/file/%s/locked.pdf", fileID)
	rec = doRequest(srv, httptest.NewRequest("GET", path, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("file get status = %d", rec.Code)
	}
	doc, err := pdf.Read(rec.Body.Bytes())
	if err != nil {
		t.Fatalf("served file does not parse: %v", err)
	}
	if doc.IsEncrypted() {
		t.Error("served file is still encrypted after decrypt")
	}
	doc.Close()

	// Extraction sees the values through the decrypted copy.
	rec = doRequest(srv, httptest.NewRequest("GET",
		fmt.Sprintf("/extract-text/%s/locked.pdf", fileID), nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("extract-text status = %d, body %s", rec.Code, rec.Body.String())
	}
	if body := decodeJSON(t, rec); !strings.Contains(body["text"].(string), "ABCDE1234F") {
		t.Errorf("extract-text = %v, want PAN value", body["text"])
	}

	rec = doRequest(srv, httptest.NewRequest("DELETE", path, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rec.Code)
	}
	if body := decodeJSON(t, rec); body["status"] != "files_deleted" {
		t.Errorf("delete body = %v", body)
	}

	rec = doRequest(srv, httptest.NewRequest("GET", path, nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", rec.Code)
	}
	rec = doRequest(srv, httptest.NewRequest("DELETE", path, nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", rec.Code)
	}
}

func TestUploadPlainReady(t *testing.T) {
	srv := newTestServer(t, testConfig(t))
	buf, ctype := multipartUpload(t, "open.pdf", pdfFixture(t, pdf.SaveOptions{}), nil)
	req := httptest.NewRequest("POST", "/upload", buf)
	req.Header.Set("Content-Type", ctype)
	rec := doRequest(srv, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if body := decodeJSON(t, rec); body["status"] != "ready_for_processing" {
		t.Errorf("body = %v", body)
	}
}

func TestUploadUnsupportedFormat(t *testing.T) {
	srv := newTestServer(t, testConfig(t))
	buf, ctype := multipartUpload(t, "macro.xlsm", []byte("zip"), nil)
	req := httptest.NewRequest("POST", "/upload", buf)
	req.Header.Set("Content-Type", ctype)
	rec := doRequest(srv, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestExtractTextMissingFile(t *testing.T) {
	srv := newTestServer(t, testConfig(t))
	rec := doRequest(srv, httptest.NewRequest("GET", "/extract-text/nope/gone.pdf", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig(t)
	cfg.Security.RateLimit.Enabled = true
	cfg.Security.RateLimit.RequestsPerMinute = 1
	cfg.Security.RateLimit.Burst = 1
	srv := newTestServer(t, cfg)

	req := httptest.NewRequest("GET", "/redact-info", nil)
	req.RemoteAddr = "10.1.2.3:5000"
	if rec := doRequest(srv, req); rec.Code != http.StatusOK {
		t.Fatalf("first request status = %d", rec.Code)
	}
	rec := doRequest(srv, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", rec.Code)
	}
	if body := decodeJSON(t, rec); body["status"] != "rate_limited" {
		t.Errorf("body = %v", body)
	}

	// A different client is unaffected.
	other := httptest.NewRequest("GET", "/redact-info", nil)
	other.RemoteAddr = "10.9.9.9:5000"
	if rec := doRequest(srv, other); rec.Code != http.StatusOK {
		t.Errorf("other client status = %d", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	cfg := testConfig(t)
	cfg.Security.CORS.AllowedOrigins = []string{"https://app.example.com"}
	srv := newTestServer(t, cfg)

	req := httptest.NewRequest("OPTIONS", "/redact", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := doRequest(srv, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("Allow-Origin = %q", got)
	}

	// An origin outside the allow list gets no CORS headers.
	req = httptest.NewRequest("OPTIONS", "/redact", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = doRequest(srv, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Allow-Origin for denied origin = %q", got)
	}
}
