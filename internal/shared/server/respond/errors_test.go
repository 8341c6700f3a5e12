package respond

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"invoice-backend/internal/shared/apperr"
	"invoice-backend/internal/shared/telemetry"
)

func TestFailMapsKinds(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name     string
		err      error
		wantCode int
		wantBody string
	}{
		{"validation", apperr.New(apperr.ErrValidation, "upload", "file too large"), http.StatusBadRequest, "validation_error"},
		{"not found", apperr.New(apperr.ErrNotFound, "process", "missing"), http.StatusNotFound, "not_found"},
		{"in progress", apperr.New(apperr.ErrAlreadyInProgress, "process", "busy"), http.StatusConflict, "already_in_progress"},
		{"extraction", apperr.WrapError(apperr.ErrExtractionUnavailable, "llm", errors.New("timeout")), http.StatusInternalServerError, "extraction_unavailable"},
		{"malformed", apperr.WrapError(apperr.ErrMalformedExtraction, "normalize", errors.New("no object")), http.StatusInternalServerError, "malformed_extraction"},
		{"unknown", errors.New("secret detail"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/x", func(c *gin.Context) { Fail(c, tt.err) })

			resp := httptest.NewRecorder()
			r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/x", nil))

			if resp.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d", tt.wantCode, resp.Code)
			}
			var body ErrorResponse
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Error.Code != tt.wantBody {
				t.Fatalf("expected code %s, got %s", tt.wantBody, body.Error.Code)
			}
			if tt.name == "unknown" && body.Error.Message == "secret detail" {
				t.Fatalf("unclassified error message leaked")
			}
			if tt.wantCode >= http.StatusInternalServerError && strings.Contains(body.Error.Message, ":") {
				t.Fatalf("wrapped error text leaked: %q", body.Error.Message)
			}
		})
	}
}

func TestFailHidesStoreDetailButLogsIt(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	restore := telemetry.SetOutput(&buf)
	defer restore()

	cause := errors.New(`open /var/lib/invoices/ab12/9f_scan.pdf: permission denied`)
	r := gin.New()
	r.GET("/x", func(c *gin.Context) {
		Fail(c, apperr.WrapError(apperr.ErrStore, "processing.read_blob", cause))
	})

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/x", nil))

	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.Code)
	}
	if strings.Contains(resp.Body.String(), "/var/lib/invoices") {
		t.Fatalf("filesystem path leaked: %s", resp.Body.String())
	}
	var body ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error.Code != "store_error" || body.Error.Message != "Storage error" {
		t.Fatalf("unexpected body %+v", body.Error)
	}
	if !strings.Contains(buf.String(), "permission denied") {
		t.Fatalf("expected detail in log, got %s", buf.String())
	}
}

func TestFailKeepsClientErrorText(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/x", func(c *gin.Context) {
		Fail(c, apperr.New(apperr.ErrValidation, "documents.upload", "File too large. Max 10MB."))
	})
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/x", nil))

	if !strings.Contains(resp.Body.String(), "File too large. Max 10MB.") {
		t.Fatalf("expected validation message, got %s", resp.Body.String())
	}
}
