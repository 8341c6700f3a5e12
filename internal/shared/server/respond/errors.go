package respond

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"invoice-backend/internal/shared/apperr"
	"invoice-backend/internal/shared/telemetry"
)

// ErrorBody defines the standardized error object.
type ErrorBody struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// ErrorResponse wraps the error body.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// Error sends a standardized error response.
func Error(c *gin.Context, status int, code, message string, details interface{}) {
	write(c, status, code, message, details, nil)
}

func write(c *gin.Context, status int, code, message string, details interface{}, cause error) {
	fields := map[string]any{
		"status":     status,
		"code":       code,
		"message":    message,
		"path":       c.Request.URL.Path,
		"method":     c.Request.Method,
		"request_id": c.GetString("requestId"),
	}
	if userID := c.GetString("userId"); userID != "" {
		fields["user_id"] = userID
	}
	if documentID := c.GetString("documentId"); documentID != "" {
		fields["document_id"] = documentID
	}
	if cause != nil {
		fields["error"] = cause.Error()
	}
	telemetry.Error("http.error", fields)

	c.AbortWithStatusJSON(status, ErrorResponse{
		Error: ErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// serverMessages are the client-facing texts for 5xx kinds. The wrapped
// error only goes to the log.
var serverMessages = map[error]string{
	apperr.ErrExtractionUnavailable: "Extraction service unavailable",
	apperr.ErrMalformedExtraction:   "Could not read invoice data from the model response",
	apperr.ErrStore:                 "Storage error",
}

// Fail maps a kinded service error to its HTTP status and writes the envelope.
// 4xx responses carry the error text; 5xx responses carry a fixed message.
func Fail(c *gin.Context, err error) {
	status := StatusFor(err)
	if status < http.StatusInternalServerError {
		write(c, status, apperr.Code(err), err.Error(), nil, nil)
		return
	}
	msg, ok := serverMessages[apperr.KindOf(err)]
	if !ok {
		msg = "Unexpected server error"
	}
	write(c, status, apperr.Code(err), msg, nil, err)
}

// StatusFor maps error kinds to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case apperr.IsKind(err, apperr.ErrValidation):
		return http.StatusBadRequest
	case apperr.IsKind(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case apperr.IsKind(err, apperr.ErrAlreadyInProgress):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
