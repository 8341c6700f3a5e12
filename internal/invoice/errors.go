package invoice

import (
	"invoice-backend/internal/shared/apperr"
)

// ParseError reports a model reply that holds no usable JSON object.
// Raw keeps the original text for diagnostics.
type ParseError struct {
	Raw    string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	msg := "malformed extraction: " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() []error {
	if e.Err == nil {
		return []error{apperr.ErrMalformedExtraction}
	}
	return []error{apperr.ErrMalformedExtraction, e.Err}
}
