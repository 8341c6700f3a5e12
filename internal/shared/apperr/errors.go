package apperr

import (
	"errors"
	"fmt"
)

// Error kinds. Every error surfaced by a service wraps exactly one of these.
var (
	ErrValidation            = errors.New("validation error")
	ErrNotFound              = errors.New("not found")
	ErrAlreadyInProgress     = errors.New("already in progress")
	ErrExtractionUnavailable = errors.New("extraction unavailable")
	ErrMalformedExtraction   = errors.New("malformed extraction")
	ErrStore                 = errors.New("store error")
)

// WrapError preserves the semantic kind with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

// New builds a kinded error from a message.
func New(kind error, operation, msg string) error {
	return fmt.Errorf("%s: %w: %s", operation, kind, msg)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// KindOf returns the first known kind wrapped by err, or nil.
func KindOf(err error) error {
	for _, kind := range []error{
		ErrValidation,
		ErrNotFound,
		ErrAlreadyInProgress,
		ErrExtractionUnavailable,
		ErrMalformedExtraction,
		ErrStore,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// Code returns the wire code for an error's kind.
func Code(err error) string {
	switch KindOf(err) {
	case ErrValidation:
		return "validation_error"
	case ErrNotFound:
		return "not_found"
	case ErrAlreadyInProgress:
		return "already_in_progress"
	case ErrExtractionUnavailable:
		return "extraction_unavailable"
	case ErrMalformedExtraction:
		return "malformed_extraction"
	case ErrStore:
		return "store_error"
	default:
		return "internal_error"
	}
}
