package billing

import (
	"errors"
	"fmt"

	"invoice-backend/internal/shared/apperr"
)

var (
	ErrMissingSignature = errors.New("missing signature header")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrStaleSignature   = errors.New("signature timestamp outside tolerance")
	ErrNoSecret         = errors.New("webhook secret not configured")
)

func notFound(op, key string) error {
	return apperr.WrapError(apperr.ErrNotFound, op, fmt.Errorf("subscription %s not found", key))
}

func storeErr(op string, err error) error {
	return apperr.WrapError(apperr.ErrStore, op, err)
}
