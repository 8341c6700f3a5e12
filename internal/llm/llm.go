package llm

import (
	"context"
	"errors"

	"invoice-backend/internal/shared/apperr"
)

// Extractor abstracts hosted vision/text models that read invoices.
// Implementations return the raw completion text; parsing happens elsewhere.
type Extractor interface {
	Extract(ctx context.Context, input Input) (string, error)
}

// Input is the model-ready form of one document. Exactly one of
// ImageDataURL or Text is set.
type Input struct {
	ImageDataURL string
	Text         string
	FileName     string
}

// IsImage reports whether the input carries an image.
func (in Input) IsImage() bool {
	return in.ImageDataURL != ""
}

// ErrNotConfigured is returned by the placeholder client.
var ErrNotConfigured = errors.New("no extraction provider configured")

// PlaceholderClient is used when no provider is configured.
type PlaceholderClient struct{}

// Extract always fails with ExtractionUnavailable.
func (PlaceholderClient) Extract(ctx context.Context, input Input) (string, error) {
	return "", apperr.WrapError(apperr.ErrExtractionUnavailable, "llm.extract", ErrNotConfigured)
}

var _ Extractor = PlaceholderClient{}
