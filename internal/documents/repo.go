package documents

import (
	"context"
	"time"

	"invoice-backend/internal/invoice"
)

// Repo defines persistence operations for documents. Every transition method
// is conditional on the stored status so concurrent attempts cannot interleave.
type Repo interface {
	Create(ctx context.Context, doc Document) error
	GetByID(ctx context.Context, id string) (Document, error)
	// List returns up to limit documents, newest first.
	List(ctx context.Context, limit int) ([]Document, error)
	// BeginProcessing moves a document to processing unless another attempt
	// holds it and last touched it at or after staleBefore.
	BeginProcessing(ctx context.Context, id string, now, staleBefore time.Time) (Document, error)
	// CompleteProcessing and FailProcessing act only while the attempt that
	// BeginProcessing stamped with claimedAt still holds the document.
	CompleteProcessing(ctx context.Context, id string, claimedAt time.Time, data invoice.ExtractedData, now time.Time) (Document, error)
	FailProcessing(ctx context.Context, id string, claimedAt time.Time, now time.Time) (Document, error)
	// DeleteAll removes every document and returns the blob keys it held.
	DeleteAll(ctx context.Context) ([]string, error)
	Count(ctx context.Context) (int64, error)
}
