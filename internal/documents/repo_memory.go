package documents

import (
	"context"
	"sort"
	"sync"
	"time"

	"invoice-backend/internal/invoice"
)

// MemoryRepo is an in-memory implementation of Repo.
type MemoryRepo struct {
	mu   sync.RWMutex
	data map[string]Document
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		data: make(map[string]Document),
	}
}

func (r *MemoryRepo) Create(ctx context.Context, doc Document) error {
	if err := ctx.Err(); err != nil {
		return storeErr("documents.create", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[doc.ID] = cloneDocument(doc)
	return nil
}

func (r *MemoryRepo) GetByID(ctx context.Context, id string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, storeErr("documents.get", err)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.data[id]
	if !ok {
		return Document{}, notFound("documents.get", id)
	}
	return cloneDocument(doc), nil
}

func (r *MemoryRepo) List(ctx context.Context, limit int) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, storeErr("documents.list", err)
	}
	r.mu.RLock()
	docs := make([]Document, 0, len(r.data))
	for _, doc := range r.data {
		docs = append(docs, cloneDocument(doc))
	}
	r.mu.RUnlock()

	sort.Slice(docs, func(i, j int) bool {
		if docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].ID > docs[j].ID
		}
		return docs[i].CreatedAt.After(docs[j].CreatedAt)
	})
	if limit > 0 && len(docs) > limit {
		docs = docs[:limit]
	}
	return docs, nil
}

func (r *MemoryRepo) BeginProcessing(ctx context.Context, id string, now, staleBefore time.Time) (Document, error) {
	return r.transition(ctx, "documents.begin", id, func(doc *Document) error {
		if doc.Status == StatusProcessing && !doc.UpdatedAt.Before(staleBefore) {
			return inProgress("documents.begin", id)
		}
		doc.Status = StatusProcessing
		doc.ExtractedData = nil
		doc.UpdatedAt = now
		return nil
	})
}

func (r *MemoryRepo) CompleteProcessing(ctx context.Context, id string, claimedAt time.Time, data invoice.ExtractedData, now time.Time) (Document, error) {
	return r.transition(ctx, "documents.complete", id, func(doc *Document) error {
		if !heldBy(*doc, claimedAt) {
			return notProcessing("documents.complete", id)
		}
		doc.Status = StatusCompleted
		doc.ExtractedData = &data
		doc.UpdatedAt = now
		return nil
	})
}

func (r *MemoryRepo) FailProcessing(ctx context.Context, id string, claimedAt time.Time, now time.Time) (Document, error) {
	return r.transition(ctx, "documents.fail", id, func(doc *Document) error {
		if !heldBy(*doc, claimedAt) {
			return notProcessing("documents.fail", id)
		}
		doc.Status = StatusFailed
		doc.ExtractedData = nil
		doc.UpdatedAt = now
		return nil
	})
}

func heldBy(doc Document, claimedAt time.Time) bool {
	return doc.Status == StatusProcessing && doc.UpdatedAt.Equal(claimedAt)
}

func (r *MemoryRepo) transition(ctx context.Context, op, id string, apply func(*Document) error) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, storeErr(op, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.data[id]
	if !ok {
		return Document{}, notFound(op, id)
	}
	if err := apply(&doc); err != nil {
		return Document{}, err
	}
	r.data[id] = doc
	return cloneDocument(doc), nil
}

func (r *MemoryRepo) DeleteAll(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, storeErr("documents.delete_all", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]string, 0, len(r.data))
	for _, doc := range r.data {
		keys = append(keys, doc.BlobKey)
	}
	r.data = make(map[string]Document)
	return keys, nil
}

func (r *MemoryRepo) Count(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, storeErr("documents.count", err)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.data)), nil
}

func cloneDocument(doc Document) Document {
	if doc.ExtractedData != nil {
		data := *doc.ExtractedData
		if data.LineItems != nil {
			data.LineItems = append([]invoice.LineItem(nil), data.LineItems...)
		}
		doc.ExtractedData = &data
	}
	return doc
}

var _ Repo = (*MemoryRepo)(nil)
