package documents

import (
	"context"
	"testing"
	"time"

	"invoice-backend/internal/invoice"
	"invoice-backend/internal/shared/apperr"
)

var baseTime = time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

func seedDoc(t *testing.T, repo Repo, id string, createdAt time.Time) Document {
	t.Helper()
	doc := Document{
		ID:        id,
		FileName:  id + ".pdf",
		BlobKey:   "k/" + id,
		FileType:  FileTypePDF,
		Status:    StatusPending,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
	if err := repo.Create(context.Background(), doc); err != nil {
		t.Fatalf("Create: %v", err)
	}
	return doc
}

func assertPayloadInvariant(t *testing.T, doc Document) {
	t.Helper()
	if (doc.ExtractedData != nil) != (doc.Status == StatusCompleted) {
		t.Fatalf("document %s: status=%s extractedData present=%v", doc.ID, doc.Status, doc.ExtractedData != nil)
	}
}

func TestMemoryRepoLifecycleKeepsPayloadInvariant(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()
	seedDoc(t, repo, "a", baseTime)
	vendor := "Acme"

	steps := []func() (Document, error){
		func() (Document, error) { return repo.GetByID(ctx, "a") },
		func() (Document, error) {
			return repo.BeginProcessing(ctx, "a", baseTime.Add(time.Second), baseTime.Add(-time.Minute))
		},
		func() (Document, error) {
			return repo.CompleteProcessing(ctx, "a", baseTime.Add(time.Second), invoice.ExtractedData{VendorName: &vendor}, baseTime.Add(2*time.Second))
		},
		func() (Document, error) { return repo.BeginProcessing(ctx, "a", baseTime.Add(3*time.Second), baseTime) },
		func() (Document, error) {
			return repo.FailProcessing(ctx, "a", baseTime.Add(3*time.Second), baseTime.Add(4*time.Second))
		},
	}
	wantStatus := []Status{StatusPending, StatusProcessing, StatusCompleted, StatusProcessing, StatusFailed}

	for i, step := range steps {
		doc, err := step()
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if doc.Status != wantStatus[i] {
			t.Fatalf("step %d: expected %s, got %s", i, wantStatus[i], doc.Status)
		}
		assertPayloadInvariant(t, doc)
		stored, _ := repo.GetByID(ctx, "a")
		assertPayloadInvariant(t, stored)
	}
}

func TestMemoryRepoBeginRejectsActiveAttempt(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()
	seedDoc(t, repo, "a", baseTime)

	if _, err := repo.BeginProcessing(ctx, "a", baseTime, baseTime.Add(-10*time.Minute)); err != nil {
		t.Fatalf("first begin: %v", err)
	}
	_, err := repo.BeginProcessing(ctx, "a", baseTime.Add(time.Second), baseTime.Add(-10*time.Minute))
	if !apperr.IsKind(err, apperr.ErrAlreadyInProgress) {
		t.Fatalf("expected already in progress, got %v", err)
	}
}

func TestMemoryRepoBeginTakesOverStaleAttempt(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()
	seedDoc(t, repo, "a", baseTime)

	if _, err := repo.BeginProcessing(ctx, "a", baseTime, baseTime.Add(-10*time.Minute)); err != nil {
		t.Fatalf("first begin: %v", err)
	}
	later := baseTime.Add(11 * time.Minute)
	doc, err := repo.BeginProcessing(ctx, "a", later, later.Add(-10*time.Minute))
	if err != nil {
		t.Fatalf("stale takeover: %v", err)
	}
	if !doc.UpdatedAt.Equal(later) {
		t.Fatalf("expected updated_at refreshed, got %s", doc.UpdatedAt)
	}
}

func TestMemoryRepoSupersededAttemptIsRejected(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()
	seedDoc(t, repo, "a", baseTime)

	first, err := repo.BeginProcessing(ctx, "a", baseTime, baseTime.Add(-10*time.Minute))
	if err != nil {
		t.Fatalf("first begin: %v", err)
	}
	later := baseTime.Add(11 * time.Minute)
	second, err := repo.BeginProcessing(ctx, "a", later, later.Add(-10*time.Minute))
	if err != nil {
		t.Fatalf("takeover: %v", err)
	}

	if _, err := repo.FailProcessing(ctx, "a", first.UpdatedAt, later.Add(time.Second)); !apperr.IsKind(err, apperr.ErrAlreadyInProgress) {
		t.Fatalf("expected superseded fail rejected, got %v", err)
	}
	vendor := "Acme"
	doc, err := repo.CompleteProcessing(ctx, "a", second.UpdatedAt, invoice.ExtractedData{VendorName: &vendor}, later.Add(2*time.Second))
	if err != nil {
		t.Fatalf("complete by current attempt: %v", err)
	}
	if doc.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s", doc.Status)
	}
}

func TestMemoryRepoBeginUnknownID(t *testing.T) {
	repo := NewMemoryRepo()
	_, err := repo.BeginProcessing(context.Background(), "missing", baseTime, baseTime)
	if !apperr.IsKind(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if n, _ := repo.Count(context.Background()); n != 0 {
		t.Fatalf("expected no rows written, got %d", n)
	}
}

func TestMemoryRepoCompleteRequiresProcessing(t *testing.T) {
	repo := NewMemoryRepo()
	seedDoc(t, repo, "a", baseTime)
	_, err := repo.CompleteProcessing(context.Background(), "a", baseTime, invoice.ExtractedData{}, baseTime)
	if !apperr.IsKind(err, apperr.ErrAlreadyInProgress) {
		t.Fatalf("expected status guard to reject, got %v", err)
	}
	doc, _ := repo.GetByID(context.Background(), "a")
	if doc.Status != StatusPending || doc.ExtractedData != nil {
		t.Fatalf("expected untouched document, got %+v", doc)
	}
}

func TestMemoryRepoListNewestFirstWithLimit(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()
	for i := 0; i < 5; i++ {
		seedDoc(t, repo, string(rune('a'+i)), baseTime.Add(time.Duration(i)*time.Minute))
	}

	docs, err := repo.List(ctx, 3)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(docs) != 3 {
		t.Fatalf("expected 3 docs, got %d", len(docs))
	}
	for i, want := range []string{"e", "d", "c"} {
		if docs[i].ID != want {
			t.Fatalf("position %d: expected %s, got %s", i, want, docs[i].ID)
		}
	}
}

func TestMemoryRepoDeleteAll(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()
	seedDoc(t, repo, "a", baseTime)
	seedDoc(t, repo, "b", baseTime)

	keys, err := repo.DeleteAll(ctx)
	if err != nil {
		t.Fatalf("DeleteAll: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("expected 2 blob keys, got %v", keys)
	}
	if n, _ := repo.Count(ctx); n != 0 {
		t.Fatalf("expected empty repo, got %d", n)
	}
}
