package documents

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"invoice-backend/internal/shared/apperr"
	"invoice-backend/internal/shared/storage/object"
)

var pdfBytes = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< /Root 1 0 R >>\n%%EOF\n")

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 64)...)

type spyStore struct {
	mu      sync.Mutex
	saves   int
	deletes []string
	objects map[string][]byte
	saveErr error
}

func newSpyStore() *spyStore {
	return &spyStore{objects: make(map[string][]byte)}
}

func (s *spyStore) Save(_ context.Context, userID, fileName, _ string, r io.Reader) (string, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if s.saveErr != nil {
		return "", 0, s.saveErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", 0, err
	}
	key := object.OwnerKey(userID) + "/" + fileName
	s.objects[key] = data
	return key, int64(len(data)), nil
}

func (s *spyStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, object.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *spyStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes = append(s.deletes, key)
	delete(s.objects, key)
	return nil
}

func (s *spyStore) URL(key string) string {
	return "http://blobs.test/" + key
}

type failingCreateRepo struct {
	*MemoryRepo
}

func (failingCreateRepo) Create(context.Context, Document) error {
	return errors.New("insert failed")
}

func newTestService(store object.ObjectStore, repo Repo) *Service {
	svc := NewService(store, repo)
	svc.Now = func() time.Time { return baseTime }
	return svc
}

func TestUploadStoresPendingDocument(t *testing.T) {
	store := newSpyStore()
	repo := NewMemoryRepo()
	svc := newTestService(store, repo)

	doc, err := svc.Upload(context.Background(), UploadInput{
		UserID:       "user-1",
		FileName:     "march.pdf",
		DeclaredType: "application/pdf",
		Size:         int64(len(pdfBytes)),
		Body:         bytes.NewReader(pdfBytes),
	})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if doc.Status != StatusPending || doc.ExtractedData != nil {
		t.Fatalf("expected pending document without payload, got %+v", doc)
	}
	if doc.FileType != FileTypePDF || doc.SizeBytes != int64(len(pdfBytes)) {
		t.Fatalf("unexpected file metadata %+v", doc)
	}
	if doc.BlobURL != "http://blobs.test/user-1/march.pdf" {
		t.Fatalf("unexpected blob url %q", doc.BlobURL)
	}
	if !bytes.Equal(store.objects[doc.BlobKey], pdfBytes) {
		t.Fatalf("stored bytes differ from upload")
	}
	stored, err := repo.GetByID(context.Background(), doc.ID)
	if err != nil || stored.Status != StatusPending {
		t.Fatalf("expected stored pending document, got %+v err=%v", stored, err)
	}
}

func TestUploadAcceptsJPGAlias(t *testing.T) {
	jpeg := append([]byte{0xFF, 0xD8, 0xFF, 0xE0}, make([]byte, 32)...)
	svc := newTestService(newSpyStore(), NewMemoryRepo())

	doc, err := svc.Upload(context.Background(), UploadInput{
		FileName:     "receipt.jpg",
		DeclaredType: "image/jpg",
		Size:         int64(len(jpeg)),
		Body:         bytes.NewReader(jpeg),
	})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if doc.FileType != FileTypeJPEG {
		t.Fatalf("expected image/jpeg, got %s", doc.FileType)
	}
}

func TestUploadRejectsBeforeBlobWrite(t *testing.T) {
	tests := []struct {
		name  string
		input UploadInput
	}{
		{
			name: "oversized",
			input: UploadInput{
				FileName:     "big.pdf",
				DeclaredType: "application/pdf",
				Size:         12 << 20,
				Body:         bytes.NewReader(pdfBytes),
			},
		},
		{
			name: "text plain",
			input: UploadInput{
				FileName:     "notes.txt",
				DeclaredType: "text/plain",
				Size:         5,
				Body:         strings.NewReader("hello"),
			},
		},
		{
			name: "missing name",
			input: UploadInput{
				DeclaredType: "application/pdf",
				Size:         int64(len(pdfBytes)),
				Body:         bytes.NewReader(pdfBytes),
			},
		},
		{
			name: "empty body",
			input: UploadInput{
				FileName:     "empty.pdf",
				DeclaredType: "application/pdf",
				Body:         bytes.NewReader(nil),
			},
		},
		{
			name: "content mismatch",
			input: UploadInput{
				FileName:     "fake.png",
				DeclaredType: "image/png",
				Size:         int64(len(pdfBytes)),
				Body:         bytes.NewReader(pdfBytes),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newSpyStore()
			repo := NewMemoryRepo()
			svc := newTestService(store, repo)

			_, err := svc.Upload(context.Background(), tt.input)
			if !apperr.IsKind(err, apperr.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if store.saves != 0 {
				t.Fatalf("expected no blob writes, got %d", store.saves)
			}
			if n, _ := repo.Count(context.Background()); n != 0 {
				t.Fatalf("expected no documents, got %d", n)
			}
		})
	}
}

func TestUploadOversizeMessage(t *testing.T) {
	svc := newTestService(newSpyStore(), NewMemoryRepo())
	_, err := svc.Upload(context.Background(), UploadInput{
		FileName:     "big.png",
		DeclaredType: "image/png",
		Size:         MaxUploadBytes + 1,
		Body:         bytes.NewReader(pngBytes),
	})
	if err == nil || !strings.Contains(err.Error(), "File too large. Max 10MB.") {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestUploadRejectsUndeclaredOversizeStream(t *testing.T) {
	store := newSpyStore()
	repo := NewMemoryRepo()
	svc := newTestService(store, repo)

	body := append(append([]byte{}, pdfBytes...), bytes.Repeat([]byte("0"), 12<<20)...)
	_, err := svc.Upload(context.Background(), UploadInput{
		FileName:     "big.pdf",
		DeclaredType: "application/pdf",
		Size:         0,
		Body:         bytes.NewReader(body),
	})
	if !apperr.IsKind(err, apperr.ErrValidation) || !strings.Contains(err.Error(), "File too large. Max 10MB.") {
		t.Fatalf("expected too large validation error, got %v", err)
	}
	if store.saves != 0 {
		t.Fatalf("expected no blob writes, got %d", store.saves)
	}
	if n, _ := repo.Count(context.Background()); n != 0 {
		t.Fatalf("expected no documents, got %d", n)
	}
}

func TestUploadAcceptsExactLimit(t *testing.T) {
	store := newSpyStore()
	svc := newTestService(store, NewMemoryRepo())

	body := append(append([]byte{}, pdfBytes...), bytes.Repeat([]byte("0"), int(MaxUploadBytes)-len(pdfBytes))...)
	doc, err := svc.Upload(context.Background(), UploadInput{
		FileName:     "edge.pdf",
		DeclaredType: "application/pdf",
		Body:         bytes.NewReader(body),
	})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if doc.SizeBytes != MaxUploadBytes {
		t.Fatalf("expected %d bytes stored, got %d", MaxUploadBytes, doc.SizeBytes)
	}
}

func TestUploadStoreFailureIsStoreError(t *testing.T) {
	store := newSpyStore()
	store.saveErr = errors.New("disk full")
	svc := newTestService(store, NewMemoryRepo())

	_, err := svc.Upload(context.Background(), UploadInput{
		FileName:     "a.png",
		DeclaredType: "image/png",
		Size:         int64(len(pngBytes)),
		Body:         bytes.NewReader(pngBytes),
	})
	if !apperr.IsKind(err, apperr.ErrStore) {
		t.Fatalf("expected store error, got %v", err)
	}
}

func TestUploadRemovesBlobWhenRecordFails(t *testing.T) {
	store := newSpyStore()
	svc := newTestService(store, failingCreateRepo{NewMemoryRepo()})

	_, err := svc.Upload(context.Background(), UploadInput{
		FileName:     "a.png",
		DeclaredType: "image/png",
		Size:         int64(len(pngBytes)),
		Body:         bytes.NewReader(pngBytes),
	})
	if !apperr.IsKind(err, apperr.ErrStore) {
		t.Fatalf("expected store error, got %v", err)
	}
	if len(store.deletes) != 1 || len(store.objects) != 0 {
		t.Fatalf("expected orphaned blob removed, deletes=%v objects=%d", store.deletes, len(store.objects))
	}
}

func TestDeleteAllRemovesBlobs(t *testing.T) {
	store := newSpyStore()
	svc := newTestService(store, NewMemoryRepo())
	for _, name := range []string{"a.png", "b.png"} {
		if _, err := svc.Upload(context.Background(), UploadInput{
			FileName:     name,
			DeclaredType: "image/png",
			Size:         int64(len(pngBytes)),
			Body:         bytes.NewReader(pngBytes),
		}); err != nil {
			t.Fatalf("Upload: %v", err)
		}
	}

	deleted, err := svc.DeleteAll(context.Background())
	if err != nil {
		t.Fatalf("DeleteAll: %v", err)
	}
	if deleted != 2 || len(store.objects) != 0 {
		t.Fatalf("expected 2 deletions and no blobs, got %d and %d", deleted, len(store.objects))
	}
	if n, _ := svc.Count(context.Background()); n != 0 {
		t.Fatalf("expected empty count, got %d", n)
	}
}

func TestGetRequiresID(t *testing.T) {
	svc := newTestService(newSpyStore(), NewMemoryRepo())
	if _, err := svc.Get(context.Background(), "  "); !apperr.IsKind(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := svc.Get(context.Background(), "missing"); !apperr.IsKind(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestOpenBlobMissing(t *testing.T) {
	svc := newTestService(newSpyStore(), NewMemoryRepo())
	if _, err := svc.OpenBlob(context.Background(), "nope"); !apperr.IsKind(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
