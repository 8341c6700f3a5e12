package documents

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"invoice-backend/internal/shared/apperr"
	"invoice-backend/internal/shared/metrics"
	"invoice-backend/internal/shared/storage/object"
	"invoice-backend/internal/shared/telemetry"
	"invoice-backend/internal/shared/util"
)

const sniffLen = 512

// Service contains business logic for documents.
type Service struct {
	Store object.ObjectStore
	Repo  Repo
	Now   func() time.Time
}

// NewService constructs a Service.
func NewService(store object.ObjectStore, repo Repo) *Service {
	return &Service{Store: store, Repo: repo, Now: time.Now}
}

// UploadInput describes one incoming file. Size is the client-declared byte count.
type UploadInput struct {
	UserID       string
	FileName     string
	DeclaredType string
	Size         int64
	Body         io.Reader
}

// Upload validates the file, writes the blob and records a pending document.
// Nothing is written to blob storage unless every check passes.
func (s *Service) Upload(ctx context.Context, in UploadInput) (Document, error) {
	const op = "documents.upload"

	fileName := strings.TrimSpace(in.FileName)
	if fileName == "" {
		return Document{}, apperr.New(apperr.ErrValidation, op, "No file provided")
	}
	if _, err := util.SanitizeFileName(fileName); err != nil {
		return Document{}, apperr.New(apperr.ErrValidation, op, "Invalid file name")
	}
	fileType, ok := ParseFileType(in.DeclaredType)
	if !ok {
		return Document{}, apperr.New(apperr.ErrValidation, op, "Invalid file type. Only PDF, PNG, JPG allowed.")
	}
	if in.Size > MaxUploadBytes {
		return Document{}, apperr.New(apperr.ErrValidation, op, "File too large. Max 10MB.")
	}
	if in.Body == nil {
		return Document{}, apperr.New(apperr.ErrValidation, op, "No file provided")
	}

	// Buffered in full so an oversized stream is rejected before any blob write.
	data, err := io.ReadAll(io.LimitReader(in.Body, MaxUploadBytes+1))
	if err != nil {
		return Document{}, apperr.WrapError(apperr.ErrValidation, op, err)
	}
	if int64(len(data)) > MaxUploadBytes {
		return Document{}, apperr.New(apperr.ErrValidation, op, "File too large. Max 10MB.")
	}
	if len(data) == 0 {
		return Document{}, apperr.New(apperr.ErrValidation, op, "File is empty")
	}
	head := data[:min(len(data), sniffLen)]
	if sniffed := http.DetectContentType(head); !fileType.matchesSniffed(sniffed) {
		return Document{}, apperr.New(apperr.ErrValidation, op, "File content does not match its declared type")
	}

	key, size, err := s.Store.Save(ctx, in.UserID, fileName, string(fileType), bytes.NewReader(data))
	if err != nil {
		return Document{}, apperr.WrapError(apperr.ErrStore, op, err)
	}

	now := s.now()
	doc := Document{
		ID:        uuid.NewString(),
		UserID:    in.UserID,
		FileName:  fileName,
		BlobURL:   s.Store.URL(key),
		BlobKey:   key,
		FileType:  fileType,
		SizeBytes: size,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Repo.Create(ctx, doc); err != nil {
		if delErr := s.Store.Delete(context.WithoutCancel(ctx), key); delErr != nil {
			telemetry.Warn("document.blob_cleanup_failed", map[string]any{"blob_key": key, "error": delErr})
		}
		if apperr.KindOf(err) == nil {
			err = apperr.WrapError(apperr.ErrStore, op, err)
		}
		return Document{}, err
	}

	metrics.IncUpload(string(fileType))
	telemetry.Info("document.uploaded", map[string]any{
		"document_id": doc.ID,
		"user_id":     doc.UserID,
		"file_type":   string(doc.FileType),
		"size_bytes":  doc.SizeBytes,
	})
	return doc, nil
}

// Get returns a single document.
func (s *Service) Get(ctx context.Context, id string) (Document, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Document{}, apperr.New(apperr.ErrValidation, "documents.get", "document id is required")
	}
	return s.Repo.GetByID(ctx, id)
}

// List returns the newest documents, capped at ListLimit.
func (s *Service) List(ctx context.Context) ([]Document, error) {
	return s.Repo.List(ctx, ListLimit)
}

// DeleteAll removes every document and, best-effort, its blob.
func (s *Service) DeleteAll(ctx context.Context) (int, error) {
	keys, err := s.Repo.DeleteAll(ctx)
	if err != nil {
		return 0, err
	}
	for _, key := range keys {
		if key == "" {
			continue
		}
		if err := s.Store.Delete(ctx, key); err != nil {
			telemetry.Warn("document.blob_cleanup_failed", map[string]any{"blob_key": key, "error": err})
		}
	}
	telemetry.Info("documents.cleared", map[string]any{"deleted": len(keys)})
	return len(keys), nil
}

// Count returns the number of stored documents.
func (s *Service) Count(ctx context.Context) (int64, error) {
	return s.Repo.Count(ctx)
}

// OpenBlob streams the stored bytes behind a blob key.
func (s *Service) OpenBlob(ctx context.Context, key string) (io.ReadCloser, error) {
	rc, err := s.Store.Open(ctx, key)
	if errors.Is(err, object.ErrNotFound) {
		return nil, apperr.WrapError(apperr.ErrNotFound, "documents.open_blob", err)
	}
	if err != nil {
		return nil, apperr.WrapError(apperr.ErrStore, "documents.open_blob", err)
	}
	return rc, nil
}

func (s *Service) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}
