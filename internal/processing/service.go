package processing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"invoice-backend/internal/documents"
	"invoice-backend/internal/invoice"
	"invoice-backend/internal/llm"
	"invoice-backend/internal/shared/apperr"
	"invoice-backend/internal/shared/metrics"
	"invoice-backend/internal/shared/storage/object"
	"invoice-backend/internal/shared/telemetry"
)

// DefaultStaleAfter is how long a processing attempt may run before another
// request may take the document over.
const DefaultStaleAfter = 10 * time.Minute

// Converter turns stored document bytes into extraction input.
type Converter interface {
	Prepare(ctx context.Context, data []byte, fileType, fileName string) (llm.Input, error)
}

// Service drives documents through pending -> processing -> completed|failed.
type Service struct {
	Repo       documents.Repo
	Store      object.ObjectStore
	Converter  Converter
	Extractor  llm.Extractor
	StaleAfter time.Duration
	Now        func() time.Time
}

// NewService constructs a Service with default timing.
func NewService(repo documents.Repo, store object.ObjectStore, conv Converter, extractor llm.Extractor) *Service {
	return &Service{
		Repo:       repo,
		Store:      store,
		Converter:  conv,
		Extractor:  extractor,
		StaleAfter: DefaultStaleAfter,
		Now:        time.Now,
	}
}

// Begin claims a document for a new processing attempt.
func (s *Service) Begin(ctx context.Context, id string) (documents.Document, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return documents.Document{}, apperr.New(apperr.ErrValidation, "processing.begin", "Document ID required")
	}
	prev, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return documents.Document{}, err
	}
	now := s.now()
	doc, err := s.Repo.BeginProcessing(ctx, id, now, now.Add(-s.staleAfter()))
	if err != nil {
		return documents.Document{}, err
	}
	metrics.IncProcessingStarted()
	logTransition(ctx, doc, prev.Status, documents.StatusProcessing, nil)
	return doc, nil
}

// Complete stores the normalized payload and marks the claimed document completed.
func (s *Service) Complete(ctx context.Context, claim documents.Document, data invoice.ExtractedData) (documents.Document, error) {
	doc, err := s.Repo.CompleteProcessing(ctx, claim.ID, claim.UpdatedAt, data, s.now())
	if err != nil {
		return documents.Document{}, err
	}
	metrics.IncProcessingCompleted()
	logTransition(ctx, doc, documents.StatusProcessing, documents.StatusCompleted, nil)
	return doc, nil
}

// Fail marks the claimed document failed. The reason is logged and counted, not stored.
func (s *Service) Fail(ctx context.Context, claim documents.Document, reason error) (documents.Document, error) {
	doc, err := s.Repo.FailProcessing(context.WithoutCancel(ctx), claim.ID, claim.UpdatedAt, s.now())
	metrics.IncProcessingFailed(apperr.Code(reason))
	if err != nil {
		telemetry.Error("document.fail_update_failed", map[string]any{
			"request_id":  requestIDFromContext(ctx),
			"document_id": claim.ID,
			"error":       err.Error(),
			"reason":      errString(reason),
		})
		return documents.Document{}, err
	}
	logTransition(ctx, doc, documents.StatusProcessing, documents.StatusFailed, reason)
	return doc, nil
}

// Process runs one full extraction attempt for the document.
// Any failure after the document is claimed leaves it failed and is returned as is.
func (s *Service) Process(ctx context.Context, id string) (result documents.Document, err error) {
	doc, err := s.Begin(ctx, id)
	if err != nil {
		return documents.Document{}, err
	}
	startedAt := time.Now()
	defer func() {
		metrics.ObserveProcessingDuration(time.Since(startedAt))
	}()
	defer func() {
		if r := recover(); r != nil {
			err = apperr.WrapError(apperr.ErrExtractionUnavailable, "processing.process", fmt.Errorf("panic: %v", r))
			_, _ = s.Fail(ctx, doc, err)
			result = documents.Document{}
		}
	}()

	data, err := s.run(ctx, doc)
	if err != nil {
		_, _ = s.Fail(ctx, doc, err)
		return documents.Document{}, err
	}

	completed, err := s.Complete(ctx, doc, data)
	if err != nil {
		if apperr.IsKind(err, apperr.ErrStore) {
			_, _ = s.Fail(ctx, doc, err)
		}
		return documents.Document{}, err
	}
	return completed, nil
}

func (s *Service) run(ctx context.Context, doc documents.Document) (invoice.ExtractedData, error) {
	const op = "processing.process"
	if s.Store == nil || s.Converter == nil || s.Extractor == nil {
		return invoice.ExtractedData{}, apperr.New(apperr.ErrExtractionUnavailable, op, "processing dependencies are not configured")
	}

	blob, err := s.readBlob(ctx, doc.BlobKey)
	if err != nil {
		return invoice.ExtractedData{}, err
	}

	input, err := s.Converter.Prepare(ctx, blob, string(doc.FileType), doc.FileName)
	if err != nil {
		return invoice.ExtractedData{}, err
	}

	raw, err := s.Extractor.Extract(ctx, input)
	if err != nil {
		if apperr.KindOf(err) == nil {
			err = apperr.WrapError(apperr.ErrExtractionUnavailable, op, err)
		}
		return invoice.ExtractedData{}, err
	}

	data, dropped, err := invoice.NormalizeReport(raw)
	if err != nil {
		return invoice.ExtractedData{}, err
	}
	if len(dropped) > 0 {
		telemetry.Warn("invoice.fields_dropped", map[string]any{
			"request_id":  requestIDFromContext(ctx),
			"document_id": doc.ID,
			"dropped":     dropped,
		})
	}
	if err := invoice.Validate(data); err != nil {
		telemetry.Error("invoice.schema_mismatch", map[string]any{
			"request_id":  requestIDFromContext(ctx),
			"document_id": doc.ID,
			"error":       err,
		})
	}
	return data, nil
}

func (s *Service) readBlob(ctx context.Context, key string) ([]byte, error) {
	const op = "processing.read_blob"
	rc, err := s.Store.Open(ctx, key)
	if err != nil {
		return nil, apperr.WrapError(apperr.ErrStore, op, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, documents.MaxUploadBytes+1))
	if err != nil {
		return nil, apperr.WrapError(apperr.ErrStore, op, err)
	}
	if int64(len(data)) > documents.MaxUploadBytes {
		return nil, apperr.WrapError(apperr.ErrStore, op, errors.New("stored blob exceeds upload limit"))
	}
	return data, nil
}

func (s *Service) staleAfter() time.Duration {
	if s.StaleAfter <= 0 {
		return DefaultStaleAfter
	}
	return s.StaleAfter
}

func (s *Service) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

func logTransition(ctx context.Context, doc documents.Document, from, to documents.Status, reason error) {
	fields := map[string]any{
		"request_id":        requestIDFromContext(ctx),
		"document_id":       doc.ID,
		"user_id":           doc.UserID,
		"status":            string(to),
		"status_transition": string(from) + "->" + string(to),
	}
	if reason != nil {
		fields["error"] = reason.Error()
		fields["error_code"] = apperr.Code(reason)
		telemetry.Error("document.status", fields)
		return
	}
	telemetry.Info("document.status", fields)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
