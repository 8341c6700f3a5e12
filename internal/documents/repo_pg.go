package documents

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"invoice-backend/internal/invoice"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const documentColumns = `id, user_id, file_name, blob_url, blob_key, file_type, size_bytes, status, extracted_data, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (Document, error) {
	var (
		doc       Document
		userID    sql.NullString
		fileType  string
		status    string
		extracted []byte
	)
	if err := row.Scan(
		&doc.ID,
		&userID,
		&doc.FileName,
		&doc.BlobURL,
		&doc.BlobKey,
		&fileType,
		&doc.SizeBytes,
		&status,
		&extracted,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	); err != nil {
		return Document{}, err
	}
	if userID.Valid {
		doc.UserID = userID.String
	}
	doc.FileType = FileType(fileType)
	doc.Status = Status(status)
	if len(extracted) > 0 {
		var data invoice.ExtractedData
		if err := json.Unmarshal(extracted, &data); err != nil {
			return Document{}, fmt.Errorf("decode extracted_data: %w", err)
		}
		doc.ExtractedData = &data
	}
	doc.CreatedAt = doc.CreatedAt.UTC()
	doc.UpdatedAt = doc.UpdatedAt.UTC()
	return doc, nil
}

// Create inserts a new document.
func (r *PGRepo) Create(ctx context.Context, doc Document) error {
	const query = `
INSERT INTO documents (
    id,
    user_id,
    file_name,
    blob_url,
    blob_key,
    file_type,
    size_bytes,
    status,
    extracted_data,
    created_at,
    updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULL, $9, $10)`

	var userID sql.NullString
	if doc.UserID != "" {
		userID = sql.NullString{String: doc.UserID, Valid: true}
	}
	_, err := r.DB.ExecContext(
		ctx,
		query,
		doc.ID,
		userID,
		doc.FileName,
		doc.BlobURL,
		doc.BlobKey,
		string(doc.FileType),
		doc.SizeBytes,
		string(doc.Status),
		doc.CreatedAt,
		doc.UpdatedAt,
	)
	if err != nil {
		return storeErr("documents.create", err)
	}
	return nil
}

// GetByID fetches a document by ID.
func (r *PGRepo) GetByID(ctx context.Context, id string) (Document, error) {
	if !validID(id) {
		return Document{}, notFound("documents.get", id)
	}
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`
	doc, err := scanDocument(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, notFound("documents.get", id)
		}
		return Document{}, storeErr("documents.get", err)
	}
	return doc, nil
}

// List returns the newest documents first.
func (r *PGRepo) List(ctx context.Context, limit int) ([]Document, error) {
	if limit <= 0 || limit > ListLimit {
		limit = ListLimit
	}
	query := `SELECT ` + documentColumns + ` FROM documents ORDER BY created_at DESC, id DESC LIMIT $1`
	rows, err := r.DB.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, storeErr("documents.list", err)
	}
	defer rows.Close()

	out := make([]Document, 0, limit)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, storeErr("documents.list", err)
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("documents.list", err)
	}
	return out, nil
}

// BeginProcessing claims the document for a new attempt.
func (r *PGRepo) BeginProcessing(ctx context.Context, id string, now, staleBefore time.Time) (Document, error) {
	if !validID(id) {
		return Document{}, notFound("documents.begin", id)
	}
	query := `
UPDATE documents
SET status = 'processing', extracted_data = NULL, updated_at = $2
WHERE id = $1 AND (status <> 'processing' OR updated_at < $3)
RETURNING ` + documentColumns
	doc, err := scanDocument(r.DB.QueryRowContext(ctx, query, id, now, staleBefore))
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, r.missOrConflict(ctx, "documents.begin", id, inProgress)
	}
	if err != nil {
		return Document{}, storeErr("documents.begin", err)
	}
	return doc, nil
}

// CompleteProcessing stores the extracted payload if the claiming attempt still holds the document.
// claimedAt must be the updated_at returned by BeginProcessing.
func (r *PGRepo) CompleteProcessing(ctx context.Context, id string, claimedAt time.Time, data invoice.ExtractedData, now time.Time) (Document, error) {
	if !validID(id) {
		return Document{}, notFound("documents.complete", id)
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return Document{}, storeErr("documents.complete", err)
	}
	query := `
UPDATE documents
SET status = 'completed', extracted_data = $2, updated_at = $3
WHERE id = $1 AND status = 'processing' AND updated_at = $4
RETURNING ` + documentColumns
	doc, err := scanDocument(r.DB.QueryRowContext(ctx, query, id, payload, now, claimedAt))
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, r.missOrConflict(ctx, "documents.complete", id, notProcessing)
	}
	if err != nil {
		return Document{}, storeErr("documents.complete", err)
	}
	return doc, nil
}

// FailProcessing marks the document failed if the claiming attempt still holds it.
func (r *PGRepo) FailProcessing(ctx context.Context, id string, claimedAt time.Time, now time.Time) (Document, error) {
	if !validID(id) {
		return Document{}, notFound("documents.fail", id)
	}
	query := `
UPDATE documents
SET status = 'failed', extracted_data = NULL, updated_at = $2
WHERE id = $1 AND status = 'processing' AND updated_at = $3
RETURNING ` + documentColumns
	doc, err := scanDocument(r.DB.QueryRowContext(ctx, query, id, now, claimedAt))
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, r.missOrConflict(ctx, "documents.fail", id, notProcessing)
	}
	if err != nil {
		return Document{}, storeErr("documents.fail", err)
	}
	return doc, nil
}

// missOrConflict distinguishes an unknown id from a failed status guard.
func (r *PGRepo) missOrConflict(ctx context.Context, op, id string, conflict func(op, id string) error) error {
	var exists bool
	if err := r.DB.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM documents WHERE id = $1)`, id).Scan(&exists); err != nil {
		return storeErr(op, err)
	}
	if !exists {
		return notFound(op, id)
	}
	return conflict(op, id)
}

// DeleteAll removes every document.
func (r *PGRepo) DeleteAll(ctx context.Context) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, `DELETE FROM documents RETURNING blob_key`)
	if err != nil {
		return nil, storeErr("documents.delete_all", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, storeErr("documents.delete_all", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("documents.delete_all", err)
	}
	return keys, nil
}

// Count returns the number of stored documents.
func (r *PGRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n); err != nil {
		return 0, storeErr("documents.count", err)
	}
	return n, nil
}

// validID rejects ids Postgres would refuse to cast to uuid.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

var _ Repo = (*PGRepo)(nil)
