package documents

import (
	"time"

	"invoice-backend/internal/invoice"
)

// TimeLayout renders timestamps as ISO-8601 UTC with millisecond precision.
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

// DocumentResponse is the outward-facing representation of a document.
type DocumentResponse struct {
	ID            string                 `json:"id"`
	UserID        string                 `json:"userId,omitempty"`
	FileName      string                 `json:"filename"`
	BlobURL       string                 `json:"blobUrl"`
	FileType      string                 `json:"fileType"`
	SizeBytes     int64                  `json:"sizeBytes"`
	Status        string                 `json:"status"`
	ExtractedData *invoice.ExtractedData `json:"extractedData"`
	CreatedAt     string                 `json:"createdAt"`
	UpdatedAt     string                 `json:"updatedAt"`
}

// FormatTime renders t in the response layout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ToResponse converts a document for JSON output.
func ToResponse(doc Document) DocumentResponse {
	return DocumentResponse{
		ID:            doc.ID,
		UserID:        doc.UserID,
		FileName:      doc.FileName,
		BlobURL:       doc.BlobURL,
		FileType:      string(doc.FileType),
		SizeBytes:     doc.SizeBytes,
		Status:        string(doc.Status),
		ExtractedData: doc.ExtractedData,
		CreatedAt:     FormatTime(doc.CreatedAt),
		UpdatedAt:     FormatTime(doc.UpdatedAt),
	}
}

type uploadResponse struct {
	Success    bool   `json:"success"`
	DocumentID string `json:"documentId"`
	URL        string `json:"url"`
}

type listResponse struct {
	Documents []DocumentResponse `json:"documents"`
	Count     int                `json:"count"`
}

type clearResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Deleted int    `json:"deleted"`
}

type quotaResponse struct {
	Count     int64 `json:"count"`
	Limit     int64 `json:"limit"`
	Remaining int64 `json:"remaining"`
}
