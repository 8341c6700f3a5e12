package documents

import (
	"strings"
	"time"

	"invoice-backend/internal/extract"
	"invoice-backend/internal/invoice"
)

// Status is the processing state of a document.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// FileType is an accepted upload media type.
type FileType string

const (
	FileTypePDF  FileType = extract.MimePDF
	FileTypePNG  FileType = extract.MimePNG
	FileTypeJPEG FileType = extract.MimeJPEG
)

// MaxUploadBytes is the largest accepted upload.
const MaxUploadBytes int64 = 10 << 20

// ListLimit caps the dashboard listing.
const ListLimit = 50

// Document represents one uploaded invoice or receipt.
// ExtractedData is set exactly when Status is completed.
type Document struct {
	ID            string
	UserID        string
	FileName      string
	BlobURL       string
	BlobKey       string
	FileType      FileType
	SizeBytes     int64
	Status        Status
	ExtractedData *invoice.ExtractedData
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ParseFileType maps a declared media type onto the allow list.
// "image/jpg" is accepted as an alias of image/jpeg.
func ParseFileType(declared string) (FileType, bool) {
	clean := strings.ToLower(strings.TrimSpace(strings.Split(declared, ";")[0]))
	switch clean {
	case string(FileTypePDF):
		return FileTypePDF, true
	case string(FileTypePNG):
		return FileTypePNG, true
	case string(FileTypeJPEG), "image/jpg", "image/pjpeg":
		return FileTypeJPEG, true
	default:
		return "", false
	}
}

// matchesSniffed reports whether content sniffing agrees with the declared type.
func (t FileType) matchesSniffed(sniffed string) bool {
	sniffed = strings.ToLower(strings.TrimSpace(strings.Split(sniffed, ";")[0]))
	return sniffed == string(t)
}
