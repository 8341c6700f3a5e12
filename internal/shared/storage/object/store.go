package object

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned by Open when no object exists under the key.
var ErrNotFound = errors.New("object not found")

// ObjectStore defines the contract for saving and retrieving binary objects.
type ObjectStore interface {
	Save(ctx context.Context, userID, fileName, contentType string, r io.Reader) (storageKey string, sizeBytes int64, err error)
	Open(ctx context.Context, storageKey string) (io.ReadCloser, error)
	Delete(ctx context.Context, storageKey string) error
	// URL returns the address clients use to fetch the stored object.
	URL(storageKey string) string
}

// OwnerKey returns the namespace segment for a user; anonymous uploads share one.
func OwnerKey(userID string) string {
	if userID == "" {
		return "anonymous"
	}
	return userID
}
