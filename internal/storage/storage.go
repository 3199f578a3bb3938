package storage

import (
	"context"
	"io"
	"time"
)

// Media directories under the local media root; the first path segment of a key.
const (
	DirUploads    = "uploads"
	DirReels      = "reels"
	DirThumbnails = "thumbnails"
	DirPosters    = "posters"
)

// MediaStore defines the interface for object storage operations
type MediaStore interface {
	Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
	GetSignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)
	GetPublicURL(key string) string
}
