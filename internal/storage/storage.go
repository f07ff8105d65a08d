// Package storage keeps media objects in an S3-compatible bucket and issues
// signed read URLs for them.
package storage

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/socialfeed/backend/internal/models"
)

// ErrEmptyKey is returned for blank object keys.
var ErrEmptyKey = errors.New("object key is required")

// ObjectStore stores media and signs read access to it.
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) error
	Sign(ctx context.Context, key string, ttl time.Duration) (models.SignedURL, error)
}
