// Package media prepares uploaded pictures for the object store.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"

	"github.com/socialfeed/backend/internal/logging"
)

// DefaultMaxDimension bounds the longest edge of a stored picture.
const DefaultMaxDimension = 1280

// ErrInvalidImage reports an upload that could not be decoded as an image.
var ErrInvalidImage = errors.New("invalid image")

// Putter is the write side of an object store.
type Putter interface {
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) error
}

// Normalizer decodes uploads, shrinks them and stores them as JPEG under a
// random key.
type Normalizer struct {
	store        Putter
	maxDimension int
	quality      int
	newKey       func() string
}

// NewNormalizer builds a Normalizer. A non-positive maxDimension selects
// DefaultMaxDimension.
func NewNormalizer(store Putter, maxDimension int) *Normalizer {
	if maxDimension <= 0 {
		maxDimension = DefaultMaxDimension
	}
	return &Normalizer{
		store:        store,
		maxDimension: maxDimension,
		quality:      85,
		newKey:       func() string { return uuid.NewString() + ".jpg" },
	}
}

// Store normalises the picture read from r and returns the object key it was
// written under.
func (n *Normalizer) Store(ctx context.Context, prefix string, r io.Reader) (string, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	bounds := img.Bounds()
	if bounds.Dx() > n.maxDimension || bounds.Dy() > n.maxDimension {
		img = imaging.Fit(img, n.maxDimension, n.maxDimension, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(n.quality)); err != nil {
		return "", fmt.Errorf("encode picture: %w", err)
	}

	key := n.newKey()
	if prefix != "" {
		key = prefix + "/" + key
	}
	size := int64(buf.Len())
	if err := n.store.Put(ctx, key, "image/jpeg", &buf, size); err != nil {
		return "", fmt.Errorf("store picture: %w", err)
	}

	logging.FromContext(ctx).Info("picture stored",
		slog.String("key", key),
		slog.Int("width", img.Bounds().Dx()),
		slog.Int("height", img.Bounds().Dy()),
		slog.Int64("bytes", size),
	)
	return key, nil
}
