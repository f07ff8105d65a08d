package media

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
)

type putRecorder struct {
	key         string
	contentType string
	size        int64
	body        []byte
	err         error
}

func (p *putRecorder) Put(ctx context.Context, key, contentType string, body io.Reader, size int64) error {
	if p.err != nil {
		return p.err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	p.key, p.contentType, p.size, p.body = key, contentType, size, data
	return nil
}

func pngOf(t *testing.T, w, h int) *bytes.Buffer {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.NRGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return &buf
}

func TestNormalizerShrinksAndStoresJPEG(t *testing.T) {
	rec := &putRecorder{}
	n := NewNormalizer(rec, 100)
	n.newKey = func() string { return "fixed.jpg" }

	key, err := n.Store(context.Background(), "users", pngOf(t, 400, 200))
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	if key != "users/fixed.jpg" || rec.key != key {
		t.Fatalf("unexpected key %q (stored %q)", key, rec.key)
	}
	if rec.contentType != "image/jpeg" || rec.size != int64(len(rec.body)) {
		t.Fatalf("unexpected upload %q size=%d", rec.contentType, rec.size)
	}

	img, err := imaging.Decode(bytes.NewReader(rec.body))
	if err != nil {
		t.Fatalf("decode stored picture: %v", err)
	}
	if img.Bounds().Dx() != 100 || img.Bounds().Dy() != 50 {
		t.Fatalf("expected 100x50, got %v", img.Bounds())
	}
}

func TestNormalizerKeepsSmallPictures(t *testing.T) {
	rec := &putRecorder{}
	n := NewNormalizer(rec, 0)

	key, err := n.Store(context.Background(), "", pngOf(t, 20, 10))
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	if !strings.HasSuffix(key, ".jpg") || strings.Contains(key, "/") {
		t.Fatalf("unexpected key %q", key)
	}
	img, err := imaging.Decode(bytes.NewReader(rec.body))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if img.Bounds().Dx() != 20 || img.Bounds().Dy() != 10 {
		t.Fatalf("expected original size, got %v", img.Bounds())
	}
}

func TestNormalizerErrors(t *testing.T) {
	rec := &putRecorder{}
	n := NewNormalizer(rec, 0)

	if _, err := n.Store(context.Background(), "", strings.NewReader("not an image")); !errors.Is(err, ErrInvalidImage) {
		t.Fatalf("expected ErrInvalidImage, got %v", err)
	}
	if rec.key != "" {
		t.Fatal("expected nothing stored for an invalid image")
	}

	rec.err = errors.New("bucket missing")
	if _, err := n.Store(context.Background(), "", pngOf(t, 5, 5)); !errors.Is(err, rec.err) {
		t.Fatalf("expected store error, got %v", err)
	}
}
