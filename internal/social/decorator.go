package social

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/socialfeed/backend/internal/logging"
	"github.com/socialfeed/backend/internal/models"
)

// SignedURLTTL is the lifetime of every URL the decorator requests.
const SignedURLTTL = 3600 * time.Second

const (
	defaultSignConcurrency = 8
	defaultSignTimeout     = 5 * time.Second
)

// Referencer is a record that carries object-store keys.
type Referencer interface {
	MediaReference(field models.MediaField) string
}

// Decorated pairs a record with the signed URLs produced for it. The record
// itself is a copy of the input and is never modified.
type Decorated[R Referencer] struct {
	Record R
	URLs   map[models.MediaField]models.SignedURL
}

// URL returns the signed URL for field when signing succeeded.
func (d Decorated[R]) URL(field models.MediaField) (models.SignedURL, bool) {
	u, ok := d.URLs[field]
	return u, ok
}

// DecoratedPost is a post with its picture and author picture URLs.
type DecoratedPost = Decorated[models.Post]

// DecorationReport summarises one decoration batch.
type DecorationReport struct {
	// Requested counts distinct keys sent to the signer.
	Requested int
	// Skipped counts record fields without a media key.
	Skipped int
	// Failed lists the keys that could not be signed.
	Failed []string
}

// Err returns an ErrSigningFailure describing failed keys, or nil.
func (r DecorationReport) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %d of %d keys", ErrSigningFailure, len(r.Failed), r.Requested)
}

// DecoratorConfig tunes signing fan-out.
type DecoratorConfig struct {
	Concurrency int
	SignTimeout time.Duration
	Observer    Observer
}

// Decorator enriches records with freshly signed media URLs.
type Decorator struct {
	signer      MediaSigner
	concurrency int
	timeout     time.Duration
	observer    Observer
}

// NewDecorator constructs a Decorator that signs through signer.
func NewDecorator(signer MediaSigner, cfg DecoratorConfig) *Decorator {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultSignConcurrency
	}
	if cfg.SignTimeout <= 0 {
		cfg.SignTimeout = defaultSignTimeout
	}
	if cfg.Observer == nil {
		cfg.Observer = nopObserver{}
	}
	return &Decorator{
		signer:      signer,
		concurrency: cfg.Concurrency,
		timeout:     cfg.SignTimeout,
		observer:    cfg.Observer,
	}
}

type signResult struct {
	url models.SignedURL
	err error
}

// Decorate signs every non-empty media key named by fields across records.
// Output order matches input order. A key that fails to sign leaves its field
// absent on every record that references it; the batch itself never fails.
// Keys shared by several records are signed once per call.
func Decorate[R Referencer](ctx context.Context, d *Decorator, records []R, fields ...models.MediaField) ([]Decorated[R], DecorationReport) {
	var report DecorationReport

	index := make(map[string]int)
	var keys []string
	for _, record := range records {
		for _, field := range fields {
			key := record.MediaReference(field)
			if key == "" {
				report.Skipped++
				continue
			}
			if _, seen := index[key]; !seen {
				index[key] = len(keys)
				keys = append(keys, key)
			}
		}
	}
	report.Requested = len(keys)

	results := d.signAll(ctx, keys)

	out := make([]Decorated[R], len(records))
	for i, record := range records {
		out[i] = Decorated[R]{Record: record, URLs: make(map[models.MediaField]models.SignedURL, len(fields))}
		for _, field := range fields {
			key := record.MediaReference(field)
			if key == "" {
				continue
			}
			if res := results[index[key]]; res.err == nil {
				out[i].URLs[field] = res.url
			}
		}
	}

	for i, res := range results {
		if res.err != nil {
			report.Failed = append(report.Failed, keys[i])
		}
	}

	d.observer.MediaSigned(report.Requested, len(report.Failed))
	if len(report.Failed) > 0 {
		logging.FromContext(ctx).Warn("media signing degraded",
			slog.Int("requested", report.Requested),
			slog.Int("failed", len(report.Failed)),
			slog.Any("keys", report.Failed),
			slog.Any("error", firstError(results)),
		)
	}

	return out, report
}

// DecorateOne decorates a single record.
func DecorateOne[R Referencer](ctx context.Context, d *Decorator, record R, fields ...models.MediaField) (Decorated[R], DecorationReport) {
	out, report := Decorate(ctx, d, []R{record}, fields...)
	return out[0], report
}

func (d *Decorator) signAll(ctx context.Context, keys []string) []signResult {
	results := make([]signResult, len(keys))
	if len(keys) == 0 {
		return results
	}

	var g errgroup.Group
	g.SetLimit(d.concurrency)
	for i, key := range keys {
		g.Go(func() error {
			results[i] = d.sign(ctx, key)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (d *Decorator) sign(ctx context.Context, key string) signResult {
	if d.signer == nil {
		return signResult{err: fmt.Errorf("%w: no media signer configured", ErrSigningFailure)}
	}

	signCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	url, err := d.signer.Sign(signCtx, key, SignedURLTTL)
	if err != nil {
		return signResult{err: fmt.Errorf("%w: %s: %w", ErrSigningFailure, key, classify("sign", err))}
	}
	if url.Key == "" {
		url.Key = key
	}
	return signResult{url: url}
}

func firstError(results []signResult) error {
	for _, res := range results {
		if res.err != nil {
			return res.err
		}
	}
	return nil
}
