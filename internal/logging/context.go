package logging

import (
	"context"
	"log/slog"
)

// key types the values this package keeps on a request context.
type key[T any] struct{ name string }

var (
	loggerKey    = key[*slog.Logger]{"logger"}
	requestIDKey = key[string]{"request_id"}
	traceIDKey   = key[string]{"trace_id"}
	spanIDKey    = key[string]{"span_id"}
	userIDKey    = key[string]{"user_id"}
)

func with[T comparable](ctx context.Context, k key[T], v T) context.Context {
	var zero T
	if ctx == nil || v == zero {
		return ctx
	}
	return context.WithValue(ctx, k, v)
}

func from[T any](ctx context.Context, k key[T]) (T, bool) {
	var zero T
	if ctx == nil {
		return zero, false
	}
	v, ok := ctx.Value(k).(T)
	return v, ok
}

// WithLogger stores logger on ctx.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return with(ctx, loggerKey, logger)
}

// FromContext returns the request logger, or slog.Default() outside a request.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := from(ctx, loggerKey); ok && logger != nil {
		return logger
	}
	return slog.Default()
}

// WithRequestID tags ctx with the inbound request id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return with(ctx, requestIDKey, id)
}

func RequestIDFromContext(ctx context.Context) string {
	id, _ := from(ctx, requestIDKey)
	return id
}

func WithTraceID(ctx context.Context, id string) context.Context {
	return with(ctx, traceIDKey, id)
}

func TraceIDFromContext(ctx context.Context) string {
	id, _ := from(ctx, traceIDKey)
	return id
}

func WithSpanID(ctx context.Context, id string) context.Context {
	return with(ctx, spanIDKey, id)
}

func SpanIDFromContext(ctx context.Context) string {
	id, _ := from(ctx, spanIDKey)
	return id
}

// WithUserID records the authenticated caller. Handlers read it back to
// decide whose friends or likes a request may change.
func WithUserID(ctx context.Context, id string) context.Context {
	return with(ctx, userIDKey, id)
}

func UserIDFromContext(ctx context.Context) string {
	id, _ := from(ctx, userIDKey)
	return id
}
