package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestFromContextFallsBackToDefault(t *testing.T) {
	if FromContext(context.Background()) != slog.Default() {
		t.Fatal("expected default logger")
	}

	logger := slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))
	ctx := WithLogger(context.Background(), logger)
	if FromContext(ctx) != logger {
		t.Fatal("expected stored logger")
	}
}

func TestContextValues(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")
	ctx = WithUserID(ctx, "user-1")

	if RequestIDFromContext(ctx) != "req-1" {
		t.Fatalf("unexpected request id %q", RequestIDFromContext(ctx))
	}
	if UserIDFromContext(ctx) != "user-1" {
		t.Fatalf("unexpected user id %q", UserIDFromContext(ctx))
	}
	if UserIDFromContext(context.Background()) != "" {
		t.Fatal("expected empty user id")
	}
	if WithUserID(ctx, "") != ctx {
		t.Fatal("expected empty user id to leave the context untouched")
	}
}

func TestContextKeysDoNotCollide(t *testing.T) {
	ctx := WithTraceID(context.Background(), "same")
	ctx = WithSpanID(ctx, "other")

	if TraceIDFromContext(ctx) != "same" || SpanIDFromContext(ctx) != "other" {
		t.Fatalf("unexpected ids trace=%q span=%q", TraceIDFromContext(ctx), SpanIDFromContext(ctx))
	}
	if RequestIDFromContext(ctx) != "" || UserIDFromContext(ctx) != "" {
		t.Fatal("expected unset ids to read as empty")
	}
	if WithLogger(ctx, nil) != ctx {
		t.Fatal("expected nil logger to leave the context untouched")
	}
}

func TestStartSpanNestsIdentifiers(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ctx := WithLogger(context.Background(), logger)

	outerCtx, outer := StartSpan(ctx, "outer")
	traceID := TraceIDFromContext(outerCtx)
	outerID := SpanIDFromContext(outerCtx)
	if traceID == "" || outerID == "" {
		t.Fatal("expected trace and span ids")
	}

	innerCtx, inner := StartSpan(outerCtx, "inner")
	if TraceIDFromContext(innerCtx) != traceID {
		t.Fatal("expected inner span to share the trace id")
	}
	if SpanIDFromContext(innerCtx) == outerID {
		t.Fatal("expected a fresh span id")
	}
	inner.End()
	outer.End()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected two completion records, got %d", len(lines))
	}
	var record map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &record); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if record["span_name"] != "inner" || record["parent_span_id"] != outerID || record["trace_id"] != traceID {
		t.Fatalf("unexpected record %v", record)
	}
}

func TestSpanNilSafe(t *testing.T) {
	var s *Span
	s.End()
	s.RecordError(nil)
}
