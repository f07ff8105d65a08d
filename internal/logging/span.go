package logging

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/socialfeed/backend"

// Span represents a logical unit of work tied to a request trace. It pairs an
// OpenTelemetry span with a logger carrying the same identifiers.
type Span struct {
	name   string
	logger *slog.Logger
	start  time.Time
	otel   trace.Span
}

// StartSpan derives a child span from the provided context, enriching the logger
// with tracing metadata. It returns the derived context and the span handle.
//
// When no tracer provider is installed the OpenTelemetry span is a no-op and
// random identifiers are used for the log fields instead.
func StartSpan(ctx context.Context, name string) (context.Context, *Span) {
	if ctx == nil {
		ctx = context.Background()
	}

	ctx, otelSpan := otel.Tracer(tracerName).Start(ctx, name)
	sc := otelSpan.SpanContext()

	logger := FromContext(ctx)

	traceID := TraceIDFromContext(ctx)
	if sc.HasTraceID() && traceID != sc.TraceID().String() {
		traceID = sc.TraceID().String()
		ctx = WithTraceID(ctx, traceID)
		logger = logger.With(slog.String("trace_id", traceID))
	} else if traceID == "" {
		traceID = uuid.NewString()
		ctx = WithTraceID(ctx, traceID)
		logger = logger.With(slog.String("trace_id", traceID))
	}

	parentSpanID := SpanIDFromContext(ctx)
	spanID := uuid.NewString()
	if sc.HasSpanID() {
		spanID = sc.SpanID().String()
	}

	logger = logger.With(
		slog.String("span_id", spanID),
		slog.String("span_name", name),
	)
	if parentSpanID != "" {
		logger = logger.With(slog.String("parent_span_id", parentSpanID))
	}

	ctx = WithLogger(ctx, logger)
	ctx = WithSpanID(ctx, spanID)

	span := &Span{
		name:   name,
		logger: logger,
		start:  time.Now(),
		otel:   otelSpan,
	}

	return ctx, span
}

// RecordError marks the span as failed.
func (s *Span) RecordError(err error) {
	if s == nil || err == nil {
		return
	}
	s.otel.RecordError(err)
	s.otel.SetStatus(codes.Error, err.Error())
}

// End finalizes the span and emits a completion log entry.
func (s *Span) End() {
	if s == nil {
		return
	}
	s.otel.End()
	s.logger.Debug("span completed", slog.Duration("duration", time.Since(s.start)))
}
