package social

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/socialfeed/backend/internal/events"
	"github.com/socialfeed/backend/internal/logging"
)

// storeCall runs fn under timeout and classifies its failure.
func storeCall(ctx context.Context, timeout time.Duration, op string, fn func(context.Context) error) error {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return classify(op, fn(callCtx))
}

func publish(ctx context.Context, opts Options, event events.Event) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = opts.Now()
	}
	if err := opts.Publisher.Publish(ctx, event); err != nil && !errors.Is(err, context.Canceled) {
		logging.FromContext(ctx).Warn("publish event failed",
			slog.String("type", event.Type),
			slog.String("key", event.Key),
			slog.Any("error", err),
		)
	}
}
