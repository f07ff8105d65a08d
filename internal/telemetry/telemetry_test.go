package telemetry

import (
	"context"
	"testing"

	"github.com/socialfeed/backend/internal/config"
)

func TestInitWithoutEndpointIsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), config.TelemetryConfig{ServiceName: "socialfeed"})
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestInitWithEndpoint(t *testing.T) {
	shutdown, err := Init(context.Background(), config.TelemetryConfig{Endpoint: "localhost:4318", ServiceName: "socialfeed"})
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// Nothing was recorded, so flushing does not need the collector.
	_ = shutdown(ctx)
}
