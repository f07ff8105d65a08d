package app

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/socialfeed/backend/internal/auth"
	"github.com/socialfeed/backend/internal/config"
	"github.com/socialfeed/backend/internal/events"
	"github.com/socialfeed/backend/internal/locks"
	"github.com/socialfeed/backend/internal/repositories"
	"github.com/socialfeed/backend/internal/storage"
)

type stubUsers struct{ repositories.UserRepository }

type stubPosts struct{ repositories.PostRepository }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func TestBuildDependencies(t *testing.T) {
	cfg := config.Default()
	cfg.ObjectStore.Endpoint = "http://localhost:9000"

	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")

	objects, err := newObjectStore(context.Background(), cfg.ObjectStore)
	if err != nil {
		t.Fatalf("new object store: %v", err)
	}
	if _, ok := objects.(*storage.S3Storage); !ok {
		t.Fatalf("expected S3 storage, got %T", objects)
	}

	b := &backends{
		users:    stubUsers{},
		posts:    stubPosts{},
		sessions: auth.NewInMemorySessionStore(),
		objects:  objects,
		locker:   locks.NewKeyedMutex(),
		events:   events.LogPublisher{Logger: discardLogger()},
		ping:     func(context.Context) error { return nil },
	}

	deps, err := buildDependencies(cfg, b, discardLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if deps.Users == nil || deps.Sessions == nil || deps.Pictures == nil {
		t.Fatal("expected account dependencies to be configured")
	}
	if deps.Relationships == nil || deps.Likes == nil || deps.Feed == nil || deps.Decorator == nil {
		t.Fatal("expected social core to be configured")
	}
	if deps.Metrics == nil || deps.Limiter == nil || deps.Health.Ping == nil {
		t.Fatal("expected operational dependencies to be configured")
	}
	if !reflect.DeepEqual(deps.CORSOrigins, []string{"*"}) {
		t.Fatalf("unexpected CORS origins %v", deps.CORSOrigins)
	}
}

func TestBuildDependenciesRejectsEmptySecret(t *testing.T) {
	cfg := config.Default()
	cfg.Auth.JWTSecret = ""

	b := &backends{sessions: auth.NewInMemorySessionStore(), locker: locks.NewKeyedMutex()}
	if _, err := buildDependencies(cfg, b, discardLogger()); err == nil {
		t.Fatal("expected error for empty jwt secret")
	}
}

func TestNewLockerWithoutRedisIsInProcess(t *testing.T) {
	b := &backends{}
	locker, err := newLocker(context.Background(), config.RedisConfig{}, discardLogger(), b)
	if err != nil {
		t.Fatalf("new locker: %v", err)
	}
	if _, ok := locker.(*locks.KeyedMutex); !ok {
		t.Fatalf("expected keyed mutex, got %T", locker)
	}
	if len(b.cleanups) != 0 {
		t.Fatal("expected no cleanup for in-process locks")
	}
}

func TestNewPublisherWithoutBrokersLogsAsynchronously(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	b := &backends{}

	pub, err := newPublisher(config.KafkaConfig{QueueSize: 4, Workers: 1}, logger, b)
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}
	if _, ok := pub.(*events.AsyncPublisher); !ok {
		t.Fatalf("expected async publisher, got %T", pub)
	}

	if err := pub.Publish(context.Background(), events.Event{Type: events.TypePostLiked, Key: "p1"}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := b.close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !strings.Contains(buf.String(), "p1") {
		t.Fatalf("expected event to be drained to the log, got %q", buf.String())
	}
}

func TestBackendsCloseRunsInReverseOrder(t *testing.T) {
	var order []string
	b := &backends{}
	b.onClose(func(context.Context) error { order = append(order, "database"); return nil })
	b.onClose(func(context.Context) error { order = append(order, "redis"); return errors.New("redis gone") })
	b.onClose(func(context.Context) error { order = append(order, "events"); return nil })

	err := b.close(context.Background())
	if err == nil || !strings.Contains(err.Error(), "redis gone") {
		t.Fatalf("expected joined close error, got %v", err)
	}
	if want := []string{"events", "redis", "database"}; !reflect.DeepEqual(order, want) {
		t.Fatalf("expected %v, got %v", want, order)
	}
	if err := b.close(context.Background()); err != nil {
		t.Fatalf("expected second close to be a no-op, got %v", err)
	}
}

func TestNewLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "warn")
	logger.Info("hidden")
	logger.Warn("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Fatalf("unexpected output %q", buf.String())
	}

	buf.Reset()
	newLogger(&buf, "nonsense").Info("fallback")
	if !strings.Contains(buf.String(), "fallback") {
		t.Fatal("expected unknown level to fall back to info")
	}
}
