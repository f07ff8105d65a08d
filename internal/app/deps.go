package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/socialfeed/backend/internal/auth"
	"github.com/socialfeed/backend/internal/config"
	"github.com/socialfeed/backend/internal/db"
	"github.com/socialfeed/backend/internal/events"
	"github.com/socialfeed/backend/internal/handlers"
	"github.com/socialfeed/backend/internal/locks"
	"github.com/socialfeed/backend/internal/media"
	"github.com/socialfeed/backend/internal/metrics"
	"github.com/socialfeed/backend/internal/middleware"
	"github.com/socialfeed/backend/internal/repositories"
	"github.com/socialfeed/backend/internal/social"
	"github.com/socialfeed/backend/internal/storage"
)

// cleanupFunc releases a backend. Cleanups run in reverse order of creation.
type cleanupFunc func(ctx context.Context) error

// backends holds the concrete stores and transports selected by config.
type backends struct {
	users    repositories.UserRepository
	posts    repositories.PostRepository
	sessions auth.SessionStore
	objects  storage.ObjectStore
	locker   social.Locker
	events   events.Publisher
	ping     func(ctx context.Context) error

	cleanups []cleanupFunc
}

func (b *backends) onClose(fn cleanupFunc) {
	b.cleanups = append(b.cleanups, fn)
}

func (b *backends) close(ctx context.Context) error {
	var errs []error
	for i := len(b.cleanups) - 1; i >= 0; i-- {
		if err := b.cleanups[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	b.cleanups = nil
	return errors.Join(errs...)
}

// openBackends connects every external dependency named by cfg. On failure
// whatever was opened is closed again.
func openBackends(ctx context.Context, cfg config.Config, logger *slog.Logger) (*backends, error) {
	b := &backends{}
	if err := b.open(ctx, cfg, logger); err != nil {
		_ = b.close(context.Background())
		return nil, err
	}
	return b, nil
}

func (b *backends) open(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	var err error
	if err = openRecordStore(ctx, cfg.Database, b); err != nil {
		return err
	}
	if b.objects, err = newObjectStore(ctx, cfg.ObjectStore); err != nil {
		return err
	}
	if b.locker, err = newLocker(ctx, cfg.Redis, logger, b); err != nil {
		return err
	}
	b.events, err = newPublisher(cfg.Kafka, logger, b)
	return err
}

func openRecordStore(ctx context.Context, cfg config.DatabaseConfig, b *backends) error {
	switch cfg.Driver {
	case config.DriverMongo:
		client, database, err := db.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.ConnectTimeout)
		if err != nil {
			return err
		}
		b.onClose(func(ctx context.Context) error { return client.Disconnect(ctx) })
		if err := repositories.EnsureMongoIndexes(ctx, database); err != nil {
			return err
		}
		b.users = repositories.NewMongoUserRepository(database)
		b.posts = repositories.NewMongoPostRepository(database)
		b.sessions = repositories.NewMongoSessionStore(database)
		b.ping = func(ctx context.Context) error { return client.Ping(ctx, nil) }
	default:
		pool, err := db.Connect(ctx, cfg.URL, cfg.ConnectTimeout)
		if err != nil {
			return err
		}
		b.onClose(func(context.Context) error { pool.Close(); return nil })
		b.users = repositories.NewPostgresUserRepository(pool)
		b.posts = repositories.NewPostgresPostRepository(pool)
		b.sessions = repositories.NewPostgresSessionStore(pool)
		b.ping = pool.Ping
	}
	return nil
}

func newObjectStore(ctx context.Context, cfg config.ObjectStoreConfig) (storage.ObjectStore, error) {
	if cfg.Driver == config.DriverMinio {
		store, err := storage.NewMinioStorage(cfg)
		if err != nil {
			return nil, err
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return store, nil
	}

	store, err := storage.NewS3Storage(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// newLocker uses Redis leases when an address is configured so replicas
// share locks; a single instance falls back to in-process locks.
func newLocker(ctx context.Context, cfg config.RedisConfig, logger *slog.Logger, b *backends) (social.Locker, error) {
	if cfg.Addr == "" {
		return locks.NewKeyedMutex(), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	b.onClose(func(context.Context) error { return client.Close() })

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return locks.NewRedisLocker(client, locks.RedisConfig{
		TTL: cfg.LockTTL,
		OnRelease: func(key string, err error) {
			logger.Warn("lock lease renewal or release failed", "key", key, "error", err)
		},
	}), nil
}

// newPublisher delivers events to Kafka when brokers are configured and to
// the log otherwise. Either way delivery happens off the request path.
func newPublisher(cfg config.KafkaConfig, logger *slog.Logger, b *backends) (events.Publisher, error) {
	var sink events.Publisher = events.LogPublisher{Logger: logger}
	if len(cfg.Brokers) > 0 {
		kafka, err := events.NewKafkaPublisher(events.KafkaConfig{Brokers: cfg.Brokers, TopicPrefix: cfg.TopicPrefix})
		if err != nil {
			return nil, err
		}
		b.onClose(func(context.Context) error { return kafka.Close() })
		sink = kafka
	}

	async := events.NewAsyncPublisher(sink, events.AsyncConfig{QueueSize: cfg.QueueSize, Workers: cfg.Workers}, logger)
	b.onClose(async.Shutdown)
	return async, nil
}

// buildDependencies wires together concrete implementations used by the HTTP handlers.
func buildDependencies(cfg config.Config, b *backends, logger *slog.Logger) (handlers.Dependencies, error) {
	m := metrics.New()

	decorator := social.NewDecorator(b.objects, social.DecoratorConfig{
		Concurrency: cfg.Core.SignConcurrency,
		SignTimeout: cfg.Core.SignTimeout,
		Observer:    m,
	})
	opts := social.Options{
		StoreTimeout: cfg.Core.StoreTimeout,
		Publisher:    b.events,
		Observer:     m,
	}

	sessions, err := auth.NewManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTTL, cfg.Auth.RefreshTTL, b.sessions)
	if err != nil {
		return handlers.Dependencies{}, err
	}

	return handlers.Dependencies{
		Logger:        logger,
		Users:         b.users,
		Sessions:      sessions,
		Pictures:      media.NewNormalizer(b.objects, cfg.ObjectStore.MaxImageSize),
		Relationships: social.NewRelationshipManager(b.users, b.locker, opts),
		Likes:         social.NewLikeToggleEngine(b.posts, b.locker, decorator, opts),
		Feed:          social.NewFeedAssembler(b.posts, b.users, decorator, opts),
		Decorator:     decorator,
		Metrics:       m,
		Limiter:       middleware.NewIPRateLimiter(cfg.RateLimit.RequestsPerMinute, time.Minute, cfg.RateLimit.Burst, 10*time.Minute),
		Health:        handlers.HealthHandler{Ping: b.ping},
		CORSOrigins:   cfg.CORS.AllowedOrigins,
	}, nil
}
