package locks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockLost is reported when a lease expired or changed hands while held.
var ErrLockLost = errors.New("lock lease lost")

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0
`)

var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

type redisClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	redis.Scripter
}

// RedisConfig tunes lease length and polling.
type RedisConfig struct {
	Prefix       string
	TTL          time.Duration
	RetryBackoff time.Duration
	// RenewInterval is how often held leases are pushed back out to TTL.
	// Defaults to TTL/3.
	RenewInterval time.Duration
	// OnRelease is called with ErrLockLost or a transport error when a
	// renewal or release did not find the lease.
	OnRelease func(key string, err error)
}

// RedisLocker holds leases in Redis so replicas share one lock table.
type RedisLocker struct {
	client  redisClient
	prefix  string
	ttl     time.Duration
	renew   time.Duration
	backoff time.Duration
	report  func(key string, err error)
}

// NewRedisLocker constructs a locker over client.
func NewRedisLocker(client redisClient, cfg RedisConfig) *RedisLocker {
	if cfg.Prefix == "" {
		cfg.Prefix = "lock:"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Second
	}
	if cfg.RenewInterval <= 0 || cfg.RenewInterval >= cfg.TTL {
		cfg.RenewInterval = cfg.TTL / 3
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 25 * time.Millisecond
	}
	if cfg.OnRelease == nil {
		cfg.OnRelease = func(string, error) {}
	}
	return &RedisLocker{
		client:  client,
		prefix:  cfg.Prefix,
		ttl:     cfg.TTL,
		renew:   cfg.RenewInterval,
		backoff: cfg.RetryBackoff,
		report:  cfg.OnRelease,
	}
}

// Lock acquires a lease on every key in sorted order, polling until ctx is
// done. On failure every lease taken so far is released. Held leases are
// renewed in the background until the returned func is called.
func (l *RedisLocker) Lock(ctx context.Context, keys ...string) (func(), error) {
	token := uuid.NewString()
	ordered := normalise(keys)
	held := make([]string, 0, len(ordered))

	for _, key := range ordered {
		if err := l.acquire(ctx, l.prefix+key, token); err != nil {
			l.release(held, token)
			return nil, err
		}
		held = append(held, l.prefix+key)
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go l.keepAlive(held, token, stop, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			l.release(held, token)
		})
	}, nil
}

func (l *RedisLocker) keepAlive(keys []string, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(l.renew)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		if !l.extend(keys, token) {
			return
		}
	}
}

// extend pushes every lease back out to the full TTL. It returns false once a
// lease is gone.
func (l *RedisLocker) extend(keys []string, token string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), l.renew)
	defer cancel()

	for _, key := range keys {
		renewed, err := renewScript.Run(ctx, l.client, []string{key}, token, l.ttl.Milliseconds()).Int()
		switch {
		case err != nil:
			l.report(key, fmt.Errorf("renew %s: %w", key, err))
		case renewed == 0:
			l.report(key, ErrLockLost)
			return false
		}
	}
	return true
}

func (l *RedisLocker) acquire(ctx context.Context, key, token string) error {
	ticker := time.NewTicker(l.backoff)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return fmt.Errorf("acquire %s: %w", key, err)
		}
		if ok {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (l *RedisLocker) release(keys []string, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	for i := len(keys) - 1; i >= 0; i-- {
		deleted, err := releaseScript.Run(ctx, l.client, []string{keys[i]}, token).Int()
		switch {
		case err != nil:
			l.report(keys[i], fmt.Errorf("release %s: %w", keys[i], err))
		case deleted == 0:
			l.report(keys[i], ErrLockLost)
		}
	}
}
