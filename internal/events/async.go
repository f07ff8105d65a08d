package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrPublisherClosed is returned when events are published after Shutdown.
var ErrPublisherClosed = errors.New("event publisher closed")

// ErrQueueFull is returned when the delivery queue has no free slot.
var ErrQueueFull = errors.New("event queue full")

// AsyncConfig controls the delivery worker pool.
type AsyncConfig struct {
	QueueSize      int
	Workers        int
	DeliverTimeout time.Duration
}

// AsyncPublisher queues events and delivers them from a worker pool so
// request handlers never wait on the broker.
type AsyncPublisher struct {
	next    Publisher
	logger  *slog.Logger
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	jobs   chan Event
	wg     sync.WaitGroup
}

// NewAsyncPublisher starts cfg.Workers goroutines delivering to next.
func NewAsyncPublisher(next Publisher, cfg AsyncConfig, logger *slog.Logger) *AsyncPublisher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.DeliverTimeout <= 0 {
		cfg.DeliverTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	p := &AsyncPublisher{
		next:    next,
		logger:  logger,
		timeout: cfg.DeliverTimeout,
		jobs:    make(chan Event, cfg.QueueSize),
	}

	p.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go p.worker()
	}

	return p
}

// Publish enqueues the event without blocking.
func (p *AsyncPublisher) Publish(ctx context.Context, event Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPublisherClosed
	}

	select {
	case p.jobs <- event:
		return nil
	default:
		return ErrQueueFull
	}
}

// Shutdown stops accepting events and waits for queued ones to be delivered.
func (p *AsyncPublisher) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.jobs)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (p *AsyncPublisher) worker() {
	defer p.wg.Done()

	for event := range p.jobs {
		p.deliver(event)
	}
}

func (p *AsyncPublisher) deliver(event Event) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	if err := p.next.Publish(ctx, event); err != nil {
		p.logger.Error("event delivery failed", "type", event.Type, "key", event.Key, "error", err)
	}
}
