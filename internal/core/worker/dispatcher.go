// Package worker runs the background jobs of the API: event delivery and
// payment request expiry.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/ibrahimkeyboad/tappay/internal/core/notifications"
)

var ErrQueueFull = errors.New("event queue is full")

const (
	defaultMaxAttempts    = 5
	defaultAttemptTimeout = 10 * time.Second
)

type job struct {
	event   notifications.Event
	attempt int
}

// Dispatcher delivers events on a fixed pool of goroutines. Publish never
// blocks; failed deliveries are re-queued after a backoff.
type Dispatcher struct {
	jobs      chan job
	publisher notifications.Publisher
	logger    *slog.Logger
	wg        sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	maxAttempts int
	backoff     func(attempt int) time.Duration
}

type Option func(*Dispatcher)

// WithBackoff replaces the delay before retry number attempt (0 based).
func WithBackoff(fn func(attempt int) time.Duration) Option {
	return func(d *Dispatcher) { d.backoff = fn }
}

func WithMaxAttempts(n int) Option {
	return func(d *Dispatcher) { d.maxAttempts = n }
}

func NewDispatcher(bufferSize int, publisher notifications.Publisher, logger *slog.Logger, opts ...Option) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{
		jobs:        make(chan job, bufferSize),
		publisher:   publisher,
		logger:      logger,
		maxAttempts: defaultMaxAttempts,
		backoff:     defaultBackoff,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func defaultBackoff(attempt int) time.Duration {
	return time.Duration(attempt*10+10) * time.Second
}

func (d *Dispatcher) Start(workerCount int) {
	d.logger.Info("👷 Event dispatcher started", "workers", workerCount)
	for i := 0; i < workerCount; i++ {
		d.wg.Add(1)
		go d.worker()
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()

	for j := range d.jobs {
		d.deliver(j)
	}
}

func (d *Dispatcher) deliver(j job) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultAttemptTimeout)
	defer cancel()

	err := d.publisher.Publish(ctx, j.event)
	if err == nil {
		d.logger.Info("✅ Event delivered", "event_id", j.event.ID, "type", j.event.Type)
		return
	}

	j.attempt++
	if j.attempt >= d.maxAttempts {
		d.logger.Error("Event dropped (max attempts reached)", "event_id", j.event.ID, "type", j.event.Type, "error", err)
		return
	}

	delay := d.backoff(j.attempt - 1)
	d.logger.Warn("Event delivery failed, scheduled retry", "event_id", j.event.ID, "attempt", j.attempt, "retry_in", delay, "error", err)
	time.AfterFunc(delay, func() {
		if !d.enqueue(j) {
			d.logger.Error("Event retry dropped", "event_id", j.event.ID, "attempt", j.attempt)
		}
	})
}

// Publish queues ev for delivery. It implements notifications.Publisher so
// the dispatcher can stand in front of any publisher.
func (d *Dispatcher) Publish(_ context.Context, ev notifications.Event) error {
	if !d.enqueue(job{event: ev}) {
		d.logger.Warn("⚠️ Event queue full, dropping event", "event_id", ev.ID, "type", ev.Type)
		return ErrQueueFull
	}
	return nil
}

func (d *Dispatcher) enqueue(j job) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return false
	}
	select {
	case d.jobs <- j:
		return true
	default:
		return false
	}
}

// Shutdown stops accepting events and waits for queued ones to be tried.
// Retries still waiting on their backoff are dropped.
func (d *Dispatcher) Shutdown() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.jobs)
	d.mu.Unlock()

	d.wg.Wait()
	d.logger.Info("Event dispatcher stopped")
}
