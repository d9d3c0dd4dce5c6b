package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

type DispatcherConfig struct {
	Workers   int
	QueueSize int
	// Timeout bounds each single notify or record call.
	Timeout time.Duration
}

// Dispatcher fans accepted transitions out to the notifier and the audit log
// on a bounded queue served by a fixed set of workers.
type Dispatcher struct {
	notifier Notifier
	audit    AuditRecorder
	log      *slog.Logger
	cfg      DispatcherConfig

	queue chan Event
	wg    sync.WaitGroup

	mu      sync.RWMutex
	closed  bool
	started bool
}

func NewDispatcher(notifier Notifier, audit AuditRecorder, log *slog.Logger, cfg DispatcherConfig) *Dispatcher {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &Dispatcher{
		notifier: notifier,
		audit:    audit,
		log:      log.With("component", "dispatcher"),
		cfg:      cfg,
		queue:    make(chan Event, cfg.QueueSize),
	}
}

// Start launches the workers. Calling it more than once is a no-op.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.closed {
		return
	}
	d.started = true

	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for e := range d.queue {
				d.deliver(e)
			}
		}()
	}
}

// Emit queues e without blocking. It reports false when the event was dropped
// because the queue is full or the dispatcher is closed.
func (d *Dispatcher) Emit(e Event) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.log.Warn("event dropped, dispatcher closed", "booking_id", e.BookingID, "action", e.Action)
		return false
	}

	select {
	case d.queue <- e:
		return true
	default:
		d.log.Warn("event dropped, queue full", "booking_id", e.BookingID, "action", e.Action, "queue_size", d.cfg.QueueSize)
		return false
	}
}

// Close stops intake and waits for queued events to be delivered or ctx to end.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	started := d.started
	d.mu.Unlock()

	if !started {
		if n := len(d.queue); n > 0 {
			d.log.Warn("dispatcher closed before start, events discarded", "count", n)
		}
		return nil
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("drain dispatcher: %w", ctx.Err())
	}
}

func (d *Dispatcher) deliver(e Event) {
	if kind, ok := KindFor(e.Action); ok {
		payload := e.Payload()
		for _, userID := range e.Recipients() {
			d.attempt(e, "notify", func(ctx context.Context) error {
				return d.notifier.Notify(ctx, userID, kind, payload)
			})
		}
	}

	d.attempt(e, "audit", func(ctx context.Context) error {
		return d.audit.Record(ctx, e.ActorID, "booking."+e.Action, "booking:"+e.BookingID, e.Payload())
	})
}

// attempt runs one delivery with a timeout. Errors and panics are logged and swallowed.
func (d *Dispatcher) attempt(e Event, what string, fn func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.Timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			d.log.Error("delivery panicked", "what", what, "booking_id", e.BookingID, "action", e.Action, "panic", r)
		}
	}()

	if err := fn(ctx); err != nil {
		d.log.Warn("delivery failed", "what", what, "booking_id", e.BookingID, "action", e.Action, "error", err)
	}
}
