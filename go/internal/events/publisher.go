package events

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// EventPublisher delivers one event to an external sink.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

// Sink accepts events without blocking the caller. Room code calls it while holding a room lock.
type Sink interface {
	Emit(event Event)
}

// NopSink drops every event.
type NopSink struct{}

func (NopSink) Emit(Event) {}

type DispatcherConfig struct {
	QueueSize  int
	MaxRetries int
	RetryDelay time.Duration
	Timeout    time.Duration
}

func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		QueueSize:  256,
		MaxRetries: 3,
		RetryDelay: 250 * time.Millisecond,
		Timeout:    5 * time.Second,
	}
}

// DispatcherStats counts what happened to emitted events.
type DispatcherStats struct {
	Published uint64 `json:"published"`
	Failed    uint64 `json:"failed"`
	Dropped   uint64 `json:"dropped"`
	Queued    int    `json:"queued"`
}

// Dispatcher is a bounded queue in front of an EventPublisher. A full queue drops the event.
type Dispatcher struct {
	publisher EventPublisher
	cfg       DispatcherConfig
	queue     chan Event

	published atomic.Uint64
	failed    atomic.Uint64
	dropped   atomic.Uint64

	stopOnce sync.Once
	done     chan struct{}
}

func NewDispatcher(publisher EventPublisher, cfg DispatcherConfig) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultDispatcherConfig().QueueSize
	}
	return &Dispatcher{
		publisher: publisher,
		cfg:       cfg,
		queue:     make(chan Event, cfg.QueueSize),
		done:      make(chan struct{}),
	}
}

func (d *Dispatcher) Emit(event Event) {
	select {
	case d.queue <- event:
	default:
		d.dropped.Add(1)
		log.Warn().
			Str("event_type", event.Type).
			Str("room_code", event.RoomCode).
			Msg("event queue full, dropping event")
	}
}

// Run drains the queue until ctx is cancelled, then flushes what is left.
func (d *Dispatcher) Run(ctx context.Context) {
	defer close(d.done)
	for {
		select {
		case <-ctx.Done():
			d.flush()
			return
		case event := <-d.queue:
			d.publishWithRetry(ctx, event)
		}
	}
}

func (d *Dispatcher) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.Timeout)
	defer cancel()
	for {
		select {
		case event := <-d.queue:
			d.publishWithRetry(ctx, event)
		default:
			return
		}
	}
}

// Wait blocks until Run has returned.
func (d *Dispatcher) Wait() {
	<-d.done
}

func (d *Dispatcher) publishWithRetry(ctx context.Context, event Event) {
	var lastErr error
	for attempt := 0; attempt <= d.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				d.failed.Add(1)
				log.Warn().Str("event_id", event.ID.String()).Msg("shutting down, abandoning retries")
				return
			case <-time.After(d.cfg.RetryDelay * time.Duration(attempt)):
			}
		}

		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.cfg.Timeout)
		err := d.publisher.Publish(pubCtx, event)
		cancel()
		if err == nil {
			d.published.Add(1)
			return
		}
		lastErr = err
		log.Error().
			Err(err).
			Int("attempt", attempt+1).
			Str("event_id", event.ID.String()).
			Msg("failed to publish, retrying")
	}
	d.failed.Add(1)
	log.Error().
		Err(fmt.Errorf("publish failed after %d attempts: %w", d.cfg.MaxRetries+1, lastErr)).
		Str("event_type", event.Type).
		Str("room_code", event.RoomCode).
		Msg("dropping event")
}

func (d *Dispatcher) Stats() DispatcherStats {
	return DispatcherStats{
		Published: d.published.Load(),
		Failed:    d.failed.Load(),
		Dropped:   d.dropped.Load(),
		Queued:    len(d.queue),
	}
}

// LogPublisher writes events to the log. It backs the dispatcher when NATS is not configured.
type LogPublisher struct{}

func (LogPublisher) Publish(_ context.Context, event Event) error {
	log.Debug().
		Str("event_id", event.ID.String()).
		Str("event_type", event.Type).
		Str("room_code", event.RoomCode).
		Interface("payload", event.Payload).
		Msg("domain event")
	return nil
}
