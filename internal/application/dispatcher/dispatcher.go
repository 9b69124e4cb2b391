package dispatcher

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/garyjia/doc-approval/internal/domain/event"
)

// Dispatcher fans committed document events out to named subscribers.
// Publish never reports subscriber failures back to the caller: by the time
// an event is published the transition is already durable.
type Dispatcher interface {
	// SubscribeNamed registers handler under name. Registering the same name
	// twice for one event type replaces the earlier handler.
	SubscribeNamed(eventType event.Type, name string, handler Handler)

	// Publish delivers evt to every subscriber of its type
	Publish(ctx context.Context, evt *event.Event)

	// Close stops accepting events and waits for in-flight deliveries
	Close() error
}

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

type eventDispatcher struct {
	mu          sync.RWMutex
	subscribers map[event.Type][]subscriber
	logger      Logger
	async       bool

	inflight sync.WaitGroup
	closed   atomic.Bool
}

// Option configures the dispatcher
type Option func(*eventDispatcher)

// WithLogger sets a logger for the dispatcher
func WithLogger(logger Logger) Option {
	return func(d *eventDispatcher) {
		d.logger = logger
	}
}

// WithAsync delivers each subscriber on its own goroutine, detached from the
// publishing request
func WithAsync(async bool) Option {
	return func(d *eventDispatcher) {
		d.async = async
	}
}

// NewDispatcher creates a new event dispatcher
func NewDispatcher(opts ...Option) Dispatcher {
	d := &eventDispatcher{
		subscribers: make(map[event.Type][]subscriber),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *eventDispatcher) SubscribeNamed(eventType event.Type, name string, handler Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()

	subs := d.subscribers[eventType]
	for i := range subs {
		if subs[i].name == name {
			subs[i].handler = handler
			d.logInfo("Subscriber replaced", "event_type", eventType, "subscriber", name)
			return
		}
	}
	d.subscribers[eventType] = append(subs, subscriber{name: name, handler: handler})
	d.logInfo("Subscriber registered", "event_type", eventType, "subscriber", name)
}

func (d *eventDispatcher) Publish(ctx context.Context, evt *event.Event) {
	if d.closed.Load() {
		d.logError("Event dropped, dispatcher is closed", "event_type", evt.Type, "document_id", evt.DocumentID)
		return
	}

	d.mu.RLock()
	subs := append([]subscriber(nil), d.subscribers[evt.Type]...)
	d.mu.RUnlock()

	if !d.async {
		for _, s := range subs {
			d.deliver(ctx, evt, s)
		}
		return
	}

	ctx = context.WithoutCancel(ctx)
	for _, s := range subs {
		d.inflight.Add(1)
		go func(s subscriber) {
			defer d.inflight.Done()
			d.deliver(ctx, evt, s)
		}(s)
	}
}

func (d *eventDispatcher) Close() error {
	if !d.closed.CompareAndSwap(false, true) {
		return fmt.Errorf("dispatcher already closed")
	}
	d.inflight.Wait()
	d.logInfo("Dispatcher closed")
	return nil
}

// deliver runs one subscriber, turning a panic into a logged failure so the
// remaining subscribers still see the event
func (d *eventDispatcher) deliver(ctx context.Context, evt *event.Event, s subscriber) {
	defer func() {
		if r := recover(); r != nil {
			d.logError("Subscriber panicked",
				"event_type", evt.Type,
				"document_id", evt.DocumentID,
				"correlation_id", evt.CorrelationID,
				"subscriber", s.name,
				"panic", r,
			)
		}
	}()

	if err := s.handler(ctx, evt); err != nil {
		d.logError("Subscriber failed",
			"event_type", evt.Type,
			"document_id", evt.DocumentID,
			"correlation_id", evt.CorrelationID,
			"subscriber", s.name,
			"error", err,
		)
	}
}

func (d *eventDispatcher) logInfo(msg string, kv ...interface{}) {
	if d.logger != nil {
		d.logger.Info(msg, kv...)
	}
}

func (d *eventDispatcher) logError(msg string, kv ...interface{}) {
	if d.logger != nil {
		d.logger.Error(msg, kv...)
	}
}
