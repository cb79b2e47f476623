package alpine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/rbaliyan/alpine/monitor"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Bus is an in-process event bus. Subscribers register listeners for event
// types; Post delivers an event to every matching listener on the calling
// goroutine, in priority order.
//
// A Bus is safe for concurrent use. Its configuration is fixed by NewBus.
type Bus struct {
	id              string
	name            string
	superListeners  bool
	parentDiscovery bool
	errorPolicy     ErrorPolicy
	errorHandler    ErrorHandler
	strategies      []DiscoveryStrategy
	graph           *TypeGraph
	logger          *slog.Logger
	monitor         monitor.Store
	tracer          trace.Tracer
	metrics         *busMetrics
	tracingEnabled  bool
	recoveryEnabled bool

	index    *typeIndex
	registry *registry

	parentMu sync.Mutex
	parents  atomic.Pointer[[]*Bus]
}

func tracerProvider(o *busOptions) trace.TracerProvider {
	if o.tracerProvider != nil {
		return o.tracerProvider
	}
	return otel.GetTracerProvider()
}

// NewBus creates a bus. The name identifies the bus in logs, spans and
// metrics and must not be empty.
//
// Example:
//
//	bus, err := alpine.NewBus("app",
//	    alpine.WithSuperListeners(),
//	    alpine.WithErrorPolicy(alpine.ReportAndContinue),
//	)
func NewBus(name string, opts ...BusOption) (*Bus, error) {
	if name == "" {
		return nil, configErr("", "bus name is required")
	}
	o := newBusOptions(opts...)

	switch o.errorPolicy {
	case FailFast, ReportAndContinue:
	default:
		return nil, configErr("", fmt.Sprintf("unknown error policy %d", o.errorPolicy))
	}

	index := newTypeIndex()
	b := &Bus{
		id:              NewID(),
		name:            name,
		superListeners:  o.superListeners,
		parentDiscovery: o.parentDiscovery,
		errorPolicy:     o.errorPolicy,
		errorHandler:    o.errorHandler,
		strategies:      slices.Clone(o.strategies),
		graph:           o.graph,
		logger:          o.logger.With("component", "bus>"+name),
		monitor:         o.monitor,
		tracer:          tracerProvider(o).Tracer(name),
		metrics:         newBusMetrics(name, o.metricsEnabled),
		tracingEnabled:  o.tracingEnabled,
		recoveryEnabled: o.recoveryEnabled,
		index:           index,
		registry:        newRegistry(index),
	}
	if b.errorHandler == nil {
		b.errorHandler = b.logError
	}

	var parents []*Bus
	for _, p := range o.parents {
		if p != b && !slices.Contains(parents, p) {
			parents = append(parents, p)
		}
	}
	b.parents.Store(&parents)
	return b, nil
}

// ID returns the bus ID
func (b *Bus) ID() string {
	return b.id
}

// Name returns the bus name
func (b *Bus) Name() string {
	return b.name
}

// SuperListeners reports whether listeners also receive subtype events.
func (b *Bus) SuperListeners() bool {
	return b.superListeners
}

// Logger returns the bus logger
func (b *Bus) Logger() *slog.Logger {
	return b.logger
}

// Subscribe registers the listeners of subscriber.
//
// subscriber is either a *Listener, which registers itself, or a pointer
// whose listeners are found by the bus's discovery strategies. Registration
// is all or nothing: if any listener is invalid nothing is registered and
// the error names the offending member. Subscribing the same value twice
// registers its listeners twice.
func (b *Bus) Subscribe(subscriber any) error {
	if isNil(subscriber) {
		return ErrNilSubscriber
	}

	if l, ok := subscriber.(*Listener); ok {
		if err := l.Err(); err != nil {
			return err
		}
		b.add(l, []*Listener{l.withName(fmt.Sprintf("listener(%v)", l.eventType))})
		return nil
	}

	if reflect.TypeOf(subscriber).Kind() != reflect.Pointer {
		return &InvalidSubscriberError{
			Subscriber: typeName(subscriber),
			Reason:     "subscriber must be a pointer or *alpine.Listener",
		}
	}

	listeners, err := b.discover(subscriber)
	if err != nil {
		return err
	}
	if len(listeners) == 0 {
		b.logger.Debug("no listeners found", "subscriber", typeName(subscriber))
		return nil
	}
	b.add(subscriber, listeners)
	return nil
}

// discover runs every strategy and validates the listeners found.
func (b *Bus) discover(subscriber any) ([]*Listener, error) {
	var found []*Listener
	var errs []error
	for _, s := range b.strategies {
		ls, err := s.FindListeners(subscriber, b.parentDiscovery)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		found = append(found, ls...)
	}
	for _, l := range found {
		if err := l.Err(); err != nil {
			errs = append(errs, &InvalidSubscriberError{
				Subscriber: typeName(subscriber),
				Member:     l.name,
				Reason:     "invalid listener",
				Err:        err,
			})
		}
	}
	switch len(errs) {
	case 0:
		return found, nil
	case 1:
		return nil, errs[0]
	}
	return nil, errors.Join(errs...)
}

func (b *Bus) add(owner any, listeners []*Listener) {
	recs := b.registry.add(owner, listeners)
	for _, r := range recs {
		b.logger.Debug("listener subscribed",
			"listener", r.name,
			"event", typeString(r.eventType),
			"priority", r.priority,
			"order", r.seq)
	}
}

// Unsubscribe removes every listener registered by subscriber. It returns
// false when subscriber has nothing registered.
func (b *Bus) Unsubscribe(subscriber any) bool {
	if !comparableOwner(subscriber) {
		return false
	}
	n := b.registry.remove(subscriber)
	if n > 0 {
		b.logger.Debug("subscriber removed", "subscriber", typeName(subscriber), "listeners", n)
	}
	return n > 0
}

// IsSubscribed reports whether subscriber has listeners registered.
func (b *Bus) IsSubscribed(subscriber any) bool {
	if !comparableOwner(subscriber) {
		return false
	}
	return b.registry.contains(subscriber)
}

// ListenerCount returns the number of registered listeners.
func (b *Bus) ListenerCount() int {
	return b.registry.count()
}

// Listeners describes the listeners registered for exactly eventType, in
// dispatch order. A nil eventType lists every listener.
func (b *Bus) Listeners(eventType reflect.Type) []ListenerInfo {
	return b.registry.listeners(eventType)
}

func comparableOwner(v any) bool {
	return v != nil && reflect.TypeOf(v).Comparable()
}

// Attach makes parent receive the events posted to b, after b's own
// listeners and after the parents b already has. It returns false if parent
// is nil, b itself or already attached.
func (b *Bus) Attach(parent *Bus) bool {
	if parent == nil || parent == b {
		return false
	}
	b.parentMu.Lock()
	defer b.parentMu.Unlock()

	cur := *b.parents.Load()
	if slices.Contains(cur, parent) {
		return false
	}
	next := append(slices.Clone(cur), parent)
	b.parents.Store(&next)
	b.logger.Debug("bus attached", "parent", parent.name)
	return true
}

// Detach removes parent. It returns false if parent was not attached.
func (b *Bus) Detach(parent *Bus) bool {
	b.parentMu.Lock()
	defer b.parentMu.Unlock()

	cur := *b.parents.Load()
	i := slices.Index(cur, parent)
	if i < 0 {
		return false
	}
	next := slices.Delete(slices.Clone(cur), i, i+1)
	b.parents.Store(&next)
	b.logger.Debug("bus detached", "parent", parent.name)
	return true
}

// Parents returns the buses notified after b, in notification order.
func (b *Bus) Parents() []*Bus {
	return slices.Clone(*b.parents.Load())
}

func (b *Bus) logError(ctx context.Context, err *ListenerInvocationError) {
	attrs := []any{
		"listener", err.Listener,
		"event", err.EventType,
		"event.id", ContextEventID(ctx),
		"error", err,
	}
	if err.IsPanic() {
		attrs = append(attrs, "stack", err.Stack)
	}
	b.logger.Error("listener failed", attrs...)
}
