package alpine

import (
	"context"
	"log/slog"

	"github.com/rbaliyan/alpine/monitor"
	"go.opentelemetry.io/otel/trace"
)

// ErrorPolicy decides what a bus does when a listener fails during Post.
type ErrorPolicy int

const (
	// FailFast stops dispatch at the first failing listener, including
	// listeners on parent buses, and returns its error from Post.
	FailFast ErrorPolicy = iota

	// ReportAndContinue hands each failure to the error handler and keeps
	// dispatching. Post returns nil.
	ReportAndContinue
)

// String returns the policy name.
func (p ErrorPolicy) String() string {
	switch p {
	case FailFast:
		return "fail_fast"
	case ReportAndContinue:
		return "report_and_continue"
	default:
		return "unknown"
	}
}

// ErrorHandler receives listener failures under ReportAndContinue.
type ErrorHandler func(ctx context.Context, err *ListenerInvocationError)

// busOptions holds configuration for bus (unexported)
type busOptions struct {
	superListeners  bool
	parentDiscovery bool
	parents         []*Bus
	errorPolicy     ErrorPolicy
	errorHandler    ErrorHandler
	strategies      []DiscoveryStrategy
	graph           *TypeGraph
	logger          *slog.Logger
	monitor         monitor.Store
	tracingEnabled  bool
	tracerProvider  trace.TracerProvider
	recoveryEnabled bool
	metricsEnabled  bool
}

// BusOption option function for bus configuration
type BusOption func(*busOptions)

// WithSuperListeners makes listeners receive events of their declared
// subtypes and of types implementing their interface event type.
func WithSuperListeners() BusOption {
	return func(o *busOptions) {
		o.superListeners = true
	}
}

// WithParentDiscovery makes field discovery scan embedded structs.
func WithParentDiscovery() BusOption {
	return func(o *busOptions) {
		o.parentDiscovery = true
	}
}

// WithParents sets buses notified after this bus's own listeners, in order.
func WithParents(parents ...*Bus) BusOption {
	return func(o *busOptions) {
		for _, p := range parents {
			if p != nil {
				o.parents = append(o.parents, p)
			}
		}
	}
}

// WithErrorPolicy sets the listener failure policy. The default is FailFast.
func WithErrorPolicy(p ErrorPolicy) BusOption {
	return func(o *busOptions) {
		o.errorPolicy = p
	}
}

// WithErrorHandler sets the handler used under ReportAndContinue.
// The default logs the failure.
func WithErrorHandler(h ErrorHandler) BusOption {
	return func(o *busOptions) {
		if h != nil {
			o.errorHandler = h
		}
	}
}

// WithDiscoveryStrategies replaces the discovery strategies.
func WithDiscoveryStrategies(strategies ...DiscoveryStrategy) BusOption {
	return func(o *busOptions) {
		o.strategies = nil
		for _, s := range strategies {
			if s != nil {
				o.strategies = append(o.strategies, s)
			}
		}
	}
}

// AddDiscoveryStrategies appends strategies to the current ones.
func AddDiscoveryStrategies(strategies ...DiscoveryStrategy) BusOption {
	return func(o *busOptions) {
		for _, s := range strategies {
			if s != nil {
				o.strategies = append(o.strategies, s)
			}
		}
	}
}

// WithTypeGraph sets the supertype graph used in super mode.
func WithTypeGraph(g *TypeGraph) BusOption {
	return func(o *busOptions) {
		if g != nil {
			o.graph = g
		}
	}
}

// WithBusLogger sets a custom logger for the bus
func WithBusLogger(l *slog.Logger) BusOption {
	return func(o *busOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithBusTracing enables/disables tracing of posts on this bus
func WithBusTracing(enabled bool) BusOption {
	return func(o *busOptions) {
		o.tracingEnabled = enabled
	}
}

// WithTracerProvider sets the provider the bus takes its tracer from.
// Defaults to the global provider.
func WithTracerProvider(tp trace.TracerProvider) BusOption {
	return func(o *busOptions) {
		if tp != nil {
			o.tracerProvider = tp
		}
	}
}

// WithBusRecovery enables/disables panic recovery for listeners on this bus.
// With recovery disabled a panicking listener panics the poster.
func WithBusRecovery(enabled bool) BusOption {
	return func(o *busOptions) {
		o.recoveryEnabled = enabled
	}
}

// WithBusMetrics enables/disables metrics for this bus
func WithBusMetrics(enabled bool) BusOption {
	return func(o *busOptions) {
		o.metricsEnabled = enabled
	}
}

// WithMonitor records every listener invocation in store.
func WithMonitor(store monitor.Store) BusOption {
	return func(o *busOptions) {
		o.monitor = store
	}
}

// newBusOptions creates options with defaults and applies provided options
func newBusOptions(opts ...BusOption) *busOptions {
	o := &busOptions{
		errorPolicy:     FailFast,
		strategies:      DefaultDiscoveryStrategies(),
		graph:           DefaultTypeGraph,
		logger:          slog.Default(),
		tracingEnabled:  true,
		recoveryEnabled: true,
		metricsEnabled:  true,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}
