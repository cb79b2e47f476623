package alpine

import (
	"context"
	"fmt"
	"reflect"

	"github.com/rbaliyan/alpine/ratelimit"
)

var (
	contextType = reflect.TypeFor[context.Context]()
	errorType   = reflect.TypeFor[error]()
)

// Listener is a standalone listener: a callback bound to an event type, with
// optional filters, priority and limiter. A Listener can be subscribed on its
// own or exposed by a subscriber through a tagged field or a ListenerProvider.
//
// Construction never fails. A malformed listener carries its error, which is
// returned by Err and by Subscribe.
//
// Example:
//
//	l := alpine.NewListener(func(ctx context.Context, o *OrderPlaced) error {
//	    return ship(ctx, o)
//	}, alpine.WithPriority(alpine.PriorityHigh))
//
//	if err := bus.Subscribe(l); err != nil {
//	    return err
//	}
type Listener struct {
	eventType reflect.Type
	paramType reflect.Type
	invoke    func(ctx context.Context, ev any) error
	filters   []func(any) bool
	priority  Priority
	name      string
	limiter   ratelimit.Limiter
	throttle  bool
	err       error
}

// ListenerOption configures a Listener.
type ListenerOption func(*listenerOptions)

type listenerOptions struct {
	priority  Priority
	name      string
	eventType reflect.Type
	explicit  bool
	filters   []filterSpec
	limiter   ratelimit.Limiter
	throttle  bool
	errs      []string
}

type filterSpec struct {
	typ reflect.Type
	fn  func(any) bool
}

// WithPriority sets the listener priority. Lower values run first.
func WithPriority(p Priority) ListenerOption {
	return func(o *listenerOptions) {
		o.priority = p
	}
}

// WithName sets the listener name used in logs and errors.
func WithName(name string) ListenerOption {
	return func(o *listenerOptions) {
		o.name = name
	}
}

// WithEventType sets the event type explicitly instead of inferring it from
// the callback parameter. The type must be assignable to the parameter type,
// so it can only narrow what the callback accepts.
//
//	// receives only *Login even though the callback takes any Auditable
//	alpine.NewListener(audit, alpine.WithEventType(reflect.TypeFor[*Login]()))
func WithEventType(t reflect.Type) ListenerOption {
	return func(o *listenerOptions) {
		o.explicit = true
		o.eventType = t
	}
}

// WithFilter adds a predicate evaluated before the callback. The listener is
// skipped for a post unless every filter returns true. T must be a type the
// listener's event type is assignable to.
func WithFilter[T any](fn func(T) bool) ListenerOption {
	return func(o *listenerOptions) {
		if fn == nil {
			o.errs = append(o.errs, "filter is nil")
			return
		}
		o.filters = append(o.filters, filterSpec{
			typ: reflect.TypeFor[T](),
			fn: func(ev any) bool {
				v, ok := ev.(T)
				return ok && fn(v)
			},
		})
	}
}

// WithLimiter skips the listener for a post when the limiter refuses it.
func WithLimiter(l ratelimit.Limiter) ListenerOption {
	return func(o *listenerOptions) {
		if l == nil {
			o.errs = append(o.errs, "limiter is nil")
			return
		}
		o.limiter = l
		o.throttle = false
	}
}

// WithThrottle makes the listener wait for the limiter before each
// invocation. The wait is bounded by the post context; a cancelled wait is
// reported as an invocation error.
func WithThrottle(l ratelimit.Limiter) ListenerOption {
	return func(o *listenerOptions) {
		if l == nil {
			o.errs = append(o.errs, "limiter is nil")
			return
		}
		o.limiter = l
		o.throttle = true
	}
}

// NewListener creates a listener for events of type T. T is the index key:
// in exact mode the listener receives events whose dynamic type is T, in
// super mode also events whose type implements or declares T.
func NewListener[T any](fn func(context.Context, T) error, opts ...ListenerOption) *Listener {
	if fn == nil {
		return failedListener("callback is nil", opts)
	}
	return newListener(reflect.TypeFor[T](), func(ctx context.Context, ev any) error {
		v, ok := ev.(T)
		if !ok {
			return fmt.Errorf("%w: cannot pass %T as %v", ErrConfiguration, ev, reflect.TypeFor[T]())
		}
		return fn(ctx, v)
	}, opts)
}

// Listen creates a listener from a callback that needs neither a context nor
// an error return.
func Listen[T any](fn func(T), opts ...ListenerOption) *Listener {
	if fn == nil {
		return failedListener("callback is nil", opts)
	}
	return NewListener(func(_ context.Context, v T) error {
		fn(v)
		return nil
	}, opts...)
}

// NewListenerFunc creates a listener from an arbitrary function value. The
// function takes the event, optionally preceded by a context.Context, and
// returns nothing or an error.
func NewListenerFunc(fn any, opts ...ListenerOption) *Listener {
	if fn == nil {
		return failedListener("callback is nil", opts)
	}
	param, invoke, reason := funcInvoker(reflect.ValueOf(fn), true)
	if reason != "" {
		return failedListener(reason, opts)
	}
	return newListener(param, invoke, opts)
}

// funcInvoker adapts a function value to the invoke signature. It returns a
// non-empty reason when the function does not have an accepted shape.
func funcInvoker(fv reflect.Value, allowContext bool) (reflect.Type, func(context.Context, any) error, string) {
	if !fv.IsValid() || fv.Kind() != reflect.Func {
		return nil, nil, "callback is not a function"
	}
	if fv.IsNil() {
		return nil, nil, "callback is nil"
	}
	ft := fv.Type()
	if ft.IsVariadic() {
		return nil, nil, "callback must not be variadic"
	}

	withCtx := false
	switch {
	case ft.NumIn() == 1:
	case ft.NumIn() == 2 && allowContext && ft.In(0) == contextType:
		withCtx = true
	default:
		if allowContext {
			return nil, nil, fmt.Sprintf("callback must take one event parameter, optionally preceded by context.Context, got %v", ft)
		}
		return nil, nil, fmt.Sprintf("must take exactly one parameter, got %d", ft.NumIn())
	}

	switch {
	case ft.NumOut() == 0:
	case ft.NumOut() == 1 && ft.Out(0) == errorType:
	default:
		return nil, nil, fmt.Sprintf("must return nothing or error, got %v", ft)
	}

	param := ft.In(ft.NumIn() - 1)
	returnsErr := ft.NumOut() == 1
	invoke := func(ctx context.Context, ev any) error {
		ev0 := reflect.ValueOf(ev)
		if !ev0.IsValid() || !ev0.Type().AssignableTo(param) {
			return fmt.Errorf("%w: cannot pass %T as %v", ErrConfiguration, ev, param)
		}
		var out []reflect.Value
		if withCtx {
			out = fv.Call([]reflect.Value{reflect.ValueOf(&ctx).Elem(), ev0})
		} else {
			out = fv.Call([]reflect.Value{ev0})
		}
		if returnsErr && !out[0].IsNil() {
			return out[0].Interface().(error)
		}
		return nil
	}
	return param, invoke, ""
}

func applyListenerOptions(opts []ListenerOption) listenerOptions {
	o := listenerOptions{priority: PriorityDefault}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

func failedListener(reason string, opts []ListenerOption) *Listener {
	o := applyListenerOptions(opts)
	return &Listener{
		priority: o.priority,
		name:     o.name,
		err:      configErr(o.name, reason),
	}
}

func newListener(param reflect.Type, invoke func(context.Context, any) error, opts []ListenerOption) *Listener {
	o := applyListenerOptions(opts)
	l := &Listener{
		eventType: param,
		paramType: param,
		invoke:    invoke,
		priority:  o.priority,
		name:      o.name,
		limiter:   o.limiter,
		throttle:  o.throttle,
	}

	if len(o.errs) > 0 {
		l.err = configErr(o.name, o.errs[0])
		return l
	}

	if o.explicit {
		switch {
		case o.eventType == nil:
			l.err = configErr(o.name, "explicit event type is nil")
			return l
		case !o.eventType.AssignableTo(param):
			l.err = configErr(o.name, fmt.Sprintf("event type %v is not assignable to callback parameter %v", o.eventType, param))
			return l
		}
		l.eventType = o.eventType
	}

	for _, f := range o.filters {
		if !l.eventType.AssignableTo(f.typ) {
			l.err = configErr(o.name, fmt.Sprintf("filter accepts %v but listener receives %v", f.typ, l.eventType))
			return l
		}
		l.filters = append(l.filters, f.fn)
	}
	return l
}

// Err returns the configuration error of a malformed listener, or nil.
func (l *Listener) Err() error {
	return l.err
}

// EventType returns the type the listener is indexed under. It is nil for a
// listener whose event type could not be determined.
func (l *Listener) EventType() reflect.Type { return l.eventType }

// Priority returns the listener priority.
func (l *Listener) Priority() Priority { return l.priority }

// Name returns the listener name, which may be empty.
func (l *Listener) Name() string { return l.name }

// withName returns l when it already has a name, or a named copy.
func (l *Listener) withName(name string) *Listener {
	if l.name != "" || name == "" {
		return l
	}
	c := *l
	c.name = name
	if ce, ok := c.err.(*ConfigurationError); ok && ce.Listener == "" {
		cc := *ce
		cc.Listener = name
		c.err = &cc
	}
	return &c
}

// record is a subscribed listener. Records are immutable once inserted into
// an index snapshot.
type record struct {
	eventType reflect.Type
	invoke    func(ctx context.Context, ev any) error
	filters   []func(any) bool
	priority  Priority
	limiter   ratelimit.Limiter
	throttle  bool
	seq       uint64
	owner     any
	name      string
}

func newRecord(l *Listener, owner any, seq uint64) *record {
	return &record{
		eventType: l.eventType,
		invoke:    l.invoke,
		filters:   l.filters,
		priority:  l.priority,
		limiter:   l.limiter,
		throttle:  l.throttle,
		seq:       seq,
		owner:     owner,
		name:      l.name,
	}
}

// before reports whether r runs before o.
func (r *record) before(o *record) bool {
	if r.priority != o.priority {
		return r.priority < o.priority
	}
	return r.seq < o.seq
}

func (r *record) accepts(ev any) bool {
	for _, f := range r.filters {
		if !f(ev) {
			return false
		}
	}
	return true
}

func (r *record) info() ListenerInfo {
	return ListenerInfo{
		Name:       r.name,
		EventType:  r.eventType,
		Priority:   r.priority,
		Order:      r.seq,
		Subscriber: typeName(r.owner),
	}
}

// ListenerInfo describes a subscribed listener.
type ListenerInfo struct {
	Name       string
	EventType  reflect.Type
	Priority   Priority
	Order      uint64
	Subscriber string
}
