package alpine

import (
	"fmt"
	"reflect"
	"unsafe"
)

// TagSubscribe marks a *Listener field for subscription.
//
//	type Handlers struct {
//	    OnLogin *alpine.Listener `alpine:"subscribe"`
//	}
const TagSubscribe = "subscribe"

const tagKey = "alpine"

var listenerPtrType = reflect.TypeFor[*Listener]()

// DiscoveryStrategy finds the listeners a subscriber exposes.
//
// A strategy returns an *InvalidSubscriberError when a member it recognises
// has the wrong shape. It returns no listeners and no error for subscribers
// it does not apply to.
type DiscoveryStrategy interface {
	FindListeners(subscriber any, parentDiscovery bool) ([]*Listener, error)
}

// DiscoveryFunc adapts a function to DiscoveryStrategy.
type DiscoveryFunc func(subscriber any, parentDiscovery bool) ([]*Listener, error)

// FindListeners calls f.
func (f DiscoveryFunc) FindListeners(subscriber any, parentDiscovery bool) ([]*Listener, error) {
	return f(subscriber, parentDiscovery)
}

// MethodSubscriber marks methods as listeners by name. Each named method
// takes exactly one parameter, the event, and returns nothing or an error.
//
//	func (a *App) SubscribedMethods() []string { return []string{"OnLogin"} }
//	func (a *App) OnLogin(e *Login) error      { ... }
type MethodSubscriber interface {
	SubscribedMethods() []string
}

// MethodPrioritizer optionally assigns priorities to subscribed methods.
type MethodPrioritizer interface {
	MethodPriorities() map[string]Priority
}

// ListenerProvider exposes listeners directly.
type ListenerProvider interface {
	Listeners() []*Listener
}

// DefaultDiscoveryStrategies returns the strategies buses use by default, in
// order: tagged fields, methods, providers.
func DefaultDiscoveryStrategies() []DiscoveryStrategy {
	return []DiscoveryStrategy{FieldStrategy(), MethodStrategy(), ProviderStrategy()}
}

// FieldStrategy discovers *Listener fields tagged `alpine:"subscribe"`.
// The subscriber must be a pointer to a struct. With parent discovery,
// embedded structs are scanned too.
func FieldStrategy() DiscoveryStrategy {
	return DiscoveryFunc(findFieldListeners)
}

// MethodStrategy discovers methods named by MethodSubscriber.
func MethodStrategy() DiscoveryStrategy {
	return DiscoveryFunc(findMethodListeners)
}

// ProviderStrategy collects listeners from ListenerProvider.
func ProviderStrategy() DiscoveryStrategy {
	return DiscoveryFunc(findProvidedListeners)
}

func findFieldListeners(subscriber any, parentDiscovery bool) ([]*Listener, error) {
	v := reflect.ValueOf(subscriber)
	if v.Kind() != reflect.Pointer || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return nil, nil
	}
	var out []*Listener
	err := scanFields(subscriber, v.Elem(), "", parentDiscovery, &out)
	return out, err
}

func scanFields(subscriber any, v reflect.Value, prefix string, parentDiscovery bool, out *[]*Listener) error {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		fv := v.Field(i)
		name := prefix + f.Name

		tag, tagged := f.Tag.Lookup(tagKey)
		if tagged && tag == TagSubscribe {
			if f.Type != listenerPtrType {
				return &InvalidSubscriberError{
					Subscriber: typeName(subscriber),
					Member:     name,
					Reason:     fmt.Sprintf("tagged field has type %v, want *alpine.Listener", f.Type),
				}
			}
			l := readField(fv).Interface().(*Listener)
			if l == nil {
				return &InvalidSubscriberError{
					Subscriber: typeName(subscriber),
					Member:     name,
					Reason:     "tagged field is nil",
				}
			}
			*out = append(*out, l.withName(typeName(subscriber)+"."+name))
			continue
		}

		if !parentDiscovery || !f.Anonymous {
			continue
		}
		switch {
		case f.Type.Kind() == reflect.Struct:
			if err := scanFields(subscriber, fv, name+".", parentDiscovery, out); err != nil {
				return err
			}
		case f.Type.Kind() == reflect.Pointer && f.Type.Elem().Kind() == reflect.Struct && !fv.IsNil():
			if err := scanFields(subscriber, fv.Elem(), name+".", parentDiscovery, out); err != nil {
				return err
			}
		}
	}
	return nil
}

// readField returns a readable copy of an addressable field, exported or not.
func readField(fv reflect.Value) reflect.Value {
	if fv.CanInterface() {
		return fv
	}
	return reflect.NewAt(fv.Type(), unsafe.Pointer(fv.UnsafeAddr())).Elem()
}

func findMethodListeners(subscriber any, _ bool) ([]*Listener, error) {
	ms, ok := subscriber.(MethodSubscriber)
	if !ok {
		return nil, nil
	}
	var priorities map[string]Priority
	if mp, ok := subscriber.(MethodPrioritizer); ok {
		priorities = mp.MethodPriorities()
	}

	v := reflect.ValueOf(subscriber)
	var out []*Listener
	for _, name := range ms.SubscribedMethods() {
		m := v.MethodByName(name)
		if !m.IsValid() {
			return nil, &InvalidSubscriberError{
				Subscriber: typeName(subscriber),
				Member:     name,
				Reason:     "no such exported method",
			}
		}
		param, invoke, reason := funcInvoker(m, false)
		if reason != "" {
			return nil, &InvalidSubscriberError{
				Subscriber: typeName(subscriber),
				Member:     name,
				Reason:     "method " + reason,
			}
		}
		opts := []ListenerOption{WithName(typeName(subscriber) + "." + name)}
		if p, ok := priorities[name]; ok {
			opts = append(opts, WithPriority(p))
		}
		out = append(out, newListener(param, invoke, opts))
	}
	return out, nil
}

func findProvidedListeners(subscriber any, _ bool) ([]*Listener, error) {
	lp, ok := subscriber.(ListenerProvider)
	if !ok {
		return nil, nil
	}
	ls := lp.Listeners()
	out := make([]*Listener, 0, len(ls))
	for i, l := range ls {
		if l == nil {
			return nil, &InvalidSubscriberError{
				Subscriber: typeName(subscriber),
				Member:     fmt.Sprintf("Listeners()[%d]", i),
				Reason:     "listener is nil",
			}
		}
		out = append(out, l.withName(fmt.Sprintf("%s.Listeners()[%d]", typeName(subscriber), i)))
	}
	return out, nil
}
