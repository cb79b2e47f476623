package alpine

import (
	"errors"
	"fmt"
)

// Sentinel errors. Use errors.Is to match them; the typed errors below
// wrap these so callers can branch on the category without a type switch.
//
// Example usage:
//
//	if err := bus.Subscribe(app); err != nil {
//	    if errors.Is(err, alpine.ErrInvalidSubscriber) {
//	        // a member marked for subscription has the wrong shape
//	    }
//	}
var (
	// ErrConfiguration indicates a malformed listener or bus configuration.
	ErrConfiguration = errors.New("configuration error")

	// ErrInvalidSubscriber indicates a marked member on a subscriber does not
	// have an accepted shape.
	ErrInvalidSubscriber = errors.New("invalid subscriber")

	// ErrListenerInvocation indicates a listener returned an error or panicked
	// while an event was being posted.
	ErrListenerInvocation = errors.New("listener invocation failed")

	// ErrNilEvent is returned when Post is called with a nil event.
	ErrNilEvent = errors.New("event is nil")

	// ErrNilSubscriber is returned when Subscribe is called with nil.
	ErrNilSubscriber = errors.New("subscriber is nil")
)

// ConfigurationError reports a listener that cannot be registered, such as
// one whose event type cannot be determined or whose filter is unusable.
// It is always raised synchronously by the call that registers the listener.
type ConfigurationError struct {
	Listener string
	Reason   string
	Err      error
}

func (e *ConfigurationError) Error() string {
	msg := "configuration error"
	if e.Listener != "" {
		msg += " in listener " + e.Listener
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// Is allows errors.Is to match ConfigurationError with ErrConfiguration.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// InvalidSubscriberError reports a member marked for subscription that does
// not match an accepted listener shape. When Subscribe returns it, nothing
// from the subscriber has been registered.
type InvalidSubscriberError struct {
	Subscriber string
	Member     string
	Reason     string
	Err        error
}

func (e *InvalidSubscriberError) Error() string {
	msg := fmt.Sprintf("invalid subscriber %s", e.Subscriber)
	if e.Member != "" {
		msg += fmt.Sprintf(": member %q", e.Member)
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *InvalidSubscriberError) Unwrap() error {
	return e.Err
}

// Is allows errors.Is to match InvalidSubscriberError with ErrInvalidSubscriber.
func (e *InvalidSubscriberError) Is(target error) bool {
	return target == ErrInvalidSubscriber
}

// ListenerInvocationError reports a listener that failed during Post.
// Panics recovered by the bus are reported with Panic and Stack set.
type ListenerInvocationError struct {
	Bus       string
	EventType string
	Listener  string
	Event     any
	Err       error
	Panic     any
	Stack     string
}

func (e *ListenerInvocationError) Error() string {
	if e.Panic != nil {
		return fmt.Sprintf("listener %s on bus %q panicked handling %s: %v", e.Listener, e.Bus, e.EventType, e.Panic)
	}
	return fmt.Sprintf("listener %s on bus %q failed handling %s: %v", e.Listener, e.Bus, e.EventType, e.Err)
}

func (e *ListenerInvocationError) Unwrap() error {
	return e.Err
}

// Is allows errors.Is to match ListenerInvocationError with ErrListenerInvocation.
func (e *ListenerInvocationError) Is(target error) bool {
	return target == ErrListenerInvocation
}

// IsPanic reports whether the listener panicked rather than returning an error.
func (e *ListenerInvocationError) IsPanic() bool {
	return e.Panic != nil
}

// AsInvocationError extracts the ListenerInvocationError from err, if any.
func AsInvocationError(err error) (*ListenerInvocationError, bool) {
	var ie *ListenerInvocationError
	if errors.As(err, &ie) {
		return ie, true
	}
	return nil, false
}

func configErr(listener, reason string) *ConfigurationError {
	return &ConfigurationError{Listener: listener, Reason: reason}
}
