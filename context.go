package alpine

import (
	"context"
	"log/slog"
)

const (
	postContextKey contextKey = iota
)

// contextKey
type contextKey int

type postContextData struct {
	eventID  string
	bus      *Bus
	listener *record
}

// ContextEventID returns the id of the post a listener is handling.
func ContextEventID(ctx context.Context) string {
	s, ok := ctx.Value(postContextKey).(*postContextData)
	if ok {
		return s.eventID
	}
	return ""
}

// ContextBus returns the bus invoking the listener. For a listener on a
// parent bus this is the parent, not the bus the event was posted to.
func ContextBus(ctx context.Context) *Bus {
	s, ok := ctx.Value(postContextKey).(*postContextData)
	if ok {
		return s.bus
	}
	return nil
}

// ContextLogger returns the logger of the bus invoking the listener, or
// slog.Default outside a post.
func ContextLogger(ctx context.Context) *slog.Logger {
	s, ok := ctx.Value(postContextKey).(*postContextData)
	if ok && s.bus != nil {
		return s.bus.logger
	}
	return slog.Default()
}

// ContextListener describes the listener being invoked.
func ContextListener(ctx context.Context) (ListenerInfo, bool) {
	s, ok := ctx.Value(postContextKey).(*postContextData)
	if ok && s.listener != nil {
		return s.listener.info(), true
	}
	return ListenerInfo{}, false
}

func contextWithPost(ctx context.Context, eventID string, b *Bus) context.Context {
	return context.WithValue(ctx, postContextKey, &postContextData{
		eventID: eventID,
		bus:     b,
	})
}

func contextWithListener(ctx context.Context, r *record) context.Context {
	s, ok := ctx.Value(postContextKey).(*postContextData)
	if !ok {
		return ctx
	}
	return context.WithValue(ctx, postContextKey, &postContextData{
		eventID:  s.eventID,
		bus:      s.bus,
		listener: r,
	})
}
