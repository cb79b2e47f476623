package monitor

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// Begin records entry as pending and returns a function that completes it.
//
// Begin fills StartedAt and, when ctx carries a valid span, TraceID and
// SpanID. Store failures are logged and never reach the caller: a failing
// journal must not fail the listener it observes.
//
// Example:
//
//	done := monitor.Begin(ctx, store, &monitor.Entry{EventID: id, BusID: bus.ID(), Order: 3}, logger)
//	err := listener(ctx, ev)
//	done(monitor.StatusFromError(err), err)
func Begin(ctx context.Context, store Store, entry *Entry, logger *slog.Logger) func(Status, error) {
	if logger == nil {
		logger = slog.Default()
	}
	entry.Status = StatusPending
	entry.StartedAt = time.Now()
	if sc := trace.SpanFromContext(ctx).SpanContext(); sc.IsValid() {
		entry.TraceID = sc.TraceID().String()
		entry.SpanID = sc.SpanID().String()
	}

	if err := store.Record(ctx, entry); err != nil {
		logger.Warn("monitor record failed", "event.id", entry.EventID, "listener", entry.Listener, "error", err)
	}

	start := time.Now()
	return func(status Status, handlerErr error) {
		if err := store.UpdateStatus(ctx, entry.EventID, entry.BusID, entry.Order, status, handlerErr, time.Since(start)); err != nil {
			logger.Warn("monitor update failed", "event.id", entry.EventID, "listener", entry.Listener, "error", err)
		}
	}
}

// Note records an entry that finished without running the listener, such as
// a filtered or skipped one.
func Note(ctx context.Context, store Store, entry *Entry, status Status, logger *slog.Logger) {
	Begin(ctx, store, entry, logger)(status, nil)
}

// StatusFromError maps a listener result to a Status.
func StatusFromError(err error) Status {
	if err != nil {
		return StatusFailed
	}
	return StatusCompleted
}
