// Package monitor provides a dispatch journal for alpine buses.
//
// A bus configured with alpine.WithMonitor records one Entry per listener
// per post: when the listener was started, how long it ran and whether it
// completed, failed, was filtered out or was skipped by its limiter.
//
// Example usage:
//
//	store := monitor.NewMemoryStore(monitor.WithMaxEntries(10_000))
//	defer store.Close()
//
//	bus, err := alpine.NewBus("orders", alpine.WithMonitor(store))
//
//	// Query failed invocations of the last hour
//	page, err := store.List(ctx, monitor.Filter{
//	    Status:    []monitor.Status{monitor.StatusFailed},
//	    StartTime: time.Now().Add(-time.Hour),
//	    Limit:     100,
//	})
package monitor

import (
	"strconv"
	"time"
)

// Status represents the outcome of a listener for one post.
type Status string

const (
	// StatusPending indicates the listener has started but not returned.
	StatusPending Status = "pending"

	// StatusCompleted indicates the listener returned without error.
	StatusCompleted Status = "completed"

	// StatusFailed indicates the listener returned an error or panicked.
	StatusFailed Status = "failed"

	// StatusFiltered indicates a listener filter rejected the event.
	StatusFiltered Status = "filtered"

	// StatusSkipped indicates the listener limiter refused the invocation.
	StatusSkipped Status = "skipped"
)

// Entry represents a single listener outcome for one post.
//
// (EventID, BusID, Order) is the unique key: Order is the registration
// number of the listener on its bus, and parent buses share the event ID of
// the child post.
type Entry struct {
	EventID string `json:"event_id"`
	Order   uint64 `json:"order"`

	// Listener context
	Listener  string `json:"listener"`
	EventType string `json:"event_type"`
	BusID     string `json:"bus_id"`
	BusName   string `json:"bus_name"`

	// Processing status
	Status Status `json:"status"`
	Error  string `json:"error,omitempty"`

	// Timing
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	Duration    time.Duration `json:"duration,omitempty"`

	// Tracing correlation (OpenTelemetry)
	TraceID string `json:"trace_id,omitempty"`
	SpanID  string `json:"span_id,omitempty"`
}

// IsComplete returns true if the entry is no longer pending.
func (e *Entry) IsComplete() bool {
	return e.Status != StatusPending
}

// HasError returns true if the entry has an error recorded.
func (e *Entry) HasError() bool {
	return e.Error != ""
}

// Key returns the entry's storage key.
func (e *Entry) Key() string {
	return makeKey(e.EventID, e.BusID, e.Order)
}

func makeKey(eventID, busID string, order uint64) string {
	return eventID + ":" + busID + ":" + strconv.FormatUint(order, 10)
}
