package monitor

import (
	"time"
)

// storeOptions holds configuration for monitor stores.
type storeOptions struct {
	maxEntries int
	retention  time.Duration
	now        func() time.Time
}

// defaultStoreOptions returns the default store options.
func defaultStoreOptions() *storeOptions {
	return &storeOptions{
		now: time.Now,
	}
}

// StoreOption configures a Store.
type StoreOption func(*storeOptions)

// WithMaxEntries bounds the number of stored entries. When the bound is
// reached the oldest entry is evicted. Zero means unbounded.
//
// Example:
//
//	store := monitor.NewMemoryStore(monitor.WithMaxEntries(10_000))
func WithMaxEntries(n int) StoreOption {
	return func(o *storeOptions) {
		if n >= 0 {
			o.maxEntries = n
		}
	}
}

// WithRetention drops entries older than d whenever a new entry is
// recorded. Zero disables age based cleanup; DeleteOlderThan still works.
func WithRetention(d time.Duration) StoreOption {
	return func(o *storeOptions) {
		if d >= 0 {
			o.retention = d
		}
	}
}

// withClock replaces the time source, for tests.
func withClock(now func() time.Time) StoreOption {
	return func(o *storeOptions) {
		if now != nil {
			o.now = now
		}
	}
}
