package monitor

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"
)

// ErrStoreClosed is returned by a closed store.
var ErrStoreClosed = errors.New("store is closed")

// MemoryStore implements Store using in-memory storage.
//
// MemoryStore is intended for tests, development and short lived journals.
// Data is lost on restart; bound it with WithMaxEntries or WithRetention.
//
// Example:
//
//	store := monitor.NewMemoryStore()
//	defer store.Close()
//
//	bus, err := alpine.NewBus("orders", alpine.WithMonitor(store))
type MemoryStore struct {
	mu      sync.RWMutex
	opts    *storeOptions
	entries map[string]*Entry // key: eventID:busID:order
	order   []string          // insertion order, may hold deleted keys
	closed  bool
}

// NewMemoryStore creates a new in-memory monitor store.
func NewMemoryStore(opts ...StoreOption) *MemoryStore {
	o := defaultStoreOptions()
	for _, opt := range opts {
		opt(o)
	}
	return &MemoryStore{
		opts:    o,
		entries: make(map[string]*Entry),
	}
}

// Record creates or replaces a monitor entry.
func (s *MemoryStore) Record(ctx context.Context, entry *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	key := entry.Key()
	if _, exists := s.entries[key]; !exists {
		s.order = append(s.order, key)
	}

	// Create a copy to avoid mutation
	entryCopy := *entry
	s.entries[key] = &entryCopy

	if s.opts.retention > 0 {
		s.deleteBeforeLocked(s.opts.now().Add(-s.opts.retention))
	}
	s.evictLocked()
	return nil
}

// evictLocked drops the oldest entries above the configured bound.
func (s *MemoryStore) evictLocked() {
	if s.opts.maxEntries <= 0 {
		return
	}
	for len(s.entries) > s.opts.maxEntries && len(s.order) > 0 {
		key := s.order[0]
		s.order = s.order[1:]
		delete(s.entries, key)
	}
}

// Get retrieves a monitor entry by event ID, bus ID and listener order.
func (s *MemoryStore) Get(ctx context.Context, eventID, busID string, order uint64) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	if entry, ok := s.entries[makeKey(eventID, busID, order)]; ok {
		c := *entry
		return &c, nil
	}
	return nil, nil
}

// GetByEventID returns all entries for an event ID ordered by start time,
// then bus and listener order.
func (s *MemoryStore) GetByEventID(ctx context.Context, eventID string) ([]*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	var entries []*Entry
	for _, entry := range s.entries {
		if entry.EventID == eventID {
			c := *entry
			entries = append(entries, &c)
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].StartedAt.Equal(entries[j].StartedAt) {
			if entries[i].BusID != entries[j].BusID {
				return entries[i].BusID < entries[j].BusID
			}
			return entries[i].Order < entries[j].Order
		}
		return entries[i].StartedAt.Before(entries[j].StartedAt)
	})
	return entries, nil
}

// cursor represents the pagination cursor state.
type cursor struct {
	StartedAt time.Time `json:"s"`
	Key       string    `json:"k"`
}

// encodeCursor encodes a cursor to a string.
func encodeCursor(c cursor) string {
	data, _ := json.Marshal(c)
	return base64.StdEncoding.EncodeToString(data)
}

// decodeCursor decodes a cursor from a string.
func decodeCursor(s string) (cursor, error) {
	var c cursor
	if s == "" {
		return c, nil
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return c, err
	}
	err = json.Unmarshal(data, &c)
	return c, err
}

// compareEntries orders entries by start time, then key.
func compareEntries(a, b *Entry) int {
	if c := a.StartedAt.Compare(b.StartedAt); c != 0 {
		return c
	}
	return strings.Compare(a.Key(), b.Key())
}

// List returns a page of entries matching the filter.
func (s *MemoryStore) List(ctx context.Context, filter Filter) (*Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	var matches []*Entry
	for _, entry := range s.entries {
		if matchesFilter(entry, filter) {
			c := *entry
			matches = append(matches, &c)
		}
	}

	slices.SortFunc(matches, func(a, b *Entry) int {
		if filter.OrderDesc {
			return compareEntries(b, a)
		}
		return compareEntries(a, b)
	})

	// Skip everything up to and including the cursor position
	if filter.Cursor != "" {
		cur, err := decodeCursor(filter.Cursor)
		if err != nil {
			return nil, fmt.Errorf("invalid cursor: %w", err)
		}
		idx := len(matches)
		for i, entry := range matches {
			c := entry.StartedAt.Compare(cur.StartedAt)
			if c == 0 {
				c = strings.Compare(entry.Key(), cur.Key)
			}
			if (!filter.OrderDesc && c > 0) || (filter.OrderDesc && c < 0) {
				idx = i
				break
			}
		}
		matches = matches[idx:]
	}

	limit := filter.EffectiveLimit()
	hasMore := len(matches) > limit
	if hasMore {
		matches = matches[:limit]
	}

	var nextCursor string
	if hasMore && len(matches) > 0 {
		last := matches[len(matches)-1]
		nextCursor = encodeCursor(cursor{StartedAt: last.StartedAt, Key: last.Key()})
	}

	return &Page{
		Entries:    matches,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

// matchesFilter checks if an entry matches the filter criteria.
func matchesFilter(entry *Entry, filter Filter) bool {
	if filter.EventID != "" && entry.EventID != filter.EventID {
		return false
	}
	if filter.Listener != "" && entry.Listener != filter.Listener {
		return false
	}
	if filter.EventType != "" && entry.EventType != filter.EventType {
		return false
	}
	if filter.BusID != "" && entry.BusID != filter.BusID {
		return false
	}
	if len(filter.Status) > 0 && !slices.Contains(filter.Status, entry.Status) {
		return false
	}
	if filter.HasError != nil && *filter.HasError != entry.HasError() {
		return false
	}
	if !filter.StartTime.IsZero() && entry.StartedAt.Before(filter.StartTime) {
		return false
	}
	if !filter.EndTime.IsZero() && !entry.StartedAt.Before(filter.EndTime) {
		return false
	}
	if filter.MinDuration > 0 && entry.Duration < filter.MinDuration {
		return false
	}
	return true
}

// Count returns the number of entries matching the filter.
func (s *MemoryStore) Count(ctx context.Context, filter Filter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, ErrStoreClosed
	}

	var count int64
	for _, entry := range s.entries {
		if matchesFilter(entry, filter) {
			count++
		}
	}
	return count, nil
}

// UpdateStatus updates the status and related fields of an existing entry.
func (s *MemoryStore) UpdateStatus(ctx context.Context, eventID, busID string, order uint64, status Status, err error, duration time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	key := makeKey(eventID, busID, order)
	entry, ok := s.entries[key]
	if !ok {
		return fmt.Errorf("entry not found: %s", key)
	}

	entry.Status = status
	if err != nil {
		entry.Error = err.Error()
	}
	entry.Duration = duration
	now := s.opts.now()
	entry.CompletedAt = &now
	return nil
}

// DeleteOlderThan removes entries older than the specified age.
func (s *MemoryStore) DeleteOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrStoreClosed
	}
	return s.deleteBeforeLocked(s.opts.now().Add(-age)), nil
}

func (s *MemoryStore) deleteBeforeLocked(cutoff time.Time) int64 {
	var deleted int64
	for key, entry := range s.entries {
		if entry.StartedAt.Before(cutoff) {
			delete(s.entries, key)
			deleted++
		}
	}
	if deleted > 0 {
		s.order = slices.DeleteFunc(s.order, func(key string) bool {
			_, ok := s.entries[key]
			return !ok
		})
	}
	return deleted
}

// Close closes the store.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.entries = nil
	s.order = nil
	return nil
}

// Len returns the number of entries in the store (for testing).
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Compile-time check that MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)
