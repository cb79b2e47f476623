package alpine

import (
	"reflect"
	"slices"
	"sync"
)

// registry tracks which records each subscriber owns and applies
// subscriptions to the index.
type registry struct {
	mu     sync.Mutex
	owners map[any][]*record
	seq    uint64
	index  *typeIndex
}

func newRegistry(index *typeIndex) *registry {
	return &registry{
		owners: make(map[any][]*record),
		index:  index,
	}
}

// add registers listeners for owner. The listeners must already be valid.
func (r *registry) add(owner any, listeners []*Listener) []*record {
	r.mu.Lock()
	defer r.mu.Unlock()

	recs := make([]*record, 0, len(listeners))
	for _, l := range listeners {
		r.seq++
		recs = append(recs, newRecord(l, owner, r.seq))
	}
	r.owners[owner] = append(r.owners[owner], recs...)
	r.index.insert(recs)
	return recs
}

// remove unregisters every record owned by owner and returns how many were
// removed.
func (r *registry) remove(owner any) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	recs, ok := r.owners[owner]
	if !ok {
		return 0
	}
	delete(r.owners, owner)
	r.index.remove(recs)
	return len(recs)
}

func (r *registry) contains(owner any) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.owners[owner]
	return ok
}

func (r *registry) count() int {
	return r.index.load().size
}

// listeners returns records keyed by t in dispatch order, or every record
// when t is nil.
func (r *registry) listeners(t reflect.Type) []ListenerInfo {
	snap := r.index.load()
	var recs []*record
	if t != nil {
		recs = snap.exact(t)
	} else {
		for _, rs := range snap.byType {
			recs = append(recs, rs...)
		}
		slices.SortFunc(recs, func(a, b *record) int {
			switch {
			case a.before(b):
				return -1
			case b.before(a):
				return 1
			}
			return 0
		})
	}
	out := make([]ListenerInfo, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.info())
	}
	return out
}
