package alpine

import (
	"reflect"
	"slices"
	"sort"
	"sync"
	"sync/atomic"
)

// typeIndex maps event types to records sorted by (priority, seq).
//
// Readers load the current snapshot without locking. Writers build a new
// snapshot and swap it in; the registry serialises writers.
type typeIndex struct {
	current atomic.Pointer[snapshot]
}

type snapshot struct {
	byType map[reflect.Type][]*record
	size   int

	// resolved targets per (event type, mode), tagged with the graph version
	cache sync.Map
}

type resolveKey struct {
	typ   reflect.Type
	super bool
}

type resolution struct {
	version uint64
	targets []target
}

// target is a record resolved for a post, with the conversion that turns the
// posted event into the record's event type. A nil convert passes the event
// through unchanged.
type target struct {
	rec     *record
	convert func(any) any
}

func newTypeIndex() *typeIndex {
	idx := &typeIndex{}
	idx.current.Store(&snapshot{byType: map[reflect.Type][]*record{}})
	return idx
}

func (idx *typeIndex) load() *snapshot {
	return idx.current.Load()
}

// insert adds records keeping each per-type slice ordered. Callers must
// serialise writes.
func (idx *typeIndex) insert(recs []*record) {
	if len(recs) == 0 {
		return
	}
	old := idx.load()
	byType := make(map[reflect.Type][]*record, len(old.byType)+1)
	for t, rs := range old.byType {
		byType[t] = rs
	}

	cloned := make(map[reflect.Type]bool)
	for _, r := range recs {
		rs := byType[r.eventType]
		if !cloned[r.eventType] {
			rs = slices.Clone(rs)
			cloned[r.eventType] = true
		}
		i := sort.Search(len(rs), func(i int) bool { return r.before(rs[i]) })
		byType[r.eventType] = slices.Insert(rs, i, r)
	}

	idx.current.Store(&snapshot{byType: byType, size: old.size + len(recs)})
}

// remove drops the given records. Callers must serialise writes.
func (idx *typeIndex) remove(recs []*record) {
	if len(recs) == 0 {
		return
	}
	drop := make(map[*record]bool, len(recs))
	for _, r := range recs {
		drop[r] = true
	}

	old := idx.load()
	byType := make(map[reflect.Type][]*record, len(old.byType))
	removed := 0
	for t, rs := range old.byType {
		kept := rs
		for _, r := range rs {
			if drop[r] {
				kept = slices.DeleteFunc(slices.Clone(rs), func(r *record) bool { return drop[r] })
				removed += len(rs) - len(kept)
				break
			}
		}
		if len(kept) > 0 {
			byType[t] = kept
		}
	}

	idx.current.Store(&snapshot{byType: byType, size: old.size - removed})
}

// exact returns the records keyed by t.
func (s *snapshot) exact(t reflect.Type) []*record {
	return s.byType[t]
}

// resolve returns the records that receive an event of type t, in dispatch
// order. In super mode the result also holds records keyed by a declared
// supertype of t or by an interface t or one of its supertypes implements.
func (s *snapshot) resolve(t reflect.Type, super bool, g *TypeGraph) []target {
	key := resolveKey{typ: t, super: super}
	var version uint64
	if super {
		version = g.Version()
	}
	if v, ok := s.cache.Load(key); ok {
		if r := v.(*resolution); r.version == version {
			return r.targets
		}
	}

	var targets []target
	if super {
		targets = s.resolveSuper(t, g)
	} else {
		for _, r := range s.byType[t] {
			targets = append(targets, target{rec: r})
		}
	}

	s.cache.Store(key, &resolution{version: version, targets: targets})
	return targets
}

func (s *snapshot) resolveSuper(t reflect.Type, g *TypeGraph) []target {
	anc := append([]ancestor{{typ: t}}, g.ancestors(t)...)

	var targets []target
	for key, rs := range s.byType {
		convert, ok := matchKey(key, anc)
		if !ok {
			continue
		}
		for _, r := range rs {
			targets = append(targets, target{rec: r, convert: convert})
		}
	}
	slices.SortFunc(targets, func(a, b target) int {
		switch {
		case a.rec.before(b.rec):
			return -1
		case b.rec.before(a.rec):
			return 1
		}
		return 0
	})
	return targets
}

// matchKey reports whether records keyed by key receive events whose type
// chain is anc, and which conversion they need. Declared types win over
// interface satisfaction; nearer types win over farther ones.
func matchKey(key reflect.Type, anc []ancestor) (func(any) any, bool) {
	for _, a := range anc {
		if a.typ == key {
			return a.convert, true
		}
	}
	if key.Kind() != reflect.Interface {
		return nil, false
	}
	for _, a := range anc {
		if a.typ.Implements(key) {
			return a.convert, true
		}
	}
	return nil, false
}
