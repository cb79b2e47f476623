package alpine

import (
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
)

// DefaultTypeGraph is the graph used by buses created without WithTypeGraph.
var DefaultTypeGraph = NewTypeGraph()

// TypeGraph records declared supertype relations between event types.
//
// Interface satisfaction is discovered automatically in super mode. A
// TypeGraph covers the relations Go cannot express on its own, such as a
// struct event that embeds another struct event. Each edge carries the
// conversion used to hand the subtype value to a supertype listener.
//
//	type Login struct{ Audit }
//
//	alpine.Extends(g, func(l *Login) *Audit { return &l.Audit })
//
// TypeGraph is safe for concurrent use.
type TypeGraph struct {
	mu      sync.RWMutex
	edges   map[reflect.Type][]typeEdge
	version atomic.Uint64
}

type typeEdge struct {
	super  reflect.Type
	upcast func(any) any
}

// ancestor is a reachable supertype with the conversion from the origin type.
type ancestor struct {
	typ     reflect.Type
	convert func(any) any
}

// NewTypeGraph creates an empty graph.
func NewTypeGraph() *TypeGraph {
	return &TypeGraph{edges: make(map[reflect.Type][]typeEdge)}
}

// Declare records that sub is a subtype of super. upcast converts a sub value
// into a super value; it may be nil when sub is assignable to super.
// Declaring an existing edge again is a no-op.
func (g *TypeGraph) Declare(sub, super reflect.Type, upcast func(any) any) error {
	switch {
	case sub == nil || super == nil:
		return configErr("", "supertype declaration with nil type")
	case sub == super:
		return configErr("", fmt.Sprintf("type %v cannot extend itself", sub))
	case upcast == nil && !sub.AssignableTo(super):
		return configErr("", fmt.Sprintf("%v is not assignable to %v and no conversion was given", sub, super))
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	for _, e := range g.edges[sub] {
		if e.super == super {
			return nil
		}
	}
	for _, a := range g.ancestorsLocked(super) {
		if a.typ == sub {
			return configErr("", fmt.Sprintf("declaring %v as supertype of %v creates a cycle", super, sub))
		}
	}

	g.edges[sub] = append(g.edges[sub], typeEdge{super: super, upcast: upcast})
	g.version.Add(1)
	return nil
}

// Extends declares Super as a supertype of Sub.
func Extends[Sub, Super any](g *TypeGraph, upcast func(Sub) Super) error {
	var fn func(any) any
	if upcast != nil {
		fn = func(v any) any { return upcast(v.(Sub)) }
	}
	return g.Declare(reflect.TypeFor[Sub](), reflect.TypeFor[Super](), fn)
}

// Supertypes returns every declared supertype of t, nearest first.
func (g *TypeGraph) Supertypes(t reflect.Type) []reflect.Type {
	g.mu.RLock()
	defer g.mu.RUnlock()

	anc := g.ancestorsLocked(t)
	out := make([]reflect.Type, 0, len(anc))
	for _, a := range anc {
		out = append(out, a.typ)
	}
	return out
}

// Version changes every time an edge is added.
func (g *TypeGraph) Version() uint64 {
	return g.version.Load()
}

func (g *TypeGraph) ancestors(t reflect.Type) []ancestor {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.ancestorsLocked(t)
}

// ancestorsLocked walks the graph breadth first. The first path that reaches
// a type supplies its conversion.
func (g *TypeGraph) ancestorsLocked(t reflect.Type) []ancestor {
	var out []ancestor
	seen := map[reflect.Type]bool{t: true}
	queue := []ancestor{{typ: t}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, e := range g.edges[cur.typ] {
			if seen[e.super] {
				continue
			}
			seen[e.super] = true
			next := ancestor{typ: e.super, convert: compose(cur.convert, e.upcast)}
			out = append(out, next)
			queue = append(queue, next)
		}
	}
	return out
}

func compose(first, then func(any) any) func(any) any {
	switch {
	case first == nil:
		return then
	case then == nil:
		return first
	}
	return func(v any) any { return then(first(v)) }
}
