package alpine

import "sync/atomic"

// Cancellable is implemented by events that can stop their own dispatch.
// Once IsCancelled reports true during a post, no further listener is invoked
// for that post, including listeners on parent buses.
//
// Cancellation is only observable through shared values, so cancellable
// events should be posted by pointer.
type Cancellable interface {
	IsCancelled() bool
}

// Cancellation is an embeddable cancellation flag.
//
//	type Shutdown struct {
//	    alpine.Cancellation
//	    Reason string
//	}
//
//	bus.Post(ctx, &Shutdown{Reason: "maintenance"})
type Cancellation struct {
	cancelled atomic.Bool
}

// Cancel marks the event as cancelled.
func (c *Cancellation) Cancel() {
	c.cancelled.Store(true)
}

// IsCancelled reports whether Cancel has been called.
func (c *Cancellation) IsCancelled() bool {
	return c.cancelled.Load()
}

// Phase tells listeners at which point of an operation an event was posted.
type Phase int

const (
	// PhaseUnset is the zero Phase.
	PhaseUnset Phase = iota
	// PhasePre is posted before the operation happens.
	PhasePre
	// PhaseOn is posted while the operation happens.
	PhaseOn
	// PhasePost is posted after the operation happened.
	PhasePost
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhasePre:
		return "pre"
	case PhaseOn:
		return "on"
	case PhasePost:
		return "post"
	default:
		return "unset"
	}
}

// Direction tells listeners whether an event describes something received
// or something sent.
type Direction int

const (
	// DirectionUnset is the zero Direction.
	DirectionUnset Direction = iota
	// DirectionIncoming marks an incoming event.
	DirectionIncoming
	// DirectionOutgoing marks an outgoing event.
	DirectionOutgoing
)

// String returns a human readable direction.
func (d Direction) String() string {
	switch d {
	case DirectionIncoming:
		return "Incoming Event"
	case DirectionOutgoing:
		return "Outgoing Event"
	default:
		return "unset"
	}
}

// Base is an embeddable event base carrying a cancellation flag, a phase and
// a direction. Embedding it is optional; any value can be posted.
type Base struct {
	Cancellation
	Phase     Phase
	Direction Direction
}

// IsPre reports whether the event was posted in PhasePre.
func (b *Base) IsPre() bool { return b.Phase == PhasePre }

// IsOn reports whether the event was posted in PhaseOn.
func (b *Base) IsOn() bool { return b.Phase == PhaseOn }

// IsPost reports whether the event was posted in PhasePost.
func (b *Base) IsPost() bool { return b.Phase == PhasePost }

// IsIncoming reports whether the event is incoming.
func (b *Base) IsIncoming() bool { return b.Direction == DirectionIncoming }

// IsOutgoing reports whether the event is outgoing.
func (b *Base) IsOutgoing() bool { return b.Direction == DirectionOutgoing }

// isCancelled reports whether ev is a cancelled Cancellable.
func isCancelled(ev any) bool {
	c, ok := ev.(Cancellable)
	return ok && c.IsCancelled()
}

var _ Cancellable = (*Cancellation)(nil)
var _ Cancellable = (*Base)(nil)
