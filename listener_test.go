package alpine

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
)

func TestNewListener(t *testing.T) {
	t.Run("infers event type", func(t *testing.T) {
		l := NewListener(func(ctx context.Context, e *testEvent) error { return nil })
		if err := l.Err(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if l.EventType() != reflect.TypeFor[*testEvent]() {
			t.Errorf("expected *testEvent, got %v", l.EventType())
		}
		if l.Priority() != PriorityDefault {
			t.Errorf("expected default priority, got %v", l.Priority())
		}
		if l.Name() != "" {
			t.Errorf("expected empty name, got %q", l.Name())
		}
	})

	t.Run("options", func(t *testing.T) {
		l := Listen(func(e text) {}, WithPriority(PriorityHighest), WithName("texts"))
		if l.Priority() != PriorityHighest || l.Name() != "texts" {
			t.Errorf("unexpected listener: priority=%v name=%q", l.Priority(), l.Name())
		}
		if l.EventType() != reflect.TypeFor[text]() {
			t.Errorf("expected text, got %v", l.EventType())
		}
	})

	t.Run("nil options ignored", func(t *testing.T) {
		l := Listen(func(e text) {}, nil)
		if err := l.Err(); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestListenerConfigurationErrors(t *testing.T) {
	tests := []struct {
		name     string
		listener *Listener
		reason   string
	}{
		{
			name:     "nil callback",
			listener: NewListener[*testEvent](nil),
			reason:   "callback is nil",
		},
		{
			name:     "nil listen callback",
			listener: Listen[text](nil),
			reason:   "callback is nil",
		},
		{
			name:     "nil explicit type",
			listener: Listen(func(s fmt.Stringer) {}, WithEventType(nil)),
			reason:   "explicit event type is nil",
		},
		{
			name:     "widening explicit type",
			listener: Listen(func(s fmt.Stringer) {}, WithEventType(reflect.TypeFor[int]())),
			reason:   "not assignable",
		},
		{
			name:     "filter for unrelated type",
			listener: Listen(func(e *testEvent) {}, WithFilter(func(s string) bool { return true })),
			reason:   "filter accepts string",
		},
		{
			name:     "nil filter",
			listener: Listen(func(e *testEvent) {}, WithFilter[*testEvent](nil)),
			reason:   "filter is nil",
		},
		{
			name:     "nil limiter",
			listener: Listen(func(e *testEvent) {}, WithLimiter(nil)),
			reason:   "limiter is nil",
		},
		{
			name:     "not a function",
			listener: NewListenerFunc("listener"),
			reason:   "not a function",
		},
		{
			name:     "no parameters",
			listener: NewListenerFunc(func() {}),
			reason:   "one event parameter",
		},
		{
			name:     "too many parameters",
			listener: NewListenerFunc(func(a, b int) {}),
			reason:   "one event parameter",
		},
		{
			name:     "wrong result",
			listener: NewListenerFunc(func(a int) int { return a }),
			reason:   "must return nothing or error",
		},
		{
			name:     "variadic",
			listener: NewListenerFunc(func(a ...int) {}),
			reason:   "variadic",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.listener.Err()
			if !errors.Is(err, ErrConfiguration) {
				t.Fatalf("expected ErrConfiguration, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.reason) {
				t.Errorf("expected %q in %q", tt.reason, err.Error())
			}
		})
	}
}

func TestListenerNarrowing(t *testing.T) {
	ctx := context.Background()

	t.Run("explicit type narrows interface callback", func(t *testing.T) {
		var got []string
		l := Listen(func(s fmt.Stringer) { got = append(got, s.String()) },
			WithEventType(reflect.TypeFor[text]()))
		if err := l.Err(); err != nil {
			t.Fatal(err)
		}
		if l.EventType() != reflect.TypeFor[text]() {
			t.Errorf("expected text, got %v", l.EventType())
		}

		b := TestBus()
		mustSubscribe(t, b, l)
		if err := b.Post(ctx, text("abc")); err != nil {
			t.Fatal(err)
		}
		if len(got) != 1 || got[0] != "abc" {
			t.Errorf("expected [abc], got %v", got)
		}
	})

	t.Run("filter on supertype", func(t *testing.T) {
		l := Listen(func(e text) {}, WithFilter(func(s fmt.Stringer) bool { return true }))
		if err := l.Err(); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("filter checked against explicit type", func(t *testing.T) {
		l := Listen(func(s fmt.Stringer) {},
			WithEventType(reflect.TypeFor[text]()),
			WithFilter(func(v text) bool { return v.Len() > 0 }))
		if err := l.Err(); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestNewListenerFunc(t *testing.T) {
	ctx := context.Background()

	t.Run("event only", func(t *testing.T) {
		var got *testEvent
		l := NewListenerFunc(func(e *testEvent) { got = e })
		if l.EventType() != reflect.TypeFor[*testEvent]() {
			t.Fatalf("expected *testEvent, got %v", l.EventType())
		}

		b := TestBus()
		mustSubscribe(t, b, l)
		ev := &testEvent{Value: "x"}
		if err := b.Post(ctx, ev); err != nil {
			t.Fatal(err)
		}
		if got != ev {
			t.Error("expected posted event")
		}
	})

	t.Run("context and error", func(t *testing.T) {
		l := NewListenerFunc(func(ctx context.Context, e text) error {
			if ContextEventID(ctx) == "" {
				return errors.New("missing event id")
			}
			return errBoom
		})

		b := TestBus()
		mustSubscribe(t, b, l)
		if err := b.Post(ctx, text("abc")); !errors.Is(err, errBoom) {
			t.Errorf("expected errBoom, got %v", err)
		}
	})

	t.Run("nil error result", func(t *testing.T) {
		l := NewListenerFunc(func(e text) error { return nil })
		b := TestBus()
		mustSubscribe(t, b, l)
		if err := b.Post(ctx, text("abc")); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("nil function", func(t *testing.T) {
		var fn func(text)
		if err := NewListenerFunc(fn).Err(); !errors.Is(err, ErrConfiguration) {
			t.Errorf("expected ErrConfiguration, got %v", err)
		}
		if err := NewListenerFunc(nil).Err(); !errors.Is(err, ErrConfiguration) {
			t.Errorf("expected ErrConfiguration, got %v", err)
		}
	})
}

func TestRecordOrder(t *testing.T) {
	a := &record{priority: PriorityHigh, seq: 5}
	b := &record{priority: PriorityDefault, seq: 1}
	c := &record{priority: PriorityDefault, seq: 2}

	if !a.before(b) || b.before(a) {
		t.Error("expected lower priority value first")
	}
	if !b.before(c) || c.before(b) {
		t.Error("expected registration order for equal priority")
	}
	if b.before(b) {
		t.Error("expected before to be irreflexive")
	}
}

func TestPriorityString(t *testing.T) {
	tests := map[Priority]string{
		PriorityHighest: "highest",
		PriorityHigh:    "high",
		PriorityDefault: "default",
		PriorityLow:     "low",
		PriorityLowest:  "lowest",
		Priority(7):     "7",
	}
	for p, want := range tests {
		if got := p.String(); got != want {
			t.Errorf("expected %s, got %s", want, got)
		}
	}
}
