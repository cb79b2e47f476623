package alpine

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type animal struct {
	Name string
}

type mammal struct {
	animal
	Legs int
}

type dog struct {
	mammal
	Breed string
}

func typeStrings(ts []reflect.Type) []string {
	out := make([]string, 0, len(ts))
	for _, t := range ts {
		out = append(out, t.String())
	}
	return out
}

func dogGraph(t *testing.T) *TypeGraph {
	t.Helper()
	g := NewTypeGraph()
	if err := Extends(g, func(d *dog) *mammal { return &d.mammal }); err != nil {
		t.Fatal(err)
	}
	if err := Extends(g, func(m *mammal) *animal { return &m.animal }); err != nil {
		t.Fatal(err)
	}
	return g
}

func TestTypeGraphDeclare(t *testing.T) {
	dogType := reflect.TypeFor[*dog]()
	mammalType := reflect.TypeFor[*mammal]()
	upcast := func(v any) any { return &v.(*dog).mammal }

	tests := []struct {
		name    string
		sub     reflect.Type
		super   reflect.Type
		upcast  func(any) any
		wantErr bool
	}{
		{name: "nil sub", sub: nil, super: mammalType, upcast: upcast, wantErr: true},
		{name: "nil super", sub: dogType, super: nil, upcast: upcast, wantErr: true},
		{name: "self", sub: dogType, super: dogType, upcast: upcast, wantErr: true},
		{name: "not assignable without conversion", sub: dogType, super: mammalType, wantErr: true},
		{name: "with conversion", sub: dogType, super: mammalType, upcast: upcast},
		{name: "assignable interface", sub: reflect.TypeFor[text](), super: reflect.TypeFor[fmt.Stringer]()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewTypeGraph()
			err := g.Declare(tt.sub, tt.super, tt.upcast)
			if tt.wantErr {
				if !errors.Is(err, ErrConfiguration) {
					t.Errorf("expected ErrConfiguration, got %v", err)
				}
				if g.Version() != 0 {
					t.Errorf("expected version 0 after failed declaration, got %d", g.Version())
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if g.Version() != 1 {
				t.Errorf("expected version 1, got %d", g.Version())
			}
		})
	}
}

func TestTypeGraphCycles(t *testing.T) {
	type a struct{}
	type b struct{}
	type c struct{}
	id := func(v any) any { return v }
	ta, tb, tc := reflect.TypeFor[a](), reflect.TypeFor[b](), reflect.TypeFor[c]()

	g := NewTypeGraph()
	if err := g.Declare(ta, tb, id); err != nil {
		t.Fatal(err)
	}
	if err := g.Declare(tb, tc, id); err != nil {
		t.Fatal(err)
	}

	if err := g.Declare(tc, ta, id); !errors.Is(err, ErrConfiguration) {
		t.Errorf("expected cycle to be rejected, got %v", err)
	}
	if err := g.Declare(tb, ta, id); !errors.Is(err, ErrConfiguration) {
		t.Errorf("expected cycle to be rejected, got %v", err)
	}
	if diff := cmp.Diff(typeStrings([]reflect.Type{tb, tc}), typeStrings(g.Supertypes(ta))); diff != "" {
		t.Errorf("supertypes mismatch (-want +got):\n%s", diff)
	}
}

func TestTypeGraphDuplicate(t *testing.T) {
	g := dogGraph(t)
	v := g.Version()

	if err := Extends(g, func(d *dog) *mammal { return &d.mammal }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.Version() != v {
		t.Errorf("expected version %d after duplicate declaration, got %d", v, g.Version())
	}
}

func TestTypeGraphSupertypes(t *testing.T) {
	g := dogGraph(t)

	want := []string{"*alpine.mammal", "*alpine.animal"}
	if diff := cmp.Diff(want, typeStrings(g.Supertypes(reflect.TypeFor[*dog]()))); diff != "" {
		t.Errorf("supertypes mismatch (-want +got):\n%s", diff)
	}
	if got := g.Supertypes(reflect.TypeFor[*animal]()); len(got) != 0 {
		t.Errorf("expected no supertypes, got %v", got)
	}
}

func TestTypeGraphConversion(t *testing.T) {
	ctx := context.Background()
	g := dogGraph(t)
	b := TestBus(WithSuperListeners(), WithTypeGraph(g))

	var gotAnimal *animal
	var gotMammal *mammal
	var gotDog *dog
	mustSubscribe(t, b,
		Listen(func(a *animal) { gotAnimal = a }),
		Listen(func(m *mammal) { gotMammal = m }),
		Listen(func(d *dog) { gotDog = d }),
	)

	d := &dog{mammal: mammal{animal: animal{Name: "rex"}, Legs: 4}, Breed: "collie"}
	if err := b.Post(ctx, d); err != nil {
		t.Fatal(err)
	}

	if gotDog != d {
		t.Error("expected dog listener to receive the posted value")
	}
	if gotMammal != &d.mammal {
		t.Error("expected mammal listener to receive the embedded mammal")
	}
	if gotAnimal != &d.mammal.animal {
		t.Error("expected animal listener to receive the embedded animal")
	}

	t.Run("exact mode ignores the graph", func(t *testing.T) {
		exact := TestBus(WithTypeGraph(g))
		var n int
		mustSubscribe(t, exact, Listen(func(a *animal) { n++ }))
		if err := exact.Post(ctx, d); err != nil {
			t.Fatal(err)
		}
		if n != 0 {
			t.Errorf("expected no deliveries, got %d", n)
		}
	})

	t.Run("declaration after first post", func(t *testing.T) {
		g := NewTypeGraph()
		b := TestBus(WithSuperListeners(), WithTypeGraph(g))
		var n int
		mustSubscribe(t, b, Listen(func(a *animal) { n++ }))

		if err := b.Post(ctx, &mammal{}); err != nil {
			t.Fatal(err)
		}
		if err := Extends(g, func(m *mammal) *animal { return &m.animal }); err != nil {
			t.Fatal(err)
		}
		if err := b.Post(ctx, &mammal{}); err != nil {
			t.Fatal(err)
		}
		if n != 1 {
			t.Errorf("expected 1 delivery, got %d", n)
		}
	})
}
