package core

import (
	"strings"
	"testing"
)

type greeter struct {
	prefix string
}

type shouter struct {
	g *greeter
}

func TestContainerBindResolve(t *testing.T) {
	c := NewContainer()

	if err := Bind(c, func(*Container) (*greeter, error) {
		return &greeter{prefix: "hello"}, nil
	}); err != nil {
		t.Fatal(err)
	}

	g, err := Resolve[*greeter](c)
	if err != nil {
		t.Fatal(err)
	}
	if g.prefix != "hello" {
		t.Errorf("prefix = %q", g.prefix)
	}
}

func TestContainerProvidersCompose(t *testing.T) {
	c := NewContainer()
	_ = Bind(c, func(*Container) (*greeter, error) {
		return &greeter{prefix: "hi"}, nil
	})
	_ = Bind(c, func(c *Container) (*shouter, error) {
		g, err := Resolve[*greeter](c)
		if err != nil {
			return nil, err
		}
		return &shouter{g: g}, nil
	})

	s := MustResolve[*shouter](c)
	if s.g == nil || s.g.prefix != "hi" {
		t.Errorf("composed service = %+v", s)
	}
}

func TestContainerBindIsTransient(t *testing.T) {
	c := NewContainer()
	calls := 0
	_ = Bind(c, func(*Container) (*greeter, error) {
		calls++
		return &greeter{prefix: "hi"}, nil
	})

	first := MustResolve[*greeter](c)
	second := MustResolve[*greeter](c)
	if first == second {
		t.Errorf("transient binding returned the same instance twice")
	}
	if calls != 2 {
		t.Errorf("provider ran %d times, want 2", calls)
	}
}

func TestContainerShareMemoizes(t *testing.T) {
	c := NewContainer()
	calls := 0
	_ = Share(c, func(*Container) (*greeter, error) {
		calls++
		return &greeter{prefix: "hi"}, nil
	})

	first := MustResolve[*greeter](c)
	second := MustResolve[*greeter](c)
	if first != second {
		t.Errorf("shared binding returned distinct instances")
	}
	if calls != 1 {
		t.Errorf("provider ran %d times, want 1", calls)
	}
}

func TestContainerInstance(t *testing.T) {
	c := NewContainer()
	g := &greeter{prefix: "hey"}
	if err := Instance(c, g); err != nil {
		t.Fatal(err)
	}

	if got := MustResolve[*greeter](c); got != g {
		t.Errorf("resolved %p, want the bound value %p", got, g)
	}
}

func TestContainerDuplicateBind(t *testing.T) {
	c := NewContainer()
	provider := func(*Container) (*greeter, error) { return &greeter{}, nil }

	if err := Bind(c, provider); err != nil {
		t.Fatal(err)
	}
	err := Bind(c, provider)
	if err == nil || !strings.Contains(err.Error(), "already bound") {
		t.Errorf("duplicate bind err = %v", err)
	}
}

func TestContainerUnboundResolve(t *testing.T) {
	c := NewContainer()
	if _, err := Resolve[*shouter](c); err == nil {
		t.Errorf("resolving an unbound type should fail")
	}
}
