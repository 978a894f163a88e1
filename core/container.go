package core

import (
	"fmt"
	"reflect"
	"sync"
)

// Provider constructs a service. Providers may resolve their own
// dependencies from the container they receive.
type Provider func(*Container) (any, error)

type binding struct {
	provider Provider
	shared   bool

	once  sync.Once
	value any
	err   error
}

// Container is a thread-safe, type-keyed service registry.
//
// Transient bindings run their provider on every Resolve; shared bindings
// memoize the first result. The kernel registers framework services here
// (the session manager is bound as a shared instance) so application code
// can resolve them without globals.
type Container struct {
	mu       sync.RWMutex
	bindings map[reflect.Type]*binding
}

// NewContainer creates a new, empty service container.
func NewContainer() *Container {
	return &Container{bindings: make(map[reflect.Type]*binding)}
}

func (c *Container) register(t reflect.Type, provider Provider, shared bool) error {
	if t == nil {
		return fmt.Errorf("container: type is nil")
	}
	if provider == nil {
		return fmt.Errorf("container: provider is nil")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.bindings[t]; exists {
		return fmt.Errorf("container: %s is already bound", t)
	}
	c.bindings[t] = &binding{provider: provider, shared: shared}
	return nil
}

// Bind registers a transient provider for the given service type.
//
// If the type is already bound, Bind returns an error.
func (c *Container) Bind(t reflect.Type, provider Provider) error {
	return c.register(t, provider, false)
}

// Share registers a provider whose first result is reused for every
// subsequent Resolve.
func (c *Container) Share(t reflect.Type, provider Provider) error {
	return c.register(t, provider, true)
}

// Resolve returns a service instance for the given type.
func (c *Container) Resolve(t reflect.Type) (any, error) {
	if t == nil {
		return nil, fmt.Errorf("container: type is nil")
	}

	c.mu.RLock()
	b := c.bindings[t]
	c.mu.RUnlock()

	if b == nil {
		return nil, fmt.Errorf("container: nothing bound for %s", t)
	}
	if !b.shared {
		return b.provider(c)
	}

	b.once.Do(func() {
		b.value, b.err = b.provider(c)
	})
	return b.value, b.err
}

// MustResolve is like Resolve but panics on error.
func (c *Container) MustResolve(t reflect.Type) any {
	v, err := c.Resolve(t)
	if err != nil {
		panic(err)
	}
	return v
}

func typeKey[T any]() reflect.Type {
	var ptr *T
	return reflect.TypeOf(ptr).Elem()
}

func wrap[T any](provider func(*Container) (T, error)) Provider {
	return func(c *Container) (any, error) {
		return provider(c)
	}
}

// Bind registers a transient provider for type T.
//
// This is a package-level helper because Go does not support generic
// methods.
func Bind[T any](c *Container, provider func(*Container) (T, error)) error {
	if c == nil {
		return fmt.Errorf("container: container is nil")
	}
	if provider == nil {
		return fmt.Errorf("container: provider is nil")
	}
	return c.Bind(typeKey[T](), wrap(provider))
}

// Share registers a memoized provider for type T: the first Resolve runs
// it, later Resolves reuse the result.
func Share[T any](c *Container, provider func(*Container) (T, error)) error {
	if c == nil {
		return fmt.Errorf("container: container is nil")
	}
	if provider == nil {
		return fmt.Errorf("container: provider is nil")
	}
	return c.Share(typeKey[T](), wrap(provider))
}

// Instance binds an already-constructed value as a shared service.
func Instance[T any](c *Container, v T) error {
	return Share(c, func(*Container) (T, error) { return v, nil })
}

// Resolve returns an instance of type T by calling the registered provider.
//
// This is a package-level helper because Go does not support generic
// methods.
func Resolve[T any](c *Container) (T, error) {
	var zero T
	if c == nil {
		return zero, fmt.Errorf("container: container is nil")
	}

	key := typeKey[T]()
	v, err := c.Resolve(key)
	if err != nil {
		return zero, err
	}

	service, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("container: provider returned %T, expected %s", v, key)
	}
	return service, nil
}

// MustResolve is like Resolve but panics on error.
func MustResolve[T any](c *Container) T {
	v, err := Resolve[T](c)
	if err != nil {
		panic(err)
	}
	return v
}
