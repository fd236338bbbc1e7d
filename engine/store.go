package engine

// Store holds the host-defined state T carried across every host
// function call made against one instance, the same role wasmtime and
// wazero's embedder-state parameter play. It is deliberately a plain
// struct rather than an engine-provided handle: nothing about it is
// engine-specific, so Linker[T] and Caller[T] can depend on it without
// the Engine interface ever needing a generic method (Go methods
// cannot themselves be generic).
type Store[T any] struct {
	data T
}

// NewStore returns a Store seeded with data.
func NewStore[T any](data T) *Store[T] {
	return &Store[T]{data: data}
}

// Data returns the store's current host state.
func (s *Store[T]) Data() T { return s.data }

// SetData replaces the store's host state.
func (s *Store[T]) SetData(data T) { s.data = data }

// Caller is the view a host function body receives of the instance
// that invoked it and the store that instance shares its host state
// through. It exists because Engine.HostFunction is necessarily
// non-generic (interfaces can't carry generic methods), so Linker[T]
// closes over a *Store[T] and reconstructs a typed Caller[T] at each
// call using the Instance the engine passes in at invocation time.
type Caller[T any] struct {
	store    *Store[T]
	instance Instance
}

// Data returns the calling instance's shared host state.
func (c *Caller[T]) Data() T { return c.store.Data() }

// Memory returns the calling instance's default linear memory.
func (c *Caller[T]) Memory() Memory { return c.instance.Memory() }

// Instance returns the instance that invoked the host function.
func (c *Caller[T]) Instance() Instance { return c.instance }
