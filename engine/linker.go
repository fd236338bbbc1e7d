package engine

import "context"

// HostFn is a single host function registered against a Linker[T]: a
// Go closure given a typed Caller[T] and the function's raw i32
// arguments, returning raw i32 results.
type HostFn[T any] func(ctx context.Context, caller *Caller[T], params []uint64) []uint64

// Linker registers host functions by (module name, function name)
// against an Engine and instantiates a Module against them, closing
// the generic/non-generic gap between the Store[T]-typed host state
// callers want and the Engine interface's necessarily untyped
// HostFunction slice.
type Linker[T any] struct {
	engine Engine
	store  *Store[T]
	funcs  []HostFunction
}

// NewLinker returns a Linker bound to store, ready to register host
// functions against e.
func NewLinker[T any](e Engine, store *Store[T]) *Linker[T] {
	return &Linker[T]{engine: e, store: store}
}

// DefineFunction registers fn as moduleName.funcName. Re-registering
// the same (moduleName, funcName) pair replaces the earlier
// registration silently, matching the "providers are composable and
// order-independent" guarantee one level up in the host linker: the
// last provider to register a given name wins.
func (l *Linker[T]) DefineFunction(moduleName, funcName string, params, results []ValueType, fn HostFn[T]) {
	for i, existing := range l.funcs {
		if existing.ModuleName == moduleName && existing.FuncName == funcName {
			l.funcs[i] = l.toHostFunction(moduleName, funcName, params, results, fn)
			return
		}
	}
	l.funcs = append(l.funcs, l.toHostFunction(moduleName, funcName, params, results, fn))
}

func (l *Linker[T]) toHostFunction(moduleName, funcName string, params, results []ValueType, fn HostFn[T]) HostFunction {
	return HostFunction{
		ModuleName: moduleName,
		FuncName:   funcName,
		Params:     params,
		Results:    results,
		HostFunc: func(ctx context.Context, caller Instance, stack []uint64) {
			out := fn(ctx, &Caller[T]{store: l.store, instance: caller}, stack)
			copy(stack, out)
		},
	}
}

// Instantiate instantiates mod against every host function registered
// so far.
func (l *Linker[T]) Instantiate(ctx context.Context, mod Module) (Instance, error) {
	return l.engine.Instantiate(ctx, mod, l.funcs)
}
