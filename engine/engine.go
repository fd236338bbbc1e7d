// Package engine abstracts the core-wasm runtime the rest of Composite
// runs on, so nothing above this package depends on a specific
// interpreter or compiler. The minimum surface it exposes is: compile
// bytes into a Module, instantiate a Module (with host functions
// registered through a Linker) into an Instance, call an exported
// function with integer arguments, and read/write a byte range of
// linear memory. engine/wazero supplies the one concrete
// implementation, built on wazero; any other core-wasm engine could
// supply another without anything above this package noticing.
package engine

import "context"

// ValueType is a WebAssembly 1.0 numeric type, using the same byte
// encoding as the underlying engine's value types so it can be passed
// straight through without translation.
type ValueType byte

const (
	ValueTypeI32 ValueType = 0x7f
	ValueTypeI64 ValueType = 0x7e
	ValueTypeF32 ValueType = 0x7d
	ValueTypeF64 ValueType = 0x7c
)

// Module is a compiled, not-yet-instantiated core-wasm module.
type Module interface {
	// Name is the name the module was compiled with, used as the
	// default import/export module name.
	Name() string
}

// Function is an exported function of an instantiated Module.
type Function interface {
	// Call invokes the function with integer-encoded arguments and
	// returns its integer-encoded results.
	Call(ctx context.Context, params ...uint64) ([]uint64, error)
}

// Memory is restricted access to an instance's linear memory.
type Memory interface {
	Size(ctx context.Context) uint32
	Read(ctx context.Context, offset, byteCount uint32) ([]byte, bool)
	Write(ctx context.Context, offset uint32, data []byte) bool
}

// Instance is an instantiated Module: its exported functions and its
// default memory.
type Instance interface {
	Name() string
	ExportedFunction(name string) (Function, bool)
	Memory() Memory
	Close(ctx context.Context) error
}

// HostFunction is an engine-agnostic host function registration: a
// Go closure called with the calling Instance (so it can read/write
// that instance's memory) and the raw integer argument stack.
// HostFunc mutates params in place to return results, mirroring the
// in-place stack convention the concrete wazero adapter is built on.
type HostFunction struct {
	ModuleName string
	FuncName   string
	Params     []ValueType
	Results    []ValueType
	HostFunc   func(ctx context.Context, caller Instance, stack []uint64)
}

// Engine compiles and instantiates core-wasm modules.
type Engine interface {
	// Compile parses and validates wasmBytes into a Module.
	Compile(ctx context.Context, wasmBytes []byte) (Module, error)

	// Instantiate instantiates mod, first registering hostFuncs as
	// importable host modules. Imports of mod not satisfied by
	// hostFuncs are left for the engine to resolve however it
	// resolves unsatisfied imports (typically: instantiation fails).
	Instantiate(ctx context.Context, mod Module, hostFuncs []HostFunction) (Instance, error)

	// Close releases every resource the engine holds, including every
	// Module it compiled and Instance it instantiated.
	Close(ctx context.Context) error
}
