// Package linker implements the host linker (C5): the uniform
// (in_ptr, in_len, out_ptr, out_cap) -> out_len calling convention used
// by every function crossing the host/guest boundary, built on top of
// the engine package's generic Linker[T] and the cgrf/wit packages for
// typed host functions.
package linker

import (
	"context"

	"github.com/colinrozzi/composite/cgrf"
	"github.com/colinrozzi/composite/engine"
	"github.com/colinrozzi/composite/wit"
)

// Default buffer layout honored by the runtime façade when it
// initiates a call. A host function registered through this package
// does not need these constants itself: the caller of a call always
// supplies its own out_ptr/out_cap, per the calling convention's
// caller-provides-output-buffer rule.
const (
	InputBufferOffset    = 0
	InputBufferCapacity  = 16 * 1024
	OutputBufferOffset   = InputBufferOffset + InputBufferCapacity
	OutputBufferCapacity = 32 * 1024
	HeapStart            = 0xC000
)

// negOne is -1 re-encoded the way the i32 calling convention returns
// it: the low 32 bits of the uint64 result slot, sign-extended as
// WebAssembly's i32 always is when read back as a Go uint32.
const negOne = uint64(0xFFFFFFFF)

// HostFn is either a Raw or a Typed host function registration.
type HostFn[T any] interface {
	isHostFn()
}

// Raw is a host function operating directly on the raw calling
// convention integers, for primitives that don't decode/encode a CGRF
// value at all. The built-in host.log and host.alloc imports do not use
// it: their signatures differ from the uniform convention, so they are
// registered through DefineRawFunction.
type Raw[T any] struct {
	Func func(ctx context.Context, caller *engine.Caller[T], inPtr, inLen, outPtr, outCap uint32) int32
}

func (Raw[T]) isHostFn() {}

// Typed is a host function declared against WIT+ input/output types.
// The linker decodes the input region as Input (if non-nil), calls
// Func with the decoded Value, and encodes whatever Func returns into
// the output region, handling -1 on any decode/encode/capacity
// failure so Func itself only ever deals in Values.
type Typed[T any] struct {
	Input  wit.Type
	Output wit.Type
	Limits cgrf.Limits
	Func   func(ctx context.Context, caller *engine.Caller[T], in cgrf.Value, hasInput bool) (out cgrf.Value, hasOutput bool, err error)
}

func (Typed[T]) isHostFn() {}

// HostFunctionProvider registers a known, fixed set of host functions
// into a HostLinker. Providers are composable and order-independent:
// registering the same (interface, name) pair twice replaces the
// earlier registration.
type HostFunctionProvider[T any] interface {
	RegisterHostFunctions(l *HostLinker[T])
}

// HostLinker is the host-side entry point for registering WIT+-level
// host functions and instantiating a guest module against them.
type HostLinker[T any] struct {
	inner *engine.Linker[T]
}

// NewHostLinker returns a HostLinker that will register host
// functions against e and thread store as their shared host state.
func NewHostLinker[T any](e engine.Engine, store *engine.Store[T]) *HostLinker[T] {
	return &HostLinker[T]{inner: engine.NewLinker[T](e, store)}
}

// Interface begins registering functions under the named interface
// (the host module name every function in the returned builder is
// exported under).
func (l *HostLinker[T]) Interface(name string) *InterfaceBuilder[T] {
	return &InterfaceBuilder[T]{linker: l, iface: name}
}

// Provide registers every host function p declares. Returns l so
// providers can be chained.
func (l *HostLinker[T]) Provide(p HostFunctionProvider[T]) *HostLinker[T] {
	p.RegisterHostFunctions(l)
	return l
}

// Instantiate instantiates mod against every host function registered
// so far.
func (l *HostLinker[T]) Instantiate(ctx context.Context, mod engine.Module) (engine.Instance, error) {
	return l.inner.Instantiate(ctx, mod)
}

// DefineRawFunction registers a host function with an arbitrary
// signature, bypassing the uniform calling convention entirely. This
// is for the built-in host.log/host.alloc guest imports, whose
// signatures are fixed by the guest ABI (§6) rather than by the
// interface calling convention every WIT+-declared function uses.
func (l *HostLinker[T]) DefineRawFunction(moduleName, funcName string, params, results []engine.ValueType, fn engine.HostFn[T]) {
	l.inner.DefineFunction(moduleName, funcName, params, results, fn)
}

func (l *HostLinker[T]) define(iface, name string, fn HostFn[T]) {
	params := []engine.ValueType{engine.ValueTypeI32, engine.ValueTypeI32, engine.ValueTypeI32, engine.ValueTypeI32}
	results := []engine.ValueType{engine.ValueTypeI32}

	switch f := fn.(type) {
	case Raw[T]:
		l.inner.DefineFunction(iface, name, params, results, func(ctx context.Context, caller *engine.Caller[T], args []uint64) []uint64 {
			inPtr, inLen, outPtr, outCap := toU32s4(args)
			result := f.Func(ctx, caller, inPtr, inLen, outPtr, outCap)
			return []uint64{uint64(uint32(result))}
		})

	case Typed[T]:
		l.inner.DefineFunction(iface, name, params, results, func(ctx context.Context, caller *engine.Caller[T], args []uint64) []uint64 {
			inPtr, inLen, outPtr, outCap := toU32s4(args)

			var inVal cgrf.Value
			hasInput := f.Input != nil
			if hasInput {
				buf, ok := caller.Memory().Read(ctx, inPtr, inLen)
				if !ok {
					return []uint64{negOne}
				}
				v, err := cgrf.Decode(buf, f.Input, f.Limits)
				if err != nil {
					return []uint64{negOne}
				}
				inVal = v
			}

			outVal, hasOutput, err := f.Func(ctx, caller, inVal, hasInput)
			if err != nil {
				return []uint64{negOne}
			}
			if !hasOutput {
				return []uint64{0}
			}

			encoded, err := cgrf.Encode(outVal, f.Output, f.Limits)
			if err != nil {
				return []uint64{negOne}
			}
			if uint32(len(encoded)) > outCap {
				return []uint64{negOne}
			}
			if !caller.Memory().Write(ctx, outPtr, encoded) {
				return []uint64{negOne}
			}
			return []uint64{uint64(len(encoded))}
		})
	}
}

func toU32s4(args []uint64) (a, b, c, d uint32) {
	return uint32(args[0]), uint32(args[1]), uint32(args[2]), uint32(args[3])
}

// InterfaceBuilder registers host functions under one fixed interface
// (host module) name.
type InterfaceBuilder[T any] struct {
	linker *HostLinker[T]
	iface  string
}

// Func registers fn as iface.name. Returns the builder so calls chain.
func (b *InterfaceBuilder[T]) Func(name string, fn HostFn[T]) *InterfaceBuilder[T] {
	b.linker.define(b.iface, name, fn)
	return b
}
