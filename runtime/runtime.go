// Package runtime is the runtime façade (C7): it owns an engine.Engine
// and a Store, instantiates one compiled module against the built-in
// host.log/host.alloc imports plus any caller-supplied
// linker.HostFunctionProviders, and exposes CallWithValue implementing
// the §4.7 call sequence end to end.
package runtime

import (
	"context"
	"fmt"

	"github.com/colinrozzi/composite/cgrf"
	"github.com/colinrozzi/composite/engine"
	"github.com/colinrozzi/composite/linker"
	"github.com/colinrozzi/composite/wit"
)

// Default buffer layout (§4.5), used by CallWithValue for every
// host-initiated call.
const (
	InputBufferOffset    = linker.InputBufferOffset
	InputBufferCapacity  = linker.InputBufferCapacity
	OutputBufferOffset   = linker.OutputBufferOffset
	OutputBufferCapacity = linker.OutputBufferCapacity
)

// hostState is the store data threaded through every host function
// call made against one Instance: the log ring and the bump
// allocator's current heap offset.
type hostState struct {
	logs *logRing
	heap uint32
}

// Instance is one instantiated guest module, ready to be called with
// Values.
type Instance struct {
	engine   engine.Engine
	store    *engine.Store[*hostState]
	instance engine.Instance
	limits   cgrf.Limits
}

// Option configures New.
type Option func(*options)

type options struct {
	providers []linker.HostFunctionProvider[*hostState]
	limits    cgrf.Limits
	logCap    int
}

// WithHostFunctionProvider registers additional host functions (beyond
// the built-in host.log/host.alloc) before instantiation.
func WithHostFunctionProvider(p linker.HostFunctionProvider[*hostState]) Option {
	return func(o *options) { o.providers = append(o.providers, p) }
}

// WithLimits overrides the CGRF limits used for every call. Defaults
// to cgrf.DefaultLimits().
func WithLimits(limits cgrf.Limits) Option {
	return func(o *options) { o.limits = limits }
}

// WithLogCapacity overrides the number of retained host.log lines.
// Defaults to 256.
func WithLogCapacity(n int) Option {
	return func(o *options) { o.logCap = n }
}

// New compiles wasmBytes, instantiates it against the built-in
// host.log/host.alloc imports plus any providers supplied through
// opts, and returns a ready-to-call Instance.
func New(ctx context.Context, e engine.Engine, wasmBytes []byte, opts ...Option) (*Instance, error) {
	o := &options{
		limits: cgrf.DefaultLimits(),
		logCap: 256,
	}
	for _, opt := range opts {
		opt(o)
	}

	mod, err := e.Compile(ctx, wasmBytes)
	if err != nil {
		return nil, fmt.Errorf("runtime: compile: %w", err)
	}

	store := engine.NewStore(&hostState{logs: newLogRing(o.logCap), heap: linker.HeapStart})
	hl := linker.NewHostLinker[*hostState](e, store)
	hl.Provide(logProvider{}).Provide(allocProvider{})
	for _, p := range o.providers {
		hl.Provide(p)
	}

	inst, err := hl.Instantiate(ctx, mod)
	if err != nil {
		return nil, fmt.Errorf("runtime: instantiate: %w", err)
	}

	return &Instance{engine: e, store: store, instance: inst, limits: o.limits}, nil
}

// Close releases the underlying instance.
func (r *Instance) Close(ctx context.Context) error {
	return r.instance.Close(ctx)
}

// Logs returns every host.log line the instance has written so far,
// oldest first.
func (r *Instance) Logs() []string {
	return r.store.Data().logs.Lines()
}

// CallOption configures a single CallWithValue invocation.
type CallOption func(*callOptions)

type callOptions struct {
	resultType wit.Type
	outCap     uint32
}

// WithResultType declares the result schema, enabling schema-checked
// decoding instead of structural decoding.
func WithResultType(t wit.Type) CallOption {
	return func(o *callOptions) { o.resultType = t }
}

// WithOutputCapacity overrides the output buffer capacity for one
// call, for retrying a call that failed with a capacity-exceeded
// error using a larger buffer.
func WithOutputCapacity(n uint32) CallOption {
	return func(o *callOptions) { o.outCap = n }
}

// CallWithValue implements the §4.7 sequence: encode in, write it at
// the input offset, invoke name with (0, in_len, output offset, output
// capacity), check the result is non-negative, read out_len bytes back,
// decode them (schema-checked if a result type was declared), and
// return the decoded Value.
func (r *Instance) CallWithValue(ctx context.Context, name string, in cgrf.Value, inType wit.Type, opts ...CallOption) (cgrf.Value, error) {
	o := &callOptions{outCap: OutputBufferCapacity}
	for _, opt := range opts {
		opt(o)
	}

	fn, ok := r.instance.ExportedFunction(name)
	if !ok {
		return cgrf.Value{}, fmt.Errorf("runtime: no exported function %q", name)
	}
	mem := r.instance.Memory()
	if mem == nil {
		return cgrf.Value{}, fmt.Errorf("runtime: instance exports no memory")
	}

	encoded, err := cgrf.Encode(in, inType, r.limits)
	if err != nil {
		return cgrf.Value{}, fmt.Errorf("runtime: encode call input: %w", err)
	}
	if uint32(len(encoded)) > InputBufferCapacity {
		return cgrf.Value{}, fmt.Errorf("runtime: encoded input of %d bytes exceeds input buffer capacity %d", len(encoded), InputBufferCapacity)
	}
	if !mem.Write(ctx, InputBufferOffset, encoded) {
		return cgrf.Value{}, fmt.Errorf("runtime: failed writing call input to guest memory")
	}

	results, err := fn.Call(ctx, 0, uint64(len(encoded)), uint64(OutputBufferOffset), uint64(o.outCap))
	if err != nil {
		return cgrf.Value{}, fmt.Errorf("runtime: call %q: %w", name, err)
	}
	if len(results) != 1 {
		return cgrf.Value{}, fmt.Errorf("runtime: %q did not return exactly one result", name)
	}
	outLen := int32(uint32(results[0]))
	if outLen < 0 {
		return cgrf.Value{}, fmt.Errorf("runtime: call %q failed (returned -1)", name)
	}

	out, ok := mem.Read(ctx, OutputBufferOffset, uint32(outLen))
	if !ok {
		return cgrf.Value{}, fmt.Errorf("runtime: failed reading %d-byte call result from guest memory", outLen)
	}

	if o.resultType != nil {
		return cgrf.Decode(out, o.resultType, r.limits)
	}
	return cgrf.DecodeStructural(out, r.limits)
}
