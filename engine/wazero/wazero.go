// Package wazero adapts github.com/tetratelabs/wazero to the engine
// package's abstraction, giving Composite its one concrete core-wasm
// engine. Every other package in this module talks to engine.Engine,
// never to wazero directly.
package wazero

import (
	"context"
	"fmt"

	wz "github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/colinrozzi/composite/engine"
)

// Engine is a wazero-backed engine.Engine.
type Engine struct {
	runtime wz.Runtime
}

// New returns an Engine using the interpreter runtime, so it runs
// unmodified on every GOOS/GOARCH wazero supports (including as a
// TinyGo guest's host process).
func New(ctx context.Context) *Engine {
	cfg := wz.NewRuntimeConfigInterpreter()
	return &Engine{runtime: wz.NewRuntimeWithConfig(ctx, cfg)}
}

// NewJIT returns an Engine using wazero's compiler runtime, where
// supported, for production-grade call throughput.
func NewJIT(ctx context.Context) *Engine {
	return &Engine{runtime: wz.NewRuntimeWithConfig(ctx, wz.NewRuntimeConfigCompiler())}
}

func (e *Engine) Compile(ctx context.Context, wasmBytes []byte) (engine.Module, error) {
	compiled, err := e.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, fmt.Errorf("wazero: compile module: %w", err)
	}
	return &module{compiled: compiled}, nil
}

func (e *Engine) Instantiate(ctx context.Context, mod engine.Module, hostFuncs []engine.HostFunction) (engine.Instance, error) {
	m, ok := mod.(*module)
	if !ok {
		return nil, fmt.Errorf("wazero: Instantiate called with a Module not compiled by this Engine")
	}

	byModule := make(map[string][]engine.HostFunction)
	for _, hf := range hostFuncs {
		byModule[hf.ModuleName] = append(byModule[hf.ModuleName], hf)
	}
	for moduleName, funcs := range byModule {
		builder := e.runtime.NewHostModuleBuilder(moduleName)
		for _, hf := range funcs {
			hf := hf
			builder.NewFunctionBuilder().
				WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
					hf.HostFunc(ctx, &instance{mod: mod}, stack)
				}), toAPITypes(hf.Params), toAPITypes(hf.Results)).
				Export(hf.FuncName)
		}
		if _, err := builder.Instantiate(ctx); err != nil {
			return nil, fmt.Errorf("wazero: instantiate host module %q: %w", moduleName, err)
		}
	}

	cfg := wz.NewModuleConfig().WithName(m.compiled.Name())
	guest, err := e.runtime.InstantiateModule(ctx, m.compiled, cfg)
	if err != nil {
		return nil, fmt.Errorf("wazero: instantiate guest module: %w", err)
	}
	return &instance{mod: guest}, nil
}

func (e *Engine) Close(ctx context.Context) error {
	return e.runtime.Close(ctx)
}

func toAPITypes(vts []engine.ValueType) []api.ValueType {
	out := make([]api.ValueType, len(vts))
	for i, vt := range vts {
		out[i] = api.ValueType(vt)
	}
	return out
}

type module struct {
	compiled wz.CompiledModule
}

func (m *module) Name() string { return m.compiled.Name() }

type instance struct {
	mod api.Module
}

func (i *instance) Name() string { return i.mod.Name() }

func (i *instance) ExportedFunction(name string) (engine.Function, bool) {
	fn := i.mod.ExportedFunction(name)
	if fn == nil {
		return nil, false
	}
	return function{fn}, true
}

func (i *instance) Memory() engine.Memory {
	mem := i.mod.Memory()
	if mem == nil {
		return nil
	}
	return memory{mem}
}

func (i *instance) Close(ctx context.Context) error {
	return i.mod.Close(ctx)
}

type function struct {
	fn api.Function
}

func (f function) Call(ctx context.Context, params ...uint64) ([]uint64, error) {
	return f.fn.Call(ctx, params...)
}

type memory struct {
	mem api.Memory
}

func (m memory) Size(ctx context.Context) uint32 { return m.mem.Size(ctx) }

func (m memory) Read(ctx context.Context, offset, byteCount uint32) ([]byte, bool) {
	return m.mem.Read(ctx, offset, byteCount)
}

func (m memory) Write(ctx context.Context, offset uint32, data []byte) bool {
	return m.mem.Write(ctx, offset, data)
}
