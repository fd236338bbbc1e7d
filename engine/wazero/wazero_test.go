package wazero_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/colinrozzi/composite/engine"
	wazeroadapter "github.com/colinrozzi/composite/engine/wazero"
)

// emptyModule is the minimal valid core-wasm binary: just the magic
// number and version, with no sections at all.
var emptyModule = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

func TestCompileAndInstantiateEmptyModule(t *testing.T) {
	ctx := context.Background()
	e := wazeroadapter.New(ctx)
	defer e.Close(ctx)

	mod, err := e.Compile(ctx, emptyModule)
	require.NoError(t, err)

	inst, err := e.Instantiate(ctx, mod, nil)
	require.NoError(t, err)
	defer inst.Close(ctx)

	_, ok := inst.ExportedFunction("missing")
	require.False(t, ok)
}

func TestNewJITCompilesAndInstantiates(t *testing.T) {
	ctx := context.Background()
	e := wazeroadapter.NewJIT(ctx)
	defer e.Close(ctx)

	mod, err := e.Compile(ctx, emptyModule)
	require.NoError(t, err)

	inst, err := e.Instantiate(ctx, mod, nil)
	require.NoError(t, err)
	defer inst.Close(ctx)
}

func TestHostFunctionRegistration(t *testing.T) {
	ctx := context.Background()
	e := wazeroadapter.New(ctx)
	defer e.Close(ctx)

	mod, err := e.Compile(ctx, emptyModule)
	require.NoError(t, err)

	called := false
	hostFuncs := []engine.HostFunction{
		{
			ModuleName: "host",
			FuncName:   "log",
			Params:     []engine.ValueType{engine.ValueTypeI32, engine.ValueTypeI32},
			Results:    nil,
			HostFunc: func(ctx context.Context, caller engine.Instance, stack []uint64) {
				called = true
			},
		},
	}

	inst, err := e.Instantiate(ctx, mod, hostFuncs)
	require.NoError(t, err)
	defer inst.Close(ctx)

	// The empty guest module never calls host.log itself; this only
	// confirms registering a host function doesn't break instantiation
	// of an unrelated module.
	require.False(t, called)
}
