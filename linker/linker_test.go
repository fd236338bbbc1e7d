package linker_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/colinrozzi/composite/cgrf"
	"github.com/colinrozzi/composite/engine"
	wazeroadapter "github.com/colinrozzi/composite/engine/wazero"
	"github.com/colinrozzi/composite/linker"
	"github.com/colinrozzi/composite/wit"
)

var emptyModule = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

type hostState struct {
	logs []string
}

func TestTypedHostFunctionRegistration(t *testing.T) {
	ctx := context.Background()
	e := wazeroadapter.New(ctx)
	defer e.Close(ctx)

	mod, err := e.Compile(ctx, emptyModule)
	require.NoError(t, err)

	store := engine.NewStore(&hostState{})
	hl := linker.NewHostLinker[*hostState](e, store)

	var received int32
	hl.Interface("myapp:api/v1").Func("double", linker.Typed[*hostState]{
		Input:  wit.S32{},
		Output: wit.S32{},
		Limits: cgrf.DefaultLimits(),
		Func: func(ctx context.Context, caller *engine.Caller[*hostState], in cgrf.Value, hasInput bool) (cgrf.Value, bool, error) {
			received = int32(in.Int())
			return cgrf.NewS32(received * 2), true, nil
		},
	})

	inst, err := hl.Instantiate(ctx, mod)
	require.NoError(t, err)
	defer inst.Close(ctx)

	require.Equal(t, int32(0), received)
}

func TestRawHostFunctionRegistration(t *testing.T) {
	ctx := context.Background()
	e := wazeroadapter.New(ctx)
	defer e.Close(ctx)

	mod, err := e.Compile(ctx, emptyModule)
	require.NoError(t, err)

	store := engine.NewStore(&hostState{})
	hl := linker.NewHostLinker[*hostState](e, store)

	hl.Interface("host").Func("log", linker.Raw[*hostState]{
		Func: func(ctx context.Context, caller *engine.Caller[*hostState], inPtr, inLen, outPtr, outCap uint32) int32 {
			buf, ok := caller.Memory().Read(ctx, inPtr, inLen)
			if !ok {
				return -1
			}
			caller.Data().logs = append(caller.Data().logs, string(buf))
			return 0
		},
	})

	inst, err := hl.Instantiate(ctx, mod)
	require.NoError(t, err)
	defer inst.Close(ctx)
}
