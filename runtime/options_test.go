package runtime

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

var noopModule = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

type recordingProvider struct{ registered *bool }

func (p recordingProvider) RegisterHostFunctions(l *linker.HostLinker[*hostState]) {
	*p.registered = true
	l.DefineRawFunction("host", "noop", nil, nil,
		func(ctx context.Context, caller *engine.Caller[*hostState], args []uint64) []uint64 {
			return nil
		},
	)
}

func TestOptionsApplyToOptionsStruct(t *testing.T) {
	registered := false
	o := &options{limits: cgrf.DefaultLimits(), logCap: 256}

	limits := cgrf.DefaultLimits()
	limits.MaxDepth = 3
	WithLimits(limits)(o)
	WithLogCapacity(2)(o)
	WithHostFunctionProvider(recordingProvider{registered: &registered})(o)

	require.Equal(t, limits, o.limits)
	require.Equal(t, 2, o.logCap)
	require.Len(t, o.providers, 1)
	require.False(t, registered) // only applied at New, not at option construction
}

func TestCallOptionsApplyToCallOptionsStruct(t *testing.T) {
	o := &callOptions{outCap: OutputBufferCapacity}

	WithOutputCapacity(123)(o)
	require.Equal(t, uint32(123), o.outCap)

	WithResultType(wit.S32{})(o)
	require.Equal(t, wit.S32{}, o.resultType)
}

func TestNewRegistersProviderAndHonorsLogCapacity(t *testing.T) {
	ctx := context.Background()
	e := wazeroadapter.New(ctx)
	defer e.Close(ctx)

	registered := false
	limits := cgrf.DefaultLimits()
	limits.MaxDepth = 3

	inst, err := New(ctx, e, noopModule,
		WithHostFunctionProvider(recordingProvider{registered: &registered}),
		WithLimits(limits),
		WithLogCapacity(2),
	)
	require.NoError(t, err)
	defer inst.Close(ctx)

	require.True(t, registered)
	require.Equal(t, limits, inst.limits)

	ring := inst.store.Data().logs
	ring.push("a")
	ring.push("b")
	ring.push("c")
	require.Equal(t, []string{"b", "c"}, ring.Lines())
}
