package runtime_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/colinrozzi/composite/cgrf"
	wazeroadapter "github.com/colinrozzi/composite/engine/wazero"
	"github.com/colinrozzi/composite/runtime"
	"github.com/colinrozzi/composite/wit"
)

var emptyModule = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

// constFailModule is a hand-assembled core-wasm binary exporting a
// single memory page and one function, const_fail, matching the
// uniform (i32,i32,i32,i32)->i32 calling convention and unconditionally
// returning -1, so CallWithValue's failure path can be exercised
// without needing real guest-side CGRF encode/decode logic.
var constFailModule = buildConstFailModule()

func buildConstFailModule() []byte {
	var buf []byte
	buf = append(buf, 0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00) // magic, version

	// Type section: one functype (i32,i32,i32,i32) -> i32.
	buf = append(buf, 0x01, 0x09,
		0x01,                         // 1 functype
		0x60,                         // functype tag
		0x04, 0x7f, 0x7f, 0x7f, 0x7f, // 4 i32 params
		0x01, 0x7f, // 1 i32 result
	)

	// Function section: 1 function, using type index 0.
	buf = append(buf, 0x03, 0x02, 0x01, 0x00)

	// Memory section: 1 memory, min 1 page, no max.
	buf = append(buf, 0x05, 0x03, 0x01, 0x00, 0x01)

	// Export section: "memory" (mem 0), "const_fail" (func 0).
	exports := []byte{0x02}
	exports = append(exports, byte(len("memory")))
	exports = append(exports, []byte("memory")...)
	exports = append(exports, 0x02, 0x00) // kind=memory, index=0
	exports = append(exports, byte(len("const_fail")))
	exports = append(exports, []byte("const_fail")...)
	exports = append(exports, 0x00, 0x00) // kind=func, index=0
	buf = append(buf, 0x07, byte(len(exports)))
	buf = append(buf, exports...)

	// Code section: 1 body, no locals, `i32.const -1; end`.
	buf = append(buf, 0x0a, 0x06,
		0x01,             // 1 function body
		0x04,             // body size
		0x00,             // 0 local decl groups
		0x41, 0x7f, 0x0b, // i32.const -1; end
	)

	return buf
}

func TestCallWithValueMissingFunction(t *testing.T) {
	ctx := context.Background()
	e := wazeroadapter.New(ctx)
	defer e.Close(ctx)

	inst, err := runtime.New(ctx, e, emptyModule)
	require.NoError(t, err)
	defer inst.Close(ctx)

	_, err = inst.CallWithValue(ctx, "missing", cgrf.NewS32(1), wit.S32{})
	require.Error(t, err)
}

func TestCallWithValuePropagatesGuestFailure(t *testing.T) {
	ctx := context.Background()
	e := wazeroadapter.New(ctx)
	defer e.Close(ctx)

	inst, err := runtime.New(ctx, e, constFailModule)
	require.NoError(t, err)
	defer inst.Close(ctx)

	_, err = inst.CallWithValue(ctx, "const_fail", cgrf.NewS32(1), wit.S32{})
	require.Error(t, err)
}

func TestLogsStartEmpty(t *testing.T) {
	ctx := context.Background()
	e := wazeroadapter.New(ctx)
	defer e.Close(ctx)

	inst, err := runtime.New(ctx, e, emptyModule)
	require.NoError(t, err)
	defer inst.Close(ctx)

	require.Empty(t, inst.Logs())
}
