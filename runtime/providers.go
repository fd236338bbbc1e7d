package runtime

import (
	"context"

	"github.com/colinrozzi/composite/engine"
	"github.com/colinrozzi/composite/linker"
)

// logProvider registers the built-in host.log(ptr:i32, len:i32) import
// (§6): the guest writes a UTF-8 line into its own memory and passes
// its range; the host copies it into the instance's log ring.
type logProvider struct{}

func (logProvider) RegisterHostFunctions(l *linker.HostLinker[*hostState]) {
	l.DefineRawFunction("host", "log",
		[]engine.ValueType{engine.ValueTypeI32, engine.ValueTypeI32},
		nil,
		func(ctx context.Context, caller *engine.Caller[*hostState], args []uint64) []uint64 {
			ptr, length := uint32(args[0]), uint32(args[1])
			if buf, ok := caller.Memory().Read(ctx, ptr, length); ok {
				caller.Data().logs.push(string(buf))
			}
			return nil
		},
	)
}

// allocProvider registers the built-in host.alloc(size:i32) -> i32
// import (§6): a per-store bump allocator handing out guest heap
// space starting at linker.HeapStart. Memory is never freed piecewise
// (§5), matching the bump-allocator's one-directional design.
type allocProvider struct{}

func (allocProvider) RegisterHostFunctions(l *linker.HostLinker[*hostState]) {
	l.DefineRawFunction("host", "alloc",
		[]engine.ValueType{engine.ValueTypeI32},
		[]engine.ValueType{engine.ValueTypeI32},
		func(ctx context.Context, caller *engine.Caller[*hostState], args []uint64) []uint64 {
			size := uint32(args[0])
			data := caller.Data()
			ptr := data.heap
			data.heap += size
			return []uint64{uint64(ptr)}
		},
	)
}
