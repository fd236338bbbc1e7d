package compose_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/colinrozzi/composite/compose"
	wazeroadapter "github.com/colinrozzi/composite/engine/wazero"
)

// buildDoubleModule hand-assembles a module exporting double(i64)->i64
// returning n*2, the "A" side of the §8 scenario 4 worked example.
func buildDoubleModule() []byte {
	var buf []byte
	buf = append(buf, 0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00)

	// Type section: (i64) -> i64.
	buf = append(buf, 0x01, 0x06,
		0x01,       // 1 functype
		0x60,       // functype tag
		0x01, 0x7e, // 1 param: i64
		0x01, 0x7e, // 1 result: i64
	)

	// Function section: 1 function, type 0.
	buf = append(buf, 0x03, 0x02, 0x01, 0x00)

	// Export section: "double" -> func 0.
	exports := []byte{0x01, 0x06}
	exports = append(exports, []byte("double")...)
	exports = append(exports, 0x00, 0x00)
	buf = append(buf, 0x07, byte(len(exports)))
	buf = append(buf, exports...)

	// Code section: local.get 0; i64.const 2; i64.mul; end.
	body := []byte{0x00, 0x20, 0x00, 0x42, 0x02, 0x7e, 0x0b} // 0 local decls, then the instructions
	codePayload := append([]byte{0x01, byte(len(body))}, body...)
	buf = append(buf, 0x0a, byte(len(codePayload)))
	buf = append(buf, codePayload...)

	return buf
}

// buildComputeModule hand-assembles a module importing "a".double and
// exporting compute(i64)->i64 returning double(n)+1, the "B" side.
func buildComputeModule() []byte {
	var buf []byte
	buf = append(buf, 0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00)

	// Type section: (i64) -> i64, shared by the import and compute itself.
	buf = append(buf, 0x01, 0x06,
		0x01,
		0x60,
		0x01, 0x7e,
		0x01, 0x7e,
	)

	// Import section: "a"."double", type 0.
	imp := []byte{0x01}
	imp = append(imp, 0x01, 'a')
	imp = append(imp, 0x06)
	imp = append(imp, []byte("double")...)
	imp = append(imp, 0x00, 0x00) // kind=func, typeidx=0
	buf = append(buf, 0x02, byte(len(imp)))
	buf = append(buf, imp...)

	// Function section: 1 defined function (compute), type 0.
	buf = append(buf, 0x03, 0x02, 0x01, 0x00)

	// Export section: "compute" -> func 1 (import 0 occupies index 0).
	exports := []byte{0x01, 0x07}
	exports = append(exports, []byte("compute")...)
	exports = append(exports, 0x00, 0x01)
	buf = append(buf, 0x07, byte(len(exports)))
	buf = append(buf, exports...)

	// Code section: local.get 0; call 0; i64.const 1; i64.add; end.
	instrs := []byte{0x20, 0x00, 0x10, 0x00, 0x42, 0x01, 0x7c, 0x0b}
	body := append([]byte{0x00}, instrs...) // 0 local decl groups, then the instructions
	codePayload := append([]byte{0x01, byte(len(body))}, body...)
	buf = append(buf, 0x0a, byte(len(codePayload)))
	buf = append(buf, codePayload...)

	return buf
}

func TestComposeWorkedExample(t *testing.T) {
	wires := []compose.Wire{
		{Consumer: "b", ImportInterface: "a", ImportName: "double", Provider: "a", ExportName: "double"},
	}
	exports := []compose.ExportDecl{
		{PublicName: "compute", SourceModule: "b", InternalExportName: "compute"},
	}

	merged, err := compose.Compose([]compose.NamedModule{
		{Name: "a", Wasm: buildDoubleModule()},
		{Name: "b", Wasm: buildComputeModule()},
	}, wires, exports)
	require.NoError(t, err)

	// The merged module no longer imports anything: the only import
	// ("a".double) was wired away.
	parsed, err := compose.ParseModule(merged)
	require.NoError(t, err)
	require.Empty(t, parsed.Imports)
	require.Len(t, parsed.Exports, 1)
	require.Equal(t, "compute", parsed.Exports[0].Name)

	ctx := context.Background()
	e := wazeroadapter.New(ctx)
	defer e.Close(ctx)

	mod, err := e.Compile(ctx, merged)
	require.NoError(t, err)
	inst, err := e.Instantiate(ctx, mod, nil)
	require.NoError(t, err)
	defer inst.Close(ctx)

	fn, ok := inst.ExportedFunction("compute")
	require.True(t, ok)
	results, err := fn.Call(ctx, 5)
	require.NoError(t, err)
	require.Equal(t, []uint64{11}, results)
}

func TestComposeDetectsWiringCycle(t *testing.T) {
	wires := []compose.Wire{
		{Consumer: "b", ImportInterface: "a", ImportName: "double", Provider: "a", ExportName: "double"},
		{Consumer: "a", ImportInterface: "b", ImportName: "compute", Provider: "b", ExportName: "compute"},
	}
	_, err := compose.Compose([]compose.NamedModule{
		{Name: "a", Wasm: buildDoubleModule()},
		{Name: "b", Wasm: buildComputeModule()},
	}, wires, nil)
	require.Error(t, err)
	var wireErr *compose.WireError
	require.ErrorAs(t, err, &wireErr)
	require.NotEmpty(t, wireErr.Path)
}

func TestComposeRejectsWireToMissingExport(t *testing.T) {
	wires := []compose.Wire{
		{Consumer: "b", ImportInterface: "a", ImportName: "double", Provider: "a", ExportName: "nonexistent"},
	}
	_, err := compose.Compose([]compose.NamedModule{
		{Name: "a", Wasm: buildDoubleModule()},
		{Name: "b", Wasm: buildComputeModule()},
	}, wires, nil)
	require.Error(t, err)
}

func TestComposeLeavesUnwiredImportExternal(t *testing.T) {
	merged, err := compose.Compose([]compose.NamedModule{
		{Name: "a", Wasm: buildDoubleModule()},
		{Name: "b", Wasm: buildComputeModule()},
	}, nil, []compose.ExportDecl{
		{PublicName: "double", SourceModule: "a", InternalExportName: "double"},
	})
	require.NoError(t, err)

	parsed, err := compose.ParseModule(merged)
	require.NoError(t, err)
	require.Len(t, parsed.Imports, 1)
	require.Equal(t, "a", parsed.Imports[0].Module)
	require.Equal(t, "double", parsed.Imports[0].Name)
}

func TestParseModuleCountsDoubleModuleSections(t *testing.T) {
	parsed, err := compose.ParseModule(buildDoubleModule())
	require.NoError(t, err)
	require.Len(t, parsed.Types, 1)
	require.Len(t, parsed.FuncTypeIdx, 1)
	require.Len(t, parsed.Exports, 1)
	require.Len(t, parsed.Code, 1)
}
