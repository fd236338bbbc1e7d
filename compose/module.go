// Package compose implements the static module composer (C6): it
// parses N core WebAssembly modules, classifies each import as wired
// (satisfied by another module's export) or external, renumbers every
// index space into one merged module, rewrites every instruction that
// carries an index through the resulting remap tables, and emits a
// single valid core module.
package compose

const (
	sectionCustom   = 0
	sectionType     = 1
	sectionImport   = 2
	sectionFunction = 3
	sectionTable    = 4
	sectionMemory   = 5
	sectionGlobal   = 6
	sectionExport   = 7
	sectionStart    = 8
	sectionElement  = 9
	sectionCode     = 10
	sectionData     = 11
)

const (
	externFunc byte = iota
	externTable
	externMemory
	externGlobal
)

// FuncType is a parsed functype: params/results stored as raw valtype
// bytes, since composing never needs to interpret them, only copy them
// into the merged type section.
type FuncType struct {
	Params  []byte
	Results []byte
}

// Import is one entry of the import section.
type Import struct {
	Module, Name string
	Kind         byte // externFunc/externTable/externMemory/externGlobal

	// FuncTypeIdx is valid when Kind == externFunc: the source
	// module's type index, remapped against that module's type remap
	// before being written into the merged import.
	FuncTypeIdx uint32

	// TableType/MemType are the raw encoded type bytes for table and
	// memory imports; they carry no indices, so they are copied
	// through unmodified.
	TableType []byte
	MemType   []byte

	// GlobalType/GlobalMut describe a global import.
	GlobalType byte
	GlobalMut  byte
}

// Global is one entry of the global section: a type, a mutability
// flag, and a constant init expression (raw bytes, terminated by the
// instruction stream's own 0x0B `end`).
type Global struct {
	Type byte
	Mut  byte
	Init []byte
}

// Export is one entry of the export section.
type Export struct {
	Name  string
	Kind  byte // externFunc/externTable/externMemory/externGlobal
	Index uint32
}

// ElemSegment is one entry of the element section. Composing only
// needs to remap the function indices an active segment installs into
// a table; composing refuses to touch flag values outside the common
// funcidx-vector forms (flags 0-3), reporting a parse error rather than
// silently copying through indices it has not remapped.
type ElemSegment struct {
	Flags    uint32
	TableIdx uint32 // only meaningful when Flags == 2
	Offset   []byte // constant offset expression, only present for active segments
	Funcs    []uint32
}

// DataSegment is one entry of the data section. Supported forms are
// flag 0 (active, implicit memory 0) and flag 1 (passive); flag 2
// (active, explicit memory index) is also supported since the memory
// index it carries still needs remapping.
type DataSegment struct {
	Flags  uint32
	MemIdx uint32
	Offset []byte
	Bytes  []byte
}

// LocalDecl is one run-length-encoded local declaration in a function
// body: Count locals all of type Type.
type LocalDecl struct {
	Count uint32
	Type  byte
}

// Code is one entry of the code section: a function's locals and its
// instruction stream (excluding the leading body-size field, including
// the function-ending 0x0B).
type Code struct {
	Locals []LocalDecl
	Body   []byte
}

// Module is a fully parsed core-wasm module, section by section.
type Module struct {
	Types   []FuncType
	Imports []Import

	// FuncTypeIdx holds one type index per defined (non-imported)
	// function, in function-section order.
	FuncTypeIdx []uint32

	// Tables/Mems hold raw tabletype/memtype bytes for each defined
	// (non-imported) table/memory; these never carry indices that
	// need remapping.
	Tables [][]byte
	Mems   [][]byte

	Globals []Global
	Exports []Export
	Start   *uint32
	Elems   []ElemSegment
	Code    []Code
	Data    []DataSegment
}

// importCount returns how many of m's imports are of the given kind.
func (m *Module) importCount(kind byte) int {
	n := 0
	for _, imp := range m.Imports {
		if imp.Kind == kind {
			n++
		}
	}
	return n
}

// funcSpace is the total number of functions (imported + defined).
func (m *Module) funcSpace() int { return m.importCount(externFunc) + len(m.FuncTypeIdx) }

// tableSpace is the total number of tables (imported + defined).
func (m *Module) tableSpace() int { return m.importCount(externTable) + len(m.Tables) }

// memSpace is the total number of memories (imported + defined).
func (m *Module) memSpace() int { return m.importCount(externMemory) + len(m.Mems) }

// globalSpace is the total number of globals (imported + defined).
func (m *Module) globalSpace() int { return m.importCount(externGlobal) + len(m.Globals) }
