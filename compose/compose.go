package compose

import "fmt"

// unresolved marks a function's merged index as not yet assigned: set
// for wired imports until the DAG-ordered resolution pass fills it in.
const unresolved = ^uint32(0)

// wireKey identifies one consumer module's function import.
type wireKey struct{ consumer, iface, name string }

// NamedModule is one input to Compose: a core-wasm module tagged with
// the name wires and exports refer to it by.
type NamedModule struct {
	Name string
	Wasm []byte
}

// Wire maps one consumer module's function import to a provider
// module's function export, per §3.5: `(consumer, import_interface,
// import_name) -> (provider, export_name)`.
type Wire struct {
	Consumer        string
	ImportInterface string
	ImportName      string
	Provider        string
	ExportName      string
}

// ExportDecl selects one export of the merged module: PublicName is
// what the merged module exports it as, SourceModule/InternalExportName
// identify which input module's export supplies it.
type ExportDecl struct {
	PublicName         string
	SourceModule       string
	InternalExportName string
}

// moduleState is one input module's parsed form plus its per-kind
// index remap tables, each sized to that kind's full index space
// (imports followed by defined items, matching the core format's
// implicit indexing).
type moduleState struct {
	name string
	mod  *Module

	funcRemap   []uint32
	funcWired   []bool
	tableRemap  []uint32
	memRemap    []uint32
	globalRemap []uint32
	typeRemap   []uint32
	elemRemap   []uint32
	dataRemap   []uint32
}

// Compose parses every module, classifies each function import as
// wired (satisfied by wires) or external, verifies the wiring graph is
// a DAG, renumbers every index space in two phases (external imports
// across all modules, then defined items across all modules), rewrites
// every instruction carrying an index, and emits one merged module
// exposing exactly the exports named in exports.
func Compose(modules []NamedModule, wires []Wire, exports []ExportDecl) ([]byte, error) {
	if len(modules) == 0 {
		return nil, fmt.Errorf("compose: no modules supplied")
	}

	states := make([]*moduleState, len(modules))
	byName := make(map[string]*moduleState, len(modules))
	for i, nm := range modules {
		mod, err := ParseModule(nm.Wasm)
		if err != nil {
			return nil, fmt.Errorf("compose: module %q: %w", nm.Name, err)
		}
		if _, dup := byName[nm.Name]; dup {
			return nil, fmt.Errorf("compose: duplicate module name %q", nm.Name)
		}
		st := &moduleState{name: nm.Name, mod: mod}
		states[i] = st
		byName[nm.Name] = st
	}

	wireByImport := make(map[wireKey]Wire, len(wires))
	edges := make(map[string][]string, len(wires))
	for _, w := range wires {
		if _, ok := byName[w.Consumer]; !ok {
			return nil, fmt.Errorf("compose: wire consumer %q is not a loaded module", w.Consumer)
		}
		if _, ok := byName[w.Provider]; !ok {
			return nil, fmt.Errorf("compose: wire provider %q is not a loaded module", w.Provider)
		}
		key := wireKey{w.Consumer, w.ImportInterface, w.ImportName}
		if _, dup := wireByImport[key]; dup {
			return nil, fmt.Errorf("compose: duplicate wire for %s.%s in module %q", w.ImportInterface, w.ImportName, w.Consumer)
		}
		wireByImport[key] = w
		edges[w.Consumer] = append(edges[w.Consumer], w.Provider)
	}

	order, err := topoSortModules(modules, edges)
	if err != nil {
		return nil, err
	}

	allocateRemapTables(states)
	classifyFuncImports(states, wireByImport)
	renumber(states)

	if err := resolveWiredImports(order, byName, wireByImport); err != nil {
		return nil, err
	}
	for _, st := range states {
		for i, v := range st.funcRemap {
			if v == unresolved {
				return nil, fmt.Errorf("compose: module %q: function %d never received a merged index", st.name, i)
			}
		}
	}

	if err := rewriteBodies(states); err != nil {
		return nil, err
	}

	return emit(states, byName, exports)
}

func allocateRemapTables(states []*moduleState) {
	for _, st := range states {
		n := st.mod.funcSpace()
		st.funcRemap = make([]uint32, n)
		st.funcWired = make([]bool, n)
		for i := range st.funcRemap {
			st.funcRemap[i] = unresolved
		}
		st.tableRemap = make([]uint32, st.mod.tableSpace())
		st.memRemap = make([]uint32, st.mod.memSpace())
		st.globalRemap = make([]uint32, st.mod.globalSpace())
		st.typeRemap = make([]uint32, len(st.mod.Types))
		st.elemRemap = make([]uint32, len(st.mod.Elems))
		st.dataRemap = make([]uint32, len(st.mod.Data))
	}
}

func classifyFuncImports(states []*moduleState, wireByImport map[wireKey]Wire) {
	for _, st := range states {
		funcIdx := 0
		for _, imp := range st.mod.Imports {
			if imp.Kind != externFunc {
				continue
			}
			key := wireKey{st.name, imp.Module, imp.Name}
			if _, ok := wireByImport[key]; ok {
				st.funcWired[funcIdx] = true
			}
			funcIdx++
		}
	}
}

// renumber implements §4.6 step 4: first every external import of
// every kind across all modules in load order, then every defined
// item of every kind across all modules in load order. Type indices
// have no import/defined split, so they are numbered as one run ahead
// of everything else.
func renumber(states []*moduleState) {
	var nextType uint32
	for _, st := range states {
		for i := range st.mod.Types {
			st.typeRemap[i] = nextType
			nextType++
		}
	}

	var nextFunc, nextTable, nextMem, nextGlobal uint32
	for _, st := range states {
		funcIdx, tableIdx, memIdx, globalIdx := 0, 0, 0, 0
		for _, imp := range st.mod.Imports {
			switch imp.Kind {
			case externFunc:
				if !st.funcWired[funcIdx] {
					st.funcRemap[funcIdx] = nextFunc
					nextFunc++
				}
				funcIdx++
			case externTable:
				st.tableRemap[tableIdx] = nextTable
				nextTable++
				tableIdx++
			case externMemory:
				st.memRemap[memIdx] = nextMem
				nextMem++
				memIdx++
			case externGlobal:
				st.globalRemap[globalIdx] = nextGlobal
				nextGlobal++
				globalIdx++
			}
		}
	}

	for _, st := range states {
		importFuncs := st.mod.importCount(externFunc)
		for i := range st.mod.FuncTypeIdx {
			st.funcRemap[importFuncs+i] = nextFunc
			nextFunc++
		}
		importTables := st.mod.importCount(externTable)
		for i := range st.mod.Tables {
			st.tableRemap[importTables+i] = nextTable
			nextTable++
		}
		importMems := st.mod.importCount(externMemory)
		for i := range st.mod.Mems {
			st.memRemap[importMems+i] = nextMem
			nextMem++
		}
		importGlobals := st.mod.importCount(externGlobal)
		for i := range st.mod.Globals {
			st.globalRemap[importGlobals+i] = nextGlobal
			nextGlobal++
		}
	}

	var nextElem, nextData uint32
	for _, st := range states {
		for i := range st.mod.Elems {
			st.elemRemap[i] = nextElem
			nextElem++
		}
		for i := range st.mod.Data {
			st.dataRemap[i] = nextData
			nextData++
		}
	}
}

// resolveWiredImports fills in the merged function index for every
// wired import, visiting modules in topological (provider-before-
// consumer) order so a provider's own export index is always already
// resolved by the time a consumer looks it up, even through a chain of
// re-exported wires.
func resolveWiredImports(order []string, byName map[string]*moduleState, wireByImport map[wireKey]Wire) error {
	for _, name := range order {
		st := byName[name]
		funcIdx := 0
		for _, imp := range st.mod.Imports {
			if imp.Kind != externFunc {
				continue
			}
			if st.funcWired[funcIdx] {
				key := wireKey{st.name, imp.Module, imp.Name}
				w := wireByImport[key]
				provider, ok := byName[w.Provider]
				if !ok {
					return fmt.Errorf("compose: wire for %s.%s: unknown provider %q", imp.Module, imp.Name, w.Provider)
				}
				exp, ok := findExport(provider.mod, w.ExportName, externFunc)
				if !ok {
					return &WireError{Reason: fmt.Sprintf("provider %q has no function export %q (wired from %q.%s.%s)", w.Provider, w.ExportName, st.name, imp.Module, imp.Name)}
				}
				if int(exp.Index) >= len(provider.funcRemap) {
					return &WireError{Reason: fmt.Sprintf("provider %q export %q has out-of-range function index %d", w.Provider, w.ExportName, exp.Index)}
				}
				merged := provider.funcRemap[exp.Index]
				if merged == unresolved {
					return &WireError{Reason: fmt.Sprintf("provider %q export %q is itself an unresolved wired import", w.Provider, w.ExportName)}
				}
				st.funcRemap[funcIdx] = merged
			}
			funcIdx++
		}
	}
	return nil
}

func findExport(m *Module, name string, kind byte) (Export, bool) {
	for _, e := range m.Exports {
		if e.Name == name && e.Kind == kind {
			return e, true
		}
	}
	return Export{}, false
}

// topoSortModules returns module names ordered so every provider
// precedes every module that wires to it, via a gray/black DFS that
// reports the first cycle it finds as a WireError carrying the cycle's
// module path.
func topoSortModules(modules []NamedModule, edges map[string][]string) ([]string, error) {
	const (
		white = iota
		gray
		black
	)
	color := make(map[string]int, len(modules))
	var order []string
	var path []string

	var visit func(n string) error
	visit = func(n string) error {
		switch color[n] {
		case black:
			return nil
		case gray:
			start := 0
			for i, p := range path {
				if p == n {
					start = i
					break
				}
			}
			cycle := append(append([]string{}, path[start:]...), n)
			return &WireError{Path: cycle}
		}
		color[n] = gray
		path = append(path, n)
		for _, dep := range edges[n] {
			if err := visit(dep); err != nil {
				return err
			}
		}
		path = path[:len(path)-1]
		color[n] = black
		order = append(order, n)
		return nil
	}

	for _, nm := range modules {
		if err := visit(nm.Name); err != nil {
			return nil, err
		}
	}
	return order, nil
}

func boundedRemap(kind string, remap []uint32) func(uint32) (uint32, error) {
	return func(idx uint32) (uint32, error) {
		if int(idx) >= len(remap) {
			return 0, &WireError{Reason: fmt.Sprintf("%s index %d out of range (module has %d)", kind, idx, len(remap))}
		}
		return remap[idx], nil
	}
}

func remapsFor(st *moduleState) remapSet {
	return remapSet{
		Func:   boundedRemap("function", st.funcRemap),
		Table:  boundedRemap("table", st.tableRemap),
		Mem:    boundedRemap("memory", st.memRemap),
		Global: boundedRemap("global", st.globalRemap),
		Type:   boundedRemap("type", st.typeRemap),
		Elem:   boundedRemap("element segment", st.elemRemap),
		Data:   boundedRemap("data segment", st.dataRemap),
	}
}

// rewriteBodies rewrites every function body, global init expression,
// and active element/data segment offset expression through its
// module's remap tables. Any remap lookup failure aborts the whole
// compose with a wrapped error; nothing is ever emitted half-rewritten.
func rewriteBodies(states []*moduleState) error {
	for _, st := range states {
		remaps := remapsFor(st)

		for i := range st.mod.Code {
			body, err := walkBody(st.mod.Code[i].Body, remaps)
			if err != nil {
				return rewriteErr(st.name, "function body", err)
			}
			st.mod.Code[i].Body = body
		}

		for i := range st.mod.Globals {
			if st.mod.Globals[i].Init == nil {
				continue
			}
			init, err := walkBody(st.mod.Globals[i].Init, remaps)
			if err != nil {
				return rewriteErr(st.name, "global init expression", err)
			}
			st.mod.Globals[i].Init = init
		}

		for i := range st.mod.Elems {
			if st.mod.Elems[i].Offset != nil {
				off, err := walkBody(st.mod.Elems[i].Offset, remaps)
				if err != nil {
					return rewriteErr(st.name, "element offset expression", err)
				}
				st.mod.Elems[i].Offset = off
			}
		}

		for i := range st.mod.Data {
			if st.mod.Data[i].Offset != nil {
				off, err := walkBody(st.mod.Data[i].Offset, remaps)
				if err != nil {
					return rewriteErr(st.name, "data offset expression", err)
				}
				st.mod.Data[i].Offset = off
			}
		}
	}
	return nil
}

func rewriteErr(module, what string, err error) error {
	return fmt.Errorf("compose: module %q: %s: %w", module, what, err)
}
