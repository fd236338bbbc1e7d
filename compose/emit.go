package compose

import "fmt"

// emit assembles the merged sections from every module's rewritten
// state and encodes the resulting module, selecting exports exactly as
// named in exports (§4.6 step 6).
func emit(states []*moduleState, byName map[string]*moduleState, exports []ExportDecl) ([]byte, error) {
	var (
		types   []FuncType
		imports []Import
		funcs   []uint32
		tables  [][]byte
		mems    [][]byte
		globals []Global
		elems   []ElemSegment
		code    []Code
		data    []DataSegment
		start   *uint32
	)

	for _, st := range states {
		types = append(types, st.mod.Types...)
	}

	for _, st := range states {
		funcIdx := 0
		for _, imp := range st.mod.Imports {
			switch imp.Kind {
			case externFunc:
				wired := st.funcWired[funcIdx]
				funcIdx++
				if wired {
					continue
				}
				imports = append(imports, Import{
					Module: imp.Module, Name: imp.Name, Kind: externFunc,
					FuncTypeIdx: st.typeRemap[imp.FuncTypeIdx],
				})
			default:
				imports = append(imports, imp)
			}
		}
	}

	for _, st := range states {
		for _, idx := range st.mod.FuncTypeIdx {
			funcs = append(funcs, st.typeRemap[idx])
		}
	}
	for _, st := range states {
		tables = append(tables, st.mod.Tables...)
	}
	for _, st := range states {
		mems = append(mems, st.mod.Mems...)
	}
	for _, st := range states {
		globals = append(globals, st.mod.Globals...)
	}

	for _, st := range states {
		for _, seg := range st.mod.Elems {
			merged := seg
			merged.Funcs = make([]uint32, len(seg.Funcs))
			for i, f := range seg.Funcs {
				merged.Funcs[i] = st.funcRemap[f]
			}
			if seg.Flags == 0 || seg.Flags == 2 {
				merged.Flags = 2
				merged.TableIdx = st.tableRemap[seg.TableIdx]
			}
			elems = append(elems, merged)
		}
	}

	for _, st := range states {
		for _, seg := range st.mod.Data {
			merged := seg
			if seg.Flags == 0 || seg.Flags == 2 {
				merged.Flags = 2
				merged.MemIdx = st.memRemap[seg.MemIdx]
			}
			data = append(data, merged)
		}
	}

	for _, st := range states {
		code = append(code, st.mod.Code...)
	}

	var startModules int
	for _, st := range states {
		if st.mod.Start != nil {
			startModules++
		}
	}
	if startModules > 1 {
		return nil, fmt.Errorf("compose: more than one module declares a start function")
	}
	for _, st := range states {
		if st.mod.Start != nil {
			merged := st.funcRemap[*st.mod.Start]
			start = &merged
		}
	}

	var mergedExports []Export
	for _, ed := range exports {
		src, ok := byName[ed.SourceModule]
		if !ok {
			return nil, fmt.Errorf("compose: export %q: unknown source module %q", ed.PublicName, ed.SourceModule)
		}
		exp, ok := findExportAny(src.mod, ed.InternalExportName)
		if !ok {
			return nil, fmt.Errorf("compose: export %q: module %q has no export %q", ed.PublicName, ed.SourceModule, ed.InternalExportName)
		}
		var newIdx uint32
		switch exp.Kind {
		case externFunc:
			newIdx = src.funcRemap[exp.Index]
		case externTable:
			newIdx = src.tableRemap[exp.Index]
		case externMemory:
			newIdx = src.memRemap[exp.Index]
		case externGlobal:
			newIdx = src.globalRemap[exp.Index]
		default:
			return nil, fmt.Errorf("compose: export %q: unknown export kind %d", ed.PublicName, exp.Kind)
		}
		mergedExports = append(mergedExports, Export{Name: ed.PublicName, Kind: exp.Kind, Index: newIdx})
	}

	var out []byte
	out = append(out, wasmMagic...)
	out = append(out, wasmVersion...)
	if len(types) > 0 {
		out = append(out, encodeSection(sectionType, encodeTypeSection(types))...)
	}
	if len(imports) > 0 {
		out = append(out, encodeSection(sectionImport, encodeImportSection(imports))...)
	}
	if len(funcs) > 0 {
		out = append(out, encodeSection(sectionFunction, encodeFunctionSection(funcs))...)
	}
	if len(tables) > 0 {
		out = append(out, encodeSection(sectionTable, encodeTableSection(tables))...)
	}
	if len(mems) > 0 {
		out = append(out, encodeSection(sectionMemory, encodeMemorySection(mems))...)
	}
	if len(globals) > 0 {
		out = append(out, encodeSection(sectionGlobal, encodeGlobalSection(globals))...)
	}
	if len(mergedExports) > 0 {
		out = append(out, encodeSection(sectionExport, encodeExportSection(mergedExports))...)
	}
	if start != nil {
		out = append(out, encodeSection(sectionStart, encodeU32(nil, *start))...)
	}
	if len(elems) > 0 {
		out = append(out, encodeSection(sectionElement, encodeElementSection(elems))...)
	}
	if len(code) > 0 {
		out = append(out, encodeSection(sectionCode, encodeCodeSection(code))...)
	}
	if len(data) > 0 {
		out = append(out, encodeSection(sectionData, encodeDataSection(data))...)
	}
	return out, nil
}

func findExportAny(m *Module, name string) (Export, bool) {
	for _, e := range m.Exports {
		if e.Name == name {
			return e, true
		}
	}
	return Export{}, false
}

func encodeSection(id byte, payload []byte) []byte {
	out := []byte{id}
	out = encodeU32(out, uint32(len(payload)))
	return append(out, payload...)
}

func encodeString(dst []byte, s string) []byte {
	dst = encodeU32(dst, uint32(len(s)))
	return append(dst, s...)
}

func encodeTypeSection(types []FuncType) []byte {
	var buf []byte
	buf = encodeU32(buf, uint32(len(types)))
	for _, t := range types {
		buf = append(buf, 0x60)
		buf = encodeU32(buf, uint32(len(t.Params)))
		buf = append(buf, t.Params...)
		buf = encodeU32(buf, uint32(len(t.Results)))
		buf = append(buf, t.Results...)
	}
	return buf
}

func encodeImportSection(imports []Import) []byte {
	var buf []byte
	buf = encodeU32(buf, uint32(len(imports)))
	for _, imp := range imports {
		buf = encodeString(buf, imp.Module)
		buf = encodeString(buf, imp.Name)
		buf = append(buf, imp.Kind)
		switch imp.Kind {
		case externFunc:
			buf = encodeU32(buf, imp.FuncTypeIdx)
		case externTable:
			buf = append(buf, imp.TableType...)
		case externMemory:
			buf = append(buf, imp.MemType...)
		case externGlobal:
			buf = append(buf, imp.GlobalType, imp.GlobalMut)
		}
	}
	return buf
}

func encodeFunctionSection(funcs []uint32) []byte {
	var buf []byte
	buf = encodeU32(buf, uint32(len(funcs)))
	for _, idx := range funcs {
		buf = encodeU32(buf, idx)
	}
	return buf
}

func encodeTableSection(tables [][]byte) []byte {
	var buf []byte
	buf = encodeU32(buf, uint32(len(tables)))
	for _, t := range tables {
		buf = append(buf, t...)
	}
	return buf
}

func encodeMemorySection(mems [][]byte) []byte {
	var buf []byte
	buf = encodeU32(buf, uint32(len(mems)))
	for _, mt := range mems {
		buf = append(buf, mt...)
	}
	return buf
}

func encodeGlobalSection(globals []Global) []byte {
	var buf []byte
	buf = encodeU32(buf, uint32(len(globals)))
	for _, g := range globals {
		buf = append(buf, g.Type, g.Mut)
		buf = append(buf, g.Init...)
	}
	return buf
}

func encodeExportSection(exports []Export) []byte {
	var buf []byte
	buf = encodeU32(buf, uint32(len(exports)))
	for _, e := range exports {
		buf = encodeString(buf, e.Name)
		buf = append(buf, e.Kind)
		buf = encodeU32(buf, e.Index)
	}
	return buf
}

func encodeElementSection(elems []ElemSegment) []byte {
	var buf []byte
	buf = encodeU32(buf, uint32(len(elems)))
	for _, seg := range elems {
		buf = encodeU32(buf, seg.Flags)
		switch seg.Flags {
		case 2:
			buf = encodeU32(buf, seg.TableIdx)
			buf = append(buf, seg.Offset...)
			buf = append(buf, 0x00) // elemkind funcref
		case 1, 3:
			buf = append(buf, 0x00) // elemkind funcref
		case 0:
			buf = append(buf, seg.Offset...)
		}
		buf = encodeU32(buf, uint32(len(seg.Funcs)))
		for _, f := range seg.Funcs {
			buf = encodeU32(buf, f)
		}
	}
	return buf
}

func encodeCodeSection(code []Code) []byte {
	var buf []byte
	buf = encodeU32(buf, uint32(len(code)))
	for _, c := range code {
		var body []byte
		body = encodeU32(body, uint32(len(c.Locals)))
		for _, l := range c.Locals {
			body = encodeU32(body, l.Count)
			body = append(body, l.Type)
		}
		body = append(body, c.Body...)
		buf = encodeU32(buf, uint32(len(body)))
		buf = append(buf, body...)
	}
	return buf
}

func encodeDataSection(data []DataSegment) []byte {
	var buf []byte
	buf = encodeU32(buf, uint32(len(data)))
	for _, seg := range data {
		buf = encodeU32(buf, seg.Flags)
		switch seg.Flags {
		case 2:
			buf = encodeU32(buf, seg.MemIdx)
			buf = append(buf, seg.Offset...)
		case 0:
			buf = append(buf, seg.Offset...)
		}
		buf = encodeU32(buf, uint32(len(seg.Bytes)))
		buf = append(buf, seg.Bytes...)
	}
	return buf
}
