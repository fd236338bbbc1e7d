package compose

import (
	"bytes"
	"fmt"
)

var wasmMagic = []byte{0x00, 0x61, 0x73, 0x6d}
var wasmVersion = []byte{0x01, 0x00, 0x00, 0x00}

// ParseModule decodes wasmBytes into typed sections: types, imports,
// functions, tables, memories, globals, exports, elements, code, and
// data, the way tetratelabs-wazero's wasm/binary package walks the
// same core format, section by section with LEB128 vectors throughout.
func ParseModule(wasmBytes []byte) (*Module, error) {
	if len(wasmBytes) < 8 || !bytes.Equal(wasmBytes[0:4], wasmMagic) {
		return nil, fmt.Errorf("compose: not a core wasm module (bad magic)")
	}
	if !bytes.Equal(wasmBytes[4:8], wasmVersion) {
		return nil, fmt.Errorf("compose: unsupported wasm binary version")
	}

	m := &Module{}
	off := 8
	for off < len(wasmBytes) {
		id := wasmBytes[off]
		off++
		size, next, err := decodeU32(wasmBytes, off)
		if err != nil {
			return nil, fmt.Errorf("compose: section size: %w", err)
		}
		off = next
		if off+int(size) > len(wasmBytes) {
			return nil, fmt.Errorf("compose: section %d size %d exceeds module length", id, size)
		}
		payload := wasmBytes[off : off+int(size)]
		off += int(size)

		var perr error
		switch id {
		case sectionCustom:
			// Custom sections (names, producers, ...) carry no
			// indices the composer needs and are dropped from the
			// merged output.
		case sectionType:
			perr = parseTypeSection(m, payload)
		case sectionImport:
			perr = parseImportSection(m, payload)
		case sectionFunction:
			perr = parseFunctionSection(m, payload)
		case sectionTable:
			perr = parseTableSection(m, payload)
		case sectionMemory:
			perr = parseMemorySection(m, payload)
		case sectionGlobal:
			perr = parseGlobalSection(m, payload)
		case sectionExport:
			perr = parseExportSection(m, payload)
		case sectionStart:
			perr = parseStartSection(m, payload)
		case sectionElement:
			perr = parseElementSection(m, payload)
		case sectionCode:
			perr = parseCodeSection(m, payload)
		case sectionData:
			perr = parseDataSection(m, payload)
		default:
			perr = fmt.Errorf("compose: unsupported section id %d", id)
		}
		if perr != nil {
			return nil, perr
		}
	}
	return m, nil
}

func readString(buf []byte, off int) (string, int, error) {
	n, next, err := decodeU32(buf, off)
	if err != nil {
		return "", 0, fmt.Errorf("compose: string length: %w", err)
	}
	off = next
	if off+int(n) > len(buf) {
		return "", 0, fmt.Errorf("compose: truncated string")
	}
	return string(buf[off : off+int(n)]), off + int(n), nil
}

// readLimitsRaw decodes a `limits` (flag + min [+ max]) and returns
// the raw bytes it occupies, since the composer never interprets
// limits, only copies them into the merged table/memory section.
func readLimitsRaw(buf []byte, off int) ([]byte, int, error) {
	start := off
	if off >= len(buf) {
		return nil, 0, fmt.Errorf("compose: truncated limits")
	}
	flag := buf[off]
	off++
	_, next, err := decodeU32(buf, off)
	if err != nil {
		return nil, 0, fmt.Errorf("compose: limits min: %w", err)
	}
	off = next
	if flag&0x1 != 0 {
		_, next, err := decodeU32(buf, off)
		if err != nil {
			return nil, 0, fmt.Errorf("compose: limits max: %w", err)
		}
		off = next
	}
	return buf[start:off], off, nil
}

func parseTypeSection(m *Module, buf []byte) error {
	count, off, err := decodeU32(buf, 0)
	if err != nil {
		return fmt.Errorf("compose: type section count: %w", err)
	}
	for i := uint32(0); i < count; i++ {
		if off >= len(buf) || buf[off] != 0x60 {
			return fmt.Errorf("compose: type %d: expected functype tag 0x60", i)
		}
		off++

		pn, next, err := decodeU32(buf, off)
		if err != nil {
			return fmt.Errorf("compose: type %d params count: %w", i, err)
		}
		off = next
		if off+int(pn) > len(buf) {
			return fmt.Errorf("compose: type %d: truncated params", i)
		}
		params := append([]byte(nil), buf[off:off+int(pn)]...)
		off += int(pn)

		rn, next, err := decodeU32(buf, off)
		if err != nil {
			return fmt.Errorf("compose: type %d results count: %w", i, err)
		}
		off = next
		if off+int(rn) > len(buf) {
			return fmt.Errorf("compose: type %d: truncated results", i)
		}
		results := append([]byte(nil), buf[off:off+int(rn)]...)
		off += int(rn)

		m.Types = append(m.Types, FuncType{Params: params, Results: results})
	}
	return nil
}

func parseImportSection(m *Module, buf []byte) error {
	count, off, err := decodeU32(buf, 0)
	if err != nil {
		return fmt.Errorf("compose: import section count: %w", err)
	}
	for i := uint32(0); i < count; i++ {
		modName, next, err := readString(buf, off)
		if err != nil {
			return fmt.Errorf("compose: import %d module: %w", i, err)
		}
		off = next
		name, next, err := readString(buf, off)
		if err != nil {
			return fmt.Errorf("compose: import %d name: %w", i, err)
		}
		off = next
		if off >= len(buf) {
			return fmt.Errorf("compose: import %d: truncated kind", i)
		}
		kind := buf[off]
		off++

		imp := Import{Module: modName, Name: name, Kind: kind}
		switch kind {
		case externFunc:
			idx, next, err := decodeU32(buf, off)
			if err != nil {
				return fmt.Errorf("compose: import %d typeidx: %w", i, err)
			}
			off = next
			imp.FuncTypeIdx = idx
		case externTable:
			if off >= len(buf) {
				return fmt.Errorf("compose: import %d: truncated tabletype", i)
			}
			elemType := buf[off]
			raw, next, err := readLimitsRaw(buf, off+1)
			if err != nil {
				return fmt.Errorf("compose: import %d table limits: %w", i, err)
			}
			imp.TableType = append([]byte{elemType}, raw...)
			off = next
		case externMemory:
			raw, next, err := readLimitsRaw(buf, off)
			if err != nil {
				return fmt.Errorf("compose: import %d memory limits: %w", i, err)
			}
			imp.MemType = raw
			off = next
		case externGlobal:
			if off+2 > len(buf) {
				return fmt.Errorf("compose: import %d: truncated globaltype", i)
			}
			imp.GlobalType = buf[off]
			imp.GlobalMut = buf[off+1]
			off += 2
		default:
			return fmt.Errorf("compose: import %d: unknown kind %d", i, kind)
		}
		m.Imports = append(m.Imports, imp)
	}
	return nil
}

func parseFunctionSection(m *Module, buf []byte) error {
	count, off, err := decodeU32(buf, 0)
	if err != nil {
		return fmt.Errorf("compose: function section count: %w", err)
	}
	for i := uint32(0); i < count; i++ {
		idx, next, err := decodeU32(buf, off)
		if err != nil {
			return fmt.Errorf("compose: function %d typeidx: %w", i, err)
		}
		off = next
		m.FuncTypeIdx = append(m.FuncTypeIdx, idx)
	}
	return nil
}

func parseTableSection(m *Module, buf []byte) error {
	count, off, err := decodeU32(buf, 0)
	if err != nil {
		return fmt.Errorf("compose: table section count: %w", err)
	}
	for i := uint32(0); i < count; i++ {
		if off >= len(buf) {
			return fmt.Errorf("compose: table %d: truncated tabletype", i)
		}
		elemType := buf[off]
		raw, next, err := readLimitsRaw(buf, off+1)
		if err != nil {
			return fmt.Errorf("compose: table %d limits: %w", i, err)
		}
		off = next
		m.Tables = append(m.Tables, append([]byte{elemType}, raw...))
	}
	return nil
}

func parseMemorySection(m *Module, buf []byte) error {
	count, off, err := decodeU32(buf, 0)
	if err != nil {
		return fmt.Errorf("compose: memory section count: %w", err)
	}
	for i := uint32(0); i < count; i++ {
		raw, next, err := readLimitsRaw(buf, off)
		if err != nil {
			return fmt.Errorf("compose: memory %d limits: %w", i, err)
		}
		off = next
		m.Mems = append(m.Mems, raw)
	}
	return nil
}

func parseGlobalSection(m *Module, buf []byte) error {
	count, off, err := decodeU32(buf, 0)
	if err != nil {
		return fmt.Errorf("compose: global section count: %w", err)
	}
	for i := uint32(0); i < count; i++ {
		if off+2 > len(buf) {
			return fmt.Errorf("compose: global %d: truncated globaltype", i)
		}
		typ, mut := buf[off], buf[off+1]
		off += 2
		end, err := scanExpr(buf, off)
		if err != nil {
			return fmt.Errorf("compose: global %d init expr: %w", i, err)
		}
		init := append([]byte(nil), buf[off:end]...)
		off = end
		m.Globals = append(m.Globals, Global{Type: typ, Mut: mut, Init: init})
	}
	return nil
}

func parseExportSection(m *Module, buf []byte) error {
	count, off, err := decodeU32(buf, 0)
	if err != nil {
		return fmt.Errorf("compose: export section count: %w", err)
	}
	for i := uint32(0); i < count; i++ {
		name, next, err := readString(buf, off)
		if err != nil {
			return fmt.Errorf("compose: export %d name: %w", i, err)
		}
		off = next
		if off >= len(buf) {
			return fmt.Errorf("compose: export %d: truncated kind", i)
		}
		kind := buf[off]
		off++
		idx, next, err := decodeU32(buf, off)
		if err != nil {
			return fmt.Errorf("compose: export %d index: %w", i, err)
		}
		off = next
		m.Exports = append(m.Exports, Export{Name: name, Kind: kind, Index: idx})
	}
	return nil
}

func parseStartSection(m *Module, buf []byte) error {
	idx, _, err := decodeU32(buf, 0)
	if err != nil {
		return fmt.Errorf("compose: start section: %w", err)
	}
	m.Start = &idx
	return nil
}

func parseElementSection(m *Module, buf []byte) error {
	count, off, err := decodeU32(buf, 0)
	if err != nil {
		return fmt.Errorf("compose: element section count: %w", err)
	}
	for i := uint32(0); i < count; i++ {
		flags, next, err := decodeU32(buf, off)
		if err != nil {
			return fmt.Errorf("compose: element %d flags: %w", i, err)
		}
		off = next

		seg := ElemSegment{Flags: flags}
		switch flags {
		case 0:
			end, err := scanExpr(buf, off)
			if err != nil {
				return fmt.Errorf("compose: element %d offset: %w", i, err)
			}
			seg.Offset = append([]byte(nil), buf[off:end]...)
			off = end
		case 1:
			if off >= len(buf) {
				return fmt.Errorf("compose: element %d: truncated elemkind", i)
			}
			off++ // elemkind
		case 2:
			tableIdx, next, err := decodeU32(buf, off)
			if err != nil {
				return fmt.Errorf("compose: element %d tableidx: %w", i, err)
			}
			off = next
			seg.TableIdx = tableIdx
			end, err := scanExpr(buf, off)
			if err != nil {
				return fmt.Errorf("compose: element %d offset: %w", i, err)
			}
			seg.Offset = append([]byte(nil), buf[off:end]...)
			off = end
			if off >= len(buf) {
				return fmt.Errorf("compose: element %d: truncated elemkind", i)
			}
			off++ // elemkind
		case 3:
			if off >= len(buf) {
				return fmt.Errorf("compose: element %d: truncated elemkind", i)
			}
			off++ // elemkind
		default:
			return fmt.Errorf("compose: element %d: unsupported flags %d (expr-vector element segments are not supported)", i, flags)
		}

		fnCount, next, err := decodeU32(buf, off)
		if err != nil {
			return fmt.Errorf("compose: element %d funcidx count: %w", i, err)
		}
		off = next
		funcs := make([]uint32, fnCount)
		for j := range funcs {
			idx, next, err := decodeU32(buf, off)
			if err != nil {
				return fmt.Errorf("compose: element %d funcidx %d: %w", i, j, err)
			}
			off = next
			funcs[j] = idx
		}
		seg.Funcs = funcs
		m.Elems = append(m.Elems, seg)
	}
	return nil
}

func parseCodeSection(m *Module, buf []byte) error {
	count, off, err := decodeU32(buf, 0)
	if err != nil {
		return fmt.Errorf("compose: code section count: %w", err)
	}
	for i := uint32(0); i < count; i++ {
		bodySize, next, err := decodeU32(buf, off)
		if err != nil {
			return fmt.Errorf("compose: code %d size: %w", i, err)
		}
		off = next
		bodyEnd := off + int(bodySize)
		if bodyEnd > len(buf) {
			return fmt.Errorf("compose: code %d: body exceeds section", i)
		}

		declCount, next, err := decodeU32(buf, off)
		if err != nil {
			return fmt.Errorf("compose: code %d local decl count: %w", i, err)
		}
		off = next
		var locals []LocalDecl
		for j := uint32(0); j < declCount; j++ {
			n, next, err := decodeU32(buf, off)
			if err != nil {
				return fmt.Errorf("compose: code %d local decl %d count: %w", i, j, err)
			}
			off = next
			if off >= len(buf) {
				return fmt.Errorf("compose: code %d local decl %d: truncated type", i, j)
			}
			typ := buf[off]
			off++
			locals = append(locals, LocalDecl{Count: n, Type: typ})
		}

		body := append([]byte(nil), buf[off:bodyEnd]...)
		off = bodyEnd
		m.Code = append(m.Code, Code{Locals: locals, Body: body})
	}
	return nil
}

func parseDataSection(m *Module, buf []byte) error {
	count, off, err := decodeU32(buf, 0)
	if err != nil {
		return fmt.Errorf("compose: data section count: %w", err)
	}
	for i := uint32(0); i < count; i++ {
		flags, next, err := decodeU32(buf, off)
		if err != nil {
			return fmt.Errorf("compose: data %d flags: %w", i, err)
		}
		off = next

		seg := DataSegment{Flags: flags}
		switch flags {
		case 0:
			end, err := scanExpr(buf, off)
			if err != nil {
				return fmt.Errorf("compose: data %d offset: %w", i, err)
			}
			seg.Offset = append([]byte(nil), buf[off:end]...)
			off = end
		case 1:
			// passive, no memidx/offset
		case 2:
			memIdx, next, err := decodeU32(buf, off)
			if err != nil {
				return fmt.Errorf("compose: data %d memidx: %w", i, err)
			}
			off = next
			seg.MemIdx = memIdx
			end, err := scanExpr(buf, off)
			if err != nil {
				return fmt.Errorf("compose: data %d offset: %w", i, err)
			}
			seg.Offset = append([]byte(nil), buf[off:end]...)
			off = end
		default:
			return fmt.Errorf("compose: data %d: unsupported flags %d", i, flags)
		}

		n, next, err := decodeU32(buf, off)
		if err != nil {
			return fmt.Errorf("compose: data %d byte count: %w", i, err)
		}
		off = next
		if off+int(n) > len(buf) {
			return fmt.Errorf("compose: data %d: truncated bytes", i)
		}
		seg.Bytes = append([]byte(nil), buf[off:off+int(n)]...)
		off += int(n)
		m.Data = append(m.Data, seg)
	}
	return nil
}

// scanExpr finds the end of a constant expression (a global's init
// value, or an active element/data segment's offset), starting at
// off, returning the offset just past its terminating `end` (0x0B).
// Constant expressions never nest control structures in practice, but
// block/loop/if are still tracked defensively so a well-formed nested
// expression (as the extended-const proposal permits) still scans
// correctly.
func scanExpr(buf []byte, off int) (int, error) {
	depth := 0
	for {
		if off >= len(buf) {
			return 0, fmt.Errorf("compose: truncated constant expression")
		}
		op := buf[off]
		off++
		switch {
		case op == 0x0B:
			if depth == 0 {
				return off, nil
			}
			depth--
		case op == 0x02, op == 0x03, op == 0x04:
			n, err := blockTypeLen(buf, off)
			if err != nil {
				return 0, err
			}
			off += n
			depth++
		case op == 0x41:
			_, next, err := decodeI32(buf, off)
			if err != nil {
				return 0, err
			}
			off = next
		case op == 0x42:
			_, next, err := decodeI64(buf, off)
			if err != nil {
				return 0, err
			}
			off = next
		case op == 0x43:
			off += 4
		case op == 0x44:
			off += 8
		case op == 0x23: // global.get
			_, next, err := decodeU32(buf, off)
			if err != nil {
				return 0, err
			}
			off = next
		case op == 0xD0: // ref.null reftype
			off++
		case op == 0xD2: // ref.func
			_, next, err := decodeU32(buf, off)
			if err != nil {
				return 0, err
			}
			off = next
		case isSimpleOp(op):
			// extended-const arithmetic and similar: no immediate
		default:
			return 0, fmt.Errorf("compose: unsupported opcode 0x%02x in constant expression", op)
		}
	}
}
