package compose

import "fmt"

// remapSet bundles the per-kind index remap functions a function body
// is rewritten against. Each field is nil-safe: calling it on an
// instruction stream that never needs that kind is fine, since a body
// only invokes the fields its instructions actually reference.
type remapSet struct {
	Func   func(uint32) (uint32, error)
	Table  func(uint32) (uint32, error)
	Mem    func(uint32) (uint32, error)
	Global func(uint32) (uint32, error)
	Type   func(uint32) (uint32, error)
	Elem   func(uint32) (uint32, error)
	Data   func(uint32) (uint32, error)
}

// isSimpleOp reports whether op is a single-byte instruction with no
// immediate operand at all: control ops unreachable/nop/end/else/
// return/drop/select, ref.is_null, and the full i32/i64/f32/f64
// comparison, arithmetic, conversion and sign-extension operator range
// 0x45-0xC4, which is uniformly zero-immediate per the core spec.
func isSimpleOp(op byte) bool {
	switch op {
	case 0x00, 0x01, 0x0B, 0x05, 0x0F, 0x1A, 0x1B, 0xD1:
		return true
	}
	return op >= 0x45 && op <= 0xC4
}

// blockTypeLen returns the number of bytes the blocktype immediate
// following a block/loop/if opcode occupies, without needing to
// interpret it: 0x40 (empty) and every single-byte valtype encode in
// one byte; anything else is a signed LEB128 (s33) type index.
func blockTypeLen(buf []byte, off int) (int, error) {
	if off >= len(buf) {
		return 0, fmt.Errorf("compose: truncated blocktype at offset %d", off)
	}
	switch buf[off] {
	case 0x40, 0x7f, 0x7e, 0x7d, 0x7c, 0x7b, 0x70, 0x6f:
		return 1, nil
	}
	_, next, err := decodeI64(buf, off)
	if err != nil {
		return 0, fmt.Errorf("compose: blocktype: %w", err)
	}
	return next - off, nil
}

// walkBody rewrites one function body's instruction stream, remapping
// every call/call_indirect/return_call/return_call_indirect/
// global.get/global.set/ref.func/memory-and-data-op index through
// remaps, and copying every other instruction through byte-for-byte.
// A remap function returning an error fails the whole rewrite: no
// instruction is ever emitted with an un-remapped or guessed index.
func walkBody(body []byte, remaps remapSet) ([]byte, error) {
	out := make([]byte, 0, len(body))
	off := 0
	for off < len(body) {
		start := off
		op := body[off]
		off++

		switch {
		case isSimpleOp(op):
			out = append(out, body[start:off]...)

		case op == 0x02, op == 0x03, op == 0x04: // block, loop, if
			n, err := blockTypeLen(body, off)
			if err != nil {
				return nil, err
			}
			off += n
			out = append(out, body[start:off]...)

		case op == 0x0C, op == 0x0D: // br, br_if
			_, next, err := decodeU32(body, off)
			if err != nil {
				return nil, fmt.Errorf("compose: br/br_if labelidx: %w", err)
			}
			off = next
			out = append(out, body[start:off]...)

		case op == 0x0E: // br_table
			count, next, err := decodeU32(body, off)
			if err != nil {
				return nil, fmt.Errorf("compose: br_table count: %w", err)
			}
			off = next
			for i := uint32(0); i < count; i++ {
				_, next, err := decodeU32(body, off)
				if err != nil {
					return nil, fmt.Errorf("compose: br_table label %d: %w", i, err)
				}
				off = next
			}
			_, next, err = decodeU32(body, off) // default label
			if err != nil {
				return nil, fmt.Errorf("compose: br_table default label: %w", err)
			}
			off = next
			out = append(out, body[start:off]...)

		case op == 0x10, op == 0x12: // call, return_call
			idx, next, err := decodeU32(body, off)
			if err != nil {
				return nil, fmt.Errorf("compose: call funcidx: %w", err)
			}
			off = next
			newIdx, err := remaps.Func(idx)
			if err != nil {
				return nil, err
			}
			out = append(out, op)
			out = encodeU32(out, newIdx)

		case op == 0x11, op == 0x13: // call_indirect, return_call_indirect
			typeIdx, next, err := decodeU32(body, off)
			if err != nil {
				return nil, fmt.Errorf("compose: call_indirect typeidx: %w", err)
			}
			off = next
			tableIdx, next, err := decodeU32(body, off)
			if err != nil {
				return nil, fmt.Errorf("compose: call_indirect tableidx: %w", err)
			}
			off = next
			newType, err := remaps.Type(typeIdx)
			if err != nil {
				return nil, err
			}
			newTable, err := remaps.Table(tableIdx)
			if err != nil {
				return nil, err
			}
			out = append(out, op)
			out = encodeU32(out, newType)
			out = encodeU32(out, newTable)

		case op == 0xD2: // ref.func
			idx, next, err := decodeU32(body, off)
			if err != nil {
				return nil, fmt.Errorf("compose: ref.func funcidx: %w", err)
			}
			off = next
			newIdx, err := remaps.Func(idx)
			if err != nil {
				return nil, err
			}
			out = append(out, op)
			out = encodeU32(out, newIdx)

		case op == 0xD0: // ref.null reftype
			if off >= len(body) {
				return nil, fmt.Errorf("compose: truncated ref.null at offset %d", off)
			}
			off++
			out = append(out, body[start:off]...)

		case op == 0x1C: // select t*
			count, next, err := decodeU32(body, off)
			if err != nil {
				return nil, fmt.Errorf("compose: select vec count: %w", err)
			}
			off = next + int(count)
			if off > len(body) {
				return nil, fmt.Errorf("compose: truncated select type vector")
			}
			out = append(out, body[start:off]...)

		case op == 0x20, op == 0x21, op == 0x22: // local.get/set/tee
			_, next, err := decodeU32(body, off)
			if err != nil {
				return nil, fmt.Errorf("compose: localidx: %w", err)
			}
			off = next
			out = append(out, body[start:off]...)

		case op == 0x23, op == 0x24: // global.get, global.set
			idx, next, err := decodeU32(body, off)
			if err != nil {
				return nil, fmt.Errorf("compose: globalidx: %w", err)
			}
			off = next
			newIdx, err := remaps.Global(idx)
			if err != nil {
				return nil, err
			}
			out = append(out, op)
			out = encodeU32(out, newIdx)

		case op == 0x25, op == 0x26: // table.get, table.set
			idx, next, err := decodeU32(body, off)
			if err != nil {
				return nil, fmt.Errorf("compose: tableidx: %w", err)
			}
			off = next
			newIdx, err := remaps.Table(idx)
			if err != nil {
				return nil, err
			}
			out = append(out, op)
			out = encodeU32(out, newIdx)

		case op >= 0x28 && op <= 0x3E: // loads/stores: align:u32, offset:u32
			_, next, err := decodeU32(body, off)
			if err != nil {
				return nil, fmt.Errorf("compose: memarg align: %w", err)
			}
			off = next
			_, next, err = decodeU32(body, off)
			if err != nil {
				return nil, fmt.Errorf("compose: memarg offset: %w", err)
			}
			off = next
			out = append(out, body[start:off]...)

		case op == 0x3F, op == 0x40: // memory.size, memory.grow
			idx, next, err := decodeU32(body, off)
			if err != nil {
				return nil, fmt.Errorf("compose: memidx: %w", err)
			}
			off = next
			newIdx, err := remaps.Mem(idx)
			if err != nil {
				return nil, err
			}
			out = append(out, op)
			out = encodeU32(out, newIdx)

		case op == 0x41: // i32.const
			_, next, err := decodeI32(body, off)
			if err != nil {
				return nil, fmt.Errorf("compose: i32.const: %w", err)
			}
			off = next
			out = append(out, body[start:off]...)

		case op == 0x42: // i64.const
			_, next, err := decodeI64(body, off)
			if err != nil {
				return nil, fmt.Errorf("compose: i64.const: %w", err)
			}
			off = next
			out = append(out, body[start:off]...)

		case op == 0x43: // f32.const
			off += 4
			if off > len(body) {
				return nil, fmt.Errorf("compose: truncated f32.const")
			}
			out = append(out, body[start:off]...)

		case op == 0x44: // f64.const
			off += 8
			if off > len(body) {
				return nil, fmt.Errorf("compose: truncated f64.const")
			}
			out = append(out, body[start:off]...)

		case op == 0xFC: // bulk-memory/table prefixed ops
			n, rewritten, err := walkBulkOp(body, off, remaps)
			if err != nil {
				return nil, err
			}
			off = n
			out = append(out, byte(0xFC))
			out = append(out, rewritten...)

		default:
			return nil, fmt.Errorf("compose: unsupported opcode 0x%02x at offset %d", op, start)
		}
	}
	return out, nil
}

// walkBulkOp decodes and rewrites one 0xFC-prefixed instruction,
// returning the offset just past it and the rewritten bytes following
// the 0xFC byte itself (the subopcode plus any remapped immediates).
func walkBulkOp(body []byte, off int, remaps remapSet) (int, []byte, error) {
	sub, next, err := decodeU32(body, off)
	if err != nil {
		return 0, nil, fmt.Errorf("compose: bulk subopcode: %w", err)
	}
	off = next
	out := encodeU32(nil, sub)

	remapIdx := func(r func(uint32) (uint32, error)) error {
		idx, next, err := decodeU32(body, off)
		if err != nil {
			return fmt.Errorf("compose: bulk op immediate: %w", err)
		}
		off = next
		newIdx, err := r(idx)
		if err != nil {
			return err
		}
		out = encodeU32(out, newIdx)
		return nil
	}

	switch sub {
	case 0, 1, 2, 3, 4, 5, 6, 7: // trunc_sat variants, no immediate
	case 8: // memory.init dataidx, memidx
		if err := remapIdx(remaps.Data); err != nil {
			return 0, nil, err
		}
		if err := remapIdx(remaps.Mem); err != nil {
			return 0, nil, err
		}
	case 9: // data.drop dataidx
		if err := remapIdx(remaps.Data); err != nil {
			return 0, nil, err
		}
	case 10: // memory.copy dst, src
		if err := remapIdx(remaps.Mem); err != nil {
			return 0, nil, err
		}
		if err := remapIdx(remaps.Mem); err != nil {
			return 0, nil, err
		}
	case 11: // memory.fill memidx
		if err := remapIdx(remaps.Mem); err != nil {
			return 0, nil, err
		}
	case 12: // table.init elemidx, tableidx
		if err := remapIdx(remaps.Elem); err != nil {
			return 0, nil, err
		}
		if err := remapIdx(remaps.Table); err != nil {
			return 0, nil, err
		}
	case 13: // elem.drop elemidx
		if err := remapIdx(remaps.Elem); err != nil {
			return 0, nil, err
		}
	case 14: // table.copy dst, src
		if err := remapIdx(remaps.Table); err != nil {
			return 0, nil, err
		}
		if err := remapIdx(remaps.Table); err != nil {
			return 0, nil, err
		}
	case 15, 16, 17: // table.grow, table.size, table.fill
		if err := remapIdx(remaps.Table); err != nil {
			return 0, nil, err
		}
	default:
		return 0, nil, fmt.Errorf("compose: unsupported bulk subopcode %d", sub)
	}
	return off, out, nil
}
