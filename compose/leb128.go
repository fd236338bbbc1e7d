package compose

import "fmt"

// decodeU32 reads an unsigned LEB128 value from buf starting at off,
// returning the value and the offset just past it. Mirrors
// tetratelabs-wazero's wasm/leb128.DecodeUint32 byte-for-byte, rewritten
// against a plain []byte/offset pair instead of an io.ByteReader since
// the section walker already has the whole module buffered.
func decodeU32(buf []byte, off int) (uint32, int, error) {
	var result uint32
	var shift uint
	for {
		if off >= len(buf) {
			return 0, 0, fmt.Errorf("compose: truncated LEB128 u32 at offset %d", off)
		}
		b := buf[off]
		off++
		if shift == 28 && b&0xf0 != 0 && b&0xf0 != 0x10 {
			return 0, 0, fmt.Errorf("compose: LEB128 u32 overflow at offset %d", off)
		}
		result |= uint32(b&0x7f) << shift
		if b&0x80 == 0 {
			break
		}
		shift += 7
		if shift >= 35 {
			return 0, 0, fmt.Errorf("compose: LEB128 u32 too long at offset %d", off)
		}
	}
	return result, off, nil
}

// decodeI32 reads a signed LEB128 value (used by i32.const).
func decodeI32(buf []byte, off int) (int32, int, error) {
	var result int64
	var shift uint
	var b byte
	start := off
	for {
		if off >= len(buf) {
			return 0, 0, fmt.Errorf("compose: truncated LEB128 i32 at offset %d", start)
		}
		b = buf[off]
		off++
		result |= int64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			break
		}
		if shift >= 35 {
			return 0, 0, fmt.Errorf("compose: LEB128 i32 too long at offset %d", start)
		}
	}
	if shift < 32 && b&0x40 != 0 {
		result |= -1 << shift
	}
	return int32(result), off, nil
}

// decodeI64 reads a signed LEB128 value (used by i64.const).
func decodeI64(buf []byte, off int) (int64, int, error) {
	var result int64
	var shift uint
	var b byte
	start := off
	for {
		if off >= len(buf) {
			return 0, 0, fmt.Errorf("compose: truncated LEB128 i64 at offset %d", start)
		}
		b = buf[off]
		off++
		result |= int64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			break
		}
		if shift >= 70 {
			return 0, 0, fmt.Errorf("compose: LEB128 i64 too long at offset %d", start)
		}
	}
	if shift < 64 && b&0x40 != 0 {
		result |= -1 << shift
	}
	return result, off, nil
}

// encodeU32 appends v to dst as unsigned LEB128, matching
// leb128.EncodeUint32's byte layout.
func encodeU32(dst []byte, v uint32) []byte {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			dst = append(dst, b|0x80)
		} else {
			dst = append(dst, b)
			return dst
		}
	}
}
