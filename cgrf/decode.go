package cgrf

import (
	"encoding/binary"
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/colinrozzi/composite/wit"
)

// node is a single parsed entry from the node table: its kind byte and
// its payload, sliced directly from the input buffer without copying.
type node struct {
	kind    byte
	payload []byte
}

// Decode parses buf as a CGRF buffer and validates it against schema,
// producing a [Value] tree.
func Decode(buf []byte, schema wit.Type, limits Limits) (Value, error) {
	d, root, err := newDecoder(buf, limits)
	if err != nil {
		return Value{}, err
	}
	return d.decodeValue(root, schema, 0)
}

// DecodeStructural parses buf as a CGRF buffer with no schema, trusting
// each node's kind byte alone to determine its shape. Variant and
// option payload schemas cannot be known in this mode, so nested
// variant/option payloads decode as a bare value indexed directly by
// node, with no case-name or element-type information recovered.
func DecodeStructural(buf []byte, limits Limits) (Value, error) {
	d, root, err := newDecoder(buf, limits)
	if err != nil {
		return Value{}, err
	}
	return d.decodeStructural(root, 0)
}

type decoder struct {
	nodes  []node
	limits Limits
}

func newDecoder(buf []byte, limits Limits) (*decoder, uint32, error) {
	if len(buf) > limits.MaxBufferBytes {
		return nil, 0, limitExceeded(-1, "buffer of %d bytes exceeds MaxBufferBytes %d", len(buf), limits.MaxBufferBytes)
	}
	if len(buf) < headerSize {
		return nil, 0, malformed(-1, "buffer too short for a header")
	}
	if !bytesEqual(buf[0:4], magic[:]) {
		return nil, 0, malformed(-1, "bad magic bytes")
	}
	gotVersion := binary.LittleEndian.Uint16(buf[4:6])
	if gotVersion != version {
		return nil, 0, malformed(-1, "unsupported version %d", gotVersion)
	}
	flags := binary.LittleEndian.Uint16(buf[6:8])
	if flags != 0 {
		return nil, 0, malformed(-1, "unrecognized header flags 0x%04x", flags)
	}
	nodeCount := binary.LittleEndian.Uint32(buf[8:12])
	root := binary.LittleEndian.Uint32(buf[12:16])

	if int(nodeCount) > limits.MaxNodes {
		return nil, 0, limitExceeded(-1, "node_count %d exceeds MaxNodes %d", nodeCount, limits.MaxNodes)
	}

	nodes, err := scanNodes(buf[headerSize:], nodeCount)
	if err != nil {
		return nil, 0, err
	}
	if nodeCount > 0 && root >= nodeCount {
		return nil, 0, malformed(-1, "root_index %d out of bounds (node_count %d)", root, nodeCount)
	}
	return &decoder{nodes: nodes, limits: limits}, root, nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// scanNodes walks the node table once, slicing out each node's payload
// by its declared payload_len.
func scanNodes(buf []byte, count uint32) ([]node, error) {
	nodes := make([]node, 0, count)
	off := 0
	for i := uint32(0); i < count; i++ {
		if off+nodeHeaderSize > len(buf) {
			return nil, malformed(int(i), "truncated node header")
		}
		kind := buf[off]
		payloadLen := binary.LittleEndian.Uint32(buf[off+4 : off+8])
		off += nodeHeaderSize
		if uint64(off)+uint64(payloadLen) > uint64(len(buf)) {
			return nil, malformed(int(i), "truncated node payload")
		}
		nodes = append(nodes, node{kind: kind, payload: buf[off : off+int(payloadLen)]})
		off += int(payloadLen)
	}
	return nodes, nil
}

func (d *decoder) nodeAt(idx uint32, ni int) (node, error) {
	if int(idx) >= len(d.nodes) {
		return node{}, malformed(ni, "node index %d out of bounds (%d nodes)", idx, len(d.nodes))
	}
	return d.nodes[idx], nil
}

func (d *decoder) checkDepth(depth, ni int) error {
	if depth > d.limits.MaxDepth {
		return limitExceeded(ni, "recursion depth exceeds MaxDepth %d", d.limits.MaxDepth)
	}
	return nil
}

func readIndexList(payload []byte, ni int, limits Limits) ([]uint32, error) {
	if len(payload) < 4 {
		return nil, malformed(ni, "truncated index list")
	}
	count := binary.LittleEndian.Uint32(payload)
	if int(count) > limits.MaxArity {
		return nil, limitExceeded(ni, "arity %d exceeds MaxArity %d", count, limits.MaxArity)
	}
	want := 4 + 4*int(count)
	if len(payload) != want {
		return nil, malformed(ni, "index list payload length %d, expected %d", len(payload), want)
	}
	out := make([]uint32, count)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(payload[4+4*i:])
	}
	return out, nil
}

func (d *decoder) decodeValue(idx uint32, schema wit.Type, depth int) (Value, error) {
	ni := int(idx)
	if err := d.checkDepth(depth, ni); err != nil {
		return Value{}, err
	}
	n, err := d.nodeAt(idx, ni)
	if err != nil {
		return Value{}, err
	}

	typ, kind, err := resolveSchema(schema)
	if err != nil {
		return Value{}, err
	}

	if kind != nil {
		if cases, ok := casesOf(kind); ok {
			return d.decodeVariantLike(n, ni, cases, depth)
		}
		switch k := kind.(type) {
		case wit.Record:
			return d.decodeRecord(n, ni, k, depth)
		case wit.Flags:
			return d.decodeFlags(n, ni, k)
		}
		return Value{}, malformed(ni, "unsupported type-def kind in schema")
	}

	switch t := typ.(type) {
	case wit.Bool:
		if n.kind != nodeKindBool {
			return Value{}, typeMismatch(ni, "bool", nodeKindName(n.kind))
		}
		if len(n.payload) != 1 {
			return Value{}, malformed(ni, "bad bool payload length")
		}
		return NewBool(n.payload[0] != 0), nil

	case wit.U8:
		return d.decodeUint(n, ni, nodeKindU8, "u8", 1, NewU8Wrap)
	case wit.U16:
		return d.decodeUint(n, ni, nodeKindU16, "u16", 2, NewU16Wrap)
	case wit.U32:
		return d.decodeUint(n, ni, nodeKindU32, "u32", 4, NewU32Wrap)
	case wit.U64:
		return d.decodeUint(n, ni, nodeKindU64, "u64", 8, NewU64)

	case wit.S8:
		return d.decodeInt(n, ni, nodeKindS8, "s8", 1, func(x int64) Value { return NewS8(int8(x)) })
	case wit.S16:
		return d.decodeInt(n, ni, nodeKindS16, "s16", 2, func(x int64) Value { return NewS16(int16(x)) })
	case wit.S32:
		return d.decodeInt(n, ni, nodeKindS32, "s32", 4, func(x int64) Value { return NewS32(int32(x)) })
	case wit.S64:
		return d.decodeInt(n, ni, nodeKindS64, "s64", 8, NewS64)

	case wit.F32:
		if n.kind != nodeKindF32 {
			return Value{}, typeMismatch(ni, "f32", nodeKindName(n.kind))
		}
		if len(n.payload) != 4 {
			return Value{}, malformed(ni, "bad f32 payload length")
		}
		return NewF32(math.Float32frombits(binary.LittleEndian.Uint32(n.payload))), nil

	case wit.F64:
		if n.kind != nodeKindF64 {
			return Value{}, typeMismatch(ni, "f64", nodeKindName(n.kind))
		}
		if len(n.payload) != 8 {
			return Value{}, malformed(ni, "bad f64 payload length")
		}
		return NewF64(math.Float64frombits(binary.LittleEndian.Uint64(n.payload))), nil

	case wit.Char:
		if n.kind != nodeKindChar {
			return Value{}, typeMismatch(ni, "char", nodeKindName(n.kind))
		}
		if len(n.payload) != 4 {
			return Value{}, malformed(ni, "bad char payload length")
		}
		r := rune(binary.LittleEndian.Uint32(n.payload))
		if !utf8.ValidRune(r) {
			return Value{}, malformed(ni, "char payload is not a valid Unicode scalar value")
		}
		return NewChar(r), nil

	case wit.String:
		if n.kind != nodeKindString {
			return Value{}, typeMismatch(ni, "string", nodeKindName(n.kind))
		}
		if len(n.payload) > d.limits.MaxStringBytes {
			return Value{}, limitExceeded(ni, "string of %d bytes exceeds MaxStringBytes %d", len(n.payload), d.limits.MaxStringBytes)
		}
		if !utf8.Valid(n.payload) {
			return Value{}, malformed(ni, "string payload is not valid UTF-8")
		}
		return NewString(string(n.payload)), nil

	case *wit.List:
		if n.kind != nodeKindList {
			return Value{}, typeMismatch(ni, "list", nodeKindName(n.kind))
		}
		return d.decodeList(n, ni, t.Type, depth)

	case *wit.Tuple:
		if n.kind != nodeKindTuple {
			return Value{}, typeMismatch(ni, "tuple", nodeKindName(n.kind))
		}
		return d.decodeTuple(n, ni, t.Types, depth)

	case *wit.Option:
		if n.kind != nodeKindOption {
			return Value{}, typeMismatch(ni, "option", nodeKindName(n.kind))
		}
		return d.decodeOption(n, ni, t.Type, depth)

	case *wit.Result:
		return d.decodeResult(n, ni, t, depth)
	}

	return Value{}, malformed(ni, "unsupported schema type")
}

func (d *decoder) decodeUint(n node, ni int, wantNodeKind byte, name string, width int, wrap func(uint64) Value) (Value, error) {
	if n.kind != wantNodeKind {
		return Value{}, typeMismatch(ni, name, nodeKindName(n.kind))
	}
	if len(n.payload) != width {
		return Value{}, malformed(ni, "bad %s payload length", name)
	}
	var x uint64
	for i := 0; i < width; i++ {
		x |= uint64(n.payload[i]) << (8 * i)
	}
	return wrap(x), nil
}

func (d *decoder) decodeInt(n node, ni int, wantNodeKind byte, name string, width int, wrap func(int64) Value) (Value, error) {
	if n.kind != wantNodeKind {
		return Value{}, typeMismatch(ni, name, nodeKindName(n.kind))
	}
	if len(n.payload) != width {
		return Value{}, malformed(ni, "bad %s payload length", name)
	}
	var x uint64
	for i := 0; i < width; i++ {
		x |= uint64(n.payload[i]) << (8 * i)
	}
	signBit := uint64(1) << (8*width - 1)
	if x&signBit != 0 {
		x |= ^uint64(0) << (8 * width)
	}
	return wrap(int64(x)), nil
}

// NewU8Wrap, NewU16Wrap, NewU32Wrap adapt the narrower New* constructors
// to the uint64 signature [decodeUint] requires.
func NewU8Wrap(x uint64) Value  { return NewU8(uint8(x)) }
func NewU16Wrap(x uint64) Value { return NewU16(uint16(x)) }
func NewU32Wrap(x uint64) Value { return NewU32(uint32(x)) }

func (d *decoder) decodeList(n node, ni int, elemType wit.Type, depth int) (Value, error) {
	indices, err := readIndexList(n.payload, ni, d.limits)
	if err != nil {
		return Value{}, err
	}
	items := make([]Value, len(indices))
	for i, idx := range indices {
		v, err := d.decodeValue(idx, elemType, depth+1)
		if err != nil {
			return Value{}, err
		}
		items[i] = v
	}
	return NewList(elemType, items), nil
}

func (d *decoder) decodeTuple(n node, ni int, types []wit.Type, depth int) (Value, error) {
	indices, err := readIndexList(n.payload, ni, d.limits)
	if err != nil {
		return Value{}, err
	}
	if len(indices) != len(types) {
		return Value{}, malformed(ni, "tuple has %d elements, schema declares %d", len(indices), len(types))
	}
	items := make([]Value, len(indices))
	for i, idx := range indices {
		v, err := d.decodeValue(idx, types[i], depth+1)
		if err != nil {
			return Value{}, err
		}
		items[i] = v
	}
	return NewTuple(items), nil
}

func (d *decoder) decodeOption(n node, ni int, elemType wit.Type, depth int) (Value, error) {
	if len(n.payload) < 1 {
		return Value{}, malformed(ni, "truncated option payload")
	}
	if n.payload[0] == 0 {
		return NewOption(elemType, nil), nil
	}
	if len(n.payload) != 5 {
		return Value{}, malformed(ni, "bad option payload length")
	}
	idx := binary.LittleEndian.Uint32(n.payload[1:])
	v, err := d.decodeValue(idx, elemType, depth+1)
	if err != nil {
		return Value{}, err
	}
	return NewOption(elemType, &v), nil
}

func (d *decoder) decodeResult(n node, ni int, t *wit.Result, depth int) (Value, error) {
	if n.kind != nodeKindVariant {
		return Value{}, typeMismatch(ni, "result", nodeKindName(n.kind))
	}
	tag, hasPayload, payloadIdx, err := readVariantHeader(n.payload, ni)
	if err != nil {
		return Value{}, err
	}
	var payloadType wit.Type
	switch tag {
	case 0:
		payloadType = t.OK
	case 1:
		payloadType = t.Err
	default:
		return Value{}, typeMismatch(ni, "result tag 0 or 1", fmt.Sprintf("tag %d", tag))
	}
	return d.decodeVariantPayload(ni, tag, hasPayload, payloadIdx, payloadType, depth)
}

func (d *decoder) decodeVariantLike(n node, ni int, cases []variantCase, depth int) (Value, error) {
	if n.kind != nodeKindVariant {
		return Value{}, typeMismatch(ni, "variant", nodeKindName(n.kind))
	}
	tag, hasPayload, payloadIdx, err := readVariantHeader(n.payload, ni)
	if err != nil {
		return Value{}, err
	}
	if int(tag) >= len(cases) {
		return Value{}, typeMismatch(ni, fmt.Sprintf("variant tag below %d", len(cases)), fmt.Sprintf("tag %d", tag))
	}
	return d.decodeVariantPayload(ni, tag, hasPayload, payloadIdx, cases[tag].Type, depth)
}

func readVariantHeader(payload []byte, ni int) (tag uint32, hasPayload bool, payloadIdx uint32, err error) {
	if len(payload) < 5 {
		return 0, false, 0, malformed(ni, "truncated variant payload")
	}
	tag = binary.LittleEndian.Uint32(payload)
	switch payload[4] {
	case 0:
		if len(payload) != 5 {
			return 0, false, 0, malformed(ni, "bad variant payload length")
		}
		return tag, false, 0, nil
	case 1:
		if len(payload) != 9 {
			return 0, false, 0, malformed(ni, "bad variant payload length")
		}
		return tag, true, binary.LittleEndian.Uint32(payload[5:]), nil
	}
	return 0, false, 0, malformed(ni, "bad variant presence flag")
}

func (d *decoder) decodeVariantPayload(ni int, tag uint32, hasPayload bool, payloadIdx uint32, payloadType wit.Type, depth int) (Value, error) {
	if hasPayload != (payloadType != nil) {
		return Value{}, typeMismatch(ni, "variant payload presence matching schema", "disagreeing presence flag")
	}
	if !hasPayload {
		return NewVariant(tag, nil), nil
	}
	v, err := d.decodeValue(payloadIdx, payloadType, depth+1)
	if err != nil {
		return Value{}, err
	}
	return NewVariant(tag, &v), nil
}

func (d *decoder) decodeRecord(n node, ni int, rec wit.Record, depth int) (Value, error) {
	if n.kind != nodeKindRecord {
		return Value{}, typeMismatch(ni, "record", nodeKindName(n.kind))
	}
	indices, err := readIndexList(n.payload, ni, d.limits)
	if err != nil {
		return Value{}, err
	}
	if len(indices) != len(rec.Fields) {
		return Value{}, malformed(ni, "record has %d fields, schema declares %d", len(indices), len(rec.Fields))
	}
	fields := make([]RecordField, len(indices))
	for i, idx := range indices {
		v, err := d.decodeValue(idx, rec.Fields[i].Type, depth+1)
		if err != nil {
			return Value{}, err
		}
		fields[i] = RecordField{Name: rec.Fields[i].Name, Value: v}
	}
	return NewRecord(fields), nil
}

func (d *decoder) decodeFlags(n node, ni int, fl wit.Flags) (Value, error) {
	if n.kind != nodeKindFlags {
		return Value{}, typeMismatch(ni, "flags", nodeKindName(n.kind))
	}
	if len(n.payload) != 8 {
		return Value{}, malformed(ni, "bad flags payload length")
	}
	bits := binary.LittleEndian.Uint64(n.payload)
	if len(fl.Flags) < 64 && bits>>uint(len(fl.Flags)) != 0 {
		return Value{}, malformed(ni, "flags value sets a bit beyond the %d declared flags", len(fl.Flags))
	}
	return NewFlags(bits), nil
}

// decodeStructural decodes a node using only its wire kind byte, with
// no schema to check it against. Compound nodes recurse the same way;
// a variant or option payload, lacking a known element type, decodes
// as a Value indexed straight by node without tracking the
// corresponding wit.Type.
func (d *decoder) decodeStructural(idx uint32, depth int) (Value, error) {
	ni := int(idx)
	if err := d.checkDepth(depth, ni); err != nil {
		return Value{}, err
	}
	n, err := d.nodeAt(idx, ni)
	if err != nil {
		return Value{}, err
	}

	switch n.kind {
	case nodeKindBool:
		if len(n.payload) != 1 {
			return Value{}, malformed(ni, "bad bool payload length")
		}
		return NewBool(n.payload[0] != 0), nil
	case nodeKindU8, nodeKindU16, nodeKindU32, nodeKindU64:
		width := map[byte]int{nodeKindU8: 1, nodeKindU16: 2, nodeKindU32: 4, nodeKindU64: 8}[n.kind]
		if len(n.payload) != width {
			return Value{}, malformed(ni, "bad unsigned integer payload length")
		}
		var x uint64
		for i := 0; i < width; i++ {
			x |= uint64(n.payload[i]) << (8 * i)
		}
		switch n.kind {
		case nodeKindU8:
			return NewU8(uint8(x)), nil
		case nodeKindU16:
			return NewU16(uint16(x)), nil
		case nodeKindU32:
			return NewU32(uint32(x)), nil
		default:
			return NewU64(x), nil
		}
	case nodeKindS8, nodeKindS16, nodeKindS32, nodeKindS64:
		width := map[byte]int{nodeKindS8: 1, nodeKindS16: 2, nodeKindS32: 4, nodeKindS64: 8}[n.kind]
		if len(n.payload) != width {
			return Value{}, malformed(ni, "bad signed integer payload length")
		}
		var x uint64
		for i := 0; i < width; i++ {
			x |= uint64(n.payload[i]) << (8 * i)
		}
		signBit := uint64(1) << (8*width - 1)
		if x&signBit != 0 {
			x |= ^uint64(0) << (8 * width)
		}
		switch n.kind {
		case nodeKindS8:
			return NewS8(int8(x)), nil
		case nodeKindS16:
			return NewS16(int16(x)), nil
		case nodeKindS32:
			return NewS32(int32(x)), nil
		default:
			return NewS64(int64(x)), nil
		}
	case nodeKindF32:
		if len(n.payload) != 4 {
			return Value{}, malformed(ni, "bad f32 payload length")
		}
		return NewF32(math.Float32frombits(binary.LittleEndian.Uint32(n.payload))), nil
	case nodeKindF64:
		if len(n.payload) != 8 {
			return Value{}, malformed(ni, "bad f64 payload length")
		}
		return NewF64(math.Float64frombits(binary.LittleEndian.Uint64(n.payload))), nil
	case nodeKindChar:
		if len(n.payload) != 4 {
			return Value{}, malformed(ni, "bad char payload length")
		}
		r := rune(binary.LittleEndian.Uint32(n.payload))
		if !utf8.ValidRune(r) {
			return Value{}, malformed(ni, "char payload is not a valid Unicode scalar value")
		}
		return NewChar(r), nil
	case nodeKindString:
		if len(n.payload) > d.limits.MaxStringBytes {
			return Value{}, limitExceeded(ni, "string of %d bytes exceeds MaxStringBytes %d", len(n.payload), d.limits.MaxStringBytes)
		}
		if !utf8.Valid(n.payload) {
			return Value{}, malformed(ni, "string payload is not valid UTF-8")
		}
		return NewString(string(n.payload)), nil
	case nodeKindList, nodeKindTuple:
		indices, err := readIndexList(n.payload, ni, d.limits)
		if err != nil {
			return Value{}, err
		}
		items := make([]Value, len(indices))
		for i, idx := range indices {
			v, err := d.decodeStructural(idx, depth+1)
			if err != nil {
				return Value{}, err
			}
			items[i] = v
		}
		if n.kind == nodeKindList {
			return NewList(nil, items), nil
		}
		return NewTuple(items), nil
	case nodeKindOption:
		if len(n.payload) < 1 {
			return Value{}, malformed(ni, "truncated option payload")
		}
		if n.payload[0] == 0 {
			return NewOption(nil, nil), nil
		}
		if len(n.payload) != 5 {
			return Value{}, malformed(ni, "bad option payload length")
		}
		v, err := d.decodeStructural(binary.LittleEndian.Uint32(n.payload[1:]), depth+1)
		if err != nil {
			return Value{}, err
		}
		return NewOption(nil, &v), nil
	case nodeKindVariant:
		tag, hasPayload, payloadIdx, err := readVariantHeader(n.payload, ni)
		if err != nil {
			return Value{}, err
		}
		if !hasPayload {
			return NewVariant(tag, nil), nil
		}
		v, err := d.decodeStructural(payloadIdx, depth+1)
		if err != nil {
			return Value{}, err
		}
		return NewVariant(tag, &v), nil
	case nodeKindRecord:
		indices, err := readIndexList(n.payload, ni, d.limits)
		if err != nil {
			return Value{}, err
		}
		fields := make([]RecordField, len(indices))
		for i, idx := range indices {
			v, err := d.decodeStructural(idx, depth+1)
			if err != nil {
				return Value{}, err
			}
			fields[i] = RecordField{Value: v}
		}
		return NewRecord(fields), nil
	case nodeKindFlags:
		if len(n.payload) != 8 {
			return Value{}, malformed(ni, "bad flags payload length")
		}
		return NewFlags(binary.LittleEndian.Uint64(n.payload)), nil
	}
	return Value{}, malformed(ni, "unrecognized node kind 0x%02x", n.kind)
}
