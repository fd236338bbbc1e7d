package cgrf

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/colinrozzi/composite/wit"
)

// Encode serializes v into a CGRF buffer, validating it against schema
// as it goes. The arena is built bottom-up: every child node is
// appended and its index recorded before its parent is emitted, so the
// root node is always the last entry in the node table.
func Encode(v Value, schema wit.Type, limits Limits) ([]byte, error) {
	e := &encoder{limits: limits}
	root, err := e.encodeValue(v, schema, 0)
	if err != nil {
		return nil, err
	}
	return e.finish(root)
}

type encoder struct {
	limits Limits
	nodes  bytes.Buffer
	count  uint32
}

func (e *encoder) finish(root uint32) ([]byte, error) {
	var out bytes.Buffer
	out.Write(magic[:])
	binary.Write(&out, binary.LittleEndian, version)
	binary.Write(&out, binary.LittleEndian, uint16(0)) // flags
	binary.Write(&out, binary.LittleEndian, e.count)
	binary.Write(&out, binary.LittleEndian, root)
	out.Write(e.nodes.Bytes())

	if out.Len() > e.limits.MaxBufferBytes {
		return nil, limitExceeded(-1, "encoded buffer is %d bytes, exceeds MaxBufferBytes %d", out.Len(), e.limits.MaxBufferBytes)
	}
	return out.Bytes(), nil
}

// emit appends a node header and payload to the arena and returns its
// index.
func (e *encoder) emit(kind byte, payload []byte) (uint32, error) {
	if int(e.count)+1 > e.limits.MaxNodes {
		return 0, limitExceeded(-1, "node count exceeds MaxNodes %d", e.limits.MaxNodes)
	}
	if len(payload) > math.MaxUint32 {
		return 0, limitExceeded(-1, "node payload too large")
	}
	idx := e.count
	e.count++

	e.nodes.WriteByte(kind)
	e.nodes.WriteByte(0) // flags
	e.nodes.Write([]byte{0, 0})
	binary.Write(&e.nodes, binary.LittleEndian, uint32(len(payload)))
	e.nodes.Write(payload)
	return idx, nil
}

func (e *encoder) checkDepth(depth int) error {
	if depth > e.limits.MaxDepth {
		return limitExceeded(-1, "recursion depth exceeds MaxDepth %d", e.limits.MaxDepth)
	}
	return nil
}

func (e *encoder) encodeValue(v Value, schema wit.Type, depth int) (uint32, error) {
	if err := e.checkDepth(depth); err != nil {
		return 0, err
	}

	typ, kind, err := resolveSchema(schema)
	if err != nil {
		return 0, err
	}

	if kind != nil {
		if cases, ok := casesOf(kind); ok {
			return e.encodeVariantLike(v, cases, depth)
		}
		switch k := kind.(type) {
		case wit.Record:
			return e.encodeRecord(v, k, depth)
		case wit.Flags:
			return e.encodeFlags(v, k)
		}
		return 0, malformed(-1, "unsupported type-def kind in schema")
	}

	switch t := typ.(type) {
	case wit.Bool:
		if v.Kind() != KindBool {
			return 0, typeMismatch(-1, "bool", v.Kind().String())
		}
		b := byte(0)
		if v.Bool() {
			b = 1
		}
		return e.emit(nodeKindBool, []byte{b})

	case wit.U8:
		return e.encodeUint(v, KindU8, nodeKindU8, 1)
	case wit.U16:
		return e.encodeUint(v, KindU16, nodeKindU16, 2)
	case wit.U32:
		return e.encodeUint(v, KindU32, nodeKindU32, 4)
	case wit.U64:
		return e.encodeUint(v, KindU64, nodeKindU64, 8)
	case wit.S8:
		return e.encodeInt(v, KindS8, nodeKindS8, 1)
	case wit.S16:
		return e.encodeInt(v, KindS16, nodeKindS16, 2)
	case wit.S32:
		return e.encodeInt(v, KindS32, nodeKindS32, 4)
	case wit.S64:
		return e.encodeInt(v, KindS64, nodeKindS64, 8)

	case wit.F32:
		if v.Kind() != KindF32 {
			return 0, typeMismatch(-1, "f32", v.Kind().String())
		}
		payload := make([]byte, 4)
		binary.LittleEndian.PutUint32(payload, math.Float32bits(v.Float32()))
		return e.emit(nodeKindF32, payload)

	case wit.F64:
		if v.Kind() != KindF64 {
			return 0, typeMismatch(-1, "f64", v.Kind().String())
		}
		payload := make([]byte, 8)
		binary.LittleEndian.PutUint64(payload, math.Float64bits(v.Float64()))
		return e.emit(nodeKindF64, payload)

	case wit.Char:
		if v.Kind() != KindChar {
			return 0, typeMismatch(-1, "char", v.Kind().String())
		}
		payload := make([]byte, 4)
		binary.LittleEndian.PutUint32(payload, uint32(v.Char()))
		return e.emit(nodeKindChar, payload)

	case wit.String:
		if v.Kind() != KindString {
			return 0, typeMismatch(-1, "string", v.Kind().String())
		}
		s := v.String()
		if !utf8.ValidString(s) {
			return 0, malformed(-1, "string value is not valid UTF-8")
		}
		if len(s) > e.limits.MaxStringBytes {
			return 0, limitExceeded(-1, "string of %d bytes exceeds MaxStringBytes %d", len(s), e.limits.MaxStringBytes)
		}
		return e.emit(nodeKindString, []byte(s))

	case *wit.List:
		if v.Kind() != KindList {
			return 0, typeMismatch(-1, "list", v.Kind().String())
		}
		return e.encodeList(v, t.Type, depth)

	case *wit.Tuple:
		if v.Kind() != KindTuple {
			return 0, typeMismatch(-1, "tuple", v.Kind().String())
		}
		return e.encodeTuple(v, t.Types, depth)

	case *wit.Option:
		if v.Kind() != KindOption {
			return 0, typeMismatch(-1, "option", v.Kind().String())
		}
		return e.encodeOption(v, t.Type, depth)

	case *wit.Result:
		return e.encodeResult(v, t, depth)
	}

	return 0, malformed(-1, "unsupported schema type")
}

func (e *encoder) encodeUint(v Value, wantKind Kind, nodeKind byte, width int) (uint32, error) {
	if v.Kind() != wantKind {
		return 0, typeMismatch(-1, wantKind.String(), v.Kind().String())
	}
	payload := make([]byte, width)
	n := v.Uint()
	for i := 0; i < width; i++ {
		payload[i] = byte(n >> (8 * i))
	}
	return e.emit(nodeKind, payload)
}

func (e *encoder) encodeInt(v Value, wantKind Kind, nodeKind byte, width int) (uint32, error) {
	if v.Kind() != wantKind {
		return 0, typeMismatch(-1, wantKind.String(), v.Kind().String())
	}
	payload := make([]byte, width)
	n := uint64(v.Int())
	for i := 0; i < width; i++ {
		payload[i] = byte(n >> (8 * i))
	}
	return e.emit(nodeKind, payload)
}

func (e *encoder) encodeList(v Value, elemType wit.Type, depth int) (uint32, error) {
	items := v.List()
	if len(items) > e.limits.MaxArity {
		return 0, limitExceeded(-1, "list of %d elements exceeds MaxArity %d", len(items), e.limits.MaxArity)
	}
	indices := make([]uint32, len(items))
	for i, item := range items {
		idx, err := e.encodeValue(item, elemType, depth+1)
		if err != nil {
			return 0, err
		}
		indices[i] = idx
	}
	return e.emit(nodeKindList, encodeIndexList(indices))
}

func (e *encoder) encodeTuple(v Value, types []wit.Type, depth int) (uint32, error) {
	items := v.List()
	if len(items) > e.limits.MaxArity {
		return 0, limitExceeded(-1, "tuple of %d elements exceeds MaxArity %d", len(items), e.limits.MaxArity)
	}
	if len(items) != len(types) {
		return 0, malformed(-1, "tuple has %d elements, schema declares %d", len(items), len(types))
	}
	indices := make([]uint32, len(items))
	for i, item := range items {
		idx, err := e.encodeValue(item, types[i], depth+1)
		if err != nil {
			return 0, err
		}
		indices[i] = idx
	}
	return e.emit(nodeKindTuple, encodeIndexList(indices))
}

func (e *encoder) encodeOption(v Value, elemType wit.Type, depth int) (uint32, error) {
	payload, ok := v.Payload()
	if !ok {
		return e.emit(nodeKindOption, []byte{0})
	}
	idx, err := e.encodeValue(payload, elemType, depth+1)
	if err != nil {
		return 0, err
	}
	out := make([]byte, 5)
	out[0] = 1
	binary.LittleEndian.PutUint32(out[1:], idx)
	return e.emit(nodeKindOption, out)
}

// encodeResult treats result<ok,err> as a two-case variant: case 0 is
// ok, case 1 is err.
func (e *encoder) encodeResult(v Value, t *wit.Result, depth int) (uint32, error) {
	if v.Kind() != KindVariant {
		return 0, typeMismatch(-1, "result", v.Kind().String())
	}
	var payloadType wit.Type
	switch v.Tag() {
	case 0:
		payloadType = t.OK
	case 1:
		payloadType = t.Err
	default:
		return 0, typeMismatch(-1, "result tag 0 or 1", fmt.Sprintf("tag %d", v.Tag()))
	}
	return e.encodeVariantCase(v, payloadType, depth)
}

func (e *encoder) encodeVariantLike(v Value, cases []variantCase, depth int) (uint32, error) {
	if v.Kind() != KindVariant {
		return 0, typeMismatch(-1, "variant", v.Kind().String())
	}
	if int(v.Tag()) >= len(cases) {
		return 0, typeMismatch(-1, fmt.Sprintf("variant tag below %d", len(cases)), fmt.Sprintf("tag %d", v.Tag()))
	}
	return e.encodeVariantCase(v, cases[v.Tag()].Type, depth)
}

func (e *encoder) encodeVariantCase(v Value, payloadType wit.Type, depth int) (uint32, error) {
	payload, hasPayload := v.Payload()
	if hasPayload != (payloadType != nil) {
		return 0, typeMismatch(-1, "variant payload presence matching schema", "disagreeing presence flag")
	}
	out := make([]byte, 4, 9)
	binary.LittleEndian.PutUint32(out, v.Tag())
	if !hasPayload {
		out = append(out, 0)
		return e.emit(nodeKindVariant, out)
	}
	idx, err := e.encodeValue(payload, payloadType, depth+1)
	if err != nil {
		return 0, err
	}
	out = append(out, 1)
	idxBytes := make([]byte, 4)
	binary.LittleEndian.PutUint32(idxBytes, idx)
	out = append(out, idxBytes...)
	return e.emit(nodeKindVariant, out)
}

func (e *encoder) encodeRecord(v Value, rec wit.Record, depth int) (uint32, error) {
	if v.Kind() != KindRecord {
		return 0, typeMismatch(-1, "record", v.Kind().String())
	}
	fields := v.Fields()
	if len(fields) > e.limits.MaxArity {
		return 0, limitExceeded(-1, "record of %d fields exceeds MaxArity %d", len(fields), e.limits.MaxArity)
	}
	if len(fields) != len(rec.Fields) {
		return 0, malformed(-1, "record has %d fields, schema declares %d", len(fields), len(rec.Fields))
	}
	indices := make([]uint32, len(fields))
	for i, schemaField := range rec.Fields {
		if fields[i].Name != schemaField.Name {
			return 0, malformed(-1, "record field %d is %q, schema declares %q", i, fields[i].Name, schemaField.Name)
		}
		idx, err := e.encodeValue(fields[i].Value, schemaField.Type, depth+1)
		if err != nil {
			return 0, err
		}
		indices[i] = idx
	}
	return e.emit(nodeKindRecord, encodeIndexList(indices))
}

func (e *encoder) encodeFlags(v Value, fl wit.Flags) (uint32, error) {
	if v.Kind() != KindFlags {
		return 0, typeMismatch(-1, "flags", v.Kind().String())
	}
	if len(fl.Flags) > 64 {
		return 0, malformed(-1, "flags type declares %d flags, limit is 64", len(fl.Flags))
	}
	payload := make([]byte, 8)
	binary.LittleEndian.PutUint64(payload, v.Uint())
	return e.emit(nodeKindFlags, payload)
}

func encodeIndexList(indices []uint32) []byte {
	out := make([]byte, 4+4*len(indices))
	binary.LittleEndian.PutUint32(out, uint32(len(indices)))
	for i, idx := range indices {
		binary.LittleEndian.PutUint32(out[4+4*i:], idx)
	}
	return out
}
