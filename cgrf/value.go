// Package cgrf implements the Composite GRaph Format: a schema-aware,
// graph-encoded binary representation used for every value crossing
// the host/guest boundary. It provides a [Value] tagged sum, codec
// functions ([Encode], [Decode], [DecodeStructural]), and an
// [AbiError] taxonomy for malformed input, schema mismatches, and
// resource limit violations.
package cgrf

import (
	"fmt"

	"github.com/colinrozzi/composite/wit"
)

// Kind identifies which alternative of the [Value] tagged sum a given
// Value holds.
type Kind int

const (
	KindBool Kind = iota
	KindU8
	KindU16
	KindU32
	KindU64
	KindS8
	KindS16
	KindS32
	KindS64
	KindF32
	KindF64
	KindChar
	KindString
	KindList
	KindTuple
	KindOption
	KindRecord
	KindVariant
	KindFlags
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindU8:
		return "u8"
	case KindU16:
		return "u16"
	case KindU32:
		return "u32"
	case KindU64:
		return "u64"
	case KindS8:
		return "s8"
	case KindS16:
		return "s16"
	case KindS32:
		return "s32"
	case KindS64:
		return "s64"
	case KindF32:
		return "f32"
	case KindF64:
		return "f64"
	case KindChar:
		return "char"
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindTuple:
		return "tuple"
	case KindOption:
		return "option"
	case KindRecord:
		return "record"
	case KindVariant:
		return "variant"
	case KindFlags:
		return "flags"
	}
	return "unknown"
}

// RecordField is a single named member of a [KindRecord] Value.
type RecordField struct {
	Name  string
	Value Value
}

// Value is the runtime representation of a CGRF value tree: a tagged
// sum over the primitives, [KindList], [KindTuple], [KindOption],
// [KindRecord], [KindVariant], and [KindFlags]. The zero Value is a
// KindBool false; use the New* constructors to build any other
// variant.
type Value struct {
	kind Kind

	b   bool
	u64 uint64
	i64 int64
	f32 float32
	f64 float64
	str string

	// elemType records the declared element type of a List or Option,
	// so an empty list or a None can still be encoded against a
	// schema without losing which type it is empty/absent of.
	elemType wit.Type

	list   []Value
	fields []RecordField

	tag     uint32
	payload *Value
}

// Kind returns v's tag.
func (v Value) Kind() Kind { return v.kind }

// NewBool returns a KindBool Value.
func NewBool(b bool) Value { return Value{kind: KindBool, b: b} }

// NewU8 returns a KindU8 Value.
func NewU8(n uint8) Value { return Value{kind: KindU8, u64: uint64(n)} }

// NewU16 returns a KindU16 Value.
func NewU16(n uint16) Value { return Value{kind: KindU16, u64: uint64(n)} }

// NewU32 returns a KindU32 Value.
func NewU32(n uint32) Value { return Value{kind: KindU32, u64: uint64(n)} }

// NewU64 returns a KindU64 Value.
func NewU64(n uint64) Value { return Value{kind: KindU64, u64: n} }

// NewS8 returns a KindS8 Value.
func NewS8(n int8) Value { return Value{kind: KindS8, i64: int64(n)} }

// NewS16 returns a KindS16 Value.
func NewS16(n int16) Value { return Value{kind: KindS16, i64: int64(n)} }

// NewS32 returns a KindS32 Value.
func NewS32(n int32) Value { return Value{kind: KindS32, i64: int64(n)} }

// NewS64 returns a KindS64 Value.
func NewS64(n int64) Value { return Value{kind: KindS64, i64: n} }

// NewF32 returns a KindF32 Value.
func NewF32(f float32) Value { return Value{kind: KindF32, f32: f} }

// NewF64 returns a KindF64 Value.
func NewF64(f float64) Value { return Value{kind: KindF64, f64: f} }

// NewChar returns a KindChar Value holding the Unicode scalar r.
func NewChar(r rune) Value { return Value{kind: KindChar, u64: uint64(r)} }

// NewString returns a KindString Value.
func NewString(s string) Value { return Value{kind: KindString, str: s} }

// NewList returns a KindList Value over items, each of type elemType.
// elemType is retained even when items is empty, so an empty list can
// still be encoded against a schema.
func NewList(elemType wit.Type, items []Value) Value {
	return Value{kind: KindList, elemType: elemType, list: items}
}

// NewTuple returns a KindTuple Value over items in positional order.
func NewTuple(items []Value) Value {
	return Value{kind: KindTuple, list: items}
}

// NewOption returns a KindOption Value of elemType. If v is nil, the
// result represents "none"; otherwise it represents "some(*v)".
func NewOption(elemType wit.Type, v *Value) Value {
	return Value{kind: KindOption, elemType: elemType, payload: v}
}

// NewRecord returns a KindRecord Value with the given fields, in
// declared order.
func NewRecord(fields []RecordField) Value {
	return Value{kind: KindRecord, fields: fields}
}

// NewVariant returns a KindVariant Value. tag is the 0-based index of
// the declared case; payload is nil if that case carries no data.
func NewVariant(tag uint32, payload *Value) Value {
	return Value{kind: KindVariant, tag: tag, payload: payload}
}

// NewFlags returns a KindFlags Value from a bitmask occupying bits
// 0..63.
func NewFlags(bits uint64) Value { return Value{kind: KindFlags, u64: bits} }

// Bool returns v's bool payload. It panics if v.Kind() != KindBool.
func (v Value) Bool() bool { v.mustBe(KindBool); return v.b }

// Uint returns v's unsigned integer payload, widened to uint64. It
// panics unless v.Kind() is one of KindU8, KindU16, KindU32, KindU64,
// KindChar, or KindFlags.
func (v Value) Uint() uint64 {
	switch v.kind {
	case KindU8, KindU16, KindU32, KindU64, KindChar, KindFlags:
		return v.u64
	}
	panic(fmt.Sprintf("cgrf: Value.Uint called on %s", v.kind))
}

// Int returns v's signed integer payload, widened to int64. It panics
// unless v.Kind() is one of KindS8, KindS16, KindS32, or KindS64.
func (v Value) Int() int64 {
	switch v.kind {
	case KindS8, KindS16, KindS32, KindS64:
		return v.i64
	}
	panic(fmt.Sprintf("cgrf: Value.Int called on %s", v.kind))
}

// Float32 returns v's f32 payload. It panics if v.Kind() != KindF32.
func (v Value) Float32() float32 { v.mustBe(KindF32); return v.f32 }

// Float64 returns v's f64 payload. It panics if v.Kind() != KindF64.
func (v Value) Float64() float64 { v.mustBe(KindF64); return v.f64 }

// Char returns v's Unicode scalar payload. It panics if v.Kind() != KindChar.
func (v Value) Char() rune { v.mustBe(KindChar); return rune(v.u64) }

// String returns v's string payload. It panics if v.Kind() != KindString.
func (v Value) String() string { v.mustBe(KindString); return v.str }

// List returns v's element Values. It panics unless v.Kind() is
// KindList or KindTuple.
func (v Value) List() []Value {
	if v.kind != KindList && v.kind != KindTuple {
		panic(fmt.Sprintf("cgrf: Value.List called on %s", v.kind))
	}
	return v.list
}

// ElemType returns the declared element type of a KindList or
// KindOption Value.
func (v Value) ElemType() wit.Type {
	if v.kind != KindList && v.kind != KindOption {
		panic(fmt.Sprintf("cgrf: Value.ElemType called on %s", v.kind))
	}
	return v.elemType
}

// Fields returns v's record fields in declared order. It panics if
// v.Kind() != KindRecord.
func (v Value) Fields() []RecordField { v.mustBe(KindRecord); return v.fields }

// Tag returns v's variant case index. It panics if v.Kind() != KindVariant.
func (v Value) Tag() uint32 { v.mustBe(KindVariant); return v.tag }

// Payload returns v's optional payload and whether one is present. It
// panics unless v.Kind() is KindVariant or KindOption.
func (v Value) Payload() (Value, bool) {
	if v.kind != KindVariant && v.kind != KindOption {
		panic(fmt.Sprintf("cgrf: Value.Payload called on %s", v.kind))
	}
	if v.payload == nil {
		return Value{}, false
	}
	return *v.payload, true
}

func (v Value) mustBe(k Kind) {
	if v.kind != k {
		panic(fmt.Sprintf("cgrf: Value method requires %s, called on %s", k, v.kind))
	}
}

// Equal reports whether v and o represent the same value tree. It is
// used by round-trip tests; it does not compare elemType annotations
// beyond what affects list/option identity.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindBool:
		return v.b == o.b
	case KindU8, KindU16, KindU32, KindU64, KindChar, KindFlags:
		return v.u64 == o.u64
	case KindS8, KindS16, KindS32, KindS64:
		return v.i64 == o.i64
	case KindF32:
		return v.f32 == o.f32
	case KindF64:
		return v.f64 == o.f64
	case KindString:
		return v.str == o.str
	case KindList, KindTuple:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	case KindOption:
		if (v.payload == nil) != (o.payload == nil) {
			return false
		}
		if v.payload == nil {
			return true
		}
		return v.payload.Equal(*o.payload)
	case KindRecord:
		if len(v.fields) != len(o.fields) {
			return false
		}
		for i := range v.fields {
			if v.fields[i].Name != o.fields[i].Name {
				return false
			}
			if !v.fields[i].Value.Equal(o.fields[i].Value) {
				return false
			}
		}
		return true
	case KindVariant:
		if v.tag != o.tag {
			return false
		}
		if (v.payload == nil) != (o.payload == nil) {
			return false
		}
		if v.payload == nil {
			return true
		}
		return v.payload.Equal(*o.payload)
	}
	return false
}
