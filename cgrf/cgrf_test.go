package cgrf

import (
	"encoding/binary"
	"testing"

	"github.com/colinrozzi/composite/wit"
	"github.com/stretchr/testify/require"
)

func TestRoundTripListOfMixedIntegers(t *testing.T) {
	schema := &wit.List{Type: wit.S32{}}
	v := NewList(wit.S32{}, []Value{
		NewS32(1),
		NewS32(-42),
		NewS32(1 << 20),
	})

	buf, err := Encode(v, schema, DefaultLimits())
	require.NoError(t, err)

	got, err := Decode(buf, schema, DefaultLimits())
	require.NoError(t, err)
	require.True(t, v.Equal(got))
	require.Equal(t, wit.S32{}, v.ElemType())
}

// sexprSchema builds a recursive schema equivalent to:
//
//	variant sexpr {
//	    atom(s32),
//	    list(list<sexpr>),
//	}
//
// using a SelfRef the way the parser would produce for an inline
// recursive reference.
func sexprSchema() (*wit.TypeDef, wit.Type) {
	td := &wit.TypeDef{}
	selfList := &wit.List{Type: &wit.SelfRef{Def: td}}
	td.Kind = wit.Variant{
		Cases: []wit.Case{
			{Name: "atom", Type: wit.S32{}},
			{Name: "list", Type: selfList},
		},
	}
	named := &wit.Named{Name: "sexpr", Def: td}
	return td, named
}

func atom(n int32) Value {
	p := NewS32(n)
	return NewVariant(0, &p)
}

func listOf(items ...Value) Value {
	p := NewList(nil, items)
	return NewVariant(1, &p)
}

func TestRoundTripRecursiveSExpression(t *testing.T) {
	_, schema := sexprSchema()

	// (1 (2 3) 4)-shaped tree: an outer list containing two atoms and a
	// nested list, for at least 7 nodes once expanded.
	v := listOf(atom(1), listOf(atom(2), atom(3)), atom(4))

	buf, err := Encode(v, schema, DefaultLimits())
	require.NoError(t, err)

	require.GreaterOrEqual(t, len(buf), headerSize)
	nodeCount := binary.LittleEndian.Uint32(buf[8:12])
	require.GreaterOrEqual(t, int(nodeCount), 7)

	got, err := Decode(buf, schema, DefaultLimits())
	require.NoError(t, err)
	require.True(t, v.Equal(got))
}

func TestDecodeRejectsListChildTypeMismatch(t *testing.T) {
	_, schema := sexprSchema()

	v := listOf(atom(1))
	buf, err := Encode(v, schema, DefaultLimits())
	require.NoError(t, err)

	// The encoded buffer is: node0=atom's s32 payload(1), node1=atom
	// variant, node2=list referencing node1, node3=outer list variant.
	// Corrupt node1 (the inner atom variant, referenced by the list) by
	// changing its kind byte to bool, leaving payload untouched.
	corrupted := append([]byte(nil), buf...)
	nodeOffset := headerSize
	// walk to the 2nd node (index 1)
	payloadLen := binary.LittleEndian.Uint32(corrupted[nodeOffset+4 : nodeOffset+8])
	nodeOffset += nodeHeaderSize + int(payloadLen)
	corrupted[nodeOffset] = nodeKindBool

	_, err = Decode(corrupted, schema, DefaultLimits())
	require.Error(t, err)
	abiErr, ok := err.(*AbiError)
	require.True(t, ok)
	require.Equal(t, TypeMismatch, abiErr.Kind)
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	schema := wit.S32{}
	v := NewS32(7)
	buf, err := Encode(v, schema, DefaultLimits())
	require.NoError(t, err)

	corrupted := append([]byte(nil), buf...)
	corrupted[0] ^= 0xFF

	_, err = Decode(corrupted, schema, DefaultLimits())
	require.Error(t, err)
	abiErr, ok := err.(*AbiError)
	require.True(t, ok)
	require.Equal(t, MalformedBuffer, abiErr.Kind)
}

func TestDecodeRejectsOutOfBoundsRootIndex(t *testing.T) {
	schema := wit.S32{}
	v := NewS32(7)
	buf, err := Encode(v, schema, DefaultLimits())
	require.NoError(t, err)

	corrupted := append([]byte(nil), buf...)
	binary.LittleEndian.PutUint32(corrupted[12:16], 999)

	_, err = Decode(corrupted, schema, DefaultLimits())
	require.Error(t, err)
	abiErr, ok := err.(*AbiError)
	require.True(t, ok)
	require.Equal(t, MalformedBuffer, abiErr.Kind)
}

func TestDecodeRejectsInvalidUTF8String(t *testing.T) {
	schema := wit.String{}
	v := NewString("hello")
	buf, err := Encode(v, schema, DefaultLimits())
	require.NoError(t, err)

	corrupted := append([]byte(nil), buf...)
	corrupted[len(corrupted)-1] = 0xFF

	_, err = Decode(corrupted, schema, DefaultLimits())
	require.Error(t, err)
	abiErr, ok := err.(*AbiError)
	require.True(t, ok)
	require.Equal(t, MalformedBuffer, abiErr.Kind)
}

func TestDecodeRejectsVariantTagOutOfRange(t *testing.T) {
	_, schema := sexprSchema()
	v := atom(5)
	buf, err := Encode(v, schema, DefaultLimits())
	require.NoError(t, err)

	corrupted := append([]byte(nil), buf...)
	// The buffer holds the s32 payload node followed by the variant
	// node, which is the last one emitted (root), so walk to it.
	nodeOffset := headerSize
	for {
		kind := corrupted[nodeOffset]
		payloadLen := binary.LittleEndian.Uint32(corrupted[nodeOffset+4 : nodeOffset+8])
		if kind == nodeKindVariant {
			binary.LittleEndian.PutUint32(corrupted[nodeOffset+nodeHeaderSize:], 99)
			break
		}
		nodeOffset += nodeHeaderSize + int(payloadLen)
	}

	_, err = Decode(corrupted, schema, DefaultLimits())
	require.Error(t, err)
}

func TestRoundTripRecordAndFlags(t *testing.T) {
	rec := wit.Record{Fields: []wit.Field{
		{Name: "x", Type: wit.S32{}},
		{Name: "y", Type: wit.S32{}},
	}}
	td := &wit.TypeDef{Kind: rec}
	schema := &wit.Named{Name: "point", Def: td}

	v := NewRecord([]RecordField{
		{Name: "x", Value: NewS32(3)},
		{Name: "y", Value: NewS32(4)},
	})

	buf, err := Encode(v, schema, DefaultLimits())
	require.NoError(t, err)
	got, err := Decode(buf, schema, DefaultLimits())
	require.NoError(t, err)
	require.True(t, v.Equal(got))

	flagsTd := &wit.TypeDef{Kind: wit.Flags{Flags: []wit.Flag{{Name: "a"}, {Name: "b"}, {Name: "c"}}}}
	flagsSchema := &wit.Named{Name: "perm", Def: flagsTd}
	fv := NewFlags(0b101)
	fbuf, err := Encode(fv, flagsSchema, DefaultLimits())
	require.NoError(t, err)
	fgot, err := Decode(fbuf, flagsSchema, DefaultLimits())
	require.NoError(t, err)
	require.True(t, fv.Equal(fgot))
}

func TestRoundTripOptionAndResult(t *testing.T) {
	optSchema := &wit.Option{Type: wit.String{}}
	some := func() Value { p := NewString("hi"); return NewOption(wit.String{}, &p) }()
	buf, err := Encode(some, optSchema, DefaultLimits())
	require.NoError(t, err)
	got, err := Decode(buf, optSchema, DefaultLimits())
	require.NoError(t, err)
	require.True(t, some.Equal(got))

	none := NewOption(wit.String{}, nil)
	nbuf, err := Encode(none, optSchema, DefaultLimits())
	require.NoError(t, err)
	ngot, err := Decode(nbuf, optSchema, DefaultLimits())
	require.NoError(t, err)
	require.True(t, none.Equal(ngot))

	resultSchema := &wit.Result{OK: wit.S32{}, Err: wit.String{}}
	okPayload := NewS32(10)
	okVal := NewVariant(0, &okPayload)
	rbuf, err := Encode(okVal, resultSchema, DefaultLimits())
	require.NoError(t, err)
	rgot, err := Decode(rbuf, resultSchema, DefaultLimits())
	require.NoError(t, err)
	require.True(t, okVal.Equal(rgot))
}

func TestEncodeEnforcesLimits(t *testing.T) {
	limits := DefaultLimits()
	limits.MaxArity = 2

	schema := &wit.List{Type: wit.S32{}}
	v := NewList(wit.S32{}, []Value{NewS32(1), NewS32(2), NewS32(3)})

	_, err := Encode(v, schema, limits)
	require.Error(t, err)
	abiErr, ok := err.(*AbiError)
	require.True(t, ok)
	require.Equal(t, LimitExceeded, abiErr.Kind)
}

func TestDecodeStructuralNoSchema(t *testing.T) {
	schema := &wit.List{Type: wit.S32{}}
	v := NewList(wit.S32{}, []Value{NewS32(1), NewS32(2)})

	buf, err := Encode(v, schema, DefaultLimits())
	require.NoError(t, err)

	got, err := DecodeStructural(buf, DefaultLimits())
	require.NoError(t, err)
	require.Equal(t, KindList, got.Kind())
	require.Len(t, got.List(), 2)
	require.Equal(t, int64(1), got.List()[0].Int())
}
