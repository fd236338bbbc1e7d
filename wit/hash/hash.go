// Package hash computes canonical SHA-256 Merkle hashes of WIT+ types,
// functions, and interfaces, per the structural-for-types,
// nominal-for-bindings scheme: two types with identical shape hash
// identically regardless of what they are named, but an interface's
// hash depends on the binding names under which its members appear.
package hash

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"slices"
	"strings"

	"github.com/colinrozzi/composite/wit"
)

// Hash is a 256-bit SHA-256 digest.
type Hash [32]byte

// String returns the lowercase hex encoding of h.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// Equal reports whether h and o are the same digest.
func (h Hash) Equal(o Hash) bool {
	return h == o
}

// tags distinguish the kind of node being hashed so that, e.g., an
// empty record and an empty tuple never collide.
const (
	tagBool = iota
	tagS8
	tagU8
	tagS16
	tagU16
	tagS32
	tagU32
	tagS64
	tagU64
	tagF32
	tagF64
	tagChar
	tagString
	tagList
	tagOption
	tagResult
	tagTuple
	tagRecord
	tagVariant
	tagEnum
	tagFlags
	tagFunc
	tagInterface
)

var primitiveHash = [...]Hash{
	tagBool:   sha256.Sum256([]byte{tagBool}),
	tagS8:     sha256.Sum256([]byte{tagS8}),
	tagU8:     sha256.Sum256([]byte{tagU8}),
	tagS16:    sha256.Sum256([]byte{tagS16}),
	tagU16:    sha256.Sum256([]byte{tagU16}),
	tagS32:    sha256.Sum256([]byte{tagS32}),
	tagU32:    sha256.Sum256([]byte{tagU32}),
	tagS64:    sha256.Sum256([]byte{tagS64}),
	tagU64:    sha256.Sum256([]byte{tagU64}),
	tagF32:    sha256.Sum256([]byte{tagF32}),
	tagF64:    sha256.Sum256([]byte{tagF64}),
	tagChar:   sha256.Sum256([]byte{tagChar}),
	tagString: sha256.Sum256([]byte{tagString}),
}

// HashSelfRef is the sentinel hash substituted at every back-edge to a
// type definition that is currently being hashed. It terminates
// recursive hashing of cyclic and mutually cyclic type graphs: the
// hash of a strongly connected component therefore depends only on its
// unfolding to one level, not on the full (infinite) expansion.
var HashSelfRef = sha256.Sum256([]byte("composite/wit/hash.self-ref"))

// active tracks the TypeDefs currently being hashed on the call stack,
// so a reference back to one of them can be replaced with
// [HashSelfRef] instead of recursing forever.
type active map[*wit.TypeDef]bool

// Type returns the structural hash of t.
func Type(t wit.Type) Hash {
	return hashType(t, active{})
}

func hashType(t wit.Type, act active) Hash {
	switch v := t.(type) {
	case wit.Bool:
		return primitiveHash[tagBool]
	case wit.S8:
		return primitiveHash[tagS8]
	case wit.U8:
		return primitiveHash[tagU8]
	case wit.S16:
		return primitiveHash[tagS16]
	case wit.U16:
		return primitiveHash[tagU16]
	case wit.S32:
		return primitiveHash[tagS32]
	case wit.U32:
		return primitiveHash[tagU32]
	case wit.S64:
		return primitiveHash[tagS64]
	case wit.U64:
		return primitiveHash[tagU64]
	case wit.F32:
		return primitiveHash[tagF32]
	case wit.F64:
		return primitiveHash[tagF64]
	case wit.Char:
		return primitiveHash[tagChar]
	case wit.String:
		return primitiveHash[tagString]
	case *wit.List:
		return hashTagged(tagList, hashType(v.Type, act))
	case *wit.Option:
		return hashTagged(tagOption, hashType(v.Type, act))
	case *wit.Result:
		h := sha256.New()
		writeByte(h, tagResult)
		writeOptionalType(h, v.OK, act)
		writeOptionalType(h, v.Err, act)
		return sum(h)
	case *wit.Tuple:
		h := sha256.New()
		writeByte(h, tagTuple)
		writeU32(h, uint32(len(v.Types)))
		for _, elem := range v.Types {
			writeHash(h, hashType(elem, act))
		}
		return sum(h)
	case *wit.Named:
		if v.Def == nil {
			panic(fmt.Sprintf("BUG: unresolved Named %q passed to hash.Type", v.Name))
		}
		return hashTypeDef(v.Def, act)
	case *wit.SelfRef:
		return HashSelfRef
	}
	panic(fmt.Sprintf("BUG: unhandled Type %T", t))
}

// hashTypeDef computes the structural hash of td's kind, excluding its
// name, substituting [HashSelfRef] if td is already being hashed
// higher up the call stack.
func hashTypeDef(td *wit.TypeDef, act active) Hash {
	if act[td] {
		return HashSelfRef
	}
	act = extend(act, td)

	switch k := td.Kind.(type) {
	case wit.Record:
		return hashRecord(k, act)
	case wit.Variant:
		return hashVariant(k, act)
	case wit.Enum:
		return hashEnum(k)
	case wit.Flags:
		return hashFlags(k)
	case wit.Alias:
		// An alias introduces no distinct nominal type, so it hashes
		// exactly as its underlying type does.
		return hashType(k.Type, act)
	}
	panic(fmt.Sprintf("BUG: unhandled TypeDefKind %T", td.Kind))
}

func hashRecord(r wit.Record, act active) Hash {
	fields := slices.Clone(r.Fields)
	slices.SortFunc(fields, func(a, b wit.Field) int {
		return strings.Compare(a.Name, b.Name)
	})
	h := sha256.New()
	writeByte(h, tagRecord)
	writeU32(h, uint32(len(fields)))
	for _, f := range fields {
		writeString(h, f.Name)
		writeHash(h, hashType(f.Type, act))
	}
	return sum(h)
}

func hashVariant(v wit.Variant, act active) Hash {
	cases := slices.Clone(v.Cases)
	slices.SortFunc(cases, func(a, b wit.Case) int {
		return strings.Compare(a.Name, b.Name)
	})
	h := sha256.New()
	writeByte(h, tagVariant)
	writeU32(h, uint32(len(cases)))
	for _, c := range cases {
		writeString(h, c.Name)
		writeOptionalType(h, c.Type, act)
	}
	return sum(h)
}

func hashEnum(e wit.Enum) Hash {
	cases := slices.Clone(e.Cases)
	slices.SortFunc(cases, func(a, b wit.EnumCase) int {
		return strings.Compare(a.Name, b.Name)
	})
	h := sha256.New()
	writeByte(h, tagEnum)
	writeU32(h, uint32(len(cases)))
	for _, c := range cases {
		writeString(h, c.Name)
	}
	return sum(h)
}

func hashFlags(f wit.Flags) Hash {
	flags := slices.Clone(f.Flags)
	slices.SortFunc(flags, func(a, b wit.Flag) int {
		return strings.Compare(a.Name, b.Name)
	})
	h := sha256.New()
	writeByte(h, tagFlags)
	writeU32(h, uint32(len(flags)))
	for _, fl := range flags {
		writeString(h, fl.Name)
	}
	return sum(h)
}

// Function returns the hash of fn's signature: parameter types in
// positional order, then result types in positional order. Parameter
// and result names are excluded.
func Function(fn *wit.Function) Hash {
	h := sha256.New()
	writeByte(h, tagFunc)
	writeU32(h, uint32(len(fn.Params)))
	for _, p := range fn.Params {
		writeHash(h, hashType(p.Type, active{}))
	}
	writeU32(h, uint32(len(fn.Results)))
	for _, r := range fn.Results {
		writeHash(h, hashType(r.Type, active{}))
	}
	return sum(h)
}

// binding is a single (name, hash) pair making up part of an
// interface's nominal surface: its type and function bindings.
type binding struct {
	name string
	hash Hash
}

// Interface returns the hash of iface: its own name, plus its sorted
// type bindings and sorted function bindings. Unlike a bare type or
// function hash, binding names are significant here — this is the
// "nominal for interface bindings" half of the scheme, so renaming a
// binding (not just its underlying type) changes the interface hash.
func Interface(iface *wit.Interface) Hash {
	var typeBindings []binding
	for name, td := range iface.TypeDefs.All() {
		typeBindings = append(typeBindings, binding{name: name, hash: hashTypeDef(td, active{})})
	}
	slices.SortFunc(typeBindings, func(a, b binding) int { return strings.Compare(a.name, b.name) })

	var funcBindings []binding
	for name, fn := range iface.Functions.All() {
		funcBindings = append(funcBindings, binding{name: name, hash: Function(fn)})
	}
	slices.SortFunc(funcBindings, func(a, b binding) int { return strings.Compare(a.name, b.name) })

	h := sha256.New()
	writeByte(h, tagInterface)
	writeString(h, ifaceName(iface))
	writeU32(h, uint32(len(typeBindings)))
	for _, b := range typeBindings {
		writeString(h, b.name)
		writeHash(h, b.hash)
	}
	writeU32(h, uint32(len(funcBindings)))
	for _, b := range funcBindings {
		writeString(h, b.name)
		writeHash(h, b.hash)
	}
	return sum(h)
}

// ifaceName returns iface.Name dereferenced, or "" for an anonymous
// interface.
func ifaceName(iface *wit.Interface) string {
	if iface.Name == nil {
		return ""
	}
	return *iface.Name
}

func extend(act active, td *wit.TypeDef) active {
	next := make(active, len(act)+1)
	for k := range act {
		next[k] = true
	}
	next[td] = true
	return next
}

func hashTagged(tag byte, inner Hash) Hash {
	h := sha256.New()
	writeByte(h, tag)
	writeHash(h, inner)
	return sum(h)
}

func writeOptionalType(h hasher, t wit.Type, act active) {
	if t == nil {
		writeByte(h, 0)
		return
	}
	writeByte(h, 1)
	writeHash(h, hashType(t, act))
}

type hasher interface {
	Write(p []byte) (n int, err error)
}

func writeByte(h hasher, b byte) {
	h.Write([]byte{b})
}

func writeU32(h hasher, v uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	h.Write(buf[:])
}

func writeString(h hasher, s string) {
	writeU32(h, uint32(len(s)))
	h.Write([]byte(s))
}

func writeHash(h hasher, v Hash) {
	h.Write(v[:])
}

func sum(h interface{ Sum([]byte) []byte }) Hash {
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}
