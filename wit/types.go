package wit

import (
	"fmt"

	"github.com/coreos/go-semver/semver"

	"github.com/colinrozzi/composite/internal/iterate"
	"github.com/colinrozzi/composite/wit/ordered"
)

// Resolve represents a fully parsed and name-resolved set of WIT+ packages.
// It is produced once by [Parse] and [ResolveNames]; after resolution it is
// immutable and safe to share between the codec, the hasher, and the linker.
type Resolve struct {
	Worlds     []*World
	Interfaces []*Interface
	TypeDefs   []*TypeDef
	Packages   []*Package

	// worldIdx, ifaceIdx, and typeIdx let the resolver find an existing
	// declaration by its bare (unqualified) name while linking name
	// references.
	worldIdx map[string]*World
	ifaceIdx map[string]*Interface
	typeIdx  map[string]*TypeDef
}

// AllFunctions returns a sequence iterating every [Function] declared
// directly in an [Interface] across the entire Resolve, paired with the
// Interface that declares it.
func (r *Resolve) AllFunctions() iterate.Seq2[*Interface, *Function] {
	return func(yield func(*Interface, *Function) bool) {
		for _, i := range r.Interfaces {
			for _, f := range i.Functions.All() {
				if !yield(i, f) {
					return
				}
			}
		}
	}
}

// Docs represents documentation comments attached to a declaration.
type Docs struct {
	Contents string
}

// Stability represents the [Stable] or [Unstable] annotation WIT attaches
// to a declaration. The zero value of neither variant is meaningful on its
// own; a declaration with no annotation has a nil Stability.
type Stability interface {
	isStability()
}

// Stable indicates a declaration has been stabilized as of a given version.
type Stable struct {
	Since      semver.Version
	Deprecated *semver.Version
}

func (Stable) isStability() {}

// Unstable indicates a declaration is gated behind a named feature flag.
type Unstable struct {
	Feature    string
	Deprecated *semver.Version
}

func (Unstable) isStability() {}

// Package represents a WIT+ package, identified by its [Ident] and
// containing zero or more named interfaces and worlds.
type Package struct {
	Name       Ident
	Interfaces *ordered.Map[string, *Interface]
	Worlds     *ordered.Map[string, *World]
	Docs       Docs
}

// TypeOwner is implemented by any declaration that can own [TypeDef]s:
// a [World] or an [Interface].
type TypeOwner interface {
	isTypeOwner()
}

// World represents a WIT+ `world` block: a named set of imported and
// exported items.
type World struct {
	Name    string
	Package *Package
	Imports *ordered.Map[string, WorldItem]
	Exports *ordered.Map[string, WorldItem]
	Docs    Docs
}

func (*World) isTypeOwner() {}

// WorldItem is implemented by any value that may appear as a world
// import or export: an [InterfaceRef], a [TypeDef], or a [Function].
type WorldItem interface {
	isWorldItem()
}

// InterfaceRef is a [WorldItem] that imports or exports an entire
// named [Interface].
type InterfaceRef struct {
	Interface *Interface
}

func (*InterfaceRef) isWorldItem() {}

// Interface represents a WIT+ `interface` block: a named collection of
// type definitions and function declarations.
type Interface struct {
	Name       *string
	Package    *Package
	TypeDefs   *ordered.Map[string, *TypeDef]
	Functions  *ordered.Map[string, *Function]
	Stability  Stability
	Docs       Docs
}

func (*Interface) isTypeOwner() {}
func (*Interface) isWorldItem() {}

// TypeDef represents a single named type definition: a [Record],
// [Variant], [Enum], [Flags], or [Alias].
type TypeDef struct {
	Name      *string
	Kind      TypeDefKind
	Owner     TypeOwner
	Stability Stability
	Docs      Docs
}

func (*TypeDef) isWorldItem() {}

// TypeName returns td.Name, or "" if td is anonymous.
func (td *TypeDef) TypeName() string {
	if td == nil || td.Name == nil {
		return ""
	}
	return *td.Name
}

// TypeDefKind is the closed set of WIT+ type definition kinds:
// [Record], [Variant], [Enum], [Flags], and [Alias].
type TypeDefKind interface {
	isTypeDefKind()
}

type _typeDefKind struct{}

func (_typeDefKind) isTypeDefKind() {}

// Record is a [TypeDefKind] representing a product type: an ordered
// set of named fields, each with a [Type].
type Record struct {
	_typeDefKind
	Fields []Field
}

// Field is a single named, typed member of a [Record].
type Field struct {
	Name string
	Type Type
	Docs Docs
}

// Variant is a [TypeDefKind] representing a tagged union: an ordered
// set of named cases, each with an optional payload [Type].
type Variant struct {
	_typeDefKind
	Cases []Case
}

// Case is a single named case of a [Variant]. Type is nil if the case
// carries no payload.
type Case struct {
	Name string
	Type Type
	Docs Docs
}

// Enum is a [TypeDefKind] representing a closed set of unit cases,
// encoded identically to a [Variant] with no payloads.
type Enum struct {
	_typeDefKind
	Cases []EnumCase
}

// EnumCase is a single named case of an [Enum].
type EnumCase struct {
	Name string
	Docs Docs
}

// Flags is a [TypeDefKind] representing a bitset of up to 64 named
// flags.
type Flags struct {
	_typeDefKind
	Flags []Flag
}

// Flag is a single named bit of a [Flags] type.
type Flag struct {
	Name string
	Docs Docs
}

// Alias is a [TypeDefKind] that gives a new name to an existing [Type],
// without introducing a distinct nominal type.
type Alias struct {
	_typeDefKind
	Type Type
}

// Type is the closed set of WIT+ value types: the primitives, plus
// [List], [Option], [Result], [Tuple], [Named], and [SelfRef].
type Type interface {
	isType()
}

// Named is a [Type] that refers to a [TypeDef] by name within the
// enclosing file's namespace. Def is populated by [ResolveNames]; it is
// nil on a freshly parsed, unresolved Resolve.
type Named struct {
	Name string
	Def  *TypeDef
}

func (*Named) isType() {}

// SelfRef is a [Type] that refers back to the [TypeDef] currently being
// defined, without going through a name lookup. It terminates otherwise
// unbounded recursion introduced by an inline (anonymous) structural
// type that contains itself, such as a record field typed as a list of
// the record being declared.
type SelfRef struct {
	Def *TypeDef
}

func (*SelfRef) isType() {}

// List is a [Type] representing a homogeneous sequence of Type.
type List struct {
	Type Type
}

func (*List) isType() {}

// Option is a [Type] representing an optional value of Type.
type Option struct {
	Type Type
}

func (*Option) isType() {}

// Result is a [Type] representing either an OK value or an Err value.
// Either field may be nil, representing the unit type for that side.
type Result struct {
	OK  Type
	Err Type
}

func (*Result) isType() {}

// Tuple is a [Type] representing a fixed-arity, positional product of
// Types.
type Tuple struct {
	Types []Type
}

func (*Tuple) isType() {}

// primitive is the set of Go types backing a WIT+ primitive [Type].
type primitive interface {
	bool | int8 | uint8 | int16 | uint16 | int32 | uint32 | int64 | uint64 | float32 | float64 | char | string
}

// char represents a WIT+ char: a Unicode scalar value, stored as its
// code point.
type char = rune

// Primitive is implemented by every primitive [Type]: [Bool], the
// signed and unsigned integer types, [F32], [F64], [Char], and
// [String].
type Primitive interface {
	Type
	isPrimitive()
}

type _primitive[T primitive] struct{}

func (_primitive[T]) isType()      {}
func (_primitive[T]) isPrimitive() {}

// Bool is the WIT+ bool primitive [Type].
type Bool struct{ _primitive[bool] }

// S8 is the WIT+ s8 primitive [Type].
type S8 struct{ _primitive[int8] }

// U8 is the WIT+ u8 primitive [Type].
type U8 struct{ _primitive[uint8] }

// S16 is the WIT+ s16 primitive [Type].
type S16 struct{ _primitive[int16] }

// U16 is the WIT+ u16 primitive [Type].
type U16 struct{ _primitive[uint16] }

// S32 is the WIT+ s32 primitive [Type].
type S32 struct{ _primitive[int32] }

// U32 is the WIT+ u32 primitive [Type].
type U32 struct{ _primitive[uint32] }

// S64 is the WIT+ s64 primitive [Type].
type S64 struct{ _primitive[int64] }

// U64 is the WIT+ u64 primitive [Type].
type U64 struct{ _primitive[uint64] }

// F32 is the WIT+ f32 primitive [Type].
type F32 struct{ _primitive[float32] }

// F64 is the WIT+ f64 primitive [Type].
type F64 struct{ _primitive[float64] }

// Char is the WIT+ char primitive [Type]: a Unicode scalar value.
type Char struct{ _primitive[char] }

// String is the WIT+ string primitive [Type]: a length-prefixed UTF-8
// byte sequence.
type String struct{ _primitive[string] }

// ParseType parses the name of a primitive WIT+ type, returning its
// [Type] value. It does not parse compound types such as "list<T>";
// those are handled by the parser directly.
func ParseType(name string) (Type, error) {
	switch name {
	case "bool":
		return Bool{}, nil
	case "s8":
		return S8{}, nil
	case "u8":
		return U8{}, nil
	case "s16":
		return S16{}, nil
	case "u16":
		return U16{}, nil
	case "s32":
		return S32{}, nil
	case "u32":
		return U32{}, nil
	case "s64":
		return S64{}, nil
	case "u64":
		return U64{}, nil
	case "f32":
		return F32{}, nil
	case "f64":
		return F64{}, nil
	case "char":
		return Char{}, nil
	case "string":
		return String{}, nil
	}
	return nil, fmt.Errorf("%q is not a primitive type", name)
}

// Function represents a WIT+ function declaration: an ordered list of
// named, typed parameters and an ordered list of named, typed results.
type Function struct {
	Name    string
	Kind    FunctionKind
	Params  []Param
	Results []Param
	Owner   TypeOwner
	Docs    Docs
}

func (*Function) isWorldItem() {}

// Param is a single named, typed function parameter or result.
type Param struct {
	Name string
	Type Type
}

// FunctionKind distinguishes how a [Function] is bound. WIT+ functions
// are always freestanding: Composite does not carry over the Component
// Model's resource method/static/constructor function kinds, since it
// does not carry over [Resource] handles.
type FunctionKind interface {
	isFunctionKind()
}

// Freestanding is the only [FunctionKind]: a plain, top-level function.
type Freestanding struct{}

func (Freestanding) isFunctionKind() {}
