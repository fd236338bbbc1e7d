package wit

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseRecord(t *testing.T) {
	src := `
record point {
  x: s32,
  y: s32,
}
`
	r, err := Parse(src)
	require.NoError(t, err)
	require.Len(t, r.TypeDefs, 1)

	td := r.TypeDefs[0]
	require.Equal(t, "point", td.TypeName())
	rec, ok := td.Kind.(Record)
	require.True(t, ok)
	require.Len(t, rec.Fields, 2)
	require.Equal(t, "x", rec.Fields[0].Name)
	require.IsType(t, S32{}, rec.Fields[0].Type)
}

func TestParseSelfReferentialVariant(t *testing.T) {
	src := `
variant sexpr {
  sym(string),
  num(s64),
  lst(list<sexpr>),
}
`
	r, err := Parse(src)
	require.NoError(t, err)
	require.NoError(t, ResolveNames(r))

	td := r.TypeDefs[0]
	variant := td.Kind.(Variant)
	require.Len(t, variant.Cases, 3)

	lst := variant.Cases[2].Type.(*List)
	self, ok := lst.Type.(*SelfRef)
	require.True(t, ok, "list<sexpr> inside sexpr should resolve to a SelfRef")
	require.Same(t, td, self.Def)
}

func TestParseMutuallyRecursiveTypes(t *testing.T) {
	src := `
record tree {
  value: s32,
  children: list<forest>,
}

record forest {
  trees: list<tree>,
}
`
	r, err := Parse(src)
	require.NoError(t, err)
	require.NoError(t, ResolveNames(r))

	tree := r.TypeDefs[0]
	forest := r.TypeDefs[1]

	treeRec := tree.Kind.(Record)
	childrenList := treeRec.Fields[1].Type.(*List)
	named := childrenList.Type.(*Named)
	require.Equal(t, "forest", named.Name)
	require.Same(t, forest, named.Def)

	forestRec := forest.Kind.(Record)
	treesList := forestRec.Fields[0].Type.(*List)
	named2 := treesList.Type.(*Named)
	require.Same(t, tree, named2.Def)
}

func TestResolveNamesUndefinedName(t *testing.T) {
	src := `
record box {
  value: missing-type,
}
`
	r, err := Parse(src)
	require.NoError(t, err)
	err = ResolveNames(r)
	require.Error(t, err)
}

func TestParseInterfaceAndWorld(t *testing.T) {
	src := `
package myapp:api@1.0.0;

/// the math interface
interface math {
  add: func(x: s32, y: s32) -> s32;
}

world app {
  import math;
  export run: func() -> s32;
}
`
	r, err := Parse(src)
	require.NoError(t, err)
	require.Len(t, r.Interfaces, 1)
	require.Len(t, r.Worlds, 1)

	iface := r.Interfaces[0]
	require.Equal(t, "math", *iface.Name)
	require.Equal(t, "the math interface", iface.Docs.Contents)
	require.Equal(t, 1, iface.Functions.Len())

	add, ok := iface.Functions.GetOK("add")
	require.True(t, ok)
	require.Len(t, add.Params, 2)
	require.Len(t, add.Results, 1)

	w := r.Worlds[0]
	imp, ok := w.Imports.GetOK("math")
	require.True(t, ok)
	ref, ok := imp.(*InterfaceRef)
	require.True(t, ok)
	require.Same(t, iface, ref.Interface)

	exp, ok := w.Exports.GetOK("run")
	require.True(t, ok)
	fn, ok := exp.(*Function)
	require.True(t, ok)
	require.Equal(t, "run", fn.Name)
}

func TestParseEnumFlagsAlias(t *testing.T) {
	src := `
enum color {
  red,
  green,
  blue,
}

flags perms {
  read,
  write,
  exec,
}

type meters = f64;
`
	r, err := Parse(src)
	require.NoError(t, err)
	require.Len(t, r.TypeDefs, 3)

	enum := r.TypeDefs[0].Kind.(Enum)
	require.Len(t, enum.Cases, 3)

	flags := r.TypeDefs[1].Kind.(Flags)
	require.Len(t, flags.Flags, 3)

	alias := r.TypeDefs[2].Kind.(Alias)
	require.IsType(t, F64{}, alias.Type)
}

func TestParseResultAndTuple(t *testing.T) {
	src := `
interface ops {
  divide: func(a: s32, b: s32) -> result<s32, string>;
  swap: func(p: tuple<s32, string>) -> tuple<string, s32>;
}
`
	r, err := Parse(src)
	require.NoError(t, err)
	iface := r.Interfaces[0]

	divide, _ := iface.Functions.GetOK("divide")
	res := divide.Results[0].Type.(*Result)
	require.IsType(t, S32{}, res.OK)
	require.IsType(t, String{}, res.Err)

	swap, _ := iface.Functions.GetOK("swap")
	in := swap.Params[0].Type.(*Tuple)
	require.Len(t, in.Types, 2)
}

func TestParseSyntaxErrorHasPosition(t *testing.T) {
	src := "record point { x s32 }"
	_, err := Parse(src)
	require.Error(t, err)
	perr, ok := err.(*ParseError)
	require.True(t, ok)
	require.Greater(t, perr.Pos.Line, 0)
	require.Greater(t, perr.Pos.Column, 0)
}
