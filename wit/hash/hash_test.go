package hash

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/colinrozzi/composite/wit"
)

func mustParse(t *testing.T, src string) *wit.Resolve {
	t.Helper()
	r, err := wit.Parse(src)
	require.NoError(t, err)
	require.NoError(t, wit.ResolveNames(r))
	return r
}

func TestInterfaceHashIgnoresParamNames(t *testing.T) {
	a := mustParse(t, `
interface math {
  add: func(s32, s32) -> s32;
}
`)
	b := mustParse(t, `
interface math {
  add: func(x: s32, y: s32) -> s32;
}
`)

	ha := Interface(a.Interfaces[0])
	hb := Interface(b.Interfaces[0])
	require.Equal(t, ha, hb, "parameter names must not affect the interface hash")
}

func TestInterfaceHashChangesOnParamTypeRename(t *testing.T) {
	a := mustParse(t, `
interface math {
  add: func(x: s32, y: s32) -> s32;
}
`)
	b := mustParse(t, `
interface math {
  add: func(x: s64, y: s32) -> s32;
}
`)

	ha := Interface(a.Interfaces[0])
	hb := Interface(b.Interfaces[0])
	require.NotEqual(t, ha, hb)
}

func TestRecordHashIgnoresTypeName(t *testing.T) {
	r := mustParse(t, `
record point {
  x: s32,
  y: s32,
}

record coord {
  x: s32,
  y: s32,
}
`)
	h1 := Type(&wit.Named{Name: "point", Def: r.TypeDefs[0]})
	h2 := Type(&wit.Named{Name: "coord", Def: r.TypeDefs[1]})
	require.Equal(t, h1, h2, "two differently-named records with identical shape must hash identically")
}

func TestRecordHashChangesOnFieldRename(t *testing.T) {
	r := mustParse(t, `
record point {
  x: s32,
  y: s32,
}

record point2 {
  x: s32,
  z: s32,
}
`)
	h1 := Type(&wit.Named{Name: "point", Def: r.TypeDefs[0]})
	h2 := Type(&wit.Named{Name: "point2", Def: r.TypeDefs[1]})
	require.NotEqual(t, h1, h2)
}

func TestHashOfRecursiveTypeIsStable(t *testing.T) {
	r := mustParse(t, `
variant sexpr {
  sym(string),
  num(s64),
  lst(list<sexpr>),
}
`)
	td := r.TypeDefs[0]
	h1 := hashTypeDef(td, active{})
	h2 := hashTypeDef(td, active{})
	require.Equal(t, h1, h2)
}
