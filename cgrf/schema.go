package cgrf

import (
	"fmt"

	"github.com/colinrozzi/composite/wit"
)

// resolveSchema follows t through any [wit.Named]/[wit.SelfRef]/
// [wit.Alias] indirection to the type or type-def kind that actually
// describes a node's shape. Exactly one of the two return values is
// non-nil: typ for a compound or primitive [wit.Type] (list, option,
// tuple, or a primitive), kind for a [wit.TypeDefKind] that has no
// direct Type representation (record, variant, enum, flags).
func resolveSchema(t wit.Type) (typ wit.Type, kind wit.TypeDefKind, err error) {
	for steps := 0; ; steps++ {
		if steps > 10_000 {
			return nil, nil, fmt.Errorf("cgrf: type alias chain too deep (possible cycle)")
		}
		switch v := t.(type) {
		case *wit.Named:
			if v.Def == nil {
				return nil, nil, fmt.Errorf("cgrf: schema references unresolved type %q", v.Name)
			}
			if alias, ok := v.Def.Kind.(wit.Alias); ok {
				t = alias.Type
				continue
			}
			return nil, v.Def.Kind, nil
		case *wit.SelfRef:
			if v.Def == nil {
				return nil, nil, fmt.Errorf("cgrf: schema contains an unbound self-reference")
			}
			if alias, ok := v.Def.Kind.(wit.Alias); ok {
				t = alias.Type
				continue
			}
			return nil, v.Def.Kind, nil
		default:
			return t, nil, nil
		}
	}
}

// variantCase is the common shape of a [wit.Variant] case or a
// [wit.Enum] case, letting the codec treat an enum as sugar for a
// variant whose cases carry no payload.
type variantCase struct {
	Name string
	Type wit.Type
}

func casesOf(kind wit.TypeDefKind) ([]variantCase, bool) {
	switch k := kind.(type) {
	case wit.Variant:
		cases := make([]variantCase, len(k.Cases))
		for i, c := range k.Cases {
			cases[i] = variantCase{Name: c.Name, Type: c.Type}
		}
		return cases, true
	case wit.Enum:
		cases := make([]variantCase, len(k.Cases))
		for i, c := range k.Cases {
			cases[i] = variantCase{Name: c.Name}
		}
		return cases, true
	}
	return nil, false
}
