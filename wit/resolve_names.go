package wit

import "fmt"

// ResolveNames walks every [Named] type reference reachable from r and
// binds it to the [TypeDef] it names within r's single file-level
// namespace. It permits arbitrary cycles — a Named reference to a
// TypeDef that is itself still being walked is resolved exactly like
// any other, since resolution is a pointer assignment, not an inlining
// expansion. The first name that fails to resolve is returned as an
// error; there is no partial or best-effort result.
func ResolveNames(r *Resolve) error {
	for _, td := range r.TypeDefs {
		if err := resolveTypeDefKind(r, td.Kind); err != nil {
			return err
		}
	}
	for _, iface := range r.Interfaces {
		for _, td := range iface.TypeDefs.All() {
			if err := resolveTypeDefKind(r, td.Kind); err != nil {
				return err
			}
		}
		for _, fn := range iface.Functions.All() {
			if err := resolveFunction(r, fn); err != nil {
				return err
			}
		}
	}
	for _, w := range r.Worlds {
		for _, item := range w.Exports.All() {
			if fn, ok := item.(*Function); ok {
				if err := resolveFunction(r, fn); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func resolveFunction(r *Resolve, fn *Function) error {
	for _, p := range fn.Params {
		if err := resolveType(r, p.Type); err != nil {
			return fmt.Errorf("function %q, parameter %q: %w", fn.Name, p.Name, err)
		}
	}
	for _, res := range fn.Results {
		if err := resolveType(r, res.Type); err != nil {
			return fmt.Errorf("function %q, result: %w", fn.Name, err)
		}
	}
	return nil
}

func resolveTypeDefKind(r *Resolve, kind TypeDefKind) error {
	switch k := kind.(type) {
	case Record:
		for _, f := range k.Fields {
			if err := resolveType(r, f.Type); err != nil {
				return fmt.Errorf("field %q: %w", f.Name, err)
			}
		}
	case Variant:
		for _, c := range k.Cases {
			if c.Type == nil {
				continue
			}
			if err := resolveType(r, c.Type); err != nil {
				return fmt.Errorf("case %q: %w", c.Name, err)
			}
		}
	case Alias:
		return resolveType(r, k.Type)
	case Enum, Flags:
		// no nested types
	}
	return nil
}

// resolveType recurses into t, binding every [Named] it contains.
func resolveType(r *Resolve, t Type) error {
	switch v := t.(type) {
	case *Named:
		def, ok := r.typeIdx[v.Name]
		if !ok {
			return fmt.Errorf("undefined type %q", v.Name)
		}
		v.Def = def
		return nil
	case *List:
		return resolveType(r, v.Type)
	case *Option:
		return resolveType(r, v.Type)
	case *Result:
		if v.OK != nil {
			if err := resolveType(r, v.OK); err != nil {
				return err
			}
		}
		if v.Err != nil {
			return resolveType(r, v.Err)
		}
		return nil
	case *Tuple:
		for _, elem := range v.Types {
			if err := resolveType(r, elem); err != nil {
				return err
			}
		}
		return nil
	case *SelfRef:
		return nil
	default:
		// primitives: nothing to resolve
		return nil
	}
}
