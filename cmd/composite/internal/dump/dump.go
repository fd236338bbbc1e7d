// Package dump renders a [wit.Resolve] as deterministic, indented text
// for the wit/diff subcommands. It is not a WIT+ source printer: WIT+
// syntax is an input format, not an output one, so this instead shows
// the resolved shape a reader needs to compare two packages or confirm
// what was parsed.
package dump

import (
	"fmt"
	"io"
	"strings"

	"github.com/colinrozzi/composite/wit"
	"github.com/colinrozzi/composite/wit/hash"
)

// Resolve writes a structural dump of r to w: one block per world,
// then one per interface, each listing its type and function
// bindings along with their structural hashes.
func Resolve(w io.Writer, r *wit.Resolve) {
	p := &printer{w: w}
	for i, pkg := range r.Packages {
		if i > 0 {
			p.Println()
		}
		p.Printf("package %s\n", pkg.Name.String())
	}
	for _, wo := range r.Worlds {
		p.Println()
		printWorld(p, wo)
	}
	for _, iface := range r.Interfaces {
		p.Println()
		printInterface(p, iface)
	}
}

func printWorld(p *printer, w *wit.World) {
	p.Printf("world %s {\n", w.Name)
	ip := p.Indent()
	for name, item := range w.Imports.All() {
		ip.Printf("import %s: %s\n", name, itemKind(item))
	}
	for name, item := range w.Exports.All() {
		ip.Printf("export %s: %s\n", name, itemKind(item))
	}
	p.Printf("}\n")
}

func itemKind(item wit.WorldItem) string {
	switch item.(type) {
	case *wit.InterfaceRef:
		return "interface"
	case *wit.TypeDef:
		return "type"
	case *wit.Function:
		return "func"
	}
	return "unknown"
}

func printInterface(p *printer, iface *wit.Interface) {
	name := ifaceName(iface)
	p.Printf("interface %s {\n", name)
	ip := p.Indent()
	for tname, td := range iface.TypeDefs.All() {
		ip.Printf("type %s = %s  // %s\n", tname, kindName(td.Kind), hash.Type(&wit.Named{Name: tname, Def: td}))
	}
	for fname, fn := range iface.Functions.All() {
		ip.Printf("func %s%s  // %s\n", fname, signature(fn), hash.Function(fn))
	}
	p.Printf("}  // %s\n", hash.Interface(iface))
}

func ifaceName(iface *wit.Interface) string {
	if iface.Name == nil {
		return "<anonymous>"
	}
	return *iface.Name
}

func kindName(k wit.TypeDefKind) string {
	switch k.(type) {
	case wit.Record:
		return "record"
	case wit.Variant:
		return "variant"
	case wit.Enum:
		return "enum"
	case wit.Flags:
		return "flags"
	case wit.Alias:
		return "alias"
	}
	return "unknown"
}

func signature(fn *wit.Function) string {
	var b strings.Builder
	b.WriteByte('(')
	for i, p := range fn.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s: %s", p.Name, typeName(p.Type))
	}
	b.WriteByte(')')
	if len(fn.Results) > 0 {
		b.WriteString(" -> ")
		for i, r := range fn.Results {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(typeName(r.Type))
		}
	}
	return b.String()
}

func typeName(t wit.Type) string {
	if named, ok := t.(*wit.Named); ok {
		return named.Name
	}
	return fmt.Sprintf("%T", t)
}

// printer is a small tab-indenting writer, one [io.Writer] wrapper
// tracking depth so nested blocks line up without each call site
// threading an indent string through.
type printer struct {
	w     io.Writer
	depth int
}

func (p *printer) Indent() *printer {
	pi := *p
	pi.depth++
	return &pi
}

func (p *printer) Printf(format string, a ...any) {
	fmt.Fprint(p.w, strings.Repeat("\t", p.depth))
	fmt.Fprintf(p.w, format, a...)
}

func (p *printer) Println() {
	fmt.Fprintln(p.w)
}
