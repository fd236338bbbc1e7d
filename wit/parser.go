package wit

import (
	"fmt"

	"github.com/coreos/go-semver/semver"

	"github.com/colinrozzi/composite/wit/ordered"
)

// Parse parses a single WIT+ source file into a [Resolve]. It performs
// syntactic parsing and builds the type graph, but does not run the
// separate name-resolution pass; callers that need fully resolved
// [Named] references should call [ResolveNames] on the result, or use
// [ParseWIT] which does both.
func Parse(src string) (*Resolve, error) {
	p := &parser{lex: newLexer(src)}
	if err := p.advance(); err != nil {
		return nil, err
	}
	return p.parseFile()
}

// ParseWIT parses buffer as a WIT+ source file and fully resolves
// every [Named] type reference it contains.
func ParseWIT(buffer []byte) (*Resolve, error) {
	r, err := Parse(string(buffer))
	if err != nil {
		return nil, err
	}
	if err := ResolveNames(r); err != nil {
		return nil, err
	}
	return r, nil
}

type parser struct {
	lex *lexer
	tok Token

	res *Resolve
	pkg *Package

	// currentTypeDef is non-nil while parsing the body of a Record,
	// Variant, Enum, Flags, or Alias, so that a type reference naming
	// the declaration being defined can be recognized as a [SelfRef]
	// rather than a forward [Named] reference.
	currentTypeDef *TypeDef

	pendingDoc string
}

func (p *parser) advance() error {
	tok, err := p.lex.next()
	if err != nil {
		return err
	}
	p.tok = tok
	for p.tok.Kind == TokDoc {
		if p.pendingDoc != "" {
			p.pendingDoc += "\n"
		}
		p.pendingDoc += p.tok.Text
		tok, err := p.lex.next()
		if err != nil {
			return err
		}
		p.tok = tok
	}
	return nil
}

func (p *parser) takeDoc() Docs {
	d := Docs{Contents: p.pendingDoc}
	p.pendingDoc = ""
	return d
}

func (p *parser) errorf(format string, v ...any) error {
	return &ParseError{Pos: p.tok.Pos, Message: fmt.Sprintf(format, v...)}
}

func (p *parser) expectPunct(s string) error {
	if p.tok.Kind != TokPunct || p.tok.Text != s {
		return p.errorf("expected %q, found %q", s, p.tok.Text)
	}
	return p.advance()
}

func (p *parser) expectIdent() (string, error) {
	if p.tok.Kind != TokIdent {
		return "", p.errorf("expected identifier, found %q", p.tok.Text)
	}
	s := p.tok.Text
	return s, p.advance()
}

func (p *parser) isKeyword(kw string) bool {
	return p.tok.Kind == TokIdent && p.tok.Text == kw
}

func (p *parser) parseFile() (*Resolve, error) {
	p.res = &Resolve{
		worldIdx: map[string]*World{},
		ifaceIdx: map[string]*Interface{},
		typeIdx:  map[string]*TypeDef{},
	}

	if p.isKeyword("package") {
		pkg, err := p.parsePackageDecl()
		if err != nil {
			return nil, err
		}
		p.pkg = pkg
		p.res.Packages = append(p.res.Packages, pkg)
	} else {
		p.pkg = &Package{
			Interfaces: &ordered.Map[string, *Interface]{},
			Worlds:     &ordered.Map[string, *World]{},
		}
		p.res.Packages = append(p.res.Packages, p.pkg)
	}

	for p.tok.Kind != TokEOF {
		doc := p.takeDoc()
		switch {
		case p.isKeyword("interface"):
			iface, err := p.parseInterface(doc)
			if err != nil {
				return nil, err
			}
			p.res.Interfaces = append(p.res.Interfaces, iface)
		case p.isKeyword("world"):
			w, err := p.parseWorld(doc)
			if err != nil {
				return nil, err
			}
			p.res.Worlds = append(p.res.Worlds, w)
		case p.isKeyword("record"), p.isKeyword("variant"), p.isKeyword("enum"),
			p.isKeyword("flags"), p.isKeyword("type"):
			td, err := p.parseTypeDef(doc, nil)
			if err != nil {
				return nil, err
			}
			p.res.TypeDefs = append(p.res.TypeDefs, td)
		default:
			return nil, p.errorf("expected 'interface', 'world', or a type definition, found %q", p.tok.Text)
		}
	}

	return p.res, nil
}

func (p *parser) parsePackageDecl() (*Package, error) {
	if err := p.advance(); err != nil { // consume 'package'
		return nil, err
	}
	ns, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if err := p.expectPunct(":"); err != nil {
		return nil, err
	}
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	id := Ident{Namespace: ns, Package: name}
	if p.tok.Kind == TokPunct && p.tok.Text == "@" {
		if err := p.advance(); err != nil {
			return nil, err
		}
		verText, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		ver, err := semver.NewVersion(verText)
		if err != nil {
			return nil, p.errorf("invalid version %q: %v", verText, err)
		}
		id.Version = ver
	}
	if err := p.expectPunct(";"); err != nil {
		return nil, err
	}
	return &Package{
		Name:       id,
		Interfaces: &ordered.Map[string, *Interface]{},
		Worlds:     &ordered.Map[string, *World]{},
	}, nil
}

func (p *parser) parseInterface(doc Docs) (*Interface, error) {
	if err := p.advance(); err != nil { // consume 'interface'
		return nil, err
	}
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	iface := &Interface{
		Name:      &name,
		Package:   p.pkg,
		TypeDefs:  &ordered.Map[string, *TypeDef]{},
		Functions: &ordered.Map[string, *Function]{},
		Docs:      doc,
	}
	if _, exists := p.res.ifaceIdx[name]; exists {
		return nil, p.errorf("interface %q redeclared", name)
	}
	p.res.ifaceIdx[name] = iface
	p.pkg.Interfaces.Set(name, iface)

	if err := p.expectPunct("{"); err != nil {
		return nil, err
	}
	for p.tok.Kind != TokPunct || p.tok.Text != "}" {
		memberDoc := p.takeDoc()
		switch {
		case p.isKeyword("record"), p.isKeyword("variant"), p.isKeyword("enum"),
			p.isKeyword("flags"), p.isKeyword("type"):
			td, err := p.parseTypeDef(memberDoc, iface)
			if err != nil {
				return nil, err
			}
			iface.TypeDefs.Set(td.TypeName(), td)
		case p.tok.Kind == TokIdent:
			fn, err := p.parseFuncDecl(memberDoc, iface)
			if err != nil {
				return nil, err
			}
			iface.Functions.Set(fn.Name, fn)
		default:
			return nil, p.errorf("expected a type or function declaration, found %q", p.tok.Text)
		}
	}
	return iface, p.advance() // consume '}'
}

func (p *parser) parseWorld(doc Docs) (*World, error) {
	if err := p.advance(); err != nil { // consume 'world'
		return nil, err
	}
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	w := &World{
		Name:    name,
		Package: p.pkg,
		Imports: &ordered.Map[string, WorldItem]{},
		Exports: &ordered.Map[string, WorldItem]{},
		Docs:    doc,
	}
	if _, exists := p.res.worldIdx[name]; exists {
		return nil, p.errorf("world %q redeclared", name)
	}
	p.res.worldIdx[name] = w
	p.pkg.Worlds.Set(name, w)

	if err := p.expectPunct("{"); err != nil {
		return nil, err
	}
	for p.tok.Kind != TokPunct || p.tok.Text != "}" {
		p.takeDoc()
		switch {
		case p.isKeyword("import"):
			if err := p.advance(); err != nil {
				return nil, err
			}
			itemName, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			if err := p.expectPunct(";"); err != nil {
				return nil, err
			}
			iface, ok := p.res.ifaceIdx[itemName]
			if !ok {
				return nil, p.errorf("world %q imports undefined interface %q", name, itemName)
			}
			w.Imports.Set(itemName, &InterfaceRef{Interface: iface})
		case p.isKeyword("export"):
			if err := p.advance(); err != nil {
				return nil, err
			}
			itemName, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			if p.tok.Kind == TokPunct && p.tok.Text == ":" {
				fn, err := p.parseFuncDeclNamed(itemName, Docs{}, w)
				if err != nil {
					return nil, err
				}
				w.Exports.Set(itemName, fn)
				continue
			}
			if err := p.expectPunct(";"); err != nil {
				return nil, err
			}
			iface, ok := p.res.ifaceIdx[itemName]
			if !ok {
				return nil, p.errorf("world %q exports undefined interface %q", name, itemName)
			}
			w.Exports.Set(itemName, &InterfaceRef{Interface: iface})
		default:
			return nil, p.errorf("expected 'import' or 'export', found %q", p.tok.Text)
		}
	}
	return w, p.advance() // consume '}'
}

func (p *parser) parseTypeDef(doc Docs, owner TypeOwner) (*TypeDef, error) {
	kw := p.tok.Text
	if err := p.advance(); err != nil {
		return nil, err
	}
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}

	td := &TypeDef{Name: &name, Owner: owner, Docs: doc}
	if _, exists := p.res.typeIdx[name]; exists {
		return nil, p.errorf("type %q redeclared", name)
	}
	p.res.typeIdx[name] = td

	prev := p.currentTypeDef
	p.currentTypeDef = td
	defer func() { p.currentTypeDef = prev }()

	var kind TypeDefKind
	switch kw {
	case "record":
		kind, err = p.parseRecordBody()
	case "variant":
		kind, err = p.parseVariantBody()
	case "enum":
		kind, err = p.parseEnumBody()
	case "flags":
		kind, err = p.parseFlagsBody()
	case "type":
		kind, err = p.parseAliasBody()
	default:
		err = p.errorf("unreachable: unknown type def keyword %q", kw)
	}
	if err != nil {
		return nil, err
	}
	td.Kind = kind
	return td, nil
}

func (p *parser) parseRecordBody() (TypeDefKind, error) {
	if err := p.expectPunct("{"); err != nil {
		return nil, err
	}
	var fields []Field
	for p.tok.Kind != TokPunct || p.tok.Text != "}" {
		doc := p.takeDoc()
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct(":"); err != nil {
			return nil, err
		}
		typ, err := p.parseTypeRef()
		if err != nil {
			return nil, err
		}
		fields = append(fields, Field{Name: name, Type: typ, Docs: doc})
		if err := p.consumeOptionalComma(); err != nil {
			return nil, err
		}
	}
	return Record{Fields: fields}, p.advance() // consume '}'
}

func (p *parser) parseVariantBody() (TypeDefKind, error) {
	if err := p.expectPunct("{"); err != nil {
		return nil, err
	}
	var cases []Case
	for p.tok.Kind != TokPunct || p.tok.Text != "}" {
		doc := p.takeDoc()
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		var typ Type
		if p.tok.Kind == TokPunct && p.tok.Text == "(" {
			if err := p.advance(); err != nil {
				return nil, err
			}
			typ, err = p.parseTypeRef()
			if err != nil {
				return nil, err
			}
			if err := p.expectPunct(")"); err != nil {
				return nil, err
			}
		}
		cases = append(cases, Case{Name: name, Type: typ, Docs: doc})
		if err := p.consumeOptionalComma(); err != nil {
			return nil, err
		}
	}
	return Variant{Cases: cases}, p.advance() // consume '}'
}

func (p *parser) parseEnumBody() (TypeDefKind, error) {
	if err := p.expectPunct("{"); err != nil {
		return nil, err
	}
	var cases []EnumCase
	for p.tok.Kind != TokPunct || p.tok.Text != "}" {
		doc := p.takeDoc()
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		cases = append(cases, EnumCase{Name: name, Docs: doc})
		if err := p.consumeOptionalComma(); err != nil {
			return nil, err
		}
	}
	return Enum{Cases: cases}, p.advance() // consume '}'
}

func (p *parser) parseFlagsBody() (TypeDefKind, error) {
	if err := p.expectPunct("{"); err != nil {
		return nil, err
	}
	var flags []Flag
	for p.tok.Kind != TokPunct || p.tok.Text != "}" {
		doc := p.takeDoc()
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		flags = append(flags, Flag{Name: name, Docs: doc})
		if err := p.consumeOptionalComma(); err != nil {
			return nil, err
		}
	}
	if len(flags) > 64 {
		return nil, p.errorf("flags type declares %d flags, maximum is 64", len(flags))
	}
	return Flags{Flags: flags}, p.advance() // consume '}'
}

func (p *parser) parseAliasBody() (TypeDefKind, error) {
	if err := p.expectPunct("="); err != nil {
		return nil, err
	}
	typ, err := p.parseTypeRef()
	if err != nil {
		return nil, err
	}
	return Alias{Type: typ}, p.expectPunct(";")
}

func (p *parser) consumeOptionalComma() error {
	if p.tok.Kind == TokPunct && p.tok.Text == "," {
		return p.advance()
	}
	return nil
}

func (p *parser) parseFuncDecl(doc Docs, owner TypeOwner) (*Function, error) {
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	return p.parseFuncDeclNamed(name, doc, owner)
}

func (p *parser) parseFuncDeclNamed(name string, doc Docs, owner TypeOwner) (*Function, error) {
	if err := p.expectPunct(":"); err != nil {
		return nil, err
	}
	if !p.isKeyword("func") {
		return nil, p.errorf("expected 'func', found %q", p.tok.Text)
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	if err := p.expectPunct("("); err != nil {
		return nil, err
	}
	var params []Param
	for p.tok.Kind != TokPunct || p.tok.Text != ")" {
		// A parameter name is optional: both "x: s32" and a bare "s32"
		// are accepted. One token of lookahead on a copy of the lexer
		// tells the two forms apart.
		var pname string
		look := *p.lex
		if next, lerr := look.next(); lerr == nil && p.tok.Kind == TokIdent && next.Kind == TokPunct && next.Text == ":" {
			name, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			if err := p.expectPunct(":"); err != nil {
				return nil, err
			}
			pname = name
		}
		ptyp, err := p.parseTypeRef()
		if err != nil {
			return nil, err
		}
		params = append(params, Param{Name: pname, Type: ptyp})
		if err := p.consumeOptionalComma(); err != nil {
			return nil, err
		}
	}
	if err := p.advance(); err != nil { // consume ')'
		return nil, err
	}

	var results []Param
	if p.tok.Kind == TokPunct && p.tok.Text == "->" {
		if err := p.advance(); err != nil {
			return nil, err
		}
		rtyp, err := p.parseTypeRef()
		if err != nil {
			return nil, err
		}
		results = append(results, Param{Type: rtyp})
	}
	if err := p.expectPunct(";"); err != nil {
		return nil, err
	}
	return &Function{
		Name:    name,
		Kind:    Freestanding{},
		Params:  params,
		Results: results,
		Owner:   owner,
		Docs:    doc,
	}, nil
}

func (p *parser) parseTypeRef() (Type, error) {
	if p.tok.Kind != TokIdent {
		return nil, p.errorf("expected a type, found %q", p.tok.Text)
	}
	name := p.tok.Text

	switch name {
	case "list":
		if err := p.advance(); err != nil {
			return nil, err
		}
		inner, err := p.parseAngleOne()
		if err != nil {
			return nil, err
		}
		return &List{Type: inner}, nil
	case "option":
		if err := p.advance(); err != nil {
			return nil, err
		}
		inner, err := p.parseAngleOne()
		if err != nil {
			return nil, err
		}
		return &Option{Type: inner}, nil
	case "tuple":
		if err := p.advance(); err != nil {
			return nil, err
		}
		types, err := p.parseAngleMany()
		if err != nil {
			return nil, err
		}
		return &Tuple{Types: types}, nil
	case "result":
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.tok.Kind != TokPunct || p.tok.Text != "<" {
			return &Result{}, nil
		}
		types, err := p.parseAngleMany()
		if err != nil {
			return nil, err
		}
		switch len(types) {
		case 1:
			return &Result{OK: types[0]}, nil
		case 2:
			return &Result{OK: types[0], Err: types[1]}, nil
		default:
			return nil, p.errorf("result<> takes 1 or 2 type arguments, found %d", len(types))
		}
	}

	if prim, err := ParseType(name); err == nil {
		return p.advance2(prim)
	}

	if p.currentTypeDef != nil && p.currentTypeDef.Name != nil && *p.currentTypeDef.Name == name {
		return p.advance2(&SelfRef{Def: p.currentTypeDef})
	}
	return p.advance2(&Named{Name: name})
}

// advance2 consumes the current token and returns t, threading the
// advance error through the single-expression call sites in
// parseTypeRef.
func (p *parser) advance2(t Type) (Type, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	return t, nil
}

func (p *parser) parseAngleOne() (Type, error) {
	if err := p.expectPunct("<"); err != nil {
		return nil, err
	}
	inner, err := p.parseTypeRef()
	if err != nil {
		return nil, err
	}
	return inner, p.expectPunct(">")
}

func (p *parser) parseAngleMany() ([]Type, error) {
	if err := p.expectPunct("<"); err != nil {
		return nil, err
	}
	var types []Type
	for {
		typ, err := p.parseTypeRef()
		if err != nil {
			return nil, err
		}
		types = append(types, typ)
		if p.tok.Kind == TokPunct && p.tok.Text == "," {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	return types, p.expectPunct(">")
}
