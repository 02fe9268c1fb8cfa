package parse

import (
	"strings"

	"github.com/andrewchambers/csyms/cpp"
)

// declSpec is the result of reading declaration specifiers.
type declSpec struct {
	storage string
	inline  bool
	hasType bool
	words   []string
	// tagged is the aggregate named or defined by the specifiers, tagDef
	// is set when it was defined here.
	tagged *Record
	tagDef bool
}

func (s *declSpec) text() string {
	return strings.Join(s.words, " ")
}

func (s *declSpec) seen() bool {
	return s.storage != "" || s.inline || len(s.words) != 0
}

// Identifiers taking a parenthesized argument that carry no type
// information.
var attributeNames = map[string]bool{
	"__attribute__": true,
	"__attribute":   true,
	"__declspec":    true,
	"__asm__":       true,
	"__asm":         true,
	"asm":           true,
	"__alignas":     true,
}

// Identifiers that decorate a declaration without arguments.
var bareDecorations = map[string]bool{
	"__extension__": true,
	"__cdecl":       true,
	"__stdcall":     true,
	"__fastcall":    true,
	"__thiscall":    true,
	"__vectorcall":  true,
	"__unaligned":   true,
}

func isAttribute(t *cpp.Token) bool {
	return t.Kind == cpp.ALIGNAS || (t.Kind == cpp.IDENT && attributeNames[t.Val])
}

func (p *parser) atAttribute() bool {
	if isAttribute(p.curt) {
		return p.nextt.Kind == cpp.LPAREN
	}
	return p.curt.Kind == cpp.IDENT && bareDecorations[p.curt.Val]
}

func (p *parser) skipAttributes() {
	for p.atAttribute() {
		if bareDecorations[p.curt.Val] {
			p.next()
			continue
		}
		p.next()
		p.balanced()
	}
}

func isTypeKeyword(k cpp.TokenKind) bool {
	switch k {
	case cpp.VOID, cpp.CHAR, cpp.SHORT, cpp.INT, cpp.LONG, cpp.FLOAT, cpp.DOUBLE,
		cpp.SIGNED, cpp.UNSIGNED, cpp.BOOL, cpp.COMPLEX:
		return true
	}
	return false
}

func isQualifier(k cpp.TokenKind) bool {
	switch k {
	case cpp.CONST, cpp.VOLATILE, cpp.RESTRICT, cpp.ATOMIC:
		return true
	}
	return false
}

func isStorageClass(k cpp.TokenKind) bool {
	switch k {
	case cpp.TYPEDEF, cpp.EXTERN, cpp.STATIC, cpp.AUTO, cpp.REGISTER, cpp.THREAD_LOCAL:
		return true
	}
	return false
}

func isTagKeyword(k cpp.TokenKind) bool {
	return k == cpp.STRUCT || k == cpp.UNION || k == cpp.ENUM
}

// startsSpecifier reports whether t can begin declaration specifiers.
func (p *parser) startsSpecifier(t *cpp.Token) bool {
	switch {
	case isTypeKeyword(t.Kind), isQualifier(t.Kind), isStorageClass(t.Kind), isTagKeyword(t.Kind):
		return true
	case t.Kind == cpp.INLINE, t.Kind == cpp.NORETURN:
		return true
	}
	return t.Kind == cpp.IDENT && p.isTypeName(t.Val)
}

// specifiers reads declaration specifiers. A missing type is int.
func (p *parser) specifiers(inParam bool) *declSpec {
	spec := &declSpec{}
loop:
	for {
		if p.atAttribute() {
			p.skipAttributes()
			continue
		}
		t := p.curt
		switch {
		case isStorageClass(t.Kind):
			if t.Kind != cpp.THREAD_LOCAL {
				if spec.storage != "" {
					p.errorPos("multiple storage classes in declaration specifiers", t.Pos)
				}
				spec.storage = t.Kind.String()
			}
			p.next()
		case t.Kind == cpp.INLINE:
			spec.inline = true
			p.next()
		case t.Kind == cpp.NORETURN:
			p.next()
		case t.Kind == cpp.ATOMIC && p.nextt.Kind == cpp.LPAREN:
			p.next()
			inner := p.balanced()
			spec.words = append(spec.words, "_Atomic("+cpp.JoinTokens(inner)+")")
			spec.hasType = true
		case isQualifier(t.Kind):
			spec.words = append(spec.words, t.Kind.String())
			p.next()
		case isTypeKeyword(t.Kind):
			spec.words = append(spec.words, t.Kind.String())
			spec.hasType = true
			p.next()
		case isTagKeyword(t.Kind):
			if spec.hasType {
				p.errorPos("two or more data types in declaration specifiers", t.Pos)
			}
			rec, def := p.tagged()
			spec.tagged, spec.tagDef = rec, def
			spec.hasType = true
			if rec.Name == "" {
				spec.words = append(spec.words, rec.Composite.Aggregate.String()+" {...}")
			} else {
				spec.words = append(spec.words, rec.Composite.Aggregate.String()+" "+rec.Name)
			}
		case t.Kind == cpp.IDENT && !spec.hasType:
			if !p.identSpecifier(spec, inParam) {
				break loop
			}
		default:
			break loop
		}
	}
	if !spec.hasType {
		spec.words = append(spec.words, "int")
	}
	return spec
}

// identSpecifier decides what an identifier in specifier position is
// before any type was seen. It returns false when the identifier starts
// the declarator.
func (p *parser) identSpecifier(spec *declSpec, inParam bool) bool {
	t := p.curt
	if t.Val == "typeof" || t.Val == "__typeof__" || t.Val == "__typeof" {
		if p.nextt.Kind == cpp.LPAREN {
			p.next()
			inner := p.balanced()
			spec.words = append(spec.words, "typeof("+cpp.JoinTokens(inner)+")")
			spec.hasType = true
			return true
		}
	}
	if p.isTypeName(t.Val) {
		spec.words = append(spec.words, t.Val)
		spec.hasType = true
		p.next()
		return true
	}
	n := p.nextt
	switch {
	case p.startsSpecifier(n) || n.Kind == cpp.INLINE:
		// An unexpanded decoration macro, EXPORT int f(void).
		p.next()
		return true
	case n.Kind == cpp.LPAREN:
		if k := p.at(p.cur + 2).Kind; k == cpp.MUL || k == cpp.XOR {
			break
		}
		return false
	case n.Kind == cpp.ASSIGN, n.Kind == cpp.COMMA, n.Kind == cpp.LBRACK,
		n.Kind == cpp.SEMICOLON, n.Kind == cpp.RPAREN, n.Kind == cpp.EOF:
		if spec.seen() {
			return false
		}
		if !inParam {
			p.errorPos("missing type specifier before %s", t.Pos, t.Val)
		}
	}
	spec.words = append(spec.words, t.Val)
	spec.hasType = true
	p.next()
	return true
}

// declarator reads a possibly abstract declarator. The returned name is
// nil for abstract declarators. The chain starts at the name.
func (p *parser) declarator(abstractOK bool) (*cpp.Token, []Derivation) {
	var ptrs []Derivation
	for p.curt.Kind == cpp.MUL || p.curt.Kind == cpp.XOR {
		p.next()
		d := Derivation{Kind: Pointer}
		for {
			if isQualifier(p.curt.Kind) {
				d.Qualifiers = append(d.Qualifiers, p.curt.Kind.String())
				p.next()
				continue
			}
			if p.atAttribute() {
				p.skipAttributes()
				continue
			}
			break
		}
		ptrs = append(ptrs, d)
	}
	p.skipAttributes()

	var name *cpp.Token
	var chain []Derivation
	switch {
	case p.curt.Kind == cpp.LPAREN && p.groupedDeclarator():
		p.next()
		name, chain = p.declarator(abstractOK)
		p.expect(cpp.RPAREN)
	case p.curt.Kind == cpp.IDENT:
		name = p.curt
		p.next()
	case !abstractOK:
		p.errorPos("expected identifier got %s", p.curt.Pos, p.curt.Kind)
	}

	chain = append(chain, p.suffixes()...)
	for i := len(ptrs) - 1; i >= 0; i-- {
		chain = append(chain, ptrs[i])
	}
	return name, chain
}

// groupedDeclarator reports whether the '(' at the current token opens a
// nested declarator rather than a parameter list.
func (p *parser) groupedDeclarator() bool {
	n := p.nextt
	switch n.Kind {
	case cpp.MUL, cpp.XOR, cpp.LPAREN:
		return true
	case cpp.IDENT:
		if isAttribute(n) || bareDecorations[n.Val] {
			return true
		}
		return !p.isTypeName(n.Val)
	}
	return false
}

func (p *parser) suffixes() []Derivation {
	var ret []Derivation
	for {
		switch p.curt.Kind {
		case cpp.LBRACK:
			inner := p.balanced()
			ret = append(ret, Derivation{Kind: Array, Size: cpp.JoinTokens(inner)})
		case cpp.LPAREN:
			ret = append(ret, p.paramList())
		default:
			return ret
		}
		p.skipAttributes()
	}
}

func (p *parser) paramList() Derivation {
	d := Derivation{Kind: Func}
	p.expect(cpp.LPAREN)
	switch {
	case p.curt.Kind == cpp.RPAREN:
		p.next()
		return d
	case p.curt.Kind == cpp.VOID && p.nextt.Kind == cpp.RPAREN:
		p.next()
		p.next()
		d.Prototype = true
		return d
	}
	if end := matchClose(p.toks, p.cur-1); end > 0 && p.isIdentList(p.toks[p.cur:end]) {
		d.KR = true
		for p.curt.Kind == cpp.IDENT {
			d.Params = append(d.Params, Param{Name: p.curt.Val})
			p.next()
			if p.curt.Kind != cpp.COMMA {
				break
			}
			p.next()
		}
		p.expect(cpp.RPAREN)
		return d
	}
	d.Prototype = true
	for {
		if p.curt.Kind == cpp.ELLIPSIS {
			p.next()
			d.Variadic = true
			break
		}
		spec := p.specifiers(true)
		name, chain := p.declarator(true)
		prm := Param{Type: typeString(spec.text(), chain)}
		if name != nil {
			prm.Name = name.Val
		}
		d.Params = append(d.Params, prm)
		if p.curt.Kind != cpp.COMMA {
			break
		}
		p.next()
	}
	p.expect(cpp.RPAREN)
	return d
}

// tagged reads a struct, union or enum specifier. Named definitions are
// recorded immediately, nested ones included, as tags have file scope.
func (p *parser) tagged() (*Record, bool) {
	start := p.cur
	kw := p.curt
	agg := Struct
	switch kw.Kind {
	case cpp.UNION:
		agg = Union
	case cpp.ENUM:
		agg = Enum
	}
	p.next()
	p.skipAttributes()
	rec := &Record{
		Kind:      CompositeTypeDef,
		Pos:       kw.Pos,
		Start:     kw.Pos,
		End:       kw.Pos,
		Composite: &Composite{Aggregate: agg},
	}
	if p.curt.Kind == cpp.IDENT {
		rec.Name = p.curt.Val
		rec.Pos = p.curt.Pos
		rec.End = p.curt.Pos
		p.next()
	}
	if agg == Enum && p.curt.Kind == cpp.COLON {
		// Fixed underlying type.
		for p.curt.Kind != cpp.LBRACE && p.curt.Kind != cpp.EOF {
			p.next()
		}
	}
	if p.curt.Kind != cpp.LBRACE {
		if rec.Name == "" {
			p.errorPos("expected identifier or '{' after %s", p.curt.Pos, kw.Val)
		}
		rec.Signature = p.text(start)
		return rec, false
	}
	p.next()
	if agg == Enum {
		p.enumerators(rec)
	} else {
		p.members(rec)
	}
	rec.End = p.curt.Pos
	p.expect(cpp.RBRACE)
	rec.Signature = p.text(start)
	p.skipAttributes()
	if rec.Name == "" {
		rec.Composite.Anonymous = true
	} else {
		p.records = append(p.records, rec)
	}
	return rec, true
}

func (p *parser) members(rec *Record) {
	c := rec.Composite
	for p.curt.Kind != cpp.RBRACE {
		switch p.curt.Kind {
		case cpp.EOF:
			p.errorPos("expected '}' at end of input", p.curt.Pos)
		case cpp.SEMICOLON:
			p.next()
			continue
		case cpp.STATIC_ASSERT:
			p.next()
			p.balanced()
			p.expect(cpp.SEMICOLON)
			continue
		}
		spec := p.specifiers(false)
		if p.curt.Kind == cpp.SEMICOLON {
			// Anonymous struct or union member.
			m := Member{Type: spec.text()}
			if spec.tagDef {
				m.Nested = spec.tagged
			}
			c.Members = append(c.Members, m)
			p.next()
			continue
		}
		for {
			m := Member{Type: spec.text()}
			if p.curt.Kind != cpp.COLON {
				name, chain := p.declarator(false)
				m.Name = name.Val
				m.Type = typeString(spec.text(), chain)
			}
			p.skipAttributes()
			if p.curt.Kind == cpp.COLON {
				p.next()
				m.BitWidth = p.until(cpp.COMMA, cpp.SEMICOLON)
				if m.BitWidth == "" {
					p.errorPos("expected bit-field width", p.curt.Pos)
				}
			}
			p.skipAttributes()
			if spec.tagDef {
				m.Nested = spec.tagged
			}
			c.Members = append(c.Members, m)
			if p.curt.Kind != cpp.COMMA {
				break
			}
			p.next()
		}
		p.expect(cpp.SEMICOLON)
	}
}

func (p *parser) enumerators(rec *Record) {
	c := rec.Composite
	for p.curt.Kind != cpp.RBRACE {
		name := p.expect(cpp.IDENT)
		p.skipAttributes()
		m := Member{Name: name.Val}
		if p.curt.Kind == cpp.ASSIGN {
			p.next()
			m.Value = p.until(cpp.COMMA)
			if m.Value == "" {
				p.errorPos("expected enumerator value", p.curt.Pos)
			}
		}
		c.Members = append(c.Members, m)
		if p.curt.Kind != cpp.COMMA {
			break
		}
		p.next()
	}
}

// until consumes tokens up to one of the given kinds at bracket depth
// zero, a closing '}' or the end of the statement, and returns their
// text.
func (p *parser) until(stop ...cpp.TokenKind) string {
	start := p.cur
	for {
		switch k := p.curt.Kind; k {
		case cpp.EOF, cpp.RBRACE:
			return p.text(start)
		case cpp.LPAREN, cpp.LBRACK, cpp.LBRACE:
			p.balanced()
			continue
		default:
			for _, s := range stop {
				if k == s {
					return p.text(start)
				}
			}
		}
		p.next()
	}
}
