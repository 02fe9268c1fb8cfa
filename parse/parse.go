package parse

import (
	"errors"
	"fmt"
	"os"
	"runtime/debug"
	"sort"

	"github.com/andrewchambers/csyms/cpp"
)

type parser struct {
	pp      *cpp.Preprocessor
	diags   *cpp.DiagList
	types   *scope
	records []*Record

	// The statement being classified.
	st          *statement
	toks        []*cpp.Token
	cur         int
	eof         *cpp.Token
	curt, nextt *cpp.Token
}

type parseErrorBreakOut struct {
	err error
}

// Parse classifies the top-level declarations of the preprocessed
// token stream and returns their records in source order, followed by
// nothing else. Macro definitions are merged in by position.
//
// Declarations that cannot be classified are skipped with a warning in
// the preprocessor's diagnostics. The error is the one the preprocessor
// reported at end of input, the records are valid in any case.
func Parse(pp *cpp.Preprocessor) ([]*Record, error) {
	p := &parser{
		pp:    pp,
		diags: pp.Diagnostics(),
		types: newScope(newBuiltinScope()),
	}
	var err error
	for {
		var st *statement
		st, err = p.collect()
		if st == nil {
			break
		}
		p.classify(st)
	}
	for _, d := range pp.Defines() {
		p.records = append(p.records, macroRecord(d))
	}
	sort.SliceStable(p.records, func(i, j int) bool {
		return p.records[i].Start.Before(p.records[j].Start)
	})
	return p.records, err
}

func (p *parser) errorPos(m string, pos cpp.FilePos, vals ...interface{}) {
	err := fmt.Errorf("syntax error: "+m, vals...)
	if os.Getenv("CSYMSDEBUG") == "true" {
		err = fmt.Errorf("%s\n%s", err, debug.Stack())
	}
	err = cpp.ErrWithLoc(err, pos)
	panic(parseErrorBreakOut{err})
}

func (p *parser) expect(k cpp.TokenKind) *cpp.Token {
	t := p.curt
	if t.Kind != k {
		p.errorPos("expected %s got %s", t.Pos, k, t.Kind)
	}
	p.next()
	return t
}

func (p *parser) next() {
	p.cur++
	p.curt = p.at(p.cur)
	p.nextt = p.at(p.cur + 1)
}

func (p *parser) at(i int) *cpp.Token {
	if i < len(p.toks) {
		return p.toks[i]
	}
	return p.eof
}

// text returns the source text of the tokens from index start up to the
// current token.
func (p *parser) text(start int) string {
	end := p.cur
	if end > len(p.toks) {
		end = len(p.toks)
	}
	if start >= end {
		return ""
	}
	return cpp.JoinTokens(p.toks[start:end])
}

// balanced consumes a bracketed group starting at the current token and
// returns the tokens inside it.
func (p *parser) balanced() []*cpp.Token {
	open := p.cur
	end := matchClose(p.toks, open)
	if end < 0 {
		p.errorPos("unbalanced %s", p.curt.Pos, p.curt.Kind)
	}
	inner := p.toks[open+1 : end]
	for p.cur <= end {
		p.next()
	}
	return inner
}

func (p *parser) isTypeName(name string) bool {
	_, err := p.types.lookup(name)
	return err == nil
}

func (p *parser) classify(st *statement) {
	p.st = st
	p.toks = st.toks
	p.eof = &cpp.Token{Kind: cpp.EOF, Pos: st.end}
	p.cur = -1
	p.next()

	mark := len(p.records)
	defer func() {
		if e := recover(); e != nil {
			peb := e.(parseErrorBreakOut) // Will re-panic if not a breakout.
			p.records = p.records[:mark]
			var loc cpp.ErrorLoc
			if errors.As(peb.err, &loc) {
				p.diags.Warnf(cpp.SyntaxError, loc.Pos, "%v, declaration skipped", loc.Err)
			} else {
				p.diags.Warnf(cpp.SyntaxError, st.toks[0].Pos, "%v, declaration skipped", peb.err)
			}
			if i := p.resumeAt(); i > 0 {
				p.classify(&statement{toks: st.toks[i:], hasBody: st.hasBody, end: st.end})
			}
		}
	}()

	switch {
	case p.curt.Kind == cpp.STATIC_ASSERT:
		return
	case p.isMacroInvocation():
		if !st.hasBody {
			p.diags.Warnf(cpp.SyntaxError, p.curt.Pos, "unexpanded macro invocation %s, skipped", p.curt.Val)
			return
		}
	}
	p.declaration()
}

// resumeAt returns the index of the last token following a directive
// line, at or after the token that failed, or 0 when there is none. A
// declaration missing its ';' is then not joined to the next one.
func (p *parser) resumeAt() int {
	for i := len(p.toks) - 1; i > 0 && i >= p.cur; i-- {
		if p.toks[i].AfterDirective {
			return i
		}
	}
	return 0
}

// isMacroInvocation reports whether the statement is NAME(...) without a
// type, which at file scope can only be a macro the preprocessor did not
// know about.
func (p *parser) isMacroInvocation() bool {
	if p.curt.Kind != cpp.IDENT || p.nextt.Kind != cpp.LPAREN || p.isTypeName(p.curt.Val) {
		return false
	}
	return matchClose(p.toks, 1) == len(p.toks)-1
}

func (p *parser) declaration() {
	spec := p.specifiers(false)
	specEnd := p.cur
	start := p.toks[0].Pos

	if p.curt.Kind == cpp.EOF {
		p.tagOnly(spec, start)
		return
	}

	first := true
	for {
		declStart := p.cur
		name, chain := p.declarator(false)
		sig := cpp.JoinTokens(p.toks[:specEnd])
		if d := p.text(declStart); d != "" {
			sig += " " + d
		}
		p.skipAttributes()
		rec := &Record{
			Name:      name.Val,
			Pos:       name.Pos,
			Start:     start,
			End:       p.st.end,
			Signature: sig,
		}
		switch {
		case spec.storage == "typedef":
			p.typedef(rec, spec, chain)
		case len(chain) > 0 && chain[0].Kind == Func:
			rec.Kind = FunctionDecl
			fn := &Function{
				Return:    typeString(spec.text(), chain[1:]),
				Params:    chain[0].Params,
				Variadic:  chain[0].Variadic,
				Prototype: chain[0].Prototype,
				KR:        chain[0].KR,
				Storage:   spec.storage,
				Inline:    spec.inline,
			}
			rec.Function = fn
			if first && p.st.hasBody {
				rec.Kind = FunctionDef
				if fn.KR {
					p.krParams(fn)
				}
				rec.Signature = cpp.JoinTokens(p.toks)
			}
		default:
			rec.Kind = GlobalVariable
			v := &Variable{
				Type:    typeString(spec.text(), chain),
				Chain:   chain,
				Storage: spec.storage,
			}
			if spec.tagged != nil && spec.tagged.Composite.Anonymous {
				v.Inline = spec.tagged
			}
			if p.curt.Kind == cpp.ASSIGN {
				p.next()
				p.initializer(v)
			}
			rec.Variable = v
		}
		p.records = append(p.records, rec)
		if p.curt.Kind != cpp.COMMA {
			break
		}
		p.next()
		first = false
	}
	if p.curt.Kind != cpp.EOF {
		p.errorPos("expected '=', ',' or ';' got %s", p.curt.Pos, p.curt.Kind)
	}
	if p.st.hasBody && (len(p.records) == 0 || p.records[len(p.records)-1].Kind != FunctionDef) {
		p.errorPos("unexpected function body", p.st.end)
	}
}

// tagOnly handles a declaration without declarators, struct S; or a
// bare aggregate definition.
func (p *parser) tagOnly(spec *declSpec, start cpp.FilePos) {
	switch {
	case spec.tagged == nil:
		p.diags.Warnf(cpp.SyntaxError, start, "declaration does not declare anything")
	case spec.tagDef && spec.tagged.Composite.Anonymous:
		spec.tagged.End = p.st.end
		p.records = append(p.records, spec.tagged)
	case !spec.tagDef:
		rec := spec.tagged
		rec.Composite.ForwardOnly = true
		rec.End = p.st.end
		p.records = append(p.records, rec)
	}
}

func (p *parser) typedef(rec *Record, spec *declSpec, chain []Derivation) {
	rec.Kind = TypedefAlias
	td := &Typedef{
		Underlying: spec.text(),
		Type:       typeString(spec.text(), chain),
		Chain:      chain,
	}
	if spec.tagged != nil && spec.tagged.Composite.Anonymous {
		td.Inline = spec.tagged
	}
	rec.Typedef = td
	err := p.types.define(rec.Name, &TSymbol{Type: td.Type, Rec: rec})
	if err != nil {
		if prev, _ := p.types.lookup(rec.Name); prev.Type != td.Type {
			p.diags.Warnf(cpp.SyntaxError, rec.Pos, "conflicting types for typedef %s, %q and %q", rec.Name, prev.Type, td.Type)
		}
	}
}

// initializer records the initializer of v, up to the next ',' or the
// end of the statement.
func (p *parser) initializer(v *Variable) {
	v.HasInit = true
	v.InitList = p.curt.Kind == cpp.LBRACE
	v.Init = p.until(cpp.COMMA)
	if v.Init == "" {
		p.errorPos("expected initializer", p.curt.Pos)
	}
}

// krParams reads old style parameter declarations and fills in the
// types of the named parameters. Undeclared ones are int.
func (p *parser) krParams(fn *Function) {
	types := make(map[string]string)
	for p.curt.Kind != cpp.EOF {
		spec := p.specifiers(false)
		for {
			name, chain := p.declarator(false)
			types[name.Val] = typeString(spec.text(), chain)
			if p.curt.Kind != cpp.COMMA {
				break
			}
			p.next()
		}
		p.expect(cpp.SEMICOLON)
	}
	for i := range fn.Params {
		t, ok := types[fn.Params[i].Name]
		if !ok {
			t = "int"
		}
		fn.Params[i].Type = t
	}
}
