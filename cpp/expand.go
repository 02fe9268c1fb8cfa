package cpp

import (
	"fmt"
	"strconv"
	"strings"
)

// Macro expansion follows Dave Prosser's algorithm. Every token carries
// the set of macro names it was produced by, a name found in its own
// hideset is never expanded again. Rescanning works by pushing the
// substituted body back onto the token source.

type tokenSource interface {
	next() *Token
	// unget pushes tokens back so that toks[0] is returned next.
	unget(toks []*Token)
}

// sliceSource reads from a fixed list of tokens, used for macro
// arguments and directive lines. It returns EOF once exhausted.
type sliceSource struct {
	toks []*Token
	eof  *Token
}

func newSliceSource(toks []*Token) *sliceSource {
	eof := &Token{Kind: EOF, hs: emptyHS}
	if len(toks) > 0 {
		eof.Pos = toks[len(toks)-1].Pos
	}
	return &sliceSource{toks: toks, eof: eof}
}

func (s *sliceSource) next() *Token {
	if len(s.toks) == 0 {
		return s.eof
	}
	t := s.toks[0]
	s.toks = s.toks[1:]
	return t
}

func (s *sliceSource) unget(toks []*Token) {
	ret := make([]*Token, 0, len(toks)+len(s.toks))
	ret = append(ret, toks...)
	s.toks = append(ret, s.toks...)
}

// mainSource reads active tokens of the unit being preprocessed.
type mainSource struct {
	pp *Preprocessor
}

func (s mainSource) next() *Token {
	return s.pp.nextActive()
}

func (s mainSource) unget(toks []*Token) {
	s.pp.ungetTokens(toks)
}

func isBuiltinMacro(name string) bool {
	switch name {
	case "__FILE__", "__LINE__", "__COUNTER__":
		return true
	}
	return false
}

func (pp *Preprocessor) builtin(t *Token) *Token {
	ret := t.copy()
	ret.WasMacroExpanded = true
	switch t.Val {
	case "__FILE__":
		ret.Kind = STRING
		ret.Val = strconv.Quote(t.Pos.File)
	case "__LINE__":
		ret.Kind = INT_CONSTANT
		ret.Val = strconv.Itoa(t.Pos.Line)
	case "__COUNTER__":
		ret.Kind = INT_CONSTANT
		ret.Val = strconv.Itoa(pp.counter)
		pp.counter++
	default:
		return nil
	}
	return ret
}

// expandNext returns the next fully expanded token from src.
func (pp *Preprocessor) expandNext(src tokenSource) *Token {
	for {
		t := src.next()
		if !t.IsIdent() || t.hs.contains(t.Val) {
			return t
		}
		m, ok := pp.macros.Lookup(t.Val)
		if !ok {
			if b := pp.builtin(t); b != nil {
				return b
			}
			return t
		}
		if !m.FuncLike {
			hs := t.hs.add(m.Name)
			src.unget(pp.subst(m, t, nil, hs))
			continue
		}
		lparen := src.next()
		if lparen.Kind != LPAREN {
			// A function like macro name without arguments is a plain identifier.
			src.unget([]*Token{lparen})
			return t
		}
		args, rparen, consumed, err := pp.readMacroInvokeArguments(src, m)
		if err != nil {
			pp.diags.Errorf(MacroError, t.Pos, "%v", err)
			src.unget(append([]*Token{lparen}, consumed...))
			hidden := t.copy()
			hidden.hs = t.hs.add(m.Name)
			return hidden
		}
		hs := t.hs.intersection(rparen.hs).add(m.Name)
		src.unget(pp.subst(m, t, args, hs))
	}
}

// expandAll fully expands a token sequence in isolation.
func (pp *Preprocessor) expandAll(toks []*Token) []*Token {
	src := newSliceSource(toks)
	var ret []*Token
	for {
		t := pp.expandNext(src)
		if t.Kind == EOF {
			return ret
		}
		ret = append(ret, t)
	}
}

//Read the tokens that are part of a macro invocation, not including the first paren.
//But including the last paren. Handles nested parens.
//returns a slice of token lists and the closing paren.
//Each token list in the returned value represents a read macro param.
//e.g. FOO(BAR,(A,B),C)  -> { <BAR> , <(A,B)> , <C> } , )
//Where FOO( has already been consumed.
//consumed holds every token read, for putting them back on error.
func (pp *Preprocessor) readMacroInvokeArguments(src tokenSource, m *Macro) (args [][]*Token, rparen *Token, consumed []*Token, err error) {
	nparams := len(m.Params)
	depth := 0
	var cur []*Token
loop:
	for {
		t := src.next()
		consumed = append(consumed, t)
		switch t.Kind {
		case EOF:
			return nil, nil, consumed, fmt.Errorf("unterminated argument list invoking macro %q", m.Name)
		case LPAREN:
			depth += 1
		case RPAREN:
			if depth == 0 {
				args = append(args, cur)
				rparen = t
				break loop
			}
			depth -= 1
		case COMMA:
			if depth == 0 && !(m.Variadic && len(args) >= nparams-1) {
				args = append(args, cur)
				cur = nil
				continue
			}
		}
		cur = append(cur, t)
	}
	if nparams == 0 && len(args) == 1 && len(args[0]) == 0 {
		args = nil
	}
	if m.Variadic {
		if len(args) == nparams-1 {
			args = append(args, nil)
		}
		if len(args) < nparams {
			return nil, nil, consumed, fmt.Errorf("macro %q requires at least %d arguments, but only %d given", m.Name, nparams-1, len(args))
		}
	} else if len(args) != nparams {
		return nil, nil, consumed, fmt.Errorf("macro %q passed %d arguments, but takes %d", m.Name, len(args), nparams)
	}
	return args, rparen, consumed, nil
}

// subst substitutes args into the body of m and marks the result with
// hs, ready for rescanning.
func (pp *Preprocessor) subst(m *Macro, inv *Token, args [][]*Token, hs *hideset) []*Token {
	e := &substitution{
		pp:       pp,
		m:        m,
		inv:      inv,
		args:     args,
		expanded: make([][]*Token, len(args)),
		done:     make([]bool, len(args)),
	}
	ret := e.body(m.Body)
	for i, t := range ret {
		t.hs = t.hs.union(hs)
		t.WasMacroExpanded = true
		if i == 0 {
			t.HasSpace = inv.HasSpace
			t.AfterDirective = inv.AfterDirective
		}
	}
	return ret
}

type substitution struct {
	pp       *Preprocessor
	m        *Macro
	inv      *Token
	args     [][]*Token
	expanded [][]*Token
	done     []bool
}

// Arguments are completely macro-expanded before they are substituted
// into a macro body, at most once per invocation.
func (e *substitution) expandedArg(idx int) []*Token {
	if !e.done[idx] {
		e.expanded[idx] = e.pp.expandAll(e.args[idx])
		e.done[idx] = true
	}
	return e.expanded[idx]
}

func (e *substitution) bodyTok(t *Token) *Token {
	ret := t.copy()
	ret.Pos = e.inv.Pos
	return ret
}

func copyTokens(toks []*Token, hasSpace bool) []*Token {
	ret := make([]*Token, len(toks))
	for i, t := range toks {
		ret[i] = t.copy()
	}
	if len(ret) > 0 {
		ret[0].HasSpace = hasSpace
	}
	return ret
}

func (e *substitution) body(body []*Token) []*Token {
	m := e.m
	var out []*Token
	for i := 0; i < len(body); i++ {
		t := body[i]
		if m.Opaque {
			if idx := m.paramIndex(t); idx >= 0 {
				out = append(out, copyTokens(e.expandedArg(idx), t.HasSpace)...)
			} else {
				out = append(out, e.bodyTok(t))
			}
			continue
		}

		// #param
		if m.FuncLike && t.Kind == HASH && i+1 < len(body) {
			if idx := m.paramIndex(body[i+1]); idx >= 0 {
				s := stringize(e.args[idx], e.inv.Pos)
				s.HasSpace = t.HasSpace
				out = append(out, s)
				i++
				continue
			}
		}

		// [GNU] If __VA_ARGS__ is empty, ",##__VA_ARGS__" expands to
		// nothing. Otherwise it is "," followed by __VA_ARGS__.
		if t.Kind == COMMA && i+2 < len(body) && body[i+1].Kind == HASHHASH && m.isVariadicParam(body[i+2]) {
			if len(e.args[len(e.args)-1]) == 0 {
				i += 2
			} else {
				out = append(out, e.bodyTok(t))
				i++
			}
			continue
		}

		// __VA_OPT__(content)
		if m.Variadic && t.Kind == IDENT && t.Val == "__VA_OPT__" && i+1 < len(body) && body[i+1].Kind == LPAREN {
			if end := matchParen(body, i+1); end > 0 {
				if len(e.args[len(e.args)-1]) > 0 {
					inner := e.body(body[i+2 : end])
					if len(inner) > 0 {
						inner[0].HasSpace = t.HasSpace
					}
					out = append(out, inner...)
				}
				i = end
				continue
			}
		}

		if t.Kind == HASHHASH && i+1 < len(body) {
			rhs := body[i+1]
			i++
			var rtoks []*Token
			if idx := m.paramIndex(rhs); idx >= 0 {
				rtoks = copyTokens(e.args[idx], rhs.HasSpace)
			} else {
				rtoks = []*Token{e.bodyTok(rhs)}
			}
			if len(rtoks) == 0 {
				continue
			}
			if len(out) == 0 {
				out = append(out, rtoks...)
				continue
			}
			pasted := e.pp.paste(out[len(out)-1], rtoks[0])
			out = append(out[:len(out)-1], pasted...)
			out = append(out, rtoks[1:]...)
			continue
		}

		idx := m.paramIndex(t)
		if idx >= 0 && i+1 < len(body) && body[i+1].Kind == HASHHASH {
			// Operands of ## are not expanded.
			raw := e.args[idx]
			if len(raw) == 0 && i+2 < len(body) {
				rhs := body[i+2]
				if j := m.paramIndex(rhs); j >= 0 {
					out = append(out, copyTokens(e.args[j], t.HasSpace)...)
				} else {
					r := e.bodyTok(rhs)
					r.HasSpace = t.HasSpace
					out = append(out, r)
				}
				i += 2
				continue
			}
			out = append(out, copyTokens(raw, t.HasSpace)...)
			continue
		}
		if idx >= 0 {
			out = append(out, copyTokens(e.expandedArg(idx), t.HasSpace)...)
			continue
		}
		out = append(out, e.bodyTok(t))
	}
	return out
}

// matchParen returns the index of the paren closing toks[open], or -1.
func matchParen(toks []*Token, open int) int {
	depth := 0
	for i := open; i < len(toks); i++ {
		switch toks[i].Kind {
		case LPAREN:
			depth++
		case RPAREN:
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// stringize turns the unexpanded tokens of an argument into a string
// literal. Runs of whitespace become one space, leading and trailing
// whitespace is dropped.
func stringize(arg []*Token, pos FilePos) *Token {
	var b strings.Builder
	b.WriteByte('"')
	for i, t := range arg {
		if i > 0 && t.HasSpace {
			b.WriteByte(' ')
		}
		if t.Kind == STRING || t.Kind == CHAR_CONSTANT {
			for _, c := range t.Val {
				if c == '"' || c == '\\' {
					b.WriteByte('\\')
				}
				b.WriteRune(c)
			}
			continue
		}
		b.WriteString(t.Val)
	}
	b.WriteByte('"')
	return &Token{Kind: STRING, Val: b.String(), Pos: pos, hs: emptyHS}
}

// paste concatenates two tokens and relexes the result. A result that
// is not a single token is reported and kept as the tokens it lexes to.
func (pp *Preprocessor) paste(lhs, rhs *Token) []*Token {
	text := lhs.Val + rhs.Val
	lx := Lex(lhs.Pos.File, []byte(text))
	// A leading # must not start a directive.
	lx.cur.bol = false
	var toks []*Token
	for {
		t := lx.Next()
		if t.Kind == EOF {
			break
		}
		t.Pos = lhs.Pos
		t.hs = lhs.hs
		toks = append(toks, t)
	}
	if len(toks) != 1 {
		pp.diags.Errorf(MacroError, lhs.Pos, "pasting %q and %q does not give a valid preprocessing token", lhs.Val, rhs.Val)
	}
	if len(toks) > 0 {
		toks[0].HasSpace = lhs.HasSpace
	}
	return toks
}
