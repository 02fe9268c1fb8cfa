package parse

import (
	"github.com/andrewchambers/csyms/cpp"
)

// statement holds the tokens of one top-level declaration, without its
// terminating ';' and without a function body.
type statement struct {
	toks    []*cpp.Token
	hasBody bool
	// end is the position of the ';' or of the '}' closing the body.
	end cpp.FilePos
}

// collect reads the next top-level declaration from the preprocessor.
// It returns nil at end of input, with the error the preprocessor gave.
func (p *parser) collect() (*statement, error) {
	var toks []*cpp.Token
	depth := 0
	for {
		t, err := p.pp.Next()
		if t.Kind == cpp.EOF {
			if len(toks) > 0 {
				p.diags.Warnf(cpp.SyntaxError, toks[0].Pos, "expected ';' before end of input, declaration skipped")
			}
			return nil, err
		}
		switch t.Kind {
		case cpp.LPAREN, cpp.LBRACK:
			depth++
		case cpp.RPAREN, cpp.RBRACK:
			if depth > 0 {
				depth--
			}
		case cpp.LBRACE:
			if depth == 0 && len(toks) == 0 {
				p.diags.Warnf(cpp.SyntaxError, t.Pos, "block at file scope, skipped")
				if _, ok := p.skipBody(t, "block"); !ok {
					return nil, p.drain()
				}
				continue
			}
			if depth == 0 && p.startsBody(toks) {
				end, ok := p.skipBody(t, "function body")
				if !ok {
					return nil, p.drain()
				}
				return &statement{toks: toks, hasBody: true, end: end}, nil
			}
			depth++
		case cpp.RBRACE:
			if depth == 0 {
				p.diags.Warnf(cpp.SyntaxError, t.Pos, "unexpected '}'")
				toks = nil
				continue
			}
			depth--
		case cpp.SEMICOLON:
			if depth != 0 {
				break
			}
			if p.inKRDeclarations(toks) {
				toks = append(toks, t)
				continue
			}
			if len(toks) == 0 {
				continue
			}
			return &statement{toks: toks, end: t.Pos}, nil
		}
		toks = append(toks, t)
	}
}

// skipBody consumes a brace enclosed body whose '{' was already read.
func (p *parser) skipBody(open *cpp.Token, what string) (cpp.FilePos, bool) {
	depth := 1
	for {
		t, _ := p.pp.Next()
		switch t.Kind {
		case cpp.EOF:
			p.diags.Warnf(cpp.SyntaxError, open.Pos, "unterminated %s", what)
			return t.Pos, false
		case cpp.LBRACE:
			depth++
		case cpp.RBRACE:
			depth--
			if depth == 0 {
				return t.Pos, true
			}
		}
	}
}

func (p *parser) drain() error {
	return p.pp.Drain()
}

// startsBody reports whether a '{' following toks opens a function body
// rather than a member list or an initializer.
func (p *parser) startsBody(toks []*cpp.Token) bool {
	end := len(toks)
	// Trailing attributes, as in int f(void) __attribute__((cold)) {.
	for end > 0 && toks[end-1].Kind == cpp.RPAREN {
		open := matchOpen(toks[:end], end-1)
		if open > 0 && isAttribute(toks[open-1]) {
			end = open - 1
			continue
		}
		break
	}
	if end == 0 {
		return false
	}
	switch toks[end-1].Kind {
	case cpp.SEMICOLON:
		// Only kept inside old style parameter declarations.
		return true
	case cpp.RPAREN:
	default:
		return false
	}
	depth := 0
	for _, t := range toks[:end] {
		switch t.Kind {
		case cpp.LPAREN, cpp.LBRACK, cpp.LBRACE:
			depth++
		case cpp.RPAREN, cpp.RBRACK, cpp.RBRACE:
			depth--
		case cpp.ASSIGN:
			if depth == 0 {
				return false
			}
		}
	}
	return true
}

// inKRDeclarations reports whether toks is an old style function
// declarator followed by parameter declarations, int f(a, b) int a.
func (p *parser) inKRDeclarations(toks []*cpp.Token) bool {
	for i, t := range toks {
		if t.Kind != cpp.LPAREN {
			continue
		}
		if i == 0 || toks[i-1].Kind != cpp.IDENT {
			return false
		}
		end := matchClose(toks, i)
		if end < 0 || end+1 >= len(toks) {
			return false
		}
		return p.isIdentList(toks[i+1:end]) && p.startsSpecifier(toks[end+1])
	}
	return false
}

func (p *parser) isIdentList(toks []*cpp.Token) bool {
	if len(toks) == 0 {
		return false
	}
	for i, t := range toks {
		if i%2 == 1 {
			if t.Kind != cpp.COMMA {
				return false
			}
			continue
		}
		if t.Kind != cpp.IDENT || p.isTypeName(t.Val) {
			return false
		}
	}
	return len(toks)%2 == 1
}

// matchClose returns the index of the bracket closing toks[open], or -1.
func matchClose(toks []*cpp.Token, open int) int {
	depth := 0
	for i := open; i < len(toks); i++ {
		switch toks[i].Kind {
		case cpp.LPAREN, cpp.LBRACK, cpp.LBRACE:
			depth++
		case cpp.RPAREN, cpp.RBRACK, cpp.RBRACE:
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// matchOpen returns the index of the bracket opening toks[close], or -1.
func matchOpen(toks []*cpp.Token, close int) int {
	depth := 0
	for i := close; i >= 0; i-- {
		switch toks[i].Kind {
		case cpp.RPAREN, cpp.RBRACK, cpp.RBRACE:
			depth++
		case cpp.LPAREN, cpp.LBRACK, cpp.LBRACE:
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
