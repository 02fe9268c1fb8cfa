package cpp

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Lexer turns C source into preprocessing tokens. It works on demand,
// each call to Next lexes just enough input to produce one token.
//
// Line continuations are removed while reading characters, positions
// still refer to physical lines. Comments become whitespace, recorded
// in the HasSpace flag of the following token.
type Lexer struct {
	src       []byte
	cur       lexState
	prev      lexState
	markedPos FilePos
	// Set when whitespace or a comment was skipped since the last token.
	sawSpace bool
	// Set to true if we are currently reading a # directive line
	inDirective bool
	// Suppresses diagnostics while the preprocessor skips a region.
	skipping bool
	pending  []*Token
	diags    *DiagList
}

type lexState struct {
	off int
	pos FilePos
	// At the beginning on line not including whitespace.
	bol bool
	// Set to true if we have hit the end of file.
	eof bool
}

// Lex creates a lexer over src.
// fname is used for error messages when showing the source location.
// No preprocessing is done, this is just pure reading of the unprocessed
// source file.
func Lex(fname string, src []byte) *Lexer {
	lx := &Lexer{
		src:   src,
		diags: &DiagList{},
	}
	lx.cur.pos.File = fname
	lx.Reset()
	return lx
}

// Reset rewinds the lexer to the start of its input.
func (lx *Lexer) Reset() {
	lx.cur = lexState{
		pos: FilePos{File: lx.cur.pos.File, Line: 1, Col: 1},
		bol: true,
	}
	lx.prev = lx.cur
	lx.markedPos = lx.cur.pos
	lx.sawSpace = false
	lx.inDirective = false
	lx.pending = nil
}

// Diagnostics returns the list the lexer reports problems to.
func (lx *Lexer) Diagnostics() *DiagList {
	return lx.diags
}

// Next returns the next token. Once the input is exhausted it keeps
// returning EOF tokens.
func (lx *Lexer) Next() *Token {
	for len(lx.pending) == 0 {
		lx.lexOne()
	}
	tok := lx.pending[0]
	lx.pending = lx.pending[1:]
	return tok
}

func (lx *Lexer) markPos() {
	lx.markedPos = lx.cur.pos
}

func (lx *Lexer) sendTok(kind TokenKind, val string) {
	tok := &Token{
		Kind:     kind,
		Val:      val,
		Pos:      lx.markedPos,
		HasSpace: lx.sawSpace,
		hs:       emptyHS,
	}
	lx.sawSpace = false
	switch kind {
	case END_DIRECTIVE:
		//Do nothing as this is a pseudo directive.
	default:
		lx.cur.bol = false
	}
	lx.pending = append(lx.pending, tok)
}

func (lx *Lexer) errorf(format string, args ...interface{}) {
	if lx.skipping {
		return
	}
	lx.diags.Errorf(SyntaxError, lx.markedPos, format, args...)
}

func (lx *Lexer) unreadRune() {
	lx.cur = lx.prev
}

func (lx *Lexer) restore(s lexState) {
	lx.cur = s
}

// newlineAt returns the length of the line terminator at i, or 0.
func (lx *Lexer) newlineAt(i int) int {
	if i >= len(lx.src) {
		return 0
	}
	switch lx.src[i] {
	case '\n':
		return 1
	case '\r':
		if i+1 < len(lx.src) && lx.src[i+1] == '\n' {
			return 2
		}
	}
	return 0
}

func (lx *Lexer) readRune() (rune, bool) {
	lx.prev = lx.cur
	for {
		if lx.cur.off >= len(lx.src) {
			lx.cur.eof = true
			return 0, true
		}
		r, sz := utf8.DecodeRune(lx.src[lx.cur.off:])
		if r == '\\' {
			if n := lx.newlineAt(lx.cur.off + 1); n > 0 {
				lx.cur.off += 1 + n
				lx.cur.pos.Line += 1
				lx.cur.pos.Col = 1
				continue
			}
		}
		lx.cur.off += sz
		switch r {
		case '\n':
			lx.cur.pos.Line += 1
			lx.cur.pos.Col = 1
			lx.cur.bol = true
		case '\t':
			lx.cur.pos.Col += 4
		default:
			lx.cur.pos.Col += 1
		}
		return r, false
	}
}

func (lx *Lexer) peekRune() rune {
	r, eof := lx.readRune()
	if eof {
		return 0
	}
	lx.unreadRune()
	return r
}

// accept consumes the next rune if it is r.
func (lx *Lexer) accept(r rune) bool {
	c, eof := lx.readRune()
	if eof {
		return false
	}
	if c != r {
		lx.unreadRune()
		return false
	}
	return true
}

func (lx *Lexer) lexOne() {
	lx.markPos()
	first, eof := lx.readRune()
	if eof {
		if lx.inDirective {
			lx.sendTok(END_DIRECTIVE, "")
			lx.inDirective = false
		}
		lx.sendTok(EOF, "")
		return
	}
	switch {
	case isValidIdentStart(first):
		lx.unreadRune()
		lx.readIdentOrKeyword()
	case isNumeric(first):
		lx.unreadRune()
		lx.readNumber(false)
	case isWhiteSpace(first):
		lx.unreadRune()
		lx.skipWhiteSpace()
	default:
		switch first {
		case '#':
			if lx.isAtLineStart() && !lx.inDirective {
				lx.readDirective()
			} else if lx.accept('#') {
				lx.sendTok(HASHHASH, "##")
			} else {
				lx.sendTok(HASH, "#")
			}
		case '!':
			if lx.accept('=') {
				lx.sendTok(NEQ, "!=")
			} else {
				lx.sendTok(NOT, "!")
			}
		case '?':
			lx.sendTok(QUESTION, "?")
		case ':':
			lx.sendTok(COLON, ":")
		case '\'':
			lx.unreadRune()
			lx.readCChar("")
		case '"':
			lx.unreadRune()
			lx.readCString("")
		case '(':
			lx.sendTok(LPAREN, "(")
		case ')':
			lx.sendTok(RPAREN, ")")
		case '{':
			lx.sendTok(LBRACE, "{")
		case '}':
			lx.sendTok(RBRACE, "}")
		case '[':
			lx.sendTok(LBRACK, "[")
		case ']':
			lx.sendTok(RBRACK, "]")
		case '<':
			switch {
			case lx.accept('<'):
				if lx.accept('=') {
					lx.sendTok(SHL_ASSIGN, "<<=")
				} else {
					lx.sendTok(SHL, "<<")
				}
			case lx.accept('='):
				lx.sendTok(LEQ, "<=")
			default:
				lx.sendTok(LSS, "<")
			}
		case '>':
			switch {
			case lx.accept('>'):
				if lx.accept('=') {
					lx.sendTok(SHR_ASSIGN, ">>=")
				} else {
					lx.sendTok(SHR, ">>")
				}
			case lx.accept('='):
				lx.sendTok(GEQ, ">=")
			default:
				lx.sendTok(GTR, ">")
			}
		case '+':
			switch {
			case lx.accept('+'):
				lx.sendTok(INC, "++")
			case lx.accept('='):
				lx.sendTok(ADD_ASSIGN, "+=")
			default:
				lx.sendTok(ADD, "+")
			}
		case '.':
			if isNumeric(lx.peekRune()) {
				lx.readNumber(true)
				break
			}
			s := lx.cur
			if lx.accept('.') && lx.accept('.') {
				lx.sendTok(ELLIPSIS, "...")
				break
			}
			lx.restore(s)
			lx.sendTok(PERIOD, ".")
		case '~':
			lx.sendTok(BNOT, "~")
		case '^':
			if lx.accept('=') {
				lx.sendTok(XOR_ASSIGN, "^=")
			} else {
				lx.sendTok(XOR, "^")
			}
		case '-':
			switch {
			case lx.accept('>'):
				lx.sendTok(ARROW, "->")
			case lx.accept('-'):
				lx.sendTok(DEC, "--")
			case lx.accept('='):
				lx.sendTok(SUB_ASSIGN, "-=")
			default:
				lx.sendTok(SUB, "-")
			}
		case ',':
			lx.sendTok(COMMA, ",")
		case '*':
			if lx.accept('=') {
				lx.sendTok(MUL_ASSIGN, "*=")
			} else {
				lx.sendTok(MUL, "*")
			}
		case '/':
			switch {
			case lx.accept('*'):
				lx.skipBlockComment()
			case lx.accept('/'):
				lx.skipLineComment()
			case lx.accept('='):
				lx.sendTok(QUO_ASSIGN, "/=")
			default:
				lx.sendTok(QUO, "/")
			}
		case '%':
			if lx.accept('=') {
				lx.sendTok(REM_ASSIGN, "%=")
			} else {
				lx.sendTok(REM, "%")
			}
		case '|':
			switch {
			case lx.accept('|'):
				lx.sendTok(LOR, "||")
			case lx.accept('='):
				lx.sendTok(OR_ASSIGN, "|=")
			default:
				lx.sendTok(OR, "|")
			}
		case '&':
			switch {
			case lx.accept('&'):
				lx.sendTok(LAND, "&&")
			case lx.accept('='):
				lx.sendTok(AND_ASSIGN, "&=")
			default:
				lx.sendTok(AND, "&")
			}
		case '=':
			if lx.accept('=') {
				lx.sendTok(EQL, "==")
			} else {
				lx.sendTok(ASSIGN, "=")
			}
		case ';':
			lx.sendTok(SEMICOLON, ";")
		default:
			lx.sendTok(OTHER, string(first))
		}
	}
}

// skipBlockComment consumes a comment whose opening /* was already read.
func (lx *Lexer) skipBlockComment() {
	lx.sawSpace = true
	// A comment is one space, newlines inside it do not start a line.
	bol := lx.cur.bol
	for {
		c, eof := lx.readRune()
		if eof {
			lx.errorf("unterminated comment")
			return
		}
		if c == '*' && lx.accept('/') {
			lx.cur.bol = bol
			return
		}
	}
}

// skipLineComment consumes a // comment, leaving the newline so that
// directives still end on it.
func (lx *Lexer) skipLineComment() {
	lx.sawSpace = true
	for {
		c, eof := lx.readRune()
		if eof {
			return
		}
		if c == '\n' {
			lx.unreadRune()
			return
		}
	}
}

// skipBlank skips spaces and comments on the current line.
func (lx *Lexer) skipBlank() {
	for {
		r, eof := lx.readRune()
		if eof {
			return
		}
		switch r {
		case ' ', '\t', '\r', '\f', '\v':
			lx.sawSpace = true
		case '/':
			s := lx.prev
			switch {
			case lx.accept('*'):
				lx.skipBlockComment()
			case lx.accept('/'):
				lx.skipLineComment()
			default:
				lx.restore(s)
				return
			}
		default:
			lx.unreadRune()
			return
		}
	}
}

func (lx *Lexer) readDirective() {
	lx.skipBlank()
	r := lx.peekRune()
	if r == '\n' || r == 0 {
		// Null directive.
		return
	}
	lx.inDirective = true
	if !isValidIdentStart(r) {
		// Line markers and garbage, the preprocessor decides.
		lx.sendTok(DIRECTIVE, "")
		return
	}
	var buff bytes.Buffer
	for {
		c, eof := lx.readRune()
		if eof {
			break
		}
		if !isValidIdentTail(c) {
			lx.unreadRune()
			break
		}
		buff.WriteRune(c)
	}
	directive := buff.String()
	lx.sendTok(DIRECTIVE, directive)
	switch directive {
	case "include", "include_next", "import":
		lx.readHeaderInclude()
	case "define":
		lx.readDefine()
	default:
	}
}

func (lx *Lexer) readDefine() {
	lx.skipBlank()
	if !isValidIdentStart(lx.peekRune()) {
		// Missing name, reported by the preprocessor.
		return
	}
	lx.readIdentOrKeyword()
	//Distinguish between a funclike macro
	//and a regular macro.
	if lx.peekRune() == '(' {
		lx.sendTok(FUNCLIKE_DEFINE, "")
	}
}

func (lx *Lexer) readHeaderInclude() {
	lx.skipBlank()
	lx.markPos()
	opening := lx.peekRune()
	var terminator rune
	switch opening {
	case '"':
		terminator = '"'
	case '<':
		terminator = '>'
	default:
		// #include MACRO, the tokens are lexed normally.
		return
	}
	var buff bytes.Buffer
	lx.readRune()
	buff.WriteRune(opening)
	for {
		c, eof := lx.readRune()
		if eof || c == '\n' {
			if !eof {
				lx.unreadRune()
			}
			lx.errorf("missing terminating %c in #include", terminator)
			break
		}
		buff.WriteRune(c)
		if c == terminator {
			break
		}
	}
	lx.sendTok(HEADER, buff.String())
}

func (lx *Lexer) readIdentOrKeyword() {
	var buff bytes.Buffer
	lx.markPos()
	first, _ := lx.readRune()
	if !isValidIdentStart(first) {
		panic("internal error")
	}
	buff.WriteRune(first)
	for {
		b, eof := lx.readRune()
		if !eof && isValidIdentTail(b) {
			buff.WriteRune(b)
			continue
		}
		if !eof {
			lx.unreadRune()
		}
		break
	}
	str := buff.String()
	switch str {
	case "L", "u", "U", "u8":
		switch lx.peekRune() {
		case '"':
			lx.readCString(str)
			return
		case '\'':
			lx.readCChar(str)
			return
		}
	}
	tokType, ok := keywordLUT[str]
	if !ok {
		tokType = IDENT
	}
	lx.sendTok(tokType, str)
}

func (lx *Lexer) skipWhiteSpace() {
	for {
		r, eof := lx.readRune()
		if eof {
			return
		}
		if !isWhiteSpace(r) {
			lx.unreadRune()
			return
		}
		lx.sawSpace = true
		if r == '\n' {
			if lx.inDirective {
				lx.sendTok(END_DIRECTIVE, "")
				lx.inDirective = false
			}
		}
	}
}

// readNumber reads a preprocessing number. Suffixes and malformed
// constants are kept in the token text, only #if evaluation looks at
// the value.
func (lx *Lexer) readNumber(startedWithPeriod bool) {
	var buff bytes.Buffer
	if startedWithPeriod {
		buff.WriteRune('.')
	}
	for {
		r, eof := lx.readRune()
		if eof {
			break
		}
		if r == '+' || r == '-' {
			b := buff.Bytes()
			last := b[len(b)-1]
			if last == 'e' || last == 'E' || last == 'p' || last == 'P' {
				buff.WriteRune(r)
				continue
			}
			lx.unreadRune()
			break
		}
		if isValidIdentTail(r) || r == '.' {
			buff.WriteRune(r)
			continue
		}
		lx.unreadRune()
		break
	}
	s := buff.String()
	tokType := TokenKind(INT_CONSTANT)
	isHex := strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X")
	switch {
	case strings.Contains(s, "."):
		tokType = FLOAT_CONSTANT
	case isHex && strings.ContainsAny(s, "pP"):
		tokType = FLOAT_CONSTANT
	case !isHex && strings.ContainsAny(s, "eE"):
		tokType = FLOAT_CONSTANT
	}
	lx.sendTok(tokType, s)
}

func (lx *Lexer) readQuoted(prefix string, quote rune) string {
	var buff bytes.Buffer
	buff.WriteString(prefix)
	opening, _ := lx.readRune()
	if opening != quote {
		panic("internal error")
	}
	buff.WriteRune(opening)
	for {
		r, eof := lx.readRune()
		if eof || r == '\n' {
			if !eof {
				lx.unreadRune()
			}
			if quote == '"' {
				lx.errorf("unterminated string literal")
			} else {
				lx.errorf("unterminated character literal")
			}
			break
		}
		buff.WriteRune(r)
		if r == '\\' {
			esc, eof := lx.readRune()
			if eof {
				continue
			}
			if esc == '\n' {
				lx.unreadRune()
				continue
			}
			buff.WriteRune(esc)
			continue
		}
		if r == quote {
			break
		}
	}
	return buff.String()
}

func (lx *Lexer) readCString(prefix string) {
	lx.sendTok(STRING, lx.readQuoted(prefix, '"'))
}

func (lx *Lexer) readCChar(prefix string) {
	lx.sendTok(CHAR_CONSTANT, lx.readQuoted(prefix, '\''))
}

func (lx *Lexer) isAtLineStart() bool {
	return lx.cur.bol
}

func (lx *Lexer) String() string {
	return fmt.Sprintf("lexer at %s", lx.cur.pos)
}

func isValidIdentTail(b rune) bool {
	return isValidIdentStart(b) || isNumeric(b) || b == '$'
}

func isValidIdentStart(b rune) bool {
	return b == '_' || isAlpha(b)
}

func isAlpha(b rune) bool {
	if b >= 'a' && b <= 'z' {
		return true
	}
	if b >= 'A' && b <= 'Z' {
		return true
	}
	return false
}

func isWhiteSpace(b rune) bool {
	return b == ' ' || b == '\r' || b == '\n' || b == '\t' || b == '\f' || b == '\v'
}

func isNumeric(b rune) bool {
	if b >= '0' && b <= '9' {
		return true
	}
	return false
}

func isHexDigit(b rune) bool {
	return isNumeric(b) || (b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F')
}
