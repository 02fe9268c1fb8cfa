package cpp

import (
	"fmt"
	"strings"
)

// The list of tokens.
const (

	// Single char tokens are themselves.
	ADD       = '+'
	SUB       = '-'
	MUL       = '*'
	QUO       = '/'
	REM       = '%'
	AND       = '&'
	OR        = '|'
	XOR       = '^'
	QUESTION  = '?'
	HASH      = '#'
	LSS       = '<'
	GTR       = '>'
	ASSIGN    = '='
	NOT       = '!'
	BNOT      = '~'
	LPAREN    = '('
	LBRACK    = '['
	LBRACE    = '{'
	COMMA     = ','
	PERIOD    = '.'
	RPAREN    = ')'
	RBRACK    = ']'
	RBRACE    = '}'
	SEMICOLON = ';'
	COLON     = ':'

	ERROR = 10000 + iota
	EOF
	//some cpp only tokens
	FUNCLIKE_DEFINE //Occurs after ident before paren #define ident(
	DIRECTIVE       //#if #include etc
	END_DIRECTIVE   //New line at the end of a directive
	HEADER
	HASHHASH // ## outside of a directive start
	OTHER    // A character that does not start any other token, e.g. @ or `
	// Identifiers and basic type literals
	// (these tokens stand for classes of literals)
	TYPENAME       // Same as ident, but typedefed.
	IDENT          // main
	INT_CONSTANT   // 12345
	FLOAT_CONSTANT // 123.45
	CHAR_CONSTANT  // 'a'
	STRING         // "abc"

	SHL        // <<
	SHR        // >>
	ADD_ASSIGN // +=
	SUB_ASSIGN // -=
	MUL_ASSIGN // *=
	QUO_ASSIGN // /=
	REM_ASSIGN // %=
	AND_ASSIGN // &=
	OR_ASSIGN  // |=
	XOR_ASSIGN // ^=
	SHL_ASSIGN // <<=
	SHR_ASSIGN // >>=
	LAND       // &&
	LOR        // ||
	ARROW      // ->
	INC        // ++
	DEC        // --
	EQL        // ==
	NEQ        // !=
	LEQ        // <=
	GEQ        // >=
	ELLIPSIS   // ...

	// Keywords
	firstKeyword
	AUTO
	REGISTER
	EXTERN
	STATIC
	SHORT
	BREAK
	CASE
	DO
	CONST
	CONTINUE
	DEFAULT
	ELSE
	ENUM
	FOR
	WHILE
	GOTO
	IF
	INLINE
	RESTRICT
	RETURN
	STRUCT
	UNION
	VOLATILE
	SWITCH
	TYPEDEF
	SIZEOF
	VOID
	CHAR
	INT
	FLOAT
	DOUBLE
	SIGNED
	UNSIGNED
	LONG
	BOOL
	COMPLEX
	NORETURN
	THREAD_LOCAL
	ATOMIC
	ALIGNAS
	STATIC_ASSERT
	lastKeyword
)

var tokenKindToStr = [...]string{
	HASH:            "#",
	EOF:             "EOF",
	ERROR:           "error",
	FUNCLIKE_DEFINE: "funclikedefine",
	DIRECTIVE:       "cppdirective",
	END_DIRECTIVE:   "enddirective",
	HEADER:          "header",
	HASHHASH:        "'##'",
	OTHER:           "other",
	TYPENAME:        "typename",
	CHAR_CONSTANT:   "charconst",
	INT_CONSTANT:    "intconst",
	FLOAT_CONSTANT:  "floatconst",
	IDENT:           "ident",
	STRING:          "string",
	ADD:             "'+'",
	SUB:             "'-'",
	MUL:             "'*'",
	QUO:             "'/'",
	REM:             "'%'",
	AND:             "'&'",
	OR:              "'|'",
	XOR:             "'^'",
	SHL:             "'<<'",
	SHR:             "'>>'",
	ADD_ASSIGN:      "'+='",
	SUB_ASSIGN:      "'-='",
	MUL_ASSIGN:      "'*='",
	QUO_ASSIGN:      "'/='",
	REM_ASSIGN:      "'%='",
	AND_ASSIGN:      "'&='",
	OR_ASSIGN:       "'|='",
	XOR_ASSIGN:      "'^='",
	SHL_ASSIGN:      "'<<='",
	SHR_ASSIGN:      "'>>='",
	LAND:            "'&&'",
	LOR:             "'||'",
	ARROW:           "'->'",
	INC:             "'++'",
	DEC:             "'--'",
	EQL:             "'=='",
	LSS:             "'<'",
	GTR:             "'>'",
	ASSIGN:          "'='",
	NOT:             "'!'",
	BNOT:            "'~'",
	NEQ:             "'!='",
	LEQ:             "'<='",
	GEQ:             "'>='",
	ELLIPSIS:        "'...'",
	LPAREN:          "'('",
	LBRACK:          "'['",
	LBRACE:          "'{'",
	COMMA:           "','",
	PERIOD:          "'.'",
	RPAREN:          "')'",
	RBRACK:          "']'",
	RBRACE:          "'}'",
	SEMICOLON:       "';'",
	COLON:           "':'",
	QUESTION:        "'?'",
	AUTO:            "auto",
	REGISTER:        "register",
	EXTERN:          "extern",
	STATIC:          "static",
	SHORT:           "short",
	BREAK:           "break",
	CASE:            "case",
	DO:              "do",
	CONST:           "const",
	CONTINUE:        "continue",
	DEFAULT:         "default",
	ELSE:            "else",
	ENUM:            "enum",
	FOR:             "for",
	WHILE:           "while",
	GOTO:            "goto",
	IF:              "if",
	INLINE:          "inline",
	RESTRICT:        "restrict",
	RETURN:          "return",
	STRUCT:          "struct",
	UNION:           "union",
	VOLATILE:        "volatile",
	SWITCH:          "switch",
	TYPEDEF:         "typedef",
	SIZEOF:          "sizeof",
	VOID:            "void",
	CHAR:            "char",
	INT:             "int",
	FLOAT:           "float",
	DOUBLE:          "double",
	SIGNED:          "signed",
	UNSIGNED:        "unsigned",
	LONG:            "long",
	BOOL:            "_Bool",
	COMPLEX:         "_Complex",
	NORETURN:        "_Noreturn",
	THREAD_LOCAL:    "_Thread_local",
	ATOMIC:          "_Atomic",
	ALIGNAS:         "_Alignas",
	STATIC_ASSERT:   "_Static_assert",
}

// keywordLUT maps spellings to keyword kinds. GNU alternate spellings
// share the kind of the standard keyword.
var keywordLUT = map[string]TokenKind{
	"auto":           AUTO,
	"for":            FOR,
	"while":          WHILE,
	"do":             DO,
	"if":             IF,
	"else":           ELSE,
	"goto":           GOTO,
	"break":          BREAK,
	"continue":       CONTINUE,
	"case":           CASE,
	"default":        DEFAULT,
	"switch":         SWITCH,
	"struct":         STRUCT,
	"union":          UNION,
	"enum":           ENUM,
	"signed":         SIGNED,
	"unsigned":       UNSIGNED,
	"typedef":        TYPEDEF,
	"return":         RETURN,
	"void":           VOID,
	"char":           CHAR,
	"int":            INT,
	"short":          SHORT,
	"long":           LONG,
	"float":          FLOAT,
	"double":         DOUBLE,
	"sizeof":         SIZEOF,
	"static":         STATIC,
	"extern":         EXTERN,
	"register":       REGISTER,
	"const":          CONST,
	"volatile":       VOLATILE,
	"restrict":       RESTRICT,
	"inline":         INLINE,
	"_Bool":          BOOL,
	"_Complex":       COMPLEX,
	"_Noreturn":      NORETURN,
	"_Thread_local":  THREAD_LOCAL,
	"_Atomic":        ATOMIC,
	"_Alignas":       ALIGNAS,
	"_Static_assert": STATIC_ASSERT,
	"__const":        CONST,
	"__const__":      CONST,
	"__volatile":     VOLATILE,
	"__volatile__":   VOLATILE,
	"__restrict":     RESTRICT,
	"__restrict__":   RESTRICT,
	"__inline":       INLINE,
	"__inline__":     INLINE,
	"__signed":       SIGNED,
	"__signed__":     SIGNED,
	"__thread":       THREAD_LOCAL,
}

type TokenKind uint32

func (tk TokenKind) String() string {
	if uint32(tk) >= uint32(len(tokenKindToStr)) {
		return "Unknown"
	}
	ret := tokenKindToStr[tk]
	if ret == "" {
		return "Unknown"
	}
	return ret
}

// IsKeyword reports whether tk is one of the C keywords.
func (tk TokenKind) IsKeyword() bool {
	return tk > firstKeyword && tk < lastKeyword
}

type FilePos struct {
	File string `json:"file" yaml:"file"`
	Line int    `json:"line" yaml:"line"`
	Col  int    `json:"col" yaml:"col"`
}

func (pos FilePos) String() string {
	return fmt.Sprintf("%s:%d:%d", pos.File, pos.Line, pos.Col)
}

// Before reports whether pos comes earlier than other in the same file.
func (pos FilePos) Before(other FilePos) bool {
	if pos.Line != other.Line {
		return pos.Line < other.Line
	}
	return pos.Col < other.Col
}

//Token represents a grouping of characters
//that provide semantic meaning in a C program.
type Token struct {
	Kind TokenKind
	Val  string
	Pos  FilePos
	// HasSpace is set when whitespace or a comment precedes the token.
	HasSpace         bool
	WasMacroExpanded bool
	// AfterDirective is set on the first token following a directive
	// line. Parsers may resume there after a syntax error.
	AfterDirective bool
	hs             *hideset
}

func (t *Token) copy() *Token {
	ret := *t
	return &ret
}

// IsIdent reports whether the token can name a macro. Keywords count,
// the preprocessor does not know about them.
func (t *Token) IsIdent() bool {
	return t.Kind == IDENT || t.Kind.IsKeyword()
}

func (t Token) String() string {
	if t.WasMacroExpanded {
		return fmt.Sprintf("%s expanded from macro at %s", t.Val, t.Pos)
	}
	return fmt.Sprintf("%s at %s", t.Val, t.Pos)
}

// JoinTokens renders tokens as text, with a single space wherever the
// source had whitespace or a comment.
func JoinTokens(toks []*Token) string {
	var b strings.Builder
	for i, t := range toks {
		if i > 0 && t.HasSpace {
			b.WriteByte(' ')
		}
		b.WriteString(t.Val)
	}
	return b.String()
}
