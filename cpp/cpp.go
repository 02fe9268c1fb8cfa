package cpp

import (
	"context"
	"errors"
	"io"

	"github.com/charmbracelet/log"
)

// Config holds the optional settings of a Preprocessor.
type Config struct {
	// Resolver turns #include directives into macro changes. When nil
	// includes are only recorded.
	Resolver IncludeResolver
	// Chain lists the files whose includes led to this one, outermost
	// first.
	Chain []string
	// Strict keeps the first of two different definitions of a macro
	// and reports the second as an error.
	Strict bool
	Logger *log.Logger
}

// Define is one #define directive. Directives in skipped regions are
// kept with Active unset.
type Define struct {
	Macro  *Macro
	Active bool
}

// Preprocessor produces the macro expanded tokens of one file. Included
// files are not read into the token stream, only their effect on the
// macro table is applied.
type Preprocessor struct {
	ctx    context.Context
	lx     *Lexer
	file   string
	cfg    Config
	log    *log.Logger
	macros *MacroTable

	// Pushed back tokens, the next token is last.
	pushback []*Token
	// Stack of #if frames.
	conds []condFrame

	diags   *DiagList
	counter int
	ordinal int

	defines      []Define
	includes     []Include
	conditionals []Conditional

	// Set once at end of input when a conditional was left open.
	err error
}

// New returns a preprocessor reading from lx and defining macros in
// macros. Diagnostics are added to the lexer's list.
func New(ctx context.Context, lx *Lexer, macros *MacroTable, cfg Config) *Preprocessor {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Preprocessor{
		ctx:    ctx,
		lx:     lx,
		file:   lx.cur.pos.File,
		cfg:    cfg,
		log:    logger,
		macros: macros,
		diags:  lx.Diagnostics(),
	}
}

func (pp *Preprocessor) File() string {
	return pp.file
}

func (pp *Preprocessor) Macros() *MacroTable {
	return pp.macros
}

func (pp *Preprocessor) Diagnostics() *DiagList {
	return pp.diags
}

func (pp *Preprocessor) Defines() []Define {
	return pp.defines
}

func (pp *Preprocessor) Includes() []Include {
	return pp.includes
}

func (pp *Preprocessor) Conditionals() []Conditional {
	return pp.conditionals
}

// Next returns the next expanded token. At end of input it returns an
// EOF token, with an error if a conditional was never closed.
func (pp *Preprocessor) Next() (*Token, error) {
	t := pp.expandNext(mainSource{pp})
	if t.Kind == EOF {
		return t, pp.err
	}
	return t, nil
}

// Drain reads the rest of the input, only keeping its effect on the
// macro table and the logs.
func (pp *Preprocessor) Drain() error {
	for {
		t, err := pp.Next()
		if t.Kind == EOF {
			return err
		}
	}
}

func (pp *Preprocessor) ungetTokens(toks []*Token) {
	for i := len(toks) - 1; i >= 0; i-- {
		pp.pushback = append(pp.pushback, toks[i])
	}
}

// nextActive returns the next unexpanded token of an active region,
// handling any directives on the way.
func (pp *Preprocessor) nextActive() *Token {
	if n := len(pp.pushback); n > 0 {
		t := pp.pushback[n-1]
		pp.pushback = pp.pushback[:n-1]
		return t
	}
	sawDirective := false
	for {
		t := pp.lx.Next()
		switch t.Kind {
		case DIRECTIVE:
			pp.handleDirective(t)
			sawDirective = true
			continue
		case END_DIRECTIVE:
			continue
		case EOF:
			pp.atEOF()
			return t
		}
		if pp.isActive() {
			t.AfterDirective = sawDirective
			return t
		}
	}
}

func (pp *Preprocessor) atEOF() {
	if len(pp.conds) == 0 {
		return
	}
	f := pp.conds[len(pp.conds)-1]
	pp.diags.Errorf(ConditionalError, f.pos, "unterminated #%s", f.directive)
	pp.err = ErrWithLoc(errors.New("unterminated conditional directive"), f.pos)
	pp.conds = nil
	pp.lx.skipping = false
}

// readLine returns the rest of the directive line.
func (pp *Preprocessor) readLine() []*Token {
	var line []*Token
	for {
		t := pp.lx.Next()
		switch t.Kind {
		case END_DIRECTIVE:
			return line
		case EOF:
			pp.lx.pending = append([]*Token{t}, pp.lx.pending...)
			return line
		}
		line = append(line, t)
	}
}

func (pp *Preprocessor) handleDirective(dir *Token) {
	line := pp.readLine()
	switch dir.Val {
	case "if", "ifdef", "ifndef", "elif", "elifdef", "elifndef", "else", "endif":
		pp.handleConditional(dir, line)
		return
	}
	if !pp.isActive() {
		if dir.Val == "define" {
			pp.recordInactiveDefine(line)
		}
		return
	}
	switch dir.Val {
	case "define":
		pp.handleDefine(dir, line)
	case "undef":
		pp.handleUndefine(dir, line)
	case "include", "include_next", "import":
		pp.handleInclude(dir, line)
	case "error":
		pp.diags.Errorf(DirectiveError, dir.Pos, "#error %s", JoinTokens(line))
	case "warning":
		pp.diags.Warnf(DirectiveError, dir.Pos, "#warning %s", JoinTokens(line))
	case "pragma", "line", "ident", "sccs", "assert", "unassert", "":
		// Accepted and ignored.
	default:
		pp.diags.Warnf(DirectiveError, dir.Pos, "invalid preprocessing directive #%s", dir.Val)
	}
}

// directiveName returns the macro name a directive applies to.
func (pp *Preprocessor) directiveName(dir *Token, line []*Token) (string, bool) {
	if len(line) == 0 || !line[0].IsIdent() {
		pp.diags.Errorf(DirectiveError, dir.Pos, "no macro name given in #%s directive", dir.Val)
		return "", false
	}
	pp.extraTokens(dir, line[1:])
	return line[0].Val, true
}

func (pp *Preprocessor) extraTokens(dir *Token, rest []*Token) {
	if len(rest) > 0 {
		pp.diags.Warnf(DirectiveError, rest[0].Pos, "extra tokens at end of #%s directive", dir.Val)
	}
}

func (pp *Preprocessor) handleDefine(dir *Token, line []*Token) {
	m, err := parseDefine(line, pp.diags)
	if err != nil {
		pp.diags.Errorf(MacroError, dir.Pos, "%v", err)
		return
	}
	pp.ordinal++
	m.Ordinal = pp.ordinal
	pp.defines = append(pp.defines, Define{Macro: m, Active: true})
	if old, ok := pp.macros.Lookup(m.Name); ok && !old.Equal(m) {
		if pp.cfg.Strict {
			pp.diags.Errorf(MacroError, m.Pos, "%s redefined, previous definition at %s", m.Name, old.Pos)
			return
		}
		pp.log.Debug("macro redefined", "name", m.Name, "pos", m.Pos, "previous", old.Pos)
	}
	pp.macros.Define(m)
}

// recordInactiveDefine keeps a definition from a skipped region without
// installing it. Problems in its body are not reported.
func (pp *Preprocessor) recordInactiveDefine(line []*Token) {
	m, err := parseDefine(line, &DiagList{})
	if err != nil {
		return
	}
	pp.ordinal++
	m.Ordinal = pp.ordinal
	pp.defines = append(pp.defines, Define{Macro: m})
}

func (pp *Preprocessor) handleUndefine(dir *Token, line []*Token) {
	name, ok := pp.directiveName(dir, line)
	if !ok {
		return
	}
	pp.macros.Undef(name)
}
