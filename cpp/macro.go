package cpp

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Macro is one macro definition. It is immutable once defined, tables
// share definitions between overlays.
type Macro struct {
	Name     string
	FuncLike bool
	// Params holds the parameter names, a variadic macro has its
	// variadic parameter last (__VA_ARGS__ unless named).
	Params   []string
	Variadic bool
	Body     []*Token
	// Opaque bodies had a misplaced # or ##, they are substituted
	// without stringification or pasting.
	Opaque  bool
	Pos     FilePos
	Ordinal int
}

func (m *Macro) paramIndex(t *Token) int {
	if !m.FuncLike || !t.IsIdent() {
		return -1
	}
	for i, p := range m.Params {
		if p == t.Val {
			return i
		}
	}
	return -1
}

func (m *Macro) isVariadicParam(t *Token) bool {
	return m.Variadic && m.paramIndex(t) == len(m.Params)-1
}

// Equal reports whether two definitions are the same, ignoring the
// amount of whitespace in the body.
func (m *Macro) Equal(o *Macro) bool {
	if m.FuncLike != o.FuncLike || m.Variadic != o.Variadic {
		return false
	}
	if len(m.Params) != len(o.Params) || len(m.Body) != len(o.Body) {
		return false
	}
	for i := range m.Params {
		if m.Params[i] != o.Params[i] {
			return false
		}
	}
	for i := range m.Body {
		if m.Body[i].Kind != o.Body[i].Kind || m.Body[i].Val != o.Body[i].Val {
			return false
		}
	}
	return true
}

// BodyText is the replacement list with whitespace normalized.
func (m *Macro) BodyText() string {
	return JoinTokens(m.Body)
}

// Signature is the macro name with its parameter list.
func (m *Macro) Signature() string {
	if !m.FuncLike {
		return m.Name
	}
	params := make([]string, len(m.Params))
	copy(params, m.Params)
	if m.Variadic {
		last := len(params) - 1
		if params[last] == "__VA_ARGS__" {
			params[last] = "..."
		} else {
			params[last] += "..."
		}
	}
	return m.Name + "(" + strings.Join(params, ", ") + ")"
}

func (m *Macro) validate() error {
	if len(m.Body) == 0 {
		return nil
	}
	if m.Body[0].Kind == HASHHASH || m.Body[len(m.Body)-1].Kind == HASHHASH {
		return errors.New("'##' cannot appear at either end of a macro expansion")
	}
	if !m.FuncLike {
		return nil
	}
	for i, t := range m.Body {
		if t.Kind != HASH {
			continue
		}
		if i+1 >= len(m.Body) || m.paramIndex(m.Body[i+1]) < 0 {
			return errors.New("'#' is not followed by a macro parameter")
		}
	}
	return nil
}

// parseDefine builds a macro from the tokens of a #define line, the
// directive name excluded. Malformed bodies are reported to diags and
// kept opaque, malformed names and parameter lists are errors.
func parseDefine(line []*Token, diags *DiagList) (*Macro, error) {
	if len(line) == 0 {
		return nil, errors.New("no macro name given in #define directive")
	}
	name := line[0]
	if !name.IsIdent() {
		return nil, errors.New("macro names must be identifiers")
	}
	if name.Val == "defined" {
		return nil, errors.New("\"defined\" cannot be used as a macro name")
	}
	m := &Macro{Name: name.Val, Pos: name.Pos}
	rest := line[1:]
	if len(rest) > 0 && rest[0].Kind == FUNCLIKE_DEFINE {
		m.FuncLike = true
		if len(rest) < 2 || rest[1].Kind != LPAREN {
			panic("Bug, func like define without opening LPAREN")
		}
		var err error
		rest, err = m.parseParams(rest[2:])
		if err != nil {
			return nil, err
		}
	}
	m.Body = make([]*Token, len(rest))
	for i, t := range rest {
		m.Body[i] = t.copy()
		m.Body[i].hs = emptyHS
	}
	if len(m.Body) > 0 {
		m.Body[0].HasSpace = false
	}
	if err := m.validate(); err != nil {
		diags.Warnf(MacroError, name.Pos, "%v in definition of %s", err, m.Name)
		m.Opaque = true
	}
	return m, nil
}

// parseParams reads a parameter list after the opening paren and
// returns the tokens following the closing one.
func (m *Macro) parseParams(toks []*Token) ([]*Token, error) {
	seen := make(map[string]bool)
	next := func() *Token {
		if len(toks) == 0 {
			return nil
		}
		t := toks[0]
		toks = toks[1:]
		return t
	}
	t := next()
	if t != nil && t.Kind == RPAREN {
		return toks, nil
	}
	for {
		if t == nil {
			return nil, errors.New("missing ')' in macro parameter list")
		}
		switch {
		case t.Kind == ELLIPSIS:
			m.Params = append(m.Params, "__VA_ARGS__")
			m.Variadic = true
		case t.IsIdent():
			if seen[t.Val] {
				return nil, fmt.Errorf("duplicate macro parameter %q", t.Val)
			}
			if t.Val == "__VA_ARGS__" {
				return nil, errors.New("__VA_ARGS__ can only appear in the expansion of a variadic macro")
			}
			seen[t.Val] = true
			m.Params = append(m.Params, t.Val)
			if len(toks) > 0 && toks[0].Kind == ELLIPSIS {
				next()
				m.Variadic = true
			}
		default:
			return nil, fmt.Errorf("expected parameter name, found %q", t.Val)
		}
		sep := next()
		switch {
		case sep == nil:
			return nil, errors.New("missing ')' in macro parameter list")
		case sep.Kind == RPAREN:
			return toks, nil
		case sep.Kind == COMMA && !m.Variadic:
			t = next()
		default:
			return nil, fmt.Errorf("expected ',' or ')' in macro parameter list, found %q", sep.Val)
		}
	}
}

// MacroTable maps names to macro definitions.
//
// A table may be layered over a frozen parent. Changes go to the top
// layer only, so one frozen baseline can be shared by many units that
// each own an overlay.
type MacroTable struct {
	parent *MacroTable
	defs   map[string]*Macro
	undefs map[string]struct{}
	frozen bool
}

func NewMacroTable() *MacroTable {
	return &MacroTable{
		defs:   make(map[string]*Macro),
		undefs: make(map[string]struct{}),
	}
}

// Freeze makes the table read only. It must be called before the
// table is shared between goroutines.
func (mt *MacroTable) Freeze() *MacroTable {
	mt.frozen = true
	return mt
}

// Overlay returns an empty writable table layered over mt, which must
// be frozen.
func (mt *MacroTable) Overlay() *MacroTable {
	if !mt.frozen {
		panic("cpp: overlay of a writable macro table")
	}
	ret := NewMacroTable()
	ret.parent = mt
	return ret
}

func (mt *MacroTable) Lookup(name string) (*Macro, bool) {
	for t := mt; t != nil; t = t.parent {
		if m, ok := t.defs[name]; ok {
			return m, true
		}
		if _, ok := t.undefs[name]; ok {
			return nil, false
		}
	}
	return nil, false
}

func (mt *MacroTable) IsDefined(name string) bool {
	_, ok := mt.Lookup(name)
	return ok
}

// Define adds or replaces a definition and returns the one it replaced.
func (mt *MacroTable) Define(m *Macro) *Macro {
	if mt.frozen {
		panic("cpp: define in frozen macro table")
	}
	old, _ := mt.Lookup(m.Name)
	delete(mt.undefs, m.Name)
	mt.defs[m.Name] = m
	return old
}

// Undef removes a definition, names that are not defined are ignored.
func (mt *MacroTable) Undef(name string) {
	if mt.frozen {
		panic("cpp: undef in frozen macro table")
	}
	delete(mt.defs, name)
	mt.undefs[name] = struct{}{}
}

// Names returns the sorted names of all visible macros.
func (mt *MacroTable) Names() []string {
	seen := make(map[string]bool)
	var ret []string
	for t := mt; t != nil; t = t.parent {
		for name := range t.defs {
			if !seen[name] {
				ret = append(ret, name)
			}
			seen[name] = true
		}
		for name := range t.undefs {
			seen[name] = true
		}
	}
	sort.Strings(ret)
	return ret
}

func (mt *MacroTable) Len() int {
	return len(mt.Names())
}

// DefineString defines a macro from command line syntax, NAME,
// NAME=VALUE or NAME(ARGS)=BODY. A bare name is defined as 1.
func (mt *MacroTable) DefineString(def string) error {
	name, body, ok := strings.Cut(def, "=")
	if !ok {
		body = "1"
	}
	if name == "" {
		return fmt.Errorf("invalid macro definition %q", def)
	}
	lx := Lex("<command line>", []byte("#define "+name+" "+body+"\n"))
	dir := lx.Next()
	if dir.Kind != DIRECTIVE {
		return fmt.Errorf("invalid macro definition %q", def)
	}
	var line []*Token
	for {
		t := lx.Next()
		if t.Kind == END_DIRECTIVE || t.Kind == EOF {
			break
		}
		line = append(line, t)
	}
	m, err := parseDefine(line, lx.Diagnostics())
	if err != nil {
		return fmt.Errorf("invalid macro definition %q: %w", def, err)
	}
	mt.Define(m)
	return nil
}

// DefineStandard adds the macros every hosted C11 implementation
// predefines.
func (mt *MacroTable) DefineStandard() {
	for _, def := range []string{
		"__STDC__=1",
		"__STDC_VERSION__=201112L",
		"__STDC_HOSTED__=1",
	} {
		if err := mt.DefineString(def); err != nil {
			panic(err)
		}
	}
}

// MacroDelta is the effect a header has on the macro table of the unit
// including it.
type MacroDelta struct {
	Defined   []*Macro
	Undefined []string
}

// Delta returns the changes made in the top layer of mt.
func (mt *MacroTable) Delta() *MacroDelta {
	d := &MacroDelta{}
	for _, m := range mt.defs {
		d.Defined = append(d.Defined, m)
	}
	sort.Slice(d.Defined, func(i, j int) bool {
		if d.Defined[i].Ordinal != d.Defined[j].Ordinal {
			return d.Defined[i].Ordinal < d.Defined[j].Ordinal
		}
		return d.Defined[i].Name < d.Defined[j].Name
	})
	for name := range mt.undefs {
		d.Undefined = append(d.Undefined, name)
	}
	sort.Strings(d.Undefined)
	return d
}

// Apply merges a delta into the table.
func (mt *MacroTable) Apply(d *MacroDelta) {
	if d == nil {
		return
	}
	for _, name := range d.Undefined {
		mt.Undef(name)
	}
	for _, m := range d.Defined {
		mt.Define(m)
	}
}
