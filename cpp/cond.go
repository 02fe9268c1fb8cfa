package cpp

import (
	"errors"
)

// condFrame is one level of #if nesting.
type condFrame struct {
	directive string
	pos       FilePos
	// parentActive is set when the enclosing region is emitted.
	parentActive bool
	// anyTaken is set once a branch of this chain was selected.
	anyTaken bool
	// active is set when the current branch is emitted. It implies
	// parentActive, so the top frame alone decides emission.
	active  bool
	sawElse bool
}

// Conditional records the outcome of one conditional directive whose
// enclosing region was active.
type Conditional struct {
	Pos       FilePos `json:"pos" yaml:"pos"`
	Directive string  `json:"directive" yaml:"directive"`
	// Name is the macro tested by #ifdef, #ifndef and their #elif forms.
	Name      string `json:"name,omitempty" yaml:"name,omitempty"`
	Condition string `json:"condition,omitempty" yaml:"condition,omitempty"`
	Taken     bool   `json:"taken" yaml:"taken"`
}

func (pp *Preprocessor) isActive() bool {
	if len(pp.conds) == 0 {
		return true
	}
	return pp.conds[len(pp.conds)-1].active
}

func (pp *Preprocessor) isDefined(name string) bool {
	return pp.macros.IsDefined(name) || isBuiltinMacro(name)
}

func (pp *Preprocessor) pushCondContext(dir *Token, active bool) {
	pp.conds = append(pp.conds, condFrame{
		directive:    dir.Val,
		pos:          dir.Pos,
		parentActive: pp.isActive(),
		anyTaken:     active,
		active:       active,
	})
}

func (pp *Preprocessor) record(dir *Token, name string, line []*Token, taken bool) {
	pp.conditionals = append(pp.conditionals, Conditional{
		Pos:       dir.Pos,
		Directive: dir.Val,
		Name:      name,
		Condition: JoinTokens(line),
		Taken:     taken,
	})
}

func (pp *Preprocessor) handleConditional(dir *Token, line []*Token) {
	defer func() {
		pp.lx.skipping = !pp.isActive()
	}()
	switch dir.Val {
	case "if":
		taken := false
		if pp.isActive() {
			taken = pp.evalCondition(dir, line)
			pp.record(dir, "", line, taken)
		}
		pp.pushCondContext(dir, taken)
	case "ifdef", "ifndef":
		taken := false
		if pp.isActive() {
			name, ok := pp.directiveName(dir, line)
			taken = ok && pp.isDefined(name) == (dir.Val == "ifdef")
			pp.record(dir, name, nil, taken)
		}
		pp.pushCondContext(dir, taken)
	case "elif", "elifdef", "elifndef":
		if len(pp.conds) == 0 {
			pp.diags.Errorf(ConditionalError, dir.Pos, "#%s without #if", dir.Val)
			return
		}
		f := &pp.conds[len(pp.conds)-1]
		switch {
		case f.sawElse:
			pp.diags.Errorf(ConditionalError, dir.Pos, "#%s after #else", dir.Val)
			f.active = false
		case !f.parentActive:
			f.active = false
		case f.anyTaken:
			// Not evaluated, an earlier branch was taken.
			f.active = false
			pp.record(dir, "", line, false)
		default:
			var taken bool
			name := ""
			if dir.Val == "elif" {
				taken = pp.evalCondition(dir, line)
			} else {
				var ok bool
				name, ok = pp.directiveName(dir, line)
				taken = ok && pp.isDefined(name) == (dir.Val == "elifdef")
				line = nil
			}
			f.active = taken
			f.anyTaken = taken
			pp.record(dir, name, line, taken)
		}
	case "else":
		if len(pp.conds) == 0 {
			pp.diags.Errorf(ConditionalError, dir.Pos, "#else without #if")
			return
		}
		f := &pp.conds[len(pp.conds)-1]
		if f.sawElse {
			pp.diags.Errorf(ConditionalError, dir.Pos, "#else after #else")
			f.active = false
			return
		}
		f.sawElse = true
		f.active = f.parentActive && !f.anyTaken
		f.anyTaken = f.anyTaken || f.active
		if f.parentActive {
			pp.extraTokens(dir, line)
			pp.record(dir, "", nil, f.active)
		}
	case "endif":
		if len(pp.conds) == 0 {
			pp.diags.Errorf(ConditionalError, dir.Pos, "#endif without #if")
			return
		}
		if pp.conds[len(pp.conds)-1].parentActive {
			pp.extraTokens(dir, line)
		}
		pp.conds = pp.conds[:len(pp.conds)-1]
	}
}

// evalCondition evaluates the expression of an #if or #elif. Errors
// make the branch false.
func (pp *Preprocessor) evalCondition(dir *Token, line []*Token) bool {
	toks := pp.expandAll(pp.resolveDefined(line))
	v, err := evalIfExpr(pp.isDefined, toks)
	if err != nil {
		if errors.Is(err, errDivByZero) {
			pp.diags.Errorf(ConditionalError, dir.Pos, "%v", err)
		} else {
			pp.diags.Warnf(ConditionalError, dir.Pos, "#%s: %v, branch not taken", dir.Val, err)
		}
		return false
	}
	return v != 0
}

// resolveDefined replaces defined NAME and defined(NAME) by 1 or 0,
// before any macro in the line is expanded. Feature tests such as
// __has_include(...) are answered with 0.
func (pp *Preprocessor) resolveDefined(line []*Token) []*Token {
	var ret []*Token
	constant := func(at *Token, v bool) *Token {
		t := &Token{Kind: INT_CONSTANT, Val: "0", Pos: at.Pos, HasSpace: at.HasSpace, hs: emptyHS}
		if v {
			t.Val = "1"
		}
		return t
	}
	for i := 0; i < len(line); i++ {
		t := line[i]
		if !t.IsIdent() {
			ret = append(ret, t)
			continue
		}
		switch {
		case t.Val == "defined":
			if i+1 < len(line) && line[i+1].IsIdent() {
				ret = append(ret, constant(t, pp.isDefined(line[i+1].Val)))
				i++
				continue
			}
			if i+3 < len(line) && line[i+1].Kind == LPAREN && line[i+2].IsIdent() && line[i+3].Kind == RPAREN {
				ret = append(ret, constant(t, pp.isDefined(line[i+2].Val)))
				i += 3
				continue
			}
		case isFeatureTest(t.Val):
			if i+1 < len(line) && line[i+1].Kind == LPAREN {
				if end := matchParen(line, i+1); end > 0 {
					ret = append(ret, constant(t, false))
					i = end
					continue
				}
			}
		}
		ret = append(ret, t)
	}
	return ret
}

func isFeatureTest(name string) bool {
	switch name {
	case "__has_include", "__has_include_next", "__has_attribute", "__has_c_attribute",
		"__has_cpp_attribute", "__has_builtin", "__has_feature", "__has_extension", "__has_warning":
		return true
	}
	return false
}
