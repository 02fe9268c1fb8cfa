package parse

import (
	"fmt"

	"github.com/andrewchambers/csyms/cpp"
)

type Kind int

const (
	CompositeTypeDef Kind = iota
	TypedefAlias
	FunctionDecl
	FunctionDef
	GlobalVariable
	MacroDef
)

var kindToStr = [...]string{
	CompositeTypeDef: "composite",
	TypedefAlias:     "typedef",
	FunctionDecl:     "function_decl",
	FunctionDef:      "function_def",
	GlobalVariable:   "variable",
	MacroDef:         "macro",
}

func (k Kind) String() string {
	if int(k) < 0 || int(k) >= len(kindToStr) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindToStr[k]
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Record is one named top-level construct of a unit. Exactly one of the
// detail fields is set, matching Kind. FunctionDecl and FunctionDef
// share Function.
type Record struct {
	Kind Kind   `json:"kind" yaml:"kind"`
	Name string `json:"name" yaml:"name"`
	// Pos is the position of the name, Start and End delimit the whole
	// construct.
	Pos       cpp.FilePos `json:"pos" yaml:"pos"`
	Start     cpp.FilePos `json:"start" yaml:"start"`
	End       cpp.FilePos `json:"end" yaml:"end"`
	Signature string      `json:"signature,omitempty" yaml:"signature,omitempty"`

	Composite *Composite `json:"composite,omitempty" yaml:"composite,omitempty"`
	Typedef   *Typedef   `json:"typedef,omitempty" yaml:"typedef,omitempty"`
	Function  *Function  `json:"function,omitempty" yaml:"function,omitempty"`
	Variable  *Variable  `json:"variable,omitempty" yaml:"variable,omitempty"`
	Macro     *MacroInfo `json:"macro,omitempty" yaml:"macro,omitempty"`
}

type Aggregate int

const (
	Struct Aggregate = iota
	Union
	Enum
)

func (a Aggregate) String() string {
	switch a {
	case Union:
		return "union"
	case Enum:
		return "enum"
	}
	return "struct"
}

func (a Aggregate) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

type Composite struct {
	Aggregate Aggregate `json:"aggregate" yaml:"aggregate"`
	Members   []Member  `json:"members,omitempty" yaml:"members,omitempty"`
	// ForwardOnly is set for a tag declared without a member list.
	ForwardOnly bool `json:"forward_only,omitempty" yaml:"forward_only,omitempty"`
	Anonymous   bool `json:"anonymous,omitempty" yaml:"anonymous,omitempty"`
}

// Member is a field of a struct or union, or an enumeration constant.
type Member struct {
	Name     string `json:"name,omitempty" yaml:"name,omitempty"`
	Type     string `json:"type,omitempty" yaml:"type,omitempty"`
	BitWidth string `json:"bit_width,omitempty" yaml:"bit_width,omitempty"`
	// Value is the text of an enumeration constant's initializer.
	Value string `json:"value,omitempty" yaml:"value,omitempty"`
	// Nested is an aggregate defined in the member's declaration.
	Nested *Record `json:"nested,omitempty" yaml:"nested,omitempty"`
}

type Typedef struct {
	// Underlying is the type named by the specifiers, Type the aliased
	// type including the declarator.
	Underlying string       `json:"underlying" yaml:"underlying"`
	Type       string       `json:"type" yaml:"type"`
	Chain      []Derivation `json:"chain,omitempty" yaml:"chain,omitempty"`
	// Inline is an anonymous aggregate defined by the typedef.
	Inline *Record `json:"inline,omitempty" yaml:"inline,omitempty"`
}

type Param struct {
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
	Type string `json:"type" yaml:"type"`
}

type Function struct {
	Return   string  `json:"return" yaml:"return"`
	Params   []Param `json:"params,omitempty" yaml:"params,omitempty"`
	Variadic bool    `json:"variadic,omitempty" yaml:"variadic,omitempty"`
	// Prototype is set for a parameter list, (void) included.
	Prototype bool `json:"prototype,omitempty" yaml:"prototype,omitempty"`
	// KR is set for old style definitions with an identifier list.
	KR      bool   `json:"kr,omitempty" yaml:"kr,omitempty"`
	Storage string `json:"storage,omitempty" yaml:"storage,omitempty"`
	Inline  bool   `json:"inline,omitempty" yaml:"inline,omitempty"`
}

type Variable struct {
	Type    string       `json:"type" yaml:"type"`
	Chain   []Derivation `json:"chain,omitempty" yaml:"chain,omitempty"`
	Storage string       `json:"storage,omitempty" yaml:"storage,omitempty"`
	HasInit bool         `json:"has_init,omitempty" yaml:"has_init,omitempty"`
	// InitList is set when the initializer is enclosed in braces.
	InitList bool   `json:"init_list,omitempty" yaml:"init_list,omitempty"`
	Init     string `json:"init,omitempty" yaml:"init,omitempty"`
	Inline   *Record `json:"inline,omitempty" yaml:"inline,omitempty"`
}

type MacroInfo struct {
	FuncLike bool     `json:"func_like,omitempty" yaml:"func_like,omitempty"`
	Params   []string `json:"params,omitempty" yaml:"params,omitempty"`
	Variadic bool     `json:"variadic,omitempty" yaml:"variadic,omitempty"`
	Body     string   `json:"body" yaml:"body"`
	// Active is unset for definitions in skipped conditional regions.
	Active bool `json:"active" yaml:"active"`
}

func macroRecord(d cpp.Define) *Record {
	m := d.Macro
	sig := "#define " + m.Signature()
	if body := m.BodyText(); body != "" {
		sig += " " + body
	}
	end := m.Pos
	if n := len(m.Body); n > 0 {
		end = m.Body[n-1].Pos
	}
	return &Record{
		Kind:      MacroDef,
		Name:      m.Name,
		Pos:       m.Pos,
		Start:     m.Pos,
		End:       end,
		Signature: sig,
		Macro: &MacroInfo{
			FuncLike: m.FuncLike,
			Params:   m.Params,
			Variadic: m.Variadic,
			Body:     m.BodyText(),
			Active:   d.Active,
		},
	}
}
