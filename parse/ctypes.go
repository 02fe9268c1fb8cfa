package parse

import (
	"strings"
)

type DerivKind int

const (
	Pointer DerivKind = iota
	Array
	Func
)

func (k DerivKind) String() string {
	switch k {
	case Array:
		return "array"
	case Func:
		return "function"
	}
	return "pointer"
}

func (k DerivKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Derivation is one step of a declarator. A chain of derivations reads
// from the declared name outward, so int *a[3] is array, pointer.
type Derivation struct {
	Kind DerivKind `json:"kind" yaml:"kind"`
	// Qualifiers of a pointer.
	Qualifiers []string `json:"qualifiers,omitempty" yaml:"qualifiers,omitempty"`
	// Size is the bracket text of an array, empty when unspecified.
	Size string `json:"size,omitempty" yaml:"size,omitempty"`
	// Params of a function. Prototype is unset for () and for old style
	// identifier lists.
	Params    []Param `json:"params,omitempty" yaml:"params,omitempty"`
	Variadic  bool    `json:"variadic,omitempty" yaml:"variadic,omitempty"`
	Prototype bool    `json:"prototype,omitempty" yaml:"prototype,omitempty"`
	KR        bool    `json:"kr,omitempty" yaml:"kr,omitempty"`
}

func (d *Derivation) paramText() string {
	if len(d.Params) == 0 && !d.Variadic {
		if d.Prototype {
			return "void"
		}
		return ""
	}
	parts := make([]string, 0, len(d.Params)+1)
	for _, p := range d.Params {
		if d.KR && p.Type == "" {
			parts = append(parts, p.Name)
			continue
		}
		parts = append(parts, p.Type)
	}
	if d.Variadic {
		parts = append(parts, "...")
	}
	return strings.Join(parts, ", ")
}

// typeString renders the type of a declarator as an abstract
// declarator, e.g. int (*)(int, int) or const char *[].
func typeString(base string, chain []Derivation) string {
	decl := ""
	for i := range chain {
		d := &chain[i]
		switch d.Kind {
		case Pointer:
			s := "*" + strings.Join(d.Qualifiers, " ")
			if len(d.Qualifiers) > 0 && decl != "" {
				s += " "
			}
			decl = s + decl
		case Array, Func:
			if strings.HasPrefix(decl, "*") {
				decl = "(" + decl + ")"
			}
			if d.Kind == Array {
				decl += "[" + d.Size + "]"
			} else {
				decl += "(" + d.paramText() + ")"
			}
		}
	}
	switch {
	case decl == "":
		return base
	case decl[0] == '[':
		return base + decl
	}
	return base + " " + decl
}
