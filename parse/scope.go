package parse

import "fmt"

// scope maps typedef names to what they alias. Lookups fall back to the
// parent, the unit scope sits over the scope of standard names.
type scope struct {
	parent *scope
	kv     map[string]*TSymbol
}

func (s *scope) lookup(k string) (*TSymbol, error) {
	sym, ok := s.kv[k]
	if ok {
		return sym, nil
	}
	if s.parent != nil {
		return s.parent.lookup(k)
	}
	return nil, fmt.Errorf("%s is not a type name", k)
}

// define adds k to s. Redefining a name of s itself is an error, the
// first definition is kept.
func (s *scope) define(k string, v *TSymbol) error {
	if _, ok := s.kv[k]; ok {
		return fmt.Errorf("redefinition of typedef %s", k)
	}
	s.kv[k] = v
	return nil
}

func newScope(parent *scope) *scope {
	return &scope{
		parent: parent,
		kv:     make(map[string]*TSymbol),
	}
}

// TSymbol is a typedef name. Rec is nil for names assumed to come from
// standard headers.
type TSymbol struct {
	Type string
	Rec  *Record
}

// Typedef names of the standard headers. Headers are not read, so these
// are known up front.
var builtinTypedefs = []string{
	"size_t", "ssize_t", "ptrdiff_t", "wchar_t", "wint_t", "max_align_t",
	"int8_t", "int16_t", "int32_t", "int64_t", "uint8_t", "uint16_t", "uint32_t", "uint64_t",
	"intptr_t", "uintptr_t", "intmax_t", "uintmax_t",
	"off_t", "pid_t", "time_t", "clock_t", "va_list", "FILE", "bool",
}

func newBuiltinScope() *scope {
	s := newScope(nil)
	for _, name := range builtinTypedefs {
		s.kv[name] = &TSymbol{Type: name}
	}
	return s
}
