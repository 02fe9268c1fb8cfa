package cpp

import (
	"fmt"
	"sort"
)

type ErrorLoc struct {
	Err error
	Pos FilePos
}

func ErrWithLoc(e error, pos FilePos) error {
	return ErrorLoc{
		Err: e,
		Pos: pos,
	}
}

func (e ErrorLoc) Error() string {
	return fmt.Sprintf("%s at %s", e.Err, e.Pos)
}

func (e ErrorLoc) Unwrap() error {
	return e.Err
}

type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

func (s Severity) String() string {
	if s == SeverityWarning {
		return "warning"
	}
	return "error"
}

func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// DiagKind says which stage produced a diagnostic.
type DiagKind int

const (
	SyntaxError DiagKind = iota
	MacroError
	ConditionalError
	DirectiveError
)

var diagKindToStr = [...]string{
	SyntaxError:      "syntax",
	MacroError:       "macro",
	ConditionalError: "conditional",
	DirectiveError:   "directive",
}

func (k DiagKind) String() string {
	if int(k) < 0 || int(k) >= len(diagKindToStr) {
		return "unknown"
	}
	return diagKindToStr[k]
}

func (k DiagKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Diagnostic is a recoverable problem found while processing a unit.
// Diagnostics never stop processing.
type Diagnostic struct {
	Pos      FilePos  `json:"pos" yaml:"pos"`
	Severity Severity `json:"severity" yaml:"severity"`
	Kind     DiagKind `json:"kind" yaml:"kind"`
	Msg      string   `json:"msg" yaml:"msg"`
}

func (d Diagnostic) Error() string {
	return fmt.Sprintf("%s: %s %s: %s", d.Pos, d.Kind, d.Severity, d.Msg)
}

// DiagList collects the diagnostics of one unit.
type DiagList struct {
	diags []Diagnostic
}

func (l *DiagList) Add(d Diagnostic) {
	l.diags = append(l.diags, d)
}

func (l *DiagList) Errorf(kind DiagKind, pos FilePos, format string, args ...interface{}) {
	l.Add(Diagnostic{Pos: pos, Severity: SeverityError, Kind: kind, Msg: fmt.Sprintf(format, args...)})
}

func (l *DiagList) Warnf(kind DiagKind, pos FilePos, format string, args ...interface{}) {
	l.Add(Diagnostic{Pos: pos, Severity: SeverityWarning, Kind: kind, Msg: fmt.Sprintf(format, args...)})
}

func (l *DiagList) Len() int {
	return len(l.diags)
}

// ErrorCount returns the number of diagnostics with error severity.
func (l *DiagList) ErrorCount() int {
	n := 0
	for _, d := range l.diags {
		if d.Severity == SeverityError {
			n++
		}
	}
	return n
}

// Sorted returns a copy of the diagnostics ordered by position.
func (l *DiagList) Sorted() []Diagnostic {
	ret := make([]Diagnostic, len(l.diags))
	copy(ret, l.diags)
	sort.SliceStable(ret, func(i, j int) bool {
		return ret[i].Pos.Before(ret[j].Pos)
	})
	return ret
}
