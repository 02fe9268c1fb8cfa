// Package report prints diagnostics with the offending source line and a
// caret under the column.
package report

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/andrewchambers/csyms/cpp"
)

const tabWidth = 4

// Source returns the contents of a file by name, or nil when it is not
// available.
type Source func(file string) []byte

// Diagnostic writes d followed by its source line and a caret.
func Diagnostic(w io.Writer, d cpp.Diagnostic, src Source) {
	fmt.Fprintln(w, d.Error())
	if src != nil {
		Caret(w, src(d.Pos.File), d.Pos)
	}
}

// Error writes err, and the source line and caret when it carries a
// position.
func Error(w io.Writer, err error, src Source) {
	fmt.Fprintln(w, err)
	var loc cpp.ErrorLoc
	if !errors.As(err, &loc) || src == nil {
		return
	}
	Caret(w, src(loc.Pos.File), loc.Pos)
}

// Caret writes line pos.Line of src with tabs expanded, then a caret
// under pos.Col. Columns count a tab as tabWidth, as the lexer does.
// Nothing is written when the line does not exist.
func Caret(w io.Writer, src []byte, pos cpp.FilePos) {
	if src == nil || pos.Line <= 0 {
		return
	}
	b := bufio.NewReader(bytes.NewReader(src))
	lineno := 1
	for {
		line, err := b.ReadString('\n')
		if lineno == pos.Line {
			line = strings.TrimRight(line, "\r\n")
			fmt.Fprintln(w, strings.ReplaceAll(line, "\t", strings.Repeat(" ", tabWidth)))
			fmt.Fprintln(w, strings.Repeat(" ", max(pos.Col-1, 0))+"^")
			return
		}
		if err != nil {
			return
		}
		lineno += 1
	}
}
