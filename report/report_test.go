package report

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/andrewchambers/csyms/cpp"
)

func TestCaret(t *testing.T) {
	src := []byte("int a;\n\tint 5;\nint c;")
	for _, tc := range []struct {
		name     string
		pos      cpp.FilePos
		expected string
	}{
		{"first column", cpp.FilePos{Line: 1, Col: 1}, "int a;\n^\n"},
		{"after tab", cpp.FilePos{Line: 2, Col: 9}, "    int 5;\n        ^\n"},
		{"last line without newline", cpp.FilePos{Line: 3, Col: 5}, "int c;\n    ^\n"},
		{"past the end", cpp.FilePos{Line: 9, Col: 1}, ""},
		{"no line", cpp.FilePos{}, ""},
	} {
		t.Run(tc.name, func(t *testing.T) {
			var b bytes.Buffer
			Caret(&b, src, tc.pos)
			assert.Equal(t, tc.expected, b.String())
		})
	}
}

func TestDiagnostic(t *testing.T) {
	files := map[string][]byte{"a.c": []byte("#error stop\n")}
	src := func(name string) []byte { return files[name] }
	d := cpp.Diagnostic{
		Pos:      cpp.FilePos{File: "a.c", Line: 1, Col: 1},
		Severity: cpp.SeverityError,
		Kind:     cpp.DirectiveError,
		Msg:      "#error stop",
	}
	var b bytes.Buffer
	Diagnostic(&b, d, src)
	assert.Equal(t, "a.c:1:1: directive error: #error stop\n#error stop\n^\n", b.String())

	b.Reset()
	err := fmt.Errorf("a.c: %w", cpp.ErrWithLoc(errors.New("unterminated conditional directive"), cpp.FilePos{File: "a.c", Line: 1, Col: 2}))
	Error(&b, err, src)
	assert.Equal(t, "a.c: unterminated conditional directive at a.c:1:2\n#error stop\n ^\n", b.String())

	b.Reset()
	Error(&b, errors.New("plain"), src)
	assert.Equal(t, "plain\n", b.String())
}
