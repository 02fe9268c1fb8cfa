package cpp

import (
	"errors"
	"testing"
)

var exprTestCases = []struct {
	expr      string
	expected  int64
	expectErr bool
}{
	{"1", 1, false},
	{"2", 2, false},
	{"0x1", 0x1, false},
	{"-1", -1, false},
	{"-2", -2, false},
	{"(2)", 2, false},
	{"(-2)", -2, false},
	{"0x1234", 0x1234, false},
	{"010", 8, false},
	{"10UL", 10, false},
	{"201112L", 201112, false},
	{"foo", 0, false},
	{"bang", 0, false},
	{"defined foo", 1, false},
	{"defined bang", 0, false},
	{"defined(foo)", 1, false},
	{"defined(bang)", 0, false},
	{"!defined(bang)", 1, false},
	{"defined", 0, true},
	{"defined(bang", 0, true},
	{"defined bang)", 0, true},
	{"0 || 0", 0, false},
	{"1 || 0", 1, false},
	{"0 || 1", 1, false},
	{"1 || 1", 1, false},
	{"0 && 0", 0, false},
	{"1 && 0", 0, false},
	{"0 && 1", 0, false},
	{"1 && 1", 1, false},
	{"0xf0 | 1", 0xf1, false},
	{"0xf0 & 1", 0, false},
	{"0xf0 & 0x1f", 0x10, false},
	{"1 ^ 1", 0, false},
	{"~0", -1, false},
	{"!0", 1, false},
	{"1 == 1", 1, false},
	{"1 == 0", 0, false},
	{"1 != 1", 0, false},
	{"0 != 1", 1, false},
	{"0 > 1", 0, false},
	{"0 < 1", 1, false},
	{"0 > -1", 1, false},
	{"0 < -1", 0, false},
	{"0 >= 1", 0, false},
	{"0 <= 1", 1, false},
	{"0 >= -1", 1, false},
	{"0 <= -1", 0, false},
	{"0 < 0", 0, false},
	{"0 <= 0", 1, false},
	{"0 > 0", 0, false},
	{"0 >= 0", 1, false},
	{"1 << 1", 2, false},
	{"2 >> 1", 1, false},
	{"2 + 1", 3, false},
	{"2 - 3", -1, false},
	{"2 * 3", 6, false},
	{"6 / 3", 2, false},
	{"7 % 3", 1, false},
	{"0,1", 1, false},
	{"1,0", 0, false},
	{"2+2*3+2", 10, false},
	{"(2+2)*(3+2)", 20, false},
	{"2 + 2 + 2 + 2 == 2 + 2 * 3", 1, false},
	{"0 ? 1 : 2", 2, false},
	{"1 ? 1 : 2", 1, false},
	{"(1 ? 1 ? 1337 : 1234 : 2) == 1337", 1, false},
	{"(1 ? 0 ? 1337 : 1234 : 2) == 1234", 1, false},
	{"(0 ? 1 ? 1337 : 1234 : 2) == 2", 1, false},
	{"(0 ? 1 ? 1337 : 1234 : 2 ? 3 : 4) == 3", 1, false},
	{"0 , 1 ? 1 , 0 : 2  ", 0, false},
	{"'a'", 97, false},
	{"'\\n'", 10, false},
	{"'\\0'", 0, false},
	{"'\\x41' == 'A'", 1, false},
	{"'ab'", 'a'<<8 | 'b', false},
	{"-1 > 0u", 1, false},
	{"-1 < 0", 1, false},
	{"0xffffffffffffffffUL > 0xffffffffUL", 1, false},
	{"0xffffffffffffffff > 0", 1, false},
	{"18446744073709551615u / 2 == 9223372036854775807", 1, false},
	{"18446744073709551615 % 10", 5, false},
	{"-1 >> 63", -1, false},
	{"-1u >> 63", 1, false},
	{"~0u == 0xffffffffffffffff", 1, false},
	{"(1 ? -1 : 0u) > 0", 1, false},
	{"1u << 1 == 2", 1, false},
	{"-2 / 2", -1, false},
	{"0 && 1 / 0", 0, false},
	{"1 || 1 % 0", 1, false},
	{"0 ? 1 / 0 : 3", 3, false},
	{"1 ? 3 : 1 / 0", 3, false},
	{"1 / 0", 0, true},
	{"1.0", 0, true},
	{"\"str\"", 0, true},
	{"(1", 0, true},
	{"1 ? 2", 0, true},
	{"1 2", 0, true},
	{"", 0, true},
}

var testExprPredefined = map[string]struct{}{
	"foo": {},
	"bar": {},
	"baz": {},
}

func lexAll(t *testing.T, src string) []*Token {
	t.Helper()
	lexer := Lex("testcase.c", []byte(src))
	var toks []*Token
	for {
		tok := lexer.Next()
		if tok.Kind == EOF {
			break
		}
		toks = append(toks, tok)
	}
	if n := lexer.Diagnostics().Len(); n != 0 {
		t.Fatalf("lexing %q gave %d diagnostics", src, n)
	}
	return toks
}

func TestExprEval(t *testing.T) {
	isDefined := func(s string) bool {
		_, ok := testExprPredefined[s]
		return ok
	}
	for idx := range exprTestCases {
		tc := &exprTestCases[idx]
		result, err := evalIfExpr(isDefined, lexAll(t, tc.expr))
		if err != nil {
			if !tc.expectErr {
				t.Errorf("test %s failed - got error <%s>", tc.expr, err)
			}
		} else if tc.expectErr {
			t.Errorf("test %s failed - expected an error", tc.expr)
		} else if result != tc.expected {
			t.Errorf("test %s failed - got %d expected %d", tc.expr, result, tc.expected)
		}
	}
}

func TestExprDivByZero(t *testing.T) {
	_, err := evalIfExpr(func(string) bool { return false }, lexAll(t, "2 + 4 / (1 - 1)"))
	if !errors.Is(err, errDivByZero) {
		t.Fatalf("got %v, expected division by zero", err)
	}
}
