package cpp

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

/*
   Implements the expression parsing and evaluation for #if statements

   Note that "defined name" and "define(name)" are handled before this part of code.

   #if expression
       controlled text
   #endif

   expression may be:

   Integer constants.

   Character constants, which are interpreted as they would be in normal code.

   Arithmetic operators for most of C

   Identifiers that are not macros, which are all considered to be the number zero.

   The operands of &&, || and ?: that are not needed are parsed without
   being evaluated, so 0 && (1/0) is not an error.
*/

var errDivByZero = errors.New("division by zero in #if")

type cppExprCtx struct {
	toks      []*Token
	isDefined func(string) bool
}

func (ctx *cppExprCtx) nextToken() *Token {
	if len(ctx.toks) == 0 {
		return nil
	}
	tok := ctx.toks[0]
	ctx.toks = ctx.toks[1:]
	return tok
}

func (ctx *cppExprCtx) peek() *Token {
	if len(ctx.toks) == 0 {
		return nil
	}
	return ctx.toks[0]
}

// cppValue is the value of a #if operand. Unsigned values hold their
// bits in v and follow the usual arithmetic conversions.
type cppValue struct {
	v        int64
	unsigned bool
}

func signed(v int64) cppValue {
	return cppValue{v: v}
}

func (v cppValue) isTrue() bool {
	return v.v != 0
}

func boolToInt(b bool) cppValue {
	if b {
		return signed(1)
	}
	return signed(0)
}

func parseCPPExprAtom(ctx *cppExprCtx, eval bool) (cppValue, error) {
	toCheck := ctx.nextToken()
	if toCheck == nil {
		return cppValue{}, fmt.Errorf("expected integer, char, or defined but got nothing")
	}
	switch toCheck.Kind {
	case NOT:
		v, err := parseCPPExprAtom(ctx, eval)
		if err != nil {
			return cppValue{}, err
		}
		return boolToInt(!v.isTrue()), nil
	case BNOT:
		v, err := parseCPPExprAtom(ctx, eval)
		if err != nil {
			return cppValue{}, err
		}
		v.v = ^v.v
		return v, nil
	case SUB:
		v, err := parseCPPExprAtom(ctx, eval)
		if err != nil {
			return cppValue{}, err
		}
		v.v = -v.v
		return v, nil
	case ADD:
		return parseCPPExprAtom(ctx, eval)
	case LPAREN:
		v, err := parseCPPExpr(ctx, eval)
		if err != nil {
			return cppValue{}, err
		}
		rparen := ctx.nextToken()
		if rparen == nil || rparen.Kind != RPAREN {
			return cppValue{}, fmt.Errorf("unclosed parenthesis")
		}
		return v, nil
	case INT_CONSTANT:
		return parseIntConstant(toCheck.Val)
	case CHAR_CONSTANT:
		c, err := parseCharConstant(toCheck.Val)
		return signed(c), err
	case FLOAT_CONSTANT:
		return cppValue{}, fmt.Errorf("floating constant in preprocessor expression")
	case STRING:
		return cppValue{}, fmt.Errorf("token %s is not valid in preprocessor expressions", toCheck.Val)
	}
	if !toCheck.IsIdent() {
		return cppValue{}, fmt.Errorf("expected integer, char, or defined but got %s", toCheck.Val)
	}
	if toCheck.Val != "defined" {
		// Identifiers left after macro expansion are zero.
		return signed(0), nil
	}
	toCheck = ctx.nextToken()
	if toCheck == nil {
		return cppValue{}, fmt.Errorf("expected ( or an identifier but got nothing")
	}
	switch {
	case toCheck.Kind == LPAREN:
		toCheck = ctx.nextToken()
		rparen := ctx.nextToken()
		if toCheck == nil || !toCheck.IsIdent() || rparen == nil || rparen.Kind != RPAREN {
			return cppValue{}, fmt.Errorf("malformed defined check, missing )")
		}
	case toCheck.IsIdent():
		//calls isDefined as intended
	default:
		return cppValue{}, fmt.Errorf("malformed defined statement at %s", toCheck.Pos)
	}
	return boolToInt(ctx.isDefined(toCheck.Val)), nil
}

// parseIntConstant returns the value of an integer constant. It is
// unsigned with a u suffix or when it does not fit in an int64.
func parseIntConstant(s string) (cppValue, error) {
	digits := strings.TrimRight(s, "uUlL")
	unsigned := strings.ContainsAny(s[len(digits):], "uU")
	v, err := strconv.ParseInt(digits, 0, 64)
	if err == nil {
		return cppValue{v: v, unsigned: unsigned}, nil
	}
	u, uerr := strconv.ParseUint(digits, 0, 64)
	if uerr == nil {
		return cppValue{v: int64(u), unsigned: true}, nil
	}
	return cppValue{}, fmt.Errorf("invalid integer constant %s", s)
}

// parseCharConstant returns the value of a character constant, with
// multi-character constants packed the way gcc does.
func parseCharConstant(s string) (int64, error) {
	body := s[strings.IndexByte(s, '\'')+1:]
	if len(body) == 0 || body[len(body)-1] != '\'' {
		return 0, fmt.Errorf("unterminated character constant %s", s)
	}
	body = body[:len(body)-1]
	if body == "" {
		return 0, fmt.Errorf("empty character constant")
	}
	var ret int64
	for body != "" {
		c, n := decodeEscape(body)
		if n == 0 {
			return 0, fmt.Errorf("invalid character constant %s", s)
		}
		ret = ret<<8 | c
		body = body[n:]
	}
	return ret, nil
}

// decodeEscape decodes one possibly escaped character at the start of
// s and returns its value and length, or a zero length if s is empty.
func decodeEscape(s string) (int64, int) {
	if s == "" {
		return 0, 0
	}
	if s[0] != '\\' || len(s) == 1 {
		r, n := utf8.DecodeRuneInString(s)
		return int64(r), n
	}
	switch c := s[1]; c {
	case 'n':
		return '\n', 2
	case 't':
		return '\t', 2
	case 'r':
		return '\r', 2
	case 'a':
		return 7, 2
	case 'b':
		return 8, 2
	case 'f':
		return 12, 2
	case 'v':
		return 11, 2
	case 'e', 'E':
		return 27, 2
	case 'x':
		var v int64
		n := 2
		for n < len(s) && isHexDigit(rune(s[n])) {
			d, _ := strconv.ParseInt(s[n:n+1], 16, 64)
			v = v<<4 | d
			n++
		}
		return v, n
	case '0', '1', '2', '3', '4', '5', '6', '7':
		var v int64
		n := 1
		for n < len(s) && n < 4 && s[n] >= '0' && s[n] <= '7' {
			v = v<<3 | int64(s[n]-'0')
			n++
		}
		return v, n
	default:
		r, n := utf8.DecodeRuneInString(s[1:])
		return int64(r), n + 1
	}
}

func evalCPPBinop(k TokenKind, l, r cppValue) (cppValue, error) {
	unsigned := l.unsigned || r.unsigned
	ret := func(v int64) cppValue {
		return cppValue{v: v, unsigned: unsigned}
	}
	switch k {
	case LOR:
		return boolToInt(l.isTrue() || r.isTrue()), nil
	case LAND:
		return boolToInt(l.isTrue() && r.isTrue()), nil
	case OR:
		return ret(l.v | r.v), nil
	case XOR:
		return ret(l.v ^ r.v), nil
	case AND:
		return ret(l.v & r.v), nil
	case ADD:
		return ret(l.v + r.v), nil
	case SUB:
		return ret(l.v - r.v), nil
	case MUL:
		return ret(l.v * r.v), nil
	case SHR, SHL:
		// The result has the type of the left operand.
		if (!r.unsigned && r.v < 0) || uint64(r.v) >= 64 {
			return cppValue{unsigned: l.unsigned}, nil
		}
		n := uint64(r.v)
		switch {
		case k == SHL:
			l.v <<= n
		case l.unsigned:
			l.v = int64(uint64(l.v) >> n)
		default:
			l.v >>= n
		}
		return l, nil
	case QUO, REM:
		if r.v == 0 {
			return cppValue{}, errDivByZero
		}
		if unsigned {
			a, b := uint64(l.v), uint64(r.v)
			if k == QUO {
				return ret(int64(a / b)), nil
			}
			return ret(int64(a % b)), nil
		}
		if k == QUO {
			return ret(l.v / r.v), nil
		}
		return ret(l.v % r.v), nil
	case EQL:
		return boolToInt(l.v == r.v), nil
	case NEQ:
		return boolToInt(l.v != r.v), nil
	case LSS, GTR, LEQ, GEQ:
		c := 0
		switch {
		case unsigned && uint64(l.v) < uint64(r.v), !unsigned && l.v < r.v:
			c = -1
		case l.v != r.v:
			c = 1
		}
		switch k {
		case LSS:
			return boolToInt(c < 0), nil
		case GTR:
			return boolToInt(c > 0), nil
		case LEQ:
			return boolToInt(c <= 0), nil
		}
		return boolToInt(c >= 0), nil
	case COMMA:
		return r, nil
	default:
		return cppValue{}, fmt.Errorf("internal error %s", k)
	}
}

func parseCPPTernary(ctx *cppExprCtx, eval bool) (cppValue, error) {
	cond, err := parseCPPBinop(ctx, eval)
	if err != nil {
		return cppValue{}, err
	}
	t := ctx.peek()
	if t == nil || t.Kind != QUESTION {
		return cond, nil
	}
	ctx.nextToken()
	a, err := parseCPPExpr(ctx, eval && cond.isTrue())
	if err != nil {
		return cppValue{}, err
	}
	colon := ctx.nextToken()
	if colon == nil || colon.Kind != COLON {
		return cppValue{}, fmt.Errorf("ternary without :")
	}
	b, err := parseCPPTernary(ctx, eval && !cond.isTrue())
	if err != nil {
		return cppValue{}, err
	}
	ret := b
	if cond.isTrue() {
		ret = a
	}
	ret.unsigned = a.unsigned || b.unsigned
	return ret, nil
}

func parseCPPComma(ctx *cppExprCtx, eval bool) (cppValue, error) {
	v, err := parseCPPTernary(ctx, eval)
	if err != nil {
		return cppValue{}, err
	}
	for {
		t := ctx.peek()
		if t == nil || t.Kind != COMMA {
			break
		}
		ctx.nextToken()
		v, err = parseCPPTernary(ctx, eval)
		if err != nil {
			return cppValue{}, err
		}
	}
	return v, nil
}

func getPrec(k TokenKind) int {
	switch k {
	case MUL, REM, QUO:
		return 10
	case ADD, SUB:
		return 9
	case SHR, SHL:
		return 8
	case LSS, GTR, GEQ, LEQ:
		return 7
	case EQL, NEQ:
		return 6
	case AND:
		return 5
	case XOR:
		return 4
	case OR:
		return 3
	case LAND:
		return 2
	case LOR:
		return 1
	}
	return -1
}

// This is the precedence climbing algorithm, simplified because
// all the operators are left associative. The CPP doesn't
// deal with assignment operators.
// eval is false inside operands whose value cannot matter, errors
// like division by zero are not raised there.
func parseCPPBinop_1(ctx *cppExprCtx, prec int, eval bool) (cppValue, error) {
	l, err := parseCPPExprAtom(ctx, eval)
	if err != nil {
		return cppValue{}, err
	}
	for {
		t := ctx.peek()
		if t == nil {
			break
		}
		p := getPrec(t.Kind)
		if p == -1 {
			break
		}
		if p < prec {
			break
		}
		ctx.nextToken()
		reval := eval
		switch t.Kind {
		case LAND:
			reval = eval && l.isTrue()
		case LOR:
			reval = eval && !l.isTrue()
		}
		r, err := parseCPPBinop_1(ctx, p+1, reval)
		if err != nil {
			return cppValue{}, err
		}
		if !eval {
			l = cppValue{unsigned: l.unsigned || r.unsigned}
			continue
		}
		l, err = evalCPPBinop(t.Kind, l, r)
		if err != nil {
			return cppValue{}, err
		}
	}
	return l, nil
}

func parseCPPBinop(ctx *cppExprCtx, eval bool) (cppValue, error) {
	return parseCPPBinop_1(ctx, 0, eval)
}

func parseCPPExpr(ctx *cppExprCtx, eval bool) (cppValue, error) {
	return parseCPPComma(ctx, eval)
}

func evalIfExpr(isDefined func(string) bool, toks []*Token) (int64, error) {
	if len(toks) == 0 {
		return 0, fmt.Errorf("#if with no expression")
	}
	ctx := &cppExprCtx{isDefined: isDefined, toks: toks}
	ret, err := parseCPPExpr(ctx, true)
	if err != nil {
		return 0, err
	}
	t := ctx.nextToken()
	if t != nil {
		return 0, fmt.Errorf("stray token %s", t.Val)
	}
	return ret.v, nil
}
