package rules

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sweeney/owmaster/internal/model"
)

// Guard expressions are parsed once at configuration load and evaluated
// against a typed snapshot at runtime. The language covers boolean
// composition (and/or/not), comparisons, numeric and string literals,
// channel lookups ("alias[channel].value", "alias[channel].state") and the
// since_last_run pseudo-variable.
//
// Missing data never raises: looking up a device or channel with no
// recorded state yields an undefined value, comparisons against undefined
// are false, and "or" falls through to its right operand. That makes "or"
// double as the or-else default operator, e.g. "(since_last_run or 99999) > 2".

// Env is the evaluation environment for one transition event.
type Env struct {
	Snapshot     Snapshot
	SinceLastRun float64
}

// Snapshot is the read-only state view guards evaluate against.
// model.Snapshot satisfies it; tests substitute a map.
type Snapshot interface {
	Lookup(device, channel string) (model.ChannelView, bool)
}

// Expr is a compiled guard expression.
type Expr interface {
	Eval(env Env) Value
	String() string
}

// Value is the tagged result of evaluating a (sub)expression.
type Value struct {
	kind valueKind
	num  float64
	str  string
	b    bool
}

type valueKind int

const (
	kindUndefined valueKind = iota
	kindNumber
	kindString
	kindBool
)

func Number(v float64) Value { return Value{kind: kindNumber, num: v} }
func String(s string) Value  { return Value{kind: kindString, str: s} }
func Bool(b bool) Value      { return Value{kind: kindBool, b: b} }
func Undefined() Value       { return Value{kind: kindUndefined} }

// Truthy reports whether a value passes a guard: non-zero numbers,
// non-empty strings and true. Undefined is always falsy.
func (v Value) Truthy() bool {
	switch v.kind {
	case kindNumber:
		return v.num != 0
	case kindString:
		return v.str != ""
	case kindBool:
		return v.b
	}
	return false
}

func (v Value) Defined() bool { return v.kind != kindUndefined }

// --- AST nodes ---

type literal struct{ v Value }

func (l literal) Eval(Env) Value { return l.v }
func (l literal) String() string {
	switch l.v.kind {
	case kindNumber:
		return strconv.FormatFloat(l.v.num, 'g', -1, 64)
	case kindString:
		return strconv.Quote(l.v.str)
	case kindBool:
		return strconv.FormatBool(l.v.b)
	}
	return "undefined"
}

type sinceLastRun struct{}

func (sinceLastRun) Eval(env Env) Value { return Number(env.SinceLastRun) }
func (sinceLastRun) String() string     { return "since_last_run" }

// lookup is "device[channel].field" where field is value or state.
type lookup struct {
	device  string
	channel string
	field   string
}

func (l lookup) Eval(env Env) Value {
	if env.Snapshot == nil {
		return Undefined()
	}
	v, ok := env.Snapshot.Lookup(l.device, l.channel)
	if !ok {
		return Undefined()
	}
	if l.field == "state" {
		return String(string(v.State))
	}
	return Number(v.Value)
}

func (l lookup) String() string {
	return fmt.Sprintf("%s[%s].%s", l.device, l.channel, l.field)
}

type notExpr struct{ x Expr }

func (n notExpr) Eval(env Env) Value { return Bool(!n.x.Eval(env).Truthy()) }
func (n notExpr) String() string     { return "not " + n.x.String() }

type andExpr struct{ l, r Expr }

func (a andExpr) Eval(env Env) Value {
	if !a.l.Eval(env).Truthy() {
		return Bool(false)
	}
	return Bool(a.r.Eval(env).Truthy())
}
func (a andExpr) String() string { return a.l.String() + " and " + a.r.String() }

// orExpr returns its left value when that is defined and truthy, otherwise
// the right value. This yields both boolean "or" and the or-else default.
type orExpr struct{ l, r Expr }

func (o orExpr) Eval(env Env) Value {
	if lv := o.l.Eval(env); lv.Defined() && lv.Truthy() {
		return lv
	}
	return o.r.Eval(env)
}
func (o orExpr) String() string { return o.l.String() + " or " + o.r.String() }

type cmpExpr struct {
	op   string
	l, r Expr
}

func (c cmpExpr) Eval(env Env) Value {
	lv, rv := c.l.Eval(env), c.r.Eval(env)
	// Undefined or mismatched types compare false: rules referencing
	// not-yet-observed devices stay dormant until data arrives.
	if !lv.Defined() || !rv.Defined() || lv.kind != rv.kind {
		return Bool(false)
	}
	switch lv.kind {
	case kindNumber:
		return Bool(cmpOrdered(c.op, lv.num, rv.num))
	case kindString:
		return Bool(cmpOrdered(c.op, lv.str, rv.str))
	case kindBool:
		switch c.op {
		case "==":
			return Bool(lv.b == rv.b)
		case "!=":
			return Bool(lv.b != rv.b)
		}
		return Bool(false)
	}
	return Bool(false)
}

func (c cmpExpr) String() string {
	return c.l.String() + " " + c.op + " " + c.r.String()
}

func cmpOrdered[T float64 | string](op string, a, b T) bool {
	switch op {
	case "==":
		return a == b
	case "!=":
		return a != b
	case "<":
		return a < b
	case "<=":
		return a <= b
	case ">":
		return a > b
	case ">=":
		return a >= b
	}
	return false
}

// --- lexer ---

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokNumber
	tokString
	tokOp     // comparison operators
	tokLParen // (
	tokRParen // )
	tokLBrack // [
	tokRBrack // ]
	tokDot    // .
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

type lexer struct {
	src string
	pos int
}

func (lx *lexer) next() (token, error) {
	for lx.pos < len(lx.src) && isSpace(lx.src[lx.pos]) {
		lx.pos++
	}
	if lx.pos >= len(lx.src) {
		return token{kind: tokEOF, pos: lx.pos}, nil
	}

	start := lx.pos
	c := lx.src[lx.pos]

	switch {
	case c == '(':
		lx.pos++
		return token{tokLParen, "(", start}, nil
	case c == ')':
		lx.pos++
		return token{tokRParen, ")", start}, nil
	case c == '[':
		lx.pos++
		return token{tokLBrack, "[", start}, nil
	case c == ']':
		lx.pos++
		return token{tokRBrack, "]", start}, nil
	case c == '.' && (lx.pos+1 >= len(lx.src) || !isDigit(lx.src[lx.pos+1])):
		lx.pos++
		return token{tokDot, ".", start}, nil
	case c == '=' || c == '!' || c == '<' || c == '>':
		op := string(c)
		lx.pos++
		if lx.pos < len(lx.src) && lx.src[lx.pos] == '=' {
			op += "="
			lx.pos++
		}
		if op == "=" || op == "!" {
			return token{}, fmt.Errorf("col %d: unexpected %q (did you mean %q?)", start+1, op, op+"=")
		}
		return token{tokOp, op, start}, nil
	case c == '\'' || c == '"':
		quote := c
		lx.pos++
		for lx.pos < len(lx.src) && lx.src[lx.pos] != quote {
			lx.pos++
		}
		if lx.pos >= len(lx.src) {
			return token{}, fmt.Errorf("col %d: unterminated string", start+1)
		}
		text := lx.src[start+1 : lx.pos]
		lx.pos++
		return token{tokString, text, start}, nil
	case isDigit(c) || c == '.':
		for lx.pos < len(lx.src) && (isDigit(lx.src[lx.pos]) || lx.src[lx.pos] == '.') {
			lx.pos++
		}
		return token{tokNumber, lx.src[start:lx.pos], start}, nil
	case isIdentStart(c):
		for lx.pos < len(lx.src) && isIdent(lx.src[lx.pos]) {
			lx.pos++
		}
		return token{tokIdent, lx.src[start:lx.pos], start}, nil
	}
	return token{}, fmt.Errorf("col %d: unexpected character %q", start+1, c)
}

func isSpace(c byte) bool { return c == ' ' || c == '\t' || c == '\n' || c == '\r' }
func isDigit(c byte) bool { return c >= '0' && c <= '9' }
func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
func isIdent(c byte) bool { return isIdentStart(c) || isDigit(c) }

// --- parser ---

// Parse compiles a guard expression. A failure here is a configuration
// error surfaced at load time; evaluation itself cannot fail.
func Parse(src string) (Expr, error) {
	if strings.TrimSpace(src) == "" {
		return nil, fmt.Errorf("empty expression")
	}
	p := &parser{lx: &lexer{src: src}}
	if err := p.advance(); err != nil {
		return nil, err
	}
	e, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.tok.kind != tokEOF {
		return nil, fmt.Errorf("col %d: unexpected %q after expression", p.tok.pos+1, p.tok.text)
	}
	return e, nil
}

type parser struct {
	lx  *lexer
	tok token
}

func (p *parser) advance() error {
	t, err := p.lx.next()
	if err != nil {
		return err
	}
	p.tok = t
	return nil
}

func (p *parser) parseOr() (Expr, error) {
	l, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.tok.kind == tokIdent && p.tok.text == "or" {
		if err := p.advance(); err != nil {
			return nil, err
		}
		r, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		l = orExpr{l, r}
	}
	return l, nil
}

func (p *parser) parseAnd() (Expr, error) {
	l, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.tok.kind == tokIdent && p.tok.text == "and" {
		if err := p.advance(); err != nil {
			return nil, err
		}
		r, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		l = andExpr{l, r}
	}
	return l, nil
}

func (p *parser) parseNot() (Expr, error) {
	if p.tok.kind == tokIdent && p.tok.text == "not" {
		if err := p.advance(); err != nil {
			return nil, err
		}
		x, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return notExpr{x}, nil
	}
	return p.parseCmp()
}

func (p *parser) parseCmp() (Expr, error) {
	l, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	if p.tok.kind == tokOp {
		op := p.tok.text
		if err := p.advance(); err != nil {
			return nil, err
		}
		r, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		return cmpExpr{op: op, l: l, r: r}, nil
	}
	return l, nil
}

func (p *parser) parsePrimary() (Expr, error) {
	switch p.tok.kind {
	case tokNumber:
		n, err := strconv.ParseFloat(p.tok.text, 64)
		if err != nil {
			return nil, fmt.Errorf("col %d: bad number %q", p.tok.pos+1, p.tok.text)
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return literal{Number(n)}, nil

	case tokString:
		s := p.tok.text
		if err := p.advance(); err != nil {
			return nil, err
		}
		return literal{String(s)}, nil

	case tokLParen:
		if err := p.advance(); err != nil {
			return nil, err
		}
		e, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.tok.kind != tokRParen {
			return nil, fmt.Errorf("col %d: expected )", p.tok.pos+1)
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return e, nil

	case tokIdent:
		name := p.tok.text
		pos := p.tok.pos
		if err := p.advance(); err != nil {
			return nil, err
		}
		switch name {
		case "true":
			return literal{Bool(true)}, nil
		case "false":
			return literal{Bool(false)}, nil
		case "since_last_run":
			return sinceLastRun{}, nil
		case "and", "or", "not":
			return nil, fmt.Errorf("col %d: unexpected keyword %q", pos+1, name)
		}
		return p.parseLookup(name, pos)
	}
	return nil, fmt.Errorf("col %d: unexpected %q", p.tok.pos+1, p.tok.text)
}

// parseLookup consumes "[channel].field" after a device alias.
func (p *parser) parseLookup(device string, pos int) (Expr, error) {
	if p.tok.kind != tokLBrack {
		return nil, fmt.Errorf("col %d: unknown variable %q (channel lookups are written alias[channel].value)", pos+1, device)
	}
	if err := p.advance(); err != nil {
		return nil, err
	}

	var channel string
	switch p.tok.kind {
	case tokNumber, tokIdent, tokString:
		channel = p.tok.text
	default:
		return nil, fmt.Errorf("col %d: expected channel name in brackets", p.tok.pos+1)
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	if p.tok.kind != tokRBrack {
		return nil, fmt.Errorf("col %d: expected ]", p.tok.pos+1)
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	if p.tok.kind != tokDot {
		return nil, fmt.Errorf("col %d: expected .value or .state after lookup", p.tok.pos+1)
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	if p.tok.kind != tokIdent || (p.tok.text != "value" && p.tok.text != "state") {
		return nil, fmt.Errorf("col %d: expected value or state, got %q", p.tok.pos+1, p.tok.text)
	}
	field := p.tok.text
	if err := p.advance(); err != nil {
		return nil, err
	}
	return lookup{device: device, channel: channel, field: field}, nil
}
