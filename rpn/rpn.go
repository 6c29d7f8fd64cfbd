// Copyright 2024 The Erigon Authors
// This file is part of Erigon.
//
// Erigon is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Erigon is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Erigon. If not, see <http://www.gnu.org/licenses/>.

// Package rpn implements the postfix expression language used by CDEF
// sources (spec §4.10): a bounded stack machine over named source
// values, arithmetic, comparisons, trigonometry and time functions.
package rpn

import (
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"rrdb/rrderr"
)

// maxStack bounds the evaluator's working stack (spec §4.10 "bounded
// stack").
const maxStack = 1000

// Expr is a parsed, reusable RPN expression.
type Expr struct {
	tokens []string
}

// Parse splits s on whitespace into tokens. Tokens are not otherwise
// validated until Eval, since validity can depend on which names are bound.
func Parse(s string) (*Expr, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return nil, rrderr.Wrapf(rrderr.KindBadRpn, "rpn.Parse", "empty expression")
	}
	return &Expr{tokens: fields}, nil
}

// Context supplies everything an expression's non-arithmetic tokens need:
// named current values, this expression's own previous result (for PREV),
// each name's previous value (for PREV(name)), and the time/step of the row
// being evaluated.
type Context struct {
	Values     map[string]float64
	Prev       float64
	PrevValues map[string]float64
	Now        time.Time
	Step       time.Duration
}

type machine struct {
	stack []float64
	ctx   Context
	op    string
}

func (m *machine) push(v float64) error {
	if len(m.stack) >= maxStack {
		return rrderr.Wrapf(rrderr.KindBadRpn, m.op, "stack overflow (limit %d)", maxStack)
	}
	m.stack = append(m.stack, v)
	return nil
}

func (m *machine) pop() (float64, error) {
	if len(m.stack) == 0 {
		return 0, rrderr.Wrapf(rrderr.KindBadRpn, m.op, "stack underflow")
	}
	v := m.stack[len(m.stack)-1]
	m.stack = m.stack[:len(m.stack)-1]
	return v, nil
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Eval runs the expression against ctx and returns its single result (spec
// §4.10). Eval returns BadRpn when the expression underflows/overflows the
// stack, references an unbound name, or does not leave exactly one value on
// the stack.
func (e *Expr) Eval(ctx Context) (float64, error) {
	m := &machine{ctx: ctx}
	for _, tok := range e.tokens {
		m.op = tok
		if err := m.step(tok); err != nil {
			return 0, err
		}
	}
	if len(m.stack) != 1 {
		return 0, rrderr.Wrapf(rrderr.KindBadRpn, "rpn.Expr.Eval", "expression left %d values on the stack, expected 1", len(m.stack))
	}
	return m.stack[0], nil
}

func (m *machine) step(tok string) error {
	if v, err := strconv.ParseFloat(tok, 64); err == nil {
		return m.push(v)
	}

	switch tok {
	case "+", "-", "*", "/", "%":
		return m.binaryArith(tok)
	case "SIN", "COS", "LOG", "EXP", "FLOOR", "CEIL", "ABS", "SQRT":
		return m.unaryMath(tok)
	case "ROUND":
		v, err := m.pop()
		if err != nil {
			return err
		}
		return m.push(math.Round(v))
	case "POW":
		return m.binary(func(a, b float64) float64 { return math.Pow(a, b) })
	case "RANDOM", "RND":
		v, err := m.pop()
		if err != nil {
			return err
		}
		return m.push(rand.Float64() * v) //nolint:gosec // spec-defined pseudo-random generator, not security-sensitive
	case "LT":
		return m.binary(func(a, b float64) float64 { return boolFloat(a < b) })
	case "LE":
		return m.binary(func(a, b float64) float64 { return boolFloat(a <= b) })
	case "GT":
		return m.binary(func(a, b float64) float64 { return boolFloat(a > b) })
	case "GE":
		return m.binary(func(a, b float64) float64 { return boolFloat(a >= b) })
	case "EQ":
		return m.binary(func(a, b float64) float64 { return boolFloat(a == b) })
	case "IF":
		return m.ifOp()
	case "MIN":
		return m.binary(func(a, b float64) float64 { return math.Min(a, b) })
	case "MAX":
		return m.binary(func(a, b float64) float64 { return math.Max(a, b) })
	case "LIMIT":
		return m.limitOp()
	case "DUP":
		return m.dupOp()
	case "EXC":
		return m.excOp()
	case "POP":
		_, err := m.pop()
		return err
	case "UN":
		v, err := m.pop()
		if err != nil {
			return err
		}
		return m.push(boolFloat(math.IsNaN(v)))
	case "UNKN":
		return m.push(math.NaN())
	case "NOW":
		return m.push(float64(m.ctx.Now.Unix()))
	case "TIME":
		return m.push(float64(m.ctx.Now.Unix()))
	case "PI":
		return m.push(math.Pi)
	case "E":
		return m.push(math.E)
	case "INF":
		return m.push(math.Inf(1))
	case "NEGINF":
		return m.push(math.Inf(-1))
	case "STEP":
		return m.push(float64(m.ctx.Step / time.Second))
	case "YEAR":
		return m.push(float64(m.ctx.Now.Year()))
	case "MONTH":
		return m.push(float64(m.ctx.Now.Month()))
	case "DATE":
		return m.push(float64(m.ctx.Now.Day()))
	case "HOUR":
		return m.push(float64(m.ctx.Now.Hour()))
	case "MINUTE":
		return m.push(float64(m.ctx.Now.Minute()))
	case "SECOND":
		return m.push(float64(m.ctx.Now.Second()))
	case "WEEK":
		_, week := m.ctx.Now.ISOWeek()
		return m.push(float64(week))
	case "AND":
		return m.binary(func(a, b float64) float64 { return boolFloat(a != 0 && b != 0) })
	case "OR":
		return m.binary(func(a, b float64) float64 { return boolFloat(a != 0 || b != 0) })
	case "XOR":
		return m.binary(func(a, b float64) float64 { return boolFloat((a != 0) != (b != 0)) })
	case "SIGN":
		v, err := m.pop()
		if err != nil {
			return err
		}
		switch {
		case math.IsNaN(v):
			return m.push(math.NaN())
		case v > 0:
			return m.push(1)
		case v < 0:
			return m.push(-1)
		default:
			return m.push(0)
		}
	case "PREV":
		return m.push(m.ctx.Prev)
	}

	if strings.HasPrefix(tok, "PREV(") && strings.HasSuffix(tok, ")") {
		name := tok[len("PREV(") : len(tok)-1]
		v, ok := m.ctx.PrevValues[name]
		if !ok {
			return rrderr.Wrapf(rrderr.KindBadRpn, m.op, "PREV(%s): no previous value for %q", name, name)
		}
		return m.push(v)
	}

	if v, ok := m.ctx.Values[tok]; ok {
		return m.push(v)
	}

	return rrderr.Wrapf(rrderr.KindBadRpn, m.op, "unknown token %q", tok)
}

func (m *machine) binary(f func(a, b float64) float64) error {
	b, err := m.pop()
	if err != nil {
		return err
	}
	a, err := m.pop()
	if err != nil {
		return err
	}
	return m.push(f(a, b))
}

func (m *machine) binaryArith(op string) error {
	b, err := m.pop()
	if err != nil {
		return err
	}
	a, err := m.pop()
	if err != nil {
		return err
	}
	switch op {
	case "+":
		return m.push(a + b)
	case "-":
		return m.push(a - b)
	case "*":
		return m.push(a * b)
	case "/":
		if b == 0 {
			return m.push(math.NaN())
		}
		return m.push(a / b)
	case "%":
		if b == 0 {
			return m.push(math.NaN())
		}
		return m.push(math.Mod(a, b))
	}
	return fmt.Errorf("unreachable")
}

func (m *machine) unaryMath(op string) error {
	v, err := m.pop()
	if err != nil {
		return err
	}
	switch op {
	case "SIN":
		return m.push(math.Sin(v))
	case "COS":
		return m.push(math.Cos(v))
	case "LOG":
		return m.push(math.Log(v))
	case "EXP":
		return m.push(math.Exp(v))
	case "FLOOR":
		return m.push(math.Floor(v))
	case "CEIL":
		return m.push(math.Ceil(v))
	case "ABS":
		return m.push(math.Abs(v))
	case "SQRT":
		return m.push(math.Sqrt(v))
	}
	return fmt.Errorf("unreachable")
}

func (m *machine) ifOp() error {
	c, err := m.pop()
	if err != nil {
		return err
	}
	b, err := m.pop()
	if err != nil {
		return err
	}
	a, err := m.pop()
	if err != nil {
		return err
	}
	if a != 0 {
		return m.push(b)
	}
	return m.push(c)
}

func (m *machine) limitOp() error {
	hi, err := m.pop()
	if err != nil {
		return err
	}
	lo, err := m.pop()
	if err != nil {
		return err
	}
	v, err := m.pop()
	if err != nil {
		return err
	}
	if math.IsNaN(v) || v < lo || v > hi {
		return m.push(math.NaN())
	}
	return m.push(v)
}

func (m *machine) dupOp() error {
	v, err := m.pop()
	if err != nil {
		return err
	}
	if err := m.push(v); err != nil {
		return err
	}
	return m.push(v)
}

func (m *machine) excOp() error {
	b, err := m.pop()
	if err != nil {
		return err
	}
	a, err := m.pop()
	if err != nil {
		return err
	}
	if err := m.push(b); err != nil {
		return err
	}
	return m.push(a)
}
