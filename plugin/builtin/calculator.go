package builtin

import (
	"context"
	"errors"
	"fmt"
	"go/ast"
	"go/constant"
	"go/parser"
	"go/token"
	"strconv"
	"strings"

	"github.com/hupe1980/agentrelay/plugin"
)

// ErrDivisionByZero is returned for x/0 and x%0.
var ErrDivisionByZero = errors.New("division by zero")

// Calculator evaluates arithmetic expressions with exact rational arithmetic.
// Supported: integer and decimal literals, parentheses, unary + and -, and the
// binary operators + - * / %.
type Calculator struct{}

// NewCalculator creates the calculator module.
func NewCalculator() *Calculator { return &Calculator{} }

// Descriptor implements plugin.Plugin.
func (c *Calculator) Descriptor() plugin.Descriptor {
	return plugin.Descriptor{
		Name:        "calculator",
		Description: "Evaluate an arithmetic expression",
		Metadata: plugin.Metadata{
			Author:   Author,
			Version:  "1.0.0",
			Example:  "run calculator (2 + 3) * 4",
			Category: "utility",
		},
	}
}

// Initialize implements plugin.Plugin.
func (c *Calculator) Initialize(context.Context) error { return nil }

// Execute implements plugin.Plugin.
func (c *Calculator) Execute(_ context.Context, in plugin.Input) (plugin.Output, error) {
	v, err := Evaluate(in.Text)
	if err != nil {
		return plugin.Output{}, err
	}
	text, num := formatValue(v)
	return plugin.Output{Text: text, Data: map[string]any{"result": num}}, nil
}

// Shutdown implements plugin.Plugin.
func (c *Calculator) Shutdown(context.Context) error { return nil }

// Evaluate parses and evaluates expr.
func Evaluate(expr string) (constant.Value, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, errors.New("empty expression")
	}
	node, err := parser.ParseExpr(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid expression: %w", err)
	}
	return eval(node)
}

func eval(node ast.Expr) (constant.Value, error) {
	switch n := node.(type) {
	case *ast.BasicLit:
		if n.Kind != token.INT && n.Kind != token.FLOAT {
			return nil, fmt.Errorf("unsupported literal %s", n.Value)
		}
		v := constant.MakeFromLiteral(n.Value, n.Kind, 0)
		if v.Kind() == constant.Unknown {
			return nil, fmt.Errorf("invalid number %s", n.Value)
		}
		return v, nil
	case *ast.ParenExpr:
		return eval(n.X)
	case *ast.UnaryExpr:
		x, err := eval(n.X)
		if err != nil {
			return nil, err
		}
		switch n.Op {
		case token.ADD, token.SUB:
			return constant.UnaryOp(n.Op, x, 0), nil
		}
		return nil, fmt.Errorf("unsupported operator %s", n.Op)
	case *ast.BinaryExpr:
		x, err := eval(n.X)
		if err != nil {
			return nil, err
		}
		y, err := eval(n.Y)
		if err != nil {
			return nil, err
		}
		switch n.Op {
		case token.ADD, token.SUB, token.MUL:
			return constant.BinaryOp(x, n.Op, y), nil
		case token.QUO:
			if constant.Sign(y) == 0 {
				return nil, ErrDivisionByZero
			}
			// QUO on two integers yields the exact rational result.
			return constant.BinaryOp(x, token.QUO, y), nil
		case token.REM:
			if x.Kind() != constant.Int || y.Kind() != constant.Int {
				return nil, errors.New("% requires integer operands")
			}
			if constant.Sign(y) == 0 {
				return nil, ErrDivisionByZero
			}
			return constant.BinaryOp(x, token.REM, y), nil
		}
		return nil, fmt.Errorf("unsupported operator %s", n.Op)
	}
	return nil, fmt.Errorf("unsupported expression %T", node)
}

// formatValue renders v for the reply and returns a JSON-friendly number.
func formatValue(v constant.Value) (string, any) {
	if v.Kind() == constant.Int {
		if i, exact := constant.Int64Val(v); exact {
			return strconv.FormatInt(i, 10), i
		}
		return v.ExactString(), v.ExactString()
	}
	// A rational that is a whole number (e.g. 6/3) is reported as integer.
	if constant.ToInt(v).Kind() == constant.Int {
		return formatValue(constant.ToInt(v))
	}
	f, _ := constant.Float64Val(v)
	return strconv.FormatFloat(f, 'g', -1, 64), f
}
