// Package textexpr parses textual model expressions into the lippy
// expression AST. Parsing reuses the expr language parser; only the linear
// modeling subset of that language is accepted, everything else is rejected
// with a structured error.
//
// Accepted surface syntax:
//
//	literals        1, 2.5, "S1", ["S1", "S2"]
//	symbols         s, supply, _  (wildcard)
//	variable access ship(s, c), x()
//	parameter access supply[s], cfg.limit, rates["fast"][0]
//	arithmetic      + - * /, unary -
//	ranges          1..10
//	aggregation     sum(body), sum(s in domain, body)
//	comparisons     <= >= ==  (top level only, via ParseComparison)
package textexpr

import (
	"fmt"

	"github.com/antonmedv/expr/ast"
	"github.com/antonmedv/expr/parser"

	"github.com/perdasilva/lippy/pkg/lippy"
)

// Error reports a rejected or malformed source expression.
type Error struct {
	Src    string
	Line   int
	Column int
	Detail string
}

func (e *Error) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s at %d:%d in %q", e.Detail, e.Line, e.Column, e.Src)
	}
	return fmt.Sprintf("%s in %q", e.Detail, e.Src)
}

func errAt(src string, node ast.Node, format string, args ...interface{}) *Error {
	e := &Error{Src: src, Detail: fmt.Sprintf(format, args...)}
	if node != nil {
		loc := node.Location()
		e.Line, e.Column = loc.Line, loc.Column
	}
	return e
}

// Parse parses src into an expression tree.
func Parse(src string) (lippy.Expr, error) {
	tree, err := parser.Parse(src)
	if err != nil {
		return nil, &Error{Src: src, Detail: err.Error()}
	}
	return convert(src, tree.Node)
}

// ParseComparison parses a constraint body: two expressions joined by one of
// <=, >= or ==.
func ParseComparison(src string) (lippy.Comparison, error) {
	tree, err := parser.Parse(src)
	if err != nil {
		return lippy.Comparison{}, &Error{Src: src, Detail: err.Error()}
	}
	bin, ok := tree.Node.(*ast.BinaryNode)
	if !ok {
		return lippy.Comparison{}, errAt(src, tree.Node, "expected a comparison, got %T", tree.Node)
	}
	var op lippy.CmpOp
	switch bin.Operator {
	case "<=":
		op = lippy.CmpLE
	case ">=":
		op = lippy.CmpGE
	case "==":
		op = lippy.CmpEQ
	default:
		return lippy.Comparison{}, errAt(src, bin, "unsupported comparison operator %q", bin.Operator)
	}
	left, err := convert(src, bin.Left)
	if err != nil {
		return lippy.Comparison{}, err
	}
	right, err := convert(src, bin.Right)
	if err != nil {
		return lippy.Comparison{}, err
	}
	return lippy.Comparison{Op: op, Left: left, Right: right}, nil
}

// ParseClause parses a generator clause of the form "symbol in domain".
func ParseClause(src string) (lippy.Clause, error) {
	tree, err := parser.Parse(src)
	if err != nil {
		return lippy.Clause{}, &Error{Src: src, Detail: err.Error()}
	}
	cl, ok, err := asClause(src, tree.Node)
	if err != nil {
		return lippy.Clause{}, err
	}
	if !ok {
		return lippy.Clause{}, errAt(src, tree.Node, "expected a generator clause \"symbol in domain\"")
	}
	return cl, nil
}

// asClause recognizes "symbol in domain" nodes.
func asClause(src string, node ast.Node) (lippy.Clause, bool, error) {
	bin, ok := node.(*ast.BinaryNode)
	if !ok || bin.Operator != "in" {
		return lippy.Clause{}, false, nil
	}
	sym, ok := bin.Left.(*ast.IdentifierNode)
	if !ok {
		return lippy.Clause{}, false, errAt(src, bin.Left, "generator clause must bind a plain symbol, got %T", bin.Left)
	}
	domain, err := convert(src, bin.Right)
	if err != nil {
		return lippy.Clause{}, false, err
	}
	return lippy.Clause{Symbol: sym.Value, Domain: domain}, true, nil
}

func convert(src string, node ast.Node) (lippy.Expr, error) {
	switch n := node.(type) {
	case *ast.IntegerNode:
		return lippy.Int(n.Value), nil

	case *ast.FloatNode:
		return lippy.Number(n.Value), nil

	case *ast.StringNode:
		return lippy.Str(n.Value), nil

	case *ast.IdentifierNode:
		if n.Value == "_" {
			return lippy.Wild(), nil
		}
		return lippy.Symbol(n.Value), nil

	case *ast.UnaryNode:
		x, err := convert(src, n.Node)
		if err != nil {
			return nil, err
		}
		switch n.Operator {
		case "-":
			return lippy.Neg(x), nil
		case "+":
			return x, nil
		default:
			return nil, errAt(src, n, "unsupported unary operator %q", n.Operator)
		}

	case *ast.BinaryNode:
		switch n.Operator {
		case "+", "-", "*", "/":
			left, err := convert(src, n.Left)
			if err != nil {
				return nil, err
			}
			right, err := convert(src, n.Right)
			if err != nil {
				return nil, err
			}
			return &lippy.BinOp{Op: n.Operator, Left: left, Right: right}, nil
		case "..":
			lo, err := convert(src, n.Left)
			if err != nil {
				return nil, err
			}
			hi, err := convert(src, n.Right)
			if err != nil {
				return nil, err
			}
			return lippy.IntRange(lo, hi), nil
		case "in":
			return nil, errAt(src, n, "generator clause %q only allowed as a leading sum argument", "in")
		case "<=", ">=", "==":
			return nil, errAt(src, n, "comparison %q not allowed inside an expression", n.Operator)
		default:
			return nil, errAt(src, n, "unsupported operator %q", n.Operator)
		}

	case *ast.FunctionNode:
		if n.Name == "sum" {
			return convertSum(src, n)
		}
		args := make([]lippy.Expr, len(n.Arguments))
		for i, arg := range n.Arguments {
			converted, err := convert(src, arg)
			if err != nil {
				return nil, err
			}
			args[i] = converted
		}
		return lippy.Var(n.Name, args...), nil

	case *ast.PropertyNode:
		base, err := convert(src, n.Node)
		if err != nil {
			return nil, err
		}
		return lippy.Field(base, n.Property), nil

	case *ast.IndexNode:
		base, err := convert(src, n.Node)
		if err != nil {
			return nil, err
		}
		key, err := convert(src, n.Index)
		if err != nil {
			return nil, err
		}
		return lippy.Index(base, key), nil

	case *ast.ArrayNode:
		items := make([]interface{}, len(n.Nodes))
		for i, item := range n.Nodes {
			converted, err := convert(src, item)
			if err != nil {
				return nil, err
			}
			lit, ok := converted.(*lippy.Lit)
			if !ok {
				return nil, errAt(src, item, "list literals may only hold constants, got %s", converted)
			}
			items[i] = lit.Value
		}
		return lippy.Literal(items), nil

	default:
		return nil, errAt(src, node, "unsupported syntax %T", node)
	}
}

// convertSum turns sum(clause..., body) into a Sum node. Every argument but
// the last must be a generator clause; a bare sum(body) relies on wildcard
// inference instead.
func convertSum(src string, n *ast.FunctionNode) (lippy.Expr, error) {
	if len(n.Arguments) == 0 {
		return nil, errAt(src, n, "sum requires at least a body argument")
	}
	var clauses []lippy.Clause
	for _, arg := range n.Arguments[:len(n.Arguments)-1] {
		cl, ok, err := asClause(src, arg)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errAt(src, arg, "sum arguments before the body must be generator clauses")
		}
		clauses = append(clauses, cl)
	}
	body, err := convert(src, n.Arguments[len(n.Arguments)-1])
	if err != nil {
		return nil, err
	}
	return &lippy.Sum{Clauses: clauses, Body: body}, nil
}
