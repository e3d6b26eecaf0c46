package lippy

import (
	"fmt"
	"strings"
)

// Expr is an expression tree handed to the Compiler. Trees are built either
// programmatically through the helpers below or by parsing text with the
// textexpr package. Expressions are immutable once constructed.
type Expr interface {
	String() string
	exprNode()
}

// Lit is a literal constant: a number, a string, a list or a string-keyed map.
type Lit struct {
	Value interface{}
}

// Sym is a bare name resolved against generator bindings, parameters and
// variable families, in that order.
type Sym struct {
	Name string
}

// Wildcard is the `_` index marker. It is only meaningful as a direct index
// of a variable access inside a sum.
type Wildcard struct{}

// Call is an indexed variable access, family(idx0, idx1, ...).
type Call struct {
	Name string
	Args []Expr
}

// Access is container indexing: base[key] for lists and maps, base.field
// for map fields.
type Access struct {
	Base Expr
	Key  Expr
}

// Unary is a prefix operator application. Only "-" is supported.
type Unary struct {
	Op string
	X  Expr
}

// BinOp is an infix operator application over "+", "-", "*" and "/".
type BinOp struct {
	Op    string
	Left  Expr
	Right Expr
}

// Range is an inclusive integer interval lo..hi, usable as a generator
// domain.
type Range struct {
	Lo Expr
	Hi Expr
}

// Clause binds a symbol to every element of a domain in turn. Domains may
// reference symbols bound by earlier clauses of the same generator.
type Clause struct {
	Symbol string
	Domain Expr
}

// Sum is an aggregation of its body over the cartesian product of its
// clauses. A Sum with no clauses aggregates over the hidden clauses its
// wildcards induce.
type Sum struct {
	Clauses []Clause
	Body    Expr
}

func (*Lit) exprNode()      {}
func (*Sym) exprNode()      {}
func (*Wildcard) exprNode() {}
func (*Call) exprNode()     {}
func (*Access) exprNode()   {}
func (*Unary) exprNode()    {}
func (*BinOp) exprNode()   {}
func (*Range) exprNode()    {}
func (*Sum) exprNode()      {}

func (e *Lit) String() string {
	if s, ok := e.Value.(string); ok {
		return fmt.Sprintf("%q", s)
	}
	return fmt.Sprintf("%v", e.Value)
}

func (e *Sym) String() string { return e.Name }

func (e *Wildcard) String() string { return "_" }

func (e *Call) String() string {
	args := make([]string, len(e.Args))
	for i, a := range e.Args {
		args[i] = a.String()
	}
	return fmt.Sprintf("%s(%s)", e.Name, strings.Join(args, ", "))
}

func (e *Access) String() string {
	if k, ok := e.Key.(*Lit); ok {
		if s, ok := k.Value.(string); ok {
			return fmt.Sprintf("%s.%s", e.Base, s)
		}
	}
	return fmt.Sprintf("%s[%s]", e.Base, e.Key)
}

func (e *Unary) String() string { return fmt.Sprintf("%s(%s)", e.Op, e.X) }

func (e *BinOp) String() string {
	return fmt.Sprintf("%s %s %s", e.Left, e.Op, e.Right)
}

func (e *Range) String() string { return fmt.Sprintf("%s..%s", e.Lo, e.Hi) }

func (e *Sum) String() string {
	var b strings.Builder
	b.WriteString("sum(")
	for _, cl := range e.Clauses {
		fmt.Fprintf(&b, "for %s <- %s: ", cl.Symbol, cl.Domain)
	}
	b.WriteString(e.Body.String())
	b.WriteString(")")
	return b.String()
}

// CmpOp is a comparison operator of a constraint body.
type CmpOp string

const (
	CmpLE CmpOp = "<="
	CmpGE CmpOp = ">="
	CmpEQ CmpOp = "=="
)

// Comparison relates two expressions. It is the body of a constraint
// declaration and is not itself an Expr.
type Comparison struct {
	Op    CmpOp
	Left  Expr
	Right Expr
}

func (c Comparison) String() string {
	return fmt.Sprintf("%s %s %s", c.Left, c.Op, c.Right)
}

// Builder helpers. These keep programmatic model construction terse; the
// textexpr package produces the same nodes from source text.

func Literal(v interface{}) *Lit { return &Lit{Value: v} }

func Number(v float64) *Lit { return &Lit{Value: v} }

func Int(v int) *Lit { return &Lit{Value: v} }

func Str(s string) *Lit { return &Lit{Value: s} }

func Symbol(name string) *Sym { return &Sym{Name: name} }

func Wild() *Wildcard { return &Wildcard{} }

func Var(name string, indices ...Expr) *Call { return &Call{Name: name, Args: indices} }

func Index(base Expr, key Expr) *Access { return &Access{Base: base, Key: key} }

func Field(base Expr, name string) *Access { return &Access{Base: base, Key: Str(name)} }

func Neg(x Expr) *Unary { return &Unary{Op: "-", X: x} }

func Add(l, r Expr) *BinOp { return &BinOp{Op: "+", Left: l, Right: r} }

func Sub(l, r Expr) *BinOp { return &BinOp{Op: "-", Left: l, Right: r} }

func Mul(l, r Expr) *BinOp { return &BinOp{Op: "*", Left: l, Right: r} }

func Div(l, r Expr) *BinOp { return &BinOp{Op: "/", Left: l, Right: r} }

func IntRange(lo, hi Expr) *Range { return &Range{Lo: lo, Hi: hi} }

func Over(symbol string, domain Expr) Clause { return Clause{Symbol: symbol, Domain: domain} }

func SumOf(body Expr, clauses ...Clause) *Sum { return &Sum{Clauses: clauses, Body: body} }

func LE(l, r Expr) Comparison { return Comparison{Op: CmpLE, Left: l, Right: r} }

func GE(l, r Expr) Comparison { return Comparison{Op: CmpGE, Left: l, Right: r} }

func EQ(l, r Expr) Comparison { return Comparison{Op: CmpEQ, Left: l, Right: r} }
