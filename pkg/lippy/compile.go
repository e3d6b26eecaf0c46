package lippy

import (
	"fmt"
	"math"
)

// Compiler turns expression trees into canonical polynomials over the
// variables of a Registry. A Compiler holds no per-expression state; the
// same instance serves every declaration of a problem.
type Compiler struct {
	registry *Registry
}

// NewCompiler returns a compiler over reg.
func NewCompiler(reg *Registry) *Compiler {
	return &Compiler{registry: reg}
}

// Registry returns the registry the compiler resolves variables against.
func (c *Compiler) Registry() *Registry {
	return c.registry
}

// declContext names the declaration being compiled, for error reports.
type declContext struct {
	decl string
}

func (c *Compiler) failf(env *Environment, ctx *declContext, kind ErrorKind, symbol, format string, args ...interface{}) error {
	e := newError(kind, symbol, format, args...)
	e.Decl = ctx.decl
	e.Bindings = env.Bindings()
	return e
}

// wrap attaches declaration context to a registry error.
func (c *Compiler) wrap(err error, env *Environment, ctx *declContext) error {
	if err == nil {
		return nil
	}
	if me, ok := AsError(err); ok {
		if me.Decl == "" {
			me.Decl = ctx.decl
		}
		if me.Bindings == "" {
			me.Bindings = env.Bindings()
		}
	}
	return err
}

// CompilePolynomial compiles e into a canonical polynomial under env.
// Variable accesses instantiate registry variables on first use.
func (c *Compiler) CompilePolynomial(e Expr, env *Environment) (*Polynomial, error) {
	return c.compile(e, env, &declContext{})
}

// EvalScalar evaluates a constant-only expression under env: index
// arithmetic, parameter lookups, domains. Variable references are an error
// here.
func (c *Compiler) EvalScalar(e Expr, env *Environment) (interface{}, error) {
	return c.evalScalar(e, env, &declContext{})
}

// CompileComparison compiles both sides of cmp and normalizes the result:
// every variable-bearing monomial moves to the left-hand polynomial and all
// constant contributions fold into a single numeric right-hand side.
func (c *Compiler) CompileComparison(cmp Comparison, env *Environment) (*Polynomial, CmpOp, float64, error) {
	return c.compileComparison(cmp, env, &declContext{})
}

func (c *Compiler) compileComparison(cmp Comparison, env *Environment, ctx *declContext) (*Polynomial, CmpOp, float64, error) {
	switch cmp.Op {
	case CmpLE, CmpGE, CmpEQ:
	default:
		return nil, cmp.Op, 0, c.failf(env, ctx, ErrUnsupportedOperation, string(cmp.Op),
			"unsupported comparison operator %q", cmp.Op)
	}
	left, err := c.compile(cmp.Left, env, ctx)
	if err != nil {
		return nil, cmp.Op, 0, err
	}
	right, err := c.compile(cmp.Right, env, ctx)
	if err != nil {
		return nil, cmp.Op, 0, err
	}
	diff := left.Minus(right)
	rhs := -diff.ConstantTerm()
	return diff.WithoutConstant(), cmp.Op, rhs, nil
}

type symbolKind int

const (
	symBinding symbolKind = iota
	symParameter
	symFamily
)

// resolveSymbol implements the lookup order for bare names: generator
// bindings, then parameters, then variable families. A name that is both a
// binding and a family is only unambiguous when the binding belongs to the
// running compilation pass.
func (c *Compiler) resolveSymbol(name string, env *Environment, ctx *declContext) (symbolKind, interface{}, error) {
	if v, ok, local := env.lookup(name); ok {
		if !local && c.registry.HasFamily(name) {
			return 0, nil, c.failf(env, ctx, ErrAmbiguousSymbol, name,
				"symbol %q names both a binding and a variable family", name)
		}
		return symBinding, v, nil
	}
	if v, ok := env.Params().Lookup(name); ok {
		return symParameter, v, nil
	}
	if c.registry.HasFamily(name) {
		return symFamily, nil, nil
	}
	return 0, nil, c.failf(env, ctx, ErrUndefinedSymbol, name, "undefined symbol %q", name)
}

func (c *Compiler) compile(e Expr, env *Environment, ctx *declContext) (*Polynomial, error) {
	switch t := e.(type) {
	case *Lit:
		v := normalizeValue(t.Value)
		if f, ok := toFloat64(v); ok {
			return Constant(f), nil
		}
		return nil, c.failf(env, ctx, ErrUnsupportedOperation, t.String(),
			"literal %s is not numeric", t)

	case *Sym:
		kind, v, err := c.resolveSymbol(t.Name, env, ctx)
		if err != nil {
			return nil, err
		}
		switch kind {
		case symBinding, symParameter:
			if f, ok := toFloat64(v); ok {
				return Constant(f), nil
			}
			return nil, c.failf(env, ctx, ErrUnsupportedOperation, t.Name,
				"symbol %q is bound to non-numeric value %v", t.Name, v)
		default:
			inst, err := c.registry.Instantiate(t.Name, nil)
			if err != nil {
				return nil, c.wrap(err, env, ctx)
			}
			return FromVariable(inst.ID), nil
		}

	case *Wildcard:
		return nil, c.failf(env, ctx, ErrWildcardOutsideAggregation, "_",
			"wildcard outside an aggregation context")

	case *Call:
		return c.compileCall(t, env, ctx)

	case *Access:
		v, err := c.evalScalar(t, env, ctx)
		if err != nil {
			return nil, err
		}
		if f, ok := toFloat64(v); ok {
			return Constant(f), nil
		}
		return nil, c.failf(env, ctx, ErrUnsupportedOperation, t.String(),
			"%s is not numeric in arithmetic context: %v", t, v)

	case *Unary:
		if t.Op != "-" {
			return nil, c.failf(env, ctx, ErrUnsupportedOperation, t.Op,
				"unsupported unary operator %q", t.Op)
		}
		p, err := c.compile(t.X, env, ctx)
		if err != nil {
			return nil, err
		}
		return p.Negate(), nil

	case *BinOp:
		return c.compileBinary(t, env, ctx)

	case *Range:
		return nil, c.failf(env, ctx, ErrUnsupportedOperation, t.String(),
			"range %s in arithmetic context", t)

	case *Sum:
		return c.compileSum(t, env, ctx)

	default:
		return nil, c.failf(env, ctx, ErrUnsupportedOperation, "",
			"unsupported expression node %T", e)
	}
}

func (c *Compiler) compileCall(call *Call, env *Environment, ctx *declContext) (*Polynomial, error) {
	if !c.registry.HasFamily(call.Name) {
		return nil, c.failf(env, ctx, ErrUndefinedVariable, call.Name,
			"undefined variable family %q", call.Name)
	}
	tuple := make([]interface{}, len(call.Args))
	for i, arg := range call.Args {
		if _, ok := arg.(*Wildcard); ok {
			return nil, c.failf(env, ctx, ErrWildcardOutsideAggregation, call.Name,
				"wildcard index of %q outside an aggregation context", call.Name)
		}
		v, err := c.evalScalar(arg, env, ctx)
		if err != nil {
			return nil, err
		}
		tuple[i] = v
	}
	inst, err := c.registry.Instantiate(call.Name, tuple)
	if err != nil {
		return nil, c.wrap(err, env, ctx)
	}
	return FromVariable(inst.ID), nil
}

func (c *Compiler) compileBinary(bin *BinOp, env *Environment, ctx *declContext) (*Polynomial, error) {
	left, err := c.compile(bin.Left, env, ctx)
	if err != nil {
		return nil, err
	}
	right, err := c.compile(bin.Right, env, ctx)
	if err != nil {
		return nil, err
	}
	switch bin.Op {
	case "+":
		return left.Plus(right), nil
	case "-":
		return left.Minus(right), nil
	case "*":
		if left.HasVariables() && right.HasVariables() {
			return nil, c.failf(env, ctx, ErrNonlinearExpression, bin.String(),
				"product of two variable expressions: %s", bin)
		}
		if right.HasVariables() {
			return right.Scale(left.ConstantTerm()), nil
		}
		return left.Scale(right.ConstantTerm()), nil
	case "/":
		if right.HasVariables() {
			return nil, c.failf(env, ctx, ErrUnsupportedOperation, bin.String(),
				"division by a variable expression: %s", bin)
		}
		d := right.ConstantTerm()
		if d == 0 {
			return nil, c.failf(env, ctx, ErrUnsupportedOperation, bin.String(),
				"division by zero: %s", bin)
		}
		return left.Scale(1 / d), nil
	default:
		return nil, c.failf(env, ctx, ErrUnsupportedOperation, bin.Op,
			"unsupported binary operator %q", bin.Op)
	}
}

// compileSum aggregates the body over the explicit clauses plus one hidden
// clause per wildcard index occurrence in the body. Hidden clauses come
// after the explicit ones, in depth-first body order, each over the domain
// the registry has recorded for that family position.
func (c *Compiler) compileSum(s *Sum, env *Environment, ctx *declContext) (*Polynomial, error) {
	clauses := make([]Clause, 0, len(s.Clauses)+1)
	clauses = append(clauses, s.Clauses...)
	body, err := c.rewriteWildcards(s.Body, env, ctx, &clauses)
	if err != nil {
		return nil, err
	}
	total := NewPolynomial()
	err = c.expand(clauses, env, ctx, func(benv *Environment) error {
		p, err := c.compile(body, benv, ctx)
		if err != nil {
			return err
		}
		total = total.Plus(p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return total, nil
}

// rewriteWildcards returns e with every wildcard that sits directly in a
// variable-access index position replaced by a fresh hidden symbol, and
// appends one generator clause per replacement. Nested sums keep their own
// wildcards. The input tree is never mutated.
func (c *Compiler) rewriteWildcards(e Expr, env *Environment, ctx *declContext, clauses *[]Clause) (Expr, error) {
	switch t := e.(type) {
	case *Lit, *Sym, *Wildcard, *Sum:
		return e, nil

	case *Call:
		if !c.registry.HasFamily(t.Name) {
			// Leave resolution errors to the compile pass.
			return e, nil
		}
		changed := false
		args := make([]Expr, len(t.Args))
		for i, arg := range t.Args {
			if _, ok := arg.(*Wildcard); ok {
				domain, err := c.registry.wildcardDomain(t.Name, i)
				if err != nil {
					return nil, c.wrap(err, env, ctx)
				}
				name := c.hiddenSymbol(env, len(*clauses))
				*clauses = append(*clauses, Clause{Symbol: name, Domain: &Lit{Value: domain}})
				args[i] = &Sym{Name: name}
				changed = true
				continue
			}
			rewritten, err := c.rewriteWildcards(arg, env, ctx, clauses)
			if err != nil {
				return nil, err
			}
			if rewritten != arg {
				changed = true
			}
			args[i] = rewritten
		}
		if !changed {
			return e, nil
		}
		return &Call{Name: t.Name, Args: args}, nil

	case *Access:
		base, err := c.rewriteWildcards(t.Base, env, ctx, clauses)
		if err != nil {
			return nil, err
		}
		key, err := c.rewriteWildcards(t.Key, env, ctx, clauses)
		if err != nil {
			return nil, err
		}
		if base == t.Base && key == t.Key {
			return e, nil
		}
		return &Access{Base: base, Key: key}, nil

	case *Unary:
		x, err := c.rewriteWildcards(t.X, env, ctx, clauses)
		if err != nil {
			return nil, err
		}
		if x == t.X {
			return e, nil
		}
		return &Unary{Op: t.Op, X: x}, nil

	case *BinOp:
		left, err := c.rewriteWildcards(t.Left, env, ctx, clauses)
		if err != nil {
			return nil, err
		}
		right, err := c.rewriteWildcards(t.Right, env, ctx, clauses)
		if err != nil {
			return nil, err
		}
		if left == t.Left && right == t.Right {
			return e, nil
		}
		return &BinOp{Op: t.Op, Left: left, Right: right}, nil

	case *Range:
		lo, err := c.rewriteWildcards(t.Lo, env, ctx, clauses)
		if err != nil {
			return nil, err
		}
		hi, err := c.rewriteWildcards(t.Hi, env, ctx, clauses)
		if err != nil {
			return nil, err
		}
		if lo == t.Lo && hi == t.Hi {
			return e, nil
		}
		return &Range{Lo: lo, Hi: hi}, nil

	default:
		return e, nil
	}
}

// hiddenSymbol picks a binding name that cannot collide with user symbols,
// parameters or family names.
func (c *Compiler) hiddenSymbol(env *Environment, n int) string {
	name := fmt.Sprintf("_w%d", n)
	for {
		_, bound := env.Lookup(name)
		_, param := env.Params().Lookup(name)
		if !bound && !param && !c.registry.HasFamily(name) {
			return name
		}
		name = "_" + name
	}
}

func (c *Compiler) evalScalar(e Expr, env *Environment, ctx *declContext) (interface{}, error) {
	switch t := e.(type) {
	case *Lit:
		return normalizeValue(t.Value), nil

	case *Sym:
		kind, v, err := c.resolveSymbol(t.Name, env, ctx)
		if err != nil {
			return nil, err
		}
		if kind == symFamily {
			return nil, c.failf(env, ctx, ErrUnsupportedOperation, t.Name,
				"variable family %q in constant context", t.Name)
		}
		return v, nil

	case *Wildcard:
		return nil, c.failf(env, ctx, ErrWildcardOutsideAggregation, "_",
			"wildcard outside an aggregation context")

	case *Call:
		if c.registry.HasFamily(t.Name) {
			return nil, c.failf(env, ctx, ErrUnsupportedOperation, t.Name,
				"variable access %s in constant context", t)
		}
		return nil, c.failf(env, ctx, ErrUndefinedVariable, t.Name,
			"undefined variable family %q", t.Name)

	case *Access:
		return c.evalAccess(t, env, ctx)

	case *Unary:
		if t.Op != "-" {
			return nil, c.failf(env, ctx, ErrUnsupportedOperation, t.Op,
				"unsupported unary operator %q", t.Op)
		}
		v, err := c.evalScalar(t.X, env, ctx)
		if err != nil {
			return nil, err
		}
		switch n := v.(type) {
		case int:
			return -n, nil
		case float64:
			return -n, nil
		}
		return nil, c.failf(env, ctx, ErrUnsupportedOperation, t.String(),
			"cannot negate non-numeric value %v", v)

	case *BinOp:
		return c.evalBinary(t, env, ctx)

	case *Range:
		lo, err := c.evalRangeEndpoint(t.Lo, env, ctx)
		if err != nil {
			return nil, err
		}
		hi, err := c.evalRangeEndpoint(t.Hi, env, ctx)
		if err != nil {
			return nil, err
		}
		return rangeValue{lo: lo, hi: hi}, nil

	case *Sum:
		p, err := c.compileSum(t, env, ctx)
		if err != nil {
			return nil, err
		}
		if p.HasVariables() {
			return nil, c.failf(env, ctx, ErrUnsupportedOperation, t.String(),
				"variable expression %s in constant context", t)
		}
		return p.ConstantTerm(), nil

	default:
		return nil, c.failf(env, ctx, ErrUnsupportedOperation, "",
			"unsupported expression node %T", e)
	}
}

func (c *Compiler) evalRangeEndpoint(e Expr, env *Environment, ctx *declContext) (int, error) {
	v, err := c.evalScalar(e, env, ctx)
	if err != nil {
		return 0, err
	}
	if n, ok := toInt(v); ok {
		return n, nil
	}
	return 0, c.failf(env, ctx, ErrInvalidDomain, e.String(),
		"range endpoint %s must be an integer, got %v", e, v)
}

// evalAccess resolves base[key] lookups over lists and maps, at any nesting
// depth. The base of an access chain must resolve to a parameter or a
// generator-bound container; an unknown base name is UndefinedConstant.
func (c *Compiler) evalAccess(acc *Access, env *Environment, ctx *declContext) (interface{}, error) {
	var base interface{}
	if sym, ok := acc.Base.(*Sym); ok {
		if v, found, _ := env.lookup(sym.Name); found {
			base = v
		} else if v, found := env.Params().Lookup(sym.Name); found {
			base = v
		} else {
			return nil, c.failf(env, ctx, ErrUndefinedConstant, sym.Name,
				"undefined constant %q", sym.Name)
		}
	} else {
		v, err := c.evalScalar(acc.Base, env, ctx)
		if err != nil {
			return nil, err
		}
		base = v
	}
	key, err := c.evalScalar(acc.Key, env, ctx)
	if err != nil {
		return nil, err
	}
	switch container := base.(type) {
	case []interface{}:
		idx, ok := toInt(key)
		if !ok {
			return nil, c.failf(env, ctx, ErrInvalidIndex, acc.String(),
				"list index must be an integer, got %v", key)
		}
		if idx < 0 || idx >= len(container) {
			return nil, c.failf(env, ctx, ErrIndexOutOfBounds, acc.String(),
				"index %d out of bounds for list of length %d", idx, len(container))
		}
		return container[idx], nil
	case map[string]interface{}:
		rendered, rerr := renderIndexValue(key)
		if rerr != nil {
			return nil, c.failf(env, ctx, ErrInvalidIndex, acc.String(),
				"map key must be a scalar, got %v (%T)", key, key)
		}
		v, ok := container[rendered]
		if !ok {
			return nil, c.failf(env, ctx, ErrMissingKey, acc.String(),
				"key %q missing in %s", rendered, acc.Base)
		}
		return v, nil
	default:
		return nil, c.failf(env, ctx, ErrUnsupportedOperation, acc.String(),
			"cannot index into %T value in %s", base, acc)
	}
}

func (c *Compiler) evalBinary(bin *BinOp, env *Environment, ctx *declContext) (interface{}, error) {
	lv, err := c.evalScalar(bin.Left, env, ctx)
	if err != nil {
		return nil, err
	}
	rv, err := c.evalScalar(bin.Right, env, ctx)
	if err != nil {
		return nil, err
	}
	li, lIsInt := toInt(lv)
	ri, rIsInt := toInt(rv)
	if lIsInt && rIsInt && bin.Op != "/" {
		switch bin.Op {
		case "+":
			return li + ri, nil
		case "-":
			return li - ri, nil
		case "*":
			return li * ri, nil
		}
	}
	lf, lok := toFloat64(lv)
	rf, rok := toFloat64(rv)
	if !lok || !rok {
		return nil, c.failf(env, ctx, ErrUnsupportedOperation, bin.String(),
			"non-numeric operand in %s", bin)
	}
	switch bin.Op {
	case "+":
		return lf + rf, nil
	case "-":
		return lf - rf, nil
	case "*":
		return lf * rf, nil
	case "/":
		if rf == 0 {
			return nil, c.failf(env, ctx, ErrUnsupportedOperation, bin.String(),
				"division by zero: %s", bin)
		}
		return lf / rf, nil
	default:
		return nil, c.failf(env, ctx, ErrUnsupportedOperation, bin.Op,
			"unsupported binary operator %q", bin.Op)
	}
}

func toFloat64(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case float64:
		return t, true
	default:
		return 0, false
	}
}

func toInt(v interface{}) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case int64:
		return int(t), true
	case float64:
		if t == math.Trunc(t) && !math.IsInf(t, 0) {
			return int(t), true
		}
	}
	return 0, false
}
