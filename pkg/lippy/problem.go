package lippy

import (
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"
)

// Direction is the optimization sense of an objective.
type Direction string

const (
	Minimize Direction = "minimize"
	Maximize Direction = "maximize"
)

// ParseDirection validates a direction string.
func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case Minimize:
		return Minimize, nil
	case Maximize:
		return Maximize, nil
	default:
		return "", newError(ErrInvalidDirection, s, "invalid objective direction %q", s)
	}
}

// Constraint is one compiled constraint row: a variable-only polynomial
// related to a numeric right-hand side.
type Constraint struct {
	Name string
	Poly *Polynomial
	Op   CmpOp
	RHS  float64
}

func (c Constraint) String() string {
	return fmt.Sprintf("%s: %s %s %v", c.Name, c.Poly, c.Op, c.RHS)
}

// Objective pairs a compiled polynomial with its direction.
type Objective struct {
	Poly      *Polynomial
	Direction Direction
}

// Problem is the model under construction: a variable registry, an ordered
// constraint list and at most one objective, built up by sequential
// declarations. Declarations are atomic: a failing declaration leaves the
// problem exactly as it found it.
//
// A Problem is owned by one declaration sequence; it is not safe for
// concurrent mutation.
type Problem struct {
	name        string
	description string
	direction   Direction

	params   *Params
	registry *Registry
	compiler *Compiler
	logger   *zap.Logger

	constraints []Constraint
	objective   *Objective
	autoName    int
}

// Option configures a Problem at creation time.
type Option func(*Problem)

// WithDescription sets the problem description.
func WithDescription(desc string) Option {
	return func(p *Problem) { p.description = desc }
}

// WithParams supplies the model parameters visible to every declaration.
func WithParams(params *Params) Option {
	return func(p *Problem) { p.params = params }
}

// WithDirection sets the default objective direction, used when SetObjective
// is called with an empty one.
func WithDirection(dir Direction) Option {
	return func(p *Problem) { p.direction = dir }
}

// WithLogger attaches a logger. Declarations log at Debug; the default
// logger is a nop.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Problem) { p.logger = logger }
}

// New creates an empty problem.
func New(name string, opts ...Option) *Problem {
	p := &Problem{
		name:      name,
		direction: Minimize,
		params:    NewParams(),
		registry:  NewRegistry(),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.compiler = NewCompiler(p.registry)
	return p
}

// Name returns the problem name.
func (p *Problem) Name() string { return p.name }

// Description returns the problem description.
func (p *Problem) Description() string { return p.description }

// Params returns the model parameters.
func (p *Problem) Params() *Params { return p.params }

// Registry returns the variable registry.
func (p *Problem) Registry() *Registry { return p.registry }

// Compiler returns the expression compiler bound to this problem's registry.
func (p *Problem) Compiler() *Compiler { return p.compiler }

// Constraints returns the compiled constraints in declaration order.
func (p *Problem) Constraints() []Constraint {
	out := make([]Constraint, len(p.constraints))
	copy(out, p.constraints)
	return out
}

// Objective returns the current objective, if one has been declared.
func (p *Problem) Objective() (Objective, bool) {
	if p.objective == nil {
		return Objective{}, false
	}
	return *p.objective, true
}

// env returns a fresh root environment for one declaration.
func (p *Problem) env() *Environment {
	return NewEnvironment(p.params)
}

// VariableDecl declares one variable family. Clauses drive index expansion,
// one index position per clause; a declaration without clauses is a scalar.
// Lower and Upper are constant expressions (they may reference parameters);
// a nil bound means unbounded. Binary families must leave both bounds nil.
type VariableDecl struct {
	Name        string
	Clauses     []Clause
	Type        VarType
	Lower       Expr
	Upper       Expr
	Description string
}

// AddVariables declares a family and instantiates it over the cartesian
// product of its clauses. The enumerated domain of every clause is recorded
// against its index position for later wildcard inference.
func (p *Problem) AddVariables(decl VariableDecl) error {
	ctx := &declContext{decl: fmt.Sprintf("variables %q", decl.Name)}
	env := p.env()

	if decl.Type == Binary && (decl.Lower != nil || decl.Upper != nil) {
		return p.compiler.failf(env, ctx, ErrInvalidBounds, decl.Name,
			"binary family %q must not declare bounds", decl.Name)
	}
	lower, err := p.evalBound(decl.Lower, math.Inf(-1), env, ctx)
	if err != nil {
		return err
	}
	upper, err := p.evalBound(decl.Upper, math.Inf(1), env, ctx)
	if err != nil {
		return err
	}

	mark := p.registry.mark()
	fam, err := p.registry.Declare(Family{
		Name:        decl.Name,
		Type:        decl.Type,
		Lower:       lower,
		Upper:       upper,
		Description: decl.Description,
	}, len(decl.Clauses))
	if err != nil {
		return p.compiler.wrap(err, env, ctx)
	}

	// Track the concrete values each position takes during expansion so the
	// declaration's domain signature can be recorded afterwards.
	positionValues := make([][]interface{}, len(decl.Clauses))
	positionSeen := make([]map[string]struct{}, len(decl.Clauses))
	for i := range positionSeen {
		positionSeen[i] = map[string]struct{}{}
	}

	count := 0
	err = p.compiler.expand(decl.Clauses, env, ctx, func(benv *Environment) error {
		tuple := make([]interface{}, len(decl.Clauses))
		for i, cl := range decl.Clauses {
			v, _ := benv.Lookup(cl.Symbol)
			tuple[i] = v
		}
		if _, err := p.registry.Instantiate(decl.Name, tuple); err != nil {
			return p.compiler.wrap(err, benv, ctx)
		}
		for i, v := range tuple {
			rendered, err := renderIndexValue(v)
			if err != nil {
				continue
			}
			if _, ok := positionSeen[i][rendered]; !ok {
				positionSeen[i][rendered] = struct{}{}
				positionValues[i] = append(positionValues[i], v)
			}
		}
		count++
		return nil
	})
	if err != nil {
		p.registry.rollback(mark)
		return err
	}
	for i, values := range positionValues {
		p.registry.recordDeclaredDomain(decl.Name, i, values)
	}

	p.logger.Debug("variable family declared",
		zap.String("problem", p.name),
		zap.String("family", decl.Name),
		zap.Stringer("type", fam.Type),
		zap.Int("arity", fam.Arity()),
		zap.Int("instances", count),
	)
	return nil
}

func (p *Problem) evalBound(e Expr, dflt float64, env *Environment, ctx *declContext) (float64, error) {
	if e == nil {
		return dflt, nil
	}
	v, err := p.compiler.evalScalar(e, env, ctx)
	if err != nil {
		return 0, err
	}
	f, ok := toFloat64(v)
	if !ok {
		return 0, p.compiler.failf(env, ctx, ErrInvalidBounds, e.String(),
			"bound %s must be numeric, got %v", e, v)
	}
	return f, nil
}

// ConstraintDecl declares a family of constraints: the body comparison is
// compiled once per point of the clauses' cartesian product. Description,
// when given, names each constraint; {symbol} placeholders interpolate the
// point's bindings. Without a description constraints are auto-named in
// declaration order.
type ConstraintDecl struct {
	Clauses     []Clause
	Body        Comparison
	Description string
}

// AddConstraints expands and compiles a constraint declaration. Either every
// expanded point compiles and all resulting constraints are appended, or the
// problem is left untouched.
func (p *Problem) AddConstraints(decl ConstraintDecl) error {
	ctx := &declContext{decl: fmt.Sprintf("constraints %s", decl.Body)}
	env := p.env()

	mark := p.registry.mark()
	nextAuto := p.autoName
	var pending []Constraint
	err := p.compiler.expand(decl.Clauses, env, ctx, func(benv *Environment) error {
		poly, op, rhs, err := p.compiler.compileComparison(decl.Body, benv, ctx)
		if err != nil {
			return err
		}
		var name string
		if decl.Description != "" {
			name, err = p.interpolate(decl.Description, benv, ctx)
			if err != nil {
				return err
			}
		} else {
			name = fmt.Sprintf("c%d", nextAuto)
			nextAuto++
		}
		pending = append(pending, Constraint{Name: name, Poly: poly, Op: op, RHS: rhs})
		return nil
	})
	if err != nil {
		p.registry.rollback(mark)
		return err
	}

	p.constraints = append(p.constraints, pending...)
	p.autoName = nextAuto
	p.logger.Debug("constraints added",
		zap.String("problem", p.name),
		zap.String("declaration", decl.Body.String()),
		zap.Int("count", len(pending)),
	)
	return nil
}

// interpolate resolves {symbol} placeholders in a constraint description
// against the active bindings and parameters.
func (p *Problem) interpolate(desc string, env *Environment, ctx *declContext) (string, error) {
	var b strings.Builder
	rest := desc
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			b.WriteString(rest)
			return b.String(), nil
		}
		end := strings.IndexByte(rest[open:], '}')
		if end < 0 {
			b.WriteString(rest)
			return b.String(), nil
		}
		name := rest[open+1 : open+end]
		b.WriteString(rest[:open])
		v, ok := env.Lookup(name)
		if !ok {
			v, ok = env.Params().Lookup(name)
		}
		if !ok {
			return "", p.compiler.failf(env, ctx, ErrUndefinedSymbol, name,
				"undefined symbol %q in description %q", name, desc)
		}
		fmt.Fprintf(&b, "%v", v)
		rest = rest[open+end+1:]
	}
}

// SetObjective compiles e and installs it as the problem objective,
// replacing any previous one. An empty direction uses the problem default.
func (p *Problem) SetObjective(e Expr, dir Direction) error {
	ctx := &declContext{decl: "objective"}
	env := p.env()

	if dir == "" {
		dir = p.direction
	}
	dir, err := ParseDirection(string(dir))
	if err != nil {
		return p.compiler.wrap(err, env, ctx)
	}

	mark := p.registry.mark()
	poly, err := p.compiler.compile(e, env, ctx)
	if err != nil {
		p.registry.rollback(mark)
		return err
	}

	if p.objective != nil {
		p.logger.Debug("objective replaced",
			zap.String("problem", p.name),
			zap.String("previous", string(p.objective.Direction)),
			zap.String("direction", string(dir)),
		)
	}
	p.objective = &Objective{Poly: poly, Direction: dir}
	return nil
}
