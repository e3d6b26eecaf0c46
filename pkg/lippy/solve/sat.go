package solve

import (
	"context"
	"math"
	"sort"

	"github.com/go-air/gini"
	"github.com/go-air/gini/inter"
	"github.com/go-air/gini/z"
	"go.uber.org/zap"

	"github.com/perdasilva/lippy/pkg/lippy"
)

// satWeightBudget caps the total weight a single row or the objective may
// carry. Weighted sums are encoded by literal multiplicity into a sorting
// network, so the encoding grows with the sum of absolute coefficients.
const satWeightBudget = 4096

// SATBackend solves all-binary problems with integral coefficients
// in-process, by encoding rows into a gini logic circuit: weighted linear
// sums become cardinality constraints over literal multisets, and the
// objective is tightened through a descending-bound improvement loop.
type SATBackend struct {
	logger *zap.Logger
}

// NewSATBackend returns the in-process backend.
func NewSATBackend(logger *zap.Logger) *SATBackend {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SATBackend{logger: logger}
}

func (b *SATBackend) Name() string { return "sat" }

// Available always succeeds: the backend has no external dependencies.
func (b *SATBackend) Available(_ context.Context) error { return nil }

// Eligible reports whether in fits the encoding: every variable binary,
// every coefficient and right-hand side integral, and every weighted sum
// within the encoding budget.
func (b *SATBackend) Eligible(in Input) bool {
	if !in.allBinary() || !in.integral() {
		return false
	}
	for _, con := range in.Constraints {
		if weightSum(con.Coefficients) > satWeightBudget {
			return false
		}
	}
	if in.Objective != nil && weightSum(in.Objective.Coefficients) > satWeightBudget {
		return false
	}
	return true
}

func weightSum(coefs map[string]float64) int {
	total := 0
	for _, c := range coefs {
		total += int(math.Abs(c))
	}
	return total
}

func (b *SATBackend) Solve(ctx context.Context, in Input) (*Solution, error) {
	ids := make([]string, len(in.Variables))
	for i, v := range in.Variables {
		ids[i] = v.ID
	}
	lm, err := newLitMapping(ids)
	if err != nil {
		return nil, err
	}
	for _, con := range in.Constraints {
		lm.AddConstraint(encodeRow(lm, con), con.Name)
	}
	if err := lm.Error(); err != nil {
		return nil, err
	}

	g := gini.New()
	lm.AddConstraints(g)
	lm.AssumeConstraints(g)
	if g.Solve() != 1 {
		return nil, &InfeasibleError{Constraints: lm.Conflicts(g)}
	}
	values := lm.Values(g)

	if in.Objective != nil && len(in.Objective.Coefficients) > 0 {
		values, err = b.minimize(ctx, g, lm, in, values)
		if err != nil {
			return nil, err
		}
	}

	sol := &Solution{Values: values, Backend: b.Name()}
	if in.Objective != nil {
		sol.Objective = in.Objective.Constant
		for id, c := range in.Objective.Coefficients {
			sol.Objective += c * values[id]
		}
	}
	return sol, nil
}

// minimize runs the objective-improvement loop: encode the direction-adjusted
// cost as a weighted literal multiset, then repeatedly demand a strictly
// better bound until the solver reports unsatisfiable.
func (b *SATBackend) minimize(ctx context.Context, g inter.S, lm *litMapping, in Input, values map[string]float64) (map[string]float64, error) {
	coefs := in.Objective.Coefficients
	sign := 1.0
	if in.Objective.Direction == lippy.Maximize {
		sign = -1
	}
	var ms []z.Lit
	for _, id := range sortedKeys(coefs) {
		w := int(sign * coefs[id])
		lit := lm.LitOf(id)
		if w < 0 {
			lit, w = lit.Not(), -w
		}
		for n := 0; n < w; n++ {
			ms = append(ms, lit)
		}
	}
	if len(ms) == 0 {
		return values, nil
	}

	cs := lm.CardinalityConstrainer(g, ms)
	best := countTrue(g, ms)
	for best > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		lm.AssumeConstraints(g)
		g.Assume(cs.Leq(best - 1))
		if g.Solve() != 1 {
			break
		}
		values = lm.Values(g)
		best = countTrue(g, ms)
		b.logger.Debug("objective bound improved",
			zap.String("problem", in.Name),
			zap.Int("weight", best),
		)
	}
	return values, nil
}

func countTrue(g inter.S, ms []z.Lit) int {
	n := 0
	for _, m := range ms {
		if g.Value(m) {
			n++
		}
	}
	return n
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// encodeRow encodes one linear row over binaries as a single activation
// literal. Negative coefficients flip the literal and shift the bound:
// c*x with c < 0 equals c + |c|*(1-x), so the row rewrites to a positive
// weighted sum against an adjusted right-hand side.
func encodeRow(lm *litMapping, con Constraint) z.Lit {
	c := lm.c
	k := int(con.RHS)
	var ms []z.Lit
	for _, id := range sortedKeys(con.Coefficients) {
		w := int(con.Coefficients[id])
		if w == 0 {
			continue
		}
		lit := lm.LitOf(id)
		if w < 0 {
			lit = lit.Not()
			k -= w
			w = -w
		}
		for n := 0; n < w; n++ {
			ms = append(ms, lit)
		}
	}
	total := len(ms)
	switch con.Op {
	case lippy.CmpLE:
		if k < 0 {
			return c.F
		}
		if k >= total {
			return c.T
		}
		return c.CardSort(ms).Leq(k)
	case lippy.CmpGE:
		if k <= 0 {
			return c.T
		}
		if k > total {
			return c.F
		}
		return c.CardSort(ms).Geq(k)
	case lippy.CmpEQ:
		if k < 0 || k > total {
			return c.F
		}
		if total == 0 {
			return c.T
		}
		cs := c.CardSort(ms)
		return c.And(cs.Leq(k), cs.Geq(k))
	default:
		return z.LitNull
	}
}
