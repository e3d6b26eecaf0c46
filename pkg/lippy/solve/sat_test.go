package solve

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perdasilva/lippy/pkg/lippy"
)

func binaryInput(constraints []Constraint, obj *Objective, ids ...string) Input {
	in := Input{Name: "test", Constraints: constraints, Objective: obj}
	for _, id := range ids {
		in.Variables = append(in.Variables, Variable{ID: id, Type: lippy.Binary, Lower: 0, Upper: 1})
	}
	return in
}

func TestSATSolve(t *testing.T) {
	type tc struct {
		Name        string
		Input       Input
		Want        map[string]float64
		Objective   float64
		Infeasible  []string
		AnyFeasible bool
	}

	for _, tt := range []tc{
		{
			Name:  "no variables",
			Input: binaryInput(nil, nil),
			Want:  map[string]float64{},
		},
		{
			Name: "forced assignment",
			Input: binaryInput([]Constraint{
				{Name: "pick a", Coefficients: map[string]float64{"a": 1}, Op: lippy.CmpGE, RHS: 1},
				{Name: "drop b", Coefficients: map[string]float64{"b": 1}, Op: lippy.CmpLE, RHS: 0},
			}, nil, "a", "b"),
			Want: map[string]float64{"a": 1, "b": 0},
		},
		{
			Name: "at most one of three",
			Input: binaryInput([]Constraint{
				{Name: "cap", Coefficients: map[string]float64{"a": 1, "b": 1, "c": 1}, Op: lippy.CmpLE, RHS: 1},
			}, nil, "a", "b", "c"),
			AnyFeasible: true,
		},
		{
			Name: "equality pins the count",
			Input: binaryInput([]Constraint{
				{Name: "exactly two", Coefficients: map[string]float64{"a": 1, "b": 1, "c": 1}, Op: lippy.CmpEQ, RHS: 2},
			}, nil, "a", "b", "c"),
			AnyFeasible: true,
		},
		{
			Name: "negative coefficient implication",
			// a - b <= 0 with a forced on means b must be on too.
			Input: binaryInput([]Constraint{
				{Name: "imply", Coefficients: map[string]float64{"a": 1, "b": -1}, Op: lippy.CmpLE, RHS: 0},
				{Name: "force a", Coefficients: map[string]float64{"a": 1}, Op: lippy.CmpGE, RHS: 1},
			}, nil, "a", "b"),
			Want: map[string]float64{"a": 1, "b": 1},
		},
		{
			Name: "infeasible names conflicting constraints",
			Input: binaryInput([]Constraint{
				{Name: "on", Coefficients: map[string]float64{"a": 1}, Op: lippy.CmpGE, RHS: 1},
				{Name: "off", Coefficients: map[string]float64{"a": 1}, Op: lippy.CmpLE, RHS: 0},
			}, nil, "a"),
			Infeasible: []string{"on", "off"},
		},
		{
			Name: "impossible bound is infeasible",
			Input: binaryInput([]Constraint{
				{Name: "too much", Coefficients: map[string]float64{"a": 1, "b": 1}, Op: lippy.CmpGE, RHS: 3},
			}, nil, "a", "b"),
			Infeasible: []string{"too much"},
		},
		{
			Name: "minimize weighted cover",
			// Cover both items; picking b alone covers both at cost 3,
			// but a+c covers both at cost 2.
			Input: binaryInput([]Constraint{
				{Name: "cover1", Coefficients: map[string]float64{"a": 1, "b": 1}, Op: lippy.CmpGE, RHS: 1},
				{Name: "cover2", Coefficients: map[string]float64{"b": 1, "c": 1}, Op: lippy.CmpGE, RHS: 1},
			}, &Objective{
				Coefficients: map[string]float64{"a": 1, "b": 3, "c": 1},
				Direction:    lippy.Minimize,
			}, "a", "b", "c"),
			Objective:   2,
			AnyFeasible: true,
		},
		{
			Name: "maximize value under knapsack",
			// Weights 3,2,2 with capacity 4: best value picks b and c.
			Input: binaryInput([]Constraint{
				{Name: "capacity", Coefficients: map[string]float64{"a": 3, "b": 2, "c": 2}, Op: lippy.CmpLE, RHS: 4},
			}, &Objective{
				Coefficients: map[string]float64{"a": 3, "b": 2, "c": 2},
				Direction:    lippy.Maximize,
			}, "a", "b", "c"),
			Objective:   4,
			AnyFeasible: true,
		},
		{
			Name: "objective constant is reported",
			Input: binaryInput([]Constraint{
				{Name: "force", Coefficients: map[string]float64{"a": 1}, Op: lippy.CmpGE, RHS: 1},
			}, &Objective{
				Coefficients: map[string]float64{"a": 2},
				Constant:     10,
				Direction:    lippy.Minimize,
			}, "a"),
			Objective:   12,
			AnyFeasible: true,
		},
	} {
		t.Run(tt.Name, func(t *testing.T) {
			backend := NewSATBackend(nil)
			require.True(t, backend.Eligible(tt.Input))

			sol, err := backend.Solve(context.Background(), tt.Input)
			if tt.Infeasible != nil {
				var infeasible *InfeasibleError
				require.ErrorAs(t, err, &infeasible)
				assert.ErrorIs(t, err, ErrInfeasible)
				assert.ElementsMatch(t, tt.Infeasible, infeasible.Constraints)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "sat", sol.Backend)
			if tt.Want != nil {
				assert.Equal(t, tt.Want, sol.Values)
			}
			if tt.Input.Objective != nil {
				assert.Equal(t, tt.Objective, sol.Objective)
			}
			// The reported assignment satisfies every constraint.
			for _, con := range tt.Input.Constraints {
				lhs := 0.0
				for id, c := range con.Coefficients {
					lhs += c * sol.Values[id]
				}
				switch con.Op {
				case lippy.CmpLE:
					assert.LessOrEqual(t, lhs, con.RHS, "constraint %s", con.Name)
				case lippy.CmpGE:
					assert.GreaterOrEqual(t, lhs, con.RHS, "constraint %s", con.Name)
				case lippy.CmpEQ:
					assert.Equal(t, con.RHS, lhs, "constraint %s", con.Name)
				}
			}
		})
	}
}

func TestSATEligibility(t *testing.T) {
	assert := assert.New(t)
	backend := NewSATBackend(nil)

	assert.False(backend.Eligible(Input{
		Variables: []Variable{{ID: "x", Type: lippy.Continuous}},
	}))
	assert.False(backend.Eligible(binaryInput([]Constraint{
		{Name: "frac", Coefficients: map[string]float64{"a": 0.5}, Op: lippy.CmpLE, RHS: 1},
	}, nil, "a")))
	assert.False(backend.Eligible(binaryInput([]Constraint{
		{Name: "huge", Coefficients: map[string]float64{"a": satWeightBudget + 1}, Op: lippy.CmpLE, RHS: 1},
	}, nil, "a")))
	assert.True(backend.Eligible(binaryInput(nil, nil, "a")))
}

func TestSATDuplicateIdentifier(t *testing.T) {
	backend := NewSATBackend(nil)
	_, err := backend.Solve(context.Background(), binaryInput(nil, nil, "a", "a"))
	assert.Equal(t, DuplicateIdentifier("a"), err)
}
