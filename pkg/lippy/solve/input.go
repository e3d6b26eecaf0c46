package solve

import (
	"fmt"
	"math"

	"github.com/perdasilva/lippy/pkg/lippy"
)

// Variable is one decision variable of a normalized problem. Bounds use
// ±Inf as the unbounded sentinel; binary variables are implicitly 0/1.
type Variable struct {
	ID    string
	Type  lippy.VarType
	Lower float64
	Upper float64
}

// Constraint is one normalized row: a variable-to-coefficient map related to
// a numeric right-hand side.
type Constraint struct {
	Name         string
	Coefficients map[string]float64
	Op           lippy.CmpOp
	RHS          float64
}

// Objective is the normalized objective: coefficients plus a constant offset
// that solvers ignore but solution reporting adds back.
type Objective struct {
	Coefficients map[string]float64
	Constant     float64
	Direction    lippy.Direction
}

// Input is the problem snapshot handed to a backend. It is self-contained:
// backends never reach back into the originating problem.
type Input struct {
	Name        string
	Variables   []Variable
	Constraints []Constraint
	Objective   *Objective
}

// Snapshot extracts the normalized form of p. It fails when any compiled
// polynomial is nonlinear, which the compiler rules out up front.
func Snapshot(p *lippy.Problem) (Input, error) {
	in := Input{Name: p.Name()}
	for _, inst := range p.Registry().Instances() {
		fam, ok := p.Registry().Family(inst.Family)
		if !ok {
			return Input{}, fmt.Errorf("instance %q references unknown family %q", inst.ID, inst.Family)
		}
		in.Variables = append(in.Variables, Variable{
			ID:    inst.ID,
			Type:  fam.Type,
			Lower: fam.Lower,
			Upper: fam.Upper,
		})
	}
	for _, con := range p.Constraints() {
		coefs, ok := con.Poly.LinearCoefficients()
		if !ok {
			return Input{}, fmt.Errorf("constraint %q is not linear", con.Name)
		}
		in.Constraints = append(in.Constraints, Constraint{
			Name:         con.Name,
			Coefficients: coefs,
			Op:           con.Op,
			RHS:          con.RHS,
		})
	}
	if obj, ok := p.Objective(); ok {
		coefs, ok := obj.Poly.LinearCoefficients()
		if !ok {
			return Input{}, fmt.Errorf("objective is not linear")
		}
		in.Objective = &Objective{
			Coefficients: coefs,
			Constant:     obj.Poly.ConstantTerm(),
			Direction:    obj.Direction,
		}
	}
	return in, nil
}

// allBinary reports whether every variable of in is binary.
func (in Input) allBinary() bool {
	for _, v := range in.Variables {
		if v.Type != lippy.Binary {
			return false
		}
	}
	return true
}

// integral reports whether every constraint/objective coefficient and every
// right-hand side is an exact integer.
func (in Input) integral() bool {
	whole := func(f float64) bool {
		return !math.IsInf(f, 0) && f == math.Trunc(f)
	}
	for _, con := range in.Constraints {
		if !whole(con.RHS) {
			return false
		}
		for _, c := range con.Coefficients {
			if !whole(c) {
				return false
			}
		}
	}
	if in.Objective != nil {
		for _, c := range in.Objective.Coefficients {
			if !whole(c) {
				return false
			}
		}
	}
	return true
}
