package solve

import (
	"fmt"
	"strings"

	"github.com/go-air/gini/inter"
	"github.com/go-air/gini/logic"
	"github.com/go-air/gini/z"
)

// DuplicateIdentifier reports a variable id appearing twice in one input.
type DuplicateIdentifier string

func (e DuplicateIdentifier) Error() string {
	return fmt.Sprintf("duplicate identifier %q in input", string(e))
}

// litMapping translates between the variables and constraints of an Input
// and the literals of the SAT formula built from it. The formula lives in a
// logic circuit; constraints are encoded as one activation literal each so
// that conflicts can be traced back to constraint names.
type litMapping struct {
	inorder     []string
	lits        map[string]z.Lit
	variables   map[z.Lit]string
	constraints map[z.Lit]string
	order       []z.Lit
	c           *logic.C
	errs        []error
}

// newLitMapping assigns one literal per variable id, in input order.
func newLitMapping(ids []string) (*litMapping, error) {
	d := &litMapping{
		inorder:     ids,
		lits:        make(map[string]z.Lit, len(ids)),
		variables:   make(map[z.Lit]string, len(ids)),
		constraints: map[z.Lit]string{},
		c:           logic.NewCCap(len(ids)),
	}
	for _, id := range ids {
		if _, ok := d.lits[id]; ok {
			return nil, DuplicateIdentifier(id)
		}
		m := d.c.Lit()
		d.lits[id] = m
		d.variables[m] = id
	}
	return d, nil
}

// LitOf returns the positive literal of the variable with the given id.
func (d *litMapping) LitOf(id string) z.Lit {
	if m, ok := d.lits[id]; ok {
		return m
	}
	d.errs = append(d.errs, fmt.Errorf("variable %q referenced but not provided", id))
	return z.LitNull
}

// AddConstraint registers an encoded constraint under its name. The
// z.LitNull encoding (a constraint with no useful SAT representation) is
// skipped.
func (d *litMapping) AddConstraint(m z.Lit, name string) {
	if m == z.LitNull {
		return
	}
	d.constraints[m] = name
	d.order = append(d.order, m)
}

// Error aggregates every error encountered over the mapping's lifetime. A
// non-nil value indicates an encoding bug, not a property of the problem.
func (d *litMapping) Error() error {
	if len(d.errs) == 0 {
		return nil
	}
	s := make([]string, len(d.errs))
	for i, err := range d.errs {
		s[i] = err.Error()
	}
	return fmt.Errorf("%d errors encountered: %s", len(s), strings.Join(s, ", "))
}

// AddConstraints teaches the current circuit to the solver g.
func (d *litMapping) AddConstraints(g inter.S) {
	d.c.ToCnf(g)
}

// AssumeConstraints assumes every constraint's activation literal on s.
func (d *litMapping) AssumeConstraints(s inter.S) {
	for _, m := range d.order {
		s.Assume(m)
	}
}

// CardinalityConstrainer constructs a sorting network over ms and teaches
// every Leq threshold clause to g.
func (d *litMapping) CardinalityConstrainer(g inter.Adder, ms []z.Lit) *logic.CardSort {
	clen := d.c.Len()
	cs := d.c.CardSort(ms)
	marks := make([]int8, clen, d.c.Len())
	for i := range marks {
		marks[i] = 1
	}
	for w := 0; w <= cs.N(); w++ {
		marks, _ = d.c.CnfSince(g, marks, cs.Leq(w))
	}
	return cs
}

// Conflicts maps the solver's failed assumptions back to constraint names,
// in input order.
func (d *litMapping) Conflicts(g inter.Assumable) []string {
	whys := g.Why(nil)
	failed := make(map[z.Lit]struct{}, len(whys))
	for _, why := range whys {
		failed[why] = struct{}{}
	}
	var names []string
	for _, m := range d.order {
		if _, ok := failed[m]; ok {
			names = append(names, d.constraints[m])
		}
	}
	return names
}

// Values reads the model assignment for every variable, in input order.
func (d *litMapping) Values(g inter.S) map[string]float64 {
	out := make(map[string]float64, len(d.inorder))
	for _, id := range d.inorder {
		if g.Value(d.LitOf(id)) {
			out[id] = 1
		} else {
			out[id] = 0
		}
	}
	return out
}
