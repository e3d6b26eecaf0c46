package lippy

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

const coefficientEpsilon = 1e-12

// Polynomial is a multivariate polynomial over canonical variable names with
// float64 coefficients. Monomials are keyed by the sorted product of their
// variable names, so structurally equal expressions always canonicalize to
// the same representation. Zero-coefficient monomials are pruned eagerly.
//
// The arithmetic methods return fresh polynomials and never mutate their
// receivers, which keeps compiled sub-expressions shareable.
type Polynomial struct {
	terms map[string]*monomial
}

type monomial struct {
	vars []string
	coef float64
}

// Term is an exported snapshot of one monomial.
type Term struct {
	Variables   []string
	Coefficient float64
}

// NewPolynomial returns the zero polynomial.
func NewPolynomial() *Polynomial {
	return &Polynomial{terms: map[string]*monomial{}}
}

// Constant returns the polynomial holding only the constant c.
func Constant(c float64) *Polynomial {
	p := NewPolynomial()
	p.addTerm(c)
	return p
}

// FromVariable returns the degree-one polynomial 1*id.
func FromVariable(id string) *Polynomial {
	p := NewPolynomial()
	p.addTerm(1, id)
	return p
}

func monomialKey(vars []string) string {
	switch len(vars) {
	case 0:
		return ""
	case 1:
		return vars[0]
	}
	sorted := make([]string, len(vars))
	copy(sorted, vars)
	sort.Strings(sorted)
	return strings.Join(sorted, "*")
}

func (p *Polynomial) addTerm(coef float64, vars ...string) {
	key := monomialKey(vars)
	m, ok := p.terms[key]
	if !ok {
		if coef == 0 {
			return
		}
		sorted := make([]string, len(vars))
		copy(sorted, vars)
		sort.Strings(sorted)
		p.terms[key] = &monomial{vars: sorted, coef: coef}
		return
	}
	m.coef += coef
	if math.Abs(m.coef) <= coefficientEpsilon {
		delete(p.terms, key)
	}
}

// Copy returns a deep copy of p.
func (p *Polynomial) Copy() *Polynomial {
	q := NewPolynomial()
	for key, m := range p.terms {
		vars := make([]string, len(m.vars))
		copy(vars, m.vars)
		q.terms[key] = &monomial{vars: vars, coef: m.coef}
	}
	return q
}

// Plus returns p + q.
func (p *Polynomial) Plus(q *Polynomial) *Polynomial {
	out := p.Copy()
	for _, m := range q.terms {
		out.addTerm(m.coef, m.vars...)
	}
	return out
}

// Minus returns p - q.
func (p *Polynomial) Minus(q *Polynomial) *Polynomial {
	out := p.Copy()
	for _, m := range q.terms {
		out.addTerm(-m.coef, m.vars...)
	}
	return out
}

// Scale returns k * p.
func (p *Polynomial) Scale(k float64) *Polynomial {
	out := NewPolynomial()
	if k == 0 {
		return out
	}
	for _, m := range p.terms {
		out.addTerm(k*m.coef, m.vars...)
	}
	return out
}

// Negate returns -p.
func (p *Polynomial) Negate() *Polynomial {
	return p.Scale(-1)
}

// Times returns p * q. Multiplication is the one ring operation that can
// raise degree; the compiler rejects the variable-by-variable case before
// calling it, but Times itself is total.
func (p *Polynomial) Times(q *Polynomial) *Polynomial {
	out := NewPolynomial()
	for _, pm := range p.terms {
		for _, qm := range q.terms {
			vars := make([]string, 0, len(pm.vars)+len(qm.vars))
			vars = append(vars, pm.vars...)
			vars = append(vars, qm.vars...)
			out.addTerm(pm.coef*qm.coef, vars...)
		}
	}
	return out
}

// ConstantTerm returns the degree-zero coefficient.
func (p *Polynomial) ConstantTerm() float64 {
	if m, ok := p.terms[""]; ok {
		return m.coef
	}
	return 0
}

// WithoutConstant returns p with its degree-zero term removed.
func (p *Polynomial) WithoutConstant() *Polynomial {
	out := p.Copy()
	delete(out.terms, "")
	return out
}

// IsZero reports whether p has no terms at all.
func (p *Polynomial) IsZero() bool {
	return len(p.terms) == 0
}

// IsConstant reports whether p has no variable terms.
func (p *Polynomial) IsConstant() bool {
	for key := range p.terms {
		if key != "" {
			return false
		}
	}
	return true
}

// HasVariables reports whether p has at least one variable term.
func (p *Polynomial) HasVariables() bool {
	return !p.IsConstant()
}

// Degree returns the maximum monomial degree, 0 for constants and the zero
// polynomial.
func (p *Polynomial) Degree() int {
	max := 0
	for _, m := range p.terms {
		if len(m.vars) > max {
			max = len(m.vars)
		}
	}
	return max
}

// Coefficient returns the coefficient of the monomial over vars, 0 when the
// monomial is absent. Coefficient() returns the constant term.
func (p *Polynomial) Coefficient(vars ...string) float64 {
	if m, ok := p.terms[monomialKey(vars)]; ok {
		return m.coef
	}
	return 0
}

// Variables returns the distinct variable names of p in lexicographic order.
func (p *Polynomial) Variables() []string {
	seen := map[string]struct{}{}
	for _, m := range p.terms {
		for _, v := range m.vars {
			seen[v] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// LinearCoefficients returns the variable-to-coefficient map of a linear
// polynomial, excluding the constant term. It reports false when p has a
// monomial of degree two or higher.
func (p *Polynomial) LinearCoefficients() (map[string]float64, bool) {
	out := make(map[string]float64, len(p.terms))
	for key, m := range p.terms {
		if key == "" {
			continue
		}
		if len(m.vars) > 1 {
			return nil, false
		}
		out[m.vars[0]] = m.coef
	}
	return out, true
}

// Terms returns the monomials of p in canonical order: ascending degree,
// then lexicographic monomial key. The constant term, when present, comes
// first.
func (p *Polynomial) Terms() []Term {
	keys := make([]string, 0, len(p.terms))
	for key := range p.terms {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		di, dj := len(p.terms[keys[i]].vars), len(p.terms[keys[j]].vars)
		if di != dj {
			return di < dj
		}
		return keys[i] < keys[j]
	})
	out := make([]Term, 0, len(keys))
	for _, key := range keys {
		m := p.terms[key]
		vars := make([]string, len(m.vars))
		copy(vars, m.vars)
		out = append(out, Term{Variables: vars, Coefficient: m.coef})
	}
	return out
}

// Equal reports whether p and q have identical terms. Coefficients are
// compared within a small epsilon to absorb float accumulation noise.
func (p *Polynomial) Equal(q *Polynomial) bool {
	if len(p.terms) != len(q.terms) {
		return false
	}
	for key, pm := range p.terms {
		qm, ok := q.terms[key]
		if !ok {
			return false
		}
		if math.Abs(pm.coef-qm.coef) > coefficientEpsilon {
			return false
		}
	}
	return true
}

func formatCoefficient(c float64) string {
	return strconv.FormatFloat(c, 'g', -1, 64)
}

// String renders p in canonical term order, e.g. "4 + 2 x(1) + 3 x(2)".
// The zero polynomial renders as "0".
func (p *Polynomial) String() string {
	terms := p.Terms()
	if len(terms) == 0 {
		return "0"
	}
	var b strings.Builder
	for i, t := range terms {
		coef := t.Coefficient
		if i == 0 {
			if coef < 0 {
				b.WriteString("-")
				coef = -coef
			}
		} else {
			if coef < 0 {
				b.WriteString(" - ")
				coef = -coef
			} else {
				b.WriteString(" + ")
			}
		}
		switch {
		case len(t.Variables) == 0:
			b.WriteString(formatCoefficient(coef))
		case coef == 1:
			b.WriteString(strings.Join(t.Variables, "*"))
		default:
			b.WriteString(formatCoefficient(coef))
			b.WriteString(" ")
			b.WriteString(strings.Join(t.Variables, "*"))
		}
	}
	return b.String()
}
