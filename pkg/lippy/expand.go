package lippy

import (
	"sort"
)

// rangeValue is the evaluated form of a Range expression: the inclusive
// integer interval [lo, hi]. An inverted interval is empty.
type rangeValue struct {
	lo, hi int
}

func (r rangeValue) values() []interface{} {
	if r.lo > r.hi {
		return nil
	}
	out := make([]interface{}, 0, r.hi-r.lo+1)
	for v := r.lo; v <= r.hi; v++ {
		out = append(out, v)
	}
	return out
}

// enumerateDomain turns an evaluated domain value into its ordered element
// list. Lists keep their natural order, ranges ascend, and maps enumerate
// their keys in sorted order so expansion stays deterministic.
func enumerateDomain(v interface{}) ([]interface{}, bool) {
	switch t := v.(type) {
	case []interface{}:
		return t, true
	case rangeValue:
		return t.values(), true
	case map[string]interface{}:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]interface{}, len(keys))
		for i, k := range keys {
			out[i] = k
		}
		return out, true
	default:
		return nil, false
	}
}

// Expand enumerates the cartesian product of the generator clauses and
// invokes fn once per binding point, in nested-loop order: the first clause
// is the outermost loop. A later clause's domain may reference symbols bound
// by earlier clauses; it is re-evaluated for every outer binding. Any clause
// with an empty domain produces zero points. The first error from a domain
// evaluation or from fn aborts the whole expansion.
func (c *Compiler) Expand(clauses []Clause, env *Environment, fn func(*Environment) error) error {
	return c.expand(clauses, env, &declContext{}, fn)
}

func (c *Compiler) expand(clauses []Clause, env *Environment, ctx *declContext, fn func(*Environment) error) error {
	if len(clauses) == 0 {
		return fn(env)
	}
	cl := clauses[0]
	domain, err := c.evalScalar(cl.Domain, env, ctx)
	if err != nil {
		return err
	}
	values, ok := enumerateDomain(domain)
	if !ok {
		return c.failf(env, ctx, ErrInvalidDomain, cl.Symbol,
			"domain of %q is not enumerable: %v (%T)", cl.Symbol, domain, domain)
	}
	for _, v := range values {
		child := env.push()
		child.Bind(cl.Symbol, v)
		if err := c.expand(clauses[1:], child, ctx, fn); err != nil {
			return err
		}
	}
	return nil
}
