package lippy

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// VarType is the solver-facing type of a variable family.
type VarType int

const (
	Continuous VarType = iota
	Integer
	Binary
)

func (t VarType) String() string {
	switch t {
	case Continuous:
		return "continuous"
	case Integer:
		return "integer"
	case Binary:
		return "binary"
	default:
		return fmt.Sprintf("vartype(%d)", int(t))
	}
}

// Family is a named group of decision variables sharing a type and bounds,
// indexed by a fixed number of dimensions. Bounds use ±Inf as the unbounded
// sentinel; binary families always carry the implicit 0/1 bounds.
type Family struct {
	Name        string
	Type        VarType
	Lower       float64
	Upper       float64
	Description string

	arity     int
	prefix    string
	positions []*positionDomain
}

// Arity returns the declared index-tuple width.
func (f *Family) Arity() int { return f.arity }

// positionDomain records every concrete value an index position has taken,
// in first-use order, plus the signature of each declaring domain so that
// conflicting declarations can be detected at wildcard-inference time.
type positionDomain struct {
	values   []interface{}
	seen     map[string]struct{}
	declSigs []string
}

func (pd *positionDomain) record(rendered string, value interface{}) {
	if _, ok := pd.seen[rendered]; ok {
		return
	}
	pd.seen[rendered] = struct{}{}
	pd.values = append(pd.values, value)
}

// Instance is one concrete decision variable: a family at a specific index
// tuple. ID is the canonical solver-facing identifier.
type Instance struct {
	Family string
	Tuple  []interface{}
	ID     string
}

// Registry owns variable families and their instances. Instantiation is
// idempotent: a (family, tuple) pair always maps to the same Instance. All
// iteration accessors return entries in first-declaration order, which keeps
// downstream artifacts (solver input, LP files) deterministic.
type Registry struct {
	families      map[string]*Family
	familyOrder   []string
	instances     map[string]*Instance
	instanceOrder []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		families:  map[string]*Family{},
		instances: map[string]*Instance{},
	}
}

// renderIndexValue turns an index value into its canonical string form:
// numbers in plain decimal notation, strings as-is. Other shapes cannot
// name a variable.
func renderIndexValue(v interface{}) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case int:
		return strconv.Itoa(t), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	default:
		return "", newError(ErrInvalidIndex, "", "index value %v (%T) cannot name a variable", v, v)
	}
}

// sanitizeComponent escapes a rendered name component for the solver's
// external file format. LP-format numbers admit exponent notation, so a
// component starting with 'e' or 'E' is ambiguous and gets a '_' prefix.
// A leading '_' is escaped the same way, which keeps the mapping injective:
// no unescaped component can collide with an escaped one.
func sanitizeComponent(s string) string {
	if s == "" {
		return s
	}
	switch s[0] {
	case 'e', 'E', '_':
		return "_" + s
	}
	return s
}

func validateComponent(rendered string) error {
	if rendered == "" {
		return newError(ErrInvalidIndex, "", "empty index component")
	}
	for _, r := range rendered {
		if r == '(' || r == ')' || r == ',' || unicode.IsSpace(r) {
			return newError(ErrInvalidIndex, rendered, "index component %q contains reserved character %q", rendered, r)
		}
	}
	return nil
}

// canonicalVariableName renders the identifier for (family, tuple) without
// consulting any registry state: family(c1,c2) for indexed variables, the
// bare family name for scalars. Distinct tuples always yield distinct names.
func canonicalVariableName(family string, tuple []interface{}) (string, error) {
	prefix := sanitizeComponent(family)
	if len(tuple) == 0 {
		return prefix, nil
	}
	parts := make([]string, len(tuple))
	for i, v := range tuple {
		rendered, err := renderIndexValue(v)
		if err != nil {
			return "", err
		}
		if err := validateComponent(rendered); err != nil {
			return "", err
		}
		parts[i] = sanitizeComponent(rendered)
	}
	return prefix + "(" + strings.Join(parts, ",") + ")", nil
}

func validateFamilyName(name string) error {
	if name == "" {
		return newError(ErrInvalidIndex, name, "empty variable family name")
	}
	for _, r := range name {
		if r == '(' || r == ')' || r == ',' || unicode.IsSpace(r) {
			return newError(ErrInvalidIndex, name, "family name %q contains reserved character %q", name, r)
		}
	}
	return nil
}

// Declare registers a family with the given index arity. Redeclaring a
// family is allowed only when every attribute matches the original
// declaration; any difference fails with DuplicateFamily. Bound validation
// happens here: integer families reject non-integral finite bounds and
// every family rejects an empty bound interval.
func (r *Registry) Declare(fam Family, arity int) (*Family, error) {
	if err := validateFamilyName(fam.Name); err != nil {
		return nil, err
	}
	if fam.Type == Binary {
		fam.Lower, fam.Upper = 0, 1
	}
	if fam.Lower > fam.Upper {
		return nil, newError(ErrInvalidBounds, fam.Name, "family %q has empty bound interval [%v, %v]", fam.Name, fam.Lower, fam.Upper)
	}
	if fam.Type == Integer {
		for _, b := range []float64{fam.Lower, fam.Upper} {
			if !math.IsInf(b, 0) && b != math.Trunc(b) {
				return nil, newError(ErrInvalidBounds, fam.Name, "integer family %q has non-integral bound %v", fam.Name, b)
			}
		}
	}
	if existing, ok := r.families[fam.Name]; ok {
		if existing.Type != fam.Type || existing.arity != arity ||
			existing.Lower != fam.Lower || existing.Upper != fam.Upper ||
			existing.Description != fam.Description {
			return nil, newError(ErrDuplicateFamily, fam.Name, "family %q redeclared with conflicting definition", fam.Name)
		}
		return existing, nil
	}
	fam.arity = arity
	fam.prefix = sanitizeComponent(fam.Name)
	fam.positions = make([]*positionDomain, arity)
	for i := range fam.positions {
		fam.positions[i] = &positionDomain{seen: map[string]struct{}{}}
	}
	stored := fam
	r.families[fam.Name] = &stored
	r.familyOrder = append(r.familyOrder, fam.Name)
	return &stored, nil
}

// Family returns the named family definition.
func (r *Registry) Family(name string) (*Family, bool) {
	f, ok := r.families[name]
	return f, ok
}

// HasFamily reports whether name is a declared variable family.
func (r *Registry) HasFamily(name string) bool {
	_, ok := r.families[name]
	return ok
}

// Families returns all family definitions in declaration order.
func (r *Registry) Families() []*Family {
	out := make([]*Family, 0, len(r.familyOrder))
	for _, name := range r.familyOrder {
		out = append(out, r.families[name])
	}
	return out
}

// CanonicalName validates (family, tuple) and returns its canonical
// identifier without creating an instance.
func (r *Registry) CanonicalName(family string, tuple []interface{}) (string, error) {
	fam, ok := r.families[family]
	if !ok {
		return "", newError(ErrUndefinedVariable, family, "undefined variable family %q", family)
	}
	if len(tuple) != fam.arity {
		return "", newError(ErrInvalidIndex, family, "family %q expects %d indices, got %d", family, fam.arity, len(tuple))
	}
	return canonicalVariableName(family, tuple)
}

// Instantiate returns the Instance for (family, tuple), creating it on first
// use. Every concrete index value is recorded against its position for
// wildcard-domain inference.
func (r *Registry) Instantiate(family string, tuple []interface{}) (*Instance, error) {
	fam, ok := r.families[family]
	if !ok {
		return nil, newError(ErrUndefinedVariable, family, "undefined variable family %q", family)
	}
	if len(tuple) != fam.arity {
		return nil, newError(ErrInvalidIndex, family, "family %q expects %d indices, got %d", family, fam.arity, len(tuple))
	}
	id, err := canonicalVariableName(family, tuple)
	if err != nil {
		return nil, err
	}
	if inst, ok := r.instances[id]; ok {
		return inst, nil
	}
	stored := make([]interface{}, len(tuple))
	copy(stored, tuple)
	inst := &Instance{Family: family, Tuple: stored, ID: id}
	r.instances[id] = inst
	r.instanceOrder = append(r.instanceOrder, id)
	for i, v := range tuple {
		rendered, _ := renderIndexValue(v)
		fam.positions[i].record(rendered, v)
	}
	return inst, nil
}

// Instance returns the instance with the given canonical identifier.
func (r *Registry) Instance(id string) (*Instance, bool) {
	inst, ok := r.instances[id]
	return inst, ok
}

// Instances returns every instance in first-instantiation order.
func (r *Registry) Instances() []*Instance {
	out := make([]*Instance, 0, len(r.instanceOrder))
	for _, id := range r.instanceOrder {
		out = append(out, r.instances[id])
	}
	return out
}

// InstancesOf returns the instances of one family in first-instantiation
// order.
func (r *Registry) InstancesOf(family string) []*Instance {
	var out []*Instance
	for _, id := range r.instanceOrder {
		if inst := r.instances[id]; inst.Family == family {
			out = append(out, inst)
		}
	}
	return out
}

// recordDeclaredDomain notes that a variables declaration enumerated the
// given values for one index position. Declarations carrying different
// domains for the same position poison wildcard inference for it.
func (r *Registry) recordDeclaredDomain(family string, pos int, values []interface{}) {
	fam, ok := r.families[family]
	if !ok || pos >= fam.arity {
		return
	}
	parts := make([]string, 0, len(values))
	pd := fam.positions[pos]
	for _, v := range values {
		rendered, err := renderIndexValue(v)
		if err != nil {
			continue
		}
		parts = append(parts, rendered)
		pd.record(rendered, v)
	}
	pd.declSigs = append(pd.declSigs, strings.Join(parts, "\x1f"))
}

// wildcardDomain returns the inferred domain for one index position of a
// family: every concrete value recorded there, in first-use order. It fails
// when nothing has been recorded or when two declarations disagree about
// the position's domain.
func (r *Registry) wildcardDomain(family string, pos int) ([]interface{}, error) {
	fam, ok := r.families[family]
	if !ok {
		return nil, newError(ErrUndefinedVariable, family, "undefined variable family %q", family)
	}
	if pos < 0 || pos >= fam.arity {
		return nil, newError(ErrInvalidIndex, family, "family %q has no index position %d", family, pos)
	}
	pd := fam.positions[pos]
	for i := 1; i < len(pd.declSigs); i++ {
		if pd.declSigs[i] != pd.declSigs[0] {
			return nil, newError(ErrUnresolvedWildcardDomain, family,
				"conflicting declared domains for position %d of family %q", pos, family)
		}
	}
	if len(pd.values) == 0 {
		return nil, newError(ErrUnresolvedWildcardDomain, family,
			"no recorded domain for position %d of family %q", pos, family)
	}
	out := make([]interface{}, len(pd.values))
	copy(out, pd.values)
	return out, nil
}

// registryMark is a rollback point for atomic declarations. Registry
// mutations are append-only, so a mark is a set of lengths.
type registryMark struct {
	families  int
	instances int
	positions map[string][]posMark
}

type posMark struct {
	values   int
	declSigs int
}

func (r *Registry) mark() registryMark {
	m := registryMark{
		families:  len(r.familyOrder),
		instances: len(r.instanceOrder),
		positions: make(map[string][]posMark, len(r.familyOrder)),
	}
	for _, name := range r.familyOrder {
		fam := r.families[name]
		marks := make([]posMark, fam.arity)
		for i, pd := range fam.positions {
			marks[i] = posMark{values: len(pd.values), declSigs: len(pd.declSigs)}
		}
		m.positions[name] = marks
	}
	return m
}

// rollback undoes every mutation made after the mark was taken.
func (r *Registry) rollback(m registryMark) {
	for _, name := range r.familyOrder[m.families:] {
		delete(r.families, name)
	}
	r.familyOrder = r.familyOrder[:m.families]
	for _, id := range r.instanceOrder[m.instances:] {
		delete(r.instances, id)
	}
	r.instanceOrder = r.instanceOrder[:m.instances]
	for name, marks := range m.positions {
		fam, ok := r.families[name]
		if !ok {
			continue
		}
		for i, pd := range fam.positions {
			for _, v := range pd.values[marks[i].values:] {
				rendered, err := renderIndexValue(v)
				if err == nil {
					delete(pd.seen, rendered)
				}
			}
			pd.values = pd.values[:marks[i].values]
			pd.declSigs = pd.declSigs[:marks[i].declSigs]
		}
	}
}
