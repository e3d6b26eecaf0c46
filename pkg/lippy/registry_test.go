package lippy

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeclareValidation(t *testing.T) {
	type tc struct {
		Name   string
		Family Family
		Arity  int
		Kind   ErrorKind
	}

	for _, tt := range []tc{
		{
			Name:   "continuous family",
			Family: Family{Name: "x", Type: Continuous, Lower: 0, Upper: math.Inf(1)},
		},
		{
			Name:   "integer family with integral bounds",
			Family: Family{Name: "n", Type: Integer, Lower: -3, Upper: 10},
		},
		{
			Name:   "integer family rejects fractional bound",
			Family: Family{Name: "n", Type: Integer, Lower: 0, Upper: 1.5},
			Kind:   ErrInvalidBounds,
		},
		{
			Name:   "empty interval rejected",
			Family: Family{Name: "x", Type: Continuous, Lower: 2, Upper: 1},
			Kind:   ErrInvalidBounds,
		},
		{
			Name:   "family name with reserved character rejected",
			Family: Family{Name: "bad name", Type: Continuous, Upper: math.Inf(1)},
			Kind:   ErrInvalidIndex,
		},
	} {
		t.Run(tt.Name, func(t *testing.T) {
			_, err := NewRegistry().Declare(tt.Family, tt.Arity)
			if tt.Kind == "" {
				assert.NoError(t, err)
				return
			}
			assert.True(t, IsKind(err, tt.Kind), "got %v, want kind %s", err, tt.Kind)
		})
	}
}

func TestDeclareRedeclaration(t *testing.T) {
	assert := assert.New(t)
	reg := NewRegistry()

	_, err := reg.Declare(Family{Name: "x", Type: Continuous, Lower: 0, Upper: 10}, 1)
	require.NoError(t, err)

	// Identical redeclaration is a no-op.
	_, err = reg.Declare(Family{Name: "x", Type: Continuous, Lower: 0, Upper: 10}, 1)
	assert.NoError(err)

	// Any difference conflicts.
	_, err = reg.Declare(Family{Name: "x", Type: Integer, Lower: 0, Upper: 10}, 1)
	assert.True(IsKind(err, ErrDuplicateFamily))
	_, err = reg.Declare(Family{Name: "x", Type: Continuous, Lower: 0, Upper: 20}, 1)
	assert.True(IsKind(err, ErrDuplicateFamily))
	_, err = reg.Declare(Family{Name: "x", Type: Continuous, Lower: 0, Upper: 10}, 2)
	assert.True(IsKind(err, ErrDuplicateFamily))
}

func TestBinaryFamilyImplicitBounds(t *testing.T) {
	reg := NewRegistry()
	fam, err := reg.Declare(Family{Name: "pick", Type: Binary}, 0)
	require.NoError(t, err)
	assert.Equal(t, 0.0, fam.Lower)
	assert.Equal(t, 1.0, fam.Upper)
}

func TestCanonicalName(t *testing.T) {
	type tc struct {
		Name  string
		Tuple []interface{}
		Want  string
		Kind  ErrorKind
	}

	reg := NewRegistry()
	_, err := reg.Declare(Family{Name: "ship", Type: Continuous, Lower: 0, Upper: math.Inf(1)}, 2)
	require.NoError(t, err)

	for _, tt := range []tc{
		{
			Name:  "strings render as-is",
			Tuple: []interface{}{"Supplier1", "Customer2"},
			Want:  "ship(Supplier1,Customer2)",
		},
		{
			Name:  "numbers render in decimal form",
			Tuple: []interface{}{1, 2.5},
			Want:  "ship(1,2.5)",
		},
		{
			Name:  "leading e is escaped per component",
			Tuple: []interface{}{"e5", "normal"},
			Want:  "ship(_e5,normal)",
		},
		{
			Name:  "leading escape prefix is itself escaped",
			Tuple: []interface{}{"_e5", "E2"},
			Want:  "ship(__e5,_E2)",
		},
		{
			Name:  "interior e stays untouched",
			Tuple: []interface{}{"item_e5", "ten"},
			Want:  "ship(item_e5,ten)",
		},
		{
			Name:  "arity mismatch",
			Tuple: []interface{}{"only"},
			Kind:  ErrInvalidIndex,
		},
		{
			Name:  "structural character rejected",
			Tuple: []interface{}{"a,b", "c"},
			Kind:  ErrInvalidIndex,
		},
	} {
		t.Run(tt.Name, func(t *testing.T) {
			got, err := reg.CanonicalName("ship", tt.Tuple)
			if tt.Kind != "" {
				assert.True(t, IsKind(err, tt.Kind), "got %v, want kind %s", err, tt.Kind)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.Want, got)
		})
	}

	_, err = reg.CanonicalName("nope", nil)
	assert.True(t, IsKind(err, ErrUndefinedVariable))
}

func TestNamingInjectivity(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Declare(Family{Name: "cost", Type: Continuous, Lower: 0, Upper: math.Inf(1)}, 1)
	require.NoError(t, err)

	tuples := [][]interface{}{{"e5"}, {"_e5"}, {"normal"}, {"E5"}, {1}, {"1x"}}
	seen := map[string][]interface{}{}
	for _, tuple := range tuples {
		name, err := reg.CanonicalName("cost", tuple)
		require.NoError(t, err)
		prev, dup := seen[name]
		assert.False(t, dup, "tuples %v and %v collide on %q", prev, tuple, name)
		seen[name] = tuple
	}
}

func TestInstantiateIdempotent(t *testing.T) {
	assert := assert.New(t)
	reg := NewRegistry()
	_, err := reg.Declare(Family{Name: "x", Type: Continuous, Lower: 0, Upper: 1}, 1)
	require.NoError(t, err)

	first, err := reg.Instantiate("x", []interface{}{"a"})
	require.NoError(t, err)
	second, err := reg.Instantiate("x", []interface{}{"a"})
	require.NoError(t, err)

	assert.Same(first, second)
	assert.Len(reg.Instances(), 1)

	_, err = reg.Instantiate("missing", nil)
	assert.True(IsKind(err, ErrUndefinedVariable))
}

func TestWildcardDomain(t *testing.T) {
	assert := assert.New(t)
	reg := NewRegistry()
	_, err := reg.Declare(Family{Name: "x", Type: Continuous, Lower: 0, Upper: 1}, 1)
	require.NoError(t, err)

	// Nothing recorded yet.
	_, err = reg.wildcardDomain("x", 0)
	assert.True(IsKind(err, ErrUnresolvedWildcardDomain))

	reg.recordDeclaredDomain("x", 0, []interface{}{"a", "b"})
	domain, err := reg.wildcardDomain("x", 0)
	require.NoError(t, err)
	assert.Equal([]interface{}{"a", "b"}, domain)

	// A second declaration with the same domain is fine.
	reg.recordDeclaredDomain("x", 0, []interface{}{"a", "b"})
	_, err = reg.wildcardDomain("x", 0)
	assert.NoError(err)

	// A conflicting declaration poisons inference for the position.
	reg.recordDeclaredDomain("x", 0, []interface{}{1, 2, 3})
	_, err = reg.wildcardDomain("x", 0)
	assert.True(IsKind(err, ErrUnresolvedWildcardDomain))
}

func TestRegistryRollback(t *testing.T) {
	assert := assert.New(t)
	reg := NewRegistry()
	_, err := reg.Declare(Family{Name: "x", Type: Continuous, Lower: 0, Upper: 1}, 1)
	require.NoError(t, err)
	_, err = reg.Instantiate("x", []interface{}{"a"})
	require.NoError(t, err)

	mark := reg.mark()
	_, err = reg.Declare(Family{Name: "y", Type: Binary}, 0)
	require.NoError(t, err)
	_, err = reg.Instantiate("x", []interface{}{"b"})
	require.NoError(t, err)
	reg.recordDeclaredDomain("x", 0, []interface{}{"a", "b"})

	reg.rollback(mark)

	assert.False(reg.HasFamily("y"))
	assert.Len(reg.Instances(), 1)
	// Only the pre-mark concrete use of "a" survives.
	domain, err := reg.wildcardDomain("x", 0)
	require.NoError(t, err)
	assert.Equal([]interface{}{"a"}, domain)

	// The rolled-back instance can be recreated.
	inst, err := reg.Instantiate("x", []interface{}{"b"})
	require.NoError(t, err)
	assert.Equal("x(b)", inst.ID)
}
