package lippy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandOrder(t *testing.T) {
	compiler, _ := testCompiler(t)
	env := NewEnvironment(ParamsFromMap(map[string]interface{}{
		"letters": []interface{}{"a", "b"},
	}))

	var points [][2]interface{}
	err := compiler.Expand([]Clause{
		Over("i", IntRange(Int(1), Int(2))),
		Over("l", Symbol("letters")),
	}, env, func(benv *Environment) error {
		i, _ := benv.Lookup("i")
		l, _ := benv.Lookup("l")
		points = append(points, [2]interface{}{i, l})
		return nil
	})
	require.NoError(t, err)

	// First clause is the outermost loop.
	assert.Equal(t, [][2]interface{}{
		{1, "a"}, {1, "b"}, {2, "a"}, {2, "b"},
	}, points)
}

func TestExpandEmptyClauseList(t *testing.T) {
	compiler, _ := testCompiler(t)
	calls := 0
	err := compiler.Expand(nil, testEnv(), func(*Environment) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestExpandZeroLengthDomain(t *testing.T) {
	compiler, _ := testCompiler(t)
	calls := 0
	err := compiler.Expand([]Clause{
		Over("i", IntRange(Int(1), Int(3))),
		Over("j", Literal([]interface{}{})),
	}, testEnv(), func(*Environment) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 0, calls)
}

func TestExpandNonEnumerableDomain(t *testing.T) {
	compiler, _ := testCompiler(t)
	err := compiler.Expand([]Clause{Over("i", Int(5))}, testEnv(), func(*Environment) error {
		return nil
	})
	assert.True(t, IsKind(err, ErrInvalidDomain))
}

func TestExpandAbortsOnBodyError(t *testing.T) {
	compiler, _ := testCompiler(t)
	calls := 0
	err := compiler.Expand([]Clause{
		Over("i", IntRange(Int(1), Int(5))),
	}, testEnv(), func(benv *Environment) error {
		calls++
		if i, _ := benv.Lookup("i"); i == 2 {
			return assert.AnError
		}
		return nil
	})
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 2, calls)
}
