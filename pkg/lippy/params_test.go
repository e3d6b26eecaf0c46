package lippy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParamsFromJSON(t *testing.T) {
	params, err := ParamsFromJSON([]byte(`{
		"price": 4,
		"half": 0.5,
		"suppliers": ["S1", "S2"],
		"supply": {"S1": 20, "S2": 25}
	}`))
	require.NoError(t, err)

	v, ok := params.Lookup("price")
	require.True(t, ok)
	assert.Equal(t, 4, v)

	v, ok = params.Lookup("half")
	require.True(t, ok)
	assert.Equal(t, 0.5, v)

	v, ok = params.Lookup("suppliers")
	require.True(t, ok)
	assert.Equal(t, []interface{}{"S1", "S2"}, v)

	v, ok = params.Lookup("supply")
	require.True(t, ok)
	assert.Equal(t, map[string]interface{}{"S1": 20, "S2": 25}, v)
}

func TestParamsFromJSONRejectsNonObject(t *testing.T) {
	_, err := ParamsFromJSON([]byte(`[1, 2]`))
	assert.Error(t, err)
	_, err = ParamsFromJSON([]byte(`{broken`))
	assert.Error(t, err)
}

func TestParamsFromYAML(t *testing.T) {
	params, err := ParamsFromYAML([]byte(`
price: 4
suppliers:
  - S1
  - S2
rates:
  fast: [1, 2, 3]
`))
	require.NoError(t, err)

	v, ok := params.Lookup("rates")
	require.True(t, ok)
	rates, ok := v.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, []interface{}{1, 2, 3}, rates["fast"])
}

func TestParamsNormalization(t *testing.T) {
	params := ParamsFromMap(map[string]interface{}{
		"whole":  3.0,
		"narrow": int64(7),
		"nested": map[interface{}]interface{}{1: "one"},
	})

	v, _ := params.Lookup("whole")
	assert.Equal(t, 3, v)
	v, _ = params.Lookup("narrow")
	assert.Equal(t, 7, v)
	v, _ = params.Lookup("nested")
	assert.Equal(t, map[string]interface{}{"1": "one"}, v)
}

func TestEnvironmentShadowing(t *testing.T) {
	assert := assert.New(t)
	env := NewEnvironment(ParamsFromMap(map[string]interface{}{"p": 1}))
	env.Bind("a", 1)

	child := env.push()
	child.Bind("a", 2)
	child.Bind("b", 3)

	v, ok := child.Lookup("a")
	assert.True(ok)
	assert.Equal(2, v)

	v, ok = env.Lookup("a")
	assert.True(ok)
	assert.Equal(1, v)

	_, ok = env.Lookup("b")
	assert.False(ok)

	assert.Equal("a=2, b=3", child.Bindings())
}
