package json

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshal(t *testing.T) {
	data, err := Marshal(map[string]any{"b": 1, "a": []int{1, 2}})
	require.NoError(t, err)
	assert.Equal(t, `{"a":[1,2],"b":1}`, string(data))
	assert.True(t, Valid(data))

	s, err := MarshalString("x")
	require.NoError(t, err)
	assert.Equal(t, `"x"`, s)

	var out map[string]any
	require.NoError(t, Unmarshal(data, &out))
	assert.Equal(t, float64(1), out["b"])

	indented, err := MarshalIndent([]int{1}, "", "  ")
	require.NoError(t, err)
	assert.Equal(t, "[\n  1\n]", string(indented))

	assert.False(t, Valid([]byte("{")))
}
