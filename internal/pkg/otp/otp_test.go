package otp

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNumeric_Generate(t *testing.T) {
	g := NewNumeric(5)
	assert.Equal(t, 5, g.Length())

	for range 500 {
		code, err := g.Generate()
		require.NoError(t, err)
		require.Len(t, code, 5)

		n, err := strconv.Atoi(code)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 10000)
		assert.LessOrEqual(t, n, 99999)
	}
}

func TestNewNumeric_Fallback(t *testing.T) {
	assert.Equal(t, 5, NewNumeric(2).Length())
	assert.Equal(t, 6, NewNumeric(6).Length())
}
