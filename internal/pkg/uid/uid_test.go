package uid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnowflake_Generate(t *testing.T) {
	sf, err := NewSnowflake(1)
	require.NoError(t, err)

	a, b := sf.Generate(), sf.Generate()
	assert.Positive(t, a)
	assert.Greater(t, b, a)
}

func TestNewSnowflake_InvalidNode(t *testing.T) {
	_, err := NewSnowflake(5000)
	assert.Error(t, err)
}

func TestOpaque_Generate(t *testing.T) {
	o := NewOpaque()
	a, b := o.Generate(), o.Generate()
	assert.Len(t, a, 64)
	assert.Regexp(t, "^[0-9a-f]{64}$", a)
	assert.NotEqual(t, a, b)
}

func TestUUID_Generate(t *testing.T) {
	id := NewUUID().Generate()
	assert.Len(t, id, 36)
}
