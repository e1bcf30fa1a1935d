package idgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSonyflakeGenerator_Unique(t *testing.T) {
	gen, err := NewSonyflakeGenerator(7)
	require.NoError(t, err)

	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		id, err := gen.NextID()
		require.NoError(t, err)
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %s", id)
		seen[id] = struct{}{}
	}
}

func TestUUIDGenerator(t *testing.T) {
	a, err := NewUUIDGenerator().NextID()
	require.NoError(t, err)
	b, err := NewUUIDGenerator().NextID()
	require.NoError(t, err)
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
}

func TestNew(t *testing.T) {
	gen, err := New("uuid", 1)
	require.NoError(t, err)
	id, err := gen.NextID()
	require.NoError(t, err)
	assert.Len(t, id, 36)

	gen, err = New("sonyflake", 3)
	require.NoError(t, err)
	assert.IsType(t, &SonyflakeGenerator{}, gen)

	_, err = New("snowflake", 1)
	assert.Error(t, err)
}
