package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_SetGet(t *testing.T) {
	m := NewMemory()
	defer m.Close()

	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k1", []byte("v1"), time.Minute))

	value, ok, err := m.Get(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v1"), value)
}

func TestMemory_Miss(t *testing.T) {
	m := NewMemory()
	defer m.Close()

	_, ok, err := m.Get(context.Background(), "absent")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemory_TTLExpiry(t *testing.T) {
	m := NewMemory()
	defer m.Close()

	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k1", []byte("v1"), 30*time.Millisecond))

	_, ok, err := m.Get(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, ok)

	time.Sleep(50 * time.Millisecond)

	_, ok, err = m.Get(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, ok, "entry should expire after its TTL")
}

func TestMemory_NoExpiry(t *testing.T) {
	m := NewMemory()
	defer m.Close()

	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k1", []byte("v1"), 0))

	_, ok, err := m.Get(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemory_Delete(t *testing.T) {
	m := NewMemory()
	defer m.Close()

	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k1", []byte("v1"), time.Minute))
	require.NoError(t, m.Delete(ctx, "k1"))

	_, ok, err := m.Get(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, ok)

	// Deleting a missing key is not an error.
	require.NoError(t, m.Delete(ctx, "absent"))
}

func TestMemory_Overwrite(t *testing.T) {
	m := NewMemory()
	defer m.Close()

	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k1", []byte("old"), time.Minute))
	require.NoError(t, m.Set(ctx, "k1", []byte("new"), time.Minute))

	value, ok, err := m.Get(ctx, "k1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("new"), value)
}

func TestNop_AlwaysMisses(t *testing.T) {
	var c Cache = Nop{}

	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k1", []byte("v1"), time.Minute))

	_, ok, err := c.Get(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Delete(ctx, "k1"))
}
