package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.Set(ctx, "a", []byte("1"), 0))

	value, err := m.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), value)

	value[0] = 'x'
	again, _ := m.Get(ctx, "a")
	assert.Equal(t, []byte("1"), again, "returned bytes are a copy")

	require.NoError(t, m.Delete(ctx, "a", "missing"))

	_, err = m.Get(ctx, "a")
	require.ErrorIs(t, err, ErrMiss)
}

func TestMemory_Expires(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	m := NewMemory()
	m.now = func() time.Time { return now }

	require.NoError(t, m.Set(ctx, "k", []byte("v"), time.Minute))

	_, err := m.Get(ctx, "k")
	require.NoError(t, err)

	now = now.Add(time.Minute)

	_, err = m.Get(ctx, "k")
	require.ErrorIs(t, err, ErrMiss)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "hireflow:workflow:wf-1", WorkflowKey("wf-1"))
	assert.Equal(t, "hireflow:stages:wf-1", StagesKey("wf-1"))
}

func TestMemory_EvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(WithSize(2))

	require.NoError(t, m.Set(ctx, "a", []byte("1"), 0))
	require.NoError(t, m.Set(ctx, "b", []byte("2"), 0))

	_, err := m.Get(ctx, "a")
	require.NoError(t, err)

	require.NoError(t, m.Set(ctx, "c", []byte("3"), 0))

	assert.Equal(t, 2, m.Len())

	_, err = m.Get(ctx, "b")
	require.ErrorIs(t, err, ErrMiss, "b was the least recently used")

	_, err = m.Get(ctx, "a")
	require.NoError(t, err)
}

func TestMemory_SetAfterExpiryIsServed(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	m := NewMemory()
	m.now = func() time.Time { return now }

	require.NoError(t, m.Set(ctx, "k", []byte("old"), time.Second))

	now = now.Add(time.Minute)

	_, err := m.Get(ctx, "k")
	require.ErrorIs(t, err, ErrMiss)

	require.NoError(t, m.Set(ctx, "k", []byte("new"), time.Second))

	value, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), value)
}

func TestMemory_CloseDropsEverything(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.Set(ctx, "a", []byte("1"), 0))
	require.NoError(t, m.Close())

	assert.Zero(t, m.Len())
}
