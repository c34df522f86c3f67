package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_GetSetDelete(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, found, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.Set(ctx, "k", []byte("v"), time.Minute))
	val, found, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "v", string(val))

	require.NoError(t, s.Delete(ctx, "k"))
	_, found, err = s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryStore_ExpiresEntries(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", []byte("v"), 10*time.Millisecond))
	time.Sleep(25 * time.Millisecond)

	_, found, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryStore_IncrWithExpireMonotonic(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	for i := int64(1); i <= 5; i++ {
		n, err := s.IncrWithExpire(ctx, "vel:ip:1.2.3.4:100", time.Hour)
		require.NoError(t, err)
		assert.Equal(t, i, n)
	}
}

func TestMemoryStore_TryLockExclusive(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	ok, err := s.TryLock(ctx, "lock:example.com", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.TryLock(ctx, "lock:example.com", time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Unlock(ctx, "lock:example.com"))
	ok, err = s.TryLock(ctx, "lock:example.com", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryStore_ListPushBoundedEvictsOldest(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		require.NoError(t, s.ListPushBounded(ctx, "recent:example.com", []byte{byte(i)}, 5))
	}

	entries, err := s.ListRange(ctx, "recent:example.com")
	require.NoError(t, err)
	require.Len(t, entries, 5)
	for i, e := range entries {
		assert.Equal(t, byte(5+i), e[0])
	}
}

func TestMemoryStore_QueuePushPop(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.QueuePush(ctx, "jobs:enrich", []byte("job-1")))

	v, ok, err := s.QueuePop(ctx, "jobs:enrich", 100*time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "job-1", string(v))

	_, ok, err = s.QueuePop(ctx, "jobs:enrich", 30*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok)
}
