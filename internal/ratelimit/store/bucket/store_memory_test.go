package bucket

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowWithinLimit(t *testing.T) {
	store := NewInMemoryBucketStore()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		result, err := store.Allow(ctx, "1.2.3.4", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
		assert.Equal(t, 3-(i+1), result.Remaining)
	}
}

func TestBlocksOverLimit(t *testing.T) {
	store := NewInMemoryBucketStore()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := store.Allow(ctx, "1.2.3.4", 2, time.Minute)
		require.NoError(t, err)
	}

	result, err := store.Allow(ctx, "1.2.3.4", 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Zero(t, result.Remaining)
	assert.False(t, result.ResetAt.IsZero())
}

func TestKeysAreIndependent(t *testing.T) {
	store := NewInMemoryBucketStore()
	ctx := context.Background()

	_, err := store.Allow(ctx, "1.2.3.4", 1, time.Minute)
	require.NoError(t, err)

	result, err := store.Allow(ctx, "5.6.7.8", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}

func TestWindowSlides(t *testing.T) {
	store := NewInMemoryBucketStore()
	ctx := context.Background()

	_, err := store.Allow(ctx, "1.2.3.4", 1, 50*time.Millisecond)
	require.NoError(t, err)

	result, err := store.Allow(ctx, "1.2.3.4", 1, 50*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, result.Allowed)

	time.Sleep(60 * time.Millisecond)

	result, err = store.Allow(ctx, "1.2.3.4", 1, 50*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}

func TestReset(t *testing.T) {
	store := NewInMemoryBucketStore()
	ctx := context.Background()

	_, err := store.Allow(ctx, "1.2.3.4", 1, time.Minute)
	require.NoError(t, err)
	require.NoError(t, store.Reset(ctx, "1.2.3.4"))

	count, err := store.CurrentCount(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.Zero(t, count)

	result, err := store.Allow(ctx, "1.2.3.4", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}
