package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLockIsExclusiveUntilReleased(t *testing.T) {
	ctx := context.Background()
	client := &Client{store: newMockCmdable()}

	first, err := NewLock(client, client.LockKey("cart", "u1"), time.Second)
	require.NoError(t, err)
	second, err := NewLock(client, client.LockKey("cart", "u1"), time.Second)
	require.NoError(t, err)

	ok, err := first.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, second.Release(ctx))
	_, err = client.Get(ctx, first.Key())
	require.NoError(t, err, "non-owner release must not delete the key")

	require.NoError(t, first.Release(ctx))
	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestNewLockValidates(t *testing.T) {
	_, err := NewLock(nil, "k", time.Second)
	require.Error(t, err)

	_, err = NewLock(&Client{store: newMockCmdable()}, "", time.Second)
	require.Error(t, err)

	lock, err := NewLock(&Client{store: newMockCmdable()}, "k", 0)
	require.NoError(t, err)
	require.Equal(t, defaultLockTTL, lock.ttl)
}
