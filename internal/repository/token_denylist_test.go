package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestMemoryDenylistExpires(t *testing.T) {
	ctx := context.Background()
	list := NewMemoryDenylist().(*memoryDenylist)
	current := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	list.now = func() time.Time { return current }

	require.NoError(t, list.Revoke(ctx, "jti-1", current.Add(time.Hour)))

	revoked, err := list.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	require.True(t, revoked)

	current = current.Add(2 * time.Hour)
	revoked, err = list.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	require.False(t, revoked)
}

func TestRedisDenylist(t *testing.T) {
	ctx := context.Background()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer client.Close()

	list := NewRedisDenylist(client, "test:revoked")

	revoked, err := list.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	require.False(t, revoked)

	require.NoError(t, list.Revoke(ctx, "jti-1", time.Now().Add(time.Minute)))
	revoked, err = list.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	require.True(t, revoked)
	require.True(t, server.Exists("test:revoked:jti-1"))

	server.FastForward(2 * time.Minute)
	revoked, err = list.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	require.False(t, revoked)
}

func TestRedisDenylistTrimsTrailingSeparator(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer client.Close()

	list := NewRedisDenylist(client, "intelligrade:revoked:")
	require.NoError(t, list.Revoke(context.Background(), "jti-2", time.Now().Add(time.Minute)))
	require.Equal(t, []string{"intelligrade:revoked:jti-2"}, server.Keys())
}
