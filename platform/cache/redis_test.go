package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := &Client{Redis: redis.NewClient(&redis.Options{Addr: mr.Addr()})}
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestClaim_OnlyFirstWins(t *testing.T) {
	client, _ := setupTestRedis(t)
	ctx := context.Background()

	won, err := client.Claim(ctx, "lead:evt-1", time.Hour)
	require.NoError(t, err)
	assert.True(t, won)

	won, err = client.Claim(ctx, "lead:evt-1", time.Hour)
	require.NoError(t, err)
	assert.False(t, won)
}

func TestClaim_ExpiresAndReleases(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()

	_, err := client.Claim(ctx, "lead:evt-1", time.Minute)
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)

	won, err := client.Claim(ctx, "lead:evt-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, won)

	require.NoError(t, client.Release(ctx, "lead:evt-1"))
	assert.False(t, mr.Exists("lead:evt-1"))
}

func TestNewClient(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewClient(context.Background(), "redis://"+mr.Addr(), false)
	require.NoError(t, err)
	defer client.Close()

	_, err = NewClient(context.Background(), "not a url", false)
	assert.Error(t, err)
}
