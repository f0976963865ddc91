//go:build integration

package redis_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"veritas/internal/platform/config"
	"veritas/internal/platform/redis"
	"veritas/pkg/testutil/containers"
)

func TestClientConnectsAndReportsHealth(t *testing.T) {
	rc := containers.GetManager().GetRedis(t)
	ctx := context.Background()

	client, err := redis.New(ctx, config.Redis{URL: rc.URL, PoolSize: 4})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, client.Check(ctx))
	require.NoError(t, client.Set(ctx, "veritas:probe", "1", 0).Err())
	client.RecordPoolStats()
	client.RecordPoolStats()
}

func TestClientDisabledWithoutURL(t *testing.T) {
	client, err := redis.New(context.Background(), config.Redis{})
	require.NoError(t, err)
	require.Nil(t, client)
}
