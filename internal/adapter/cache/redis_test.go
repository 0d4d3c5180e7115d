//go:build integration

package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/couchcryptid/ghcn-daily-etl/internal/adapter/cache"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startRedis(ctx context.Context, t *testing.T) *redis.Client {
	t.Helper()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err, "start redis container")
	t.Cleanup(func() {
		_ = testcontainers.TerminateContainer(container)
	})

	addr, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(ctx).Err())
	return client
}

func TestRedisStore(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	client := startRedis(ctx, t)
	store := cache.NewRedis(client, time.Minute)
	require.NoError(t, store.CheckReadiness(ctx))

	_, ok, err := store.Get(ctx, "USC00479190|csv")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "USC00479190|csv", []byte("Date,TMAX\n")))
	got, ok, err := store.Get(ctx, "USC00479190|csv")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("Date,TMAX\n"), got)

	ttl, err := client.TTL(ctx, "ghcn:daily:USC00479190|csv").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, time.Minute)
}
