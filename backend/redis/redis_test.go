package redis

import (
	"context"
	"testing"

	"github.com/Faizanmal/Real-Time-Pulse-sub010/backend"
	"github.com/Faizanmal/Real-Time-Pulse-sub010/backend/test"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startRedis(t *testing.T) string {
	t.Helper()

	ctx := context.Background()

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		if err := c.Terminate(ctx); err != nil {
			t.Fatalf("failed to terminate container: %s", err)
		}
	})

	endpoint, err := c.Endpoint(ctx, "")
	require.NoError(t, err)

	return endpoint
}

func getClient(address string) redis.UniversalClient {
	return redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{address},
		DB:    0,
	})
}

func getCreateBackend(t *testing.T, client redis.UniversalClient, opts ...RedisBackendOption) func() backend.Backend {
	return func() backend.Backend {
		// Flush database
		require.NoError(t, client.FlushDB(context.Background()).Err())

		r, err := client.Keys(context.Background(), "*").Result()
		require.NoError(t, err)
		require.Empty(t, r, "database not empty")

		b, err := NewRedisBackend(client, opts...)
		require.NoError(t, err)

		return b
	}
}

func Test_RedisBackend(t *testing.T) {
	if testing.Short() {
		t.Skip()
	}

	client := getClient(startRedis(t))
	defer client.Close()

	// The client is shared between cases, so the backends are not closed.
	test.BackendTest(t, getCreateBackend(t, client), nil)
}

func Test_RedisBackend_KeyPrefix(t *testing.T) {
	if testing.Short() {
		t.Skip()
	}

	client := getClient(startRedis(t))
	defer client.Close()

	test.BackendTest(t, getCreateBackend(t, client, WithKeyPrefix("pulse:")), nil)

	keys, err := client.Keys(context.Background(), "*").Result()
	require.NoError(t, err)

	for _, k := range keys {
		require.Regexp(t, "^pulse:", k)
	}
}
