//go:build testcontainers

// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package redis

import (
	"context"
	"testing"
	"time"

	"github.com/z5labs/drain/queue"
	"github.com/z5labs/drain/queue/codec"
	"github.com/z5labs/drain/queue/storetest"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupRedisContainer(t *testing.T) *redis.Client {
	t.Helper()

	ctx := context.Background()
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "docker.io/library/redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err, "failed to start redis container")
	t.Cleanup(func() {
		testcontainers.CleanupContainer(t, c)
	})

	endpoint, err := c.PortEndpoint(ctx, "6379/tcp", "redis")
	require.NoError(t, err)

	opts, err := redis.ParseURL(endpoint)
	require.NoError(t, err)

	client := redis.NewClient(opts)
	t.Cleanup(func() {
		client.Close()
	})
	return client
}

func TestStore(t *testing.T) {
	client := setupRedisContainer(t)

	storetest.Run(t, func(t *testing.T) queue.Store[string] {
		return NewStore[string](client, codec.JSON[string]{}, Queue(uuid.NewString()))
	})

	storetest.RunUndecodable(t, func(t *testing.T) (queue.Store[string], queue.Store[int]) {
		name := uuid.NewString()
		return NewStore[string](client, codec.JSON[string]{}, Queue(name)), NewStore[int](client, codec.JSON[int]{}, Queue(name))
	})

	t.Run("will keep queues in different namespaces apart", func(t *testing.T) {
		ctx := context.Background()
		name := uuid.NewString()

		a := NewStore[string](client, codec.JSON[string]{}, Namespace("a"), Queue(name))
		b := NewStore[string](client, codec.JSON[string]{}, Namespace("b"), Queue(name))

		require.NoError(t, a.Push(ctx, queue.NewEnvelope("x")))

		n, err := b.Size(ctx)
		require.NoError(t, err)
		require.Zero(t, n)

		n, err = client.LLen(ctx, Key("a", name)).Result()
		require.NoError(t, err)
		require.Equal(t, int64(1), n)
	})

	t.Run("will return an error", func(t *testing.T) {
		t.Run("if a queued value is malformed", func(t *testing.T) {
			ctx := context.Background()
			name := uuid.NewString()
			require.NoError(t, client.RPush(ctx, Key("drain", name), "not json").Err())

			s := NewStore[string](client, codec.JSON[string]{}, Queue(name))
			_, ok, err := s.TryDequeue(ctx, time.Second)
			require.Error(t, err)
			require.False(t, ok)

			val, err := client.LIndex(ctx, Key("drain", name), 0).Result()
			require.NoError(t, err)
			require.Equal(t, "not json", val)
		})
	})
}
