//go:build testcontainers

// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package deadletter

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/z5labs/drain/queue"
	"github.com/z5labs/drain/queue/codec"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupMinIOContainer(t *testing.T) *MinIO {
	t.Helper()

	ctx := context.Background()
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "docker.io/minio/minio:latest",
			ExposedPorts: []string{"9000/tcp"},
			Cmd:          []string{"server", "/data"},
			Env: map[string]string{
				"MINIO_ROOT_USER":     "minioadmin",
				"MINIO_ROOT_PASSWORD": "minioadmin",
			},
			WaitingFor: wait.ForHTTP("/minio/health/live").WithPort("9000/tcp").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err, "failed to start minio container")
	t.Cleanup(func() {
		testcontainers.CleanupContainer(t, c)
	})

	endpoint, err := c.Endpoint(ctx, "")
	require.NoError(t, err)

	client, err := NewMinIO(endpoint, "minioadmin", "minioadmin", false)
	require.NoError(t, err)
	return client
}

func TestMinIO(t *testing.T) {
	client := setupMinIOContainer(t)
	ctx := context.Background()

	require.NoError(t, client.EnsureBucket(ctx, "drain-deadletter"))
	require.NoError(t, client.EnsureBucket(ctx, "drain-deadletter"))

	t.Run("will archive exhausted items", func(t *testing.T) {
		a := NewArchive[string](client, "drain-deadletter", codec.JSON[string]{})
		env := queue.NewEnvelope("poison")
		a.HandleError(ctx, errors.New("failed"), env)

		rc, err := client.GetObject(ctx, "drain-deadletter", a.Key(env))
		require.NoError(t, err)
		defer rc.Close()

		b, err := io.ReadAll(rc)
		require.NoError(t, err)

		var rec Record
		require.NoError(t, json.Unmarshal(b, &rec))
		require.Equal(t, "failed", rec.Error)
	})
}
