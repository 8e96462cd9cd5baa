// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package deadletter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/z5labs/drain/queue"
	"github.com/z5labs/drain/queue/codec"

	"github.com/stretchr/testify/require"
)

type putterFunc func(ctx context.Context, bucket, key string, r io.Reader, size int64) error

func (f putterFunc) PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64) error {
	return f(ctx, bucket, key, r, size)
}

func TestArchive_HandleError(t *testing.T) {
	t.Run("will upload the envelope and error", func(t *testing.T) {
		var (
			gotBucket string
			gotKey    string
			gotBody   []byte
		)
		put := putterFunc(func(ctx context.Context, bucket, key string, r io.Reader, size int64) error {
			gotBucket = bucket
			gotKey = key
			b, err := io.ReadAll(r)
			gotBody = b
			require.Equal(t, int64(len(b)), size)
			return err
		})

		failedAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
		a := NewArchive[string](put, "dlq", codec.JSON[string]{}, Prefix("scores"), Queue("scores"))
		a.now = func() time.Time { return failedAt }

		env := queue.NewEnvelope("poison").Retry().Retry().Retry()
		a.HandleError(context.Background(), errors.New("index rejected document"), env)

		require.Equal(t, "dlq", gotBucket)
		require.Equal(t, "scores/"+env.ID.String()+".json", gotKey)

		var rec Record
		require.NoError(t, json.Unmarshal(gotBody, &rec))
		require.Equal(t, "scores", rec.Queue)
		require.Equal(t, "index rejected document", rec.Error)
		require.True(t, failedAt.Equal(rec.FailedAt))

		archived, err := queue.UnmarshalEnvelope[string](codec.JSON[string]{}, rec.Envelope)
		require.NoError(t, err)
		require.Equal(t, env.ID, archived.ID)
		require.Equal(t, "poison", archived.Payload)
		require.Equal(t, 3, archived.Attempts)
	})

	t.Run("will log the failure", func(t *testing.T) {
		t.Run("if the upload fails", func(t *testing.T) {
			put := putterFunc(func(ctx context.Context, bucket, key string, r io.Reader, size int64) error {
				return errors.New("access denied")
			})

			var buf bytes.Buffer
			log := slog.New(slog.NewJSONHandler(&buf, nil))

			a := NewArchive[string](put, "dlq", codec.JSON[string]{}, Logger(log))
			env := queue.NewEnvelope("x")
			a.HandleError(context.Background(), errors.New("failed"), env)

			var record map[string]any
			require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
			require.Equal(t, "failed to archive exhausted item", record["msg"])
			require.Equal(t, "access denied", record["error"])
			require.Equal(t, "deadletter/"+env.ID.String()+".json", record["key"])
		})
	})
}
