// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package memory

import (
	"context"
	"testing"
	"time"

	"github.com/z5labs/drain/queue"
	"github.com/z5labs/drain/queue/storetest"

	"github.com/stretchr/testify/require"
)

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) queue.Store[string] {
		return NewStore[string]()
	})
}

func TestStore_TryDequeue(t *testing.T) {
	t.Run("will wake up", func(t *testing.T) {
		t.Run("if an item is pushed while waiting", func(t *testing.T) {
			s := NewStore[string]()

			go func() {
				time.Sleep(20 * time.Millisecond)
				_ = s.Push(context.Background(), queue.NewEnvelope("late"))
			}()

			start := time.Now()
			env, ok, err := s.TryDequeue(context.Background(), 5*time.Second)
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, "late", env.Payload)
			require.Less(t, time.Since(start), 5*time.Second)
		})
	})
}
