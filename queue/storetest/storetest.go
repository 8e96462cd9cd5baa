// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package storetest provides a conformance suite for [queue.Store] implementations.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/z5labs/drain/queue"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns an empty store. It is called once per sub-test.
type Factory func(t *testing.T) queue.Store[string]

const shortTimeout = 50 * time.Millisecond

// Run exercises every guarantee of the [queue.Store] contract against
// stores created by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("will return nothing", func(t *testing.T) {
		t.Run("if the store is empty", func(t *testing.T) {
			s := newStore(t)

			_, ok, err := s.TryDequeue(context.Background(), shortTimeout)
			require.NoError(t, err)
			require.False(t, ok)
		})

		t.Run("if the context is done and the store is empty", func(t *testing.T) {
			s := newStore(t)

			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			start := time.Now()
			_, ok, err := s.TryDequeue(ctx, 10*time.Second)
			require.NoError(t, err)
			require.False(t, ok)
			require.Less(t, time.Since(start), 10*time.Second)
		})
	})

	t.Run("will return the pushed envelope", func(t *testing.T) {
		t.Run("with its id, payload and attempts", func(t *testing.T) {
			s := newStore(t)
			ctx := context.Background()

			env := queue.NewEnvelope("score:1").Retry().Retry()
			require.NoError(t, s.Push(ctx, env))

			got, ok, err := s.TryDequeue(ctx, time.Second)
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, env.ID, got.ID)
			require.Equal(t, "score:1", got.Payload)
			require.Equal(t, 2, got.Attempts)
			require.False(t, got.Failed)
		})

		t.Run("if the context is already done", func(t *testing.T) {
			s := newStore(t)
			require.NoError(t, s.Push(context.Background(), queue.NewEnvelope("a")))

			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			got, ok, err := s.TryDequeue(ctx, time.Second)
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, "a", got.Payload)
		})
	})

	t.Run("will make a batch visible at once", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.Push(ctx, queue.Envelopes("a", "b", "c")...))

		n, err := s.Size(ctx)
		require.NoError(t, err)
		require.Equal(t, int64(3), n)
	})

	t.Run("will treat an empty push as a no-op", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.Push(ctx))

		n, err := s.Size(ctx)
		require.NoError(t, err)
		require.Zero(t, n)
	})

	t.Run("will eventually serve every pushed item", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		want := make(map[string]struct{})
		for i := range 20 {
			p := fmt.Sprintf("item-%d", i)
			want[p] = struct{}{}
			require.NoError(t, s.Push(ctx, queue.NewEnvelope(p)))
		}

		got := make(map[string]struct{})
		for range 20 {
			env, ok, err := s.TryDequeue(ctx, time.Second)
			require.NoError(t, err)
			require.True(t, ok)
			got[env.Payload] = struct{}{}
		}
		require.Equal(t, want, got)

		n, err := s.Size(ctx)
		require.NoError(t, err)
		require.Zero(t, n)
	})

	t.Run("will remove everything", func(t *testing.T) {
		t.Run("if cleared", func(t *testing.T) {
			s := newStore(t)
			ctx := context.Background()

			require.NoError(t, s.Push(ctx, queue.Envelopes("a", "b")...))
			require.NoError(t, s.Clear(ctx))

			n, err := s.Size(ctx)
			require.NoError(t, err)
			require.Zero(t, n)

			_, ok, err := s.TryDequeue(ctx, shortTimeout)
			require.NoError(t, err)
			require.False(t, ok)
		})
	})

	t.Run("will never hand the same envelope to two consumers", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		const items = 50
		for i := range items {
			require.NoError(t, s.Push(ctx, queue.NewEnvelope(fmt.Sprintf("item-%d", i))))
		}

		var mu sync.Mutex
		seen := make(map[uuid.UUID]int)

		var wg sync.WaitGroup
		for range 4 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for {
					env, ok, err := s.TryDequeue(ctx, shortTimeout)
					if !assert.NoError(t, err) || !ok {
						return
					}
					mu.Lock()
					seen[env.ID]++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		require.Len(t, seen, items)
		for id, n := range seen {
			require.Equal(t, 1, n, "envelope %s was delivered %d times", id, n)
		}
	})
}

// PairFactory returns two stores over the same empty queue. The second one
// decodes payloads as integers so it can not read what the first one pushes.
type PairFactory func(t *testing.T) (queue.Store[string], queue.Store[int])

// RunUndecodable checks that a store keeps an envelope whose payload it can
// not decode. Only stores which persist encoded envelopes need to pass it.
func RunUndecodable(t *testing.T, newStores PairFactory) {
	t.Run("will not remove an envelope it can not decode", func(t *testing.T) {
		producer, consumer := newStores(t)
		ctx := context.Background()

		env := queue.NewEnvelope("not-an-int")
		require.NoError(t, producer.Push(ctx, env))

		_, ok, err := consumer.TryDequeue(ctx, time.Second)
		require.Error(t, err)
		require.False(t, ok)

		n, err := consumer.Size(ctx)
		require.NoError(t, err)
		require.Equal(t, int64(1), n)

		got, ok, err := producer.TryDequeue(ctx, time.Second)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, env.ID, got.ID)
		require.Equal(t, "not-an-int", got.Payload)
	})

	t.Run("will fail a loop without losing the envelope", func(t *testing.T) {
		producer, consumer := newStores(t)
		ctx := context.Background()

		require.NoError(t, producer.Push(ctx, queue.NewEnvelope("not-an-int")))

		loop := queue.NewLoop(consumer, queue.DequeueTimeout(shortTimeout))
		loop.OnReceived(queue.ProcessorFunc[*queue.Envelope[int]](func(ctx context.Context, env *queue.Envelope[int]) error {
			return nil
		}))

		cctx, cancel := context.WithCancel(ctx)
		cancel()

		var storeErr queue.StoreError
		require.ErrorAs(t, loop.Run(cctx), &storeErr)
		require.Equal(t, "dequeue", storeErr.Op)

		n, err := producer.Size(ctx)
		require.NoError(t, err)
		require.Equal(t, int64(1), n)
	})
}
