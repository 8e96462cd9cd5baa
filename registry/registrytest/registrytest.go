// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package registrytest provides a conformance suite for [registry.Registry] implementations.
package registrytest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/z5labs/drain/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns an empty registry. It is called once per sub-test.
type Factory func(t *testing.T) registry.Registry

// Run exercises every rule of the [registry.Registry] contract against
// registries created by newRegistry.
func Run(t *testing.T, newRegistry Factory) {
	t.Run("will report no live version", func(t *testing.T) {
		t.Run("if none was set", func(t *testing.T) {
			r := newRegistry(t)

			_, err := r.Live(context.Background())
			require.ErrorIs(t, err, registry.ErrNoLiveVersion)
		})

		t.Run("if the live version was cleared", func(t *testing.T) {
			r := newRegistry(t)
			ctx := context.Background()

			require.NoError(t, r.Add(ctx, "v1"))
			require.NoError(t, r.SetLive(ctx, "v1"))
			require.NoError(t, r.ClearLive(ctx))

			_, err := r.Live(ctx)
			require.ErrorIs(t, err, registry.ErrNoLiveVersion)
		})
	})

	t.Run("will make an active version live", func(t *testing.T) {
		r := newRegistry(t)
		ctx := context.Background()

		require.NoError(t, r.Add(ctx, "v1"))
		require.NoError(t, r.SetLive(ctx, "v1"))

		live, err := r.Live(ctx)
		require.NoError(t, err)
		require.Equal(t, "v1", live)
	})

	t.Run("will switch the live version", func(t *testing.T) {
		r := newRegistry(t)
		ctx := context.Background()

		require.NoError(t, r.Add(ctx, "v1"))
		require.NoError(t, r.Add(ctx, "v2"))
		require.NoError(t, r.SetLive(ctx, "v1"))
		require.NoError(t, r.SetLive(ctx, "v2"))

		live, err := r.Live(ctx)
		require.NoError(t, err)
		require.Equal(t, "v2", live)

		require.NoError(t, r.Remove(ctx, "v1"))
	})

	t.Run("will list active versions in order", func(t *testing.T) {
		r := newRegistry(t)
		ctx := context.Background()

		require.NoError(t, r.Add(ctx, "v2"))
		require.NoError(t, r.Add(ctx, "v1"))
		require.NoError(t, r.Add(ctx, "v2"))

		active, err := r.Active(ctx)
		require.NoError(t, err)
		require.Equal(t, []string{"v1", "v2"}, active)

		require.NoError(t, r.Remove(ctx, "v2"))
		require.NoError(t, r.Remove(ctx, "v3"))

		active, err = r.Active(ctx)
		require.NoError(t, err)
		require.Equal(t, []string{"v1"}, active)
	})

	t.Run("will return an empty list", func(t *testing.T) {
		t.Run("if no version is active", func(t *testing.T) {
			r := newRegistry(t)

			active, err := r.Active(context.Background())
			require.NoError(t, err)
			require.Empty(t, active)
		})
	})

	t.Run("will refuse", func(t *testing.T) {
		t.Run("to remove the live version", func(t *testing.T) {
			r := newRegistry(t)
			ctx := context.Background()

			require.NoError(t, r.Add(ctx, "v1"))
			require.NoError(t, r.SetLive(ctx, "v1"))

			err := r.Remove(ctx, "v1")
			require.ErrorIs(t, err, registry.ErrVersionLive)

			active, err := r.Active(ctx)
			require.NoError(t, err)
			require.Equal(t, []string{"v1"}, active)
		})

		t.Run("to make an unknown version live", func(t *testing.T) {
			r := newRegistry(t)

			err := r.SetLive(context.Background(), "v9")
			require.ErrorIs(t, err, registry.ErrVersionNotActive)
		})

		t.Run("to make a removed version live", func(t *testing.T) {
			r := newRegistry(t)
			ctx := context.Background()

			require.NoError(t, r.Add(ctx, "v1"))
			require.NoError(t, r.Remove(ctx, "v1"))

			err := r.SetLive(ctx, "v1")
			require.ErrorIs(t, err, registry.ErrVersionNotActive)
		})

		t.Run("an empty version", func(t *testing.T) {
			r := newRegistry(t)

			err := r.Add(context.Background(), "")
			require.ErrorIs(t, err, registry.ErrInvalidVersion)
		})
	})

	t.Run("will never leave a live version inactive", func(t *testing.T) {
		r := newRegistry(t)
		ctx := context.Background()

		const versions = 8
		for i := range versions {
			require.NoError(t, r.Add(ctx, fmt.Sprintf("v%d", i)))
		}

		var wg sync.WaitGroup
		for i := range versions {
			v := fmt.Sprintf("v%d", i)
			wg.Add(2)
			go func() {
				defer wg.Done()
				err := r.SetLive(ctx, v)
				if err != nil {
					assert.ErrorIs(t, err, registry.ErrVersionNotActive)
				}
			}()
			go func() {
				defer wg.Done()
				err := r.Remove(ctx, v)
				if err != nil {
					assert.ErrorIs(t, err, registry.ErrVersionLive)
				}
			}()
		}
		wg.Wait()

		live, err := r.Live(ctx)
		if err != nil {
			require.ErrorIs(t, err, registry.ErrNoLiveVersion)
			return
		}

		active, err := r.Active(ctx)
		require.NoError(t, err)
		require.Contains(t, active, live)
	})
}
