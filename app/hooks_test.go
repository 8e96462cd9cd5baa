// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package app

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type closerFunc func() error

func (f closerFunc) Close() error {
	return f()
}

func TestWithHooks(t *testing.T) {
	t.Run("will run hooks in registration order", func(t *testing.T) {
		t.Run("after the runtime returns", func(t *testing.T) {
			var order []string
			builder := WithHooks(func(ctx context.Context, h *HookRegistry) (Runtime, error) {
				h.OnPostRun(func(ctx context.Context) error {
					order = append(order, "first")
					return nil
				})
				h.CloseOnPostRun(closerFunc(func() error {
					order = append(order, "second")
					return nil
				}))
				return RuntimeFunc(func(ctx context.Context) error {
					order = append(order, "runtime")
					return nil
				}), nil
			})

			rt, err := builder.Build(context.Background())
			require.NoError(t, err)
			require.NoError(t, rt.Run(context.Background()))
			require.Equal(t, []string{"runtime", "first", "second"}, order)
		})
	})

	t.Run("will join every error", func(t *testing.T) {
		t.Run("if the runtime and hooks fail", func(t *testing.T) {
			runErr := errors.New("run")
			hookErr1 := errors.New("hook 1")
			hookErr2 := errors.New("hook 2")

			builder := WithHooks(func(ctx context.Context, h *HookRegistry) (Runtime, error) {
				h.OnPostRun(func(ctx context.Context) error { return hookErr1 })
				h.OnPostRun(func(ctx context.Context) error { return hookErr2 })
				return RuntimeFunc(func(ctx context.Context) error { return runErr }), nil
			})

			rt, err := builder.Build(context.Background())
			require.NoError(t, err)

			err = rt.Run(context.Background())
			require.ErrorIs(t, err, runErr)
			require.ErrorIs(t, err, hookErr1)
			require.ErrorIs(t, err, hookErr2)
		})
	})

	t.Run("will give hooks a live context", func(t *testing.T) {
		t.Run("if the run context was cancelled", func(t *testing.T) {
			var hookCtxErr error
			builder := WithHooks(func(ctx context.Context, h *HookRegistry) (Runtime, error) {
				h.OnPostRun(func(ctx context.Context) error {
					hookCtxErr = ctx.Err()
					return nil
				})
				return RuntimeFunc(func(ctx context.Context) error { return nil }), nil
			})

			rt, err := builder.Build(context.Background())
			require.NoError(t, err)

			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			require.NoError(t, rt.Run(ctx))
			require.NoError(t, hookCtxErr)
		})
	})

	t.Run("will run registered hooks", func(t *testing.T) {
		t.Run("if the build function fails", func(t *testing.T) {
			buildErr := errors.New("build")
			closed := false
			builder := WithHooks(func(ctx context.Context, h *HookRegistry) (Runtime, error) {
				h.OnPostRun(func(ctx context.Context) error {
					closed = true
					return nil
				})
				return nil, buildErr
			})

			_, err := builder.Build(context.Background())
			require.ErrorIs(t, err, buildErr)
			require.True(t, closed)
		})
	})
}
