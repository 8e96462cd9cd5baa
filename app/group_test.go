// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGroup(t *testing.T) {
	t.Run("will cancel the remaining runtimes", func(t *testing.T) {
		t.Run("if one runtime fails", func(t *testing.T) {
			runErr := errors.New("failed")

			stopped := make(chan struct{})
			rt := Group(
				RuntimeFunc(func(ctx context.Context) error {
					return runErr
				}),
				RuntimeFunc(func(ctx context.Context) error {
					<-ctx.Done()
					close(stopped)
					return ctx.Err()
				}),
			)

			err := rt.Run(context.Background())
			require.ErrorIs(t, err, runErr)

			select {
			case <-stopped:
			case <-time.After(time.Second):
				t.Fatal("expected the second runtime to be cancelled")
			}
		})
	})

	t.Run("will return nil", func(t *testing.T) {
		t.Run("if the runtimes only return context errors", func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			rt := Group(
				RuntimeFunc(func(ctx context.Context) error {
					<-ctx.Done()
					return ctx.Err()
				}),
				RuntimeFunc(func(ctx context.Context) error {
					return nil
				}),
			)

			require.NoError(t, rt.Run(ctx))
		})
	})

	t.Run("will return an error", func(t *testing.T) {
		t.Run("if a runtime panics", func(t *testing.T) {
			rt := Group(RuntimeFunc(func(ctx context.Context) error {
				panic("boom")
			}))

			require.Error(t, rt.Run(context.Background()))
		})
	})
}

func TestBind(t *testing.T) {
	t.Run("will not call the binder", func(t *testing.T) {
		t.Run("if the first builder fails", func(t *testing.T) {
			buildErr := errors.New("failed")
			called := false
			b := Bind(
				BuilderFunc[int](func(ctx context.Context) (int, error) { return 0, buildErr }),
				func(int) Builder[string] {
					called = true
					return BuilderFunc[string](func(ctx context.Context) (string, error) { return "", nil })
				},
			)

			_, err := b.Build(context.Background())
			require.ErrorIs(t, err, buildErr)
			require.False(t, called)
		})
	})
}
