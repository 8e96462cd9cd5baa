// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

//go:build unix

package app

import (
	"context"
	"errors"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signalSelf(t *testing.T) {
	t.Helper()
	assert.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGTERM))
}

func TestRun(t *testing.T) {
	t.Run("will return a build error", func(t *testing.T) {
		t.Run("if the builder fails", func(t *testing.T) {
			buildErr := errors.New("failed")
			b := BuilderFunc[Runtime](func(ctx context.Context) (Runtime, error) {
				return nil, buildErr
			})

			err := Run[Runtime](context.Background(), b)

			var be BuildError
			require.ErrorAs(t, err, &be)
			require.ErrorIs(t, err, buildErr)
		})
	})

	t.Run("will cancel the runtime context", func(t *testing.T) {
		t.Run("if a signal is received", func(t *testing.T) {
			b := BuilderFunc[Runtime](func(ctx context.Context) (Runtime, error) {
				return RuntimeFunc(func(ctx context.Context) error {
					signalSelf(t)
					<-ctx.Done()
					return nil
				}), nil
			})

			require.NoError(t, Run[Runtime](context.Background(), b))
		})
	})

	t.Run("will stop waiting for the runtime", func(t *testing.T) {
		t.Run("if a second signal is received", func(t *testing.T) {
			release := make(chan struct{})
			defer close(release)

			b := BuilderFunc[Runtime](func(ctx context.Context) (Runtime, error) {
				return RuntimeFunc(func(ctx context.Context) error {
					signalSelf(t)
					<-ctx.Done()
					signalSelf(t)
					<-release
					return nil
				}), nil
			})

			errc := make(chan error, 1)
			go func() {
				errc <- Run[Runtime](context.Background(), b)
			}()

			select {
			case err := <-errc:
				require.ErrorIs(t, err, ErrForcedShutdown)
			case <-time.After(5 * time.Second):
				t.Fatal("run did not return")
			}
		})
	})
}
