// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package drain

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/z5labs/drain/app"

	"github.com/stretchr/testify/require"
)

func TestRun(t *testing.T) {
	t.Run("will call the error handler", func(t *testing.T) {
		t.Run("if the builder fails", func(t *testing.T) {
			buildErr := errors.New("build failed")
			builder := app.BuilderFunc[app.Runtime](func(ctx context.Context) (app.Runtime, error) {
				return nil, buildErr
			})

			var handled error
			err := Run(context.Background(), builder, OnError(ErrorHandlerFunc(func(err error) {
				handled = err
			})))
			require.ErrorIs(t, err, buildErr)
			require.ErrorIs(t, handled, buildErr)
		})

		t.Run("if the runtime fails", func(t *testing.T) {
			runErr := errors.New("run failed")
			builder := app.BuilderFunc[app.Runtime](func(ctx context.Context) (app.Runtime, error) {
				return app.RuntimeFunc(func(ctx context.Context) error {
					return runErr
				}), nil
			})

			var buf bytes.Buffer
			err := Run(context.Background(), builder, LogHandler(slog.NewJSONHandler(&buf, nil)))
			require.ErrorIs(t, err, runErr)
			require.Contains(t, buf.String(), "run failed")
		})
	})

	t.Run("will not call the error handler", func(t *testing.T) {
		t.Run("if the runtime succeeds", func(t *testing.T) {
			builder := app.BuilderFunc[app.Runtime](func(ctx context.Context) (app.Runtime, error) {
				return app.RuntimeFunc(func(ctx context.Context) error {
					return nil
				}), nil
			})

			called := false
			err := Run(context.Background(), builder, OnError(ErrorHandlerFunc(func(err error) {
				called = true
			})))
			require.NoError(t, err)
			require.False(t, called)
		})
	})
}

func TestLogger(t *testing.T) {
	require.NotNil(t, Logger("github.com/z5labs/drain"))
}
