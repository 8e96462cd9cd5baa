// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package drain provides the shared entrypoint helpers for drain based applications.
//
// The consumption engine itself lives in the queue package. This package only
// carries the logger factory used throughout the module and a small runner that
// builds an [app.Runtime], runs it and reports any failure.
package drain

import (
	"context"
	"log/slog"
	"os"

	"github.com/z5labs/drain/app"

	"go.opentelemetry.io/contrib/bridges/otelslog"
)

// Logger returns a [slog.Logger] which emits records to the global
// OpenTelemetry log provider under the given instrumentation scope name.
func Logger(name string) *slog.Logger {
	return otelslog.NewLogger(name)
}

// ErrorHandler handles an error returned while building or running an application.
type ErrorHandler interface {
	HandleError(error)
}

// ErrorHandlerFunc is an adapter to allow the use of ordinary functions as [ErrorHandler]s.
type ErrorHandlerFunc func(error)

// HandleError implements the [ErrorHandler] interface.
func (f ErrorHandlerFunc) HandleError(err error) {
	f(err)
}

// RunOptions are configurable parameters of [Run].
type RunOptions struct {
	errHandler ErrorHandler
}

// RunOption sets a value on [RunOptions].
type RunOption interface {
	ApplyRunOption(*RunOptions)
}

type runOptionFunc func(*RunOptions)

func (f runOptionFunc) ApplyRunOption(ro *RunOptions) {
	f(ro)
}

// OnError registers the [ErrorHandler] which is called when building or
// running the application fails. By default errors are logged as JSON to stdout.
func OnError(eh ErrorHandler) RunOption {
	return runOptionFunc(func(ro *RunOptions) {
		ro.errHandler = eh
	})
}

// LogHandler is a shorthand for [OnError] which logs the error with h.
func LogHandler(h slog.Handler) RunOption {
	return OnError(ErrorHandlerFunc(func(err error) {
		app.LogError(h, err)
	}))
}

// Run builds and runs the application described by builder.
// Signal handling is delegated to [app.Run].
func Run[T app.Runtime](ctx context.Context, builder app.Builder[T], opts ...RunOption) error {
	ro := &RunOptions{
		errHandler: ErrorHandlerFunc(func(err error) {
			app.LogError(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{}), err)
		}),
	}
	for _, opt := range opts {
		opt.ApplyRunOption(ro)
	}

	err := app.Run(ctx, builder)
	if err != nil {
		ro.errHandler.HandleError(err)
	}
	return err
}
