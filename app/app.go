// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package app provides the building blocks for composing and running applications.
//
// An application is described by a [Builder] which produces a [Runtime]. Builders
// are composed with [Bind], runtimes are composed with [Group], and post-run
// cleanup is registered through [WithHooks].
package app

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// Builder builds an application component.
type Builder[T any] interface {
	Build(context.Context) (T, error)
}

// BuilderFunc is an adapter to allow the use of ordinary functions as [Builder]s.
type BuilderFunc[T any] func(context.Context) (T, error)

// Build implements the [Builder] interface.
func (f BuilderFunc[T]) Build(ctx context.Context) (T, error) {
	return f(ctx)
}

// Bind chains two builders, feeding the output of the first into binder.
func Bind[A, B any](builder Builder[A], binder func(A) Builder[B]) Builder[B] {
	return BuilderFunc[B](func(ctx context.Context) (B, error) {
		a, err := builder.Build(ctx)
		if err != nil {
			var zero B
			return zero, err
		}
		return binder(a).Build(ctx)
	})
}

// Runtime is a runnable application component.
type Runtime interface {
	Run(context.Context) error
}

// RuntimeFunc is an adapter to allow the use of ordinary functions as [Runtime]s.
type RuntimeFunc func(context.Context) error

// Run implements the [Runtime] interface.
func (f RuntimeFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// ErrForcedShutdown is returned by [Run] when a second signal arrives
// before the runtime has returned.
var ErrForcedShutdown = errors.New("app: forced shutdown")

// BuildError is returned by [Run] when the application could not be built.
type BuildError struct {
	Err error
}

func (e BuildError) Error() string {
	return "app: failed to build: " + e.Err.Error()
}

func (e BuildError) Unwrap() error {
	return e.Err
}

// Run builds and runs the application. The first SIGINT or SIGTERM cancels
// the context given to both the builder and the runtime. Runtimes may keep
// working after that, e.g. to drain a queue, so a second signal makes Run
// return [ErrForcedShutdown] without waiting for them.
func Run[T Runtime](ctx context.Context, builder Builder[T]) error {
	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan struct{})
	defer close(done)

	forced := make(chan struct{})
	go func() {
		select {
		case <-done:
			return
		case <-sigs:
			cancel()
		}

		select {
		case <-done:
		case <-sigs:
			close(forced)
		}
	}()

	rt, err := builder.Build(runCtx)
	if err != nil {
		return BuildError{Err: err}
	}

	errc := make(chan error, 1)
	go func() {
		errc <- rt.Run(runCtx)
	}()

	select {
	case err := <-errc:
		return err
	case <-forced:
		return ErrForcedShutdown
	}
}

// LogError logs err with the given handler. A nil error is ignored.
func LogError(handler slog.Handler, err error) {
	if err == nil {
		return
	}

	log := slog.New(handler)
	log.Error("application error", slog.Any("error", err))
}
