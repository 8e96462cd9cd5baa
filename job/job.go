// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package job runs a [Handler] once to completion instead of serving until
// the process is signalled. It backs the worker's batch mode, where the queue
// is drained and the process exits.
package job

import (
	"context"
	"log/slog"

	"github.com/z5labs/drain"
	"github.com/z5labs/drain/app"
)

// Handler represents the core logic of your job.
type Handler interface {
	Handle(context.Context) error
}

// HandlerFunc is an adapter to allow the use of ordinary functions as [Handler]s.
type HandlerFunc func(context.Context) error

// Handle implements the [Handler] interface.
func (f HandlerFunc) Handle(ctx context.Context) error {
	return f(ctx)
}

// App is an [app.Runtime] which runs a [Handler] once.
type App struct {
	log *slog.Logger
	h   Handler
}

// NewApp initializes a new [App].
func NewApp(h Handler) *App {
	return &App{
		log: drain.Logger("github.com/z5labs/drain/job"),
		h:   h,
	}
}

// Run implements the [app.Runtime] interface.
func (a *App) Run(ctx context.Context) error {
	a.log.InfoContext(ctx, "starting job")

	err := a.h.Handle(ctx)
	if err != nil {
		a.log.ErrorContext(ctx, "job failed", slog.Any("error", err))
		return err
	}

	a.log.InfoContext(ctx, "job completed")
	return nil
}

// Drain returns a [Handler] which runs rt as if it had already been asked
// to stop. A queue consumer handed to Drain processes what is currently
// queued, including requeued retries, and returns once the queue is empty.
func Drain(rt app.Runtime) Handler {
	return HandlerFunc(func(ctx context.Context) error {
		stopped, stop := context.WithCancel(ctx)
		stop()
		return rt.Run(stopped)
	})
}
