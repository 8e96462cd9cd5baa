// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package app

import (
	"context"
	"errors"
	"io"
)

// HookFunc runs after the inner runtime returns.
type HookFunc func(context.Context) error

// HookRegistry collects post-run hooks while an application is being built.
type HookRegistry struct {
	hooks []HookFunc
}

// OnPostRun registers hook. Hooks run in registration order and every
// hook runs even if the runtime or an earlier hook failed.
func (r *HookRegistry) OnPostRun(hook HookFunc) {
	r.hooks = append(r.hooks, hook)
}

// CloseOnPostRun registers a hook which closes c.
func (r *HookRegistry) CloseOnPostRun(c io.Closer) {
	r.OnPostRun(func(context.Context) error {
		return c.Close()
	})
}

// HookRuntime runs an inner [Runtime] followed by its post-run hooks.
type HookRuntime struct {
	inner Runtime
	hooks []HookFunc
}

// Run implements the [Runtime] interface. The returned error joins the
// runtime error with every hook error.
func (rt HookRuntime) Run(ctx context.Context) error {
	errs := []error{rt.inner.Run(ctx)}

	// hooks must still run after the run context has been cancelled
	hookCtx := context.WithoutCancel(ctx)
	for _, hook := range rt.hooks {
		errs = append(errs, hook(hookCtx))
	}
	return errors.Join(errs...)
}

// WithHooks builds a [HookRuntime]. f registers cleanup next to the resources
// it creates:
//
//	builder := app.WithHooks(func(ctx context.Context, h *app.HookRegistry) (app.Runtime, error) {
//	    store, err := backend.OpenQueue[Doc](ctx, storeURL, codec)
//	    if err != nil {
//	        return nil, err
//	    }
//	    h.CloseOnPostRun(store)
//	    return queue.NewLoop(store), nil
//	})
//
// If f fails the hooks registered so far are run before the error is returned.
func WithHooks[T Runtime](f func(context.Context, *HookRegistry) (T, error)) Builder[HookRuntime] {
	return BuilderFunc[HookRuntime](func(ctx context.Context) (HookRuntime, error) {
		registry := &HookRegistry{}

		inner, err := f(ctx, registry)
		if err != nil {
			errs := []error{err}
			for _, hook := range registry.hooks {
				errs = append(errs, hook(context.WithoutCancel(ctx)))
			}
			return HookRuntime{}, errors.Join(errs...)
		}

		return HookRuntime{
			inner: inner,
			hooks: registry.hooks,
		}, nil
	})
}
