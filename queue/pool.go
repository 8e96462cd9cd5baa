// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package queue

import (
	"context"

	"github.com/sourcegraph/conc/pool"
)

// Pool runs several loops against the same [Store] concurrently.
//
// A run aborting in one loop does not stop the others. Pool implements
// the app.Runtime interface.
type Pool[T any] struct {
	loops []*Loop[T]
}

// NewPool initializes a [Pool] of workers loops sharing the given options.
// At least one loop is always created.
func NewPool[T any](store Store[T], workers int, opts ...LoopOption) *Pool[T] {
	workers = max(workers, 1)

	loops := make([]*Loop[T], workers)
	for i := range loops {
		loops[i] = NewLoop(store, opts...)
	}
	return &Pool[T]{loops: loops}
}

// Len returns the number of loops in the pool.
func (p *Pool[T]) Len() int {
	return len(p.loops)
}

// OnReceived registers the hook with every loop. See [Loop.OnReceived].
func (p *Pool[T]) OnReceived(h Processor[*Envelope[T]]) {
	for _, l := range p.loops {
		l.OnReceived(h)
	}
}

// OnError registers the hook with every loop. See [Loop.OnError].
func (p *Pool[T]) OnError(h ErrorHandler[T]) {
	for _, l := range p.loops {
		l.OnError(h)
	}
}

// OnExhausted registers the hook with every loop. See [Loop.OnExhausted].
func (p *Pool[T]) OnExhausted(h ErrorHandler[T]) {
	for _, l := range p.loops {
		l.OnExhausted(h)
	}
}

// Healthy implements the [health.Monitor] interface.
// The pool is healthy only while every loop is.
func (p *Pool[T]) Healthy(ctx context.Context) (bool, error) {
	for _, l := range p.loops {
		healthy, err := l.Healthy(ctx)
		if !healthy || err != nil {
			return false, err
		}
	}
	return true, nil
}

// Run runs every loop and waits for all of them to return.
// The returned error joins the errors of every loop.
func (p *Pool[T]) Run(ctx context.Context) error {
	wp := pool.New().WithContext(ctx)
	for _, l := range p.loops {
		wp.Go(l.Run)
	}
	return wp.Wait()
}
