// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package queue

import (
	"context"
	"time"
)

// DefaultPollInterval is the delay between pop attempts used by stores
// whose backend can not block until an item arrives.
const DefaultPollInterval = 100 * time.Millisecond

// PopFunc makes a single non-blocking attempt to remove the next envelope.
type PopFunc[T any] func(context.Context) (Envelope[T], bool, error)

// Poll implements TryDequeue on top of a non-blocking pop by retrying every
// interval until timeout elapses or ctx is done. pop always receives a context
// which is never cancelled so an item removed by the backend is always returned.
// A done ctx still gets exactly one pop attempt.
func Poll[T any](ctx context.Context, timeout, interval time.Duration, pop PopFunc[T]) (Envelope[T], bool, error) {
	popCtx := context.WithoutCancel(ctx)
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	deadline := time.Now().Add(timeout)
	for {
		env, ok, err := pop(popCtx)
		if err != nil || ok {
			return env, ok, err
		}

		remaining := time.Until(deadline)
		if remaining <= 0 || ctx.Err() != nil {
			return Envelope[T]{}, false, nil
		}

		t := time.NewTimer(min(interval, remaining))
		select {
		case <-ctx.Done():
			t.Stop()
		case <-t.C:
		}
	}
}
