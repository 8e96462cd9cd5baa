// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package queue

import (
	"context"
	"time"
)

// Store is a durable queue of envelopes shared by any number of producers and consumers.
//
// Implementations must be safe for concurrent use, including across processes
// when the backing storage is shared.
type Store[T any] interface {
	// Push atomically appends envs. A batch is either entirely visible
	// to consumers or not at all. Pushing nothing is a no-op.
	Push(ctx context.Context, envs ...Envelope[T]) error

	// TryDequeue atomically removes and returns the next envelope. It reports
	// false if nothing became available within timeout. Two concurrent callers
	// never receive the same envelope.
	//
	// A done ctx may cut the wait short but an item that is already available
	// is still returned, and an item is never removed without being returned.
	TryDequeue(ctx context.Context, timeout time.Duration) (Envelope[T], bool, error)

	// Size returns the approximate number of queued envelopes.
	Size(ctx context.Context) (int64, error)

	// Clear removes every queued envelope.
	Clear(ctx context.Context) error
}

// Codec converts payloads to and from bytes for stores that persist them.
type Codec[T any] interface {
	Encode(T) ([]byte, error)
	Decode([]byte) (T, error)
}
