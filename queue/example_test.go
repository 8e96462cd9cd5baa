// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package queue_test

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/z5labs/drain/queue"
	"github.com/z5labs/drain/queue/memory"
)

func Example() {
	store := memory.NewStore[string]()
	store.Push(context.Background(), queue.Envelopes("alpha", "bravo")...)

	loop := queue.NewLoop[string](store, queue.MaxRetries(1), queue.DequeueTimeout(10*time.Millisecond))
	loop.OnReceived(queue.ProcessorFunc[*queue.Envelope[string]](func(ctx context.Context, env *queue.Envelope[string]) error {
		if env.Payload == "bravo" && env.Attempts == 0 {
			return errors.New("not yet")
		}
		fmt.Println(env.Payload, env.Attempts)
		return nil
	}))
	loop.OnError(queue.ErrorHandlerFunc[string](func(ctx context.Context, err error, env queue.Envelope[string]) {
		fmt.Println("failed:", env.Payload, err)
	}))

	// A cancelled context drains what is left and then stops.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := loop.Run(ctx)
	if err != nil {
		fmt.Println(err)
		return
	}
	// Output: alpha 0
	// failed: bravo not yet
	// bravo 1
}
