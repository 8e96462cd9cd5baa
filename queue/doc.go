// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package queue implements a reliable consumption loop over a shared, durable queue.
//
// Items are wrapped in an [Envelope] which carries retry bookkeeping. A [Loop]
// repeatedly dequeues envelopes from a [Store], hands each one to the registered
// received hooks and then decides, through a [Policy], whether the item is
// acknowledged, requeued, dropped as exhausted or whether the run must abort.
//
// # Delivery
//
// Delivery is at least once. Every dequeued item is either fully handled
// (acknowledged, requeued or dropped after exhausting its retries) or still
// sitting in the store. Handlers are never preempted: cancellation is only
// observed between items.
//
//	store := memory.NewStore[Score]()
//	loop := queue.NewLoop(store,
//	    queue.MaxRetries(3),
//	    queue.ErrorThreshold(50),
//	)
//	loop.OnReceived(queue.ProcessorFunc[*queue.Envelope[Score]](func(ctx context.Context, env *queue.Envelope[Score]) error {
//	    return index(ctx, env.Payload)
//	}))
//	loop.OnError(queue.ErrorHandlerFunc[Score](func(ctx context.Context, err error, env queue.Envelope[Score]) {
//	    failures.Add(ctx, 1)
//	}))
//	err := loop.Run(ctx)
//
// # Cancellation
//
// Run returns nil once its context is cancelled and a dequeue attempt
// comes back empty. It returns a [ThresholdError] when the number of failures
// within the run exceeds the error threshold, and a [StoreError] when the
// store itself fails. Neither aborts the process; callers decide whether
// to start a new run.
//
// The loop never logs. Failures are only observable through the error hooks
// and the error returned from Run. [LogErrors] is an error hook which logs
// failures for callers who want that.
package queue
