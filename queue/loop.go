// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/z5labs/drain/health"

	"github.com/z5labs/sdk-go/try"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultDequeueTimeout bounds how long a single dequeue attempt waits.
const DefaultDequeueTimeout = 500 * time.Millisecond

// LoopOptions are the configurable values of a [Loop].
type LoopOptions struct {
	name           string
	policy         Policy
	dequeueTimeout time.Duration
}

// LoopOption sets a value on [LoopOptions].
type LoopOption func(*LoopOptions)

// Name sets the logical queue name used in telemetry.
func Name(name string) LoopOption {
	return func(lo *LoopOptions) {
		lo.name = name
	}
}

// MaxRetries sets [Policy.MaxRetries]. The default is [DefaultMaxRetries].
func MaxRetries(n int) LoopOption {
	return func(lo *LoopOptions) {
		lo.policy.MaxRetries = n
	}
}

// ErrorThreshold sets [Policy.ErrorThreshold]. The default is [DefaultErrorThreshold].
func ErrorThreshold(n int) LoopOption {
	return func(lo *LoopOptions) {
		lo.policy.ErrorThreshold = n
	}
}

// DequeueTimeout bounds each dequeue attempt and with it how quickly
// cancellation is observed on an idle queue. The default is [DefaultDequeueTimeout].
func DequeueTimeout(d time.Duration) LoopOption {
	return func(lo *LoopOptions) {
		if d > 0 {
			lo.dequeueTimeout = d
		}
	}
}

// Loop consumes envelopes from a [Store] one at a time.
//
// Hooks may be registered at any time but only take effect for runs started
// afterwards. Several runs of the same Loop may execute concurrently; each has
// its own failure counter.
type Loop[T any] struct {
	store   Store[T]
	name    string
	policy  Policy
	timeout time.Duration
	metrics loopMetrics
	health  health.Binary

	mu        sync.Mutex
	received  []Processor[*Envelope[T]]
	errored   []ErrorHandler[T]
	exhausted []ErrorHandler[T]
}

// NewLoop initializes a [Loop] which consumes from store.
func NewLoop[T any](store Store[T], opts ...LoopOption) *Loop[T] {
	lo := &LoopOptions{
		name: "default",
		policy: Policy{
			MaxRetries:     DefaultMaxRetries,
			ErrorThreshold: DefaultErrorThreshold,
		},
		dequeueTimeout: DefaultDequeueTimeout,
	}
	for _, opt := range opts {
		opt(lo)
	}

	return &Loop[T]{
		store:   store,
		name:    lo.name,
		policy:  lo.policy,
		timeout: lo.dequeueTimeout,
		metrics: newLoopMetrics(),
	}
}

// OnReceived registers a hook which is called for every delivered item,
// including retries. Hooks run in registration order and the first one to
// return an error, or panic, fails the item.
func (l *Loop[T]) OnReceived(p Processor[*Envelope[T]]) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.received = append(l.received, p)
}

// OnError registers a hook which is called whenever an item fails.
func (l *Loop[T]) OnError(h ErrorHandler[T]) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errored = append(l.errored, h)
}

// OnExhausted registers a hook which is called after the error hooks
// when a failed item is permanently dropped.
func (l *Loop[T]) OnExhausted(h ErrorHandler[T]) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.exhausted = append(l.exhausted, h)
}

// Healthy implements the [health.Monitor] interface. A loop is healthy
// while a run is active and after a run which returned without error.
func (l *Loop[T]) Healthy(ctx context.Context) (bool, error) {
	return l.health.Healthy(ctx)
}

type hooks[T any] struct {
	received  []Processor[*Envelope[T]]
	errored   []ErrorHandler[T]
	exhausted []ErrorHandler[T]
}

func (l *Loop[T]) hooks() hooks[T] {
	l.mu.Lock()
	defer l.mu.Unlock()
	return hooks[T]{
		received:  append([]Processor[*Envelope[T]](nil), l.received...),
		errored:   append([]ErrorHandler[T](nil), l.errored...),
		exhausted: append([]ErrorHandler[T](nil), l.exhausted...),
	}
}

// Run consumes items until ctx is cancelled and a dequeue attempt comes back
// empty, in which case it returns nil. Items are never interrupted: ctx is only
// checked between items and to cut an idle dequeue wait short.
//
// Run returns a [ThresholdError] if more items fail than the error threshold
// allows and a [StoreError] if the store fails. Items remaining in the store
// are untouched in both cases.
func (l *Loop[T]) Run(ctx context.Context) error {
	l.health.MarkHealthy()

	err := l.run(ctx)
	if err != nil {
		l.health.MarkUnhealthy()
	}
	return err
}

func (l *Loop[T]) run(ctx context.Context) error {
	hs := l.hooks()

	// Writes to the store and hook calls must finish even after ctx is cancelled.
	workCtx := context.WithoutCancel(ctx)

	failures := 0
	for {
		if ctx.Err() != nil {
			n, err := l.store.Size(workCtx)
			if err != nil {
				return StoreError{Op: "size", Err: err}
			}
			if n == 0 {
				return nil
			}
		}

		env, ok, err := l.store.TryDequeue(ctx, l.timeout)
		if err != nil {
			if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				return nil
			}
			return StoreError{Op: "dequeue", Err: err}
		}
		if !ok {
			if ctx.Err() != nil {
				return nil
			}
			continue
		}

		err = l.handle(workCtx, hs, env, &failures)
		if err != nil {
			return err
		}
	}
}

func (l *Loop[T]) handle(ctx context.Context, hs hooks[T], env Envelope[T], failures *int) error {
	spanCtx, span := tracer().Start(
		ctx,
		"queue.process",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.destination.name", l.name),
			attribute.String("messaging.message.id", env.ID.String()),
			attribute.Int("drain.envelope.attempts", env.Attempts),
		),
	)
	defer span.End()

	inflight := env
	err := dispatch(spanCtx, hs.received, &inflight)
	if err == nil && inflight.Failed {
		err = ErrMarkedFailed
	}
	if err == nil {
		l.metrics.recordOutcome(spanCtx, l.name, Acknowledge)
		return nil
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	failed := env
	failed.Failed = true
	for _, h := range hs.errored {
		h.HandleError(spanCtx, err, failed)
	}

	*failures++
	decision := l.policy.Decide(err, env.Attempts, *failures)
	l.metrics.recordOutcome(spanCtx, l.name, decision)

	switch decision {
	case AbortRun:
		l.metrics.recordAbort(spanCtx, l.name)
		return ThresholdError{
			Failures:  *failures,
			Threshold: l.policy.ErrorThreshold,
			Cause:     err,
		}
	case DropExhausted:
		for _, h := range hs.exhausted {
			h.HandleError(spanCtx, err, failed)
		}
		return nil
	default:
		err := l.store.Push(spanCtx, env.Retry())
		if err != nil {
			return StoreError{Op: "push", Err: err}
		}
		return nil
	}
}

func dispatch[T any](ctx context.Context, ps []Processor[*Envelope[T]], env *Envelope[T]) error {
	for _, p := range ps {
		err := process(ctx, p, env)
		if err != nil {
			return err
		}
	}
	return nil
}

func process[T any](ctx context.Context, p Processor[*Envelope[T]], env *Envelope[T]) (err error) {
	defer try.Recover(&err)
	return p.Process(ctx, env)
}
