// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package queue

import (
	"context"
	"log/slog"
)

// Processor implements the business logic for a delivered item.
//
// A [Loop] registers received hooks as Processor[*Envelope[T]].
type Processor[T any] interface {
	Process(context.Context, T) error
}

// ProcessorFunc is an adapter to allow the use of ordinary functions as [Processor]s.
type ProcessorFunc[T any] func(context.Context, T) error

// Process implements the [Processor] interface.
func (f ProcessorFunc[T]) Process(ctx context.Context, t T) error {
	return f(ctx, t)
}

// PayloadProcessor adapts a [Processor] of bare payloads into a received hook.
func PayloadProcessor[T any](p Processor[T]) Processor[*Envelope[T]] {
	return ProcessorFunc[*Envelope[T]](func(ctx context.Context, env *Envelope[T]) error {
		return p.Process(ctx, env.Payload)
	})
}

// ErrorHandler observes failed items.
//
// The envelope has Failed set and Attempts as it was when the item was delivered.
type ErrorHandler[T any] interface {
	HandleError(context.Context, error, Envelope[T])
}

// ErrorHandlerFunc is an adapter to allow the use of ordinary functions as [ErrorHandler]s.
type ErrorHandlerFunc[T any] func(context.Context, error, Envelope[T])

// HandleError implements the [ErrorHandler] interface.
func (f ErrorHandlerFunc[T]) HandleError(ctx context.Context, err error, env Envelope[T]) {
	f(ctx, err, env)
}

// LogErrors returns an [ErrorHandler] which logs every failure with log.
func LogErrors[T any](log *slog.Logger) ErrorHandler[T] {
	return ErrorHandlerFunc[T](func(ctx context.Context, err error, env Envelope[T]) {
		log.ErrorContext(
			ctx,
			"failed to process queue item",
			EnvelopeIDAttr(env.ID.String()),
			AttemptsAttr(env.Attempts),
			slog.Any("error", err),
		)
	})
}

// QueueAttr returns a slog attribute for the logical queue name.
func QueueAttr(name string) slog.Attr {
	return slog.String("messaging.destination.name", name)
}

// EnvelopeIDAttr returns a slog attribute for an envelope ID.
func EnvelopeIDAttr(id string) slog.Attr {
	return slog.String("messaging.message.id", id)
}

// AttemptsAttr returns a slog attribute for the number of previous failed attempts.
func AttemptsAttr(n int) slog.Attr {
	return slog.Int("drain.envelope.attempts", n)
}
