// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package queue

import "github.com/google/uuid"

// Envelope wraps a payload with its retry bookkeeping.
//
// Attempts is the number of times this item has already been handed to the
// received hooks and failed, so it is 0 on the first delivery. A received hook
// may set Failed to send the item down the failure path without returning an error.
//
// An envelope handed to a hook is owned by the loop for the duration of that call.
// Only Failed is read back from it; requeued items are built from the
// dequeued value with [Envelope.Retry].
type Envelope[T any] struct {
	ID       uuid.UUID
	Payload  T
	Attempts int
	Failed   bool
}

// NewEnvelope wraps payload in a new [Envelope] with a random ID.
func NewEnvelope[T any](payload T) Envelope[T] {
	return Envelope[T]{
		ID:      uuid.New(),
		Payload: payload,
	}
}

// Envelopes wraps every payload in a new [Envelope].
func Envelopes[T any](payloads ...T) []Envelope[T] {
	envs := make([]Envelope[T], len(payloads))
	for i, p := range payloads {
		envs[i] = NewEnvelope(p)
	}
	return envs
}

// Retry returns an independent copy of e for the next delivery attempt.
// The ID and payload are kept, Attempts is incremented and Failed is cleared.
func (e Envelope[T]) Retry() Envelope[T] {
	return Envelope[T]{
		ID:       e.ID,
		Payload:  e.Payload,
		Attempts: e.Attempts + 1,
	}
}
