// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package memory provides an in-process [queue.Store].
//
// It has the same semantics as the persistent stores but does not survive
// process restarts, which makes it the store of choice for tests and local development.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/z5labs/drain/queue"
)

// Store is an in-memory FIFO [queue.Store]. The zero value is not usable,
// use [NewStore].
type Store[T any] struct {
	mu     sync.Mutex
	items  []queue.Envelope[T]
	notify chan struct{}
}

// NewStore initializes an empty [Store].
func NewStore[T any]() *Store[T] {
	return &Store[T]{
		notify: make(chan struct{}),
	}
}

// Push implements the [queue.Store] interface.
func (s *Store[T]) Push(ctx context.Context, envs ...queue.Envelope[T]) error {
	if len(envs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = append(s.items, envs...)

	// wake every waiting consumer
	close(s.notify)
	s.notify = make(chan struct{})
	return nil
}

// TryDequeue implements the [queue.Store] interface.
func (s *Store[T]) TryDequeue(ctx context.Context, timeout time.Duration) (queue.Envelope[T], bool, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		env, ok, notify := s.pop()
		if ok {
			return env, true, nil
		}

		select {
		case <-notify:
		case <-timer.C:
			return queue.Envelope[T]{}, false, nil
		case <-ctx.Done():
			return queue.Envelope[T]{}, false, nil
		}
	}
}

func (s *Store[T]) pop() (queue.Envelope[T], bool, <-chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.items) == 0 {
		return queue.Envelope[T]{}, false, s.notify
	}

	env := s.items[0]
	s.items[0] = queue.Envelope[T]{}
	s.items = s.items[1:]
	return env, true, nil
}

// Size implements the [queue.Store] interface.
func (s *Store[T]) Size(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return int64(len(s.items)), nil
}

// Clear implements the [queue.Store] interface.
func (s *Store[T]) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = nil
	return nil
}
