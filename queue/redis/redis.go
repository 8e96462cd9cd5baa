// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package redis provides a [queue.Store] backed by a Redis list.
//
// Envelopes are appended with RPUSH and removed with BLPOP so any number of
// processes may share a queue. The list is stored at the key
// "<namespace>:queue:<name>".
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/z5labs/drain/queue"

	"github.com/redis/go-redis/v9"
)

// Options configure a [Store].
type Options struct {
	namespace string
	name      string
}

// Option sets a value on [Options].
type Option func(*Options)

// Namespace sets the key prefix shared with the schema registry.
// The default is "drain".
func Namespace(ns string) Option {
	return func(o *Options) {
		o.namespace = ns
	}
}

// Queue sets the logical queue name. The default is "default".
func Queue(name string) Option {
	return func(o *Options) {
		o.name = name
	}
}

// Key returns the list key used for the given namespace and queue name.
func Key(namespace, name string) string {
	return namespace + ":queue:" + name
}

// Store is a [queue.Store] backed by a Redis list.
type Store[T any] struct {
	client redis.UniversalClient
	codec  queue.Codec[T]
	key    string
}

// NewStore initializes a [Store]. The client is not closed by the store.
func NewStore[T any](client redis.UniversalClient, codec queue.Codec[T], opts ...Option) *Store[T] {
	o := &Options{
		namespace: "drain",
		name:      "default",
	}
	for _, opt := range opts {
		opt(o)
	}

	return &Store[T]{
		client: client,
		codec:  codec,
		key:    Key(o.namespace, o.name),
	}
}

// Push implements the [queue.Store] interface. The whole batch is sent as a
// single RPUSH command.
func (s *Store[T]) Push(ctx context.Context, envs ...queue.Envelope[T]) error {
	if len(envs) == 0 {
		return nil
	}

	vals := make([]any, len(envs))
	for i, env := range envs {
		b, err := queue.MarshalEnvelope(s.codec, env)
		if err != nil {
			return err
		}
		vals[i] = b
	}

	err := s.client.RPush(ctx, s.key, vals...).Err()
	if err != nil {
		return fmt.Errorf("redis: failed to push to %s: %w", s.key, err)
	}
	return nil
}

// TryDequeue implements the [queue.Store] interface. A value which can not be
// decoded is pushed back to the head of the list before the error is returned.
//
// Cancelling a blocking command would drop the connection after Redis may have
// already popped a value, so ctx is not used to interrupt the wait. Once ctx is
// done only a non-blocking LPOP is issued. Redis waits in whole seconds so
// timeouts below one second are rounded up.
func (s *Store[T]) TryDequeue(ctx context.Context, timeout time.Duration) (queue.Envelope[T], bool, error) {
	var (
		val string
		err error
	)
	if ctx.Err() != nil {
		val, err = s.client.LPop(context.WithoutCancel(ctx), s.key).Result()
	} else {
		val, err = s.blockingPop(context.WithoutCancel(ctx), timeout)
	}
	if errors.Is(err, redis.Nil) {
		return queue.Envelope[T]{}, false, nil
	}
	if err != nil {
		return queue.Envelope[T]{}, false, fmt.Errorf("redis: failed to pop from %s: %w", s.key, err)
	}

	env, err := queue.UnmarshalEnvelope(s.codec, []byte(val))
	if err != nil {
		return queue.Envelope[T]{}, false, errors.Join(err, s.restore(context.WithoutCancel(ctx), val))
	}
	return env, true, nil
}

// restore puts a popped value back at the head of the list.
func (s *Store[T]) restore(ctx context.Context, val string) error {
	err := s.client.LPush(ctx, s.key, val).Err()
	if err != nil {
		return fmt.Errorf("redis: failed to restore undecodable envelope to %s: %w", s.key, err)
	}
	return nil
}

func (s *Store[T]) blockingPop(ctx context.Context, timeout time.Duration) (string, error) {
	res, err := s.client.BLPop(ctx, max(timeout, time.Second), s.key).Result()
	if err != nil {
		return "", err
	}
	// BLPOP replies with the key followed by the value.
	if len(res) != 2 {
		return "", fmt.Errorf("unexpected BLPOP reply with %d elements", len(res))
	}
	return res[1], nil
}

// Size implements the [queue.Store] interface.
func (s *Store[T]) Size(ctx context.Context) (int64, error) {
	n, err := s.client.LLen(ctx, s.key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis: failed to get length of %s: %w", s.key, err)
	}
	return n, nil
}

// Clear implements the [queue.Store] interface.
func (s *Store[T]) Clear(ctx context.Context) error {
	err := s.client.Del(ctx, s.key).Err()
	if err != nil {
		return fmt.Errorf("redis: failed to delete %s: %w", s.key, err)
	}
	return nil
}
