// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package pebble provides a durable single-process [queue.Store] backed by
// an embedded Pebble database.
//
// Envelopes are stored under "<namespace>/<name>/<sequence>" with the sequence
// encoded big endian so key order is push order. Only one [Store] per queue
// may use a database at a time.
package pebble

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/z5labs/drain/queue"

	"github.com/cockroachdb/pebble"
)

// Options configure a [Store].
type Options struct {
	namespace string
	name      string
	sync      bool
}

// Option sets a value on [Options].
type Option func(*Options)

// Namespace sets the key prefix. The default is "drain".
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

// NoSync stops the store from waiting for the WAL to be synced on every
// write. Items pushed right before a crash may be lost.
func NoSync() Option {
	return func(o *Options) {
		o.sync = false
	}
}

// Open opens or creates a Pebble database in dir.
func Open(dir string) (*pebble.DB, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("pebble: failed to open %s: %w", dir, err)
	}
	return db, nil
}

// Store is a [queue.Store] backed by Pebble.
type Store[T any] struct {
	db        *pebble.DB
	codec     queue.Codec[T]
	prefix    []byte
	upper     []byte
	writeOpts *pebble.WriteOptions

	mu     sync.Mutex
	next   uint64
	notify chan struct{}
}

// NewStore initializes a [Store]. Items left in db by a previous process
// are served first.
func NewStore[T any](db *pebble.DB, codec queue.Codec[T], opts ...Option) (*Store[T], error) {
	o := &Options{
		namespace: "drain",
		name:      "default",
		sync:      true,
	}
	for _, opt := range opts {
		opt(o)
	}

	prefix := []byte(o.namespace + "/" + o.name + "/")
	s := &Store[T]{
		db:        db,
		codec:     codec,
		prefix:    prefix,
		upper:     upperBound(prefix),
		writeOpts: pebble.NoSync,
		notify:    make(chan struct{}),
	}
	if o.sync {
		s.writeOpts = pebble.Sync
	}

	last, ok, err := s.lastSequence()
	if err != nil {
		return nil, err
	}
	if ok {
		s.next = last + 1
	}
	return s, nil
}

// upperBound returns the smallest key greater than every key starting with prefix.
func upperBound(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

func (s *Store[T]) key(seq uint64) []byte {
	k := make([]byte, len(s.prefix)+8)
	copy(k, s.prefix)
	binary.BigEndian.PutUint64(k[len(s.prefix):], seq)
	return k
}

func (s *Store[T]) iter() (*pebble.Iterator, error) {
	return s.db.NewIter(&pebble.IterOptions{
		LowerBound: s.prefix,
		UpperBound: s.upper,
	})
}

func (s *Store[T]) lastSequence() (uint64, bool, error) {
	it, err := s.iter()
	if err != nil {
		return 0, false, err
	}
	defer it.Close()

	if !it.Last() {
		return 0, false, nil
	}
	k := it.Key()
	if len(k) != len(s.prefix)+8 {
		return 0, false, fmt.Errorf("pebble: unexpected key %q", k)
	}
	return binary.BigEndian.Uint64(k[len(s.prefix):]), true, nil
}

// Push implements the [queue.Store] interface. The batch is committed at once.
func (s *Store[T]) Push(ctx context.Context, envs ...queue.Envelope[T]) error {
	if len(envs) == 0 {
		return nil
	}

	vals := make([][]byte, len(envs))
	for i, env := range envs {
		b, err := queue.MarshalEnvelope(s.codec, env)
		if err != nil {
			return err
		}
		vals[i] = b
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.db.NewBatch()
	defer b.Close()

	for i, v := range vals {
		err := b.Set(s.key(s.next+uint64(i)), v, nil)
		if err != nil {
			return err
		}
	}
	err := b.Commit(s.writeOpts)
	if err != nil {
		return fmt.Errorf("pebble: failed to commit push: %w", err)
	}
	s.next += uint64(len(vals))

	close(s.notify)
	s.notify = make(chan struct{})
	return nil
}

// TryDequeue implements the [queue.Store] interface. An envelope which can
// not be decoded is left at the head of the queue.
func (s *Store[T]) TryDequeue(ctx context.Context, timeout time.Duration) (queue.Envelope[T], bool, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		env, ok, notify, err := s.pop()
		if err != nil {
			return queue.Envelope[T]{}, false, err
		}
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

func (s *Store[T]) pop() (queue.Envelope[T], bool, <-chan struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, err := s.iter()
	if err != nil {
		return queue.Envelope[T]{}, false, nil, err
	}
	if !it.First() {
		return queue.Envelope[T]{}, false, s.notify, it.Close()
	}
	key := append([]byte(nil), it.Key()...)
	env, err := queue.UnmarshalEnvelope(s.codec, it.Value())
	err = errors.Join(err, it.Close())
	if err != nil {
		return queue.Envelope[T]{}, false, nil, err
	}

	err = s.db.Delete(key, s.writeOpts)
	if err != nil {
		return queue.Envelope[T]{}, false, nil, fmt.Errorf("pebble: failed to delete %q: %w", key, err)
	}
	return env, true, nil, nil
}

// Size implements the [queue.Store] interface. It counts keys and so
// is linear in the queue length.
func (s *Store[T]) Size(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, err := s.iter()
	if err != nil {
		return 0, err
	}

	var n int64
	for ok := it.First(); ok; ok = it.Next() {
		n++
	}
	return n, errors.Join(it.Error(), it.Close())
}

// Clear implements the [queue.Store] interface.
func (s *Store[T]) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.DeleteRange(s.prefix, s.upper, s.writeOpts)
	if err != nil {
		return fmt.Errorf("pebble: failed to clear: %w", err)
	}
	return nil
}
