// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package concurrent provides small concurrency safe containers.
package concurrent

import (
	"errors"
	"io"
	"sync"
)

// Cache is a concurrency safe map whose values are created at most once per key.
type Cache[K comparable, V any] struct {
	mu   sync.Mutex
	data map[K]V
	keys []K
}

// NewCache initializes an empty [Cache].
func NewCache[K comparable, V any]() *Cache[K, V] {
	return &Cache[K, V]{
		data: make(map[K]V),
	}
}

// Get returns the value stored for k.
func (c *Cache[K, V]) Get(k K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.data[k]
	return v, ok
}

// GetOr returns the value stored for k or stores the result of f.
// f is called under the cache lock so concurrent callers for the
// same key share a single value. Failed results are not stored.
func (c *Cache[K, V]) GetOr(k K, f func() (V, error)) (V, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.data[k]
	if ok {
		return v, nil
	}

	v, err := f()
	if err != nil {
		return v, err
	}

	c.data[k] = v
	c.keys = append(c.keys, k)
	return v, nil
}

// Len returns the number of stored values.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.data)
}

// Close empties the cache, closing every value which implements [io.Closer]
// in reverse insertion order.
func (c *Cache[K, V]) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	for i := len(c.keys) - 1; i >= 0; i-- {
		v := c.data[c.keys[i]]
		if closer, ok := any(v).(io.Closer); ok {
			errs = append(errs, closer.Close())
		}
	}
	clear(c.data)
	c.keys = nil
	return errors.Join(errs...)
}
