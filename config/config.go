// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package config provides composable readers for application configuration.
//
// A [Reader] produces a [Value] which may or may not be set. Readers are
// combined with helpers like [Or], [Default] and [Map] so that a complete
// configuration can be described declaratively and only resolved when the
// application is built.
//
//	maxRetries := config.Default(3, config.IntFromString(config.Env("DRAIN_MAX_RETRIES")))
//	n := config.Must(ctx, maxRetries)
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// ErrValueNotSet is returned by [Read] when the [Reader] produced no value.
var ErrValueNotSet = errors.New("config: value not set")

// Value is the result of reading a configuration value.
// The zero value represents an unset value.
type Value[T any] struct {
	v   T
	set bool
}

// ValueOf returns a set [Value] holding v.
func ValueOf[T any](v T) Value[T] {
	return Value[T]{v: v, set: true}
}

// Value returns the underlying value and whether it was set.
func (v Value[T]) Value() (T, bool) {
	return v.v, v.set
}

// Reader reads a configuration value.
type Reader[T any] interface {
	Read(context.Context) (Value[T], error)
}

// ReaderFunc is an adapter to allow the use of ordinary functions as [Reader]s.
type ReaderFunc[T any] func(context.Context) (Value[T], error)

// Read implements the [Reader] interface.
func (f ReaderFunc[T]) Read(ctx context.Context) (Value[T], error) {
	return f(ctx)
}

// ReaderOf returns a [Reader] which always returns v.
func ReaderOf[T any](v T) Reader[T] {
	return ReaderFunc[T](func(ctx context.Context) (Value[T], error) {
		return ValueOf(v), nil
	})
}

// EmptyReader returns a [Reader] which never has a value.
func EmptyReader[T any]() Reader[T] {
	return ReaderFunc[T](func(ctx context.Context) (Value[T], error) {
		return Value[T]{}, nil
	})
}

// Env reads the named environment variable. An empty variable is treated as unset.
func Env(name string) Reader[string] {
	return ReaderFunc[string](func(ctx context.Context) (Value[string], error) {
		s, ok := os.LookupEnv(name)
		if !ok || s == "" {
			return Value[string]{}, nil
		}
		return ValueOf(s), nil
	})
}

// Or returns the first set value from the given readers.
// Nil readers are skipped.
func Or[T any](rs ...Reader[T]) Reader[T] {
	return ReaderFunc[T](func(ctx context.Context) (Value[T], error) {
		for _, r := range rs {
			if r == nil {
				continue
			}
			v, err := r.Read(ctx)
			if err != nil {
				return Value[T]{}, err
			}
			if _, ok := v.Value(); ok {
				return v, nil
			}
		}
		return Value[T]{}, nil
	})
}

// Default returns def whenever r does not produce a value.
func Default[T any](def T, r Reader[T]) Reader[T] {
	return Or(r, ReaderOf(def))
}

// Map transforms a set value read from r with f.
// Unset values are passed through untouched.
func Map[A, B any](r Reader[A], f func(context.Context, A) (B, error)) Reader[B] {
	return ReaderFunc[B](func(ctx context.Context) (Value[B], error) {
		if r == nil {
			return Value[B]{}, nil
		}
		va, err := r.Read(ctx)
		if err != nil {
			return Value[B]{}, err
		}
		a, ok := va.Value()
		if !ok {
			return Value[B]{}, nil
		}
		b, err := f(ctx, a)
		if err != nil {
			return Value[B]{}, err
		}
		return ValueOf(b), nil
	})
}

// Read resolves r and returns [ErrValueNotSet] if it did not produce a value.
func Read[T any](ctx context.Context, r Reader[T]) (T, error) {
	var zero T
	if r == nil {
		return zero, ErrValueNotSet
	}
	v, err := r.Read(ctx)
	if err != nil {
		return zero, err
	}
	t, ok := v.Value()
	if !ok {
		return zero, ErrValueNotSet
	}
	return t, nil
}

// Must is like [Read] but panics on any error, including an unset value.
func Must[T any](ctx context.Context, r Reader[T]) T {
	t, err := Read(ctx, r)
	if err != nil {
		panic(fmt.Errorf("config: must read: %w", err))
	}
	return t
}

// MustOr returns def when r is nil or unset and panics if r fails.
func MustOr[T any](ctx context.Context, def T, r Reader[T]) T {
	t, err := Read(ctx, r)
	if errors.Is(err, ErrValueNotSet) {
		return def
	}
	if err != nil {
		panic(fmt.Errorf("config: must read: %w", err))
	}
	return t
}
