// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package config

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEnv(t *testing.T) {
	t.Run("will return a set value", func(t *testing.T) {
		t.Run("if the environment variable is non-empty", func(t *testing.T) {
			t.Setenv("DRAIN_TEST_ENV", "hello")

			v, err := Read(context.Background(), Env("DRAIN_TEST_ENV"))
			require.NoError(t, err)
			require.Equal(t, "hello", v)
		})
	})

	t.Run("will return an unset value", func(t *testing.T) {
		t.Run("if the environment variable is empty", func(t *testing.T) {
			t.Setenv("DRAIN_TEST_ENV", "")

			_, err := Read(context.Background(), Env("DRAIN_TEST_ENV"))
			require.ErrorIs(t, err, ErrValueNotSet)
		})
	})
}

func TestOr(t *testing.T) {
	t.Run("will return the first set value", func(t *testing.T) {
		t.Run("if earlier readers are unset or nil", func(t *testing.T) {
			r := Or(nil, EmptyReader[int](), ReaderOf(2), ReaderOf(3))

			v, err := Read(context.Background(), r)
			require.NoError(t, err)
			require.Equal(t, 2, v)
		})
	})

	t.Run("will return an error", func(t *testing.T) {
		t.Run("if a reader fails before a value is found", func(t *testing.T) {
			readErr := errors.New("failed")
			r := Or(
				ReaderFunc[int](func(ctx context.Context) (Value[int], error) {
					return Value[int]{}, readErr
				}),
				ReaderOf(1),
			)

			_, err := Read(context.Background(), r)
			require.ErrorIs(t, err, readErr)
		})
	})
}

func TestMap(t *testing.T) {
	t.Run("will not call the mapping function", func(t *testing.T) {
		t.Run("if the value is unset", func(t *testing.T) {
			called := false
			r := Map(EmptyReader[string](), func(ctx context.Context, s string) (int, error) {
				called = true
				return 0, nil
			})

			_, err := Read(context.Background(), r)
			require.ErrorIs(t, err, ErrValueNotSet)
			require.False(t, called)
		})
	})

	t.Run("will return the parse error", func(t *testing.T) {
		t.Run("if the string is not a valid duration", func(t *testing.T) {
			_, err := Read(context.Background(), DurationFromString(ReaderOf("soon")))
			require.Error(t, err)
			require.NotErrorIs(t, err, ErrValueNotSet)
		})
	})
}

func TestMustOr(t *testing.T) {
	t.Run("will return the default", func(t *testing.T) {
		t.Run("if the reader is nil", func(t *testing.T) {
			v := MustOr[time.Duration](context.Background(), time.Second, nil)
			require.Equal(t, time.Second, v)
		})

		t.Run("if the reader is empty", func(t *testing.T) {
			v := MustOr(context.Background(), 10, EmptyReader[int]())
			require.Equal(t, 10, v)
		})
	})

	t.Run("will panic", func(t *testing.T) {
		t.Run("if the reader fails", func(t *testing.T) {
			require.Panics(t, func() {
				MustOr(context.Background(), 1, IntFromString(ReaderOf("one")))
			})
		})
	})
}

func TestMust(t *testing.T) {
	t.Run("will panic", func(t *testing.T) {
		t.Run("if the value is unset", func(t *testing.T) {
			require.Panics(t, func() {
				Must(context.Background(), EmptyReader[string]())
			})
		})
	})
}

func TestListFromString(t *testing.T) {
	t.Run("will drop empty elements", func(t *testing.T) {
		v, err := Read(context.Background(), ListFromString(",", ReaderOf("a, b,,c ")))
		require.NoError(t, err)
		require.Equal(t, []string{"a", "b", "c"}, v)
	})
}

func TestBoolFromString(t *testing.T) {
	v, err := Read(context.Background(), BoolFromString(ReaderOf("true")))
	require.NoError(t, err)
	require.True(t, v)
}

func TestFloat64FromString(t *testing.T) {
	v, err := Read(context.Background(), Float64FromString(ReaderOf("0.25")))
	require.NoError(t, err)
	require.Equal(t, 0.25, v)
}

func TestInt64FromString(t *testing.T) {
	v, err := Read(context.Background(), Int64FromString(ReaderOf(" 42 ")))
	require.NoError(t, err)
	require.Equal(t, int64(42), v)
}
