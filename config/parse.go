// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package config

import (
	"context"
	"encoding/json"
	"io"
	"strconv"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"
)

// IntFromString parses the string value as a base 10 int.
func IntFromString(r Reader[string]) Reader[int] {
	return Map(r, func(ctx context.Context, s string) (int, error) {
		return strconv.Atoi(strings.TrimSpace(s))
	})
}

// Int64FromString parses the string value as a base 10 int64.
func Int64FromString(r Reader[string]) Reader[int64] {
	return Map(r, func(ctx context.Context, s string) (int64, error) {
		return strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	})
}

// Float64FromString parses the string value as a float64.
func Float64FromString(r Reader[string]) Reader[float64] {
	return Map(r, func(ctx context.Context, s string) (float64, error) {
		return strconv.ParseFloat(strings.TrimSpace(s), 64)
	})
}

// BoolFromString parses the string value with [strconv.ParseBool].
func BoolFromString(r Reader[string]) Reader[bool] {
	return Map(r, func(ctx context.Context, s string) (bool, error) {
		return strconv.ParseBool(strings.TrimSpace(s))
	})
}

// DurationFromString parses the string value with [time.ParseDuration].
func DurationFromString(r Reader[string]) Reader[time.Duration] {
	return Map(r, func(ctx context.Context, s string) (time.Duration, error) {
		return time.ParseDuration(strings.TrimSpace(s))
	})
}

// ListFromString splits the string value on sep and drops empty elements.
func ListFromString(sep string, r Reader[string]) Reader[[]string] {
	return Map(r, func(ctx context.Context, s string) ([]string, error) {
		parts := strings.Split(s, sep)
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			out = append(out, p)
		}
		return out, nil
	})
}

// UnmarshalJSON decodes the JSON document read from r into a T.
func UnmarshalJSON[T any, R io.Reader](r Reader[R]) Reader[T] {
	return Map(r, func(ctx context.Context, rd R) (T, error) {
		var t T
		err := json.NewDecoder(rd).Decode(&t)
		return t, err
	})
}

// UnmarshalYAML decodes the YAML document read from r into a T.
func UnmarshalYAML[T any, R io.Reader](r Reader[R]) Reader[T] {
	return Map(r, func(ctx context.Context, rd R) (T, error) {
		var t T
		err := yaml.NewDecoder(rd).Decode(&t)
		return t, err
	})
}
