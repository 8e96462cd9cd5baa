// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package queue

import (
	"context"
	"time"

	"github.com/z5labs/drain/app"
	"github.com/z5labs/drain/config"
)

// Config describes where a [Pool] reads its settings from.
type Config struct {
	Name           config.Reader[string]
	MaxRetries     config.Reader[int]
	ErrorThreshold config.Reader[int]
	DequeueTimeout config.Reader[time.Duration]
	Workers        config.Reader[int]
}

// NameFromEnv reads the queue name from DRAIN_QUEUE.
func NameFromEnv() config.Reader[string] {
	return config.Env("DRAIN_QUEUE")
}

// MaxRetriesFromEnv reads [Policy.MaxRetries] from DRAIN_MAX_RETRIES.
func MaxRetriesFromEnv() config.Reader[int] {
	return config.IntFromString(config.Env("DRAIN_MAX_RETRIES"))
}

// ErrorThresholdFromEnv reads [Policy.ErrorThreshold] from DRAIN_ERROR_THRESHOLD.
func ErrorThresholdFromEnv() config.Reader[int] {
	return config.IntFromString(config.Env("DRAIN_ERROR_THRESHOLD"))
}

// DequeueTimeoutFromEnv reads the dequeue timeout from DRAIN_DEQUEUE_TIMEOUT.
func DequeueTimeoutFromEnv() config.Reader[time.Duration] {
	return config.DurationFromString(config.Env("DRAIN_DEQUEUE_TIMEOUT"))
}

// WorkersFromEnv reads the number of concurrent loops from DRAIN_WORKERS.
func WorkersFromEnv() config.Reader[int] {
	return config.IntFromString(config.Env("DRAIN_WORKERS"))
}

// ConfigFromEnv returns a [Config] which reads every setting from the environment.
func ConfigFromEnv() Config {
	return Config{
		Name:           NameFromEnv(),
		MaxRetries:     MaxRetriesFromEnv(),
		ErrorThreshold: ErrorThresholdFromEnv(),
		DequeueTimeout: DequeueTimeoutFromEnv(),
		Workers:        WorkersFromEnv(),
	}
}

// Options resolves cfg into [LoopOption]s. Unset values keep their defaults:
//   - Name: "default"
//   - MaxRetries: 3
//   - ErrorThreshold: 50
//   - DequeueTimeout: 500ms
func (cfg Config) Options(ctx context.Context) []LoopOption {
	return []LoopOption{
		Name(config.MustOr(ctx, "default", cfg.Name)),
		MaxRetries(config.MustOr(ctx, DefaultMaxRetries, cfg.MaxRetries)),
		ErrorThreshold(config.MustOr(ctx, DefaultErrorThreshold, cfg.ErrorThreshold)),
		DequeueTimeout(config.MustOr(ctx, DefaultDequeueTimeout, cfg.DequeueTimeout)),
	}
}

// Build returns a builder for a [Pool] consuming from the store read from store.
// register is called with the pool so hooks can be attached before it runs.
// Workers defaults to 1.
func Build[T any](cfg Config, store config.Reader[Store[T]], register func(context.Context, *Pool[T]) error) app.Builder[*Pool[T]] {
	return app.BuilderFunc[*Pool[T]](func(ctx context.Context) (*Pool[T], error) {
		s, err := config.Read(ctx, store)
		if err != nil {
			return nil, err
		}

		workers := config.MustOr(ctx, 1, cfg.Workers)
		p := NewPool(s, workers, cfg.Options(ctx)...)
		if register == nil {
			return p, nil
		}
		if err := register(ctx, p); err != nil {
			return nil, err
		}
		return p, nil
	})
}
