// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package deadletter

import (
	"context"

	"github.com/z5labs/drain/config"
)

// Config describes where the archive bucket lives.
type Config struct {
	Endpoint  config.Reader[string]
	Bucket    config.Reader[string]
	AccessKey config.Reader[string]
	SecretKey config.Reader[string]
	Secure    config.Reader[bool]
}

// ConfigFromEnv reads every setting from DRAIN_DEADLETTER_* environment variables.
func ConfigFromEnv() Config {
	return Config{
		Endpoint:  config.Env("DRAIN_DEADLETTER_ENDPOINT"),
		Bucket:    config.Default("drain-deadletter", config.Env("DRAIN_DEADLETTER_BUCKET")),
		AccessKey: config.Env("DRAIN_DEADLETTER_ACCESS_KEY"),
		SecretKey: config.Env("DRAIN_DEADLETTER_SECRET_KEY"),
		Secure:    config.BoolFromString(config.Env("DRAIN_DEADLETTER_SECURE")),
	}
}

// Client opens the configured MinIO client and makes sure the bucket exists.
// It reports false if no endpoint is configured.
func (cfg Config) Client(ctx context.Context) (*MinIO, string, bool, error) {
	endpoint, err := config.Read(ctx, cfg.Endpoint)
	if err != nil {
		return nil, "", false, nil
	}
	bucket := config.MustOr(ctx, "drain-deadletter", cfg.Bucket)

	c, err := NewMinIO(
		endpoint,
		config.MustOr(ctx, "", cfg.AccessKey),
		config.MustOr(ctx, "", cfg.SecretKey),
		config.MustOr(ctx, false, cfg.Secure),
	)
	if err != nil {
		return nil, "", false, err
	}

	err = c.EnsureBucket(ctx, bucket)
	if err != nil {
		return nil, "", false, err
	}
	return c, bucket, true, nil
}
