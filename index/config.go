// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package index

import (
	"context"

	"github.com/z5labs/drain/app"
	"github.com/z5labs/drain/config"
	"github.com/z5labs/drain/queue"
	"github.com/z5labs/drain/registry"
)

// URLFromEnv reads the index base URL from DRAIN_INDEX_URL.
func URLFromEnv() config.Reader[string] {
	return config.Env("DRAIN_INDEX_URL")
}

// Build returns a builder for a [Forwarder] against the index at url.
func Build[T any](url config.Reader[string], reg config.Reader[registry.Registry], codec queue.Codec[T]) app.Builder[*Forwarder[T]] {
	return app.BuilderFunc[*Forwarder[T]](func(ctx context.Context) (*Forwarder[T], error) {
		baseURL, err := config.Read(ctx, url)
		if err != nil {
			return nil, err
		}
		r, err := config.Read(ctx, reg)
		if err != nil {
			return nil, err
		}
		return NewForwarder(baseURL, r, codec)
	})
}
