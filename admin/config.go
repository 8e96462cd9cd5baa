// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package admin

import (
	"context"
	"net/http"

	"github.com/z5labs/drain/app"
	"github.com/z5labs/drain/config"
	"github.com/z5labs/drain/queue"
	"github.com/z5labs/drain/registry"
)

// Build resolves the store and registry and returns an [Api] as an [http.Handler].
func Build[T any](store config.Reader[queue.Store[T]], reg config.Reader[registry.Registry], opts ...Option) app.Builder[http.Handler] {
	return app.BuilderFunc[http.Handler](func(ctx context.Context) (http.Handler, error) {
		s, err := config.Read(ctx, store)
		if err != nil {
			return nil, err
		}

		r, err := config.Read(ctx, reg)
		if err != nil {
			return nil, err
		}

		return NewApi(s, r, opts...), nil
	})
}
