// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package backend

import (
	"context"

	"github.com/z5labs/drain/config"
	"github.com/z5labs/drain/queue"
	"github.com/z5labs/drain/registry"
)

// NamespaceFromEnv reads the namespace from DRAIN_NAMESPACE, defaulting to "drain".
func NamespaceFromEnv() config.Reader[string] {
	return config.Default("drain", config.Env("DRAIN_NAMESPACE"))
}

// StoreURLFromEnv reads the queue store URL from DRAIN_STORE_URL, defaulting to "memory://".
func StoreURLFromEnv() config.Reader[string] {
	return config.Default("memory://", config.Env("DRAIN_STORE_URL"))
}

// RegistryURLFromEnv reads the registry URL from DRAIN_REGISTRY_URL and falls
// back to the store URL.
func RegistryURLFromEnv() config.Reader[string] {
	return config.Or(config.Env("DRAIN_REGISTRY_URL"), StoreURLFromEnv())
}

// QueueReader returns a reader which opens the named queue at the URL read from rawURL.
// The queue name defaults to "default".
func QueueReader[T any](b *Backends, rawURL, name config.Reader[string], codec queue.Codec[T]) config.Reader[queue.Store[T]] {
	return config.ReaderFunc[queue.Store[T]](func(ctx context.Context) (config.Value[queue.Store[T]], error) {
		u, err := config.Read(ctx, rawURL)
		if err != nil {
			return config.Value[queue.Store[T]]{}, err
		}

		s, err := OpenQueue(ctx, b, u, config.MustOr(ctx, "default", name), codec)
		if err != nil {
			return config.Value[queue.Store[T]]{}, err
		}
		return config.ValueOf(s), nil
	})
}

// RegistryReader returns a reader which opens the registry at the URL read from rawURL.
func RegistryReader(b *Backends, rawURL config.Reader[string]) config.Reader[registry.Registry] {
	return config.Map(rawURL, func(ctx context.Context, u string) (registry.Registry, error) {
		return b.OpenRegistry(ctx, u)
	})
}
