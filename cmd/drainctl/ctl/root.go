// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package ctl contains the cobra commands of drainctl.
package ctl

import (
	"context"
	"encoding/json"

	"github.com/z5labs/drain/backend"
	"github.com/z5labs/drain/config"
	"github.com/z5labs/drain/queue"
	"github.com/z5labs/drain/queue/codec"
	"github.com/z5labs/drain/registry"

	"github.com/spf13/cobra"
)

// Options configure the root command.
type Options struct {
	backends *backend.Backends
}

// Option sets a value on [Options].
type Option func(*Options)

// Backends makes every command use b instead of opening its own clients.
// b is not closed by the command.
func Backends(b *backend.Backends) Option {
	return func(o *Options) {
		o.backends = b
	}
}

type cli struct {
	namespace   string
	storeURL    string
	registryURL string
	queue       string

	backends *backend.Backends
	owned    bool
}

// NewRoot constructs the drainctl root command. Flag defaults are read from
// the same environment variables as the worker.
func NewRoot(opts ...Option) *cobra.Command {
	o := &Options{}
	for _, opt := range opts {
		opt(o)
	}

	c := &cli{backends: o.backends}

	ctx := context.Background()
	root := &cobra.Command{
		Use:           "drainctl",
		Short:         "Administer drain queues and schema versions",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if c.backends == nil {
				c.backends = backend.New(c.namespace)
				c.owned = true
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			if !c.owned {
				return nil
			}
			return c.backends.Close()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.namespace, "namespace", config.MustOr(ctx, "drain", backend.NamespaceFromEnv()), "Key namespace shared with the workers")
	flags.StringVar(&c.storeURL, "store-url", config.MustOr(ctx, "memory://", backend.StoreURLFromEnv()), "Queue store URL")
	flags.StringVar(&c.registryURL, "registry-url", config.MustOr(ctx, "", config.Env("DRAIN_REGISTRY_URL")), "Schema registry URL (defaults to the store URL)")
	flags.StringVarP(&c.queue, "queue", "q", config.MustOr(ctx, "default", queue.NameFromEnv()), "Queue name")

	root.AddCommand(
		newQueueCommand(c),
		newSchemaCommand(c),
	)
	return root
}

func (c *cli) store(ctx context.Context) (queue.Store[json.RawMessage], error) {
	return backend.OpenQueue(ctx, c.backends, c.storeURL, c.queue, queue.Codec[json.RawMessage](codec.JSON[json.RawMessage]{}))
}

func (c *cli) registry(ctx context.Context) (registry.Registry, error) {
	u := c.registryURL
	if u == "" {
		u = c.storeURL
	}
	return c.backends.OpenRegistry(ctx, u)
}
