// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package ctl

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/z5labs/drain/registry"

	"github.com/spf13/cobra"
)

func newSchemaCommand(c *cli) *cobra.Command {
	schemaCmd := &cobra.Command{
		Use:     "schema",
		Aliases: []string{"schemas"},
		Short:   "Schema version operations",
		Long: `Schema version operations.

A version must be added before it can be made live and the live version
cannot be removed until another version is made live or it is cleared.`,
	}

	schemaCmd.AddCommand(
		newSchemaListCommand(c),
		newSchemaLiveCommand(c),
		registryCommand(c, "add <version>", "Activate a schema version", func(ctx context.Context, r registry.Registry, version string) error {
			return r.Add(ctx, version)
		}),
		registryCommand(c, "remove <version>", "Deactivate a schema version", func(ctx context.Context, r registry.Registry, version string) error {
			return r.Remove(ctx, version)
		}),
		registryCommand(c, "set-live <version>", "Make an active schema version live", func(ctx context.Context, r registry.Registry, version string) error {
			return r.SetLive(ctx, version)
		}),
		registryCommand(c, "clear-live", "Unset the live schema version", func(ctx context.Context, r registry.Registry, _ string) error {
			return r.ClearLive(ctx)
		}),
	)
	return schemaCmd
}

// registryCommand builds a subcommand which applies f to the registry.
// A "<version>" in use makes the version a required argument.
func registryCommand(c *cli, use, short string, f func(context.Context, registry.Registry, string) error) *cobra.Command {
	args := cobra.NoArgs
	if strings.HasSuffix(use, "<version>") {
		args = cobra.ExactArgs(1)
	}

	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, argv []string) error {
			r, err := c.registry(cmd.Context())
			if err != nil {
				return err
			}

			var version string
			if len(argv) > 0 {
				version = argv[0]
			}

			err = f(cmd.Context(), r, version)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "status:", "OK")
			return nil
		},
	}
}

func newSchemaListCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List active schema versions, marking the live one with *",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := c.registry(cmd.Context())
			if err != nil {
				return err
			}

			active, err := r.Active(cmd.Context())
			if err != nil {
				return err
			}

			live, err := r.Live(cmd.Context())
			if err != nil && !errors.Is(err, registry.ErrNoLiveVersion) {
				return err
			}

			for _, v := range active {
				marker := " "
				if v == live {
					marker = "*"
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), marker, v)
			}
			return nil
		},
	}
}

func newSchemaLiveCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "live",
		Short: "Print the live schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := c.registry(cmd.Context())
			if err != nil {
				return err
			}

			live, err := r.Live(cmd.Context())
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), live)
			return nil
		},
	}
}
