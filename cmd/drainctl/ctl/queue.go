// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package ctl

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/z5labs/drain/queue"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newQueueCommand(c *cli) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:     "queue",
		Aliases: []string{"q"},
		Short:   "Queue operations",
	}

	queueCmd.AddCommand(
		newQueueSizeCommand(c),
		newQueuePushCommand(c),
		newQueueClearCommand(c),
	)
	return queueCmd
}

func newQueueSizeCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "size",
		Short: "Print the number of queued items",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := c.store(cmd.Context())
			if err != nil {
				return err
			}

			n, err := s.Size(cmd.Context())
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), n)
			return nil
		},
	}
}

func newQueuePushCommand(c *cli) *cobra.Command {
	pushCmd := &cobra.Command{
		Use:   "push [json...]",
		Short: "Push JSON documents given as arguments or read line by line from --file",
		Long: `Push JSON documents onto the queue.

Documents are pushed in batches of --batch-size. Every batch becomes visible
to the workers at once and up to --concurrency batches are pushed in parallel.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString("file")
			batchSize, _ := cmd.Flags().GetInt("batch-size")
			concurrency, _ := cmd.Flags().GetInt("concurrency")

			docs, err := readDocuments(cmd.InOrStdin(), file, args)
			if err != nil {
				return err
			}
			if len(docs) == 0 {
				return fmt.Errorf("no documents to push")
			}

			s, err := c.store(cmd.Context())
			if err != nil {
				return err
			}

			envs := queue.Envelopes(docs...)
			batchSize = max(batchSize, 1)

			g, gctx := errgroup.WithContext(cmd.Context())
			g.SetLimit(max(concurrency, 1))
			for start := 0; start < len(envs); start += batchSize {
				batch := envs[start:min(start+batchSize, len(envs))]
				g.Go(func() error {
					return s.Push(gctx, batch...)
				})
			}
			err = g.Wait()
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "pushed", len(envs))
			return nil
		},
	}
	pushCmd.Flags().StringP("file", "f", "", "Newline delimited JSON file, - for stdin")
	pushCmd.Flags().Int("batch-size", 100, "Documents per atomic push")
	pushCmd.Flags().Int("concurrency", 4, "Batches pushed in parallel")
	return pushCmd
}

func readDocuments(stdin io.Reader, file string, args []string) ([]json.RawMessage, error) {
	var docs []json.RawMessage
	for _, arg := range args {
		doc, err := document([]byte(arg))
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}

	if file == "" {
		return docs, nil
	}

	r := stdin
	if file != "-" {
		f, err := os.Open(file)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		doc, err := document(line)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, sc.Err()
}

func document(b []byte) (json.RawMessage, error) {
	if !json.Valid(b) {
		return nil, fmt.Errorf("invalid json document: %s", b)
	}
	return json.RawMessage(bytes.Clone(b)), nil
}

func newQueueClearCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every queued item",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := c.store(cmd.Context())
			if err != nil {
				return err
			}

			err = s.Clear(cmd.Context())
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "status:", "OK")
			return nil
		},
	}
}
