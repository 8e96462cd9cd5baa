// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package worker assembles the drain worker: a pool of consumption loops
// forwarding JSON documents to the search index, the admin HTTP API, the gRPC
// health service and, when configured, Kafka ingestion and the dead-letter archive.
//
// Settings are read from the environment:
//   - DRAIN_MODE: serve (default) or job
//   - DRAIN_NAMESPACE, DRAIN_STORE_URL, DRAIN_REGISTRY_URL
//   - DRAIN_INDEX_URL (required)
//   - DRAIN_QUEUE, DRAIN_WORKERS, DRAIN_MAX_RETRIES, DRAIN_ERROR_THRESHOLD, DRAIN_DEQUEUE_TIMEOUT
//   - DRAIN_HTTP_*, DRAIN_GRPC_ADDR
//   - KAFKA_* and DRAIN_DEADLETTER_*
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"

	"github.com/z5labs/drain"
	"github.com/z5labs/drain/admin"
	"github.com/z5labs/drain/app"
	"github.com/z5labs/drain/backend"
	"github.com/z5labs/drain/config"
	"github.com/z5labs/drain/deadletter"
	"github.com/z5labs/drain/grpc"
	drainhttp "github.com/z5labs/drain/http"
	"github.com/z5labs/drain/index"
	"github.com/z5labs/drain/ingest/kafka"
	"github.com/z5labs/drain/job"
	"github.com/z5labs/drain/queue"
	"github.com/z5labs/drain/queue/codec"
	"github.com/z5labs/drain/registry"
)

// Document is the payload type handled by the worker. Documents are
// forwarded to the index untouched.
type Document = json.RawMessage

// Modes the worker can run in.
const (
	ModeServe = "serve"
	ModeJob   = "job"
)

// UnknownModeError is returned by [Build] for a mode other than [ModeServe] or [ModeJob].
type UnknownModeError struct {
	Mode string
}

// Error implements the [error] interface.
func (e UnknownModeError) Error() string {
	return fmt.Sprintf("worker: unknown mode: %s", e.Mode)
}

// Config collects every setting the worker is built from.
type Config struct {
	// Mode is [ModeServe] by default. In [ModeJob] the worker drains the
	// queue once and exits without serving the admin API or health checks.
	Mode        config.Reader[string]
	Namespace   config.Reader[string]
	StoreURL    config.Reader[string]
	RegistryURL config.Reader[string]
	IndexURL    config.Reader[string]
	Queue       queue.Config
	HTTP        drainhttp.Server
	GRPC        config.Reader[net.Listener]
	Kafka       kafka.Config
	DeadLetter  deadletter.Config

	// Backends replaces the clients opened from the store and registry
	// URLs. It is not closed when the worker stops.
	Backends *backend.Backends
}

// ConfigFromEnv reads the complete worker configuration from the environment.
func ConfigFromEnv() Config {
	return Config{
		Mode:        config.Env("DRAIN_MODE"),
		Namespace:   backend.NamespaceFromEnv(),
		StoreURL:    backend.StoreURLFromEnv(),
		RegistryURL: backend.RegistryURLFromEnv(),
		IndexURL:    index.URLFromEnv(),
		Queue:       queue.ConfigFromEnv(),
		HTTP:        drainhttp.ServerFromEnv(),
		GRPC:        grpc.Listener(grpc.AddrFromEnv()),
		Kafka:       kafka.ConfigFromEnv(),
		DeadLetter:  deadletter.ConfigFromEnv(),
	}
}

// Build returns a builder for the worker runtime. Every backend client
// opened while building is closed after the runtime returns.
func Build(cfg Config) app.Builder[app.HookRuntime] {
	return app.WithHooks(func(ctx context.Context, h *app.HookRegistry) (app.Runtime, error) {
		log := drain.Logger("github.com/z5labs/drain/cmd/drainworker")

		mode := config.MustOr(ctx, ModeServe, cfg.Mode)
		if mode != ModeServe && mode != ModeJob {
			return nil, UnknownModeError{Mode: mode}
		}

		b := cfg.Backends
		if b == nil {
			b = backend.New(config.MustOr(ctx, "drain", cfg.Namespace))
			h.CloseOnPostRun(b)
		}

		var docs queue.Codec[Document] = codec.JSON[Document]{}
		store := backend.QueueReader(b, cfg.StoreURL, cfg.Queue.Name, docs)
		reg := backend.RegistryReader(b, cfg.RegistryURL)

		p, err := queue.Build(cfg.Queue, store, func(ctx context.Context, p *queue.Pool[Document]) error {
			return register(ctx, cfg, log, p, reg, docs)
		}).Build(ctx)
		if err != nil {
			return nil, err
		}

		if mode == ModeJob {
			log.InfoContext(ctx, "draining queue", slog.Int("workers", p.Len()))
			return job.NewApp(job.Drain(p)), nil
		}

		rts := []app.Runtime{p}

		if cfg.Kafka.Enabled(ctx) {
			src, err := kafka.Build(cfg.Kafka, store, docs).Build(ctx)
			if err != nil {
				return nil, err
			}
			rts = append(rts, src)
		}

		hs := grpc.NewHealthServer()
		hs.Monitor("", p)
		hs.Monitor("drain.queue", p)

		grpcRt, err := grpc.Build(cfg.GRPC, hs).Build(ctx)
		if err != nil {
			return nil, err
		}

		httpRt, err := drainhttp.Build(
			cfg.HTTP,
			admin.Build(store, reg, admin.Title("drain"), admin.Readiness(p)),
		).Build(ctx)
		if err != nil {
			return nil, err
		}

		log.InfoContext(
			ctx,
			"starting worker",
			slog.Int("workers", p.Len()),
			slog.String("http.addr", httpRt.Addr().String()),
			slog.String("grpc.addr", grpcRt.Addr().String()),
		)
		return app.Group(append(rts, grpcRt, httpRt)...), nil
	})
}

func register(ctx context.Context, cfg Config, log *slog.Logger, p *queue.Pool[Document], reg config.Reader[registry.Registry], docs queue.Codec[Document]) error {
	fwd, err := index.Build(cfg.IndexURL, reg, docs).Build(ctx)
	if err != nil {
		return fmt.Errorf("worker: failed to build index forwarder: %w", err)
	}
	p.OnReceived(fwd)
	p.OnError(queue.LogErrors[Document](log))

	client, bucket, ok, err := cfg.DeadLetter.Client(ctx)
	if err != nil {
		return err
	}
	if !ok {
		p.OnExhausted(queue.ErrorHandlerFunc[Document](func(ctx context.Context, err error, env queue.Envelope[Document]) {
			log.WarnContext(
				ctx,
				"dropping exhausted queue item",
				queue.EnvelopeIDAttr(env.ID.String()),
				queue.AttemptsAttr(env.Attempts),
				slog.Any("error", err),
			)
		}))
		return nil
	}

	p.OnExhausted(deadletter.NewArchive(
		client,
		bucket,
		docs,
		deadletter.Queue(config.MustOr(ctx, "default", cfg.Queue.Name)),
	))
	return nil
}
