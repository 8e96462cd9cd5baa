// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package postgres provides a [queue.Store] backed by a PostgreSQL table.
//
// Every queue lives in the shared drain_queue table, keyed by namespace and
// queue name. Consumers pop rows with FOR UPDATE SKIP LOCKED so they never
// contend for the same row.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/z5labs/drain/queue"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of [pgxpool.Pool] used by [Store].
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

const schema = `
CREATE TABLE IF NOT EXISTS drain_queue (
	id        BIGSERIAL PRIMARY KEY,
	namespace TEXT NOT NULL,
	queue     TEXT NOT NULL,
	envelope  BYTEA NOT NULL
);
CREATE INDEX IF NOT EXISTS drain_queue_namespace_queue_id ON drain_queue (namespace, queue, id);
`

// CreateTable creates the drain_queue table if it does not exist yet.
func CreateTable(ctx context.Context, db DB) error {
	_, err := db.Exec(ctx, schema)
	if err != nil {
		return fmt.Errorf("postgres: failed to create drain_queue table: %w", err)
	}
	return nil
}

// Options configure a [Store].
type Options struct {
	namespace    string
	name         string
	pollInterval time.Duration
}

// Option sets a value on [Options].
type Option func(*Options)

// Namespace sets the namespace column value. The default is "drain".
func Namespace(ns string) Option {
	return func(o *Options) {
		o.namespace = ns
	}
}

// Queue sets the logical queue name. The default is "default".
func Queue(name string) Option {
	return func(o *Options) {
		o.name = name
	}
}

// PollInterval sets how often an empty queue is re-checked while waiting.
// The default is [queue.DefaultPollInterval].
func PollInterval(d time.Duration) Option {
	return func(o *Options) {
		o.pollInterval = d
	}
}

// Store is a [queue.Store] backed by PostgreSQL.
// The table must exist, see [CreateTable].
type Store[T any] struct {
	db           DB
	codec        queue.Codec[T]
	namespace    string
	name         string
	pollInterval time.Duration
}

// NewStore initializes a [Store].
func NewStore[T any](db DB, codec queue.Codec[T], opts ...Option) *Store[T] {
	o := &Options{
		namespace:    "drain",
		name:         "default",
		pollInterval: queue.DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(o)
	}

	return &Store[T]{
		db:           db,
		codec:        codec,
		namespace:    o.namespace,
		name:         o.name,
		pollInterval: o.pollInterval,
	}
}

// Push implements the [queue.Store] interface. The batch is written with
// a single COPY so it becomes visible all at once.
func (s *Store[T]) Push(ctx context.Context, envs ...queue.Envelope[T]) error {
	if len(envs) == 0 {
		return nil
	}

	rows := make([][]any, len(envs))
	for i, env := range envs {
		b, err := queue.MarshalEnvelope(s.codec, env)
		if err != nil {
			return err
		}
		rows[i] = []any{s.namespace, s.name, b}
	}

	_, err := s.db.CopyFrom(
		ctx,
		pgx.Identifier{"drain_queue"},
		[]string{"namespace", "queue", "envelope"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("postgres: failed to push to %s/%s: %w", s.namespace, s.name, err)
	}
	return nil
}

const popQuery = `
DELETE FROM drain_queue
WHERE id = (
	SELECT id FROM drain_queue
	WHERE namespace = $1 AND queue = $2
	ORDER BY id
	FOR UPDATE SKIP LOCKED
	LIMIT 1
)
RETURNING envelope`

// TryDequeue implements the [queue.Store] interface. The row is only deleted
// once its envelope has been decoded, so an envelope which can not be decoded
// stays at the head of the queue.
func (s *Store[T]) TryDequeue(ctx context.Context, timeout time.Duration) (queue.Envelope[T], bool, error) {
	return queue.Poll(ctx, timeout, s.pollInterval, s.pop)
}

func (s *Store[T]) pop(ctx context.Context) (env queue.Envelope[T], ok bool, err error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return queue.Envelope[T]{}, false, fmt.Errorf("postgres: failed to begin pop from %s/%s: %w", s.namespace, s.name, err)
	}
	defer func() {
		if err != nil || !ok {
			err = errors.Join(err, ignoreClosed(tx.Rollback(context.WithoutCancel(ctx))))
		}
	}()

	var b []byte
	err = tx.QueryRow(ctx, popQuery, s.namespace, s.name).Scan(&b)
	if errors.Is(err, pgx.ErrNoRows) {
		return queue.Envelope[T]{}, false, nil
	}
	if err != nil {
		return queue.Envelope[T]{}, false, fmt.Errorf("postgres: failed to pop from %s/%s: %w", s.namespace, s.name, err)
	}

	env, err = queue.UnmarshalEnvelope(s.codec, b)
	if err != nil {
		return queue.Envelope[T]{}, false, err
	}

	err = tx.Commit(ctx)
	if err != nil {
		return queue.Envelope[T]{}, false, fmt.Errorf("postgres: failed to commit pop from %s/%s: %w", s.namespace, s.name, err)
	}
	return env, true, nil
}

func ignoreClosed(err error) error {
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}

// Size implements the [queue.Store] interface.
func (s *Store[T]) Size(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRow(
		ctx,
		`SELECT count(*) FROM drain_queue WHERE namespace = $1 AND queue = $2`,
		s.namespace,
		s.name,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("postgres: failed to count %s/%s: %w", s.namespace, s.name, err)
	}
	return n, nil
}

// Clear implements the [queue.Store] interface.
func (s *Store[T]) Clear(ctx context.Context) error {
	_, err := s.db.Exec(
		ctx,
		`DELETE FROM drain_queue WHERE namespace = $1 AND queue = $2`,
		s.namespace,
		s.name,
	)
	if err != nil {
		return fmt.Errorf("postgres: failed to clear %s/%s: %w", s.namespace, s.name, err)
	}
	return nil
}
