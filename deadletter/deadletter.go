// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package deadletter archives permanently dropped queue items to S3 compatible
// object storage so they can be inspected or replayed later.
//
// Register an [Archive] with [queue.Loop.OnExhausted]:
//
//	loop.OnExhausted(deadletter.NewArchive(client, "drain-deadletter", codec.JSON[Doc]{}))
package deadletter

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"path"
	"time"

	"github.com/z5labs/drain"
	"github.com/z5labs/drain/queue"
)

// Putter uploads objects. [MinIO] implements it.
type Putter interface {
	PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64) error
}

// Record is the JSON document stored for every archived item.
type Record struct {
	Queue    string          `json:"queue"`
	Envelope json.RawMessage `json:"envelope"`
	Error    string          `json:"error"`
	FailedAt time.Time       `json:"failed_at"`
}

// Options configure an [Archive].
type Options struct {
	prefix string
	queue  string
	log    *slog.Logger
	now    func() time.Time
}

// Option sets a value on [Options].
type Option func(*Options)

// Prefix sets the object key prefix. The default is "deadletter".
func Prefix(p string) Option {
	return func(o *Options) {
		o.prefix = p
	}
}

// Queue records the queue name in every archived [Record].
func Queue(name string) Option {
	return func(o *Options) {
		o.queue = name
	}
}

// Logger sets the logger used to report upload failures.
func Logger(log *slog.Logger) Option {
	return func(o *Options) {
		o.log = log
	}
}

// Archive is a [queue.ErrorHandler] which uploads every item it is given.
type Archive[T any] struct {
	put    Putter
	bucket string
	codec  queue.Codec[T]
	prefix string
	queue  string
	log    *slog.Logger
	now    func() time.Time
}

// NewArchive initializes an [Archive] writing to bucket.
func NewArchive[T any](put Putter, bucket string, codec queue.Codec[T], opts ...Option) *Archive[T] {
	o := &Options{
		prefix: "deadletter",
		log:    drain.Logger("github.com/z5labs/drain/deadletter"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}

	return &Archive[T]{
		put:    put,
		bucket: bucket,
		codec:  codec,
		prefix: o.prefix,
		queue:  o.queue,
		log:    o.log,
		now:    o.now,
	}
}

// Key returns the object key env is archived under.
func (a *Archive[T]) Key(env queue.Envelope[T]) string {
	return path.Join(a.prefix, env.ID.String()+".json")
}

// HandleError implements the [queue.ErrorHandler] interface. Upload failures
// are logged since the item has already left the queue.
func (a *Archive[T]) HandleError(ctx context.Context, err error, env queue.Envelope[T]) {
	key := a.Key(env)

	perr := a.archive(ctx, key, err, env)
	if perr == nil {
		return
	}
	a.log.ErrorContext(
		ctx,
		"failed to archive exhausted item",
		queue.EnvelopeIDAttr(env.ID.String()),
		slog.String("bucket", a.bucket),
		slog.String("key", key),
		slog.Any("error", perr),
	)
}

func (a *Archive[T]) archive(ctx context.Context, key string, cause error, env queue.Envelope[T]) error {
	b, err := queue.MarshalEnvelope(a.codec, env)
	if err != nil {
		return err
	}

	rec := Record{
		Queue:    a.queue,
		Envelope: b,
		FailedAt: a.now().UTC(),
	}
	if cause != nil {
		rec.Error = cause.Error()
	}

	doc, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return a.put.PutObject(ctx, a.bucket, key, bytes.NewReader(doc), int64(len(doc)))
}
