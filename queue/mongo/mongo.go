// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package mongo provides a [queue.Store] backed by a MongoDB collection.
//
// Each queue is its own collection named "<namespace>.queue.<name>". Batches of
// more than one envelope are inserted inside a transaction, which requires
// the server to be a replica set member.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/z5labs/drain/queue"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Options configure a [Store].
type Options struct {
	namespace    string
	name         string
	pollInterval time.Duration
}

// Option sets a value on [Options].
type Option func(*Options)

// Namespace sets the collection prefix. The default is "drain".
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

// CollectionName returns the collection used for the given namespace and queue name.
func CollectionName(namespace, name string) string {
	return namespace + ".queue." + name
}

type document struct {
	ID       bson.ObjectID `bson:"_id"`
	Envelope []byte        `bson:"envelope"`
}

// Store is a [queue.Store] backed by MongoDB.
type Store[T any] struct {
	coll         *mongo.Collection
	codec        queue.Codec[T]
	pollInterval time.Duration
}

// NewStore initializes a [Store] using a collection in db.
func NewStore[T any](db *mongo.Database, codec queue.Codec[T], opts ...Option) *Store[T] {
	o := &Options{
		namespace:    "drain",
		name:         "default",
		pollInterval: queue.DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(o)
	}

	return &Store[T]{
		coll:         db.Collection(CollectionName(o.namespace, o.name)),
		codec:        codec,
		pollInterval: o.pollInterval,
	}
}

// Push implements the [queue.Store] interface.
func (s *Store[T]) Push(ctx context.Context, envs ...queue.Envelope[T]) error {
	if len(envs) == 0 {
		return nil
	}

	docs := make([]document, len(envs))
	for i, env := range envs {
		b, err := queue.MarshalEnvelope(s.codec, env)
		if err != nil {
			return err
		}
		docs[i] = document{
			ID:       bson.NewObjectID(),
			Envelope: b,
		}
	}

	if len(docs) == 1 {
		_, err := s.coll.InsertOne(ctx, docs[0])
		if err != nil {
			return fmt.Errorf("mongo: failed to push to %s: %w", s.coll.Name(), err)
		}
		return nil
	}

	sess, err := s.coll.Database().Client().StartSession()
	if err != nil {
		return fmt.Errorf("mongo: failed to start session: %w", err)
	}
	defer sess.EndSession(context.WithoutCancel(ctx))

	_, err = sess.WithTransaction(ctx, func(ctx context.Context) (any, error) {
		return s.coll.InsertMany(ctx, docs)
	})
	if err != nil {
		return fmt.Errorf("mongo: failed to push batch to %s: %w", s.coll.Name(), err)
	}
	return nil
}

// TryDequeue implements the [queue.Store] interface. A document which can not
// be decoded is put back before the error is returned.
func (s *Store[T]) TryDequeue(ctx context.Context, timeout time.Duration) (queue.Envelope[T], bool, error) {
	return queue.Poll(ctx, timeout, s.pollInterval, s.pop)
}

func (s *Store[T]) pop(ctx context.Context) (queue.Envelope[T], bool, error) {
	var doc document
	err := s.coll.FindOneAndDelete(
		ctx,
		bson.D{},
		options.FindOneAndDelete().SetSort(bson.D{{Key: "_id", Value: 1}}),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return queue.Envelope[T]{}, false, nil
	}
	if err != nil {
		return queue.Envelope[T]{}, false, fmt.Errorf("mongo: failed to pop from %s: %w", s.coll.Name(), err)
	}

	env, err := queue.UnmarshalEnvelope(s.codec, doc.Envelope)
	if err != nil {
		return queue.Envelope[T]{}, false, errors.Join(err, s.restore(context.WithoutCancel(ctx), doc))
	}
	return env, true, nil
}

// restore reinserts a popped document. It keeps its id and so its place
// at the head of the queue.
func (s *Store[T]) restore(ctx context.Context, doc document) error {
	_, err := s.coll.InsertOne(ctx, doc)
	if err != nil {
		return fmt.Errorf("mongo: failed to restore undecodable envelope to %s: %w", s.coll.Name(), err)
	}
	return nil
}

// Size implements the [queue.Store] interface.
func (s *Store[T]) Size(ctx context.Context) (int64, error) {
	n, err := s.coll.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("mongo: failed to count %s: %w", s.coll.Name(), err)
	}
	return n, nil
}

// Clear implements the [queue.Store] interface.
func (s *Store[T]) Clear(ctx context.Context) error {
	_, err := s.coll.DeleteMany(ctx, bson.D{})
	if err != nil {
		return fmt.Errorf("mongo: failed to clear %s: %w", s.coll.Name(), err)
	}
	return nil
}
