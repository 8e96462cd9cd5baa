// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package kafka feeds a queue from a Kafka topic.
//
// A [Source] polls records with a consumer group, decodes their values into
// payloads and pushes every fetched partition batch into a [queue.Store] as one
// atomic push. Offsets are only committed after the push succeeded, so a crash
// between the two redelivers the batch instead of losing it. Envelope IDs are
// derived from the record coordinates which makes those redeliveries
// recognisable downstream.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/z5labs/drain/queue"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// Client is the subset of [kgo.Client] used by [Source].
type Client interface {
	PollFetches(context.Context) kgo.Fetches
	CommitRecords(context.Context, ...*kgo.Record) error
	Close()
}

// Source moves records from Kafka into a [queue.Store]. It implements the
// app.Runtime interface.
type Source[T any] struct {
	log       *slog.Logger
	newClient func() (Client, error)
	store     queue.Store[T]
	codec     queue.Codec[T]
	metrics   sourceMetrics
}

// NewSource initializes a [Source]. newClient is called once per Run.
func NewSource[T any](newClient func() (Client, error), store queue.Store[T], codec queue.Codec[T]) *Source[T] {
	return &Source[T]{
		log:       logger(),
		newClient: newClient,
		store:     store,
		codec:     codec,
		metrics:   newSourceMetrics(),
	}
}

// Run polls until ctx is cancelled. A batch which was already fetched is always
// pushed and committed before Run returns. Push and commit failures end the run.
func (s *Source[T]) Run(ctx context.Context) error {
	client, err := s.newClient()
	if err != nil {
		return fmt.Errorf("kafka: failed to create client: %w", err)
	}
	defer client.Close()

	for {
		if ctx.Err() != nil {
			s.log.InfoContext(ctx, "stopped fetching", slog.Any("error", ctx.Err()))
			return nil
		}

		fetches := client.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return nil
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			s.log.WarnContext(
				ctx,
				"failed to fetch from partition",
				TopicAttr(topic),
				PartitionAttr(partition),
				slog.Any("error", err),
			)
		})

		err := s.handleFetches(context.WithoutCancel(ctx), client, fetches)
		if err != nil {
			return err
		}
	}
}

func (s *Source[T]) handleFetches(ctx context.Context, client Client, fetches kgo.Fetches) error {
	g, gctx := errgroup.WithContext(ctx)
	fetches.EachPartition(func(p kgo.FetchTopicPartition) {
		if len(p.Records) == 0 {
			return
		}
		g.Go(func() error {
			return s.handlePartition(gctx, client, p)
		})
	})
	return g.Wait()
}

func (s *Source[T]) handlePartition(ctx context.Context, client Client, p kgo.FetchTopicPartition) error {
	spanCtx, span := tracer().Start(
		ctx,
		"ingest "+p.Topic,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination.name", p.Topic),
			attribute.Int("messaging.destination.partition.id", int(p.Partition)),
			attribute.Int("messaging.batch.message_count", len(p.Records)),
		),
	)
	defer span.End()

	envs := make([]queue.Envelope[T], 0, len(p.Records))
	for _, record := range p.Records {
		payload, err := s.codec.Decode(record.Value)
		if err != nil {
			s.log.ErrorContext(
				spanCtx,
				"skipping undecodable kafka record",
				TopicAttr(record.Topic),
				PartitionAttr(record.Partition),
				OffsetAttr(record.Offset),
				slog.Any("error", err),
			)
			s.metrics.recordSkipped(spanCtx, record.Topic, record.Partition)
			continue
		}

		envs = append(envs, queue.Envelope[T]{
			ID:      RecordID(record),
			Payload: payload,
		})
	}

	err := s.store.Push(spanCtx, envs...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("kafka: failed to push %d records from %s/%d: %w", len(envs), p.Topic, p.Partition, err)
	}
	s.metrics.recordPushed(spanCtx, p.Topic, p.Partition, len(envs))

	err = client.CommitRecords(spanCtx, p.Records...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("kafka: failed to commit %s/%d: %w", p.Topic, p.Partition, err)
	}
	s.metrics.recordCommitted(spanCtx, p.Topic, p.Partition, len(p.Records))
	return nil
}

var recordNamespace = uuid.MustParse("6f1b7e5c-3c0e-4d55-9d0a-5b8a4f1d2e90")

// RecordID returns the envelope ID for a record. It only depends on the
// record's topic, partition and offset.
func RecordID(r *kgo.Record) uuid.UUID {
	name := r.Topic + "/" + strconv.FormatInt(int64(r.Partition), 10) + "/" + strconv.FormatInt(r.Offset, 10)
	return uuid.NewSHA1(recordNamespace, []byte(name))
}
