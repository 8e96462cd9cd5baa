// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package kafka

import (
	"context"
	"log/slog"

	"github.com/z5labs/drain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/z5labs/drain/ingest/kafka"

func logger() *slog.Logger {
	return drain.Logger(instrumentationName)
}

func tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

// GroupIDAttr returns a slog attribute for the Kafka consumer group ID.
func GroupIDAttr(groupID string) slog.Attr {
	return slog.String("messaging.consumer.group.name", groupID)
}

// TopicAttr returns a slog attribute for the Kafka topic.
func TopicAttr(topic string) slog.Attr {
	return slog.String("messaging.destination.name", topic)
}

// PartitionAttr returns a slog attribute for the Kafka partition.
func PartitionAttr(partition int32) slog.Attr {
	return slog.Int64("messaging.destination.partition.id", int64(partition))
}

// OffsetAttr returns a slog attribute for the Kafka offset.
func OffsetAttr(offset int64) slog.Attr {
	return slog.Int64("messaging.kafka.offset", offset)
}

type sourceMetrics struct {
	records   metric.Int64Counter
	committed metric.Int64Counter
}

func newSourceMetrics() sourceMetrics {
	m := otel.Meter(instrumentationName)

	var records metric.Int64Counter = noop.Int64Counter{}
	c, err := m.Int64Counter(
		"drain.ingest.records",
		metric.WithDescription("Total number of Kafka records ingested, by outcome"),
		metric.WithUnit("{record}"),
	)
	if err == nil {
		records = c
	}

	var committed metric.Int64Counter = noop.Int64Counter{}
	c, err = m.Int64Counter(
		"drain.ingest.records.committed",
		metric.WithDescription("Total number of Kafka records committed"),
		metric.WithUnit("{record}"),
	)
	if err == nil {
		committed = c
	}

	return sourceMetrics{
		records:   records,
		committed: committed,
	}
}

func (m sourceMetrics) recordPushed(ctx context.Context, topic string, partition int32, n int) {
	m.records.Add(ctx, int64(n), metric.WithAttributes(
		attribute.String("topic", topic),
		attribute.Int("partition", int(partition)),
		attribute.String("outcome", "pushed"),
	))
}

func (m sourceMetrics) recordSkipped(ctx context.Context, topic string, partition int32) {
	m.records.Add(ctx, 1, metric.WithAttributes(
		attribute.String("topic", topic),
		attribute.Int("partition", int(partition)),
		attribute.String("outcome", "skipped"),
	))
}

func (m sourceMetrics) recordCommitted(ctx context.Context, topic string, partition int32, n int) {
	m.committed.Add(ctx, int64(n), metric.WithAttributes(
		attribute.String("topic", topic),
		attribute.Int("partition", int(partition)),
	))
}
