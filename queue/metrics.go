// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package queue

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/z5labs/drain/queue"

func tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

type loopMetrics struct {
	itemsProcessed metric.Int64Counter
	runsAborted    metric.Int64Counter
}

// newLoopMetrics never fails. Instruments which can not be created
// fall back to no-ops so metrics never affect item handling.
func newLoopMetrics() loopMetrics {
	m := otel.Meter(instrumentationName)

	var itemsProcessed metric.Int64Counter = noop.Int64Counter{}
	c, err := m.Int64Counter(
		"drain.queue.items.processed",
		metric.WithDescription("Total number of queue items handled, by outcome"),
		metric.WithUnit("{item}"),
	)
	if err == nil {
		itemsProcessed = c
	}

	var runsAborted metric.Int64Counter = noop.Int64Counter{}
	c, err = m.Int64Counter(
		"drain.queue.runs.aborted",
		metric.WithDescription("Total number of runs aborted by the error threshold"),
		metric.WithUnit("{run}"),
	)
	if err == nil {
		runsAborted = c
	}

	return loopMetrics{
		itemsProcessed: itemsProcessed,
		runsAborted:    runsAborted,
	}
}

func (m loopMetrics) recordOutcome(ctx context.Context, queue string, d Decision) {
	m.itemsProcessed.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("queue", queue),
			attribute.String("outcome", d.String()),
		),
	)
}

func (m loopMetrics) recordAbort(ctx context.Context, queue string) {
	m.runsAborted.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("queue", queue),
		),
	)
}
