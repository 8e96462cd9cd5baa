// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package otel

import (
	"context"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// StdoutExporter writes log records as JSON lines through a [slog.JSONHandler].
type StdoutExporter struct {
	handler slog.Handler
}

// NewStdoutExporter initializes a [StdoutExporter] writing to w. Every
// record is emitted regardless of its level.
func NewStdoutExporter(w io.Writer) *StdoutExporter {
	return &StdoutExporter{
		handler: slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug - 4}),
	}
}

// Export implements the [sdklog.Exporter] interface.
func (e *StdoutExporter) Export(ctx context.Context, records []sdklog.Record) error {
	const sevOffset = log.SeverityDebug - log.Severity(slog.LevelDebug)
	for _, record := range records {
		sr := slog.Record{
			Time:    record.Timestamp(),
			Level:   slog.Level(record.Severity() - sevOffset),
			Message: record.Body().AsString(),
		}
		sr.AddAttrs(slog.String("logger", record.InstrumentationScope().Name))

		record.WalkAttributes(func(kv log.KeyValue) bool {
			sr.AddAttrs(slog.Attr{
				Key:   kv.Key,
				Value: slogValue(kv.Value),
			})
			return true
		})

		if record.TraceID().IsValid() {
			sr.AddAttrs(slog.Group(
				"otel",
				slog.String("trace.id", record.TraceID().String()),
				slog.String("span.id", record.SpanID().String()),
			))
		}

		err := e.handler.Handle(ctx, sr)
		if err != nil {
			return err
		}
	}
	return nil
}

func slogValue(v log.Value) slog.Value {
	switch v.Kind() {
	case log.KindBool:
		return slog.BoolValue(v.AsBool())
	case log.KindBytes:
		return slog.AnyValue(v.AsBytes())
	case log.KindFloat64:
		return slog.Float64Value(v.AsFloat64())
	case log.KindInt64:
		return slog.Int64Value(v.AsInt64())
	case log.KindMap:
		kvs := v.AsMap()
		attrs := make([]slog.Attr, len(kvs))
		for i, kv := range kvs {
			attrs[i] = slog.Attr{Key: kv.Key, Value: slogValue(kv.Value)}
		}
		return slog.GroupValue(attrs...)
	case log.KindSlice:
		vs := v.AsSlice()
		vals := make([]any, len(vs))
		for i := range vs {
			vals[i] = slogValue(vs[i]).Any()
		}
		return slog.AnyValue(vals)
	case log.KindString:
		return slog.StringValue(v.AsString())
	default:
		return slog.StringValue(v.String())
	}
}

// ForceFlush implements the [sdklog.Exporter] interface.
func (e *StdoutExporter) ForceFlush(ctx context.Context) error {
	return nil
}

// Shutdown implements the [sdklog.Exporter] interface.
func (e *StdoutExporter) Shutdown(ctx context.Context) error {
	return nil
}
