// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package otel

import (
	"context"
	"errors"
	"time"

	"github.com/z5labs/drain/config"

	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/metric"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.38.0"
	"go.opentelemetry.io/otel/trace"
)

// DefaultServiceName is used when OTEL_SERVICE_NAME is unset.
const DefaultServiceName = "drain"

// Resource describes the entity producing telemetry.
type Resource struct {
	ServiceName    config.Reader[string]
	ServiceVersion config.Reader[string]
}

// ResourceFromEnv reads the service name and version from OTEL_SERVICE_NAME
// and OTEL_SERVICE_VERSION.
func ResourceFromEnv() Resource {
	return Resource{
		ServiceName:    config.Env("OTEL_SERVICE_NAME"),
		ServiceVersion: config.Env("OTEL_SERVICE_VERSION"),
	}
}

// Read implements the [config.Reader] interface.
func (cfg Resource) Read(ctx context.Context) (config.Value[*resource.Resource], error) {
	name, err := readOr(ctx, DefaultServiceName, cfg.ServiceName)
	if err != nil {
		return config.Value[*resource.Resource]{}, err
	}
	version, err := readOr(ctx, "", cfg.ServiceVersion)
	if err != nil {
		return config.Value[*resource.Resource]{}, err
	}

	rsc, err := resource.New(
		ctx,
		resource.WithTelemetrySDK(),
		resource.WithHost(),
		resource.WithAttributes(
			semconv.ServiceName(name),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return config.Value[*resource.Resource]{}, err
	}
	return config.ValueOf(rsc), nil
}

// SampleRatioFromEnv reads the trace sampling ratio from OTEL_TRACES_SAMPLER_RATIO.
func SampleRatioFromEnv() config.Reader[float64] {
	return config.Float64FromString(config.Env("OTEL_TRACES_SAMPLER_RATIO"))
}

// MetricExportIntervalFromEnv reads the metric export interval from OTEL_METRIC_EXPORT_INTERVAL.
func MetricExportIntervalFromEnv() config.Reader[time.Duration] {
	return config.DurationFromString(config.Env("OTEL_METRIC_EXPORT_INTERVAL"))
}

// TracerProvider batches spans to Exporter. It is unset when Exporter is.
type TracerProvider struct {
	Resource    config.Reader[*resource.Resource]
	SampleRatio config.Reader[float64]
	Exporter    config.Reader[sdktrace.SpanExporter]
}

// Read implements the [config.Reader] interface.
func (cfg TracerProvider) Read(ctx context.Context) (config.Value[trace.TracerProvider], error) {
	exp, err := config.Read(ctx, cfg.Exporter)
	if errors.Is(err, config.ErrValueNotSet) {
		return config.Value[trace.TracerProvider]{}, nil
	}
	if err != nil {
		return config.Value[trace.TracerProvider]{}, err
	}

	rsc, err := config.Read(ctx, cfg.Resource)
	if err != nil {
		return config.Value[trace.TracerProvider]{}, err
	}
	ratio, err := readOr(ctx, 1.0, cfg.SampleRatio)
	if err != nil {
		return config.Value[trace.TracerProvider]{}, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(rsc),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
		sdktrace.WithBatcher(exp),
	)
	return config.ValueOf[trace.TracerProvider](tp), nil
}

// MeterProvider periodically exports metrics to Exporter. It is unset when Exporter is.
type MeterProvider struct {
	Resource       config.Reader[*resource.Resource]
	ExportInterval config.Reader[time.Duration]
	Exporter       config.Reader[sdkmetric.Exporter]
}

// Read implements the [config.Reader] interface.
func (cfg MeterProvider) Read(ctx context.Context) (config.Value[metric.MeterProvider], error) {
	exp, err := config.Read(ctx, cfg.Exporter)
	if errors.Is(err, config.ErrValueNotSet) {
		return config.Value[metric.MeterProvider]{}, nil
	}
	if err != nil {
		return config.Value[metric.MeterProvider]{}, err
	}

	rsc, err := config.Read(ctx, cfg.Resource)
	if err != nil {
		return config.Value[metric.MeterProvider]{}, err
	}
	interval, err := readOr(ctx, 10*time.Second, cfg.ExportInterval)
	if err != nil {
		return config.Value[metric.MeterProvider]{}, err
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(rsc),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(interval))),
	)
	return config.ValueOf[metric.MeterProvider](mp), nil
}

// BatchLogProcessor batches records to Exporter. It is unset when Exporter is.
type BatchLogProcessor struct {
	Exporter config.Reader[sdklog.Exporter]
}

// Read implements the [config.Reader] interface.
func (cfg BatchLogProcessor) Read(ctx context.Context) (config.Value[sdklog.Processor], error) {
	exp, err := config.Read(ctx, cfg.Exporter)
	if errors.Is(err, config.ErrValueNotSet) {
		return config.Value[sdklog.Processor]{}, nil
	}
	if err != nil {
		return config.Value[sdklog.Processor]{}, err
	}
	return config.ValueOf[sdklog.Processor](sdklog.NewBatchProcessor(exp)), nil
}

// SimpleLogProcessor hands every record to Exporter synchronously.
type SimpleLogProcessor struct {
	Exporter config.Reader[sdklog.Exporter]
}

// Read implements the [config.Reader] interface.
func (cfg SimpleLogProcessor) Read(ctx context.Context) (config.Value[sdklog.Processor], error) {
	exp, err := config.Read(ctx, cfg.Exporter)
	if errors.Is(err, config.ErrValueNotSet) {
		return config.Value[sdklog.Processor]{}, nil
	}
	if err != nil {
		return config.Value[sdklog.Processor]{}, err
	}
	return config.ValueOf[sdklog.Processor](sdklog.NewSimpleProcessor(exp)), nil
}

// LoggerProvider emits records through Processor after filtering them by Levels.
type LoggerProvider struct {
	Resource  config.Reader[*resource.Resource]
	Levels    config.Reader[map[string]string]
	Processor config.Reader[sdklog.Processor]
}

// Read implements the [config.Reader] interface.
func (cfg LoggerProvider) Read(ctx context.Context) (config.Value[log.LoggerProvider], error) {
	p, err := config.Read(ctx, cfg.Processor)
	if errors.Is(err, config.ErrValueNotSet) {
		return config.Value[log.LoggerProvider]{}, nil
	}
	if err != nil {
		return config.Value[log.LoggerProvider]{}, err
	}

	rsc, err := config.Read(ctx, cfg.Resource)
	if err != nil {
		return config.Value[log.LoggerProvider]{}, err
	}
	levels, err := readOr(ctx, map[string]string(nil), cfg.Levels)
	if err != nil {
		return config.Value[log.LoggerProvider]{}, err
	}
	if len(levels) > 0 {
		p = newFilteringProcessor(p, levels)
	}

	lp := sdklog.NewLoggerProvider(
		sdklog.WithResource(rsc),
		sdklog.WithProcessor(p),
	)
	return config.ValueOf[log.LoggerProvider](lp), nil
}
