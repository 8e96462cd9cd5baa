// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package otel configures the OpenTelemetry SDK for drain binaries.
//
// Every provider is described by a config.Reader so the whole SDK can be
// resolved from the environment with [SDKFromEnv]:
//   - OTEL_SERVICE_NAME, OTEL_SERVICE_VERSION: resource attributes
//   - OTEL_EXPORTER_OTLP_ENDPOINT and the per signal *_ENDPOINT variants
//   - OTEL_EXPORTER_OTLP_PROTOCOL: grpc (default) or http/protobuf
//   - OTEL_TRACES_SAMPLER_RATIO: trace sampling ratio, defaults to 1
//   - OTEL_METRIC_EXPORT_INTERVAL: metric export interval, defaults to 10s
//   - DRAIN_LOG_LEVELS: minimum levels per logger, e.g. "github.com/twmb=warn"
//
// Traces and metrics are disabled when no endpoint is configured. Logs are
// never dropped: without an endpoint they are written to stdout as JSON.
package otel

import (
	"context"
	"errors"
	"os"

	"github.com/z5labs/drain/app"
	"github.com/z5labs/drain/concurrent"
	"github.com/z5labs/drain/config"

	"github.com/z5labs/sdk-go/try"
	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
	lognoop "go.opentelemetry.io/otel/log/noop"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
)

// SDK holds readers for the globally registered OpenTelemetry components.
// Nil or unset readers fall back to no-op implementations and the W3C
// trace context and baggage propagators.
type SDK struct {
	TextMapPropagator config.Reader[propagation.TextMapPropagator]
	TracerProvider    config.Reader[trace.TracerProvider]
	MeterProvider     config.Reader[metric.MeterProvider]
	LoggerProvider    config.Reader[log.LoggerProvider]
}

// SDKFromEnv returns an [SDK] which exports over OTLP when an endpoint is
// configured and writes logs to stdout otherwise. gRPC exporters for the
// same endpoint share one client connection.
func SDKFromEnv() SDK {
	rsc := ResourceFromEnv()
	conns := concurrent.NewCache[string, *grpc.ClientConn]()

	return SDK{
		TracerProvider: TracerProvider{
			Resource:    rsc,
			SampleRatio: SampleRatioFromEnv(),
			Exporter:    SpanExporterFromEnv(conns),
		},
		MeterProvider: MeterProvider{
			Resource:       rsc,
			ExportInterval: MetricExportIntervalFromEnv(),
			Exporter:       MetricExporterFromEnv(conns),
		},
		LoggerProvider: LoggerProvider{
			Resource: rsc,
			Levels:   LogLevelsFromEnv(),
			Processor: config.Or(
				BatchLogProcessor{Exporter: LogExporterFromEnv(conns)},
				SimpleLogProcessor{Exporter: config.ReaderOf[sdklog.Exporter](NewStdoutExporter(os.Stdout))},
			),
		},
	}
}

// Runtime registers the SDK globally around an inner [app.Runtime].
type Runtime struct {
	inner          app.Runtime
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	loggerProvider log.LoggerProvider
}

// Build resolves sdk, registers its components globally and then builds
// the inner runtime, so loggers created while building already export.
// Go runtime metrics are recorded with the resolved meter provider.
func Build[T app.Runtime](sdk SDK, builder app.Builder[T]) app.Builder[Runtime] {
	return app.BuilderFunc[Runtime](func(ctx context.Context) (Runtime, error) {
		tmp, err := readOr(ctx, propagation.TextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.Baggage{},
			propagation.TraceContext{},
		)), sdk.TextMapPropagator)
		if err != nil {
			return Runtime{}, err
		}
		tp, err := readOr(ctx, trace.TracerProvider(tracenoop.NewTracerProvider()), sdk.TracerProvider)
		if err != nil {
			return Runtime{}, err
		}
		mp, err := readOr(ctx, metric.MeterProvider(metricnoop.NewMeterProvider()), sdk.MeterProvider)
		if err != nil {
			return Runtime{}, err
		}
		lp, err := readOr(ctx, log.LoggerProvider(lognoop.NewLoggerProvider()), sdk.LoggerProvider)
		if err != nil {
			return Runtime{}, err
		}

		otel.SetTextMapPropagator(tmp)
		otel.SetTracerProvider(tp)
		otel.SetMeterProvider(mp)
		global.SetLoggerProvider(lp)

		err = runtime.Start(runtime.WithMeterProvider(mp))
		if err != nil {
			return Runtime{}, err
		}

		inner, err := builder.Build(ctx)
		if err != nil {
			return Runtime{}, errors.Join(err, shutdown(tp, mp, lp).Close())
		}

		return Runtime{
			inner:          inner,
			tracerProvider: tp,
			meterProvider:  mp,
			loggerProvider: lp,
		}, nil
	})
}

// Run runs the inner runtime and always shuts the providers down afterwards,
// flushing any buffered telemetry.
func (rt Runtime) Run(ctx context.Context) (err error) {
	defer try.Close(&err, shutdown(
		rt.tracerProvider,
		rt.meterProvider,
		rt.loggerProvider,
	))

	return rt.inner.Run(ctx)
}

func readOr[T any](ctx context.Context, def T, r config.Reader[T]) (T, error) {
	t, err := config.Read(ctx, r)
	if errors.Is(err, config.ErrValueNotSet) {
		return def, nil
	}
	return t, err
}

type closerFunc func() error

func (f closerFunc) Close() error {
	return f()
}

type shutdowner interface {
	Shutdown(context.Context) error
}

func shutdown(vs ...any) closerFunc {
	return func() error {
		var errs []error
		for _, v := range vs {
			s, ok := v.(shutdowner)
			if !ok {
				continue
			}
			errs = append(errs, s.Shutdown(context.Background()))
		}
		return errors.Join(errs...)
	}
}
