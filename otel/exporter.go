// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package otel

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/z5labs/drain/concurrent"
	"github.com/z5labs/drain/config"

	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
)

// OTLP transport protocols accepted in OTEL_EXPORTER_OTLP_PROTOCOL.
const (
	ProtocolGRPC         = "grpc"
	ProtocolHTTPProtobuf = "http/protobuf"
)

// UnsupportedProtocolError is returned for an unknown OTLP protocol.
type UnsupportedProtocolError struct {
	Protocol string
}

func (e UnsupportedProtocolError) Error() string {
	return fmt.Sprintf("otel: unsupported otlp protocol: %q", e.Protocol)
}

// ProtocolFromEnv reads OTEL_EXPORTER_OTLP_PROTOCOL, defaulting to grpc.
func ProtocolFromEnv() config.Reader[string] {
	return config.Default(ProtocolGRPC, config.Env("OTEL_EXPORTER_OTLP_PROTOCOL"))
}

// Exporter is the OTLP destination of a single signal. Conns is only used
// with the grpc protocol and may be shared between signals.
type Exporter struct {
	Protocol config.Reader[string]
	Endpoint config.Reader[string]
	Conns    *concurrent.Cache[string, *grpc.ClientConn]
}

func exporterFromEnv(signal string, conns *concurrent.Cache[string, *grpc.ClientConn]) Exporter {
	return Exporter{
		Protocol: ProtocolFromEnv(),
		Endpoint: config.Or(
			config.Env("OTEL_EXPORTER_OTLP_"+signal+"_ENDPOINT"),
			config.Env("OTEL_EXPORTER_OTLP_ENDPOINT"),
		),
		Conns: conns,
	}
}

// SpanExporterFromEnv reads the trace exporter from the OTEL_EXPORTER_OTLP_* variables.
func SpanExporterFromEnv(conns *concurrent.Cache[string, *grpc.ClientConn]) SpanExporter {
	return SpanExporter{exporterFromEnv("TRACES", conns)}
}

// MetricExporterFromEnv reads the metric exporter from the OTEL_EXPORTER_OTLP_* variables.
func MetricExporterFromEnv(conns *concurrent.Cache[string, *grpc.ClientConn]) MetricExporter {
	return MetricExporter{exporterFromEnv("METRICS", conns)}
}

// LogExporterFromEnv reads the log exporter from the OTEL_EXPORTER_OTLP_* variables.
func LogExporterFromEnv(conns *concurrent.Cache[string, *grpc.ClientConn]) LogExporter {
	return LogExporter{exporterFromEnv("LOGS", conns)}
}

type target struct {
	protocol string
	endpoint string
}

// resolve returns false when no endpoint is configured.
func (e Exporter) resolve(ctx context.Context) (target, bool, error) {
	endpoint, err := config.Read(ctx, e.Endpoint)
	if errors.Is(err, config.ErrValueNotSet) {
		return target{}, false, nil
	}
	if err != nil {
		return target{}, false, err
	}

	protocol, err := readOr(ctx, ProtocolGRPC, e.Protocol)
	if err != nil {
		return target{}, false, err
	}
	switch protocol {
	case ProtocolGRPC, ProtocolHTTPProtobuf:
	default:
		return target{}, false, UnsupportedProtocolError{Protocol: protocol}
	}
	return target{protocol: protocol, endpoint: endpoint}, true, nil
}

func (e Exporter) conn(endpoint string) (*grpc.ClientConn, error) {
	newConn := func() (*grpc.ClientConn, error) {
		addr, secure := grpcTarget(endpoint)
		creds := insecure.NewCredentials()
		if secure {
			creds = credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
		}
		return grpc.NewClient(addr, grpc.WithTransportCredentials(creds))
	}
	if e.Conns == nil {
		return newConn()
	}
	return e.Conns.GetOr(endpoint, newConn)
}

// grpcTarget strips the scheme from an OTLP endpoint URL. Only https
// endpoints are dialed with TLS.
func grpcTarget(endpoint string) (string, bool) {
	if !strings.Contains(endpoint, "://") {
		return endpoint, false
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return endpoint, false
	}
	return u.Host, u.Scheme == "https"
}

// SpanExporter reads an OTLP trace exporter.
type SpanExporter struct {
	Exporter
}

// Read implements the [config.Reader] interface.
func (cfg SpanExporter) Read(ctx context.Context) (config.Value[sdktrace.SpanExporter], error) {
	t, ok, err := cfg.resolve(ctx)
	if !ok || err != nil {
		return config.Value[sdktrace.SpanExporter]{}, err
	}

	var exp sdktrace.SpanExporter
	switch t.protocol {
	case ProtocolGRPC:
		cc, err := cfg.conn(t.endpoint)
		if err != nil {
			return config.Value[sdktrace.SpanExporter]{}, err
		}
		exp, err = otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(cc))
		if err != nil {
			return config.Value[sdktrace.SpanExporter]{}, err
		}
	default:
		exp, err = otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(t.endpoint))
		if err != nil {
			return config.Value[sdktrace.SpanExporter]{}, err
		}
	}
	return config.ValueOf(exp), nil
}

// MetricExporter reads an OTLP metric exporter.
type MetricExporter struct {
	Exporter
}

// Read implements the [config.Reader] interface.
func (cfg MetricExporter) Read(ctx context.Context) (config.Value[sdkmetric.Exporter], error) {
	t, ok, err := cfg.resolve(ctx)
	if !ok || err != nil {
		return config.Value[sdkmetric.Exporter]{}, err
	}

	var exp sdkmetric.Exporter
	switch t.protocol {
	case ProtocolGRPC:
		cc, err := cfg.conn(t.endpoint)
		if err != nil {
			return config.Value[sdkmetric.Exporter]{}, err
		}
		exp, err = otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithGRPCConn(cc))
		if err != nil {
			return config.Value[sdkmetric.Exporter]{}, err
		}
	default:
		exp, err = otlpmetrichttp.New(ctx, otlpmetrichttp.WithEndpointURL(t.endpoint))
		if err != nil {
			return config.Value[sdkmetric.Exporter]{}, err
		}
	}
	return config.ValueOf(exp), nil
}

// LogExporter reads an OTLP log exporter.
type LogExporter struct {
	Exporter
}

// Read implements the [config.Reader] interface.
func (cfg LogExporter) Read(ctx context.Context) (config.Value[sdklog.Exporter], error) {
	t, ok, err := cfg.resolve(ctx)
	if !ok || err != nil {
		return config.Value[sdklog.Exporter]{}, err
	}

	var exp sdklog.Exporter
	switch t.protocol {
	case ProtocolGRPC:
		cc, err := cfg.conn(t.endpoint)
		if err != nil {
			return config.Value[sdklog.Exporter]{}, err
		}
		exp, err = otlploggrpc.New(ctx, otlploggrpc.WithGRPCConn(cc))
		if err != nil {
			return config.Value[sdklog.Exporter]{}, err
		}
	default:
		exp, err = otlploghttp.New(ctx, otlploghttp.WithEndpointURL(t.endpoint))
		if err != nil {
			return config.Value[sdklog.Exporter]{}, err
		}
	}
	return config.ValueOf(exp), nil
}
