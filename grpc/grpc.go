// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package grpc serves the standard gRPC health service for drain workers so
// orchestrators can probe a worker fleet the same way they probe other services.
package grpc

import (
	"context"
	"errors"
	"net"

	"github.com/z5labs/drain/app"
	"github.com/z5labs/drain/config"

	"github.com/sourcegraph/conc/pool"
	"go.opentelemetry.io/otel"
	"google.golang.org/grpc"
	experimental "google.golang.org/grpc/experimental/opentelemetry"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/stats/opentelemetry"
)

// AddrFromEnv reads the listen address from DRAIN_GRPC_ADDR, defaulting to ":9090".
func AddrFromEnv() config.Reader[string] {
	return config.Default(":9090", config.Env("DRAIN_GRPC_ADDR"))
}

// Listener opens a TCP listener on the address read from addr.
func Listener(addr config.Reader[string]) config.Reader[net.Listener] {
	return config.Map(addr, func(ctx context.Context, a string) (net.Listener, error) {
		return net.Listen("tcp", a)
	})
}

// NewServer returns a gRPC server instrumented with OpenTelemetry which serves hs
// and the reflection service.
func NewServer(hs *HealthServer) *grpc.Server {
	srv := grpc.NewServer(
		opentelemetry.ServerOption(opentelemetry.Options{
			MetricsOptions: opentelemetry.MetricsOptions{
				MeterProvider: otel.GetMeterProvider(),
				Metrics:       opentelemetry.DefaultMetrics(),
			},
			TraceOptions: experimental.TraceOptions{
				TracerProvider:    otel.GetTracerProvider(),
				TextMapPropagator: otel.GetTextMapPropagator(),
			},
		}),
	)
	grpc_health_v1.RegisterHealthServer(srv, hs)
	reflection.Register(srv)
	return srv
}

// Runtime serves a [grpc.Server] until its context is cancelled.
type Runtime struct {
	ls     net.Listener
	server *grpc.Server
}

// Build returns a builder for a [Runtime] serving hs on the listener read from ls.
// It must be called after the global OpenTelemetry providers are registered.
func Build(ls config.Reader[net.Listener], hs *HealthServer) app.Builder[Runtime] {
	return app.BuilderFunc[Runtime](func(ctx context.Context) (Runtime, error) {
		l, err := config.Read(ctx, ls)
		if err != nil {
			return Runtime{}, err
		}
		return Runtime{ls: l, server: NewServer(hs)}, nil
	})
}

// Addr returns the address the runtime listens on.
func (rt Runtime) Addr() net.Addr {
	return rt.ls.Addr()
}

// Run serves until ctx is cancelled and then stops gracefully.
func (rt Runtime) Run(ctx context.Context) error {
	p := pool.New().WithContext(ctx).WithCancelOnError()

	p.Go(func(ctx context.Context) error {
		return rt.server.Serve(rt.ls)
	})

	p.Go(func(ctx context.Context) error {
		<-ctx.Done()
		rt.server.GracefulStop()
		return nil
	})

	err := p.Wait()
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, grpc.ErrServerStopped) {
		return nil
	}
	return err
}
