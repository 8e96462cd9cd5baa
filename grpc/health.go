// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package grpc

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/z5labs/drain"
	"github.com/z5labs/drain/health"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// DefaultWatchInterval is how often Watch streams re-check their monitor.
const DefaultWatchInterval = 5 * time.Second

// HealthServer implements the standard gRPC health service on top of
// [health.Monitor]s. The empty service name reports overall health.
type HealthServer struct {
	grpc_health_v1.UnimplementedHealthServer

	log           *slog.Logger
	watchInterval time.Duration

	mu       sync.Mutex
	services map[string]health.Monitor
}

// HealthOption sets a value on a [HealthServer].
type HealthOption func(*HealthServer)

// WatchInterval overrides [DefaultWatchInterval].
func WatchInterval(d time.Duration) HealthOption {
	return func(hs *HealthServer) {
		if d > 0 {
			hs.watchInterval = d
		}
	}
}

// NewHealthServer initializes an empty [HealthServer].
func NewHealthServer(opts ...HealthOption) *HealthServer {
	hs := &HealthServer{
		log:           drain.Logger("github.com/z5labs/drain/grpc"),
		watchInterval: DefaultWatchInterval,
		services:      make(map[string]health.Monitor),
	}
	for _, opt := range opts {
		opt(hs)
	}
	return hs
}

// Monitor reports the health of service through m.
func (hs *HealthServer) Monitor(service string, m health.Monitor) {
	hs.mu.Lock()
	defer hs.mu.Unlock()
	hs.services[service] = m
}

func (hs *HealthServer) monitor(service string) (health.Monitor, bool) {
	hs.mu.Lock()
	defer hs.mu.Unlock()
	m, ok := hs.services[service]
	return m, ok
}

// Check implements the [grpc_health_v1.HealthServer] interface.
func (hs *HealthServer) Check(ctx context.Context, req *grpc_health_v1.HealthCheckRequest) (*grpc_health_v1.HealthCheckResponse, error) {
	m, ok := hs.monitor(req.GetService())
	if !ok {
		return nil, status.Error(codes.NotFound, "unknown service")
	}
	return &grpc_health_v1.HealthCheckResponse{
		Status: hs.status(ctx, req.GetService(), m),
	}, nil
}

func (hs *HealthServer) status(ctx context.Context, service string, m health.Monitor) grpc_health_v1.HealthCheckResponse_ServingStatus {
	healthy, err := m.Healthy(ctx)
	if err != nil {
		hs.log.ErrorContext(
			ctx,
			"failed to check health",
			slog.String("rpc.grpc.health.service", service),
			slog.Any("error", err),
		)
		return grpc_health_v1.HealthCheckResponse_NOT_SERVING
	}
	if healthy {
		return grpc_health_v1.HealthCheckResponse_SERVING
	}
	return grpc_health_v1.HealthCheckResponse_NOT_SERVING
}

// Watch implements the [grpc_health_v1.HealthServer] interface. The current
// status is sent immediately and then again on every change.
func (hs *HealthServer) Watch(req *grpc_health_v1.HealthCheckRequest, stream grpc.ServerStreamingServer[grpc_health_v1.HealthCheckResponse]) error {
	ctx := stream.Context()

	last := grpc_health_v1.HealthCheckResponse_UNKNOWN
	ticker := time.NewTicker(hs.watchInterval)
	defer ticker.Stop()

	for {
		current := grpc_health_v1.HealthCheckResponse_SERVICE_UNKNOWN
		m, ok := hs.monitor(req.GetService())
		if ok {
			current = hs.status(ctx, req.GetService(), m)
		}

		if current != last {
			err := stream.Send(&grpc_health_v1.HealthCheckResponse{Status: current})
			if err != nil {
				return status.Error(codes.Canceled, "stream has ended")
			}
			last = current
		}

		select {
		case <-ctx.Done():
			return status.Error(codes.Canceled, "stream has ended")
		case <-ticker.C:
		}
	}
}
