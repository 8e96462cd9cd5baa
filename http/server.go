// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package http runs an [http.Handler] as an app.Runtime.
package http

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/z5labs/drain"
	"github.com/z5labs/drain/app"
	"github.com/z5labs/drain/config"

	"github.com/sourcegraph/conc/pool"
)

// Server holds configuration readers for an HTTP server. Unset readers
// fall back to the defaults documented on [ServerFromEnv].
type Server struct {
	Listener          config.Reader[net.Listener]
	ReadTimeout       config.Reader[time.Duration]
	ReadHeaderTimeout config.Reader[time.Duration]
	WriteTimeout      config.Reader[time.Duration]
	IdleTimeout       config.Reader[time.Duration]
	ShutdownTimeout   config.Reader[time.Duration]
}

// AddrFromEnv reads the listen address from DRAIN_HTTP_ADDR, defaulting to ":8080".
func AddrFromEnv() config.Reader[string] {
	return config.Default(":8080", config.Env("DRAIN_HTTP_ADDR"))
}

// Listener opens a TCP listener on the address read from addr.
func Listener(addr config.Reader[string]) config.Reader[net.Listener] {
	return config.Map(addr, func(ctx context.Context, a string) (net.Listener, error) {
		return net.Listen("tcp", a)
	})
}

// ServerFromEnv reads the server configuration from the environment:
//   - DRAIN_HTTP_ADDR (default ":8080")
//   - DRAIN_HTTP_READ_TIMEOUT (default 5s)
//   - DRAIN_HTTP_READ_HEADER_TIMEOUT (default 2s)
//   - DRAIN_HTTP_WRITE_TIMEOUT (default 10s)
//   - DRAIN_HTTP_IDLE_TIMEOUT (default 120s)
//   - DRAIN_HTTP_SHUTDOWN_TIMEOUT (default 10s)
func ServerFromEnv() Server {
	return Server{
		Listener:          Listener(AddrFromEnv()),
		ReadTimeout:       config.DurationFromString(config.Env("DRAIN_HTTP_READ_TIMEOUT")),
		ReadHeaderTimeout: config.DurationFromString(config.Env("DRAIN_HTTP_READ_HEADER_TIMEOUT")),
		WriteTimeout:      config.DurationFromString(config.Env("DRAIN_HTTP_WRITE_TIMEOUT")),
		IdleTimeout:       config.DurationFromString(config.Env("DRAIN_HTTP_IDLE_TIMEOUT")),
		ShutdownTimeout:   config.DurationFromString(config.Env("DRAIN_HTTP_SHUTDOWN_TIMEOUT")),
	}
}

// Runtime serves HTTP until its context is cancelled.
type Runtime struct {
	ls              net.Listener
	srv             *http.Server
	shutdownTimeout time.Duration
}

// Addr returns the address the runtime listens on.
func (rt Runtime) Addr() net.Addr {
	return rt.ls.Addr()
}

// Run serves until ctx is cancelled and then shuts the server down,
// waiting at most the shutdown timeout for in-flight requests.
func (rt Runtime) Run(ctx context.Context) error {
	p := pool.New().WithContext(ctx).WithCancelOnError()

	p.Go(func(ctx context.Context) error {
		return rt.srv.Serve(rt.ls)
	})

	p.Go(func(ctx context.Context) error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), rt.shutdownTimeout)
		defer cancel()
		return rt.srv.Shutdown(shutdownCtx)
	})

	err := p.Wait()
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Build returns a builder for a [Runtime] serving the handler built by b.
func Build(srv Server, b app.Builder[http.Handler]) app.Builder[Runtime] {
	return app.Bind(b, func(h http.Handler) app.Builder[Runtime] {
		return app.BuilderFunc[Runtime](func(ctx context.Context) (Runtime, error) {
			ln, err := config.Read(ctx, srv.Listener)
			if err != nil {
				return Runtime{}, err
			}

			errLog := drain.Logger("github.com/z5labs/drain/http").Handler()

			return Runtime{
				ls: ln,
				srv: &http.Server{
					Handler:           h,
					ReadTimeout:       config.MustOr(ctx, 5*time.Second, srv.ReadTimeout),
					ReadHeaderTimeout: config.MustOr(ctx, 2*time.Second, srv.ReadHeaderTimeout),
					WriteTimeout:      config.MustOr(ctx, 10*time.Second, srv.WriteTimeout),
					IdleTimeout:       config.MustOr(ctx, 120*time.Second, srv.IdleTimeout),
					ErrorLog:          slog.NewLogLogger(errLog, slog.LevelError),
				},
				shutdownTimeout: config.MustOr(ctx, 10*time.Second, srv.ShutdownTimeout),
			}, nil
		})
	})
}
