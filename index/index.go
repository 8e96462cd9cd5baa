// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package index forwards queue payloads to a search index which is versioned
// by schema.
//
// The live schema version is looked up in a [registry.Registry] for every
// item, so switching the live version in the registry moves new writes to the
// new index without restarting any worker.
package index

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/z5labs/drain/queue"
	"github.com/z5labs/drain/registry"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// ErrUnexpectedStatus is wrapped by [StatusError].
var ErrUnexpectedStatus = errors.New("index: unexpected status code")

// StatusError is returned for any non-2xx response from the index.
type StatusError struct {
	StatusCode int
	Body       string
}

// Error implements the [error] interface.
func (e StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("index: unexpected status code: %d", e.StatusCode)
	}
	return fmt.Sprintf("index: unexpected status code: %d: %s", e.StatusCode, e.Body)
}

// Unwrap allows [errors.Is] to match [ErrUnexpectedStatus].
func (e StatusError) Unwrap() error {
	return ErrUnexpectedStatus
}

// IDHeader carries the envelope ID so the index can deduplicate redeliveries.
const IDHeader = "Drain-Envelope-Id"

// DefaultTimeout bounds a whole request made by the default client.
const DefaultTimeout = 30 * time.Second

// Options are the configurable values of a [Forwarder].
type Options struct {
	client  *http.Client
	timeout time.Duration
}

// Option sets a value on [Options].
type Option func(*Options)

// HTTPClient overrides the default client, which is traced with otelhttp.
// The client's own timeout is used instead of [Timeout].
func HTTPClient(c *http.Client) Option {
	return func(o *Options) {
		o.client = c
	}
}

// Timeout bounds each request made by the default client.
// The default is [DefaultTimeout].
func Timeout(d time.Duration) Option {
	return func(o *Options) {
		o.timeout = d
	}
}

// contentTyper is implemented by codecs which know the media type they produce.
type contentTyper interface {
	ContentType() string
}

// Forwarder is a received hook which POSTs payloads to
// <base url>/<live version>/documents.
type Forwarder[T any] struct {
	base        *url.URL
	registry    registry.Registry
	codec       queue.Codec[T]
	contentType string
	client      *http.Client
}

// NewForwarder initializes a [Forwarder].
func NewForwarder[T any](baseURL string, reg registry.Registry, codec queue.Codec[T], opts ...Option) (*Forwarder[T], error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("index: invalid url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("index: url must be http or https: %s", baseURL)
	}

	o := &Options{
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.client == nil {
		o.client = &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   o.timeout,
		}
	}

	contentType := "application/octet-stream"
	if ct, ok := codec.(contentTyper); ok {
		contentType = ct.ContentType()
	}

	return &Forwarder[T]{
		base:        base,
		registry:    reg,
		codec:       codec,
		contentType: contentType,
		client:      o.client,
	}, nil
}

// DocumentsURL returns the endpoint documents of the given schema version are written to.
func (f *Forwarder[T]) DocumentsURL(version string) string {
	return f.base.JoinPath(version, "documents").String()
}

// Process implements the [queue.Processor] interface. A missing live version
// fails the item so it is retried once a version goes live.
func (f *Forwarder[T]) Process(ctx context.Context, env *queue.Envelope[T]) error {
	version, err := f.registry.Live(ctx)
	if err != nil {
		return fmt.Errorf("index: failed to resolve live version: %w", err)
	}

	body, err := f.codec.Encode(env.Payload)
	if err != nil {
		return fmt.Errorf("index: failed to encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.DocumentsURL(version), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("index: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", f.contentType)
	req.Header.Set(IDHeader, env.ID.String())

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("index: failed to execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return StatusError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(msg)),
		}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
