// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package admin exposes an HTTP API for operating a drain deployment: queue
// inspection and seeding, schema version management, health probes and an
// OpenAPI document describing all of it at /openapi.json.
package admin

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/z5labs/drain"
	"github.com/z5labs/drain/health"
	"github.com/z5labs/drain/queue"
	"github.com/z5labs/drain/registry"

	"github.com/go-chi/chi/v5"
	"github.com/swaggest/jsonschema-go"
	"github.com/swaggest/openapi-go/openapi3"
	"github.com/z5labs/sdk-go/ptr"
	"github.com/z5labs/sdk-go/try"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Options are the configurable values of an [Api].
type Options struct {
	title     string
	version   string
	readiness health.Monitor
}

// Option sets a value on [Options].
type Option func(*Options)

// Title sets the title of the OpenAPI document.
func Title(title string) Option {
	return func(o *Options) {
		o.title = title
	}
}

// Version sets the version of the OpenAPI document.
func Version(version string) Option {
	return func(o *Options) {
		o.version = version
	}
}

// Readiness reports 503 from /health/readiness while m is unhealthy.
func Readiness(m health.Monitor) Option {
	return func(o *Options) {
		o.readiness = m
	}
}

// Api is the admin [http.Handler] for a queue of T payloads and its schema registry.
type Api[T any] struct {
	log      *slog.Logger
	store    queue.Store[T]
	registry registry.Registry
	mux      *chi.Mux
	def      *openapi3.Spec
	handler  http.Handler
}

// NewApi initializes an [Api].
func NewApi[T any](store queue.Store[T], reg registry.Registry, opts ...Option) *Api[T] {
	o := &Options{
		title:   "drain",
		version: "v1",
		readiness: health.MonitorFunc(func(ctx context.Context) (bool, error) {
			return true, nil
		}),
	}
	for _, opt := range opts {
		opt(o)
	}

	api := &Api[T]{
		log:      drain.Logger("github.com/z5labs/drain/admin"),
		store:    store,
		registry: reg,
		mux:      chi.NewMux(),
		def: &openapi3.Spec{
			Openapi: "3.0",
			Info: openapi3.Info{
				Title:   o.title,
				Version: o.version,
			},
		},
	}

	api.register(operation{
		method:   http.MethodGet,
		pattern:  "/queue/size",
		summary:  "Number of queued items",
		status:   http.StatusOK,
		response: SizeResponse{},
		handle:   api.size,
	})
	api.register(operation{
		method:   http.MethodPost,
		pattern:  "/queue/items",
		summary:  "Push a batch of payloads atomically",
		request:  []T{},
		status:   http.StatusAccepted,
		response: PushResponse{},
		problems: []int{http.StatusBadRequest, http.StatusUnsupportedMediaType},
		handle:   api.push,
	})
	api.register(operation{
		method:  http.MethodDelete,
		pattern: "/queue/items",
		summary: "Remove every queued item",
		status:  http.StatusNoContent,
		handle:  api.clear,
	})
	api.register(operation{
		method:   http.MethodGet,
		pattern:  "/schemas",
		summary:  "Active schema versions and the live one",
		status:   http.StatusOK,
		response: SchemasResponse{},
		handle:   api.schemas,
	})
	api.register(operation{
		method:   http.MethodPut,
		pattern:  "/schemas/live",
		summary:  "Switch the live schema version",
		request:  SetLiveRequest{},
		status:   http.StatusNoContent,
		problems: []int{http.StatusBadRequest, http.StatusConflict, http.StatusUnsupportedMediaType},
		handle:   api.setLive,
	})
	api.register(operation{
		method:  http.MethodDelete,
		pattern: "/schemas/live",
		summary: "Unset the live schema version",
		status:  http.StatusNoContent,
		handle:  api.clearLive,
	})
	api.register(operation{
		method:   http.MethodPut,
		pattern:  "/schemas/{version}",
		summary:  "Activate a schema version",
		params:   []string{"version"},
		status:   http.StatusNoContent,
		problems: []int{http.StatusBadRequest},
		handle:   api.addVersion,
	})
	api.register(operation{
		method:   http.MethodDelete,
		pattern:  "/schemas/{version}",
		summary:  "Deactivate a schema version",
		params:   []string{"version"},
		status:   http.StatusNoContent,
		problems: []int{http.StatusBadRequest, http.StatusConflict},
		handle:   api.removeVersion,
	})

	api.mux.Get("/health/liveness", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	api.mux.Get("/health/readiness", func(w http.ResponseWriter, r *http.Request) {
		healthy, err := o.readiness.Healthy(r.Context())
		if err != nil {
			api.log.WarnContext(r.Context(), "readiness check failed", slog.Any("error", err))
		}
		if !healthy || err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	api.mux.Get("/openapi.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		err := json.NewEncoder(w).Encode(api.def)
		if err != nil {
			api.log.ErrorContext(r.Context(), "failed to encode openapi schema to json", slog.Any("error", err))
		}
	})

	api.handler = otelhttp.NewHandler(api.mux, "admin")
	return api
}

// ServeHTTP implements the [http.Handler] interface.
func (api *Api[T]) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	api.handler.ServeHTTP(w, r)
}

type operation struct {
	method   string
	pattern  string
	summary  string
	params   []string
	request  any
	status   int
	response any
	problems []int
	handle   func(http.ResponseWriter, *http.Request) error
}

func (api *Api[T]) register(op operation) {
	spec := openapi3.Operation{
		Summary: ptr.Ref(op.summary),
		Responses: openapi3.Responses{
			MapOfResponseOrRefValues: map[string]openapi3.ResponseOrRef{
				strconv.Itoa(op.status): {
					Response: &openapi3.Response{
						Description: http.StatusText(op.status),
						Content:     jsonContent("application/json", op.response),
					},
				},
				strconv.Itoa(http.StatusInternalServerError): problemResponse(http.StatusInternalServerError),
			},
		},
	}
	for _, status := range op.problems {
		spec.Responses.MapOfResponseOrRefValues[strconv.Itoa(status)] = problemResponse(status)
	}
	for _, name := range op.params {
		spec.Parameters = append(spec.Parameters, openapi3.ParameterOrRef{
			Parameter: &openapi3.Parameter{
				Name:     name,
				In:       openapi3.ParameterInPath,
				Required: ptr.Ref(true),
				Schema:   schemaOf(""),
			},
		})
	}
	if op.request != nil {
		spec.RequestBody = &openapi3.RequestBodyOrRef{
			RequestBody: &openapi3.RequestBody{
				Required: ptr.Ref(true),
				Content:  jsonContent("application/json", op.request),
			},
		}
	}

	err := api.def.AddOperation(op.method, op.pattern, spec)
	if err != nil {
		panic(err)
	}

	api.mux.Method(op.method, op.pattern, otelhttp.WithRouteTag(op.pattern, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := serve(op.handle, w, r)
		if err != nil {
			api.writeProblem(r.Context(), w, err)
		}
	})))
}

func serve(h func(http.ResponseWriter, *http.Request) error, w http.ResponseWriter, r *http.Request) (err error) {
	defer try.Recover(&err)
	return h(w, r)
}

func problemResponse(status int) openapi3.ResponseOrRef {
	return openapi3.ResponseOrRef{
		Response: &openapi3.Response{
			Description: http.StatusText(status),
			Content:     jsonContent("application/problem+json", ProblemDetail{}),
		},
	}
}

func jsonContent(mediaType string, v any) map[string]openapi3.MediaType {
	if v == nil {
		return nil
	}
	return map[string]openapi3.MediaType{
		mediaType: {Schema: schemaOf(v)},
	}
}

func schemaOf(v any) *openapi3.SchemaOrRef {
	var reflector jsonschema.Reflector
	s, err := reflector.Reflect(v, jsonschema.InlineRefs)
	if err != nil {
		panic(err)
	}

	var sor openapi3.SchemaOrRef
	sor.FromJSONSchema(s.ToSchemaOrBool())
	return &sor
}
