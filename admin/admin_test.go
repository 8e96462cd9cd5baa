// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package admin

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/z5labs/drain/config"
	"github.com/z5labs/drain/health"
	"github.com/z5labs/drain/queue"
	"github.com/z5labs/drain/queue/memory"
	"github.com/z5labs/drain/registry"
	memregistry "github.com/z5labs/drain/registry/memory"

	"github.com/stretchr/testify/require"
	"github.com/swaggest/openapi-go/openapi3"
)

type failingStore struct {
	queue.Store[string]
	err error
}

func (s failingStore) Size(ctx context.Context) (int64, error) {
	return 0, s.err
}

func do(t *testing.T, h http.Handler, method, path, contentType, body string) *http.Response {
	t.Helper()

	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	resp := w.Result()
	t.Cleanup(func() {
		resp.Body.Close()
	})
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()

	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestApi_Queue(t *testing.T) {
	t.Run("will report the queue size", func(t *testing.T) {
		store := memory.NewStore[string]()
		require.NoError(t, store.Push(context.Background(), queue.Envelopes("a", "b")...))

		api := NewApi[string](store, memregistry.NewRegistry())

		resp := do(t, api, http.MethodGet, "/queue/size", "", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, SizeResponse{Size: 2}, decode[SizeResponse](t, resp))
	})

	t.Run("will push every payload in the body", func(t *testing.T) {
		store := memory.NewStore[string]()
		api := NewApi[string](store, memregistry.NewRegistry())

		resp := do(t, api, http.MethodPost, "/queue/items", "application/json", `["a","b","c"]`)
		require.Equal(t, http.StatusAccepted, resp.StatusCode)
		require.Equal(t, PushResponse{Pushed: 3}, decode[PushResponse](t, resp))

		n, err := store.Size(context.Background())
		require.NoError(t, err)
		require.Equal(t, int64(3), n)

		env, ok, err := store.TryDequeue(context.Background(), time.Second)
		require.NoError(t, err)
		require.True(t, ok)
		require.Zero(t, env.Attempts)
		require.False(t, env.Failed)
	})

	t.Run("will clear the queue", func(t *testing.T) {
		store := memory.NewStore[string]()
		require.NoError(t, store.Push(context.Background(), queue.Envelopes("a", "b")...))

		api := NewApi[string](store, memregistry.NewRegistry())

		resp := do(t, api, http.MethodDelete, "/queue/items", "", "")
		require.Equal(t, http.StatusNoContent, resp.StatusCode)

		n, err := store.Size(context.Background())
		require.NoError(t, err)
		require.Zero(t, n)
	})

	t.Run("will return a bad request", func(t *testing.T) {
		t.Run("if the body is not a json array of payloads", func(t *testing.T) {
			store := memory.NewStore[string]()
			api := NewApi[string](store, memregistry.NewRegistry())

			resp := do(t, api, http.MethodPost, "/queue/items", "application/json", `{"a":1}`)
			require.Equal(t, http.StatusBadRequest, resp.StatusCode)
			require.Equal(t, "application/problem+json", resp.Header.Get("Content-Type"))

			pd := decode[ProblemDetail](t, resp)
			require.Equal(t, http.StatusBadRequest, pd.Status)

			n, err := store.Size(context.Background())
			require.NoError(t, err)
			require.Zero(t, n)
		})
	})

	t.Run("will return unsupported media type", func(t *testing.T) {
		t.Run("if the content type is not json", func(t *testing.T) {
			api := NewApi[string](memory.NewStore[string](), memregistry.NewRegistry())

			resp := do(t, api, http.MethodPost, "/queue/items", "text/plain", `["a"]`)
			require.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)
		})
	})

	t.Run("will return an internal server error", func(t *testing.T) {
		t.Run("if the store fails", func(t *testing.T) {
			store := failingStore{err: errors.New("connection refused")}
			api := NewApi[string](store, memregistry.NewRegistry())

			resp := do(t, api, http.MethodGet, "/queue/size", "", "")
			require.Equal(t, http.StatusInternalServerError, resp.StatusCode)

			pd := decode[ProblemDetail](t, resp)
			require.NotContains(t, pd.Detail, "connection refused")
		})
	})
}

func TestApi_Schemas(t *testing.T) {
	t.Run("will list the active and live versions", func(t *testing.T) {
		reg := memregistry.NewRegistry()
		api := NewApi[string](memory.NewStore[string](), reg)

		resp := do(t, api, http.MethodGet, "/schemas", "", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, SchemasResponse{Active: []string{}}, decode[SchemasResponse](t, resp))

		for _, v := range []string{"v2", "v1"} {
			resp := do(t, api, http.MethodPut, "/schemas/"+v, "", "")
			require.Equal(t, http.StatusNoContent, resp.StatusCode)
		}

		resp = do(t, api, http.MethodPut, "/schemas/live", "application/json", `{"version":"v2"}`)
		require.Equal(t, http.StatusNoContent, resp.StatusCode)

		resp = do(t, api, http.MethodGet, "/schemas", "", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, SchemasResponse{Active: []string{"v1", "v2"}, Live: "v2"}, decode[SchemasResponse](t, resp))
	})

	t.Run("will unset the live version", func(t *testing.T) {
		reg := memregistry.NewRegistry()
		require.NoError(t, reg.Add(context.Background(), "v1"))
		require.NoError(t, reg.SetLive(context.Background(), "v1"))

		api := NewApi[string](memory.NewStore[string](), reg)

		resp := do(t, api, http.MethodDelete, "/schemas/live", "", "")
		require.Equal(t, http.StatusNoContent, resp.StatusCode)

		_, err := reg.Live(context.Background())
		require.ErrorIs(t, err, registry.ErrNoLiveVersion)
	})

	t.Run("will return a conflict", func(t *testing.T) {
		t.Run("if the removed version is live", func(t *testing.T) {
			reg := memregistry.NewRegistry()
			require.NoError(t, reg.Add(context.Background(), "v1"))
			require.NoError(t, reg.SetLive(context.Background(), "v1"))

			api := NewApi[string](memory.NewStore[string](), reg)

			resp := do(t, api, http.MethodDelete, "/schemas/v1", "", "")
			require.Equal(t, http.StatusConflict, resp.StatusCode)

			active, err := reg.Active(context.Background())
			require.NoError(t, err)
			require.Equal(t, []string{"v1"}, active)
		})

		t.Run("if the live version is not active", func(t *testing.T) {
			api := NewApi[string](memory.NewStore[string](), memregistry.NewRegistry())

			resp := do(t, api, http.MethodPut, "/schemas/live", "application/json", `{"version":"v9"}`)
			require.Equal(t, http.StatusConflict, resp.StatusCode)
		})
	})

	t.Run("will return a bad request", func(t *testing.T) {
		t.Run("if the live version is empty", func(t *testing.T) {
			api := NewApi[string](memory.NewStore[string](), memregistry.NewRegistry())

			resp := do(t, api, http.MethodPut, "/schemas/live", "application/json", `{"version":""}`)
			require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	})
}

func TestApi_Health(t *testing.T) {
	t.Run("will always report liveness", func(t *testing.T) {
		api := NewApi[string](memory.NewStore[string](), memregistry.NewRegistry())

		resp := do(t, api, http.MethodGet, "/health/liveness", "", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("will report readiness from the monitor", func(t *testing.T) {
		var b health.Binary
		api := NewApi[string](memory.NewStore[string](), memregistry.NewRegistry(), Readiness(&b))

		resp := do(t, api, http.MethodGet, "/health/readiness", "", "")
		require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

		b.MarkHealthy()

		resp = do(t, api, http.MethodGet, "/health/readiness", "", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("will report not ready", func(t *testing.T) {
		t.Run("if the monitor fails", func(t *testing.T) {
			m := health.MonitorFunc(func(ctx context.Context) (bool, error) {
				return true, errors.New("unreachable")
			})
			api := NewApi[string](memory.NewStore[string](), memregistry.NewRegistry(), Readiness(m))

			resp := do(t, api, http.MethodGet, "/health/readiness", "", "")
			require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		})
	})
}

func TestApi_OpenAPI(t *testing.T) {
	t.Run("will describe every operation", func(t *testing.T) {
		api := NewApi[string](memory.NewStore[string](), memregistry.NewRegistry(), Title("scores"), Version("v3"))

		resp := do(t, api, http.MethodGet, "/openapi.json", "", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)

		b, err := io.ReadAll(resp.Body)
		require.NoError(t, err)

		var spec openapi3.Spec
		require.NoError(t, spec.UnmarshalJSON(b))
		require.Equal(t, "scores", spec.Info.Title)
		require.Equal(t, "v3", spec.Info.Version)

		paths := spec.Paths.MapOfPathItemValues
		require.Contains(t, paths, "/queue/size")
		require.Contains(t, paths, "/queue/items")
		require.Contains(t, paths, "/schemas")
		require.Contains(t, paths, "/schemas/live")
		require.Contains(t, paths, "/schemas/{version}")
	})
}

func TestBuild(t *testing.T) {
	t.Run("will return an error", func(t *testing.T) {
		t.Run("if the registry is not set", func(t *testing.T) {
			store := config.ReaderOf[queue.Store[string]](memory.NewStore[string]())

			_, err := Build(store, config.EmptyReader[registry.Registry]()).Build(context.Background())
			require.ErrorIs(t, err, config.ErrValueNotSet)
		})
	})

	t.Run("will serve the api", func(t *testing.T) {
		store := config.ReaderOf[queue.Store[string]](memory.NewStore[string]())
		reg := config.ReaderOf[registry.Registry](memregistry.NewRegistry())

		h, err := Build(store, reg).Build(context.Background())
		require.NoError(t, err)

		srv := httptest.NewServer(h)
		defer srv.Close()

		resp, err := http.Get(srv.URL + "/queue/size")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
	})
}
