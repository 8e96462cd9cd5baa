// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package index

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/z5labs/drain/config"
	"github.com/z5labs/drain/queue"
	"github.com/z5labs/drain/queue/codec"
	"github.com/z5labs/drain/registry"
	"github.com/z5labs/drain/registry/memory"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type document struct {
	Title string `json:"title"`
}

type request struct {
	path        string
	id          string
	contentType string
	body        string
}

type recordingIndex struct {
	mu       sync.Mutex
	status   int
	requests []request
}

func (ri *recordingIndex) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b, _ := io.ReadAll(r.Body)

	ri.mu.Lock()
	ri.requests = append(ri.requests, request{
		path: r.URL.Path,
		id:          r.Header.Get(IDHeader),
		contentType: r.Header.Get("Content-Type"),
		body:        string(b),
	})
	status := ri.status
	ri.mu.Unlock()

	if status == 0 {
		status = http.StatusCreated
	}
	w.WriteHeader(status)
	if status >= 300 {
		_, _ = w.Write([]byte("mapping conflict\n"))
	}
}

func newForwarder(t *testing.T, ri *recordingIndex, reg registry.Registry) *Forwarder[document] {
	t.Helper()

	srv := httptest.NewServer(ri)
	t.Cleanup(srv.Close)

	f, err := NewForwarder[document](srv.URL, reg, codec.JSON[document]{}, HTTPClient(srv.Client()))
	require.NoError(t, err)
	return f
}

func TestForwarder_Process(t *testing.T) {
	t.Run("will post the payload to the live version", func(t *testing.T) {
		reg := memory.NewRegistry()
		ctx := context.Background()
		require.NoError(t, reg.Add(ctx, "v1"))
		require.NoError(t, reg.SetLive(ctx, "v1"))

		ri := &recordingIndex{}
		f := newForwarder(t, ri, reg)

		env := queue.NewEnvelope(document{Title: "drain"})
		require.NoError(t, f.Process(ctx, &env))

		require.Len(t, ri.requests, 1)
		require.Equal(t, "/v1/documents", ri.requests[0].path)
		require.Equal(t, env.ID.String(), ri.requests[0].id)
		require.Equal(t, "application/json", ri.requests[0].contentType)
		require.JSONEq(t, `{"title":"drain"}`, ri.requests[0].body)
	})

	t.Run("will send the content type of the payload codec", func(t *testing.T) {
		reg := memory.NewRegistry()
		ctx := context.Background()
		require.NoError(t, reg.Add(ctx, "v1"))
		require.NoError(t, reg.SetLive(ctx, "v1"))

		ri := &recordingIndex{}
		srv := httptest.NewServer(ri)
		t.Cleanup(srv.Close)

		f, err := NewForwarder[*wrapperspb.StringValue](srv.URL, reg, codec.Proto[*wrapperspb.StringValue]{})
		require.NoError(t, err)

		env := queue.NewEnvelope(wrapperspb.String("drain"))
		require.NoError(t, f.Process(ctx, &env))

		require.Len(t, ri.requests, 1)
		require.Equal(t, "application/x-protobuf", ri.requests[0].contentType)

		var got wrapperspb.StringValue
		require.NoError(t, proto.Unmarshal([]byte(ri.requests[0].body), &got))
		require.Equal(t, "drain", got.GetValue())
	})

	t.Run("will follow a live version switch", func(t *testing.T) {
		reg := memory.NewRegistry()
		ctx := context.Background()
		require.NoError(t, reg.Add(ctx, "v1"))
		require.NoError(t, reg.Add(ctx, "v2"))
		require.NoError(t, reg.SetLive(ctx, "v1"))

		ri := &recordingIndex{}
		f := newForwarder(t, ri, reg)

		first := queue.NewEnvelope(document{Title: "a"})
		require.NoError(t, f.Process(ctx, &first))

		require.NoError(t, reg.SetLive(ctx, "v2"))

		second := queue.NewEnvelope(document{Title: "b"})
		require.NoError(t, f.Process(ctx, &second))

		require.Len(t, ri.requests, 2)
		require.Equal(t, "/v1/documents", ri.requests[0].path)
		require.Equal(t, "/v2/documents", ri.requests[1].path)
	})

	t.Run("will return an error", func(t *testing.T) {
		t.Run("if no version is live", func(t *testing.T) {
			ri := &recordingIndex{}
			f := newForwarder(t, ri, memory.NewRegistry())

			env := queue.NewEnvelope(document{})
			err := f.Process(context.Background(), &env)
			require.ErrorIs(t, err, registry.ErrNoLiveVersion)
			require.Empty(t, ri.requests)
		})

		t.Run("if the index responds with a non 2xx status", func(t *testing.T) {
			reg := memory.NewRegistry()
			ctx := context.Background()
			require.NoError(t, reg.Add(ctx, "v1"))
			require.NoError(t, reg.SetLive(ctx, "v1"))

			ri := &recordingIndex{status: http.StatusConflict}
			f := newForwarder(t, ri, reg)

			env := queue.NewEnvelope(document{})
			err := f.Process(ctx, &env)
			require.ErrorIs(t, err, ErrUnexpectedStatus)

			var serr StatusError
			require.ErrorAs(t, err, &serr)
			require.Equal(t, http.StatusConflict, serr.StatusCode)
			require.Equal(t, "mapping conflict", serr.Body)
		})

		t.Run("if the index does not respond within the timeout", func(t *testing.T) {
			reg := memory.NewRegistry()
			ctx := context.Background()
			require.NoError(t, reg.Add(ctx, "v1"))
			require.NoError(t, reg.SetLive(ctx, "v1"))

			release := make(chan struct{})
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-r.Context().Done():
				case <-release:
				}
			}))
			t.Cleanup(srv.Close)
			t.Cleanup(func() {
				close(release)
			})

			f, err := NewForwarder[document](srv.URL, reg, codec.JSON[document]{}, Timeout(50*time.Millisecond))
			require.NoError(t, err)

			env := queue.NewEnvelope(document{})
			err = f.Process(context.WithoutCancel(ctx), &env)

			var nerr net.Error
			require.ErrorAs(t, err, &nerr)
			require.True(t, nerr.Timeout())
		})
	})
}

func TestNewForwarder(t *testing.T) {
	t.Run("will return an error", func(t *testing.T) {
		t.Run("if the url is not http", func(t *testing.T) {
			_, err := NewForwarder[document]("ftp://index", memory.NewRegistry(), codec.JSON[document]{})
			require.Error(t, err)
		})
	})

	t.Run("will join the version onto the base path", func(t *testing.T) {
		f, err := NewForwarder[document]("http://index:9200/search/", memory.NewRegistry(), codec.JSON[document]{})
		require.NoError(t, err)
		require.Equal(t, "http://index:9200/search/v3/documents", f.DocumentsURL("v3"))
	})
}

func TestBuild(t *testing.T) {
	t.Run("will return an error", func(t *testing.T) {
		t.Run("if the url is unset", func(t *testing.T) {
			b := Build[document](config.EmptyReader[string](), config.ReaderOf[registry.Registry](memory.NewRegistry()), codec.JSON[document]{})

			_, err := b.Build(context.Background())
			require.ErrorIs(t, err, config.ErrValueNotSet)
		})
	})
}
