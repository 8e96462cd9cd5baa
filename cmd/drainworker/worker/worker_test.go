// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package worker

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/z5labs/drain/backend"
	"github.com/z5labs/drain/config"
	drainhttp "github.com/z5labs/drain/http"
	"github.com/z5labs/drain/queue"
	"github.com/z5labs/drain/queue/codec"

	"github.com/stretchr/testify/require"
)

type recordingIndex struct {
	mu    sync.Mutex
	paths []string
	docs  []string
}

func (ri *recordingIndex) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b, _ := io.ReadAll(r.Body)

	ri.mu.Lock()
	defer ri.mu.Unlock()
	ri.paths = append(ri.paths, r.URL.Path)
	ri.docs = append(ri.docs, string(b))
	w.WriteHeader(http.StatusCreated)
}

func (ri *recordingIndex) received() ([]string, []string) {
	ri.mu.Lock()
	defer ri.mu.Unlock()
	return append([]string(nil), ri.paths...), append([]string(nil), ri.docs...)
}

func listen(t *testing.T) net.Listener {
	t.Helper()

	ls, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	return ls
}

func send(t *testing.T, method, url, body string) int {
	t.Helper()

	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	return resp.StatusCode
}

func TestBuild(t *testing.T) {
	t.Run("will forward queued documents to the live index version", func(t *testing.T) {
		idx := &recordingIndex{}
		idxSrv := httptest.NewServer(idx)
		defer idxSrv.Close()

		httpLs := listen(t)
		cfg := Config{
			Namespace:   config.ReaderOf("test"),
			StoreURL:    config.ReaderOf("memory://"),
			RegistryURL: config.ReaderOf("memory://"),
			IndexURL:    config.ReaderOf(idxSrv.URL),
			Queue: queue.Config{
				DequeueTimeout: config.ReaderOf(10 * time.Millisecond),
			},
			HTTP: drainhttp.Server{
				Listener: config.ReaderOf(httpLs),
			},
			GRPC: config.ReaderOf(listen(t)),
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		rt, err := Build(cfg).Build(ctx)
		require.NoError(t, err)

		errCh := make(chan error, 1)
		go func() {
			errCh <- rt.Run(ctx)
		}()

		admin := "http://" + httpLs.Addr().String()
		require.Equal(t, http.StatusNoContent, send(t, http.MethodPut, admin+"/schemas/v1", ""))
		require.Equal(t, http.StatusNoContent, send(t, http.MethodPut, admin+"/schemas/live", `{"version":"v1"}`))
		require.Equal(t, http.StatusAccepted, send(t, http.MethodPost, admin+"/queue/items", `[{"id":1},{"id":2}]`))

		require.Eventually(t, func() bool {
			_, docs := idx.received()
			return len(docs) == 2
		}, 5*time.Second, 10*time.Millisecond)

		paths, docs := idx.received()
		require.Equal(t, []string{"/v1/documents", "/v1/documents"}, paths)
		require.ElementsMatch(t, []string{`{"id":1}`, `{"id":2}`}, docs)

		cancel()
		select {
		case err := <-errCh:
			require.NoError(t, err)
		case <-time.After(15 * time.Second):
			t.Fatal("worker did not stop")
		}
	})

	t.Run("will drain the queue and exit in job mode", func(t *testing.T) {
		idx := &recordingIndex{}
		idxSrv := httptest.NewServer(idx)
		defer idxSrv.Close()

		ctx := context.Background()
		b := backend.New("test")
		defer b.Close()

		store, err := backend.OpenQueue(ctx, b, "memory://", "default", queue.Codec[Document](codec.JSON[Document]{}))
		require.NoError(t, err)
		require.NoError(t, store.Push(ctx, queue.Envelopes[Document](Document(`"a"`), Document(`"b"`), Document(`"c"`))...))

		reg, err := b.OpenRegistry(ctx, "memory://")
		require.NoError(t, err)
		require.NoError(t, reg.Add(ctx, "v2"))
		require.NoError(t, reg.SetLive(ctx, "v2"))

		cfg := Config{
			Mode:        config.ReaderOf(ModeJob),
			StoreURL:    config.ReaderOf("memory://"),
			RegistryURL: config.ReaderOf("memory://"),
			IndexURL:    config.ReaderOf(idxSrv.URL),
			Queue: queue.Config{
				Workers:        config.ReaderOf(2),
				DequeueTimeout: config.ReaderOf(10 * time.Millisecond),
			},
			Backends: b,
		}

		rt, err := Build(cfg).Build(ctx)
		require.NoError(t, err)
		require.NoError(t, rt.Run(ctx))

		paths, docs := idx.received()
		require.Equal(t, []string{"/v2/documents", "/v2/documents", "/v2/documents"}, paths)
		require.ElementsMatch(t, []string{`"a"`, `"b"`, `"c"`}, docs)

		n, err := store.Size(ctx)
		require.NoError(t, err)
		require.Zero(t, n)
	})

	t.Run("will return an error", func(t *testing.T) {
		t.Run("if the mode is unknown", func(t *testing.T) {
			cfg := Config{
				Mode: config.ReaderOf("daemon"),
			}

			_, err := Build(cfg).Build(context.Background())

			var modeErr UnknownModeError
			require.ErrorAs(t, err, &modeErr)
			require.Equal(t, "daemon", modeErr.Mode)
		})

		t.Run("if the index url is not set", func(t *testing.T) {
			cfg := Config{
				StoreURL:    config.ReaderOf("memory://"),
				RegistryURL: config.ReaderOf("memory://"),
			}

			_, err := Build(cfg).Build(context.Background())
			require.ErrorIs(t, err, config.ErrValueNotSet)
		})

		t.Run("if the store url is not supported", func(t *testing.T) {
			cfg := Config{
				StoreURL:    config.ReaderOf("ftp://example.com"),
				RegistryURL: config.ReaderOf("memory://"),
				IndexURL:    config.ReaderOf("http://localhost:9200"),
			}

			_, err := Build(cfg).Build(context.Background())
			require.Error(t, err)
		})
	})
}
