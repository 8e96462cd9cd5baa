// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package admin

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"

	"github.com/z5labs/drain/queue"
	"github.com/z5labs/drain/registry"

	"github.com/go-chi/chi/v5"
)

// SizeResponse is returned by GET /queue/size.
type SizeResponse struct {
	Size int64 `json:"size"`
}

// PushResponse is returned by POST /queue/items.
type PushResponse struct {
	Pushed int `json:"pushed"`
}

// SchemasResponse is returned by GET /schemas.
type SchemasResponse struct {
	Active []string `json:"active"`
	Live   string   `json:"live,omitempty"`
}

// SetLiveRequest is the body of PUT /schemas/live.
type SetLiveRequest struct {
	Version string `json:"version"`
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

func readJSON(r *http.Request, v any) error {
	contentType := r.Header.Get("Content-Type")
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || mediaType != "application/json" {
		return unsupportedMediaType(contentType)
	}

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	err = dec.Decode(v)
	if err != nil {
		return badRequest("invalid json body: " + err.Error())
	}
	return nil
}

func (api *Api[T]) size(w http.ResponseWriter, r *http.Request) error {
	n, err := api.store.Size(r.Context())
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, SizeResponse{Size: n})
}

func (api *Api[T]) push(w http.ResponseWriter, r *http.Request) error {
	var payloads []T
	err := readJSON(r, &payloads)
	if err != nil {
		return err
	}

	err = api.store.Push(r.Context(), queue.Envelopes(payloads...)...)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusAccepted, PushResponse{Pushed: len(payloads)})
}

func (api *Api[T]) clear(w http.ResponseWriter, r *http.Request) error {
	err := api.store.Clear(r.Context())
	if err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (api *Api[T]) schemas(w http.ResponseWriter, r *http.Request) error {
	active, err := api.registry.Active(r.Context())
	if err != nil {
		return err
	}

	live, err := api.registry.Live(r.Context())
	if err != nil && !errors.Is(err, registry.ErrNoLiveVersion) {
		return err
	}

	if active == nil {
		active = []string{}
	}
	return writeJSON(w, http.StatusOK, SchemasResponse{
		Active: active,
		Live:   live,
	})
}

func (api *Api[T]) addVersion(w http.ResponseWriter, r *http.Request) error {
	err := api.registry.Add(r.Context(), chi.URLParam(r, "version"))
	if err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (api *Api[T]) removeVersion(w http.ResponseWriter, r *http.Request) error {
	err := api.registry.Remove(r.Context(), chi.URLParam(r, "version"))
	if err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (api *Api[T]) setLive(w http.ResponseWriter, r *http.Request) error {
	var req SetLiveRequest
	err := readJSON(r, &req)
	if err != nil {
		return err
	}

	err = registry.Validate(req.Version)
	if err != nil {
		return err
	}

	err = api.registry.SetLive(r.Context(), req.Version)
	if err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (api *Api[T]) clearLive(w http.ResponseWriter, r *http.Request) error {
	err := api.registry.ClearLive(r.Context())
	if err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}
