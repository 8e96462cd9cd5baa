// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package memory provides an in-process [registry.Registry].
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/z5labs/drain/registry"
)

// Registry is an in-memory [registry.Registry].
type Registry struct {
	mu     sync.Mutex
	active map[string]struct{}
	live   string
}

// NewRegistry initializes an empty [Registry].
func NewRegistry() *Registry {
	return &Registry{
		active: make(map[string]struct{}),
	}
}

// Add implements the [registry.Registry] interface.
func (r *Registry) Add(ctx context.Context, version string) error {
	if err := registry.Validate(version); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.active[version] = struct{}{}
	return nil
}

// Remove implements the [registry.Registry] interface.
func (r *Registry) Remove(ctx context.Context, version string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if version != "" && version == r.live {
		return registry.ErrVersionLive
	}
	delete(r.active, version)
	return nil
}

// Live implements the [registry.Registry] interface.
func (r *Registry) Live(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.live == "" {
		return "", registry.ErrNoLiveVersion
	}
	return r.live, nil
}

// SetLive implements the [registry.Registry] interface.
func (r *Registry) SetLive(ctx context.Context, version string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.active[version]; !ok {
		return registry.ErrVersionNotActive
	}
	r.live = version
	return nil
}

// ClearLive implements the [registry.Registry] interface.
func (r *Registry) ClearLive(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.live = ""
	return nil
}

// Active implements the [registry.Registry] interface.
func (r *Registry) Active(ctx context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	versions := make([]string, 0, len(r.active))
	for v := range r.active {
		versions = append(versions, v)
	}
	slices.Sort(versions)
	return versions, nil
}
