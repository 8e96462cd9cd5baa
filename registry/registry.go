// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package registry tracks which downstream index schema versions exist and
// which one is live.
//
// A version must be active before it can be made live, and the live version
// can not be removed from the active set. Every backend checks these rules
// atomically with the mutation.
package registry

import (
	"context"
	"errors"
)

var (
	// ErrVersionLive is returned when removing the live version.
	ErrVersionLive = errors.New("registry: version is live")

	// ErrVersionNotActive is returned when making an unknown version live.
	ErrVersionNotActive = errors.New("registry: version is not active")

	// ErrNoLiveVersion is returned by Live when no version is live.
	ErrNoLiveVersion = errors.New("registry: no live version")

	// ErrInvalidVersion is returned for empty version strings.
	ErrInvalidVersion = errors.New("registry: version must not be empty")
)

// Registry stores the active schema versions and the live one.
type Registry interface {
	// Add makes version active. Adding an active version is a no-op.
	Add(ctx context.Context, version string) error

	// Remove deactivates version. It fails with [ErrVersionLive] if version
	// is live. Removing an unknown version is a no-op.
	Remove(ctx context.Context, version string) error

	// Live returns the live version or [ErrNoLiveVersion].
	Live(ctx context.Context) (string, error)

	// SetLive makes an active version live. It fails with [ErrVersionNotActive]
	// if version was never added or has been removed.
	SetLive(ctx context.Context, version string) error

	// ClearLive unsets the live version.
	ClearLive(ctx context.Context) error

	// Active returns every active version in lexical order.
	Active(ctx context.Context) ([]string, error)
}

// Validate returns [ErrInvalidVersion] for an empty version.
func Validate(version string) error {
	if version == "" {
		return ErrInvalidVersion
	}
	return nil
}
