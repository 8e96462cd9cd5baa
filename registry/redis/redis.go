// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package redis provides a [registry.Registry] stored in Redis.
//
// Active versions are members of the set "{<namespace>}:schemas:active" and the
// live version is the string "{<namespace>}:schemas:live". Rules which span both
// keys are checked inside Lua scripts so they are atomic with the write. The
// namespace is a hash tag so both keys land in the same Redis Cluster slot.
package redis

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/z5labs/drain/registry"

	"github.com/redis/go-redis/v9"
)

var removeScript = redis.NewScript(`
if redis.call('GET', KEYS[2]) == ARGV[1] then
	return 0
end
redis.call('SREM', KEYS[1], ARGV[1])
return 1
`)

var setLiveScript = redis.NewScript(`
if redis.call('SISMEMBER', KEYS[1], ARGV[1]) == 0 then
	return 0
end
redis.call('SET', KEYS[2], ARGV[1])
return 1
`)

// Registry is a [registry.Registry] backed by Redis.
type Registry struct {
	client    redis.UniversalClient
	activeKey string
	liveKey   string
}

// ActiveKey returns the key of the set holding the active versions of namespace.
func ActiveKey(namespace string) string {
	return "{" + namespace + "}:schemas:active"
}

// LiveKey returns the key holding the live version of namespace.
func LiveKey(namespace string) string {
	return "{" + namespace + "}:schemas:live"
}

// NewRegistry initializes a [Registry] whose keys are prefixed by namespace.
// The client is not closed by the registry.
func NewRegistry(client redis.UniversalClient, namespace string) *Registry {
	return &Registry{
		client:    client,
		activeKey: ActiveKey(namespace),
		liveKey:   LiveKey(namespace),
	}
}

// Add implements the [registry.Registry] interface.
func (r *Registry) Add(ctx context.Context, version string) error {
	if err := registry.Validate(version); err != nil {
		return err
	}

	err := r.client.SAdd(ctx, r.activeKey, version).Err()
	if err != nil {
		return fmt.Errorf("redis: failed to add version %s: %w", version, err)
	}
	return nil
}

// Remove implements the [registry.Registry] interface.
func (r *Registry) Remove(ctx context.Context, version string) error {
	removed, err := removeScript.Run(ctx, r.client, []string{r.activeKey, r.liveKey}, version).Int()
	if err != nil {
		return fmt.Errorf("redis: failed to remove version %s: %w", version, err)
	}
	if removed == 0 {
		return registry.ErrVersionLive
	}
	return nil
}

// Live implements the [registry.Registry] interface.
func (r *Registry) Live(ctx context.Context) (string, error) {
	v, err := r.client.Get(ctx, r.liveKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", registry.ErrNoLiveVersion
	}
	if err != nil {
		return "", fmt.Errorf("redis: failed to get live version: %w", err)
	}
	return v, nil
}

// SetLive implements the [registry.Registry] interface.
func (r *Registry) SetLive(ctx context.Context, version string) error {
	set, err := setLiveScript.Run(ctx, r.client, []string{r.activeKey, r.liveKey}, version).Int()
	if err != nil {
		return fmt.Errorf("redis: failed to set live version %s: %w", version, err)
	}
	if set == 0 {
		return registry.ErrVersionNotActive
	}
	return nil
}

// ClearLive implements the [registry.Registry] interface.
func (r *Registry) ClearLive(ctx context.Context) error {
	err := r.client.Del(ctx, r.liveKey).Err()
	if err != nil {
		return fmt.Errorf("redis: failed to clear live version: %w", err)
	}
	return nil
}

// Active implements the [registry.Registry] interface.
func (r *Registry) Active(ctx context.Context) ([]string, error) {
	versions, err := r.client.SMembers(ctx, r.activeKey).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: failed to list active versions: %w", err)
	}
	slices.Sort(versions)
	return versions, nil
}
