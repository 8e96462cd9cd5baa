// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package health reports the healthiness of application components.
package health

import (
	"context"
	"errors"
	"sync/atomic"
)

// Monitor reports its current state of health.
type Monitor interface {
	Healthy(context.Context) (bool, error)
}

// MonitorFunc is an adapter to allow the use of ordinary functions as [Monitor]s.
type MonitorFunc func(context.Context) (bool, error)

// Healthy implements the [Monitor] interface.
func (f MonitorFunc) Healthy(ctx context.Context) (bool, error) {
	return f(ctx)
}

// Binary is a [Monitor] with two states. It is safe for concurrent use
// and its zero value is unhealthy.
type Binary struct {
	healthy atomic.Bool
}

// MarkUnhealthy changes the state to unhealthy.
func (b *Binary) MarkUnhealthy() {
	b.healthy.Store(false)
}

// MarkHealthy changes the state to healthy.
func (b *Binary) MarkHealthy() {
	b.healthy.Store(true)
}

// Healthy implements the [Monitor] interface.
func (b *Binary) Healthy(ctx context.Context) (bool, error) {
	return b.healthy.Load(), nil
}

// Pinger is implemented by backend clients which can verify their connection.
type Pinger interface {
	Ping(context.Context) error
}

// Ping reports healthy as long as p can be pinged.
// The ping error is returned alongside the unhealthy state.
func Ping(p Pinger) Monitor {
	return MonitorFunc(func(ctx context.Context) (bool, error) {
		if err := p.Ping(ctx); err != nil {
			return false, err
		}
		return true, nil
	})
}

// AndMonitor is healthy only when every [Monitor] is healthy.
// It stops at the first unhealthy result or error.
type AndMonitor []Monitor

// And returns an [AndMonitor] of ms.
func And(ms ...Monitor) AndMonitor {
	return AndMonitor(ms)
}

// Healthy implements the [Monitor] interface.
func (am AndMonitor) Healthy(ctx context.Context) (bool, error) {
	for _, m := range am {
		healthy, err := m.Healthy(ctx)
		if !healthy || err != nil {
			return false, err
		}
	}
	return true, nil
}

// OrMonitor is healthy when any [Monitor] is healthy.
// Errors are only reported, joined, when no monitor is healthy.
type OrMonitor []Monitor

// Or returns an [OrMonitor] of ms.
func Or(ms ...Monitor) OrMonitor {
	return OrMonitor(ms)
}

// Healthy implements the [Monitor] interface.
func (om OrMonitor) Healthy(ctx context.Context) (bool, error) {
	var errs []error
	for _, m := range om {
		healthy, err := m.Healthy(ctx)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if healthy {
			return true, nil
		}
	}
	return false, errors.Join(errs...)
}
