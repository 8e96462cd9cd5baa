// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package queue

import (
	"errors"
	"fmt"
)

var (
	// ErrMarkedFailed is reported to error hooks when a received hook set
	// [Envelope.Failed] without returning an error.
	ErrMarkedFailed = errors.New("queue: item marked as failed")

	// ErrErrorThresholdExceeded is matched by every [ThresholdError].
	ErrErrorThresholdExceeded = errors.New("queue: error threshold exceeded")
)

// ThresholdError is returned by [Loop.Run] when the run aborts
// because too many items failed.
type ThresholdError struct {
	Failures  int
	Threshold int

	// Cause is the failure which tripped the threshold.
	Cause error
}

// Error implements the [error] interface.
func (e ThresholdError) Error() string {
	return fmt.Sprintf("queue: %d failures exceeded error threshold of %d: %v", e.Failures, e.Threshold, e.Cause)
}

// Unwrap allows [errors.Is] to match [ErrErrorThresholdExceeded] and the cause.
func (e ThresholdError) Unwrap() []error {
	return []error{ErrErrorThresholdExceeded, e.Cause}
}

// StoreError is returned by [Loop.Run] when the [Store] fails.
type StoreError struct {
	Op  string
	Err error
}

// Error implements the [error] interface.
func (e StoreError) Error() string {
	return fmt.Sprintf("queue: store %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying store error.
func (e StoreError) Unwrap() error {
	return e.Err
}
