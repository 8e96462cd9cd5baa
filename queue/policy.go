// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package queue

// Decision is the outcome of handling one delivered item.
type Decision int

const (
	// Acknowledge drops a successfully handled item.
	Acknowledge Decision = iota

	// Requeue pushes the item back for another attempt.
	Requeue

	// DropExhausted permanently drops an item which used up its retries.
	DropExhausted

	// AbortRun stops the current run. The failing item is not requeued.
	AbortRun
)

// String implements the [fmt.Stringer] interface.
func (d Decision) String() string {
	switch d {
	case Acknowledge:
		return "acknowledged"
	case Requeue:
		return "requeued"
	case DropExhausted:
		return "exhausted"
	case AbortRun:
		return "aborted"
	default:
		return "unknown"
	}
}

// Default policy values.
const (
	DefaultMaxRetries     = 3
	DefaultErrorThreshold = 50
)

// Policy decides what happens to an item after its received hooks ran.
type Policy struct {
	// MaxRetries is the number of retries an item gets after its first
	// failed attempt, so a permanently failing item is delivered MaxRetries+1 times.
	MaxRetries int

	// ErrorThreshold is the number of failures tolerated within a single run.
	// The run aborts on the failure which exceeds it. A negative value disables the check.
	ErrorThreshold int
}

// Decide returns the [Decision] for an item which was delivered with attempts
// previous failures. failures is the number of failures in the current run,
// including this one if err is non-nil.
//
// Aborting takes precedence over the retry decision.
func (p Policy) Decide(err error, attempts, failures int) Decision {
	if err == nil {
		return Acknowledge
	}
	if p.ErrorThreshold >= 0 && failures > p.ErrorThreshold {
		return AbortRun
	}
	if attempts+1 > p.MaxRetries {
		return DropExhausted
	}
	return Requeue
}
