// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package app

import (
	"context"
	"errors"

	"github.com/sourcegraph/conc/pool"
	"github.com/z5labs/sdk-go/try"
)

type groupRuntime []Runtime

// Group runs all runtimes concurrently. The first runtime to return an error
// cancels the context shared by the others. A runtime returning nil does not
// stop the group. Context cancellation errors are not reported.
func Group(rts ...Runtime) Runtime {
	return groupRuntime(rts)
}

// Run implements the [Runtime] interface.
func (g groupRuntime) Run(ctx context.Context) error {
	p := pool.New().WithContext(ctx).WithCancelOnError()
	for _, rt := range g {
		p.Go(func(ctx context.Context) (err error) {
			defer try.Recover(&err)
			return rt.Run(ctx)
		})
	}

	err := p.Wait()
	if err == nil || !hasOtherError(err) {
		return nil
	}
	return err
}

func hasOtherError(err error) bool {
	joined, ok := err.(interface{ Unwrap() []error })
	if !ok {
		return !errors.Is(err, context.Canceled)
	}
	for _, e := range joined.Unwrap() {
		if hasOtherError(e) {
			return true
		}
	}
	return false
}
