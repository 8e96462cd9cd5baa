// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"context"
	"os"

	"github.com/z5labs/drain"
	"github.com/z5labs/drain/app"
	"github.com/z5labs/drain/cmd/drainworker/worker"
	"github.com/z5labs/drain/otel"

	"github.com/joho/godotenv"
)

func main() {
	// a missing .env file is fine
	_ = godotenv.Load()

	err := drain.Run(
		context.Background(),
		otel.Build[app.HookRuntime](otel.SDKFromEnv(), worker.Build(worker.ConfigFromEnv())),
	)
	if err != nil {
		os.Exit(1)
	}
}
