/*
Copyright 2023 - 2026 Dima Krasner

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package tasks runs the engine's periodic background jobs: follow
// processing and maintenance sweeps, each on its own ticker until the
// process is asked to shut down. Delivery runs in the delivery package's Queue.
package tasks

import (
	"context"
	"log/slog"
	"time"
)

// Runner is one periodic job: a single unit of work invoked on a fixed
// interval, independent of every other job.
type Runner interface {
	Run(ctx context.Context) error
}

// RunPeriodically calls r.Run on every tick of interval, logging but not
// stopping on error, until ctx is canceled.
func RunPeriodically(ctx context.Context, name string, interval time.Duration, r Runner) {
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		slog.Debug("Running periodic task", "task", name)
		start := time.Now()
		if err := r.Run(ctx); err != nil {
			slog.Error("Periodic task failed", "task", name, "error", err)
		} else {
			slog.Debug("Periodic task finished", "task", name, "duration", time.Since(start))
		}

		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}
