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

package tasks

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/fedcore/engine/inbox"
	"github.com/fedcore/engine/store"
)

// FollowProcessor runs the follow-processing task (spec.md §4.5.1) over
// every still-pending Follow, auto-accepting the ones whose followed
// actor doesn't require manual approval.
type FollowProcessor struct {
	Dispatcher *inbox.Dispatcher
	DB         *sql.DB
}

func (p *FollowProcessor) Run(ctx context.Context) error {
	tx, err := p.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to list pending follows: %w", err)
	}
	ids, err := store.PendingFollows(ctx, tx)
	tx.Rollback()
	if err != nil {
		return fmt.Errorf("failed to list pending follows: %w", err)
	}

	for _, id := range ids {
		if err := p.Dispatcher.ProcessFollow(ctx, p.DB, id); err != nil {
			slog.Error("Failed to process follow", "follow", id, "error", err)
		}
	}

	return nil
}
