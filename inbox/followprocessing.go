/*
Copyright 2023 - 2025 Dima Krasner

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

package inbox

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/fedcore/engine/store"
)

// ProcessFollow runs the follow-processing task (§4.5.1): given a
// previously persisted, still-pending Follow, either leaves it pending
// (the followed actor manually approves followers) or originates the
// Accept and marks it accepted. Intended to be dispatched by the task
// runner right after a Follow handler persists a new request, decoupling
// the potentially slow Accept delivery from inbox processing.
func (d *Dispatcher) ProcessFollow(ctx context.Context, db *sql.DB, followID string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to process follow %s: %w", followID, err)
	}
	defer tx.Rollback()

	follow, err := store.GetFollowByID(ctx, tx, followID)
	if err != nil {
		return fmt.Errorf("failed to process follow %s: %w", followID, err)
	}

	if follow.Accepted.Valid {
		slog.DebugContext(ctx, "Follow is already decided", "follow", followID)
		return nil
	}

	followed, err := store.GetActorByID(ctx, tx, follow.Followed)
	if err != nil {
		return fmt.Errorf("failed to process follow %s: %w", followID, err)
	}

	if followed.ManuallyApprovesFollowers {
		slog.InfoContext(ctx, "Leaving follow request pending", "follower", follow.Follower, "followed", followed.ID)
		return tx.Commit()
	}

	if err := d.Accept(ctx, followed, follow.Follower, followID, tx); err != nil {
		return fmt.Errorf("failed to process follow %s: %w", followID, err)
	}

	return tx.Commit()
}
