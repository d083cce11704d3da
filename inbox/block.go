/*
Copyright 2025, 2026 Dima Krasner

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

	"github.com/fedcore/engine/ap"
	"github.com/fedcore/engine/store"
)

// Block originates a Block of a remote actor, recorded for delivery and
// audit purposes. Enforcement (refusing activities from a blocked actor)
// happens at admission time, not here.
func (d *Dispatcher) Block(ctx context.Context, db *sql.DB, blocker *ap.Actor, blocked string) error {
	id, err := d.NewID(blocker.ID, "activities")
	if err != nil {
		return err
	}

	block := &ap.Activity{
		Context: "https://www.w3.org/ns/activitystreams",
		ID:      id,
		Type:    ap.Block,
		Actor:   blocker.ID,
		Object:  blocked,
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to block %s: %w", blocked, err)
	}
	defer tx.Rollback()

	if err := store.InsertActivity(ctx, tx, block, ""); err != nil {
		return fmt.Errorf("failed to block %s: %w", blocked, err)
	}

	return tx.Commit()
}

// handleBlock is a not-yet-implemented placeholder: an incoming Block
// carries no local side effect beyond being logged. Returning nil keeps
// the HTTP response at 204/NoContent rather than surfacing it as a
// processing failure.
func handleBlock(ctx context.Context, d *Dispatcher, tx *sql.Tx, sender *ap.Actor, activity *ap.Activity, rawActivity string, depth int, shared bool) error {
	slog.InfoContext(ctx, "Ignoring Block activity", "actor", activity.Actor, "object", activity.Object)
	return nil
}
