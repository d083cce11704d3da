/*
Copyright 2024, 2025 Dima Krasner

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
	"errors"
	"fmt"

	"github.com/fedcore/engine/ap"
	"github.com/fedcore/engine/store"
)

// Undo originates an Undo of a previously issued local activity (a Like
// or an Announce; undoing a Follow goes through Unfollow, which deletes
// the relationship immediately instead of waiting for propagation).
func (d *Dispatcher) Undo(ctx context.Context, db *sql.DB, actor *ap.Actor, activity *ap.Activity) error {
	id, err := d.NewID(actor.ID, "activities")
	if err != nil {
		return err
	}

	to := activity.To
	to.Add(ap.Public)

	undo := &ap.Activity{
		Context: "https://www.w3.org/ns/activitystreams",
		ID:      id,
		Type:    ap.Undo,
		Actor:   actor.ID,
		To:      to,
		CC:      activity.CC,
		Object:  activity,
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to undo %s: %w", activity.ID, err)
	}
	defer tx.Rollback()

	if err := store.RevokeActivity(ctx, tx, activity.ID); err != nil {
		return fmt.Errorf("failed to undo %s: %w", activity.ID, err)
	}

	if err := store.InsertActivity(ctx, tx, undo, ""); err != nil {
		return fmt.Errorf("failed to undo %s: %w", activity.ID, err)
	}

	return tx.Commit()
}

// handleUndo applies an incoming Undo. Only Follow, Like and Announce
// can be undone; the target activity is revoked, and for Undo(Follow)
// the relationship row is removed outright.
func handleUndo(ctx context.Context, d *Dispatcher, tx *sql.Tx, sender *ap.Actor, activity *ap.Activity, rawActivity string, depth int, shared bool) error {
	inner, ok := activity.Object.(*ap.Activity)
	if !ok {
		return errors.New("received a request to undo a non-activity object")
	}

	if inner.Type != ap.Follow && inner.Type != ap.Like && inner.Type != ap.Announce {
		return fmt.Errorf("received a request to undo unsupported activity: %w: %s", ap.ErrUnsupportedActivity, inner.Type)
	}

	if sender.ID != activity.Actor || inner.Actor != activity.Actor {
		return fmt.Errorf("received an invalid undo request for %s by %s", activity.Actor, sender.ID)
	}

	if inner.Type == ap.Follow {
		followed, ok := inner.Object.(string)
		if !ok || followed == "" {
			return errors.New("received a request to undo follow on unknown object")
		}

		if err := store.DeleteFollow(ctx, tx, activity.Actor, followed); err != nil && !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("failed to undo follow of %s by %s: %w", followed, activity.Actor, err)
		}
	}

	if inner.ID != "" {
		if err := store.RevokeActivity(ctx, tx, inner.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("failed to revoke %s: %w", inner.ID, err)
		}
	}

	return store.InsertActivity(ctx, tx, activity, rawActivity)
}
