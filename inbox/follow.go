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

	"github.com/fedcore/engine/ap"
	"github.com/fedcore/engine/store"
)

// Follow originates a Follow activity and records it as pending.
func (d *Dispatcher) Follow(ctx context.Context, follower *ap.Actor, followed string, db *sql.DB) error {
	if followed == follower.ID {
		return fmt.Errorf("%s cannot follow itself", follower.ID)
	}

	id, err := d.NewID(follower.ID, "activities")
	if err != nil {
		return err
	}

	to := ap.Audience{}
	to.Add(followed)

	follow := &ap.Activity{
		Context: "https://www.w3.org/ns/activitystreams",
		ID:      id,
		Type:    ap.Follow,
		Actor:   follower.ID,
		Object:  followed,
		To:      to,
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to follow %s: %w", followed, err)
	}
	defer tx.Rollback()

	if err := store.UpsertFollow(ctx, tx, id, follower.ID, followed); err != nil {
		return fmt.Errorf("failed to follow %s: %w", followed, err)
	}

	if err := store.InsertActivity(ctx, tx, follow, ""); err != nil {
		return fmt.Errorf("failed to follow %s: %w", followed, err)
	}

	return tx.Commit()
}

// Unfollow originates an Undo(Follow) on the follower's behalf and
// removes the relationship immediately rather than waiting for an Accept
// or Reject.
func (d *Dispatcher) Unfollow(ctx context.Context, db *sql.DB, follower *ap.Actor, followed, followID string) error {
	id, err := d.NewID(follower.ID, "activities")
	if err != nil {
		return err
	}

	to := ap.Audience{}
	to.Add(followed)

	undo := &ap.Activity{
		Context: "https://www.w3.org/ns/activitystreams",
		ID:      id,
		Type:    ap.Undo,
		Actor:   follower.ID,
		To:      to,
		Object: &ap.Activity{
			ID:     followID,
			Type:   ap.Follow,
			Actor:  follower.ID,
			Object: followed,
		},
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to unfollow %s: %w", followed, err)
	}
	defer tx.Rollback()

	if err := store.DeleteFollow(ctx, tx, follower.ID, followed); err != nil {
		return fmt.Errorf("failed to unfollow %s: %w", followed, err)
	}

	if err := store.InsertActivity(ctx, tx, undo, ""); err != nil {
		return fmt.Errorf("failed to unfollow %s: %w", followed, err)
	}

	return tx.Commit()
}

// handleFollow records an incoming Follow as pending. Per §4.5.1, the
// accept/reject decision and delivery are the caller's responsibility
// (the follow-processing task): this handler only persists the request.
func handleFollow(ctx context.Context, d *Dispatcher, tx *sql.Tx, sender *ap.Actor, activity *ap.Activity, rawActivity string, depth int, shared bool) error {
	followed, ok := activity.Object.(string)
	if !ok || followed == "" {
		return fmt.Errorf("received invalid Follow")
	}

	if err := store.UpsertFollow(ctx, tx, activity.ID, sender.ID, followed); err != nil {
		return fmt.Errorf("failed to record follow %s: %w", activity.ID, err)
	}

	return store.InsertActivity(ctx, tx, activity, rawActivity)
}
