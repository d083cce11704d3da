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

// Move originates a Move from the local actor to a new identity. Per
// spec.md §9's open question, follower migration is out of scope: only
// the actor's alsoKnownAs is updated, local Follow rows are untouched.
func (d *Dispatcher) Move(ctx context.Context, db *sql.DB, from *ap.Actor, to string) error {
	id, err := d.NewID(from.ID, "activities")
	if err != nil {
		return err
	}

	move := &ap.Activity{
		Context: "https://www.w3.org/ns/activitystreams",
		ID:      id,
		Type:    ap.Move,
		Actor:   from.ID,
		Object:  from.ID,
		Target:  to,
	}

	from.AlsoKnownAs.Add(to)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to move %s to %s: %w", from.ID, to, err)
	}
	defer tx.Rollback()

	if err := store.UpsertActor(ctx, tx, "", "", from, true); err != nil {
		return fmt.Errorf("failed to move %s to %s: %w", from.ID, to, err)
	}

	if err := store.InsertActivity(ctx, tx, move, ""); err != nil {
		return fmt.Errorf("failed to move %s to %s: %w", from.ID, to, err)
	}

	return tx.Commit()
}

// handleMove records an incoming Move without migrating local followers,
// per spec.md §9.
func handleMove(ctx context.Context, d *Dispatcher, tx *sql.Tx, sender *ap.Actor, activity *ap.Activity, rawActivity string, depth int, shared bool) error {
	target, ok := activity.Object.(string)
	if !ok || target == "" || target != sender.ID {
		return errors.New("received invalid Move")
	}

	if activity.Target == "" {
		return errors.New("received Move with no target")
	}

	return store.InsertActivity(ctx, tx, activity, rawActivity)
}
