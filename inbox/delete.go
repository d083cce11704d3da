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
	"errors"
	"fmt"

	"github.com/fedcore/engine/ap"
	"github.com/fedcore/engine/store"
)

// Delete originates a Delete activity for a locally authored object and
// tombstones it.
func (d *Dispatcher) Delete(ctx context.Context, db *sql.DB, actor *ap.Actor, object *ap.Object) error {
	del := &ap.Activity{
		Context: "https://www.w3.org/ns/activitystreams",
		ID:      object.ID + "#delete",
		Type:    ap.Delete,
		Actor:   actor.ID,
		Object:  &ap.Object{Type: object.Type, ID: object.ID},
		To:      object.To,
		CC:      object.CC,
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := store.TombstoneObject(ctx, tx, object.ID); err != nil {
		return fmt.Errorf("failed to delete %s: %w", object.ID, err)
	}

	if err := store.InsertActivity(ctx, tx, del, ""); err != nil {
		return fmt.Errorf("failed to delete %s: %w", object.ID, err)
	}

	return tx.Commit()
}

// handleDelete applies an incoming Delete. Deleting an actor's own ID
// revokes the actor; deleting anything else tombstones the referenced
// object if it's known, otherwise is a silent no-op (we never had it).
func handleDelete(ctx context.Context, d *Dispatcher, tx *sql.Tx, sender *ap.Actor, activity *ap.Activity, rawActivity string, depth int, shared bool) error {
	var deleted string
	switch o := activity.Object.(type) {
	case *ap.Object:
		deleted = o.ID
	case string:
		deleted = o
	}
	if deleted == "" {
		return errors.New("received invalid Delete")
	}

	if deleted == activity.Actor {
		if err := store.RevokeActor(ctx, tx, deleted); err != nil {
			return fmt.Errorf("failed to revoke actor %s: %w", deleted, err)
		}
		return store.InsertActivity(ctx, tx, activity, rawActivity)
	}

	if err := store.TombstoneObject(ctx, tx, deleted); errors.Is(err, store.ErrNotFound) {
		return nil
	} else if err != nil {
		return fmt.Errorf("failed to delete %s: %w", deleted, err)
	}

	return store.InsertActivity(ctx, tx, activity, rawActivity)
}
