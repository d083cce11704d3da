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

// UpdateObject originates an Update activity for a locally authored
// object whose content has changed.
func (d *Dispatcher) UpdateObject(ctx context.Context, db *sql.DB, actor *ap.Actor, object *ap.Object) error {
	id, err := d.NewID(actor.ID, "activities")
	if err != nil {
		return err
	}

	update := &ap.Activity{
		Context: "https://www.w3.org/ns/activitystreams",
		Type:    ap.Update,
		ID:      id,
		Actor:   actor.ID,
		Object:  object,
		To:      object.To,
		CC:      object.CC,
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", object.ID, err)
	}
	defer tx.Rollback()

	if err := store.UpsertObject(ctx, tx, d.Domain, object); err != nil {
		return fmt.Errorf("failed to update %s: %w", object.ID, err)
	}

	if err := store.InsertActivity(ctx, tx, update, ""); err != nil {
		return fmt.Errorf("failed to update %s: %w", object.ID, err)
	}

	return tx.Commit()
}

// UpdateActor invalidates a cached remote actor so the retriever's next
// resolve refetches its profile, instead of waiting out the normal
// staleness TTL. Called when an Update(Actor) arrives referencing the
// actor's own ID.
func (d *Dispatcher) UpdateActor(ctx context.Context, tx *sql.Tx, actorID string) error {
	_, err := tx.ExecContext(ctx, `UPDATE actors SET updated = 0 WHERE as_id = ? AND revoked = 0`, actorID)
	if err != nil {
		return fmt.Errorf("failed to invalidate actor %s: %w", actorID, err)
	}

	return nil
}

// handleUpdate applies an incoming Update. An Update whose object is the
// sending actor's own ID is an actor self-update; any other Update with
// an Object payload updates that object's content if the new copy is
// actually newer.
func handleUpdate(ctx context.Context, d *Dispatcher, tx *sql.Tx, sender *ap.Actor, activity *ap.Activity, rawActivity string, depth int, shared bool) error {
	if actorID, ok := activity.Object.(string); ok && actorID != "" {
		if actorID != sender.ID {
			return fmt.Errorf("received Update(actor) for %s by %s", actorID, sender.ID)
		}
		return d.UpdateActor(ctx, tx, actorID)
	}

	object, ok := activity.Object.(*ap.Object)
	if !ok {
		return errors.New("received invalid Update")
	}

	if object.ID == "" || object.AttributedTo != sender.ID {
		return fmt.Errorf("received Update for %s not attributed to sender %s", object.ID, sender.ID)
	}

	old, err := store.GetObjectByID(ctx, tx, object.ID)
	if errors.Is(err, store.ErrNotFound) {
		return handleCreate(ctx, d, tx, sender, &ap.Activity{
			Context: activity.Context,
			ID:      activity.ID,
			Type:    ap.Create,
			Actor:   activity.Actor,
			Object:  object,
			To:      activity.To,
			CC:      activity.CC,
		}, rawActivity, depth, false)
	} else if err != nil {
		return fmt.Errorf("failed to fetch %s for update: %w", object.ID, err)
	}

	if !object.Updated.IsZero() && !old.Updated.IsZero() && !object.Updated.After(old.Updated.Time) {
		return nil
	}

	host, err := ap.Origin(object.ID)
	if err != nil {
		return fmt.Errorf("failed to determine origin of %s: %w", object.ID, err)
	}

	if err := store.UpsertObject(ctx, tx, host, object); err != nil {
		return fmt.Errorf("failed to update %s: %w", object.ID, err)
	}

	if err := store.InsertActivity(ctx, tx, activity, rawActivity); err != nil {
		return fmt.Errorf("failed to insert update of %s: %w", object.ID, err)
	}

	return nil
}
