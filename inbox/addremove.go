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
	"errors"
	"fmt"

	"github.com/fedcore/engine/ap"
	"github.com/fedcore/engine/store"
)

// Add originates an Add of an object to one of the local actor's
// collections (e.g. pinning a post). No collection membership semantics
// beyond storage are enforced; the activity is simply recorded.
func (d *Dispatcher) Add(ctx context.Context, db *sql.DB, actor *ap.Actor, object ap.MaybeReference[ap.Object], target string) error {
	return addOrRemove(ctx, d, db, ap.Add, actor, object, target)
}

// Remove originates a Remove, the inverse of Add.
func (d *Dispatcher) Remove(ctx context.Context, db *sql.DB, actor *ap.Actor, object ap.MaybeReference[ap.Object], target string) error {
	return addOrRemove(ctx, d, db, ap.Remove, actor, object, target)
}

func addOrRemove(ctx context.Context, d *Dispatcher, db *sql.DB, kind ap.ActivityType, actor *ap.Actor, object ap.MaybeReference[ap.Object], target string) error {
	id, err := d.NewID(actor.ID, "activities")
	if err != nil {
		return err
	}

	var obj any
	if object.Actual != nil {
		obj = object.Actual
	} else {
		obj = object.Reference
	}

	activity := &ap.Activity{
		Context: "https://www.w3.org/ns/activitystreams",
		ID:      id,
		Type:    kind,
		Actor:   actor.ID,
		Object:  obj,
		Target:  target,
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to %s %s: %w", kind, object.ID(), err)
	}
	defer tx.Rollback()

	if err := store.InsertActivity(ctx, tx, activity, ""); err != nil {
		return fmt.Errorf("failed to %s %s: %w", kind, object.ID(), err)
	}

	return tx.Commit()
}

// handleAdd and handleRemove persist collection-modification activities
// without enforcing any local collection membership semantics, per the
// spec's scope for these kinds.
func handleAdd(ctx context.Context, d *Dispatcher, tx *sql.Tx, sender *ap.Actor, activity *ap.Activity, rawActivity string, depth int, shared bool) error {
	return persistCollectionActivity(ctx, tx, activity, rawActivity)
}

func handleRemove(ctx context.Context, d *Dispatcher, tx *sql.Tx, sender *ap.Actor, activity *ap.Activity, rawActivity string, depth int, shared bool) error {
	return persistCollectionActivity(ctx, tx, activity, rawActivity)
}

func persistCollectionActivity(ctx context.Context, tx *sql.Tx, activity *ap.Activity, rawActivity string) error {
	if activity.Target == "" {
		return errors.New("received invalid Add/Remove: no target")
	}

	return store.InsertActivity(ctx, tx, activity, rawActivity)
}
