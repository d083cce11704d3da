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
	"log/slog"

	"github.com/fedcore/engine/ap"
	"github.com/fedcore/engine/cfg"
	"github.com/fedcore/engine/store"
)

var ErrDeliveryQueueFull = errors.New("delivery queue is full")

// Create originates a Create activity for a locally authored object and
// persists both the object and the activity for delivery.
func (d *Dispatcher) Create(ctx context.Context, cfg *cfg.Config, db *sql.DB, object *ap.Object, author *ap.Actor) error {
	id, err := d.NewID(author.ID, "activities")
	if err != nil {
		return err
	}

	var queued int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM activities WHERE actor_as_id = ? AND delivery_attempts < ?`, author.ID, cfg.MaxDeliveryAttempts).Scan(&queued); err != nil {
		return fmt.Errorf("failed to query delivery queue size: %w", err)
	}
	if queued >= cfg.MaxDeliveryQueueSize {
		return ErrDeliveryQueueFull
	}

	create := &ap.Activity{
		Context: "https://www.w3.org/ns/activitystreams",
		Type:    ap.Create,
		ID:      id,
		Actor:   author.ID,
		Object:  object,
		To:      object.To,
		CC:      object.CC,
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := store.UpsertObject(ctx, tx, d.Domain, object); err != nil {
		return fmt.Errorf("failed to create %s: %w", object.ID, err)
	}

	if err := store.InsertActivity(ctx, tx, create, ""); err != nil {
		return fmt.Errorf("failed to create %s: %w", object.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to create %s: %w", object.ID, err)
	}

	return nil
}

// handleCreate persists an incoming Create's object and activity. A
// reply whose parent isn't known locally is silently dropped: the spec
// only requires that such a reply leave no trace, not that the inbox
// path itself chase down the missing parent.
func handleCreate(ctx context.Context, d *Dispatcher, tx *sql.Tx, sender *ap.Actor, activity *ap.Activity, rawActivity string, depth int, shared bool) error {
	object, ok := activity.Object.(*ap.Object)
	if !ok {
		return errors.New("received invalid Create")
	}

	if object.ID == "" || object.AttributedTo == "" {
		return errors.New("received Create with no object ID or author")
	}

	if object.InReplyTo != "" {
		if _, err := store.GetObjectByID(ctx, tx, object.InReplyTo); errors.Is(err, store.ErrNotFound) {
			slog.DebugContext(ctx, "Dropping reply to unknown parent", "parent", object.InReplyTo, "object", object.ID)
			return nil
		} else if err != nil {
			return fmt.Errorf("failed to check parent %s of %s: %w", object.InReplyTo, object.ID, err)
		}
	}

	if _, err := store.GetObjectByID(ctx, tx, object.ID); err == nil {
		slog.DebugContext(ctx, "Object is a duplicate", "object", object.ID)
		return nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("failed to check if %s is a duplicate: %w", object.ID, err)
	}

	host, err := ap.Origin(object.ID)
	if err != nil {
		return fmt.Errorf("failed to determine origin of %s: %w", object.ID, err)
	}

	if err := store.UpsertObject(ctx, tx, host, object); err != nil {
		return fmt.Errorf("failed to insert %s: %w", object.ID, err)
	}

	if err := store.InsertActivity(ctx, tx, activity, rawActivity); err != nil {
		return fmt.Errorf("failed to insert %s: %w", activity.ID, err)
	}

	slog.InfoContext(ctx, "Received a new object", "object", object.ID)

	return nil
}
