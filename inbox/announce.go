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
	"log/slog"
	"time"

	"github.com/fedcore/engine/ap"
	"github.com/fedcore/engine/store"
)

// Announce originates an Announce (share/boost) of a known object.
func (d *Dispatcher) Announce(ctx context.Context, tx *sql.Tx, actor *ap.Actor, object *ap.Object) error {
	id, err := d.NewID(actor.ID, "activities")
	if err != nil {
		return err
	}

	to := ap.Audience{}
	to.Add(ap.Public)

	cc := ap.Audience{}
	cc.Add(object.AttributedTo)
	cc.Add(actor.Followers)

	if _, err := store.FindActivityByActorAndTarget(ctx, tx, actor.ID, string(ap.Announce), object.ID); err == nil {
		return nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("failed to check for duplicate announce of %s: %w", object.ID, err)
	}

	announce := &ap.Activity{
		Context:   "https://www.w3.org/ns/activitystreams",
		ID:        id,
		Type:      ap.Announce,
		Actor:     actor.ID,
		Published: &ap.Time{Time: time.Now()},
		To:        to,
		CC:        cc,
		Object:    object.ID,
	}

	return store.InsertActivity(ctx, tx, announce, "")
}

// handleAnnounce records an incoming Announce against the ID of its
// target, whether or not that object is stored locally; an unknown target
// is not fetched. An embedded object is rejected as invalid, and a repeat
// Announce of the same object by the same sender is dropped.
func handleAnnounce(ctx context.Context, d *Dispatcher, tx *sql.Tx, sender *ap.Actor, activity *ap.Activity, rawActivity string, depth int, shared bool) error {
	objectID, ok := activity.Object.(string)
	if !ok || objectID == "" {
		return errors.New("received invalid Announce")
	}

	if _, err := store.GetObjectByID(ctx, tx, objectID); errors.Is(err, store.ErrNotFound) {
		slog.DebugContext(ctx, "Recording announce of unknown object", "object", objectID)
	} else if err != nil {
		return fmt.Errorf("failed to check announce target %s: %w", objectID, err)
	}

	if _, err := store.FindActivityByActorAndTarget(ctx, tx, sender.ID, string(ap.Announce), objectID); err == nil {
		return nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("failed to check for duplicate announce of %s: %w", objectID, err)
	}

	return store.InsertActivity(ctx, tx, activity, rawActivity)
}
