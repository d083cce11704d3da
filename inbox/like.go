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

	"github.com/fedcore/engine/ap"
	"github.com/fedcore/engine/store"
)

// handleLike records an incoming Like against its target object. Liking
// the same object twice without an intervening Undo is idempotent: the
// second Like is dropped rather than duplicated.
func handleLike(ctx context.Context, d *Dispatcher, tx *sql.Tx, sender *ap.Actor, activity *ap.Activity, rawActivity string, depth int, shared bool) error {
	objectID, ok := activity.Object.(string)
	if !ok || objectID == "" {
		return errors.New("received invalid Like")
	}

	if _, err := store.GetObjectByID(ctx, tx, objectID); errors.Is(err, store.ErrNotFound) {
		slog.DebugContext(ctx, "Ignoring like of unknown object", "object", objectID)
		return nil
	} else if err != nil {
		return fmt.Errorf("failed to check like target %s: %w", objectID, err)
	}

	if _, err := store.FindActivityByActorAndTarget(ctx, tx, sender.ID, string(ap.Like), objectID); err == nil {
		return nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("failed to check for duplicate like of %s: %w", objectID, err)
	}

	return store.InsertActivity(ctx, tx, activity, rawActivity)
}
