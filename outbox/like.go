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

package outbox

import (
	"context"
	"errors"
	"fmt"

	"github.com/fedcore/engine/ap"
	"github.com/fedcore/engine/store"
)

// Like originates a Like of object by actor. Liking the same object
// twice without an intervening Undo is idempotent, mirroring the
// dedup the inbox dispatcher applies to an incoming Like.
func (o *Outbox) Like(ctx context.Context, actor *ap.Actor, object *ap.Object) error {
	id, err := o.Dispatcher.NewID(actor.ID, "activities")
	if err != nil {
		return err
	}

	to := ap.Audience{}
	to.Add(object.AttributedTo)

	like := &ap.Activity{
		Context: "https://www.w3.org/ns/activitystreams",
		ID:      id,
		Type:    ap.Like,
		Actor:   actor.ID,
		Object:  object.ID,
		To:      to,
	}

	tx, err := o.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to like %s: %w", object.ID, err)
	}
	defer tx.Rollback()

	if _, err := store.FindActivityByActorAndTarget(ctx, tx, actor.ID, string(ap.Like), object.ID); err == nil {
		return nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("failed to check for duplicate like of %s: %w", object.ID, err)
	}

	if err := store.InsertActivity(ctx, tx, like, ""); err != nil {
		return fmt.Errorf("failed to like %s: %w", object.ID, err)
	}

	return tx.Commit()
}
