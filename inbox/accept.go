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

// Accept originates an Accept for a pending Follow the local actor
// received, and marks the Follow row accepted.
func (d *Dispatcher) Accept(ctx context.Context, followed *ap.Actor, follower, followID string, tx *sql.Tx) error {
	id, err := d.NewID(followed.ID, "activities")
	if err != nil {
		return err
	}

	to := ap.Audience{}
	to.Add(follower)

	accept := &ap.Activity{
		Context: "https://www.w3.org/ns/activitystreams",
		Type:    ap.Accept,
		ID:      id,
		Actor:   followed.ID,
		To:      to,
		Object: &ap.Activity{
			ID:     followID,
			Type:   ap.Follow,
			Actor:  follower,
			Object: followed.ID,
		},
	}

	if err := store.SetFollowAccepted(ctx, tx, followID, true); err != nil {
		return fmt.Errorf("failed to accept %s: %w", followID, err)
	}

	if err := store.InsertActivity(ctx, tx, accept, ""); err != nil {
		return fmt.Errorf("failed to accept %s: %w", followID, err)
	}

	return nil
}

// handleAccept applies an incoming Accept of one of our own Follow
// requests.
func handleAccept(ctx context.Context, d *Dispatcher, tx *sql.Tx, sender *ap.Actor, activity *ap.Activity, rawActivity string, depth int, shared bool) error {
	followID, err := followReferenceID(activity, sender.ID)
	if err != nil {
		return err
	}

	follow, err := store.GetFollowByID(ctx, tx, followID)
	if err != nil {
		return fmt.Errorf("failed to accept %s: %w", followID, err)
	}

	if follow.Followed != sender.ID {
		return fmt.Errorf("received Accept for %s from %s, expected %s", followID, sender.ID, follow.Followed)
	}

	if err := store.SetFollowAccepted(ctx, tx, followID, true); err != nil {
		return fmt.Errorf("failed to accept %s: %w", followID, err)
	}

	return store.InsertActivity(ctx, tx, activity, rawActivity)
}

// followReferenceID extracts a Follow activity's ID from an Accept or
// Reject's object, which a peer may send either as a bare ID or as the
// full embedded Follow.
func followReferenceID(activity *ap.Activity, expectedActor string) (string, error) {
	if activity.Actor != expectedActor {
		return "", fmt.Errorf("received %s for %s by %s", activity.Type, expectedActor, activity.Actor)
	}

	switch o := activity.Object.(type) {
	case string:
		if o == "" {
			break
		}
		return o, nil
	case *ap.Activity:
		if o.Type == ap.Follow && o.ID != "" {
			return o.ID, nil
		}
	}

	return "", fmt.Errorf("received invalid %s", activity.Type)
}
