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

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fedcore/engine/ap"
)

// InsertActivity records an accepted activity and resolves the target it
// points at (another activity, an object or an actor) into dedicated
// columns so the coalesced_activity view and revocation propagation don't
// need to inspect the JSON payload.
func InsertActivity(ctx context.Context, tx Execer, activity *ap.Activity, rawActivity string) error {
	if activity.ID == "" {
		return errors.New("activity has no ID")
	}

	var targetObject, targetActivity, targetActor sql.NullString
	switch o := activity.Object.(type) {
	case *ap.Object:
		targetObject = sql.NullString{String: o.ID, Valid: o.ID != ""}
	case *ap.Activity:
		targetActivity = sql.NullString{String: o.ID, Valid: o.ID != ""}
	case string:
		// a bare ID: Follow/Accept/Block/Add/Remove/Move point at an actor
		// or object by reference alone, so fall back by activity kind.
		switch activity.Type {
		case ap.Follow, ap.Block:
			targetActor = sql.NullString{String: o, Valid: o != ""}
		default:
			targetObject = sql.NullString{String: o, Valid: o != ""}
		}
	}

	_, err := tx.ExecContext(
		ctx,
		`INSERT INTO activities(as_id, actor_as_id, kind, target_object_id, target_activity_id, target_actor_as_id, activity, raw_activity)
		VALUES(?, ?, ?, ?, ?, ?, JSONB(?), ?)
		ON CONFLICT(as_id) DO NOTHING`,
		activity.ID, activity.Actor, string(activity.Type), targetObject, targetActivity, targetActor, activity, rawActivity,
	)
	if err != nil {
		return fmt.Errorf("failed to insert activity %s: %w", activity.ID, err)
	}

	return nil
}

// GetActivityByID returns a stored activity by canonical ID.
func GetActivityByID(ctx context.Context, tx Execer, id string) (*ap.Activity, error) {
	var activity ap.Activity
	if err := tx.QueryRowContext(ctx, `SELECT activity FROM activities WHERE as_id = ?`, id).Scan(&activity); errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to query activity %s: %w", id, err)
	}

	return &activity, nil
}

// IsActivityRevoked reports whether an activity has been undone.
func IsActivityRevoked(ctx context.Context, tx Execer, id string) (bool, error) {
	var revoked bool
	if err := tx.QueryRowContext(ctx, `SELECT revoked FROM activities WHERE as_id = ?`, id).Scan(&revoked); errors.Is(err, sql.ErrNoRows) {
		return false, ErrNotFound
	} else if err != nil {
		return false, err
	}

	return revoked, nil
}

// RevokeActivity marks a Like, Announce or Follow as undone. Revocation
// propagates to the coalesced_activity view's aggregate counts immediately,
// since those counts filter on revoked = 0.
func RevokeActivity(ctx context.Context, tx Execer, id string) error {
	res, err := tx.ExecContext(ctx, `UPDATE activities SET revoked = 1 WHERE as_id = ? AND revoked = 0`, id)
	if err != nil {
		return fmt.Errorf("failed to revoke activity %s: %w", id, err)
	}

	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return ErrNotFound
	}

	return nil
}

// FindActivityByActorAndTarget locates the activity an actor issued
// against a given target, used to drop a repeated Like or Announce of
// the same object.
func FindActivityByActorAndTarget(ctx context.Context, tx Execer, actorID, kind, targetID string) (*ap.Activity, error) {
	var activity ap.Activity
	err := tx.QueryRowContext(
		ctx,
		`SELECT activity FROM activities
		WHERE actor_as_id = ? AND kind = ? AND revoked = 0
		AND (target_object_id = ? OR target_activity_id = ? OR target_actor_as_id = ?)
		ORDER BY inserted DESC LIMIT 1`,
		actorID, kind, targetID, targetID, targetID,
	).Scan(&activity)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to find %s activity by %s against %s: %w", kind, actorID, targetID, err)
	}

	return &activity, nil
}

// RecordDeliveryAttempt bumps an activity's delivery attempt counter,
// used by the delivery queue's backoff policy.
func RecordDeliveryAttempt(ctx context.Context, tx Execer, id string) error {
	_, err := tx.ExecContext(
		ctx,
		`UPDATE activities SET delivery_attempts = delivery_attempts + 1, delivery_last_attempt_at = UNIXEPOCH() WHERE as_id = ?`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to record delivery attempt for %s: %w", id, err)
	}

	return nil
}

// DeliveryAttempts returns how many times delivery of an activity has
// been attempted and when the last attempt was.
func DeliveryAttempts(ctx context.Context, tx Execer, id string) (attempts int, lastAttempt int64, err error) {
	var last sql.NullInt64
	if err := tx.QueryRowContext(ctx, `SELECT delivery_attempts, delivery_last_attempt_at FROM activities WHERE as_id = ?`, id).Scan(&attempts, &last); errors.Is(err, sql.ErrNoRows) {
		return 0, 0, ErrNotFound
	} else if err != nil {
		return 0, 0, err
	}

	return attempts, last.Int64, nil
}
