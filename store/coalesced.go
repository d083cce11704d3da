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

// CoalescedActivity is the timeline- and delivery-ready shape of an
// activity, reconstructed from the coalesced_activity view: the activity
// itself, alongside its target object or actor and the aggregate counts
// a client needs to render it without a second round-trip.
type CoalescedActivity struct {
	ID               string
	ActorID          string
	Kind             ap.ActivityType
	Activity         ap.Activity
	TargetObjectID   sql.NullString
	TargetActivityID sql.NullString
	TargetActorID    sql.NullString
	Revoked          bool
	TargetObject     *ap.Object
	TargetObjectDeleted sql.NullInt64
	TargetActor      *ap.Actor
	AnnouncersCount  int64
	LikersCount      int64
}

func scanCoalescedActivity(row interface {
	Scan(dest ...any) error
}) (*CoalescedActivity, error) {
	var c CoalescedActivity
	var targetObject, targetActor sql.NullString

	err := row.Scan(
		&c.ID, &c.ActorID, &c.Kind, &c.Activity,
		&c.TargetObjectID, &c.TargetActivityID, &c.TargetActorID,
		&c.Revoked, &targetObject, &c.TargetObjectDeleted, &targetActor,
		&c.AnnouncersCount, &c.LikersCount,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}

	if targetObject.Valid {
		var o ap.Object
		if err := o.Scan(targetObject.String); err != nil {
			return nil, fmt.Errorf("failed to decode target object: %w", err)
		}
		c.TargetObject = &o
	}

	if targetActor.Valid {
		var a ap.Actor
		if err := a.Scan(targetActor.String); err != nil {
			return nil, fmt.Errorf("failed to decode target actor: %w", err)
		}
		c.TargetActor = &a
	}

	return &c, nil
}

const coalescedActivityColumns = `as_id, actor_as_id, kind, activity, target_object_id, target_activity_id, target_actor_as_id, revoked, target_object, target_object_deleted, target_actor, announcers_count, likers_count`

// GetCoalescedActivity reads a single activity, its target and aggregate
// counts from the coalesced_activity view.
func GetCoalescedActivity(ctx context.Context, tx Execer, id string) (*CoalescedActivity, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+coalescedActivityColumns+` FROM coalesced_activity WHERE as_id = ?`, id)
	return scanCoalescedActivity(row)
}

// ActivitiesByActor returns the most recent non-revoked activities
// authored by an actor, newest first, for timeline rendering.
func ActivitiesByActor(ctx context.Context, tx Execer, actorID string, limit int) ([]*CoalescedActivity, error) {
	rows, err := tx.QueryContext(
		ctx,
		`SELECT `+coalescedActivityColumns+` FROM coalesced_activity WHERE actor_as_id = ? AND revoked = 0 ORDER BY as_id DESC LIMIT ?`,
		actorID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query activities by %s: %w", actorID, err)
	}
	defer rows.Close()

	var out []*CoalescedActivity
	for rows.Next() {
		c, err := scanCoalescedActivity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}

	return out, rows.Err()
}
