/*
Copyright 2023 - 2026 Dima Krasner

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
	"fmt"
)

// GCResult reports how many rows each sweep of GarbageCollect removed.
type GCResult struct {
	RevokedActivities int64
	Tombstones        int64
	Actors            int64
	Unprocessable     int64
}

// GarbageCollect deletes data that's served its purpose and outlived its
// retention window: revoked activities, tombstoned objects and actors, and
// rejected inbound payloads. Unlike revocation and tombstoning, which must
// survive so a later Undo/Delete retry stays idempotent, this is a hard
// delete once the TTL has passed.
func GarbageCollect(ctx context.Context, tx Execer, domain string, revokedActivityTTL, tombstoneTTL, actorTTL, unprocessableTTL int64) (GCResult, error) {
	var res GCResult

	activities, err := tx.ExecContext(
		ctx,
		`DELETE FROM activities WHERE revoked = 1 AND inserted <= UNIXEPOCH() - ?`,
		revokedActivityTTL,
	)
	if err != nil {
		return res, fmt.Errorf("failed to remove revoked activities: %w", err)
	}
	if res.RevokedActivities, err = activities.RowsAffected(); err != nil {
		return res, err
	}

	objects, err := tx.ExecContext(
		ctx,
		`DELETE FROM objects WHERE as_deleted != 0 AND as_deleted <= UNIXEPOCH() - ?`,
		tombstoneTTL,
	)
	if err != nil {
		return res, fmt.Errorf("failed to remove tombstoned objects: %w", err)
	}
	if res.Tombstones, err = objects.RowsAffected(); err != nil {
		return res, err
	}

	// a local actor is never collected regardless of age; only cached
	// remote actors that have gone quiet or been tombstoned are swept.
	actors, err := tx.ExecContext(
		ctx,
		`DELETE FROM actors WHERE local = 0 AND host != ? AND updated <= UNIXEPOCH() - ?
		AND NOT EXISTS (SELECT 1 FROM follows WHERE follower = actors.as_id OR followed = actors.as_id)
		AND NOT EXISTS (SELECT 1 FROM activities WHERE actor_as_id = actors.as_id)`,
		domain, actorTTL,
	)
	if err != nil {
		return res, fmt.Errorf("failed to remove idle actors: %w", err)
	}
	if res.Actors, err = actors.RowsAffected(); err != nil {
		return res, err
	}

	unprocessable, err := tx.ExecContext(
		ctx,
		`DELETE FROM unprocessable WHERE inserted <= UNIXEPOCH() - ?`,
		unprocessableTTL,
	)
	if err != nil {
		return res, fmt.Errorf("failed to remove unprocessable payloads: %w", err)
	}
	if res.Unprocessable, err = unprocessable.RowsAffected(); err != nil {
		return res, err
	}

	return res, nil
}
