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

package data

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/fedcore/engine/cfg"
)

// GarbageCollector periodically trims data that's no longer useful:
// delivery bookkeeping past its retry window, idle remote actors and
// tombstoned objects nobody references anymore, and stale unprocessable-activity
// records kept only for diagnostics.
type GarbageCollector struct {
	Domain string
	Config *cfg.Config
	DB     *sql.DB
}

// Run deletes old data.
func (gc *GarbageCollector) Run(ctx context.Context) error {
	now := time.Now()

	if _, err := gc.DB.ExecContext(ctx, `DELETE FROM deliveries WHERE sent < ?`, now.Add(-gc.Config.DeliveryRecordTTL).Unix()); err != nil {
		return fmt.Errorf("failed to trim delivery records: %w", err)
	}

	if _, err := gc.DB.ExecContext(
		ctx,
		`DELETE FROM activities WHERE revoked = 1 AND inserted < ? AND actor_as_id NOT IN (SELECT as_id FROM actors WHERE local = 1)`,
		now.Add(-gc.Config.RevokedActivityTTL).Unix(),
	); err != nil {
		return fmt.Errorf("failed to remove revoked activities: %w", err)
	}

	if _, err := gc.DB.ExecContext(
		ctx,
		`DELETE FROM objects WHERE as_deleted != 0 AND as_deleted < ? AND NOT EXISTS (SELECT 1 FROM activities WHERE target_object_id = objects.as_id)`,
		now.Add(-gc.Config.TombstoneTTL).Unix(),
	); err != nil {
		return fmt.Errorf("failed to remove old tombstones: %w", err)
	}

	if _, err := gc.DB.ExecContext(
		ctx,
		`DELETE FROM actors
		WHERE local = 0
		AND updated < ?
		AND NOT EXISTS (SELECT 1 FROM follows WHERE followed = actors.as_id OR follower = actors.as_id)
		AND NOT EXISTS (SELECT 1 FROM objects WHERE attributed_to = actors.as_id)
		AND NOT EXISTS (SELECT 1 FROM activities WHERE actor_as_id = actors.as_id)`,
		now.Add(-gc.Config.ActorTTL).Unix(),
	); err != nil {
		return fmt.Errorf("failed to remove idle actors: %w", err)
	}

	if _, err := gc.DB.ExecContext(ctx, `DELETE FROM unprocessable WHERE inserted < ?`, now.Add(-gc.Config.UnprocessableTTL).Unix()); err != nil {
		return fmt.Errorf("failed to trim unprocessable records: %w", err)
	}

	return nil
}
