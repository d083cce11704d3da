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

package tasks

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/fedcore/engine/cfg"
	"github.com/fedcore/engine/store"
)

// Janitor prunes delivery records and collects revoked/tombstoned/idle
// rows once they've outlived their retention window, the only
// unbounded-growth tables the engine accumulates during normal operation.
type Janitor struct {
	Domain string
	Config *cfg.Config
	DB     *sql.DB
}

func (j *Janitor) Run(ctx context.Context) error {
	tx, err := j.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to run garbage collection: %w", err)
	}
	defer tx.Rollback()

	n, err := store.PruneDeliveries(ctx, tx, j.Config.DeliveryRecordTTL)
	if err != nil {
		return err
	}

	gc, err := store.GarbageCollect(
		ctx, tx, j.Domain,
		int64(j.Config.RevokedActivityTTL.Seconds()),
		int64(j.Config.TombstoneTTL.Seconds()),
		int64(j.Config.ActorTTL.Seconds()),
		int64(j.Config.UnprocessableTTL.Seconds()),
	)
	if err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to run garbage collection: %w", err)
	}

	if n > 0 {
		slog.Info("Pruned delivery records", "count", n)
	}
	if gc.RevokedActivities > 0 || gc.Tombstones > 0 || gc.Actors > 0 || gc.Unprocessable > 0 {
		slog.Info("Collected garbage", "revoked_activities", gc.RevokedActivities, "tombstones", gc.Tombstones, "actors", gc.Actors, "unprocessable", gc.Unprocessable)
	}

	return nil
}
