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
	"fmt"
	"time"
)

// IsDelivered reports whether an activity has already been successfully
// POSTed to a given inbox, so a retried batch doesn't resend it.
func IsDelivered(ctx context.Context, tx Execer, activityID, inbox string) (bool, error) {
	var delivered bool
	err := tx.QueryRowContext(
		ctx,
		`SELECT EXISTS(SELECT 1 FROM deliveries WHERE activity_id = ? AND inbox = ?)`,
		activityID, inbox,
	).Scan(&delivered)
	if err != nil {
		return false, fmt.Errorf("failed to check delivery of %s to %s: %w", activityID, inbox, err)
	}

	return delivered, nil
}

// RecordDelivery marks an activity as successfully delivered to an inbox.
func RecordDelivery(ctx context.Context, tx Execer, activityID, inbox string) error {
	_, err := tx.ExecContext(
		ctx,
		`INSERT INTO deliveries(activity_id, inbox) VALUES(?, ?) ON CONFLICT(activity_id, inbox) DO NOTHING`,
		activityID, inbox,
	)
	if err != nil {
		return fmt.Errorf("failed to record delivery of %s to %s: %w", activityID, inbox, err)
	}

	return nil
}

// PruneDeliveries deletes delivery records older than ttl, so the
// deliveries table doesn't grow without bound once an activity's
// recipients have all long since received it.
func PruneDeliveries(ctx context.Context, tx Execer, ttl time.Duration) (int64, error) {
	res, err := tx.ExecContext(ctx, `DELETE FROM deliveries WHERE sent <= UNIXEPOCH() - ?`, int64(ttl.Seconds()))
	if err != nil {
		return 0, fmt.Errorf("failed to prune deliveries: %w", err)
	}

	return res.RowsAffected()
}
