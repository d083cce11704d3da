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
)

// TouchInstance records that a remote host was successfully reached,
// resetting any recovery backoff tracked for it.
func TouchInstance(ctx context.Context, tx Execer, host string) error {
	_, err := tx.ExecContext(
		ctx,
		`INSERT INTO instances(host, updated) VALUES(?, UNIXEPOCH())
		ON CONFLICT(host) DO UPDATE SET updated = UNIXEPOCH()`,
		host,
	)
	if err != nil {
		return fmt.Errorf("failed to touch instance %s: %w", host, err)
	}

	return nil
}

// IsInstanceBlocked reports whether a host has been administratively
// blocked. Unlike the CSV-backed domain blocklist consulted at the HTTP
// edge, this tracks hosts blocked at runtime (e.g. after repeated
// delivery failures past MaxInstanceRecoveryTime).
func IsInstanceBlocked(ctx context.Context, tx Execer, host string) (bool, error) {
	var blocked bool
	err := tx.QueryRowContext(ctx, `SELECT blocked FROM instances WHERE host = ?`, host).Scan(&blocked)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	} else if err != nil {
		return false, err
	}

	return blocked, nil
}

// SetInstanceBlocked flags or unflags a host.
func SetInstanceBlocked(ctx context.Context, tx Execer, host string, blocked bool) error {
	_, err := tx.ExecContext(
		ctx,
		`INSERT INTO instances(host, blocked, updated) VALUES(?, ?, UNIXEPOCH())
		ON CONFLICT(host) DO UPDATE SET blocked = ?, updated = UNIXEPOCH()`,
		host, blocked, blocked,
	)
	if err != nil {
		return fmt.Errorf("failed to set instance %s blocked=%v: %w", host, blocked, err)
	}

	return nil
}

// PurgeHost blocks a host and removes every actor, object and activity it
// is attributed to, per the admin "block domain" scenario: unlike
// SetInstanceBlocked alone (which only stops future traffic), this also
// erases what that host has already federated onto this server.
func PurgeHost(ctx context.Context, tx Execer, host string) error {
	if err := SetInstanceBlocked(ctx, tx, host, true); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM activities WHERE actor_as_id IN (SELECT as_id FROM actors WHERE host = ?)`, host); err != nil {
		return fmt.Errorf("failed to purge activities from %s: %w", host, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM objects WHERE host = ?`, host); err != nil {
		return fmt.Errorf("failed to purge objects from %s: %w", host, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM follows WHERE follower IN (SELECT as_id FROM actors WHERE host = ?) OR followed IN (SELECT as_id FROM actors WHERE host = ?)`, host, host); err != nil {
		return fmt.Errorf("failed to purge follows for %s: %w", host, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM actors WHERE host = ?`, host); err != nil {
		return fmt.Errorf("failed to purge actors from %s: %w", host, err)
	}

	return nil
}

// LastSeen returns when a host was last successfully reached.
func LastSeen(ctx context.Context, tx Execer, host string) (int64, error) {
	var updated int64
	err := tx.QueryRowContext(ctx, `SELECT updated FROM instances WHERE host = ?`, host).Scan(&updated)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	} else if err != nil {
		return 0, err
	}

	return updated, nil
}
