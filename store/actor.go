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

// Package store implements the relational persistence model: upserts,
// revocation and the coalesced_activity read path, the way the original
// engine kept its invariants in Go instead of database triggers.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fedcore/engine/ap"
)

// ErrNotFound is returned when a row doesn't exist.
var ErrNotFound = errors.New("not found")

// Execer is satisfied by both [*sql.DB] and [*sql.Tx].
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// UpsertActor inserts or replaces a cached or local actor.
func UpsertActor(ctx context.Context, tx Execer, host, name string, actor *ap.Actor, local bool) error {
	if actor.ID == "" {
		return errors.New("actor has no ID")
	}

	_, err := tx.ExecContext(
		ctx,
		`INSERT INTO actors(as_id, host, name, kind, actor, local, updated)
		VALUES(?, ?, ?, ?, JSONB(?), ?, UNIXEPOCH())
		ON CONFLICT(as_id) DO UPDATE SET
			actor = JSONB(?),
			kind = ?,
			updated = UNIXEPOCH()
		WHERE revoked = 0`,
		actor.ID, host, name, string(actor.Type), actor, local,
		actor, string(actor.Type),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert actor %s: %w", actor.ID, err)
	}

	return nil
}

// SetPrivateKey stores the PEM-encoded private key of a local actor.
func SetPrivateKey(ctx context.Context, tx Execer, actorID, privKeyPEM string) error {
	res, err := tx.ExecContext(ctx, `UPDATE actors SET privkey = ? WHERE as_id = ?`, privKeyPEM, actorID)
	if err != nil {
		return fmt.Errorf("failed to set private key for %s: %w", actorID, err)
	}

	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return ErrNotFound
	}

	return nil
}

// GetActorByID returns a cached or local actor by canonical ID.
func GetActorByID(ctx context.Context, tx Execer, id string) (*ap.Actor, error) {
	var actor ap.Actor
	if err := tx.QueryRowContext(ctx, `SELECT actor FROM actors WHERE as_id = ? AND revoked = 0`, id).Scan(&actor); errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to query actor %s: %w", id, err)
	}

	return &actor, nil
}

// GetActorByHostAndName returns a local actor given its host and preferred username.
func GetActorByHostAndName(ctx context.Context, tx Execer, host, name string) (*ap.Actor, error) {
	var actor ap.Actor
	if err := tx.QueryRowContext(ctx, `SELECT actor FROM actors WHERE host = ? AND name = ? AND revoked = 0`, host, name).Scan(&actor); errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to query actor %s@%s: %w", name, host, err)
	}

	return &actor, nil
}

// GetPrivateKey returns the PEM-encoded private key of a local actor.
func GetPrivateKey(ctx context.Context, tx Execer, actorID string) (string, error) {
	var pem sql.NullString
	if err := tx.QueryRowContext(ctx, `SELECT privkey FROM actors WHERE as_id = ?`, actorID).Scan(&pem); errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	} else if err != nil {
		return "", fmt.Errorf("failed to query private key for %s: %w", actorID, err)
	}

	if !pem.Valid {
		return "", ErrNotFound
	}

	return pem.String, nil
}

// LastUpdated returns when an actor was last fetched or modified, used by
// the retriever's staleness policy.
func LastUpdated(ctx context.Context, tx Execer, id string) (int64, error) {
	var updated int64
	if err := tx.QueryRowContext(ctx, `SELECT updated FROM actors WHERE as_id = ? AND revoked = 0`, id).Scan(&updated); errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	} else if err != nil {
		return 0, err
	}

	return updated, nil
}

// RevokeActor marks an actor as a tombstone: terminal, no further mutation
// except eventual garbage collection.
func RevokeActor(ctx context.Context, tx Execer, id string) error {
	_, err := tx.ExecContext(
		ctx,
		`UPDATE actors SET revoked = 1, kind = ?, updated = UNIXEPOCH() WHERE as_id = ?`,
		string(ap.ActorTombstone), id,
	)
	if err != nil {
		return fmt.Errorf("failed to revoke actor %s: %w", id, err)
	}

	return nil
}

// IsRevoked reports whether an actor has been tombstoned.
func IsRevoked(ctx context.Context, tx Execer, id string) (bool, error) {
	var revoked bool
	if err := tx.QueryRowContext(ctx, `SELECT revoked FROM actors WHERE as_id = ?`, id).Scan(&revoked); errors.Is(err, sql.ErrNoRows) {
		return false, nil
	} else if err != nil {
		return false, err
	}

	return revoked, nil
}
