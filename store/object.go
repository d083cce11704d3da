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

// UpsertObject inserts or replaces a cached or local object.
func UpsertObject(ctx context.Context, tx Execer, host string, object *ap.Object) error {
	if object.ID == "" {
		return errors.New("object has no ID")
	}

	var conversation sql.NullString
	if object.Audience != "" {
		conversation = sql.NullString{String: object.Audience, Valid: true}
	}

	var inReplyTo sql.NullString
	if object.InReplyTo != "" {
		inReplyTo = sql.NullString{String: object.InReplyTo, Valid: true}
	}

	var attributedTo sql.NullString
	if object.AttributedTo != "" {
		attributedTo = sql.NullString{String: object.AttributedTo, Valid: true}
	}

	_, err := tx.ExecContext(
		ctx,
		`INSERT INTO objects(as_id, host, kind, attributed_to, in_reply_to, conversation, object, updated)
		VALUES(?, ?, ?, ?, ?, ?, JSONB(?), UNIXEPOCH())
		ON CONFLICT(as_id) DO UPDATE SET
			object = JSONB(?),
			kind = ?,
			updated = UNIXEPOCH()
		WHERE as_deleted = 0`,
		object.ID, host, string(object.Type), attributedTo, inReplyTo, conversation, object,
		object, string(object.Type),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert object %s: %w", object.ID, err)
	}

	return nil
}

// GetObjectByID returns a cached or local object by canonical ID.
func GetObjectByID(ctx context.Context, tx Execer, id string) (*ap.Object, error) {
	var object ap.Object
	if err := tx.QueryRowContext(ctx, `SELECT object FROM objects WHERE as_id = ?`, id).Scan(&object); errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to query object %s: %w", id, err)
	}

	return &object, nil
}

// IsObjectDeleted reports whether an object has been soft-deleted.
func IsObjectDeleted(ctx context.Context, tx Execer, id string) (bool, error) {
	var deleted bool
	if err := tx.QueryRowContext(ctx, `SELECT as_deleted != 0 FROM objects WHERE as_id = ?`, id).Scan(&deleted); errors.Is(err, sql.ErrNoRows) {
		return false, ErrNotFound
	} else if err != nil {
		return false, err
	}

	return deleted, nil
}

// TombstoneObject marks an object deleted: its type becomes Tombstone and
// its content is cleared so later reads don't leak it, while the row
// itself (and any activities pointing at it) survive for integrity.
func TombstoneObject(ctx context.Context, tx Execer, id string) error {
	tombstone := ap.Object{ID: id, Type: ap.Tombstone}

	res, err := tx.ExecContext(
		ctx,
		`UPDATE objects SET object = JSONB(?), kind = ?, as_deleted = UNIXEPOCH(), updated = UNIXEPOCH() WHERE as_id = ? AND as_deleted = 0`,
		&tombstone, string(ap.Tombstone), id,
	)
	if err != nil {
		return fmt.Errorf("failed to tombstone object %s: %w", id, err)
	}

	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return ErrNotFound
	}

	return nil
}
