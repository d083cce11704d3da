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

// Follow is a row of the follows table: a pending or accepted
// relationship between a follower and a followed actor, keyed by the
// Follow activity's own ID.
type Follow struct {
	ID       string
	Follower string
	Followed string
	Accepted sql.NullBool
}

// UpsertFollow records a Follow request as pending. A follower retrying
// the same relationship collapses onto the existing row rather than
// creating a duplicate pending request.
func UpsertFollow(ctx context.Context, tx Execer, id, follower, followed string) error {
	_, err := tx.ExecContext(
		ctx,
		`INSERT INTO follows(as_id, follower, followed) VALUES(?, ?, ?)
		ON CONFLICT(follower, followed) DO UPDATE SET as_id = ? WHERE accepted IS NULL`,
		id, follower, followed, id,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert follow %s->%s: %w", follower, followed, err)
	}

	return nil
}

// SetFollowAccepted records the followed actor's Accept or Reject
// response to a pending Follow.
func SetFollowAccepted(ctx context.Context, tx Execer, id string, accepted bool) error {
	res, err := tx.ExecContext(ctx, `UPDATE follows SET accepted = ? WHERE as_id = ?`, accepted, id)
	if err != nil {
		return fmt.Errorf("failed to set follow %s accepted=%v: %w", id, accepted, err)
	}

	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return ErrNotFound
	}

	return nil
}

// GetFollow returns the relationship between a follower and a followed
// actor, if one exists in any state.
func GetFollow(ctx context.Context, tx Execer, follower, followed string) (*Follow, error) {
	var f Follow
	err := tx.QueryRowContext(
		ctx,
		`SELECT as_id, follower, followed, accepted FROM follows WHERE follower = ? AND followed = ?`,
		follower, followed,
	).Scan(&f.ID, &f.Follower, &f.Followed, &f.Accepted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to query follow %s->%s: %w", follower, followed, err)
	}

	return &f, nil
}

// GetFollowByID returns a follow relationship by the ID of the Follow
// activity that created it, used to resolve Accept, Reject and follow
// processing.
func GetFollowByID(ctx context.Context, tx Execer, id string) (*Follow, error) {
	var f Follow
	err := tx.QueryRowContext(
		ctx,
		`SELECT as_id, follower, followed, accepted FROM follows WHERE as_id = ?`,
		id,
	).Scan(&f.ID, &f.Follower, &f.Followed, &f.Accepted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to query follow %s: %w", id, err)
	}

	return &f, nil
}

// DeleteFollow removes a relationship, used by Undo(Follow) and Unfollow.
func DeleteFollow(ctx context.Context, tx Execer, follower, followed string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM follows WHERE follower = ? AND followed = ?`, follower, followed)
	if err != nil {
		return fmt.Errorf("failed to delete follow %s->%s: %w", follower, followed, err)
	}

	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return ErrNotFound
	}

	return nil
}

// PendingFollows returns the IDs of Follow activities awaiting a local
// decision (manual approval) or the automatic Accept the periodic follow
// processing job issues for everyone else.
func PendingFollows(ctx context.Context, tx Execer) ([]string, error) {
	rows, err := tx.QueryContext(ctx, `SELECT as_id FROM follows WHERE accepted IS NULL`)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending follows: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// Followers returns the IDs of actors following the given actor with an
// accepted relationship, used to compute delivery recipients.
func Followers(ctx context.Context, tx Execer, followed string) ([]string, error) {
	rows, err := tx.QueryContext(ctx, `SELECT follower FROM follows WHERE followed = ? AND accepted = 1`, followed)
	if err != nil {
		return nil, fmt.Errorf("failed to query followers of %s: %w", followed, err)
	}
	defer rows.Close()

	var followers []string
	for rows.Next() {
		var follower string
		if err := rows.Scan(&follower); err != nil {
			return nil, err
		}
		followers = append(followers, follower)
	}

	return followers, rows.Err()
}

// Following returns the IDs of actors the given actor follows with an
// accepted relationship, used to render its following collection.
func Following(ctx context.Context, tx Execer, follower string) ([]string, error) {
	rows, err := tx.QueryContext(ctx, `SELECT followed FROM follows WHERE follower = ? AND accepted = 1`, follower)
	if err != nil {
		return nil, fmt.Errorf("failed to query who %s follows: %w", follower, err)
	}
	defer rows.Close()

	var following []string
	for rows.Next() {
		var followed string
		if err := rows.Scan(&followed); err != nil {
			return nil, err
		}
		following = append(following, followed)
	}

	return following, rows.Err()
}

// CountFollowers returns how many accepted followers an actor has, for
// a collection's totalItems without materializing the full list.
func CountFollowers(ctx context.Context, tx Execer, followed string) (int64, error) {
	var n int64
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM follows WHERE followed = ? AND accepted = 1`, followed).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count followers of %s: %w", followed, err)
	}
	return n, nil
}

// CountFollowing returns how many actors the given actor accepted-follows.
func CountFollowing(ctx context.Context, tx Execer, follower string) (int64, error) {
	var n int64
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM follows WHERE follower = ? AND accepted = 1`, follower).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count who %s follows: %w", follower, err)
	}
	return n, nil
}
