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
	"testing"

	"github.com/fedcore/engine/ap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPurgeHost_RemovesAttributedState(t *testing.T) {
	db := newGCTestDB(t)
	ctx := context.Background()

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)

	actor := &ap.Actor{ID: "https://peer.example/users/ghost", Type: ap.Person}
	require.NoError(t, UpsertActor(ctx, tx, "peer.example", "ghost", actor, false))

	obj := &ap.Object{ID: "https://peer.example/notes/1", Type: ap.Note, AttributedTo: actor.ID}
	require.NoError(t, UpsertObject(ctx, tx, "peer.example", obj))

	activity := &ap.Activity{ID: "https://peer.example/create/1", Type: ap.Create, Actor: actor.ID, Object: obj.ID}
	require.NoError(t, InsertActivity(ctx, tx, activity, "{}"))

	require.NoError(t, UpsertFollow(ctx, tx, "https://peer.example/follow/1", actor.ID, "https://localhost.localdomain/user/bob"))

	require.NoError(t, tx.Commit())

	tx, err = db.BeginTx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, PurgeHost(ctx, tx, "peer.example"))
	require.NoError(t, tx.Commit())

	blocked, err := IsInstanceBlocked(ctx, db, "peer.example")
	require.NoError(t, err)
	assert.True(t, blocked)

	_, err = GetActorByID(ctx, db, actor.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = GetObjectByID(ctx, db, obj.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = GetActivityByID(ctx, db, activity.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = GetFollow(ctx, db, actor.ID, "https://localhost.localdomain/user/bob")
	assert.ErrorIs(t, err, ErrNotFound)
}
