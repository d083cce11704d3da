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

package outbox

import (
	"context"
	"database/sql"
	"log/slog"
	"testing"

	"github.com/fedcore/engine/ap"
	"github.com/fedcore/engine/cfg"
	"github.com/fedcore/engine/identity"
	"github.com/fedcore/engine/inbox"
	"github.com/fedcore/engine/migrations"
	"github.com/fedcore/engine/store"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOutbox(t *testing.T) (*Outbox, *sql.DB) {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	require.NoError(t, migrations.Run(context.Background(), slog.Default(), db))

	config := cfg.Config{}
	config.FillDefaults()

	d := &inbox.Dispatcher{Domain: "localhost.localdomain", Config: &config, DB: db}
	return &Outbox{Dispatcher: d, Config: &config, DB: db}, db
}

func TestOutbox_CreateNoteDefaultsToPublicAudience(t *testing.T) {
	o, db := newTestOutbox(t)

	author, _, err := identity.Create(context.Background(), "localhost.localdomain", db, "alice", ap.Person)
	require.NoError(t, err)

	note, err := o.CreateNote(context.Background(), author, "hello world", "", ap.Audience{}, ap.Audience{})
	require.NoError(t, err)
	assert.True(t, note.To.IsPublic())
	assert.True(t, note.CC.Contains(author.Followers))

	tx, err := db.BeginTx(context.Background(), nil)
	require.NoError(t, err)
	defer tx.Rollback()

	stored, err := store.GetObjectByID(context.Background(), tx, note.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello world", stored.Content)
}

func TestOutbox_EditNoteUpdatesContent(t *testing.T) {
	o, db := newTestOutbox(t)

	author, _, err := identity.Create(context.Background(), "localhost.localdomain", db, "bob", ap.Person)
	require.NoError(t, err)

	note, err := o.CreateNote(context.Background(), author, "first draft", "", ap.Audience{}, ap.Audience{})
	require.NoError(t, err)

	require.NoError(t, o.EditNote(context.Background(), author, note, "revised"))

	tx, err := db.BeginTx(context.Background(), nil)
	require.NoError(t, err)
	defer tx.Rollback()

	stored, err := store.GetObjectByID(context.Background(), tx, note.ID)
	require.NoError(t, err)
	assert.Equal(t, "revised", stored.Content)
}

func TestOutbox_LikeIsIdempotent(t *testing.T) {
	o, db := newTestOutbox(t)

	author, _, err := identity.Create(context.Background(), "localhost.localdomain", db, "carol", ap.Person)
	require.NoError(t, err)
	liker, _, err := identity.Create(context.Background(), "localhost.localdomain", db, "dave", ap.Person)
	require.NoError(t, err)

	note, err := o.CreateNote(context.Background(), author, "a post worth liking", "", ap.Audience{}, ap.Audience{})
	require.NoError(t, err)

	require.NoError(t, o.Like(context.Background(), liker, note))
	require.NoError(t, o.Like(context.Background(), liker, note))

	tx, err := db.BeginTx(context.Background(), nil)
	require.NoError(t, err)
	defer tx.Rollback()

	var count int
	require.NoError(t, tx.QueryRowContext(context.Background(), `SELECT COUNT(*) FROM activities WHERE kind = 'Like' AND actor_as_id = ?`, liker.ID).Scan(&count))
	assert.Equal(t, 1, count)
}
