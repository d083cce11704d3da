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

package delivery

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"

	"github.com/fedcore/engine/ap"
	"github.com/fedcore/engine/cfg"
	"github.com/fedcore/engine/identity"
	"github.com/fedcore/engine/migrations"
	"github.com/fedcore/engine/retriever"
	"github.com/fedcore/engine/store"
	"github.com/fedcore/engine/transport"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClient stands in for the network: it records every request it
// receives and answers with a fixed status per host.
type fakeClient struct {
	mu        sync.Mutex
	responses map[string]int
	requests  []*http.Request
}

func (c *fakeClient) Do(req *http.Request) (*http.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.requests = append(c.requests, req)

	status, ok := c.responses[req.URL.Host]
	if !ok {
		status = http.StatusOK
	}

	return &http.Response{StatusCode: status, Body: io.NopCloser(bytes.NewReader(nil))}, nil
}

func newTestQueue(t *testing.T, client *fakeClient) (*Queue, *sql.DB) {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	require.NoError(t, migrations.Run(context.Background(), slog.Default(), db))

	config := cfg.Config{}
	config.FillDefaults()

	sender := &transport.Sender{Domain: "localhost.localdomain", Config: &config, Client: client}

	q := &Queue{
		Domain:    "localhost.localdomain",
		Config:    &config,
		DB:        db,
		Sender:    sender,
		Retriever: retriever.New(nil, "localhost.localdomain", &config, sender, db),
	}
	return q, db
}

func newCachedRecipient(t *testing.T, db *sql.DB, host, name string, sharedInbox string) *ap.Actor {
	t.Helper()
	id := "https://" + host + "/user/" + name
	actor := &ap.Actor{
		ID:    id,
		Type:  ap.Person,
		Inbox: id + "/inbox",
	}
	if sharedInbox != "" {
		actor.Endpoints = map[string]string{"sharedInbox": sharedInbox}
	}

	tx, err := db.BeginTx(context.Background(), nil)
	require.NoError(t, err)
	require.NoError(t, store.UpsertActor(context.Background(), tx, host, name, actor, false))
	require.NoError(t, tx.Commit())

	return actor
}

func TestQueue_DeliversDirectlyAddressedActivity(t *testing.T) {
	client := &fakeClient{responses: map[string]int{}}
	q, db := newTestQueue(t, client)

	author, _, err := identity.Create(context.Background(), q.Domain, db, "alice", ap.Person)
	require.NoError(t, err)

	recipient := newCachedRecipient(t, db, "remote.example", "bob", "")

	to := ap.Audience{}
	to.Add(recipient.ID)
	activity := &ap.Activity{ID: author.ID + "/create/1", Type: ap.Create, Actor: author.ID, To: to, Object: author.ID + "/note/1"}

	tx, err := db.BeginTx(context.Background(), nil)
	require.NoError(t, err)
	require.NoError(t, store.InsertActivity(context.Background(), tx, activity, `{"id":"`+activity.ID+`"}`))
	require.NoError(t, tx.Commit())

	n, err := q.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.Len(t, client.requests, 1)
	assert.Equal(t, recipient.Inbox, client.requests[0].URL.String())

	readTx, err := db.BeginTx(context.Background(), nil)
	require.NoError(t, err)
	defer readTx.Rollback()

	delivered, err := store.IsDelivered(context.Background(), readTx, activity.ID, recipient.Inbox)
	require.NoError(t, err)
	assert.True(t, delivered)
}

func TestQueue_PublicActivityUsesSharedInboxForFollowers(t *testing.T) {
	client := &fakeClient{responses: map[string]int{}}
	q, db := newTestQueue(t, client)

	author, _, err := identity.Create(context.Background(), q.Domain, db, "carol", ap.Person)
	require.NoError(t, err)

	follower := newCachedRecipient(t, db, "remote.example", "dave", "https://remote.example/inbox")

	tx, err := db.BeginTx(context.Background(), nil)
	require.NoError(t, err)
	require.NoError(t, store.UpsertFollow(context.Background(), tx, author.ID+"/follow/1", follower.ID, author.ID))
	require.NoError(t, store.SetFollowAccepted(context.Background(), tx, author.ID+"/follow/1", true))
	require.NoError(t, tx.Commit())

	to := ap.Audience{}
	to.Add(ap.Public)
	cc := ap.Audience{}
	cc.Add(author.Followers)
	activity := &ap.Activity{ID: author.ID + "/create/2", Type: ap.Create, Actor: author.ID, To: to, CC: cc, Object: author.ID + "/note/2"}

	tx, err = db.BeginTx(context.Background(), nil)
	require.NoError(t, err)
	require.NoError(t, store.InsertActivity(context.Background(), tx, activity, `{"id":"`+activity.ID+`"}`))
	require.NoError(t, tx.Commit())

	n, err := q.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.Len(t, client.requests, 1)
	assert.Equal(t, "https://remote.example/inbox", client.requests[0].URL.String())
}

func TestQueue_TerminalFailureStopsRetrying(t *testing.T) {
	client := &fakeClient{responses: map[string]int{"remote.example": http.StatusGone}}
	q, db := newTestQueue(t, client)

	author, _, err := identity.Create(context.Background(), q.Domain, db, "erin", ap.Person)
	require.NoError(t, err)
	recipient := newCachedRecipient(t, db, "remote.example", "frank", "")

	to := ap.Audience{}
	to.Add(recipient.ID)
	activity := &ap.Activity{ID: author.ID + "/create/3", Type: ap.Create, Actor: author.ID, To: to, Object: author.ID + "/note/3"}

	tx, err := db.BeginTx(context.Background(), nil)
	require.NoError(t, err)
	require.NoError(t, store.InsertActivity(context.Background(), tx, activity, `{"id":"`+activity.ID+`"}`))
	require.NoError(t, tx.Commit())

	_, err = q.ProcessBatch(context.Background())
	require.NoError(t, err)

	readTx, err := db.BeginTx(context.Background(), nil)
	require.NoError(t, err)
	defer readTx.Rollback()

	delivered, err := store.IsDelivered(context.Background(), readTx, activity.ID, recipient.Inbox)
	require.NoError(t, err)
	assert.True(t, delivered, "a terminal 4xx should be recorded so it isn't retried forever")
}
