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

package fed

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/fedcore/engine/ap"
	"github.com/fedcore/engine/store"
)

// collectionPageSize bounds how many members a single followers/following/
// outbox page carries; large instances paginate further via "next" rather
// than growing one response without limit.
const collectionPageSize = 50

// writeCollection renders either the root collection (a pointer to its
// first page plus the total count) or, when the request carries
// ?page=N, the N-th page of items itself — the two-tier shape every
// OrderedCollection client expects.
func writeCollection(w http.ResponseWriter, r *http.Request, id string, total int64, items func(offset, limit int) (any, error)) {
	if r.URL.Query().Get("page") == "" {
		c := ap.Collection{
			Context:    "https://www.w3.org/ns/activitystreams",
			ID:         id,
			Type:       ap.OrderedCollection,
			First:      id + "?page=1",
			TotalItems: &total,
		}

		j, err := json.Marshal(c)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", `application/activity+json; charset=utf-8`)
		w.Write(j)
		return
	}

	pageNum := 1
	if n, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && n > 1 {
		pageNum = n
	}

	limit := collectionPageSize
	offset := (pageNum - 1) * limit

	ordered, err := items(offset, limit)
	if err != nil {
		slog.Warn("Failed to list collection page", "id", id, "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	page := ap.CollectionPage{
		Context:      "https://www.w3.org/ns/activitystreams",
		ID:           fmt.Sprintf("%s?page=%d", id, pageNum),
		Type:         ap.OrderedCollectionPage,
		PartOf:       id,
		OrderedItems: ordered,
	}
	if int64(offset+limit) < total {
		page.Next = fmt.Sprintf("%s?page=%d", id, pageNum+1)
	}

	j, err := json.Marshal(page)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", `application/activity+json; charset=utf-8`)
	w.Write(j)
}

// handleFollowers serves GET /user/{u}/followers.
func (l *Listener) handleFollowers(w http.ResponseWriter, r *http.Request) {
	actor, ok := l.lookupLocalActor(w, r)
	if !ok {
		return
	}

	total, err := store.CountFollowers(r.Context(), l.DB, actor.ID)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	writeCollection(w, r, actor.Followers, total, func(offset, limit int) (any, error) {
		ids, err := store.Followers(r.Context(), l.DB, actor.ID)
		return boundedSlice(ids, offset, limit), err
	})
}

// handleFollowing serves GET /user/{u}/following.
func (l *Listener) handleFollowing(w http.ResponseWriter, r *http.Request) {
	actor, ok := l.lookupLocalActor(w, r)
	if !ok {
		return
	}

	total, err := store.CountFollowing(r.Context(), l.DB, actor.ID)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	writeCollection(w, r, actor.Following, total, func(offset, limit int) (any, error) {
		ids, err := store.Following(r.Context(), l.DB, actor.ID)
		return boundedSlice(ids, offset, limit), err
	})
}

// handleOutbox serves GET /user/{u}/outbox: the actor's recent
// non-revoked activities, newest first.
func (l *Listener) handleOutbox(w http.ResponseWriter, r *http.Request) {
	actor, ok := l.lookupLocalActor(w, r)
	if !ok {
		return
	}

	writeCollection(w, r, actor.Outbox, -1, func(offset, limit int) (any, error) {
		coalesced, err := store.ActivitiesByActor(r.Context(), l.DB, actor.ID, limit)
		if err != nil {
			return nil, err
		}

		activities := make([]*ap.Activity, len(coalesced))
		for i, c := range coalesced {
			activities[i] = &c.Activity
		}
		return activities, nil
	})
}

func (l *Listener) lookupLocalActor(w http.ResponseWriter, r *http.Request) (*ap.Actor, bool) {
	username := r.PathValue("username")

	actor, err := store.GetActorByHostAndName(r.Context(), l.DB, l.Domain, username)
	if errors.Is(err, store.ErrNotFound) {
		w.WriteHeader(http.StatusNotFound)
		return nil, false
	} else if err != nil {
		slog.Warn("Failed to fetch user", "user", username, "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return nil, false
	}

	return actor, true
}

func boundedSlice(ids []string, offset, limit int) []string {
	if offset >= len(ids) {
		return nil
	}
	end := offset + limit
	if end > len(ids) {
		end = len(ids)
	}
	return ids[offset:end]
}
