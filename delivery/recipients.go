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
	"context"
	"errors"
	"hash/crc32"
	"log/slog"
	"net/url"

	"github.com/fedcore/engine/ap"
	"github.com/fedcore/engine/httpsig"
	"github.com/fedcore/engine/retriever"
	"github.com/fedcore/engine/store"
)

// queueTasks resolves j's recipients into inbox URLs and hands each one
// to the worker that owns that inbox, so two activities to the same
// inbox never race each other out of order.
func (q *Queue) queueTasks(ctx context.Context, j job, key httpsig.Key, workers []chan task) error {
	recipients := ap.Audience{}
	for _, id := range j.Activity.To.Keys() {
		recipients.Add(id)
	}
	for _, id := range j.Activity.CC.Keys() {
		recipients.Add(id)
	}

	wideDelivery := j.Activity.IsPublic() || recipients.Contains(j.Sender.Followers)

	actorIDs := ap.Audience{}
	if wideDelivery {
		followers, err := store.Followers(ctx, q.DB, j.Sender.ID)
		if err != nil {
			slog.Warn("Failed to list followers", "activity", j.Activity.ID, "error", err)
		} else {
			for _, follower := range followers {
				actorIDs.Add(follower)
			}
		}
	}

	for _, id := range recipients.Keys() {
		if id == ap.Public {
			continue
		}
		actorIDs.Add(id)
	}

	seenInboxes := map[string]struct{}{}

	for _, actorID := range actorIDs.Keys() {
		if actorID == j.Sender.ID {
			continue
		}

		// an explicit recipient is assumed to be an actor, not a collection;
		// a collection address that happens to resolve to the sender itself
		// (e.g. its own followers URL misread as an actor ID) is skipped here.
		to, err := q.Retriever.ResolveID(ctx, key, actorID, ap.Offline)
		if err != nil {
			if !errors.Is(err, retriever.ErrActorGone) && !errors.Is(err, retriever.ErrBlockedDomain) {
				slog.Warn("Failed to resolve a recipient", "to", actorID, "activity", j.Activity.ID, "error", err)
			}
			continue
		}
		if to.ID == j.Sender.ID {
			continue
		}

		inbox := to.Inbox
		if wideDelivery {
			if sharedInbox, ok := to.Endpoints["sharedInbox"]; ok && sharedInbox != "" {
				inbox = sharedInbox
			}
		}

		if inbox == "" {
			continue
		}
		if _, ok := seenInboxes[inbox]; ok {
			continue
		}
		seenInboxes[inbox] = struct{}{}

		if u, err := url.Parse(inbox); err == nil {
			if blocked, err := store.IsInstanceBlocked(ctx, q.DB, u.Host); err != nil {
				slog.Warn("Failed to check instance block status", "host", u.Host, "error", err)
			} else if blocked {
				slog.Debug("Skipping blocked instance", "host", u.Host, "activity", j.Activity.ID)
				continue
			}
		}

		workers[crc32.ChecksumIEEE([]byte(inbox))%uint32(len(workers))] <- task{Job: j, Key: key, Inbox: inbox}
	}

	return nil
}
