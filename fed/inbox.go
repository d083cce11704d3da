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
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/fedcore/engine/ap"
	"github.com/fedcore/engine/inbox"
	"github.com/fedcore/engine/retriever"
	"github.com/fedcore/engine/store"
)

// handleSharedInbox serves POST /inbox: one endpoint for every local
// recipient, used when a sender's audience spans more than one local
// actor so it only has to deliver once.
func (l *Listener) handleSharedInbox(w http.ResponseWriter, r *http.Request) {
	l.doHandleInbox(w, r, true)
}

// handleInbox serves POST /user/{u}/inbox: a per-actor alias of the
// shared inbox. The dispatcher doesn't otherwise care which URL a
// delivery arrived on, so both routes share doHandleInbox.
func (l *Listener) handleInbox(w http.ResponseWriter, r *http.Request) {
	l.doHandleInbox(w, r, false)
}

func (l *Listener) doHandleInbox(w http.ResponseWriter, r *http.Request, shared bool) {
	if !l.BlockList.AllowRequest(r) {
		slog.WarnContext(r.Context(), "Rejecting request from blocked address", "remote", r.RemoteAddr)
		w.WriteHeader(http.StatusForbidden)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, l.Config.MaxRequestBodySize+1))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if int64(len(body)) > l.Config.MaxRequestBodySize {
		w.WriteHeader(http.StatusRequestEntityTooLarge)
		return
	}

	host, err := l.peekSignatureHost(r, body)
	if err != nil {
		slog.WarnContext(r.Context(), "Rejecting unsigned request", "error", err)
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	if l.BlockList.Contains(host) {
		slog.WarnContext(r.Context(), "Rejecting request from blocked domain", "host", host)
		w.WriteHeader(http.StatusForbidden)
		return
	}

	_, sender, err := l.verifyRequest(r, body, 0)
	if err != nil {
		switch {
		case errors.Is(err, retriever.ErrActorGone), errors.Is(err, retriever.ErrActorNotCached), errors.Is(err, retriever.ErrYoungActor):
			// the signer can't be authenticated because its key is
			// unreachable; the peer may retry once it republishes it.
			slog.InfoContext(r.Context(), "Accepting and discarding activity from unreachable actor", "error", err)
			w.WriteHeader(http.StatusAccepted)
		case errors.Is(err, retriever.ErrBlockedDomain):
			w.WriteHeader(http.StatusForbidden)
		default:
			slog.WarnContext(r.Context(), "Failed to verify inbox request", "error", err)
			w.WriteHeader(http.StatusUnauthorized)
		}
		return
	}

	var activity ap.Activity
	if err := activity.UnmarshalJSON(body); err != nil {
		slog.WarnContext(r.Context(), "Rejecting malformed activity", "error", err)
		if recErr := store.RecordUnprocessable(r.Context(), l.DB, sender.ID, string(body), err.Error()); recErr != nil {
			slog.Error("Failed to record unprocessable activity", "error", recErr)
		}
		w.WriteHeader(http.StatusUnprocessableEntity)
		return
	}

	origin, err := ap.Origin(sender.ID)
	if err != nil {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	if err := ap.ValidateOrigin(l.Domain, &activity, origin); err != nil {
		slog.WarnContext(r.Context(), "Rejecting activity with invalid origin", "id", activity.ID, "error", err)
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	tx, err := l.DB.BeginTx(r.Context(), nil)
	if err != nil {
		slog.Error("Failed to begin transaction", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	defer tx.Rollback()

	if err := l.Dispatcher.ProcessActivity(r.Context(), tx, sender, &activity, string(body), 0, shared); err != nil {
		if errors.Is(err, inbox.ErrActivityTooNested) {
			if recErr := store.RecordUnprocessable(r.Context(), l.DB, sender.ID, string(body), err.Error()); recErr != nil {
				slog.Error("Failed to record unprocessable activity", "error", recErr)
			}
			w.WriteHeader(http.StatusUnprocessableEntity)
			return
		}

		slog.ErrorContext(r.Context(), "Failed to process activity", "id", activity.ID, "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	if err := tx.Commit(); err != nil {
		slog.Error("Failed to commit activity", "id", activity.ID, "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	if activity.Type == ap.Block {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}
