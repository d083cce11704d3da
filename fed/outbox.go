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
	"io"
	"log/slog"
	"net/http"
	"regexp"

	"github.com/fedcore/engine/ap"
	"github.com/fedcore/engine/httpsig"
	"github.com/fedcore/engine/store"
)

var clientKeyRegex = regexp.MustCompile(`^https://([^/]+)/user/([^/]+)#client-key$`)

// ErrClientKeyNotFound is returned when a client-signed request's keyId
// doesn't resolve to a local actor.
var ErrClientKeyNotFound = errors.New("client key not found")

// verifyClientRequest authenticates a local client's request using its
// own actor's existing key, short-circuiting the retriever entirely: the
// signer is local, so its public key is a plain row lookup rather than a
// signed fetch.
func (l *Listener) verifyClientRequest(r *http.Request, body []byte) (*ap.Actor, error) {
	sig, err := httpsig.Extract(r, body, l.Domain, l.Config.MaxRequestAge)
	if err != nil {
		return nil, fmt.Errorf("failed to extract signature: %w", err)
	}

	m := clientKeyRegex.FindStringSubmatch(sig.KeyID)
	if m == nil || m[1] != l.Domain {
		return nil, fmt.Errorf("%w: %s", ErrClientKeyNotFound, sig.KeyID)
	}

	actor, err := store.GetActorByHostAndName(r.Context(), l.DB, l.Domain, m[2])
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrClientKeyNotFound, sig.KeyID)
	}

	publicKey, err := parsePublicKeyPEM(actor.PublicKey.PublicKeyPem)
	if err != nil {
		return nil, fmt.Errorf("failed to parse client key for %s: %w", actor.ID, err)
	}

	if err := sig.Verify(publicKey); err != nil {
		return nil, fmt.Errorf("failed to verify client request from %s: %w", actor.ID, err)
	}

	return actor, nil
}

// outboxPayload is either a bare Object or a full Activity wrapping one;
// only Type is inspected up front, the rest is decoded once the shape is
// known.
type outboxPayload struct {
	Type string `json:"type"`
}

// handleOutboxPost serves POST /user/{u}/outbox (spec.md §4.6): local
// clients authenticate with their own actor's client-key signature and
// originate a Note (bare Object or Create-wrapped) or a Like.
func (l *Listener) handleOutboxPost(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, l.Config.MaxRequestBodySize+1))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if int64(len(body)) > l.Config.MaxRequestBodySize {
		w.WriteHeader(http.StatusRequestEntityTooLarge)
		return
	}

	actor, err := l.verifyClientRequest(r, body)
	if err != nil {
		slog.WarnContext(r.Context(), "Rejecting unauthenticated outbox request", "error", err)
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	username := r.PathValue("username")
	if actor.PreferredUsername != username {
		slog.WarnContext(r.Context(), "Rejecting outbox request for mismatched actor", "signed_as", actor.ID, "path", username)
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	var payload outboxPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	switch payload.Type {
	case string(ap.Note), "":
		l.handleOutboxNote(w, r, actor, body)

	case string(ap.Create):
		var create struct {
			Object json.RawMessage `json:"object"`
		}
		if err := json.Unmarshal(body, &create); err != nil || create.Object == nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		l.handleOutboxNote(w, r, actor, create.Object)

	case string(ap.Like):
		l.handleOutboxLike(w, r, actor, body)

	default:
		slog.InfoContext(r.Context(), "Rejecting unsupported outbox payload", "type", payload.Type)
		if recErr := store.RecordUnprocessable(r.Context(), l.DB, actor.ID, string(body), "unsupported outbox payload type "+payload.Type); recErr != nil {
			slog.Error("Failed to record unprocessable outbox payload", "error", recErr)
		}
		w.WriteHeader(http.StatusUnprocessableEntity)
	}
}

func (l *Listener) handleOutboxNote(w http.ResponseWriter, r *http.Request, actor *ap.Actor, raw json.RawMessage) {
	var note struct {
		Content   string      `json:"content"`
		InReplyTo string      `json:"inReplyTo"`
		To        ap.Audience `json:"to"`
		CC        ap.Audience `json:"cc"`
	}
	if err := json.Unmarshal(raw, &note); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	created, err := l.Outbox.CreateNote(r.Context(), actor, note.Content, note.InReplyTo, note.To, note.CC)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to create note", "actor", actor.ID, "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	resp, err := json.Marshal(created)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", `application/activity+json; charset=utf-8`)
	w.WriteHeader(http.StatusCreated)
	w.Write(resp)
}

func (l *Listener) handleOutboxLike(w http.ResponseWriter, r *http.Request, actor *ap.Actor, body []byte) {
	var like struct {
		Object string `json:"object"`
	}
	if err := json.Unmarshal(body, &like); err != nil || like.Object == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	object, err := store.GetObjectByID(r.Context(), l.DB, like.Object)
	if errors.Is(err, store.ErrNotFound) {
		w.WriteHeader(http.StatusNotFound)
		return
	} else if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	if err := l.Outbox.Like(r.Context(), actor, object); err != nil {
		slog.ErrorContext(r.Context(), "Failed to like object", "actor", actor.ID, "object", object.ID, "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}
