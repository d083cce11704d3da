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
	"log/slog"
	"net/http"

	"github.com/fedcore/engine/store"
)

// handleUser serves GET /user/{u}: the actor document peers dereference
// after a webfinger lookup or a keyId fetch.
func (l *Listener) handleUser(w http.ResponseWriter, r *http.Request) {
	l.doHandleUser(w, r, r.PathValue("username"))
}

func (l *Listener) doHandleUser(w http.ResponseWriter, r *http.Request, username string) {
	slog.Info("Looking up user", "user", username)

	actor, err := store.GetActorByHostAndName(r.Context(), l.DB, l.Domain, username)
	if errors.Is(err, store.ErrNotFound) {
		slog.Info("Notifying about missing user", "user", username)
		w.WriteHeader(http.StatusNotFound)
		return
	} else if err != nil {
		slog.Warn("Failed to fetch user", "user", username, "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	resp, err := json.Marshal(actor)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", `application/activity+json; charset=utf-8`)
	w.Write(resp)
}
