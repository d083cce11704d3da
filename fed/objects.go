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

	"github.com/fedcore/engine/store"
)

// handleObject serves GET /objects/{uuid}: a local post, or a remote one
// cached while processing an activity that referenced it. A tombstoned
// object still resolves here, with its content already stripped by
// [store.TombstoneObject].
func (l *Listener) handleObject(w http.ResponseWriter, r *http.Request) {
	id := fmt.Sprintf("https://%s/objects/%s", l.Domain, r.PathValue("uuid"))

	object, err := store.GetObjectByID(r.Context(), l.DB, id)
	if errors.Is(err, store.ErrNotFound) {
		w.WriteHeader(http.StatusNotFound)
		return
	} else if err != nil {
		slog.WarnContext(r.Context(), "Failed to fetch object", "id", id, "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	resp, err := json.Marshal(object)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", `application/activity+json; charset=utf-8`)
	w.Write(resp)
}
