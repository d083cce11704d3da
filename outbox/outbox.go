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

// Package outbox originates local content: authoring and editing a
// [ap.Object], and liking one. The other [ap.Inbox] operations (Follow,
// Unfollow, Announce, Undo, Delete, Block, Add, Remove, Move) are called
// directly against an [inbox.Dispatcher] by callers instead of being
// wrapped here a second time.
package outbox

import (
	"database/sql"

	"github.com/fedcore/engine/cfg"
	"github.com/fedcore/engine/inbox"
)

// Outbox authors local content on behalf of an authenticated actor.
type Outbox struct {
	Dispatcher *inbox.Dispatcher
	Config     *cfg.Config
	DB         *sql.DB
}
