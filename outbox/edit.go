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

package outbox

import (
	"context"
	"time"

	"github.com/fedcore/engine/ap"
)

// EditNote changes the content of a local note already authored by
// actor and hands the resulting Update to the inbox dispatcher.
func (o *Outbox) EditNote(ctx context.Context, actor *ap.Actor, note *ap.Object, newContent string) error {
	note.Content = newContent
	note.Updated = ap.Time{Time: time.Now()}

	return o.Dispatcher.UpdateObject(ctx, o.DB, actor, note)
}
