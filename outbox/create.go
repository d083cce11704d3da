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
	"fmt"
	"time"

	"github.com/fedcore/engine/ap"
)

// CreateNote builds a new Note authored by author, addressed to to/cc
// (defaulting to the public audience plus the author's followers
// collection when both are empty), and hands it to the inbox dispatcher
// for persistence and delivery.
func (o *Outbox) CreateNote(ctx context.Context, author *ap.Actor, content, inReplyTo string, to, cc ap.Audience) (*ap.Object, error) {
	id, err := o.Dispatcher.NewID(author.ID, "objects")
	if err != nil {
		return nil, fmt.Errorf("failed to create note: %w", err)
	}

	if len(to.OrderedMap) == 0 && len(cc.OrderedMap) == 0 {
		to.Add(ap.Public)
		if author.Followers != "" {
			cc.Add(author.Followers)
		}
	}

	note := &ap.Object{
		Context:      "https://www.w3.org/ns/activitystreams",
		ID:           id,
		Type:         ap.Note,
		AttributedTo: author.ID,
		Content:      content,
		InReplyTo:    inReplyTo,
		Published:    ap.Time{Time: time.Now()},
		To:           to,
		CC:           cc,
	}

	if err := o.Dispatcher.Create(ctx, o.Config, o.DB, note, author); err != nil {
		return nil, err
	}

	return note, nil
}
