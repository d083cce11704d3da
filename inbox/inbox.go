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

// Package inbox creates outgoing reactions (Accept/Reject/Follow/...) and
// dispatches incoming activities to their per-kind handlers, persisting
// side effects through package store.
package inbox

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/fedcore/engine/ap"
	"github.com/fedcore/engine/cfg"
	"github.com/google/uuid"
)

// Dispatcher implements [ap.Inbox]: it originates the local reactions a
// handler needs to send (Accept, Reject, Undo, ...) and processes
// incoming activities delivered to the local inbox.
type Dispatcher struct {
	Domain string
	Config *cfg.Config
	DB     *sql.DB
}

var _ ap.Inbox = (*Dispatcher)(nil)

var ErrActivityTooNested = errors.New("exceeded activity depth limit")

// handler processes one already-persisted-to-nothing activity kind
// within an open transaction, returning an error only for conditions the
// caller should treat as a processing failure; kinds the engine accepts
// but doesn't act on (Block) return nil without persisting anything.
type handler func(ctx context.Context, d *Dispatcher, tx *sql.Tx, sender *ap.Actor, activity *ap.Activity, rawActivity string, depth int, shared bool) error

var handlers = map[ap.ActivityType]handler{
	ap.Create:   handleCreate,
	ap.Update:   handleUpdate,
	ap.Delete:   handleDelete,
	ap.Follow:   handleFollow,
	ap.Accept:   handleAccept,
	ap.Reject:   handleReject,
	ap.Announce: handleAnnounce,
	ap.Like:     handleLike,
	ap.Undo:     handleUndo,
	ap.Block:    handleBlock,
	ap.Add:      handleAdd,
	ap.Remove:   handleRemove,
	ap.Move:     handleMove,
}

// NewID generates a fresh canonical ID under the local domain. category
// is "activities" or "objects", matching the two collections the HTTP
// layer serves by UUID.
func (d *Dispatcher) NewID(actorID, category string) (string, error) {
	u, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("failed to generate %s ID: %w", category, err)
	}

	return fmt.Sprintf("https://%s/%s/%s", d.Domain, category, u.String()), nil
}

// ProcessActivity dispatches an incoming activity to its handler. Kinds
// with no registered handler are logged and ignored rather than treated
// as an error, so one unsupported activity in a batch doesn't poison the
// rest of the delivery.
func (d *Dispatcher) ProcessActivity(ctx context.Context, tx *sql.Tx, sender *ap.Actor, activity *ap.Activity, rawActivity string, depth int, shared bool) error {
	if depth == ap.MaxActivityDepth {
		return ErrActivityTooNested
	}

	slog.DebugContext(ctx, "Processing activity", "id", activity.ID, "type", activity.Type)

	h, ok := handlers[activity.Type]
	if !ok {
		slog.WarnContext(ctx, "Received unsupported activity", "type", activity.Type)
		return nil
	}

	return h(ctx, d, tx, sender, activity, rawActivity, depth, shared)
}
