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

// Package delivery POSTs locally-authored activities to every recipient
// inbox, retrying failed deliveries with backoff and collapsing wide
// (public or follower) deliveries onto shared inboxes where possible.
package delivery

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fedcore/engine/ap"
	"github.com/fedcore/engine/cfg"
	"github.com/fedcore/engine/httpsig"
	"github.com/fedcore/engine/identity"
	"github.com/fedcore/engine/retriever"
	"github.com/fedcore/engine/store"
	"github.com/fedcore/engine/transport"
)

// Queue delivers the backlog of locally-authored activities sitting in
// package store's activities table to their remote recipients.
type Queue struct {
	Domain    string
	Config    *cfg.Config
	DB        *sql.DB
	Sender    *transport.Sender
	Retriever *retriever.Retriever
}

// job is one locally-authored activity due for (re)delivery, along with
// the local actor it was sent as.
type job struct {
	Activity *ap.Activity
	Raw      string
	Sender   *ap.Actor
}

// task is one HTTP request a worker needs to make: deliver job to a
// single inbox.
type task struct {
	Job   job
	Key   httpsig.Key
	Inbox string
}

// Process polls the backlog on a timer and delivers whatever's due,
// until ctx is canceled.
func (q *Queue) Process(ctx context.Context) error {
	t := time.NewTicker(q.Config.OutboxPollingInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-t.C:
			if _, err := q.ProcessBatch(ctx); err != nil {
				slog.Error("Failed to deliver activities", "error", err)
			}
		}
	}
}

// ProcessBatch delivers one batch of due activities: those never
// attempted, or whose last attempt is old enough and hasn't exhausted
// MaxDeliveryAttempts. Recipients of one activity are dispatched in
// parallel so one unreachable inbox can't stall the others; ordering per
// inbox is preserved by always routing an inbox's tasks to the same
// worker.
func (q *Queue) ProcessBatch(ctx context.Context) (int, error) {
	rows, err := q.DB.QueryContext(
		ctx,
		`SELECT activities.activity, activities.raw_activity, activities.delivery_attempts, activities.actor_as_id
		FROM activities
		JOIN actors ON actors.as_id = activities.actor_as_id
		WHERE actors.local = 1 AND activities.revoked = 0
		AND (
			activities.delivery_attempts = 0
			OR (
				activities.delivery_attempts < ?
				AND activities.delivery_last_attempt_at <= UNIXEPOCH() - ?
			)
		)
		ORDER BY activities.delivery_attempts ASC, activities.inserted ASC
		LIMIT ?`,
		q.Config.MaxDeliveryAttempts,
		int64(q.Config.DeliveryRetryInterval.Seconds()),
		q.Config.DeliveryBatchSize,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch activities to deliver: %w", err)
	}
	defer rows.Close()

	tasks := make([]chan task, q.Config.DeliveryWorkers)
	var wg sync.WaitGroup
	wg.Add(q.Config.DeliveryWorkers)
	for i := range tasks {
		tasks[i] = make(chan task, q.Config.DeliveryWorkerBuffer)
		go func(ch chan task) {
			defer wg.Done()
			q.consume(ctx, ch)
		}(tasks[i])
	}

	count := 0
	for rows.Next() {
		var activity ap.Activity
		var raw, senderID string
		var attempts int
		if err := rows.Scan(&activity, &raw, &attempts, &senderID); err != nil {
			slog.Error("Failed to scan activity to deliver", "error", err)
			continue
		}

		sender, err := store.GetActorByID(ctx, q.DB, senderID)
		if err != nil {
			slog.Error("Failed to load sender", "sender", senderID, "error", err)
			continue
		}

		key, err := identity.Load(ctx, q.DB, sender.ID)
		if err != nil {
			slog.Error("Failed to load sender key", "sender", senderID, "error", err)
			continue
		}

		if err := store.RecordDeliveryAttempt(ctx, q.DB, activity.ID); err != nil {
			slog.Error("Failed to record delivery attempt", "activity", activity.ID, "error", err)
			continue
		}

		count++

		j := job{Activity: &activity, Raw: raw, Sender: sender}
		if err := q.queueTasks(ctx, j, key, tasks); err != nil {
			slog.Warn("Failed to queue activity for delivery", "activity", activity.ID, "error", err)
		}
	}

	for _, ch := range tasks {
		close(ch)
	}
	wg.Wait()

	return count, rows.Err()
}
