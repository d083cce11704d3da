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
	"log/slog"
	"net/url"
	"time"

	"github.com/fedcore/engine/store"
)

// consume is a worker's task loop: every inbox it's handed belongs to it
// alone for the lifetime of the batch, so deliveries to that inbox stay
// ordered even though different inboxes proceed concurrently.
func (q *Queue) consume(ctx context.Context, tasks <-chan task) {
	for t := range tasks {
		delivered, err := store.IsDelivered(ctx, q.DB, t.Job.Activity.ID, t.Inbox)
		if err != nil {
			slog.Error("Failed to check delivery status", "inbox", t.Inbox, "activity", t.Job.Activity.ID, "error", err)
			continue
		}
		if delivered {
			continue
		}

		q.deliver(ctx, t)
	}
}

// deliver sends one activity to one inbox and records the outcome:
// success and terminal 4xx failures both stop future retries to that
// inbox, while timeouts and 5xx responses are left for the next batch.
func (q *Queue) deliver(ctx context.Context, t task) {
	deliverCtx, cancel := context.WithTimeout(ctx, q.Config.DeliveryTimeout)
	defer cancel()

	host := t.Inbox
	if u, err := url.Parse(t.Inbox); err == nil {
		host = u.Host
	}

	// Sender.Post reports any non-2xx response as an error alongside the
	// response itself, so the status code still has to be read off resp
	// before falling back to treating err as a bare network failure.
	resp, err := q.Sender.Post(deliverCtx, t.Key, t.Inbox, []byte(t.Job.Raw))
	if resp == nil {
		slog.Warn("Failed to deliver activity", "inbox", t.Inbox, "activity", t.Job.Activity.ID, "error", err)
		q.recordFailure(ctx, host)
		return
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if err := store.TouchInstance(ctx, q.DB, host); err != nil {
			slog.Error("Failed to record instance health", "host", host, "error", err)
		}
		if err := store.RecordDelivery(ctx, q.DB, t.Job.Activity.ID, t.Inbox); err != nil {
			slog.Error("Failed to record delivery", "inbox", t.Inbox, "activity", t.Job.Activity.ID, "error", err)
		}

	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		slog.Info("Recipient rejected activity, giving up", "inbox", t.Inbox, "activity", t.Job.Activity.ID, "status", resp.StatusCode)
		if err := store.RecordDelivery(ctx, q.DB, t.Job.Activity.ID, t.Inbox); err != nil {
			slog.Error("Failed to record delivery", "inbox", t.Inbox, "activity", t.Job.Activity.ID, "error", err)
		}

	default:
		slog.Warn("Delivery failed, will retry", "inbox", t.Inbox, "activity", t.Job.Activity.ID, "status", resp.StatusCode)
		q.recordFailure(ctx, host)
	}
}

// recordFailure tracks how long a host has been unreachable, blocking it
// once it's been down for longer than MaxInstanceRecoveryTime so the
// queue stops spending retries on a dead peer.
func (q *Queue) recordFailure(ctx context.Context, host string) {
	lastSeen, err := store.LastSeen(ctx, q.DB, host)
	if errors.Is(err, store.ErrNotFound) {
		return
	} else if err != nil {
		slog.Error("Failed to check instance health", "host", host, "error", err)
		return
	}

	if time.Since(time.Unix(lastSeen, 0)) > q.Config.MaxInstanceRecoveryTime {
		if err := store.SetInstanceBlocked(ctx, q.DB, host, true); err != nil {
			slog.Error("Failed to block unreachable instance", "host", host, "error", err)
		} else {
			slog.Info("Blocking unreachable instance", "host", host)
		}
	}
}
