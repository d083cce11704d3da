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

package migrations

import (
	"context"
	"database/sql"
)

func initialSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS actors(
			as_id STRING NOT NULL PRIMARY KEY,
			host STRING NOT NULL,
			name STRING,
			kind STRING NOT NULL,
			actor JSON NOT NULL,
			privkey STRING,
			local INTEGER NOT NULL DEFAULT 0,
			revoked INTEGER NOT NULL DEFAULT 0,
			inserted INTEGER NOT NULL DEFAULT (UNIXEPOCH()),
			updated INTEGER NOT NULL DEFAULT (UNIXEPOCH())
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS actorshostname ON actors(host, name)`,
		`CREATE INDEX IF NOT EXISTS actorsupdated ON actors(updated)`,

		`CREATE TABLE IF NOT EXISTS objects(
			as_id STRING NOT NULL PRIMARY KEY,
			host STRING NOT NULL,
			kind STRING NOT NULL,
			attributed_to STRING,
			in_reply_to STRING,
			conversation STRING,
			object JSON NOT NULL,
			as_deleted INTEGER NOT NULL DEFAULT 0,
			inserted INTEGER NOT NULL DEFAULT (UNIXEPOCH()),
			updated INTEGER NOT NULL DEFAULT (UNIXEPOCH())
		)`,
		`CREATE INDEX IF NOT EXISTS objectsattributedto ON objects(attributed_to)`,
		`CREATE INDEX IF NOT EXISTS objectsinreplyto ON objects(in_reply_to)`,
		`CREATE INDEX IF NOT EXISTS objectsconversation ON objects(conversation)`,

		`CREATE TABLE IF NOT EXISTS activities(
			as_id STRING NOT NULL PRIMARY KEY,
			actor_as_id STRING NOT NULL,
			kind STRING NOT NULL,
			target_object_id STRING,
			target_activity_id STRING,
			target_actor_as_id STRING,
			activity JSON NOT NULL,
			raw_activity TEXT NOT NULL,
			revoked INTEGER NOT NULL DEFAULT 0,
			delivery_attempts INTEGER NOT NULL DEFAULT 0,
			delivery_last_attempt_at INTEGER,
			inserted INTEGER NOT NULL DEFAULT (UNIXEPOCH())
		)`,
		`CREATE INDEX IF NOT EXISTS activitiesactor ON activities(actor_as_id)`,
		`CREATE INDEX IF NOT EXISTS activitiestargetobject ON activities(target_object_id)`,
		`CREATE INDEX IF NOT EXISTS activitiestargetactivity ON activities(target_activity_id)`,
		`CREATE INDEX IF NOT EXISTS activitiestargetactor ON activities(target_actor_as_id)`,
		`CREATE INDEX IF NOT EXISTS activitieskind ON activities(kind)`,

		`CREATE TABLE IF NOT EXISTS follows(
			as_id STRING NOT NULL PRIMARY KEY,
			follower STRING NOT NULL,
			followed STRING NOT NULL,
			accepted INTEGER,
			inserted INTEGER NOT NULL DEFAULT (UNIXEPOCH()),
			UNIQUE(follower, followed)
		)`,
		`CREATE INDEX IF NOT EXISTS followsfollower ON follows(follower)`,
		`CREATE INDEX IF NOT EXISTS followsfollowed ON follows(followed)`,

		`CREATE TABLE IF NOT EXISTS instances(
			host STRING NOT NULL PRIMARY KEY,
			blocked INTEGER NOT NULL DEFAULT 0,
			inserted INTEGER NOT NULL DEFAULT (UNIXEPOCH()),
			updated INTEGER NOT NULL DEFAULT (UNIXEPOCH())
		)`,

		`CREATE TABLE IF NOT EXISTS unprocessable(
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			source STRING NOT NULL,
			raw_activity TEXT NOT NULL,
			reason STRING NOT NULL,
			inserted INTEGER NOT NULL DEFAULT (UNIXEPOCH())
		)`,

		`CREATE TABLE IF NOT EXISTS deliveries(
			activity_id STRING NOT NULL,
			inbox STRING NOT NULL,
			sent INTEGER NOT NULL DEFAULT (UNIXEPOCH()),
			PRIMARY KEY(activity_id, inbox)
		)`,

		// coalesced_activity reconstructs the delivery- and timeline-ready
		// shape of an activity together with its target and the target's
		// owning actor, plus the aggregate counts a client needs to render
		// it without a second round-trip: how many times it's been
		// announced or liked. Modeled on the "CoalescedActivity" read
		// shape the original persistence layer exposed for the same
		// purpose, translated from joined Postgres tables to a SQLite view
		// over JSON columns.
		`CREATE VIEW IF NOT EXISTS coalesced_activity AS
			SELECT
				a.as_id AS as_id,
				a.actor_as_id AS actor_as_id,
				a.kind AS kind,
				a.activity AS activity,
				a.target_object_id AS target_object_id,
				a.target_activity_id AS target_activity_id,
				a.target_actor_as_id AS target_actor_as_id,
				a.revoked AS revoked,
				o.object AS target_object,
				o.as_deleted AS target_object_deleted,
				ta.actor AS target_actor,
				(SELECT COUNT(*) FROM activities ann WHERE ann.kind = 'Announce' AND (ann.target_activity_id = a.as_id OR ann.target_object_id = a.as_id) AND ann.revoked = 0) AS announcers_count,
				(SELECT COUNT(*) FROM activities lk WHERE lk.kind = 'Like' AND (lk.target_activity_id = a.as_id OR lk.target_object_id = a.as_id) AND lk.revoked = 0) AS likers_count
			FROM activities a
			LEFT JOIN objects o ON o.as_id = a.target_object_id
			LEFT JOIN actors ta ON ta.as_id = a.target_actor_as_id`,
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	return nil
}
