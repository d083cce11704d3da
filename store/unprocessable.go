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

package store

import (
	"context"
	"fmt"
)

// RecordUnprocessable archives a payload the engine rejected from a known
// sender: an inbox payload that did not decode as a known activity kind,
// an inbox activity nested past the depth limit, or an outbox payload of
// an unsupported type. Kept around long enough for an operator to
// inspect, then swept by [GarbageCollect].
func RecordUnprocessable(ctx context.Context, tx Execer, source, rawActivity, reason string) error {
	_, err := tx.ExecContext(
		ctx,
		`INSERT INTO unprocessable(source, raw_activity, reason) VALUES(?, ?, ?)`,
		source, rawActivity, reason,
	)
	if err != nil {
		return fmt.Errorf("failed to record unprocessable activity from %s: %w", source, err)
	}

	return nil
}
