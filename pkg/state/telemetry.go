// SPDX-License-Identifier: AGPL-3.0-or-later

package state

import (
	"context"
	"fmt"
)

// Telemetry is the resource-usage record captured for one run.
type Telemetry struct {
	RunID          string
	RuntimeSeconds float64
	ShuffleBytes   int64
	InputRows      int64
	OutputRows     int64
	PartitionCount int
}

// TelemetryRepository persists per-run resource telemetry, the feed the
// advisory layer trains cost/runtime predictions from.
type TelemetryRepository struct {
	q        Querier
	tenantID string
}

func NewTelemetryRepository(q Querier, tenantID string) *TelemetryRepository {
	return &TelemetryRepository{q: q, tenantID: tenantID}
}

// Record persists telemetry for a run. One row per run; a second call for
// the same run_id overwrites rather than accumulates, since the executor
// reports a single final snapshot rather than incremental deltas.
func (r *TelemetryRepository) Record(ctx context.Context, t Telemetry) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO run_telemetry (tenant_id, run_id, runtime_seconds, shuffle_bytes, input_rows, output_rows, partition_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (tenant_id, run_id) DO UPDATE SET
			runtime_seconds = EXCLUDED.runtime_seconds,
			shuffle_bytes = EXCLUDED.shuffle_bytes,
			input_rows = EXCLUDED.input_rows,
			output_rows = EXCLUDED.output_rows,
			partition_count = EXCLUDED.partition_count
	`, r.tenantID, t.RunID, t.RuntimeSeconds, t.ShuffleBytes, t.InputRows, t.OutputRows, t.PartitionCount)
	if err != nil {
		return fmt.Errorf("state: recording telemetry for run %s: %w", t.RunID, err)
	}
	return nil
}

// Get returns telemetry for a run, if any was recorded.
func (r *TelemetryRepository) Get(ctx context.Context, runID string) (Telemetry, bool, error) {
	var t Telemetry
	t.RunID = runID
	err := r.q.QueryRow(ctx, `
		SELECT runtime_seconds, shuffle_bytes, input_rows, output_rows, partition_count
		FROM run_telemetry
		WHERE tenant_id = $1 AND run_id = $2
	`, r.tenantID, runID).Scan(&t.RuntimeSeconds, &t.ShuffleBytes, &t.InputRows, &t.OutputRows, &t.PartitionCount)
	if err != nil {
		if isNoRows(err) {
			return Telemetry{}, false, nil
		}
		return Telemetry{}, false, fmt.Errorf("state: loading telemetry for run %s: %w", runID, err)
	}
	return t, true, nil
}
