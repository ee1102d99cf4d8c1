// SPDX-License-Identifier: AGPL-3.0-or-later

package executor

import (
	"context"
	"fmt"
	"time"
)

// Warehouse executes a step against a production compute cluster. This
// module ships only the interface boundary: wiring a real cluster client
// (Databricks jobs API, Snowflake warehouse, etc.) is out of scope, so
// ExecuteStep always reports failure with a clear "not configured"
// message rather than silently succeeding.
type Warehouse struct {
	clusterSize string
}

func NewWarehouse(clusterSize string) *Warehouse {
	return &Warehouse{clusterSize: clusterSize}
}

func (w *Warehouse) ID() string { return "warehouse" }

func (w *Warehouse) ExecuteStep(ctx context.Context, step Step) (RunResult, error) {
	startedAt := time.Now().UTC()
	return RunResult{
		Status:       RunStatusFailed,
		StartedAt:    startedAt,
		FinishedAt:   time.Now().UTC(),
		ErrorMessage: fmt.Sprintf("warehouse executor: no cluster backend configured for cluster size %q", w.clusterSize),
	}, nil
}
