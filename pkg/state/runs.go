// SPDX-License-Identifier: AGPL-3.0-or-later

package state

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RunStatus is the outcome of executing a single plan step.
type RunStatus string

const (
	RunStatusPending   RunStatus = "PENDING"
	RunStatusRunning   RunStatus = "RUNNING"
	RunStatusSuccess   RunStatus = "SUCCESS"
	RunStatusFailed    RunStatus = "FAILED"
	RunStatusCancelled RunStatus = "CANCELLED"
)

// Run is the outcome record for one executed plan step. Immutable once
// terminal (SUCCESS, FAILED, CANCELLED).
type Run struct {
	RunID        string
	PlanID       string
	StepID       string
	ModelName    string
	Status       RunStatus
	StartedAt    time.Time
	FinishedAt   *time.Time
	InputStart   *string
	InputEnd     *string
	ErrorMessage string
	CostUSD      float64
	RetryCount   int
}

// RunRepository persists Run records.
type RunRepository struct {
	q        Querier
	tenantID string
}

func NewRunRepository(q Querier, tenantID string) *RunRepository {
	return &RunRepository{q: q, tenantID: tenantID}
}

// HasSuccess reports whether a SUCCESS run already exists for
// (plan_id, step_id) — the orchestrator's per-step idempotency check.
func (r *RunRepository) HasSuccess(ctx context.Context, planID, stepID string) (bool, error) {
	var count int
	err := r.q.QueryRow(ctx, `
		SELECT COUNT(*) FROM runs
		WHERE tenant_id = $1 AND plan_id = $2 AND step_id = $3 AND status = $4
	`, r.tenantID, planID, stepID, RunStatusSuccess).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("state: checking run idempotency for step %s: %w", stepID, err)
	}
	return count > 0, nil
}

// Record persists run, generating a RunID if unset.
func (r *RunRepository) Record(ctx context.Context, run *Run) error {
	if run.RunID == "" {
		run.RunID = uuid.NewString()
	}
	_, err := r.q.Exec(ctx, `
		INSERT INTO runs (run_id, tenant_id, plan_id, step_id, model_name, status, started_at, finished_at,
			input_start, input_end, error_message, cost_usd, retry_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (run_id) DO UPDATE SET
			status = EXCLUDED.status,
			finished_at = EXCLUDED.finished_at,
			error_message = EXCLUDED.error_message,
			cost_usd = EXCLUDED.cost_usd
	`, run.RunID, r.tenantID, run.PlanID, run.StepID, run.ModelName, run.Status, run.StartedAt, run.FinishedAt,
		run.InputStart, run.InputEnd, run.ErrorMessage, run.CostUSD, run.RetryCount)
	if err != nil {
		return fmt.Errorf("state: recording run for step %s: %w", run.StepID, err)
	}
	return nil
}

// ListByPlan returns every run recorded for a plan, in execution order.
func (r *RunRepository) ListByPlan(ctx context.Context, planID string) ([]Run, error) {
	rows, err := r.q.Query(ctx, `
		SELECT run_id, plan_id, step_id, model_name, status, started_at, finished_at,
			input_start, input_end, error_message, cost_usd, retry_count
		FROM runs
		WHERE tenant_id = $1 AND plan_id = $2
		ORDER BY started_at ASC
	`, r.tenantID, planID)
	if err != nil {
		return nil, fmt.Errorf("state: listing runs for plan %s: %w", planID, err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var run Run
		if err := rows.Scan(&run.RunID, &run.PlanID, &run.StepID, &run.ModelName, &run.Status, &run.StartedAt,
			&run.FinishedAt, &run.InputStart, &run.InputEnd, &run.ErrorMessage, &run.CostUSD, &run.RetryCount); err != nil {
			return nil, fmt.Errorf("state: scanning run row: %w", err)
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// Watermark is the highest contiguous successfully materialized range for
// a model.
type Watermark struct {
	ModelName string
	Start     string
	End       string
	UpdatedAt time.Time
}

// WatermarkRepository persists per-model watermarks.
type WatermarkRepository struct {
	q        Querier
	tenantID string
}

func NewWatermarkRepository(q Querier, tenantID string) *WatermarkRepository {
	return &WatermarkRepository{q: q, tenantID: tenantID}
}

// Get returns the current watermark for a model, or false if none exists.
func (r *WatermarkRepository) Get(ctx context.Context, modelName string) (Watermark, bool, error) {
	var wm Watermark
	wm.ModelName = modelName
	err := r.q.QueryRow(ctx, `
		SELECT range_start, range_end, updated_at FROM watermarks
		WHERE tenant_id = $1 AND model_name = $2
	`, r.tenantID, modelName).Scan(&wm.Start, &wm.End, &wm.UpdatedAt)
	if err != nil {
		if isNoRows(err) {
			return Watermark{}, false, nil
		}
		return Watermark{}, false, fmt.Errorf("state: loading watermark for %s: %w", modelName, err)
	}
	return wm, true, nil
}

// Advance updates the watermark to (start, end). Only ever called after a
// successful INCREMENTAL run.
func (r *WatermarkRepository) Advance(ctx context.Context, modelName, start, end string) error {
	_, err := r.q.Exec(ctx, dialectUpsert(
		"watermarks",
		[]string{"tenant_id", "model_name", "range_start", "range_end", "updated_at"},
		[]string{"tenant_id", "model_name"},
		[]string{"range_start", "range_end", "updated_at"},
	), r.tenantID, modelName, start, end, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("state: advancing watermark for %s: %w", modelName, err)
	}
	return nil
}
