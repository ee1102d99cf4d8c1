// SPDX-License-Identifier: AGPL-3.0-or-later

package state

import (
	"context"
	"fmt"
	"time"
)

// ReconciliationStatus mirrors a model's expected vs. observed state.
type ReconciliationStatus string

// DiscrepancyType names why expected and warehouse status diverged.
type DiscrepancyType string

const (
	DiscrepancyMissingRun     DiscrepancyType = "missing_run"
	DiscrepancyExtraData      DiscrepancyType = "extra_data"
	DiscrepancyRowCountDrift  DiscrepancyType = "row_count_drift"
	DiscrepancySchemaMismatch DiscrepancyType = "schema_mismatch"
)

// ReconciliationCheck is one comparison between what the control plane
// believes a model's state is and what the warehouse actually reports.
type ReconciliationCheck struct {
	CheckID         string
	ModelName       string
	ExpectedStatus  ReconciliationStatus
	WarehouseStatus ReconciliationStatus
	DiscrepancyType *DiscrepancyType
	Resolved        bool
	ResolvedBy      string
	ResolvedNote    string
	CreatedAt       time.Time
}

// ReconciliationRepository persists ReconciliationCheck rows and the
// cron-style schedules that trigger reconciliation sweeps.
type ReconciliationRepository struct {
	q        Querier
	tenantID string
}

func NewReconciliationRepository(q Querier, tenantID string) *ReconciliationRepository {
	return &ReconciliationRepository{q: q, tenantID: tenantID}
}

// Record inserts a new reconciliation check result. A check whose expected
// and warehouse statuses match is inserted already resolved; a mismatch is
// inserted unresolved.
func (r *ReconciliationRepository) Record(ctx context.Context, c ReconciliationCheck) (string, error) {
	var checkID string
	err := r.q.QueryRow(ctx, `
		INSERT INTO reconciliation_checks (tenant_id, model_name, expected_status, warehouse_status,
			discrepancy_type, resolved, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		RETURNING check_id
	`, r.tenantID, c.ModelName, c.ExpectedStatus, c.WarehouseStatus, c.DiscrepancyType,
		c.ExpectedStatus == c.WarehouseStatus).Scan(&checkID)
	if err != nil {
		return "", fmt.Errorf("state: recording reconciliation check for %s: %w", c.ModelName, err)
	}
	return checkID, nil
}

// GetUnresolved returns up to limit unresolved checks, oldest first, the
// queue an operator or the reconciliation service works through.
func (r *ReconciliationRepository) GetUnresolved(ctx context.Context, limit int) ([]ReconciliationCheck, error) {
	rows, err := r.q.Query(ctx, `
		SELECT check_id, model_name, expected_status, warehouse_status, discrepancy_type, resolved, created_at
		FROM reconciliation_checks
		WHERE tenant_id = $1 AND resolved = false
		ORDER BY created_at ASC
		LIMIT $2
	`, r.tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("state: querying unresolved reconciliation checks: %w", err)
	}
	defer rows.Close()

	var out []ReconciliationCheck
	for rows.Next() {
		var c ReconciliationCheck
		if err := rows.Scan(&c.CheckID, &c.ModelName, &c.ExpectedStatus, &c.WarehouseStatus, &c.DiscrepancyType, &c.Resolved, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("state: scanning reconciliation check row: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Resolve marks a check resolved, recording who resolved it and why.
func (r *ReconciliationRepository) Resolve(ctx context.Context, checkID, resolvedBy, note string) error {
	_, err := r.q.Exec(ctx, `
		UPDATE reconciliation_checks SET resolved = true, resolved_by = $3, resolved_note = $4
		WHERE tenant_id = $1 AND check_id = $2
	`, r.tenantID, checkID, resolvedBy, note)
	if err != nil {
		return fmt.Errorf("state: resolving reconciliation check %s: %w", checkID, err)
	}
	return nil
}

// ReconciliationSchedule is a named cron-driven reconciliation sweep over
// a set of models (empty Models means "all models for this tenant").
type ReconciliationSchedule struct {
	ScheduleID string
	Name       string
	CronExpr   string
	Models     []string
	Enabled    bool
}

// ListSchedules returns every reconciliation schedule for this tenant.
func (r *ReconciliationRepository) ListSchedules(ctx context.Context) ([]ReconciliationSchedule, error) {
	rows, err := r.q.Query(ctx, `
		SELECT schedule_id, name, cron_expr, models, enabled
		FROM reconciliation_schedules
		WHERE tenant_id = $1
		ORDER BY name ASC
	`, r.tenantID)
	if err != nil {
		return nil, fmt.Errorf("state: listing reconciliation schedules: %w", err)
	}
	defer rows.Close()

	var out []ReconciliationSchedule
	for rows.Next() {
		var s ReconciliationSchedule
		if err := rows.Scan(&s.ScheduleID, &s.Name, &s.CronExpr, &s.Models, &s.Enabled); err != nil {
			return nil, fmt.Errorf("state: scanning reconciliation schedule row: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// UpsertSchedule creates or replaces a named reconciliation schedule.
func (r *ReconciliationRepository) UpsertSchedule(ctx context.Context, s ReconciliationSchedule) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO reconciliation_schedules (tenant_id, name, cron_expr, models, enabled)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (tenant_id, name) DO UPDATE SET
			cron_expr = EXCLUDED.cron_expr,
			models = EXCLUDED.models,
			enabled = EXCLUDED.enabled
	`, r.tenantID, s.Name, s.CronExpr, s.Models, s.Enabled)
	if err != nil {
		return fmt.Errorf("state: upserting reconciliation schedule %q: %w", s.Name, err)
	}
	return nil
}
