// SPDX-License-Identifier: AGPL-3.0-or-later

package state

import (
	"context"
	"fmt"
)

// BackfillStatus is the lifecycle state of a chunked backfill.
type BackfillStatus string

const (
	BackfillStatusRunning  BackfillStatus = "RUNNING"
	BackfillStatusPaused   BackfillStatus = "PAUSED"
	BackfillStatusComplete BackfillStatus = "COMPLETE"
	BackfillStatusFailed   BackfillStatus = "FAILED"
)

// BackfillCheckpoint tracks progress through a chunked backfill so it can
// be resumed after a crash or an operator-initiated pause.
type BackfillCheckpoint struct {
	BackfillID       string
	ModelName        string
	OverallStart     string
	OverallEnd       string
	ChunkSizeDays    int
	Status           BackfillStatus
	CompletedThrough *string
	TotalChunks      int
	CompletedChunks  int
	ErrorMessage     string
}

// BackfillCheckpointRepository persists BackfillCheckpoint rows.
type BackfillCheckpointRepository struct {
	q        Querier
	tenantID string
}

func NewBackfillCheckpointRepository(q Querier, tenantID string) *BackfillCheckpointRepository {
	return &BackfillCheckpointRepository{q: q, tenantID: tenantID}
}

// Create inserts a new checkpoint row. A second call with the same
// backfill_id (same model+range+chunk_size, since the id is derived from
// them) is a no-op, making backfill initiation idempotent.
func (r *BackfillCheckpointRepository) Create(ctx context.Context, c BackfillCheckpoint) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO backfill_checkpoints (backfill_id, tenant_id, model_name, overall_start, overall_end,
			chunk_size_days, status, total_chunks, completed_chunks)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (backfill_id) DO NOTHING
	`, c.BackfillID, r.tenantID, c.ModelName, c.OverallStart, c.OverallEnd, c.ChunkSizeDays, c.Status, c.TotalChunks, c.CompletedChunks)
	if err != nil {
		return fmt.Errorf("state: creating backfill checkpoint %s: %w", c.BackfillID, err)
	}
	return nil
}

// Get loads a checkpoint by id.
func (r *BackfillCheckpointRepository) Get(ctx context.Context, backfillID string) (*BackfillCheckpoint, error) {
	var c BackfillCheckpoint
	c.BackfillID = backfillID
	err := r.q.QueryRow(ctx, `
		SELECT model_name, overall_start, overall_end, chunk_size_days, status, completed_through,
			total_chunks, completed_chunks, COALESCE(error_message, '')
		FROM backfill_checkpoints
		WHERE tenant_id = $1 AND backfill_id = $2
	`, r.tenantID, backfillID).Scan(&c.ModelName, &c.OverallStart, &c.OverallEnd, &c.ChunkSizeDays, &c.Status,
		&c.CompletedThrough, &c.TotalChunks, &c.CompletedChunks, &c.ErrorMessage)
	if err != nil {
		return nil, wrapNotFound(err, "backfill checkpoint "+backfillID)
	}
	return &c, nil
}

// AdvanceChunk records that one more chunk completed, moving
// completed_through forward. Called after each chunk's run succeeds.
func (r *BackfillCheckpointRepository) AdvanceChunk(ctx context.Context, backfillID, completedThrough string) error {
	_, err := r.q.Exec(ctx, `
		UPDATE backfill_checkpoints
		SET completed_through = $3, completed_chunks = completed_chunks + 1
		WHERE tenant_id = $1 AND backfill_id = $2
	`, r.tenantID, backfillID, completedThrough)
	if err != nil {
		return fmt.Errorf("state: advancing backfill checkpoint %s: %w", backfillID, err)
	}
	return nil
}

// SetStatus updates the checkpoint's lifecycle status, optionally with an
// error message (only meaningful for FAILED).
func (r *BackfillCheckpointRepository) SetStatus(ctx context.Context, backfillID string, status BackfillStatus, errMsg string) error {
	_, err := r.q.Exec(ctx, `
		UPDATE backfill_checkpoints SET status = $3, error_message = NULLIF($4, '')
		WHERE tenant_id = $1 AND backfill_id = $2
	`, r.tenantID, backfillID, status, errMsg)
	if err != nil {
		return fmt.Errorf("state: updating backfill checkpoint status %s: %w", backfillID, err)
	}
	return nil
}

// BackfillChunkStatus is the outcome of one executed chunk.
type BackfillChunkStatus string

const (
	BackfillChunkSuccess BackfillChunkStatus = "SUCCESS"
	BackfillChunkFailed  BackfillChunkStatus = "FAILED"
)

// BackfillChunkAudit is one row per executed chunk, independent of the
// checkpoint's running summary — it is the durable, per-chunk audit trail.
type BackfillChunkAudit struct {
	BackfillID      string
	ChunkStart      string
	ChunkEnd        string
	Status          BackfillChunkStatus
	RunID           *string
	ErrorMessage    string
	DurationSeconds *float64
}

// BackfillAuditRepository persists BackfillChunkAudit rows.
type BackfillAuditRepository struct {
	q        Querier
	tenantID string
}

func NewBackfillAuditRepository(q Querier, tenantID string) *BackfillAuditRepository {
	return &BackfillAuditRepository{q: q, tenantID: tenantID}
}

// Record inserts one chunk-execution audit row. Never updated in place:
// a retried chunk gets its own row, so the audit trail shows every attempt.
func (r *BackfillAuditRepository) Record(ctx context.Context, a BackfillChunkAudit) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO backfill_chunk_audit (tenant_id, backfill_id, chunk_start, chunk_end, status, run_id,
			error_message, duration_seconds, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, now())
	`, r.tenantID, a.BackfillID, a.ChunkStart, a.ChunkEnd, a.Status, a.RunID, a.ErrorMessage, a.DurationSeconds)
	if err != nil {
		return fmt.Errorf("state: recording backfill chunk audit for %s: %w", a.BackfillID, err)
	}
	return nil
}

// ListByBackfill returns every chunk audit row for a backfill, in
// execution order.
func (r *BackfillAuditRepository) ListByBackfill(ctx context.Context, backfillID string) ([]BackfillChunkAudit, error) {
	rows, err := r.q.Query(ctx, `
		SELECT backfill_id, chunk_start, chunk_end, status, run_id, COALESCE(error_message, ''), duration_seconds
		FROM backfill_chunk_audit
		WHERE tenant_id = $1 AND backfill_id = $2
		ORDER BY created_at ASC
	`, r.tenantID, backfillID)
	if err != nil {
		return nil, fmt.Errorf("state: listing backfill chunk audit for %s: %w", backfillID, err)
	}
	defer rows.Close()

	var out []BackfillChunkAudit
	for rows.Next() {
		var a BackfillChunkAudit
		if err := rows.Scan(&a.BackfillID, &a.ChunkStart, &a.ChunkEnd, &a.Status, &a.RunID, &a.ErrorMessage, &a.DurationSeconds); err != nil {
			return nil, fmt.Errorf("state: scanning backfill chunk audit row: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
