// SPDX-License-Identifier: AGPL-3.0-or-later

// Package backfill drives historical reprocessing of a model's date
// range: a single-range backfill delegates straight to the orchestrator's
// step execution, while a chunked backfill splits the range into
// day-aligned chunks, checkpoints progress after each, and can resume
// from the last completed chunk.
package backfill

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"ironlayer/pkg/cperrors"
	"ironlayer/pkg/logging"
	"ironlayer/pkg/orchestrator"
	"ironlayer/pkg/plan"
	"ironlayer/pkg/state"
)

const dateLayout = "2006-01-02"

// StepExecutor is the orchestrator capability the engine needs: execute
// one synthetic step and report its run.
type StepExecutor interface {
	ExecuteStep(ctx context.Context, planID string, step plan.Step, opts orchestrator.Options) state.Run
}

// CheckpointStore is the subset of *state.BackfillCheckpointRepository the
// engine needs.
type CheckpointStore interface {
	Create(ctx context.Context, c state.BackfillCheckpoint) error
	Get(ctx context.Context, backfillID string) (*state.BackfillCheckpoint, error)
	AdvanceChunk(ctx context.Context, backfillID, completedThrough string) error
	SetStatus(ctx context.Context, backfillID string, status state.BackfillStatus, errMsg string) error
}

// AuditStore is the subset of *state.BackfillAuditRepository the engine
// needs.
type AuditStore interface {
	Record(ctx context.Context, a state.BackfillChunkAudit) error
	ListByBackfill(ctx context.Context, backfillID string) ([]state.BackfillChunkAudit, error)
}

// Engine runs single-range and chunked backfills.
type Engine struct {
	log         logging.Logger
	exec        StepExecutor
	checkpoints CheckpointStore
	audit       AuditStore
}

func NewEngine(log logging.Logger, exec StepExecutor, checkpoints CheckpointStore, audit AuditStore) *Engine {
	return &Engine{log: log, exec: exec, checkpoints: checkpoints, audit: audit}
}

// SingleRange backfills one date range for a model as a single INCREMENTAL
// step, delegating directly to the orchestrator's step execution path.
func (e *Engine) SingleRange(ctx context.Context, modelName, start, end string, opts orchestrator.Options) (state.Run, error) {
	if err := validateRange(start, end); err != nil {
		return state.Run{}, err
	}
	planID := fmt.Sprintf("backfill-single-%s-%s-%s", modelName, start, end)
	step := plan.Step{
		StepID:     planID,
		Model:      modelName,
		RunType:    plan.RunTypeIncremental,
		InputRange: &plan.DateRange{Start: start, End: end},
	}
	run := e.exec.ExecuteStep(ctx, planID, step, opts)
	return run, nil
}

// ComputeBackfillID derives the deterministic id for a chunked backfill so
// repeated invocations of the same command operate on the same checkpoint.
func ComputeBackfillID(modelName, start, end string, chunkSizeDays int) string {
	h := sha256.New()
	fmt.Fprintf(h, "chunked_backfill%s%s%s%d", modelName, start, end, chunkSizeDays)
	return hex.EncodeToString(h.Sum(nil))
}

// Chunk is one contiguous, day-aligned slice of a backfill range.
type Chunk struct {
	Start string
	End   string
}

// SplitChunks splits [start, end] into contiguous chunks of at most
// chunkSizeDays each; the final chunk ends exactly on end. Chunks never
// overlap and never gap.
func SplitChunks(start, end string, chunkSizeDays int) ([]Chunk, error) {
	if chunkSizeDays < 1 {
		return nil, fmt.Errorf("%w: chunk_size_days must be >= 1, got %d", cperrors.ErrValidation, chunkSizeDays)
	}
	startT, endT, err := parseRange(start, end)
	if err != nil {
		return nil, err
	}

	var chunks []Chunk
	cursor := startT
	for !cursor.After(endT) {
		chunkEnd := cursor.AddDate(0, 0, chunkSizeDays-1)
		if chunkEnd.After(endT) {
			chunkEnd = endT
		}
		chunks = append(chunks, Chunk{Start: cursor.Format(dateLayout), End: chunkEnd.Format(dateLayout)})
		cursor = chunkEnd.AddDate(0, 0, 1)
	}
	return chunks, nil
}

// Chunked runs a full chunked backfill for [start, end], creating a fresh
// checkpoint (idempotently, by deterministic id) and executing each chunk
// in order. It stops at the first chunk failure, recording the checkpoint
// as FAILED; callers resume with Resume.
func (e *Engine) Chunked(ctx context.Context, modelName, start, end string, chunkSizeDays int, opts orchestrator.Options) (*state.BackfillCheckpoint, error) {
	chunks, err := SplitChunks(start, end, chunkSizeDays)
	if err != nil {
		return nil, err
	}

	backfillID := ComputeBackfillID(modelName, start, end, chunkSizeDays)
	checkpoint := state.BackfillCheckpoint{
		BackfillID:    backfillID,
		ModelName:     modelName,
		OverallStart:  start,
		OverallEnd:    end,
		ChunkSizeDays: chunkSizeDays,
		Status:        state.BackfillStatusRunning,
		TotalChunks:   len(chunks),
	}
	if err := e.checkpoints.Create(ctx, checkpoint); err != nil {
		return nil, fmt.Errorf("backfill: creating checkpoint %s: %w", backfillID, err)
	}

	return e.runChunks(ctx, backfillID, modelName, chunks, opts)
}

// Resume continues a FAILED or RUNNING chunked backfill from the last
// completed chunk. If the backfill already reached overall_end, it marks
// the checkpoint COMPLETE immediately (idempotent fast path) and returns.
func (e *Engine) Resume(ctx context.Context, backfillID string, opts orchestrator.Options) (*state.BackfillCheckpoint, error) {
	checkpoint, err := e.checkpoints.Get(ctx, backfillID)
	if err != nil {
		return nil, err
	}
	if checkpoint.Status == state.BackfillStatusComplete {
		return nil, fmt.Errorf("%w: backfill %s already completed", cperrors.ErrConflict, backfillID)
	}

	resumeStart := checkpoint.OverallStart
	if checkpoint.CompletedThrough != nil {
		completedThrough, err := time.Parse(dateLayout, *checkpoint.CompletedThrough)
		if err != nil {
			return nil, fmt.Errorf("%w: backfill %s has malformed completed_through %q", cperrors.ErrIntegrity, backfillID, *checkpoint.CompletedThrough)
		}
		resumeStart = completedThrough.AddDate(0, 0, 1).Format(dateLayout)
	}

	resumeStartT, endT, err := parseRange(resumeStart, checkpoint.OverallEnd)
	if err != nil {
		return nil, err
	}
	if resumeStartT.After(endT) {
		if err := e.checkpoints.SetStatus(ctx, backfillID, state.BackfillStatusComplete, ""); err != nil {
			return nil, err
		}
		checkpoint.Status = state.BackfillStatusComplete
		return checkpoint, nil
	}

	chunks, err := SplitChunks(resumeStart, checkpoint.OverallEnd, checkpoint.ChunkSizeDays)
	if err != nil {
		return nil, err
	}
	if wantRemaining := checkpoint.TotalChunks - checkpoint.CompletedChunks; len(chunks) != wantRemaining {
		return nil, fmt.Errorf("%w: backfill %s has %d remaining chunks on disk but %d total minus %d completed implies %d",
			cperrors.ErrIntegrity, backfillID, len(chunks), checkpoint.TotalChunks, checkpoint.CompletedChunks, wantRemaining)
	}
	if err := e.checkpoints.SetStatus(ctx, backfillID, state.BackfillStatusRunning, ""); err != nil {
		return nil, err
	}
	return e.runChunks(ctx, backfillID, checkpoint.ModelName, chunks, opts)
}

func (e *Engine) runChunks(ctx context.Context, backfillID, modelName string, chunks []Chunk, opts orchestrator.Options) (*state.BackfillCheckpoint, error) {
	for _, chunk := range chunks {
		chunkStartedAt := time.Now().UTC()
		step := plan.Step{
			StepID:     fmt.Sprintf("%s-%s-%s", backfillID, chunk.Start, chunk.End),
			Model:      modelName,
			RunType:    plan.RunTypeIncremental,
			InputRange: &plan.DateRange{Start: chunk.Start, End: chunk.End},
		}
		run := e.exec.ExecuteStep(ctx, backfillID, step, opts)
		duration := time.Since(chunkStartedAt).Seconds()

		if run.Status != state.RunStatusSuccess {
			e.audit.Record(ctx, state.BackfillChunkAudit{
				BackfillID: backfillID, ChunkStart: chunk.Start, ChunkEnd: chunk.End,
				Status: state.BackfillChunkFailed, RunID: &run.RunID, ErrorMessage: run.ErrorMessage,
				DurationSeconds: &duration,
			})
			if err := e.checkpoints.SetStatus(ctx, backfillID, state.BackfillStatusFailed, run.ErrorMessage); err != nil {
				e.log.Error("updating checkpoint status after chunk failure", logging.NewField("backfill_id", backfillID), logging.NewField("error", err.Error()))
			}
			return e.checkpoints.Get(ctx, backfillID)
		}

		if err := e.audit.Record(ctx, state.BackfillChunkAudit{
			BackfillID: backfillID, ChunkStart: chunk.Start, ChunkEnd: chunk.End,
			Status: state.BackfillChunkSuccess, RunID: &run.RunID, DurationSeconds: &duration,
		}); err != nil {
			e.log.Warn("recording chunk audit row", logging.NewField("backfill_id", backfillID), logging.NewField("error", err.Error()))
		}
		if err := e.checkpoints.AdvanceChunk(ctx, backfillID, chunk.End); err != nil {
			e.log.Warn("advancing checkpoint", logging.NewField("backfill_id", backfillID), logging.NewField("error", err.Error()))
		}
	}

	if err := e.checkpoints.SetStatus(ctx, backfillID, state.BackfillStatusComplete, ""); err != nil {
		return nil, fmt.Errorf("backfill: marking checkpoint %s complete: %w", backfillID, err)
	}
	return e.checkpoints.Get(ctx, backfillID)
}

// Status returns the checkpoint and its ordered chunk audit history.
func (e *Engine) Status(ctx context.Context, backfillID string) (*state.BackfillCheckpoint, []state.BackfillChunkAudit, error) {
	checkpoint, err := e.checkpoints.Get(ctx, backfillID)
	if err != nil {
		return nil, nil, err
	}
	history, err := e.audit.ListByBackfill(ctx, backfillID)
	if err != nil {
		return nil, nil, err
	}
	return checkpoint, history, nil
}

func validateRange(start, end string) error {
	_, _, err := parseRange(start, end)
	return err
}

func parseRange(start, end string) (time.Time, time.Time, error) {
	startT, err := time.Parse(dateLayout, start)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: malformed start date %q", cperrors.ErrValidation, start)
	}
	endT, err := time.Parse(dateLayout, end)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: malformed end date %q", cperrors.ErrValidation, end)
	}
	if startT.After(endT) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: start %q is after end %q", cperrors.ErrValidation, start, end)
	}
	return startT, endT, nil
}
