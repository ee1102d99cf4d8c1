// SPDX-License-Identifier: AGPL-3.0-or-later

// Package executor is the compute-backend contract the orchestrator
// drives a plan step through: Executor is the interface every backend
// implements; Local and Warehouse are the two concrete backends this
// module ships.
package executor

import (
	"context"
	"time"
)

// Step is the executable unit the orchestrator hands to an Executor: one
// materialization of one model over one input range.
type Step struct {
	ModelName   string
	SQL         string
	Parameters  map[string]any
	InputStart  *string
	InputEnd    *string
	ClusterSize string
}

// RunStatus mirrors state.RunStatus without importing the state package,
// keeping executor free of any persistence dependency.
type RunStatus string

const (
	RunStatusSuccess RunStatus = "SUCCESS"
	RunStatusFailed  RunStatus = "FAILED"
)

// RunResult is what an Executor reports back after attempting a step.
type RunResult struct {
	Status        RunStatus
	StartedAt     time.Time
	FinishedAt    time.Time
	ErrorMessage  string
	ExternalRunID string
}

// Executor runs one plan step against a compute backend.
type Executor interface {
	// ID returns the unique identifier for this backend (e.g. "local",
	// "warehouse").
	ID() string

	// ExecuteStep runs step and reports its outcome. ExecuteStep never
	// returns a non-nil error for a step that ran and failed — that
	// outcome is reported via RunResult.Status == RunStatusFailed. A
	// non-nil error means the executor itself could not attempt the
	// step (bad configuration, unreachable backend).
	ExecuteStep(ctx context.Context, step Step) (RunResult, error)
}
