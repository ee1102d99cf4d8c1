// SPDX-License-Identifier: AGPL-3.0-or-later

// Package plan defines the Plan/PlanStep wire types and their canonical,
// deterministically-identified JSON serialization.
package plan

import "ironlayer/pkg/model"

// RunType is the execution strategy for a single plan step.
type RunType string

const (
	RunTypeFullRefresh RunType = "FULL_REFRESH"
	RunTypeIncremental RunType = "INCREMENTAL"
)

// DateRange is an inclusive [Start, End] date range, "YYYY-MM-DD".
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Step is one unit of planned work against a single model.
type Step struct {
	StepID                  string                    `json:"step_id"`
	Model                   string                    `json:"model"`
	RunType                 RunType                   `json:"run_type"`
	InputRange              *DateRange                `json:"input_range,omitempty"`
	DependsOn               []string                  `json:"depends_on"`
	ParallelGroup           int                       `json:"parallel_group"`
	Reason                  string                    `json:"reason"`
	EstimatedComputeSeconds float64                   `json:"estimated_compute_seconds"`
	EstimatedCostUSD        float64                   `json:"estimated_cost_usd"`
	ContractViolations      []model.ContractViolation `json:"contract_violations"`
}

// Summary aggregates plan-level statistics.
type Summary struct {
	TotalSteps                 int      `json:"total_steps"`
	EstimatedCostUSD           float64  `json:"estimated_cost_usd"`
	ModelsChanged              []string `json:"models_changed"`
	ContractViolationsCount    int      `json:"contract_violations_count,omitempty"`
	BreakingContractViolations int      `json:"breaking_contract_violations,omitempty"`
}

// Plan is the complete, deterministically-identified instruction set to
// move a base snapshot to a target snapshot.
type Plan struct {
	PlanID    string  `json:"plan_id"`
	Base      string  `json:"base"`
	Target    string  `json:"target"`
	CreatedAt string  `json:"created_at"`
	Summary   Summary `json:"summary"`
	Steps     []Step  `json:"steps"`
}
