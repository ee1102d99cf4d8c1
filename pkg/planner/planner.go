// SPDX-License-Identifier: AGPL-3.0-or-later

// Package planner turns a structural diff, a dependency DAG, watermarks,
// and historical run stats into a deterministic, totally-ordered Plan.
package planner

import (
	"fmt"
	"sort"
	"time"

	"ironlayer/pkg/dag"
	"ironlayer/pkg/differ"
	"ironlayer/pkg/model"
	"ironlayer/pkg/plan"
)

// DefaultLookbackDays is used when no watermark exists for an incremental
// model and the caller supplies zero for Config.DefaultLookbackDays.
const DefaultLookbackDays = 30

// Watermark is the highest contiguous range successfully materialized for
// a model, per the State Repository's Watermark entity.
type Watermark struct {
	Start string // "YYYY-MM-DD"
	End   string // "YYYY-MM-DD"
}

// RunStats is historical telemetry used to estimate a step's cost, keyed
// by model name.
type RunStats struct {
	EstimatedComputeSeconds float64
	EstimatedCostUSD        float64
}

// Config holds planner-tunable defaults.
type Config struct {
	DefaultLookbackDays int
}

// Input bundles everything the planner needs to produce a Plan.
type Input struct {
	Base    string
	Target  string
	Models  map[string]*model.Definition
	Diff    differ.Result
	Graph   *dag.Graph
	Watermarks map[string]Watermark
	RunStats   map[string]RunStats
	ContractViolations map[string][]model.ContractViolation
	Config  Config
	AsOfDate string // "YYYY-MM-DD"; defaults to today (UTC) when empty
}

// GeneratePlan computes the affected set and builds a deterministic,
// topologically-ordered Plan from it.
func GeneratePlan(in Input) (*plan.Plan, error) {
	lookback := in.Config.DefaultLookbackDays
	if lookback == 0 {
		lookback = DefaultLookbackDays
	}
	asOf := in.AsOfDate
	if asOf == "" {
		asOf = time.Now().UTC().Format("2006-01-02")
	}

	affected := computeAffectedSet(in)
	order := in.Graph.TopologicalOrder()

	orderedAffected := make([]string, 0, len(affected))
	for _, name := range order {
		if _, ok := affected[name]; ok {
			orderedAffected = append(orderedAffected, name)
		}
	}

	stepIDByModel := make(map[string]string, len(orderedAffected))
	steps := make([]plan.Step, 0, len(orderedAffected))

	for _, name := range orderedAffected {
		def, ok := in.Models[name]
		if !ok {
			return nil, fmt.Errorf("planner: model %q is in the affected set but missing from the model map", name)
		}

		runType := plan.RunTypeFullRefresh
		var inputRange *plan.DateRange
		if def.Kind == model.KindIncrementalByTimeRange {
			runType = plan.RunTypeIncremental
			inputRange = computeInputRange(name, in.Watermarks, lookback, asOf)
		}

		depth, _ := in.Graph.Depth(name)

		var dependsOn []string
		for _, up := range in.Graph.Upstream(name) {
			if _, upAffected := affected[up]; upAffected {
				if id, ok := stepIDByModel[up]; ok {
					dependsOn = append(dependsOn, id)
				}
			}
		}
		sort.Strings(dependsOn)
		if dependsOn == nil {
			dependsOn = []string{}
		}

		stats := in.RunStats[name]

		stepID := plan.ComputeStepID(name, in.Base, in.Target, runType, inputRange)
		stepIDByModel[name] = stepID

		violations := in.ContractViolations[name]
		if violations == nil {
			violations = []model.ContractViolation{}
		}

		steps = append(steps, plan.Step{
			StepID:                  stepID,
			Model:                   name,
			RunType:                 runType,
			InputRange:              inputRange,
			DependsOn:               dependsOn,
			ParallelGroup:           depth,
			Reason:                  reasonFor(name, in),
			EstimatedComputeSeconds: stats.EstimatedComputeSeconds,
			EstimatedCostUSD:        stats.EstimatedCostUSD,
			ContractViolations:      violations,
		})
	}

	stepIDs := make([]string, len(steps))
	totalCost := 0.0
	breakingCount := 0
	violationsCount := 0
	for i, s := range steps {
		stepIDs[i] = s.StepID
		totalCost += s.EstimatedCostUSD
		violationsCount += len(s.ContractViolations)
		for _, v := range s.ContractViolations {
			if v.Severity == "error" {
				breakingCount++
			}
		}
	}

	modelsChanged := make([]string, len(orderedAffected))
	copy(modelsChanged, orderedAffected)
	sort.Strings(modelsChanged)

	p := &plan.Plan{
		PlanID:    plan.ComputePlanID(in.Base, in.Target, stepIDs),
		Base:      in.Base,
		Target:    in.Target,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Summary: plan.Summary{
			TotalSteps:                 len(steps),
			EstimatedCostUSD:           totalCost,
			ModelsChanged:              modelsChanged,
			ContractViolationsCount:    violationsCount,
			BreakingContractViolations: breakingCount,
		},
		Steps: steps,
	}
	return p, nil
}

// computeAffectedSet is added ∪ modified ∪ downstream_transitive(added ∪
// modified) ∪ any model carrying a contract violation. Removed models
// never generate steps.
func computeAffectedSet(in Input) map[string]struct{} {
	affected := make(map[string]struct{})
	seed := append([]string(nil), in.Diff.Added...)
	seed = append(seed, in.Diff.Modified...)

	for _, name := range seed {
		affected[name] = struct{}{}
		for _, down := range in.Graph.Downstream(name) {
			affected[down] = struct{}{}
		}
	}
	for name, violations := range in.ContractViolations {
		if len(violations) > 0 {
			affected[name] = struct{}{}
		}
	}
	return affected
}

func reasonFor(name string, in Input) string {
	if len(in.ContractViolations[name]) > 0 {
		return "contract violation"
	}
	for _, a := range in.Diff.Added {
		if a == name {
			return "new model added"
		}
	}
	for _, m := range in.Diff.Modified {
		if m == name {
			return "model SQL changed"
		}
	}
	return "upstream changed"
}

// computeInputRange derives the incremental window for a model: the
// watermark end (or as_of_date - lookback if no watermark) through
// as_of_date. If the derived start would be after end, it is clamped to
// end (a single-day no-op reprocess), never reversed.
func computeInputRange(name string, watermarks map[string]Watermark, lookbackDays int, asOfDate string) *plan.DateRange {
	end, err := time.Parse("2006-01-02", asOfDate)
	if err != nil {
		end = time.Now().UTC()
	}

	var start time.Time
	if wm, ok := watermarks[name]; ok && wm.End != "" {
		if parsed, err := time.Parse("2006-01-02", wm.End); err == nil {
			start = parsed
		}
	}
	if start.IsZero() {
		start = end.AddDate(0, 0, -lookbackDays)
	}
	if start.After(end) {
		start = end
	}

	return &plan.DateRange{
		Start: start.Format("2006-01-02"),
		End:   end.Format("2006-01-02"),
	}
}
