// SPDX-License-Identifier: AGPL-3.0-or-later

package orchestrator_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ironlayer/pkg/authz"
	"ironlayer/pkg/cperrors"
	"ironlayer/pkg/executor"
	"ironlayer/pkg/logging"
	"ironlayer/pkg/orchestrator"
	"ironlayer/pkg/plan"
	"ironlayer/pkg/state"
)

type fakeRuns struct {
	successFor map[string]bool
	recorded   []state.Run
}

func (f *fakeRuns) HasSuccess(ctx context.Context, planID, stepID string) (bool, error) {
	return f.successFor[planID+"/"+stepID], nil
}

func (f *fakeRuns) Record(ctx context.Context, run *state.Run) error {
	f.recorded = append(f.recorded, *run)
	return nil
}

type fakeWatermarks struct {
	advanced map[string][2]string
}

func (f *fakeWatermarks) Advance(ctx context.Context, modelName, start, end string) error {
	if f.advanced == nil {
		f.advanced = map[string][2]string{}
	}
	f.advanced[modelName] = [2]string{start, end}
	return nil
}

type fakePlans struct {
	plan          *plan.Plan
	approvalCount int
}

func (f *fakePlans) Get(ctx context.Context, planID string) (*plan.Plan, error) {
	return f.plan, nil
}

func (f *fakePlans) ApprovalCount(ctx context.Context, planID string) (int, error) {
	return f.approvalCount, nil
}

type fakeTelemetry struct{ recorded []state.Telemetry }

func (f *fakeTelemetry) Record(ctx context.Context, t state.Telemetry) error {
	f.recorded = append(f.recorded, t)
	return nil
}

type fakeLocks struct {
	acquireResult bool
	acquireErr    error
	released      []string
}

func (f *fakeLocks) Acquire(ctx context.Context, model, rangeStart, rangeEnd, owner string, ttlSeconds int) (bool, error) {
	return f.acquireResult, f.acquireErr
}

func (f *fakeLocks) Release(ctx context.Context, model, rangeStart, rangeEnd string) error {
	f.released = append(f.released, model)
	return nil
}

type fakeModels struct{ sql map[string]string }

func (f *fakeModels) SQLFor(name string) (string, error) { return f.sql[name], nil }

type fakeExecutor struct {
	status executor.RunStatus
	errMsg string
}

func (f *fakeExecutor) ID() string { return "fake" }

func (f *fakeExecutor) ExecuteStep(ctx context.Context, step executor.Step) (executor.RunResult, error) {
	return executor.RunResult{Status: f.status, ErrorMessage: f.errMsg}, nil
}

func samplePlan() *plan.Plan {
	return &plan.Plan{
		PlanID: "plan-1",
		Steps: []plan.Step{
			{
				StepID:     "step-1",
				Model:      "orders",
				RunType:    plan.RunTypeIncremental,
				InputRange: &plan.DateRange{Start: "2026-01-01", End: "2026-01-02"},
			},
		},
	}
}

func newOrchestrator(runs orchestrator.RunStore, watermarks orchestrator.WatermarkStore, plans orchestrator.PlanStore,
	telemetry orchestrator.TelemetryStore, locks orchestrator.LockManager, exec executor.Executor) *orchestrator.Orchestrator {
	return orchestrator.New(
		logging.NewNop(), runs, watermarks, plans, telemetry, locks,
		&fakeModels{sql: map[string]string{"orders": "SELECT 1"}},
		exec, exec, nil, orchestrator.ClusterRates{"small": 0.01},
	)
}

func TestApplyPlanSucceedsAndAdvancesWatermark(t *testing.T) {
	runs := &fakeRuns{successFor: map[string]bool{}}
	watermarks := &fakeWatermarks{}
	plans := &fakePlans{plan: samplePlan()}
	telemetry := &fakeTelemetry{}
	locks := &fakeLocks{acquireResult: true}
	exec := &fakeExecutor{status: executor.RunStatusSuccess}

	o := newOrchestrator(runs, watermarks, plans, telemetry, locks, exec)
	results, err := o.ApplyPlan(context.Background(), "plan-1", orchestrator.Options{Environment: "dev"})

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, state.RunStatusSuccess, results[0].Status)
	assert.Equal(t, [2]string{"2026-01-01", "2026-01-02"}, watermarks.advanced["orders"])
	assert.Len(t, telemetry.recorded, 1)
	assert.Contains(t, locks.released, "orders")
}

func TestApplyPlanSkipsAlreadySuccessfulStep(t *testing.T) {
	runs := &fakeRuns{successFor: map[string]bool{"plan-1/step-1": true}}
	watermarks := &fakeWatermarks{}
	plans := &fakePlans{plan: samplePlan()}
	telemetry := &fakeTelemetry{}
	locks := &fakeLocks{acquireResult: true}
	exec := &fakeExecutor{status: executor.RunStatusSuccess}

	o := newOrchestrator(runs, watermarks, plans, telemetry, locks, exec)
	results, err := o.ApplyPlan(context.Background(), "plan-1", orchestrator.Options{Environment: "dev"})

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, state.RunStatusSuccess, results[0].Status)
	assert.Empty(t, watermarks.advanced)
}

func TestApplyPlanRecordsCancelledOnLockFailure(t *testing.T) {
	runs := &fakeRuns{successFor: map[string]bool{}}
	watermarks := &fakeWatermarks{}
	plans := &fakePlans{plan: samplePlan()}
	telemetry := &fakeTelemetry{}
	locks := &fakeLocks{acquireResult: false}
	exec := &fakeExecutor{status: executor.RunStatusSuccess}

	o := newOrchestrator(runs, watermarks, plans, telemetry, locks, exec)
	results, err := o.ApplyPlan(context.Background(), "plan-1", orchestrator.Options{Environment: "dev"})

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, state.RunStatusCancelled, results[0].Status)
	assert.Equal(t, "Lock acquisition failed", results[0].ErrorMessage)
}

func TestApplyPlanContinuesPastFailedStep(t *testing.T) {
	runs := &fakeRuns{successFor: map[string]bool{}}
	watermarks := &fakeWatermarks{}
	p := samplePlan()
	p.Steps = append(p.Steps, plan.Step{
		StepID:     "step-2",
		Model:      "orders_summary",
		RunType:    plan.RunTypeFullRefresh,
	})
	plans := &fakePlans{plan: p}
	telemetry := &fakeTelemetry{}
	locks := &fakeLocks{acquireResult: true}
	exec := &fakeExecutor{status: executor.RunStatusFailed, errMsg: "compute error"}

	o := orchestrator.New(
		logging.NewNop(), runs, watermarks, plans, telemetry, locks,
		&fakeModels{sql: map[string]string{"orders": "SELECT 1", "orders_summary": "SELECT 2"}},
		exec, exec, nil, orchestrator.ClusterRates{},
	)
	results, err := o.ApplyPlan(context.Background(), "plan-1", orchestrator.Options{Environment: "dev"})

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, state.RunStatusFailed, results[0].Status)
	assert.Equal(t, state.RunStatusFailed, results[1].Status)
}

func TestApplyPlanRejectsAutoApproveWithoutAdmin(t *testing.T) {
	runs := &fakeRuns{}
	plans := &fakePlans{plan: samplePlan()}
	o := orchestrator.New(
		logging.NewNop(), runs, &fakeWatermarks{}, plans, &fakeTelemetry{}, &fakeLocks{acquireResult: true},
		&fakeModels{}, &fakeExecutor{}, &fakeExecutor{}, nil, orchestrator.ClusterRates{},
	)
	_, err := o.ApplyPlan(context.Background(), "plan-1", orchestrator.Options{
		AutoApprove: true, CallerRole: authz.RoleDev, Environment: "dev",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, cperrors.ErrPermission)
}

func TestApplyPlanRejectsUnapprovedProductionPlan(t *testing.T) {
	plans := &fakePlans{plan: samplePlan(), approvalCount: 0}
	o := orchestrator.New(
		logging.NewNop(), &fakeRuns{}, &fakeWatermarks{}, plans, &fakeTelemetry{}, &fakeLocks{acquireResult: true},
		&fakeModels{}, &fakeExecutor{}, &fakeExecutor{}, nil, orchestrator.ClusterRates{},
	)
	_, err := o.ApplyPlan(context.Background(), "plan-1", orchestrator.Options{Environment: "production"})
	require.Error(t, err)
	assert.ErrorIs(t, err, cperrors.ErrPermission)
}

func TestApplyPlanAllowsApprovedProductionPlan(t *testing.T) {
	plans := &fakePlans{plan: samplePlan(), approvalCount: 1}
	exec := &fakeExecutor{status: executor.RunStatusSuccess}
	o := orchestrator.New(
		logging.NewNop(), &fakeRuns{successFor: map[string]bool{}}, &fakeWatermarks{}, plans, &fakeTelemetry{},
		&fakeLocks{acquireResult: true}, &fakeModels{sql: map[string]string{"orders": "SELECT 1"}},
		exec, exec, nil, orchestrator.ClusterRates{},
	)
	_, err := o.ApplyPlan(context.Background(), "plan-1", orchestrator.Options{Environment: "production"})
	require.NoError(t, err)
}
