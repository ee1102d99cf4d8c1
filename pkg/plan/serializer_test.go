// SPDX-License-Identifier: AGPL-3.0-or-later

package plan

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func samplePlan() *Plan {
	stepID := ComputeStepID("analytics.revenue_summary", "base-sha", "target-sha", RunTypeFullRefresh, nil)
	planID := ComputePlanID("base-sha", "target-sha", []string{stepID})
	return &Plan{
		PlanID:    planID,
		Base:      "base-sha",
		Target:    "target-sha",
		CreatedAt: "2026-07-31T00:00:00Z",
		Summary: Summary{
			TotalSteps:    1,
			ModelsChanged: []string{"analytics.revenue_summary"},
		},
		Steps: []Step{
			{
				StepID:    stepID,
				Model:     "analytics.revenue_summary",
				RunType:   RunTypeFullRefresh,
				DependsOn: []string{},
				Reason:    "model SQL changed",
			},
		},
	}
}

func TestSerializeDeserializeRoundTrip(t *testing.T) {
	p := samplePlan()
	first, err := Serialize(p)
	require.NoError(t, err)

	decoded, err := Deserialize(first)
	require.NoError(t, err)

	second, err := Serialize(decoded)
	require.NoError(t, err)

	require.JSONEq(t, string(first), string(second))
	require.Equal(t, string(first), string(second))
}

func TestDeserializeRejectsUnknownTopLevelKey(t *testing.T) {
	_, err := Deserialize([]byte(`{"plan_id":"x","base":"b","target":"t","created_at":"2026-01-01T00:00:00Z","summary":{},"steps":[],"bogus":1}`))
	require.ErrorIs(t, err, ErrSchema)
}

func TestDeserializeRejectsMissingRequiredField(t *testing.T) {
	_, err := Deserialize([]byte(`{"plan_id":"x","base":"b","target":"t","summary":{},"steps":[]}`))
	require.ErrorIs(t, err, ErrSchema)
}

func TestDeserializeRejectsMalformedInputRangeDate(t *testing.T) {
	_, err := Deserialize([]byte(`{
		"plan_id":"x","base":"b","target":"t","created_at":"2026-01-01T00:00:00Z",
		"summary":{"total_steps":1,"estimated_cost_usd":0,"models_changed":["m"]},
		"steps":[{"step_id":"s1","model":"m","run_type":"INCREMENTAL","input_range":{"start":"not-a-date","end":"2026-01-01"},"depends_on":[],"parallel_group":0,"reason":"x","estimated_compute_seconds":0,"estimated_cost_usd":0,"contract_violations":[]}]
	}`))
	require.ErrorIs(t, err, ErrSchema)
}

func TestPlanIDIsPureFunctionOfInputs(t *testing.T) {
	id1 := ComputePlanID("base", "target", []string{"b", "a", "c"})
	id2 := ComputePlanID("base", "target", []string{"a", "b", "c"})
	require.Equal(t, id1, id2, "step id order must not affect plan id")
}
