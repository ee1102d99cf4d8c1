// SPDX-License-Identifier: AGPL-3.0-or-later

package planner

import (
	"testing"

	"github.com/stretchr/testify/require"

	"ironlayer/pkg/dag"
	"ironlayer/pkg/differ"
	"ironlayer/pkg/model"
	"ironlayer/pkg/plan"
)

func sampleGraph(t *testing.T) *dag.Graph {
	t.Helper()
	g, err := dag.Build(map[string][]string{
		"raw.events":                nil,
		"staging.events_clean":      {"raw.events"},
		"analytics.orders_daily":    {"staging.events_clean"},
		"analytics.user_metrics":    {"staging.events_clean"},
		"analytics.revenue_summary": {"analytics.orders_daily", "analytics.user_metrics"},
	})
	require.NoError(t, err)
	return g
}

func sampleModels() map[string]*model.Definition {
	def := func(name string, kind model.Kind) *model.Definition {
		return &model.Definition{Name: name, Kind: kind, TimeColumn: "ts"}
	}
	return map[string]*model.Definition{
		"raw.events":                def("raw.events", model.KindFullRefresh),
		"staging.events_clean":      def("staging.events_clean", model.KindFullRefresh),
		"analytics.orders_daily":    def("analytics.orders_daily", model.KindIncrementalByTimeRange),
		"analytics.user_metrics":    def("analytics.user_metrics", model.KindFullRefresh),
		"analytics.revenue_summary": def("analytics.revenue_summary", model.KindFullRefresh),
	}
}

func TestGeneratePlanUnchangedRepoHasZeroSteps(t *testing.T) {
	p, err := GeneratePlan(Input{
		Base: "s1", Target: "s1",
		Models: sampleModels(),
		Diff:   differ.Result{},
		Graph:  sampleGraph(t),
	})
	require.NoError(t, err)
	require.Equal(t, 0, p.Summary.TotalSteps)
	require.Equal(t, 0.0, p.Summary.EstimatedCostUSD)
	require.Empty(t, p.Summary.ModelsChanged)
}

func TestGeneratePlanLeafChangeProducesSingleStep(t *testing.T) {
	p, err := GeneratePlan(Input{
		Base: "s1", Target: "s2",
		Models: sampleModels(),
		Diff:   differ.Result{Modified: []string{"analytics.revenue_summary"}},
		Graph:  sampleGraph(t),
	})
	require.NoError(t, err)
	require.Len(t, p.Steps, 1)
	require.Equal(t, plan.RunTypeFullRefresh, p.Steps[0].RunType)
	require.Empty(t, p.Steps[0].DependsOn)
}

func TestGeneratePlanRootChangeCascadesDownstream(t *testing.T) {
	p, err := GeneratePlan(Input{
		Base: "s1", Target: "s2",
		Models: sampleModels(),
		Diff:   differ.Result{Modified: []string{"raw.events"}},
		Graph:  sampleGraph(t),
	})
	require.NoError(t, err)
	require.Len(t, p.Steps, 5)

	byModel := make(map[string]plan.Step)
	for _, s := range p.Steps {
		byModel[s.Model] = s
	}
	orders := byModel["analytics.orders_daily"]
	require.Equal(t, plan.RunTypeIncremental, orders.RunType)
	require.NotNil(t, orders.InputRange)

	revenue := byModel["analytics.revenue_summary"]
	require.Greater(t, revenue.ParallelGroup, orders.ParallelGroup)
}

func TestGeneratePlanIncrementalUsesWatermark(t *testing.T) {
	p, err := GeneratePlan(Input{
		Base: "s1", Target: "s2",
		Models: sampleModels(),
		Diff:   differ.Result{Modified: []string{"analytics.orders_daily"}},
		Graph:  sampleGraph(t),
		Watermarks: map[string]Watermark{
			"analytics.orders_daily": {Start: "2025-05-01", End: "2025-06-10"},
		},
		AsOfDate: "2025-06-15",
	})
	require.NoError(t, err)
	require.Len(t, p.Steps, 1)
	require.Equal(t, "2025-06-10", p.Steps[0].InputRange.Start)
	require.Equal(t, "2025-06-15", p.Steps[0].InputRange.End)
}

func TestGeneratePlanIsDeterministic(t *testing.T) {
	in := Input{
		Base: "s1", Target: "s2",
		Models: sampleModels(),
		Diff:   differ.Result{Modified: []string{"raw.events"}},
		Graph:  sampleGraph(t),
		AsOfDate: "2025-06-15",
	}
	p1, err := GeneratePlan(in)
	require.NoError(t, err)
	p2, err := GeneratePlan(in)
	require.NoError(t, err)
	require.Equal(t, p1.PlanID, p2.PlanID)

	for i := range p1.Steps {
		require.Equal(t, p1.Steps[i].StepID, p2.Steps[i].StepID)
	}
}
