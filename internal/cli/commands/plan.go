// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"ironlayer/pkg/contract"
	"ironlayer/pkg/cperrors"
	"ironlayer/pkg/dag"
	"ironlayer/pkg/differ"
	"ironlayer/pkg/logging"
	"ironlayer/pkg/model"
	"ironlayer/pkg/plan"
	"ironlayer/pkg/planner"
	"ironlayer/pkg/state"
)

// NewPlanCommand returns the `ironlayerctl plan` command.
func NewPlanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan <models-dir>",
		Short: "Generate and persist a deterministic execution plan between two snapshots",
		Args:  cobra.ExactArgs(1),
		RunE:  runPlan,
	}
	cmd.Flags().String("base", "", "base snapshot id")
	cmd.Flags().String("target", "", "target snapshot id")
	cmd.Flags().String("as-of", "", "as-of date (YYYY-MM-DD); defaults to today (UTC)")
	cmd.Flags().String("format", "text", "output format: text or json")
	_ = cmd.MarkFlagRequired("base")
	_ = cmd.MarkFlagRequired("target")
	return cmd
}

func runPlan(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	app, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	defs, err := app.loadModels(args[0])
	if err != nil {
		return err
	}

	base, _ := cmd.Flags().GetString("base")
	target, _ := cmd.Flags().GetString("target")
	asOf, _ := cmd.Flags().GetString("as-of")
	format, _ := cmd.Flags().GetString("format")

	snapshotRepo := state.NewSnapshotRepository(app.Pool, app.TenantID)
	baseHashes, err := snapshotRepo.MemberHashes(ctx, base)
	if err != nil {
		return fmt.Errorf("loading base snapshot %s: %w", base, err)
	}
	targetHashes, err := snapshotRepo.MemberHashes(ctx, target)
	if err != nil {
		return fmt.Errorf("loading target snapshot %s: %w", target, err)
	}

	deps := make(map[string][]string, len(defs))
	for name, def := range defs {
		deps[name] = def.Dependencies
	}
	graph, err := dag.Build(deps)
	if err != nil {
		return fmt.Errorf("building dependency graph: %w", err)
	}

	watermarkRepo := state.NewWatermarkRepository(app.Pool, app.TenantID)
	watermarks := make(map[string]planner.Watermark, len(targetHashes))
	for name := range targetHashes {
		wm, ok, err := watermarkRepo.Get(ctx, name)
		if err != nil {
			return fmt.Errorf("loading watermark for %s: %w", name, err)
		}
		if ok {
			watermarks[name] = planner.Watermark{Start: wm.Start, End: wm.End}
		}
	}

	contractResult := contract.CheckBatch(defs, nil)
	if n := len(contractResult.Violations); n > 0 {
		app.Log.Warn("schema contract violations detected", logging.NewField("count", n), logging.NewField("breaking", contractResult.HasBreakingViolations()))
	}
	contractViolations := make(map[string][]model.ContractViolation, len(defs))
	for name := range defs {
		if v := contractResult.ViolationsForModel(name); len(v) > 0 {
			contractViolations[name] = v
		}
	}

	p, err := planner.GeneratePlan(planner.Input{
		Base:               base,
		Target:             target,
		Models:             defs,
		Diff:               differ.Diff(baseHashes, targetHashes),
		Graph:              graph,
		Watermarks:         watermarks,
		Config:             planner.Config{DefaultLookbackDays: app.Config.Planner.DefaultLookbackDays},
		AsOfDate:           asOf,
		ContractViolations: contractViolations,
	})
	if err != nil {
		return fmt.Errorf("generating plan: %w", err)
	}

	if err := state.NewPlanRepository(app.Pool, app.TenantID).Save(ctx, p); err != nil {
		return fmt.Errorf("saving plan: %w", err)
	}

	return renderPlan(cmd.OutOrStdout(), p, format)
}

func renderPlan(out io.Writer, p *plan.Plan, format string) error {
	switch format {
	case "json":
		body, err := plan.Serialize(p)
		if err != nil {
			return fmt.Errorf("serializing plan: %w", err)
		}
		_, err = fmt.Fprintf(out, "%s\n", body)
		return err
	case "text", "":
		fmt.Fprintf(out, "plan %s: %d step(s), $%.4f estimated\n", p.PlanID, p.Summary.TotalSteps, p.Summary.EstimatedCostUSD)
		for _, s := range p.Steps {
			fmt.Fprintf(out, "  %-64s %-10s %-24s %s\n", s.StepID, s.RunType, s.Model, s.Reason)
		}
		return nil
	default:
		return fmt.Errorf("%w: format must be text or json, got %q", cperrors.ErrValidation, format)
	}
}
