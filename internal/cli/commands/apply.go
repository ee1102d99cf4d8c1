// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"ironlayer/pkg/orchestrator"
	"ironlayer/pkg/state"
)

// NewApplyCommand returns the `ironlayerctl apply` command.
func NewApplyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apply <plan-id> <models-dir>",
		Short: "Apply a previously generated plan",
		Args:  cobra.ExactArgs(2),
		RunE:  runApply,
	}
	cmd.Flags().String("approved-by", "", "actor approving this apply (added to the plan's approval records before execution starts)")
	cmd.Flags().Bool("auto-approve", false, "bypass the approval-count gate (requires --role admin)")
	cmd.Flags().String("role", "viewer", "caller role: viewer, dev, or admin")
	cmd.Flags().String("environment", "dev", "target environment: dev, staging, or production")
	cmd.Flags().String("cluster-size", "", "cluster size override for cost accounting")
	return cmd
}

func runApply(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	app, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	planID, modelsDir := args[0], args[1]

	defs, err := app.loadModels(modelsDir)
	if err != nil {
		return err
	}

	approvedBy, _ := cmd.Flags().GetString("approved-by")
	autoApprove, _ := cmd.Flags().GetBool("auto-approve")
	role, _ := cmd.Flags().GetString("role")
	environment, _ := cmd.Flags().GetString("environment")
	clusterSize, _ := cmd.Flags().GetString("cluster-size")

	opts := orchestrator.Options{
		ApprovedBy:      approvedBy,
		AutoApprove:     autoApprove,
		CallerRole:      callerRole(role),
		Environment:     environment,
		ClusterOverride: clusterSize,
	}

	if approvedBy != "" {
		approval := state.Approval{ApprovedBy: approvedBy, ApprovedAt: time.Now().UTC()}
		if err := state.NewPlanRepository(app.Pool, app.TenantID).AddApproval(ctx, planID, approval); err != nil {
			return fmt.Errorf("recording approval: %w", err)
		}
	}

	runs, err := app.orchestrator(defs).ApplyPlan(ctx, planID, opts)
	if err != nil {
		return fmt.Errorf("applying plan %s: %w", planID, err)
	}

	for _, run := range runs {
		fmt.Fprintf(cmd.OutOrStdout(), "%-40s %-10s %s\n", run.StepID, run.Status, run.ErrorMessage)
	}
	return nil
}
