// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"ironlayer/pkg/state"
)

// NewReconcileCommand returns the `ironlayerctl reconcile` parent command.
func NewReconcileCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Compare recorded run status against warehouse truth and triage discrepancies",
	}
	cmd.AddCommand(newReconcileCheckCommand())
	cmd.AddCommand(newReconcileListCommand())
	cmd.AddCommand(newReconcileResolveCommand())
	cmd.AddCommand(newReconcileSchedulesCommand())
	return cmd
}

func newReconcileCheckCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <model>",
		Short: "Record a comparison between expected and warehouse-observed status",
		Args:  cobra.ExactArgs(1),
		RunE:  runReconcileCheck,
	}
	cmd.Flags().String("expected", "", "expected status")
	cmd.Flags().String("warehouse", "", "status observed in the warehouse")
	cmd.Flags().String("discrepancy", "", "discrepancy type: missing_run, extra_data, row_count_drift, or schema_mismatch (omit if statuses match)")
	_ = cmd.MarkFlagRequired("expected")
	_ = cmd.MarkFlagRequired("warehouse")
	return cmd
}

func runReconcileCheck(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	app, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	modelName := args[0]
	expected, _ := cmd.Flags().GetString("expected")
	warehouse, _ := cmd.Flags().GetString("warehouse")
	discrepancyFlag, _ := cmd.Flags().GetString("discrepancy")

	var discrepancy *state.DiscrepancyType
	if discrepancyFlag != "" {
		d := state.DiscrepancyType(discrepancyFlag)
		discrepancy = &d
	}

	checkID, err := app.reconcileService().Check(ctx, modelName,
		state.ReconciliationStatus(expected), state.ReconciliationStatus(warehouse), discrepancy)
	if err != nil {
		return fmt.Errorf("recording reconciliation check for %s: %w", modelName, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "check %s recorded\n", checkID)
	return nil
}

func newReconcileListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List unresolved reconciliation discrepancies",
		Args:  cobra.NoArgs,
		RunE:  runReconcileList,
	}
	cmd.Flags().Int("limit", 50, "maximum number of checks to return")
	return cmd
}

func runReconcileList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	app, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	checks, err := app.reconcileService().GetUnresolved(ctx, limit)
	if err != nil {
		return fmt.Errorf("listing unresolved reconciliation checks: %w", err)
	}
	for _, c := range checks {
		discrepancy := "(none)"
		if c.DiscrepancyType != nil {
			discrepancy = string(*c.DiscrepancyType)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%-36s %-24s expected=%-10s warehouse=%-10s %s\n",
			c.CheckID, c.ModelName, c.ExpectedStatus, c.WarehouseStatus, discrepancy)
	}
	return nil
}

func newReconcileResolveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve <check-id>",
		Short: "Mark a reconciliation discrepancy resolved",
		Args:  cobra.ExactArgs(1),
		RunE:  runReconcileResolve,
	}
	cmd.Flags().String("resolved-by", "", "actor resolving this discrepancy")
	cmd.Flags().String("note", "", "resolution note")
	_ = cmd.MarkFlagRequired("resolved-by")
	return cmd
}

func runReconcileResolve(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	app, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	checkID := args[0]
	resolvedBy, _ := cmd.Flags().GetString("resolved-by")
	note, _ := cmd.Flags().GetString("note")

	if err := app.reconcileService().Resolve(ctx, checkID, resolvedBy, note); err != nil {
		return fmt.Errorf("resolving check %s: %w", checkID, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "check %s resolved\n", checkID)
	return nil
}

func newReconcileSchedulesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "schedules",
		Short: "List configured reconciliation schedules",
		Args:  cobra.NoArgs,
		RunE:  runReconcileSchedules,
	}
}

func runReconcileSchedules(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	app, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	schedules, err := app.reconcileService().ListSchedules(ctx)
	if err != nil {
		return fmt.Errorf("listing reconciliation schedules: %w", err)
	}
	for _, s := range schedules {
		enabled := "disabled"
		if s.Enabled {
			enabled = "enabled"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%-24s %-20s %-8s %s\n", s.Name, s.CronExpr, enabled, strings.Join(s.Models, ","))
	}
	return nil
}
