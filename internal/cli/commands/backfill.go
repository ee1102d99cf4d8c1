// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"ironlayer/pkg/orchestrator"
	"ironlayer/pkg/state"
)

// NewBackfillCommand returns the `ironlayerctl backfill` parent command.
func NewBackfillCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Drive historical reprocessing of a model's date range",
	}
	cmd.AddCommand(newBackfillSingleCommand())
	cmd.AddCommand(newBackfillChunkedCommand())
	cmd.AddCommand(newBackfillResumeCommand())
	cmd.AddCommand(newBackfillStatusCommand())
	return cmd
}

func addBackfillExecFlags(cmd *cobra.Command) {
	cmd.Flags().String("role", "viewer", "caller role: viewer, dev, or admin")
	cmd.Flags().String("environment", "dev", "target environment: dev, staging, or production")
	cmd.Flags().String("cluster-size", "", "cluster size override for cost accounting")
}

func execOptsFromFlags(cmd *cobra.Command) orchestrator.Options {
	role, _ := cmd.Flags().GetString("role")
	environment, _ := cmd.Flags().GetString("environment")
	clusterSize, _ := cmd.Flags().GetString("cluster-size")
	return orchestrator.Options{
		CallerRole:      callerRole(role),
		Environment:     environment,
		ClusterOverride: clusterSize,
	}
}

func newBackfillSingleCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "single <model> <models-dir>",
		Short: "Backfill one date range as a single step",
		Args:  cobra.ExactArgs(2),
		RunE:  runBackfillSingle,
	}
	cmd.Flags().String("start", "", "range start (YYYY-MM-DD)")
	cmd.Flags().String("end", "", "range end (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	addBackfillExecFlags(cmd)
	return cmd
}

func runBackfillSingle(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	app, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	modelName, modelsDir := args[0], args[1]
	defs, err := app.loadModels(modelsDir)
	if err != nil {
		return err
	}

	start, _ := cmd.Flags().GetString("start")
	end, _ := cmd.Flags().GetString("end")

	o := app.orchestrator(defs)
	engine := app.backfillEngine(o)
	run, err := engine.SingleRange(ctx, modelName, start, end, execOptsFromFlags(cmd))
	if err != nil {
		return fmt.Errorf("backfilling %s: %w", modelName, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%-40s %-10s %s\n", run.StepID, run.Status, run.ErrorMessage)
	return nil
}

func newBackfillChunkedCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chunked <model> <models-dir>",
		Short: "Backfill a date range in day-aligned chunks, checkpointing progress",
		Args:  cobra.ExactArgs(2),
		RunE:  runBackfillChunked,
	}
	cmd.Flags().String("start", "", "range start (YYYY-MM-DD)")
	cmd.Flags().String("end", "", "range end (YYYY-MM-DD)")
	cmd.Flags().Int("chunk-days", 7, "chunk size in days")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	addBackfillExecFlags(cmd)
	return cmd
}

func runBackfillChunked(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	app, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	modelName, modelsDir := args[0], args[1]
	defs, err := app.loadModels(modelsDir)
	if err != nil {
		return err
	}

	start, _ := cmd.Flags().GetString("start")
	end, _ := cmd.Flags().GetString("end")
	chunkDays, _ := cmd.Flags().GetInt("chunk-days")

	o := app.orchestrator(defs)
	engine := app.backfillEngine(o)
	checkpoint, err := engine.Chunked(ctx, modelName, start, end, chunkDays, execOptsFromFlags(cmd))
	if err != nil {
		return fmt.Errorf("backfilling %s: %w", modelName, err)
	}
	return printBackfillCheckpoint(cmd, checkpoint)
}

func newBackfillResumeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resume <backfill-id> <models-dir>",
		Short: "Resume a failed or partially completed chunked backfill",
		Args:  cobra.ExactArgs(2),
		RunE:  runBackfillResume,
	}
	addBackfillExecFlags(cmd)
	return cmd
}

func runBackfillResume(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	app, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	backfillID, modelsDir := args[0], args[1]
	defs, err := app.loadModels(modelsDir)
	if err != nil {
		return err
	}

	o := app.orchestrator(defs)
	engine := app.backfillEngine(o)
	checkpoint, err := engine.Resume(ctx, backfillID, execOptsFromFlags(cmd))
	if err != nil {
		return fmt.Errorf("resuming backfill %s: %w", backfillID, err)
	}
	return printBackfillCheckpoint(cmd, checkpoint)
}

func newBackfillStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status <backfill-id>",
		Short: "Show a chunked backfill's checkpoint and chunk history",
		Args:  cobra.ExactArgs(1),
		RunE:  runBackfillStatus,
	}
}

func runBackfillStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	app, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	backfillID := args[0]
	engine := app.backfillEngine(app.orchestrator(nil))
	checkpoint, history, err := engine.Status(ctx, backfillID)
	if err != nil {
		return fmt.Errorf("reading backfill status %s: %w", backfillID, err)
	}
	if err := printBackfillCheckpoint(cmd, checkpoint); err != nil {
		return err
	}
	for _, h := range history {
		fmt.Fprintf(cmd.OutOrStdout(), "  %s..%s  %-8s %s\n", h.ChunkStart, h.ChunkEnd, h.Status, h.ErrorMessage)
	}
	return nil
}

func printBackfillCheckpoint(cmd *cobra.Command, c *state.BackfillCheckpoint) error {
	completedThrough := "(none)"
	if c.CompletedThrough != nil {
		completedThrough = *c.CompletedThrough
	}
	fmt.Fprintf(cmd.OutOrStdout(), "backfill %s  %-10s %d/%d chunks  completed through %s\n",
		c.BackfillID, c.Status, c.CompletedChunks, c.TotalChunks, completedThrough)
	if c.ErrorMessage != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "  error: %s\n", c.ErrorMessage)
	}
	return nil
}
