// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"ironlayer/pkg/differ"
	"ironlayer/pkg/state"
)

// NewDiffCommand returns the `ironlayerctl diff` command.
func NewDiffCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "diff <models-dir>",
		Short: "Show which models changed since the last load",
		Args:  cobra.ExactArgs(1),
		RunE:  runDiff,
	}
}

func runDiff(cmd *cobra.Command, args []string) error {
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

	current := make(map[string]string, len(defs))
	for name, def := range defs {
		current[name] = def.ContentHash
	}

	previous, err := state.NewModelRepository(app.Pool, app.TenantID).LatestHash(ctx)
	if err != nil {
		return fmt.Errorf("loading previous model hashes: %w", err)
	}

	return printDiff(cmd.OutOrStdout(), differ.Diff(previous, current))
}

func printDiff(out io.Writer, r differ.Result) error {
	fmt.Fprintf(out, "added: %s\n", describeNames(r.Added))
	fmt.Fprintf(out, "removed: %s\n", describeNames(r.Removed))
	fmt.Fprintf(out, "modified: %s\n", describeNames(r.Modified))
	return nil
}

func describeNames(names []string) string {
	if len(names) == 0 {
		return "(none)"
	}
	return strings.Join(names, ", ")
}
