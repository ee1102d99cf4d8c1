// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"ironlayer/pkg/state"
)

// NewLoadCommand returns the `ironlayerctl load` command.
func NewLoadCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load <models-dir>",
		Short: "Load model definitions from a directory and persist a snapshot",
		Args:  cobra.ExactArgs(1),
		RunE:  runLoad,
	}
	cmd.Flags().String("snapshot-env", "dev", "environment label recorded on the snapshot")
	return cmd
}

func runLoad(cmd *cobra.Command, args []string) error {
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

	snapshotEnv, _ := cmd.Flags().GetString("snapshot-env")

	modelRepo := state.NewModelRepository(app.Pool, app.TenantID)
	versions := make(map[string]string, len(defs))
	for name, def := range defs {
		versionID, err := modelRepo.Upsert(ctx, def)
		if err != nil {
			return fmt.Errorf("upserting model %q: %w", name, err)
		}
		versions[name] = versionID
	}

	snapshotID, err := state.NewSnapshotRepository(app.Pool, app.TenantID).Create(ctx, snapshotEnv, versions)
	if err != nil {
		return fmt.Errorf("creating snapshot: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "snapshot %s (%d models)\n", snapshotID, len(defs))
	return nil
}
