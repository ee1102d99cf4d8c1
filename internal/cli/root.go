// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli wires together the ironlayerctl root Cobra command and
// global CLI options.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ironlayer/internal/cli/commands"
)

// NewRootCommand constructs the ironlayerctl root Cobra command.
func NewRootCommand() *cobra.Command {
	version := os.Getenv("IRONLAYER_VERSION")
	if version == "" {
		version = "0.0.0-dev"
	}

	cmd := &cobra.Command{
		Use:           "ironlayerctl",
		Short:         "ironlayerctl – SQL transformation control plane CLI",
		Long:          "ironlayerctl loads model definitions, generates and applies execution plans, and drives backfills, reconciliation, and audit inspection against the transformation control plane.",
		SilenceUsage:  true, // don't dump usage on user errors
		SilenceErrors: true, // centralize error printing in main()
	}

	// Global flags - registered in lexicographic order for deterministic help output.
	cmd.PersistentFlags().StringP("config", "c", "", "path to ironlayer.yml")
	cmd.PersistentFlags().Bool("dry-run", false, "show actions without executing")
	cmd.PersistentFlags().BoolP("verbose", "v", false, "enable verbose output")

	// Version command – simple and explicit.
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number of ironlayerctl",
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "ironlayerctl version %s\n", version)
		},
	})

	// Subcommands - kept in lexicographic order by .Use for deterministic help output.
	cmd.AddCommand(commands.NewApplyCommand())
	cmd.AddCommand(commands.NewAuditCommand())
	cmd.AddCommand(commands.NewBackfillCommand())
	cmd.AddCommand(commands.NewDiffCommand())
	cmd.AddCommand(commands.NewLoadCommand())
	cmd.AddCommand(commands.NewPlanCommand())
	cmd.AddCommand(commands.NewReconcileCommand())

	return cmd
}
