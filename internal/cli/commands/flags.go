// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"ironlayer/pkg/config"
)

// ResolvedFlags contains the resolved values for the global flags every
// subcommand inherits from the root command.
type ResolvedFlags struct {
	Config  string
	Verbose bool
	DryRun  bool
}

// ResolveFlags resolves global flags with precedence: command-line flag >
// environment variable > built-in default.
func ResolveFlags(cmd *cobra.Command) *ResolvedFlags {
	configFlag, _ := cmd.Flags().GetString("config")
	verboseFlag, _ := cmd.Flags().GetBool("verbose")
	dryRunFlag, _ := cmd.Flags().GetBool("dry-run")

	return &ResolvedFlags{
		Config:  resolveString(configFlag, os.Getenv("IRONLAYER_CONFIG"), config.DefaultConfigPath()),
		Verbose: resolveBool(verboseFlag, parseBoolEnv(os.Getenv("IRONLAYER_VERBOSE")), false),
		DryRun:  resolveBool(dryRunFlag, parseBoolEnv(os.Getenv("IRONLAYER_DRY_RUN")), false),
	}
}

// resolveString resolves a string value with precedence: flag > env > default.
func resolveString(flag, env, defaultValue string) string {
	if flag != "" {
		return flag
	}
	if env != "" {
		return env
	}
	return defaultValue
}

// resolveBool resolves a boolean value with precedence: flag > env > default.
func resolveBool(flag, env, defaultValue bool) bool {
	if flag {
		return true
	}
	if env {
		return true
	}
	return defaultValue
}

// parseBoolEnv parses a boolean from an environment variable. Returns false
// if the env var is not set or cannot be parsed.
func parseBoolEnv(value string) bool {
	if value == "" {
		return false
	}
	parsed, err := strconv.ParseBool(value)
	return err == nil && parsed
}
