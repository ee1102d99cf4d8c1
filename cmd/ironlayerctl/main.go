// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"ironlayer/internal/cli"
	"ironlayer/pkg/cperrors"

	_ "ironlayer/pkg/sqltoolkit/pgquery"
)

const (
	exitSuccess      = 0
	exitUsageError   = 2
	exitRuntimeError = 3
)

func main() {
	os.Exit(run())
}

func run() int {
	rootCmd := cli.NewRootCommand()

	if err := rootCmd.Execute(); err != nil {
		// We deliberately avoid printing Cobra's default error twice
		// and centralize exit code handling here.
		fmt.Fprintln(os.Stderr, err)
		return exitCodeFor(err)
	}
	return exitSuccess
}

// exitCodeFor classifies a command failure into the process exit codes a
// caller scripting against ironlayerctl can rely on: a usage error (bad
// flags, missing required flags, malformed input) exits 2, anything else
// exits 3.
func exitCodeFor(err error) int {
	if isUsageError(err) {
		return exitUsageError
	}
	return exitRuntimeError
}

// cobraUsagePrefixes are the leading phrases Cobra's own flag/argument
// parsing errors use; they never wrap an error so there's no sentinel to
// match against with errors.Is.
var cobraUsagePrefixes = []string{
	"unknown command",
	"unknown flag",
	"unknown shorthand flag",
	"required flag",
	"accepts ",
	"requires at least",
	"invalid argument",
}

func isUsageError(err error) bool {
	if errors.Is(err, cperrors.ErrValidation) {
		return true
	}
	msg := err.Error()
	for _, prefix := range cobraUsagePrefixes {
		if strings.HasPrefix(msg, prefix) {
			return true
		}
	}
	return false
}
