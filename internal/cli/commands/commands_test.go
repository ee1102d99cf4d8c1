// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

// executeCommand runs cmd with args, capturing combined stdout/stderr.
func executeCommand(cmd *cobra.Command, args ...string) (string, error) {
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// chdirTemp changes the working directory to a fresh temp dir for the
// duration of the test, restoring the original directory on cleanup — used
// by every "config not found" test so commands never touch a real
// ironlayer.yml left behind by another test.
func chdirTemp(t *testing.T) string {
	t.Helper()
	tmpDir := t.TempDir()
	originalDir, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(originalDir); err != nil {
			t.Logf("failed to restore directory: %v", err)
		}
	})
	return tmpDir
}

func assertConfigNotFound(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error when config file is missing")
	}
	if !strings.Contains(err.Error(), "ironlayer config not found") {
		t.Fatalf("expected config-not-found error, got: %v", err)
	}
}
