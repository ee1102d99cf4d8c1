// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import "testing"

func TestNewBackfillCommand_RegistersSubcommands(t *testing.T) {
	cmd := NewBackfillCommand()

	for _, name := range []string{"single", "chunked", "resume", "status"} {
		if _, _, err := cmd.Find([]string{name}); err != nil {
			t.Fatalf("expected to find %q subcommand, got error: %v", name, err)
		}
	}
}

func TestBackfillSingleCommand_ConfigNotFound(t *testing.T) {
	chdirTemp(t)
	modelsDir := t.TempDir()

	cmd := NewBackfillCommand()
	_, err := executeCommand(cmd, "single", "orders", modelsDir, "--start", "2024-01-01", "--end", "2024-01-07")
	assertConfigNotFound(t, err)
}

func TestBackfillChunkedCommand_RequiresStartAndEnd(t *testing.T) {
	chdirTemp(t)
	modelsDir := t.TempDir()

	cmd := NewBackfillCommand()
	if _, err := executeCommand(cmd, "chunked", "orders", modelsDir); err == nil {
		t.Fatalf("expected error when --start and --end are not given")
	}
}

func TestBackfillResumeCommand_RequiresModelsDir(t *testing.T) {
	cmd := NewBackfillCommand()
	if _, err := executeCommand(cmd, "resume", "backfill-1"); err == nil {
		t.Fatalf("expected error when models-dir is missing")
	}
}

func TestBackfillStatusCommand_ConfigNotFound(t *testing.T) {
	chdirTemp(t)

	cmd := NewBackfillCommand()
	_, err := executeCommand(cmd, "status", "backfill-1")
	assertConfigNotFound(t, err)
}
