// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import "testing"

func TestNewLoadCommand_HasExpectedMetadata(t *testing.T) {
	cmd := NewLoadCommand()

	if cmd.Use != "load <models-dir>" {
		t.Fatalf("expected Use to be 'load <models-dir>', got %q", cmd.Use)
	}
	if cmd.Short == "" {
		t.Fatalf("expected Short description to be non-empty")
	}
	if cmd.Flags().Lookup("snapshot-env") == nil {
		t.Fatalf("expected --snapshot-env flag to be registered")
	}
}

func TestLoadCommand_RequiresExactlyOneArg(t *testing.T) {
	cmd := NewLoadCommand()
	if _, err := executeCommand(cmd); err == nil {
		t.Fatalf("expected error when no models-dir is given")
	}
}

func TestLoadCommand_ConfigNotFound(t *testing.T) {
	chdirTemp(t)
	modelsDir := t.TempDir()

	cmd := NewLoadCommand()
	_, err := executeCommand(cmd, modelsDir)
	assertConfigNotFound(t, err)
}
