// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import "testing"

func TestNewApplyCommand_HasExpectedMetadata(t *testing.T) {
	cmd := NewApplyCommand()

	if cmd.Use != "apply <plan-id> <models-dir>" {
		t.Fatalf("expected Use to be 'apply <plan-id> <models-dir>', got %q", cmd.Use)
	}
	for _, name := range []string{"approved-by", "auto-approve", "role", "environment", "cluster-size"} {
		if cmd.Flags().Lookup(name) == nil {
			t.Fatalf("expected --%s flag to be registered", name)
		}
	}
}

func TestApplyCommand_RequiresTwoArgs(t *testing.T) {
	cmd := NewApplyCommand()
	if _, err := executeCommand(cmd, "plan-1"); err == nil {
		t.Fatalf("expected error when models-dir is missing")
	}
}

func TestApplyCommand_ConfigNotFound(t *testing.T) {
	chdirTemp(t)
	modelsDir := t.TempDir()

	cmd := NewApplyCommand()
	_, err := executeCommand(cmd, "plan-1", modelsDir)
	assertConfigNotFound(t, err)
}
