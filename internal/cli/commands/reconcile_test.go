// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import "testing"

func TestNewReconcileCommand_RegistersSubcommands(t *testing.T) {
	cmd := NewReconcileCommand()

	for _, name := range []string{"check", "list", "resolve", "schedules"} {
		if _, _, err := cmd.Find([]string{name}); err != nil {
			t.Fatalf("expected to find %q subcommand, got error: %v", name, err)
		}
	}
}

func TestReconcileCheckCommand_ConfigNotFound(t *testing.T) {
	chdirTemp(t)

	cmd := NewReconcileCommand()
	_, err := executeCommand(cmd, "check", "orders", "--expected", "SUCCESS", "--warehouse", "SUCCESS")
	assertConfigNotFound(t, err)
}

func TestReconcileResolveCommand_RequiresResolvedBy(t *testing.T) {
	chdirTemp(t)

	cmd := NewReconcileCommand()
	if _, err := executeCommand(cmd, "resolve", "check-1"); err == nil {
		t.Fatalf("expected error when --resolved-by is not given")
	}
}

func TestReconcileListCommand_ConfigNotFound(t *testing.T) {
	chdirTemp(t)

	cmd := NewReconcileCommand()
	_, err := executeCommand(cmd, "list")
	assertConfigNotFound(t, err)
}
