// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import "testing"

func TestNewAuditCommand_RegistersSubcommands(t *testing.T) {
	cmd := NewAuditCommand()

	for _, name := range []string{"log", "verify"} {
		if _, _, err := cmd.Find([]string{name}); err != nil {
			t.Fatalf("expected to find %q subcommand, got error: %v", name, err)
		}
	}
}

func TestAuditLogCommand_ConfigNotFound(t *testing.T) {
	chdirTemp(t)

	cmd := NewAuditCommand()
	_, err := executeCommand(cmd, "log")
	assertConfigNotFound(t, err)
}

func TestAuditVerifyCommand_ConfigNotFound(t *testing.T) {
	chdirTemp(t)

	cmd := NewAuditCommand()
	_, err := executeCommand(cmd, "verify")
	assertConfigNotFound(t, err)
}
