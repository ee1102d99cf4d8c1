// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"bytes"
	"strings"
	"testing"

	"ironlayer/pkg/differ"
)

func TestNewDiffCommand_HasExpectedMetadata(t *testing.T) {
	cmd := NewDiffCommand()

	if cmd.Use != "diff <models-dir>" {
		t.Fatalf("expected Use to be 'diff <models-dir>', got %q", cmd.Use)
	}
	if cmd.Short == "" {
		t.Fatalf("expected Short description to be non-empty")
	}
}

func TestDiffCommand_ConfigNotFound(t *testing.T) {
	chdirTemp(t)
	modelsDir := t.TempDir()

	cmd := NewDiffCommand()
	_, err := executeCommand(cmd, modelsDir)
	assertConfigNotFound(t, err)
}

func TestPrintDiff_ListsEachCategory(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := printDiff(buf, differ.Result{Added: []string{"orders"}, Removed: nil, Modified: []string{"customers"}}); err != nil {
		t.Fatalf("printDiff returned error: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"added: orders", "removed: (none)", "modified: customers"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected output to contain %q, got: %q", want, out)
		}
	}
}
