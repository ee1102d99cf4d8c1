// SPDX-License-Identifier: AGPL-3.0-or-later

package logging

import "testing"

func TestWithFieldsReturnsScopedLogger(t *testing.T) {
	base := NewNop()
	scoped := base.WithFields(NewField("tenant", "acme"))
	if scoped == nil {
		t.Fatal("expected a non-nil scoped logger")
	}
	// Should not panic regardless of level.
	scoped.Debug("hello")
	scoped.Info("hello")
	scoped.Warn("hello")
	scoped.Error("hello")
}

func TestNewLoggerVerboseVsQuiet(t *testing.T) {
	verbose := NewLogger(true)
	quiet := NewLogger(false)
	if verbose == nil || quiet == nil {
		t.Fatal("expected non-nil loggers")
	}
}
