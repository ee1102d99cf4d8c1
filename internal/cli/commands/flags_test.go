// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import "testing"

func TestResolveString_FlagBeatsEnvBeatsDefault(t *testing.T) {
	if got := resolveString("flag", "env", "default"); got != "flag" {
		t.Fatalf("expected flag to win, got %q", got)
	}
	if got := resolveString("", "env", "default"); got != "env" {
		t.Fatalf("expected env to win when flag is empty, got %q", got)
	}
	if got := resolveString("", "", "default"); got != "default" {
		t.Fatalf("expected default when flag and env are empty, got %q", got)
	}
}

func TestResolveBool_FlagOrEnvTrueWins(t *testing.T) {
	if !resolveBool(true, false, false) {
		t.Fatalf("expected flag=true to win")
	}
	if !resolveBool(false, true, false) {
		t.Fatalf("expected env=true to win when flag is false")
	}
	if resolveBool(false, false, false) {
		t.Fatalf("expected default to apply when flag and env are both false")
	}
}

func TestParseBoolEnv(t *testing.T) {
	cases := map[string]bool{
		"":      false,
		"true":  true,
		"false": false,
		"1":     true,
		"nope":  false,
	}
	for input, want := range cases {
		if got := parseBoolEnv(input); got != want {
			t.Fatalf("parseBoolEnv(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestResolveFlags_DefaultsWhenUnset(t *testing.T) {
	cmd := NewLoadCommand()
	flags := ResolveFlags(cmd)

	if flags.Config != "ironlayer.yml" {
		t.Fatalf("expected default config path, got %q", flags.Config)
	}
	if flags.Verbose || flags.DryRun {
		t.Fatalf("expected verbose and dry-run to default false")
	}
}
