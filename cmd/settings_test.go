package main

import (
	"strings"
	"testing"

	"github.com/equiptrack/maintsync/internal/analytics"
	"github.com/equiptrack/maintsync/internal/kvstore"
	"github.com/equiptrack/maintsync/internal/settings"
)

func TestSettingsCommand(t *testing.T) {
	env := newCLIEnv(t)

	out, _, err := env.run(t, "settings")
	if err != nil {
		t.Fatalf("settings command failed: %v", err)
	}
	for _, want := range []string{
		"API base: " + env.endpoint + " (config)",
		"Sheet ID: (none) (fallback)",
		"Theme: system",
		"Device ID: ",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("settings output missing %q:\n%s", want, out)
		}
	}
}

func TestSettingsCommand_Overrides(t *testing.T) {
	env := newCLIEnv(t)

	out, _, err := env.run(t, "settings", "sheet-id", "sheet-42")
	if err != nil {
		t.Fatalf("settings sheet-id failed: %v", err)
	}
	if out != "Sheet ID set to: sheet-42\n" {
		t.Errorf("unexpected output %q", out)
	}

	out, _, err = env.run(t, "settings", "theme", "Dark")
	if err != nil {
		t.Fatalf("settings theme failed: %v", err)
	}
	if out != "Theme set to: dark\n" {
		t.Errorf("unexpected output %q", out)
	}
	if v, _ := env.store.GetString(kvstore.KeyThemeMode); v != string(settings.ThemeDark) {
		t.Errorf("expected stored theme dark, got %q", v)
	}

	out, _, err = env.run(t, "settings")
	if err != nil {
		t.Fatalf("settings command failed: %v", err)
	}
	if !strings.Contains(out, "Sheet ID: sheet-42 (device)") || !strings.Contains(out, "Theme: dark") {
		t.Errorf("overrides not shown:\n%s", out)
	}

	out, _, err = env.run(t, "settings", "sheet-id")
	if err != nil {
		t.Fatalf("clearing sheet-id failed: %v", err)
	}
	if out != "Sheet ID override removed\n" {
		t.Errorf("unexpected output %q", out)
	}
}

func TestSettingsCommand_Invalid(t *testing.T) {
	env := newCLIEnv(t)

	tests := []struct {
		name    string
		args    []string
		wantMsg string
	}{
		{"bad theme", []string{"settings", "theme", "purple"}, "theme must be"},
		{"bad scheme", []string{"settings", "api-base", "ftp://example.com"}, "scheme must be http or https"},
		{"missing host", []string{"settings", "api-base", "https://"}, "missing host"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := env.run(t, tt.args...)
			if err == nil || !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("expected error containing %q, got %v", tt.wantMsg, err)
			}
		})
	}
}

func TestSettingsCommand_APIBaseOverrideIsUsed(t *testing.T) {
	env := newCLIEnv(t)
	t.Setenv("MAINTSYNC_API_BASE", "http://127.0.0.1:1/unreachable")

	if _, _, err := env.run(t, "settings", "api-base", env.endpoint); err != nil {
		t.Fatalf("settings api-base failed: %v", err)
	}
	env.login(t, "tech", "tech123")
}

func TestStatsCommand(t *testing.T) {
	env := newCLIEnv(t)
	env.login(t, "tech", "tech123")
	if _, _, err := env.run(t, "sync"); err != nil {
		t.Fatalf("sync failed: %v", err)
	}

	out, _, err := env.run(t, "stats")
	if err != nil {
		t.Fatalf("stats command failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != len(analytics.Events) {
		t.Fatalf("expected %d lines, got %d:\n%s", len(analytics.Events), len(lines), out)
	}
	for _, want := range []string{"login ", "sync "} {
		found := false
		for _, l := range lines {
			if strings.HasPrefix(l, want) && strings.HasSuffix(l, " 1") {
				found = true
			}
		}
		if !found {
			t.Errorf("expected %q counter of 1:\n%s", strings.TrimSpace(want), out)
		}
	}
}
