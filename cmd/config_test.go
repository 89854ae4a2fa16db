package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/equiptrack/maintsync/internal/config"
)

const baseConfigYAML = `server:
  url: https://script.google.com/macros/s/test/exec
storage:
  path: /tmp/maintsync-test.db
  secure_backend: keyring
logging:
  level: info
`

// writeConfig points HOME at a temp dir holding a config file with content.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, key := range []string{config.EnvAPIBase, config.EnvSheetID, config.EnvLogLevel, config.EnvStoragePath} {
		t.Setenv(key, "")
	}

	configDir := filepath.Join(home, ".maintsync")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}
	configPath := filepath.Join(configDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return configPath
}

func TestConfigShowCommand(t *testing.T) {
	writeConfig(t, `server:
  url: http://test:9090/exec
  sheet_id: sheet-1
  timeout: 5s
storage:
  path: /test/store.db
  secure_backend: encrypted
logging:
  level: debug
`)

	got, _, err := runCommand(t, "config", "show")
	if err != nil {
		t.Fatalf("config show command failed: %v", err)
	}

	expectedParts := []string{
		"Server:",
		"URL: http://test:9090/exec",
		"Sheet ID: sheet-1",
		"Timeout: 5s",
		"Storage:",
		"Path: /test/store.db",
		"Secure backend: encrypted",
		"Logging:",
		"Level: debug",
	}
	for _, part := range expectedParts {
		if !strings.Contains(got, part) {
			t.Errorf("output missing expected part: %s\nGot:\n%s", part, got)
		}
	}
}

func TestConfigShowCommand_WithEnvOverride(t *testing.T) {
	writeConfig(t, baseConfigYAML)
	t.Setenv(config.EnvAPIBase, "https://override.example/exec")
	t.Setenv(config.EnvLogLevel, "error")

	got, _, err := runCommand(t, "config", "show")
	if err != nil {
		t.Fatalf("config show command failed: %v", err)
	}
	for _, part := range []string{"URL: https://override.example/exec", "Level: error", "Sheet ID: (none)"} {
		if !strings.Contains(got, part) {
			t.Errorf("output missing expected part: %s\nGot:\n%s", part, got)
		}
	}
}

func TestConfigSetCommand_AllFields(t *testing.T) {
	tests := []struct {
		key   string
		value string
		check func(cfg map[string]map[string]any) any
	}{
		{"server.url", "https://test.com/exec", func(c map[string]map[string]any) any { return c["server"]["url"] }},
		{"server.sheet_id", "sheet-9", func(c map[string]map[string]any) any { return c["server"]["sheet_id"] }},
		{"server.timeout", "45s", func(c map[string]map[string]any) any { return c["server"]["timeout"] }},
		{"storage.path", "/custom/store.db", func(c map[string]map[string]any) any { return c["storage"]["path"] }},
		{"storage.secure_backend", "encrypted", func(c map[string]map[string]any) any { return c["storage"]["secure_backend"] }},
		{"logging.level", "debug", func(c map[string]map[string]any) any { return c["logging"]["level"] }},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			configPath := writeConfig(t, baseConfigYAML)

			got, _, err := runCommand(t, "config", "set", tt.key, tt.value)
			if err != nil {
				t.Fatalf("config set command failed: %v", err)
			}
			expected := "Updated " + tt.key + " to: " + tt.value + "\n"
			if got != expected {
				t.Errorf("config set output:\ngot:  %q\nwant: %q", got, expected)
			}

			data, err := os.ReadFile(configPath)
			if err != nil {
				t.Fatalf("failed to read config file: %v", err)
			}
			var saved map[string]map[string]any
			if err := yaml.Unmarshal(data, &saved); err != nil {
				t.Fatalf("failed to parse config file: %v", err)
			}
			// yaml.v3 writes durations as strings like 45s
			if v := tt.check(saved); v != tt.value {
				t.Errorf("saved %s = %v, want %v", tt.key, v, tt.value)
			}
		})
	}
}

func TestConfigSetCommand_InvalidValue(t *testing.T) {
	tests := []struct {
		name        string
		key         string
		value       string
		expectedErr string
	}{
		{"bad scheme", "server.url", "ftp://example.com", "must use http or https"},
		{"bad timeout", "server.timeout", "soon", "invalid timeout"},
		{"bad backend", "storage.secure_backend", "vault", "unknown secure backend"},
		{"bad level", "logging.level", "verbose", "unknown logging level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := writeConfig(t, baseConfigYAML)

			_, _, err := runCommand(t, "config", "set", tt.key, tt.value)
			if err == nil {
				t.Fatal("config set should have failed")
			}
			if !strings.Contains(err.Error(), tt.expectedErr) {
				t.Errorf("expected error containing %q, got: %s", tt.expectedErr, err.Error())
			}

			data, err := os.ReadFile(configPath)
			if err != nil {
				t.Fatalf("failed to read config file: %v", err)
			}
			if string(data) != baseConfigYAML {
				t.Errorf("config file should be unchanged after a failed set, got:\n%s", data)
			}
		})
	}
}

func TestConfigSetCommand_InvalidKey(t *testing.T) {
	writeConfig(t, baseConfigYAML)

	tests := []struct {
		name        string
		key         string
		expectedErr string
	}{
		{"invalid section", "invalid.field", "unknown config section: invalid"},
		{"invalid server field", "server.invalid", "unknown server field: invalid"},
		{"invalid storage field", "storage.invalid", "unknown storage field: invalid"},
		{"invalid logging field", "logging.invalid", "unknown logging field: invalid"},
		{"invalid key format", "invalidkey", "invalid key format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := runCommand(t, "config", "set", tt.key, "value")
			if err == nil {
				t.Fatal("config set should have failed with invalid key")
			}
			if !strings.Contains(err.Error(), tt.expectedErr) {
				t.Errorf("expected error containing %q, got: %s", tt.expectedErr, err.Error())
			}
		})
	}
}

func TestConfigKeyCompletion(t *testing.T) {
	keys, _ := configKeyCompletion(configSetCmd, nil, "")
	if len(keys) != 6 {
		t.Errorf("expected 6 completions, got %d", len(keys))
	}
	if keys, _ := configKeyCompletion(configSetCmd, []string{"server.url"}, ""); keys != nil {
		t.Errorf("expected no completions for the value, got %v", keys)
	}
}
