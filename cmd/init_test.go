package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/equiptrack/maintsync/internal/config"
)

func TestInitCommand(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	got, _, err := runCommand(t, "init", "--api-base", "https://script.google.com/macros/s/abc/exec", "--sheet-id", "sheet-1")
	if err != nil {
		t.Fatalf("init command failed: %v", err)
	}

	configDir := filepath.Join(tempHome, ".maintsync")
	want := "Configuration initialized at " + configDir + "\n"
	if got != want {
		t.Errorf("init command output:\ngot:  %q\nwant: %q", got, want)
	}

	data, err := os.ReadFile(filepath.Join(configDir, "config.yaml"))
	if err != nil {
		t.Fatalf("failed to read config file: %v", err)
	}

	var saved map[string]map[string]any
	if err := yaml.Unmarshal(data, &saved); err != nil {
		t.Fatalf("failed to parse config file: %v", err)
	}
	if saved["server"]["url"] != "https://script.google.com/macros/s/abc/exec" {
		t.Errorf("unexpected server.url %v", saved["server"]["url"])
	}
	if saved["server"]["sheet_id"] != "sheet-1" {
		t.Errorf("unexpected server.sheet_id %v", saved["server"]["sheet_id"])
	}
	if saved["storage"]["secure_backend"] != config.SecureBackendKeyring {
		t.Errorf("unexpected storage.secure_backend %v", saved["storage"]["secure_backend"])
	}
	if saved["logging"]["level"] != "warn" {
		t.Errorf("expected logging.level warn, got %v", saved["logging"]["level"])
	}
	if strings.Contains(string(data), config.DefaultEncryptionKey) {
		t.Error("encryption key must never be written to the config file")
	}
}

func TestInitCommand_Defaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	if _, _, err := runCommand(t, "init"); err != nil {
		t.Fatalf("init command failed: %v", err)
	}
	data, err := os.ReadFile(config.GetConfigPath())
	if err != nil {
		t.Fatalf("failed to read config file: %v", err)
	}
	if !strings.Contains(string(data), config.DefaultAPIBase) {
		t.Errorf("expected default API base in config:\n%s", data)
	}
	if strings.Contains(string(data), "sheet_id") {
		t.Errorf("empty sheet id should be omitted:\n%s", data)
	}
}

func TestInitCommand_InsecureWarning(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	got, _, err := runCommand(t, "init", "--api-base", "http://192.0.2.10/exec")
	if err != nil {
		t.Fatalf("init command failed: %v", err)
	}
	if !strings.Contains(got, "Warning: http://192.0.2.10/exec uses plain HTTP") {
		t.Errorf("expected insecure warning, got %q", got)
	}
}

func TestInitCommand_InvalidURL(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	_, _, err := runCommand(t, "init", "--api-base", "not a url")
	if err == nil || !strings.Contains(err.Error(), "invalid configuration") {
		t.Fatalf("expected invalid configuration error, got %v", err)
	}
	if _, err := os.Stat(config.GetConfigPath()); !os.IsNotExist(err) {
		t.Error("config file must not be written for an invalid URL")
	}
}

func TestInitCommand_AlreadyExists(t *testing.T) {
	writeConfig(t, "test: data\n")

	_, _, err := runCommand(t, "init")
	if err == nil {
		t.Fatal("init command should have failed when config already exists")
	}
	if !strings.Contains(err.Error(), "configuration already exists") {
		t.Errorf("expected error about existing configuration, got: %v", err)
	}
}
