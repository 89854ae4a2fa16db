package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Fallbacks used when neither the config file nor the environment sets a value.
const (
	DefaultAPIBase       = "https://script.google.com/macros/s/AKfycbx-maintsync-default/exec"
	DefaultEncryptionKey = "maintsync-local-default-key"
	DefaultTimeout       = 30 * time.Second
)

// Secure store backends.
const (
	SecureBackendKeyring   = "keyring"
	SecureBackendEncrypted = "encrypted"
)

// Environment variables.
const (
	EnvAPIBase       = "MAINTSYNC_API_BASE"
	EnvSheetID       = "MAINTSYNC_SHEET_ID"
	EnvEncryptionKey = "MAINTSYNC_ENCRYPTION_KEY"
	EnvLogLevel      = "MAINTSYNC_LOG_LEVEL"
	EnvStoragePath   = "MAINTSYNC_STORAGE_PATH"
)

// Config holds the client configuration
type Config struct {
	Server struct {
		URL     string        `yaml:"url"`
		SheetID string        `yaml:"sheet_id,omitempty"`
		Timeout time.Duration `yaml:"timeout,omitempty"`
	} `yaml:"server"`
	Storage struct {
		Path          string `yaml:"path"`
		SecureBackend string `yaml:"secure_backend"`
	} `yaml:"storage"`
	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`

	// EncryptionKey never touches the config file.
	EncryptionKey string `yaml:"-"`
}

// GetConfigDir returns the configuration directory
func GetConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = "."
	}
	return filepath.Join(home, ".maintsync")
}

// GetConfigPath returns the configuration file path
func GetConfigPath() string {
	return filepath.Join(GetConfigDir(), "config.yaml")
}

// Default returns a configuration with every field at its fallback value
func Default() *Config {
	cfg := &Config{}
	cfg.Server.URL = DefaultAPIBase
	cfg.Server.Timeout = DefaultTimeout
	cfg.Storage.Path = filepath.Join(GetConfigDir(), "store.db")
	cfg.Storage.SecureBackend = SecureBackendKeyring
	cfg.Logging.Level = "warn"
	cfg.EncryptionKey = DefaultEncryptionKey
	return cfg
}

// Load reads the config file (if any), applies environment overrides and
// validates the result. A .env file in the working directory is honoured.
func Load() (*Config, error) {
	// Missing .env is the normal case.
	_ = godotenv.Load()

	cfg := Default()

	data, err := os.ReadFile(GetConfigPath())
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg.applyEnv()
	cfg.fillDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvAPIBase); v != "" {
		c.Server.URL = v
	}
	if v := os.Getenv(EnvSheetID); v != "" {
		c.Server.SheetID = v
	}
	if v := os.Getenv(EnvEncryptionKey); v != "" {
		c.EncryptionKey = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(EnvStoragePath); v != "" {
		c.Storage.Path = v
	}
}

func (c *Config) fillDefaults() {
	def := Default()
	if c.Server.Timeout <= 0 {
		c.Server.Timeout = def.Server.Timeout
	}
	if c.Storage.Path == "" {
		c.Storage.Path = def.Storage.Path
	}
	if c.Storage.SecureBackend == "" {
		c.Storage.SecureBackend = def.Storage.SecureBackend
	}
	if c.Logging.Level == "" {
		c.Logging.Level = def.Logging.Level
	}
	if c.EncryptionKey == "" {
		c.EncryptionKey = def.EncryptionKey
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.URL == "" {
		return errors.New("server URL cannot be empty")
	}

	u, err := url.Parse(c.Server.URL)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("server URL must use http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("server URL must include a host")
	}

	switch c.Storage.SecureBackend {
	case "", SecureBackendKeyring, SecureBackendEncrypted:
	default:
		return fmt.Errorf("unknown secure backend %q (expected %s or %s)",
			c.Storage.SecureBackend, SecureBackendKeyring, SecureBackendEncrypted)
	}

	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown logging level %q", c.Logging.Level)
	}

	return nil
}

// IsInsecure reports whether the server URL sends credentials in clear text
// to a non-loopback host.
func (c *Config) IsInsecure() bool {
	return IsInsecureURL(c.Server.URL)
}

// IsInsecureURL is IsInsecure for an arbitrary endpoint.
func IsInsecureURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "http" {
		return false
	}

	host := u.Hostname()
	if host == "localhost" {
		return false
	}
	if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
		return false
	}
	return true
}

// Save writes the configuration file, creating the directory if needed
func (c *Config) Save() error {
	if err := os.MkdirAll(GetConfigDir(), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(GetConfigPath(), data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
