// Package settings resolves device-level preferences: the data endpoint, the
// sheet id, the theme and the device id.
package settings

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/equiptrack/maintsync/internal/config"
	"github.com/equiptrack/maintsync/internal/kvstore"
)

// ThemeMode is the UI colour scheme preference.
type ThemeMode string

const (
	ThemeLight  ThemeMode = "light"
	ThemeDark   ThemeMode = "dark"
	ThemeSystem ThemeMode = "system"
)

// ErrInvalidTheme is returned for an unknown theme mode.
var ErrInvalidTheme = errors.New("theme must be light, dark or system")

// Source says which layer an endpoint value came from.
type Source string

const (
	SourceDevice   Source = "device"
	SourceConfig   Source = "config"
	SourceFallback Source = "fallback"
)

// Endpoint is the resolved data endpoint.
type Endpoint struct {
	APIBase       string
	APIBaseSource Source
	SheetID       string
	SheetSource   Source
}

// Settings reads and writes preferences in store, falling back to cfg.
type Settings struct {
	store kvstore.Store
	cfg   *config.Config
}

// New creates settings over store. cfg may be nil.
func New(store kvstore.Store, cfg *config.Config) *Settings {
	return &Settings{store: store, cfg: cfg}
}

// Endpoint resolves the API base and sheet id: a device override wins over
// config and environment, which win over the built-in fallback.
func (s *Settings) Endpoint() (Endpoint, error) {
	var ep Endpoint

	base, src, err := s.resolve(kvstore.KeyAPIBase, s.configURL(), config.DefaultAPIBase)
	if err != nil {
		return Endpoint{}, err
	}
	ep.APIBase, ep.APIBaseSource = base, src

	sheet, src, err := s.resolve(kvstore.KeySheetID, s.configSheet(), "")
	if err != nil {
		return Endpoint{}, err
	}
	ep.SheetID, ep.SheetSource = sheet, src
	return ep, nil
}

func (s *Settings) resolve(key, fromConfig, fallback string) (string, Source, error) {
	v, err := s.store.GetString(key)
	switch {
	case err == nil && strings.TrimSpace(v) != "":
		return strings.TrimSpace(v), SourceDevice, nil
	case err != nil && !errors.Is(err, kvstore.ErrNotFound):
		return "", "", fmt.Errorf("failed to read %s: %w", key, err)
	}
	if fromConfig != "" {
		return fromConfig, SourceConfig, nil
	}
	return fallback, SourceFallback, nil
}

func (s *Settings) configURL() string {
	if s.cfg == nil {
		return ""
	}
	return strings.TrimSpace(s.cfg.Server.URL)
}

func (s *Settings) configSheet() string {
	if s.cfg == nil {
		return ""
	}
	return strings.TrimSpace(s.cfg.Server.SheetID)
}

// SetAPIBase stores a device override for the endpoint. An empty value
// removes the override.
func (s *Settings) SetAPIBase(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return s.store.Remove(kvstore.KeyAPIBase)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid API address: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid API address: scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("invalid API address: missing host")
	}
	return s.store.Set(kvstore.KeyAPIBase, raw)
}

// SetSheetID stores a device override for the sheet id. An empty value removes
// it.
func (s *Settings) SetSheetID(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return s.store.Remove(kvstore.KeySheetID)
	}
	return s.store.Set(kvstore.KeySheetID, id)
}

// Theme returns the stored theme, ThemeSystem when unset.
func (s *Settings) Theme() (ThemeMode, error) {
	v, err := s.store.GetString(kvstore.KeyThemeMode)
	if errors.Is(err, kvstore.ErrNotFound) {
		return ThemeSystem, nil
	}
	if err != nil {
		return "", err
	}
	mode, err := ParseTheme(v)
	if err != nil {
		return ThemeSystem, nil
	}
	return mode, nil
}

// SetTheme stores the theme.
func (s *Settings) SetTheme(mode ThemeMode) error {
	if _, err := ParseTheme(string(mode)); err != nil {
		return err
	}
	return s.store.Set(kvstore.KeyThemeMode, string(mode))
}

// ParseTheme parses a theme name.
func ParseTheme(v string) (ThemeMode, error) {
	switch ThemeMode(strings.ToLower(strings.TrimSpace(v))) {
	case ThemeLight:
		return ThemeLight, nil
	case ThemeDark:
		return ThemeDark, nil
	case ThemeSystem:
		return ThemeSystem, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidTheme, v)
}

// DeviceID returns the id of this installation, generating and storing a
// random one on first use.
func (s *Settings) DeviceID() (string, error) {
	v, err := s.store.GetString(kvstore.KeyDeviceID)
	if err == nil && v != "" {
		return v, nil
	}
	if err != nil && !errors.Is(err, kvstore.ErrNotFound) {
		return "", fmt.Errorf("failed to read device id: %w", err)
	}

	id := uuid.NewString()
	if err := s.store.Set(kvstore.KeyDeviceID, id); err != nil {
		return "", fmt.Errorf("failed to store device id: %w", err)
	}
	return id, nil
}
