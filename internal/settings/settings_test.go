package settings

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/equiptrack/maintsync/internal/config"
	"github.com/equiptrack/maintsync/internal/kvstore"
)

func TestSettings_Endpoint(t *testing.T) {
	cfg := config.Default()
	cfg.Server.URL = "https://script.google.com/macros/s/from-config/exec"
	cfg.Server.SheetID = "sheet-config"

	tests := []struct {
		name       string
		cfg        *config.Config
		device     map[string]string
		wantBase   string
		wantSource Source
		wantSheet  string
		wantSheetS Source
	}{
		{
			name:       "fallback",
			wantBase:   config.DefaultAPIBase,
			wantSource: SourceFallback,
			wantSheetS: SourceFallback,
		},
		{
			name:       "config",
			cfg:        cfg,
			wantBase:   cfg.Server.URL,
			wantSource: SourceConfig,
			wantSheet:  "sheet-config",
			wantSheetS: SourceConfig,
		},
		{
			name: "device override wins",
			cfg:  cfg,
			device: map[string]string{
				kvstore.KeyAPIBase: "https://script.google.com/macros/s/device/exec",
				kvstore.KeySheetID: "sheet-device",
			},
			wantBase:   "https://script.google.com/macros/s/device/exec",
			wantSource: SourceDevice,
			wantSheet:  "sheet-device",
			wantSheetS: SourceDevice,
		},
		{
			name:       "blank override ignored",
			cfg:        cfg,
			device:     map[string]string{kvstore.KeyAPIBase: "  "},
			wantBase:   cfg.Server.URL,
			wantSource: SourceConfig,
			wantSheet:  "sheet-config",
			wantSheetS: SourceConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := kvstore.NewMemoryStore()
			for k, v := range tt.device {
				require.NoError(t, store.Set(k, v))
			}

			ep, err := New(store, tt.cfg).Endpoint()
			require.NoError(t, err)
			assert.Equal(t, tt.wantBase, ep.APIBase)
			assert.Equal(t, tt.wantSource, ep.APIBaseSource)
			assert.Equal(t, tt.wantSheet, ep.SheetID)
			assert.Equal(t, tt.wantSheetS, ep.SheetSource)
		})
	}
}

func TestSettings_SetAPIBase(t *testing.T) {
	store := kvstore.NewMemoryStore()
	s := New(store, nil)

	require.NoError(t, s.SetAPIBase("https://example.com/exec"))
	ep, err := s.Endpoint()
	require.NoError(t, err)
	assert.Equal(t, SourceDevice, ep.APIBaseSource)

	assert.Error(t, s.SetAPIBase("ftp://example.com"))
	assert.Error(t, s.SetAPIBase("https://"))

	require.NoError(t, s.SetAPIBase(""))
	_, err = store.GetString(kvstore.KeyAPIBase)
	assert.ErrorIs(t, err, kvstore.ErrNotFound)
}

func TestSettings_Theme(t *testing.T) {
	store := kvstore.NewMemoryStore()
	s := New(store, nil)

	mode, err := s.Theme()
	require.NoError(t, err)
	assert.Equal(t, ThemeSystem, mode)

	require.NoError(t, s.SetTheme(ThemeDark))
	mode, err = s.Theme()
	require.NoError(t, err)
	assert.Equal(t, ThemeDark, mode)

	assert.ErrorIs(t, s.SetTheme("neon"), ErrInvalidTheme)

	require.NoError(t, store.Set(kvstore.KeyThemeMode, "garbage"))
	mode, err = s.Theme()
	require.NoError(t, err)
	assert.Equal(t, ThemeSystem, mode)

	parsed, err := ParseTheme(" LIGHT ")
	require.NoError(t, err)
	assert.Equal(t, ThemeLight, parsed)
}

func TestSettings_DeviceID(t *testing.T) {
	s := New(kvstore.NewMemoryStore(), nil)

	first, err := s.DeviceID()
	require.NoError(t, err)
	_, err = uuid.Parse(first)
	require.NoError(t, err)

	second, err := s.DeviceID()
	require.NoError(t, err)
	assert.Equal(t, first, second, "device id is stable once generated")
}
