package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iocviewer/internal/threat"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "iocview.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
endpoint: https://intel.example.org/api
default_source: alienvault
debounce: 150ms
overscan: 4
request_timeout: 5s
max_attempts: 2
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://intel.example.org/api", cfg.Endpoint)
	assert.Equal(t, threat.SourceAlienVault, cfg.DefaultSource)
	assert.Equal(t, 150*time.Millisecond, cfg.Debounce)
	assert.Equal(t, 4, cfg.Overscan)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 2, cfg.MaxAttempts)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "endpoint: http://file.example:8000\n")
	t.Setenv("IOCVIEW_ENDPOINT", "http://env.example:9000")
	t.Setenv("IOCVIEW_SOURCE", "alienvault")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://env.example:9000", cfg.Endpoint)
	assert.Equal(t, threat.SourceAlienVault, cfg.DefaultSource)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	_, err := Load(writeConfig(t, "endpoint: http://localhost:8000\nrow_size: 32\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row_size")
}

func TestLoadEmptyFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	tests := map[string]struct {
		yaml string
		want error
	}{
		"endpoint without scheme": {yaml: "endpoint: localhost:8000\n", want: ErrEndpointNotValid},
		"unknown source":          {yaml: "default_source: misp\n", want: threat.ErrUnknownSource},
		"zero debounce":           {yaml: "debounce: 0s\n", want: ErrDebounceNotValid},
		"negative overscan":       {yaml: "overscan: -2\n", want: ErrOverscanNegative},
		"no attempts":             {yaml: "max_attempts: 0\n", want: ErrAttemptsNotValid},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.yaml))
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
