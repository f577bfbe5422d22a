package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	c := Default()

	assert.Equal(t, "info", c.LogLevel)
	assert.Equal(t, "buttons.json", c.RegistryPath)
	assert.Equal(t, -100, c.MinAllowedRSSI)
	assert.Equal(t, 30*time.Second, c.ConnectTimeout)
	assert.Equal(t, 64, c.EventBuffer)
	assert.Empty(t, c.AppID)
	assert.Empty(t, c.AppSecret)
}

func TestLoadMissingFile(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "no-such.yaml"))

	require.NoError(t, err, "a missing config file falls back to defaults")
	assert.Equal(t, "info", c.LogLevel)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level: debug
min_allowed_rssi: -70
app_id: my-app
app_secret: my-secret
`), 0o644))

	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", c.LogLevel)
	assert.Equal(t, -70, c.MinAllowedRSSI)
	assert.Equal(t, "my-app", c.AppID)
	assert.Equal(t, "my-secret", c.AppSecret)
	// Untouched keys keep their defaults.
	assert.Equal(t, "buttons.json", c.RegistryPath)
	assert.Equal(t, 30*time.Second, c.ConnectTimeout)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: [unclosed"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		want    logrus.Level
		wantErr bool
	}{
		{name: "debug", level: "debug", want: logrus.DebugLevel},
		{name: "info", level: "info", want: logrus.InfoLevel},
		{name: "warn", level: "warn", want: logrus.WarnLevel},
		{name: "invalid", level: "chatty", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			c.LogLevel = tt.level

			logger, err := c.NewLogger()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, logger.GetLevel())
		})
	}
}
