// Package config holds the buttond application configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config holds application configuration. Zero values are filled from the
// default tags; a YAML file overrides them.
type Config struct {
	LogLevel       string        `yaml:"log_level" default:"info"`
	RegistryPath   string        `yaml:"registry_path" default:"buttons.json"`
	MinAllowedRSSI int           `yaml:"min_allowed_rssi" default:"-100"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" default:"30s"`
	EventBuffer    int           `yaml:"event_buffer" default:"64"`

	// App credentials passed to the button handshake. Provisioning of these
	// strings is outside this tool.
	AppID     string `yaml:"app_id"`
	AppSecret string `yaml:"app_secret"`
}

// Default returns the configuration with all default tags applied.
func Default() *Config {
	c := &Config{}
	defaults.SetDefaults(c)
	return c
}

// Load reads the YAML config at path on top of the defaults. A missing file
// is not an error; the defaults are returned.
func Load(path string) (*Config, error) {
	c := Default()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return c, nil
}

// NewLogger creates a configured logger instance.
func (c *Config) NewLogger() (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}

	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})
	return logger, nil
}
