package main

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatVersion(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "numeric version gets v prefix", input: "1.2.3", expected: "v1.2.3"},
		{name: "already prefixed", input: "v1.2.3", expected: "v1.2.3"},
		{name: "dev build unchanged", input: "dev", expected: "dev"},
		{name: "empty", input: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, formatVersion(tt.input))
		})
	}
}

func TestConfigureLogger(t *testing.T) {
	// GOAL: Verify --log-level takes precedence over --verbose and invalid
	// levels error instead of silently defaulting.

	newCmd := func() *cobra.Command {
		cmd := &cobra.Command{Use: "test"}
		cmd.Flags().String("log-level", "", "")
		cmd.Flags().Bool("verbose", false, "")
		return cmd
	}

	t.Run("defaults to panic level", func(t *testing.T) {
		logger, err := configureLogger(newCmd(), "verbose")
		require.NoError(t, err)
		assert.Equal(t, logrus.PanicLevel, logger.GetLevel())
	})

	t.Run("verbose enables debug", func(t *testing.T) {
		cmd := newCmd()
		require.NoError(t, cmd.Flags().Set("verbose", "true"))

		logger, err := configureLogger(cmd, "verbose")
		require.NoError(t, err)
		assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	})

	t.Run("log-level wins over verbose", func(t *testing.T) {
		cmd := newCmd()
		require.NoError(t, cmd.Flags().Set("verbose", "true"))
		require.NoError(t, cmd.Flags().Set("log-level", "warn"))

		logger, err := configureLogger(cmd, "verbose")
		require.NoError(t, err)
		assert.Equal(t, logrus.WarnLevel, logger.GetLevel())
	})

	t.Run("invalid level rejected", func(t *testing.T) {
		cmd := newCmd()
		require.NoError(t, cmd.Flags().Set("log-level", "chatty"))

		_, err := configureLogger(cmd, "verbose")
		assert.ErrorContains(t, err, "invalid log level")
	})
}
