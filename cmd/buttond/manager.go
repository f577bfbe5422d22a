package main

import (
	"fmt"
	"runtime"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/srg/buttond/internal/button"
	"github.com/srg/buttond/internal/transport"
	"github.com/srg/buttond/internal/transport/bluez"
	"github.com/srg/buttond/internal/transport/goble"
	"github.com/srg/buttond/internal/transport/tinygoble"
	"github.com/srg/buttond/pkg/config"
)

// loadConfig resolves the effective configuration from the config file and
// command-line overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if reg, _ := cmd.Flags().GetString("registry"); reg != "" {
		cfg.RegistryPath = reg
	}
	return cfg, nil
}

// newTransport builds the selected BLE backend. On Linux the go-ble backend
// is paired with the BlueZ power monitor so radio transitions are observed.
func newTransport(cmd *cobra.Command, logger *logrus.Logger) (transport.Transport, error) {
	backend, _ := cmd.Flags().GetString("backend")
	switch backend {
	case "goble":
		var opts []goble.Option
		if runtime.GOOS == "linux" {
			if mon, err := bluez.NewMonitor(logger); err == nil {
				opts = append(opts, goble.WithRadioStates(mon.States()))
			} else {
				logger.WithError(err).Debug("BlueZ monitor unavailable, radio transitions not observed")
			}
		}
		return goble.New(logger, opts...)
	case "tinygo":
		return tinygoble.New(logger)
	default:
		return nil, fmt.Errorf("unknown backend %q (must be goble or tinygo)", backend)
	}
}

// newManager wires config, transport and registry into a live manager.
func newManager(cmd *cobra.Command, logger *logrus.Logger, restore bool) (*button.Manager, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	tr, err := newTransport(cmd, logger)
	if err != nil {
		return nil, fmt.Errorf("create BLE transport: %w", err)
	}

	mgr, err := button.NewManager(button.Options{
		Transport:    tr,
		RegistryPath: cfg.RegistryPath,
		Restore:      restore,
		Credentials: transport.Credentials{
			AppID:     cfg.AppID,
			AppSecret: cfg.AppSecret,
		},
		Logger:         logger,
		EventBuffer:    cfg.EventBuffer,
		ConnectTimeout: cfg.ConnectTimeout,
	})
	if err != nil {
		return nil, err
	}
	mgr.SetMinAllowedRSSI(cfg.MinAllowedRSSI)
	return mgr, nil
}
