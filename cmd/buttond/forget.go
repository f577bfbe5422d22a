package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/srg/buttond/internal/button"
	"github.com/srg/buttond/internal/registry"
)

// forgetCmd represents the forget command
var forgetCmd = &cobra.Command{
	Use:   "forget <identifier>",
	Short: "Forget a known button",
	Long: `Remove a button from the registry. Its identifier becomes eligible for
fresh discovery on the next scan, as a new unverified button.`,
	Args: cobra.ExactArgs(1),
	RunE: runForgetCmd,
}

func runForgetCmd(cmd *cobra.Command, args []string) error {
	logger, err := configureLogger(cmd, "verbose")
	if err != nil {
		return err
	}

	id, err := button.ParseIdentifier(args[0])
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	store, err := registry.Open[button.Record](cfg.RegistryPath, logger)
	if err != nil {
		return err
	}

	if err := store.Delete(id.String()); err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			return fmt.Errorf("%w: %s", button.ErrUnknownButton, id)
		}
		return err
	}
	fmt.Printf("Forgot button %s\n", id)
	return nil
}
