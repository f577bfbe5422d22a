package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"unicode"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// formatVersion adds 'v' prefix if version starts with a digit
func formatVersion(ver string) string {
	if len(ver) > 0 && unicode.IsDigit(rune(ver[0])) {
		return "v" + ver
	}
	return ver
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "buttond",
	Short: "BLE button manager",
	Long: `Manager daemon and CLI for single-purpose BLE button peripherals:

- Scan and discover nearby buttons above a signal floor
- Track the durable registry of known buttons across restarts
- Maintain connections to buttons configured for autonomous reconnect
- Forget buttons so they become discoverable again

Known buttons and their connection intent survive process restarts; on
startup the persisted registry is ground truth and live connections
converge toward it.`,
	Version: formatVersion(version),
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Ctrl+C is a normal exit, not an error - exit silently
		if errors.Is(err, context.Canceled) {
			return
		}
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", err)
		os.Exit(1)
	}
}

func init() {
	// Silence Cobra's "Error:" prefix - main() prints clean errors
	rootCmd.SilenceErrors = true

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(buttonsCmd)
	rootCmd.AddCommand(forgetCmd)
	rootCmd.AddCommand(runCmd)

	// Global flags
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringP("config", "c", "", "Config file path (YAML)")
	rootCmd.PersistentFlags().String("registry", "", "Registry file path (overrides config)")
	rootCmd.PersistentFlags().String("backend", "goble", "BLE backend (goble, tinygo)")

	rootCmd.Flags().BoolP("version", "v", false, "Show version information")
}
