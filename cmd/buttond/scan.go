package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/srg/buttond/internal/button"
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for new buttons",
	Long: `Scan for advertising buttons above the configured signal floor.

Each newly discovered button is added to the registry unverified and
printed as it appears. Buttons already in the registry are never
re-discovered; forget them first to free their identifier.`,
	RunE: runScanCmd,
}

var (
	scanDuration time.Duration
	scanMinRSSI  int
	scanVerbose  bool
)

func init() {
	scanCmd.Flags().DurationVarP(&scanDuration, "duration", "d", 30*time.Second, "Scan duration (0 for indefinite)")
	scanCmd.Flags().IntVar(&scanMinRSSI, "min-rssi", button.DefaultMinAllowedRSSI, "Discovery signal floor in dBm, [-100, 0]")
	scanCmd.Flags().BoolVarP(&scanVerbose, "verbose", "v", false, "Enable debug logging")
}

func runScanCmd(cmd *cobra.Command, args []string) error {
	logger, err := configureLogger(cmd, "verbose")
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true

	mgr, err := newManager(cmd, logger, true)
	if err != nil {
		return err
	}
	defer mgr.Close()
	mgr.SetMinAllowedRSSI(scanMinRSSI)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if scanDuration > 0 {
		ctx, cancel = context.WithTimeout(ctx, scanDuration)
		defer cancel()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		fmt.Println("\nCtrl+C pressed, stopping scan...")
		cancel()
	}()

	fmt.Printf("Scanning for buttons (floor %d dBm)...\n", mgr.MinAllowedRSSI())

	discovered := 0
	for {
		select {
		case <-ctx.Done():
			_ = mgr.StopScan()
			fmt.Printf("Scan finished, %d new button(s) discovered\n", discovered)
			return nil
		case ev, ok := <-mgr.Events():
			if !ok {
				return nil
			}
			switch ev.Type {
			case button.EventRadioStateChanged:
				// No-op until the radio is powered on; redundant starts
				// are no-ops too.
				if err := mgr.StartScan(); err != nil {
					return err
				}
			case button.EventButtonDiscovered:
				discovered++
				fmt.Printf("%s  %s  %d dBm\n",
					color.GreenString("discovered"), ev.Identifier, ev.RSSI)
			}
		}
	}
}
