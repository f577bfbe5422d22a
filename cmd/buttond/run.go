package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/srg/buttond/internal/button"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the button manager daemon",
	Long: `Restore the registry and keep it live: buttons whose connection intent
is wantConnected reconnect autonomously whenever the radio allows, and
every manager event is printed as it happens.

With --scan, discovery runs continuously as well, so new buttons join
the registry while the daemon is up.`,
	RunE: runRunCmd,
}

var (
	runScan    bool
	runConnect []string
	runVerbose bool
)

func init() {
	runCmd.Flags().BoolVar(&runScan, "scan", false, "Also scan for new buttons continuously")
	runCmd.Flags().StringSliceVar(&runConnect, "connect", nil, "Identifiers to set wantConnected on startup")
	runCmd.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "Enable debug logging")
}

func runRunCmd(cmd *cobra.Command, args []string) error {
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

	for _, raw := range runConnect {
		id, err := button.ParseIdentifier(raw)
		if err != nil {
			return err
		}
		b, ok := mgr.KnownButtons()[id]
		if !ok {
			return fmt.Errorf("%w: %s", button.ErrUnknownButton, id)
		}
		if err := b.Connect(); err != nil {
			return err
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	fmt.Printf("Button manager running, %d known button(s)\n", len(mgr.KnownButtons()))

	for {
		select {
		case <-sigCh:
			fmt.Println("\nShutting down...")
			return nil
		case ev, ok := <-mgr.Events():
			if !ok {
				return nil
			}
			printEvent(mgr, ev)
			if runScan && ev.Type == button.EventRadioStateChanged {
				// Silent no-op until the radio is powered on.
				if err := mgr.StartScan(); err != nil {
					return err
				}
			}
		}
	}
}

func printEvent(mgr *button.Manager, ev button.Event) {
	switch ev.Type {
	case button.EventRadioStateChanged:
		fmt.Printf("radio: %s\n", ev.RadioState)
	case button.EventRestorationComplete:
		fmt.Printf("restored %d button(s)\n", len(mgr.KnownButtons()))
	case button.EventButtonDiscovered:
		fmt.Printf("%s %s (%d dBm)\n", color.GreenString("discovered"), ev.Identifier, ev.RSSI)
	case button.EventButtonConnected:
		fmt.Printf("%s %s %s\n", color.GreenString("connected"), ev.Identifier, ev.Button.Name())
	case button.EventButtonDisconnected:
		fmt.Printf("%s %s\n", color.YellowString("disconnected"), ev.Identifier)
	case button.EventForgetCompleted:
		if ev.Err != nil {
			fmt.Printf("%s %s: %v\n", color.RedString("forget failed to persist"), ev.Identifier, ev.Err)
		} else {
			fmt.Printf("forgot %s\n", ev.Identifier)
		}
	}
}
