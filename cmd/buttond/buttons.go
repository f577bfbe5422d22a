package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/srg/buttond/internal/button"
	"github.com/srg/buttond/internal/registry"
)

// buttonsCmd represents the buttons command
var buttonsCmd = &cobra.Command{
	Use:   "buttons",
	Short: "List known buttons",
	Long: `List every button in the registry: identifier, transport address,
connection intent, verification status and last known signal strength.

Reads the registry directly; no radio access is needed.`,
	RunE: runButtonsCmd,
}

var buttonsFormat string

func init() {
	buttonsCmd.Flags().StringVarP(&buttonsFormat, "format", "f", "table", "Output format (table, json)")
}

func runButtonsCmd(cmd *cobra.Command, args []string) error {
	logger, err := configureLogger(cmd, "verbose")
	if err != nil {
		return err
	}
	if buttonsFormat != "table" && buttonsFormat != "json" {
		return fmt.Errorf("invalid format '%s': must be table or json", buttonsFormat)
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

	var records []button.Record
	store.Range(func(_ string, rec button.Record) bool {
		records = append(records, rec)
		return true
	})

	if buttonsFormat == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}

	if len(records) == 0 {
		fmt.Println("No known buttons")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "IDENTIFIER\tADDRESS\tNAME\tINTENT\tVERIFIED\tRSSI")
	for _, rec := range records {
		rssi := "-"
		if rec.LastKnownRSSI != nil {
			rssi = fmt.Sprintf("%d dBm", *rec.LastKnownRSSI)
		}
		verified := color.YellowString("no")
		if rec.Verified {
			verified = color.GreenString("yes")
		}
		name := rec.Name
		if name == "" {
			name = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			rec.Identifier, rec.Address, name, rec.Intent, verified, rssi)
	}
	return w.Flush()
}
