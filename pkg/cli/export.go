package cli

import (
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/studiomerlo/dentsync/pkg/export"
	"github.com/studiomerlo/dentsync/pkg/router"
)

var (
	exportMonth int
	exportYear  int
	exportOut   string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Dump the event bodies for a month without calling the API",
	Long: `Build the exact calendar event bodies a sync would send, route them to
their calendars, and write everything to a JSON file. Useful to validate
the normalizer and the studio routing without network access.`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

func init() {
	monthFlags(exportCmd, &exportMonth, &exportYear)
	exportCmd.Flags().StringVar(&exportOut, "out", "debug_appointments.json", "output file")
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	appts, skipped, err := loadMonth(cfg, time.Month(exportMonth), exportYear)
	if err != nil {
		return err
	}
	for _, s := range skipped {
		log.Printf("Skipping unparseable record (patient %q): %v", s.Raw.PatientID, s.Err)
	}

	entries, invalid := export.Events(appts, router.New(cfg.Calendars), cfg.Colors, loc)
	if err := export.Write(exportOut, entries); err != nil {
		return fmt.Errorf("write export: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Exported %d events to %s (%d invalid, %d unparseable)\n",
		len(entries), exportOut, len(invalid), len(skipped))
	return nil
}
