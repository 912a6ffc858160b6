// Package cli wires the dentsync commands.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/studiomerlo/dentsync/pkg/agenda"
	"github.com/studiomerlo/dentsync/pkg/config"
	"github.com/studiomerlo/dentsync/pkg/syncmap"
	"github.com/studiomerlo/dentsync/pkg/windent"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "dentsync",
	Short: "Sync the windent appointment book to Google Calendar",
	Long: `dentsync reads the practice's legacy appointment tables and mirrors
them onto per-studio Google Calendars. A local sync map keeps repeated
runs idempotent: unchanged appointments are skipped, modified ones are
updated in place.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config file (default "+config.DefaultPath()+")")
	rootCmd.AddCommand(syncCmd, exportCmd, resetCmd, wipeCmd, authCmd)
}

// Execute runs the CLI. SIGINT and SIGTERM cancel the context so a running
// sync stops cleanly between items.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// openStore returns the configured sync map store and a close function.
func openStore(cfg *config.Config) (syncmap.Store, func(), error) {
	switch cfg.Store.Backend {
	case "sqlite":
		st, err := syncmap.OpenSQLite(cfg.Store.Path)
		if err != nil {
			return nil, nil, err
		}
		return st, func() { _ = st.Close() }, nil
	default:
		return syncmap.NewFileStore(cfg.Store.Path), func() {}, nil
	}
}

// loadMonth reads and normalizes one month of the appointment book.
func loadMonth(cfg *config.Config, month time.Month, year int) ([]agenda.Appointment, []agenda.SkippedRecord, error) {
	src := windent.NewDBFSource(cfg.Windent.AppointmentsDBF, cfg.Windent.PatientsDBF)
	names, err := src.PatientNames()
	if err != nil {
		return nil, nil, fmt.Errorf("read patients table: %w", err)
	}
	raws, err := src.Appointments(month, year)
	if err != nil {
		return nil, nil, fmt.Errorf("read appointments table: %w", err)
	}
	appts, skipped := agenda.NormalizeAll(raws, names)
	return appts, skipped, nil
}

// confirm asks the user before destructive operations; --yes skips it.
func confirm(cmd *cobra.Command, prompt string) bool {
	fmt.Fprintf(cmd.OutOrStdout(), "%s [y/N]: ", prompt)
	reader := bufio.NewReader(cmd.InOrStdin())
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

func monthFlags(cmd *cobra.Command, month *int, year *int) {
	now := time.Now()
	cmd.Flags().IntVar(month, "month", int(now.Month()), "month to process (1-12)")
	cmd.Flags().IntVar(year, "year", now.Year(), "year to process")
}
