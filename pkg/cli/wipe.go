package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/studiomerlo/dentsync/pkg/auth"
	"github.com/studiomerlo/dentsync/pkg/gcal"
	"github.com/studiomerlo/dentsync/pkg/router"
)

var (
	wipeStudio int
	wipeYes    bool
)

var wipeCmd = &cobra.Command{
	Use:   "wipe",
	Short: "Delete every event from a studio's calendar",
	Long: `Delete all events (past and future) from the calendar a studio routes
to, then clear the local sync map. The map must be cleared because its
event IDs no longer reference anything remote.

Examples:
  dentsync wipe --studio 1
  dentsync wipe --studio 0   (the default calendar, daily notes)`,
	Args: cobra.NoArgs,
	RunE: runWipe,
}

func init() {
	wipeCmd.Flags().IntVar(&wipeStudio, "studio", 1, "studio whose calendar to empty (0 = default calendar)")
	wipeCmd.Flags().BoolVar(&wipeYes, "yes", false, "skip the confirmation prompt")
}

func runWipe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	calendarID := router.New(cfg.Calendars).CalendarID(wipeStudio)
	if calendarID == "" {
		return fmt.Errorf("no calendar configured for studio %d", wipeStudio)
	}

	if !wipeYes && !confirm(cmd, fmt.Sprintf("Delete ALL events from calendar %s and clear the sync map", calendarID)) {
		fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
		return nil
	}

	srv, err := auth.Service(ctx, cfg.CredentialsFile, cfg.TokenFile)
	if err != nil {
		return fmt.Errorf("authenticate: %w", err)
	}

	deleted, err := gcal.Wipe(ctx, gcal.NewClient(srv), calendarID, func(done, total int) {
		fmt.Fprintf(cmd.OutOrStdout(), "\rDeleting events... %d/%d", done, total)
	})
	fmt.Fprintln(cmd.OutOrStdout())
	if err != nil {
		return fmt.Errorf("wipe calendar: %w", err)
	}

	store, closeStore, openErr := openStore(cfg)
	if openErr != nil {
		return openErr
	}
	defer closeStore()
	if err := store.Reset(); err != nil {
		return fmt.Errorf("calendar emptied but sync map reset failed: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d events, sync map cleared.\n", deleted)
	return nil
}
