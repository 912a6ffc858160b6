package cli

import (
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/studiomerlo/dentsync/pkg/auth"
	"github.com/studiomerlo/dentsync/pkg/engine"
	"github.com/studiomerlo/dentsync/pkg/gcal"
	"github.com/studiomerlo/dentsync/pkg/plan"
	"github.com/studiomerlo/dentsync/pkg/router"
)

var (
	syncMonth  int
	syncYear   int
	syncStudio int
	syncDryRun bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile a month of appointments with Google Calendar",
	Long: `Read the appointment book for a month, diff it against the local sync
map, and create or update the corresponding calendar events. Unchanged
appointments are skipped.

With --dry-run the plan is printed and nothing is sent.

Examples:
  dentsync sync
  dentsync sync --month 7 --year 2026
  dentsync sync --studio 2 --dry-run`,
	Args: cobra.NoArgs,
	RunE: runSync,
}

func init() {
	monthFlags(syncCmd, &syncMonth, &syncYear)
	syncCmd.Flags().IntVar(&syncStudio, "studio", 0, "sync only this studio (0 = all)")
	syncCmd.Flags().BoolVar(&syncDryRun, "dry-run", false, "plan only, no remote calls")
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	appts, skipped, err := loadMonth(cfg, time.Month(syncMonth), syncYear)
	if err != nil {
		return err
	}
	for _, s := range skipped {
		log.Printf("Skipping unparseable record (patient %q): %v", s.Raw.PatientID, s.Err)
	}
	if syncStudio > 0 {
		filtered := appts[:0]
		for _, a := range appts {
			if a.Studio == syncStudio {
				filtered = append(filtered, a)
			}
		}
		appts = filtered
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Loaded %d appointments for %04d-%02d (%d unparseable)\n",
		len(appts), syncYear, syncMonth, len(skipped))

	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	if syncDryRun {
		snapshot, err := store.Load()
		if err != nil {
			return err
		}
		p := plan.Build(appts, snapshot)
		fmt.Fprintf(cmd.OutOrStdout(), "Plan: %d to create, %d to update, %d unchanged",
			len(p.Creates), len(p.Updates), len(p.Skips))
		if p.Collisions > 0 {
			fmt.Fprintf(cmd.OutOrStdout(), " (%d identity collisions, later record wins)", p.Collisions)
		}
		fmt.Fprintln(cmd.OutOrStdout())
		return nil
	}

	srv, err := auth.Service(ctx, cfg.CredentialsFile, cfg.TokenFile)
	if err != nil {
		return fmt.Errorf("authenticate: %w", err)
	}

	var limiter *rate.Limiter
	if cfg.Sync.RatePerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.Sync.RatePerMinute)), 1)
	}

	eng := engine.New(gcal.NewClient(srv), store, router.New(cfg.Calendars), engine.Options{
		Colors:          cfg.Colors,
		Location:        loc,
		ChunkSize:       cfg.Sync.ChunkSize,
		MaxAttempts:     cfg.Sync.MaxAttempts,
		BackoffCap:      time.Duration(cfg.Sync.BackoffCapSeconds) * time.Second,
		Limiter:         limiter,
		DiagnosticsPath: cfg.DiagnosticsFile,
		Progress:        logProgress,
	})

	sum, err := eng.Run(ctx, appts)
	if sum != nil {
		fmt.Fprintln(cmd.OutOrStdout(), sum.String())
		if sum.Failed > 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "Failed items were recorded in %s\n", cfg.DiagnosticsFile)
		}
	}
	if err != nil {
		return fmt.Errorf("sync aborted: %w", err)
	}
	return nil
}

func logProgress(ev engine.Event) {
	switch ev.Status {
	case engine.StatusRetrying:
		log.Printf("[%d/%d] %s %s: rate limited, retry %d in %s", ev.Index, ev.Total, ev.Action, ev.Summary, ev.Attempt, ev.Wait)
	case engine.StatusFailed:
		log.Printf("[%d/%d] %s %s: FAILED: %v", ev.Index, ev.Total, ev.Action, ev.Summary, ev.Err)
	case engine.StatusInvalid:
		log.Printf("[%d/%d] %s: skipped, nothing to display", ev.Index, ev.Total, ev.Identity)
	default:
		log.Printf("[%d/%d] %s %s: ok", ev.Index, ev.Total, ev.Action, ev.Summary)
	}
}
