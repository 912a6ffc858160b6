package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var resetYes bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear the local sync map",
	Long: `Forget every synced event ID and content hash. The next sync will treat
every appointment as new, so only do this after the remote calendars have
been emptied (see "dentsync wipe"), otherwise events will be duplicated.`,
	Args: cobra.NoArgs,
	RunE: runReset,
}

func init() {
	resetCmd.Flags().BoolVar(&resetYes, "yes", false, "skip the confirmation prompt")
}

func runReset(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !resetYes && !confirm(cmd, "Clear the sync map? The next sync will recreate every event") {
		fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
		return nil
	}

	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := store.Reset(); err != nil {
		return fmt.Errorf("reset sync map: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Sync map cleared.")
	return nil
}
