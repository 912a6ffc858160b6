package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/studiomerlo/dentsync/pkg/auth"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authorize access to Google Calendar",
	Long: `Discard any cached token and run the browser authorization flow. The
new token is saved for subsequent runs.`,
	Args: cobra.NoArgs,
	RunE: runAuth,
}

func runAuth(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := auth.ClearToken(cfg.TokenFile); err != nil {
		return fmt.Errorf("remove token file %s: %w (delete it manually)", cfg.TokenFile, err)
	}
	if _, err := auth.Service(cmd.Context(), cfg.CredentialsFile, cfg.TokenFile); err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Authentication successful. Token saved to %s\n", cfg.TokenFile)
	return nil
}
