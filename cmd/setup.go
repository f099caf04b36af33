package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/theirongolddev/bdash/internal/sharepoint"
	"github.com/theirongolddev/bdash/internal/tui"
	"github.com/theirongolddev/bdash/internal/tui/theme"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "First-time setup wizard",
	RunE:  runSetup,
}

var flagSetupCheck bool

func init() {
	setupCmd.Flags().BoolVar(&flagSetupCheck, "check", true, "Verify SharePoint credentials after saving")
	rootCmd.AddCommand(setupCmd)
}

func runSetup(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	theme.Init(cfg.Appearance.Theme)

	fmt.Println()
	fmt.Println("  Welcome to bdash!")
	fmt.Println()

	vals := tui.NewSetupValues(cfg)
	if err := tui.NewSetupForm(vals).Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			fmt.Println("  Setup cancelled, nothing saved.")
			return nil
		}
		return err
	}

	vals.Apply(&cfg)
	if err := saveConfig(cfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	fmt.Printf("  Saved to %s\n", configPath())

	caps := cfg.Capabilities()
	if !caps.HasPersistence {
		fmt.Println("  No store DSN: bdash will show the built-in sample data.")
	}
	if !caps.HasRemoteSync {
		fmt.Println("  SharePoint settings incomplete: sync stays disabled.")
		return nil
	}
	if !flagSetupCheck {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.GraphTimeout()+5*time.Second)
	defer cancel()
	client, err := sharepoint.FromConfig(ctx, cfg, nil)
	if err == nil {
		_, err = client.AcquireToken(ctx)
	}
	if err != nil {
		fmt.Printf("  Could not sign in to Microsoft Graph: %v\n", err)
		return nil
	}
	fmt.Println("  Signed in to Microsoft Graph. Run `bdash sync` to pull requests.")
	return nil
}
