// Package cmd implements the bdash CLI commands.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/bdash/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show current configuration",
	RunE:  runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
}

// configPath is the file loadConfig reads and saveConfig writes.
func configPath() string {
	if flagConfig != "" {
		return flagConfig
	}
	return config.Path()
}

func saveConfig(cfg config.Config) error {
	if flagConfig != "" {
		return config.SaveFile(flagConfig, cfg)
	}
	return config.Save(cfg)
}

func orNotSet(s string) string {
	if s == "" {
		return "not set"
	}
	return s
}

func runConfig(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	caps := cfg.Capabilities()

	if flagJSON {
		masked := cfg
		masked.Graph.ClientSecret = config.MaskSecret(cfg.Graph.ClientSecret)
		masked.Store.DSN = config.MaskSecret(cfg.Store.DSN)
		return printJSON(masked)
	}

	fmt.Printf("  Config file: %s\n", configPath())
	if flagConfig != "" || config.Exists() {
		fmt.Println("  Status: loaded")
	} else {
		fmt.Println("  Status: using defaults (no config file)")
	}
	fmt.Println()

	fmt.Println("  [SharePoint]")
	fmt.Printf("    Tenant ID:     %s\n", orNotSet(cfg.Graph.TenantID))
	fmt.Printf("    Client ID:     %s\n", orNotSet(cfg.Graph.ClientID))
	if cfg.Graph.ClientSecret != "" {
		fmt.Printf("    Client secret: %s\n", config.MaskSecret(cfg.Graph.ClientSecret))
	} else {
		fmt.Println("    Client secret: not set")
	}
	fmt.Printf("    Site ID:       %s\n", orNotSet(cfg.Graph.SiteID))
	fmt.Printf("    List ID:       %s\n", orNotSet(cfg.Graph.ListID))
	fmt.Printf("    Timeout:       %s\n", cfg.GraphTimeout())
	fmt.Printf("    Remote sync:   %v\n", caps.HasRemoteSync)
	fmt.Println()

	fmt.Println("  [Store]")
	fmt.Printf("    Driver:  %s\n", cfg.Store.Driver)
	if cfg.Store.DSN != "" {
		fmt.Printf("    DSN:     %s\n", config.MaskSecret(cfg.Store.DSN))
	} else {
		fmt.Println("    DSN:     not set (built-in sample data)")
	}
	fmt.Printf("    Timeout: %s\n", cfg.StoreTimeout())
	fmt.Println()

	fmt.Println("  [Sync]")
	fmt.Printf("    Schedule: %s\n", orNotSet(cfg.Sync.Schedule))
	fmt.Println()

	fmt.Println("  [Daemon]")
	fmt.Printf("    Address: %s\n", cfg.Daemon.Addr)
	fmt.Println()

	fmt.Println("  [Appearance]")
	fmt.Printf("    Theme:    %s\n", cfg.Appearance.Theme)
	fmt.Printf("    Currency: %s\n", cfg.Appearance.Currency)
	fmt.Println()

	fmt.Println("  Run `bdash setup` to reconfigure.")
	return nil
}
