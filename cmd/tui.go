package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/theirongolddev/bdash/internal/config"
	"github.com/theirongolddev/bdash/internal/logging"
	"github.com/theirongolddev/bdash/internal/tui"
	"github.com/theirongolddev/bdash/internal/tui/theme"
)

var (
	flagTUIAutoRefresh bool
	flagTUIInterval    time.Duration
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch interactive TUI dashboard",
	RunE:  runTUI,
}

func init() {
	tuiCmd.Flags().BoolVar(&flagTUIAutoRefresh, "auto-refresh", true, "Reload the ledger periodically")
	tuiCmd.Flags().DurationVar(&flagTUIInterval, "refresh-interval", 30*time.Second, "Auto-refresh interval")
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(_ *cobra.Command, _ []string) error {
	// Log lines would corrupt the alt screen.
	logPath := filepath.Join(config.Dir(), "tui.log")
	if err := os.MkdirAll(config.Dir(), 0o750); err == nil {
		//nolint:gosec // log path is under the user's config directory
		if f, err := os.OpenFile(logPath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o600); err == nil {
			defer func() { _ = f.Close() }()
			logging.InitWithWriter("bdash-tui", f, flagVerbose)
		}
	}

	e, err := openEnv(context.Background())
	if err != nil {
		return err
	}
	defer func() { _ = e.Close() }()

	theme.Init(e.cfg.Appearance.Theme)

	// A nil *syncer.Syncer must not become a non-nil interface.
	var sy tui.Syncer
	if e.syncer != nil {
		sy = e.syncer
	}

	app := tui.NewApp(e.ledger, sy, e.caps, tui.Options{
		Currency:        e.cfg.Appearance.Currency,
		AutoRefresh:     flagTUIAutoRefresh,
		RefreshInterval: flagTUIInterval,
		NeedSetup:       flagConfig == "" && !config.Exists(),
		SaveConfig: func(v *tui.SetupValues) error {
			cfg := e.cfg
			v.Apply(&cfg)
			return saveConfig(cfg)
		},
	})
	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithMouseCellMotion())

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	return nil
}
