package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/bdash/internal/cli"
	"github.com/theirongolddev/bdash/internal/config"
	"github.com/theirongolddev/bdash/internal/ledger"
	"github.com/theirongolddev/bdash/internal/logging"
	"github.com/theirongolddev/bdash/internal/sample"
	"github.com/theirongolddev/bdash/internal/sharepoint"
	"github.com/theirongolddev/bdash/internal/store"
	"github.com/theirongolddev/bdash/internal/syncer"
)

var (
	flagConfig  string
	flagVerbose bool
	flagJSON    bool
	flagQuiet   bool
	flagFunding string
)

var rootCmd = &cobra.Command{
	Use:   "bdash",
	Short: "Budget dashboard for SharePoint payment requests",
	Long:  "Track budget lines and payment requests: sync approvals from SharePoint, reconcile spend, and browse the ledger.",
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logging.Init("bdash", flagVerbose)
	},
	RunE:         runSummary,
	SilenceUsage: true,
}

// Execute is the main entry point called from main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, cli.RenderError("Error: "+err.Error()))
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "Config file (default "+config.Path()+")")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Debug logging")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "Print JSON instead of tables")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "Suppress progress output")
	rootCmd.PersistentFlags().StringVarP(&flagFunding, "funding", "f", "", "Filter to a funding source")
}

// loadConfig reads --config when given, else the default path.
func loadConfig() (config.Config, error) {
	if flagConfig != "" {
		return config.LoadFile(flagConfig)
	}
	return config.Load()
}

// env is the wired runtime shared by all commands.
type env struct {
	cfg    config.Config
	caps   config.Capabilities
	store  *store.Store
	ledger *ledger.Service
	// syncer is nil when remote sync is not configured.
	syncer *syncer.Syncer
	logger *slog.Logger
}

func (e *env) Close() error {
	return e.store.Close()
}

// openEnv opens the configured ledger, or an in-memory ledger seeded with
// the built-in sample data when no store is configured.
func openEnv(ctx context.Context) (*env, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	caps := cfg.Capabilities()
	logger := slog.Default()

	var st *store.Store
	if caps.HasPersistence {
		openCtx, cancel := context.WithTimeout(ctx, cfg.StoreTimeout())
		st, err = store.Open(openCtx, cfg.Store.Driver, cfg.Store.DSN)
		cancel()
	} else {
		st, err = store.OpenMemory()
	}
	if err != nil {
		return nil, err
	}

	svc := ledger.New(st, ledger.Options{
		Timeout: cfg.StoreTimeout(),
		Logger:  logger,
	})

	if !caps.HasPersistence {
		logger.Debug("no store configured, using sample data")
		ds, err := sample.Default()
		if err == nil {
			err = sample.Seed(ctx, svc, ds)
		}
		if err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("loading sample data: %w", err)
		}
	}

	e := &env{cfg: cfg, caps: caps, store: st, ledger: svc, logger: logger}
	if caps.HasRemoteSync {
		client, err := sharepoint.FromConfig(ctx, cfg, logger)
		if err != nil {
			_ = st.Close()
			return nil, err
		}
		e.syncer, err = syncer.New(client, svc, logger)
		if err != nil {
			_ = st.Close()
			return nil, err
		}
	}
	return e, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func progress(format string, args ...any) {
	if !flagQuiet {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}
