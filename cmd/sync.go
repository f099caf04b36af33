package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/bdash/internal/cli"
	"github.com/theirongolddev/bdash/internal/config"
	"github.com/theirongolddev/bdash/internal/model"
	"github.com/theirongolddev/bdash/internal/sample"
	"github.com/theirongolddev/bdash/internal/syncer"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Pull payment requests from SharePoint into the ledger",
	RunE:  runSync,
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load a YAML dataset into the ledger",
	Long:  "Load budget lines and payment requests from a YAML file, or the built-in sample data when --file is omitted.",
	RunE:  runSeed,
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Recompute spent for every budget line",
	RunE:  runReconcile,
}

var (
	flagSyncTimeout time.Duration
	flagSeedFile    string
)

func init() {
	syncCmd.Flags().DurationVar(&flagSyncTimeout, "timeout", 2*time.Minute, "Overall sync deadline")
	seedCmd.Flags().StringVar(&flagSeedFile, "file", "", "YAML dataset (default built-in sample)")
	rootCmd.AddCommand(syncCmd, seedCmd, reconcileCmd)
}

func runSync(_ *cobra.Command, _ []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), flagSyncTimeout)
	defer cancel()

	e, err := openEnv(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = e.Close() }()

	if e.syncer == nil {
		fmt.Println()
		fmt.Println("  SharePoint sync is not configured.")
		fmt.Println()
		fmt.Println("  Set tenant, client, secret, site and list IDs with:")
		fmt.Println("    bdash setup                            (interactive)")
		fmt.Println("    BDASH_GRAPH_CLIENT_SECRET=... bdash sync (one-shot)")
		fmt.Println()
		return config.ErrNotConfigured
	}
	if !e.caps.HasPersistence {
		return fmt.Errorf("sync needs a store; set [store] dsn or run bdash setup: %w", config.ErrNotConfigured)
	}

	progress("  Syncing from SharePoint...\n")
	report, err := e.syncer.Run(ctx)
	if err != nil {
		if syncer.Retryable(err) {
			return fmt.Errorf("sync failed, try again shortly: %w", err)
		}
		return fmt.Errorf("sync failed: %w", err)
	}

	if flagJSON {
		return printJSON(report)
	}
	printSyncReport(report)
	if len(report.Errors) > 0 {
		return fmt.Errorf("%d records failed", len(report.Errors))
	}
	return nil
}

func printSyncReport(r model.SyncReport) {
	fmt.Println()
	fmt.Println(cli.RenderTitle("SYNC REPORT"))
	fmt.Println()
	fmt.Print(cli.RenderTable(cli.Table{
		Headers: []string{"Metric", "Value"},
		Rows: [][]string{
			{"Run", r.RunID},
			{"Fetched", cli.FormatNumber(int64(r.Fetched))},
			{"Synced", cli.FormatNumber(int64(r.Synced))},
			{"Approved", cli.FormatNumber(int64(r.Approved))},
			{"Unlinked", cli.FormatNumber(int64(r.Unlinked))},
			{"Errors", cli.FormatNumber(int64(len(r.Errors)))},
			{"Duration", cli.FormatDuration(r.Duration())},
		},
	}))

	if r.Truncated {
		fmt.Println(cli.RenderWarning("The list had more items than one page; only the first page was synced"))
	}
	if r.Unlinked > 0 {
		fmt.Println(cli.RenderWarning(fmt.Sprintf("%d synced requests are not linked to a budget line", r.Unlinked)))
	}
	if len(r.Errors) == 0 {
		return
	}
	rows := make([][]string, 0, len(r.Errors))
	for _, re := range r.Errors {
		rows = append(rows, []string{re.ID, re.Message})
	}
	fmt.Print(cli.RenderTable(cli.Table{
		Title:   "Record Errors",
		Headers: []string{"Item", "Error"},
		Rows:    rows,
	}))
}

func runSeed(_ *cobra.Command, _ []string) error {
	ctx := context.Background()
	e, err := openEnv(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = e.Close() }()

	if !e.caps.HasPersistence {
		return fmt.Errorf("seed needs a store; set [store] dsn or run bdash setup: %w", config.ErrNotConfigured)
	}

	ds, err := sample.Default()
	if flagSeedFile != "" {
		ds, err = sample.LoadFile(flagSeedFile)
	}
	if err != nil {
		return err
	}
	if err := sample.Seed(ctx, e.ledger, ds); err != nil {
		return err
	}
	fmt.Printf("  Loaded %d budget lines and %d payment requests\n", len(ds.BudgetLines), len(ds.PaymentRequests))
	return nil
}

func runReconcile(_ *cobra.Command, _ []string) error {
	ctx := context.Background()
	e, err := openEnv(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = e.Close() }()

	lines, err := e.ledger.ReconcileAll(ctx)
	if err != nil {
		return err
	}
	if flagJSON {
		return printJSON(lines)
	}
	cur := e.cfg.Appearance.Currency
	rows := make([][]string, 0, len(lines))
	for _, l := range lines {
		rows = append(rows, []string{l.ID, l.BudgetCode, cli.FormatMoney(l.Spent, cur), cli.RenderUtilizationBar(l.Utilization(), 12)})
	}
	fmt.Print(cli.RenderTable(cli.Table{
		Title:   "Reconciled",
		Headers: []string{"ID", "Code", "Spent", "Used"},
		Rows:    rows,
	}))
	return nil
}
