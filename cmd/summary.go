package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/bdash/internal/cli"
	"github.com/theirongolddev/bdash/internal/model"
	"github.com/theirongolddev/bdash/internal/pipeline"
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Budget totals, utilization and request status",
	RunE:  runSummary,
}

func init() {
	rootCmd.AddCommand(summaryCmd)
}

type summaryOutput struct {
	Summary   model.SummaryStats   `json:"summary"`
	Funding   []model.GroupStats   `json:"funding_sources"`
	Pillars   []model.GroupStats   `json:"pillars"`
	Statuses  []model.StatusTotals `json:"statuses"`
	Persisted bool                 `json:"persisted"`
}

func runSummary(_ *cobra.Command, _ []string) error {
	ctx := context.Background()
	e, err := openEnv(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = e.Close() }()

	snap, err := pipeline.Load(ctx, e.ledger)
	if err != nil {
		return err
	}
	lines := pipeline.FilterLines(snap.Lines, flagFunding, "")
	reqs := pipeline.FilterRequests(snap.Requests, snap.Lines, pipeline.RequestFilter{FundingSource: flagFunding})
	out := summaryOutput{
		Summary:   snap.Summary(flagFunding),
		Funding:   pipeline.AggregateByFundingSource(lines),
		Pillars:   pipeline.AggregateByPillar(lines),
		Statuses:  pipeline.AggregateStatuses(reqs),
		Persisted: e.caps.HasPersistence,
	}
	if flagJSON {
		return printJSON(out)
	}

	if len(lines) == 0 {
		fmt.Println("\n  No budget lines found.")
		return nil
	}

	cur := e.cfg.Appearance.Currency
	stats := out.Summary
	title := "BUDGET SUMMARY"
	if flagFunding != "" {
		title += "  " + flagFunding
	}

	fmt.Println()
	fmt.Println(cli.RenderTitle(title))
	fmt.Println()

	fmt.Print(cli.RenderTable(cli.Table{
		Headers: []string{"Metric", "Value"},
		Rows: [][]string{
			{"Budget lines", cli.FormatNumber(int64(stats.Lines))},
			{"Total budget", cli.FormatMoney(stats.TotalBudget, cur)},
			{"Spent", cli.FormatMoney(stats.TotalSpent, cur)},
			{"Remaining", cli.FormatMoney(stats.Remaining, cur)},
			{"Utilization", cli.FormatPercent(stats.Utilization)},
			{"---"},
			{"Q1", cli.FormatMoney(stats.Q1, cur)},
			{"Q2", cli.FormatMoney(stats.Q2, cur)},
			{"Q3", cli.FormatMoney(stats.Q3, cur)},
			{"Q4", cli.FormatMoney(stats.Q4, cur)},
		},
	}))

	fmt.Print(cli.RenderTable(groupTable("By Funding Source", out.Funding, cur)))
	fmt.Print(cli.RenderTable(groupTable("By Strategic Pillar", out.Pillars, cur)))

	rows := make([][]string, 0, len(out.Statuses))
	for _, st := range out.Statuses {
		rows = append(rows, []string{cli.RenderStatus(st.Status), cli.FormatNumber(int64(st.Count)), cli.FormatMoney(st.Amount, cur)})
	}
	fmt.Print(cli.RenderTable(cli.Table{
		Title:   "Payment Requests",
		Headers: []string{"Status", "Count", "Amount"},
		Rows:    rows,
	}))

	printMonthly(reqs, pipeline.LatestYear(reqs, time.Now().Year()))

	if stats.OverspentLines > 0 {
		fmt.Println(cli.RenderWarning(fmt.Sprintf("%d budget lines are overspent", stats.OverspentLines)))
	}
	if stats.UnlinkedCount > 0 {
		fmt.Println(cli.RenderWarning(fmt.Sprintf("%d payment requests are not linked to a budget line", stats.UnlinkedCount)))
	}
	if !e.caps.HasPersistence {
		fmt.Println(cli.RenderWarning("No store configured: showing built-in sample data (run bdash setup)"))
	}
	return nil
}

func groupTable(title string, groups []model.GroupStats, cur string) cli.Table {
	rows := make([][]string, 0, len(groups))
	for _, g := range groups {
		rows = append(rows, []string{
			g.Name,
			cli.FormatNumber(int64(g.Lines)),
			cli.FormatMoney(g.TotalBudget, cur),
			cli.FormatMoney(g.TotalSpent, cur),
			cli.RenderUtilizationBar(g.Utilization, 16),
		})
	}
	return cli.Table{
		Title:   title,
		Headers: []string{"Name", "Lines", "Budget", "Spent", "Used"},
		Rows:    rows,
	}
}

var monthNames = [12]string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

func printMonthly(reqs []model.PaymentRequest, year int) {
	months := pipeline.ApprovedByMonth(reqs, year)
	peak := 0.0
	for _, m := range months {
		peak = max(peak, m.InexactFloat64())
	}
	if peak == 0 {
		return
	}
	fmt.Printf("  Approved spend %d\n", year)
	for i, m := range months {
		fmt.Println(cli.RenderHorizontalBar(monthNames[i], m.InexactFloat64(), peak, 3, 40) + " " + cli.FormatCompact(m))
	}
	fmt.Println()
}
