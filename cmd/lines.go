package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/bdash/internal/cli"
	"github.com/theirongolddev/bdash/internal/model"
	"github.com/theirongolddev/bdash/internal/pipeline"
)

var linesCmd = &cobra.Command{
	Use:   "lines [id]",
	Short: "Budget lines with spend and utilization",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runLines,
}

var (
	linesPillar string
	linesSort   string
)

func init() {
	linesCmd.Flags().StringVar(&linesPillar, "pillar", "", "Filter to a strategic pillar (full or short name)")
	linesCmd.Flags().StringVar(&linesSort, "sort", "budget", "Sort by budget or utilization")
	rootCmd.AddCommand(linesCmd)
}

func runLines(_ *cobra.Command, args []string) error {
	ctx := context.Background()
	e, err := openEnv(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = e.Close() }()

	if len(args) == 1 {
		return showLine(ctx, e, args[0])
	}

	snap, err := pipeline.Load(ctx, e.ledger)
	if err != nil {
		return err
	}
	lines := pipeline.FilterLines(snap.Lines, flagFunding, linesPillar)
	if linesSort == "utilization" {
		lines = pipeline.TopByUtilization(lines, len(lines))
	}
	if flagJSON {
		return printJSON(lines)
	}
	if len(lines) == 0 {
		fmt.Println("\n  No budget lines match.")
		return nil
	}

	cur := e.cfg.Appearance.Currency
	fmt.Println()
	fmt.Println(cli.RenderTitle("BUDGET LINES"))
	fmt.Println()

	rows := make([][]string, 0, len(lines))
	for _, l := range lines {
		rows = append(rows, []string{
			l.ID,
			l.BudgetCode,
			truncate(l.Activity, 32),
			l.FundingSource,
			cli.FormatMoney(l.TotalCost, cur),
			cli.FormatMoney(l.Spent, cur),
			cli.RenderUtilizationBar(l.Utilization(), 12),
		})
	}
	fmt.Print(cli.RenderTable(cli.Table{
		Headers: []string{"ID", "Code", "Activity", "Funding", "Budget", "Spent", "Used"},
		Rows:    rows,
	}))
	return nil
}

func showLine(ctx context.Context, e *env, id string) error {
	line, err := e.ledger.BudgetLine(ctx, id)
	if err != nil {
		return fmt.Errorf("budget line %s: %w", id, err)
	}
	all, err := e.ledger.ListPaymentRequests(ctx)
	if err != nil {
		return err
	}
	var linked []model.PaymentRequest
	for _, pr := range all {
		if pr.BudgetLineID == line.ID {
			linked = append(linked, pr)
		}
	}
	pipeline.SortRequestsByDate(linked)

	if flagJSON {
		return printJSON(struct {
			Line     model.BudgetLine       `json:"line"`
			Requests []model.PaymentRequest `json:"requests"`
		}{line, linked})
	}

	cur := e.cfg.Appearance.Currency
	fmt.Println()
	fmt.Println(cli.RenderTitle(line.BudgetCode + "  " + line.Activity))
	fmt.Println()
	fmt.Println(cli.RenderKeyValue("Funding", line.FundingSource))
	fmt.Println(cli.RenderKeyValue("Pillar", line.StrategicPillar))
	fmt.Println(cli.RenderKeyValue("Objective", line.Objective))
	if line.OdooCode != "" {
		fmt.Println(cli.RenderKeyValue("Odoo", line.OdooCode+" "+line.OdooCategory))
	}
	if line.ZGFCode != "" {
		fmt.Println(cli.RenderKeyValue("ZGF code", line.ZGFCode))
	}
	fmt.Println(cli.RenderKeyValue("Budget", cli.FormatMoney(line.TotalCost, cur)))
	fmt.Println(cli.RenderKeyValue("Spent", cli.FormatMoney(line.Spent, cur)))
	fmt.Println(cli.RenderKeyValue("Remaining", cli.FormatMoney(line.Remaining(), cur)))
	fmt.Println(cli.RenderKeyValue("Used", cli.RenderUtilizationBar(line.Utilization(), 24)))
	fmt.Println()

	if len(linked) == 0 {
		fmt.Println("  No payment requests on this line.")
		return nil
	}
	fmt.Print(cli.RenderTable(requestTable("Payment Requests", linked, cur)))
	return nil
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if limit <= 0 || len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}
