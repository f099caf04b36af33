package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/bdash/internal/cli"
	"github.com/theirongolddev/bdash/internal/ledger"
	"github.com/theirongolddev/bdash/internal/model"
	"github.com/theirongolddev/bdash/internal/pipeline"
	"github.com/theirongolddev/bdash/internal/tui"
	"github.com/theirongolddev/bdash/internal/tui/theme"
)

var requestsCmd = &cobra.Command{
	Use:     "requests",
	Aliases: []string{"payments"},
	Short:   "Payment requests, newest first",
	RunE:    runRequests,
}

var requestsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Record a manual payment request (interactive without --name)",
	RunE:  runRequestsAdd,
}

var approveCmd = &cobra.Command{
	Use:   "approve <id>",
	Short: "Approve a payment request and reconcile its budget line",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		return runSetStatus(args[0], model.StatusApproved)
	},
}

var rejectCmd = &cobra.Command{
	Use:   "reject <id>",
	Short: "Reject a payment request and reconcile its budget line",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		return runSetStatus(args[0], model.StatusRejected)
	},
}

var (
	requestsStatus string
	requestsSearch string
	requestsLimit  int

	addValues tui.RequestValues
)

func init() {
	requestsCmd.Flags().StringVarP(&requestsStatus, "status", "s", "", "Filter to Pending, Approved or Rejected")
	requestsCmd.Flags().StringVar(&requestsSearch, "search", "", "Substring of name, id or budget code")
	requestsCmd.Flags().IntVarP(&requestsLimit, "limit", "l", 0, "Number of requests to show (0 for all)")

	requestsAddCmd.Flags().StringVar(&addValues.Name, "name", "", "Request name")
	requestsAddCmd.Flags().StringVar(&addValues.Amount, "amount", "", "Amount")
	requestsAddCmd.Flags().StringVar(&addValues.BudgetLineID, "line", "", "Budget line ID (blank for unlinked)")
	requestsAddCmd.Flags().StringVar(&addValues.BudgetCode, "code", "", "Budget code")
	requestsAddCmd.Flags().StringVar(&addValues.RequestedBy, "by", "", "Requested by")
	requestsAddCmd.Flags().StringVar(&addValues.Year, "year", "", "Budget year (default current)")

	requestsCmd.AddCommand(requestsAddCmd)
	rootCmd.AddCommand(requestsCmd, approveCmd, rejectCmd)
}

func runRequests(_ *cobra.Command, _ []string) error {
	var status model.Status
	if requestsStatus != "" {
		st, err := model.ParseStatus(requestsStatus)
		if err != nil {
			return err
		}
		status = st
	}

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
	reqs := pipeline.FilterRequests(snap.Requests, snap.Lines, pipeline.RequestFilter{
		FundingSource: flagFunding,
		Status:        status,
		Query:         requestsSearch,
	})
	if requestsLimit > 0 && len(reqs) > requestsLimit {
		reqs = reqs[:requestsLimit]
	}
	if flagJSON {
		return printJSON(reqs)
	}
	if len(reqs) == 0 {
		fmt.Println("\n  No payment requests match.")
		return nil
	}

	fmt.Println()
	fmt.Println(cli.RenderTitle("PAYMENT REQUESTS"))
	fmt.Println()
	fmt.Print(cli.RenderTable(requestTable("", reqs, e.cfg.Appearance.Currency)))
	return nil
}

func requestTable(title string, reqs []model.PaymentRequest, cur string) cli.Table {
	rows := make([][]string, 0, len(reqs))
	for _, pr := range reqs {
		line := pr.BudgetLineID
		if pr.Unlinked {
			line = "unlinked"
		}
		rows = append(rows, []string{
			cli.FormatDate(pr.RequestDate),
			pr.ID,
			truncate(pr.Name, 34),
			line,
			cli.FormatMoney(pr.Amount, cur),
			cli.RenderStatus(pr.Status),
		})
	}
	return cli.Table{
		Title:   title,
		Headers: []string{"Date", "ID", "Name", "Line", "Amount", "Status"},
		Rows:    rows,
	}
}

func runRequestsAdd(_ *cobra.Command, _ []string) error {
	ctx := context.Background()
	e, err := openEnv(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = e.Close() }()

	if addValues.Name == "" {
		theme.Init(e.cfg.Appearance.Theme)
		if err := tui.NewRequestForm(&addValues).Run(); err != nil {
			return err
		}
	}
	in, err := addValues.NewRequest(time.Now())
	if err != nil {
		return err
	}

	pr, err := e.ledger.CreatePaymentRequest(ctx, in)
	if err != nil {
		return err
	}
	if flagJSON {
		return printJSON(pr)
	}
	fmt.Printf("  Recorded %s (%s, %s)\n", pr.ID, cli.FormatMoney(pr.Amount, e.cfg.Appearance.Currency), pr.Status)
	if pr.Unlinked {
		fmt.Println(cli.RenderWarning("Not linked to a budget line"))
	}
	if !e.caps.HasPersistence {
		fmt.Println(cli.RenderWarning("No store configured: the sample ledger is not saved"))
	}
	return nil
}

func runSetStatus(id string, status model.Status) error {
	ctx := context.Background()
	e, err := openEnv(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = e.Close() }()

	pr, err := e.ledger.SetStatus(ctx, id, status)
	var rerr *ledger.ReconcileError
	switch {
	case errors.As(err, &rerr):
		// The status change is stored; only the line total is stale.
		fmt.Println(cli.RenderWarning(fmt.Sprintf("%s is %s but line %s was not reconciled: %v",
			id, status, rerr.LineID, rerr.Err)))
		fmt.Println("  Run `bdash reconcile` to retry.")
		return nil
	case err != nil:
		return fmt.Errorf("set %s to %s: %w", id, status, err)
	}

	if flagJSON {
		return printJSON(pr)
	}
	fmt.Printf("  %s is now %s\n", pr.ID, cli.RenderStatus(pr.Status))
	if pr.BudgetLineID != "" && !pr.Unlinked {
		line, err := e.ledger.BudgetLine(ctx, pr.BudgetLineID)
		if err == nil {
			cur := e.cfg.Appearance.Currency
			fmt.Printf("  %s spent %s of %s\n", line.BudgetCode,
				cli.FormatMoney(line.Spent, cur), cli.FormatMoney(line.TotalCost, cur))
		}
	}
	if !e.caps.HasPersistence {
		fmt.Println(cli.RenderWarning("No store configured: the sample ledger is not saved"))
	}
	return nil
}
