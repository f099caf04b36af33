package pipeline

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/theirongolddev/bdash/internal/model"
)

// Source is the read side of the ledger. *ledger.Service satisfies it.
type Source interface {
	ListBudgetLines(ctx context.Context) ([]model.BudgetLine, error)
	ListPaymentRequests(ctx context.Context) ([]model.PaymentRequest, error)
}

// Snapshot is a consistent-enough view of the ledger for one render.
type Snapshot struct {
	Lines    []model.BudgetLine
	Requests []model.PaymentRequest
	LoadedAt time.Time
}

// Load reads lines and requests concurrently. Lines come back ordered by
// total cost and requests newest first.
func Load(ctx context.Context, src Source) (*Snapshot, error) {
	snap := &Snapshot{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lines, err := src.ListBudgetLines(gctx)
		snap.Lines = lines
		return err
	})
	g.Go(func() error {
		reqs, err := src.ListPaymentRequests(gctx)
		snap.Requests = reqs
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	SortLinesByTotalCost(snap.Lines)
	SortRequestsByDate(snap.Requests)
	snap.LoadedAt = time.Now()
	return snap, nil
}

// Summary aggregates the snapshot, optionally restricted to a funding source.
func (s *Snapshot) Summary(fundingSource string) model.SummaryStats {
	lines := FilterLines(s.Lines, fundingSource, "")
	reqs := FilterRequests(s.Requests, s.Lines, RequestFilter{FundingSource: fundingSource})
	return Aggregate(lines, reqs)
}
