// Package ledger is the single write path for payment requests and budget
// lines. Every write that can change a line's approved total is followed by a
// recomputation of that line's spent amount.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/theirongolddev/bdash/internal/model"
	"github.com/theirongolddev/bdash/internal/store"
)

// DefaultTimeout bounds each store call when Options.Timeout is zero.
const DefaultTimeout = 10 * time.Second

// Store is the persistence the service needs. *store.Store satisfies it.
type Store interface {
	Ping(ctx context.Context) error
	UpsertBudgetLine(ctx context.Context, line model.BudgetLine) error
	BudgetLine(ctx context.Context, id string) (model.BudgetLine, error)
	BudgetLines(ctx context.Context) ([]model.BudgetLine, error)
	UpsertPaymentRequest(ctx context.Context, pr model.PaymentRequest) (string, error)
	UpdatePaymentRequestStatus(ctx context.Context, id string, status model.Status, at time.Time) (model.PaymentRequest, error)
	PaymentRequest(ctx context.Context, id string) (model.PaymentRequest, error)
	PaymentRequests(ctx context.Context) ([]model.PaymentRequest, error)
	RecomputeSpent(ctx context.Context, lineID string) (model.BudgetLine, error)
}

// Options configures a Service.
type Options struct {
	Timeout time.Duration
	Logger  *slog.Logger
	Now     func() time.Time
}

// Service wraps a Store with reconciliation.
type Service struct {
	store   Store
	timeout time.Duration
	log     *slog.Logger
	now     func() time.Time
}

// New returns a Service over st.
func New(st Store, opts Options) *Service {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		store:   st,
		timeout: opts.Timeout,
		log:     opts.Logger.With("component", "ledger"),
		now:     opts.Now,
	}
}

func (s *Service) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// Ping checks the underlying store.
func (s *Service) Ping(ctx context.Context) error {
	ctx, cancel := s.bounded(ctx)
	defer cancel()
	return s.store.Ping(ctx)
}

// ListBudgetLines returns every budget line with its current spent total.
func (s *Service) ListBudgetLines(ctx context.Context) ([]model.BudgetLine, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()
	return s.store.BudgetLines(ctx)
}

// BudgetLine returns one line.
func (s *Service) BudgetLine(ctx context.Context, id string) (model.BudgetLine, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()
	return s.store.BudgetLine(ctx, id)
}

// ListPaymentRequests returns every payment request.
func (s *Service) ListPaymentRequests(ctx context.Context) ([]model.PaymentRequest, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()
	return s.store.PaymentRequests(ctx)
}

// PaymentRequest returns one request.
func (s *Service) PaymentRequest(ctx context.Context, id string) (model.PaymentRequest, error) {
	ctx, cancel := s.bounded(ctx)
	defer cancel()
	return s.store.PaymentRequest(ctx, id)
}

// Approve marks a request Approved and reconciles its line.
func (s *Service) Approve(ctx context.Context, id string) (model.PaymentRequest, error) {
	return s.SetStatus(ctx, id, model.StatusApproved)
}

// Reject marks a request Rejected and reconciles its line.
func (s *Service) Reject(ctx context.Context, id string) (model.PaymentRequest, error) {
	return s.SetStatus(ctx, id, model.StatusRejected)
}

// SetStatus changes a request's status and reconciles its line. When only the
// reconciliation fails, the updated request is returned with a *ReconcileError.
func (s *Service) SetStatus(ctx context.Context, id string, status model.Status) (model.PaymentRequest, error) {
	wctx, cancel := s.bounded(ctx)
	pr, err := s.store.UpdatePaymentRequestStatus(wctx, id, status, s.now())
	cancel()
	if err != nil {
		return pr, fmt.Errorf("set status of %s: %w", id, err)
	}
	s.log.Info("payment request status changed", "id", id, "status", status)
	s.warnUnlinked(pr)
	return pr, s.reconcile(ctx, pr.BudgetLineID)
}

// UpsertPaymentRequest writes pr, reconciles the line it links to plus the
// line it was linked to before, and returns the stored row. If only the
// read-back fails, pr is returned as written.
func (s *Service) UpsertPaymentRequest(ctx context.Context, pr model.PaymentRequest) (model.PaymentRequest, error) {
	wctx, cancel := s.bounded(ctx)
	prev, err := s.store.UpsertPaymentRequest(wctx, pr)
	cancel()
	if err != nil {
		return pr, fmt.Errorf("upsert %s: %w", pr.ID, err)
	}
	recErr := s.reconcile(ctx, pr.BudgetLineID, prev)

	stored, err := s.PaymentRequest(ctx, pr.ID)
	if err != nil {
		s.log.Warn("reading back payment request failed", "id", pr.ID, "error", err)
		return pr, recErr
	}
	s.warnUnlinked(stored)
	return stored, recErr
}

// warnUnlinked logs requests that name a budget line the ledger lacks. Their
// amounts count toward no line until it is added.
func (s *Service) warnUnlinked(pr model.PaymentRequest) {
	if pr.Unlinked && pr.BudgetLineID != "" {
		s.log.Warn("payment request links to a missing budget line",
			"id", pr.ID, "line", pr.BudgetLineID, "status", pr.Status, "amount", pr.Amount.String())
	}
}

// NewRequest is the input for a manually entered payment request.
type NewRequest struct {
	Name         string
	BudgetCode   string
	BudgetLineID string
	Year         int
	Amount       decimal.Decimal
	RequestedBy  string
	RequestDate  time.Time
}

// CreatePaymentRequest records a manual request. It starts Pending, so it
// does not count against its line until approved.
func (s *Service) CreatePaymentRequest(ctx context.Context, in NewRequest) (model.PaymentRequest, error) {
	if strings.TrimSpace(in.Name) == "" {
		return model.PaymentRequest{}, fmt.Errorf("%w: name is required", ErrInvalid)
	}
	if !in.Amount.IsPositive() {
		return model.PaymentRequest{}, fmt.Errorf("%w: amount must be positive, got %s", ErrInvalid, in.Amount)
	}
	now := s.now()
	if in.Year == 0 {
		in.Year = now.Year()
	}
	if in.RequestDate.IsZero() {
		in.RequestDate = now
	}
	pr := model.PaymentRequest{
		ID:           "PR-M-" + uuid.NewString()[:8],
		Name:         strings.TrimSpace(in.Name),
		BudgetCode:   in.BudgetCode,
		BudgetLineID: in.BudgetLineID,
		Year:         in.Year,
		Amount:       in.Amount,
		RequestedBy:  in.RequestedBy,
		Status:       model.StatusPending,
		RequestDate:  in.RequestDate,
		CreatedAt:    now,
	}
	written, err := s.UpsertPaymentRequest(ctx, pr)
	if err != nil {
		return written, err
	}
	s.log.Info("payment request created", "id", pr.ID, "amount", pr.Amount.String(), "line", pr.BudgetLineID)
	return written, nil
}

// UpsertBudgetLine writes a line and reconciles it so approvals already
// linked to its id are counted.
func (s *Service) UpsertBudgetLine(ctx context.Context, line model.BudgetLine) error {
	wctx, cancel := s.bounded(ctx)
	err := s.store.UpsertBudgetLine(wctx, line)
	cancel()
	if err != nil {
		return fmt.Errorf("upsert budget line %s: %w", line.ID, err)
	}
	return s.reconcile(ctx, line.ID)
}

// ReconcileAll recomputes spent for every line and returns the results.
func (s *Service) ReconcileAll(ctx context.Context) ([]model.BudgetLine, error) {
	lines, err := s.ListBudgetLines(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(lines))
	for i, l := range lines {
		ids[i] = l.ID
	}
	if err := s.reconcile(ctx, ids...); err != nil {
		return nil, err
	}
	return s.ListBudgetLines(ctx)
}

// reconcile recomputes spent for each distinct non-empty line id. Lines that
// do not exist are skipped. It is the only caller of Store.RecomputeSpent.
func (s *Service) reconcile(ctx context.Context, lineIDs ...string) error {
	seen := make(map[string]bool, len(lineIDs))
	var errs []error
	for _, id := range lineIDs {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true

		rctx, cancel := s.bounded(ctx)
		line, err := s.store.RecomputeSpent(rctx, id)
		cancel()
		switch {
		case errors.Is(err, store.ErrNotFound):
			s.log.Debug("reconcile skipped, line not found", "line", id)
		case err != nil:
			s.log.Error("reconcile failed", "line", id, "error", err)
			errs = append(errs, &ReconcileError{LineID: id, Err: err})
		default:
			s.log.Debug("line reconciled", "line", id, "spent", line.Spent.String())
		}
	}
	return errors.Join(errs...)
}
