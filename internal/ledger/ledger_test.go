package ledger

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theirongolddev/bdash/internal/model"
	"github.com/theirongolddev/bdash/internal/store"
)

// flakyStore fails RecomputeSpent while failRecompute is set.
type flakyStore struct {
	*store.Store
	failRecompute bool
}

func (f *flakyStore) RecomputeSpent(ctx context.Context, id string) (model.BudgetLine, error) {
	if f.failRecompute {
		return model.BudgetLine{}, &store.PersistenceError{Op: "recompute", Err: errors.New("database is locked")}
	}
	return f.Store.RecomputeSpent(ctx, id)
}

func newTestService(t *testing.T) (*Service, *flakyStore) {
	t.Helper()
	st, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	fs := &flakyStore{Store: st}
	return New(fs, Options{}), fs
}

func line(id string, total int64) model.BudgetLine {
	return model.BudgetLine{
		ID:         id,
		BudgetCode: "BC-" + id,
		Currency:   "ZMW",
		TotalCost:  decimal.NewFromInt(total),
	}
}

func request(id, lineID, amount string, status model.Status) model.PaymentRequest {
	return model.PaymentRequest{
		ID:           id,
		Name:         id,
		BudgetLineID: lineID,
		Year:         2024,
		Amount:       decimal.RequireFromString(amount),
		Status:       status,
		RequestDate:  time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
	}
}

func spentOf(t *testing.T, s *Service, id string) string {
	t.Helper()
	l, err := s.BudgetLine(context.Background(), id)
	require.NoError(t, err)
	return l.Spent.String()
}

func TestApproveRejectReapprove(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertBudgetLine(ctx, line("L1", 1000)))
	_, err := s.UpsertPaymentRequest(ctx, request("PR-1", "L1", "500", model.StatusPending))
	require.NoError(t, err)
	assert.Equal(t, "0", spentOf(t, s, "L1"))

	pr, err := s.Approve(ctx, "PR-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, pr.Status)
	assert.Equal(t, "500", spentOf(t, s, "L1"))

	l, err := s.BudgetLine(ctx, "L1")
	require.NoError(t, err)
	assert.Equal(t, "500", l.Remaining().String())

	_, err = s.Reject(ctx, "PR-1")
	require.NoError(t, err)
	assert.Equal(t, "0", spentOf(t, s, "L1"))

	_, err = s.Approve(ctx, "PR-1")
	require.NoError(t, err)
	assert.Equal(t, "500", spentOf(t, s, "L1"))
}

func TestApproveTwiceDoesNotDoubleCount(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertBudgetLine(ctx, line("L1", 1000)))
	_, err := s.UpsertPaymentRequest(ctx, request("PR-1", "L1", "300", model.StatusApproved))
	require.NoError(t, err)
	_, err = s.UpsertPaymentRequest(ctx, request("PR-1", "L1", "300", model.StatusApproved))
	require.NoError(t, err)
	_, err = s.Approve(ctx, "PR-1")
	require.NoError(t, err)

	assert.Equal(t, "300", spentOf(t, s, "L1"))
}

func TestApproveMissingRequest(t *testing.T) {
	s, _ := newTestService(t)

	_, err := s.Approve(context.Background(), "PR-404")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUnlinkedRequestIsNotAnError(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	_, err := s.UpsertPaymentRequest(ctx, request("PR-1", "NOPE", "100", model.StatusApproved))
	require.NoError(t, err)
	_, err = s.UpsertPaymentRequest(ctx, request("PR-2", "", "100", model.StatusApproved))
	require.NoError(t, err)

	all, err := s.ListPaymentRequests(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.True(t, all[0].Unlinked)
	assert.True(t, all[1].Unlinked)
}

func TestUpsertReturnsStoredRow(t *testing.T) {
	st, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	var logs bytes.Buffer
	created := time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)
	s := New(st, Options{
		Logger: slog.New(slog.NewTextHandler(&logs, nil)),
		Now:    func() time.Time { return created },
	})
	ctx := context.Background()
	require.NoError(t, s.UpsertBudgetLine(ctx, line("L1", 100)))

	linked, err := s.UpsertPaymentRequest(ctx, request("PR-1", "L1", "40", model.StatusApproved))
	require.NoError(t, err)
	assert.False(t, linked.Unlinked)
	assert.False(t, linked.CreatedAt.IsZero())
	assert.Empty(t, logs.String())

	orphan, err := s.UpsertPaymentRequest(ctx, request("PR-2", "L9", "10", model.StatusApproved))
	require.NoError(t, err)
	assert.True(t, orphan.Unlinked)
	assert.Contains(t, logs.String(), "level=WARN")
	assert.Contains(t, logs.String(), "id=PR-2")
	assert.Contains(t, logs.String(), "line=L9")

	// an empty link is a plain unlinked request, not a warning
	logs.Reset()
	bare, err := s.UpsertPaymentRequest(ctx, request("PR-3", "", "5", model.StatusPending))
	require.NoError(t, err)
	assert.True(t, bare.Unlinked)
	assert.NotContains(t, logs.String(), "level=WARN")
}

func TestLateLinePicksUpApprovals(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	_, err := s.UpsertPaymentRequest(ctx, request("PR-1", "L9", "75", model.StatusApproved))
	require.NoError(t, err)
	require.NoError(t, s.UpsertBudgetLine(ctx, line("L9", 100)))

	assert.Equal(t, "75", spentOf(t, s, "L9"))
}

func TestRelinkMovesContribution(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertBudgetLine(ctx, line("L1", 1000)))
	require.NoError(t, s.UpsertBudgetLine(ctx, line("L2", 1000)))
	_, err := s.UpsertPaymentRequest(ctx, request("PR-1", "L1", "250", model.StatusApproved))
	require.NoError(t, err)
	assert.Equal(t, "250", spentOf(t, s, "L1"))

	_, err = s.UpsertPaymentRequest(ctx, request("PR-1", "L2", "250", model.StatusApproved))
	require.NoError(t, err)
	assert.Equal(t, "0", spentOf(t, s, "L1"))
	assert.Equal(t, "250", spentOf(t, s, "L2"))
}

func TestReconcileFailureKeepsWrite(t *testing.T) {
	s, fs := newTestService(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertBudgetLine(ctx, line("L1", 1000)))
	_, err := s.UpsertPaymentRequest(ctx, request("PR-1", "L1", "40", model.StatusPending))
	require.NoError(t, err)

	fs.failRecompute = true
	pr, err := s.Approve(ctx, "PR-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrReconcile)
	assert.ErrorIs(t, err, store.ErrPersistence)
	var re *ReconcileError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "L1", re.LineID)
	assert.Equal(t, model.StatusApproved, pr.Status)

	stored, err := s.PaymentRequest(ctx, "PR-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, stored.Status)
	assert.Equal(t, "0", spentOf(t, s, "L1"))

	fs.failRecompute = false
	lines, err := s.ReconcileAll(ctx)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "40", lines[0].Spent.String())
}

func TestCreatePaymentRequest(t *testing.T) {
	s, _ := newTestService(t)
	s.now = func() time.Time { return time.Date(2025, 2, 3, 12, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	require.NoError(t, s.UpsertBudgetLine(ctx, line("L1", 1000)))
	pr, err := s.CreatePaymentRequest(ctx, NewRequest{
		Name:         "  Workshop venue ",
		BudgetLineID: "L1",
		Amount:       decimal.NewFromInt(120),
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(pr.ID, "PR-M-"))
	assert.Len(t, pr.ID, len("PR-M-")+8)
	assert.Equal(t, "Workshop venue", pr.Name)
	assert.Equal(t, model.StatusPending, pr.Status)
	assert.Equal(t, 2025, pr.Year)
	assert.Equal(t, "2025-02-03", pr.RequestDate.Format("2006-01-02"))
	assert.Equal(t, "0", spentOf(t, s, "L1"))

	_, err = s.CreatePaymentRequest(ctx, NewRequest{Name: "x", Amount: decimal.Zero})
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = s.CreatePaymentRequest(ctx, NewRequest{Amount: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestSpentEqualsApprovedSum(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertBudgetLine(ctx, line("L1", 10000)))
	amounts := []string{"0.10", "0.20", "1234.56", "99.99", "1"}
	for i, a := range amounts {
		st := model.StatusApproved
		if i%2 == 1 {
			st = model.StatusPending
		}
		_, err := s.UpsertPaymentRequest(ctx, request("PR-"+a, "L1", a, st))
		require.NoError(t, err)
	}
	// 0.10 + 1234.56 + 1
	assert.Equal(t, "1235.66", spentOf(t, s, "L1"))
}
