package store

import (
	"context"
	"errors"
	"net"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theirongolddev/bdash/internal/model"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testLine(id string, total int64) model.BudgetLine {
	return model.BudgetLine{
		ID:            id,
		BudgetCode:    "BC-" + id,
		FundingSource: "Global Fund",
		Currency:      "ZMW",
		TotalCost:     decimal.NewFromInt(total),
		Q1:            decimal.NewFromInt(total / 4),
		Q2:            decimal.NewFromInt(total / 4),
		Q3:            decimal.NewFromInt(total / 4),
		Q4:            decimal.NewFromInt(total / 4),
	}
}

func testRequest(id, lineID string, amount string, status model.Status) model.PaymentRequest {
	return model.PaymentRequest{
		ID:           id,
		Name:         "request " + id,
		BudgetLineID: lineID,
		Year:         2024,
		Amount:       decimal.RequireFromString(amount),
		Status:       status,
		RequestDate:  time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestBudgetLineRoundTrip(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertBudgetLine(ctx, testLine("L1", 1000)))
	got, err := s.BudgetLine(ctx, "L1")
	require.NoError(t, err)
	assert.Equal(t, "BC-L1", got.BudgetCode)
	assert.True(t, got.TotalCost.Equal(decimal.NewFromInt(1000)))
	assert.True(t, got.Spent.IsZero())
	assert.False(t, got.UpdatedAt.IsZero())

	_, err = s.BudgetLine(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpsertBudgetLineKeepsSpent(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertBudgetLine(ctx, testLine("L1", 1000)))
	_, err := s.UpsertPaymentRequest(ctx, testRequest("PR-1", "L1", "250.50", model.StatusApproved))
	require.NoError(t, err)
	_, err = s.RecomputeSpent(ctx, "L1")
	require.NoError(t, err)

	edited := testLine("L1", 2000)
	edited.Spent = decimal.NewFromInt(99999)
	require.NoError(t, s.UpsertBudgetLine(ctx, edited))

	got, err := s.BudgetLine(ctx, "L1")
	require.NoError(t, err)
	assert.True(t, got.TotalCost.Equal(decimal.NewFromInt(2000)))
	assert.Equal(t, "250.5", got.Spent.String())
}

func TestUpsertPaymentRequestReturnsPreviousLine(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	prev, err := s.UpsertPaymentRequest(ctx, testRequest("PR-1", "L1", "10", model.StatusPending))
	require.NoError(t, err)
	assert.Empty(t, prev)

	prev, err = s.UpsertPaymentRequest(ctx, testRequest("PR-1", "L2", "10", model.StatusPending))
	require.NoError(t, err)
	assert.Equal(t, "L1", prev)

	prev, err = s.UpsertPaymentRequest(ctx, testRequest("PR-1", "", "10", model.StatusPending))
	require.NoError(t, err)
	assert.Equal(t, "L2", prev)

	got, err := s.PaymentRequest(ctx, "PR-1")
	require.NoError(t, err)
	assert.Empty(t, got.BudgetLineID)
	assert.True(t, got.Unlinked)
}

func TestUpsertPaymentRequestPreservesCreatedAt(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	pr := testRequest("PR-1", "", "10", model.StatusPending)
	_, err := s.UpsertPaymentRequest(ctx, pr)
	require.NoError(t, err)
	first, err := s.PaymentRequest(ctx, "PR-1")
	require.NoError(t, err)

	pr.Amount = decimal.NewFromInt(20)
	_, err = s.UpsertPaymentRequest(ctx, pr)
	require.NoError(t, err)
	second, err := s.PaymentRequest(ctx, "PR-1")
	require.NoError(t, err)

	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.Equal(t, "20", second.Amount.String())
}

func TestPaymentRequestFields(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	require.NoError(t, s.UpsertBudgetLine(ctx, testLine("L1", 1000)))

	spID := int64(42)
	synced := time.Date(2024, 4, 2, 10, 30, 0, 0, time.UTC)
	pr := testRequest("PR-42", "L1", "1234.56", model.StatusApproved)
	pr.SharePointID = &spID
	pr.SyncedAt = &synced
	pr.RequestedBy = "Chanda"
	_, err := s.UpsertPaymentRequest(ctx, pr)
	require.NoError(t, err)

	got, err := s.PaymentRequest(ctx, "PR-42")
	require.NoError(t, err)
	require.NotNil(t, got.SharePointID)
	assert.Equal(t, int64(42), *got.SharePointID)
	require.NotNil(t, got.SyncedAt)
	assert.True(t, synced.Equal(*got.SyncedAt))
	assert.Equal(t, "1234.56", got.Amount.String())
	assert.Equal(t, model.StatusApproved, got.Status)
	assert.Equal(t, "2024-03-01", got.RequestDate.Format("2006-01-02"))
	assert.Equal(t, "Chanda", got.RequestedBy)
	assert.False(t, got.Unlinked)
}

func TestUnlinkedWhenLineMissing(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	_, err := s.UpsertPaymentRequest(ctx, testRequest("PR-1", "GHOST", "5", model.StatusApproved))
	require.NoError(t, err)

	all, err := s.PaymentRequests(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, all[0].Unlinked)
	assert.Equal(t, "GHOST", all[0].BudgetLineID)
}

func TestUpdatePaymentRequestStatus(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	_, err := s.UpsertPaymentRequest(ctx, testRequest("PR-1", "", "5", model.StatusPending))
	require.NoError(t, err)

	at := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	got, err := s.UpdatePaymentRequestStatus(ctx, "PR-1", model.StatusRejected, at)
	require.NoError(t, err)
	assert.Equal(t, model.StatusRejected, got.Status)
	assert.True(t, at.Equal(got.UpdatedAt))

	_, err = s.UpdatePaymentRequestStatus(ctx, "nope", model.StatusApproved, at)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecomputeSpentSumsApprovedOnly(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	require.NoError(t, s.UpsertBudgetLine(ctx, testLine("L1", 1000)))
	require.NoError(t, s.UpsertBudgetLine(ctx, testLine("L2", 1000)))

	for _, pr := range []model.PaymentRequest{
		testRequest("PR-1", "L1", "100.10", model.StatusApproved),
		testRequest("PR-2", "L1", "200.20", model.StatusApproved),
		testRequest("PR-3", "L1", "999", model.StatusPending),
		testRequest("PR-4", "L1", "999", model.StatusRejected),
		testRequest("PR-5", "L2", "50", model.StatusApproved),
	} {
		_, err := s.UpsertPaymentRequest(ctx, pr)
		require.NoError(t, err)
	}

	line, err := s.RecomputeSpent(ctx, "L1")
	require.NoError(t, err)
	assert.Equal(t, "300.3", line.Spent.String())

	stored, err := s.BudgetLine(ctx, "L1")
	require.NoError(t, err)
	assert.Equal(t, "300.3", stored.Spent.String())

	// Recompute is idempotent.
	line, err = s.RecomputeSpent(ctx, "L1")
	require.NoError(t, err)
	assert.Equal(t, "300.3", line.Spent.String())

	_, err = s.RecomputeSpent(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPaymentRequestsForLine(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	_, err := s.UpsertPaymentRequest(ctx, testRequest("PR-2", "L1", "1", model.StatusPending))
	require.NoError(t, err)
	_, err = s.UpsertPaymentRequest(ctx, testRequest("PR-1", "L1", "1", model.StatusPending))
	require.NoError(t, err)
	_, err = s.UpsertPaymentRequest(ctx, testRequest("PR-3", "L2", "1", model.StatusPending))
	require.NoError(t, err)

	got, err := s.PaymentRequestsForLine(ctx, "L1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "PR-1", got[0].ID)
	assert.Equal(t, "PR-2", got[1].ID)
}

func TestOpenFileCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "bdash.db")
	s, err := Open(context.Background(), DriverSQLite, path)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	require.NoError(t, s.Ping(context.Background()))
	require.NoError(t, s.UpsertBudgetLine(context.Background(), testLine("L1", 10)))
}

func TestOpenUnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), "oracle", "x")
	assert.Error(t, err)
}

// silentListener accepts TCP connections and never writes to them.
func silentListener(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	var (
		mu    sync.Mutex
		conns []net.Conn
	)
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, c)
			mu.Unlock()
		}
	}()
	t.Cleanup(func() {
		_ = ln.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			_ = c.Close()
		}
	})
	return ln.Addr().String()
}

func TestOpenPostgresUnresponsiveTimesOut(t *testing.T) {
	addr := silentListener(t)
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := Open(ctx, DriverPostgres, "postgres://u:p@"+addr+"/db?sslmode=disable")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPersistence)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestPostgresDSNConnectTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2500*time.Millisecond)
	defer cancel()

	assert.Equal(t, "postgres://h/db?connect_timeout=3", postgresDSN(ctx, "postgres://h/db"))
	assert.Equal(t, "postgres://h/db?sslmode=disable&connect_timeout=3", postgresDSN(ctx, "postgres://h/db?sslmode=disable"))
	assert.Equal(t, "host=h dbname=db connect_timeout=3", postgresDSN(ctx, "host=h dbname=db"))
	assert.Equal(t, "postgres://h/db?connect_timeout=9", postgresDSN(ctx, "postgres://h/db?connect_timeout=9"))
	assert.Equal(t, "postgres://h/db", postgresDSN(context.Background(), "postgres://h/db"))
}

func TestRebind(t *testing.T) {
	pg := &Store{driver: DriverPostgres}
	assert.Equal(t, "SELECT a FROM t WHERE x = $1 AND y = $2", pg.rebind("SELECT a FROM t WHERE x = ? AND y = ?"))

	lite := &Store{driver: DriverSQLite}
	assert.Equal(t, "x = ?", lite.rebind("x = ?"))
}

func TestPersistenceErrorMatching(t *testing.T) {
	err := persistErr("writing", errors.New("disk full"))
	assert.ErrorIs(t, err, ErrPersistence)

	var pe *PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "writing", pe.Op)
	assert.Contains(t, err.Error(), "disk full")
}

func TestClosedStoreReturnsPersistenceError(t *testing.T) {
	s, err := OpenMemory()
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = s.BudgetLines(context.Background())
	assert.ErrorIs(t, err, ErrPersistence)
	assert.ErrorIs(t, s.Ping(context.Background()), ErrPersistence)
}
