package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theirongolddev/bdash/internal/config"
	"github.com/theirongolddev/bdash/internal/ledger"
	"github.com/theirongolddev/bdash/internal/model"
	"github.com/theirongolddev/bdash/internal/sharepoint"
	"github.com/theirongolddev/bdash/internal/store"
)

type fakeFetcher struct {
	res   *sharepoint.Result
	err   error
	block chan struct{}
	calls int
}

func (f *fakeFetcher) Fetch(ctx context.Context) (*sharepoint.Result, error) {
	f.calls++
	if f.block != nil {
		<-f.block
	}
	return f.res, f.err
}

// failingStore fails writes for the listed request ids.
type failingStore struct {
	*store.Store
	failIDs map[string]bool
	pingErr error
}

func (f *failingStore) UpsertPaymentRequest(ctx context.Context, pr model.PaymentRequest) (string, error) {
	if f.failIDs[pr.ID] {
		return "", &store.PersistenceError{Op: "upsert", Err: errors.New("constraint failed")}
	}
	return f.Store.UpsertPaymentRequest(ctx, pr)
}

func (f *failingStore) Ping(ctx context.Context) error {
	if f.pingErr != nil {
		return f.pingErr
	}
	return f.Store.Ping(ctx)
}

func record(id string, fields map[string]any) sharepoint.RawRecord {
	raw := map[string]json.RawMessage{}
	for k, v := range fields {
		b, _ := json.Marshal(v)
		raw[k] = b
	}
	return sharepoint.RawRecord{ItemID: id, Fields: raw}
}

func setup(t *testing.T, f *fakeFetcher) (*Syncer, *ledger.Service, *failingStore) {
	t.Helper()
	st, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	fs := &failingStore{Store: st, failIDs: map[string]bool{}}
	svc := ledger.New(fs, ledger.Options{})
	require.NoError(t, svc.UpsertBudgetLine(context.Background(), model.BudgetLine{
		ID: "L1", BudgetCode: "GF-01", TotalCost: decimal.NewFromInt(10000),
	}))
	s, err := New(f, svc, nil)
	require.NoError(t, err)
	return s, svc, fs
}

func threeRecords() *sharepoint.Result {
	return &sharepoint.Result{Records: []sharepoint.RawRecord{
		record("1", map[string]any{"Title": "a", "BudgetLineID": "L1", "Amount": 100, "ApprovalStatus": "Approved"}),
		record("2", map[string]any{"Title": "b", "BudgetLineID": "L1", "Amount": "200", "ApprovalStatus": "Pending"}),
		record("3", map[string]any{"Title": "c", "BudgetLineID": "L1", "Amount": 300.5, "ApprovalStatus": "approved"}),
	}}
}

func TestRunSyncsAllRecords(t *testing.T) {
	s, svc, _ := setup(t, &fakeFetcher{res: threeRecords()})
	ctx := context.Background()

	report, err := s.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Fetched)
	assert.Equal(t, 3, report.Synced)
	assert.Equal(t, 2, report.Approved)
	assert.Zero(t, report.Unlinked)
	assert.Empty(t, report.Errors)
	assert.NotEmpty(t, report.RunID)
	assert.False(t, report.FinishedAt.Before(report.StartedAt))

	line, err := svc.BudgetLine(ctx, "L1")
	require.NoError(t, err)
	assert.Equal(t, "400.5", line.Spent.String())
}

func TestRunIsIdempotent(t *testing.T) {
	s, svc, _ := setup(t, &fakeFetcher{res: threeRecords()})
	ctx := context.Background()

	firstReport, err := s.Run(ctx)
	require.NoError(t, err)
	first, err := svc.ListPaymentRequests(ctx)
	require.NoError(t, err)

	secondReport, err := s.Run(ctx)
	require.NoError(t, err)
	second, err := svc.ListPaymentRequests(ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, firstReport.Synced)
	assert.Equal(t, firstReport.Synced, secondReport.Synced)
	assert.Equal(t, firstReport.Approved, secondReport.Approved)
	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
		assert.Equal(t, first[i].Status, second[i].Status)
		assert.True(t, first[i].Amount.Equal(second[i].Amount))
	}
	line, err := svc.BudgetLine(ctx, "L1")
	require.NoError(t, err)
	assert.Equal(t, "400.5", line.Spent.String())
}

func TestRunCountsUnlinked(t *testing.T) {
	s, svc, _ := setup(t, &fakeFetcher{res: &sharepoint.Result{Records: []sharepoint.RawRecord{
		record("1", map[string]any{"Title": "a", "BudgetLineID": "L1", "Amount": 100, "ApprovalStatus": "Approved"}),
		record("2", map[string]any{"Title": "b", "BudgetLineID": "L9", "Amount": 50, "ApprovalStatus": "Approved"}),
		record("3", map[string]any{"Title": "c", "Amount": 25, "ApprovalStatus": "Pending"}),
	}}})
	ctx := context.Background()

	report, err := s.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Synced)
	assert.Equal(t, 2, report.Unlinked)
	assert.Empty(t, report.Errors)

	line, err := svc.BudgetLine(ctx, "L1")
	require.NoError(t, err)
	assert.Equal(t, "100", line.Spent.String())
}

func TestRunPartialFailure(t *testing.T) {
	s, svc, fs := setup(t, &fakeFetcher{res: threeRecords()})
	fs.failIDs["PR-2"] = true
	ctx := context.Background()

	report, err := s.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Synced)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, "PR-2", report.Errors[0].ID)

	_, err = svc.PaymentRequest(ctx, "PR-1")
	assert.NoError(t, err)
	_, err = svc.PaymentRequest(ctx, "PR-3")
	assert.NoError(t, err)
	_, err = svc.PaymentRequest(ctx, "PR-2")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRunRejectsInvalidRecords(t *testing.T) {
	f := &fakeFetcher{res: &sharepoint.Result{Records: []sharepoint.RawRecord{
		record("1", map[string]any{"Title": "zero", "Amount": 0}),
		record("2", map[string]any{"Title": "negative", "Amount": -5}),
		record("3", map[string]any{"Title": "missing"}),
		record("", map[string]any{"Title": "no id", "Amount": 5}),
		record("4", map[string]any{"Title": "ok", "Amount": 5}),
	}}}
	s, _, _ := setup(t, f)

	report, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, report.Fetched)
	assert.Equal(t, 1, report.Synced)
	assert.Len(t, report.Errors, 4)
}

func TestRunFetchFailureWritesNothing(t *testing.T) {
	f := &fakeFetcher{err: fmt.Errorf("wrap: %w", sharepoint.ErrAuth)}
	s, svc, _ := setup(t, f)

	report, err := s.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, sharepoint.ErrAuth)
	assert.Zero(t, report.Synced)

	all, err := svc.ListPaymentRequests(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestRunStoreUnavailableAbortsBeforeFetch(t *testing.T) {
	f := &fakeFetcher{res: threeRecords()}
	s, _, fs := setup(t, f)
	fs.pingErr = &store.PersistenceError{Op: "ping", Err: errors.New("connection refused")}

	_, err := s.Run(context.Background())
	assert.ErrorIs(t, err, store.ErrPersistence)
	assert.Zero(t, f.calls)
}

func TestRunTruncatedFlag(t *testing.T) {
	res := threeRecords()
	res.Truncated = true
	s, _, _ := setup(t, &fakeFetcher{res: res})

	report, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Truncated)
}

func TestConcurrentRunRejected(t *testing.T) {
	f := &fakeFetcher{res: threeRecords(), block: make(chan struct{})}
	s, _, _ := setup(t, f)

	var wg sync.WaitGroup
	wg.Add(1)
	var firstErr error
	go func() {
		defer wg.Done()
		_, firstErr = s.Run(context.Background())
	}()

	require.Eventually(t, s.Running, time.Second, time.Millisecond)
	_, err := s.Run(context.Background())
	assert.ErrorIs(t, err, ErrSyncInProgress)

	close(f.block)
	wg.Wait()
	assert.NoError(t, firstErr)
	assert.False(t, s.Running())
}

func TestNewWithoutFetcher(t *testing.T) {
	_, err := New(nil, nil, nil)
	assert.ErrorIs(t, err, config.ErrNotConfigured)
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(sharepoint.ErrRemoteUnavailable))
	assert.True(t, Retryable(&sharepoint.RemoteError{StatusCode: 401}))
	assert.True(t, Retryable(fmt.Errorf("x: %w", store.ErrPersistence)))
	assert.True(t, Retryable(&ledger.ReconcileError{LineID: "L1", Err: errors.New("x")}))
	assert.True(t, Retryable(ErrSyncInProgress))
	assert.True(t, Retryable(context.DeadlineExceeded))
	assert.False(t, Retryable(store.ErrNotFound))
	assert.False(t, Retryable(config.ErrNotConfigured))
	assert.False(t, Retryable(nil))
	assert.False(t, Retryable(errors.New("boom")))
}
