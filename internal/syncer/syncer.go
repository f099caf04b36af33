// Package syncer pulls payment requests from the remote list into the ledger.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/theirongolddev/bdash/internal/config"
	"github.com/theirongolddev/bdash/internal/ledger"
	"github.com/theirongolddev/bdash/internal/model"
	"github.com/theirongolddev/bdash/internal/sharepoint"
	"github.com/theirongolddev/bdash/internal/store"
)

// ErrSyncInProgress is returned when Run is called while another run is active.
var ErrSyncInProgress = errors.New("syncer: sync already in progress")

// Fetcher reads the remote records. *sharepoint.Client satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context) (*sharepoint.Result, error)
}

// Syncer runs one sync at a time.
type Syncer struct {
	fetcher Fetcher
	ledger  *ledger.Service
	log     *slog.Logger
	now     func() time.Time
	running *semaphore.Weighted
}

// New returns a Syncer. A nil fetcher means remote sync is not configured
// and New fails with config.ErrNotConfigured.
func New(f Fetcher, l *ledger.Service, logger *slog.Logger) (*Syncer, error) {
	if f == nil {
		return nil, fmt.Errorf("syncer: remote list: %w", config.ErrNotConfigured)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{
		fetcher: f,
		ledger:  l,
		log:     logger.With("component", "syncer"),
		now:     time.Now,
		running: semaphore.NewWeighted(1),
	}, nil
}

// Running reports whether a sync is in flight.
func (s *Syncer) Running() bool {
	if s.running.TryAcquire(1) {
		s.running.Release(1)
		return false
	}
	return true
}

// Run fetches every remote record and writes it through the ledger. Fetch
// and store connectivity failures abort the run before any record is
// written. Per-record failures are collected in the report.
func (s *Syncer) Run(ctx context.Context) (model.SyncReport, error) {
	if !s.running.TryAcquire(1) {
		return model.SyncReport{}, ErrSyncInProgress
	}
	defer s.running.Release(1)

	report := model.SyncReport{
		RunID:     uuid.NewString(),
		StartedAt: s.now(),
		Errors:    []model.RecordError{},
	}
	log := s.log.With("run_id", report.RunID)

	if err := s.ledger.Ping(ctx); err != nil {
		return s.fail(log, report, fmt.Errorf("sync: store unavailable: %w", err))
	}

	res, err := s.fetcher.Fetch(ctx)
	if err != nil {
		return s.fail(log, report, fmt.Errorf("sync: fetch: %w", err))
	}
	report.Fetched = len(res.Records)
	report.Truncated = res.Truncated

	now := s.now()
	for _, rec := range res.Records {
		if err := ctx.Err(); err != nil {
			return s.fail(log, report, fmt.Errorf("sync: %w", err))
		}
		s.syncRecord(ctx, log, rec, now, &report)
	}

	report.FinishedAt = s.now()
	log.Info("sync completed",
		"fetched", report.Fetched,
		"synced", report.Synced,
		"approved", report.Approved,
		"unlinked", report.Unlinked,
		"errors", len(report.Errors),
		"truncated", report.Truncated,
		"duration", report.Duration().Round(time.Millisecond))
	return report, nil
}

func (s *Syncer) syncRecord(ctx context.Context, log *slog.Logger, rec sharepoint.RawRecord, now time.Time, report *model.SyncReport) {
	if rec.ID() == "" {
		report.Errors = append(report.Errors, model.RecordError{Message: "record has no id"})
		log.Warn("skipping record without id")
		return
	}
	pr := rec.ToPaymentRequest(now)
	if !pr.Amount.IsPositive() {
		msg := fmt.Sprintf("amount must be positive, got %s", pr.Amount)
		report.Errors = append(report.Errors, model.RecordError{ID: pr.ID, Message: msg})
		log.Warn("skipping record", "id", pr.ID, "reason", msg)
		return
	}

	stored, err := s.ledger.UpsertPaymentRequest(ctx, pr)
	switch {
	case err == nil:
	case errors.Is(err, ledger.ErrReconcile):
		// The request row is written; only the line total is stale.
		report.Errors = append(report.Errors, model.RecordError{ID: pr.ID, Message: err.Error()})
	default:
		report.Errors = append(report.Errors, model.RecordError{ID: pr.ID, Message: err.Error()})
		log.Error("record failed", "id", pr.ID, "error", err)
		return
	}

	report.Synced++
	if pr.IsApproved() {
		report.Approved++
	}
	if stored.Unlinked {
		report.Unlinked++
	}
}

func (s *Syncer) fail(log *slog.Logger, report model.SyncReport, err error) (model.SyncReport, error) {
	report.FinishedAt = s.now()
	log.Error("sync failed", "error", err)
	return report, err
}

// Retryable reports whether err is a transient failure worth retrying.
func Retryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, store.ErrNotFound), errors.Is(err, config.ErrNotConfigured),
		errors.Is(err, ledger.ErrInvalid):
		return false
	}
	return errors.Is(err, sharepoint.ErrAuth) ||
		errors.Is(err, sharepoint.ErrRemoteUnavailable) ||
		errors.Is(err, store.ErrPersistence) ||
		errors.Is(err, ledger.ErrReconcile) ||
		errors.Is(err, ErrSyncInProgress) ||
		errors.Is(err, context.DeadlineExceeded)
}
