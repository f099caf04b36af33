// Package daemon provides the long-running ledger service: scheduled syncs,
// the HTTP API and the change event stream.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/theirongolddev/bdash/internal/config"
	"github.com/theirongolddev/bdash/internal/ledger"
	"github.com/theirongolddev/bdash/internal/model"
	"github.com/theirongolddev/bdash/internal/pipeline"
	"github.com/theirongolddev/bdash/internal/syncer"
)

// Event types.
const (
	EventSnapshot       = "snapshot"
	EventSyncCompleted  = "sync_completed"
	EventSyncFailed     = "sync_failed"
	EventRequestUpdated = "request_updated"
)

// Config controls the daemon runtime behavior.
type Config struct {
	Addr         string
	Schedule     string
	EventsBuffer int
	Capabilities config.Capabilities
	Logger       *slog.Logger
}

// Snapshot is a compact ledger state for status/event payloads.
type Snapshot struct {
	At          time.Time      `json:"at"`
	Lines       int            `json:"lines"`
	TotalBudget string         `json:"total_budget"`
	TotalSpent  string         `json:"total_spent"`
	Remaining   string         `json:"remaining"`
	Utilization float64        `json:"utilization"`
	Requests    map[string]int `json:"requests"`
	Unlinked    int            `json:"unlinked"`
}

// Delta captures snapshot changes between refreshes.
type Delta struct {
	TotalSpent string `json:"total_spent"`
	Requests   int    `json:"requests"`
	Approved   int    `json:"approved"`
}

// Event is published on the stream whenever the ledger changes.
type Event struct {
	ID        int64                 `json:"id"`
	Type      string                `json:"type"`
	Timestamp time.Time             `json:"timestamp"`
	Snapshot  Snapshot              `json:"snapshot"`
	Delta     *Delta                `json:"delta,omitempty"`
	Report    *model.SyncReport     `json:"report,omitempty"`
	Request   *model.PaymentRequest `json:"request,omitempty"`
	Error     string                `json:"error,omitempty"`
}

// Status is served at /v1/status.
type Status struct {
	StartedAt       time.Time         `json:"started_at"`
	HasRemoteSync   bool              `json:"has_remote_sync"`
	HasPersistence  bool              `json:"has_persistence"`
	SyncSchedule    string            `json:"sync_schedule,omitempty"`
	SyncRunning     bool              `json:"sync_running"`
	SyncCount       int64             `json:"sync_count"`
	LastSyncAt      time.Time         `json:"last_sync_at"`
	LastReport      *model.SyncReport `json:"last_report,omitempty"`
	Summary         Snapshot          `json:"summary"`
	LastError       string            `json:"last_error,omitempty"`
	EventCount      int               `json:"event_count"`
	SubscriberCount int               `json:"subscriber_count"`
}

// Service provides the daemon runtime and HTTP API.
type Service struct {
	cfg    Config
	ledger *ledger.Service
	syncer *syncer.Syncer
	log    *slog.Logger

	mu          sync.RWMutex
	startedAt   time.Time
	lastSyncAt  time.Time
	syncCount   int64
	lastReport  *model.SyncReport
	lastError   string
	snapshot    Snapshot
	nextEventID int64
	events      []Event

	nextSubID int
	subs      map[int]chan Event
}

// New returns a daemon over l. sy may be nil when remote sync is not
// configured; scheduled and manual syncs are then unavailable.
func New(cfg Config, l *ledger.Service, sy *syncer.Syncer) *Service {
	if cfg.EventsBuffer < 1 {
		cfg.EventsBuffer = 200
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8788"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Service{
		cfg:       cfg,
		ledger:    l,
		syncer:    sy,
		log:       cfg.Logger.With("component", "daemon"),
		startedAt: time.Now(),
		subs:      make(map[int]chan Event),
	}
}

// Run starts HTTP endpoints and the sync schedule until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Seed initial snapshot so status is useful immediately.
	if err := s.refresh(ctx); err != nil {
		s.log.Warn("initial snapshot failed", "error", err)
	}

	if s.syncer != nil && s.cfg.Schedule != "" {
		c := cron.New()
		if _, err := c.AddFunc(s.cfg.Schedule, func() { _, _ = s.runSync(ctx, "schedule") }); err != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
			return fmt.Errorf("daemon: invalid sync schedule %q: %w", s.cfg.Schedule, err)
		}
		c.Start()
		defer c.Stop()
		s.log.Info("sync scheduled", "schedule", s.cfg.Schedule)
	} else {
		s.log.Info("remote sync not configured; serving local ledger only")
	}

	s.log.Info("daemon listening", "addr", s.cfg.Addr)
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("daemon http server: %w", err)
	}
}

// runSync executes one sync and publishes the outcome.
func (s *Service) runSync(ctx context.Context, trigger string) (model.SyncReport, error) {
	if s.syncer == nil {
		return model.SyncReport{}, fmt.Errorf("daemon: sync: %w", config.ErrNotConfigured)
	}
	report, err := s.syncer.Run(ctx)
	if errors.Is(err, syncer.ErrSyncInProgress) {
		s.log.Debug("sync skipped, already running", "trigger", trigger)
		return report, err
	}

	s.mu.Lock()
	s.syncCount++
	s.lastSyncAt = time.Now()
	if err != nil {
		s.lastError = err.Error()
	} else {
		s.lastError = ""
		s.lastReport = &report
	}
	s.mu.Unlock()

	if err != nil {
		s.log.Error("sync failed", "trigger", trigger, "error", err, "retryable", syncer.Retryable(err))
		s.publish(Event{Type: EventSyncFailed, Error: err.Error()})
		return report, err
	}

	prev := s.currentSnapshot()
	if rerr := s.refresh(ctx); rerr != nil {
		s.log.Warn("snapshot refresh failed", "error", rerr)
	}
	curr := s.currentSnapshot()
	delta := diffSnapshots(prev, curr)
	s.publish(Event{Type: EventSyncCompleted, Report: &report, Delta: &delta})
	return report, nil
}

// refresh reloads the ledger summary into the cached snapshot.
func (s *Service) refresh(ctx context.Context) error {
	snap, err := pipeline.Load(ctx, s.ledger)
	if err != nil {
		s.mu.Lock()
		s.lastError = err.Error()
		s.mu.Unlock()
		return err
	}
	next := snapshotFromLedger(snap)
	s.mu.Lock()
	s.snapshot = next
	s.mu.Unlock()
	return nil
}

func (s *Service) currentSnapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

func snapshotFromLedger(snap *pipeline.Snapshot) Snapshot {
	stats := pipeline.Aggregate(snap.Lines, snap.Requests)
	statuses := pipeline.AggregateStatuses(snap.Requests)
	counts := make(map[string]int, len(statuses))
	for _, st := range statuses {
		counts[string(st.Status)] = st.Count
	}
	return Snapshot{
		At:          snap.LoadedAt,
		Lines:       stats.Lines,
		TotalBudget: stats.TotalBudget.StringFixed(2),
		TotalSpent:  stats.TotalSpent.StringFixed(2),
		Remaining:   stats.Remaining.StringFixed(2),
		Utilization: stats.Utilization,
		Requests:    counts,
		Unlinked:    stats.UnlinkedCount,
	}
}

func diffSnapshots(prev, curr Snapshot) Delta {
	total := func(sn Snapshot) int {
		n := 0
		for _, c := range sn.Requests {
			n += c
		}
		return n
	}
	return Delta{
		TotalSpent: subAmounts(curr.TotalSpent, prev.TotalSpent),
		Requests:   total(curr) - total(prev),
		Approved:   curr.Requests[string(model.StatusApproved)] - prev.Requests[string(model.StatusApproved)],
	}
}

func (s *Service) publish(ev Event) {
	s.mu.Lock()
	s.nextEventID++
	ev.ID = s.nextEventID
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	ev.Snapshot = s.snapshot
	s.mu.Unlock()
	s.publishEvent(ev)
}

func (s *Service) publishEvent(ev Event) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	if len(s.events) > s.cfg.EventsBuffer {
		s.events = s.events[len(s.events)-s.cfg.EventsBuffer:]
	}

	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	s.mu.Unlock()
}

func (s *Service) snapshotStatus() Status {
	running := false
	if s.syncer != nil {
		running = s.syncer.Running()
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Status{
		StartedAt:       s.startedAt,
		HasRemoteSync:   s.cfg.Capabilities.HasRemoteSync,
		HasPersistence:  s.cfg.Capabilities.HasPersistence,
		SyncRunning:     running,
		SyncCount:       s.syncCount,
		LastSyncAt:      s.lastSyncAt,
		LastReport:      s.lastReport,
		Summary:         s.snapshot,
		LastError:       s.lastError,
		EventCount:      len(s.events),
		SubscriberCount: len(s.subs),
	}
	if s.syncer != nil {
		st.SyncSchedule = s.cfg.Schedule
	}
	return st
}

func (s *Service) addSubscriber(ch chan Event) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSubID++
	id := s.nextSubID
	s.subs[id] = ch
	return id
}

func (s *Service) removeSubscriber(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, id)
}
