package daemon

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/theirongolddev/bdash/internal/config"
	"github.com/theirongolddev/bdash/internal/ledger"
	"github.com/theirongolddev/bdash/internal/model"
	"github.com/theirongolddev/bdash/internal/pipeline"
	"github.com/theirongolddev/bdash/internal/store"
	"github.com/theirongolddev/bdash/internal/syncer"
)

// Handler returns the HTTP API.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /v1/status", s.handleStatus)
	mux.HandleFunc("GET /v1/summary", s.handleSummary)
	mux.HandleFunc("GET /v1/budget-lines", s.handleBudgetLines)
	mux.HandleFunc("GET /v1/payment-requests", s.handlePaymentRequests)
	mux.HandleFunc("POST /v1/payment-requests/{id}/approve", s.handleSetStatus(model.StatusApproved))
	mux.HandleFunc("POST /v1/payment-requests/{id}/reject", s.handleSetStatus(model.StatusRejected))
	mux.HandleFunc("POST /v1/sync", s.handleSync)
	mux.HandleFunc("GET /v1/events", s.handleEvents)
	mux.HandleFunc("GET /v1/stream", s.handleStream)
	return mux
}

type summaryResponse struct {
	Summary         model.SummaryStats   `json:"summary"`
	ByFundingSource []model.GroupStats   `json:"by_funding_source"`
	ByPillar        []model.GroupStats   `json:"by_pillar"`
	Statuses        []model.StatusTotals `json:"statuses"`
}

type actionResponse struct {
	Request        model.PaymentRequest `json:"request"`
	ReconcileError string               `json:"reconcile_error,omitempty"`
}

type errorResponse struct {
	Error     string `json:"error"`
	Retryable bool   `json:"retryable"`
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.Ping(r.Context()); err != nil {
		http.Error(w, "store unavailable\n", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Service) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.snapshotStatus())
}

func (s *Service) handleSummary(w http.ResponseWriter, r *http.Request) {
	snap, err := pipeline.Load(r.Context(), s.ledger)
	if err != nil {
		s.writeError(w, err)
		return
	}
	source := r.URL.Query().Get("funding_source")
	lines := pipeline.FilterLines(snap.Lines, source, "")
	reqs := pipeline.FilterRequests(snap.Requests, snap.Lines, pipeline.RequestFilter{FundingSource: source})
	writeJSON(w, http.StatusOK, summaryResponse{
		Summary:         pipeline.Aggregate(lines, reqs),
		ByFundingSource: pipeline.AggregateByFundingSource(lines),
		ByPillar:        pipeline.AggregateByPillar(lines),
		Statuses:        pipeline.AggregateStatuses(reqs),
	})
}

func (s *Service) handleBudgetLines(w http.ResponseWriter, r *http.Request) {
	lines, err := s.ledger.ListBudgetLines(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	q := r.URL.Query()
	lines = pipeline.FilterLines(lines, q.Get("funding_source"), q.Get("pillar"))
	pipeline.SortLinesByTotalCost(lines)
	if lines == nil {
		lines = []model.BudgetLine{}
	}
	writeJSON(w, http.StatusOK, lines)
}

func (s *Service) handlePaymentRequests(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := pipeline.RequestFilter{FundingSource: q.Get("funding_source"), Query: q.Get("q")}
	if raw := q.Get("status"); raw != "" {
		st, err := model.ParseStatus(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		f.Status = st
	}

	snap, err := pipeline.Load(r.Context(), s.ledger)
	if err != nil {
		s.writeError(w, err)
		return
	}
	reqs := pipeline.FilterRequests(snap.Requests, snap.Lines, f)
	if reqs == nil {
		reqs = []model.PaymentRequest{}
	}
	writeJSON(w, http.StatusOK, reqs)
}

func (s *Service) handleSetStatus(status model.Status) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		pr, err := s.ledger.SetStatus(r.Context(), id, status)
		resp := actionResponse{Request: pr}
		switch {
		case err == nil:
		case errors.Is(err, ledger.ErrReconcile):
			resp.ReconcileError = err.Error()
		default:
			s.writeError(w, err)
			return
		}

		if rerr := s.refresh(r.Context()); rerr != nil {
			s.log.Warn("snapshot refresh failed", "error", rerr)
		}
		s.publish(Event{Type: EventRequestUpdated, Request: &pr, Error: resp.ReconcileError})
		writeJSON(w, http.StatusOK, resp)
	}
}

func (s *Service) handleSync(w http.ResponseWriter, r *http.Request) {
	report, err := s.runSync(r.Context(), "api")
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Service) handleEvents(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	events := make([]Event, len(s.events))
	copy(events, s.events)
	s.mu.RUnlock()

	writeJSON(w, http.StatusOK, events)
}

func (s *Service) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := make(chan Event, 16)
	id := s.addSubscriber(ch)
	defer s.removeSubscriber(id)

	// Send current snapshot immediately.
	current := Event{
		Type:      EventSnapshot,
		Timestamp: time.Now(),
		Snapshot:  s.currentSnapshot(),
	}
	writeSSE(w, current)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-ch:
			writeSSE(w, ev)
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if ev.ID > 0 {
		_, _ = fmt.Fprintf(w, "id: %d\n", ev.ID)
	}
	_, _ = fmt.Fprintf(w, "event: %s\n", ev.Type)
	_, _ = fmt.Fprintf(w, "data: %s\n\n", data)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps an error to its HTTP status code.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, config.ErrNotConfigured):
		return http.StatusPreconditionFailed
	case errors.Is(err, syncer.ErrSyncInProgress):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrInvalid):
		return http.StatusBadRequest
	case syncer.Retryable(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Service) writeError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code >= 500 {
		s.log.Error("request failed", "status", code, "error", err)
	}
	writeJSON(w, code, errorResponse{Error: err.Error(), Retryable: syncer.Retryable(err)})
}

func subAmounts(a, b string) string {
	da, _ := decimal.NewFromString(a)
	db, _ := decimal.NewFromString(b)
	return da.Sub(db).StringFixed(2)
}
