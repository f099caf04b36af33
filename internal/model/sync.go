package model

import "time"

// RecordError is a per-record failure captured during a sync run.
type RecordError struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// SyncReport summarizes one sync run.
type SyncReport struct {
	RunID      string        `json:"run_id"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Fetched    int           `json:"fetched"`
	Synced     int           `json:"synced"`
	Approved   int           `json:"approved"`
	Unlinked   int           `json:"unlinked"`
	Truncated  bool          `json:"truncated,omitempty"`
	Errors     []RecordError `json:"errors"`
}

// Duration returns how long the run took.
func (r SyncReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
