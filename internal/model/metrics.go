package model

import "github.com/shopspring/decimal"

// SummaryStats holds the top-level dashboard aggregate across budget lines.
type SummaryStats struct {
	Lines       int             `json:"lines"`
	TotalBudget decimal.Decimal `json:"total_budget"`
	TotalSpent  decimal.Decimal `json:"total_spent"`
	Remaining   decimal.Decimal `json:"remaining"`
	Utilization float64         `json:"utilization"`

	Q1 decimal.Decimal `json:"q1"`
	Q2 decimal.Decimal `json:"q2"`
	Q3 decimal.Decimal `json:"q3"`
	Q4 decimal.Decimal `json:"q4"`

	OverspentLines int `json:"overspent_lines"`
	UnlinkedCount  int `json:"unlinked_requests"`
}

// GroupStats aggregates budget lines sharing a funding source or pillar.
type GroupStats struct {
	Name        string          `json:"name"`
	Lines       int             `json:"lines"`
	TotalBudget decimal.Decimal `json:"total_budget"`
	TotalSpent  decimal.Decimal `json:"total_spent"`
	Utilization float64         `json:"utilization"`
}

// StatusTotals holds payment request counts and amounts per status.
type StatusTotals struct {
	Status Status          `json:"status"`
	Count  int             `json:"count"`
	Amount decimal.Decimal `json:"amount"`
}
