// Package model defines domain types for budget lines, payment requests, and sync runs.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// BudgetLine is a planned allocation of funds with a quarterly breakdown.
// Spent is derived from approved payment requests and is only written by
// reconciliation.
type BudgetLine struct {
	ID              string          `json:"id" yaml:"id"`
	BudgetCode      string          `json:"budget_code" yaml:"budget_code"`
	FundingSource   string          `json:"funding_source" yaml:"funding_source"`
	StrategicPillar string          `json:"strategic_pillar" yaml:"strategic_pillar"`
	Objective       string          `json:"objective" yaml:"objective"`
	Activity        string          `json:"activity" yaml:"activity"`
	OdooCode        string          `json:"odoo_code,omitempty" yaml:"odoo_code"`
	OdooCategory    string          `json:"odoo_category,omitempty" yaml:"odoo_category"`
	ZGFCode         string          `json:"zgf_code,omitempty" yaml:"zgf_code"`
	Currency        string          `json:"currency" yaml:"currency"`
	TotalCost       decimal.Decimal `json:"total_cost" yaml:"total_cost"`
	Q1              decimal.Decimal `json:"q1" yaml:"q1"`
	Q2              decimal.Decimal `json:"q2" yaml:"q2"`
	Q3              decimal.Decimal `json:"q3" yaml:"q3"`
	Q4              decimal.Decimal `json:"q4" yaml:"q4"`
	Spent           decimal.Decimal `json:"spent" yaml:"-"`
	UpdatedAt       time.Time       `json:"updated_at" yaml:"-"`
}

// Remaining returns TotalCost - Spent.
func (b BudgetLine) Remaining() decimal.Decimal {
	return b.TotalCost.Sub(b.Spent)
}

// Utilization returns Spent/TotalCost as a 0-1+ float, or 0 for an empty line.
func (b BudgetLine) Utilization() float64 {
	if b.TotalCost.IsZero() {
		return 0
	}
	return b.Spent.Div(b.TotalCost).InexactFloat64()
}

// QuarterTotal returns Q1+Q2+Q3+Q4.
func (b BudgetLine) QuarterTotal() decimal.Decimal {
	return b.Q1.Add(b.Q2).Add(b.Q3).Add(b.Q4)
}
