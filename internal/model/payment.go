package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentRequest is a claim against a budget line.
type PaymentRequest struct {
	ID           string          `json:"id" yaml:"id"`
	SharePointID *int64          `json:"sharepoint_id,omitempty" yaml:"sharepoint_id"`
	Name         string          `json:"name" yaml:"name"`
	BudgetCode   string          `json:"budget_code" yaml:"budget_code"`
	BudgetLineID string          `json:"budget_line_id,omitempty" yaml:"budget_line_id"`
	Year         int             `json:"year" yaml:"year"`
	Amount       decimal.Decimal `json:"amount" yaml:"amount"`
	RequestedBy  string          `json:"requested_by" yaml:"requested_by"`
	Status       Status          `json:"status" yaml:"status"`
	RequestDate  time.Time       `json:"request_date" yaml:"request_date"`
	SyncedAt     *time.Time      `json:"synced_at,omitempty" yaml:"-"`
	CreatedAt    time.Time       `json:"created_at" yaml:"-"`
	UpdatedAt    time.Time       `json:"updated_at" yaml:"-"`

	// Unlinked is set on reads when BudgetLineID is empty or names no line.
	Unlinked bool `json:"unlinked" yaml:"-"`
}

// IsApproved reports whether the request currently counts against its line.
func (p PaymentRequest) IsApproved() bool {
	return p.Status == StatusApproved
}
