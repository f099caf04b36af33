package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeStatus(t *testing.T) {
	cases := map[string]Status{
		"Approved":  StatusApproved,
		"approved ": StatusApproved,
		"APPROVED":  StatusApproved,
		" rejected": StatusRejected,
		"Declined":  StatusRejected,
		"declined":  StatusRejected,
		"Pending":   StatusPending,
		"":          StatusPending,
		"   ":       StatusPending,
		"in review": StatusPending,
		"approve":   StatusPending,
	}
	for raw, want := range cases {
		assert.Equal(t, want, NormalizeStatus(raw), "NormalizeStatus(%q)", raw)
	}
}

func TestParseStatus(t *testing.T) {
	st, err := ParseStatus("approved")
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, st)

	_, err = ParseStatus("declined")
	assert.Error(t, err, "strict parse must not accept upstream aliases")
}

func TestBudgetLineDerived(t *testing.T) {
	line := BudgetLine{
		TotalCost: decimal.RequireFromString("1000"),
		Spent:     decimal.RequireFromString("250"),
		Q1:        decimal.RequireFromString("100"),
		Q2:        decimal.RequireFromString("200"),
		Q3:        decimal.RequireFromString("300"),
		Q4:        decimal.RequireFromString("400"),
	}
	assert.True(t, line.Remaining().Equal(decimal.RequireFromString("750")))
	assert.InDelta(t, 0.25, line.Utilization(), 1e-9)
	assert.True(t, line.QuarterTotal().Equal(line.TotalCost))

	assert.Zero(t, BudgetLine{}.Utilization())
}
