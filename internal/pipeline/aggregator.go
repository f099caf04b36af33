// Package pipeline loads ledger snapshots and aggregates them into dashboard
// statistics.
package pipeline

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/theirongolddev/bdash/internal/model"
)

// FilterAll matches every funding source or pillar.
const FilterAll = "All"

var pillarShort = map[string]string{
	"Civic Education and Voter Information":  "Civic Ed.",
	"Democratic Governance and Human Rights": "Democracy",
	"Strengthening Communities":              "Communities",
	"Operations":                             "Operations",
}

// PillarShort returns the short display label for a strategic pillar.
func PillarShort(pillar string) string {
	if s, ok := pillarShort[pillar]; ok {
		return s
	}
	return pillar
}

// Aggregate computes the dashboard summary over lines. Unlinked requests are
// counted from requests.
func Aggregate(lines []model.BudgetLine, requests []model.PaymentRequest) model.SummaryStats {
	stats := model.SummaryStats{
		TotalBudget: decimal.Zero,
		TotalSpent:  decimal.Zero,
		Q1:          decimal.Zero,
		Q2:          decimal.Zero,
		Q3:          decimal.Zero,
		Q4:          decimal.Zero,
	}

	for _, l := range lines {
		stats.Lines++
		stats.TotalBudget = stats.TotalBudget.Add(l.TotalCost)
		stats.TotalSpent = stats.TotalSpent.Add(l.Spent)
		stats.Q1 = stats.Q1.Add(l.Q1)
		stats.Q2 = stats.Q2.Add(l.Q2)
		stats.Q3 = stats.Q3.Add(l.Q3)
		stats.Q4 = stats.Q4.Add(l.Q4)
		if l.Spent.GreaterThan(l.TotalCost) {
			stats.OverspentLines++
		}
	}
	stats.Remaining = stats.TotalBudget.Sub(stats.TotalSpent)
	if !stats.TotalBudget.IsZero() {
		stats.Utilization = stats.TotalSpent.Div(stats.TotalBudget).InexactFloat64()
	}

	for _, r := range requests {
		if r.Unlinked {
			stats.UnlinkedCount++
		}
	}
	return stats
}

// AggregateByFundingSource groups lines by funding source, largest budget first.
func AggregateByFundingSource(lines []model.BudgetLine) []model.GroupStats {
	return groupBy(lines, func(l model.BudgetLine) string { return l.FundingSource })
}

// AggregateByPillar groups lines by strategic pillar, largest budget first.
// Group names use the short pillar label.
func AggregateByPillar(lines []model.BudgetLine) []model.GroupStats {
	return groupBy(lines, func(l model.BudgetLine) string { return PillarShort(l.StrategicPillar) })
}

func groupBy(lines []model.BudgetLine, key func(model.BudgetLine) string) []model.GroupStats {
	groups := make(map[string]*model.GroupStats)
	for _, l := range lines {
		k := key(l)
		g, ok := groups[k]
		if !ok {
			g = &model.GroupStats{Name: k, TotalBudget: decimal.Zero, TotalSpent: decimal.Zero}
			groups[k] = g
		}
		g.Lines++
		g.TotalBudget = g.TotalBudget.Add(l.TotalCost)
		g.TotalSpent = g.TotalSpent.Add(l.Spent)
	}

	out := make([]model.GroupStats, 0, len(groups))
	for _, g := range groups {
		if !g.TotalBudget.IsZero() {
			g.Utilization = g.TotalSpent.Div(g.TotalBudget).InexactFloat64()
		}
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].TotalBudget.Cmp(out[j].TotalBudget); c != 0 {
			return c > 0
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// AggregateStatuses returns count and amount per status, one entry per
// canonical status in display order.
func AggregateStatuses(requests []model.PaymentRequest) []model.StatusTotals {
	out := make([]model.StatusTotals, len(model.Statuses))
	idx := make(map[model.Status]int, len(model.Statuses))
	for i, st := range model.Statuses {
		out[i] = model.StatusTotals{Status: st, Amount: decimal.Zero}
		idx[st] = i
	}
	for _, r := range requests {
		i, ok := idx[r.Status]
		if !ok {
			continue
		}
		out[i].Count++
		out[i].Amount = out[i].Amount.Add(r.Amount)
	}
	return out
}

// ApprovedByMonth totals approved request amounts per calendar month of
// year, January first.
func ApprovedByMonth(requests []model.PaymentRequest, year int) [12]decimal.Decimal {
	var out [12]decimal.Decimal
	for i := range out {
		out[i] = decimal.Zero
	}
	for _, r := range requests {
		if !r.IsApproved() || r.RequestDate.Year() != year {
			continue
		}
		m := r.RequestDate.Month() - 1
		out[m] = out[m].Add(r.Amount)
	}
	return out
}

// LatestYear returns the most recent request year with approved spend,
// or fallback when nothing is approved.
func LatestYear(requests []model.PaymentRequest, fallback int) int {
	year := 0
	for _, r := range requests {
		if r.IsApproved() && !r.RequestDate.IsZero() {
			year = max(year, r.RequestDate.Year())
		}
	}
	if year == 0 {
		return fallback
	}
	return year
}

// FundingSources returns the distinct funding sources in lines, sorted.
func FundingSources(lines []model.BudgetLine) []string {
	seen := make(map[string]bool)
	var out []string
	for _, l := range lines {
		if l.FundingSource != "" && !seen[l.FundingSource] {
			seen[l.FundingSource] = true
			out = append(out, l.FundingSource)
		}
	}
	sort.Strings(out)
	return out
}

// FilterLines returns lines matching the funding source and pillar.
// Empty or FilterAll matches everything.
func FilterLines(lines []model.BudgetLine, fundingSource, pillar string) []model.BudgetLine {
	if isAll(fundingSource) && isAll(pillar) {
		return lines
	}
	var result []model.BudgetLine
	for _, l := range lines {
		if !isAll(fundingSource) && l.FundingSource != fundingSource {
			continue
		}
		if !isAll(pillar) && l.StrategicPillar != pillar && PillarShort(l.StrategicPillar) != pillar {
			continue
		}
		result = append(result, l)
	}
	return result
}

// RequestFilter selects payment requests.
type RequestFilter struct {
	// FundingSource matches through the request's linked line.
	FundingSource string
	Status        model.Status
	// Query is a case-insensitive substring of name, id or budget code.
	Query string
}

// FilterRequests returns the requests matching f. lines resolves funding
// sources; unlinked requests never match a funding source filter.
func FilterRequests(requests []model.PaymentRequest, lines []model.BudgetLine, f RequestFilter) []model.PaymentRequest {
	if isAll(f.FundingSource) && f.Status == "" && f.Query == "" {
		return requests
	}
	source := make(map[string]string, len(lines))
	for _, l := range lines {
		source[l.ID] = l.FundingSource
	}

	var result []model.PaymentRequest
	for _, r := range requests {
		if !isAll(f.FundingSource) && source[r.BudgetLineID] != f.FundingSource {
			continue
		}
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		if f.Query != "" && !containsIgnoreCase(r.Name, f.Query) &&
			!containsIgnoreCase(r.ID, f.Query) && !containsIgnoreCase(r.BudgetCode, f.Query) {
			continue
		}
		result = append(result, r)
	}
	return result
}

// SortLinesByTotalCost sorts lines by total cost descending, then id.
func SortLinesByTotalCost(lines []model.BudgetLine) {
	sort.SliceStable(lines, func(i, j int) bool {
		if c := lines[i].TotalCost.Cmp(lines[j].TotalCost); c != 0 {
			return c > 0
		}
		return lines[i].ID < lines[j].ID
	})
}

// SortRequestsByDate sorts requests newest first, then id.
func SortRequestsByDate(requests []model.PaymentRequest) {
	sort.SliceStable(requests, func(i, j int) bool {
		if !requests[i].RequestDate.Equal(requests[j].RequestDate) {
			return requests[i].RequestDate.After(requests[j].RequestDate)
		}
		return requests[i].ID < requests[j].ID
	})
}

// TopByUtilization returns up to n lines with the highest utilization.
func TopByUtilization(lines []model.BudgetLine, n int) []model.BudgetLine {
	out := make([]model.BudgetLine, len(lines))
	copy(out, lines)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Utilization() > out[j].Utilization()
	})
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

func isAll(s string) bool {
	return s == "" || s == FilterAll
}

func containsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
