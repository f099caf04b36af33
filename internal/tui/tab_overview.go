package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/theirongolddev/bdash/internal/cli"
	"github.com/theirongolddev/bdash/internal/model"
	"github.com/theirongolddev/bdash/internal/pipeline"
	"github.com/theirongolddev/bdash/internal/tui/components"
	"github.com/theirongolddev/bdash/internal/tui/theme"
)

var monthLabels = []string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

func (a App) renderOverviewTab(cw int) string {
	t := theme.Active
	stats := a.stats
	cur := a.opts.Currency
	var b strings.Builder

	// Row 1: metric cards
	statuses := pipeline.AggregateStatuses(a.requests)
	pending := statuses[0]
	for _, st := range statuses {
		if st.Status == model.StatusPending {
			pending = st
		}
	}

	remainingColor := t.Green
	if stats.Remaining.IsNegative() {
		remainingColor = t.Red
	}
	unlinked := ""
	if stats.UnlinkedCount > 0 {
		unlinked = fmt.Sprintf("%d unlinked", stats.UnlinkedCount)
	}
	overspent := fmt.Sprintf("%d lines", stats.Lines)
	if stats.OverspentLines > 0 {
		overspent = fmt.Sprintf("%d lines, %d over", stats.Lines, stats.OverspentLines)
	}

	b.WriteString(components.MetricCardRow([]components.Metric{
		{Label: "Total Budget", Value: cli.FormatMoney(stats.TotalBudget, cur), Delta: overspent},
		{Label: "Spent", Value: cli.FormatMoney(stats.TotalSpent, cur), Delta: cli.FormatPercent(stats.Utilization) + " used",
			Color: t.UtilizationColor(stats.Utilization)},
		{Label: "Remaining", Value: cli.FormatMoney(stats.Remaining, cur), Color: remainingColor},
		{Label: "Pending", Value: cli.FormatMoney(pending.Amount, cur),
			Delta: strings.TrimSpace(fmt.Sprintf("%d requests %s", pending.Count, unlinked))},
	}, cw))
	b.WriteString("\n")

	// Row 2: funding source + pillar breakdown
	a.writeRow(&b, cw,
		func(w int) string {
			return components.ContentCard("By Funding Source",
				groupBars(pipeline.AggregateByFundingSource(a.lines), components.CardInnerWidth(w)), w)
		},
		func(w int) string {
			return components.ContentCard("By Strategic Pillar",
				groupBars(pipeline.AggregateByPillar(a.lines), components.CardInnerWidth(w)), w)
		})

	// Row 3: monthly approved spend + quarterly allocation
	year := pipeline.LatestYear(a.requests, time.Now().Year())
	months := pipeline.ApprovedByMonth(a.requests, year)
	monthVals := make([]float64, len(months))
	for i, m := range months {
		monthVals[i] = m.InexactFloat64()
	}
	chartH := 8
	if a.isCompactLayout() {
		chartH = 6
	}
	monthCard := func(w int) string {
		return components.ContentCard(
			fmt.Sprintf("Approved Spend %d", year),
			components.ColumnChart(monthVals, monthLabels, t.Blue, components.CardInnerWidth(w), chartH),
			w,
		)
	}

	qRows := []components.BarRow{
		{Label: "Q1", Value: stats.Q1.InexactFloat64(), Note: cli.FormatCompact(stats.Q1), Color: t.Cyan},
		{Label: "Q2", Value: stats.Q2.InexactFloat64(), Note: cli.FormatCompact(stats.Q2), Color: t.Cyan},
		{Label: "Q3", Value: stats.Q3.InexactFloat64(), Note: cli.FormatCompact(stats.Q3), Color: t.Cyan},
		{Label: "Q4", Value: stats.Q4.InexactFloat64(), Note: cli.FormatCompact(stats.Q4), Color: t.Cyan},
	}
	quarterCard := func(w int) string {
		var body strings.Builder
		body.WriteString(components.HorizontalBars(qRows, components.CardInnerWidth(w)))
		body.WriteString("\n\n")
		for _, st := range statuses {
			fmt.Fprintf(&body, "%s %s %s\n",
				lipgloss.NewStyle().Foreground(t.StatusColor(string(st.Status))).Background(t.Surface).
					Render(fmt.Sprintf("%-9s", st.Status)),
				lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface).
					Render(fmt.Sprintf("%4d", st.Count)),
				lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.Surface).
					Render(cli.FormatMoney(st.Amount, cur)))
		}
		return components.ContentCard("Quarterly Allocation · Requests", body.String(), w)
	}
	a.writeRow(&b, cw, monthCard, quarterCard)

	// Row 4: most utilized lines
	top := pipeline.TopByUtilization(a.lines, 5)
	if len(top) > 0 {
		inner := components.CardInnerWidth(cw)
		labelW := 28
		barW := max(10, inner-labelW-30)
		var body strings.Builder
		for _, l := range top {
			note := "left " + cli.FormatMoney(l.Remaining(), cur)
			body.WriteString(components.UtilizationBar(l.BudgetCode+" "+l.Activity, l.Utilization(), note, labelW, barW))
			body.WriteString("\n")
		}
		b.WriteString(components.ContentCard("Most Utilized Lines", body.String(), cw))
	}

	if a.lastReport != nil {
		r := a.lastReport
		b.WriteString("\n")
		b.WriteString(lipgloss.NewStyle().Foreground(t.TextDim).Render(fmt.Sprintf(
			" Last sync %s: %d fetched, %d synced, %d errors in %s",
			cli.FormatAgo(r.FinishedAt, time.Now()), r.Fetched, r.Synced, len(r.Errors), cli.FormatDuration(r.Duration()))))
	}

	return b.String()
}

// writeRow places two cards side by side, or stacked at full width on
// narrow terminals.
func (a App) writeRow(b *strings.Builder, cw int, left, right func(w int) string) {
	if a.isCompactLayout() {
		b.WriteString(left(cw))
		b.WriteString("\n")
		b.WriteString(right(cw))
		b.WriteString("\n")
		return
	}
	halves := components.LayoutRow(cw, 2)
	b.WriteString(components.CardRow([]string{left(halves[0]), right(halves[1])}))
	b.WriteString("\n")
}

func groupBars(groups []model.GroupStats, width int) string {
	t := theme.Active
	if len(groups) == 0 {
		return lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface).Render("No budget lines")
	}
	rows := make([]components.BarRow, len(groups))
	for i, g := range groups {
		rows[i] = components.BarRow{
			Label: g.Name,
			Value: g.TotalBudget.InexactFloat64(),
			Note:  fmt.Sprintf("%s %4.0f%%", cli.FormatCompact(g.TotalBudget), g.Utilization*100),
			Color: t.UtilizationColor(g.Utilization),
		}
	}
	return components.HorizontalBars(rows, width)
}
