package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/theirongolddev/bdash/internal/cli"
	"github.com/theirongolddev/bdash/internal/model"
	"github.com/theirongolddev/bdash/internal/pipeline"
	"github.com/theirongolddev/bdash/internal/tui/components"
	"github.com/theirongolddev/bdash/internal/tui/theme"
)

func (a App) renderLinesTab(cw, h int) string {
	t := theme.Active
	if len(a.lines) == 0 {
		return components.ContentCard("Budget Lines",
			lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface).Render("No budget lines"), cw)
	}

	leftW := cw * 11 / 20
	if a.isCompactLayout() {
		leftW = cw
	}
	list := a.renderLineList(leftW, h)
	if a.isCompactLayout() {
		return list
	}

	sel, _ := a.selectedLine()
	return components.CardRow([]string{list, a.renderLineDetail(sel, cw-leftW)})
}

func (a App) renderLineList(w, h int) string {
	t := theme.Active
	inner := components.CardInnerWidth(w)

	headerStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface).Bold(true)
	rowStyle := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.Surface)
	selStyle := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.SurfaceBright).Bold(true)
	hintStyle := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)

	// code | activity | budget | used
	codeW, budgetW, usedW := 12, 12, 5
	actW := max(8, inner-codeW-budgetW-usedW-3)
	row := func(code, act, budget, used string) string {
		return fmt.Sprintf("%-*s %-*s %*s %*s", codeW, truncStr(code, codeW), actW, truncStr(act, actW),
			budgetW, budget, usedW, used)
	}

	var body strings.Builder
	body.WriteString(headerStyle.Render(row("Code", "Activity", "Budget", "Used")))
	body.WriteString("\n")

	ls := a.lineList
	start, end := ls.window(len(a.lines), h-listOverhead)
	for i := start; i < end; i++ {
		l := a.lines[i]
		text := row(l.BudgetCode, l.Activity, cli.FormatCompact(l.TotalCost), fmt.Sprintf("%.0f%%", l.Utilization()*100))
		if i == ls.cursor {
			body.WriteString(selStyle.Render(text))
		} else {
			body.WriteString(rowStyle.Render(text))
		}
		body.WriteString("\n")
	}
	body.WriteString("\n")
	body.WriteString(hintStyle.Render(fmt.Sprintf("%d/%d  [j/k] move  [f] funding", ls.cursor+1, len(a.lines))))

	return components.ContentCard("Budget Lines", body.String(), w)
}

func (a App) renderLineDetail(l model.BudgetLine, w int) string {
	t := theme.Active
	cur := a.opts.Currency
	inner := components.CardInnerWidth(w)

	labelStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	valueStyle := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.Surface)
	sectionStyle := lipgloss.NewStyle().Foreground(t.Accent).Background(t.Surface).Bold(true)

	field := func(b *strings.Builder, label, value string) {
		if value == "" {
			return
		}
		b.WriteString(labelStyle.Render(fmt.Sprintf("%-12s ", label)))
		b.WriteString(valueStyle.Render(truncStr(value, inner-13)))
		b.WriteString("\n")
	}

	var b strings.Builder
	field(&b, "Activity", l.Activity)
	field(&b, "Objective", l.Objective)
	field(&b, "Funding", l.FundingSource)
	field(&b, "Pillar", pipeline.PillarShort(l.StrategicPillar))
	field(&b, "Odoo", strings.TrimSpace(l.OdooCode+" "+l.OdooCategory))
	field(&b, "ZGF code", l.ZGFCode)
	b.WriteString("\n")

	field(&b, "Total", cli.FormatMoney(l.TotalCost, cur))
	field(&b, "Spent", cli.FormatMoney(l.Spent, cur))
	field(&b, "Remaining", cli.FormatMoney(l.Remaining(), cur))
	b.WriteString(components.ProgressBar(l.Utilization(), max(10, inner-6)))
	b.WriteString("\n\n")

	b.WriteString(sectionStyle.Render("Quarters"))
	b.WriteString("\n")
	b.WriteString(valueStyle.Render(fmt.Sprintf("Q1 %s  Q2 %s  Q3 %s  Q4 %s",
		cli.FormatCompact(l.Q1), cli.FormatCompact(l.Q2), cli.FormatCompact(l.Q3), cli.FormatCompact(l.Q4))))
	b.WriteString("\n\n")

	linked := a.requestsForLine(l.ID)
	b.WriteString(sectionStyle.Render(fmt.Sprintf("Payment Requests (%d)", len(linked))))
	b.WriteString("\n")
	for _, pr := range linked {
		b.WriteString(lipgloss.NewStyle().Foreground(t.StatusColor(string(pr.Status))).Background(t.Surface).
			Render(fmt.Sprintf("%-9s", pr.Status)))
		b.WriteString(valueStyle.Render(fmt.Sprintf(" %-*s %s",
			max(4, inner-26), truncStr(pr.Name, max(4, inner-26)), cli.FormatCompact(pr.Amount))))
		b.WriteString("\n")
	}

	return components.ContentCard(l.BudgetCode, b.String(), w)
}

// requestsForLine lists every request linked to lineID, ignoring the
// payments tab filters.
func (a App) requestsForLine(lineID string) []model.PaymentRequest {
	if a.snap == nil {
		return nil
	}
	var out []model.PaymentRequest
	for _, pr := range a.snap.Requests {
		if pr.BudgetLineID == lineID {
			out = append(out, pr)
		}
	}
	return out
}
