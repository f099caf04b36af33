package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/theirongolddev/bdash/internal/cli"
	"github.com/theirongolddev/bdash/internal/model"
	"github.com/theirongolddev/bdash/internal/tui/components"
	"github.com/theirongolddev/bdash/internal/tui/theme"
)

const detailHeight = 7 // selected request card below the list

func (a App) renderPaymentsTab(cw, h int) string {
	t := theme.Active
	if len(a.requests) == 0 {
		msg := "No payment requests"
		if a.searchTerm != "" || a.statusFilter != "" {
			msg = "No payment requests match the current filters (Esc clears)"
		}
		return components.ContentCard("Payment Requests",
			lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface).Render(msg), cw)
	}

	list := a.renderRequestList(cw, h-detailHeight)
	sel, _ := a.selectedRequest()
	return list + "\n" + a.renderRequestDetail(sel, cw)
}

func (a App) renderRequestList(w, h int) string {
	t := theme.Active
	inner := components.CardInnerWidth(w)

	headerStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface).Bold(true)
	rowStyle := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.Surface)
	selBg := t.SurfaceBright
	hintStyle := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)

	// date | id | name | line | amount | status
	dateW, idW, lineW, amtW, statusW := 10, 10, 8, 14, 8
	nameW := max(8, inner-dateW-idW-lineW-amtW-statusW-5)
	cols := func(date, id, name, line, amount string) string {
		return fmt.Sprintf("%-*s %-*s %-*s %-*s %*s ", dateW, date, idW, truncStr(id, idW),
			nameW, truncStr(name, nameW), lineW, truncStr(line, lineW), amtW, amount)
	}

	var body strings.Builder
	body.WriteString(headerStyle.Render(cols("Date", "ID", "Name", "Line", "Amount") + fmt.Sprintf("%-*s", statusW, "Status")))
	body.WriteString("\n")

	rs := a.reqList
	start, end := rs.window(len(a.requests), h-listOverhead)
	for i := start; i < end; i++ {
		pr := a.requests[i]
		line := pr.BudgetLineID
		if pr.Unlinked {
			line = "unlinked"
		}
		text := cols(cli.FormatDate(pr.RequestDate), pr.ID, pr.Name, line, cli.FormatMoney(pr.Amount, ""))
		statusStyle := lipgloss.NewStyle().Foreground(t.StatusColor(string(pr.Status))).Background(t.Surface)
		style := rowStyle
		if i == rs.cursor {
			style = style.Background(selBg).Bold(true)
			statusStyle = statusStyle.Background(selBg).Bold(true)
		}
		body.WriteString(style.Render(text))
		body.WriteString(statusStyle.Render(fmt.Sprintf("%-*s", statusW, pr.Status)))
		body.WriteString("\n")
	}
	body.WriteString("\n")
	body.WriteString(hintStyle.Render(fmt.Sprintf("%d/%d  [a] approve  [x] reject  [/] search  [t] status",
		rs.cursor+1, len(a.requests))))

	return components.ContentCard("Payment Requests", body.String(), w)
}

func (a App) renderRequestDetail(pr model.PaymentRequest, w int) string {
	t := theme.Active
	labelStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	valueStyle := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.Surface)
	warnStyle := lipgloss.NewStyle().Foreground(t.Orange).Background(t.Surface)

	kv := func(label, value string) string {
		return labelStyle.Render(label+" ") + valueStyle.Render(value)
	}

	line := pr.BudgetLineID
	if line == "" {
		line = "-"
	}
	row1 := strings.Join([]string{
		kv("Amount", cli.FormatMoney(pr.Amount, a.opts.Currency)),
		kv("Status", string(pr.Status)),
		kv("Requested by", pr.RequestedBy),
	}, labelStyle.Render("   "))
	row2 := strings.Join([]string{
		kv("Budget code", pr.BudgetCode),
		kv("Line", line),
		kv("Year", fmt.Sprint(pr.Year)),
	}, labelStyle.Render("   "))

	body := row1 + "\n" + row2
	switch {
	case pr.Unlinked:
		body += "\n" + warnStyle.Render("Not linked to a budget line; approving it changes no line's spent.")
	case pr.SharePointID != nil && pr.SyncedAt != nil:
		body += "\n" + labelStyle.Render(fmt.Sprintf("SharePoint item %d, synced %s", *pr.SharePointID, cli.FormatDate(*pr.SyncedAt)))
	}

	return components.ContentCard(pr.ID+" · "+truncStr(pr.Name, w-20), body, w)
}
