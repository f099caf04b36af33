// Package tui provides the interactive Bubble Tea dashboard for bdash.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/theirongolddev/bdash/internal/cli"
	"github.com/theirongolddev/bdash/internal/config"
	"github.com/theirongolddev/bdash/internal/ledger"
	"github.com/theirongolddev/bdash/internal/model"
	"github.com/theirongolddev/bdash/internal/pipeline"
	"github.com/theirongolddev/bdash/internal/syncer"
	"github.com/theirongolddev/bdash/internal/tui/components"
	"github.com/theirongolddev/bdash/internal/tui/theme"
)

// Backend is the ledger surface the dashboard drives. *ledger.Service
// satisfies it.
type Backend interface {
	pipeline.Source
	Approve(ctx context.Context, id string) (model.PaymentRequest, error)
	Reject(ctx context.Context, id string) (model.PaymentRequest, error)
}

// Syncer runs one remote sync. *syncer.Syncer satisfies it.
type Syncer interface {
	Run(ctx context.Context) (model.SyncReport, error)
}

// Options configures the dashboard.
type Options struct {
	Currency        string
	AutoRefresh     bool
	RefreshInterval time.Duration
	// NeedSetup opens the setup wizard once data has loaded.
	NeedSetup bool
	// SaveConfig persists the wizard answers. nil skips saving.
	SaveConfig func(*SetupValues) error
}

// DataLoadedMsg is sent when the first snapshot is loaded.
type DataLoadedMsg struct {
	Snapshot *pipeline.Snapshot
	Err      error
	LoadTime time.Duration
}

// RefreshDataMsg is sent when a background refresh completes.
type RefreshDataMsg struct {
	Snapshot *pipeline.Snapshot
	Err      error
	LoadTime time.Duration
}

// StatusChangedMsg reports the outcome of an approve or reject.
type StatusChangedMsg struct {
	ID      string
	Status  model.Status
	Request model.PaymentRequest
	Err     error
}

// SyncDoneMsg reports the outcome of a sync.
type SyncDoneMsg struct {
	Report model.SyncReport
	Err    error
}

type tickMsg struct{}

const (
	tabOverview = iota
	tabLines
	tabPayments
)

const (
	minTerminalWidth = 80
	compactWidth     = 120
	maxContentWidth  = 180

	minContentHeight = 5 // minimum content area height
	listOverhead     = 6 // card border (2) + title (1) + header row (1) + hint (2)

	loadTimeout   = 15 * time.Second
	actionTimeout = 15 * time.Second
	syncTimeout   = 2 * time.Minute
	messageTTL    = 8 * time.Second
)

// listState is the cursor of a scrollable list.
type listState struct {
	cursor int
	offset int
}

func (l *listState) move(delta, n int) {
	l.cursor += delta
	if l.cursor >= n {
		l.cursor = n - 1
	}
	if l.cursor < 0 {
		l.cursor = 0
	}
}

// window returns the visible [start, end) range for n rows in visible lines,
// keeping the cursor on screen.
func (l *listState) window(n, visible int) (int, int) {
	if visible < 1 {
		visible = 1
	}
	if l.cursor < l.offset {
		l.offset = l.cursor
	}
	if l.cursor >= l.offset+visible {
		l.offset = l.cursor - visible + 1
	}
	if l.offset > n-visible {
		l.offset = max(0, n-visible)
	}
	return l.offset, min(n, l.offset+visible)
}

// App is the root Bubble Tea model.
type App struct {
	backend Backend
	syncer  Syncer
	caps    config.Capabilities
	opts    Options

	// Data
	snap     *pipeline.Snapshot
	loaded   bool
	loadErr  error
	loadTime time.Duration

	// Pre-computed for the current filters
	stats    model.SummaryStats
	lines    []model.BudgetLine
	requests []model.PaymentRequest

	// Filter state
	fundingFilter string
	statusFilter  model.Status

	// Refresh and sync state
	autoRefresh bool
	lastRefresh time.Time
	refreshing  bool
	syncing     bool
	lastReport  *model.SyncReport

	message    string
	messageErr bool
	messageAt  time.Time

	// UI state
	width     int
	height    int
	activeTab int
	showHelp  bool

	// Per-tab state
	lineList   listState
	reqList    listState
	searching  bool
	search     textinput.Model
	searchTerm string

	// First-run setup (huh form)
	setupForm *huh.Form
	setupVals *SetupValues
	needSetup bool

	spinner spinner.Model
}

// NewApp creates the dashboard. sy is nil when remote sync is not
// configured.
func NewApp(backend Backend, sy Syncer, caps config.Capabilities, opts Options) App {
	if opts.Currency == "" {
		opts.Currency = "ZMW"
	}
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = 30 * time.Second
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(theme.Active.Accent)

	return App{
		backend:     backend,
		syncer:      sy,
		caps:        caps,
		opts:        opts,
		autoRefresh: opts.AutoRefresh,
		needSetup:   opts.NeedSetup,
		setupVals:   NewSetupValues(config.DefaultConfig()),
		search:      newSearchInput(),
		spinner:     sp,
	}
}

func newSearchInput() textinput.Model {
	ti := textinput.New()
	ti.Placeholder = "name, id or budget code"
	ti.Prompt = "/ "
	ti.CharLimit = 64
	ti.Width = 40
	return ti
}

// Init implements tea.Model.
func (a App) Init() tea.Cmd {
	return tea.Batch(
		a.spinner.Tick,
		loadDataCmd(a.backend),
		tickCmd(),
	)
}

// recompute derives the filtered views from the snapshot.
func (a *App) recompute() {
	if a.snap == nil {
		a.stats = pipeline.Aggregate(nil, nil)
		a.lines, a.requests = nil, nil
		return
	}
	a.stats = a.snap.Summary(a.fundingFilter)
	a.lines = pipeline.FilterLines(a.snap.Lines, a.fundingFilter, "")
	a.requests = pipeline.FilterRequests(a.snap.Requests, a.snap.Lines, pipeline.RequestFilter{
		FundingSource: a.fundingFilter,
		Status:        a.statusFilter,
		Query:         a.searchTerm,
	})
	a.lineList.move(0, len(a.lines))
	a.reqList.move(0, len(a.requests))
}

func (a *App) setMessage(msg string, isErr bool) {
	a.message = msg
	a.messageErr = isErr
	a.messageAt = time.Now()
}

// Update implements tea.Model.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		if a.setupForm != nil {
			a.setupForm = a.setupForm.WithWidth(msg.Width).WithHeight(msg.Height)
		}
		return a, nil

	case tea.MouseMsg:
		return a.updateMouse(msg)

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return a, tea.Quit
		}
		if !a.loaded {
			return a, nil
		}
		if a.needSetup && a.setupForm != nil {
			return a.updateSetupForm(msg)
		}
		if a.searching {
			return a.updateSearch(msg)
		}
		return a.updateKey(msg.String())

	case DataLoadedMsg:
		a.loaded = true
		a.loadTime = msg.LoadTime
		a.lastRefresh = time.Now()
		a.loadErr = msg.Err
		if msg.Err == nil {
			a.snap = msg.Snapshot
		}
		a.recompute()

		if a.needSetup {
			a.setupForm = NewSetupForm(a.setupVals)
			if a.width > 0 {
				a.setupForm = a.setupForm.WithWidth(a.width).WithHeight(a.height)
			}
			return a, a.setupForm.Init()
		}
		return a, nil

	case RefreshDataMsg:
		a.refreshing = false
		a.lastRefresh = time.Now()
		a.loadErr = msg.Err
		if msg.Err != nil {
			a.setMessage("refresh failed: "+msg.Err.Error(), true)
			return a, nil
		}
		a.snap = msg.Snapshot
		a.loadTime = msg.LoadTime
		a.recompute()
		return a, nil

	case StatusChangedMsg:
		a.setMessage(statusMessage(msg), msg.Err != nil)
		if msg.Err != nil && !errors.Is(msg.Err, ledger.ErrReconcile) {
			return a, nil
		}
		a.refreshing = true
		return a, refreshDataCmd(a.backend)

	case SyncDoneMsg:
		a.syncing = false
		a.setMessage(syncMessage(msg), msg.Err != nil || len(msg.Report.Errors) > 0)
		if msg.Err == nil {
			report := msg.Report
			a.lastReport = &report
		}
		a.refreshing = true
		return a, refreshDataCmd(a.backend)

	case spinner.TickMsg:
		if !a.loaded {
			var cmd tea.Cmd
			a.spinner, cmd = a.spinner.Update(msg)
			return a, cmd
		}
		return a, nil

	case tickMsg:
		cmds := []tea.Cmd{tickCmd()}
		if a.message != "" && time.Since(a.messageAt) > messageTTL {
			a.message = ""
		}
		if a.loaded && a.autoRefresh && !a.refreshing && time.Since(a.lastRefresh) >= a.opts.RefreshInterval {
			a.refreshing = true
			cmds = append(cmds, refreshDataCmd(a.backend))
		}
		return a, tea.Batch(cmds...)
	}

	// Forward unhandled messages to the setup form (cursor blinks, etc.)
	if a.needSetup && a.setupForm != nil {
		return a.updateSetupForm(msg)
	}
	if a.searching {
		var cmd tea.Cmd
		a.search, cmd = a.search.Update(msg)
		return a, cmd
	}
	return a, nil
}

func (a App) updateKey(key string) (tea.Model, tea.Cmd) {
	if key == "?" {
		a.showHelp = !a.showHelp
		return a, nil
	}
	if a.showHelp {
		a.showHelp = false
		return a, nil
	}

	switch key {
	case "q":
		return a, tea.Quit
	case "left":
		a.activeTab = (a.activeTab - 1 + len(components.Tabs)) % len(components.Tabs)
		return a, nil
	case "right", "tab":
		a.activeTab = (a.activeTab + 1) % len(components.Tabs)
		return a, nil
	case "r":
		if a.refreshing {
			return a, nil
		}
		a.refreshing = true
		return a, refreshDataCmd(a.backend)
	case "R":
		a.autoRefresh = !a.autoRefresh
		return a, nil
	case "s":
		return a.startSync()
	case "f":
		a.fundingFilter = nextOption(a.fundingFilter, a.fundingOptions())
		a.recompute()
		return a, nil
	}

	if len(key) == 1 {
		if idx := components.TabIdxByKey(rune(key[0])); idx >= 0 {
			a.activeTab = idx
			return a, nil
		}
	}

	switch a.activeTab {
	case tabLines:
		a.lineList = navigate(a.lineList, key, len(a.lines), a.pageSize())
	case tabPayments:
		return a.updatePaymentsKey(key)
	}
	return a, nil
}

func (a App) updatePaymentsKey(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "/":
		a.searching = true
		a.search.SetValue(a.searchTerm)
		return a, a.search.Focus()
	case "esc":
		if a.searchTerm != "" || a.statusFilter != "" {
			a.searchTerm = ""
			a.statusFilter = ""
			a.recompute()
		}
		return a, nil
	case "t":
		a.statusFilter = nextStatus(a.statusFilter)
		a.recompute()
		return a, nil
	case "a", "x":
		pr, ok := a.selectedRequest()
		if !ok {
			return a, nil
		}
		target := model.StatusApproved
		if key == "x" {
			target = model.StatusRejected
		}
		if pr.Status == target {
			a.setMessage(fmt.Sprintf("%s is already %s", pr.ID, target), false)
			return a, nil
		}
		return a, setStatusCmd(a.backend, pr.ID, target)
	}
	a.reqList = navigate(a.reqList, key, len(a.requests), a.pageSize())
	return a, nil
}

func (a App) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		a.searchTerm = strings.TrimSpace(a.search.Value())
		a.searching = false
		a.search.Blur()
		a.reqList = listState{}
		a.recompute()
		return a, nil
	case "esc":
		a.searching = false
		a.search.Blur()
		return a, nil
	}
	var cmd tea.Cmd
	a.search, cmd = a.search.Update(msg)
	return a, cmd
}

func (a App) updateMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if !a.loaded || a.showHelp || a.searching || (a.needSetup && a.setupForm != nil) {
		return a, nil
	}

	switch msg.Button {
	case tea.MouseButtonWheelUp:
		a.scroll(-1)
	case tea.MouseButtonWheelDown:
		a.scroll(1)
	case tea.MouseButtonLeft:
		if msg.Action == tea.MouseActionPress && msg.Y == 0 {
			if tab := a.tabAtX(msg.X); tab >= 0 {
				a.activeTab = tab
			}
		}
	}
	return a, nil
}

func (a *App) scroll(delta int) {
	switch a.activeTab {
	case tabLines:
		a.lineList.move(delta, len(a.lines))
	case tabPayments:
		a.reqList.move(delta, len(a.requests))
	}
}

func (a App) startSync() (tea.Model, tea.Cmd) {
	if a.syncer == nil {
		a.setMessage("remote sync is not configured (run bdash setup)", true)
		return a, nil
	}
	if a.syncing {
		return a, nil
	}
	a.syncing = true
	return a, syncCmd(a.syncer)
}

func (a App) updateSetupForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	form, cmd := a.setupForm.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		a.setupForm = f
	}

	switch a.setupForm.State {
	case huh.StateCompleted:
		if a.opts.SaveConfig != nil {
			if err := a.opts.SaveConfig(a.setupVals); err != nil {
				a.setMessage("could not save config: "+err.Error(), true)
			} else {
				a.setMessage("config saved; restart to apply store and sync settings", false)
			}
		}
		theme.SetActive(a.setupVals.Theme)
		a.needSetup = false
		a.setupForm = nil
		return a, nil
	case huh.StateAborted:
		a.needSetup = false
		a.setupForm = nil
		return a, nil
	}
	return a, cmd
}

func (a App) fundingOptions() []string {
	if a.snap == nil {
		return nil
	}
	return pipeline.FundingSources(a.snap.Lines)
}

func (a App) selectedRequest() (model.PaymentRequest, bool) {
	if a.reqList.cursor < 0 || a.reqList.cursor >= len(a.requests) {
		return model.PaymentRequest{}, false
	}
	return a.requests[a.reqList.cursor], true
}

func (a App) selectedLine() (model.BudgetLine, bool) {
	if a.lineList.cursor < 0 || a.lineList.cursor >= len(a.lines) {
		return model.BudgetLine{}, false
	}
	return a.lines[a.lineList.cursor], true
}

func (a App) pageSize() int {
	return max(1, (a.height-listOverhead)/2)
}

func (a App) contentWidth() int {
	return min(a.width, maxContentWidth)
}

func (a App) isCompactLayout() bool {
	return a.contentWidth() < compactWidth
}

// View implements tea.Model.
func (a App) View() string {
	if a.width == 0 {
		return ""
	}
	if a.width < minTerminalWidth {
		return a.viewTooNarrow()
	}
	if !a.loaded {
		return a.viewLoading()
	}
	if a.needSetup && a.setupForm != nil {
		return a.setupForm.View()
	}
	if a.showHelp {
		return a.viewHelp()
	}
	return a.viewMain()
}

func (a App) viewTooNarrow() string {
	h := max(a.height, 5)
	msg := fmt.Sprintf(
		"\n  Terminal too narrow (%d cols)\n\n  bdash needs at least %d columns.\n",
		a.width,
		minTerminalWidth,
	)
	return padHeight(truncateHeight(msg, h), h)
}

func (a App) viewLoading() string {
	t := theme.Active

	cardStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.BorderAccent).
		Background(t.Surface).
		Padding(2, 4)
	logoStyle := lipgloss.NewStyle().Foreground(t.AccentBright).Background(t.Surface).Bold(true)
	subtitleStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)

	var b strings.Builder
	b.WriteString(logoStyle.Render("◈ bdash"))
	b.WriteString(subtitleStyle.Render(" · Budget Dashboard"))
	b.WriteString("\n\n")
	b.WriteString(a.spinner.View())
	if a.caps.HasPersistence {
		b.WriteString(subtitleStyle.Render(" Loading ledger..."))
	} else {
		b.WriteString(subtitleStyle.Render(" Loading sample ledger..."))
	}

	return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center, cardStyle.Render(b.String()),
		lipgloss.WithWhitespaceBackground(t.Background))
}

func (a App) viewHelp() string {
	t := theme.Active

	cardStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.BorderAccent).
		Background(t.Surface).
		Padding(1, 3)
	titleStyle := lipgloss.NewStyle().Foreground(t.AccentBright).Background(t.Surface).Bold(true)
	sectionStyle := lipgloss.NewStyle().Foreground(t.Accent).Background(t.Surface).Bold(true)
	keyStyle := lipgloss.NewStyle().Foreground(t.Cyan).Background(t.Surface).Bold(true)
	descStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	dimStyle := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)

	sections := []struct {
		title    string
		bindings [][2]string
	}{
		{"Navigation", [][2]string{
			{"o l p", "Jump to tab"},
			{"← →", "Previous / Next tab"},
			{"j k", "Move selection"},
			{"g G", "First / Last"},
			{"^d ^u", "Half-page scroll"},
		}},
		{"Payments", [][2]string{
			{"a", "Approve selected"},
			{"x", "Reject selected"},
			{"/", "Search"},
			{"t", "Cycle status filter"},
			{"Esc", "Clear search and filters"},
		}},
		{"Data", [][2]string{
			{"f", "Cycle funding source"},
			{"s", "Sync from SharePoint"},
			{"r", "Refresh"},
			{"R", "Toggle auto-refresh"},
			{"?", "Toggle help"},
			{"q", "Quit"},
		}},
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("◈ Keyboard Shortcuts"))
	b.WriteString("\n")
	for _, sec := range sections {
		b.WriteString("\n")
		b.WriteString(sectionStyle.Render(sec.title))
		b.WriteString("\n")
		for _, bind := range sec.bindings {
			fmt.Fprintf(&b, "  %s  %s\n",
				keyStyle.Render(fmt.Sprintf("%-8s", bind[0])),
				descStyle.Render(bind[1]))
		}
	}
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("Press any key to close"))

	return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center, cardStyle.Render(b.String()),
		lipgloss.WithWhitespaceBackground(t.Background))
}

func (a App) viewMain() string {
	t := theme.Active
	w := a.width
	cw := a.contentWidth()
	h := a.height

	// 1. Header: tab bar + filter pill
	header := components.RenderTabBar(a.activeTab, w) + "\n" + a.renderFilterRow(w)

	// 2. Status bar
	statusBar := components.RenderStatusBar(w, components.StatusInfo{
		DataAge:     cli.FormatAgo(a.lastRefresh, time.Now()),
		Refreshing:  a.refreshing,
		AutoRefresh: a.autoRefresh,
		Syncing:     a.syncing,
		RemoteSync:  a.caps.HasRemoteSync,
		Utilization: a.stats.Utilization,
		Message:     a.message,
		IsError:     a.messageErr,
	})

	// 3. Content zone height
	contentH := max(h-lipgloss.Height(header)-lipgloss.Height(statusBar), minContentHeight)

	// 4. Tab content
	var content string
	switch {
	case a.loadErr != nil && a.snap == nil:
		content = components.ContentCard("Ledger unavailable",
			lipgloss.NewStyle().Foreground(t.Red).Background(t.Surface).Render(a.loadErr.Error())+
				"\n\nPress r to retry.", cw)
	case a.activeTab == tabOverview:
		content = a.renderOverviewTab(cw)
	case a.activeTab == tabLines:
		content = a.renderLinesTab(cw, contentH)
	case a.activeTab == tabPayments:
		content = a.renderPaymentsTab(cw, contentH)
	}

	// 5. Truncate + pad to exactly contentH lines
	content = padHeight(truncateHeight(content, contentH), contentH)

	// 6. Fill each line to full width with background (fixes gaps between cards)
	content = fillLinesWithBackground(content, cw, t.Background)

	// 7. Center when the terminal is wider than the content
	content = lipgloss.Place(w, contentH, lipgloss.Center, lipgloss.Top, content,
		lipgloss.WithWhitespaceBackground(t.Background))

	output := lipgloss.JoinVertical(lipgloss.Left, header, content, statusBar)
	return lipgloss.Place(w, h, lipgloss.Left, lipgloss.Top, output,
		lipgloss.WithWhitespaceBackground(t.Background))
}

func (a App) renderFilterRow(w int) string {
	t := theme.Active
	pill := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)
	accent := lipgloss.NewStyle().Foreground(t.Accent).Background(t.Surface).Bold(true)

	funding := a.fundingFilter
	if funding == "" {
		funding = pipeline.FilterAll
	}
	s := pill.Render(" funding ") + accent.Render(funding)
	if a.activeTab == tabPayments {
		status := string(a.statusFilter)
		if status == "" {
			status = pipeline.FilterAll
		}
		s += pill.Render(" │ status ") + accent.Render(status)
		if a.searching {
			s += pill.Render(" │ ") + a.search.View()
		} else if a.searchTerm != "" {
			s += pill.Render(" │ search ") + accent.Render(a.searchTerm)
		}
	}
	if !a.caps.HasPersistence {
		s += pill.Render(" │ ") + lipgloss.NewStyle().Foreground(t.Yellow).Background(t.Surface).Render("sample data")
	}
	return lipgloss.NewStyle().Background(t.Surface).Width(w).Render(s + pill.Render(" "))
}

// ─── Commands ───────────────────────────────────────────────────

func tickCmd() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

func loadSnapshot(src pipeline.Source) (*pipeline.Snapshot, time.Duration, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
	defer cancel()
	snap, err := pipeline.Load(ctx, src)
	return snap, time.Since(start), err
}

// loadDataCmd loads the first snapshot.
func loadDataCmd(src pipeline.Source) tea.Cmd {
	return func() tea.Msg {
		snap, took, err := loadSnapshot(src)
		return DataLoadedMsg{Snapshot: snap, Err: err, LoadTime: took}
	}
}

// refreshDataCmd reloads the snapshot in the background.
func refreshDataCmd(src pipeline.Source) tea.Cmd {
	return func() tea.Msg {
		snap, took, err := loadSnapshot(src)
		return RefreshDataMsg{Snapshot: snap, Err: err, LoadTime: took}
	}
}

func setStatusCmd(b Backend, id string, status model.Status) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()

		var (
			pr  model.PaymentRequest
			err error
		)
		if status == model.StatusApproved {
			pr, err = b.Approve(ctx, id)
		} else {
			pr, err = b.Reject(ctx, id)
		}
		return StatusChangedMsg{ID: id, Status: status, Request: pr, Err: err}
	}
}

func syncCmd(s Syncer) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
		defer cancel()
		report, err := s.Run(ctx)
		return SyncDoneMsg{Report: report, Err: err}
	}
}

func statusMessage(msg StatusChangedMsg) string {
	verb := strings.ToLower(string(msg.Status))
	switch {
	case msg.Err == nil:
		return fmt.Sprintf("%s %s", verb, msg.ID)
	case errors.Is(msg.Err, ledger.ErrReconcile):
		return fmt.Sprintf("%s %s, but spent was not updated: %v", verb, msg.ID, msg.Err)
	default:
		return fmt.Sprintf("could not set %s to %s: %v", msg.ID, verb, msg.Err)
	}
}

func syncMessage(msg SyncDoneMsg) string {
	if msg.Err != nil {
		if errors.Is(msg.Err, syncer.ErrSyncInProgress) {
			return "a sync is already running"
		}
		return "sync failed: " + msg.Err.Error()
	}
	r := msg.Report
	s := fmt.Sprintf("synced %d/%d records, %d approved", r.Synced, r.Fetched, r.Approved)
	if len(r.Errors) > 0 {
		s += fmt.Sprintf(", %d errors", len(r.Errors))
	}
	if r.Truncated {
		s += " (truncated)"
	}
	return s
}

// ─── Helpers ────────────────────────────────────────────────────

func navigate(l listState, key string, n, page int) listState {
	switch key {
	case "j", "down":
		l.move(1, n)
	case "k", "up":
		l.move(-1, n)
	case "g", "home":
		l.cursor, l.offset = 0, 0
	case "G", "end":
		l.move(n, n)
	case "ctrl+d", "pgdown":
		l.move(page, n)
	case "ctrl+u", "pgup":
		l.move(-page, n)
	}
	return l
}

// nextOption cycles "" (all) through opts and back.
func nextOption(cur string, opts []string) string {
	if cur == "" {
		if len(opts) == 0 {
			return ""
		}
		return opts[0]
	}
	for i, o := range opts {
		if o == cur && i+1 < len(opts) {
			return opts[i+1]
		}
	}
	return ""
}

func nextStatus(cur model.Status) model.Status {
	opts := make([]string, len(model.Statuses))
	for i, s := range model.Statuses {
		opts[i] = string(s)
	}
	return model.Status(nextOption(string(cur), opts))
}

func truncStr(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}

func truncateHeight(s string, limit int) string {
	lines := strings.Split(s, "\n")
	if len(lines) <= limit {
		return s
	}
	return strings.Join(lines[:limit], "\n")
}

func padHeight(s string, h int) string {
	lines := strings.Split(s, "\n")
	if len(lines) >= h {
		return s
	}
	return s + strings.Repeat("\n", h-len(lines))
}

// fillLinesWithBackground pads each line to width w with background color.
func fillLinesWithBackground(s string, w int, bg lipgloss.Color) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = lipgloss.PlaceHorizontal(w, lipgloss.Left, line,
			lipgloss.WithWhitespaceBackground(bg))
	}
	return strings.Join(lines, "\n")
}

// tabAtX returns the tab index at the given X coordinate, or -1 if none.
// Hitboxes are derived from the same width rules used by RenderTabBar.
func (a App) tabAtX(x int) int {
	pos := 0
	for i, tab := range components.Tabs {
		tabW := components.TabVisualWidth(tab, i == a.activeTab)
		if x >= pos && x < pos+tabW {
			return i
		}
		pos += tabW + 1 // separator
	}
	return -1
}
