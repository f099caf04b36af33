package tui

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"github.com/theirongolddev/bdash/internal/config"
	"github.com/theirongolddev/bdash/internal/ledger"
	"github.com/theirongolddev/bdash/internal/store"
	"github.com/theirongolddev/bdash/internal/tui/theme"
)

func formTheme() *huh.Theme {
	t := theme.Active
	h := huh.ThemeBase()

	h.Focused.Title = lipgloss.NewStyle().Foreground(t.Accent).Bold(true)
	h.Focused.Description = lipgloss.NewStyle().Foreground(t.TextDim)
	h.Focused.SelectSelector = lipgloss.NewStyle().Foreground(t.Accent)
	h.Focused.SelectedOption = lipgloss.NewStyle().Foreground(t.Green)
	h.Focused.UnselectedOption = lipgloss.NewStyle().Foreground(t.TextPrimary)
	h.Focused.FocusedButton = lipgloss.NewStyle().Foreground(t.Background).Background(t.Accent).Padding(0, 1)
	h.Focused.BlurredButton = lipgloss.NewStyle().Foreground(t.TextMuted).Padding(0, 1)
	h.Focused.TextInput.Cursor = lipgloss.NewStyle().Foreground(t.Accent)
	h.Focused.TextInput.Prompt = lipgloss.NewStyle().Foreground(t.Accent)
	h.Focused.TextInput.Text = lipgloss.NewStyle().Foreground(t.TextPrimary)
	h.Focused.TextInput.Placeholder = lipgloss.NewStyle().Foreground(t.TextDim)

	h.Blurred.Title = lipgloss.NewStyle().Foreground(t.TextMuted)
	h.Blurred.TextInput.Prompt = lipgloss.NewStyle().Foreground(t.TextDim)
	h.Blurred.TextInput.Text = lipgloss.NewStyle().Foreground(t.TextMuted)

	return h
}

// SetupValues holds the answers of the setup wizard.
type SetupValues struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	SiteID       string
	ListID       string
	StoreDriver  string
	StoreDSN     string
	Theme        string
	Currency     string
}

// NewSetupValues pre-fills the wizard from cfg. The client secret starts
// empty; leaving it blank keeps the stored one.
func NewSetupValues(cfg config.Config) *SetupValues {
	return &SetupValues{
		TenantID:    cfg.Graph.TenantID,
		ClientID:    cfg.Graph.ClientID,
		SiteID:      cfg.Graph.SiteID,
		ListID:      cfg.Graph.ListID,
		StoreDriver: cfg.Store.Driver,
		StoreDSN:    cfg.Store.DSN,
		Theme:       cfg.Appearance.Theme,
		Currency:    cfg.Appearance.Currency,
	}
}

// Apply copies the answers into cfg.
func (v *SetupValues) Apply(cfg *config.Config) {
	cfg.Graph.TenantID = strings.TrimSpace(v.TenantID)
	cfg.Graph.ClientID = strings.TrimSpace(v.ClientID)
	if s := strings.TrimSpace(v.ClientSecret); s != "" {
		cfg.Graph.ClientSecret = s
	}
	cfg.Graph.SiteID = strings.TrimSpace(v.SiteID)
	cfg.Graph.ListID = strings.TrimSpace(v.ListID)
	cfg.Store.Driver = v.StoreDriver
	cfg.Store.DSN = strings.TrimSpace(v.StoreDSN)
	cfg.Appearance.Theme = v.Theme
	if c := strings.ToUpper(strings.TrimSpace(v.Currency)); c != "" {
		cfg.Appearance.Currency = c
	}
}

// NewSetupForm builds the configuration wizard over v.
func NewSetupForm(v *SetupValues) *huh.Form {
	themeOpts := huh.NewOptions(theme.Names()...)

	return huh.NewForm(
		huh.NewGroup(
			huh.NewNote().
				Title("SharePoint sync").
				Description("App registration with Sites.Read.All.\nLeave blank to run without remote sync."),
			huh.NewInput().Title("Tenant ID").Value(&v.TenantID),
			huh.NewInput().Title("Client ID").Value(&v.ClientID),
			huh.NewInput().
				Title("Client secret").
				Description("Blank keeps the current secret").
				EchoMode(huh.EchoModePassword).
				Value(&v.ClientSecret),
			huh.NewInput().Title("Site ID").Value(&v.SiteID),
			huh.NewInput().Title("List ID").Value(&v.ListID),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Ledger store").
				Options(
					huh.NewOption("SQLite file", store.DriverSQLite),
					huh.NewOption("PostgreSQL", store.DriverPostgres),
				).
				Value(&v.StoreDriver),
			huh.NewInput().
				Title("Store DSN").
				Description("SQLite path or postgres:// URL. Blank uses the built-in sample data.").
				Value(&v.StoreDSN),
		),
		huh.NewGroup(
			huh.NewSelect[string]().Title("Color theme").Options(themeOpts...).Value(&v.Theme),
			huh.NewInput().
				Title("Currency").
				Placeholder("ZMW").
				Value(&v.Currency).
				Validate(validateCurrency),
		),
	).WithTheme(formTheme()).WithShowHelp(true)
}

// RequestValues holds the answers of the manual payment request form.
type RequestValues struct {
	Name         string
	BudgetCode   string
	BudgetLineID string
	Amount       string
	RequestedBy  string
	Year         string
}

// NewRequestForm builds the manual payment request form over v.
func NewRequestForm(v *RequestValues) *huh.Form {
	if v.Year == "" {
		v.Year = strconv.Itoa(time.Now().Year())
	}
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Name").Value(&v.Name).Validate(validateRequired),
			huh.NewInput().Title("Amount").Placeholder("1500.00").Value(&v.Amount).Validate(validateAmount),
			huh.NewInput().Title("Budget line ID").Placeholder("BL-001 (blank for unlinked)").Value(&v.BudgetLineID),
			huh.NewInput().Title("Budget code").Value(&v.BudgetCode),
			huh.NewInput().Title("Requested by").Value(&v.RequestedBy),
			huh.NewInput().Title("Year").Value(&v.Year).Validate(validateYear),
		),
	).WithTheme(formTheme()).WithShowHelp(false)
}

// NewRequest converts the form answers into a ledger request.
func (v *RequestValues) NewRequest(now time.Time) (ledger.NewRequest, error) {
	if err := validateAmount(v.Amount); err != nil {
		return ledger.NewRequest{}, err
	}
	year := now.Year()
	if strings.TrimSpace(v.Year) != "" {
		y, err := strconv.Atoi(strings.TrimSpace(v.Year))
		if err != nil {
			return ledger.NewRequest{}, errors.New("year must be a number")
		}
		year = y
	}
	return ledger.NewRequest{
		Name:         strings.TrimSpace(v.Name),
		BudgetCode:   strings.TrimSpace(v.BudgetCode),
		BudgetLineID: strings.TrimSpace(v.BudgetLineID),
		Year:         year,
		Amount:       decimal.RequireFromString(normalizeAmount(v.Amount)),
		RequestedBy:  strings.TrimSpace(v.RequestedBy),
		RequestDate:  now,
	}, nil
}

func normalizeAmount(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), ",", "")
}

func validateRequired(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("required")
	}
	return nil
}

func validateAmount(s string) error {
	d, err := decimal.NewFromString(normalizeAmount(s))
	if err != nil {
		return errors.New("amount must be a number")
	}
	if !d.IsPositive() {
		return errors.New("amount must be greater than zero")
	}
	return nil
}

func validateYear(s string) error {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	if y, err := strconv.Atoi(strings.TrimSpace(s)); err != nil || y < 2000 || y > 2100 {
		return errors.New("year must be between 2000 and 2100")
	}
	return nil
}

func validateCurrency(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if len(s) != 3 {
		return errors.New("use a 3-letter currency code")
	}
	return nil
}
