package tui

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theirongolddev/bdash/internal/config"
)

func TestSetupValuesApply(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Graph.ClientSecret = "keep-me"

	v := NewSetupValues(cfg)
	assert.Empty(t, v.ClientSecret)
	v.TenantID = " tenant "
	v.ClientID = "client"
	v.SiteID = "site"
	v.ListID = "list"
	v.StoreDriver = "postgres"
	v.StoreDSN = "postgres://localhost/bdash"
	v.Currency = "usd"
	v.Apply(&cfg)

	assert.Equal(t, "tenant", cfg.Graph.TenantID)
	assert.Equal(t, "keep-me", cfg.Graph.ClientSecret)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "USD", cfg.Appearance.Currency)
	assert.True(t, cfg.Capabilities().HasRemoteSync)

	v.ClientSecret = "rotated"
	v.Apply(&cfg)
	assert.Equal(t, "rotated", cfg.Graph.ClientSecret)
}

func TestRequestValuesNewRequest(t *testing.T) {
	now := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)

	v := RequestValues{Name: " Fuel ", Amount: "1,250.75", BudgetLineID: "BL-008", Year: "2024"}
	req, err := v.NewRequest(now)
	require.NoError(t, err)
	assert.Equal(t, "Fuel", req.Name)
	assert.Equal(t, "1250.75", req.Amount.String())
	assert.Equal(t, 2024, req.Year)
	assert.Equal(t, now, req.RequestDate)

	v.Year = ""
	req, err = v.NewRequest(now)
	require.NoError(t, err)
	assert.Equal(t, 2024, req.Year)

	for _, amount := range []string{"", "abc", "0", "-5"} {
		v.Amount = amount
		_, err := v.NewRequest(now)
		assert.Error(t, err, "amount %q", amount)
	}
}

func TestValidators(t *testing.T) {
	assert.Error(t, validateRequired("  "))
	assert.NoError(t, validateRequired("x"))

	assert.NoError(t, validateYear(""))
	assert.NoError(t, validateYear("2025"))
	assert.Error(t, validateYear("1999"))
	assert.Error(t, validateYear("next"))

	assert.NoError(t, validateCurrency(""))
	assert.NoError(t, validateCurrency("ZMW"))
	assert.Error(t, validateCurrency("KWACHA"))
}
