package cmd

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theirongolddev/bdash/internal/config"
)

func withConfig(t *testing.T, cfg config.Config) {
	t.Helper()
	for _, k := range []string{
		"BDASH_GRAPH_TENANT_ID", "BDASH_GRAPH_CLIENT_ID", "BDASH_GRAPH_CLIENT_SECRET",
		"BDASH_SHAREPOINT_SITE_ID", "BDASH_SHAREPOINT_LIST_ID", "BDASH_STORE_DRIVER", "BDASH_STORE_DSN",
	} {
		t.Setenv(k, "")
	}
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, config.SaveFile(path, cfg))

	prev := flagConfig
	flagConfig = path
	t.Cleanup(func() { flagConfig = prev })
}

func TestOpenEnvFallsBackToSample(t *testing.T) {
	withConfig(t, config.DefaultConfig())

	e, err := openEnv(context.Background())
	require.NoError(t, err)
	defer func() { _ = e.Close() }()

	assert.False(t, e.caps.HasPersistence)
	assert.False(t, e.caps.HasRemoteSync)
	assert.Nil(t, e.syncer)

	lines, err := e.ledger.ListBudgetLines(context.Background())
	require.NoError(t, err)
	assert.Len(t, lines, 8)
}

func TestOpenEnvUsesConfiguredStore(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Store.DSN = filepath.Join(t.TempDir(), "ledger.db")
	cfg.Graph.TenantID = "tenant"
	cfg.Graph.ClientID = "client"
	cfg.Graph.ClientSecret = "secret"
	cfg.Graph.SiteID = "site"
	cfg.Graph.ListID = "list"
	withConfig(t, cfg)

	e, err := openEnv(context.Background())
	require.NoError(t, err)
	defer func() { _ = e.Close() }()

	assert.True(t, e.caps.HasPersistence)
	require.NotNil(t, e.syncer)

	// a fresh store is not seeded
	lines, err := e.ledger.ListBudgetLines(context.Background())
	require.NoError(t, err)
	assert.Empty(t, lines)
}
