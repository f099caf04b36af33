package cmd

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theirongolddev/bdash/internal/config"
	"github.com/theirongolddev/bdash/internal/store"
)

func remoteConfig() config.Config {
	cfg := config.DefaultConfig()
	cfg.Graph.TenantID = "tenant"
	cfg.Graph.ClientID = "client"
	cfg.Graph.ClientSecret = "secret"
	cfg.Graph.SiteID = "site"
	cfg.Graph.ListID = "list"
	return cfg
}

func TestSyncWithoutStoreIsRefused(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := remoteConfig()
	cfg.Graph.BaseURL = srv.URL
	withConfig(t, cfg)

	err := runSync(nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrNotConfigured)
	assert.Zero(t, hits.Load())
}

func TestSyncWithoutRemoteIsRefused(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Store.DSN = filepath.Join(t.TempDir(), "ledger.db")
	withConfig(t, cfg)

	assert.ErrorIs(t, runSync(nil, nil), config.ErrNotConfigured)
}

func TestOpenEnvUnresponsivePostgres(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	var (
		mu    sync.Mutex
		conns []net.Conn
	)
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, c)
			mu.Unlock()
		}
	}()
	t.Cleanup(func() {
		_ = ln.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			_ = c.Close()
		}
	})

	cfg := config.DefaultConfig()
	cfg.Store.Driver = store.DriverPostgres
	cfg.Store.DSN = "postgres://u:p@" + ln.Addr().String() + "/db?sslmode=disable"
	cfg.Store.TimeoutSec = 1
	withConfig(t, cfg)

	start := time.Now()
	_, err = openEnv(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrPersistence))
	assert.Less(t, time.Since(start), 10*time.Second)
}
