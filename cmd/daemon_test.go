package cmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChildArgs(t *testing.T) {
	got := childArgs([]string{"daemon", "--detach", "--addr", "127.0.0.1:9000", "--detach=true"})
	assert.Equal(t, []string{"daemon", "--addr", "127.0.0.1:9000", "--child"}, got)
}

func TestPIDFileRecord(t *testing.T) {
	pf := pidFile(filepath.Join(t.TempDir(), "run", "bdashd.pid"))

	_, err := pf.pid()
	require.ErrorIs(t, err, os.ErrNotExist)
	require.NoError(t, pf.checkFree())

	want := daemonRuntimeState{
		PID:       4242,
		Addr:      "127.0.0.1:8788",
		StartedAt: time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC),
		Schedule:  "@every 15m",
	}
	require.NoError(t, pf.record(want))

	pid, err := pf.pid()
	require.NoError(t, err)
	assert.Equal(t, 4242, pid)

	got, err := pf.state()
	require.NoError(t, err)
	assert.Equal(t, want.Addr, got.Addr)
	assert.Equal(t, want.Schedule, got.Schedule)
	assert.True(t, want.StartedAt.Equal(got.StartedAt))

	require.NoError(t, os.WriteFile(pf.String(), []byte("nope\n"), 0o600))
	_, err = pf.pid()
	assert.Error(t, err)
}

func TestPIDFileCheckFree(t *testing.T) {
	pf := pidFile(filepath.Join(t.TempDir(), "bdashd.pid"))

	require.NoError(t, pf.record(daemonRuntimeState{PID: os.Getpid()}))
	assert.Error(t, pf.checkFree())

	// a stale pid file is cleaned up
	const stale = 1<<22 + 17
	if processAlive(stale) {
		t.Skip("pid unexpectedly alive")
	}
	require.NoError(t, pf.record(daemonRuntimeState{PID: stale}))
	require.NoError(t, pf.checkFree())
	assert.NoFileExists(t, pf.String())
	assert.NoFileExists(t, pf.statePath())
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "Radio ai…", truncate("Radio airtime January", 9))
}
