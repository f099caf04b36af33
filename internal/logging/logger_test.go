package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHandlerFormat(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewHandler("bdash", &buf, slog.LevelInfo))

	log.With("run", "r1").Info("sync finished", "synced", 3, "note", "two words")
	log.Debug("hidden")

	out := buf.String()
	assert.Contains(t, out, "[bdash] INFO sync finished")
	assert.Contains(t, out, "run=r1")
	assert.Contains(t, out, "synced=3")
	assert.Contains(t, out, `note="two words"`)
	assert.NotContains(t, out, "hidden")
	assert.Equal(t, 1, strings.Count(out, "\n"))
}

func TestHandlerGroup(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewHandler("bdash", &buf, slog.LevelDebug))
	log.WithGroup("graph").Debug("fetch", "status", 200)
	assert.Contains(t, buf.String(), "graph.status=200")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("WARNING"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}
