package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsoleLoggerWritesJSONLines(t *testing.T) {
	var buf bytes.Buffer
	l := NewConsoleLogger(&buf)

	l.LogRSVP("evt-1", "user-1", "admitted")
	l.Warn("redis", "cache unavailable")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var entry LogEntry
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "INFO", entry.Level)
	assert.Equal(t, "RSVP", entry.Category)
	assert.Equal(t, "[evt-1] user-1 - admitted", entry.Message)

	require.NoError(t, json.Unmarshal([]byte(lines[1]), &entry))
	assert.Equal(t, "WARN", entry.Level)
	assert.Equal(t, "REDIS", entry.Category, "categories are upper-cased")
}

func TestNewLoggerCreatesDatedFile(t *testing.T) {
	dir := t.TempDir()
	l := NewLogger(dir, "attendance-test")
	l.Info("TEST", "hello")
	l.Close()

	matches, err := filepath.Glob(filepath.Join(dir, "attendance-test-*.log"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	content, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	assert.Contains(t, string(content), `"message":"hello"`)
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewConsoleLogger(&buf)
	l.SetLevel(ParseLevel("warn"))

	l.Debug("TEST", "dropped")
	l.Info("TEST", "dropped")
	l.LogSecurity("token", "rejected")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], `"category":"SECURITY"`)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLevel("Debug"))
	assert.Equal(t, ERROR, ParseLevel("ERROR"))
	assert.Equal(t, INFO, ParseLevel("verbose"), "unknown names fall back to info")
	assert.Equal(t, "WARN", WARN.String())
}
