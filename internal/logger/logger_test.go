package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, WARNING)

	l.Info("hidden")
	l.Warnf("shown %d", 1)
	l.Errorf("also %s", "shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[WARNING] shown 1")
	assert.Contains(t, out, "[ERROR] also shown")
}

func TestSetLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, ERROR)
	l.Debug("one")
	l.SetLevel(DEBUG)
	l.Debug("two")

	assert.NotContains(t, buf.String(), "one")
	assert.Contains(t, buf.String(), "[DEBUG] two")
}

func TestInitializeCreatesLogFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	l := New(&bytes.Buffer{}, INFO)
	require.NoError(t, l.Initialize(dir, INFO))

	l.Info("to file")

	data, err := os.ReadFile(filepath.Join(dir, "app.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "[INFO] to file")
}
