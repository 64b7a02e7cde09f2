package logging

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name    string
		want    slog.Level
		wantErr bool
	}{
		{name: "", want: slog.LevelInfo},
		{name: "debug", want: slog.LevelDebug},
		{name: " WARN ", want: slog.LevelWarn},
		{name: "warning", want: slog.LevelWarn},
		{name: "error", want: slog.LevelError},
		{name: "verbose", want: slog.LevelInfo, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLevel(tt.name)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInitWritesJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "cilog.log")
	require.NoError(t, Init(path, slog.LevelInfo))
	t.Cleanup(func() { Close() })

	Debug("hidden")
	Info("parsed log", "blocks", 12)
	Warn("inconsistent exit code", "block", "_done")
	require.NoError(t, Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "parsed log", rec["msg"])
	assert.Equal(t, float64(12), rec["blocks"])
}

func TestLoggerWithoutInit(t *testing.T) {
	require.NoError(t, Close())
	l := Logger()
	assert.Same(t, discard, l)
	Error("dropped")
}

func TestInitEmptyPathDiscards(t *testing.T) {
	require.NoError(t, Init("", slog.LevelDebug))
	t.Cleanup(func() { Close() })
	With("job", "1.1").Debug("nowhere")
}

func TestInitUnwritablePath(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))

	err := Init(filepath.Join(blocker, "sub", "cilog.log"), slog.LevelInfo)
	require.Error(t, err)
	t.Cleanup(func() { Close() })
	Info("still safe")
}
