package logging

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	testCases := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{in: "debug", want: slog.LevelDebug},
		{in: "INFO", want: slog.LevelInfo},
		{in: " warn ", want: slog.LevelWarn},
		{in: "warning", want: slog.LevelWarn},
		{in: "error", want: slog.LevelError},
		{in: "verbose", want: slog.LevelInfo, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseLevel(tc.in)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalidLevel)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	restore := SetOutput(&buf)
	defer restore()

	prev := CurrentLevel()
	defer SetLevel(prev)

	SetLevel(slog.LevelInfo)
	DebugLog("hidden message")
	LogInfo("shown message", "path", "a.png")

	out := buf.String()
	assert.NotContains(t, out, "hidden message")
	assert.Contains(t, out, "shown message")
	assert.Contains(t, out, "path=a.png")
}

func TestLogImageProcessed(t *testing.T) {
	var buf bytes.Buffer
	restore := SetOutput(&buf)
	defer restore()

	prev := CurrentLevel()
	defer SetLevel(prev)
	SetLevel(slog.LevelDebug)

	LogImageProcessed("ok.png", true, nil)
	LogImageProcessed("bad.png", false, errors.New("corrupt"))

	out := buf.String()
	assert.Contains(t, out, "path=ok.png")
	assert.Contains(t, out, "path=bad.png")
	assert.Contains(t, out, "error=corrupt")
}

func TestSetupLoggerWritesFile(t *testing.T) {
	var buf bytes.Buffer
	restore := SetOutput(&buf)
	defer restore()

	path := filepath.Join(t.TempDir(), "run.log")
	require.NoError(t, SetupLogger(path))
	LogWarning("written to file")
	CloseLogger()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written to file")
	assert.Contains(t, buf.String(), "written to file")
}
