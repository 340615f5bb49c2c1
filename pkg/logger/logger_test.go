package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apimages/pkg/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.LoggingConfig
		wantErr bool
	}{
		{name: "info level", cfg: &config.LoggingConfig{Level: "info"}},
		{name: "debug level", cfg: &config.LoggingConfig{Level: "debug"}},
		{name: "disabled", cfg: &config.LoggingConfig{Level: "disabled"}},
		{name: "invalid level", cfg: &config.LoggingConfig{Level: "loud"}, wantErr: true},
		{name: "file output", cfg: &config.LoggingConfig{Level: "info", File: filepath.Join(t.TempDir(), "logs", "run.log")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, l)
		})
	}
}

func TestFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "apimages.log")
	l, err := New(&config.LoggingConfig{Level: "info", File: path})
	require.NoError(t, err)

	l.WithField("site_id", "s-1").Info("Processing site")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"site_id":"s-1"`)
	assert.Contains(t, string(data), `"message":"Processing site"`)
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected zerolog.Level
		wantErr  bool
	}{
		{"debug", zerolog.DebugLevel, false},
		{"DEBUG", zerolog.DebugLevel, false},
		{"info", zerolog.InfoLevel, false},
		{"warn", zerolog.WarnLevel, false},
		{"warning", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"disabled", zerolog.Disabled, false},
		{"fatal", zerolog.InfoLevel, true},
		{"", zerolog.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			level, err := parseLogLevel(tt.level)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.expected, level)
		})
	}
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var records []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var rec map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		records = append(records, rec)
	}
	return records
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, zerolog.WarnLevel)

	l.Debug("hidden")
	l.Info("hidden too")
	l.Warn("shown")
	l.Error("also shown")

	records := decodeLines(t, &buf)
	require.Len(t, records, 2)
	assert.Equal(t, "shown", records[0]["message"])
	assert.Equal(t, "warn", records[0]["level"])
	assert.Equal(t, "error", records[1]["level"])
	assert.Equal(t, "apimages", records[1]["app"])
}

func TestWithFields(t *testing.T) {
	var buf bytes.Buffer
	base := NewWithWriter(&buf, zerolog.DebugLevel)

	child := base.WithField("site_id", "abc").WithFields(map[string]interface{}{
		"devices": 3,
		"elapsed": 2 * time.Second,
	})
	child.InfoWithFields("Site completed", map[string]interface{}{"images": 5})
	base.Info("parent untouched")

	records := decodeLines(t, &buf)
	require.Len(t, records, 2)
	assert.Equal(t, "abc", records[0]["site_id"])
	assert.Equal(t, float64(3), records[0]["devices"])
	assert.Equal(t, float64(5), records[0]["images"])
	assert.NotContains(t, records[1], "site_id")
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, zerolog.InfoLevel)

	assert.Same(t, l, l.WithError(nil))

	l.WithError(errors.New("boom")).Error("request failed")
	records := decodeLines(t, &buf)
	require.Len(t, records, 1)
	assert.Equal(t, "boom", records[0]["error"])
}

func TestLogRequest(t *testing.T) {
	tl := NewTestLogger()

	LogRequest(tl, "GET", "https://api/self", 200, 15*time.Millisecond)
	LogRequest(tl, "GET", "https://api/sites/1/devices", 404, time.Millisecond)
	LogRequest(tl, "GET", "https://api/self", 0, time.Millisecond)

	require.Len(t, tl.GetMessages(), 3)
	assert.Len(t, tl.GetMessagesByLevel("DEBUG"), 1)
	assert.Len(t, tl.GetMessagesByLevel("WARN"), 1)
	assert.Len(t, tl.GetMessagesByLevel("ERROR"), 1)
	assert.Equal(t, int64(15), tl.GetMessages()[0].Fields["duration_ms"])
}

func TestTestLogger(t *testing.T) {
	tl := NewTestLogger()

	tl.WithField("a", 1).WithError(errors.New("x")).WarnWithFields("warned", map[string]interface{}{"b": 2})
	tl.Info("plain")

	msgs := tl.GetMessages()
	require.Len(t, msgs, 2)
	assert.Equal(t, map[string]interface{}{"a": 1, "b": 2}, msgs[0].Fields)
	assert.EqualError(t, msgs[0].Error, "x")
	assert.Nil(t, msgs[1].Fields)
	assert.True(t, tl.HasMessage("plain"))
	assert.False(t, tl.HasError())
	assert.Contains(t, tl.String(), "[WARN] warned")

	tl.Clear()
	assert.Empty(t, tl.GetMessages())
}

func TestGlobalLogger(t *testing.T) {
	old := globalLogger
	t.Cleanup(func() { globalLogger = old })

	tl := NewTestLogger()
	SetLogger(tl)
	GetLogger().Info("via global")
	assert.True(t, tl.HasMessage("via global"))

	require.NoError(t, Initialize(&config.LoggingConfig{Level: "error"}))
	assert.NotNil(t, GetLogger().GetZerolog())
}

func TestNopLogger(t *testing.T) {
	l := NewNopLogger()
	l.WithField("k", "v").WithError(errors.New("e")).Info("nothing")
	assert.Nil(t, l.GetZerolog())
}
