package logx

import (
	"bytes"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{in: "debug", want: zerolog.DebugLevel},
		{in: " WARNING ", want: zerolog.WarnLevel},
		{in: "error", want: zerolog.ErrorLevel},
		{in: "", want: zerolog.InfoLevel},
		{in: "loud", want: zerolog.InfoLevel},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseLevel(tt.in, zerolog.InfoLevel), "level %q", tt.in)
	}
}

func TestWriterLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, "debug").With(String("comp", "test"))
	log.Warn("something odd", Int("n", 3), Err(errors.New("boom")))

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	assert.Equal(t, "warn", line["level"])
	assert.Equal(t, "something odd", line["message"])
	assert.Equal(t, "test", line["comp"])
	assert.Equal(t, float64(3), line["n"])
	assert.Equal(t, "boom", line["err"])
}

func TestZeroLoggerIsNoop(t *testing.T) {
	var l Logger
	assert.True(t, l.IsZero())
	assert.NotPanics(t, func() { l.Error("dropped") })
	assert.False(t, Nop().IsZero())
}

func TestServiceApplyAndForceLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bf.log")
	svc, log := New(Config{Level: "warn", File: FileConfig{Enabled: true, Path: path}})
	t.Cleanup(func() { _ = svc.Close() })

	assert.False(t, log.Enabled(LevelInfo))

	svc.ForceLevel("debug")
	assert.True(t, log.Enabled(LevelDebug))

	// Config reloads don't undo the override.
	svc.Apply(Config{Level: "error", File: FileConfig{Enabled: true, Path: path}})
	assert.True(t, log.Enabled(LevelDebug))

	svc.ForceLevel("")
	assert.False(t, log.Enabled(LevelWarn))
	assert.True(t, strings.HasSuffix(svc.file.Filename, "bf.log"))
}
