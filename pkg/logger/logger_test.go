package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Output: &buf, Level: LevelInfo, AddCaller: true})

	log.With(Component("reconcile_standing"), StudentID(42)).
		Info("standing changed", Standing("Honours"), Latency(1500*time.Millisecond), Err(errors.New("none")))
	log.Debug("hidden")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var e struct {
		Level   string         `json:"level"`
		Message string         `json:"message"`
		Caller  string         `json:"caller"`
		Fields  map[string]any `json:"fields"`
	}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &e))
	assert.Equal(t, "INFO", e.Level)
	assert.Equal(t, "standing changed", e.Message)
	assert.True(t, strings.HasPrefix(e.Caller, "logger_test.go:"), e.Caller)
	assert.Equal(t, "reconcile_standing", e.Fields["component"])
	assert.Equal(t, float64(42), e.Fields["student_id"])
	assert.Equal(t, "Honours", e.Fields["standing"])
	assert.Equal(t, "1.5s", e.Fields["latency"])
	assert.Equal(t, "none", e.Fields["error"])
}

func TestLogger_Text(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Output: &buf, Level: LevelDebug, Format: FormatText})

	log.Warn("lock busy", Int("attempt", 2), Category("NextStudent"))

	line := buf.String()
	assert.Contains(t, line, " WARN lock busy attempt=2 category=NextStudent")
	assert.NotContains(t, line, "caller=")
}

func TestLogger_WithDoesNotLeak(t *testing.T) {
	var buf bytes.Buffer
	parent := New(Options{Output: &buf, Format: FormatText})
	_ = parent.With(String("child", "yes"))

	parent.Info("plain")
	assert.NotContains(t, buf.String(), "child=")
}

func TestParse(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelWarn, ParseLevel(" warning "))
	assert.Equal(t, LevelError, ParseLevel("ERROR"))
	assert.Equal(t, LevelInfo, ParseLevel("verbose"))

	assert.Equal(t, FormatText, ParseFormat("TEXT"))
	assert.Equal(t, FormatJSON, ParseFormat("logfmt"))
}

func TestNopAndContext(t *testing.T) {
	assert.False(t, Nop().Enabled(LevelError))

	var buf bytes.Buffer
	log := New(Options{Output: &buf})
	ctx := WithContext(context.Background(), log)
	assert.Same(t, log, FromContext(ctx))
	assert.NotNil(t, FromContext(context.Background()))
}
