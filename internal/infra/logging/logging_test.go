package logging

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"telegram-story-bot/internal/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMinLevelWriter_KeepsWarnAndAbove(t *testing.T) {
	var all, warn bytes.Buffer
	log := zerolog.New(zerolog.MultiLevelWriter(&all, MinLevelWriter(&warn, zerolog.WarnLevel)))

	log.Info().Msg("chatty")
	log.Warn().Msg("careful")
	log.Error().Msg("broken")

	assert.Contains(t, all.String(), "chatty")
	assert.NotContains(t, warn.String(), "chatty")
	assert.Contains(t, warn.String(), "careful")
	assert.Contains(t, warn.String(), "broken")
}

func TestNew_WritesWarningsToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "warning.log")
	log, closer, err := New(config.LogConfig{Level: "debug", Format: "json", WarnFile: path}, false)
	require.NoError(t, err)

	log.Debug().Msg("not for the file")
	log.Warn().Str("component", "llm").Msg("gateway slow")
	require.NoError(t, closer.Close())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "gateway slow")
	assert.False(t, strings.Contains(string(b), "not for the file"))
}

func TestWith_AddsContextFields(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)
	ctx := WithChatID(WithTgID(WithTraceID(context.Background(), "trace-1"), 42), 7)

	With(ctx, &base).Info().Msg("hello")

	out := buf.String()
	assert.Contains(t, out, `"trace_id":"trace-1"`)
	assert.Contains(t, out, `"tg_id":42`)
	assert.Contains(t, out, `"chat_id":7`)
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "***", Redact("short", false))
	assert.Equal(t, "once...me", Redact("once upon a time", false))
	assert.Equal(t, "visible", Redact("visible", true))
	assert.Len(t, NewTraceID(), 26)
}
