package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DefaultLevelIsInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, false)

	logger.Debug("hidden")
	logger.Info("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
}

func TestNew_DebugTrueEnablesDebugLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, true)

	logger.Debug("visible")

	assert.Contains(t, buf.String(), "visible")
}

func TestNew_RedactsCredentialAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, false)

	logger.Info("connecting", "password", "hunter2", "host", "example.com")

	out := buf.String()
	assert.NotContains(t, out, "hunter2")
	assert.Contains(t, out, "example.com")
	assert.Contains(t, out, "***")
}

func TestIsPrintable_AsciiAndWhitespace(t *testing.T) {
	assert.True(t, IsPrintable([]byte("hello\nworld\t\r")))
}

func TestIsPrintable_RejectsControlBytes(t *testing.T) {
	assert.False(t, IsPrintable([]byte{0x01, 0x02}))
}

func TestIsPrintable_RejectsNonAscii(t *testing.T) {
	assert.False(t, IsPrintable([]byte{0xff, 0xfe}))
}

func TestScrubForLog_PassesThroughPrintableText(t *testing.T) {
	assert.Equal(t, "plain text", ScrubForLog("plain text"))
}

func TestScrubForLog_ReplacesBinaryPayload(t *testing.T) {
	binary := string([]byte{0x00, 0x01, 0xff})
	got := ScrubForLog(binary)
	assert.Contains(t, got, "binary")
	assert.Contains(t, got, "3 bytes")
}

type recordingHandler struct {
	records []slog.Record
}

func (h *recordingHandler) Enabled(context.Context, slog.Level) bool { return true }
func (h *recordingHandler) Handle(_ context.Context, r slog.Record) error {
	h.records = append(h.records, r)
	return nil
}
func (h *recordingHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *recordingHandler) WithGroup(string) slog.Handler      { return h }

func TestNewMulti_FansOutToEveryEnabledHandler(t *testing.T) {
	a := &recordingHandler{}
	b := &recordingHandler{}
	logger := slog.New(NewMulti(a, b))

	logger.Info("hello")

	require.Len(t, a.records, 1)
	require.Len(t, b.records, 1)
	assert.Equal(t, "hello", a.records[0].Message)
}

func TestNewMulti_SkipsHandlersBelowLevel(t *testing.T) {
	low := &recordingHandler{}
	high := &levelGatedHandler{min: slog.LevelError}
	logger := slog.New(NewMulti(low, high))

	logger.Info("info level")

	assert.Len(t, low.records, 1)
	assert.Empty(t, high.records)
}

type levelGatedHandler struct {
	min     slog.Level
	records []slog.Record
}

func (h *levelGatedHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.min
}
func (h *levelGatedHandler) Handle(_ context.Context, r slog.Record) error {
	h.records = append(h.records, r)
	return nil
}
func (h *levelGatedHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *levelGatedHandler) WithGroup(string) slog.Handler      { return h }

func TestRedactingHandler_JSONOutputRedactsNestedGroup(t *testing.T) {
	var buf bytes.Buffer
	base := slog.NewJSONHandler(&buf, nil)
	logger := slog.New(NewRedactingHandler(base))

	logger.Info("auth", slog.Group("creds", "auth_token", "abcd1234", "user", "alice"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	creds, ok := entry["creds"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "***", creds["auth_token"])
	assert.Equal(t, "alice", creds["user"])
}

func TestRedactingHandler_WithAttrsRedactsEagerly(t *testing.T) {
	var buf bytes.Buffer
	base := slog.NewTextHandler(&buf, nil)
	logger := slog.New(NewRedactingHandler(base)).With("password", "supersecret")

	logger.Info("bound logger test")

	assert.NotContains(t, buf.String(), "supersecret")
	assert.True(t, strings.Contains(buf.String(), "***"))
}
