package logger

import (
	"bytes"
	"encoding/json"
	"log"
	"log/slog"
	"strings"
	"testing"

	"github.com/rivo/tview"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(buf *bytes.Buffer, dev bool, level Types, view *tview.TextView) *manager {
	m := &manager{
		view:    view,
		dev:     dev,
		level:   level,
		sink:    slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})),
		logChan: make(chan Message, 10),
		done:    make(chan struct{}),
	}
	go m.processLogs()
	return m
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Types{
		"debug":   Debug,
		" WARN ":  Warn,
		"warning": Warn,
		"error":   Error,
		"info":    Info,
		"":        Info,
		"verbose": Info,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestLoggerWritesStructuredRecords(t *testing.T) {
	var buf bytes.Buffer
	m := newTestManager(&buf, false, Info, nil)
	l := &Logger{tag: "chat", m: m}

	l.Debug("dropped below level")
	l.Info("request sent")
	l.Errorf("status %d", 502)
	l.Close()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "request sent", first["msg"])
	assert.Equal(t, "chat", first["tag"])
	assert.Equal(t, "INFO", first["level"])

	var second map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, "status 502", second["msg"])
	assert.Equal(t, "ERROR", second["level"])
}

func TestDevModeMirrorsToView(t *testing.T) {
	var buf bytes.Buffer
	view := tview.NewTextView().SetDynamicColors(true)
	m := newTestManager(&buf, true, Info, view)
	l := &Logger{tag: "ui", m: m}

	l.Warn("slow reply")
	l.Close()

	assert.Contains(t, view.GetText(true), "DEBUG (ui): slow reply")
}

func TestCloseIsIdempotent(t *testing.T) {
	var buf bytes.Buffer
	m := newTestManager(&buf, false, Info, nil)
	a := &Logger{tag: "a", m: m}
	b := &Logger{tag: "b", m: m}

	a.Close()
	b.Close()
	b.Info("after close")
}

func TestUninitialisedLoggerIsNoop(t *testing.T) {
	l := &Logger{tag: "early"}
	l.Info("ignored")
	l.Close()
}

func TestLoggerBacksStdLogger(t *testing.T) {
	var buf bytes.Buffer
	m := newTestManager(&buf, false, Info, nil)
	std := log.New(&Logger{tag: "http", m: m}, "", 0)

	std.Printf("GET /health 200")
	m.close.Do(func() {
		close(m.logChan)
		<-m.done
	})

	var record map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &record))
	assert.Equal(t, "GET /health 200", record["msg"])
	assert.Equal(t, "http", record["tag"])
}
