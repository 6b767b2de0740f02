package telemetry

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Mock handler to inspect log records
type mockHandler struct {
	mu      sync.Mutex
	records []slog.Record
	attrs   []slog.Attr
	group   string
	enabled bool
}

func (h *mockHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.enabled
}

func (h *mockHandler) Handle(ctx context.Context, record slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, record)
	return nil
}

func (h *mockHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	h.mu.Lock()
	defer h.mu.Unlock()
	newHandler := &mockHandler{enabled: h.enabled, group: h.group}
	newHandler.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return newHandler
}

func (h *mockHandler) WithGroup(name string) slog.Handler {
	h.mu.Lock()
	defer h.mu.Unlock()
	newHandler := &mockHandler{enabled: h.enabled, attrs: h.attrs, group: name}
	if h.group != "" {
		newHandler.group = h.group + "." + name
	}
	return newHandler
}

func (h *mockHandler) getRecords() []slog.Record {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.records
}

func TestMultiHandler(t *testing.T) {
	h1 := &mockHandler{enabled: true}
	h2 := &mockHandler{enabled: true}

	multi := &multiHandler{handlers: []slog.Handler{h1, h2}}

	t.Run("Handle", func(t *testing.T) {
		record := slog.NewRecord(time.Now(), slog.LevelInfo, "phase finished", 0)
		err := multi.Handle(context.Background(), record)
		assert.NoError(t, err)
		assert.Len(t, h1.getRecords(), 1)
		assert.Len(t, h2.getRecords(), 1)
		assert.Equal(t, "phase finished", h1.getRecords()[0].Message)
	})

	t.Run("Handle skips disabled handlers", func(t *testing.T) {
		h3 := &mockHandler{enabled: false}
		m := &multiHandler{handlers: []slog.Handler{h3}}
		record := slog.NewRecord(time.Now(), slog.LevelDebug, "quiet", 0)
		assert.NoError(t, m.Handle(context.Background(), record))
		assert.Empty(t, h3.getRecords())
	})

	t.Run("WithAttrs", func(t *testing.T) {
		attrs := []slog.Attr{slog.String("phase", "integration")}
		newMulti, ok := multi.WithAttrs(attrs).(*multiHandler)
		require.True(t, ok, "WithAttrs should return a *multiHandler")

		for _, h := range newMulti.handlers {
			mockH, ok := h.(*mockHandler)
			require.True(t, ok)
			assert.Equal(t, attrs, mockH.attrs)
		}
	})

	t.Run("WithGroup", func(t *testing.T) {
		newMulti, ok := multi.WithGroup("experiment").(*multiHandler)
		require.True(t, ok, "WithGroup should return a *multiHandler")

		for _, h := range newMulti.handlers {
			mockH, ok := h.(*mockHandler)
			require.True(t, ok)
			assert.Equal(t, "experiment", mockH.group)
		}
	})

	t.Run("Enabled", func(t *testing.T) {
		assert.True(t, multi.Enabled(context.Background(), slog.LevelInfo))

		h1.enabled = false
		h2.enabled = false
		assert.False(t, multi.Enabled(context.Background(), slog.LevelInfo))
	})
}

func TestNewLogger(t *testing.T) {
	originalLogger := slog.Default()
	defer slog.SetDefault(originalLogger)

	t.Run("File logging", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bench.log")

		logger := NewLogger(false, path, true)
		logger.Info("file message")

		content, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(content), "file message")
	})

	t.Run("Debug level", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "debug.log")

		NewLogger(true, path, true).Debug("debug message")
		NewLogger(false, path, true).Debug("hidden message")

		content, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(content), "debug message")
		assert.NotContains(t, string(content), "hidden message")
	})

	t.Run("Silence stdout", func(t *testing.T) {
		old := os.Stdout
		r, w, _ := os.Pipe()
		os.Stdout = w

		logger := NewLogger(false, "", true)
		logger.Info("should not appear")

		w.Close()
		os.Stdout = old

		var buf bytes.Buffer
		io.Copy(&buf, r)

		assert.Empty(t, buf.String())
	})
}

func TestNewLogger_FileError(t *testing.T) {
	originalLogger := slog.Default()
	defer slog.SetDefault(originalLogger)

	var buf bytes.Buffer
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))

	invalidPath := filepath.Join(t.TempDir(), "nonexistent/test.log")
	logger := NewLogger(false, invalidPath, true)
	assert.NotNil(t, logger)

	output := buf.String()
	assert.True(t, strings.Contains(output, "Failed to open log file"), "Expected log file error message, got: "+output)
}
