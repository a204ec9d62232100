package observability

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testCounter struct {
	n atomic.Uint64
}

func (c *testCounter) Increment() uint64 {
	return c.n.Add(1)
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var lines []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		lines = append(lines, entry)
	}
	return lines
}

func TestLoggingMiddleware_Configuration(t *testing.T) {
	t.Run("default_configuration", func(t *testing.T) {
		m := NewLoggingMiddleware(slog.Default(), &testCounter{})

		config := m.GetConfig()
		assert.True(t, config.LogResponses)
		assert.Equal(t, slog.LevelInfo, config.Level)
		assert.NotNil(t, config.Now)
	})

	t.Run("custom_configuration", func(t *testing.T) {
		m := NewLoggingMiddleware(slog.Default(), &testCounter{},
			WithLogLevel(slog.LevelWarn),
			WithResponseLogging(false),
			WithLogFields(map[string]interface{}{"service": "api"}),
		)

		config := m.GetConfig()
		assert.False(t, config.LogResponses)
		assert.Equal(t, slog.LevelWarn, config.Level)
		assert.Equal(t, "api", config.Fields["service"])
	})
}

func TestLoggingMiddleware_LogsEveryRequest(t *testing.T) {
	var buf bytes.Buffer
	counter := &testCounter{}
	fixed := time.Date(2024, 5, 1, 10, 20, 30, 456_000_000, time.UTC)

	m := NewLoggingMiddleware(newTestLogger(&buf), counter,
		WithClock(func() time.Time { return fixed }),
		WithResponseLogging(false),
	)
	handler := m.HTTPMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	for _, path := range []string{"/health", "/does-not-exist"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	}

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)

	assert.Equal(t, "HTTP request received", lines[0]["msg"])
	assert.Equal(t, "2024-05-01T10:20:30.456Z", lines[0]["timestamp"])
	assert.Equal(t, "GET", lines[0]["method"])
	assert.Equal(t, "/health", lines[0]["path"])
	assert.EqualValues(t, 1, lines[0]["request"])

	assert.Equal(t, "/does-not-exist", lines[1]["path"])
	assert.EqualValues(t, 2, lines[1]["request"])

	assert.EqualValues(t, 2, counter.n.Load())
}

func TestLoggingMiddleware_ResponseLine(t *testing.T) {
	var buf bytes.Buffer
	m := NewLoggingMiddleware(newTestLogger(&buf), &testCounter{})
	handler := m.HTTPMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/load-test", nil))

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "HTTP request completed", lines[1]["msg"])
	assert.Equal(t, "DEBUG", lines[1]["level"])
	assert.EqualValues(t, http.StatusTeapot, lines[1]["status_code"])
}

func TestLoggingMiddleware_ConcurrentCount(t *testing.T) {
	counter := &testCounter{}
	m := NewLoggingMiddleware(slog.New(slog.NewTextHandler(io.Discard, nil)), counter)
	handler := m.HTTPMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/stats", nil))
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 50, counter.n.Load())
}
