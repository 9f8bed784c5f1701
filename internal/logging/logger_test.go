package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry), line)
		out = append(out, entry)
	}
	return out
}

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := New(WarnLevel, &buf)

	logger.Debug("hidden")
	logger.Info("hidden")
	logger.Warn("shown", map[string]interface{}{"iteration": 3})
	logger.Error("also shown")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "shown", entries[0]["message"])
	assert.Equal(t, "WARN", entries[0]["level"])
	assert.Equal(t, float64(3), entries[0]["iteration"])
	assert.Contains(t, entries[0]["caller"], "logging/logger_test.go")
	assert.Equal(t, "ERROR", entries[1]["level"])
}

func TestLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	base := New(DebugLevel, &buf)
	child := base.WithField("run_id", "r1").WithError(errors.New("boom"))

	child.Info("with fields", map[string]interface{}{"cause": errors.New("nested")})
	base.Info("without fields")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "r1", entries[0]["run_id"])
	assert.Equal(t, "boom", entries[0]["error"])
	assert.Equal(t, "nested", entries[0]["cause"])
	assert.NotContains(t, entries[1], "run_id")
}

func TestLoggerFatalExits(t *testing.T) {
	var buf bytes.Buffer
	logger := New(InfoLevel, &buf)
	code := -1
	logger.exit = func(c int) { code = c }

	logger.WithField("k", "v").Fatal("stop")
	assert.Equal(t, 1, code)
	assert.Contains(t, buf.String(), `"level":"FATAL"`)
}

func TestTextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(InfoLevel, &buf).WithFormat(TextFormat)

	logger.Info("run finished", map[string]interface{}{"outcome": "goal_reached", "iterations": 4})

	line := buf.String()
	assert.Contains(t, line, "INFO  run finished")
	assert.Contains(t, line, "iterations=4")
	assert.Contains(t, line, "outcome=goal_reached")
	assert.Less(t, strings.Index(line, "iterations="), strings.Index(line, "outcome="))
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(nil)
	require.NoError(t, err)
	assert.Equal(t, InfoLevel, logger.Level())

	logger, err = NewLogger(&Config{Level: "debug", Format: "console", Output: "stdout"})
	require.NoError(t, err)
	assert.Equal(t, DebugLevel, logger.Level())
	assert.Equal(t, TextFormat, logger.format)

	_, err = NewLogger(&Config{Format: "xml"})
	assert.Error(t, err)

	assert.Equal(t, InfoLevel, parseLevel("verbose"))
	assert.Equal(t, WarnLevel, parseLevel(" warn "))
}

func TestContextLogger(t *testing.T) {
	var buf bytes.Buffer
	ctxLogger := &CtxLogger{New(InfoLevel, &buf).WithField("service", "darwin")}
	ctx := ctxLogger.WithContext(context.Background())

	assert.Same(t, ctxLogger, FromContext(ctx))
	assert.NotNil(t, FromContext(context.Background()))
}

func TestZapAdapter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZapLogger(New(InfoLevel, &buf)).With(zap.String("run_id", "r1"))

	logger.Debug("new population", zap.Int("size", 10))
	logger.Warn("maximum number of iterations reached",
		zap.Int("max_runs", 5),
		zap.Float64("best_fitness", 1.5),
		zap.Bool("stabilizer", true),
	)

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, "WARN", e["level"])
	assert.Equal(t, "maximum number of iterations reached", e["message"])
	assert.Equal(t, "r1", e["run_id"])
	assert.Equal(t, float64(5), e["max_runs"])
	assert.Equal(t, 1.5, e["best_fitness"])
	assert.Equal(t, true, e["stabilizer"])
	assert.Contains(t, e["caller"], "logging/logger_test.go")
}

func TestMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := New(DebugLevel, &buf)

	var fromCtx *CtxLogger
	handler := middleware.RequestID(Middleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fromCtx = FromContext(r.Context())
		w.WriteHeader(http.StatusTeapot)
	})))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil))

	require.NotNil(t, fromCtx)
	entries := decodeLines(t, &buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "Request started", entries[0]["message"])
	assert.Equal(t, "Request completed", entries[1]["message"])
	assert.Equal(t, "WARN", entries[1]["level"])
	assert.Equal(t, float64(http.StatusTeapot), entries[1]["status"])
	assert.NotEmpty(t, entries[1]["request_id"])
}
