package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/corehttp/pkg/protocol"
	"github.com/vango-dev/corehttp/pkg/router"
)

func jsonLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func lastLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &m))
	return m
}

func TestLoggerLevels(t *testing.T) {
	tests := []struct {
		code  int
		level string
	}{
		{protocol.StatusOK, "INFO"},
		{protocol.StatusNotFound, "WARN"},
		{protocol.StatusInternalServerError, "ERROR"},
	}

	for _, tt := range tests {
		var buf bytes.Buffer
		resp, err := Logger(jsonLogger(&buf))(respond(tt.code)).Serve(newRequest("GET", "/a"))
		require.NoError(t, err)

		line := lastLine(t, &buf)
		assert.Equal(t, tt.level, line["level"])
		assert.Equal(t, "http", line["component"])
		assert.Equal(t, "GET", line["method"])
		assert.Equal(t, "/a", line["path"])
		assert.Equal(t, float64(tt.code), line["status"])

		id := resp.Header.Get(RequestIDHeader)
		_, err = uuid.Parse(id)
		assert.NoError(t, err)
		assert.Equal(t, id, line["request_id"])
	}
}

func TestLoggerKeepsRequestID(t *testing.T) {
	var buf bytes.Buffer
	req := newRequest("GET", "/")
	req.Header.Set(RequestIDHeader, "abc")

	resp, err := Logger(jsonLogger(&buf))(respond(protocol.StatusOK)).Serve(req)
	require.NoError(t, err)
	assert.Equal(t, "abc", resp.Header.Get(RequestIDHeader))
	assert.Equal(t, "abc", lastLine(t, &buf)["request_id"])
}

func TestLoggerCarriesRequestIDOnContext(t *testing.T) {
	var buf bytes.Buffer
	var seenHeader, seenID string
	h := router.HandlerFunc(func(req *protocol.Request) (*protocol.Response, error) {
		seenHeader = req.Header.Get(RequestIDHeader)
		seenID = RequestID(req)
		return protocol.NewResponse(protocol.StatusOK), nil
	})
	req := newRequest("GET", "/")

	resp, err := Logger(jsonLogger(&buf))(h).Serve(req)
	require.NoError(t, err)

	assert.Empty(t, seenHeader)
	_, err = uuid.Parse(seenID)
	require.NoError(t, err)
	assert.Equal(t, seenID, resp.Header.Get(RequestIDHeader))
	assert.Equal(t, seenID, lastLine(t, &buf)["request_id"])
	assert.Empty(t, req.Header.Get(RequestIDHeader))
	assert.Empty(t, RequestID(req))
}

func TestLoggerError(t *testing.T) {
	var buf bytes.Buffer
	_, err := Logger(jsonLogger(&buf))(fail(errors.New("boom"))).Serve(newRequest("POST", "/"))
	require.Error(t, err)

	line := lastLine(t, &buf)
	assert.Equal(t, "ERROR", line["level"])
	assert.Equal(t, "request failed", line["msg"])
	assert.Equal(t, "boom", line["error"])
}
