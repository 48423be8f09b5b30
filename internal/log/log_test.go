package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{" error ", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLogger_JSONCarriesComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelInfo, Format: "json", Output: &buf, Component: ComponentLedger})

	logger.Info("summary computed", FieldUserID, "u1")
	logger.Debug("hidden")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1, "debug is below the configured level")

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "ledger", entry[FieldComponent])
	assert.Equal(t, "u1", entry[FieldUserID])
	assert.Equal(t, "summary computed", entry["msg"])
}

func TestMiddleware_ContextLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Format: "text", Output: &buf, Component: ComponentHTTP})

	var got *Logger
	h := Middleware(logger)(RequestIDMiddleware(func(*http.Request) string { return "req_abc" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = FromContext(r.Context())
			got.InfoContext(r.Context(), "inside")
		})))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	require.NotNil(t, got)
	assert.Equal(t, ComponentHTTP, got.Component())
	assert.Contains(t, buf.String(), "request_id=req_abc")
	assert.Contains(t, buf.String(), "component=http")
}

func TestFromContext_Default(t *testing.T) {
	l := FromContext(context.Background())
	require.NotNil(t, l)
	assert.Equal(t, "unknown", l.Component())
}

func TestStructuredLogger_HTTPEndLevels(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(Config{Format: "text", Output: &buf, Component: ComponentTrace}))
	r := httptest.NewRequest(http.MethodPost, "/api/transactions?x=1", nil)

	sl.LogHTTPEnd(context.Background(), r, "req_1", http.StatusNotFound, 3, "10.0.0.1")
	assert.Contains(t, buf.String(), "level=WARN")
	buf.Reset()

	sl.LogHTTPEnd(context.Background(), r, "req_1", http.StatusInternalServerError, 3, "10.0.0.1")
	assert.Contains(t, buf.String(), "level=ERROR")
	assert.Contains(t, buf.String(), "success=false")
	buf.Reset()

	sl.LogError(context.Background(), "publish failed", errors.New("boom"), OpPublish, nil)
	assert.Contains(t, buf.String(), "error=boom")
	assert.Contains(t, buf.String(), "operation=publish")
}

func TestStructuredLogger_LogMutation(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(Config{Format: "json", Output: &buf, Component: ComponentLedger}))

	sl.LogMutation(context.Background(), OpCreate, "category.created", "u1", "c1")
	out := buf.String()
	assert.Contains(t, out, `"operation":"create"`)
	assert.Contains(t, out, `"event_type":"category.created"`)
	assert.Contains(t, out, `"user_id":"u1"`)
	assert.Contains(t, out, `"entity_id":"c1"`)
	assert.Contains(t, out, `"component":"ledger"`)
}
