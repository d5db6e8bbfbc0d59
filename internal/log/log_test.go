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

	"github.com/go-chi/chi/v5/middleware"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func jsonLogger(buf *bytes.Buffer, component string) *Logger {
	return New(Config{Level: slog.LevelDebug, Format: "json", Component: component, Output: buf})
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("invalid json line %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestLoggerAddsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := jsonLogger(&buf, ComponentBills)
	l.Info("created", FieldInstanceID, 7)
	l.WithComponent(ComponentCache).Warn("evicted")

	lines := decodeLines(t, &buf)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[0][FieldComponent] != ComponentBills || lines[0][FieldInstanceID] != float64(7) {
		t.Errorf("unexpected first line %v", lines[0])
	}
	if lines[1][FieldComponent] != ComponentCache || lines[1]["level"] != "WARN" {
		t.Errorf("unexpected second line %v", lines[1])
	}
}

func TestLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelWarn, Format: "json", Output: &buf})
	l.Info("hidden")
	l.Error("shown")
	lines := decodeLines(t, &buf)
	if len(lines) != 1 || lines[0]["msg"] != "shown" {
		t.Fatalf("unexpected lines %v", lines)
	}
}

func TestTextHandlerWritesMessage(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelInfo, Format: "text", Output: &buf})
	l.Info("hello there")
	if !strings.Contains(buf.String(), "hello there") {
		t.Fatalf("expected message in %q", buf.String())
	}
}

func TestFromContextFallback(t *testing.T) {
	l := FromContext(context.Background())
	if l == nil || l.Component() != "unknown" {
		t.Fatalf("unexpected fallback logger %+v", l)
	}

	var buf bytes.Buffer
	own := jsonLogger(&buf, ComponentWorker)
	if got := FromContext(IntoContext(context.Background(), own)); got != own {
		t.Fatalf("expected stored logger")
	}
}

func TestMiddlewareLogsStatus(t *testing.T) {
	var buf bytes.Buffer
	l := jsonLogger(&buf, ComponentApp)

	h := middleware.RequestID(Middleware(l)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if FromContext(r.Context()).Component() != ComponentHTTP {
			t.Errorf("handler should see the http logger")
		}
		w.WriteHeader(http.StatusUnprocessableEntity)
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/instances?x=1", nil))

	lines := decodeLines(t, &buf)
	if len(lines) != 1 {
		t.Fatalf("expected one access line, got %d", len(lines))
	}
	line := lines[0]
	if line["level"] != "WARN" || line[FieldStatusCode] != float64(422) || line[FieldPath] != "/instances" {
		t.Errorf("unexpected access line %v", line)
	}
	if id, _ := line[FieldRequestID].(string); id == "" {
		t.Errorf("expected request id in %v", line)
	}
}

func TestLogError(t *testing.T) {
	var buf bytes.Buffer
	l := jsonLogger(&buf, ComponentStorage)
	LogError(context.Background(), l, "insert failed", errors.New("disk full"), OpCreate, nil)

	lines := decodeLines(t, &buf)
	if len(lines) != 1 || lines[0][FieldError] != "disk full" || lines[0][FieldOperation] != OpCreate {
		t.Fatalf("unexpected lines %v", lines)
	}
}
