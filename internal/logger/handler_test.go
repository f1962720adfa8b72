package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

type requestIdCtxKey struct{}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{" warn ", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Expected error %v, got %v", tt.wantErr, err)
			}
			if got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestNewHandlerRejectsUnknownFormat(t *testing.T) {
	if _, err := NewHandler(&bytes.Buffer{}, "xml", slog.LevelInfo, "/", nil); err == nil {
		t.Error("Expected error for unknown format")
	}
}

func TestHandlerAddsContextIds(t *testing.T) {
	var buf bytes.Buffer

	h, err := NewHandler(&buf, "json", slog.LevelDebug, "/", requestIdCtxKey{})
	if err != nil {
		t.Fatal(err)
	}

	l := slog.New(h).With(slog.String("component", "test")).WithGroup("g")

	ctx := context.WithValue(context.Background(), requestIdCtxKey{}, "req-1")
	ctx = WithRunId(ctx, "run-1")

	l.InfoContext(ctx, "hello", slog.Int("n", 1))

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("Failed to decode log line %q: %v", buf.String(), err)
	}

	if rec["msg"] != "hello" {
		t.Errorf("Expected msg hello, got %v", rec["msg"])
	}
	if rec["component"] != "test" {
		t.Errorf("Expected component attr to survive WithAttrs, got %v", rec["component"])
	}

	// attrs added by the handler land inside the open group
	g, ok := rec["g"].(map[string]any)
	if !ok {
		t.Fatalf("Expected group g, got %v", rec)
	}
	if g["request_id"] != "req-1" || g["run_id"] != "run-1" {
		t.Errorf("Expected request and run ids after WithGroup, got %v", g)
	}
	if _, ok := g["source"]; !ok {
		t.Errorf("Expected source attr, got %v", g)
	}
}

func TestHandlerLevel(t *testing.T) {
	var buf bytes.Buffer

	h, err := NewHandler(&buf, "text", slog.LevelWarn, "/", nil)
	if err != nil {
		t.Fatal(err)
	}

	l := slog.New(h)
	l.Info("quiet")
	l.Warn("loud")

	if strings.Contains(buf.String(), "quiet") || !strings.Contains(buf.String(), "loud") {
		t.Errorf("Unexpected output %q", buf.String())
	}
}
