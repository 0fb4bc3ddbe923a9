package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestFromConfig(t *testing.T) {
	tests := []struct {
		name       string
		level      string
		format     string
		wantLevel  slog.Level
		wantFormat string
	}{
		{name: "defaults", wantLevel: slog.LevelInfo, wantFormat: "text"},
		{name: "debug text", level: "debug", wantLevel: slog.LevelDebug, wantFormat: "text"},
		{name: "warn json", level: "warn", format: "json", wantLevel: slog.LevelWarn, wantFormat: "json"},
		{name: "unknown level keeps info", level: "loud", wantLevel: slog.LevelInfo, wantFormat: "text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("APP_ENV", "")
			cfg := FromConfig(tt.level, tt.format)
			if cfg.Level != tt.wantLevel {
				t.Errorf("Level = %v, want %v", cfg.Level, tt.wantLevel)
			}
			if cfg.Format != tt.wantFormat {
				t.Errorf("Format = %q, want %q", cfg.Format, tt.wantFormat)
			}
		})
	}
}

func TestFromConfigProductionForcesJSON(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	if cfg := FromConfig("info", "text"); cfg.Format != "json" {
		t.Errorf("Format = %q, want json", cfg.Format)
	}
}

func TestWithContextAddsAttributes(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: slog.LevelDebug, Format: "json", Output: &buf})

	ctx := WithRequestID(context.Background(), "req-1")
	ctx = WithOperation(ctx, "fetch_page")
	ctx = WithStore(ctx, "requests")

	log.WithContext(ctx).WithComponent("test").Info("hello")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to decode log line %q: %v", buf.String(), err)
	}

	for key, want := range map[string]string{
		"request_id": "req-1",
		"operation":  "fetch_page",
		"store":      "requests",
		"component":  "test",
		"msg":        "hello",
	} {
		if got := entry[key]; got != want {
			t.Errorf("%s = %v, want %q", key, got, want)
		}
	}
}

func TestRequestIDFrom(t *testing.T) {
	if _, ok := RequestIDFrom(context.Background()); ok {
		t.Error("expected no request id on empty context")
	}

	id := GenerateRequestID()
	got, ok := RequestIDFrom(WithRequestID(context.Background(), id))
	if !ok || got != id {
		t.Errorf("RequestIDFrom() = %q, %v; want %q, true", got, ok, id)
	}
	if strings.Count(id, "-") != 4 {
		t.Errorf("GenerateRequestID() = %q, want a UUID", id)
	}
}
