package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestSinkLevels(t *testing.T) {
	var buf bytes.Buffer
	s := NewSink(zerolog.New(&buf).Level(zerolog.DebugLevel))

	s.Info("scanning columns", map[string]any{"left": 900, "right": 1100})
	s.Warn("very dark pixel found", map[string]any{"column": 950})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2: %q", len(lines), buf.String())
	}

	var first, second map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("bad json: %v", err)
	}
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatalf("bad json: %v", err)
	}
	if first["level"] != "debug" || first["left"] != float64(900) {
		t.Errorf("info event = %v", first)
	}
	if second["level"] != "warn" || second["column"] != float64(950) || second["message"] != "very dark pixel found" {
		t.Errorf("warn event = %v", second)
	}
}

func TestSinkRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	s := NewSink(zerolog.New(&buf).Level(zerolog.InfoLevel))

	s.Info("scanning columns", nil)
	if buf.Len() != 0 {
		t.Errorf("debug chatter leaked at info level: %q", buf.String())
	}
}
