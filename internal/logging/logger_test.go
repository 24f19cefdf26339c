package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/timothy-holmes/ht-tracker/internal/config"
)

func TestNew_ProdWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.Config{AppEnv: "prod", LogLevel: slog.LevelInfo}

	logger := newWithWriter(&buf, cfg, "1.2.3", "ht-tracker")
	logger.Info("fetch cycle committed", "readings", 3)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, buf.String())
	}
	if rec["app"] != "ht-tracker" || rec["version"] != "1.2.3" || rec["env"] != "prod" {
		t.Errorf("missing base attributes: %v", rec)
	}
	if rec["readings"] != float64(3) {
		t.Errorf("readings = %v, want 3", rec["readings"])
	}
}

func TestNew_DevUsesTint(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.Config{AppEnv: "dev", LogLevel: slog.LevelDebug}

	logger := newWithWriter(&buf, cfg, "dev", "ht-tracker")
	logger.Debug("tick")

	out := buf.String()
	if !strings.Contains(out, "tick") || !strings.Contains(out, "ht-tracker") {
		t.Errorf("dev output = %q, want message and app name", out)
	}
	if json.Valid(bytes.TrimSpace(buf.Bytes())) {
		t.Errorf("dev output should be human readable, got JSON %q", out)
	}
}

func TestNew_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.Config{AppEnv: "prod", LogLevel: slog.LevelWarn}

	logger := newWithWriter(&buf, cfg, "1.0.0", "ht-tracker")
	logger.Info("dropped")
	if buf.Len() != 0 {
		t.Errorf("info record written at warn level: %q", buf.String())
	}
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	if logger.Enabled(context.Background(), slog.LevelError) {
		t.Error("Discard() logger reports enabled, want disabled at every level")
	}
	logger.Error("dropped", "k", "v")
}
