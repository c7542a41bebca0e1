package logx

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoggerWithFieldsAndLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewJSON(&buf, "info").With(String("comp", "poll"))

	log.Debug("hidden")
	log.Info("iteration done", Int64("watermark", 1000), Err(errors.New("boom")))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d: %q", len(lines), buf.String())
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m["comp"] != "poll" || m["message"] != "iteration done" {
		t.Fatalf("unexpected line: %v", m)
	}
	if m["watermark"] != float64(1000) {
		t.Fatalf("watermark = %v", m["watermark"])
	}
	if c, _ := m["caller"].(string); !strings.HasPrefix(c, "logx_test.go:") {
		t.Fatalf("caller = %v, want this file", m["caller"])
	}
}

func TestZeroLoggerIsNoop(t *testing.T) {
	var l Logger
	if !l.IsZero() {
		t.Fatal("zero logger should report IsZero")
	}
	l.Info("nothing happens")
	if Nop().IsZero() {
		t.Fatal("Nop logger should not be zero")
	}
}

func TestServiceApplyFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.log")
	svc, log := New(Config{Level: "debug", File: FileConfig{Enabled: true, Path: path}})
	t.Cleanup(func() { _ = svc.Close() })
	log = log.With(String("comp", "test"))

	log.Debug("before apply", String("k", "v"))
	svc.Apply(Config{Level: "error", File: FileConfig{Enabled: true, Path: path}})
	log.Info("dropped after apply")
	log.Error("kept after apply")

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	out := string(b)
	for _, want := range []string{`"message":"before apply"`, `"message":"kept after apply"`, `"comp":"test"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("log file missing %s: %q", want, out)
		}
	}
	if strings.Contains(out, "dropped after apply") {
		t.Fatalf("info line written at error level: %q", out)
	}
}

func TestValidLevel(t *testing.T) {
	for _, s := range []string{"", "debug", "INFO", "warning", "Error"} {
		if !ValidLevel(s) {
			t.Fatalf("ValidLevel(%q) = false", s)
		}
	}
	for _, s := range []string{"loud", "fatal", "2", "disabled"} {
		if ValidLevel(s) {
			t.Fatalf("ValidLevel(%q) = true", s)
		}
	}
}
