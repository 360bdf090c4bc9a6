package logx

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoggerWritesFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, "debug").With(String("comp", "updates"))

	log.Info("schedule created", Int("id", 7), Err(errors.New("boom")), Err(nil))

	var m map[string]any
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if m["message"] != "schedule created" {
		t.Fatalf("message = %v", m["message"])
	}
	if m["comp"] != "updates" {
		t.Fatalf("comp = %v", m["comp"])
	}
	if m["id"] != float64(7) {
		t.Fatalf("id = %v", m["id"])
	}
	if m["err"] != "boom" {
		t.Fatalf("err = %v", m["err"])
	}
	if _, ok := m["caller"]; !ok {
		t.Fatalf("caller missing: %v", m)
	}
}

func TestLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, "warn")
	log.Info("dropped")
	if buf.Len() != 0 {
		t.Fatalf("info written at warn level: %q", buf.String())
	}
	if log.Enabled(LevelInfo) {
		t.Fatal("Enabled(info) = true at warn level")
	}
	if !log.Enabled(LevelError) {
		t.Fatal("Enabled(error) = false at warn level")
	}
}

func TestZeroAndNopLoggers(t *testing.T) {
	var zero Logger
	if !zero.IsZero() {
		t.Fatal("zero Logger should report IsZero")
	}
	zero.Info("ignored")

	nop := Nop()
	if nop.IsZero() {
		t.Fatal("Nop() should not report IsZero")
	}
	nop.Error("ignored")
}

func TestParseLevel(t *testing.T) {
	t.Parallel()
	tests := map[string]Level{
		"trace":   LevelTrace,
		" DEBUG ": LevelDebug,
		"warning": LevelWarn,
		"error":   LevelError,
		"bogus":   LevelInfo,
	}
	for in, want := range tests {
		if got := parseLevel(in, LevelInfo); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestServiceApplySwapsOutputs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "logs", "edgesched.log")

	svc, log := New(Config{Level: "info", File: FileConfig{Enabled: true, Path: path}})
	svc.stdout = io.Discard
	comp := log.With(String("comp", "updates"))

	comp.Debug("hidden")
	comp.Info("first")

	svc.Apply(Config{Level: "debug", File: FileConfig{Enabled: true, Path: path}})
	comp.Debug("second")
	if err := svc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	comp.Info("after close")

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	if len(lines) != 2 {
		t.Fatalf("log lines = %q", lines)
	}
	for i, want := range []string{"first", "second"} {
		var m map[string]any
		if err := json.Unmarshal([]byte(lines[i]), &m); err != nil {
			t.Fatalf("line %d not JSON: %v", i, err)
		}
		if m["message"] != want || m["comp"] != "updates" {
			t.Fatalf("line %d = %v", i, m)
		}
	}
}
