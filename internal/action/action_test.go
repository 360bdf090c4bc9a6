package action

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"edgesched/internal/storage"
	logx "edgesched/pkg/logx"
)

func TestNew(t *testing.T) {
	t.Parallel()
	tests := []struct {
		kind    string
		units   []string
		wantErr bool
	}{
		{kind: "", wantErr: false},
		{kind: "LOG", wantErr: false},
		{kind: "systemd", units: []string{"edge-agent"}, wantErr: false},
		{kind: "systemd", wantErr: true},
		{kind: "reboot", wantErr: true},
	}
	for _, tt := range tests {
		_, err := New(tt.kind, tt.units, logx.Nop())
		if (err != nil) != tt.wantErr {
			t.Fatalf("New(%q, %v) err = %v, wantErr %v", tt.kind, tt.units, err, tt.wantErr)
		}
	}
}

func TestLogRun(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	ex := NewLog(logx.NewWriter(&buf, "info"))

	err := ex.Run(context.Background(), storage.Schedule{ID: 4, Name: "nightly", Type: "update", Version: "2.20.0", ScheduledTime: "2024-06-16 03:00"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	out := buf.String()
	for _, want := range []string{`"schedule_id":4`, `"version":"2.20.0"`, `"scheduled_time":"2024-06-16 03:00"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("log %s missing %s", out, want)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := ex.Run(ctx, storage.Schedule{}); err == nil {
		t.Fatal("expected error for canceled context")
	}
}

func TestUnitName(t *testing.T) {
	t.Parallel()
	tests := map[string]string{
		"edge-agent":         "edge-agent.service",
		"edge-agent.service": "edge-agent.service",
		"backup.timer":       "backup.timer",
		"agent.v2":           "agent.v2.service",
		" spaced ":           "spaced.service",
	}
	for in, want := range tests {
		if got := unitName(in); got != want {
			t.Fatalf("unitName(%q) = %q, want %q", in, got, want)
		}
	}
}
