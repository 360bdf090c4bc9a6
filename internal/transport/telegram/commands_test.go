package telegram

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"edgesched/internal/storage"
	"edgesched/internal/updates"
	logx "edgesched/pkg/logx"
)

type nopTrigger struct{}

func (nopTrigger) AddOnce(string, time.Time, time.Duration, func(context.Context) error) error {
	return nil
}
func (nopTrigger) Remove(string) bool { return true }

type nopExec struct{}

func (nopExec) Run(context.Context, storage.Schedule) error { return nil }

func newCommands(t *testing.T) *Commands {
	t.Helper()
	now := time.Date(2024, time.June, 15, 12, 0, 30, 0, time.UTC)
	st := storage.NewMemory()
	t.Cleanup(func() { _ = st.Close() })
	svc := updates.New(updates.Config{Now: func() time.Time { return now }}, st, nopTrigger{}, nopExec{}, nil, logx.Nop())
	return NewCommands(svc)
}

func TestCommandReplies(t *testing.T) {
	t.Parallel()
	c := newCommands(t)
	ctx := context.Background()

	steps := []struct {
		in   string
		want string
	}{
		{"/now", "Default scheduled time: 2024-06-15 12:00 (UTC)"},
		{"/now@edgesched_bot", "Default scheduled time: 2024-06-15 12:00 (UTC)"},
		{"/check 2024-06-16 03:00", "2024-06-16 03:00 is a valid scheduled time"},
		{"/check", "Scheduled time is required"},
		{"/check 2024-06-16 3:00", "Scheduled time must be in the format YYYY-MM-DD HH:mm"},
		{"/check 2024-06-14 12:00", "Scheduled time must be later than 2024-06-14 12:00"},
		{"/schedules", "No schedules."},
		{"/schedule nightly update 2.20.0 1,3 2024-06-16 03:00", "Created #1 nightly update 2.20.0 groups=1,3 at 2024-06-16 03:00 [pending]"},
		{"/schedule nightly update 2.20.0 1 2024-06-16 03:00", "Name is already used by schedule 1"},
		{"/schedule back rollback - 2 2024-06-17 03:00", "Created #2 back rollback groups=2 at 2024-06-17 03:00 [pending]"},
		{"/schedule x update 1.0 a,b 2024-06-16 03:00", "Environment group ids must be a comma-separated list of numbers"},
		{"/schedule x update", "Usage: /schedule <name> <update|rollback> <version> <group,ids> <YYYY-MM-DD> <HH:mm>"},
		{"/reschedule 1 2024-06-18 04:15", "Rescheduled #1 nightly update 2.20.0 groups=1,3 at 2024-06-18 04:15 [pending]"},
		{"/reschedule 1 2024-06-10 04:15", "Scheduled time must be later than 2024-06-14 12:00"},
		{"/reschedule x 2024-06-18 04:15", "Schedule id must be a number"},
		{"/reschedule 9 2024-06-18 04:15", "Schedule #9 not found"},
		{"/cancel #2", "Canceled #2 back rollback groups=2 at 2024-06-17 03:00 [canceled]"},
		{"/cancel 2", "Schedule #2 is no longer pending"},
		{"/frobnicate", "Unknown command. Send /help."},
	}
	for _, s := range steps {
		if got := c.Handle(ctx, "@alice", s.in); got != s.want {
			t.Fatalf("%s\n got: %q\nwant: %q", s.in, got, s.want)
		}
	}

	list := c.Handle(ctx, "@alice", "/schedules")
	if lines := strings.Split(list, "\n"); len(lines) != 2 || !strings.HasSuffix(lines[1], "[canceled]") {
		t.Fatalf("/schedules = %q", list)
	}
	if help := c.Handle(ctx, "@alice", "/help"); !strings.Contains(help, "/reschedule <id>") {
		t.Fatalf("/help = %q", help)
	}
}

func TestSplitCommand(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		cmd  string
		args int
	}{
		{"/Check  2024-06-16   03:00", "check", 2},
		{"/now@bot", "now", 0},
		{"hello", "", 0},
		{"", "", 0},
	}
	for _, tt := range tests {
		cmd, args := splitCommand(tt.in)
		if cmd != tt.cmd || len(args) != tt.args {
			t.Fatalf("splitCommand(%q) = %q, %v", tt.in, cmd, args)
		}
	}
}

func TestGuard(t *testing.T) {
	t.Parallel()
	g := NewGuard([]int64{42}, 2)

	if err := g.Check(7); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("stranger err = %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := g.Check(42); err != nil {
			t.Fatalf("burst %d err = %v", i, err)
		}
	}
	if err := g.Check(42); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("over burst err = %v", err)
	}

	g.Apply([]int64{7}, 2)
	if err := g.Check(42); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("removed owner err = %v", err)
	}
	if err := g.Check(7); err != nil {
		t.Fatalf("new owner err = %v", err)
	}
}
