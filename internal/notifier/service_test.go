package notifier

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"edgesched/internal/eventbus"
	"edgesched/internal/updates"
	logx "edgesched/pkg/logx"
)

type sent struct {
	chatID int64
	text   string
}

type fakeSender struct {
	mu   sync.Mutex
	out  []sent
	fail int64
}

func (f *fakeSender) SendText(_ context.Context, chatID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if chatID == f.fail {
		return errors.New("chat not found")
	}
	f.out = append(f.out, sent{chatID, text})
	return nil
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.out)
}

func TestFormat(t *testing.T) {
	t.Parallel()
	d := updates.Event{ID: 3, Name: "nightly", ScheduledTime: "2024-06-16 03:00", Actor: "@alice", Error: "timeout"}
	tests := []struct {
		typ  string
		want string
		ok   bool
	}{
		{eventbus.ScheduleCreated, "Schedule #3 nightly created by @alice for 2024-06-16 03:00", true},
		{eventbus.ScheduleUpdated, "Schedule #3 nightly moved to 2024-06-16 03:00 by @alice", true},
		{eventbus.ScheduleCanceled, "Schedule #3 nightly canceled by @alice", true},
		{eventbus.ScheduleFired, "Schedule #3 nightly started", true},
		{eventbus.ScheduleFinished, "Schedule #3 nightly done", true},
		{eventbus.ScheduleFailed, "Schedule #3 nightly failed: timeout", true},
		{eventbus.TaskStarted, "", false},
	}
	for _, tt := range tests {
		got, ok := Format(eventbus.Event{Type: tt.typ, Data: d})
		if got != tt.want || ok != tt.ok {
			t.Fatalf("Format(%s) = %q, %v", tt.typ, got, ok)
		}
	}
	if _, ok := Format(eventbus.Event{Type: eventbus.ScheduleFired, Data: "junk"}); ok {
		t.Fatal("foreign Data formatted")
	}
}

func TestRunBroadcasts(t *testing.T) {
	t.Parallel()
	bus := eventbus.New()
	ch, unsub := bus.SubscribePrefix("schedule.", 8)
	defer unsub()

	snd := &fakeSender{fail: 99}
	s := New(Config{ChatIDs: []int64{1, 2, 99}, RatePerSec: 100}, snd, logx.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(ctx, ch)
	}()

	bus.Publish(eventbus.Event{Type: eventbus.ScheduleFinished, Data: updates.Event{ID: 1, Name: "n"}})

	deadline := time.Now().Add(2 * time.Second)
	for len(s.Snapshot()) < 3 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	<-done

	if snd.count() != 2 {
		t.Fatalf("delivered %d, want 2", snd.count())
	}
	h := s.Snapshot()
	if len(h) != 3 || h[2].ChatID != 99 || h[2].Error != "chat not found" {
		t.Fatalf("history = %+v", h)
	}
}
