package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"edgesched/internal/task/engine"
	logx "edgesched/pkg/logx"
)

type recorder struct {
	mu    sync.Mutex
	tasks []engine.Task
	fired chan string
}

func newRecorder() *recorder { return &recorder{fired: make(chan string, 16)} }

func (r *recorder) Enqueue(t engine.Task) error {
	r.mu.Lock()
	r.tasks = append(r.tasks, t)
	r.mu.Unlock()
	r.fired <- t.Name
	return nil
}

func started(t *testing.T, cfg Config, r *recorder) *Service {
	t.Helper()
	s := New(cfg, r, logx.Nop())
	s.Start(context.Background())
	t.Cleanup(func() { s.Stop(context.Background()) })
	return s
}

func TestAddOnceFires(t *testing.T) {
	t.Parallel()
	r := newRecorder()
	s := started(t, Config{}, r)

	if err := s.AddOnce("schedule:1", time.Now().Add(20*time.Millisecond), time.Second, func(context.Context) error { return nil }); err != nil {
		t.Fatalf("AddOnce: %v", err)
	}
	select {
	case name := <-r.fired:
		if name != "schedule:1" {
			t.Fatalf("fired %q", name)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("once did not fire")
	}
	if s.Has("schedule:1") {
		t.Fatal("fired once still registered")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.tasks[0].Timeout != time.Second || r.tasks[0].Key != "schedule:1" {
		t.Fatalf("task = %+v", r.tasks[0])
	}
}

func TestAddOncePastFiresImmediately(t *testing.T) {
	t.Parallel()
	r := newRecorder()
	s := started(t, Config{}, r)

	_ = s.AddOnce("late", time.Now().Add(-time.Hour), 0, func(context.Context) error { return nil })
	select {
	case <-r.fired:
	case <-time.After(2 * time.Second):
		t.Fatal("past instant did not fire")
	}
}

func TestRemoveAndReplaceOnce(t *testing.T) {
	t.Parallel()
	r := newRecorder()
	s := started(t, Config{}, r)
	job := func(context.Context) error { return nil }

	_ = s.AddOnce("a", time.Now().Add(50*time.Millisecond), 0, job)
	if !s.Remove("a") {
		t.Fatal("Remove reported nothing removed")
	}
	if s.Remove("a") {
		t.Fatal("second Remove reported success")
	}

	_ = s.AddOnce("b", time.Now().Add(time.Hour), 0, job)
	_ = s.AddOnce("b", time.Now().Add(30*time.Millisecond), 0, job)

	select {
	case name := <-r.fired:
		if name != "b" {
			t.Fatalf("fired %q", name)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("replacement did not fire")
	}
	select {
	case name := <-r.fired:
		t.Fatalf("unexpected fire %q", name)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestOnceSurvivesStopStart(t *testing.T) {
	t.Parallel()
	r := newRecorder()
	s := New(Config{}, r, logx.Nop())
	_ = s.AddOnce("pending", time.Now().Add(30*time.Millisecond), 0, func(context.Context) error { return nil })

	select {
	case <-r.fired:
		t.Fatal("fired before Start")
	case <-time.After(80 * time.Millisecond):
	}

	s.Start(context.Background())
	defer s.Stop(context.Background())
	select {
	case <-r.fired:
	case <-time.After(2 * time.Second):
		t.Fatal("did not fire after Start")
	}
}

func TestAddCron(t *testing.T) {
	t.Parallel()
	r := newRecorder()
	s := started(t, Config{Timezone: "UTC"}, r)

	if err := s.AddCron("prune", "not a spec", 0, func(context.Context) error { return nil }); err == nil {
		t.Fatal("expected error for bad spec")
	}
	if err := s.AddCron("prune", "* * * * * *", 0, func(context.Context) error { return nil }); err != nil {
		t.Fatalf("AddCron: %v", err)
	}
	select {
	case name := <-r.fired:
		if name != "prune" {
			t.Fatalf("fired %q", name)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("cron did not fire")
	}
	r.mu.Lock()
	opt := r.tasks[0].Opt
	r.mu.Unlock()
	if opt.Overlap != engine.OverlapSkipIfRunning {
		t.Fatalf("overlap = %v", opt.Overlap)
	}
}

func TestSnapshotAndTimezone(t *testing.T) {
	t.Parallel()
	s := New(Config{Timezone: "Asia/Jakarta"}, nil, logx.Nop())
	_ = s.AddCron("prune", "@hourly", 0, func(context.Context) error { return nil })
	_ = s.AddOnce("schedule:7", time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC), 0, func(context.Context) error { return nil })

	snap := s.Snapshot()
	if snap.Timezone != "Asia/Jakarta" || snap.Running {
		t.Fatalf("snapshot = %+v", snap)
	}
	if len(snap.Schedules) != 2 || snap.Schedules[0].Kind != "cron" || snap.Schedules[1].Spec != "2030-01-01 07:00:00" {
		t.Fatalf("schedules = %+v", snap.Schedules)
	}

	s.Apply(Config{Timezone: "UTC"})
	if got := s.Location().String(); got != "UTC" {
		t.Fatalf("location = %q", got)
	}
	s.Apply(Config{Timezone: "Nowhere/Bogus"})
	if s.Location() != time.Local {
		t.Fatal("bad timezone should fall back to Local")
	}
}

// flakyEnqueuer rejects the first n tasks like a full engine queue.
type flakyEnqueuer struct {
	*recorder
	mu     sync.Mutex
	reject int
	calls  int
}

func (f *flakyEnqueuer) Enqueue(t engine.Task) error {
	f.mu.Lock()
	f.calls++
	if f.reject > 0 {
		f.reject--
		f.mu.Unlock()
		return engine.ErrQueueFull
	}
	f.mu.Unlock()
	return f.recorder.Enqueue(t)
}

func TestRejectedOnceIsRearmed(t *testing.T) {
	t.Parallel()
	f := &flakyEnqueuer{recorder: newRecorder(), reject: 2}
	s := New(Config{}, f, logx.Nop())
	s.retryBase = 10 * time.Millisecond
	s.Start(context.Background())
	t.Cleanup(func() { s.Stop(context.Background()) })

	if err := s.AddOnce("schedule:3", time.Now().Add(-time.Minute), 0, func(context.Context) error { return nil }); err != nil {
		t.Fatalf("AddOnce: %v", err)
	}
	select {
	case name := <-f.fired:
		if name != "schedule:3" {
			t.Fatalf("fired %q", name)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("rejected once was never retried")
	}

	f.mu.Lock()
	calls := f.calls
	f.mu.Unlock()
	if calls != 3 {
		t.Fatalf("enqueue calls = %d, want 3", calls)
	}
	deadline := time.Now().Add(time.Second)
	for s.Has("schedule:3") {
		if time.Now().After(deadline) {
			t.Fatal("accepted once still registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRejectedOnceStaysRemovable(t *testing.T) {
	t.Parallel()
	f := &flakyEnqueuer{recorder: newRecorder(), reject: 1 << 30}
	s := New(Config{}, f, logx.Nop())
	s.retryBase = 10 * time.Millisecond
	s.Start(context.Background())
	t.Cleanup(func() { s.Stop(context.Background()) })

	_ = s.AddOnce("schedule:4", time.Now(), 0, func(context.Context) error { return nil })
	time.Sleep(50 * time.Millisecond)
	if !s.Has("schedule:4") {
		t.Fatal("rejected once was dropped")
	}
	if !s.Remove("schedule:4") {
		t.Fatal("Remove reported nothing registered")
	}
	if s.Has("schedule:4") {
		t.Fatal("once still registered after Remove")
	}
}

func TestRetryDelay(t *testing.T) {
	t.Parallel()
	s := New(Config{}, nil, logx.Nop())
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{4, 8 * time.Second},
		{20, time.Minute},
	}
	for _, tt := range tests {
		if got := s.retryDelay(tt.attempt); got != tt.want {
			t.Fatalf("retryDelay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}
