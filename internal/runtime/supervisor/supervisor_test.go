package supervisor

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestFirstErrorCancels(t *testing.T) {
	t.Parallel()
	s := New(context.Background(), WithCancelOnError(true))

	s.Go0("waiter", func(ctx context.Context) { <-ctx.Done() })
	s.Go("boom", func(ctx context.Context) error { return errors.New("boom") })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := s.Wait(ctx)
	if err == nil || !strings.Contains(err.Error(), "boom: boom") {
		t.Fatalf("Wait err = %v", err)
	}
	if s.Active() != 0 {
		t.Fatalf("Active = %d after Wait", s.Active())
	}
}

func TestPanicIsRecovered(t *testing.T) {
	t.Parallel()
	s := New(context.Background())
	s.Go0("panics", func(ctx context.Context) { panic("kaboom") })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := s.Wait(ctx)
	if err == nil || !strings.Contains(err.Error(), "kaboom") {
		t.Fatalf("Wait err = %v, want panic error", err)
	}
}

func TestCanceledIsClean(t *testing.T) {
	t.Parallel()
	s := New(context.Background())
	s.Go("loop", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop err = %v", err)
	}
}

func TestGoRestart(t *testing.T) {
	t.Parallel()
	s := New(context.Background())
	var runs atomic.Int32
	s.GoRestart("flaky", func(ctx context.Context) error {
		if runs.Add(1) < 3 {
			return errors.New("transient")
		}
		return nil
	}, time.Millisecond, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Wait(ctx); err != nil {
		t.Fatalf("Wait err = %v", err)
	}
	if got := runs.Load(); got != 3 {
		t.Fatalf("runs = %d, want 3", got)
	}
}
