package supervisor

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	logx "edgesched/pkg/logx"
)

// Supervisor runs named goroutines tied to a shared context.
// Panics are recovered and reported as errors; with WithCancelOnError the
// first error cancels every sibling.
type Supervisor struct {
	ctx    context.Context
	cancel context.CancelFunc

	log         logx.Logger
	cancelOnErr bool

	errOnce  sync.Once
	firstErr atomic.Value // error

	wg       sync.WaitGroup
	doneOnce sync.Once
	doneCh   chan struct{}

	active atomic.Int64
}

type Option func(*Supervisor)

func WithLogger(log logx.Logger) Option {
	return func(s *Supervisor) { s.log = log }
}

// WithCancelOnError cancels the supervisor context on the first non-nil error.
func WithCancelOnError(enabled bool) Option {
	return func(s *Supervisor) { s.cancelOnErr = enabled }
}

func New(parent context.Context, opts ...Option) *Supervisor {
	ctx, cancel := context.WithCancel(parent)
	s := &Supervisor{ctx: ctx, cancel: cancel, doneCh: make(chan struct{}), log: logx.Nop()}
	for _, o := range opts {
		o(s)
	}
	if s.log.IsZero() {
		s.log = logx.Nop()
	}
	return s
}

func (s *Supervisor) Context() context.Context { return s.ctx }

// Cancel cancels the context without waiting.
func (s *Supervisor) Cancel() { s.cancel() }

// Active is the number of goroutines currently running.
func (s *Supervisor) Active() int64 { return s.active.Load() }

func (s *Supervisor) Err() error {
	if err, ok := s.firstErr.Load().(error); ok {
		return err
	}
	return nil
}

func (s *Supervisor) Go(name string, fn func(ctx context.Context) error) {
	if fn == nil {
		return
	}
	s.wg.Add(1)
	s.active.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.active.Add(-1)

		s.log.Debug("goroutine started", logx.String("name", name))
		err := s.call(name, fn)
		if err != nil && !errors.Is(err, context.Canceled) {
			s.fail(fmt.Errorf("%s: %w", name, err))
		}
		s.log.Debug("goroutine stopped", logx.String("name", name))
	}()
}

func (s *Supervisor) Go0(name string, fn func(ctx context.Context)) {
	if fn == nil {
		return
	}
	s.Go(name, func(ctx context.Context) error {
		fn(ctx)
		return nil
	})
}

// GoRestart runs fn and restarts it after an error or panic with a capped
// exponential backoff, until the context is canceled or fn returns nil.
func (s *Supervisor) GoRestart(name string, fn func(ctx context.Context) error, minBackoff, maxBackoff time.Duration) {
	if fn == nil {
		return
	}
	if minBackoff <= 0 {
		minBackoff = 250 * time.Millisecond
	}
	if maxBackoff < minBackoff {
		maxBackoff = minBackoff
	}
	s.Go0(name+".restart", func(ctx context.Context) {
		backoff := minBackoff
		for ctx.Err() == nil {
			started := time.Now()
			err := s.call(name, fn)
			if err == nil || ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			// a long healthy run resets the backoff
			if time.Since(started) >= 30*time.Second {
				backoff = minBackoff
			}
			s.log.Warn("goroutine restarting", logx.String("name", name), logx.Duration("backoff", backoff), logx.Err(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, maxBackoff)
		}
	})
}

func (s *Supervisor) call(name string, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("goroutine panicked", logx.String("name", name), logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(s.ctx)
}

func (s *Supervisor) fail(err error) {
	s.errOnce.Do(func() { s.firstErr.Store(err) })
	if s.cancelOnErr {
		s.cancel()
	}
}

// Stop cancels the context and waits for all goroutines.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.cancel()
	return s.Wait(ctx)
}

// Wait blocks until every goroutine returned or ctx is done.
func (s *Supervisor) Wait(ctx context.Context) error {
	s.doneOnce.Do(func() {
		go func() {
			s.wg.Wait()
			close(s.doneCh)
		}()
	})
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.doneCh:
		return s.Err()
	}
}
