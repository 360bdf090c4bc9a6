package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"runtime/debug"
	"sync/atomic"
	"time"

	"edgesched/internal/eventbus"
	logx "edgesched/pkg/logx"
)

func (s *Service) worker(ctx context.Context, stopCh <-chan struct{}, queue <-chan queuedTask, idx int) {
	// Per-worker RNG so concurrent retries do not contend on a global lock.
	rng := rand.New(rand.NewSource(time.Now().UnixNano() ^ (int64(idx) << 32)))

	for {
		// A closed stopCh wins over queued work.
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		default:
		}

		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case qt := <-queue:
			atomic.AddInt32(&s.inFlight, 1)
			s.execOne(ctx, stopCh, qt, rng)
			atomic.AddInt32(&s.inFlight, -1)
		}
	}
}

func (s *Service) execOne(ctx context.Context, stopCh <-chan struct{}, qt queuedTask, rng *rand.Rand) {
	defer qt.releaseState()

	start := time.Now()
	queueDelay := max(start.Sub(qt.enqueuedAt), 0)
	ev := TaskEvent{ID: qt.task.ID, Name: qt.task.Name, Started: start, QueueDelay: queueDelay}

	s.log.Debug("task.started", logx.String("task", qt.task.Name), logx.Duration("queue_delay", queueDelay))
	s.bus.Publish(eventbus.Event{Type: eventbus.TaskStarted, Time: start, Data: ev})

	var err error
	maxAttempts := 1 + qt.opt.RetryMax
attemptLoop:
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		ev.Attempts = attempt
		err = s.runOnce(ctx, qt)
		if err == nil {
			break
		}
		var nr noRetryError
		if errors.As(err, &nr) {
			err = nr.err
			break
		}
		if attempt == maxAttempts {
			break
		}

		delay := backoffDelay(qt.opt, attempt, rng)
		s.log.Debug("task retry scheduled", logx.String("task", qt.task.Name), logx.Int("attempt", attempt+1), logx.Duration("delay", delay), logx.Err(err))
		tmr := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			tmr.Stop()
			err = ctx.Err()
			break attemptLoop
		case <-stopCh:
			tmr.Stop()
			err = ErrStopped
			break attemptLoop
		case <-tmr.C:
		}
	}

	ev.Duration = time.Since(start)
	item := HistoryItem{ID: ev.ID, Name: ev.Name, Started: start, QueueDelay: queueDelay, Duration: ev.Duration, Attempts: ev.Attempts}
	if err != nil {
		ev.Error = err.Error()
		item.Error = ev.Error
		s.log.Warn("task.failed", logx.String("task", ev.Name), logx.Err(err), logx.Duration("dur", ev.Duration), logx.Int("attempts", ev.Attempts))
		s.bus.Publish(eventbus.Event{Type: eventbus.TaskFailed, Data: ev})
	} else {
		s.log.Debug("task.completed", logx.String("task", ev.Name), logx.Duration("dur", ev.Duration), logx.Int("attempts", ev.Attempts))
		s.bus.Publish(eventbus.Event{Type: eventbus.TaskFinished, Data: ev})
	}
	s.record(item)
}

// runOnce runs a single attempt. A panic becomes an error so one bad task
// cannot kill a worker.
func (s *Service) runOnce(ctx context.Context, qt queuedTask) (err error) {
	runCtx := ctx
	if qt.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, qt.timeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			s.log.Error("task.panic", logx.String("task", qt.task.Name), logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
		}
	}()
	return qt.task.Run(runCtx)
}

// backoffDelay doubles RetryBase per retry, capped at RetryMaxDelay, with
// symmetric jitter.
func backoffDelay(opt TaskOptions, retry int, rng *rand.Rand) time.Duration {
	d := opt.RetryBase
	for i := 1; i < retry && d < opt.RetryMaxDelay; i++ {
		d *= 2
	}
	if opt.RetryJitter > 0 && rng != nil {
		r := (rng.Float64()*2 - 1) * opt.RetryJitter
		d = time.Duration(float64(d) * (1 + r))
	}
	return min(max(d, 0), opt.RetryMaxDelay)
}
