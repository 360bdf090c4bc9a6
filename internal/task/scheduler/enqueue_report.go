package scheduler

import (
	"errors"
	"time"

	"edgesched/internal/task/engine"
	logx "edgesched/pkg/logx"
)

const enqueueWarnThrottle = 5 * time.Second

func (s *Service) reportEnqueueError(name string, err error) {
	// Overlap skips are normal for slow cron jobs.
	if errors.Is(err, engine.ErrOverlapSkip) {
		s.log.Debug("schedule trigger skipped", logx.String("schedule", name), logx.Err(err))
		return
	}

	now := time.Now()
	s.enqMu.Lock()
	last := s.lastEnqWarn[name]
	if !last.IsZero() && now.Sub(last) < enqueueWarnThrottle {
		s.enqMu.Unlock()
		return
	}
	s.lastEnqWarn[name] = now
	s.enqMu.Unlock()

	s.log.Warn("schedule failed to enqueue task", logx.String("schedule", name), logx.Err(err))
}
