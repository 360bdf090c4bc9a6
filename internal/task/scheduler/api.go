package scheduler

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"edgesched/internal/task/engine"
	logx "edgesched/pkg/logx"
)

// AddCron registers job under name, replacing any schedule with that name.
// A fire is skipped while the previous run of the same name is queued or
// running.
func (s *Service) AddCron(name, spec string, timeout time.Duration, job Job) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("name required")
	}
	if job == nil {
		return errors.New("job required")
	}
	if _, err := s.parser.Parse(spec); err != nil {
		return fmt.Errorf("cron spec %q: %w", spec, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(name)
	s.crons = append(s.crons, cronDef{name: name, spec: spec, timeout: timeout, job: job})
	if s.c == nil {
		return nil
	}
	d := &s.crons[len(s.crons)-1]
	if err := s.addCronLocked(d); err != nil {
		return err
	}
	s.log.Debug("cron registered", logx.String("name", name), logx.String("spec", spec), logx.Time("next", s.c.Entry(d.entryID).Next))
	return nil
}

// AddOnce runs job once at the given instant, replacing any schedule with
// that name. An instant in the past fires immediately.
func (s *Service) AddOnce(name string, at time.Time, timeout time.Duration, job Job) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("name required")
	}
	if at.IsZero() {
		return errors.New("at required")
	}
	if job == nil {
		return errors.New("job required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(name)
	s.verSeq++
	d := &onceDef{at: at, timeout: timeout, job: job, ver: s.verSeq}
	s.once[name] = d
	if s.running {
		s.armLocked(name, d)
	}
	s.log.Debug("once registered", logx.String("name", name), logx.Time("at", at))
	return nil
}

// Remove unschedules name. It reports whether anything was registered.
func (s *Service) Remove(name string) bool {
	name = strings.TrimSpace(name)
	s.mu.Lock()
	removed := s.removeLocked(name)
	s.mu.Unlock()
	if removed {
		s.log.Debug("schedule removed", logx.String("name", name))
	}
	return removed
}

// Has reports whether name is registered.
func (s *Service) Has(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.once[name]; ok {
		return true
	}
	for _, d := range s.crons {
		if d.name == name {
			return true
		}
	}
	return false
}

func (s *Service) removeLocked(name string) bool {
	removed := false
	if d, ok := s.once[name]; ok {
		if d.timer != nil {
			d.timer.Stop()
		}
		delete(s.once, name)
		removed = true
	}
	n := 0
	for _, d := range s.crons {
		if d.name == name {
			if s.c != nil && d.entryID != 0 {
				s.c.Remove(d.entryID)
			}
			removed = true
			continue
		}
		s.crons[n] = d
		n++
	}
	s.crons = s.crons[:n]
	return removed
}

func (s *Service) addCronLocked(d *cronDef) error {
	name, timeout, job := d.name, d.timeout, d.job
	eid, err := s.c.AddJob(d.spec, cron.FuncJob(func() {
		_ = s.enqueue(engine.Task{
			Name:    name,
			Timeout: timeout,
			Run:     job,
			Opt:     engine.TaskOptions{Overlap: engine.OverlapSkipIfRunning},
		})
	}))
	if err == nil {
		d.entryID = eid
	}
	return err
}

// armLocked starts the timer for d. The callback checks the version so a
// replaced or removed definition never fires. The definition is dropped only
// once the engine accepted the task; a rejected fire is re-armed with a
// capped backoff.
func (s *Service) armLocked(name string, d *onceDef) {
	ver := d.ver
	d.timer = time.AfterFunc(max(time.Until(d.at), 0), func() {
		s.mu.Lock()
		cur, ok := s.once[name]
		if !ok || cur.ver != ver || cur.dispatching {
			s.mu.Unlock()
			return
		}
		cur.dispatching = true
		timeout, job := cur.timeout, cur.job
		s.mu.Unlock()

		err := s.enqueue(engine.Task{Name: name, Key: name, Timeout: timeout, Run: job})

		s.mu.Lock()
		defer s.mu.Unlock()
		cur, ok = s.once[name]
		if !ok || cur.ver != ver {
			return
		}
		if err == nil || errors.Is(err, engine.ErrOverlapSkip) {
			delete(s.once, name)
			return
		}
		cur.dispatching = false
		cur.retries++
		cur.at = time.Now().Add(s.retryDelay(cur.retries))
		if s.running {
			s.armLocked(name, cur)
		}
	})
}

// retryDelay doubles from retryBase up to onceRetryMax.
func (s *Service) retryDelay(attempt int) time.Duration {
	d := s.retryBase
	for i := 1; i < attempt && d < onceRetryMax; i++ {
		d *= 2
	}
	return min(d, onceRetryMax)
}

func (s *Service) enqueue(t engine.Task) error {
	if s.eng == nil {
		return nil
	}
	err := s.eng.Enqueue(t)
	if err != nil {
		s.reportEnqueueError(t.Name, err)
	}
	return err
}
