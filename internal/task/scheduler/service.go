package scheduler

import (
	"context"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	logx "edgesched/pkg/logx"
)

func New(cfg Config, eng Enqueuer, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{
		cfg:         cfg,
		log:         log,
		eng:         eng,
		parser:      SpecParser,
		once:        map[string]*onceDef{},
		retryBase:   onceRetryBase,
		lastEnqWarn: map[string]time.Time{},
	}
	s.loc = s.loadLocationLocked()
	return s
}

// Location is the zone cron entries are evaluated in.
func (s *Service) Location() *time.Location {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loc
}

// Apply swaps the config. A timezone change re-registers cron entries in the
// new zone; one-time timers are absolute instants and are left alone.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()

	oldTZ := strings.TrimSpace(s.cfg.Timezone)
	s.cfg = cfg
	if oldTZ == strings.TrimSpace(cfg.Timezone) {
		return
	}
	s.loc = s.loadLocationLocked()
	if s.c != nil {
		s.restartCronLocked()
	}
}

// Start begins cron triggering and arms the pending one-time timers.
func (s *Service) Start(ctx context.Context) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.c = cron.New(cron.WithParser(s.parser), cron.WithLocation(s.loc))
	for i := range s.crons {
		if err := s.addCronLocked(&s.crons[i]); err != nil {
			s.log.Error("schedule register failed", logx.String("name", s.crons[i].name), logx.Err(err))
		}
	}
	s.c.Start()
	for name, d := range s.once {
		s.armLocked(name, d)
	}
	s.log.Info("scheduler started", logx.String("tz", s.loc.String()), logx.Int("cron", len(s.crons)), logx.Int("once", len(s.once)))
}

// Stop halts triggering. Definitions are kept and re-armed by the next Start.
func (s *Service) Stop(ctx context.Context) {
	start := time.Now()
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.running = false
	for _, d := range s.once {
		if d.timer != nil {
			d.timer.Stop()
			d.timer = nil
		}
	}
	s.mu.Unlock()

	if c != nil {
		select {
		case <-c.Stop().Done():
		case <-ctx.Done():
		}
	}
	s.log.Info("scheduler stopped", logx.Duration("took", time.Since(start)))
}

func (s *Service) restartCronLocked() {
	<-s.c.Stop().Done()
	s.c = cron.New(cron.WithParser(s.parser), cron.WithLocation(s.loc))
	for i := range s.crons {
		_ = s.addCronLocked(&s.crons[i])
	}
	s.c.Start()
	s.log.Info("scheduler timezone changed", logx.String("tz", s.loc.String()), logx.Int("cron", len(s.crons)))
}

func (s *Service) loadLocationLocked() *time.Location {
	tz := strings.TrimSpace(s.cfg.Timezone)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		s.log.Warn("invalid timezone; falling back to Local", logx.String("tz", tz), logx.Err(err))
		return time.Local
	}
	return loc
}
