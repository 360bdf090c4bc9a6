package updates

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"edgesched/internal/eventbus"
	"edgesched/internal/storage"
	"edgesched/internal/task/engine"
	logx "edgesched/pkg/logx"
	"edgesched/pkg/schedtime"
)

const systemActor = "system"

var finishedStatuses = []string{StatusDone, StatusFailed, StatusCanceled}

type Service struct {
	store storage.Store
	trig  Trigger
	exec  Executor
	bus   eventbus.Bus
	log   logx.Logger

	// mu serializes mutations so name uniqueness and status transitions are
	// checked against a stable view.
	mu    sync.Mutex
	cfg   Config
	value *schedtime.Value
}

func New(cfg Config, store storage.Store, trig Trigger, exec Executor, bus eventbus.Bus, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	if bus == nil {
		bus = eventbus.Nop{}
	}
	s := &Service{store: store, trig: trig, exec: exec, bus: bus, log: log}
	s.setConfigLocked(cfg)
	return s
}

func (s *Service) setConfigLocked(cfg Config) {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	s.cfg = cfg
	s.value = schedtime.New(schedtime.WithClock(cfg.Now), schedtime.WithLocation(cfg.Location))
}

// Value returns the scheduled-time rules in the service's location.
func (s *Service) Value() *schedtime.Value {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// Apply swaps the config. When the location changes, pending triggers are
// re-armed because their canonical strings now name different instants.
func (s *Service) Apply(ctx context.Context, cfg Config) error {
	s.mu.Lock()
	relocated := cfg.Location != nil && cfg.Location.String() != s.cfg.Location.String()
	if cfg.Now == nil {
		cfg.Now = s.cfg.Now
	}
	s.setConfigLocked(cfg)
	s.mu.Unlock()

	if relocated {
		s.log.Info("update timezone changed; re-arming schedules", logx.String("tz", cfg.Location.String()))
		return s.restore(ctx, false)
	}
	return nil
}

func (s *Service) Create(ctx context.Context, actor string, req Request) (Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.store.ListSchedules(ctx)
	if err != nil {
		return Schedule{}, err
	}
	if err := validate(s.value, req, all, 0); err != nil {
		return Schedule{}, err
	}

	now := s.value.Now()
	sc := Schedule{
		Name:          strings.TrimSpace(req.Name),
		Type:          req.Type,
		Version:       strings.TrimSpace(req.Version),
		GroupIDs:      dedupeIDs(req.GroupIDs),
		ScheduledTime: req.ScheduledTime,
		Status:        StatusPending,
		CreatedBy:     actor,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.CreateSchedule(ctx, &sc); err != nil {
		return Schedule{}, err
	}
	if err := s.armLocked(sc); err != nil {
		return sc, err
	}
	s.audit(ctx, actor, "create", sc.ID, nil, 0)
	s.publish(eventbus.ScheduleCreated, sc, actor)
	s.log.Info("schedule created", logx.Int64("id", sc.ID), logx.String("name", sc.Name), logx.String("at", sc.ScheduledTime), logx.String("actor", actor))
	return sc, nil
}

// Update replaces the editable fields of a pending schedule.
func (s *Service) Update(ctx context.Context, actor string, id int64, req Request) (Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sc, err := s.store.GetSchedule(ctx, id)
	if err != nil {
		return Schedule{}, err
	}
	if sc.Status != StatusPending {
		return Schedule{}, fmt.Errorf("%w: %d is %s", ErrNotPending, id, sc.Status)
	}
	all, err := s.store.ListSchedules(ctx)
	if err != nil {
		return Schedule{}, err
	}
	if err := validate(s.value, req, all, id); err != nil {
		return Schedule{}, err
	}

	sc.Name = strings.TrimSpace(req.Name)
	sc.Type = req.Type
	sc.Version = strings.TrimSpace(req.Version)
	sc.GroupIDs = dedupeIDs(req.GroupIDs)
	sc.ScheduledTime = req.ScheduledTime
	sc.UpdatedAt = s.value.Now()
	if err := s.store.UpdateSchedule(ctx, sc); err != nil {
		return Schedule{}, err
	}
	if err := s.armLocked(sc); err != nil {
		return sc, err
	}
	s.audit(ctx, actor, "update", sc.ID, nil, 0)
	s.publish(eventbus.ScheduleUpdated, sc, actor)
	s.log.Info("schedule updated", logx.Int64("id", sc.ID), logx.String("at", sc.ScheduledTime), logx.String("actor", actor))
	return sc, nil
}

// Reschedule changes only the scheduled time of a pending schedule.
func (s *Service) Reschedule(ctx context.Context, actor string, id int64, scheduledTime string) (Schedule, error) {
	sc, err := s.Get(ctx, id)
	if err != nil {
		return Schedule{}, err
	}
	return s.Update(ctx, actor, id, Request{
		Name:          sc.Name,
		Type:          sc.Type,
		Version:       sc.Version,
		GroupIDs:      sc.GroupIDs,
		ScheduledTime: scheduledTime,
	})
}

func (s *Service) Cancel(ctx context.Context, actor string, id int64) (Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sc, err := s.store.GetSchedule(ctx, id)
	if err != nil {
		return Schedule{}, err
	}
	if sc.Status != StatusPending {
		return Schedule{}, fmt.Errorf("%w: %d is %s", ErrNotPending, id, sc.Status)
	}
	s.trig.Remove(triggerName(id))
	sc.Status = StatusCanceled
	sc.UpdatedAt = s.value.Now()
	if err := s.store.UpdateSchedule(ctx, sc); err != nil {
		return Schedule{}, err
	}
	s.audit(ctx, actor, "cancel", sc.ID, nil, 0)
	s.publish(eventbus.ScheduleCanceled, sc, actor)
	s.log.Info("schedule canceled", logx.Int64("id", sc.ID), logx.String("actor", actor))
	return sc, nil
}

func (s *Service) Get(ctx context.Context, id int64) (Schedule, error) {
	return s.store.GetSchedule(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]Schedule, error) {
	return s.store.ListSchedules(ctx)
}

// History returns the audit trail of one schedule.
func (s *Service) History(ctx context.Context, id int64) ([]storage.AuditEntry, error) {
	return s.store.ListAudit(ctx, id)
}

// Restore arms triggers for every pending schedule. Schedules left running
// by a previous process are marked failed. Call it once at startup.
func (s *Service) Restore(ctx context.Context) error {
	return s.restore(ctx, true)
}

func (s *Service) restore(ctx context.Context, startup bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.store.ListSchedules(ctx)
	if err != nil {
		return err
	}
	armed := 0
	for _, sc := range all {
		switch sc.Status {
		case StatusPending:
			if err := s.armLocked(sc); err != nil {
				s.log.Warn("schedule not restored", logx.Int64("id", sc.ID), logx.Err(err))
				s.finishLocked(ctx, sc, err)
				continue
			}
			armed++
		case StatusRunning:
			if !startup {
				continue
			}
			s.finishLocked(ctx, sc, errors.New("interrupted by restart"))
		}
	}
	s.log.Info("schedules restored", logx.Int("armed", armed), logx.Int("total", len(all)))
	return nil
}

// Prune deletes finished schedules older than the retention window.
func (s *Service) Prune(ctx context.Context) (int, error) {
	s.mu.Lock()
	retention := s.cfg.Retention
	now := s.value.Now()
	s.mu.Unlock()
	if retention <= 0 {
		return 0, nil
	}
	n, err := s.store.PruneSchedules(ctx, finishedStatuses, now.Add(-retention))
	if err != nil {
		return n, err
	}
	if n > 0 {
		s.log.Info("schedules pruned", logx.Int("count", n), logx.Duration("retention", retention))
	}
	return n, nil
}

func (s *Service) armLocked(sc Schedule) error {
	at, err := s.value.Parse(sc.ScheduledTime)
	if err != nil {
		return err
	}
	id := sc.ID
	return s.trig.AddOnce(triggerName(id), at, s.cfg.Timeout, func(ctx context.Context) error {
		return s.run(ctx, id)
	})
}

// run performs a fired schedule. Failures are final; the engine does not
// retry them because the schedule has already left pending.
func (s *Service) run(ctx context.Context, id int64) error {
	s.mu.Lock()
	sc, err := s.store.GetSchedule(ctx, id)
	if err != nil {
		s.mu.Unlock()
		return engine.NoRetry(err)
	}
	if sc.Status != StatusPending {
		s.mu.Unlock()
		s.log.Debug("fired schedule no longer pending", logx.Int64("id", id), logx.String("status", sc.Status))
		return nil
	}
	sc.Status = StatusRunning
	sc.UpdatedAt = s.value.Now()
	if err := s.store.UpdateSchedule(ctx, sc); err != nil {
		s.mu.Unlock()
		return engine.NoRetry(err)
	}
	s.mu.Unlock()

	s.publish(eventbus.ScheduleFired, sc, systemActor)
	s.log.Info("schedule fired", logx.Int64("id", sc.ID), logx.String("name", sc.Name), logx.String("type", sc.Type))

	start := time.Now()
	runErr := s.exec.Run(ctx, sc)
	took := time.Since(start)

	s.mu.Lock()
	s.finishLocked(context.WithoutCancel(ctx), sc, runErr)
	s.mu.Unlock()
	s.audit(context.WithoutCancel(ctx), systemActor, "run", sc.ID, runErr, took)
	return engine.NoRetry(runErr)
}

func (s *Service) finishLocked(ctx context.Context, sc Schedule, runErr error) {
	sc.Status, sc.Error = StatusDone, ""
	typ := eventbus.ScheduleFinished
	if runErr != nil {
		sc.Status, sc.Error = StatusFailed, runErr.Error()
		typ = eventbus.ScheduleFailed
	}
	sc.UpdatedAt = s.value.Now()
	if err := s.store.UpdateSchedule(ctx, sc); err != nil {
		s.log.Error("schedule status not saved", logx.Int64("id", sc.ID), logx.String("status", sc.Status), logx.Err(err))
	}
	s.publish(typ, sc, systemActor)
	if runErr != nil {
		s.log.Warn("schedule failed", logx.Int64("id", sc.ID), logx.Err(runErr))
	} else {
		s.log.Info("schedule done", logx.Int64("id", sc.ID))
	}
}

func (s *Service) audit(ctx context.Context, actor, action string, id int64, err error, took time.Duration) {
	e := storage.AuditEntry{At: s.value.Now(), Actor: actor, Action: action, ScheduleID: id, OK: err == nil, TookMS: took.Milliseconds()}
	if err != nil {
		e.Error = err.Error()
	}
	if aerr := s.store.AppendAudit(ctx, e); aerr != nil {
		s.log.Warn("audit append failed", logx.String("action", action), logx.Int64("id", id), logx.Err(aerr))
	}
}

func (s *Service) publish(typ string, sc Schedule, actor string) {
	s.bus.Publish(eventbus.Event{Type: typ, Data: Event{
		ID:            sc.ID,
		Name:          sc.Name,
		Status:        sc.Status,
		ScheduledTime: sc.ScheduledTime,
		Actor:         actor,
		Error:         sc.Error,
	}})
}

func triggerName(id int64) string { return "schedule:" + itoa(id) }

func itoa(id int64) string { return strconv.FormatInt(id, 10) }

func dedupeIDs(ids []int64) []int64 {
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}
