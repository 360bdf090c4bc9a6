package app

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"edgesched/internal/action"
	"edgesched/internal/config"
	"edgesched/internal/eventbus"
	"edgesched/internal/notifier"
	"edgesched/internal/runtime/supervisor"
	"edgesched/internal/storage"
	"edgesched/internal/task/engine"
	"edgesched/internal/task/scheduler"
	"edgesched/internal/transport/telegram"
	"edgesched/internal/updates"
	logx "edgesched/pkg/logx"
)

const pruneJob = "updates.prune"

type App struct {
	cfgm *config.ConfigManager
	sup  *supervisor.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   *eventbus.MemBus
	store storage.Store

	engine  *engine.Service
	sched   *scheduler.Service
	exec    *executorSwitch
	updates *updates.Service

	// nil when telegram is not configured
	guard   *telegram.Guard
	adapter *telegram.Adapter
	notif   *notifier.Service
}

func NewApp(cfgPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLogConfig(cfg))
	appLog := log.With(logx.String("comp", "app"))

	sc, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, err
	}
	a, err := build(cfg, store, log)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	a.cfgm = cfgm
	a.logs = logSvc
	a.log = appLog
	appLog.Info("storage opened", logx.String("driver", sc.Driver))
	return a, nil
}

// build wires every service on top of an open store.
func build(cfg *config.Config, store storage.Store, log logx.Logger) (*App, error) {
	bus := eventbus.New()

	engCfg, err := mapTaskEngineConfig(cfg)
	if err != nil {
		return nil, err
	}
	engineSvc := engine.New(engCfg, log.With(logx.String("comp", "taskengine")), bus)
	schedSvc := scheduler.New(mapSchedulerConfig(cfg), engineSvc, log.With(logx.String("comp", "scheduler")))

	ex, err := action.New(cfg.Updates.Action, cfg.Updates.Units, log.With(logx.String("comp", "action")))
	if err != nil {
		return nil, err
	}
	exec := &executorSwitch{exec: ex}

	upCfg, err := mapUpdatesConfig(cfg)
	if err != nil {
		return nil, err
	}
	updSvc := updates.New(upCfg, store, schedSvc, exec, bus, log.With(logx.String("comp", "updates")))

	a := &App{
		log:     log,
		bus:     bus,
		store:   store,
		engine:  engineSvc,
		sched:   schedSvc,
		exec:    exec,
		updates: updSvc,
	}

	if tg := cfg.Telegram; tg != nil {
		tcfg, err := mapTelegramConfig(tg)
		if err != nil {
			return nil, err
		}
		a.guard = telegram.NewGuard(tg.OwnerUserIDs, ratePerMin(tg))
		ad, err := telegram.New(tcfg, telegram.NewCommands(updSvc), a.guard, log.With(logx.String("comp", "telegram")))
		if err != nil {
			return nil, err
		}
		a.adapter = ad
		a.notif = notifier.New(mapNotifierConfig(cfg), ad, log.With(logx.String("comp", "notifier")))
	}
	return a, nil
}

// Updates exposes the schedule service.
func (a *App) Updates() *updates.Service { return a.updates }

// Done is closed when the app context is canceled (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error of a background loop.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))
	runCtx := a.sup.Context()

	a.engine.Start(runCtx)
	a.sched.Start(runCtx)

	cfg := a.currentConfig()
	if err := a.sched.AddCron(pruneJob, pruneSpec(cfg), time.Minute, a.prune); err != nil {
		return err
	}
	if err := a.updates.Restore(runCtx); err != nil {
		return fmt.Errorf("restore schedules: %w", err)
	}

	a.sup.Go0("eventbus.log", a.logEvents)

	if a.adapter != nil {
		if err := a.adapter.Start(runCtx); err != nil {
			return err
		}
		events, unsub := a.bus.SubscribePrefix("schedule.", 64)
		a.sup.Go0("notifier", func(c context.Context) {
			defer unsub()
			a.notif.Run(c, events)
		})
	}

	if a.cfgm != nil {
		a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
		a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
			if _, err := action.New(cfg.Updates.Action, cfg.Updates.Units, logx.Nop()); err != nil {
				return err
			}
			if (cfg.Telegram == nil) != (a.adapter == nil) {
				a.log.Warn("telegram section added or removed; restart required")
			}
			return nil
		})
		sub := a.cfgm.Subscribe(8)
		a.sup.Go0("config.reload", func(c context.Context) {
			defer a.cfgm.Unsubscribe(sub)
			a.reloadLoop(c, sub)
		})
		a.sup.GoRestart("config.watch", a.cfgm.Watch, 250*time.Millisecond, 5*time.Second)
	}

	a.log.Info("app started")
	return nil
}

func (a *App) currentConfig() *config.Config {
	if a.cfgm == nil || a.cfgm.Get() == nil {
		return &config.Config{}
	}
	return a.cfgm.Get()
}

func (a *App) prune(ctx context.Context) error {
	n, err := a.updates.Prune(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		a.log.Info("pruned finished schedules", logx.Int("count", n))
	}
	return nil
}

func (a *App) logEvents(ctx context.Context) {
	events, unsub := a.bus.Subscribe(128)
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
		}
	}
}

func (a *App) reloadLoop(ctx context.Context, sub chan *config.Config) {
	lastApplied := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case newCfg, ok := <-sub:
			if !ok {
				return
			}
			// keep only the latest of a burst
			for drained := false; !drained; {
				select {
				case newer := <-sub:
					if newer != nil {
						newCfg = newer
					}
				default:
					drained = true
				}
			}
			sections, attrs := config.SummarizeChange(lastApplied, newCfg)
			a.apply(ctx, lastApplied, newCfg)
			lastApplied = newCfg

			if len(sections) > 0 {
				fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
				a.log.Info("config reloaded", fields...)
			} else {
				a.log.Info("config reloaded (no changes)")
			}
		}
	}
}

// apply pushes a validated config into the running services.
func (a *App) apply(ctx context.Context, oldCfg, newCfg *config.Config) {
	if oldCfg == nil {
		oldCfg = &config.Config{}
	}
	if a.logs != nil {
		a.logs.Apply(mapLogConfig(newCfg))
	}
	if oldCfg.Storage != newCfg.Storage {
		a.log.Warn("storage config changed; restart required for changes to take effect")
	}

	if engCfg, err := mapTaskEngineConfig(newCfg); err != nil {
		a.log.Warn("invalid task_engine config; keeping previous", logx.Err(err))
	} else {
		a.engine.Apply(ctx, engCfg)
	}
	a.sched.Apply(mapSchedulerConfig(newCfg))
	if pruneSpec(oldCfg) != pruneSpec(newCfg) {
		if err := a.sched.AddCron(pruneJob, pruneSpec(newCfg), time.Minute, a.prune); err != nil {
			a.log.Warn("prune schedule not updated", logx.Err(err))
		}
	}

	if oldCfg.Updates.Action != newCfg.Updates.Action || !reflect.DeepEqual(oldCfg.Updates.Units, newCfg.Updates.Units) {
		ex, err := action.New(newCfg.Updates.Action, newCfg.Updates.Units, a.log.With(logx.String("comp", "action")))
		if err != nil {
			a.log.Warn("invalid updates.action; keeping previous", logx.Err(err))
		} else {
			a.exec.Set(ex)
		}
	}
	if upCfg, err := mapUpdatesConfig(newCfg); err != nil {
		a.log.Warn("invalid updates config; keeping previous", logx.Err(err))
	} else if err := a.updates.Apply(ctx, upCfg); err != nil {
		a.log.Warn("schedules not re-armed", logx.Err(err))
	}

	if a.guard != nil && newCfg.Telegram != nil {
		a.guard.Apply(newCfg.Telegram.OwnerUserIDs, ratePerMin(newCfg.Telegram))
	}
	if a.notif != nil {
		a.notif.Apply(mapNotifierConfig(newCfg))
	}
}

// Stop shuts services down in reverse start order. Each step is bounded so
// one component cannot stall the whole stop.
func (a *App) Stop(ctx context.Context) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping")
	a.sup.Cancel()

	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		stepCtx, cancel := context.WithTimeout(ctx, max)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)", logx.String("name", name), logx.Duration("elapsed", time.Since(start)))
		}
	}

	if a.adapter != nil {
		step("telegram", 3*time.Second, a.adapter.Stop)
	}
	step("scheduler", 2*time.Second, func(c context.Context) error { a.sched.Stop(c); return nil })
	step("taskengine", 3*time.Second, func(c context.Context) error { a.engine.Stop(c); return nil })
	step("supervisor", 2*time.Second, a.sup.Wait)
	step("storage", time.Second, func(context.Context) error { return a.store.Close() })

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}

// executorSwitch lets a config reload replace the action without
// rebuilding the updates service.
type executorSwitch struct {
	mu   sync.RWMutex
	exec action.Executor
}

func (e *executorSwitch) Set(ex action.Executor) {
	e.mu.Lock()
	e.exec = ex
	e.mu.Unlock()
}

func (e *executorSwitch) Run(ctx context.Context, s storage.Schedule) error {
	e.mu.RLock()
	ex := e.exec
	e.mu.RUnlock()
	return ex.Run(ctx, s)
}
