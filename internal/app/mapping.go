package app

import (
	"strings"
	"time"

	"edgesched/internal/config"
	"edgesched/internal/notifier"
	"edgesched/internal/storage"
	"edgesched/internal/task/engine"
	"edgesched/internal/task/scheduler"
	"edgesched/internal/transport/telegram"
	"edgesched/internal/updates"
	logx "edgesched/pkg/logx"
)

const (
	defaultRetention   = 720 * time.Hour
	defaultPruneCron   = "@hourly"
	defaultBusyTimeout = time.Second
	defaultRatePerMin  = 20
)

func mapLogConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	if driver != "sqlite" && driver != "sqlite3" {
		return storage.Config{Driver: driver}, nil
	}
	busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, defaultBusyTimeout)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{Driver: driver, Path: strings.TrimSpace(sc.Path), BusyTimeout: busy}, nil
}

// mapTaskEngineConfig leaves zero counts to the engine's own defaults.
func mapTaskEngineConfig(cfg *config.Config) (engine.Config, error) {
	te := cfg.TaskEngine
	defTimeout, err := config.ParseDurationField("task_engine.default_timeout", te.DefaultTimeout)
	if err != nil {
		return engine.Config{}, err
	}
	base, err := config.ParseDurationField("task_engine.retry_base", te.RetryBase)
	if err != nil {
		return engine.Config{}, err
	}
	maxDelay, err := config.ParseDurationField("task_engine.retry_max_delay", te.RetryMaxDelay)
	if err != nil {
		return engine.Config{}, err
	}
	return engine.Config{
		Enabled:        true,
		Workers:        te.Workers,
		QueueSize:      te.QueueSize,
		DefaultTimeout: defTimeout,
		HistorySize:    te.HistorySize,
		RetryMax:       te.RetryMax,
		RetryBase:      base,
		RetryMaxDelay:  maxDelay,
	}, nil
}

func mapSchedulerConfig(cfg *config.Config) scheduler.Config {
	return scheduler.Config{Timezone: strings.TrimSpace(cfg.Scheduler.Timezone)}
}

func mapUpdatesConfig(cfg *config.Config) (updates.Config, error) {
	up := cfg.Updates
	loc, err := config.ParseLocationField("updates.timezone", up.Timezone, time.UTC)
	if err != nil {
		return updates.Config{}, err
	}
	timeout, err := config.ParseDurationField("updates.timeout", up.Timeout)
	if err != nil {
		return updates.Config{}, err
	}
	retention, err := config.ParseDurationOrDefault("updates.retention", up.Retention, defaultRetention)
	if err != nil {
		return updates.Config{}, err
	}
	return updates.Config{Location: loc, Timeout: timeout, Retention: retention}, nil
}

func pruneSpec(cfg *config.Config) string {
	if s := strings.TrimSpace(cfg.Updates.PruneCron); s != "" {
		return s
	}
	return defaultPruneCron
}

func mapTelegramConfig(tg *config.TelegramConfig) (telegram.Config, error) {
	poll, err := config.ParseDurationOrDefault("telegram.poll_timeout", tg.PollTimeout, 10*time.Second)
	if err != nil {
		return telegram.Config{}, err
	}
	return telegram.Config{Token: strings.TrimSpace(tg.Token), PollTimeout: poll}, nil
}

func ratePerMin(tg *config.TelegramConfig) int {
	if tg == nil || tg.RatePerMin <= 0 {
		return defaultRatePerMin
	}
	return tg.RatePerMin
}

// mapNotifierConfig sends to the owners' private chats; a disabled notifier
// has no targets.
func mapNotifierConfig(cfg *config.Config) notifier.Config {
	tg := cfg.Telegram
	if tg == nil || !tg.Notify {
		return notifier.Config{}
	}
	return notifier.Config{ChatIDs: append([]int64(nil), tg.OwnerUserIDs...)}
}
