package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"edgesched/internal/task/scheduler"
)

// Validate rejects configs that would fail at apply time. It is used both on
// startup and as the hot-reload validator.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error

	switch strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)) {
	case "", "memory", "none":
	case "sqlite", "sqlite3":
		if strings.TrimSpace(cfg.Storage.Path) == "" {
			errs = append(errs, errors.New("storage.path is required for sqlite"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver: unknown driver %q", cfg.Storage.Driver))
	}
	if _, err := ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout); err != nil {
		errs = append(errs, err)
	}

	if _, err := ParseLocationField("scheduler.timezone", cfg.Scheduler.Timezone, time.Local); err != nil {
		errs = append(errs, err)
	}

	te := cfg.TaskEngine
	for path, raw := range map[string]string{
		"task_engine.default_timeout": te.DefaultTimeout,
		"task_engine.retry_base":      te.RetryBase,
		"task_engine.retry_max_delay": te.RetryMaxDelay,
	} {
		if _, err := ParseDurationField(path, raw); err != nil {
			errs = append(errs, err)
		}
	}
	if te.Workers < 0 || te.QueueSize < 0 || te.RetryMax < 0 || te.HistorySize < 0 {
		errs = append(errs, errors.New("task_engine: counts must be >= 0"))
	}

	up := cfg.Updates
	if _, err := ParseLocationField("updates.timezone", up.Timezone, time.UTC); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(strings.TrimSpace(up.Action)) {
	case "", "log":
	case "systemd":
		if len(up.Units) == 0 {
			errs = append(errs, errors.New("updates.units is required for the systemd action"))
		}
	default:
		errs = append(errs, fmt.Errorf("updates.action: unknown action %q", up.Action))
	}
	if _, err := ParseDurationField("updates.timeout", up.Timeout); err != nil {
		errs = append(errs, err)
	}
	if _, err := ParseDurationField("updates.retention", up.Retention); err != nil {
		errs = append(errs, err)
	}
	if spec := strings.TrimSpace(up.PruneCron); spec != "" {
		if _, err := scheduler.SpecParser.Parse(spec); err != nil {
			errs = append(errs, fmt.Errorf("updates.prune_cron: %w", err))
		}
	}

	if tg := cfg.Telegram; tg != nil {
		if strings.TrimSpace(tg.Token) == "" {
			errs = append(errs, errors.New("telegram.token is required when telegram is configured"))
		}
		if len(tg.OwnerUserIDs) == 0 {
			errs = append(errs, errors.New("telegram.owner_user_ids must not be empty"))
		}
		if _, err := ParseDurationField("telegram.poll_timeout", tg.PollTimeout); err != nil {
			errs = append(errs, err)
		}
		if tg.RatePerMin < 0 {
			errs = append(errs, errors.New("telegram.rate_per_min must be >= 0"))
		}
	}

	return errors.Join(errs...)
}
