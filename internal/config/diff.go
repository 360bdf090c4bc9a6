package config

import (
	"reflect"
	"strings"

	logx "edgesched/pkg/logx"
)

// SummarizeChange returns the changed top-level sections and safe structured
// attrs for logging. Secrets (telegram token) are never included.
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 6)
	attrs := make([]logx.Field, 0, 12)

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	if oldCfg.Storage != newCfg.Storage {
		// Storage is opened once; a change only takes effect on restart.
		changed = append(changed, "storage")
		attrs = append(attrs, logx.String("storage.driver", newCfg.Storage.Driver), logx.Bool("storage.restart_required", true))
	}

	if strings.TrimSpace(oldCfg.Scheduler.Timezone) != strings.TrimSpace(newCfg.Scheduler.Timezone) {
		changed = append(changed, "scheduler")
		attrs = append(attrs, logx.String("scheduler.timezone", strings.TrimSpace(newCfg.Scheduler.Timezone)))
	}

	if oldCfg.TaskEngine != newCfg.TaskEngine {
		changed = append(changed, "task_engine")
		attrs = append(attrs,
			logx.Int("task_engine.workers", newCfg.TaskEngine.Workers),
			logx.Int("task_engine.retry_max", newCfg.TaskEngine.RetryMax),
		)
	}

	if !reflect.DeepEqual(oldCfg.Updates, newCfg.Updates) {
		changed = append(changed, "updates")
		attrs = append(attrs,
			logx.String("updates.timezone", newCfg.Updates.Timezone),
			logx.String("updates.action", newCfg.Updates.Action),
			logx.Int("updates.unit_count", len(newCfg.Updates.Units)),
		)
	}

	oldTG, newTG := oldCfg.Telegram, newCfg.Telegram
	if (oldTG == nil) != (newTG == nil) || (oldTG != nil && newTG != nil && !reflect.DeepEqual(*oldTG, *newTG)) {
		changed = append(changed, "telegram")
		if newTG != nil {
			attrs = append(attrs,
				logx.Int("telegram.owner_count", len(newTG.OwnerUserIDs)),
				logx.Bool("telegram.token_set", strings.TrimSpace(newTG.Token) != ""),
			)
		} else {
			attrs = append(attrs, logx.Bool("telegram.enabled", false))
		}
	}

	return changed, attrs
}
