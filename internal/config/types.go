package config

type Config struct {
	Logging    LoggingConfig    `json:"logging"`
	Storage    StorageConfig    `json:"storage"`
	Scheduler  SchedulerConfig  `json:"scheduler"`
	TaskEngine TaskEngineConfig `json:"task_engine"`
	Updates    UpdatesConfig    `json:"updates"`

	// Telegram is optional; without a token the command surface is not started.
	Telegram *TelegramConfig `json:"telegram,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig controls the persistence layer.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./data/edgesched.db" }
//
// Driver "memory" (or empty) keeps schedules in process memory only.
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string
}

// SchedulerConfig controls the trigger service.
type SchedulerConfig struct {
	// Timezone is the IANA zone cron entries are evaluated in (default: Local).
	Timezone string `json:"timezone,omitempty"`
}

// TaskEngineConfig controls execution of fired schedules.
//
// Defaults (when fields are omitted/zero):
//   - workers: 2
//   - queue_size: 64
//   - default_timeout: "0s" (disabled)
//   - retry_max: 2
//   - retry_base: "1s"
//   - retry_max_delay: "30s"
//   - history_size: 100
type TaskEngineConfig struct {
	Workers        int    `json:"workers,omitempty"`
	QueueSize      int    `json:"queue_size,omitempty"`
	DefaultTimeout string `json:"default_timeout,omitempty"`
	RetryMax       int    `json:"retry_max,omitempty"`
	RetryBase      string `json:"retry_base,omitempty"`
	RetryMaxDelay  string `json:"retry_max_delay,omitempty"`
	HistorySize    int    `json:"history_size,omitempty"`
}

// UpdatesConfig controls update schedules.
type UpdatesConfig struct {
	// Timezone scheduled times are interpreted in. Agents assume UTC+0 when
	// nothing is configured, so the default is "UTC".
	Timezone string `json:"timezone,omitempty"`

	// Action is what runs when a schedule fires: "log" (default) or "systemd".
	Action string `json:"action,omitempty"`
	// Units are the systemd units restarted by the "systemd" action.
	Units []string `json:"units,omitempty"`
	// Timeout bounds a single action run (Go duration string).
	Timeout string `json:"timeout,omitempty"`

	// Retention is how long finished/canceled schedules are kept (default "720h").
	Retention string `json:"retention,omitempty"`
	// PruneCron is the cron spec of the retention sweep (default "@hourly").
	PruneCron string `json:"prune_cron,omitempty"`
}

type TelegramConfig struct {
	Token        string  `json:"token"`
	OwnerUserIDs []int64 `json:"owner_user_ids"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout,omitempty"`
	// RatePerMin bounds commands per user (default 20).
	RatePerMin int `json:"rate_per_min,omitempty"`
	// Notify sends schedule lifecycle messages to the owners.
	Notify bool `json:"notify,omitempty"`
}
