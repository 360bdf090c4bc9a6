package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	logx "edgesched/pkg/logx"
)

// Store is the persistence API used by the update service.
type Store interface {
	// CreateSchedule inserts s and sets s.ID.
	CreateSchedule(ctx context.Context, s *Schedule) error
	// UpdateSchedule overwrites the row with s.ID. ErrNotFound if absent.
	UpdateSchedule(ctx context.Context, s Schedule) error
	GetSchedule(ctx context.Context, id int64) (Schedule, error)
	// ListSchedules returns all schedules ordered by ID.
	ListSchedules(ctx context.Context) ([]Schedule, error)
	DeleteSchedule(ctx context.Context, id int64) error
	// PruneSchedules deletes schedules in one of statuses last updated before
	// the given instant and reports how many were removed.
	PruneSchedules(ctx context.Context, statuses []string, before time.Time) (int, error)

	AppendAudit(ctx context.Context, e AuditEntry) error
	// ListAudit returns the entries for one schedule, oldest first.
	ListAudit(ctx context.Context, scheduleID int64) ([]AuditEntry, error)

	Close() error
}

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "", "none", "memory":
		return NewMemory(), nil
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
