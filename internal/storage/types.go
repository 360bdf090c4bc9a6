package storage

import (
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("storage: not found")
	ErrClosed   = errors.New("storage: closed")
)

// Config configures storage.
//
// If Driver is empty, "none" or "memory", schedules are kept in memory.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Schedule is a persisted update schedule.
//
// ScheduledTime is kept as the canonical "YYYY-MM-DD HH:mm" string, exactly
// as it was accepted; the store never reinterprets it.
type Schedule struct {
	ID            int64
	Name          string
	Type          string
	Version       string
	GroupIDs      []int64
	ScheduledTime string
	Status        string
	Error         string
	CreatedBy     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// AuditEntry records an operator action or a schedule run.
// Keep it compact and schema-stable.
type AuditEntry struct {
	At         time.Time
	Actor      string
	Action     string
	ScheduleID int64
	OK         bool
	Error      string
	TookMS     int64
}
