// Package updates manages edge update schedules: validation, persistence,
// triggering and the run itself.
package updates

import (
	"context"
	"errors"
	"fmt"
	"time"

	"edgesched/internal/storage"
)

type Schedule = storage.Schedule

const (
	TypeUpdate   = "update"
	TypeRollback = "rollback"
)

const (
	StatusPending  = "pending"
	StatusRunning  = "running"
	StatusDone     = "done"
	StatusFailed   = "failed"
	StatusCanceled = "canceled"
)

var (
	ErrInvalid    = errors.New("invalid schedule")
	ErrNotFound   = storage.ErrNotFound
	ErrNotPending = errors.New("schedule is not pending")
)

// FieldError names the rejected field and carries a user-facing reason.
type FieldError struct {
	Field  string
	Reason string
	Err    error // optional cause, e.g. a schedtime sentinel
}

func (e *FieldError) Error() string { return fmt.Sprintf("%s: %s", e.Field, e.Reason) }

func (e *FieldError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrInvalid, e.Err}
	}
	return []error{ErrInvalid}
}

// Request is the operator input for Create and Update.
type Request struct {
	Name          string
	Type          string
	Version       string
	GroupIDs      []int64
	ScheduledTime string
}

// Trigger arms and disarms one-shot runs. *scheduler.Service implements it.
type Trigger interface {
	AddOnce(name string, at time.Time, timeout time.Duration, job func(ctx context.Context) error) error
	Remove(name string) bool
}

// Executor performs a fired schedule. See package action.
type Executor interface {
	Run(ctx context.Context, s storage.Schedule) error
}

type Config struct {
	// Location canonical strings are read in. Nil means UTC.
	Location *time.Location
	// Timeout bounds one run; 0 means no limit.
	Timeout time.Duration
	// Retention is how long finished schedules are kept by Prune.
	Retention time.Duration
	// Now replaces time.Now.
	Now func() time.Time
}

// Event is the Data of schedule.* bus events.
type Event struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Status        string `json:"status"`
	ScheduledTime string `json:"scheduled_time"`
	Actor         string `json:"actor,omitempty"`
	Error         string `json:"error,omitempty"`
}
