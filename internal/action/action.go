// Package action runs the work behind a fired update schedule.
package action

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"edgesched/internal/storage"
	logx "edgesched/pkg/logx"
)

var ErrUnsupported = errors.New("action: unsupported on this OS")

// Executor performs a schedule. Implementations must honor ctx.
type Executor interface {
	Run(ctx context.Context, s storage.Schedule) error
}

// New builds the executor named by kind ("log" or "systemd").
func New(kind string, units []string, log logx.Logger) (Executor, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "log":
		return Log{log: log}, nil
	case "systemd":
		if len(units) == 0 {
			return nil, errors.New("action systemd: no units configured")
		}
		return NewSystemd(units, log), nil
	default:
		return nil, fmt.Errorf("unknown action %q", kind)
	}
}

// Log only records what would have been done.
type Log struct {
	log logx.Logger
}

func NewLog(log logx.Logger) Log { return Log{log: log} }

func (l Log) Run(ctx context.Context, s storage.Schedule) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.log.Info("update action",
		logx.Int64("schedule_id", s.ID),
		logx.String("name", s.Name),
		logx.String("type", s.Type),
		logx.String("version", s.Version),
		logx.Any("groups", s.GroupIDs),
		logx.String("scheduled_time", s.ScheduledTime),
	)
	return nil
}

// unitName appends ".service" unless the name already has a unit suffix.
func unitName(name string) string {
	name = strings.TrimSpace(name)
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		switch name[i+1:] {
		case "service", "timer", "target", "socket", "path":
			return name
		}
	}
	return name + ".service"
}
