//go:build linux

package action

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coreos/go-systemd/v22/dbus"

	"edgesched/internal/storage"
	logx "edgesched/pkg/logx"
)

const unitTimeout = 15 * time.Second

// Systemd restarts the configured units over the system D-Bus.
type Systemd struct {
	units []string
	log   logx.Logger
}

func NewSystemd(units []string, log logx.Logger) *Systemd {
	return &Systemd{units: append([]string(nil), units...), log: log}
}

// Run restarts every unit and waits for each job to finish. All units are
// attempted; the failures are joined.
func (sd *Systemd) Run(ctx context.Context, s storage.Schedule) error {
	conn, err := dbus.NewSystemConnectionContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to systemd: %w", err)
	}
	defer conn.Close()

	var errs []error
	for _, u := range sd.units {
		if err := sd.restart(ctx, conn, unitName(u)); err != nil {
			errs = append(errs, err)
			continue
		}
		sd.log.Info("unit restarted", logx.String("unit", unitName(u)), logx.Int64("schedule_id", s.ID), logx.String("version", s.Version))
	}
	return errors.Join(errs...)
}

func (sd *Systemd) restart(ctx context.Context, conn *dbus.Conn, unit string) error {
	// Per-unit timeout so one stuck job cannot hold the rest.
	uctx, cancel := context.WithTimeout(ctx, unitTimeout)
	defer cancel()

	done := make(chan string, 1)
	if _, err := conn.RestartUnitContext(uctx, unit, "replace", done); err != nil {
		return fmt.Errorf("failed to restart %s: %w", unit, err)
	}
	select {
	case result := <-done:
		if result != "done" {
			return fmt.Errorf("restart %s: job %s", unit, result)
		}
		return nil
	case <-uctx.Done():
		return fmt.Errorf("restart %s: %w", unit, uctx.Err())
	}
}
