//go:build !linux

package action

import (
	"context"

	"edgesched/internal/storage"
	logx "edgesched/pkg/logx"
)

type Systemd struct {
	units []string
}

func NewSystemd(units []string, _ logx.Logger) *Systemd {
	return &Systemd{units: append([]string(nil), units...)}
}

func (sd *Systemd) Run(context.Context, storage.Schedule) error { return ErrUnsupported }
