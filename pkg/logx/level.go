package logx

import (
	"strings"

	"github.com/rs/zerolog"
)

type Level = zerolog.Level

const (
	LevelTrace = zerolog.TraceLevel
	LevelDebug = zerolog.DebugLevel
	LevelInfo  = zerolog.InfoLevel
	LevelWarn  = zerolog.WarnLevel
	LevelError = zerolog.ErrorLevel
)

// parseLevel accepts zerolog level names and "warning"; anything else is def.
func parseLevel(s string, def Level) Level {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warning" {
		return LevelWarn
	}
	if s == "" {
		return def
	}
	lvl, err := zerolog.ParseLevel(s)
	if err != nil || lvl == zerolog.NoLevel {
		return def
	}
	return lvl
}
