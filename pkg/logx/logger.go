package logx

import (
	"io"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/rs/zerolog"
)

// Logger writes structured events. A Logger taken from a Service follows
// every Service.Apply; the zero value discards everything.
type Logger struct {
	svc    *Service
	fixed  *zerolog.Logger
	fields []Field
}

var nop = zerolog.Nop()

// Nop returns a logger that never writes.
func Nop() Logger { return Logger{fixed: &nop} }

// NewWriter logs JSON to w at level. It does not follow a Service.
func NewWriter(w io.Writer, level string) Logger {
	zl := zerolog.New(w).Level(parseLevel(level, LevelInfo)).With().Timestamp().Logger()
	return Logger{fixed: &zl}
}

func (l Logger) IsZero() bool { return l.svc == nil && l.fixed == nil && len(l.fields) == 0 }

func (l Logger) zl() *zerolog.Logger {
	switch {
	case l.svc != nil:
		return &l.svc.sink.Load().zl
	case l.fixed != nil:
		return l.fixed
	default:
		return &nop
	}
}

// Enabled reports whether level would be written.
func (l Logger) Enabled(level Level) bool { return level >= l.zl().GetLevel() }

// With returns a logger that adds fields to every event.
func (l Logger) With(fields ...Field) Logger {
	if len(fields) == 0 {
		return l
	}
	l.fields = append(append(make([]Field, 0, len(l.fields)+len(fields)), l.fields...), fields...)
	return l
}

func (l Logger) Debug(msg string, fields ...Field) { l.write(LevelDebug, msg, fields) }
func (l Logger) Info(msg string, fields ...Field)  { l.write(LevelInfo, msg, fields) }
func (l Logger) Warn(msg string, fields ...Field)  { l.write(LevelWarn, msg, fields) }
func (l Logger) Error(msg string, fields ...Field) { l.write(LevelError, msg, fields) }

func (l Logger) write(level Level, msg string, fields []Field) {
	e := l.zl().WithLevel(level)
	if e == nil {
		return
	}
	// skip write and the level method
	if _, file, line, ok := runtime.Caller(2); ok {
		e.Str(zerolog.CallerFieldName, filepath.Base(file)+":"+strconv.Itoa(line))
	}
	apply(e, l.fields)
	apply(e, fields)
	e.Msg(msg)
}
