package logx

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

const (
	defaultFilePath = "./edgesched.log"
	timeFormat      = "2006-01-02T15:04:05.000Z07:00"
)

func init() {
	zerolog.ErrorFieldName = "err"
	zerolog.TimeFieldFormat = timeFormat
}

type Config struct {
	Level   string
	Console bool
	File    FileConfig
}

type FileConfig struct {
	Enabled bool
	Path    string
}

// sink is one generation of outputs. Apply builds a new one and swaps it in
// before closing the previous file.
type sink struct {
	zl   zerolog.Logger
	file *os.File
}

// Service owns the outputs and swaps them on Apply.
type Service struct {
	mu     sync.Mutex
	sink   atomic.Pointer[sink]
	stderr io.Writer
	stdout io.Writer
}

// New builds the outputs for cfg and returns a Logger bound to the Service.
func New(cfg Config) (*Service, Logger) {
	s := &Service{stdout: os.Stdout, stderr: os.Stderr}
	s.Apply(cfg)
	return s, Logger{svc: s}
}

func (s *Service) Logger() Logger { return Logger{svc: s} }

// Apply swaps level and outputs. Loggers already handed out follow.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := &sink{}
	var outs []io.Writer
	if cfg.File.Enabled {
		f, err := openLogFile(cfg.File.Path)
		if err != nil {
			fmt.Fprintf(s.stderr, "logx: %v; file output disabled\n", err)
		} else {
			next.file = f
			outs = append(outs, zerolog.SyncWriter(f))
		}
	}
	// with no file the console is always on
	if cfg.Console || len(outs) == 0 {
		outs = append(outs, consoleWriter(s.stdout))
	}
	next.zl = zerolog.New(zerolog.MultiLevelWriter(outs...)).
		Level(parseLevel(cfg.Level, LevelInfo)).
		With().Timestamp().Logger()

	if prev := s.sink.Swap(next); prev != nil && prev.file != nil {
		_ = prev.file.Close()
	}
}

func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.sink.Load()
	if cur == nil || cur.file == nil {
		return nil
	}
	f := cur.file
	s.sink.Store(&sink{zl: zerolog.Nop()})
	return f.Close()
}

func openLogFile(path string) (*os.File, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = defaultFilePath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("log dir %q: %w", filepath.Dir(path), err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("log file %q: %w", path, err)
	}
	return f, nil
}

func consoleWriter(w io.Writer) io.Writer {
	return zerolog.ConsoleWriter{
		Out:          w,
		TimeFormat:   timeFormat,
		FormatCaller: func(i any) string { s, _ := i.(string); return s },
	}
}
