package engine

import (
	"context"
	"sync"
	"time"
)

// Config controls the task execution engine.
//
// The app layer maps config.task_engine into this struct.
type Config struct {
	Enabled   bool
	Workers   int
	QueueSize int

	// DefaultTimeout is used when Task.Timeout is 0.
	DefaultTimeout time.Duration

	HistorySize   int
	RetryMax      int
	RetryBase     time.Duration
	RetryMaxDelay time.Duration
}

type OverlapPolicy int

const (
	OverlapAllow OverlapPolicy = iota
	OverlapSkipIfRunning
)

type TaskOptions struct {
	Overlap       OverlapPolicy
	RetryMax      int
	RetryBase     time.Duration
	RetryMaxDelay time.Duration
	RetryJitter   float64 // 0.2 = 20%
}

func (o TaskOptions) withDefaults(cfg Config) TaskOptions {
	if o.RetryMax == 0 {
		o.RetryMax = cfg.RetryMax
	}
	if o.RetryMax < 0 {
		o.RetryMax = 0
	}
	if o.RetryBase <= 0 {
		o.RetryBase = cfg.RetryBase
	}
	if o.RetryBase <= 0 {
		o.RetryBase = time.Second
	}
	if o.RetryMaxDelay <= 0 {
		o.RetryMaxDelay = cfg.RetryMaxDelay
	}
	if o.RetryMaxDelay <= 0 {
		o.RetryMaxDelay = 30 * time.Second
	}
	if o.RetryJitter <= 0 {
		o.RetryJitter = 0.2
	}
	return o
}

// RunState tracks whether a key is already queued or running.
type RunState struct {
	mu       sync.Mutex
	inflight int
}

func (s *RunState) tryAcquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight > 0 {
		return false
	}
	s.inflight++
	return true
}

func (s *RunState) release() {
	s.mu.Lock()
	if s.inflight > 0 {
		s.inflight--
	}
	s.mu.Unlock()
}

type HistoryItem struct {
	ID         string
	Name       string
	Started    time.Time
	QueueDelay time.Duration
	Duration   time.Duration
	Attempts   int
	Error      string
}

// TaskEvent is the Data of task.* bus events.
type TaskEvent struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	Started    time.Time     `json:"started"`
	QueueDelay time.Duration `json:"queue_delay"`
	Duration   time.Duration `json:"duration"`
	Attempts   int           `json:"attempts"`
	Error      string        `json:"error,omitempty"`
}

// Task is a unit of work executed by the engine.
//
// Key groups tasks for the SkipIfRunning overlap policy; it defaults to Name.
type Task struct {
	ID      string
	Name    string
	Key     string
	Timeout time.Duration
	Run     func(ctx context.Context) error
	Opt     TaskOptions
}

type Snapshot struct {
	Enabled  bool
	Workers  int
	QueueLen int
	QueueCap int
	InFlight int
	Dropped  uint64
	RetryMax int

	History []HistoryItem
}
