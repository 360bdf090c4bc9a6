package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"edgesched/internal/eventbus"
	logx "edgesched/pkg/logx"
)

type Service struct {
	mu  sync.Mutex
	cfg Config
	log logx.Logger
	bus eventbus.Bus

	q      chan queuedTask
	stopCh chan struct{}
	wg     sync.WaitGroup
	// carry holds tasks moved from the old queue by restart.
	carry []queuedTask

	stateMu sync.Mutex
	states  map[string]*RunState

	hmu     sync.Mutex
	history []HistoryItem

	idSeq    uint64
	inFlight int32
	dropped  uint64
}

type queuedTask struct {
	task       Task
	enqueuedAt time.Time
	timeout    time.Duration
	opt        TaskOptions
	state      *RunState
}

func New(cfg Config, log logx.Logger, bus eventbus.Bus) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	if bus == nil {
		bus = eventbus.Nop{}
	}
	return &Service{
		cfg:    withDefaults(cfg),
		log:    log,
		bus:    bus,
		states: make(map[string]*RunState),
	}
}

func withDefaults(cfg Config) Config {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 100
	}
	return cfg
}

// Apply swaps the config. Worker and queue sizes take effect through a
// restart of the pool; everything else applies to the next enqueue.
func (s *Service) Apply(ctx context.Context, cfg Config) {
	cfg = withDefaults(cfg)
	s.mu.Lock()
	prev := s.cfg
	s.cfg = cfg
	running := s.stopCh != nil
	s.mu.Unlock()

	if running && (prev.Workers != cfg.Workers || prev.QueueSize != cfg.QueueSize || prev.Enabled != cfg.Enabled) {
		s.restart(ctx)
	}
}

// restart rebuilds the pool and carries over tasks that were queued but not
// started, so a resize never loses accepted work.
func (s *Service) restart(ctx context.Context) {
	s.mu.Lock()
	q := s.q
	s.mu.Unlock()

	s.Stop(ctx)

	var carry []queuedTask
	for q != nil {
		select {
		case qt := <-q:
			carry = append(carry, qt)
			continue
		default:
		}
		break
	}

	s.mu.Lock()
	s.carry = carry
	s.mu.Unlock()
	s.Start(ctx)
	if len(carry) > 0 {
		s.log.Info("queued tasks carried over", logx.Int("count", len(carry)))
	}
}

// Start launches the workers. It is a no-op when disabled or running.
func (s *Service) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.cfg.Enabled || s.stopCh != nil {
		return
	}

	queue := make(chan queuedTask, max(s.cfg.QueueSize, len(s.carry)))
	for _, qt := range s.carry {
		queue <- qt
	}
	s.carry = nil
	stopCh := make(chan struct{})
	s.q, s.stopCh = queue, stopCh
	for i := 0; i < s.cfg.Workers; i++ {
		s.wg.Add(1)
		go func(idx int) {
			defer s.wg.Done()
			s.worker(ctx, stopCh, queue, idx)
		}(i)
	}
	s.log.Info("task engine started", logx.Int("workers", s.cfg.Workers), logx.Int("queue", s.cfg.QueueSize))
}

// Stop signals the workers and waits for in-flight tasks until ctx expires.
// Queued tasks that have not started are discarded; Apply keeps them.
func (s *Service) Stop(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	if s.stopCh == nil {
		s.mu.Unlock()
		return
	}
	close(s.stopCh)
	s.stopCh = nil
	s.q = nil
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.log.Info("task engine stopped")
	case <-ctx.Done():
		s.log.Warn("task engine stop timed out", logx.Err(ctx.Err()))
	}
}

// Enqueue adds t without blocking. A full queue drops the task.
func (s *Service) Enqueue(t Task) error {
	return s.enqueue(context.Background(), t, false)
}

// Submit blocks until t is queued, ctx is done or the engine stops.
func (s *Service) Submit(ctx context.Context, t Task) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return s.enqueue(ctx, t, true)
}

func (s *Service) enqueue(ctx context.Context, t Task, block bool) error {
	if t.Run == nil {
		return fmt.Errorf("task Run is nil")
	}
	t.Name = strings.TrimSpace(t.Name)
	if t.Name == "" {
		return fmt.Errorf("task Name is required")
	}
	now := time.Now()
	if strings.TrimSpace(t.ID) == "" {
		t.ID = s.newTaskID(now)
	}

	s.mu.Lock()
	cfg := s.cfg
	q := s.q
	stopCh := s.stopCh
	s.mu.Unlock()

	if !cfg.Enabled {
		return ErrDisabled
	}
	if q == nil {
		return ErrStopped
	}

	timeout := t.Timeout
	if timeout <= 0 {
		timeout = cfg.DefaultTimeout
	}
	qt := queuedTask{task: t, enqueuedAt: now, timeout: timeout, opt: t.Opt.withDefaults(cfg)}

	if qt.opt.Overlap == OverlapSkipIfRunning {
		st := s.stateFor(t.Key, t.Name)
		if !st.tryAcquire() {
			s.log.Debug("task skipped due to overlap", logx.String("task", t.Name), logx.String("id", t.ID))
			return ErrOverlapSkip
		}
		qt.state = st
	}

	if !block {
		select {
		case q <- qt:
			return nil
		default:
			qt.releaseState()
			atomic.AddUint64(&s.dropped, 1)
			s.log.Warn("task dropped: queue full", logx.String("task", t.Name), logx.Int("queue_cap", cap(q)))
			return ErrQueueFull
		}
	}

	select {
	case q <- qt:
		return nil
	case <-ctx.Done():
		qt.releaseState()
		return ctx.Err()
	case <-stopCh:
		qt.releaseState()
		return ErrStopped
	}
}

func (qt queuedTask) releaseState() {
	if qt.state != nil {
		qt.state.release()
	}
}

func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	cfg := s.cfg
	q := s.q
	s.mu.Unlock()

	snap := Snapshot{
		Enabled:  cfg.Enabled,
		Workers:  cfg.Workers,
		InFlight: int(atomic.LoadInt32(&s.inFlight)),
		Dropped:  atomic.LoadUint64(&s.dropped),
		RetryMax: cfg.RetryMax,
	}
	if q != nil {
		snap.QueueLen, snap.QueueCap = len(q), cap(q)
	}
	s.hmu.Lock()
	snap.History = append([]HistoryItem(nil), s.history...)
	s.hmu.Unlock()
	return snap
}

func (s *Service) record(item HistoryItem) {
	s.mu.Lock()
	size := s.cfg.HistorySize
	s.mu.Unlock()

	s.hmu.Lock()
	s.history = append(s.history, item)
	if len(s.history) > size {
		s.history = s.history[len(s.history)-size:]
	}
	s.hmu.Unlock()
}

func (s *Service) stateFor(key, name string) *RunState {
	k := strings.TrimSpace(key)
	if k == "" {
		k = name
	}
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	st := s.states[k]
	if st == nil {
		st = &RunState{}
		s.states[k] = st
	}
	return st
}

func (s *Service) newTaskID(now time.Time) string {
	seq := atomic.AddUint64(&s.idSeq, 1)
	return fmt.Sprintf("tsk-%x-%x", now.UnixNano(), seq)
}
