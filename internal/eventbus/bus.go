package eventbus

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Event types published by the update service and the task engine.
const (
	ScheduleCreated  = "schedule.created"
	ScheduleUpdated  = "schedule.updated"
	ScheduleCanceled = "schedule.canceled"
	ScheduleFired    = "schedule.fired"
	ScheduleFinished = "schedule.finished"
	ScheduleFailed   = "schedule.failed"

	TaskStarted  = "task.started"
	TaskFinished = "task.finished"
	TaskFailed   = "task.failed"
)

// Event is an in-memory signal. Data should be small; receivers must not
// mutate it.
type Event struct {
	Type string
	Time time.Time
	Data any
}

// Bus fans events out to subscribers.
//
// Publish never blocks: a subscriber whose buffer is full misses the event.
type Bus interface {
	Publish(e Event)
	Subscribe(buffer int) (ch <-chan Event, unsubscribe func())
}

// New returns an in-memory fanout bus. It owns no goroutines.
func New() *MemBus {
	return &MemBus{subs: map[uint64]subscriber{}}
}

type subscriber struct {
	ch     chan Event
	prefix string
}

type MemBus struct {
	mu      sync.RWMutex
	subs    map[uint64]subscriber
	seq     uint64
	dropped atomic.Uint64
}

func (b *MemBus) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	// Sends happen under the read lock so unsubscribe (write lock) can close
	// channels without racing a send.
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.subs {
		if s.prefix != "" && !strings.HasPrefix(e.Type, s.prefix) {
			continue
		}
		select {
		case s.ch <- e:
		default:
			b.dropped.Add(1)
		}
	}
}

func (b *MemBus) Subscribe(buffer int) (<-chan Event, func()) {
	return b.SubscribePrefix("", buffer)
}

// SubscribePrefix delivers only events whose Type starts with prefix,
// e.g. "schedule.".
func (b *MemBus) SubscribePrefix(prefix string, buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 8
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	b.seq++
	id := b.seq
	b.subs[id] = subscriber{ch: ch, prefix: prefix}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			close(ch)
			b.mu.Unlock()
		})
	}
}

// Dropped reports how many deliveries were skipped because a subscriber
// was full.
func (b *MemBus) Dropped() uint64 { return b.dropped.Load() }

// Nop discards everything.
type Nop struct{}

func (Nop) Publish(Event) {}

func (Nop) Subscribe(int) (<-chan Event, func()) {
	ch := make(chan Event)
	var once sync.Once
	return ch, func() { once.Do(func() { close(ch) }) }
}
