package storage

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"
)

type memStore struct {
	mu     sync.Mutex
	closed bool
	seq    int64
	rows   map[int64]Schedule
	audit  []AuditEntry
}

// NewMemory returns a Store that keeps everything in process memory.
func NewMemory() Store {
	return &memStore{rows: map[int64]Schedule{}}
}

func cloneSchedule(s Schedule) Schedule {
	s.GroupIDs = slices.Clone(s.GroupIDs)
	return s
}

func (m *memStore) CreateSchedule(ctx context.Context, s *Schedule) error {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.seq++
	s.ID = m.seq
	m.rows[s.ID] = cloneSchedule(*s)
	return nil
}

func (m *memStore) UpdateSchedule(ctx context.Context, s Schedule) error {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if _, ok := m.rows[s.ID]; !ok {
		return ErrNotFound
	}
	m.rows[s.ID] = cloneSchedule(s)
	return nil
}

func (m *memStore) GetSchedule(ctx context.Context, id int64) (Schedule, error) {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return Schedule{}, ErrClosed
	}
	s, ok := m.rows[id]
	if !ok {
		return Schedule{}, ErrNotFound
	}
	return cloneSchedule(s), nil
}

func (m *memStore) ListSchedules(ctx context.Context) ([]Schedule, error) {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	out := make([]Schedule, 0, len(m.rows))
	for _, s := range m.rows {
		out = append(out, cloneSchedule(s))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) DeleteSchedule(ctx context.Context, id int64) error {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if _, ok := m.rows[id]; !ok {
		return ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

func (m *memStore) PruneSchedules(ctx context.Context, statuses []string, before time.Time) (int, error) {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, ErrClosed
	}
	n := 0
	for id, s := range m.rows {
		if slices.Contains(statuses, s.Status) && s.UpdatedAt.Before(before) {
			delete(m.rows, id)
			n++
		}
	}
	return n, nil
}

func (m *memStore) AppendAudit(ctx context.Context, e AuditEntry) error {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	m.audit = append(m.audit, e)
	return nil
}

func (m *memStore) ListAudit(ctx context.Context, scheduleID int64) ([]AuditEntry, error) {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	var out []AuditEntry
	for _, e := range m.audit {
		if e.ScheduleID == scheduleID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memStore) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}
