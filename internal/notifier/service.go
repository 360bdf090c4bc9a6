package notifier

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"edgesched/internal/eventbus"
	"edgesched/internal/updates"
	logx "edgesched/pkg/logx"
)

const historySize = 100

type Service struct {
	mu      sync.Mutex
	cfg     Config
	limiter *rate.Limiter
	sender  Sender
	log     logx.Logger

	hmu     sync.Mutex
	history []HistoryItem
}

func New(cfg Config, sender Sender, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{sender: sender, log: log}
	s.Apply(cfg)
	return s
}

func (s *Service) Apply(cfg Config) {
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 3
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	cfg.ChatIDs = append([]int64(nil), cfg.ChatIDs...)
	s.mu.Lock()
	s.cfg = cfg
	// Burst = rate per second so short spikes are not delayed.
	s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
	s.mu.Unlock()
}

// Run forwards events until ctx is done or events is closed.
func (s *Service) Run(ctx context.Context, events <-chan eventbus.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			text, ok := Format(ev)
			if !ok {
				continue
			}
			s.broadcast(ctx, text)
		}
	}
}

func (s *Service) broadcast(ctx context.Context, text string) {
	s.mu.Lock()
	cfg, lim := s.cfg, s.limiter
	s.mu.Unlock()

	for _, chatID := range cfg.ChatIDs {
		if err := lim.Wait(ctx); err != nil {
			return
		}
		sctx, cancel := context.WithTimeout(ctx, cfg.SendTimeout)
		err := s.sender.SendText(sctx, chatID, text)
		cancel()

		item := HistoryItem{At: time.Now(), ChatID: chatID, Text: text}
		if err != nil {
			item.Error = err.Error()
			s.log.Warn("notification failed", logx.Int64("chat_id", chatID), logx.Err(err))
		}
		s.appendHistory(item)
	}
}

func (s *Service) Snapshot() []HistoryItem {
	s.hmu.Lock()
	defer s.hmu.Unlock()
	return append([]HistoryItem(nil), s.history...)
}

func (s *Service) appendHistory(it HistoryItem) {
	s.hmu.Lock()
	s.history = append(s.history, it)
	if len(s.history) > historySize {
		s.history = s.history[len(s.history)-historySize:]
	}
	s.hmu.Unlock()
}

// Format renders a schedule event. Events that operators do not need to see
// report false.
func Format(ev eventbus.Event) (string, bool) {
	d, ok := ev.Data.(updates.Event)
	if !ok {
		return "", false
	}
	switch ev.Type {
	case eventbus.ScheduleCreated:
		return fmt.Sprintf("Schedule #%d %s created by %s for %s", d.ID, d.Name, d.Actor, d.ScheduledTime), true
	case eventbus.ScheduleUpdated:
		return fmt.Sprintf("Schedule #%d %s moved to %s by %s", d.ID, d.Name, d.ScheduledTime, d.Actor), true
	case eventbus.ScheduleCanceled:
		return fmt.Sprintf("Schedule #%d %s canceled by %s", d.ID, d.Name, d.Actor), true
	case eventbus.ScheduleFired:
		return fmt.Sprintf("Schedule #%d %s started", d.ID, d.Name), true
	case eventbus.ScheduleFinished:
		return fmt.Sprintf("Schedule #%d %s done", d.ID, d.Name), true
	case eventbus.ScheduleFailed:
		return fmt.Sprintf("Schedule #%d %s failed: %s", d.ID, d.Name, d.Error), true
	default:
		return "", false
	}
}
