package telegram

import (
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

var (
	ErrNotOwner    = errors.New("not an owner")
	ErrRateLimited = errors.New("rate limited")
)

const maxLimiters = 1024

// Guard admits owners only and bounds how often each may run commands.
type Guard struct {
	mu       sync.Mutex
	owners   map[int64]bool
	every    rate.Limit
	burst    int
	limiters map[int64]*rate.Limiter
}

// NewGuard allows perMin commands per user per minute, with a burst of the
// same size. perMin <= 0 means 20.
func NewGuard(owners []int64, perMin int) *Guard {
	g := &Guard{limiters: map[int64]*rate.Limiter{}}
	g.Apply(owners, perMin)
	return g
}

func (g *Guard) Apply(owners []int64, perMin int) {
	if perMin <= 0 {
		perMin = 20
	}
	set := make(map[int64]bool, len(owners))
	for _, id := range owners {
		set[id] = true
	}
	g.mu.Lock()
	g.owners = set
	g.every = rate.Every(time.Minute / time.Duration(perMin))
	g.burst = perMin
	clear(g.limiters)
	g.mu.Unlock()
}

func (g *Guard) Check(userID int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.owners[userID] {
		return ErrNotOwner
	}
	lim := g.limiters[userID]
	if lim == nil {
		if len(g.limiters) >= maxLimiters {
			clear(g.limiters)
		}
		lim = rate.NewLimiter(g.every, g.burst)
		g.limiters[userID] = lim
	}
	if !lim.Allow() {
		return ErrRateLimited
	}
	return nil
}
