package notifier

import (
	"context"
	"time"
)

type Config struct {
	ChatIDs    []int64
	RatePerSec int
	// SendTimeout bounds one delivery attempt.
	SendTimeout time.Duration
}

// Sender delivers text to a chat. The Telegram adapter implements it.
type Sender interface {
	SendText(ctx context.Context, chatID int64, text string) error
}

type HistoryItem struct {
	At     time.Time
	ChatID int64
	Text   string
	Error  string
}
