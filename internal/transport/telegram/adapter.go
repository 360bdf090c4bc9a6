package telegram

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	tele "gopkg.in/telebot.v4"

	logx "edgesched/pkg/logx"
)

type Config struct {
	Token       string
	PollTimeout time.Duration
}

// Adapter connects Commands to a Telegram bot over long polling.
type Adapter struct {
	log   logx.Logger
	bot   *tele.Bot
	cmds  *Commands
	guard *Guard

	runMu   sync.Mutex
	running bool
	done    chan struct{}
}

func New(cfg Config, cmds *Commands, guard *Guard, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: timeout},
		OnError: func(err error, c tele.Context) {
			log.Warn("telegram handler error", logx.Err(err))
		},
	})
	if err != nil {
		return nil, err
	}
	return &Adapter{log: log, bot: b, cmds: cmds, guard: guard}, nil
}

// Start registers handlers and begins polling. It returns immediately.
func (a *Adapter) Start(ctx context.Context) error {
	a.runMu.Lock()
	defer a.runMu.Unlock()
	if a.running {
		return nil
	}
	a.running = true
	a.done = make(chan struct{})

	a.bot.Handle(tele.OnText, func(c tele.Context) error {
		text := c.Text()
		if !strings.HasPrefix(text, "/") || c.Sender() == nil {
			return nil
		}
		return c.Send(a.reply(ctx, c.Sender(), text))
	})
	a.setMenu()

	done := a.done
	go func() {
		defer close(done)
		a.log.Info("polling started")
		a.bot.Start() // blocks until Stop
	}()
	return nil
}

func (a *Adapter) reply(ctx context.Context, u *tele.User, text string) string {
	start := time.Now()
	cmd, _ := splitCommand(text)
	log := a.log.With(logx.Int64("from_id", u.ID), logx.String("cmd", cmd))

	switch err := a.guard.Check(u.ID); {
	case errors.Is(err, ErrNotOwner):
		log.Warn("command from non-owner")
		return "Not allowed."
	case errors.Is(err, ErrRateLimited):
		log.Debug("command rate limited")
		return "Too many commands, try again in a minute."
	}

	out := a.cmds.Handle(ctx, actorName(u), text)
	log.Debug("request ok", logx.Duration("dur", time.Since(start)))
	return out
}

func (a *Adapter) setMenu() {
	names := a.cmds.Names()
	cmds := make([]tele.Command, 0, len(names))
	for _, n := range []string{"now", "check", "schedule", "reschedule", "schedules", "cancel", "help"} {
		cmds = append(cmds, tele.Command{Text: n, Description: names[n]})
	}
	if err := a.bot.SetCommands(cmds); err != nil {
		a.log.Warn("menu commands not updated", logx.Err(err))
	}
}

// Stop ends polling. A long poll in flight is not waited for beyond ctx or
// a short grace period.
func (a *Adapter) Stop(ctx context.Context) error {
	a.runMu.Lock()
	if !a.running {
		a.runMu.Unlock()
		return nil
	}
	a.running = false
	done := a.done
	a.runMu.Unlock()

	go a.bot.Stop()

	t := time.NewTimer(2 * time.Second)
	defer t.Stop()
	select {
	case <-done:
		a.log.Info("polling stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		a.log.Warn("telegram stop grace elapsed; continuing shutdown")
		return nil
	}
}

// SendText delivers a plain message to a chat.
func (a *Adapter) SendText(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := a.bot.Send(&tele.Chat{ID: chatID}, text, &tele.SendOptions{DisableWebPagePreview: true})
	return err
}

func actorName(u *tele.User) string {
	if u.Username != "" {
		return "@" + u.Username
	}
	return "tg:" + strconv.FormatInt(u.ID, 10)
}
