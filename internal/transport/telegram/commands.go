// Package telegram is the operator command surface.
//
// Commands holds the parsing and replies and never touches the network;
// Adapter routes Telegram messages into it.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"edgesched/internal/updates"
	"edgesched/pkg/schedtime"
)

// Updates is the part of *updates.Service the commands use.
type Updates interface {
	Value() *schedtime.Value
	Create(ctx context.Context, actor string, req updates.Request) (updates.Schedule, error)
	Reschedule(ctx context.Context, actor string, id int64, scheduledTime string) (updates.Schedule, error)
	Cancel(ctx context.Context, actor string, id int64) (updates.Schedule, error)
	List(ctx context.Context) ([]updates.Schedule, error)
}

const helpText = `Commands:
/now - default scheduled time
/check <YYYY-MM-DD> <HH:mm> - validate a scheduled time
/schedule <name> <update|rollback> <version> <group,ids> <YYYY-MM-DD> <HH:mm>
/reschedule <id> <YYYY-MM-DD> <HH:mm>
/schedules - list schedules
/cancel <id>`

type Commands struct {
	svc Updates
}

func NewCommands(svc Updates) *Commands { return &Commands{svc: svc} }

// Names lists the commands for the bot menu.
func (c *Commands) Names() map[string]string {
	return map[string]string{
		"now":        "Default scheduled time",
		"check":      "Validate a scheduled time",
		"schedule":   "Create an update schedule",
		"reschedule": "Move a pending schedule",
		"schedules":  "List schedules",
		"cancel":     "Cancel a pending schedule",
		"help":       "Show commands",
	}
}

// Handle runs one command line and returns the reply text.
func (c *Commands) Handle(ctx context.Context, actor, text string) string {
	cmd, args := splitCommand(text)
	switch cmd {
	case "now":
		v := c.svc.Value()
		return fmt.Sprintf("Default scheduled time: %s (%s)", v.Default(), v.Location())
	case "check":
		return c.check(args)
	case "schedule":
		return c.schedule(ctx, actor, args)
	case "reschedule":
		return c.reschedule(ctx, actor, args)
	case "schedules":
		return c.list(ctx)
	case "cancel":
		return c.cancel(ctx, actor, args)
	case "help", "start":
		return helpText
	default:
		return "Unknown command. Send /help."
	}
}

func (c *Commands) check(args []string) string {
	candidate := strings.Join(args, " ")
	if r := c.svc.Value().Validate(candidate); !r.Valid() {
		return r.Reason
	}
	return fmt.Sprintf("%s is a valid scheduled time", candidate)
}

func (c *Commands) schedule(ctx context.Context, actor string, args []string) string {
	if len(args) != 6 {
		return "Usage: /schedule <name> <update|rollback> <version> <group,ids> <YYYY-MM-DD> <HH:mm>"
	}
	groups, err := parseIDs(args[3])
	if err != nil {
		return "Environment group ids must be a comma-separated list of numbers"
	}
	version := args[2]
	if version == "-" {
		version = ""
	}
	sc, err := c.svc.Create(ctx, actor, updates.Request{
		Name:          args[0],
		Type:          strings.ToLower(args[1]),
		Version:       version,
		GroupIDs:      groups,
		ScheduledTime: args[4] + " " + args[5],
	})
	if err != nil {
		return errorReply(err, 0)
	}
	return "Created " + describe(sc)
}

func (c *Commands) reschedule(ctx context.Context, actor string, args []string) string {
	if len(args) != 3 {
		return "Usage: /reschedule <id> <YYYY-MM-DD> <HH:mm>"
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(args[0], "#"), 10, 64)
	if err != nil {
		return "Schedule id must be a number"
	}
	sc, err := c.svc.Reschedule(ctx, actor, id, args[1]+" "+args[2])
	if err != nil {
		return errorReply(err, id)
	}
	return "Rescheduled " + describe(sc)
}

func (c *Commands) cancel(ctx context.Context, actor string, args []string) string {
	if len(args) != 1 {
		return "Usage: /cancel <id>"
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(args[0], "#"), 10, 64)
	if err != nil {
		return "Schedule id must be a number"
	}
	sc, err := c.svc.Cancel(ctx, actor, id)
	if err != nil {
		return errorReply(err, id)
	}
	return "Canceled " + describe(sc)
}

func (c *Commands) list(ctx context.Context) string {
	all, err := c.svc.List(ctx)
	if err != nil {
		return "Could not load schedules: " + err.Error()
	}
	if len(all) == 0 {
		return "No schedules."
	}
	var b strings.Builder
	for i, sc := range all {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(describe(sc))
	}
	return b.String()
}

func errorReply(err error, id int64) string {
	var fe *updates.FieldError
	switch {
	case errors.As(err, &fe):
		return fe.Reason
	case errors.Is(err, updates.ErrNotFound):
		return fmt.Sprintf("Schedule #%d not found", id)
	case errors.Is(err, updates.ErrNotPending):
		return fmt.Sprintf("Schedule #%d is no longer pending", id)
	default:
		return "Failed: " + err.Error()
	}
}

func describe(sc updates.Schedule) string {
	ids := make([]string, len(sc.GroupIDs))
	for i, id := range sc.GroupIDs {
		ids[i] = strconv.FormatInt(id, 10)
	}
	s := fmt.Sprintf("#%d %s %s", sc.ID, sc.Name, sc.Type)
	if sc.Version != "" {
		s += " " + sc.Version
	}
	s += fmt.Sprintf(" groups=%s at %s [%s]", strings.Join(ids, ","), sc.ScheduledTime, sc.Status)
	if sc.Error != "" {
		s += ": " + sc.Error
	}
	return s
}

// splitCommand turns "/cmd@bot a b" into ("cmd", [a b]).
func splitCommand(text string) (string, []string) {
	f := strings.Fields(text)
	if len(f) == 0 || !strings.HasPrefix(f[0], "/") {
		return "", nil
	}
	cmd := strings.TrimPrefix(f[0], "/")
	if i := strings.IndexByte(cmd, '@'); i >= 0 {
		cmd = cmd[:i]
	}
	return strings.ToLower(cmd), f[1:]
}

func parseIDs(s string) ([]int64, error) {
	var out []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}
