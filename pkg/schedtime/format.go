package schedtime

import (
	"errors"
	"fmt"
	"regexp"
	"time"
)

const (
	// Pattern is the user-facing spelling of the canonical layout.
	Pattern = "YYYY-MM-DD HH:mm"
	// Layout is Pattern in Go reference-time form.
	Layout = "2006-01-02 15:04"
)

var (
	ErrMissing = errors.New("scheduled time missing")
	ErrParse   = errors.New("scheduled time malformed")
	ErrRange   = errors.New("scheduled time out of range")
)

// time.Parse accepts a single-digit hour for "15", so the exact shape is
// checked first.
var reCanonical = regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}$`)

// Parse interprets s as a canonical string in time.Local.
func Parse(s string) (time.Time, error) {
	return ParseInLocation(s, time.Local)
}

// ParseInLocation interprets s as a canonical string in loc.
//
// A string that does not match the pattern and one that matches it but
// names an impossible date or time (2024-04-31, 25:00) both fail with
// ErrParse.
func ParseInLocation(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	if !reCanonical.MatchString(s) {
		return time.Time{}, fmt.Errorf("%w: %q does not match %s", ErrParse, s, Pattern)
	}
	t, err := time.ParseInLocation(Layout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return t, nil
}

// Format renders t in its own location. Seconds and below are dropped.
func Format(t time.Time) string {
	return t.Format(Layout)
}
