package schedtime

import "time"

const (
	// FloorMargin is how far in the past a scheduled time may lie and still
	// be accepted. It absorbs clock skew between the client and the agent.
	FloorMargin = 24 * time.Hour

	// ClearedOffset is how far ahead a cleared picker resolves to.
	ClearedOffset = 24 * time.Hour
)

const (
	reasonMissing = "Scheduled time is required"
	reasonParse   = "Scheduled time must be in the format " + Pattern
	reasonRange   = "Scheduled time must be later than "
)

type Option func(*Value)

// WithClock replaces time.Now as the source of "now".
func WithClock(now func() time.Time) Option {
	return func(v *Value) {
		if now != nil {
			v.now = now
		}
	}
}

// WithLocation sets the location canonical strings are read and written in.
func WithLocation(loc *time.Location) Option {
	return func(v *Value) {
		if loc != nil {
			v.loc = loc
		}
	}
}

// Value binds the canonical-string rules to a clock and a location.
// It holds no mutable state and is safe for concurrent use.
type Value struct {
	now func() time.Time
	loc *time.Location
}

func New(opts ...Option) *Value {
	v := &Value{now: time.Now, loc: time.Local}
	for _, o := range opts {
		if o != nil {
			o(v)
		}
	}
	return v
}

func (v *Value) Location() *time.Location {
	if v == nil || v.loc == nil {
		return time.Local
	}
	return v.loc
}

// Now reads the clock once and returns the instant in the Value's location.
func (v *Value) Now() time.Time {
	if v == nil || v.now == nil {
		return time.Now().In(v.Location())
	}
	return v.now().In(v.Location())
}

func (v *Value) Parse(s string) (time.Time, error) {
	return ParseInLocation(s, v.Location())
}

func (v *Value) Format(t time.Time) string {
	return Format(t.In(v.Location()))
}

// Default is the value used to seed an empty field.
func (v *Value) Default() string {
	return v.Format(v.Now())
}

// Floor is the instant a scheduled time must be strictly later than.
// It moves with the clock.
func (v *Value) Floor() time.Time {
	return v.Now().Add(-FloorMargin)
}

// MinDate is the earliest date a picker should offer. It equals Floor.
func (v *Value) MinDate() time.Time {
	return v.Floor()
}

// ResolvePicked turns a picker change into a canonical string. A cleared
// picker (nil) resolves to now+ClearedOffset.
func (v *Value) ResolvePicked(picked *time.Time) string {
	if picked == nil {
		return v.Format(v.Now().Add(ClearedOffset))
	}
	return v.Format(*picked)
}

// Validate checks candidate against the rules in order presence, format,
// range. The first failing rule wins.
func (v *Value) Validate(candidate string) Result {
	if candidate == "" {
		return invalid(KindMissing, reasonMissing)
	}
	t, err := v.Parse(candidate)
	if err != nil {
		return invalid(KindParse, reasonParse)
	}
	return v.CheckRange(t)
}

// ValidatePtr is Validate for an optional value; nil counts as missing.
func (v *Value) ValidatePtr(candidate *string) Result {
	if candidate == nil {
		return invalid(KindMissing, reasonMissing)
	}
	return v.Validate(*candidate)
}

// CheckRange applies only the range rule to an already parsed instant.
// An instant equal to the floor is rejected.
func (v *Value) CheckRange(t time.Time) Result {
	floor := v.Floor()
	if !t.After(floor) {
		return invalid(KindRange, reasonRange+v.Format(floor))
	}
	return Result{}
}

var std = New()

// Default formats time.Now in time.Local.
func Default() string { return std.Default() }

// Validate checks candidate using time.Now and time.Local.
func Validate(candidate string) Result { return std.Validate(candidate) }
