package schedtime

import (
	"errors"
	"testing"
	"time"
)

var fixedNow = time.Date(2024, time.June, 15, 12, 0, 30, 0, time.UTC)

func fixedValue() *Value {
	return New(WithClock(func() time.Time { return fixedNow }), WithLocation(time.UTC))
}

func TestParseFormatRoundTrip(t *testing.T) {
	t.Parallel()
	plus7 := time.FixedZone("UTC+7", 7*60*60)
	tests := []struct {
		name string
		in   time.Time
	}{
		{name: "midday", in: time.Date(2024, time.June, 15, 12, 34, 0, 0, time.UTC)},
		{name: "sub-minute dropped", in: time.Date(2024, time.June, 15, 12, 34, 59, 999_000_000, time.UTC)},
		{name: "leap day", in: time.Date(2024, time.February, 29, 23, 59, 1, 0, time.UTC)},
		{name: "year end", in: time.Date(2023, time.December, 31, 23, 59, 0, 0, time.UTC)},
		{name: "midnight", in: time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)},
		{name: "fixed offset zone", in: time.Date(2024, time.March, 10, 2, 30, 45, 0, plus7)},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			s := Format(tt.in)
			got, err := ParseInLocation(s, tt.in.Location())
			if err != nil {
				t.Fatalf("ParseInLocation(%q) error: %v", s, err)
			}
			want := tt.in.Truncate(time.Minute)
			if !got.Equal(want) {
				t.Fatalf("round trip = %v, want %v", got, want)
			}
			if got.Second() != 0 || got.Nanosecond() != 0 {
				t.Fatalf("parsed time carries sub-minute precision: %v", got)
			}
		})
	}
}

func TestFormatZeroPads(t *testing.T) {
	t.Parallel()
	got := Format(time.Date(2024, time.January, 2, 3, 4, 5, 0, time.UTC))
	if got != "2024-01-02 03:04" {
		t.Fatalf("Format = %q, want %q", got, "2024-01-02 03:04")
	}
}

func TestValueFormatUsesItsLocation(t *testing.T) {
	t.Parallel()
	v := New(WithLocation(time.FixedZone("UTC+2", 2*60*60)))
	got := v.Format(time.Date(2024, time.June, 15, 12, 0, 0, 0, time.UTC))
	if got != "2024-06-15 14:00" {
		t.Fatalf("Format = %q, want %q", got, "2024-06-15 14:00")
	}
}

func TestParseRejects(t *testing.T) {
	t.Parallel()
	inputs := []string{
		"not-a-date",
		"2024-13-01 10:00",
		"2024-00-10 10:00",
		"2024-04-31 10:00",
		"2023-02-29 10:00",
		"2024-01-01 24:00",
		"2024-01-01 10:60",
		"2024-01-01 9:05",
		"2024-1-01 10:00",
		"2024-01-01T10:00",
		"2024/01/01 10:00",
		"2024-01-01 10:00:00",
		"2024-01-01  10:00",
		" 2024-01-01 10:00",
		"2024-01-01 10:00 ",
		"2024-01-01",
	}
	for _, in := range inputs {
		in := in
		t.Run(in, func(t *testing.T) {
			if _, err := ParseInLocation(in, time.UTC); !errors.Is(err, ErrParse) {
				t.Fatalf("ParseInLocation(%q) error = %v, want ErrParse", in, err)
			}
		})
	}
}

func TestParseAcceptsLeapDay(t *testing.T) {
	t.Parallel()
	got, err := ParseInLocation("2024-02-29 08:15", time.UTC)
	if err != nil {
		t.Fatalf("ParseInLocation error: %v", err)
	}
	want := time.Date(2024, time.February, 29, 8, 15, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	v := fixedValue()
	tests := []struct {
		name   string
		in     string
		kind   Kind
		reason string
	}{
		{name: "empty", in: "", kind: KindMissing, reason: "Scheduled time is required"},
		{name: "garbage", in: "not-a-date", kind: KindParse, reason: "Scheduled time must be in the format YYYY-MM-DD HH:mm"},
		{name: "month 13", in: "2024-13-01 10:00", kind: KindParse, reason: "Scheduled time must be in the format YYYY-MM-DD HH:mm"},
		{name: "far past", in: "2020-01-01 10:00", kind: KindRange, reason: "Scheduled time must be later than 2024-06-14 12:00"},
		{name: "floor minute", in: "2024-06-14 12:00", kind: KindRange, reason: "Scheduled time must be later than 2024-06-14 12:00"},
		{name: "first minute after floor", in: "2024-06-14 12:01", kind: KindValid},
		{name: "slightly past", in: "2024-06-15 09:00", kind: KindValid},
		{name: "now", in: "2024-06-15 12:00", kind: KindValid},
		{name: "future", in: "2030-01-01 00:00", kind: KindValid},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got := v.Validate(tt.in)
			if got.Kind != tt.kind {
				t.Fatalf("Validate(%q).Kind = %v, want %v", tt.in, got.Kind, tt.kind)
			}
			if got.Reason != tt.reason {
				t.Fatalf("Validate(%q).Reason = %q, want %q", tt.in, got.Reason, tt.reason)
			}
			if got.Valid() != (tt.kind == KindValid) {
				t.Fatalf("Validate(%q).Valid() = %v", tt.in, got.Valid())
			}
		})
	}
}

func TestCheckRangeFloorBoundary(t *testing.T) {
	t.Parallel()
	v := fixedValue()
	floor := fixedNow.Add(-24 * time.Hour)
	if !v.Floor().Equal(floor) {
		t.Fatalf("Floor = %v, want %v", v.Floor(), floor)
	}

	if r := v.CheckRange(floor.Add(-time.Millisecond)); r.Kind != KindRange {
		t.Fatalf("floor-1ms: kind = %v, want range", r.Kind)
	}
	if r := v.CheckRange(floor); r.Kind != KindRange {
		t.Fatalf("floor: kind = %v, want range", r.Kind)
	}
	if r := v.CheckRange(floor.Add(time.Millisecond)); !r.Valid() {
		t.Fatalf("floor+1ms: got %+v, want valid", r)
	}
}

func TestValidateFloorMovesWithClock(t *testing.T) {
	t.Parallel()
	now := fixedNow
	v := New(WithClock(func() time.Time { return now }), WithLocation(time.UTC))

	const candidate = "2024-06-14 18:00"
	if r := v.Validate(candidate); !r.Valid() {
		t.Fatalf("initial validate: %+v", r)
	}
	now = now.Add(6 * time.Hour)
	if r := v.Validate(candidate); r.Kind != KindRange {
		t.Fatalf("after clock advance: kind = %v, want range", r.Kind)
	}
}

func TestValidateMissing(t *testing.T) {
	t.Parallel()
	v := fixedValue()
	for _, r := range []Result{v.Validate(""), v.ValidatePtr(nil)} {
		if r.Kind != KindMissing {
			t.Fatalf("kind = %v, want missing", r.Kind)
		}
		if r.Reason != "Scheduled time is required" {
			t.Fatalf("reason = %q", r.Reason)
		}
	}
	s := "2024-06-15 13:00"
	if r := v.ValidatePtr(&s); !r.Valid() {
		t.Fatalf("ValidatePtr(non-nil) = %+v, want valid", r)
	}
}

func TestResultErr(t *testing.T) {
	t.Parallel()
	v := fixedValue()
	if err := v.Validate("2030-01-01 00:00").Err(); err != nil {
		t.Fatalf("valid result Err() = %v", err)
	}

	cases := map[string]error{
		"":                 ErrMissing,
		"bogus":            ErrParse,
		"2020-01-01 00:00": ErrRange,
	}
	for in, want := range cases {
		err := v.Validate(in).Err()
		if !errors.Is(err, want) {
			t.Fatalf("Validate(%q).Err() = %v, want %v", in, err, want)
		}
		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("Validate(%q).Err() is not *ValidationError", in)
		}
		if ve.Error() != ve.Reason {
			t.Fatalf("Error() = %q, want reason %q", ve.Error(), ve.Reason)
		}
	}
}

func TestDefault(t *testing.T) {
	t.Parallel()
	now := fixedNow
	v := New(WithClock(func() time.Time { return now }), WithLocation(time.UTC))

	first := v.Default()
	if first != "2024-06-15 12:00" {
		t.Fatalf("Default = %q, want %q", first, "2024-06-15 12:00")
	}
	if r := v.Validate(first); !r.Valid() {
		t.Fatalf("Default is not valid: %+v", r)
	}

	now = now.Add(400 * time.Millisecond)
	second := v.Default()
	// Canonical strings sort chronologically.
	if second < first {
		t.Fatalf("Default went backwards: %q then %q", first, second)
	}
}

func TestResolvePicked(t *testing.T) {
	t.Parallel()
	v := fixedValue()
	if got := v.ResolvePicked(nil); got != "2024-06-16 12:00" {
		t.Fatalf("ResolvePicked(nil) = %q, want %q", got, "2024-06-16 12:00")
	}
	picked := time.Date(2024, time.July, 1, 9, 30, 12, 0, time.UTC)
	if got := v.ResolvePicked(&picked); got != "2024-07-01 09:30" {
		t.Fatalf("ResolvePicked = %q, want %q", got, "2024-07-01 09:30")
	}
	if !v.MinDate().Equal(v.Floor()) {
		t.Fatalf("MinDate = %v, Floor = %v", v.MinDate(), v.Floor())
	}
}

func TestPackageLevelHelpers(t *testing.T) {
	t.Parallel()
	if r := Validate(""); r.Kind != KindMissing {
		t.Fatalf("Validate(\"\").Kind = %v, want missing", r.Kind)
	}
	if r := Validate(Default()); !r.Valid() {
		t.Fatalf("Validate(Default()) = %+v, want valid", r)
	}
	if _, err := Parse("not-a-date"); !errors.Is(err, ErrParse) {
		t.Fatalf("Parse error = %v, want ErrParse", err)
	}
}

func TestKindString(t *testing.T) {
	t.Parallel()
	want := map[Kind]string{KindValid: "valid", KindMissing: "missing", KindParse: "parse", KindRange: "range", Kind(99): "unknown"}
	for k, s := range want {
		if k.String() != s {
			t.Fatalf("Kind(%d).String() = %q, want %q", k, k.String(), s)
		}
	}
}
