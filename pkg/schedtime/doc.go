// Package schedtime owns the "scheduled time" value used to configure a
// deferred edge update.
//
// The value travels as a canonical string in the fixed pattern
// "YYYY-MM-DD HH:mm" (minute precision, no seconds, no offset). This package:
//   - parses a canonical string into a time.Time (strict: lexical shape and
//     calendar validity are both checked)
//   - formats a time.Time back into the canonical string
//   - produces a default value ("now")
//   - validates a candidate string: presence, then format, then range
//     (strictly later than now-24h)
//
// Times are naive: no offset is embedded in the string and no conversion is
// performed. The location used to interpret a string is the Value's location
// (time.Local unless WithLocation is given); consumers that do not say
// otherwise assume UTC+0.
//
// Wall-clock reads go through an injectable clock (WithClock) so the floor
// boundary can be tested deterministically.
package schedtime
