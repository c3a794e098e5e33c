/*
dates.go - Calendar date value type

PURPOSE:
  Dates arrive from two directions: calendar pickers (proper dates) and
  pre-formatted text (imports, older stored rows). Date normalizes both
  to a canonical "2006-01-02" text form while retaining unparsable raw
  text instead of dropping it, so stored data is never silently lost.

PARSE FAILURE IS A NAMED POLICY:
  Filtering code decides what to do with a date that never parsed via
  UnparsedDatePolicy (see aggregate.go), not via an implicit swallow.

SEE ALSO:
  - aggregate.go: date-range filtering and UnparsedDatePolicy
*/
package ledger

import (
	"encoding/json"
	"strings"
	"time"
)

const canonicalDateLayout = "2006-01-02"

// Date is a calendar day with a canonical text form. The zero value
// means "missing". A Date built from text that failed to parse keeps
// the raw text (String returns it) but reports Valid() == false.
type Date struct {
	day time.Time
	raw string
}

// DateOf builds a Date from a calendar time, truncated to the day.
func DateOf(t time.Time) Date {
	if t.IsZero() {
		return Date{}
	}
	return Date{day: time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)}
}

// Today returns the current calendar day in UTC.
func Today() Date {
	return DateOf(time.Now().UTC())
}

// ParseDate normalizes date text. Accepted forms: the canonical
// "2006-01-02" and RFC3339 (date part kept). Empty text is a missing
// date; anything else is retained raw with Valid() == false.
func ParseDate(s string) Date {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}
	}
	if t, err := time.Parse(canonicalDateLayout, s); err == nil {
		return DateOf(t)
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return DateOf(t)
	}
	return Date{raw: s}
}

// Valid reports whether the date holds a parsed calendar day.
func (d Date) Valid() bool { return !d.day.IsZero() }

// IsZero reports a fully missing date (no day, no raw text).
func (d Date) IsZero() bool { return d.day.IsZero() && d.raw == "" }

// Time returns the underlying day (zero when not Valid).
func (d Date) Time() time.Time { return d.day }

// String returns the canonical form, the retained raw text for
// unparsable input, or "" when missing.
func (d Date) String() string {
	if d.Valid() {
		return d.day.Format(canonicalDateLayout)
	}
	return d.raw
}

// Comparison helpers. Both operands must be Valid for a meaningful
// answer; callers gate on Valid first.
func (d Date) Before(other Date) bool    { return d.day.Before(other.day) }
func (d Date) After(other Date) bool     { return d.day.After(other.day) }
func (d Date) OnOrAfter(other Date) bool { return !d.day.Before(other.day) }
func (d Date) OnOrBefore(other Date) bool { return !d.day.After(other.day) }

// MarshalJSON emits the canonical text form.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts any text form ParseDate accepts.
func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*d = ParseDate(s)
	return nil
}
