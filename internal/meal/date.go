package meal

import (
	"fmt"
	"time"
)

// DateLayout is the calendar date format stored on submissions.
const DateLayout = "2006-01-02"

// LocalDate is the canonical "today": the instant converted to the team's
// time zone, then truncated to a calendar date. Every date comparison uses it.
func LocalDate(now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return now.In(loc).Format(DateLayout)
}

// ParseDate validates a YYYY-MM-DD string.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("date must be YYYY-MM-DD: %q", s)
	}
	return d, nil
}

// Range is an inclusive span of calendar dates.
type Range struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// ParseRange validates from/to. An empty to means a single day. maxDays <= 0
// disables the span limit.
func ParseRange(from, to string, maxDays int) (Range, error) {
	if to == "" {
		to = from
	}
	f, err := ParseDate(from)
	if err != nil {
		return Range{}, err
	}
	t, err := ParseDate(to)
	if err != nil {
		return Range{}, err
	}
	if t.Before(f) {
		return Range{}, fmt.Errorf("range end %s is before start %s", to, from)
	}
	if maxDays > 0 && Days(f, t) > maxDays {
		return Range{}, fmt.Errorf("range spans %d days, limit is %d", Days(f, t), maxDays)
	}
	return Range{From: from, To: to}, nil
}

// SingleDay reports whether the range covers exactly one date.
func (r Range) SingleDay() bool { return r.From == r.To }

// Contains reports whether date falls inside the range.
func (r Range) Contains(date string) bool {
	return date >= r.From && date <= r.To
}

// Days counts the calendar days in [from, to].
func Days(from, to time.Time) int {
	return int(to.Sub(from).Hours()/24) + 1
}
