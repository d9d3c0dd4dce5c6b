// Package schedule holds the calendar primitives shared by bookings, slots and vacations:
// calendar days as YYYY-MM-DD strings and wall-clock times as minutes since midnight.
//
// Intervals are half-open, [Start, End), and never span midnight.
package schedule

import (
	"errors"
	"fmt"
	"time"
)

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

var (
	ErrInvalidDate   = errors.New("date must be formatted as YYYY-MM-DD")
	ErrInvalidClock  = errors.New("time must be formatted as HH:MM")
	ErrEmptyInterval = errors.New("start time must be before end time")
	ErrInvertedRange = errors.New("start date must not be after end date")
)

// Clock is a wall-clock time expressed in minutes since midnight.
type Clock int

// ParseClock parses "HH:MM".
func ParseClock(s string) (Clock, error) {
	t, err := time.Parse(ClockLayout, s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	return Clock(t.Hour()*60 + t.Minute()), nil
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// MarshalText stores a Clock as "HH:MM".
func (c Clock) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Clock) UnmarshalText(b []byte) error {
	v, err := ParseClock(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// ParseDate parses a YYYY-MM-DD calendar day and returns midnight UTC of that day.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return t, nil
}

// DateOf formats t's calendar day in t's own location.
func DateOf(t time.Time) string {
	return t.Format(DateLayout)
}

// AddDays shifts a YYYY-MM-DD date by n days. The input must already be valid.
func AddDays(date string, n int) string {
	t, err := ParseDate(date)
	if err != nil {
		return date
	}
	return t.AddDate(0, 0, n).Format(DateLayout)
}

// Interval is a same-day, half-open [Start, End) wall-clock range.
type Interval struct {
	Date  string
	Start Clock
	End   Clock
}

// NewInterval validates and builds an Interval from its textual parts.
func NewInterval(date, start, end string) (Interval, error) {
	if _, err := ParseDate(date); err != nil {
		return Interval{}, err
	}
	s, err := ParseClock(start)
	if err != nil {
		return Interval{}, err
	}
	e, err := ParseClock(end)
	if err != nil {
		return Interval{}, err
	}
	if s >= e {
		return Interval{}, fmt.Errorf("%w: %s-%s", ErrEmptyInterval, start, end)
	}
	return Interval{Date: date, Start: s, End: e}, nil
}

// Overlaps reports whether i and o share any minute. Adjacent intervals do not overlap.
func (i Interval) Overlaps(o Interval) bool {
	return i.Date == o.Date && i.Start < o.End && o.Start < i.End
}

// Contains reports whether o lies entirely within i.
func (i Interval) Contains(o Interval) bool {
	return i.Date == o.Date && i.Start <= o.Start && o.End <= i.End
}

func (i Interval) String() string {
	return fmt.Sprintf("%s %s-%s", i.Date, i.Start, i.End)
}

// DateRange is an inclusive range of calendar days. Empty bounds are open.
type DateRange struct {
	From string
	To   string
}

// NewDateRange validates both bounds (when set) and their order.
func NewDateRange(from, to string) (DateRange, error) {
	if from != "" {
		if _, err := ParseDate(from); err != nil {
			return DateRange{}, err
		}
	}
	if to != "" {
		if _, err := ParseDate(to); err != nil {
			return DateRange{}, err
		}
	}
	if from != "" && to != "" && from > to {
		return DateRange{}, fmt.Errorf("%w: %s > %s", ErrInvertedRange, from, to)
	}
	return DateRange{From: from, To: to}, nil
}

// Contains reports whether date falls inside the range.
// YYYY-MM-DD strings order lexically the same way they order chronologically.
func (r DateRange) Contains(date string) bool {
	if r.From != "" && date < r.From {
		return false
	}
	if r.To != "" && date > r.To {
		return false
	}
	return true
}

// Intersects reports whether the two ranges share at least one day.
func (r DateRange) Intersects(o DateRange) bool {
	if r.To != "" && o.From != "" && r.To < o.From {
		return false
	}
	if o.To != "" && r.From != "" && o.To < r.From {
		return false
	}
	return true
}

// Window returns the range [today, today+days] for now in loc.
func Window(now time.Time, loc *time.Location, days int) DateRange {
	today := now.In(loc)
	return DateRange{
		From: DateOf(today),
		To:   DateOf(today.AddDate(0, 0, days)),
	}
}
