package ledger

import (
	"fmt"
	"iter"
	"strings"
	"time"
)

const (
	// DateLayout is the layout of a date key.
	DateLayout = "2006-01-02"
	// LongDateLayout renders a date key for humans, e.g. "Thursday, November 27, 2025".
	LongDateLayout = "Monday, January 2, 2006"
)

// Calendar describes a weekly signup season.
type Calendar struct {
	// Weekday is the day of the week slots fall on.
	Weekday time.Weekday
	// SeasonEnd returns the last (inclusive) day of the season containing ref.
	// Nil means December 31 of ref's year.
	SeasonEnd func(ref time.Time) time.Time
}

// DefaultCalendar is every Sunday through the end of the year.
var DefaultCalendar = Calendar{Weekday: time.Sunday, SeasonEnd: YearEnd}

// YearEnd returns December 31 of ref's year.
func YearEnd(ref time.Time) time.Time {
	return dateAtNoon(ref.Year(), time.December, 31)
}

// SlotDates returns the default season's slot dates starting from ref.
func SlotDates(ref time.Time) []string {
	return DefaultCalendar.Dates(ref)
}

// Slots yields the slot date keys on or after ref's calendar date up to the
// season end. The sequence holds no state and may be ranged over repeatedly.
func (c Calendar) Slots(ref time.Time) iter.Seq[string] {
	return func(yield func(string) bool) {
		start, end := c.bounds(ref)
		for d := start; !d.After(end); d = d.AddDate(0, 0, 7) {
			if !yield(d.Format(DateLayout)) {
				return
			}
		}
	}
}

// Dates collects Slots into a slice. The result is never nil.
func (c Calendar) Dates(ref time.Time) []string {
	dates := []string{}
	for d := range c.Slots(ref) {
		dates = append(dates, d)
	}
	return dates
}

// Contains reports whether key is one of the slot dates for ref.
func (c Calendar) Contains(ref time.Time, key string) bool {
	d, err := ParseDateKey(key)
	if err != nil {
		return false
	}
	start, end := c.bounds(ref)
	if d.Before(start) || d.After(end) {
		return false
	}
	return d.Weekday() == c.Weekday
}

// bounds returns the first slot and the season end, both at noon UTC.
func (c Calendar) bounds(ref time.Time) (time.Time, time.Time) {
	// Use noon to avoid timezone issues when stepping by days
	start := dateAtNoon(ref.Year(), ref.Month(), ref.Day())
	offset := (int(c.Weekday) - int(start.Weekday()) + 7) % 7
	start = start.AddDate(0, 0, offset)

	seasonEnd := c.SeasonEnd
	if seasonEnd == nil {
		seasonEnd = YearEnd
	}
	e := seasonEnd(ref)
	return start, dateAtNoon(e.Year(), e.Month(), e.Day())
}

// ParseDateKey parses a YYYY-MM-DD key into noon UTC of that day.
func ParseDateKey(key string) (time.Time, error) {
	d, err := time.Parse(DateLayout, key)
	if err != nil {
		return time.Time{}, err
	}
	return d.Add(12 * time.Hour), nil
}

// LongDate renders key as "Thursday, November 27, 2025". Keys that are not
// valid dates are returned unchanged.
func LongDate(key string) string {
	d, err := ParseDateKey(key)
	if err != nil {
		return key
	}
	return d.Format(LongDateLayout)
}

// ParseWeekday parses an English weekday name, case-insensitively.
func ParseWeekday(s string) (time.Weekday, error) {
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		if strings.EqualFold(wd.String(), strings.TrimSpace(s)) {
			return wd, nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", s)
}

func dateAtNoon(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 12, 0, 0, 0, time.UTC)
}
