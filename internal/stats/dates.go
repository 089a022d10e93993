package stats

import (
	"strings"
	"time"
)

// Symbolic date parameters accepted by the API.
const (
	DateToday    = "today"
	DateTomorrow = "tomorrow"
)

// ResolveDate turns a date parameter into midnight of a calendar day in loc.
// Empty, unknown and malformed values resolve to today. Range limits are
// applied by Service.Lookup.
func ResolveDate(param string, now time.Time, loc *time.Location) time.Time {
	now = now.In(loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)

	switch p := strings.ToLower(strings.TrimSpace(param)); p {
	case "", DateToday:
		return today
	case DateTomorrow:
		return today.AddDate(0, 0, 1)
	default:
		d, err := time.ParseInLocation(time.DateOnly, p, loc)
		if err != nil {
			return today
		}
		return d
	}
}

// ValidDateParam reports whether param is a symbolic date or YYYY-MM-DD.
func ValidDateParam(param string) bool {
	switch p := strings.ToLower(strings.TrimSpace(param)); p {
	case DateToday, DateTomorrow:
		return true
	default:
		_, err := time.Parse(time.DateOnly, p)
		return err == nil
	}
}

// KeyFor returns the cache key for a resolved date.
func KeyFor(date time.Time) string {
	return date.Format(time.DateOnly)
}

// ParseKey turns a cache key back into the date it names.
func ParseKey(key string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(time.DateOnly, key, loc)
}

// Window bounds the calendar days served, counted from today.
type Window struct {
	Past   int
	Future int
}

// Contains reports whether date falls within the window around today.
func (w Window) Contains(date, today time.Time) bool {
	return !date.Before(today.AddDate(0, 0, -w.Past)) && !date.After(today.AddDate(0, 0, w.Future))
}

// Oldest returns the first day inside the window.
func (w Window) Oldest(today time.Time) time.Time {
	return today.AddDate(0, 0, -w.Past)
}
