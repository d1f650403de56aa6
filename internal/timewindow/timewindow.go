// Package timewindow resolves named reporting windows to the lower-bound
// instant used when fetching payouts.
package timewindow

import (
	"fmt"
	"time"
)

// Recognised window names.
const (
	Week    = "week"
	Month   = "month"
	Year    = "year"
	CalYear = "calyear"
	FinYear = "finyear"
	All     = "all"
)

var epoch = time.Date(1970, time.January, 1, 0, 0, 0, 0, time.UTC)

// Resolve returns the lower-bound instant for a named window relative to
// ref. It is deterministic: the same ref always yields the same bound.
func Resolve(window string, ref time.Time) (time.Time, error) {
	switch window {
	case Week:
		return ref.AddDate(0, 0, -7), nil
	case Month:
		return ref.AddDate(0, 0, -31), nil
	case Year:
		return ref.AddDate(0, 0, -52*7), nil
	case CalYear:
		return time.Date(ref.Year(), time.January, 1, 0, 0, 0, 0, time.UTC), nil
	case FinYear:
		// The financial year starts April 1st; January through March belong
		// to the previous one.
		year := ref.Year()
		if ref.Month() <= time.March {
			year--
		}
		return time.Date(year, time.April, 1, 0, 0, 0, 0, time.UTC), nil
	case All:
		return epoch, nil
	default:
		return time.Time{}, fmt.Errorf("unknown window %q", window)
	}
}

// FilterTimestamp serialises a lower bound for the upstream created_at[gte]
// filter: the instant's day at midnight UTC, millisecond precision.
func FilterTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02") + "T00:00:00.000Z"
}

var durations = map[string]string{
	Week:    "the past week",
	Month:   "the past 31 days",
	Year:    "the past year",
	CalYear: "this calendar year",
	FinYear: "this financial year",
	All:     "all time",
}

// Duration returns the human-readable span of a window, for notification
// text. Unknown windows come back verbatim.
func Duration(window string) string {
	if d, ok := durations[window]; ok {
		return d
	}
	return window
}
