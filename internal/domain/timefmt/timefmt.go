// Package timefmt renders durations and data age for humans.
package timefmt

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/okian/gitlytix/internal/domain/model"
)

const (
	secondsPerMinute = 60
	secondsPerHour   = 60 * secondsPerMinute
	secondsPerDay    = 24 * secondsPerHour
)

type unit struct {
	name    string
	seconds float64
}

var units = []unit{
	{"day", secondsPerDay},
	{"hour", secondsPerHour},
	{"minute", secondsPerMinute},
	{"second", 1},
}

// FormatDelta renders d with its two largest non-zero units, e.g.
// "2 days 3 hours" or "1 day 5 minutes". Anything under a second is
// "0 seconds".
func FormatDelta(d time.Duration) string {
	return FormatSeconds(d.Seconds())
}

// FormatSeconds is FormatDelta for a plain number of seconds.
func FormatSeconds(seconds float64) string {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return "0 seconds"
	}
	parts := make([]string, 0, 2)
	for _, u := range units {
		if len(parts) == 2 {
			break
		}
		if seconds >= u.seconds {
			n := math.Floor(seconds / u.seconds)
			seconds -= n * u.seconds
			parts = append(parts, plural(int64(n), u.name))
		}
	}
	if len(parts) == 0 {
		return "0 seconds"
	}
	return strings.Join(parts, " ")
}

// FormatDifference renders seconds as "2 days, 3 hours, 45 minutes".
// Seconds are only shown when the total is under a minute. A non-positive
// input is "Unknown" and anything under one second is "Just now".
func FormatDifference(seconds float64) string {
	if !(seconds > 0) || math.IsInf(seconds, 0) {
		return "Unknown"
	}
	total := int64(seconds)
	days := total / secondsPerDay
	total %= secondsPerDay
	hours := total / secondsPerHour
	total %= secondsPerHour
	minutes := total / secondsPerMinute
	secs := total % secondsPerMinute

	var parts []string
	if days > 0 {
		parts = append(parts, plural(days, "day"))
	}
	if hours > 0 {
		parts = append(parts, plural(hours, "hour"))
	}
	if minutes > 0 {
		parts = append(parts, plural(minutes, "minute"))
	}
	if secs > 0 && len(parts) == 0 {
		parts = append(parts, plural(secs, "second"))
	}
	if len(parts) == 0 {
		return "Just now"
	}
	return strings.Join(parts, ", ")
}

// Freshness classifies the age of the newest event: up to fresh is Fresh,
// up to stale is Stale, anything older is Outdated.
func Freshness(age, fresh, stale time.Duration) model.Freshness {
	switch {
	case age <= fresh:
		return model.Fresh
	case age <= stale:
		return model.Stale
	default:
		return model.Outdated
	}
}

func plural(n int64, name string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, name)
	}
	return fmt.Sprintf("%d %ss", n, name)
}

// MonthWindow returns YYYY-MM keys for the last months calendar months ending
// with now's month, oldest first, and the UTC start of the oldest month.
func MonthWindow(now time.Time, months int) ([]string, time.Time) {
	if months < 1 {
		months = 1
	}
	now = now.UTC()
	first := time.Date(now.Year(), now.Month()-time.Month(months-1), 1, 0, 0, 0, 0, time.UTC)
	keys := make([]string, 0, months)
	for m := first; !m.After(now); m = m.AddDate(0, 1, 0) {
		keys = append(keys, m.Format(MonthLayout))
	}
	return keys, first
}

// MonthLayout formats a month key.
const MonthLayout = "2006-01"
