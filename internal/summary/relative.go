package summary

import (
	"fmt"
	"math"
	"time"

	"github.com/sawpanic/stablewatch/internal/domain"
)

// Labels used when a timestamp cannot be shown.
const (
	LabelNoActivity      = "no recent activity"
	LabelDateUnavailable = "date unavailable"
)

// RelativeLabel describes ts relative to now, e.g. "5 minutes ago" or
// "in 2 hours". Under an hour it uses minutes, under a day hours, otherwise
// days.
func RelativeLabel(ts string, now time.Time) string {
	if ts == "" {
		return LabelNoActivity
	}
	target, ok := domain.ParseTimestamp(ts)
	if !ok {
		return LabelDateUnavailable
	}

	diff := target.Sub(now)
	minutes := int(math.Round(diff.Minutes()))
	hours := int(math.Round(float64(minutes) / 60))
	days := int(math.Round(float64(hours) / 24))

	switch {
	case abs(minutes) < 60:
		return relative(minutes, "minute")
	case abs(hours) < 24:
		return relative(hours, "hour")
	default:
		return relative(days, "day")
	}
}

func relative(n int, unit string) string {
	if n == 0 {
		return "now"
	}
	if abs(n) != 1 {
		unit += "s"
	}
	if n < 0 {
		return fmt.Sprintf("%d %s ago", -n, unit)
	}
	return fmt.Sprintf("in %d %s", n, unit)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
