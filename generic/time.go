package generic

import (
	"strings"
	"time"
)

// =============================================================================
// STOP DATE/TIME PARSING
// =============================================================================

// TBD is the schedule placeholder used when an appointment is not yet known.
const TBD = "TBD"

var stopTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// ParseStopDateTime turns a stop's schedule date and clock into a timestamp.
//
// If clock already carries a full date-time (it contains a "T"), it is parsed
// as-is. Otherwise date and clock are joined as "dateTclock". Values without an
// offset are read as UTC.
//
// The bool is false for "TBD", empty or unparseable input. Callers treat that
// as "unknown" and skip the value in conflict checks; it is never an error.
func ParseStopDateTime(date, clock string) (time.Time, bool) {
	date = strings.TrimSpace(date)
	clock = strings.TrimSpace(clock)

	if strings.EqualFold(date, TBD) || strings.EqualFold(clock, TBD) {
		return time.Time{}, false
	}

	var candidate string
	switch {
	case strings.Contains(clock, "T"):
		candidate = clock
	case clock == "":
		if !strings.Contains(date, "T") {
			return time.Time{}, false
		}
		candidate = date
	case date == "":
		return time.Time{}, false
	default:
		candidate = date + "T" + clock
	}

	for _, layout := range stopTimeLayouts {
		if t, err := time.Parse(layout, candidate); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// =============================================================================
// TIME RANGE
// =============================================================================

// TimeRange is a half-open interval [Start, End).
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether two ranges share any instant.
// Ranges that only touch at an endpoint do not overlap.
func Overlaps(a, b TimeRange) bool {
	return a.Start.Before(b.End) && a.End.After(b.Start)
}

// Overlaps reports whether r overlaps other.
func (r TimeRange) Overlaps(other TimeRange) bool {
	return Overlaps(r, other)
}

// Hours returns the length of the range in hours. Inverted ranges yield zero.
func (r TimeRange) Hours() float64 {
	if !r.End.After(r.Start) {
		return 0
	}
	return r.End.Sub(r.Start).Hours()
}

// =============================================================================
// INTERVAL GATE
// =============================================================================

// IntervalElapsed is the shared throttle for scheduled work. It returns true
// when there is no previous run, when interval is not positive, or when at
// least interval has passed since lastRunAt.
func IntervalElapsed(lastRunAt *time.Time, interval time.Duration, now time.Time) bool {
	if lastRunAt == nil || interval <= 0 {
		return true
	}
	return now.Sub(*lastRunAt) >= interval
}
