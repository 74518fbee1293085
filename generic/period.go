package generic

import (
	"fmt"
	"time"
)

// =============================================================================
// PERIOD - The window a settlement covers
// =============================================================================

// Period is a half-open pay window [Start, End).
//
// Examples:
//   - Weekly, anchored Monday 00:00: Mon Mar 3 - Mon Mar 10
//   - Semi-monthly: 1st - 16th, 16th - 1st of next month
//   - Monthly, anchored on the 25th at 17:00
type Period struct {
	Start time.Time
	End   time.Time
}

// Contains returns true if t is within [Start, End).
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && t.Before(p.End)
}

// IsZero reports whether the period is unset.
func (p Period) IsZero() bool {
	return p.Start.IsZero() && p.End.IsZero()
}

// Validate rejects periods whose end is not after their start.
func (p Period) Validate() error {
	if !p.End.After(p.Start) {
		return NewValidation("period", "end %s must be after start %s",
			p.End.Format(time.RFC3339), p.Start.Format(time.RFC3339))
	}
	return nil
}

// String returns a string representation of the period.
func (p Period) String() string {
	return "[" + p.Start.Format(time.RFC3339) + ", " + p.End.Format(time.RFC3339) + ")"
}

// Frequency defines how often a pay plan closes a period.
type Frequency string

const (
	FrequencyWeekly      Frequency = "WEEKLY"
	FrequencyBiweekly    Frequency = "BIWEEKLY"
	FrequencySemiMonthly Frequency = "SEMI_MONTHLY"
	FrequencyMonthly     Frequency = "MONTHLY"
)

// Valid reports whether f is a known frequency.
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyWeekly, FrequencyBiweekly, FrequencySemiMonthly, FrequencyMonthly:
		return true
	}
	return false
}

// PeriodConfig defines how to calculate periods for a pay plan.
type PeriodConfig struct {
	Frequency Frequency

	// Weekly/biweekly: weekday the period starts on (0 = Sunday).
	// Monthly: day of month the period starts on (1-28).
	AnchorDay int

	// Biweekly: a known period start. Fixes which weeks are "on" weeks and,
	// when set, overrides AnchorDay with its weekday.
	AnchorDate *time.Time

	// Boundaries fall at this clock time on the boundary day.
	CutoffHour   int
	CutoffMinute int

	// Location for boundary computation. Nil means UTC.
	Location *time.Location
}

// biweeklyReference is a Sunday used for biweekly parity when a plan has no anchor date.
var biweeklyReference = time.Date(2024, time.January, 7, 0, 0, 0, 0, time.UTC)

// ParseCutoff parses an "HH:MM" cutoff clock. Empty input is midnight.
func ParseCutoff(s string) (hour, minute int, err error) {
	if s == "" {
		return 0, 0, nil
	}
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: cutoff time %q must be HH:MM", ErrInvalidInput, s)
	}
	return t.Hour(), t.Minute(), nil
}

// =============================================================================
// PERIOD CALCULATOR - Determines which period a date falls into
// =============================================================================

// PeriodFor returns the period that contains t.
func (pc PeriodConfig) PeriodFor(t time.Time) Period {
	t = t.In(pc.location())

	switch pc.Frequency {
	case FrequencyBiweekly:
		return pc.biweeklyPeriod(t)
	case FrequencySemiMonthly:
		return pc.semiMonthlyPeriod(t)
	case FrequencyMonthly:
		return pc.monthlyPeriod(t)
	default:
		start := pc.weekStart(t, pc.AnchorDay)
		return Period{Start: start, End: start.AddDate(0, 0, 7)}
	}
}

// Next returns the period following p.
func (pc PeriodConfig) Next(p Period) Period {
	return pc.PeriodFor(p.End)
}

// Previous returns the period before p.
func (pc PeriodConfig) Previous(p Period) Period {
	return pc.PeriodFor(p.Start.Add(-time.Nanosecond))
}

// LastClosed returns the most recent period that ended at or before now.
func (pc PeriodConfig) LastClosed(now time.Time) Period {
	return pc.Previous(pc.PeriodFor(now))
}

// PayDate returns the date a period is paid given a payment lag in days.
func PayDate(p Period, lagDays int) time.Time {
	return p.End.AddDate(0, 0, lagDays)
}

func (pc PeriodConfig) location() *time.Location {
	if pc.Location == nil {
		return time.UTC
	}
	return pc.Location
}

func (pc PeriodConfig) boundary(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, pc.CutoffHour, pc.CutoffMinute, 0, 0, pc.location())
}

func (pc PeriodConfig) weekStart(t time.Time, anchor int) time.Time {
	anchor = ((anchor % 7) + 7) % 7
	diff := (int(t.Weekday()) - anchor + 7) % 7
	day := t.AddDate(0, 0, -diff)
	start := pc.boundary(day.Year(), day.Month(), day.Day())
	if start.After(t) {
		start = start.AddDate(0, 0, -7)
	}
	return start
}

func (pc PeriodConfig) biweeklyPeriod(t time.Time) Period {
	ref := biweeklyReference
	anchor := pc.AnchorDay
	if pc.AnchorDate != nil {
		ref = *pc.AnchorDate
		anchor = int(ref.Weekday())
	} else {
		ref = ref.AddDate(0, 0, ((anchor%7)+7)%7)
	}

	start := pc.weekStart(t, anchor)
	weeks := floorDiv(civilDay(start)-civilDay(ref), 7)
	if weeks%2 != 0 {
		start = start.AddDate(0, 0, -7)
	}
	return Period{Start: start, End: start.AddDate(0, 0, 14)}
}

func (pc PeriodConfig) semiMonthlyPeriod(t time.Time) Period {
	first := pc.boundary(t.Year(), t.Month(), 1)
	mid := pc.boundary(t.Year(), t.Month(), 16)
	switch {
	case !t.Before(mid):
		return Period{Start: mid, End: pc.boundary(t.Year(), t.Month()+1, 1)}
	case !t.Before(first):
		return Period{Start: first, End: mid}
	default:
		return Period{Start: pc.boundary(t.Year(), t.Month()-1, 16), End: first}
	}
}

func (pc PeriodConfig) monthlyPeriod(t time.Time) Period {
	day := pc.AnchorDay
	if day < 1 {
		day = 1
	}
	if day > 28 {
		day = 28
	}
	start := pc.boundary(t.Year(), t.Month(), day)
	if start.After(t) {
		start = pc.boundary(t.Year(), t.Month()-1, day)
	}
	return Period{Start: start, End: start.AddDate(0, 1, 0)}
}

// civilDay numbers calendar days so that week arithmetic ignores clock time.
func civilDay(t time.Time) int {
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return int(d.Unix() / 86400)
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
