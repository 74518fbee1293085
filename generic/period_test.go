package generic_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/freight-engine/generic"
)

func utc(year int, month time.Month, day, hour, minute int) time.Time {
	return time.Date(year, month, day, hour, minute, 0, 0, time.UTC)
}

// =============================================================================
// PERIOD BASICS
// =============================================================================

func TestPeriod_ContainsIsHalfOpen(t *testing.T) {
	p := generic.Period{Start: utc(2025, time.March, 3, 0, 0), End: utc(2025, time.March, 10, 0, 0)}

	assert.True(t, p.Contains(p.Start), "start is inside")
	assert.True(t, p.Contains(p.End.Add(-time.Nanosecond)))
	assert.False(t, p.Contains(p.End), "end belongs to the next period")
	assert.False(t, p.Contains(p.Start.Add(-time.Nanosecond)))
}

func TestPeriod_ValidateRejectsEmptyOrInverted(t *testing.T) {
	start := utc(2025, time.March, 3, 0, 0)

	assert.NoError(t, generic.Period{Start: start, End: start.Add(time.Hour)}.Validate())

	err := generic.Period{Start: start, End: start}.Validate()
	require.Error(t, err)
	assert.True(t, generic.IsClientError(err))

	assert.Error(t, generic.Period{Start: start, End: start.Add(-time.Hour)}.Validate())
}

// =============================================================================
// WEEKLY
// =============================================================================

func TestPeriodConfig_WeeklyMondayAnchor(t *testing.T) {
	// GIVEN: A weekly plan starting Mondays at midnight
	pc := generic.PeriodConfig{Frequency: generic.FrequencyWeekly, AnchorDay: int(time.Monday)}

	// WHEN: Asking for the period of Wednesday Mar 5 2025
	p := pc.PeriodFor(utc(2025, time.March, 5, 14, 0))

	// THEN: Mon Mar 3 - Mon Mar 10
	assert.Equal(t, utc(2025, time.March, 3, 0, 0), p.Start)
	assert.Equal(t, utc(2025, time.March, 10, 0, 0), p.End)
}

func TestPeriodConfig_WeeklyOnBoundaryStartsNewPeriod(t *testing.T) {
	pc := generic.PeriodConfig{Frequency: generic.FrequencyWeekly, AnchorDay: int(time.Monday)}

	p := pc.PeriodFor(utc(2025, time.March, 10, 0, 0))

	assert.Equal(t, utc(2025, time.March, 10, 0, 0), p.Start)
}

func TestPeriodConfig_WeeklyCutoffTime(t *testing.T) {
	// GIVEN: Weekly periods closing Friday at 17:00
	pc := generic.PeriodConfig{
		Frequency:    generic.FrequencyWeekly,
		AnchorDay:    int(time.Friday),
		CutoffHour:   17,
		CutoffMinute: 0,
	}

	// WHEN: An event happens Friday at 16:59 and another at 17:00
	before := pc.PeriodFor(utc(2025, time.March, 7, 16, 59))
	after := pc.PeriodFor(utc(2025, time.March, 7, 17, 0))

	// THEN: They fall in consecutive periods
	assert.Equal(t, utc(2025, time.February, 28, 17, 0), before.Start)
	assert.Equal(t, utc(2025, time.March, 7, 17, 0), before.End)
	assert.Equal(t, before.End, after.Start)
}

func TestPeriodConfig_LastClosedAndNext(t *testing.T) {
	pc := generic.PeriodConfig{Frequency: generic.FrequencyWeekly, AnchorDay: int(time.Monday)}
	now := utc(2025, time.March, 5, 9, 0)

	last := pc.LastClosed(now)
	assert.Equal(t, utc(2025, time.February, 24, 0, 0), last.Start)
	assert.Equal(t, utc(2025, time.March, 3, 0, 0), last.End)

	assert.Equal(t, pc.PeriodFor(now), pc.Next(last))
	assert.Equal(t, last, pc.Previous(pc.PeriodFor(now)))
}

// =============================================================================
// BIWEEKLY
// =============================================================================

func TestPeriodConfig_BiweeklyAnchorDateFixesParity(t *testing.T) {
	// GIVEN: Biweekly periods with a known start of Mon Jan 6 2025
	anchor := utc(2025, time.January, 6, 0, 0)
	pc := generic.PeriodConfig{Frequency: generic.FrequencyBiweekly, AnchorDate: &anchor}

	// WHEN: Looking up a date in the second week of a period
	p := pc.PeriodFor(utc(2025, time.January, 15, 12, 0))

	// THEN: The period started on the anchor week, not the previous Monday
	assert.Equal(t, anchor, p.Start)
	assert.Equal(t, utc(2025, time.January, 20, 0, 0), p.End)

	next := pc.Next(p)
	assert.Equal(t, utc(2025, time.February, 3, 0, 0), next.End)
}

func TestPeriodConfig_BiweeklyPeriodsTile(t *testing.T) {
	pc := generic.PeriodConfig{Frequency: generic.FrequencyBiweekly, AnchorDay: int(time.Sunday)}

	p := pc.PeriodFor(utc(2025, time.June, 1, 0, 0))
	for i := 0; i < 10; i++ {
		next := pc.Next(p)
		assert.Equal(t, p.End, next.Start)
		assert.Equal(t, 14*24*time.Hour, next.End.Sub(next.Start))
		p = next
	}
}

// =============================================================================
// SEMI-MONTHLY & MONTHLY
// =============================================================================

func TestPeriodConfig_SemiMonthly(t *testing.T) {
	pc := generic.PeriodConfig{Frequency: generic.FrequencySemiMonthly}

	first := pc.PeriodFor(utc(2025, time.February, 10, 0, 0))
	assert.Equal(t, utc(2025, time.February, 1, 0, 0), first.Start)
	assert.Equal(t, utc(2025, time.February, 16, 0, 0), first.End)

	second := pc.PeriodFor(utc(2025, time.February, 28, 23, 0))
	assert.Equal(t, utc(2025, time.February, 16, 0, 0), second.Start)
	assert.Equal(t, utc(2025, time.March, 1, 0, 0), second.End)
}

func TestPeriodConfig_SemiMonthlyBeforeCutoffOnFirst(t *testing.T) {
	pc := generic.PeriodConfig{Frequency: generic.FrequencySemiMonthly, CutoffHour: 17}

	p := pc.PeriodFor(utc(2025, time.March, 1, 9, 0))

	assert.Equal(t, utc(2025, time.February, 16, 17, 0), p.Start)
	assert.Equal(t, utc(2025, time.March, 1, 17, 0), p.End)
}

func TestPeriodConfig_MonthlyAnchorDay(t *testing.T) {
	pc := generic.PeriodConfig{Frequency: generic.FrequencyMonthly, AnchorDay: 25}

	p := pc.PeriodFor(utc(2025, time.January, 3, 0, 0))
	assert.Equal(t, utc(2024, time.December, 25, 0, 0), p.Start)
	assert.Equal(t, utc(2025, time.January, 25, 0, 0), p.End)

	// Anchors beyond 28 are clamped so February always has a boundary
	clamped := generic.PeriodConfig{Frequency: generic.FrequencyMonthly, AnchorDay: 31}
	assert.Equal(t, 28, clamped.PeriodFor(utc(2025, time.March, 29, 0, 0)).Start.Day())
}

func TestPayDate_AddsLag(t *testing.T) {
	p := generic.Period{Start: utc(2025, time.March, 3, 0, 0), End: utc(2025, time.March, 10, 0, 0)}

	assert.Equal(t, utc(2025, time.March, 15, 0, 0), generic.PayDate(p, 5))
}

func TestParseCutoff(t *testing.T) {
	h, m, err := generic.ParseCutoff("17:30")
	require.NoError(t, err)
	assert.Equal(t, 17, h)
	assert.Equal(t, 30, m)

	h, m, err = generic.ParseCutoff("")
	require.NoError(t, err)
	assert.Zero(t, h)
	assert.Zero(t, m)

	_, _, err = generic.ParseCutoff("5pm")
	assert.ErrorIs(t, err, generic.ErrInvalidInput)
}
