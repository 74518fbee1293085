package generic_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/freight-engine/generic"
)

// =============================================================================
// STOP TIMES
// =============================================================================

func TestParseStopDateTime(t *testing.T) {
	tests := []struct {
		name   string
		date   string
		clock  string
		want   time.Time
		wantOK bool
	}{
		{"date and clock", "2030-01-15", "08:00", utc(2030, time.January, 15, 8, 0), true},
		{"seconds", "2030-01-15", "08:00:30", time.Date(2030, 1, 15, 8, 0, 30, 0, time.UTC), true},
		{"full timestamp in clock", "ignored", "2030-01-15T08:00:00Z", utc(2030, time.January, 15, 8, 0), true},
		{"full timestamp in date", "2030-01-15T10:30", "", utc(2030, time.January, 15, 10, 30), true},
		{"tbd clock", "2030-01-15", "TBD", time.Time{}, false},
		{"tbd date lower case", "tbd", "08:00", time.Time{}, false},
		{"empty clock", "2030-01-15", "", time.Time{}, false},
		{"empty date", "", "08:00", time.Time{}, false},
		{"garbage", "2030-01-15", "8am", time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := generic.ParseStopDateTime(tt.date, tt.clock)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.True(t, tt.want.Equal(got), "got %s", got)
			}
		})
	}
}

func TestParseStopDateTime_KeepsOffset(t *testing.T) {
	got, ok := generic.ParseStopDateTime("", "2030-01-15T08:00:00-05:00")
	require.True(t, ok)
	assert.True(t, utc(2030, time.January, 15, 13, 0).Equal(got))
}

// =============================================================================
// TIME RANGES
// =============================================================================

func TestTimeRange_Overlaps(t *testing.T) {
	base := generic.TimeRange{Start: utc(2030, 1, 15, 8, 0), End: utc(2030, 1, 15, 17, 0)}

	assert.True(t, base.Overlaps(generic.TimeRange{Start: utc(2030, 1, 15, 16, 0), End: utc(2030, 1, 15, 20, 0)}))
	assert.True(t, base.Overlaps(generic.TimeRange{Start: utc(2030, 1, 15, 9, 0), End: utc(2030, 1, 15, 10, 0)}), "contained")

	// Back-to-back windows share only the boundary instant
	touching := generic.TimeRange{Start: base.End, End: base.End.Add(4 * time.Hour)}
	assert.False(t, base.Overlaps(touching))
	assert.False(t, touching.Overlaps(base))
}

func TestTimeRange_Hours(t *testing.T) {
	r := generic.TimeRange{Start: utc(2030, 1, 15, 8, 0), End: utc(2030, 1, 15, 11, 30)}
	assert.InDelta(t, 3.5, r.Hours(), 0.0001)

	inverted := generic.TimeRange{Start: r.End, End: r.Start}
	assert.Zero(t, inverted.Hours())
}

// =============================================================================
// INTERVAL GATE
// =============================================================================

func TestIntervalElapsed(t *testing.T) {
	now := utc(2030, 3, 4, 9, 0)
	last := now.Add(-10 * time.Minute)

	assert.True(t, generic.IntervalElapsed(nil, 30*time.Minute, now), "never ran")
	assert.True(t, generic.IntervalElapsed(&last, 0, now), "no interval configured")
	assert.False(t, generic.IntervalElapsed(&last, 30*time.Minute, now))
	assert.True(t, generic.IntervalElapsed(&last, 10*time.Minute, now), "exactly one interval")
}

// =============================================================================
// MONEY
// =============================================================================

func TestSumMoney_RoundsOnce(t *testing.T) {
	// Each part rounds down on its own; the sum does not
	total := generic.SumMoney(
		decimal.RequireFromString("0.004"),
		decimal.RequireFromString("0.004"),
	)
	assert.Equal(t, "0.01", total.StringFixed(2))

	assert.True(t, generic.SumMoney().IsZero())
}

func TestRoundMoney_HalfAwayFromZero(t *testing.T) {
	assert.Equal(t, "1.01", generic.RoundMoney(decimal.RequireFromString("1.005")).String())
	assert.Equal(t, "-1.01", generic.RoundMoney(decimal.RequireFromString("-1.005")).String())
}

func TestParseDecimalPtr(t *testing.T) {
	d, err := generic.ParseDecimalPtr("")
	require.NoError(t, err)
	assert.Nil(t, d)

	d, err = generic.ParseDecimalPtr("12.50")
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, "12.5", d.String())

	_, err = generic.ParseDecimalPtr("twelve")
	assert.Error(t, err)

	assert.True(t, generic.MustParseDecimal("twelve").IsZero())
}

func TestActor_Display(t *testing.T) {
	assert.Equal(t, "Dispatch Desk", generic.Actor{ID: "u-1", Name: "Dispatch Desk"}.Display())
	assert.Equal(t, "u-1", generic.Actor{ID: "u-1"}.Display())
}

// =============================================================================
// ERRORS
// =============================================================================

func TestErrorClassification(t *testing.T) {
	notFound := fmt.Errorf("loading: %w", generic.NewNotFound("load", "L1"))
	assert.True(t, generic.IsNotFound(notFound))
	assert.False(t, generic.IsClientError(notFound))
	assert.Contains(t, notFound.Error(), `load "L1" not found`)

	transition := &generic.TransitionError{Entity: "settlement", ID: "s-1", From: "PAID", To: "DRAFT"}
	assert.True(t, generic.IsConflict(transition))
	assert.True(t, errors.Is(transition, generic.ErrInvalidTransition))

	validation := generic.NewValidation("amount", "must be positive, got %s", "-5")
	assert.True(t, generic.IsClientError(validation))
	assert.Equal(t, "amount: must be positive, got -5", validation.Error())

	var ve *generic.ValidationError
	require.True(t, errors.As(validation, &ve))
	assert.Equal(t, "amount", ve.Field)

	assert.True(t, generic.IsClientError(generic.ErrReasonRequired))
	assert.True(t, generic.IsConflict(generic.ErrSettlementLocked))
}
