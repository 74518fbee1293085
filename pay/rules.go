package pay

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/freight-engine/freight"
	"github.com/warp/freight-engine/generic"
	"github.com/warp/freight-engine/metrics"
)

var (
	hundred    = decimal.NewFromInt(100)
	secsInHour = decimal.NewFromInt(3600)
)

// LegFacts is everything a rule can measure about a leg.
type LegFacts struct {
	Leg   freight.Leg
	Load  freight.Load
	Stops []freight.Stop // stops from the leg's start through its end stop

	// FirstLeg is true for the load's lowest-sequence non-canceled leg.
	FirstLeg bool

	// Range is nil when the leg's stop times are unknown or unparseable.
	Range *generic.TimeRange
}

// Outcome is the result of evaluating one rule.
type Outcome struct {
	Fires    bool
	Quantity decimal.Decimal
	Rate     decimal.Decimal
	Amount   decimal.Decimal

	SkipReason string
	Warning    string
}

// Evaluate measures the rule's quantity from the leg facts and computes the
// payable amount. Deductions come out negative; MaxCap clamps the magnitude.
func Evaluate(rule freight.RateRule, facts LegFacts) Outcome {
	if rule.Category == freight.CategoryManualTemplate {
		return skip(metrics.SkipTemplate, "")
	}

	rate := rule.Rate
	var quantity decimal.Decimal

	switch rule.Trigger {
	case freight.TriggerMileLoaded:
		quantity = facts.Leg.LoadedMiles
	case freight.TriggerMileEmpty:
		quantity = facts.Leg.EmptyMiles

	case freight.TriggerTimeDuration:
		if facts.Range == nil {
			return skip(metrics.SkipMissingData,
				fmt.Sprintf("%s skipped: missing or unparseable stop times", rule.Name))
		}
		quantity = hoursBetween(facts.Range.Start, facts.Range.End)

	case freight.TriggerTimeWaiting:
		hours, stamped := waitingHours(facts.Stops)
		if !stamped {
			return skip(metrics.SkipMissingData,
				fmt.Sprintf("%s skipped: missing check-in/out times", rule.Name))
		}
		quantity = hours

	case freight.TriggerCountStops:
		quantity = decimal.NewFromInt(int64(len(facts.Stops)))

	case freight.TriggerFlatLoad:
		if !facts.FirstLeg {
			return skip(metrics.SkipNotApplicable, "")
		}
		quantity = decimal.NewFromInt(1)
	case freight.TriggerFlatLeg:
		quantity = decimal.NewFromInt(1)

	case freight.TriggerAttrHazmat:
		if !facts.Load.IsHazmat {
			return skip(metrics.SkipNotApplicable, "")
		}
		quantity = decimal.NewFromInt(1)
	case freight.TriggerAttrTarp:
		if !facts.Load.RequiresTarp {
			return skip(metrics.SkipNotApplicable, "")
		}
		quantity = decimal.NewFromInt(1)

	case freight.TriggerPctOfLoad:
		if facts.Load.Revenue == nil {
			return skip(metrics.SkipMissingData,
				fmt.Sprintf("%s skipped: load revenue not available", rule.Name))
		}
		quantity = *facts.Load.Revenue
		rate = rule.Rate.Div(hundred)

	default:
		return skip(metrics.SkipNotApplicable, fmt.Sprintf("%s skipped: unknown trigger %s", rule.Name, rule.Trigger))
	}

	if quantity.Sign() <= 0 {
		return skip(metrics.SkipZeroQuantity, "")
	}
	if rule.MinThreshold != nil && !quantity.GreaterThan(*rule.MinThreshold) {
		return skip(metrics.SkipBelowThreshold, "")
	}

	amount := freight.LineTotal(quantity, rate, rule.Category)
	if rule.MaxCap != nil && amount.Abs().GreaterThan(*rule.MaxCap) {
		amount = generic.RoundMoney(*rule.MaxCap)
		if rule.Category == freight.CategoryDeduction {
			amount = amount.Neg()
		}
	}

	return Outcome{Fires: true, Quantity: quantity, Rate: rate, Amount: amount}
}

func skip(reason, warning string) Outcome {
	return Outcome{SkipReason: reason, Warning: warning}
}

// hoursBetween returns the hours from start to end, rounded to 2 places.
func hoursBetween(start, end time.Time) decimal.Decimal {
	if !end.After(start) {
		return decimal.Zero
	}
	secs := decimal.NewFromInt(int64(end.Sub(start) / time.Second))
	return secs.Div(secsInHour).Round(2)
}

// waitingHours sums check-in to check-out time over stops with both stamps.
// stamped is false when no stop has both.
func waitingHours(stops []freight.Stop) (total decimal.Decimal, stamped bool) {
	total = decimal.Zero
	for _, s := range stops {
		if s.CheckedInAt == nil || s.CheckedOutAt == nil {
			continue
		}
		stamped = true
		total = total.Add(hoursBetween(*s.CheckedInAt, *s.CheckedOutAt))
	}
	return total, stamped
}
