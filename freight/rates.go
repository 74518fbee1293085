package freight

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/freight-engine/generic"
)

// =============================================================================
// RATE PROFILE - A named pay package
// =============================================================================

type PayBasis string

const (
	BasisMileage    PayBasis = "MILEAGE"
	BasisHourly     PayBasis = "HOURLY"
	BasisPercentage PayBasis = "PERCENTAGE"
	BasisFlat       PayBasis = "FLAT"
)

// RateProfile groups rate rules for drivers or carriers.
// At most one profile per (OrgID, ProfileType) has IsDefault set.
type RateProfile struct {
	ID          string
	OrgID       string
	Name        string
	ProfileType PayeeType
	PayBasis    PayBasis
	IsActive    bool
	IsDefault   bool
	Rules       []RateRule
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ActiveRules returns the rules that participate in calculation.
func (p RateProfile) ActiveRules() []RateRule {
	var out []RateRule
	for _, r := range p.Rules {
		if r.IsActive {
			out = append(out, r)
		}
	}
	return out
}

// =============================================================================
// RATE RULE - One conditional pay line
// =============================================================================

type RuleCategory string

const (
	CategoryBase           RuleCategory = "BASE"
	CategoryAccessorial    RuleCategory = "ACCESSORIAL"
	CategoryDeduction      RuleCategory = "DEDUCTION"
	CategoryManualTemplate RuleCategory = "MANUAL_TEMPLATE"
)

// Trigger selects which leg fact a rule's quantity is measured from.
type Trigger string

const (
	TriggerMileLoaded   Trigger = "MILE_LOADED"   // leg loaded miles
	TriggerMileEmpty    Trigger = "MILE_EMPTY"    // leg empty miles
	TriggerTimeDuration Trigger = "TIME_DURATION" // hours from leg start to leg end
	TriggerTimeWaiting  Trigger = "TIME_WAITING"  // detention hours at the leg's stops
	TriggerCountStops   Trigger = "COUNT_STOPS"   // stops within the leg
	TriggerFlatLoad     Trigger = "FLAT_LOAD"     // once per load
	TriggerFlatLeg      Trigger = "FLAT_LEG"      // once per leg
	TriggerAttrHazmat   Trigger = "ATTR_HAZMAT"   // load is hazmat
	TriggerAttrTarp     Trigger = "ATTR_TARP"     // load requires tarp
	TriggerPctOfLoad    Trigger = "PCT_OF_LOAD"   // percent of load revenue
)

var knownTriggers = map[Trigger]bool{
	TriggerMileLoaded: true, TriggerMileEmpty: true,
	TriggerTimeDuration: true, TriggerTimeWaiting: true,
	TriggerCountStops: true, TriggerFlatLoad: true, TriggerFlatLeg: true,
	TriggerAttrHazmat: true, TriggerAttrTarp: true, TriggerPctOfLoad: true,
}

// RateRule belongs to a RateProfile.
type RateRule struct {
	ID        string
	ProfileID string
	Name      string
	Category  RuleCategory
	Trigger   Trigger

	// Currency per unit, percent (PCT_OF_LOAD) or flat amount.
	Rate decimal.Decimal

	// Rule fires only when quantity is above MinThreshold.
	MinThreshold *decimal.Decimal
	// Computed amount is clamped to MaxCap.
	MaxCap *decimal.Decimal

	IsActive bool
}

// Validate checks the rule's enums and bounds.
func (r RateRule) Validate() error {
	if !knownTriggers[r.Trigger] {
		return generic.NewValidation("trigger", "unknown trigger %q", r.Trigger)
	}
	switch r.Category {
	case CategoryBase, CategoryAccessorial, CategoryDeduction, CategoryManualTemplate:
	default:
		return generic.NewValidation("category", "unknown category %q", r.Category)
	}
	if r.Rate.IsNegative() {
		return generic.NewValidation("rate", "must not be negative (use a DEDUCTION rule)")
	}
	if r.MaxCap != nil && r.MaxCap.IsNegative() {
		return generic.NewValidation("max_cap", "must not be negative")
	}
	return nil
}

// =============================================================================
// PROFILE ASSIGNMENT - Links a driver/carrier to a profile
// =============================================================================

type SelectionStrategy string

const (
	StrategyAlwaysActive      SelectionStrategy = "ALWAYS_ACTIVE"
	StrategyDistanceThreshold SelectionStrategy = "DISTANCE_THRESHOLD"
	StrategyManualOnly        SelectionStrategy = "MANUAL_ONLY"
)

// ProfileAssignment links a driver or carrier partnership to a RateProfile.
// At most one assignment per subject has IsDefault set.
type ProfileAssignment struct {
	ID             string
	OrgID          string
	SubjectType    PayeeType
	SubjectID      string
	ProfileID      string
	Strategy       SelectionStrategy
	ThresholdMiles *decimal.Decimal
	IsDefault      bool
	CreatedAt      time.Time
}

// Validate checks the strategy and threshold combination.
func (a ProfileAssignment) Validate() error {
	if !a.SubjectType.Valid() {
		return generic.NewValidation("subject_type", "unknown subject type %q", a.SubjectType)
	}
	if a.SubjectID == "" || a.ProfileID == "" {
		return generic.NewValidation("", "subject and profile are required")
	}
	switch a.Strategy {
	case StrategyAlwaysActive, StrategyManualOnly:
	case StrategyDistanceThreshold:
		if a.ThresholdMiles == nil {
			return generic.NewValidation("threshold_miles", "required for DISTANCE_THRESHOLD")
		}
	default:
		return generic.NewValidation("strategy", "unknown strategy %q", a.Strategy)
	}
	return nil
}
