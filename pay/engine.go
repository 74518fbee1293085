/*
Package pay computes settlement-ready payables from dispatch legs.

PURPOSE:
  Given a leg, the engine resolves which RateProfile applies to the leg's
  driver or carrier, evaluates every active RateRule against the leg's
  measured facts, and writes one SYSTEM payable per firing rule.

REPLACE, NEVER MERGE:
  Every calculation starts by deleting the leg's unlocked SYSTEM payables
  and then writes the fresh set. MANUAL rows and locked rows are never
  touched. Running the calculation twice yields the same ledger.

  A deleted row that belonged to a DRAFT settlement hands its settlement
  id to the new row for the same payee, so recalculating a leg does not
  silently drop pay out of a statement that is still being assembled.

PROFILE RESOLUTION (first match wins):
  1. DISTANCE_THRESHOLD assignments whose threshold is strictly exceeded
     by the leg's loaded miles, highest threshold first
  2. ALWAYS_ACTIVE assignments, the subject's default first
  3. The organization's default profile for the payee type
  4. Nothing: no rows, and the leg carries "no pay profile configured"

  MANUAL_ONLY assignments are never picked automatically. Inactive
  profiles are ignored at every step.

WARNINGS:
  Rules that cannot be evaluated (unparseable stop times, missing revenue)
  are skipped, and a warning is attached to the first payable written and
  to Leg.PayWarning. Warnings never fail the calculation.

TRANSACTIONS:
  Every entry point takes the caller's transactional store. The engine
  never opens its own transaction, so an assignment and its pay commit
  together.

SEE ALSO:
  - rules.go: Per-trigger quantity evaluation
  - config.go: Rate profile configuration
  - ledger.go: Manual payables
*/
package pay

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/freight-engine/freight"
	"github.com/warp/freight-engine/generic"
	"github.com/warp/freight-engine/metrics"
)

// WarningNoProfile is stored on a leg whose payee resolves to no profile.
const WarningNoProfile = "no pay profile configured"

// Engine is the pay calculation engine. The zero value is usable.
type Engine struct {
	Logger *log.Logger
	Now    func() time.Time
}

// NewEngine creates an engine that logs to logger.
func NewEngine(logger *log.Logger) *Engine {
	return &Engine{Logger: logger}
}

// Calculation reports what a single leg calculation did.
type Calculation struct {
	LegID     string
	PayeeType freight.PayeeType
	PayeeID   string
	ProfileID string
	Created   []freight.Payable
	Deleted   int
	Warnings  []string
}

// Total sums the amounts of the created payables.
func (c *Calculation) Total() decimal.Decimal {
	amounts := make([]decimal.Decimal, len(c.Created))
	for i, p := range c.Created {
		amounts[i] = p.TotalAmount
	}
	return generic.SumMoney(amounts...)
}

// =============================================================================
// ENTRY POINTS
// =============================================================================

// CalculateDriverPay recomputes a driver-held leg's SYSTEM payables.
func (e *Engine) CalculateDriverPay(ctx context.Context, tx freight.Store, legID string) (*Calculation, error) {
	return e.calculate(ctx, tx, legID, freight.PayeeDriver)
}

// CalculateCarrierPay recomputes a carrier-held leg's SYSTEM payables.
func (e *Engine) CalculateCarrierPay(ctx context.Context, tx freight.Store, legID string) (*Calculation, error) {
	return e.calculate(ctx, tx, legID, freight.PayeeCarrier)
}

// RecalculateLeg dispatches to the driver or carrier variant depending on
// who holds the leg. A leg held by nobody only loses its stale SYSTEM rows.
func (e *Engine) RecalculateLeg(ctx context.Context, tx freight.Store, legID string) (*Calculation, error) {
	leg, err := tx.GetLeg(ctx, legID)
	if err != nil {
		return nil, fmt.Errorf("failed to get leg: %w", err)
	}
	if leg == nil {
		return nil, generic.NewNotFound("leg", legID)
	}

	payeeType, _, ok := leg.Holder()
	if !ok {
		deleted, _, err := e.ClearSystemPayables(ctx, tx, legID)
		if err != nil {
			return nil, err
		}
		if leg.PayWarning != "" {
			leg.PayWarning = ""
			if err := tx.SaveLeg(ctx, *leg); err != nil {
				return nil, fmt.Errorf("failed to save leg: %w", err)
			}
		}
		return &Calculation{LegID: legID, Deleted: deleted}, nil
	}
	return e.calculate(ctx, tx, legID, payeeType)
}

// Carried holds, per payee, the settlement membership and hold marker of
// cleared rows so their replacements land in the same place.
type Carried struct {
	SettlementID map[string]string
	HeldFrom     map[string]string
}

func (c Carried) stamp(p *freight.Payable) {
	key := payeeKey(p.PayeeType, p.PayeeID)
	p.SettlementID = c.SettlementID[key]
	if p.SettlementID == "" {
		p.HeldFromSettlementID = c.HeldFrom[key]
	}
}

// ClearSystemPayables deletes the leg's unlocked SYSTEM payables. It returns
// how many rows were deleted and what the replacements should inherit: the
// DRAFT or PENDING settlement a deleted row belonged to, and the settlement
// a held row was parked from.
func (e *Engine) ClearSystemPayables(ctx context.Context, tx freight.Store, legID string) (int, Carried, error) {
	carried := Carried{SettlementID: map[string]string{}, HeldFrom: map[string]string{}}
	payables, err := tx.ListPayablesByLeg(ctx, legID)
	if err != nil {
		return 0, carried, fmt.Errorf("failed to list leg payables: %w", err)
	}

	deleted := 0
	for _, p := range payables {
		if p.SourceType != freight.SourceSystem || p.IsLocked {
			continue
		}
		key := payeeKey(p.PayeeType, p.PayeeID)
		if p.SettlementID != "" {
			s, err := tx.GetSettlement(ctx, p.SettlementID)
			if err != nil {
				return 0, carried, fmt.Errorf("failed to get settlement: %w", err)
			}
			if s != nil && (s.Status == freight.SettlementDraft || s.Status == freight.SettlementPending) {
				carried.SettlementID[key] = s.ID
			}
		}
		if p.HeldFromSettlementID != "" {
			carried.HeldFrom[key] = p.HeldFromSettlementID
		}
		if err := tx.DeletePayable(ctx, p.ID); err != nil {
			return 0, carried, err
		}
		deleted++
	}
	return deleted, carried, nil
}

// =============================================================================
// CALCULATION
// =============================================================================

func (e *Engine) calculate(ctx context.Context, tx freight.Store, legID string, payeeType freight.PayeeType) (*Calculation, error) {
	leg, err := tx.GetLeg(ctx, legID)
	if err != nil {
		return nil, fmt.Errorf("failed to get leg: %w", err)
	}
	if leg == nil {
		return nil, generic.NewNotFound("leg", legID)
	}

	payeeID := leg.DriverID
	if payeeType == freight.PayeeCarrier {
		payeeID = leg.CarrierPartnershipID
	}
	if payeeID == "" {
		return nil, generic.NewValidation("leg", "leg %s has no %s assigned", legID, strings.ToLower(string(payeeType)))
	}

	load, err := tx.GetLoad(ctx, leg.LoadID)
	if err != nil {
		return nil, fmt.Errorf("failed to get load: %w", err)
	}
	if load == nil {
		return nil, generic.NewNotFound("load", leg.LoadID)
	}

	calc := &Calculation{LegID: leg.ID, PayeeType: payeeType, PayeeID: payeeID}

	deleted, carried, err := e.ClearSystemPayables(ctx, tx, leg.ID)
	if err != nil {
		return nil, err
	}
	calc.Deleted = deleted

	profile, err := e.ResolveProfile(ctx, tx, *leg, load.OrgID, payeeType, payeeID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		calc.Warnings = append(calc.Warnings, WarningNoProfile)
		e.logger().Printf("[PayEngine] leg %s: %s for %s %s", leg.ID, WarningNoProfile, payeeType, payeeID)
		return calc, e.saveWarning(ctx, tx, leg, calc.Warnings)
	}
	calc.ProfileID = profile.ID

	facts, err := e.gatherFacts(ctx, tx, *leg, *load)
	if err != nil {
		return nil, err
	}

	now := e.now()
	for _, rule := range profile.ActiveRules() {
		outcome := Evaluate(rule, facts)
		if outcome.Warning != "" {
			calc.Warnings = append(calc.Warnings, outcome.Warning)
		}
		if !outcome.Fires {
			metrics.RulesSkipped.WithLabelValues(outcome.SkipReason).Inc()
			continue
		}

		p := freight.Payable{
			ID:          uuid.NewString(),
			OrgID:       leg.OrgID,
			PayeeType:   payeeType,
			PayeeID:     payeeID,
			LoadID:      leg.LoadID,
			LegID:       leg.ID,
			Description: describe(rule, *load),
			Quantity:    outcome.Quantity,
			Rate:        outcome.Rate,
			TotalAmount: outcome.Amount,
			SourceType:  freight.SourceSystem,
			Category:    rule.Category,
			RuleID:      rule.ID,
			CreatedBy:   generic.SystemActor.ID,
			CreatedAt:   now,
		}
		carried.stamp(&p)
		calc.Created = append(calc.Created, p)
	}

	if len(calc.Created) > 0 && len(calc.Warnings) > 0 {
		calc.Created[0].WarningMessage = strings.Join(calc.Warnings, "; ")
	}
	for _, p := range calc.Created {
		if err := tx.SavePayable(ctx, p); err != nil {
			return nil, err
		}
	}
	metrics.PayablesGenerated.WithLabelValues(string(payeeType)).Add(float64(len(calc.Created)))

	if err := e.saveWarning(ctx, tx, leg, calc.Warnings); err != nil {
		return nil, err
	}
	return calc, nil
}

// ResolveProfile picks the RateProfile that pays the leg, or nil.
func (e *Engine) ResolveProfile(ctx context.Context, tx freight.Store, leg freight.Leg, orgID string, payeeType freight.PayeeType, payeeID string) (*freight.RateProfile, error) {
	assignments, err := tx.ListProfileAssignments(ctx, payeeType, payeeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list profile assignments: %w", err)
	}

	var thresholds, always []freight.ProfileAssignment
	for _, a := range assignments {
		switch a.Strategy {
		case freight.StrategyDistanceThreshold:
			if a.ThresholdMiles != nil && leg.LoadedMiles.GreaterThan(*a.ThresholdMiles) {
				thresholds = append(thresholds, a)
			}
		case freight.StrategyAlwaysActive:
			always = append(always, a)
		}
	}
	sort.SliceStable(thresholds, func(i, j int) bool {
		return thresholds[i].ThresholdMiles.GreaterThan(*thresholds[j].ThresholdMiles)
	})
	sort.SliceStable(always, func(i, j int) bool {
		return always[i].IsDefault && !always[j].IsDefault
	})

	for _, a := range append(thresholds, always...) {
		p, err := tx.GetRateProfile(ctx, a.ProfileID)
		if err != nil {
			return nil, fmt.Errorf("failed to get rate profile: %w", err)
		}
		if p != nil && p.IsActive && p.ProfileType == payeeType {
			return p, nil
		}
	}

	p, err := tx.GetDefaultRateProfile(ctx, orgID, payeeType)
	if err != nil {
		return nil, fmt.Errorf("failed to get default rate profile: %w", err)
	}
	if p != nil && p.IsActive {
		return p, nil
	}
	return nil, nil
}

func (e *Engine) gatherFacts(ctx context.Context, tx freight.Store, leg freight.Leg, load freight.Load) (LegFacts, error) {
	stops, err := tx.ListStops(ctx, load.ID)
	if err != nil {
		return LegFacts{}, fmt.Errorf("failed to list stops: %w", err)
	}
	freight.SortStops(stops)

	legs, err := tx.ListLegsByLoad(ctx, load.ID)
	if err != nil {
		return LegFacts{}, fmt.Errorf("failed to list legs: %w", err)
	}

	facts := LegFacts{
		Leg:      leg,
		Load:     load,
		Stops:    freight.StopsInLeg(leg, stops),
		FirstLeg: firstBillableLeg(legs) == leg.ID,
	}
	if r, ok := freight.RangeOf(leg, freight.IndexStops(stops)); ok {
		facts.Range = &r
	}
	return facts, nil
}

func (e *Engine) saveWarning(ctx context.Context, tx freight.Store, leg *freight.Leg, warnings []string) error {
	warning := strings.Join(warnings, "; ")
	if leg.PayWarning == warning {
		return nil
	}
	leg.PayWarning = warning
	if err := tx.SaveLeg(ctx, *leg); err != nil {
		return fmt.Errorf("failed to save leg warning: %w", err)
	}
	return nil
}

func (e *Engine) logger() *log.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return log.Default()
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now().UTC()
	}
	return time.Now().UTC()
}

// firstBillableLeg returns the lowest-sequence non-canceled leg.
func firstBillableLeg(legs []freight.Leg) string {
	best := ""
	bestSeq := 0
	for _, l := range legs {
		if l.Status == freight.LegCanceled {
			continue
		}
		if best == "" || l.Sequence < bestSeq {
			best, bestSeq = l.ID, l.Sequence
		}
	}
	return best
}

func describe(rule freight.RateRule, load freight.Load) string {
	if load.OrderNumber == "" {
		return rule.Name
	}
	return rule.Name + " - " + load.OrderNumber
}

func payeeKey(t freight.PayeeType, id string) string {
	return string(t) + ":" + id
}
