package dispatch

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/freight-engine/freight"
	"github.com/warp/freight-engine/generic"
)

// =============================================================================
// MILEAGE SPLIT STRATEGY
// =============================================================================

// MileageSplitter divides a leg's loaded miles when the leg is split.
// span holds the leg's stops in order; splitAt is the split stop's index
// within span (never the first or last).
type MileageSplitter interface {
	Split(leg freight.Leg, span []freight.Stop, splitAt int) (first, second decimal.Decimal)
}

// StopRatioSplitter apportions miles by stop count:
//
//	first  = round(miles x stopsThroughSplit / stopsInLeg)
//	second = miles - first
//
// It ignores actual distance. Swap in a distance-based splitter through
// Manager.WithSplitter once stop coordinates are routed.
type StopRatioSplitter struct{}

func (StopRatioSplitter) Split(leg freight.Leg, span []freight.Stop, splitAt int) (decimal.Decimal, decimal.Decimal) {
	total := leg.LoadedMiles
	if len(span) == 0 {
		return total, decimal.Zero
	}
	first := total.Mul(decimal.NewFromInt(int64(splitAt + 1))).
		Div(decimal.NewFromInt(int64(len(span)))).
		Round(0)
	return first, total.Sub(first)
}

// =============================================================================
// SPLIT AT STOP
// =============================================================================

// SplitInput is the input of SplitAtStop.
type SplitInput struct {
	LoadID      string
	SplitStopID string
	NewDriverID string // optional driver for the second leg
	TruckID     string
	TrailerID   string
	Force       bool
	Actor       generic.Actor
}

// SplitAtStop cuts the open leg that spans the split stop in two. The
// existing leg now ends at the split stop; a new leg runs from the split stop
// to the old end stop with the next sequence number. Later legs move up one
// sequence. Both legs are recalculated.
func (m *Manager) SplitAtStop(ctx context.Context, in SplitInput) (Result, error) {
	return m.run(ctx, "split", func(tx freight.Store) (Result, error) {
		load, res, err := m.assignableLoad(ctx, tx, in.LoadID)
		if err != nil || load == nil {
			return res, err
		}
		legs, stops, res, err := m.ensureLegs(ctx, tx, load)
		if err != nil || legs == nil {
			return res, err
		}

		at := freight.StopIndex(stops, in.SplitStopID)
		if at < 0 {
			return Failure("stop %s is not on load %s", in.SplitStopID, load.OrderNumber), nil
		}
		if at == 0 || at == len(stops)-1 {
			return Failure("cannot split at the first or last stop"), nil
		}

		var target *freight.Leg
		for i := range legs {
			l := legs[i]
			if !l.Status.IsOpen() {
				continue
			}
			from := freight.StopIndex(stops, l.StartStopID)
			to := freight.StopIndex(stops, l.EndStopID)
			if from < at && at < to {
				target = &legs[i]
				break
			}
		}
		if target == nil {
			return Failure("no open leg spans stop %s", in.SplitStopID), nil
		}

		var driver *freight.Driver
		if in.NewDriverID != "" {
			driver, err = tx.GetDriver(ctx, in.NewDriverID)
			if err != nil {
				return Result{}, err
			}
			if driver == nil {
				return Failure("driver %s not found", in.NewDriverID), nil
			}
			if !driver.IsAssignable() {
				return Failure("driver %s is not active", driver.Name), nil
			}
		}

		span := freight.StopsInLeg(*target, stops)
		first, second := m.splitter.Split(*target, span, freight.StopIndex(span, in.SplitStopID))

		now := m.now()
		newLeg := freight.Leg{
			ID:          uuid.NewString(),
			LoadID:      load.ID,
			OrgID:       load.OrgID,
			Sequence:    target.Sequence + 1,
			StartStopID: in.SplitStopID,
			EndStopID:   target.EndStopID,
			LoadedMiles: second,
			EmptyMiles:  decimal.Zero,
			Status:      freight.LegPending,
			TrailerID:   in.TrailerID,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if driver != nil {
			newLeg.DriverID = driver.ID
			newLeg.TruckID = in.TruckID
			if newLeg.TruckID == "" {
				newLeg.TruckID = driver.CurrentTruckID
			}
			if !in.Force {
				conflict, err := m.findConflict(ctx, tx, driver.ID, load.ID, []freight.Leg{newLeg}, stops)
				if err != nil {
					return Result{}, err
				}
				if conflict != nil {
					return Conflict(*conflict), nil
				}
			}
		}

		for _, l := range legs {
			if l.ID == target.ID || l.Sequence <= target.Sequence {
				continue
			}
			l.Sequence++
			l.UpdatedAt = now
			if err := tx.SaveLeg(ctx, l); err != nil {
				return Result{}, err
			}
		}

		beforeMiles := target.LoadedMiles
		target.EndStopID = in.SplitStopID
		target.LoadedMiles = first
		target.UpdatedAt = now
		if err := tx.SaveLeg(ctx, *target); err != nil {
			return Result{}, err
		}
		if err := tx.SaveLeg(ctx, newLeg); err != nil {
			return Result{}, err
		}

		if driver != nil && load.PrimaryDriverID == "" && load.PrimaryCarrierID == "" {
			load.PrimaryDriverID = driver.ID
			if load.Status == freight.LoadOpen {
				load.Status = freight.LoadAssigned
			}
			if err := tx.SaveLoad(ctx, *load); err != nil {
				return Result{}, err
			}
		}

		generic.Record(ctx, tx, m.logger, generic.AuditEntry{
			OrgID:       load.OrgID,
			EntityType:  "load",
			EntityID:    load.ID,
			Action:      generic.AuditLegSplit,
			Description: fmt.Sprintf("Split leg %d of load %s at stop %d: %s + %s miles",
				target.Sequence, load.OrderNumber, stops[at].SequenceNumber, first.String(), second.String()),
			Before: map[string]any{"leg_id": target.ID, "loaded_miles": beforeMiles.String()},
			After:  map[string]any{"new_leg_id": newLeg.ID, "new_driver_id": newLeg.DriverID},
		}.WithActor(in.Actor))

		for _, id := range []string{target.ID, newLeg.ID} {
			if _, err := m.engine.RecalculateLeg(ctx, tx, id); err != nil {
				return Result{}, fmt.Errorf("pay calculation for leg %s: %w", id, err)
			}
		}
		return Success(target.ID, newLeg.ID), nil
	})
}
