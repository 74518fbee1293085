/*
Package dispatch assigns drivers and carriers to the legs of a load.

PURPOSE:
  A leg is the atomic assignable unit of work: one driver OR one carrier
  partnership moving the load from a start stop to an end stop. The
  Manager owns assignment, conflict detection, splitting, removal and leg
  status transitions, and triggers the pay engine synchronously for every
  leg it touches.

ATOMICITY:
  Every operation runs inside one Store.WithTx. The assignment, the
  cleanup of stale SYSTEM payables and the fresh pay calculation commit
  together. A non-success Result rolls the transaction back, so a rejected
  operation leaves nothing behind (not even a synthesized leg).

CONFLICT DETECTION:
  Each open leg of the target load is compared against every PENDING or
  ACTIVE leg the driver holds on other loads. Ranges are half-open
  (touching endpoints do not overlap). Legs whose stop times are "TBD" or
  unparseable are left out of the check. Force skips the check entirely.
  Carriers are never conflict-checked; they manage their own capacity.

LEG STATE MACHINE:
  PENDING -> ACTIVE -> COMPLETED
  PENDING/ACTIVE -> CANCELED
  Only PENDING and ACTIVE legs are changed by assignment operations.

SEE ALSO:
  - result.go: SUCCESS / CONFLICT / ERROR union
  - split.go: Splitting a leg at a stop
  - deactivate.go: Driver / carrier organization deactivation
  - autoassign.go: Route-based auto-assignment
  - pay/engine.go: Pay calculation
*/
package dispatch

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/warp/freight-engine/freight"
	"github.com/warp/freight-engine/generic"
	"github.com/warp/freight-engine/metrics"
	"github.com/warp/freight-engine/pay"
)

// Manager performs dispatch-leg assignment operations.
type Manager struct {
	store    freight.Store
	engine   *pay.Engine
	splitter MileageSplitter
	logger   *log.Logger
	Now      func() time.Time
}

// NewManager creates a manager using the stop-ratio mileage split.
func NewManager(store freight.Store, engine *pay.Engine, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Default()
	}
	if engine == nil {
		engine = pay.NewEngine(logger)
	}
	return &Manager{
		store:    store,
		engine:   engine,
		splitter: StopRatioSplitter{},
		logger:   logger,
	}
}

// WithSplitter swaps the mileage split strategy.
func (m *Manager) WithSplitter(s MileageSplitter) *Manager {
	m.splitter = s
	return m
}

// AssignDriverInput is the input of AssignDriver.
type AssignDriverInput struct {
	LoadID    string
	DriverID  string
	TruckID   string // defaults to the driver's current truck
	TrailerID string // kept from the leg when empty
	Force     bool   // skip conflict detection
	Actor     generic.Actor
}

// AssignCarrierInput is the input of AssignCarrier.
type AssignCarrierInput struct {
	LoadID        string
	PartnershipID string
	TrailerID     string // power-only: the broker's trailer stays on the leg
	Actor         generic.Actor
}

// =============================================================================
// ASSIGNMENT
// =============================================================================

// AssignDriver assigns a driver to every open leg of a load.
func (m *Manager) AssignDriver(ctx context.Context, in AssignDriverInput) (Result, error) {
	return m.run(ctx, "assign_driver", func(tx freight.Store) (Result, error) {
		return m.assignDriver(ctx, tx, in, !in.Force)
	})
}

// AssignDriverInternal is the system path used by auto-assignment. It runs
// the same flow as AssignDriver without conflict detection.
func (m *Manager) AssignDriverInternal(ctx context.Context, loadID, driverID string, actor generic.Actor) (Result, error) {
	in := AssignDriverInput{LoadID: loadID, DriverID: driverID, Actor: actor}
	return m.run(ctx, "assign_driver_internal", func(tx freight.Store) (Result, error) {
		return m.assignDriver(ctx, tx, in, false)
	})
}

func (m *Manager) assignDriver(ctx context.Context, tx freight.Store, in AssignDriverInput, checkConflicts bool) (Result, error) {
	driver, err := tx.GetDriver(ctx, in.DriverID)
	if err != nil {
		return Result{}, err
	}
	if driver == nil {
		return Failure("driver %s not found", in.DriverID), nil
	}
	if !driver.IsAssignable() {
		return Failure("driver %s is not active", driver.Name), nil
	}

	load, res, err := m.assignableLoad(ctx, tx, in.LoadID)
	if err != nil || load == nil {
		return res, err
	}
	if driver.OrgID != load.OrgID {
		return Failure("driver %s does not belong to this organization", driver.Name), nil
	}

	open, stops, res, err := m.openLegs(ctx, tx, load)
	if err != nil || open == nil {
		return res, err
	}

	if checkConflicts {
		conflict, err := m.findConflict(ctx, tx, driver.ID, load.ID, open, stops)
		if err != nil {
			return Result{}, err
		}
		if conflict != nil {
			return Conflict(*conflict), nil
		}
	}

	truckID := in.TruckID
	if truckID == "" {
		truckID = driver.CurrentTruckID
	}

	legIDs := make([]string, 0, len(open))
	for _, leg := range open {
		leg.DriverID = driver.ID
		leg.CarrierPartnershipID = ""
		leg.TruckID = truckID
		if in.TrailerID != "" {
			leg.TrailerID = in.TrailerID
		}
		leg.UpdatedAt = m.now()
		if err := tx.SaveLeg(ctx, leg); err != nil {
			return Result{}, err
		}
		legIDs = append(legIDs, leg.ID)
	}

	before := load.PrimaryDriverID
	load.PrimaryDriverID = driver.ID
	load.PrimaryCarrierID = ""
	if load.Status == freight.LoadOpen {
		load.Status = freight.LoadAssigned
	}
	if err := tx.SaveLoad(ctx, *load); err != nil {
		return Result{}, err
	}

	generic.Record(ctx, tx, m.logger, generic.AuditEntry{
		OrgID:       load.OrgID,
		EntityType:  "load",
		EntityID:    load.ID,
		Action:      generic.AuditDriverAssigned,
		Description: fmt.Sprintf("Assigned driver %s to load %s (%d legs)", driver.Name, load.OrderNumber, len(legIDs)),
		Before:      map[string]any{"primary_driver_id": before},
		After:       map[string]any{"primary_driver_id": driver.ID, "truck_id": truckID, "forced": in.Force},
	}.WithActor(in.Actor))

	for _, id := range legIDs {
		if _, err := m.engine.CalculateDriverPay(ctx, tx, id); err != nil {
			return Result{}, fmt.Errorf("pay calculation for leg %s: %w", id, err)
		}
	}
	return Success(legIDs...), nil
}

// AssignCarrier assigns a carrier partnership to every open leg of a load.
// Driver and truck are cleared; the trailer is passed through.
func (m *Manager) AssignCarrier(ctx context.Context, in AssignCarrierInput) (Result, error) {
	return m.run(ctx, "assign_carrier", func(tx freight.Store) (Result, error) {
		carrier, err := tx.GetCarrier(ctx, in.PartnershipID)
		if err != nil {
			return Result{}, err
		}
		if carrier == nil {
			return Failure("carrier partnership %s not found", in.PartnershipID), nil
		}
		if !carrier.IsAssignable() {
			return Failure("carrier %s is not active", carrier.CarrierName), nil
		}

		load, res, err := m.assignableLoad(ctx, tx, in.LoadID)
		if err != nil || load == nil {
			return res, err
		}
		open, _, res, err := m.openLegs(ctx, tx, load)
		if err != nil || open == nil {
			return res, err
		}

		legIDs := make([]string, 0, len(open))
		for _, leg := range open {
			leg.CarrierPartnershipID = carrier.ID
			leg.DriverID = ""
			leg.TruckID = ""
			if in.TrailerID != "" {
				leg.TrailerID = in.TrailerID
			}
			leg.UpdatedAt = m.now()
			if err := tx.SaveLeg(ctx, leg); err != nil {
				return Result{}, err
			}
			legIDs = append(legIDs, leg.ID)
		}

		before := load.PrimaryCarrierID
		load.PrimaryCarrierID = carrier.ID
		load.PrimaryDriverID = ""
		if load.Status == freight.LoadOpen {
			load.Status = freight.LoadAssigned
		}
		if err := tx.SaveLoad(ctx, *load); err != nil {
			return Result{}, err
		}

		generic.Record(ctx, tx, m.logger, generic.AuditEntry{
			OrgID:       load.OrgID,
			EntityType:  "load",
			EntityID:    load.ID,
			Action:      generic.AuditCarrierAssigned,
			Description: fmt.Sprintf("Assigned carrier %s to load %s", carrier.CarrierName, load.OrderNumber),
			Before:      map[string]any{"primary_carrier_id": before},
			After:       map[string]any{"primary_carrier_id": carrier.ID, "trailer_id": in.TrailerID},
		}.WithActor(in.Actor))

		for _, id := range legIDs {
			if _, err := m.engine.CalculateCarrierPay(ctx, tx, id); err != nil {
				return Result{}, fmt.Errorf("pay calculation for leg %s: %w", id, err)
			}
		}
		return Success(legIDs...), nil
	})
}

// UnassignResource clears driver, carrier, truck and trailer from every
// open leg. Running it on an unassigned load is a no-op SUCCESS.
//
// Only an ASSIGNED load goes back to OPEN. A load that is IN_TRANSIT or
// further along keeps its status.
func (m *Manager) UnassignResource(ctx context.Context, loadID string, actor generic.Actor) (Result, error) {
	return m.run(ctx, "unassign", func(tx freight.Store) (Result, error) {
		load, err := tx.GetLoad(ctx, loadID)
		if err != nil {
			return Result{}, err
		}
		if load == nil {
			return Failure("load %s not found", loadID), nil
		}
		legs, err := tx.ListLegsByLoad(ctx, load.ID)
		if err != nil {
			return Result{}, err
		}

		var cleared []string
		for _, leg := range freight.OpenLegs(legs) {
			if leg.DriverID == "" && leg.CarrierPartnershipID == "" && leg.TruckID == "" && leg.TrailerID == "" {
				continue
			}
			leg.DriverID = ""
			leg.CarrierPartnershipID = ""
			leg.TruckID = ""
			leg.TrailerID = ""
			leg.UpdatedAt = m.now()
			if err := tx.SaveLeg(ctx, leg); err != nil {
				return Result{}, err
			}
			if _, err := m.engine.RecalculateLeg(ctx, tx, leg.ID); err != nil {
				return Result{}, err
			}
			cleared = append(cleared, leg.ID)
		}

		changed := len(cleared) > 0 || load.PrimaryDriverID != "" || load.PrimaryCarrierID != "" ||
			load.Status == freight.LoadAssigned
		if !changed {
			return Success(), nil
		}

		load.PrimaryDriverID = ""
		load.PrimaryCarrierID = ""
		if load.Status == freight.LoadAssigned {
			load.Status = freight.LoadOpen
		}
		if err := tx.SaveLoad(ctx, *load); err != nil {
			return Result{}, err
		}

		generic.Record(ctx, tx, m.logger, generic.AuditEntry{
			OrgID:       load.OrgID,
			EntityType:  "load",
			EntityID:    load.ID,
			Action:      generic.AuditResourceUnassigned,
			Description: fmt.Sprintf("Unassigned resources from load %s (%d legs)", load.OrderNumber, len(cleared)),
		}.WithActor(actor))
		return Success(cleared...), nil
	})
}

// RemoveDriver clears the leg's driver and deletes every payable tied to the
// leg, locked or not.
func (m *Manager) RemoveDriver(ctx context.Context, legID string, actor generic.Actor) (Result, error) {
	return m.run(ctx, "remove_driver", func(tx freight.Store) (Result, error) {
		leg, err := tx.GetLeg(ctx, legID)
		if err != nil {
			return Result{}, err
		}
		if leg == nil {
			return Failure("leg %s not found", legID), nil
		}
		if !leg.Status.IsOpen() {
			return Failure("leg is %s and can no longer be changed", leg.Status), nil
		}
		if leg.DriverID == "" {
			return Success(), nil
		}
		removed := leg.DriverID

		payables, err := tx.ListPayablesByLeg(ctx, leg.ID)
		if err != nil {
			return Result{}, err
		}
		for _, p := range payables {
			if err := tx.DeletePayable(ctx, p.ID); err != nil {
				return Result{}, err
			}
		}

		leg.DriverID = ""
		leg.PayWarning = ""
		leg.UpdatedAt = m.now()
		if err := tx.SaveLeg(ctx, *leg); err != nil {
			return Result{}, err
		}

		load, err := tx.GetLoad(ctx, leg.LoadID)
		if err != nil {
			return Result{}, err
		}
		if load != nil && load.PrimaryDriverID == removed {
			if _, err := m.rebuildLoadCache(ctx, tx, load.ID, false); err != nil {
				return Result{}, err
			}
		}

		generic.Record(ctx, tx, m.logger, generic.AuditEntry{
			OrgID:       leg.OrgID,
			EntityType:  "leg",
			EntityID:    leg.ID,
			Action:      generic.AuditDriverRemoved,
			Description: fmt.Sprintf("Removed driver from leg %d (%d payables deleted)", leg.Sequence, len(payables)),
			Before:      map[string]any{"driver_id": removed},
		}.WithActor(actor))
		return Success(leg.ID), nil
	})
}

// =============================================================================
// LEG STATUS
// =============================================================================

// TransitionLeg moves a leg through its state machine. Canceling drops the
// leg's unlocked SYSTEM payables; completing recalculates pay. When every
// non-canceled leg is COMPLETED the load becomes COMPLETED.
func (m *Manager) TransitionLeg(ctx context.Context, legID string, to freight.LegStatus, actor generic.Actor) (*freight.Leg, error) {
	var out freight.Leg
	err := m.store.WithTx(ctx, func(tx freight.Store) error {
		leg, err := tx.GetLeg(ctx, legID)
		if err != nil {
			return err
		}
		if leg == nil {
			return generic.NewNotFound("leg", legID)
		}
		if !leg.Status.CanTransition(to) {
			return &generic.TransitionError{Entity: "leg", ID: leg.ID, From: string(leg.Status), To: string(to)}
		}

		from := leg.Status
		now := m.now()
		leg.Status = to
		leg.UpdatedAt = now
		if err := tx.SaveLeg(ctx, *leg); err != nil {
			return err
		}

		switch to {
		case freight.LegCanceled:
			if _, _, err := m.engine.ClearSystemPayables(ctx, tx, leg.ID); err != nil {
				return err
			}
		case freight.LegCompleted:
			if _, err := m.engine.RecalculateLeg(ctx, tx, leg.ID); err != nil {
				return err
			}
		}

		if err := m.advanceLoad(ctx, tx, leg.LoadID, to, now); err != nil {
			return err
		}

		generic.Record(ctx, tx, m.logger, generic.AuditEntry{
			OrgID:       leg.OrgID,
			EntityType:  "leg",
			EntityID:    leg.ID,
			Action:      generic.AuditLegStatusChanged,
			Description: fmt.Sprintf("Leg %d moved from %s to %s", leg.Sequence, from, to),
			Before:      map[string]any{"status": string(from)},
			After:       map[string]any{"status": string(to)},
		}.WithActor(actor))

		refreshed, err := tx.GetLeg(ctx, leg.ID)
		if err != nil {
			return err
		}
		out = *refreshed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (m *Manager) advanceLoad(ctx context.Context, tx freight.Store, loadID string, to freight.LegStatus, now time.Time) error {
	load, err := tx.GetLoad(ctx, loadID)
	if err != nil || load == nil {
		return err
	}

	changed := false
	switch to {
	case freight.LegActive:
		if load.Status == freight.LoadAssigned || load.Status == freight.LoadOpen {
			load.Status = freight.LoadInTransit
			changed = true
		}
	case freight.LegCompleted:
		legs, err := tx.ListLegsByLoad(ctx, loadID)
		if err != nil {
			return err
		}
		done := true
		for _, l := range legs {
			if l.Status != freight.LegCompleted && l.Status != freight.LegCanceled {
				done = false
				break
			}
		}
		if done && load.Status != freight.LoadCompleted {
			load.Status = freight.LoadCompleted
			load.CompletedAt = &now
			if load.DeliveredAt == nil {
				load.DeliveredAt = &now
			}
			changed = true
		}
	}

	if !changed {
		return nil
	}
	return tx.SaveLoad(ctx, *load)
}

// RecalculateLeg re-runs pay for one leg, e.g. after a rate change.
func (m *Manager) RecalculateLeg(ctx context.Context, legID string, actor generic.Actor) (*pay.Calculation, error) {
	var calc *pay.Calculation
	err := m.store.WithTx(ctx, func(tx freight.Store) error {
		leg, err := tx.GetLeg(ctx, legID)
		if err != nil {
			return err
		}
		if leg == nil {
			return generic.NewNotFound("leg", legID)
		}
		if leg.Status == freight.LegCanceled {
			return &generic.TransitionError{Entity: "leg", ID: leg.ID, From: string(leg.Status), To: "RECALCULATED"}
		}

		calc, err = m.engine.RecalculateLeg(ctx, tx, legID)
		if err != nil {
			return err
		}
		generic.Record(ctx, tx, m.logger, generic.AuditEntry{
			OrgID:       leg.OrgID,
			EntityType:  "leg",
			EntityID:    leg.ID,
			Action:      generic.AuditPayRecalculated,
			Description: fmt.Sprintf("Recalculated pay: %d payables, total %s", len(calc.Created), calc.Total().StringFixed(2)),
		}.WithActor(actor))
		return nil
	})
	return calc, err
}

// =============================================================================
// AVAILABILITY
// =============================================================================

// AvailableDriver is an active driver with no overlapping open legs.
type AvailableDriver struct {
	freight.Driver
	OpenLegs int
}

// GetAvailableDrivers lists active drivers with no PENDING/ACTIVE leg
// overlapping [start, end). Legs on excludeLoadID are ignored. Legs with
// unknown times never make a driver unavailable.
func (m *Manager) GetAvailableDrivers(ctx context.Context, orgID string, start, end time.Time, excludeLoadID string) ([]AvailableDriver, error) {
	window := generic.TimeRange{Start: start, End: end}
	if !end.After(start) {
		return nil, generic.NewValidation("end", "must be after start")
	}

	drivers, err := m.store.ListDrivers(ctx, orgID)
	if err != nil {
		return nil, err
	}
	legs, err := m.store.ListOpenLegsByOrg(ctx, orgID)
	if err != nil {
		return nil, err
	}

	stopsByLoad := make(map[string]map[string]freight.Stop)
	busy := make(map[string]bool)
	openCount := make(map[string]int)
	for _, leg := range legs {
		openCount[leg.DriverID]++
		if leg.LoadID == excludeLoadID || busy[leg.DriverID] {
			continue
		}
		idx, ok := stopsByLoad[leg.LoadID]
		if !ok {
			stops, err := m.store.ListStops(ctx, leg.LoadID)
			if err != nil {
				return nil, err
			}
			idx = freight.IndexStops(stops)
			stopsByLoad[leg.LoadID] = idx
		}
		r, ok := freight.RangeOf(leg, idx)
		if !ok {
			continue
		}
		if r.Overlaps(window) {
			busy[leg.DriverID] = true
		}
	}

	var out []AvailableDriver
	for _, d := range drivers {
		if !d.IsAssignable() || busy[d.ID] {
			continue
		}
		out = append(out, AvailableDriver{Driver: d, OpenLegs: openCount[d.ID]})
	}
	return out, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// run executes op in one transaction. A non-success Result rolls back.
func (m *Manager) run(ctx context.Context, op string, fn func(tx freight.Store) (Result, error)) (Result, error) {
	var res Result
	err := m.store.WithTx(ctx, func(tx freight.Store) error {
		r, err := fn(tx)
		if err != nil {
			return err
		}
		if !r.OK() {
			return reject(r)
		}
		res = r
		return nil
	})
	if r, ok := asResult(err); ok {
		res, err = r, nil
	}
	if err != nil {
		return Result{}, err
	}
	if !res.OK() {
		m.logger.Printf("[Dispatch] %s: %s %s", op, res.Status, res.Message)
	}
	metrics.AssignmentResults.WithLabelValues(op, string(res.Status)).Inc()
	return res, nil
}

// assignableLoad loads the target and rejects missing or canceled loads.
func (m *Manager) assignableLoad(ctx context.Context, tx freight.Store, loadID string) (*freight.Load, Result, error) {
	load, err := tx.GetLoad(ctx, loadID)
	if err != nil {
		return nil, Result{}, err
	}
	if load == nil {
		return nil, Failure("load %s not found", loadID), nil
	}
	if load.Status == freight.LoadCanceled {
		return nil, Failure("load %s is canceled", load.OrderNumber), nil
	}
	return load, Result{}, nil
}

// openLegs returns the load's PENDING/ACTIVE legs and its ordered stops. A
// load without legs gets one leg spanning its first to last stop.
func (m *Manager) openLegs(ctx context.Context, tx freight.Store, load *freight.Load) ([]freight.Leg, []freight.Stop, Result, error) {
	legs, stops, res, err := m.ensureLegs(ctx, tx, load)
	if err != nil || legs == nil {
		return nil, nil, res, err
	}
	open := freight.OpenLegs(legs)
	if len(open) == 0 {
		return nil, nil, Failure("load %s has no open legs", load.OrderNumber), nil
	}
	return open, stops, Result{}, nil
}

func (m *Manager) ensureLegs(ctx context.Context, tx freight.Store, load *freight.Load) ([]freight.Leg, []freight.Stop, Result, error) {
	stops, err := tx.ListStops(ctx, load.ID)
	if err != nil {
		return nil, nil, Result{}, err
	}
	freight.SortStops(stops)

	legs, err := tx.ListLegsByLoad(ctx, load.ID)
	if err != nil {
		return nil, nil, Result{}, err
	}
	if len(legs) > 0 {
		return legs, stops, Result{}, nil
	}

	if len(stops) < 2 {
		return nil, nil, Failure("load %s needs at least 2 stops to create a leg", load.OrderNumber), nil
	}
	now := m.now()
	leg := freight.Leg{
		ID:          uuid.NewString(),
		LoadID:      load.ID,
		OrgID:       load.OrgID,
		Sequence:    1,
		StartStopID: stops[0].ID,
		EndStopID:   stops[len(stops)-1].ID,
		LoadedMiles: load.EffectiveMiles,
		Status:      freight.LegPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := tx.SaveLeg(ctx, leg); err != nil {
		return nil, nil, Result{}, err
	}
	return []freight.Leg{leg}, stops, Result{}, nil
}

// findConflict compares the candidate legs with the driver's open legs on
// other loads.
func (m *Manager) findConflict(ctx context.Context, tx freight.Store, driverID, loadID string, candidates []freight.Leg, stops []freight.Stop) (*ConflictingLoad, error) {
	idx := freight.IndexStops(stops)
	var mine []generic.TimeRange
	for _, leg := range candidates {
		if r, ok := freight.RangeOf(leg, idx); ok {
			mine = append(mine, r)
		}
	}
	if len(mine) == 0 {
		return nil, nil
	}

	others, err := tx.ListOpenLegsByDriver(ctx, driverID)
	if err != nil {
		return nil, err
	}
	stopsByLoad := make(map[string]map[string]freight.Stop)
	for _, other := range others {
		if other.LoadID == loadID {
			continue
		}
		otherIdx, ok := stopsByLoad[other.LoadID]
		if !ok {
			s, err := tx.ListStops(ctx, other.LoadID)
			if err != nil {
				return nil, err
			}
			otherIdx = freight.IndexStops(s)
			stopsByLoad[other.LoadID] = otherIdx
		}
		r, ok := freight.RangeOf(other, otherIdx)
		if !ok {
			continue
		}
		for _, candidate := range mine {
			if !candidate.Overlaps(r) {
				continue
			}
			c := &ConflictingLoad{LoadID: other.LoadID, LegID: other.ID}
			if l, err := tx.GetLoad(ctx, other.LoadID); err == nil && l != nil {
				c.OrderNumber = l.OrderNumber
			}
			return c, nil
		}
	}
	return nil, nil
}

// rebuildLoadCache re-derives the load's primary driver/carrier from its
// legs. With reopen set, an ASSIGNED load left without resources goes back
// to OPEN. Returns whether the load was reopened.
func (m *Manager) rebuildLoadCache(ctx context.Context, tx freight.Store, loadID string, reopen bool) (bool, error) {
	load, err := tx.GetLoad(ctx, loadID)
	if err != nil || load == nil {
		return false, err
	}
	legs, err := tx.ListLegsByLoad(ctx, loadID)
	if err != nil {
		return false, err
	}

	driverID, carrierID := "", ""
	for _, l := range legs {
		if l.Status == freight.LegCanceled {
			continue
		}
		if driverID == "" && l.DriverID != "" {
			driverID = l.DriverID
		}
		if carrierID == "" && l.CarrierPartnershipID != "" {
			carrierID = l.CarrierPartnershipID
		}
	}

	reopened := false
	load.PrimaryDriverID = driverID
	load.PrimaryCarrierID = carrierID
	if reopen && driverID == "" && carrierID == "" && load.Status == freight.LoadAssigned {
		load.Status = freight.LoadOpen
		reopened = true
	}
	return reopened, tx.SaveLoad(ctx, *load)
}

func (m *Manager) now() time.Time {
	if m.Now != nil {
		return m.Now().UTC()
	}
	return time.Now().UTC()
}
