package dispatch_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/freight-engine/dispatch"
	"github.com/warp/freight-engine/freight"
	"github.com/warp/freight-engine/generic"
	"github.com/warp/freight-engine/pay"
	"github.com/warp/freight-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

const testOrg = "org-1"

var dispatcher = generic.Actor{ID: "user-1", Name: "Dispatch Desk"}

type fixture struct {
	store   *sqlite.Store
	manager *dispatch.Manager
	ledger  *pay.Ledger
}

// newFixture seeds two active drivers, one inactive driver, a carrier
// partnership and a default driver profile paying 0.50 per loaded mile.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	for _, d := range []freight.Driver{
		{ID: "drv-a", Name: "Alice", CurrentTruckID: "T-A", Status: freight.PartyActive},
		{ID: "drv-b", Name: "Bob", CurrentTruckID: "T-B", Status: freight.PartyActive},
		{ID: "drv-x", Name: "Xavier", Status: freight.PartyInactive},
	} {
		d.OrgID = testOrg
		require.NoError(t, store.SaveDriver(ctx, d))
	}
	require.NoError(t, store.SaveCarrier(ctx, freight.CarrierPartnership{
		ID: "car-1", OrgID: testOrg, CarrierOrgID: "corg-1", CarrierName: "Acme Haulers", Status: freight.PartyActive,
	}))
	require.NoError(t, store.SaveRateProfile(ctx, freight.RateProfile{
		ID: "prof-std", OrgID: testOrg, Name: "Standard", ProfileType: freight.PayeeDriver,
		PayBasis: freight.BasisMileage, IsActive: true, IsDefault: true,
		Rules: []freight.RateRule{{
			Name: "Loaded miles", Category: freight.CategoryBase, Trigger: freight.TriggerMileLoaded,
			Rate: decimal.RequireFromString("0.50"), IsActive: true,
		}},
	}))

	return &fixture{
		store:   store,
		manager: dispatch.NewManager(store, nil, nil),
		ledger:  pay.NewLedger(store, nil),
	}
}

// addLoad creates an OPEN load on 2030-01-15 with n stops. The first stop
// opens at begin and the last closes at end.
func (f *fixture) addLoad(t *testing.T, id, begin, end string, n int, miles string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.store.SaveLoad(ctx, freight.Load{
		ID: id, OrgID: testOrg, OrderNumber: "ORD-" + id, Status: freight.LoadOpen,
		EffectiveMiles: decimal.RequireFromString(miles),
	}))
	for i := 1; i <= n; i++ {
		s := freight.Stop{
			ID: fmt.Sprintf("%s-s%d", id, i), LoadID: id, OrgID: testOrg, SequenceNumber: i,
			StopType: freight.StopPickup, WindowBeginDate: "2030-01-15",
			WindowBeginTime: begin, WindowEndTime: end,
		}
		if i == n {
			s.StopType = freight.StopDelivery
		}
		require.NoError(t, f.store.SaveStop(ctx, s))
	}
}

func (f *fixture) assign(t *testing.T, loadID, driverID string) dispatch.Result {
	t.Helper()
	res, err := f.manager.AssignDriver(context.Background(), dispatch.AssignDriverInput{
		LoadID: loadID, DriverID: driverID, Actor: dispatcher,
	})
	require.NoError(t, err)
	return res
}

func (f *fixture) load(t *testing.T, id string) *freight.Load {
	t.Helper()
	l, err := f.store.GetLoad(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, l)
	return l
}

func (f *fixture) legs(t *testing.T, loadID string) []freight.Leg {
	t.Helper()
	legs, err := f.store.ListLegsByLoad(context.Background(), loadID)
	require.NoError(t, err)
	return legs
}

func (f *fixture) payables(t *testing.T, legID string) []freight.Payable {
	t.Helper()
	rows, err := f.store.ListPayablesByLeg(context.Background(), legID)
	require.NoError(t, err)
	return rows
}

// =============================================================================
// ASSIGN DRIVER
// =============================================================================

func TestAssignDriver_SynthesizesLegAndCalculatesPay(t *testing.T) {
	// GIVEN: An OPEN load with two stops and no legs
	f := newFixture(t)
	f.addLoad(t, "L1", "08:00", "12:00", 2, "300")

	// WHEN: Assigning a driver
	res := f.assign(t, "L1", "drv-a")

	// THEN: One leg spans first to last stop, carrying the driver's truck
	require.True(t, res.OK(), res.Message)
	legs := f.legs(t, "L1")
	require.Len(t, legs, 1)
	assert.Equal(t, []string{legs[0].ID}, res.LegIDs)
	assert.Equal(t, "drv-a", legs[0].DriverID)
	assert.Equal(t, "T-A", legs[0].TruckID)
	assert.Equal(t, "L1-s1", legs[0].StartStopID)
	assert.Equal(t, "L1-s2", legs[0].EndStopID)
	assert.Equal(t, "300", legs[0].LoadedMiles.String())
	assert.Equal(t, freight.LegPending, legs[0].Status)

	// AND: The load cache and status follow
	load := f.load(t, "L1")
	assert.Equal(t, freight.LoadAssigned, load.Status)
	assert.Equal(t, "drv-a", load.PrimaryDriverID)

	// AND: Pay was calculated in the same operation
	rows := f.payables(t, legs[0].ID)
	require.Len(t, rows, 1)
	assert.Equal(t, "150.00", rows[0].TotalAmount.StringFixed(2))
}

func TestAssignDriver_BusinessRuleFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addLoad(t, "L1", "08:00", "12:00", 2, "300")
	f.addLoad(t, "SHORT", "08:00", "12:00", 1, "50")
	f.addLoad(t, "GONE", "08:00", "12:00", 2, "50")
	gone := f.load(t, "GONE")
	gone.Status = freight.LoadCanceled
	require.NoError(t, f.store.SaveLoad(ctx, *gone))

	tests := []struct {
		name    string
		load    string
		driver  string
		message string
	}{
		{"inactive driver", "L1", "drv-x", "not active"},
		{"unknown driver", "L1", "drv-404", "not found"},
		{"unknown load", "L404", "drv-a", "not found"},
		{"canceled load", "GONE", "drv-a", "canceled"},
		{"single stop", "SHORT", "drv-a", "at least 2 stops"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := f.assign(t, tt.load, tt.driver)
			assert.Equal(t, dispatch.StatusError, res.Status)
			assert.Contains(t, res.Message, tt.message)
		})
	}

	assert.Empty(t, f.legs(t, "SHORT"))
	assert.Equal(t, freight.LoadOpen, f.load(t, "L1").Status)
}

func TestAssignDriver_OverlapReturnsConflict(t *testing.T) {
	// GIVEN: Alice is on L1 from 08:00 to 12:00
	f := newFixture(t)
	f.addLoad(t, "L1", "08:00", "12:00", 2, "300")
	f.addLoad(t, "L2", "10:00", "14:00", 2, "200")
	require.True(t, f.assign(t, "L1", "drv-a").OK())

	// WHEN: Assigning her to L2 from 10:00 to 14:00
	res := f.assign(t, "L2", "drv-a")

	// THEN: The conflict names L1, and L2 is left untouched
	assert.Equal(t, dispatch.StatusConflict, res.Status)
	require.NotNil(t, res.Conflict)
	assert.Equal(t, "L1", res.Conflict.LoadID)
	assert.Equal(t, "ORD-L1", res.Conflict.OrderNumber)
	assert.Contains(t, res.Message, "ORD-L1")

	assert.Empty(t, f.legs(t, "L2"), "the synthesized leg is rolled back")
	assert.Equal(t, freight.LoadOpen, f.load(t, "L2").Status)

	// AND: Force skips the check
	forced, err := f.manager.AssignDriver(context.Background(), dispatch.AssignDriverInput{
		LoadID: "L2", DriverID: "drv-a", Force: true, Actor: dispatcher,
	})
	require.NoError(t, err)
	assert.True(t, forced.OK())
}

func TestAssignDriver_TouchingAndUnknownWindowsDoNotConflict(t *testing.T) {
	f := newFixture(t)
	f.addLoad(t, "L1", "08:00", "12:00", 2, "300")
	f.addLoad(t, "L2", "12:00", "16:00", 2, "200")
	f.addLoad(t, "L3", "TBD", "TBD", 2, "100")
	require.True(t, f.assign(t, "L1", "drv-a").OK())

	assert.True(t, f.assign(t, "L2", "drv-a").OK(), "back-to-back loads share only an endpoint")
	assert.True(t, f.assign(t, "L3", "drv-a").OK(), "unknown times are skipped")
}

func TestAssignDriverInternal_SkipsConflictDetection(t *testing.T) {
	f := newFixture(t)
	f.addLoad(t, "L1", "08:00", "12:00", 2, "300")
	f.addLoad(t, "L2", "09:00", "11:00", 2, "200")
	require.True(t, f.assign(t, "L1", "drv-a").OK())

	res, err := f.manager.AssignDriverInternal(context.Background(), "L2", "drv-a", generic.SystemActor)

	require.NoError(t, err)
	assert.True(t, res.OK())
	assert.Equal(t, "drv-a", f.load(t, "L2").PrimaryDriverID)
}

func TestAssignDriver_ReassignmentReplacesStalePay(t *testing.T) {
	// GIVEN: Alice assigned and paid
	f := newFixture(t)
	f.addLoad(t, "L1", "08:00", "12:00", 2, "300")
	require.True(t, f.assign(t, "L1", "drv-a").OK())
	legID := f.legs(t, "L1")[0].ID
	before := f.payables(t, legID)
	require.Len(t, before, 1)

	// WHEN: Reassigning to Bob
	require.True(t, f.assign(t, "L1", "drv-b").OK())

	// THEN: Alice's row is gone and Bob earns the same amount
	after := f.payables(t, legID)
	require.Len(t, after, 1)
	assert.NotEqual(t, before[0].ID, after[0].ID)
	assert.Equal(t, "drv-b", after[0].PayeeID)
	assert.True(t, before[0].TotalAmount.Equal(after[0].TotalAmount))
	assert.Equal(t, "T-B", f.legs(t, "L1")[0].TruckID)
}

func TestAssignDriver_LockedManualPayableSurvivesReassignment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addLoad(t, "L1", "08:00", "12:00", 2, "300")
	require.True(t, f.assign(t, "L1", "drv-a").OK())
	legID := f.legs(t, "L1")[0].ID

	manual, err := f.ledger.CreateManual(ctx, pay.ManualPayableInput{
		OrgID: testOrg, PayeeType: freight.PayeeDriver, PayeeID: "drv-a", LegID: legID,
		Description: "Lumper", Quantity: decimal.NewFromInt(1), Rate: decimal.NewFromInt(85),
	}, dispatcher)
	require.NoError(t, err)
	_, err = f.ledger.SetLocked(ctx, manual.ID, true, dispatcher)
	require.NoError(t, err)

	require.True(t, f.assign(t, "L1", "drv-b").OK())

	got, err := f.store.GetPayable(ctx, manual.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "drv-a", got.PayeeID)
	assert.Equal(t, "85.00", got.TotalAmount.StringFixed(2))
	assert.True(t, got.IsLocked)
}

// =============================================================================
// CARRIERS & UNASSIGN
// =============================================================================

func TestAssignCarrier_ClearsDriverKeepsTrailer(t *testing.T) {
	// GIVEN: A driver on the load with a trailer
	f := newFixture(t)
	ctx := context.Background()
	f.addLoad(t, "L1", "08:00", "12:00", 2, "300")
	res, err := f.manager.AssignDriver(ctx, dispatch.AssignDriverInput{
		LoadID: "L1", DriverID: "drv-a", TrailerID: "TRL-9", Actor: dispatcher,
	})
	require.NoError(t, err)
	require.True(t, res.OK())

	// WHEN: Handing the load to a carrier (power only)
	res, err = f.manager.AssignCarrier(ctx, dispatch.AssignCarrierInput{LoadID: "L1", PartnershipID: "car-1", Actor: dispatcher})
	require.NoError(t, err)
	require.True(t, res.OK())

	// THEN: Driver and truck are cleared, the trailer stays
	leg := f.legs(t, "L1")[0]
	assert.Equal(t, "car-1", leg.CarrierPartnershipID)
	assert.Empty(t, leg.DriverID)
	assert.Empty(t, leg.TruckID)
	assert.Equal(t, "TRL-9", leg.TrailerID)
	assert.Equal(t, pay.WarningNoProfile, leg.PayWarning, "no carrier profile is configured")

	load := f.load(t, "L1")
	assert.Equal(t, "car-1", load.PrimaryCarrierID)
	assert.Empty(t, load.PrimaryDriverID)

	assert.Empty(t, f.payables(t, leg.ID), "driver pay was dropped")
}

func TestUnassignResource_IsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addLoad(t, "L1", "08:00", "12:00", 2, "300")
	require.True(t, f.assign(t, "L1", "drv-a").OK())

	res, err := f.manager.UnassignResource(ctx, "L1", dispatcher)
	require.NoError(t, err)
	require.True(t, res.OK())
	assert.Len(t, res.LegIDs, 1)

	leg := f.legs(t, "L1")[0]
	assert.Empty(t, leg.DriverID)
	assert.Empty(t, leg.TruckID)
	assert.Empty(t, f.payables(t, leg.ID))
	load := f.load(t, "L1")
	assert.Equal(t, freight.LoadOpen, load.Status)
	assert.Empty(t, load.PrimaryDriverID)

	// Second run changes nothing and still succeeds
	again, err := f.manager.UnassignResource(ctx, "L1", dispatcher)
	require.NoError(t, err)
	assert.True(t, again.OK())
	assert.Empty(t, again.LegIDs)
}

func TestUnassignResource_KeepsInTransitStatus(t *testing.T) {
	// GIVEN: A load already rolling
	f := newFixture(t)
	ctx := context.Background()
	f.addLoad(t, "L1", "08:00", "12:00", 2, "300")
	require.True(t, f.assign(t, "L1", "drv-a").OK())
	load := f.load(t, "L1")
	load.Status = freight.LoadInTransit
	require.NoError(t, f.store.SaveLoad(ctx, *load))

	// WHEN: Unassigning it
	res, err := f.manager.UnassignResource(ctx, "L1", dispatcher)

	// THEN: Resources are cleared but the status stays
	require.NoError(t, err)
	require.True(t, res.OK())
	load = f.load(t, "L1")
	assert.Equal(t, freight.LoadInTransit, load.Status)
	assert.Empty(t, load.PrimaryDriverID)
}

func TestRemoveDriver_DeletesAllLegPayablesAndRebuildsCache(t *testing.T) {
	// GIVEN: A relay with Alice on leg 1 and Bob on leg 2, plus a locked
	// manual row on Alice's leg
	f := newFixture(t)
	ctx := context.Background()
	f.addLoad(t, "L1", "08:00", "20:00", 3, "900")
	require.True(t, f.assign(t, "L1", "drv-a").OK())
	res, err := f.manager.SplitAtStop(ctx, dispatch.SplitInput{
		LoadID: "L1", SplitStopID: "L1-s2", NewDriverID: "drv-b", Actor: dispatcher,
	})
	require.NoError(t, err)
	require.True(t, res.OK(), res.Message)
	first := f.legs(t, "L1")[0]

	manual, err := f.ledger.CreateManual(ctx, pay.ManualPayableInput{
		OrgID: testOrg, PayeeType: freight.PayeeDriver, PayeeID: "drv-a", LegID: first.ID,
		Description: "Layover", Quantity: decimal.NewFromInt(1), Rate: decimal.NewFromInt(100),
	}, dispatcher)
	require.NoError(t, err)
	_, err = f.ledger.SetLocked(ctx, manual.ID, true, dispatcher)
	require.NoError(t, err)

	// WHEN: Removing Alice from leg 1
	res, err = f.manager.RemoveDriver(ctx, first.ID, dispatcher)
	require.NoError(t, err)
	require.True(t, res.OK())

	// THEN: Every payable on the leg is gone, locked or not
	assert.Empty(t, f.payables(t, first.ID))

	// AND: The cache falls back to the remaining driver
	assert.Equal(t, "drv-b", f.load(t, "L1").PrimaryDriverID)
}

// =============================================================================
// LEG STATUS
// =============================================================================

func TestTransitionLeg_StateMachine(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addLoad(t, "L1", "08:00", "12:00", 2, "300")
	require.True(t, f.assign(t, "L1", "drv-a").OK())
	legID := f.legs(t, "L1")[0].ID

	// PENDING cannot jump to COMPLETED
	_, err := f.manager.TransitionLeg(ctx, legID, freight.LegCompleted, dispatcher)
	require.Error(t, err)
	assert.ErrorIs(t, err, generic.ErrInvalidTransition)

	// PENDING -> ACTIVE puts the load in transit
	leg, err := f.manager.TransitionLeg(ctx, legID, freight.LegActive, dispatcher)
	require.NoError(t, err)
	assert.Equal(t, freight.LegActive, leg.Status)
	assert.Equal(t, freight.LoadInTransit, f.load(t, "L1").Status)

	// ACTIVE -> COMPLETED finishes the only leg and the load
	_, err = f.manager.TransitionLeg(ctx, legID, freight.LegCompleted, dispatcher)
	require.NoError(t, err)
	load := f.load(t, "L1")
	assert.Equal(t, freight.LoadCompleted, load.Status)
	assert.NotNil(t, load.CompletedAt)
	assert.NotNil(t, load.DeliveredAt)
	assert.Len(t, f.payables(t, legID), 1, "completion recalculates pay")

	// COMPLETED is terminal
	_, err = f.manager.TransitionLeg(ctx, legID, freight.LegCanceled, dispatcher)
	assert.ErrorIs(t, err, generic.ErrInvalidTransition)

	_, err = f.manager.TransitionLeg(ctx, "leg-404", freight.LegActive, dispatcher)
	assert.True(t, generic.IsNotFound(err))
}

func TestTransitionLeg_CancelDropsPayAndBlocksRecalculation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addLoad(t, "L1", "08:00", "12:00", 2, "300")
	require.True(t, f.assign(t, "L1", "drv-a").OK())
	legID := f.legs(t, "L1")[0].ID

	_, err := f.manager.TransitionLeg(ctx, legID, freight.LegCanceled, dispatcher)
	require.NoError(t, err)
	assert.Empty(t, f.payables(t, legID))

	_, err = f.manager.RecalculateLeg(ctx, legID, dispatcher)
	assert.ErrorIs(t, err, generic.ErrInvalidTransition)

	// With its only leg canceled the load has nothing left to assign
	res := f.assign(t, "L1", "drv-b")
	assert.Equal(t, dispatch.StatusError, res.Status)
	assert.Contains(t, res.Message, "no open legs")
}

// =============================================================================
// AVAILABILITY
// =============================================================================

func TestGetAvailableDrivers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addLoad(t, "L1", "08:00", "12:00", 2, "300")
	require.True(t, f.assign(t, "L1", "drv-a").OK())

	at := func(clock string) time.Time {
		ts, ok := generic.ParseStopDateTime("2030-01-15", clock)
		require.True(t, ok)
		return ts
	}
	names := func(list []dispatch.AvailableDriver) []string {
		out := make([]string, len(list))
		for i, d := range list {
			out[i] = d.ID
		}
		return out
	}

	busy, err := f.manager.GetAvailableDrivers(ctx, testOrg, at("09:00"), at("10:00"), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"drv-b"}, names(busy), "Alice is on L1; Xavier is inactive")

	after, err := f.manager.GetAvailableDrivers(ctx, testOrg, at("12:00"), at("13:00"), "")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"drv-a", "drv-b"}, names(after))
	for _, d := range after {
		if d.ID == "drv-a" {
			assert.Equal(t, 1, d.OpenLegs)
		}
	}

	excluded, err := f.manager.GetAvailableDrivers(ctx, testOrg, at("09:00"), at("10:00"), "L1")
	require.NoError(t, err)
	assert.Len(t, excluded, 2)

	_, err = f.manager.GetAvailableDrivers(ctx, testOrg, at("10:00"), at("09:00"), "")
	assert.True(t, generic.IsClientError(err))
}
