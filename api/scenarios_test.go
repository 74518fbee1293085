/*
scenarios_test.go - Tests for demo scenarios

PURPOSE:
	Tests that each scenario sets up the expected state:
	- Drivers, carriers and plans are created
	- Loads are assigned, split or auto-assigned
	- Pay is calculated by the default profile
	- Settlements are generated where the scenario says so

These tests run the full engine against an in-memory store, so they double
as integration tests.
*/
package api

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/freight-engine/freight"
	"github.com/warp/freight-engine/generic"
	"github.com/warp/freight-engine/store/sqlite"
)

func setupTestHandler(t *testing.T) *Handler {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return NewHandler(store, nil)
}

func payableTotal(rows []freight.Payable) decimal.Decimal {
	amounts := make([]decimal.Decimal, len(rows))
	for i, p := range rows {
		amounts[i] = p.TotalAmount
	}
	return generic.SumMoney(amounts...)
}

func TestScenario_CompanyDriver(t *testing.T) {
	// GIVEN: Company driver scenario
	// WHEN: Loading the scenario
	// THEN: The load is assigned and paid loaded miles plus hazmat

	h := setupTestHandler(t)
	ctx := context.Background()

	require.NoError(t, h.LoadScenarioByID(ctx, "company-driver"))

	load, err := h.Store.GetLoad(ctx, "load-1001")
	require.NoError(t, err)
	require.NotNil(t, load)
	assert.Equal(t, freight.LoadAssigned, load.Status)
	assert.Equal(t, "drv-001", load.PrimaryDriverID)

	legs, err := h.Store.ListLegsByLoad(ctx, "load-1001")
	require.NoError(t, err)
	require.Len(t, legs, 1)
	assert.Equal(t, "drv-001", legs[0].DriverID)
	assert.Equal(t, "T-101", legs[0].TruckID, "truck defaults to the driver's current truck")

	payables, err := h.Ledger.ListForLoad(ctx, "load-1001")
	require.NoError(t, err)
	assert.Len(t, payables, 2, "loaded miles and hazmat; two stops do not exceed the stop-pay threshold")
	assert.Equal(t, "305.44", payableTotal(payables).StringFixed(2))
}

func TestScenario_RelaySplit(t *testing.T) {
	// GIVEN: Relay split scenario
	// WHEN: Loading the scenario
	// THEN: The load has two legs with different drivers and miles split by stop ratio

	h := setupTestHandler(t)
	ctx := context.Background()

	require.NoError(t, h.LoadScenarioByID(ctx, "relay-split"))

	legs, err := h.Store.ListLegsByLoad(ctx, "load-2001")
	require.NoError(t, err)
	require.Len(t, legs, 2)

	assert.Equal(t, 1, legs[0].Sequence)
	assert.Equal(t, "drv-101", legs[0].DriverID)
	assert.Equal(t, "load-2001-s2", legs[0].EndStopID)
	assert.Equal(t, "693", legs[0].LoadedMiles.String())

	assert.Equal(t, 2, legs[1].Sequence)
	assert.Equal(t, "drv-102", legs[1].DriverID)
	assert.Equal(t, "load-2001-s2", legs[1].StartStopID)
	assert.Equal(t, "347", legs[1].LoadedMiles.String())

	load, err := h.Store.GetLoad(ctx, "load-2001")
	require.NoError(t, err)
	assert.Equal(t, "drv-101", load.PrimaryDriverID)
}

func TestScenario_PowerOnly(t *testing.T) {
	// GIVEN: Power-only carrier scenario
	// WHEN: Loading the scenario
	// THEN: The carrier holds the leg with the broker trailer and earns 85% plus tarp

	h := setupTestHandler(t)
	ctx := context.Background()

	require.NoError(t, h.LoadScenarioByID(ctx, "power-only"))

	legs, err := h.Store.ListLegsByLoad(ctx, "load-3001")
	require.NoError(t, err)
	require.Len(t, legs, 1)
	assert.Equal(t, "car-001", legs[0].CarrierPartnershipID)
	assert.Empty(t, legs[0].DriverID)
	assert.Empty(t, legs[0].TruckID)
	assert.Equal(t, "TRL-BROKER-7", legs[0].TrailerID)

	payables, err := h.Ledger.ListForLoad(ctx, "load-3001")
	require.NoError(t, err)
	require.Len(t, payables, 2)
	for _, p := range payables {
		assert.Equal(t, freight.PayeeCarrier, p.PayeeType)
	}
	assert.Equal(t, "2115.00", payableTotal(payables).StringFixed(2))
}

func TestScenario_WeeklyPayroll(t *testing.T) {
	// GIVEN: Weekly payroll scenario
	// WHEN: Loading the scenario
	// THEN: A DRAFT settlement for last week holds the leg pay and the lumper

	h := setupTestHandler(t)
	ctx := context.Background()

	require.NoError(t, h.LoadScenarioByID(ctx, "weekly-payroll"))

	load, err := h.Store.GetLoad(ctx, "load-4001")
	require.NoError(t, err)
	assert.Equal(t, freight.LoadCompleted, load.Status)
	assert.NotNil(t, load.CompletedAt)

	settlements, err := h.Settlements.List(ctx, freight.SettlementFilter{OrgID: DemoOrgID, PayeeID: "drv-201"})
	require.NoError(t, err)
	require.Len(t, settlements, 1)
	st := settlements[0]
	assert.Equal(t, freight.SettlementDraft, st.Status)
	assert.Equal(t, "plan-weekly", st.PayPlanID)
	assert.True(t, st.Period().Contains(*load.DeliveredAt))

	totals, err := h.Settlements.Totals(ctx, st.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, totals.PayableCount)
	assert.Equal(t, 1, totals.TotalLoads)
	assert.Equal(t, "308.20", totals.GrossTotal.StringFixed(2))
	assert.Equal(t, "85.00", totals.TotalManualAdjustments.StringFixed(2))
	assert.False(t, totals.Frozen)
}

func TestScenario_DedicatedRoutes(t *testing.T) {
	// GIVEN: Dedicated routes scenario
	// WHEN: Loading the scenario
	// THEN: The exact trip goes to its own driver, the other trip to the wildcard driver

	h := setupTestHandler(t)
	ctx := context.Background()

	require.NoError(t, h.LoadScenarioByID(ctx, "dedicated-routes"))

	first, err := h.Store.GetLoad(ctx, "load-5001")
	require.NoError(t, err)
	assert.Equal(t, "drv-301", first.PrimaryDriverID)
	assert.Equal(t, freight.LoadAssigned, first.Status)

	second, err := h.Store.GetLoad(ctx, "load-5002")
	require.NoError(t, err)
	assert.Equal(t, "drv-302", second.PrimaryDriverID)

	entries, err := h.Store.QueryAudit(ctx, generic.AuditFilter{
		OrgID:   DemoOrgID,
		Actions: []generic.AuditAction{generic.AuditAutoAssigned},
	})
	require.NoError(t, err)
	assert.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, generic.SystemActor.ID, e.PerformedBy)
	}
}

func TestScenario_ReloadResetsPreviousData(t *testing.T) {
	// GIVEN: One scenario loaded
	// WHEN: Loading another
	// THEN: Only the second scenario's data remains

	h := setupTestHandler(t)
	ctx := context.Background()

	require.NoError(t, h.LoadScenarioByID(ctx, "company-driver"))
	require.NoError(t, h.LoadScenarioByID(ctx, "power-only"))

	drivers, err := h.Store.ListDrivers(ctx, DemoOrgID)
	require.NoError(t, err)
	assert.Empty(t, drivers)

	load, err := h.Store.GetLoad(ctx, "load-1001")
	require.NoError(t, err)
	assert.Nil(t, load)
	assert.Equal(t, "power-only", h.currentScenario)
}

func TestScenario_UnknownID(t *testing.T) {
	h := setupTestHandler(t)

	err := h.LoadScenarioByID(context.Background(), "does-not-exist")
	require.Error(t, err)
	assert.True(t, generic.IsClientError(err))
}

func TestScenario_AllScenariosLoadWithoutError(t *testing.T) {
	// GIVEN: All available scenarios
	// WHEN: Loading each scenario
	// THEN: None should error

	for _, s := range scenarios {
		t.Run(s.ID, func(t *testing.T) {
			h := setupTestHandler(t)
			require.NoError(t, h.LoadScenarioByID(context.Background(), s.ID))
		})
	}
}
