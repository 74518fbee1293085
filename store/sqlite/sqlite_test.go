package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/freight-engine/freight"
	"github.com/warp/freight-engine/generic"
	"github.com/warp/freight-engine/store/sqlite"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_MissingRowsAreNil(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	d, err := store.GetDriver(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, d)

	l, err := store.GetLeg(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, l)

	s, err := store.GetSettlement(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, s)

	settings, err := store.GetAutoAssignSettings(ctx, "org-1")
	require.NoError(t, err)
	assert.Nil(t, settings)
}

func TestStore_LegHasAtMostOneHolder(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	leg := freight.Leg{
		ID: "leg-1", LoadID: "L1", OrgID: "org-1", Sequence: 1,
		StartStopID: "s1", EndStopID: "s2", Status: freight.LegPending,
		LoadedMiles: decimal.RequireFromString("412.5"),
	}
	require.NoError(t, store.SaveLeg(ctx, leg))

	got, err := store.GetLeg(ctx, "leg-1")
	require.NoError(t, err)
	assert.Equal(t, "412.5", got.LoadedMiles.String())
	assert.Empty(t, got.DriverID)

	leg.DriverID = "drv-1"
	leg.CarrierPartnershipID = "car-1"
	assert.Error(t, store.SaveLeg(ctx, leg))
}

func TestStore_SaveRateProfileDemotesPreviousDefault(t *testing.T) {
	// GIVEN: A default driver profile
	store := newStore(t)
	ctx := context.Background()
	profile := func(id string) freight.RateProfile {
		return freight.RateProfile{
			ID: id, OrgID: "org-1", Name: id, ProfileType: freight.PayeeDriver,
			PayBasis: freight.BasisMileage, IsActive: true, IsDefault: true,
			Rules: []freight.RateRule{
				{Name: "Loaded", Category: freight.CategoryBase, Trigger: freight.TriggerMileLoaded, Rate: decimal.RequireFromString("0.55"), IsActive: true},
				{Name: "Stops", Category: freight.CategoryAccessorial, Trigger: freight.TriggerCountStops, Rate: decimal.RequireFromString("20"), MinThreshold: generic.DecimalPtr(decimal.NewFromInt(2)), IsActive: true},
			},
		}
	}
	require.NoError(t, store.SaveRateProfile(ctx, profile("p-old")))

	// WHEN: Saving a second default of the same type
	require.NoError(t, store.SaveRateProfile(ctx, profile("p-new")))

	// THEN: Only the new one is the default
	def, err := store.GetDefaultRateProfile(ctx, "org-1", freight.PayeeDriver)
	require.NoError(t, err)
	require.NotNil(t, def)
	assert.Equal(t, "p-new", def.ID)

	old, err := store.GetRateProfile(ctx, "p-old")
	require.NoError(t, err)
	assert.False(t, old.IsDefault)

	// AND: Rules come back in their saved order with thresholds intact
	require.Len(t, def.Rules, 2)
	assert.Equal(t, freight.TriggerMileLoaded, def.Rules[0].Trigger)
	require.NotNil(t, def.Rules[1].MinThreshold)
	assert.Equal(t, "2", def.Rules[1].MinThreshold.String())
	assert.Nil(t, def.Rules[1].MaxCap)

	// AND: Re-saving replaces the rule set
	updated := profile("p-new")
	updated.Rules = updated.Rules[:1]
	require.NoError(t, store.SaveRateProfile(ctx, updated))
	def, err = store.GetRateProfile(ctx, "p-new")
	require.NoError(t, err)
	assert.Len(t, def.Rules, 1)
}

func TestStore_SaveProfileAssignmentKeepsOneDefault(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	for _, id := range []string{"a-1", "a-2"} {
		require.NoError(t, store.SaveProfileAssignment(ctx, freight.ProfileAssignment{
			ID: id, OrgID: "org-1", SubjectType: freight.PayeeDriver, SubjectID: "drv-1",
			ProfileID: "p-" + id, Strategy: freight.StrategyAlwaysActive, IsDefault: true,
		}))
	}

	got, err := store.ListProfileAssignments(ctx, freight.PayeeDriver, "drv-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a-2", got[0].ID, "default first")
	assert.True(t, got[0].IsDefault)
	assert.False(t, got[1].IsDefault)
}

func TestStore_WithTxRollsBackOnError(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.WithTx(ctx, func(tx freight.Store) error {
		require.NoError(t, tx.SaveDriver(ctx, freight.Driver{ID: "drv-1", OrgID: "org-1", Name: "Ann", Status: freight.PartyActive}))
		// Nested calls join the outer transaction.
		return tx.WithTx(ctx, func(inner freight.Store) error {
			d, err := inner.GetDriver(ctx, "drv-1")
			require.NoError(t, err)
			require.NotNil(t, d)
			return boom
		})
	})

	assert.ErrorIs(t, err, boom)
	d, err := store.GetDriver(ctx, "drv-1")
	require.NoError(t, err)
	assert.Nil(t, d)
}

func TestStore_PayablesRoundTrip(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	created := time.Date(2030, 1, 15, 8, 30, 0, 0, time.UTC)

	for i, id := range []string{"p-2", "p-1"} {
		require.NoError(t, store.SavePayable(ctx, freight.Payable{
			ID: id, OrgID: "org-1", PayeeType: freight.PayeeDriver, PayeeID: "drv-1",
			LoadID: "L1", LegID: "leg-1", Description: "Loaded miles",
			Quantity: decimal.RequireFromString("300"), Rate: decimal.RequireFromString("0.55"),
			TotalAmount: decimal.RequireFromString("165.00"), SourceType: freight.SourceSystem,
			Category: freight.CategoryBase, HeldFromSettlementID: "st-old",
			CreatedAt: created.Add(time.Duration(i) * time.Minute),
		}))
	}

	rows, err := store.ListPayablesByLeg(ctx, "leg-1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "p-2", rows[0].ID, "oldest first")
	assert.True(t, created.Equal(rows[0].CreatedAt))
	assert.Equal(t, "165", rows[0].TotalAmount.String())
	assert.True(t, rows[0].IsHeld())
	assert.Empty(t, rows[0].SettlementID)

	require.NoError(t, store.DeletePayable(ctx, "p-2"))
	rows, err = store.ListPayablesByPayee(ctx, freight.PayeeDriver, "drv-1")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestStore_StatementNumbersArePerOrg(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	for _, want := range []string{"ST-000001", "ST-000002"} {
		got, err := store.NextStatementNumber(ctx, "org-1")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	got, err := store.NextStatementNumber(ctx, "org-2")
	require.NoError(t, err)
	assert.Equal(t, "ST-000001", got)
}

func TestStore_SettlementFrozenTotals(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	st := freight.Settlement{
		ID: "st-1", OrgID: "org-1", PayeeType: freight.PayeeCarrier, PayeeID: "car-1",
		PeriodStart: time.Date(2030, 1, 14, 0, 0, 0, 0, time.UTC),
		PeriodEnd:   time.Date(2030, 1, 21, 0, 0, 0, 0, time.UTC),
		Status:      freight.SettlementDraft, StatementNumber: "ST-000001",
	}
	require.NoError(t, store.SaveSettlement(ctx, st))

	got, err := store.GetSettlement(ctx, "st-1")
	require.NoError(t, err)
	assert.Nil(t, got.GrossTotal)
	assert.Nil(t, got.TotalLoads)

	loads := 3
	got.Status = freight.SettlementApproved
	got.GrossTotal = generic.DecimalPtr(decimal.RequireFromString("1234.56"))
	got.TotalLoads = &loads
	require.NoError(t, store.SaveSettlement(ctx, *got))

	got, err = store.GetSettlement(ctx, "st-1")
	require.NoError(t, err)
	assert.Equal(t, "1234.56", got.GrossTotal.StringFixed(2))
	assert.Equal(t, 3, *got.TotalLoads)

	found, err := store.FindSettlement(ctx, freight.PayeeCarrier, "car-1", st.PeriodStart)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "st-1", found.ID)

	// Statement numbers are unique per org
	dup := st
	dup.ID = "st-2"
	assert.Error(t, store.SaveSettlement(ctx, dup))
}

func TestStore_AuditFilters(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	base := time.Date(2030, 1, 15, 8, 0, 0, 0, time.UTC)

	for i, e := range []generic.AuditEntry{
		{OrgID: "org-1", EntityType: "load", EntityID: "L1", Action: generic.AuditDriverAssigned, PerformedBy: "u-1"},
		{OrgID: "org-1", EntityType: "load", EntityID: "L1", Action: generic.AuditResourceUnassigned, PerformedBy: "u-1",
			Before: map[string]any{"driver_id": "drv-1"}},
		{OrgID: "org-2", EntityType: "load", EntityID: "L9", Action: generic.AuditDriverAssigned},
	} {
		e.Timestamp = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, store.AppendAudit(ctx, e))
	}

	entries, err := store.QueryAudit(ctx, generic.AuditFilter{OrgID: "org-1"})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, generic.AuditResourceUnassigned, entries[0].Action, "newest first")
	assert.Equal(t, "drv-1", entries[0].Before["driver_id"])

	entries, err = store.QueryAudit(ctx, generic.AuditFilter{Actions: []generic.AuditAction{generic.AuditDriverAssigned}})
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	from := base.Add(time.Minute)
	entries, err = store.QueryAudit(ctx, generic.AuditFilter{From: &from, Limit: 1})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "L9", entries[0].EntityID)
}

func TestStore_Reset(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveDriver(ctx, freight.Driver{ID: "drv-1", OrgID: "org-1", Name: "Ann", Status: freight.PartyActive}))

	require.NoError(t, store.Reset(ctx))

	drivers, err := store.ListDrivers(ctx, "org-1")
	require.NoError(t, err)
	assert.Empty(t, drivers)
}
