package api

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/freight-engine/freight"
	"github.com/warp/freight-engine/generic"
)

func TestScheduler_RunNowSweepsOpenLoadsOncePerInterval(t *testing.T) {
	// GIVEN: Dedicated routes with one load released back to OPEN
	h := setupTestHandler(t)
	ctx := context.Background()
	require.NoError(t, h.LoadScenarioByID(ctx, "dedicated-routes"))

	res, err := h.Dispatch.UnassignResource(ctx, "load-5001", generic.SystemActor)
	require.NoError(t, err)
	require.True(t, res.OK())

	now := time.Date(2030, 3, 4, 9, 0, 0, 0, time.UTC)
	ds := NewDispatchScheduler(h, nil)
	ds.Now = func() time.Time { return now }

	// WHEN: The scheduler runs
	summary := ds.RunNow(ctx)

	// THEN: The route driver is put back on the load
	assert.Equal(t, 1, summary.Orgs)
	assert.Equal(t, 1, summary.LoadsAssigned)
	assert.Equal(t, 0, summary.Errors)

	load, err := h.Store.GetLoad(ctx, "load-5001")
	require.NoError(t, err)
	assert.Equal(t, "drv-301", load.PrimaryDriverID)

	// AND: A second pass inside the 30 minute interval is throttled
	_, err = h.Dispatch.UnassignResource(ctx, "load-5001", generic.SystemActor)
	require.NoError(t, err)
	now = now.Add(10 * time.Minute)
	assert.Equal(t, 0, ds.RunNow(ctx).LoadsAssigned)

	now = now.Add(30 * time.Minute)
	assert.Equal(t, 1, ds.RunNow(ctx).LoadsAssigned)
}

func TestScheduler_RunNowGeneratesDueSettlements(t *testing.T) {
	// GIVEN: Weekly payroll whose settlement was voided and deleted
	h := setupTestHandler(t)
	ctx := context.Background()
	require.NoError(t, h.LoadScenarioByID(ctx, "weekly-payroll"))

	list, err := h.Settlements.List(ctx, freight.SettlementFilter{OrgID: DemoOrgID})
	require.NoError(t, err)
	require.Len(t, list, 1)
	_, err = h.Settlements.Void(ctx, list[0].ID, "regenerate", generic.SystemActor)
	require.NoError(t, err)
	require.NoError(t, h.Settlements.Delete(ctx, list[0].ID, generic.SystemActor))

	ds := NewDispatchScheduler(h, nil)

	// WHEN: The scheduler runs twice
	first := ds.RunNow(ctx)
	second := ds.RunNow(ctx)

	// THEN: The closed period is generated once and reused afterwards
	assert.Equal(t, 1, first.SettlementsGenerated)
	assert.Equal(t, 0, second.SettlementsGenerated)

	list, err = h.Settlements.List(ctx, freight.SettlementFilter{OrgID: DemoOrgID, Status: freight.SettlementDraft})
	require.NoError(t, err)
	require.Len(t, list, 1)

	totals, err := h.Settlements.Totals(ctx, list[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 2, totals.PayableCount)
}

func TestScheduler_DisabledDoesNotStart(t *testing.T) {
	h := setupTestHandler(t)
	ds := NewDispatchScheduler(h, nil)
	ds.Enabled = false

	ds.Start()
	defer ds.Stop()

	assert.Nil(t, ds.ticker)
}
