package dispatch_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/freight-engine/dispatch"
	"github.com/warp/freight-engine/freight"
	"github.com/warp/freight-engine/generic"
)

// =============================================================================
// ROUTE MATCHING
// =============================================================================

func route(id, hcr, trip, driver string, priority int) freight.RouteAssignment {
	return freight.RouteAssignment{
		ID: id, OrgID: testOrg, HCR: hcr, TripNumber: trip,
		DriverID: driver, Priority: priority, IsActive: true,
	}
}

func TestMatchRoute(t *testing.T) {
	inactive := route("r-off", "HCR-1", "T1", "drv-z", 1)
	inactive.IsActive = false
	empty := route("r-empty", "HCR-1", "T1", "", 1)

	routes := []freight.RouteAssignment{
		route("r-wild", "HCR-1", "*", "drv-w", 100),
		route("r-exact", "HCR-1", "T1", "drv-e", 100),
		route("r-blank", "HCR-2", "", "drv-b", 100),
		route("r-cheap-wild", "HCR-3", "*", "drv-cw", 10),
		route("r-dear-exact", "HCR-3", "T9", "drv-de", 50),
		inactive,
		empty,
	}

	tests := []struct {
		name string
		hcr  string
		trip string
		want string
	}{
		{"exact beats wildcard on equal priority", "HCR-1", "T1", "r-exact"},
		{"wildcard covers other trips", "HCR-1", "T2", "r-wild"},
		{"blank trip is a wildcard", "HCR-2", "anything", "r-blank"},
		{"lower priority wins over exact", "HCR-3", "T9", "r-cheap-wild"},
		{"case and spaces ignored", " hcr-1 ", "t1", "r-exact"},
		{"unknown hcr", "HCR-404", "T1", ""},
		{"load without hcr", "", "T1", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := dispatch.MatchRoute(routes, tt.hcr, tt.trip)
			if tt.want == "" {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.ID)
		})
	}
}

// =============================================================================
// AUTO ASSIGNER
// =============================================================================

func (f *fixture) addRouteLoad(t *testing.T, id, hcr, trip string) {
	t.Helper()
	f.addLoad(t, id, "08:00", "12:00", 2, "300")
	l := f.load(t, id)
	l.HCR = hcr
	l.TripNumber = trip
	require.NoError(t, f.store.SaveLoad(context.Background(), *l))
}

func TestAutoAssigner_OnLoadCreated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.SaveRouteAssignment(ctx, route("r1", "HCR-1", "*", "drv-a", 100)))
	auto := dispatch.NewAutoAssigner(f.store, f.manager, nil)

	// Without settings nothing is attempted
	f.addRouteLoad(t, "L1", "HCR-1", "T1")
	res, err := auto.OnLoadCreated(ctx, "L1")
	require.NoError(t, err)
	assert.Nil(t, res)

	// With trigger-on-create the route driver is assigned by the system
	require.NoError(t, f.store.SaveAutoAssignSettings(ctx, freight.AutoAssignSettings{OrgID: testOrg, TriggerOnCreate: true}))
	res, err = auto.OnLoadCreated(ctx, "L1")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.True(t, res.OK())
	assert.Equal(t, "drv-a", f.load(t, "L1").PrimaryDriverID)

	entries, err := f.store.QueryAudit(ctx, generic.AuditFilter{EntityID: "L1", Actions: []generic.AuditAction{generic.AuditAutoAssigned}})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, generic.SystemActor.ID, entries[0].PerformedBy)

	// Loads without an HCR are ignored
	f.addLoad(t, "L2", "13:00", "14:00", 2, "50")
	res, err = auto.OnLoadCreated(ctx, "L2")
	require.NoError(t, err)
	assert.Nil(t, res)

	_, err = auto.OnLoadCreated(ctx, "L404")
	assert.True(t, generic.IsNotFound(err))
}

func TestAutoAssigner_CarrierRoute(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := route("r1", "HCR-7", "*", "", 100)
	r.CarrierPartnershipID = "car-1"
	f.addRouteLoad(t, "L1", "HCR-7", "T1")

	res, matched, err := dispatch.NewAutoAssigner(f.store, f.manager, nil).
		AssignLoad(ctx, *f.load(t, "L1"), []freight.RouteAssignment{r})

	require.NoError(t, err)
	assert.True(t, matched)
	assert.True(t, res.OK())
	assert.Equal(t, "car-1", f.load(t, "L1").PrimaryCarrierID)
}

func TestAutoAssigner_SweepHonorsScheduleAndInterval(t *testing.T) {
	// GIVEN: Scheduled auto-assign every 30 minutes and two OPEN route loads
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.SaveRouteAssignment(ctx, route("r1", "HCR-1", "T1", "drv-a", 100)))
	require.NoError(t, f.store.SaveRouteAssignment(ctx, route("r2", "HCR-1", "T2", "drv-x", 100)))
	f.addRouteLoad(t, "L1", "HCR-1", "T1")
	f.addRouteLoad(t, "L2", "HCR-1", "T2")
	f.addRouteLoad(t, "L3", "HCR-9", "T1")
	auto := dispatch.NewAutoAssigner(f.store, f.manager, nil)
	now := time.Date(2030, 1, 14, 9, 0, 0, 0, time.UTC)

	// Disabled orgs are skipped
	summary, err := auto.Sweep(ctx, testOrg, now)
	require.NoError(t, err)
	assert.False(t, summary.Ran)

	require.NoError(t, f.store.SaveAutoAssignSettings(ctx, freight.AutoAssignSettings{
		OrgID: testOrg, ScheduledEnabled: true, ScheduleIntervalMinutes: 30,
	}))

	// WHEN: Sweeping
	summary, err = auto.Sweep(ctx, testOrg, now)

	// THEN: L1 is assigned, L2's inactive driver fails on its own, L3 has no route
	require.NoError(t, err)
	assert.True(t, summary.Ran)
	assert.Equal(t, 3, summary.Checked)
	assert.Equal(t, 1, summary.Assigned)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, freight.LoadOpen, f.load(t, "L2").Status)

	settings, err := f.store.GetAutoAssignSettings(ctx, testOrg)
	require.NoError(t, err)
	require.NotNil(t, settings.LastRunAt)
	assert.True(t, now.Equal(*settings.LastRunAt))

	// AND: The next sweep waits for the interval
	summary, err = auto.Sweep(ctx, testOrg, now.Add(10*time.Minute))
	require.NoError(t, err)
	assert.False(t, summary.Ran)

	summary, err = auto.Sweep(ctx, testOrg, now.Add(30*time.Minute))
	require.NoError(t, err)
	assert.True(t, summary.Ran)
	assert.Equal(t, 2, summary.Checked, "only L2 and L3 are still OPEN")
}
