/*
handlers_test.go - HTTP tests for API handlers

Tests for:
- Driver and load creation, request validation
- Assignment outcomes and their status codes (SUCCESS/CONFLICT/ERROR)
- Leg lifecycle errors
- Settlement lifecycle, statement export and bulk operations
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

type testServer struct {
	h      *Handler
	router http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	h := setupTestHandler(t)
	return &testServer{h: h, router: NewRouter(h, DefaultRouterOptions())}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "dispatcher-1")
	req.Header.Set("X-User-Name", "Test Dispatcher")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (s *testServer) createDriver(t *testing.T, id, truck string) {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/drivers", map[string]any{
		"id": id, "name": "Driver " + id, "current_truck_id": truck,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

// createLoad posts a two-stop load on date with the given window times.
func (s *testServer) createLoad(t *testing.T, id, date, begin, end string) LoadDTO {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/loads", map[string]any{
		"id":              id,
		"order_number":    "ORD-" + id,
		"effective_miles": "300",
		"stops": []map[string]any{
			{"id": id + "-a", "stop_type": "PICKUP", "city": "Dallas", "state": "TX",
				"window_begin_date": date, "window_begin_time": begin, "window_end_date": date, "window_end_time": begin},
			{"id": id + "-b", "stop_type": "DELIVERY", "city": "Austin", "state": "TX",
				"window_begin_date": date, "window_begin_time": end, "window_end_date": date, "window_end_time": end},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[LoadDTO](t, rec)
}

// =============================================================================
// DRIVERS & LOADS
// =============================================================================

func TestHealthz(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateDriver_AndGet(t *testing.T) {
	// GIVEN: A created driver
	s := newTestServer(t)
	s.createDriver(t, "drv-1", "T-9")

	// WHEN: Fetching it
	rec := s.do(t, http.MethodGet, "/api/drivers/drv-1", nil)

	// THEN: It is active with no open legs
	require.Equal(t, http.StatusOK, rec.Code)
	d := decode[DriverDTO](t, rec)
	assert.Equal(t, "ACTIVE", d.Status)
	assert.Equal(t, "T-9", d.CurrentTruckID)
	require.NotNil(t, d.OpenLegs)
	assert.Equal(t, 0, *d.OpenLegs)

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/drivers/missing", nil).Code)
}

func TestCreateDriver_ValidationError(t *testing.T) {
	// GIVEN: A driver request without a name and a three-letter state
	s := newTestServer(t)

	// WHEN: Posting it
	rec := s.do(t, http.MethodPost, "/api/drivers", map[string]any{"current_state": "TEX"})

	// THEN: 400 with per-field details keyed by JSON name
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp struct {
		Code    string            `json:"code"`
		Details map[string]string `json:"details"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "VALIDATION_ERROR", resp.Code)
	assert.Contains(t, resp.Details, "name")
	assert.Contains(t, resp.Details, "current_state")
}

func TestCreateLoad_DuplicateSequenceRejected(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/loads", map[string]any{
		"order_number": "ORD-DUP",
		"stops": []map[string]any{
			{"sequence_number": 1, "stop_type": "PICKUP"},
			{"sequence_number": 1, "stop_type": "DELIVERY"},
		},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateLoad_StartsOpenWithoutLegs(t *testing.T) {
	s := newTestServer(t)

	load := s.createLoad(t, "L1", "2030-01-15", "08:00", "12:00")

	assert.Equal(t, "OPEN", load.Status)
	assert.Len(t, load.Stops, 2)
	assert.Empty(t, load.Legs)
	assert.Nil(t, load.AutoAssign, "org has no auto-assign settings")
}

// =============================================================================
// ASSIGNMENT
// =============================================================================

func TestAssignDriver_Success(t *testing.T) {
	// GIVEN: A driver and an OPEN load
	s := newTestServer(t)
	s.createDriver(t, "drv-1", "T-1")
	s.createLoad(t, "L1", "2030-01-15", "08:00", "12:00")

	// WHEN: Assigning the driver
	rec := s.do(t, http.MethodPost, "/api/loads/L1/assign-driver", map[string]any{"driver_id": "drv-1"})

	// THEN: SUCCESS with the created leg, and the load is ASSIGNED
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[ResultDTO](t, rec)
	assert.Equal(t, "SUCCESS", res.Status)
	assert.Len(t, res.LegIDs, 1)

	load := decode[LoadDTO](t, s.do(t, http.MethodGet, "/api/loads/L1", nil))
	assert.Equal(t, "ASSIGNED", load.Status)
	assert.Equal(t, "drv-1", load.PrimaryDriverID)
	require.Len(t, load.Legs, 1)
	assert.Equal(t, "T-1", load.Legs[0].TruckID)
	assert.Equal(t, "no pay profile configured", load.Legs[0].PayWarning)
}

func TestAssignDriver_ConflictReturns409(t *testing.T) {
	// GIVEN: A driver already on a load 08:00-12:00
	s := newTestServer(t)
	s.createDriver(t, "drv-1", "T-1")
	s.createLoad(t, "L1", "2030-01-15", "08:00", "12:00")
	s.createLoad(t, "L2", "2030-01-15", "10:00", "14:00")
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/loads/L1/assign-driver", map[string]any{"driver_id": "drv-1"}).Code)

	// WHEN: Assigning them to an overlapping load
	rec := s.do(t, http.MethodPost, "/api/loads/L2/assign-driver", map[string]any{"driver_id": "drv-1"})

	// THEN: 409 naming the conflicting load, and L2 is untouched
	require.Equal(t, http.StatusConflict, rec.Code)
	res := decode[ResultDTO](t, rec)
	assert.Equal(t, "CONFLICT", res.Status)
	require.NotNil(t, res.ConflictingLoad)
	assert.Equal(t, "L1", res.ConflictingLoad.LoadID)
	assert.Equal(t, "ORD-L1", res.ConflictingLoad.OrderNumber)

	load := decode[LoadDTO](t, s.do(t, http.MethodGet, "/api/loads/L2", nil))
	assert.Equal(t, "OPEN", load.Status)
	assert.Empty(t, load.Legs, "rejected assignment rolls back the leg it created")

	// AND: Force overrides the check
	rec = s.do(t, http.MethodPost, "/api/loads/L2/assign-driver", map[string]any{"driver_id": "drv-1", "force": true})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAssignDriver_TouchingWindowsDoNotConflict(t *testing.T) {
	s := newTestServer(t)
	s.createDriver(t, "drv-1", "T-1")
	s.createLoad(t, "L1", "2030-01-15", "08:00", "12:00")
	s.createLoad(t, "L2", "2030-01-15", "12:00", "16:00")
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/loads/L1/assign-driver", map[string]any{"driver_id": "drv-1"}).Code)

	rec := s.do(t, http.MethodPost, "/api/loads/L2/assign-driver", map[string]any{"driver_id": "drv-1"})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestAssignDriver_UnknownDriverIsError(t *testing.T) {
	s := newTestServer(t)
	s.createLoad(t, "L1", "2030-01-15", "08:00", "12:00")

	rec := s.do(t, http.MethodPost, "/api/loads/L1/assign-driver", map[string]any{"driver_id": "ghost"})

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	res := decode[ResultDTO](t, rec)
	assert.Equal(t, "ERROR", res.Status)
	assert.Contains(t, res.Message, "not found")
}

func TestUnassign_IsIdempotent(t *testing.T) {
	// GIVEN: An assigned load
	s := newTestServer(t)
	s.createDriver(t, "drv-1", "T-1")
	s.createLoad(t, "L1", "2030-01-15", "08:00", "12:00")
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/loads/L1/assign-driver", map[string]any{"driver_id": "drv-1"}).Code)

	// WHEN: Unassigning twice
	first := s.do(t, http.MethodPost, "/api/loads/L1/unassign", nil)
	second := s.do(t, http.MethodPost, "/api/loads/L1/unassign", nil)

	// THEN: Both succeed and the load is OPEN again
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Empty(t, decode[ResultDTO](t, second).LegIDs)

	load := decode[LoadDTO](t, s.do(t, http.MethodGet, "/api/loads/L1", nil))
	assert.Equal(t, "OPEN", load.Status)
	assert.Empty(t, load.PrimaryDriverID)
}

func TestTransitionLeg_IllegalMoveReturns409(t *testing.T) {
	s := newTestServer(t)
	s.createDriver(t, "drv-1", "T-1")
	s.createLoad(t, "L1", "2030-01-15", "08:00", "12:00")
	res := decode[ResultDTO](t, s.do(t, http.MethodPost, "/api/loads/L1/assign-driver", map[string]any{"driver_id": "drv-1"}))
	require.Len(t, res.LegIDs, 1)
	legID := res.LegIDs[0]

	// PENDING cannot jump to COMPLETED
	rec := s.do(t, http.MethodPost, "/api/legs/"+legID+"/status", map[string]any{"status": "COMPLETED"})
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "INVALID_TRANSITION", decode[ErrorResponse](t, rec).Code)

	rec = s.do(t, http.MethodPost, "/api/legs/"+legID+"/status", map[string]any{"status": "ACTIVE"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ACTIVE", decode[LegDTO](t, rec).Status)

	load := decode[LoadDTO](t, s.do(t, http.MethodGet, "/api/loads/L1", nil))
	assert.Equal(t, "IN_TRANSIT", load.Status)

	rec = s.do(t, http.MethodPost, "/api/legs/missing/status", map[string]any{"status": "ACTIVE"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRateProfile_AppliesToNewAssignments(t *testing.T) {
	// GIVEN: A default driver profile paying $0.50 per loaded mile
	s := newTestServer(t)
	rec := s.do(t, http.MethodPost, "/api/rate-profiles", map[string]any{
		"id": "p1", "name": "Half", "profile_type": "DRIVER", "is_default": true,
		"rules": []map[string]any{{"name": "Loaded", "trigger": "MILE_LOADED", "rate": "0.50"}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	s.createDriver(t, "drv-1", "T-1")
	s.createLoad(t, "L1", "2030-01-15", "08:00", "12:00")

	// WHEN: Assigning the driver
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/loads/L1/assign-driver", map[string]any{"driver_id": "drv-1"}).Code)

	// THEN: One SYSTEM payable of 300 x 0.50
	payables := decode[[]PayableDTO](t, s.do(t, http.MethodGet, "/api/loads/L1/payables", nil))
	require.Len(t, payables, 1)
	assert.Equal(t, "SYSTEM", payables[0].SourceType)
	assert.Equal(t, "150.00", payables[0].TotalAmount.StringFixed(2))
}

// =============================================================================
// SETTLEMENTS
// =============================================================================

// weeklySettlement loads the weekly payroll scenario and returns its DRAFT.
func weeklySettlement(t *testing.T, s *testServer) SettlementDTO {
	t.Helper()
	require.NoError(t, s.h.LoadScenarioByID(context.Background(), "weekly-payroll"))
	list := decode[[]SettlementDTO](t, s.do(t, http.MethodGet, "/api/settlements?payee_id=drv-201", nil))
	require.Len(t, list, 1)
	return list[0]
}

func TestSettlement_Lifecycle(t *testing.T) {
	s := newTestServer(t)
	st := weeklySettlement(t, s)
	base := "/api/settlements/" + st.ID
	assert.Equal(t, "DRAFT", st.Status)

	// Submit and approve freeze the totals
	rec := s.do(t, http.MethodPost, base+"/submit", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "PENDING", decode[SettlementDTO](t, rec).Status)

	rec = s.do(t, http.MethodPost, base+"/approve", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	approved := decode[SettlementDTO](t, rec)
	assert.Equal(t, "APPROVED", approved.Status)
	assert.Equal(t, "dispatcher-1", approved.ApprovedBy)
	require.NotNil(t, approved.GrossTotal)
	assert.Equal(t, "308.20", approved.GrossTotal.StringFixed(2))

	// Rows are read-only after approval
	detail := decode[SettlementDetailResponse](t, s.do(t, http.MethodGet, base, nil))
	assert.True(t, detail.Totals.Frozen)
	var manualID string
	for _, p := range detail.Payables {
		assert.True(t, p.IsLocked)
		if p.SourceType == "MANUAL" {
			manualID = p.ID
		}
	}
	require.NotEmpty(t, manualID)
	rec = s.do(t, http.MethodPut, base+"/adjustments/"+manualID, map[string]any{"description": "changed"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Pay, then void needs a reason
	rec = s.do(t, http.MethodPost, base+"/pay", map[string]any{"method": "ACH", "reference": "TRX-1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "PAID", decode[SettlementDTO](t, rec).Status)

	rec = s.do(t, http.MethodPost, base+"/void", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, base+"/void", map[string]any{"reason": "duplicate payment"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	voided := decode[SettlementDTO](t, rec)
	assert.Equal(t, "VOID", voided.Status)
	assert.Equal(t, "duplicate payment", voided.VoidReason)

	rec = s.do(t, http.MethodPost, base+"/void", map[string]any{"reason": "again"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Delete frees the rows
	rec = s.do(t, http.MethodDelete, base, nil)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, base, nil).Code)

	unassigned := decode[[]PayableDTO](t, s.do(t, http.MethodGet, "/api/payables/unassigned?payee_type=DRIVER&payee_id=drv-201", nil))
	assert.Len(t, unassigned, 2)
	for _, p := range unassigned {
		assert.False(t, p.IsLocked)
	}
}

func TestSettlement_DeleteRequiresVoid(t *testing.T) {
	s := newTestServer(t)
	st := weeklySettlement(t, s)

	rec := s.do(t, http.MethodDelete, "/api/settlements/"+st.ID, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSettlement_HoldAndRelease(t *testing.T) {
	s := newTestServer(t)
	st := weeklySettlement(t, s)
	base := "/api/settlements/" + st.ID

	rec := s.do(t, http.MethodPost, base+"/hold", map[string]any{"load_id": "load-4001"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 2, decode[CountResponse](t, rec).Count)

	detail := decode[SettlementDetailResponse](t, s.do(t, http.MethodGet, base, nil))
	assert.Empty(t, detail.Payables)

	// Refresh does not pull held rows back into the same settlement
	rec = s.do(t, http.MethodPost, base+"/refresh", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, decode[CountResponse](t, rec).Count)

	rec = s.do(t, http.MethodPost, base+"/release", map[string]any{"load_id": "load-4001"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 2, decode[CountResponse](t, rec).Count)

	rec = s.do(t, http.MethodPost, base+"/release", map[string]any{"load_id": "load-4001"})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "nothing left to release")
}

func TestSettlement_ExportStatement(t *testing.T) {
	s := newTestServer(t)
	st := weeklySettlement(t, s)

	rec := s.do(t, http.MethodGet, "/api/settlements/"+st.ID+"/statement.xlsx", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), st.StatementNumber+".xlsx")
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")), "xlsx is a zip archive")
}

func TestSettlement_BulkOperations(t *testing.T) {
	s := newTestServer(t)
	st := weeklySettlement(t, s)

	// Void needs a reason for the whole batch
	rec := s.do(t, http.MethodPost, "/api/settlements/bulk/void", map[string]any{"ids": []string{st.ID}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Empty id list is a validation error
	rec = s.do(t, http.MethodPost, "/api/settlements/bulk/approve", map[string]any{"ids": []string{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// One good id and one missing id: partial success
	rec = s.do(t, http.MethodPost, "/api/settlements/bulk/approve", map[string]any{"ids": []string{st.ID, "missing"}})
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[BulkResultDTO](t, rec)
	assert.Equal(t, 1, res.Succeeded)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "missing", res.Errors[0].ID)

	rec = s.do(t, http.MethodPost, "/api/settlements/bulk/void", map[string]any{"ids": []string{st.ID}, "reason": "period reopened"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[BulkResultDTO](t, rec).Succeeded)

	rec = s.do(t, http.MethodPost, "/api/settlements/bulk/delete", map[string]any{"ids": []string{st.ID}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[BulkResultDTO](t, rec).Succeeded)
}

// =============================================================================
// AUDIT & SCENARIOS
// =============================================================================

func TestAudit_RecordsActorFromHeaders(t *testing.T) {
	s := newTestServer(t)
	s.createDriver(t, "drv-1", "T-1")
	s.createLoad(t, "L1", "2030-01-15", "08:00", "12:00")
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/loads/L1/assign-driver", map[string]any{"driver_id": "drv-1"}).Code)

	rec := s.do(t, http.MethodGet, "/api/audit?action=driver_assigned", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	entries := decode[[]AuditEntryDTO](t, rec)
	require.Len(t, entries, 1)
	assert.Equal(t, "dispatcher-1", entries[0].PerformedBy)
	assert.Equal(t, "L1", entries[0].EntityID)
}

func TestScenarioEndpoints(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/scenarios/load", map[string]any{"scenario_id": "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/scenarios/load", map[string]any{"scenario_id": "company-driver"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	current := decode[ScenarioDTO](t, s.do(t, http.MethodGet, "/api/scenarios/current", nil))
	assert.Equal(t, "company-driver", current.ID)

	rec = s.do(t, http.MethodPost, "/api/scenarios/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	drivers := decode[[]DriverDTO](t, s.do(t, http.MethodGet, "/api/drivers", nil))
	assert.Empty(t, drivers)
}
