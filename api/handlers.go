/*
handlers.go - HTTP API handlers for the freight engine

PURPOSE:
  Exposes dispatch, pay and settlement operations via REST API. Handles
  HTTP request/response, JSON serialization, and delegates to the engine
  packages.

ENDPOINTS:
  Drivers & carriers:
    GET    /api/drivers                         List drivers
    POST   /api/drivers                         Create driver
    GET    /api/drivers/available               Drivers free in a window
    GET    /api/drivers/{id}                    Get driver
    POST   /api/drivers/{id}/deactivate         Deactivate + release legs
    GET    /api/carriers                        List carrier partnerships
    POST   /api/carriers                        Create carrier partnership
    POST   /api/carrier-orgs/{id}/deactivate    Deactivate a whole carrier org

  Loads & legs:
    GET    /api/loads                           List loads (?status=)
    POST   /api/loads                           Create load with stops
    GET    /api/loads/{id}                      Load with stops and legs
    POST   /api/loads/{id}/assign-driver        Assign driver to open legs
    POST   /api/loads/{id}/assign-carrier       Assign carrier to open legs
    POST   /api/loads/{id}/unassign             Clear holders from open legs
    POST   /api/loads/{id}/split                Split a leg at a stop
    PUT    /api/loads/{id}/revenue              Update revenue, recalculate pay
    GET    /api/loads/{id}/payables             Payables of a load
    PUT    /api/loads/{id}/stops/{stopID}/check-in
    PUT    /api/loads/{id}/stops/{stopID}/check-out
    POST   /api/legs/{id}/status                Leg lifecycle transition
    POST   /api/legs/{id}/remove-driver         Remove driver from one leg
    POST   /api/legs/{id}/recalculate           Recalculate one leg

  Pay configuration (handlers_pay.go):
    /api/rate-profiles, /api/profile-assignments, /api/payables,
    /api/pay-plans, /api/route-assignments, /api/auto-assign

  Settlements (handlers_settlement.go):
    /api/settlements/*

  Audit & scenarios:
    GET    /api/audit                           Audit trail
    /api/scenarios/*                            Demo scenarios

REQUEST CONTEXT:
  X-Org-ID     tenant; defaults to the demo org
  X-User-ID    actor recorded in audit entries
  X-User-Name  actor display name

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Illegal transition, locked settlement or payable
  - 500: Internal errors

  Assignment operations return a ResultDTO instead:
  - 200: SUCCESS
  - 409: CONFLICT (conflicting_load names the overlap)
  - 422: ERROR (message names the business rule)

SECURITY NOTE:
  Currently NO authentication or authorization. The org and actor headers
  are trusted as sent.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/warp/freight-engine/dispatch"
	"github.com/warp/freight-engine/factory"
	"github.com/warp/freight-engine/freight"
	"github.com/warp/freight-engine/generic"
	"github.com/warp/freight-engine/pay"
	"github.com/warp/freight-engine/settlement"
	"github.com/warp/freight-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store          *sqlite.Store
	Dispatch       *dispatch.Manager
	AutoAssign     *dispatch.AutoAssigner
	Rates          *pay.ConfigService
	Ledger         *pay.Ledger
	Settlements    *settlement.Service
	ProfileFactory *factory.ProfileFactory

	validate *validator.Validate
	logger   *log.Logger

	// Track currently loaded scenario
	mu              sync.Mutex
	currentScenario string
}

// NewHandler wires the engine services around store.
func NewHandler(store *sqlite.Store, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}
	engine := pay.NewEngine(logger)
	manager := dispatch.NewManager(store, engine, logger)

	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Handler{
		Store:          store,
		Dispatch:       manager,
		AutoAssign:     dispatch.NewAutoAssigner(store, manager, logger),
		Rates:          pay.NewConfigService(store, logger),
		Ledger:         pay.NewLedger(store, logger),
		Settlements:    settlement.NewService(store, logger),
		ProfileFactory: factory.NewProfileFactory(),
		validate:       v,
		logger:         logger,
	}
}

// orgIDFrom returns the tenant of the request.
func orgIDFrom(r *http.Request) string {
	if org := strings.TrimSpace(r.Header.Get("X-Org-ID")); org != "" {
		return org
	}
	return DemoOrgID
}

// actorFrom returns who is making the request.
func actorFrom(r *http.Request) generic.Actor {
	id := strings.TrimSpace(r.Header.Get("X-User-ID"))
	if id == "" {
		id = "anonymous"
	}
	return generic.Actor{ID: id, Name: strings.TrimSpace(r.Header.Get("X-User-Name"))}
}

// =============================================================================
// DRIVER HANDLERS
// =============================================================================

// ListDrivers returns the org's drivers.
func (h *Handler) ListDrivers(w http.ResponseWriter, r *http.Request) {
	drivers, err := h.Store.ListDrivers(r.Context(), orgIDFrom(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list drivers", err)
		return
	}

	dtos := make([]DriverDTO, len(drivers))
	for i, d := range drivers {
		dtos[i] = toDriverDTO(d)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetDriver returns a single driver.
func (h *Handler) GetDriver(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	d, err := h.Store.GetDriver(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get driver", err)
		return
	}
	if d == nil {
		writeError(w, http.StatusNotFound, "Driver not found", nil)
		return
	}

	dto := toDriverDTO(*d)
	legs, err := h.Store.ListOpenLegsByDriver(r.Context(), id)
	if err == nil {
		n := len(legs)
		dto.OpenLegs = &n
	}
	writeJSON(w, http.StatusOK, dto)
}

// CreateDriver creates a new active driver.
func (h *Handler) CreateDriver(w http.ResponseWriter, r *http.Request) {
	var req CreateDriverRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	now := time.Now().UTC()
	d := freight.Driver{
		ID:             req.ID,
		OrgID:          orgIDFrom(r),
		Name:           req.Name,
		Status:         freight.PartyActive,
		CarrierOrgID:   req.CarrierOrgID,
		PayPlanID:      req.PayPlanID,
		CurrentTruckID: req.CurrentTruckID,
		CurrentCity:    req.CurrentCity,
		CurrentState:   strings.ToUpper(req.CurrentState),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if d.ID == "" {
		d.ID = uuid.NewString()
	}

	if err := h.Store.SaveDriver(r.Context(), d); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create driver", err)
		return
	}
	writeJSON(w, http.StatusCreated, toDriverDTO(d))
}

// GetAvailableDrivers lists drivers with no open leg overlapping
// [start_ms, end_ms). exclude_load_id ignores one load's legs.
func (h *Handler) GetAvailableDrivers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, err := parseMsParam(q.Get("start_ms"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start_ms", err)
		return
	}
	end, err := parseMsParam(q.Get("end_ms"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid end_ms", err)
		return
	}

	available, err := h.Dispatch.GetAvailableDrivers(r.Context(), orgIDFrom(r), start, end, q.Get("exclude_load_id"))
	if err != nil {
		writeServiceError(w, "Failed to list available drivers", err)
		return
	}

	dtos := make([]DriverDTO, len(available))
	for i, a := range available {
		dtos[i] = toDriverDTO(a.Driver)
		n := a.OpenLegs
		dtos[i].OpenLegs = &n
	}
	writeJSON(w, http.StatusOK, dtos)
}

// DeactivateDriver deactivates a driver and releases their open legs.
func (h *Handler) DeactivateDriver(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Dispatch.DeactivateDriver(r.Context(), chi.URLParam(r, "id"), actorFrom(r))
	if err != nil {
		writeServiceError(w, "Failed to deactivate driver", err)
		return
	}
	writeJSON(w, http.StatusOK, toDeactivationDTO(summary))
}

// =============================================================================
// CARRIER HANDLERS
// =============================================================================

// ListCarriers returns the org's carrier partnerships.
func (h *Handler) ListCarriers(w http.ResponseWriter, r *http.Request) {
	carriers, err := h.Store.ListCarriers(r.Context(), orgIDFrom(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list carriers", err)
		return
	}

	dtos := make([]CarrierDTO, len(carriers))
	for i, c := range carriers {
		dtos[i] = toCarrierDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateCarrier creates an active carrier partnership.
func (h *Handler) CreateCarrier(w http.ResponseWriter, r *http.Request) {
	var req CreateCarrierRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	now := time.Now().UTC()
	c := freight.CarrierPartnership{
		ID:           req.ID,
		OrgID:        orgIDFrom(r),
		CarrierOrgID: req.CarrierOrgID,
		CarrierName:  req.CarrierName,
		Status:       freight.PartyActive,
		PayPlanID:    req.PayPlanID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}

	if err := h.Store.SaveCarrier(r.Context(), c); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create carrier", err)
		return
	}
	writeJSON(w, http.StatusCreated, toCarrierDTO(c))
}

// DeactivateCarrierOrganization deactivates every partnership and driver of
// a carrier organization in one transaction.
func (h *Handler) DeactivateCarrierOrganization(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Dispatch.DeactivateCarrierOrganization(r.Context(), chi.URLParam(r, "id"), actorFrom(r))
	if err != nil {
		writeServiceError(w, "Failed to deactivate carrier organization", err)
		return
	}
	writeJSON(w, http.StatusOK, toDeactivationDTO(summary))
}

// =============================================================================
// LOAD HANDLERS
// =============================================================================

// ListLoads returns the org's loads, optionally filtered by status.
func (h *Handler) ListLoads(w http.ResponseWriter, r *http.Request) {
	status := freight.LoadStatus(strings.ToUpper(r.URL.Query().Get("status")))
	loads, err := h.Store.ListLoads(r.Context(), orgIDFrom(r), status)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list loads", err)
		return
	}

	dtos := make([]LoadDTO, len(loads))
	for i, l := range loads {
		dtos[i] = toLoadDTO(l, nil, nil)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetLoad returns a load with its stops and legs.
func (h *Handler) GetLoad(w http.ResponseWriter, r *http.Request) {
	dto, ok := h.loadDetail(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, dto)
}

// CreateLoad creates an OPEN load with its stops, then runs create-time
// auto-assignment when the org has it enabled.
func (h *Handler) CreateLoad(w http.ResponseWriter, r *http.Request) {
	var req CreateLoadRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	ctx := r.Context()

	now := time.Now().UTC()
	load := freight.Load{
		ID:             req.ID,
		OrgID:          orgIDFrom(r),
		OrderNumber:    req.OrderNumber,
		Status:         freight.LoadOpen,
		HCR:            strings.TrimSpace(req.HCR),
		TripNumber:     strings.TrimSpace(req.TripNumber),
		EffectiveMiles: req.EffectiveMiles,
		IsHazmat:       req.IsHazmat,
		RequiresTarp:   req.RequiresTarp,
		Revenue:        req.Revenue,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if load.ID == "" {
		load.ID = uuid.NewString()
	}

	stops := make([]freight.Stop, len(req.Stops))
	seen := make(map[int]bool, len(req.Stops))
	for i, sr := range req.Stops {
		seq := sr.SequenceNumber
		if seq == 0 {
			seq = i + 1
		}
		if seen[seq] {
			writeError(w, http.StatusBadRequest, "Duplicate stop sequence number", fmt.Errorf("sequence %d", seq))
			return
		}
		seen[seq] = true
		stops[i] = freight.Stop{
			ID:              sr.ID,
			LoadID:          load.ID,
			OrgID:           load.OrgID,
			SequenceNumber:  seq,
			StopType:        freight.StopType(sr.StopType),
			City:            sr.City,
			State:           sr.State,
			WindowBeginDate: sr.WindowBeginDate,
			WindowBeginTime: sr.WindowBeginTime,
			WindowEndDate:   sr.WindowEndDate,
			WindowEndTime:   sr.WindowEndTime,
		}
		if stops[i].ID == "" {
			stops[i].ID = uuid.NewString()
		}
	}

	if err := h.saveLoadWithStops(ctx, load, stops); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create load", err)
		return
	}

	res, err := h.AutoAssign.OnLoadCreated(ctx, load.ID)
	if err != nil {
		h.logger.Printf("[AutoAssign] load %s on create: %v", load.ID, err)
	}

	dto, ok := h.loadDetail(w, r, load.ID)
	if !ok {
		return
	}
	if res != nil {
		rd := toResultDTO(*res)
		dto.AutoAssign = &rd
	}
	writeJSON(w, http.StatusCreated, dto)
}

// AssignDriver assigns a driver to every open leg of the load.
func (h *Handler) AssignDriver(w http.ResponseWriter, r *http.Request) {
	var req AssignDriverRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	res, err := h.Dispatch.AssignDriver(r.Context(), dispatch.AssignDriverInput{
		LoadID:    chi.URLParam(r, "id"),
		DriverID:  req.DriverID,
		TruckID:   req.TruckID,
		TrailerID: req.TrailerID,
		Force:     req.Force,
		Actor:     actorFrom(r),
	})
	if err != nil {
		writeServiceError(w, "Failed to assign driver", err)
		return
	}
	writeResult(w, res)
}

// AssignCarrier assigns a carrier partnership to every open leg of the load.
func (h *Handler) AssignCarrier(w http.ResponseWriter, r *http.Request) {
	var req AssignCarrierRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	res, err := h.Dispatch.AssignCarrier(r.Context(), dispatch.AssignCarrierInput{
		LoadID:        chi.URLParam(r, "id"),
		PartnershipID: req.PartnershipID,
		TrailerID:     req.TrailerID,
		Actor:         actorFrom(r),
	})
	if err != nil {
		writeServiceError(w, "Failed to assign carrier", err)
		return
	}
	writeResult(w, res)
}

// UnassignResource clears the driver/carrier from the load's open legs.
func (h *Handler) UnassignResource(w http.ResponseWriter, r *http.Request) {
	res, err := h.Dispatch.UnassignResource(r.Context(), chi.URLParam(r, "id"), actorFrom(r))
	if err != nil {
		writeServiceError(w, "Failed to unassign load", err)
		return
	}
	writeResult(w, res)
}

// SplitAtStop splits the leg spanning a stop into two legs.
func (h *Handler) SplitAtStop(w http.ResponseWriter, r *http.Request) {
	var req SplitRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	res, err := h.Dispatch.SplitAtStop(r.Context(), dispatch.SplitInput{
		LoadID:      chi.URLParam(r, "id"),
		SplitStopID: req.SplitStopID,
		NewDriverID: req.NewDriverID,
		TruckID:     req.TruckID,
		TrailerID:   req.TrailerID,
		Force:       req.Force,
		Actor:       actorFrom(r),
	})
	if err != nil {
		writeServiceError(w, "Failed to split load", err)
		return
	}
	writeResult(w, res)
}

// UpdateRevenue sets the load revenue and recalculates every held leg so
// percentage rules pick up the new amount.
func (h *Handler) UpdateRevenue(w http.ResponseWriter, r *http.Request) {
	var req RevenueRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	if req.Revenue.IsNegative() {
		writeError(w, http.StatusBadRequest, "Revenue must not be negative", nil)
		return
	}
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	load, err := h.Store.GetLoad(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get load", err)
		return
	}
	if load == nil {
		writeError(w, http.StatusNotFound, "Load not found", nil)
		return
	}
	load.Revenue = req.Revenue
	load.UpdatedAt = time.Now().UTC()
	if err := h.Store.SaveLoad(ctx, *load); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update revenue", err)
		return
	}

	calcs, err := h.recalculateLoad(r, load.ID)
	if err != nil {
		writeServiceError(w, "Failed to recalculate pay", err)
		return
	}
	writeJSON(w, http.StatusOK, calcs)
}

// CheckInStop records arrival at a stop.
func (h *Handler) CheckInStop(w http.ResponseWriter, r *http.Request) {
	h.stopEvent(w, r, func(s *freight.Stop, at time.Time) { s.CheckedInAt = &at })
}

// CheckOutStop records departure from a stop.
func (h *Handler) CheckOutStop(w http.ResponseWriter, r *http.Request) {
	h.stopEvent(w, r, func(s *freight.Stop, at time.Time) { s.CheckedOutAt = &at })
}

func (h *Handler) stopEvent(w http.ResponseWriter, r *http.Request, apply func(*freight.Stop, time.Time)) {
	var req StopEventRequest
	if r.ContentLength != 0 {
		if !h.decodeAndValidate(w, r, &req) {
			return
		}
	}
	ctx := r.Context()
	loadID := chi.URLParam(r, "id")
	stopID := chi.URLParam(r, "stopID")

	stops, err := h.Store.ListStops(ctx, loadID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list stops", err)
		return
	}
	var stop *freight.Stop
	for i := range stops {
		if stops[i].ID == stopID {
			stop = &stops[i]
			break
		}
	}
	if stop == nil {
		writeError(w, http.StatusNotFound, "Stop not found", nil)
		return
	}

	at := time.Now().UTC()
	if req.AtMs != nil {
		at = fromMs(*req.AtMs)
	}
	apply(stop, at)
	if stop.CheckedInAt != nil && stop.CheckedOutAt != nil && stop.CheckedOutAt.Before(*stop.CheckedInAt) {
		writeError(w, http.StatusBadRequest, "Check-out must not precede check-in", nil)
		return
	}
	if err := h.Store.SaveStop(ctx, *stop); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save stop", err)
		return
	}

	// Detention depends on stop times.
	if _, err := h.recalculateLoad(r, loadID); err != nil {
		h.logger.Printf("[Pay] recalculation after stop event on load %s: %v", loadID, err)
	}
	writeJSON(w, http.StatusOK, toStopDTO(*stop))
}

// ListLoadPayables returns every payable of a load.
func (h *Handler) ListLoadPayables(w http.ResponseWriter, r *http.Request) {
	payables, err := h.Ledger.ListForLoad(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list payables", err)
		return
	}
	writeJSON(w, http.StatusOK, toPayableDTOs(payables))
}

// =============================================================================
// LEG HANDLERS
// =============================================================================

// TransitionLeg moves a leg through PENDING -> ACTIVE -> COMPLETED.
func (h *Handler) TransitionLeg(w http.ResponseWriter, r *http.Request) {
	var req LegStatusRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	leg, err := h.Dispatch.TransitionLeg(r.Context(), chi.URLParam(r, "id"), freight.LegStatus(req.Status), actorFrom(r))
	if err != nil {
		writeServiceError(w, "Failed to change leg status", err)
		return
	}
	writeJSON(w, http.StatusOK, toLegDTO(*leg))
}

// RemoveDriver takes the driver off a single leg.
func (h *Handler) RemoveDriver(w http.ResponseWriter, r *http.Request) {
	res, err := h.Dispatch.RemoveDriver(r.Context(), chi.URLParam(r, "id"), actorFrom(r))
	if err != nil {
		writeServiceError(w, "Failed to remove driver", err)
		return
	}
	writeResult(w, res)
}

// RecalculateLeg reruns the pay engine for one leg.
func (h *Handler) RecalculateLeg(w http.ResponseWriter, r *http.Request) {
	calc, err := h.Dispatch.RecalculateLeg(r.Context(), chi.URLParam(r, "id"), actorFrom(r))
	if err != nil {
		writeServiceError(w, "Failed to recalculate leg", err)
		return
	}
	writeJSON(w, http.StatusOK, toCalculationDTO(calc))
}

// =============================================================================
// AUDIT
// =============================================================================

// ListAudit returns audit entries, newest first.
func (h *Handler) ListAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := generic.AuditFilter{
		OrgID:      orgIDFrom(r),
		EntityType: q.Get("entity_type"),
		EntityID:   q.Get("entity_id"),
		Limit:      100,
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		filter.Limit = n
	}
	if v := q.Get("action"); v != "" {
		for _, a := range strings.Split(v, ",") {
			filter.Actions = append(filter.Actions, generic.AuditAction(strings.TrimSpace(a)))
		}
	}

	entries, err := h.Store.QueryAudit(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to query audit log", err)
		return
	}
	dtos := make([]AuditEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toAuditDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) loadDetail(w http.ResponseWriter, r *http.Request, id string) (LoadDTO, bool) {
	ctx := r.Context()
	load, err := h.Store.GetLoad(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get load", err)
		return LoadDTO{}, false
	}
	if load == nil {
		writeError(w, http.StatusNotFound, "Load not found", nil)
		return LoadDTO{}, false
	}
	stops, err := h.Store.ListStops(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list stops", err)
		return LoadDTO{}, false
	}
	legs, err := h.Store.ListLegsByLoad(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list legs", err)
		return LoadDTO{}, false
	}
	return toLoadDTO(*load, stops, legs), true
}

// recalculateLoad reruns pay for every held leg of a load.
func (h *Handler) recalculateLoad(r *http.Request, loadID string) ([]CalculationDTO, error) {
	legs, err := h.Store.ListLegsByLoad(r.Context(), loadID)
	if err != nil {
		return nil, err
	}
	out := make([]CalculationDTO, 0, len(legs))
	for _, leg := range legs {
		if _, _, held := leg.Holder(); !held {
			continue
		}
		calc, err := h.Dispatch.RecalculateLeg(r.Context(), leg.ID, actorFrom(r))
		if err != nil {
			return nil, err
		}
		out = append(out, toCalculationDTO(calc))
	}
	return out, nil
}

func toCalculationDTO(c *pay.Calculation) CalculationDTO {
	return CalculationDTO{
		LegID:     c.LegID,
		PayeeType: string(c.PayeeType),
		PayeeID:   c.PayeeID,
		ProfileID: c.ProfileID,
		Created:   toPayableDTOs(c.Created),
		Deleted:   c.Deleted,
		Warnings:  c.Warnings,
		Total:     c.Total().StringFixed(2),
	}
}

func toDeactivationDTO(s *dispatch.DeactivationSummary) DeactivationDTO {
	dto := DeactivationDTO{
		DriverIDs:      s.DriverIDs,
		PartnershipIDs: s.PartnershipIDs,
		LegsReleased:   s.LegsReleased,
		LoadsReopened:  s.LoadsReopened,
	}
	if dto.DriverIDs == nil {
		dto.DriverIDs = []string{}
	}
	if dto.PartnershipIDs == nil {
		dto.PartnershipIDs = []string{}
	}
	return dto
}

func parseMsParam(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, errors.New("is required")
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return fromMs(ms), nil
}

// decodeAndValidate decodes the JSON body into dst and runs struct
// validation. It writes the 400 response itself and returns false on failure.
func (h *Handler) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			details := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				details[fe.Field()] = getValidationErrorMessage(fe)
			}
			writeJSON(w, http.StatusBadRequest, ErrorResponse{
				Error:   "Validation failed",
				Code:    "VALIDATION_ERROR",
				Details: details,
			})
			return false
		}
		writeError(w, http.StatusBadRequest, "Invalid request", err)
		return false
	}
	return true
}

func getValidationErrorMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "required_without":
		return fmt.Sprintf("Required unless %s is set", fe.Param())
	case "excluded_with":
		return fmt.Sprintf("Must be empty when %s is set", fe.Param())
	case "oneof":
		return fmt.Sprintf("Must be one of: %s", fe.Param())
	case "max":
		return fmt.Sprintf("Must be at most %s characters", fe.Param())
	case "min":
		return fmt.Sprintf("Must contain at least %s item(s)", fe.Param())
	case "len":
		return fmt.Sprintf("Must be exactly %s characters", fe.Param())
	case "gte":
		return fmt.Sprintf("Must be greater than or equal to %s", fe.Param())
	case "lte":
		return fmt.Sprintf("Must be less than or equal to %s", fe.Param())
	case "url":
		return "Must be a valid URL"
	case "datetime":
		return fmt.Sprintf("Must match the format %s", fe.Param())
	default:
		return fmt.Sprintf("Failed validation: %s", fe.Tag())
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeServiceError maps engine errors onto HTTP status codes.
func writeServiceError(w http.ResponseWriter, message string, err error) {
	status, code := http.StatusInternalServerError, "INTERNAL"
	switch {
	case generic.IsNotFound(err):
		status, code = http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, generic.ErrInvalidTransition):
		status, code = http.StatusConflict, "INVALID_TRANSITION"
	case generic.IsConflict(err):
		status, code = http.StatusConflict, "CONFLICT"
	case generic.IsClientError(err):
		status, code = http.StatusBadRequest, "INVALID_INPUT"
	}
	writeJSON(w, status, ErrorResponse{Error: message, Code: code, Details: err.Error()})
}

// writeResult writes an assignment outcome.
func writeResult(w http.ResponseWriter, res dispatch.Result) {
	status := http.StatusOK
	switch res.Status {
	case dispatch.StatusConflict:
		status = http.StatusConflict
	case dispatch.StatusError:
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, toResultDTO(res))
}
