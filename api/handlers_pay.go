package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/warp/freight-engine/factory"
	"github.com/warp/freight-engine/freight"
	"github.com/warp/freight-engine/generic"
	"github.com/warp/freight-engine/pay"
)

// =============================================================================
// RATE PROFILE HANDLERS
// =============================================================================

func (h *Handler) toProfileDTO(p freight.RateProfile) RateProfileDTO {
	return RateProfileDTO{
		ID:        p.ID,
		Name:      p.Name,
		Type:      string(p.ProfileType),
		IsDefault: p.IsDefault,
		IsActive:  p.IsActive,
		Config:    h.ProfileFactory.ToJSON(p),
	}
}

// ListRateProfiles returns the org's rate profiles.
func (h *Handler) ListRateProfiles(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.Rates.ListProfiles(r.Context(), orgIDFrom(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list rate profiles", err)
		return
	}

	dtos := make([]RateProfileDTO, len(profiles))
	for i, p := range profiles {
		dtos[i] = h.toProfileDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateRateProfile creates a profile from its JSON document.
func (h *Handler) CreateRateProfile(w http.ResponseWriter, r *http.Request) {
	var pj factory.ProfileJSON
	if err := json.NewDecoder(r.Body).Decode(&pj); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	profile, err := h.ProfileFactory.FromJSON(pj)
	if err != nil {
		writeServiceError(w, "Invalid rate profile", err)
		return
	}
	profile.OrgID = orgIDFrom(r)

	saved, err := h.Rates.SaveProfile(r.Context(), *profile, actorFrom(r))
	if err != nil {
		writeServiceError(w, "Failed to save rate profile", err)
		return
	}
	writeJSON(w, http.StatusCreated, h.toProfileDTO(*saved))
}

// GetRateProfile returns a profile with its rules.
func (h *Handler) GetRateProfile(w http.ResponseWriter, r *http.Request) {
	p, err := h.Rates.GetProfile(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, "Failed to get rate profile", err)
		return
	}
	writeJSON(w, http.StatusOK, h.toProfileDTO(*p))
}

// SetDefaultRateProfile promotes a profile to the org default for its type.
func (h *Handler) SetDefaultRateProfile(w http.ResponseWriter, r *http.Request) {
	p, err := h.Rates.SetDefaultProfile(r.Context(), chi.URLParam(r, "id"), actorFrom(r))
	if err != nil {
		writeServiceError(w, "Failed to set default profile", err)
		return
	}
	writeJSON(w, http.StatusOK, h.toProfileDTO(*p))
}

// CreateProfileAssignment links a driver or carrier to a profile.
func (h *Handler) CreateProfileAssignment(w http.ResponseWriter, r *http.Request) {
	var req ProfileAssignmentRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	a, err := h.Rates.AssignProfile(r.Context(), freight.ProfileAssignment{
		SubjectType:    freight.PayeeType(req.SubjectType),
		SubjectID:      req.SubjectID,
		ProfileID:      req.ProfileID,
		Strategy:       freight.SelectionStrategy(req.Strategy),
		ThresholdMiles: req.ThresholdMiles,
		IsDefault:      req.IsDefault,
	}, actorFrom(r))
	if err != nil {
		writeServiceError(w, "Failed to assign profile", err)
		return
	}
	writeJSON(w, http.StatusCreated, toAssignmentDTO(*a))
}

// ListProfileAssignments returns a subject's assignments, default first.
func (h *Handler) ListProfileAssignments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	subjectType := freight.PayeeType(strings.ToUpper(q.Get("subject_type")))
	subjectID := q.Get("subject_id")
	if !subjectType.Valid() || subjectID == "" {
		writeError(w, http.StatusBadRequest, "subject_type and subject_id are required", nil)
		return
	}

	assignments, err := h.Rates.ListAssignments(r.Context(), subjectType, subjectID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list assignments", err)
		return
	}
	dtos := make([]ProfileAssignmentDTO, len(assignments))
	for i, a := range assignments {
		dtos[i] = toAssignmentDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// PAYABLE HANDLERS
// =============================================================================

// CreatePayable records a manual payable.
func (h *Handler) CreatePayable(w http.ResponseWriter, r *http.Request) {
	var req CreatePayableRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	p, err := h.Ledger.CreateManual(r.Context(), pay.ManualPayableInput{
		OrgID:            orgIDFrom(r),
		PayeeType:        freight.PayeeType(req.PayeeType),
		PayeeID:          req.PayeeID,
		LoadID:           req.LoadID,
		LegID:            req.LegID,
		SettlementID:     req.SettlementID,
		Description:      req.Description,
		Quantity:         req.Quantity,
		Rate:             req.Rate,
		Category:         freight.RuleCategory(req.Category),
		IsRebillable:     req.IsRebillable,
		RebillCustomerID: req.RebillCustomerID,
		ReceiptURL:       req.ReceiptURL,
	}, actorFrom(r))
	if err != nil {
		writeServiceError(w, "Failed to create payable", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPayableDTO(*p))
}

// UpdatePayable edits an unlocked manual payable.
func (h *Handler) UpdatePayable(w http.ResponseWriter, r *http.Request) {
	var req UpdatePayableRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	p, err := h.Ledger.UpdateManual(r.Context(), chi.URLParam(r, "id"), toPayableUpdate(req), actorFrom(r))
	if err != nil {
		writeServiceError(w, "Failed to update payable", err)
		return
	}
	writeJSON(w, http.StatusOK, toPayableDTO(*p))
}

// DeletePayable removes an unlocked manual payable.
func (h *Handler) DeletePayable(w http.ResponseWriter, r *http.Request) {
	if err := h.Ledger.DeleteManual(r.Context(), chi.URLParam(r, "id"), actorFrom(r)); err != nil {
		writeServiceError(w, "Failed to delete payable", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// LockPayable protects a payable from engine recalculation and edits.
func (h *Handler) LockPayable(w http.ResponseWriter, r *http.Request) {
	h.setLocked(w, r, true)
}

// UnlockPayable releases a user lock.
func (h *Handler) UnlockPayable(w http.ResponseWriter, r *http.Request) {
	h.setLocked(w, r, false)
}

func (h *Handler) setLocked(w http.ResponseWriter, r *http.Request, locked bool) {
	p, err := h.Ledger.SetLocked(r.Context(), chi.URLParam(r, "id"), locked, actorFrom(r))
	if err != nil {
		writeServiceError(w, "Failed to change payable lock", err)
		return
	}
	writeJSON(w, http.StatusOK, toPayableDTO(*p))
}

// ListUnassignedPayables returns a payee's payables not in any settlement.
func (h *Handler) ListUnassignedPayables(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	payeeType := freight.PayeeType(strings.ToUpper(q.Get("payee_type")))
	payeeID := q.Get("payee_id")
	if !payeeType.Valid() || payeeID == "" {
		writeError(w, http.StatusBadRequest, "payee_type and payee_id are required", nil)
		return
	}

	payables, err := h.Ledger.ListUnassigned(r.Context(), payeeType, payeeID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list payables", err)
		return
	}
	writeJSON(w, http.StatusOK, toPayableDTOs(payables))
}

func toPayableUpdate(req UpdatePayableRequest) pay.PayableUpdate {
	u := pay.PayableUpdate{
		Description:      req.Description,
		Quantity:         req.Quantity,
		Rate:             req.Rate,
		IsRebillable:     req.IsRebillable,
		RebillCustomerID: req.RebillCustomerID,
		ReceiptURL:       req.ReceiptURL,
	}
	if req.Category != nil {
		c := freight.RuleCategory(*req.Category)
		u.Category = &c
	}
	return u
}

// =============================================================================
// PAY PLAN HANDLERS
// =============================================================================

func toPayPlanDTO(p freight.PayPlan, now time.Time) PayPlanDTO {
	dto := PayPlanDTO{
		ID:             p.ID,
		Name:           p.Name,
		Frequency:      string(p.Frequency),
		AnchorDay:      p.AnchorDay,
		AnchorDateMs:   toMsPtr(p.AnchorDate),
		CutoffTime:     p.CutoffTime,
		PaymentLagDays: p.PaymentLagDays,
		PayableTrigger: string(p.Trigger()),
		AutoCarryover:  p.AutoCarryover,
		IsActive:       p.IsActive,
	}
	if pc, err := p.PeriodConfig(); err == nil {
		period := pc.PeriodFor(now)
		dto.CurrentPeriodStartMs = toMs(period.Start)
		dto.CurrentPeriodEndMs = toMs(period.End)
		dto.CurrentPayDateMs = toMs(generic.PayDate(period, p.PaymentLagDays))
	}
	return dto
}

// ListPayPlans returns the org's pay plans with their current period.
func (h *Handler) ListPayPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.Store.ListPayPlans(r.Context(), orgIDFrom(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list pay plans", err)
		return
	}

	now := time.Now().UTC()
	dtos := make([]PayPlanDTO, len(plans))
	for i, p := range plans {
		dtos[i] = toPayPlanDTO(p, now)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreatePayPlan creates an active pay plan.
func (h *Handler) CreatePayPlan(w http.ResponseWriter, r *http.Request) {
	var req PayPlanRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	plan := freight.PayPlan{
		ID:             req.ID,
		OrgID:          orgIDFrom(r),
		Name:           req.Name,
		Frequency:      generic.Frequency(req.Frequency),
		AnchorDay:      req.AnchorDay,
		AnchorDate:     fromMsPtr(req.AnchorDateMs),
		CutoffTime:     req.CutoffTime,
		PaymentLagDays: req.PaymentLagDays,
		PayableTrigger: freight.PayableTrigger(req.PayableTrigger),
		AutoCarryover:  req.AutoCarryover,
		IsActive:       true,
		CreatedAt:      time.Now().UTC(),
	}
	if plan.ID == "" {
		plan.ID = uuid.NewString()
	}
	if _, err := plan.PeriodConfig(); err != nil {
		writeServiceError(w, "Invalid pay plan", err)
		return
	}

	if err := h.Store.SavePayPlan(r.Context(), plan); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create pay plan", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPayPlanDTO(plan, time.Now().UTC()))
}

// =============================================================================
// ROUTE ASSIGNMENT & AUTO-ASSIGN HANDLERS
// =============================================================================

// ListRouteAssignments returns route assignments, optionally for one HCR.
func (h *Handler) ListRouteAssignments(w http.ResponseWriter, r *http.Request) {
	routes, err := h.Store.ListRouteAssignments(r.Context(), orgIDFrom(r), r.URL.Query().Get("hcr"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list route assignments", err)
		return
	}
	dtos := make([]RouteAssignmentDTO, len(routes))
	for i, ra := range routes {
		dtos[i] = toRouteDTO(ra)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SaveRouteAssignment creates or replaces a route assignment.
func (h *Handler) SaveRouteAssignment(w http.ResponseWriter, r *http.Request) {
	var req RouteAssignmentRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	ra := freight.RouteAssignment{
		ID:                   req.ID,
		OrgID:                orgIDFrom(r),
		HCR:                  strings.TrimSpace(req.HCR),
		TripNumber:           strings.TrimSpace(req.TripNumber),
		DriverID:             req.DriverID,
		CarrierPartnershipID: req.CarrierPartnershipID,
		Priority:             req.Priority,
		IsActive:             req.IsActive == nil || *req.IsActive,
		CreatedAt:            time.Now().UTC(),
	}
	if ra.ID == "" {
		ra.ID = uuid.NewString()
	}

	if err := h.Store.SaveRouteAssignment(r.Context(), ra); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save route assignment", err)
		return
	}
	writeJSON(w, http.StatusCreated, toRouteDTO(ra))
}

// GetAutoAssignSettings returns the org's auto-assign settings.
func (h *Handler) GetAutoAssignSettings(w http.ResponseWriter, r *http.Request) {
	s, err := h.Store.GetAutoAssignSettings(r.Context(), orgIDFrom(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get auto-assign settings", err)
		return
	}
	if s == nil {
		s = &freight.AutoAssignSettings{OrgID: orgIDFrom(r)}
	}
	writeJSON(w, http.StatusOK, AutoAssignSettingsDTO{
		TriggerOnCreate:         s.TriggerOnCreate,
		ScheduledEnabled:        s.ScheduledEnabled,
		ScheduleIntervalMinutes: s.ScheduleIntervalMinutes,
		LastRunAtMs:             toMsPtr(s.LastRunAt),
	})
}

// SaveAutoAssignSettings replaces the org's auto-assign settings. The last
// run stamp is kept.
func (h *Handler) SaveAutoAssignSettings(w http.ResponseWriter, r *http.Request) {
	var req AutoAssignSettingsDTO
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	ctx := r.Context()
	orgID := orgIDFrom(r)

	existing, err := h.Store.GetAutoAssignSettings(ctx, orgID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get auto-assign settings", err)
		return
	}
	s := freight.AutoAssignSettings{
		OrgID:                   orgID,
		TriggerOnCreate:         req.TriggerOnCreate,
		ScheduledEnabled:        req.ScheduledEnabled,
		ScheduleIntervalMinutes: req.ScheduleIntervalMinutes,
	}
	if existing != nil {
		s.LastRunAt = existing.LastRunAt
	}
	if err := h.Store.SaveAutoAssignSettings(ctx, s); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save auto-assign settings", err)
		return
	}
	req.LastRunAtMs = toMsPtr(s.LastRunAt)
	writeJSON(w, http.StatusOK, req)
}

// RunAutoAssign sweeps the org's OPEN loads now, ignoring the schedule.
func (h *Handler) RunAutoAssign(w http.ResponseWriter, r *http.Request) {
	summary, err := h.AutoAssign.RunNow(r.Context(), orgIDFrom(r), time.Now().UTC())
	if err != nil {
		writeServiceError(w, "Auto-assign failed", err)
		return
	}
	writeJSON(w, http.StatusOK, SweepDTO{
		Ran:      summary.Ran,
		Checked:  summary.Checked,
		Assigned: summary.Assigned,
		Failed:   summary.Failed,
	})
}
