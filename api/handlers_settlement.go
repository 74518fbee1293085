package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/warp/freight-engine/freight"
	"github.com/warp/freight-engine/settlement"
)

// =============================================================================
// SETTLEMENT HANDLERS
// =============================================================================

// ListSettlements returns settlements filtered by payee and status.
func (h *Handler) ListSettlements(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	settlements, err := h.Settlements.List(r.Context(), freight.SettlementFilter{
		OrgID:     orgIDFrom(r),
		PayeeType: freight.PayeeType(strings.ToUpper(q.Get("payee_type"))),
		PayeeID:   q.Get("payee_id"),
		Status:    freight.SettlementStatus(strings.ToUpper(q.Get("status"))),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list settlements", err)
		return
	}

	dtos := make([]SettlementDTO, len(settlements))
	for i, s := range settlements {
		dtos[i] = toSettlementDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GenerateSettlement creates (or reuses) a DRAFT settlement for a period.
// With use_pay_plan the payee's last closed plan period is used.
func (h *Handler) GenerateSettlement(w http.ResponseWriter, r *http.Request) {
	var req GenerateSettlementRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	payeeType := freight.PayeeType(req.PayeeType)

	var (
		res *settlement.GenerateResult
		err error
	)
	if req.UsePayPlan {
		res, err = h.Settlements.GenerateForPlan(r.Context(), payeeType, req.PayeeID, time.Now().UTC(), actorFrom(r))
	} else {
		res, err = h.Settlements.Generate(r.Context(), settlement.GenerateInput{
			OrgID:       orgIDFrom(r),
			PayeeType:   payeeType,
			PayeeID:     req.PayeeID,
			PayPlanID:   req.PayPlanID,
			PeriodStart: fromMs(req.PeriodStartMs),
			PeriodEnd:   fromMs(req.PeriodEndMs),
			Actor:       actorFrom(r),
		})
	}
	if err != nil {
		writeServiceError(w, "Failed to generate settlement", err)
		return
	}

	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, GenerateSettlementResponse{
		Settlement: toSettlementDTO(res.Settlement),
		Created:    res.Created,
		Attached:   res.Attached,
	})
}

// GetSettlement returns a settlement with its rows and totals.
func (h *Handler) GetSettlement(w http.ResponseWriter, r *http.Request) {
	h.writeSettlementDetail(w, r, chi.URLParam(r, "id"), http.StatusOK)
}

// RefreshSettlement re-attaches qualifying payables to a DRAFT settlement.
func (h *Handler) RefreshSettlement(w http.ResponseWriter, r *http.Request) {
	n, err := h.Settlements.Refresh(r.Context(), chi.URLParam(r, "id"), actorFrom(r))
	if err != nil {
		writeServiceError(w, "Failed to refresh settlement", err)
		return
	}
	writeJSON(w, http.StatusOK, CountResponse{Count: n})
}

// HoldLoad parks a load's rows for a later period.
func (h *Handler) HoldLoad(w http.ResponseWriter, r *http.Request) {
	var req LoadActionRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	n, err := h.Settlements.HoldLoad(r.Context(), chi.URLParam(r, "id"), req.LoadID, actorFrom(r))
	if err != nil {
		writeServiceError(w, "Failed to hold load", err)
		return
	}
	writeJSON(w, http.StatusOK, CountResponse{Count: n})
}

// ReleaseLoad brings held rows of a load back into the settlement.
func (h *Handler) ReleaseLoad(w http.ResponseWriter, r *http.Request) {
	var req LoadActionRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	n, err := h.Settlements.ReleaseLoad(r.Context(), chi.URLParam(r, "id"), req.LoadID, actorFrom(r))
	if err != nil {
		writeServiceError(w, "Failed to release load", err)
		return
	}
	writeJSON(w, http.StatusOK, CountResponse{Count: n})
}

// SubmitSettlement moves DRAFT -> PENDING.
func (h *Handler) SubmitSettlement(w http.ResponseWriter, r *http.Request) {
	st, err := h.Settlements.Submit(r.Context(), chi.URLParam(r, "id"), actorFrom(r))
	if err != nil {
		writeServiceError(w, "Failed to submit settlement", err)
		return
	}
	writeJSON(w, http.StatusOK, toSettlementDTO(*st))
}

// ApproveSettlement moves PENDING -> APPROVED and freezes totals.
func (h *Handler) ApproveSettlement(w http.ResponseWriter, r *http.Request) {
	st, err := h.Settlements.Approve(r.Context(), chi.URLParam(r, "id"), actorFrom(r))
	if err != nil {
		writeServiceError(w, "Failed to approve settlement", err)
		return
	}
	writeJSON(w, http.StatusOK, toSettlementDTO(*st))
}

// PaySettlement moves APPROVED -> PAID.
func (h *Handler) PaySettlement(w http.ResponseWriter, r *http.Request) {
	var req PayRequest
	if r.ContentLength != 0 {
		if !h.decodeAndValidate(w, r, &req) {
			return
		}
	}
	st, err := h.Settlements.MarkPaid(r.Context(), chi.URLParam(r, "id"), settlement.PaymentInput{
		Method:    req.Method,
		Reference: req.Reference,
		PaidAt:    fromMsPtr(req.PaidAtMs),
	}, actorFrom(r))
	if err != nil {
		writeServiceError(w, "Failed to mark settlement paid", err)
		return
	}
	writeJSON(w, http.StatusOK, toSettlementDTO(*st))
}

// VoidSettlement voids a settlement with a reason.
func (h *Handler) VoidSettlement(w http.ResponseWriter, r *http.Request) {
	var req VoidRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	st, err := h.Settlements.Void(r.Context(), chi.URLParam(r, "id"), req.Reason, actorFrom(r))
	if err != nil {
		writeServiceError(w, "Failed to void settlement", err)
		return
	}
	writeJSON(w, http.StatusOK, toSettlementDTO(*st))
}

// DeleteSettlement deletes a VOID settlement and frees its rows.
func (h *Handler) DeleteSettlement(w http.ResponseWriter, r *http.Request) {
	if err := h.Settlements.Delete(r.Context(), chi.URLParam(r, "id"), actorFrom(r)); err != nil {
		writeServiceError(w, "Failed to delete settlement", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// ADJUSTMENTS
// =============================================================================

// AddAdjustment adds a manual line to a DRAFT settlement.
func (h *Handler) AddAdjustment(w http.ResponseWriter, r *http.Request) {
	var req AdjustmentRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	p, err := h.Settlements.AddAdjustment(r.Context(), chi.URLParam(r, "id"), settlement.AdjustmentInput{
		LoadID:           req.LoadID,
		Description:      req.Description,
		Quantity:         req.Quantity,
		Rate:             req.Rate,
		Category:         freight.RuleCategory(req.Category),
		IsRebillable:     req.IsRebillable,
		RebillCustomerID: req.RebillCustomerID,
		ReceiptURL:       req.ReceiptURL,
	}, actorFrom(r))
	if err != nil {
		writeServiceError(w, "Failed to add adjustment", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPayableDTO(*p))
}

// UpdateAdjustment edits a manual line of a DRAFT settlement.
func (h *Handler) UpdateAdjustment(w http.ResponseWriter, r *http.Request) {
	var req UpdatePayableRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	p, err := h.Settlements.UpdateAdjustment(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "payableID"),
		toPayableUpdate(req), actorFrom(r))
	if err != nil {
		writeServiceError(w, "Failed to update adjustment", err)
		return
	}
	writeJSON(w, http.StatusOK, toPayableDTO(*p))
}

// DeleteAdjustment removes a manual line from a DRAFT settlement.
func (h *Handler) DeleteAdjustment(w http.ResponseWriter, r *http.Request) {
	err := h.Settlements.DeleteAdjustment(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "payableID"), actorFrom(r))
	if err != nil {
		writeServiceError(w, "Failed to delete adjustment", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// STATEMENT EXPORT
// =============================================================================

// ExportStatement streams the settlement as an XLSX workbook.
func (h *Handler) ExportStatement(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	st, err := h.Settlements.Get(ctx, id)
	if err != nil {
		writeServiceError(w, "Failed to get settlement", err)
		return
	}
	payables, err := h.Settlements.Payables(ctx, id)
	if err != nil {
		writeServiceError(w, "Failed to list settlement payables", err)
		return
	}

	payeeName := st.PayeeID
	switch st.PayeeType {
	case freight.PayeeDriver:
		if d, err := h.Store.GetDriver(ctx, st.PayeeID); err == nil && d != nil {
			payeeName = d.Name
		}
	case freight.PayeeCarrier:
		if c, err := h.Store.GetCarrier(ctx, st.PayeeID); err == nil && c != nil {
			payeeName = c.CarrierName
		}
	}

	var buf bytes.Buffer
	if err := settlement.WriteStatement(&buf, *st, payeeName, payables); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to render statement", err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", st.StatementNumber+".xlsx"))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// =============================================================================
// BULK
// =============================================================================

// BulkApprove approves each settlement independently.
func (h *Handler) BulkApprove(w http.ResponseWriter, r *http.Request) {
	var req BulkRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, toBulkResultDTO(h.Settlements.BulkApprove(r.Context(), req.IDs, actorFrom(r))))
}

// BulkVoid voids each settlement independently.
func (h *Handler) BulkVoid(w http.ResponseWriter, r *http.Request) {
	var req BulkRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Reason) == "" {
		writeError(w, http.StatusBadRequest, "reason is required", nil)
		return
	}
	writeJSON(w, http.StatusOK, toBulkResultDTO(h.Settlements.BulkVoid(r.Context(), req.IDs, req.Reason, actorFrom(r))))
}

// BulkDelete deletes each VOID settlement independently.
func (h *Handler) BulkDelete(w http.ResponseWriter, r *http.Request) {
	var req BulkRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, toBulkResultDTO(h.Settlements.BulkDelete(r.Context(), req.IDs, actorFrom(r))))
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) writeSettlementDetail(w http.ResponseWriter, r *http.Request, id string, status int) {
	ctx := r.Context()
	st, err := h.Settlements.Get(ctx, id)
	if err != nil {
		writeServiceError(w, "Failed to get settlement", err)
		return
	}
	payables, err := h.Settlements.Payables(ctx, id)
	if err != nil {
		writeServiceError(w, "Failed to list settlement payables", err)
		return
	}
	totals, err := h.Settlements.Totals(ctx, id)
	if err != nil {
		writeServiceError(w, "Failed to compute totals", err)
		return
	}
	writeJSON(w, status, SettlementDetailResponse{
		Settlement: toSettlementDTO(*st),
		Payables:   toPayableDTOs(payables),
		Totals:     toTotalsDTO(*totals),
	})
}
