/*
Package settlement groups payables into pay-period statements and walks
them through approval and payment.

LIFECYCLE:
  ┌───────┐  submit  ┌─────────┐  approve  ┌──────────┐  pay  ┌──────┐
  │ DRAFT │ ───────▶ │ PENDING │ ────────▶ │ APPROVED │ ────▶ │ PAID │
  └───────┘          └─────────┘           └──────────┘       └──────┘
      │   approve (skip review)                 ▲
      └─────────────────────────────────────────┘
  Any status except VOID can be voided (reason required).
  Only a VOID settlement can be deleted.

MEMBERSHIP (DRAFT only):
  Generate / Refresh attach the payee's qualifying payables:
    - SettlementID is "" or this settlement
    - not held from this settlement
    - trigger date in [PeriodStart, PeriodEnd), where the trigger date is
      the load's delivery, completion or approval date per the pay plan
      (rows without a load use CreatedAt), or
    - carried over: held from another settlement, or the plan has
      AutoCarryover and the trigger date is before PeriodStart

  HoldLoad parks every member row of one load for a later period;
  ReleaseLoad puts them back.

FREEZE:
  Approve computes GrossTotal, TotalMiles, TotalLoads and
  TotalManualAdjustments once and stores them. Unlocked member rows are
  locked with LockedBySettlement so neither users nor the pay engine can
  change them. Totals of an APPROVED or PAID settlement are never
  recomputed.

CASCADE SAFETY:
  Every illegal transition returns *generic.TransitionError before any
  write. Delete clears SettlementID on member rows and releases the locks
  the approval applied; payables are never deleted with their settlement.

BULK:
  BulkApprove / BulkVoid / BulkDelete run each settlement in its own
  transaction and keep going after a failure.

SEE ALSO:
  - statement.go: XLSX export
  - pay/ledger.go: Manual payable validation shared by adjustments
*/
package settlement

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/freight-engine/freight"
	"github.com/warp/freight-engine/generic"
	"github.com/warp/freight-engine/metrics"
	"github.com/warp/freight-engine/pay"
)

// Service runs the settlement lifecycle.
type Service struct {
	store  freight.Store
	logger *log.Logger
	Now    func() time.Time
}

// NewService creates a settlement service.
func NewService(store freight.Store, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	return &Service{store: store, logger: logger}
}

// =============================================================================
// INPUTS & OUTPUTS
// =============================================================================

// GenerateInput describes a settlement to create.
type GenerateInput struct {
	OrgID       string
	PayeeType   freight.PayeeType
	PayeeID     string
	PayPlanID   string // optional; defaults to the payee's plan
	PeriodStart time.Time
	PeriodEnd   time.Time
	Actor       generic.Actor
}

// GenerateResult reports a generation.
type GenerateResult struct {
	Settlement freight.Settlement
	Created    bool // false when an existing settlement for the period was reused
	Attached   int
}

// PaymentInput stamps a payment.
type PaymentInput struct {
	Method    string
	Reference string
	PaidAt    *time.Time
}

// AdjustmentInput is a manual line added to a DRAFT settlement.
type AdjustmentInput struct {
	LoadID           string
	Description      string
	Quantity         decimal.Decimal
	Rate             decimal.Decimal
	Category         freight.RuleCategory
	IsRebillable     bool
	RebillCustomerID string
	ReceiptURL       string
}

// Totals summarizes a settlement's member rows.
type Totals struct {
	GrossTotal             decimal.Decimal
	TotalMiles             decimal.Decimal
	TotalLoads             int
	TotalManualAdjustments decimal.Decimal
	PayableCount           int
	Frozen                 bool
}

// BulkError names one failed item of a bulk operation.
type BulkError struct {
	ID    string
	Error string
}

// BulkResult aggregates a bulk operation.
type BulkResult struct {
	Succeeded int
	Failed    int
	Errors    []BulkError
}

// =============================================================================
// QUERIES
// =============================================================================

// Get returns a settlement or a NotFoundError.
func (s *Service) Get(ctx context.Context, id string) (*freight.Settlement, error) {
	return getSettlement(ctx, s.store, id)
}

// List returns settlements matching filter.
func (s *Service) List(ctx context.Context, filter freight.SettlementFilter) ([]freight.Settlement, error) {
	return s.store.ListSettlements(ctx, filter)
}

// Payables returns a settlement's member rows.
func (s *Service) Payables(ctx context.Context, id string) ([]freight.Payable, error) {
	if _, err := getSettlement(ctx, s.store, id); err != nil {
		return nil, err
	}
	return s.store.ListPayablesBySettlement(ctx, id)
}

// Totals returns live totals, or the frozen snapshot once approved.
func (s *Service) Totals(ctx context.Context, id string) (*Totals, error) {
	var out *Totals
	err := s.store.WithTx(ctx, func(tx freight.Store) error {
		st, err := getSettlement(ctx, tx, id)
		if err != nil {
			return err
		}
		members, err := tx.ListPayablesBySettlement(ctx, st.ID)
		if err != nil {
			return err
		}
		if st.Status.IsFrozen() && st.GrossTotal != nil {
			out = frozenTotals(*st, len(members))
			return nil
		}
		out, err = computeTotals(ctx, tx, members)
		return err
	})
	return out, err
}

// =============================================================================
// GENERATE & REFRESH
// =============================================================================

// Generate creates a DRAFT settlement for a payee and period and attaches
// qualifying payables. An existing non-void settlement for the same payee
// and period start is reused; a DRAFT one is refreshed.
func (s *Service) Generate(ctx context.Context, in GenerateInput) (*GenerateResult, error) {
	if !in.PayeeType.Valid() {
		return nil, generic.NewValidation("payee_type", "unknown payee type %q", in.PayeeType)
	}
	if in.PayeeID == "" {
		return nil, generic.NewValidation("payee_id", "is required")
	}
	period := generic.Period{Start: in.PeriodStart.UTC(), End: in.PeriodEnd.UTC()}
	if err := period.Validate(); err != nil {
		return nil, err
	}

	var out GenerateResult
	err := s.store.WithTx(ctx, func(tx freight.Store) error {
		payee, err := lookupPayee(ctx, tx, in.PayeeType, in.PayeeID)
		if err != nil {
			return err
		}
		if in.OrgID != "" && payee.orgID != in.OrgID {
			return generic.NewNotFound(strings.ToLower(string(in.PayeeType)), in.PayeeID)
		}
		planID := in.PayPlanID
		if planID == "" {
			planID = payee.planID
		}
		plan, err := lookupPlan(ctx, tx, planID)
		if err != nil {
			return err
		}

		existing, err := tx.FindSettlement(ctx, in.PayeeType, in.PayeeID, period.Start)
		if err != nil {
			return err
		}
		if existing != nil {
			out.Settlement = *existing
			if existing.Status != freight.SettlementDraft {
				return nil
			}
			out.Attached, err = s.attach(ctx, tx, existing, plan)
			return err
		}

		number, err := tx.NextStatementNumber(ctx, payee.orgID)
		if err != nil {
			return err
		}
		now := s.now()
		st := freight.Settlement{
			ID:              uuid.NewString(),
			OrgID:           payee.orgID,
			PayeeType:       in.PayeeType,
			PayeeID:         in.PayeeID,
			PayPlanID:       planID,
			PeriodStart:     period.Start,
			PeriodEnd:       period.End,
			Status:          freight.SettlementDraft,
			StatementNumber: number,
			CreatedBy:       in.Actor.ID,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := tx.SaveSettlement(ctx, st); err != nil {
			return err
		}
		attached, err := s.attach(ctx, tx, &st, plan)
		if err != nil {
			return err
		}

		s.audit(ctx, tx, st, generic.AuditSettlementGenerated, in.Actor,
			fmt.Sprintf("Generated settlement %s for %s %s, %s; %d payables attached",
				st.StatementNumber, strings.ToLower(string(st.PayeeType)), payee.name, period, attached))
		out = GenerateResult{Settlement: st, Created: true, Attached: attached}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if out.Created {
		metrics.SettlementTransitions.WithLabelValues(string(freight.SettlementDraft)).Inc()
	}
	return &out, nil
}

// GenerateForPlan generates the settlement for the payee's most recently
// closed pay period as of asOf.
func (s *Service) GenerateForPlan(ctx context.Context, payeeType freight.PayeeType, payeeID string, asOf time.Time, actor generic.Actor) (*GenerateResult, error) {
	payee, err := lookupPayee(ctx, s.store, payeeType, payeeID)
	if err != nil {
		return nil, err
	}
	if payee.planID == "" {
		return nil, generic.NewValidation("pay_plan_id", "%s %s has no pay plan", strings.ToLower(string(payeeType)), payeeID)
	}
	plan, err := lookupPlan(ctx, s.store, payee.planID)
	if err != nil {
		return nil, err
	}
	if !plan.IsActive {
		return nil, generic.NewValidation("pay_plan_id", "pay plan %s is inactive", plan.Name)
	}
	cfg, err := plan.PeriodConfig()
	if err != nil {
		return nil, err
	}
	period := cfg.LastClosed(asOf)
	return s.Generate(ctx, GenerateInput{
		OrgID:       payee.orgID,
		PayeeType:   payeeType,
		PayeeID:     payeeID,
		PayPlanID:   plan.ID,
		PeriodStart: period.Start,
		PeriodEnd:   period.End,
		Actor:       actor,
	})
}

// GenerateDue generates plan settlements for every active payee of the org
// whose previous period has closed. Payees that fail are logged and skipped.
func (s *Service) GenerateDue(ctx context.Context, orgID string, asOf time.Time) (int, error) {
	drivers, err := s.store.ListDrivers(ctx, orgID)
	if err != nil {
		return 0, err
	}
	carriers, err := s.store.ListCarriers(ctx, orgID)
	if err != nil {
		return 0, err
	}

	type payeeRef struct {
		kind freight.PayeeType
		id   string
	}
	var due []payeeRef
	for _, d := range drivers {
		if d.PayPlanID != "" && d.IsAssignable() {
			due = append(due, payeeRef{freight.PayeeDriver, d.ID})
		}
	}
	for _, c := range carriers {
		if c.PayPlanID != "" && c.IsAssignable() {
			due = append(due, payeeRef{freight.PayeeCarrier, c.ID})
		}
	}

	created := 0
	for _, p := range due {
		res, err := s.GenerateForPlan(ctx, p.kind, p.id, asOf, generic.SystemActor)
		if err != nil {
			s.logger.Printf("[Settlement] generate for %s %s: %v", p.kind, p.id, err)
			continue
		}
		if res.Created {
			created++
		}
	}
	return created, nil
}

// Refresh re-attaches qualifying payables to a DRAFT settlement and
// returns how many were newly attached.
func (s *Service) Refresh(ctx context.Context, id string, actor generic.Actor) (int, error) {
	attached := 0
	err := s.store.WithTx(ctx, func(tx freight.Store) error {
		st, err := getSettlement(ctx, tx, id)
		if err != nil {
			return err
		}
		if st.Status != freight.SettlementDraft {
			return rejectTransition(*st, "REFRESH")
		}
		plan, err := lookupPlan(ctx, tx, st.PayPlanID)
		if err != nil {
			return err
		}
		attached, err = s.attach(ctx, tx, st, plan)
		if err != nil {
			return err
		}
		st.UpdatedAt = s.now()
		if err := tx.SaveSettlement(ctx, *st); err != nil {
			return err
		}
		s.audit(ctx, tx, *st, generic.AuditSettlementRefreshed, actor,
			fmt.Sprintf("Refreshed settlement %s; %d payables attached", st.StatementNumber, attached))
		return nil
	})
	return attached, err
}

// attach links every qualifying payable of the payee to st.
func (s *Service) attach(ctx context.Context, tx freight.Store, st *freight.Settlement, plan *freight.PayPlan) (int, error) {
	rows, err := tx.ListPayablesByPayee(ctx, st.PayeeType, st.PayeeID)
	if err != nil {
		return 0, err
	}
	q := qualifier{tx: tx, settlement: *st, plan: plan, loads: make(map[string]*freight.Load)}
	now := s.now()

	attached := 0
	for _, p := range rows {
		if p.SettlementID == st.ID {
			continue
		}
		ok, err := q.qualifies(ctx, p)
		if err != nil {
			return 0, err
		}
		if !ok {
			continue
		}
		p.SettlementID = st.ID
		p.HeldFromSettlementID = ""
		p.UpdatedAt = now
		if err := tx.SavePayable(ctx, p); err != nil {
			return 0, err
		}
		attached++
	}
	return attached, nil
}

// qualifier decides settlement membership, caching loads across rows.
type qualifier struct {
	tx         freight.Store
	settlement freight.Settlement
	plan       *freight.PayPlan
	loads      map[string]*freight.Load
}

func (q *qualifier) qualifies(ctx context.Context, p freight.Payable) (bool, error) {
	st := q.settlement
	if p.OrgID != st.OrgID {
		return false, nil
	}
	if p.SettlementID != "" && p.SettlementID != st.ID {
		return false, nil
	}
	if p.HeldFromSettlementID == st.ID {
		return false, nil
	}

	date, known, err := q.triggerDate(ctx, p)
	if err != nil {
		return false, err
	}
	if p.IsHeld() {
		return !known || date.Before(st.PeriodEnd), nil
	}
	if !known {
		return false, nil
	}
	if st.Period().Contains(date) {
		return true, nil
	}
	return q.plan != nil && q.plan.AutoCarryover && date.Before(st.PeriodStart), nil
}

// triggerDate returns the date that places p in a period.
func (q *qualifier) triggerDate(ctx context.Context, p freight.Payable) (time.Time, bool, error) {
	if p.LoadID == "" {
		return p.CreatedAt, true, nil
	}
	load, ok := q.loads[p.LoadID]
	if !ok {
		var err error
		load, err = q.tx.GetLoad(ctx, p.LoadID)
		if err != nil {
			return time.Time{}, false, err
		}
		q.loads[p.LoadID] = load
	}
	if load == nil {
		return p.CreatedAt, true, nil
	}

	trigger := freight.TriggerDeliveryDate
	if q.plan != nil {
		trigger = q.plan.Trigger()
	}
	var at *time.Time
	switch trigger {
	case freight.TriggerCompletionDate:
		at = load.CompletedAt
	case freight.TriggerApprovalDate:
		at = load.ApprovedAt
	default:
		at = load.DeliveredAt
	}
	if at == nil {
		return time.Time{}, false, nil
	}
	return *at, true, nil
}

// =============================================================================
// HOLD & RELEASE
// =============================================================================

// HoldLoad detaches every member row of a load and parks it for a later
// period. Returns the number of rows held.
func (s *Service) HoldLoad(ctx context.Context, settlementID, loadID string, actor generic.Actor) (int, error) {
	held := 0
	err := s.store.WithTx(ctx, func(tx freight.Store) error {
		st, err := getSettlement(ctx, tx, settlementID)
		if err != nil {
			return err
		}
		if st.Status != freight.SettlementDraft {
			return rejectTransition(*st, "HOLD")
		}
		members, err := tx.ListPayablesBySettlement(ctx, st.ID)
		if err != nil {
			return err
		}
		now := s.now()
		for _, p := range members {
			if p.LoadID != loadID {
				continue
			}
			p.SettlementID = ""
			p.HeldFromSettlementID = st.ID
			p.UpdatedAt = now
			if err := tx.SavePayable(ctx, p); err != nil {
				return err
			}
			held++
		}
		if held == 0 {
			return generic.NewValidation("load_id", "load %s has no payables in settlement %s", loadID, st.StatementNumber)
		}
		entry := s.entry(*st, generic.AuditSettlementHold, actor,
			fmt.Sprintf("Held %d payables of load %s from settlement %s", held, loadID, st.StatementNumber))
		entry.After = map[string]any{"load_id": loadID}
		generic.Record(ctx, tx, s.logger, entry)
		return nil
	})
	return held, err
}

// ReleaseLoad puts a held load's rows back into the settlement. Rows that
// were already picked up by another settlement stay where they are.
func (s *Service) ReleaseLoad(ctx context.Context, settlementID, loadID string, actor generic.Actor) (int, error) {
	released := 0
	err := s.store.WithTx(ctx, func(tx freight.Store) error {
		st, err := getSettlement(ctx, tx, settlementID)
		if err != nil {
			return err
		}
		if st.Status != freight.SettlementDraft {
			return rejectTransition(*st, "RELEASE")
		}
		rows, err := tx.ListPayablesByPayee(ctx, st.PayeeType, st.PayeeID)
		if err != nil {
			return err
		}
		now := s.now()
		for _, p := range rows {
			if p.LoadID != loadID || p.HeldFromSettlementID != st.ID || p.SettlementID != "" {
				continue
			}
			p.SettlementID = st.ID
			p.HeldFromSettlementID = ""
			p.UpdatedAt = now
			if err := tx.SavePayable(ctx, p); err != nil {
				return err
			}
			released++
		}
		if released == 0 {
			return generic.NewValidation("load_id", "load %s has no payables held from settlement %s", loadID, st.StatementNumber)
		}
		entry := s.entry(*st, generic.AuditSettlementRelease, actor,
			fmt.Sprintf("Released %d payables of load %s into settlement %s", released, loadID, st.StatementNumber))
		entry.After = map[string]any{"load_id": loadID}
		generic.Record(ctx, tx, s.logger, entry)
		return nil
	})
	return released, err
}

// =============================================================================
// TRANSITIONS
// =============================================================================

// Submit moves a DRAFT settlement to PENDING review.
func (s *Service) Submit(ctx context.Context, id string, actor generic.Actor) (*freight.Settlement, error) {
	return s.transition(ctx, id, freight.SettlementPending, actor, func(tx freight.Store, st *freight.Settlement) (string, error) {
		if st.Status != freight.SettlementDraft {
			return "", rejectTransition(*st, string(freight.SettlementPending))
		}
		return fmt.Sprintf("Submitted settlement %s for approval", st.StatementNumber), nil
	})
}

// Approve freezes the totals of a DRAFT or PENDING settlement and locks its rows.
func (s *Service) Approve(ctx context.Context, id string, actor generic.Actor) (*freight.Settlement, error) {
	return s.transition(ctx, id, freight.SettlementApproved, actor, func(tx freight.Store, st *freight.Settlement) (string, error) {
		if st.Status != freight.SettlementDraft && st.Status != freight.SettlementPending {
			return "", rejectTransition(*st, string(freight.SettlementApproved))
		}
		members, err := tx.ListPayablesBySettlement(ctx, st.ID)
		if err != nil {
			return "", err
		}
		totals, err := computeTotals(ctx, tx, members)
		if err != nil {
			return "", err
		}

		now := s.now()
		for _, p := range members {
			if p.IsLocked {
				continue
			}
			p.IsLocked = true
			p.LockedBySettlement = true
			p.UpdatedAt = now
			if err := tx.SavePayable(ctx, p); err != nil {
				return "", err
			}
		}

		loads := totals.TotalLoads
		st.GrossTotal = generic.DecimalPtr(totals.GrossTotal)
		st.TotalMiles = generic.DecimalPtr(totals.TotalMiles)
		st.TotalLoads = &loads
		st.TotalManualAdjustments = generic.DecimalPtr(totals.TotalManualAdjustments)
		st.ApprovedAt = &now
		st.ApprovedBy = actor.ID
		return fmt.Sprintf("Approved settlement %s: gross %s over %d loads",
			st.StatementNumber, totals.GrossTotal.StringFixed(2), loads), nil
	})
}

// MarkPaid records payment of an APPROVED settlement.
func (s *Service) MarkPaid(ctx context.Context, id string, in PaymentInput, actor generic.Actor) (*freight.Settlement, error) {
	return s.transition(ctx, id, freight.SettlementPaid, actor, func(tx freight.Store, st *freight.Settlement) (string, error) {
		if st.Status != freight.SettlementApproved {
			return "", rejectTransition(*st, string(freight.SettlementPaid))
		}
		paidAt := s.now()
		if in.PaidAt != nil {
			paidAt = in.PaidAt.UTC()
		}
		st.PaidAt = &paidAt
		st.PaidBy = actor.ID
		st.PaymentMethod = in.Method
		st.PaymentReference = in.Reference
		desc := fmt.Sprintf("Marked settlement %s paid", st.StatementNumber)
		if in.Method != "" {
			desc += " by " + in.Method
		}
		return desc, nil
	})
}

// Void closes a settlement without deleting its rows. A reason is required.
func (s *Service) Void(ctx context.Context, id, reason string, actor generic.Actor) (*freight.Settlement, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, generic.ErrReasonRequired
	}
	return s.transition(ctx, id, freight.SettlementVoid, actor, func(tx freight.Store, st *freight.Settlement) (string, error) {
		if st.Status == freight.SettlementVoid {
			return "", rejectTransition(*st, string(freight.SettlementVoid))
		}
		now := s.now()
		st.VoidedAt = &now
		st.VoidedBy = actor.ID
		st.VoidReason = reason
		return fmt.Sprintf("Voided settlement %s: %s", st.StatementNumber, reason), nil
	})
}

// Delete removes a VOID settlement. Member rows return to the unassigned
// pool; locks applied by the approval are released.
func (s *Service) Delete(ctx context.Context, id string, actor generic.Actor) error {
	err := s.store.WithTx(ctx, func(tx freight.Store) error {
		st, err := getSettlement(ctx, tx, id)
		if err != nil {
			return err
		}
		if st.Status != freight.SettlementVoid {
			return rejectTransition(*st, "DELETED")
		}

		members, err := tx.ListPayablesBySettlement(ctx, st.ID)
		if err != nil {
			return err
		}
		payeeRows, err := tx.ListPayablesByPayee(ctx, st.PayeeType, st.PayeeID)
		if err != nil {
			return err
		}
		for _, p := range payeeRows {
			if p.HeldFromSettlementID == st.ID && p.SettlementID != st.ID {
				members = append(members, p)
			}
		}

		now := s.now()
		for _, p := range members {
			if p.SettlementID == st.ID {
				p.SettlementID = ""
			}
			if p.HeldFromSettlementID == st.ID {
				p.HeldFromSettlementID = ""
			}
			if p.LockedBySettlement {
				p.IsLocked = false
				p.LockedBySettlement = false
			}
			p.UpdatedAt = now
			if err := tx.SavePayable(ctx, p); err != nil {
				return err
			}
		}
		if err := tx.DeleteSettlement(ctx, st.ID); err != nil {
			return err
		}
		s.audit(ctx, tx, *st, generic.AuditSettlementDeleted, actor,
			fmt.Sprintf("Deleted settlement %s; %d payables returned to the pool", st.StatementNumber, len(members)))
		return nil
	})
	if err == nil {
		metrics.SettlementTransitions.WithLabelValues("DELETED").Inc()
	}
	return err
}

// transition loads a settlement, lets apply validate and mutate it, then
// saves it with the new status and records one audit entry.
func (s *Service) transition(
	ctx context.Context,
	id string,
	to freight.SettlementStatus,
	actor generic.Actor,
	apply func(tx freight.Store, st *freight.Settlement) (string, error),
) (*freight.Settlement, error) {
	var out freight.Settlement
	err := s.store.WithTx(ctx, func(tx freight.Store) error {
		st, err := getSettlement(ctx, tx, id)
		if err != nil {
			return err
		}
		from := st.Status
		desc, err := apply(tx, st)
		if err != nil {
			return err
		}
		st.Status = to
		st.UpdatedAt = s.now()
		if err := tx.SaveSettlement(ctx, *st); err != nil {
			return err
		}

		entry := s.entry(*st, auditActionFor(to), actor, desc)
		entry.Before = map[string]any{"status": string(from)}
		entry.After = map[string]any{"status": string(to)}
		generic.Record(ctx, tx, s.logger, entry)
		out = *st
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.SettlementTransitions.WithLabelValues(string(to)).Inc()
	return &out, nil
}

func auditActionFor(to freight.SettlementStatus) generic.AuditAction {
	switch to {
	case freight.SettlementPending:
		return generic.AuditSettlementSubmitted
	case freight.SettlementApproved:
		return generic.AuditSettlementApproved
	case freight.SettlementPaid:
		return generic.AuditSettlementPaid
	default:
		return generic.AuditSettlementVoided
	}
}

// =============================================================================
// MANUAL ADJUSTMENTS (DRAFT only)
// =============================================================================

// AddAdjustment adds a manual line to a DRAFT settlement.
func (s *Service) AddAdjustment(ctx context.Context, settlementID string, in AdjustmentInput, actor generic.Actor) (*freight.Payable, error) {
	var out freight.Payable
	err := s.store.WithTx(ctx, func(tx freight.Store) error {
		st, err := draftSettlement(ctx, tx, settlementID)
		if err != nil {
			return err
		}
		p, err := pay.NewManualPayable(pay.ManualPayableInput{
			OrgID:            st.OrgID,
			PayeeType:        st.PayeeType,
			PayeeID:          st.PayeeID,
			LoadID:           in.LoadID,
			SettlementID:     st.ID,
			Description:      in.Description,
			Quantity:         in.Quantity,
			Rate:             in.Rate,
			Category:         in.Category,
			IsRebillable:     in.IsRebillable,
			RebillCustomerID: in.RebillCustomerID,
			ReceiptURL:       in.ReceiptURL,
		}, actor, s.now())
		if err != nil {
			return err
		}
		if err := tx.SavePayable(ctx, p); err != nil {
			return err
		}
		s.audit(ctx, tx, *st, generic.AuditAdjustmentChanged, actor,
			fmt.Sprintf("Added adjustment %q (%s) to settlement %s", p.Description, p.TotalAmount.StringFixed(2), st.StatementNumber))
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateAdjustment edits a manual line of a DRAFT settlement.
func (s *Service) UpdateAdjustment(ctx context.Context, settlementID, payableID string, u pay.PayableUpdate, actor generic.Actor) (*freight.Payable, error) {
	var out freight.Payable
	err := s.store.WithTx(ctx, func(tx freight.Store) error {
		st, p, err := s.adjustment(ctx, tx, settlementID, payableID)
		if err != nil {
			return err
		}
		before := p.TotalAmount
		if err := pay.ApplyUpdate(p, u); err != nil {
			return err
		}
		p.UpdatedAt = s.now()
		if err := tx.SavePayable(ctx, *p); err != nil {
			return err
		}
		entry := s.entry(*st, generic.AuditAdjustmentChanged, actor,
			fmt.Sprintf("Updated adjustment %q on settlement %s", p.Description, st.StatementNumber))
		entry.Before = map[string]any{"payable_id": p.ID, "total_amount": before.StringFixed(2)}
		entry.After = map[string]any{"payable_id": p.ID, "total_amount": p.TotalAmount.StringFixed(2)}
		generic.Record(ctx, tx, s.logger, entry)
		out = *p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteAdjustment removes a manual line from a DRAFT settlement.
func (s *Service) DeleteAdjustment(ctx context.Context, settlementID, payableID string, actor generic.Actor) error {
	return s.store.WithTx(ctx, func(tx freight.Store) error {
		st, p, err := s.adjustment(ctx, tx, settlementID, payableID)
		if err != nil {
			return err
		}
		if err := tx.DeletePayable(ctx, p.ID); err != nil {
			return err
		}
		s.audit(ctx, tx, *st, generic.AuditAdjustmentChanged, actor,
			fmt.Sprintf("Deleted adjustment %q from settlement %s", p.Description, st.StatementNumber))
		return nil
	})
}

func (s *Service) adjustment(ctx context.Context, tx freight.Store, settlementID, payableID string) (*freight.Settlement, *freight.Payable, error) {
	st, err := draftSettlement(ctx, tx, settlementID)
	if err != nil {
		return nil, nil, err
	}
	p, err := tx.GetPayable(ctx, payableID)
	if err != nil {
		return nil, nil, err
	}
	if p == nil || p.SettlementID != st.ID {
		return nil, nil, generic.NewNotFound("adjustment", payableID)
	}
	if err := pay.CheckEditable(ctx, tx, *p); err != nil {
		return nil, nil, err
	}
	return st, p, nil
}

// =============================================================================
// BULK
// =============================================================================

// BulkApprove approves each settlement independently.
func (s *Service) BulkApprove(ctx context.Context, ids []string, actor generic.Actor) BulkResult {
	return bulk(ids, func(id string) error {
		_, err := s.Approve(ctx, id, actor)
		return err
	})
}

// BulkVoid voids each settlement independently.
func (s *Service) BulkVoid(ctx context.Context, ids []string, reason string, actor generic.Actor) BulkResult {
	return bulk(ids, func(id string) error {
		_, err := s.Void(ctx, id, reason, actor)
		return err
	})
}

// BulkDelete deletes each settlement independently.
func (s *Service) BulkDelete(ctx context.Context, ids []string, actor generic.Actor) BulkResult {
	return bulk(ids, func(id string) error {
		return s.Delete(ctx, id, actor)
	})
}

func bulk(ids []string, fn func(id string) error) BulkResult {
	var res BulkResult
	for _, id := range ids {
		if err := fn(id); err != nil {
			res.Failed++
			res.Errors = append(res.Errors, BulkError{ID: id, Error: err.Error()})
			continue
		}
		res.Succeeded++
	}
	return res
}

// =============================================================================
// HELPERS
// =============================================================================

func computeTotals(ctx context.Context, tx freight.Store, members []freight.Payable) (*Totals, error) {
	t := &Totals{PayableCount: len(members)}
	gross := make([]decimal.Decimal, 0, len(members))
	var manual []decimal.Decimal
	loads := make(map[string]bool)
	legs := make(map[string]bool)

	for _, p := range members {
		gross = append(gross, p.TotalAmount)
		if p.SourceType == freight.SourceManual {
			manual = append(manual, p.TotalAmount)
		}
		if p.LoadID != "" {
			loads[p.LoadID] = true
		}
		if p.LegID != "" {
			legs[p.LegID] = true
		}
	}

	legIDs := make([]string, 0, len(legs))
	for id := range legs {
		legIDs = append(legIDs, id)
	}
	sort.Strings(legIDs)
	miles := decimal.Zero
	for _, id := range legIDs {
		leg, err := tx.GetLeg(ctx, id)
		if err != nil {
			return nil, err
		}
		if leg != nil {
			miles = miles.Add(leg.LoadedMiles).Add(leg.EmptyMiles)
		}
	}

	t.GrossTotal = generic.SumMoney(gross...)
	t.TotalManualAdjustments = generic.SumMoney(manual...)
	t.TotalMiles = miles
	t.TotalLoads = len(loads)
	return t, nil
}

func frozenTotals(st freight.Settlement, count int) *Totals {
	t := &Totals{PayableCount: count, Frozen: true, GrossTotal: *st.GrossTotal}
	if st.TotalMiles != nil {
		t.TotalMiles = *st.TotalMiles
	}
	if st.TotalLoads != nil {
		t.TotalLoads = *st.TotalLoads
	}
	if st.TotalManualAdjustments != nil {
		t.TotalManualAdjustments = *st.TotalManualAdjustments
	}
	return t
}

type payeeInfo struct {
	orgID  string
	name   string
	planID string
}

// lookupPayee resolves a driver or carrier partnership.
func lookupPayee(ctx context.Context, store freight.Store, kind freight.PayeeType, id string) (*payeeInfo, error) {
	switch kind {
	case freight.PayeeDriver:
		d, err := store.GetDriver(ctx, id)
		if err != nil {
			return nil, err
		}
		if d == nil {
			return nil, generic.NewNotFound("driver", id)
		}
		return &payeeInfo{orgID: d.OrgID, name: d.Name, planID: d.PayPlanID}, nil
	case freight.PayeeCarrier:
		c, err := store.GetCarrier(ctx, id)
		if err != nil {
			return nil, err
		}
		if c == nil {
			return nil, generic.NewNotFound("carrier", id)
		}
		return &payeeInfo{orgID: c.OrgID, name: c.CarrierName, planID: c.PayPlanID}, nil
	}
	return nil, generic.NewValidation("payee_type", "unknown payee type %q", kind)
}

// lookupPlan returns nil for an empty id.
func lookupPlan(ctx context.Context, store freight.Store, id string) (*freight.PayPlan, error) {
	if id == "" {
		return nil, nil
	}
	plan, err := store.GetPayPlan(ctx, id)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, generic.NewNotFound("pay plan", id)
	}
	return plan, nil
}

func getSettlement(ctx context.Context, store freight.Store, id string) (*freight.Settlement, error) {
	st, err := store.GetSettlement(ctx, id)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, generic.NewNotFound("settlement", id)
	}
	return st, nil
}

func draftSettlement(ctx context.Context, tx freight.Store, id string) (*freight.Settlement, error) {
	st, err := getSettlement(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if st.Status != freight.SettlementDraft {
		return nil, generic.ErrSettlementLocked
	}
	return st, nil
}

func rejectTransition(st freight.Settlement, to string) error {
	return &generic.TransitionError{Entity: "settlement", ID: st.ID, From: string(st.Status), To: to}
}

func (s *Service) entry(st freight.Settlement, action generic.AuditAction, actor generic.Actor, desc string) generic.AuditEntry {
	return generic.AuditEntry{
		OrgID:       st.OrgID,
		EntityType:  "settlement",
		EntityID:    st.ID,
		Action:      action,
		Description: desc,
	}.WithActor(actor)
}

func (s *Service) audit(ctx context.Context, tx freight.Store, st freight.Settlement, action generic.AuditAction, actor generic.Actor, desc string) {
	generic.Record(ctx, tx, s.logger, s.entry(st, action, actor, desc))
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}
