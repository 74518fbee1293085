package freight

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/freight-engine/generic"
)

// =============================================================================
// PAYABLE - One money line
// =============================================================================

type SourceType string

const (
	SourceSystem SourceType = "SYSTEM" // owned by the pay engine
	SourceManual SourceType = "MANUAL" // entered by a user
)

// Payable is a single pay line for a driver or carrier.
//
// Ownership rules:
//   - IsLocked rows are never deleted or rewritten by the pay engine.
//   - SettlementID "" means the row is available for a future settlement.
//   - HeldFromSettlementID marks a row pulled out of a settlement for the
//     next period; the settlement it was held from will not re-attach it.
type Payable struct {
	ID          string
	OrgID       string
	PayeeType   PayeeType
	PayeeID     string
	LoadID      string
	LegID       string
	Description string
	Quantity    decimal.Decimal
	Rate        decimal.Decimal
	TotalAmount decimal.Decimal
	SourceType  SourceType
	Category    RuleCategory

	IsLocked           bool
	LockedBySettlement bool // lock applied by settlement approval

	SettlementID         string
	HeldFromSettlementID string

	IsRebillable     bool
	RebillCustomerID string
	ReceiptURL       string

	RuleID         string
	WarningMessage string

	CreatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsHeld reports whether the row is parked for a later period.
func (p Payable) IsHeld() bool {
	return p.HeldFromSettlementID != ""
}

// LineTotal computes quantity x rate, negated for deductions and rounded to cents.
func LineTotal(quantity, rate decimal.Decimal, category RuleCategory) decimal.Decimal {
	total := quantity.Mul(rate)
	if category == CategoryDeduction && total.IsPositive() {
		total = total.Neg()
	}
	return generic.RoundMoney(total)
}

// =============================================================================
// SETTLEMENT - A pay-period statement
// =============================================================================

type SettlementStatus string

const (
	SettlementDraft    SettlementStatus = "DRAFT"
	SettlementPending  SettlementStatus = "PENDING"
	SettlementApproved SettlementStatus = "APPROVED"
	SettlementPaid     SettlementStatus = "PAID"
	SettlementVoid     SettlementStatus = "VOID"
)

// IsFrozen reports whether totals are snapshots and member rows are read-only.
func (s SettlementStatus) IsFrozen() bool {
	return s == SettlementApproved || s == SettlementPaid
}

// Settlement groups a payee's payables for one period.
type Settlement struct {
	ID              string
	OrgID           string
	PayeeType       PayeeType
	PayeeID         string
	PayPlanID       string
	PeriodStart     time.Time
	PeriodEnd       time.Time
	Status          SettlementStatus
	StatementNumber string

	// Frozen on approval. Nil until then.
	GrossTotal             *decimal.Decimal
	TotalMiles             *decimal.Decimal
	TotalLoads             *int
	TotalManualAdjustments *decimal.Decimal

	ApprovedAt       *time.Time
	ApprovedBy       string
	PaidAt           *time.Time
	PaidBy           string
	PaymentMethod    string
	PaymentReference string
	VoidedAt         *time.Time
	VoidedBy         string
	VoidReason       string

	CreatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Period returns the settlement window.
func (s Settlement) Period() generic.Period {
	return generic.Period{Start: s.PeriodStart, End: s.PeriodEnd}
}

// SettlementFilter narrows settlement listings.
type SettlementFilter struct {
	OrgID     string
	PayeeType PayeeType
	PayeeID   string
	Status    SettlementStatus
}

// =============================================================================
// PAY PLAN - Timing template
// =============================================================================

type PayableTrigger string

const (
	TriggerDeliveryDate   PayableTrigger = "DELIVERY_DATE"
	TriggerCompletionDate PayableTrigger = "COMPLETION_DATE"
	TriggerApprovalDate   PayableTrigger = "APPROVAL_DATE"
)

// PayPlan defines when periods start/end and which payables qualify.
type PayPlan struct {
	ID             string
	OrgID          string
	Name           string
	Frequency      generic.Frequency
	AnchorDay      int
	AnchorDate     *time.Time
	CutoffTime     string // HH:MM
	PaymentLagDays int
	PayableTrigger PayableTrigger
	AutoCarryover  bool
	IsActive       bool
	CreatedAt      time.Time
}

// PeriodConfig converts the plan into a period calculator.
func (p PayPlan) PeriodConfig() (generic.PeriodConfig, error) {
	if !p.Frequency.Valid() {
		return generic.PeriodConfig{}, generic.NewValidation("frequency", "unknown frequency %q", p.Frequency)
	}
	hour, minute, err := generic.ParseCutoff(p.CutoffTime)
	if err != nil {
		return generic.PeriodConfig{}, err
	}
	return generic.PeriodConfig{
		Frequency:    p.Frequency,
		AnchorDay:    p.AnchorDay,
		AnchorDate:   p.AnchorDate,
		CutoffHour:   hour,
		CutoffMinute: minute,
	}, nil
}

// Trigger returns the plan's payable trigger, defaulting to delivery date.
func (p PayPlan) Trigger() PayableTrigger {
	if p.PayableTrigger == "" {
		return TriggerDeliveryDate
	}
	return p.PayableTrigger
}
