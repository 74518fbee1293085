/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

WIRE FORMATS:
  - Money, miles, hours and rates are decimal strings ("1000.00")
  - System timestamps are Unix milliseconds in *_ms fields
  - Stop schedule values are ISO-8601 strings or "TBD"

VALIDATION:
  Request types carry go-playground/validator struct tags. Handlers call
  decodeAndValidate before touching the services.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/profile.go: ProfileJSON type
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/freight-engine/dispatch"
	"github.com/warp/freight-engine/factory"
	"github.com/warp/freight-engine/freight"
	"github.com/warp/freight-engine/generic"
	"github.com/warp/freight-engine/settlement"
)

// =============================================================================
// PARTIES
// =============================================================================

type DriverDTO struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Status         string `json:"status"`
	CarrierOrgID   string `json:"carrier_org_id,omitempty"`
	PayPlanID      string `json:"pay_plan_id,omitempty"`
	CurrentTruckID string `json:"current_truck_id,omitempty"`
	CurrentCity    string `json:"current_city,omitempty"`
	CurrentState   string `json:"current_state,omitempty"`
	OpenLegs       *int   `json:"open_legs,omitempty"`
	CreatedAtMs    int64  `json:"created_at_ms"`
}

type CreateDriverRequest struct {
	ID             string `json:"id"`
	Name           string `json:"name" validate:"required,max=200"`
	CarrierOrgID   string `json:"carrier_org_id"`
	PayPlanID      string `json:"pay_plan_id"`
	CurrentTruckID string `json:"current_truck_id"`
	CurrentCity    string `json:"current_city"`
	CurrentState   string `json:"current_state" validate:"omitempty,len=2"`
}

type CarrierDTO struct {
	ID           string `json:"id"`
	CarrierOrgID string `json:"carrier_org_id"`
	CarrierName  string `json:"carrier_name"`
	Status       string `json:"status"`
	PayPlanID    string `json:"pay_plan_id,omitempty"`
	CreatedAtMs  int64  `json:"created_at_ms"`
}

type CreateCarrierRequest struct {
	ID           string `json:"id"`
	CarrierOrgID string `json:"carrier_org_id" validate:"required"`
	CarrierName  string `json:"carrier_name" validate:"required,max=200"`
	PayPlanID    string `json:"pay_plan_id"`
}

type DeactivationDTO struct {
	DriverIDs      []string `json:"driver_ids"`
	PartnershipIDs []string `json:"partnership_ids"`
	LegsReleased   int      `json:"legs_released"`
	LoadsReopened  int      `json:"loads_reopened"`
}

// =============================================================================
// LOADS, STOPS, LEGS
// =============================================================================

type StopRequest struct {
	ID              string `json:"id"`
	SequenceNumber  int    `json:"sequence_number" validate:"gte=0"`
	StopType        string `json:"stop_type" validate:"required,oneof=PICKUP DELIVERY"`
	City            string `json:"city"`
	State           string `json:"state"`
	WindowBeginDate string `json:"window_begin_date"`
	WindowBeginTime string `json:"window_begin_time"`
	WindowEndDate   string `json:"window_end_date"`
	WindowEndTime   string `json:"window_end_time"`
}

type CreateLoadRequest struct {
	ID             string           `json:"id"`
	OrderNumber    string           `json:"order_number" validate:"required"`
	HCR            string           `json:"hcr"`
	TripNumber     string           `json:"trip_number"`
	EffectiveMiles decimal.Decimal  `json:"effective_miles"`
	IsHazmat       bool             `json:"is_hazmat"`
	RequiresTarp   bool             `json:"requires_tarp"`
	Revenue        *decimal.Decimal `json:"revenue"`
	Stops          []StopRequest    `json:"stops" validate:"dive"`
}

type StopDTO struct {
	ID              string `json:"id"`
	SequenceNumber  int    `json:"sequence_number"`
	StopType        string `json:"stop_type"`
	City            string `json:"city,omitempty"`
	State           string `json:"state,omitempty"`
	WindowBeginDate string `json:"window_begin_date,omitempty"`
	WindowBeginTime string `json:"window_begin_time,omitempty"`
	WindowEndDate   string `json:"window_end_date,omitempty"`
	WindowEndTime   string `json:"window_end_time,omitempty"`
	CheckedInAtMs   *int64 `json:"checked_in_at_ms,omitempty"`
	CheckedOutAtMs  *int64 `json:"checked_out_at_ms,omitempty"`
}

type LegDTO struct {
	ID                   string          `json:"id"`
	Sequence             int             `json:"sequence"`
	Status               string          `json:"status"`
	DriverID             string          `json:"driver_id,omitempty"`
	CarrierPartnershipID string          `json:"carrier_partnership_id,omitempty"`
	TruckID              string          `json:"truck_id,omitempty"`
	TrailerID            string          `json:"trailer_id,omitempty"`
	StartStopID          string          `json:"start_stop_id"`
	EndStopID            string          `json:"end_stop_id"`
	LoadedMiles          decimal.Decimal `json:"loaded_miles"`
	EmptyMiles           decimal.Decimal `json:"empty_miles"`
	PayWarning           string          `json:"pay_warning,omitempty"`
}

type LoadDTO struct {
	ID               string           `json:"id"`
	OrderNumber      string           `json:"order_number"`
	Status           string           `json:"status"`
	HCR              string           `json:"hcr,omitempty"`
	TripNumber       string           `json:"trip_number,omitempty"`
	PrimaryDriverID  string           `json:"primary_driver_id,omitempty"`
	PrimaryCarrierID string           `json:"primary_carrier_id,omitempty"`
	EffectiveMiles   decimal.Decimal  `json:"effective_miles"`
	IsHazmat         bool             `json:"is_hazmat"`
	RequiresTarp     bool             `json:"requires_tarp"`
	Revenue          *decimal.Decimal `json:"revenue,omitempty"`
	DeliveredAtMs    *int64           `json:"delivered_at_ms,omitempty"`
	CompletedAtMs    *int64           `json:"completed_at_ms,omitempty"`
	Stops            []StopDTO        `json:"stops,omitempty"`
	Legs             []LegDTO         `json:"legs,omitempty"`
	AutoAssign       *ResultDTO       `json:"auto_assign,omitempty"`
	CreatedAtMs      int64            `json:"created_at_ms"`
}

type AssignDriverRequest struct {
	DriverID  string `json:"driver_id" validate:"required"`
	TruckID   string `json:"truck_id"`
	TrailerID string `json:"trailer_id"`
	Force     bool   `json:"force"`
}

type AssignCarrierRequest struct {
	PartnershipID string `json:"partnership_id" validate:"required"`
	TrailerID     string `json:"trailer_id"`
}

type SplitRequest struct {
	SplitStopID string `json:"split_stop_id" validate:"required"`
	NewDriverID string `json:"new_driver_id"`
	TruckID     string `json:"truck_id"`
	TrailerID   string `json:"trailer_id"`
	Force       bool   `json:"force"`
}

type LegStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=PENDING ACTIVE COMPLETED CANCELED"`
}

type RevenueRequest struct {
	Revenue *decimal.Decimal `json:"revenue" validate:"required"`
}

type StopEventRequest struct {
	AtMs *int64 `json:"at_ms"`
}

type ConflictDTO struct {
	LoadID      string `json:"load_id"`
	OrderNumber string `json:"order_number,omitempty"`
	LegID       string `json:"leg_id,omitempty"`
}

// ResultDTO is the wire form of dispatch.Result.
type ResultDTO struct {
	Status          string       `json:"status"`
	Message         string       `json:"message,omitempty"`
	ConflictingLoad *ConflictDTO `json:"conflicting_load,omitempty"`
	LegIDs          []string     `json:"leg_ids,omitempty"`
}

type CalculationDTO struct {
	LegID     string       `json:"leg_id"`
	PayeeType string       `json:"payee_type,omitempty"`
	PayeeID   string       `json:"payee_id,omitempty"`
	ProfileID string       `json:"profile_id,omitempty"`
	Created   []PayableDTO `json:"created"`
	Deleted   int          `json:"deleted"`
	Warnings  []string     `json:"warnings,omitempty"`
	Total     string       `json:"total"`
}

// =============================================================================
// RATES
// =============================================================================

type RateProfileDTO struct {
	ID        string              `json:"id"`
	Name      string              `json:"name"`
	Type      string              `json:"profile_type"`
	IsDefault bool                `json:"is_default"`
	IsActive  bool                `json:"is_active"`
	Config    factory.ProfileJSON `json:"config"`
}

type ProfileAssignmentRequest struct {
	SubjectType    string           `json:"subject_type" validate:"required,oneof=DRIVER CARRIER"`
	SubjectID      string           `json:"subject_id" validate:"required"`
	ProfileID      string           `json:"profile_id" validate:"required"`
	Strategy       string           `json:"strategy" validate:"required,oneof=ALWAYS_ACTIVE DISTANCE_THRESHOLD MANUAL_ONLY"`
	ThresholdMiles *decimal.Decimal `json:"threshold_miles"`
	IsDefault      bool             `json:"is_default"`
}

type ProfileAssignmentDTO struct {
	ID             string           `json:"id"`
	SubjectType    string           `json:"subject_type"`
	SubjectID      string           `json:"subject_id"`
	ProfileID      string           `json:"profile_id"`
	Strategy       string           `json:"strategy"`
	ThresholdMiles *decimal.Decimal `json:"threshold_miles,omitempty"`
	IsDefault      bool             `json:"is_default"`
}

// =============================================================================
// PAYABLES
// =============================================================================

type PayableDTO struct {
	ID                   string          `json:"id"`
	PayeeType            string          `json:"payee_type"`
	PayeeID              string          `json:"payee_id"`
	LoadID               string          `json:"load_id,omitempty"`
	LegID                string          `json:"leg_id,omitempty"`
	Description          string          `json:"description"`
	Quantity             decimal.Decimal `json:"quantity"`
	Rate                 decimal.Decimal `json:"rate"`
	TotalAmount          decimal.Decimal `json:"total_amount"`
	SourceType           string          `json:"source_type"`
	Category             string          `json:"category"`
	IsLocked             bool            `json:"is_locked"`
	SettlementID         string          `json:"settlement_id,omitempty"`
	HeldFromSettlementID string          `json:"held_from_settlement_id,omitempty"`
	IsRebillable         bool            `json:"is_rebillable"`
	ReceiptURL           string          `json:"receipt_url,omitempty"`
	RuleID               string          `json:"rule_id,omitempty"`
	WarningMessage       string          `json:"warning_message,omitempty"`
	CreatedAtMs          int64           `json:"created_at_ms"`
}

type CreatePayableRequest struct {
	PayeeType        string          `json:"payee_type" validate:"required,oneof=DRIVER CARRIER"`
	PayeeID          string          `json:"payee_id" validate:"required"`
	LoadID           string          `json:"load_id"`
	LegID            string          `json:"leg_id"`
	SettlementID     string          `json:"settlement_id"`
	Description      string          `json:"description" validate:"required,max=500"`
	Quantity         decimal.Decimal `json:"quantity"`
	Rate             decimal.Decimal `json:"rate"`
	Category         string          `json:"category" validate:"omitempty,oneof=BASE ACCESSORIAL DEDUCTION"`
	IsRebillable     bool            `json:"is_rebillable"`
	RebillCustomerID string          `json:"rebill_customer_id"`
	ReceiptURL       string          `json:"receipt_url" validate:"omitempty,url"`
}

type UpdatePayableRequest struct {
	Description      *string          `json:"description" validate:"omitempty,max=500"`
	Quantity         *decimal.Decimal `json:"quantity"`
	Rate             *decimal.Decimal `json:"rate"`
	Category         *string          `json:"category" validate:"omitempty,oneof=BASE ACCESSORIAL DEDUCTION"`
	IsRebillable     *bool            `json:"is_rebillable"`
	RebillCustomerID *string          `json:"rebill_customer_id"`
	ReceiptURL       *string          `json:"receipt_url" validate:"omitempty,url"`
}

// =============================================================================
// SETTLEMENTS
// =============================================================================

type SettlementDTO struct {
	ID                     string           `json:"id"`
	PayeeType              string           `json:"payee_type"`
	PayeeID                string           `json:"payee_id"`
	PayPlanID              string           `json:"pay_plan_id,omitempty"`
	PeriodStartMs          int64            `json:"period_start_ms"`
	PeriodEndMs            int64            `json:"period_end_ms"`
	Status                 string           `json:"status"`
	StatementNumber        string           `json:"statement_number"`
	GrossTotal             *decimal.Decimal `json:"gross_total,omitempty"`
	TotalMiles             *decimal.Decimal `json:"total_miles,omitempty"`
	TotalLoads             *int             `json:"total_loads,omitempty"`
	TotalManualAdjustments *decimal.Decimal `json:"total_manual_adjustments,omitempty"`
	ApprovedAtMs           *int64           `json:"approved_at_ms,omitempty"`
	ApprovedBy             string           `json:"approved_by,omitempty"`
	PaidAtMs               *int64           `json:"paid_at_ms,omitempty"`
	PaymentMethod          string           `json:"payment_method,omitempty"`
	PaymentReference       string           `json:"payment_reference,omitempty"`
	VoidedAtMs             *int64           `json:"voided_at_ms,omitempty"`
	VoidReason             string           `json:"void_reason,omitempty"`
	CreatedAtMs            int64            `json:"created_at_ms"`
}

type TotalsDTO struct {
	GrossTotal             decimal.Decimal `json:"gross_total"`
	TotalMiles             decimal.Decimal `json:"total_miles"`
	TotalLoads             int             `json:"total_loads"`
	TotalManualAdjustments decimal.Decimal `json:"total_manual_adjustments"`
	PayableCount           int             `json:"payable_count"`
	Frozen                 bool            `json:"frozen"`
}

// SettlementDetailResponse is a settlement with its rows and totals.
type SettlementDetailResponse struct {
	Settlement SettlementDTO `json:"settlement"`
	Payables   []PayableDTO  `json:"payables"`
	Totals     TotalsDTO     `json:"totals"`
}

type GenerateSettlementRequest struct {
	PayeeType     string `json:"payee_type" validate:"required,oneof=DRIVER CARRIER"`
	PayeeID       string `json:"payee_id" validate:"required"`
	PayPlanID     string `json:"pay_plan_id"`
	PeriodStartMs int64  `json:"period_start_ms" validate:"required_without=UsePayPlan"`
	PeriodEndMs   int64  `json:"period_end_ms" validate:"required_without=UsePayPlan"`
	// UsePayPlan generates the payee's last closed plan period instead.
	UsePayPlan bool `json:"use_pay_plan"`
}

type GenerateSettlementResponse struct {
	Settlement SettlementDTO `json:"settlement"`
	Created    bool          `json:"created"`
	Attached   int           `json:"attached"`
}

type LoadActionRequest struct {
	LoadID string `json:"load_id" validate:"required"`
}

type PayRequest struct {
	Method    string `json:"method" validate:"omitempty,max=50"`
	Reference string `json:"reference" validate:"omitempty,max=200"`
	PaidAtMs  *int64 `json:"paid_at_ms"`
}

type VoidRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

type AdjustmentRequest struct {
	LoadID           string          `json:"load_id"`
	Description      string          `json:"description" validate:"required,max=500"`
	Quantity         decimal.Decimal `json:"quantity"`
	Rate             decimal.Decimal `json:"rate"`
	Category         string          `json:"category" validate:"omitempty,oneof=BASE ACCESSORIAL DEDUCTION"`
	IsRebillable     bool            `json:"is_rebillable"`
	RebillCustomerID string          `json:"rebill_customer_id"`
	ReceiptURL       string          `json:"receipt_url" validate:"omitempty,url"`
}

type BulkRequest struct {
	IDs    []string `json:"ids" validate:"required,min=1,dive,required"`
	Reason string   `json:"reason"`
}

type BulkErrorDTO struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

type BulkResultDTO struct {
	Succeeded int            `json:"succeeded"`
	Failed    int            `json:"failed"`
	Errors    []BulkErrorDTO `json:"errors,omitempty"`
}

type CountResponse struct {
	Count int `json:"count"`
}

// =============================================================================
// PAY PLANS, ROUTES, AUTO-ASSIGN
// =============================================================================

type PayPlanRequest struct {
	ID             string `json:"id"`
	Name           string `json:"name" validate:"required"`
	Frequency      string `json:"frequency" validate:"required,oneof=WEEKLY BIWEEKLY SEMI_MONTHLY MONTHLY"`
	AnchorDay      int    `json:"anchor_day" validate:"gte=0,lte=28"`
	AnchorDateMs   *int64 `json:"anchor_date_ms"`
	CutoffTime     string `json:"cutoff_time" validate:"omitempty,datetime=15:04"`
	PaymentLagDays int    `json:"payment_lag_days" validate:"gte=0,lte=60"`
	PayableTrigger string `json:"payable_trigger" validate:"omitempty,oneof=DELIVERY_DATE COMPLETION_DATE APPROVAL_DATE"`
	AutoCarryover  bool   `json:"auto_carryover"`
}

type PayPlanDTO struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Frequency      string `json:"frequency"`
	AnchorDay      int    `json:"anchor_day"`
	AnchorDateMs   *int64 `json:"anchor_date_ms,omitempty"`
	CutoffTime     string `json:"cutoff_time,omitempty"`
	PaymentLagDays int    `json:"payment_lag_days"`
	PayableTrigger string `json:"payable_trigger"`
	AutoCarryover  bool   `json:"auto_carryover"`
	IsActive       bool   `json:"is_active"`
	// Current period under the plan, for display.
	CurrentPeriodStartMs int64 `json:"current_period_start_ms"`
	CurrentPeriodEndMs   int64 `json:"current_period_end_ms"`
	CurrentPayDateMs     int64 `json:"current_pay_date_ms"`
}

type RouteAssignmentRequest struct {
	ID                   string `json:"id"`
	HCR                  string `json:"hcr" validate:"required"`
	TripNumber           string `json:"trip_number"`
	DriverID             string `json:"driver_id" validate:"required_without=CarrierPartnershipID,excluded_with=CarrierPartnershipID"`
	CarrierPartnershipID string `json:"carrier_partnership_id"`
	Priority             int    `json:"priority" validate:"gte=0"`
	IsActive             *bool  `json:"is_active"`
}

type RouteAssignmentDTO struct {
	ID                   string `json:"id"`
	HCR                  string `json:"hcr"`
	TripNumber           string `json:"trip_number,omitempty"`
	DriverID             string `json:"driver_id,omitempty"`
	CarrierPartnershipID string `json:"carrier_partnership_id,omitempty"`
	Priority             int    `json:"priority"`
	IsActive             bool   `json:"is_active"`
}

type AutoAssignSettingsDTO struct {
	TriggerOnCreate         bool   `json:"trigger_on_create"`
	ScheduledEnabled        bool   `json:"scheduled_enabled"`
	ScheduleIntervalMinutes int    `json:"schedule_interval_minutes" validate:"gte=0"`
	LastRunAtMs             *int64 `json:"last_run_at_ms,omitempty"`
}

type SweepDTO struct {
	Ran      bool `json:"ran"`
	Checked  int  `json:"checked"`
	Assigned int  `json:"assigned"`
	Failed   int  `json:"failed"`
}

// =============================================================================
// AUDIT & SCENARIOS
// =============================================================================

type AuditEntryDTO struct {
	ID              string         `json:"id"`
	EntityType      string         `json:"entity_type"`
	EntityID        string         `json:"entity_id"`
	Action          string         `json:"action"`
	PerformedBy     string         `json:"performed_by"`
	PerformedByName string         `json:"performed_by_name,omitempty"`
	Description     string         `json:"description"`
	Before          map[string]any `json:"before,omitempty"`
	After           map[string]any `json:"after,omitempty"`
	TimestampMs     int64          `json:"timestamp_ms"`
}

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// LoadScenarioRequest is the request to load a scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toMs(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func toMsPtr(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	ms := t.UnixMilli()
	return &ms
}

func fromMs(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func fromMsPtr(ms *int64) *time.Time {
	if ms == nil {
		return nil
	}
	t := fromMs(*ms)
	return &t
}

func toDriverDTO(d freight.Driver) DriverDTO {
	return DriverDTO{
		ID:             d.ID,
		Name:           d.Name,
		Status:         string(d.Status),
		CarrierOrgID:   d.CarrierOrgID,
		PayPlanID:      d.PayPlanID,
		CurrentTruckID: d.CurrentTruckID,
		CurrentCity:    d.CurrentCity,
		CurrentState:   d.CurrentState,
		CreatedAtMs:    toMs(d.CreatedAt),
	}
}

func toCarrierDTO(c freight.CarrierPartnership) CarrierDTO {
	return CarrierDTO{
		ID:           c.ID,
		CarrierOrgID: c.CarrierOrgID,
		CarrierName:  c.CarrierName,
		Status:       string(c.Status),
		PayPlanID:    c.PayPlanID,
		CreatedAtMs:  toMs(c.CreatedAt),
	}
}

func toStopDTO(s freight.Stop) StopDTO {
	return StopDTO{
		ID:              s.ID,
		SequenceNumber:  s.SequenceNumber,
		StopType:        string(s.StopType),
		City:            s.City,
		State:           s.State,
		WindowBeginDate: s.WindowBeginDate,
		WindowBeginTime: s.WindowBeginTime,
		WindowEndDate:   s.WindowEndDate,
		WindowEndTime:   s.WindowEndTime,
		CheckedInAtMs:   toMsPtr(s.CheckedInAt),
		CheckedOutAtMs:  toMsPtr(s.CheckedOutAt),
	}
}

func toLegDTO(l freight.Leg) LegDTO {
	return LegDTO{
		ID:                   l.ID,
		Sequence:             l.Sequence,
		Status:               string(l.Status),
		DriverID:             l.DriverID,
		CarrierPartnershipID: l.CarrierPartnershipID,
		TruckID:              l.TruckID,
		TrailerID:            l.TrailerID,
		StartStopID:          l.StartStopID,
		EndStopID:            l.EndStopID,
		LoadedMiles:          l.LoadedMiles,
		EmptyMiles:           l.EmptyMiles,
		PayWarning:           l.PayWarning,
	}
}

func toLoadDTO(l freight.Load, stops []freight.Stop, legs []freight.Leg) LoadDTO {
	dto := LoadDTO{
		ID:               l.ID,
		OrderNumber:      l.OrderNumber,
		Status:           string(l.Status),
		HCR:              l.HCR,
		TripNumber:       l.TripNumber,
		PrimaryDriverID:  l.PrimaryDriverID,
		PrimaryCarrierID: l.PrimaryCarrierID,
		EffectiveMiles:   l.EffectiveMiles,
		IsHazmat:         l.IsHazmat,
		RequiresTarp:     l.RequiresTarp,
		Revenue:          l.Revenue,
		DeliveredAtMs:    toMsPtr(l.DeliveredAt),
		CompletedAtMs:    toMsPtr(l.CompletedAt),
		CreatedAtMs:      toMs(l.CreatedAt),
	}
	for _, s := range stops {
		dto.Stops = append(dto.Stops, toStopDTO(s))
	}
	for _, leg := range legs {
		dto.Legs = append(dto.Legs, toLegDTO(leg))
	}
	return dto
}

func toResultDTO(r dispatch.Result) ResultDTO {
	dto := ResultDTO{Status: string(r.Status), Message: r.Message, LegIDs: r.LegIDs}
	if r.Conflict != nil {
		dto.ConflictingLoad = &ConflictDTO{
			LoadID:      r.Conflict.LoadID,
			OrderNumber: r.Conflict.OrderNumber,
			LegID:       r.Conflict.LegID,
		}
	}
	return dto
}

func toPayableDTO(p freight.Payable) PayableDTO {
	return PayableDTO{
		ID:                   p.ID,
		PayeeType:            string(p.PayeeType),
		PayeeID:              p.PayeeID,
		LoadID:               p.LoadID,
		LegID:                p.LegID,
		Description:          p.Description,
		Quantity:             p.Quantity,
		Rate:                 p.Rate,
		TotalAmount:          p.TotalAmount,
		SourceType:           string(p.SourceType),
		Category:             string(p.Category),
		IsLocked:             p.IsLocked,
		SettlementID:         p.SettlementID,
		HeldFromSettlementID: p.HeldFromSettlementID,
		IsRebillable:         p.IsRebillable,
		ReceiptURL:           p.ReceiptURL,
		RuleID:               p.RuleID,
		WarningMessage:       p.WarningMessage,
		CreatedAtMs:          toMs(p.CreatedAt),
	}
}

func toPayableDTOs(ps []freight.Payable) []PayableDTO {
	out := make([]PayableDTO, 0, len(ps))
	for _, p := range ps {
		out = append(out, toPayableDTO(p))
	}
	return out
}

func toSettlementDTO(s freight.Settlement) SettlementDTO {
	return SettlementDTO{
		ID:                     s.ID,
		PayeeType:              string(s.PayeeType),
		PayeeID:                s.PayeeID,
		PayPlanID:              s.PayPlanID,
		PeriodStartMs:          toMs(s.PeriodStart),
		PeriodEndMs:            toMs(s.PeriodEnd),
		Status:                 string(s.Status),
		StatementNumber:        s.StatementNumber,
		GrossTotal:             s.GrossTotal,
		TotalMiles:             s.TotalMiles,
		TotalLoads:             s.TotalLoads,
		TotalManualAdjustments: s.TotalManualAdjustments,
		ApprovedAtMs:           toMsPtr(s.ApprovedAt),
		ApprovedBy:             s.ApprovedBy,
		PaidAtMs:               toMsPtr(s.PaidAt),
		PaymentMethod:          s.PaymentMethod,
		PaymentReference:       s.PaymentReference,
		VoidedAtMs:             toMsPtr(s.VoidedAt),
		VoidReason:             s.VoidReason,
		CreatedAtMs:            toMs(s.CreatedAt),
	}
}

func toTotalsDTO(t settlement.Totals) TotalsDTO {
	return TotalsDTO{
		GrossTotal:             t.GrossTotal,
		TotalMiles:             t.TotalMiles,
		TotalLoads:             t.TotalLoads,
		TotalManualAdjustments: t.TotalManualAdjustments,
		PayableCount:           t.PayableCount,
		Frozen:                 t.Frozen,
	}
}

func toBulkResultDTO(b settlement.BulkResult) BulkResultDTO {
	dto := BulkResultDTO{Succeeded: b.Succeeded, Failed: b.Failed}
	for _, e := range b.Errors {
		dto.Errors = append(dto.Errors, BulkErrorDTO{ID: e.ID, Error: e.Error})
	}
	return dto
}

func toAssignmentDTO(a freight.ProfileAssignment) ProfileAssignmentDTO {
	return ProfileAssignmentDTO{
		ID:             a.ID,
		SubjectType:    string(a.SubjectType),
		SubjectID:      a.SubjectID,
		ProfileID:      a.ProfileID,
		Strategy:       string(a.Strategy),
		ThresholdMiles: a.ThresholdMiles,
		IsDefault:      a.IsDefault,
	}
}

func toRouteDTO(r freight.RouteAssignment) RouteAssignmentDTO {
	return RouteAssignmentDTO{
		ID:                   r.ID,
		HCR:                  r.HCR,
		TripNumber:           r.TripNumber,
		DriverID:             r.DriverID,
		CarrierPartnershipID: r.CarrierPartnershipID,
		Priority:             r.Priority,
		IsActive:             r.IsActive,
	}
}

func toAuditDTO(e generic.AuditEntry) AuditEntryDTO {
	return AuditEntryDTO{
		ID:              e.ID,
		EntityType:      e.EntityType,
		EntityID:        e.EntityID,
		Action:          string(e.Action),
		PerformedBy:     e.PerformedBy,
		PerformedByName: e.PerformedByName,
		Description:     e.Description,
		Before:          e.Before,
		After:           e.After,
		TimestampMs:     toMs(e.Timestamp),
	}
}
