/*
Package freight holds the domain model shared by the dispatch, pay and
settlement packages, plus the persistence interface they run against.

PURPOSE:
  One place for the records that cross package boundaries: drivers,
  carrier partnerships, loads, stops, dispatch legs, rate configuration,
  payables, settlements, pay plans and route assignments.

KEY CONCEPTS IN THIS FILE (types.go):
  Load -> Stops (ordered by SequenceNumber)
       -> Legs  (ordered by Sequence, each spanning StartStop..EndStop)
  Leg  -> held by a Driver OR a CarrierPartnership, never both
  Payable -> one money line for a driver or carrier, optionally tied to a
             load/leg, optionally owned by a Settlement

ID CONVENTIONS:
  Optional references are plain strings; "" means unset. This keeps the
  zero value meaningful and mirrors how the columns are stored (NULL <-> "").

SEE ALSO:
  - rates.go: RateProfile / RateRule / ProfileAssignment
  - ledger.go: Payable / Settlement / PayPlan
  - store.go: Store interface
*/
package freight

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// PARTIES
// =============================================================================

type PartyStatus string

const (
	PartyActive   PartyStatus = "ACTIVE"
	PartyInactive PartyStatus = "INACTIVE"
)

// PayeeType distinguishes the driver and carrier variants of payables,
// settlements and rate profiles.
type PayeeType string

const (
	PayeeDriver  PayeeType = "DRIVER"
	PayeeCarrier PayeeType = "CARRIER"
)

// Valid reports whether p is a known payee type.
func (p PayeeType) Valid() bool {
	return p == PayeeDriver || p == PayeeCarrier
}

// Driver is a company or carrier-employed driver.
type Driver struct {
	ID           string
	OrgID        string
	Name         string
	Status       PartyStatus
	DeletedAt    *time.Time
	CarrierOrgID string // set when the driver belongs to a partner carrier
	PayPlanID    string

	// Last known position, used for deadhead estimation.
	CurrentTruckID string
	CurrentCity    string
	CurrentState   string
	Latitude       *float64
	Longitude      *float64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsAssignable reports whether the driver may receive new work.
func (d Driver) IsAssignable() bool {
	return d.Status == PartyActive && d.DeletedAt == nil
}

// CarrierPartnership links the organization to an outside carrier.
type CarrierPartnership struct {
	ID           string
	OrgID        string
	CarrierOrgID string
	CarrierName  string
	Status       PartyStatus
	DeletedAt    *time.Time
	PayPlanID    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsAssignable reports whether the partnership may receive new work.
func (c CarrierPartnership) IsAssignable() bool {
	return c.Status == PartyActive && c.DeletedAt == nil
}

// =============================================================================
// LOADS & STOPS
// =============================================================================

type LoadStatus string

const (
	LoadOpen      LoadStatus = "OPEN"
	LoadAssigned  LoadStatus = "ASSIGNED"
	LoadInTransit LoadStatus = "IN_TRANSIT"
	LoadDelivered LoadStatus = "DELIVERED"
	LoadCompleted LoadStatus = "COMPLETED"
	LoadCanceled  LoadStatus = "CANCELED"
)

// Load is a customer order moved over one or more legs.
type Load struct {
	ID          string
	OrgID       string
	OrderNumber string
	Status      LoadStatus

	// Recurring route identifiers for auto-assignment.
	HCR        string
	TripNumber string

	// Cached from the legs; rebuilt by every assignment operation.
	PrimaryDriverID  string
	PrimaryCarrierID string

	EffectiveMiles decimal.Decimal
	IsHazmat       bool
	RequiresTarp   bool

	// Revenue from the invoice or contract lane. Nil when not yet known.
	Revenue *decimal.Decimal

	DeliveredAt *time.Time
	CompletedAt *time.Time
	ApprovedAt  *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

type StopType string

const (
	StopPickup   StopType = "PICKUP"
	StopDelivery StopType = "DELIVERY"
)

// Stop is one appointment on a load. Window fields are schedule strings:
// ISO dates/clocks, full ISO date-times, or "TBD".
type Stop struct {
	ID              string
	LoadID          string
	OrgID           string
	SequenceNumber  int
	StopType        StopType
	City            string
	State           string
	WindowBeginDate string
	WindowBeginTime string
	WindowEndDate   string
	WindowEndTime   string

	// Actual arrival/departure, used for detention.
	CheckedInAt  *time.Time
	CheckedOutAt *time.Time
}

// =============================================================================
// DISPATCH LEGS
// =============================================================================

type LegStatus string

const (
	LegPending   LegStatus = "PENDING"
	LegActive    LegStatus = "ACTIVE"
	LegCompleted LegStatus = "COMPLETED"
	LegCanceled  LegStatus = "CANCELED"
)

// IsOpen reports whether assignment operations may still change the leg.
func (s LegStatus) IsOpen() bool {
	return s == LegPending || s == LegActive
}

// CanTransition reports whether a leg may move from s to next.
func (s LegStatus) CanTransition(next LegStatus) bool {
	switch s {
	case LegPending:
		return next == LegActive || next == LegCanceled
	case LegActive:
		return next == LegCompleted || next == LegCanceled
	}
	return false
}

// Leg is the atomic assignable unit of work.
type Leg struct {
	ID                   string
	LoadID               string
	OrgID                string
	DriverID             string
	CarrierPartnershipID string
	TruckID              string
	TrailerID            string
	Sequence             int
	StartStopID          string
	EndStopID            string
	LoadedMiles          decimal.Decimal
	EmptyMiles           decimal.Decimal
	Status               LegStatus

	// Data-quality notes from the last pay calculation.
	PayWarning string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Holder returns who is paid for the leg.
func (l Leg) Holder() (PayeeType, string, bool) {
	switch {
	case l.DriverID != "":
		return PayeeDriver, l.DriverID, true
	case l.CarrierPartnershipID != "":
		return PayeeCarrier, l.CarrierPartnershipID, true
	}
	return "", "", false
}

// =============================================================================
// ROUTE ASSIGNMENT
// =============================================================================

// TripWildcard matches any trip number on a route assignment.
const TripWildcard = "*"

// RouteAssignment maps a recurring HCR (+trip) to a default driver or carrier.
type RouteAssignment struct {
	ID                   string
	OrgID                string
	HCR                  string
	TripNumber           string // "" or "*" matches any trip
	DriverID             string
	CarrierPartnershipID string
	Priority             int
	IsActive             bool
	CreatedAt            time.Time
}

// AutoAssignSettings controls when route assignments are applied.
type AutoAssignSettings struct {
	OrgID                   string
	TriggerOnCreate         bool
	ScheduledEnabled        bool
	ScheduleIntervalMinutes int
	LastRunAt               *time.Time
}
