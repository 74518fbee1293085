/*
store.go - Persistence interface for the freight domain

PURPOSE:
  Defines the interface between the engine packages (dispatch, pay,
  settlement) and the database. Every engine operation runs inside
  Store.WithTx so that an assignment, its stale-payable cleanup and its pay
  recalculation commit or roll back together.

KEY INTERFACES:
  PartyStore:      drivers and carrier partnerships
  LoadStore:       loads and their stops
  LegStore:        dispatch legs
  RateStore:       rate profiles (with rules) and profile assignments
  PayableStore:    payable ledger rows
  SettlementStore: settlements and statement numbering
  PlanStore:       pay plans
  RouteStore:      route assignments and auto-assign settings
  Store:           all of the above + audit log + WithTx

LOOKUP CONVENTION:
  Get* methods return (nil, nil) when the row does not exist. Callers decide
  whether absence is a business outcome or an error.

TRANSACTIONS:
  WithTx runs fn against a Store bound to one database transaction. If fn
  returns an error everything is rolled back. Calling WithTx on a store that
  is already transactional runs fn in the same transaction.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go

SEE ALSO:
  - generic/store.go: AuditLog
*/
package freight

import (
	"context"
	"time"

	"github.com/warp/freight-engine/generic"
)

// =============================================================================
// STORE SEGMENTS
// =============================================================================

type PartyStore interface {
	SaveDriver(ctx context.Context, d Driver) error
	GetDriver(ctx context.Context, id string) (*Driver, error)
	// ListDrivers returns drivers of an org; "" lists every org.
	ListDrivers(ctx context.Context, orgID string) ([]Driver, error)
	ListDriversByCarrierOrg(ctx context.Context, carrierOrgID string) ([]Driver, error)

	SaveCarrier(ctx context.Context, c CarrierPartnership) error
	GetCarrier(ctx context.Context, id string) (*CarrierPartnership, error)
	// ListCarriers returns partnerships of an org; "" lists every org.
	ListCarriers(ctx context.Context, orgID string) ([]CarrierPartnership, error)
	ListCarriersByCarrierOrg(ctx context.Context, carrierOrgID string) ([]CarrierPartnership, error)
}

type LoadStore interface {
	SaveLoad(ctx context.Context, l Load) error
	GetLoad(ctx context.Context, id string) (*Load, error)
	// ListLoads filters by status when status is not empty.
	ListLoads(ctx context.Context, orgID string, status LoadStatus) ([]Load, error)

	SaveStop(ctx context.Context, s Stop) error
	// ListStops returns a load's stops ordered by SequenceNumber.
	ListStops(ctx context.Context, loadID string) ([]Stop, error)
}

type LegStore interface {
	SaveLeg(ctx context.Context, l Leg) error
	GetLeg(ctx context.Context, id string) (*Leg, error)
	// ListLegsByLoad returns a load's legs ordered by Sequence.
	ListLegsByLoad(ctx context.Context, loadID string) ([]Leg, error)
	// ListOpenLegsByDriver returns PENDING/ACTIVE legs held by the driver.
	ListOpenLegsByDriver(ctx context.Context, driverID string) ([]Leg, error)
	// ListOpenLegsByCarrier returns PENDING/ACTIVE legs held by the partnership.
	ListOpenLegsByCarrier(ctx context.Context, partnershipID string) ([]Leg, error)
	// ListOpenLegsByOrg returns PENDING/ACTIVE legs with a driver.
	ListOpenLegsByOrg(ctx context.Context, orgID string) ([]Leg, error)
}

type RateStore interface {
	// SaveRateProfile upserts the profile and replaces its rules. Saving a
	// default demotes the previous default of the same org and type.
	SaveRateProfile(ctx context.Context, p RateProfile) error
	GetRateProfile(ctx context.Context, id string) (*RateProfile, error)
	ListRateProfiles(ctx context.Context, orgID string) ([]RateProfile, error)
	GetDefaultRateProfile(ctx context.Context, orgID string, profileType PayeeType) (*RateProfile, error)

	// SaveProfileAssignment upserts the assignment. Saving a default demotes
	// the subject's previous default.
	SaveProfileAssignment(ctx context.Context, a ProfileAssignment) error
	// ListProfileAssignments returns the subject's assignments, default first.
	ListProfileAssignments(ctx context.Context, subjectType PayeeType, subjectID string) ([]ProfileAssignment, error)
}

type PayableStore interface {
	SavePayable(ctx context.Context, p Payable) error
	GetPayable(ctx context.Context, id string) (*Payable, error)
	DeletePayable(ctx context.Context, id string) error
	ListPayablesByLeg(ctx context.Context, legID string) ([]Payable, error)
	ListPayablesByLoad(ctx context.Context, loadID string) ([]Payable, error)
	ListPayablesBySettlement(ctx context.Context, settlementID string) ([]Payable, error)
	ListPayablesByPayee(ctx context.Context, payeeType PayeeType, payeeID string) ([]Payable, error)
}

type SettlementStore interface {
	SaveSettlement(ctx context.Context, s Settlement) error
	GetSettlement(ctx context.Context, id string) (*Settlement, error)
	DeleteSettlement(ctx context.Context, id string) error
	ListSettlements(ctx context.Context, filter SettlementFilter) ([]Settlement, error)
	// FindSettlement returns the non-void settlement of a payee starting at periodStart.
	FindSettlement(ctx context.Context, payeeType PayeeType, payeeID string, periodStart time.Time) (*Settlement, error)
	NextStatementNumber(ctx context.Context, orgID string) (string, error)
}

type PlanStore interface {
	SavePayPlan(ctx context.Context, p PayPlan) error
	GetPayPlan(ctx context.Context, id string) (*PayPlan, error)
	ListPayPlans(ctx context.Context, orgID string) ([]PayPlan, error)
}

type RouteStore interface {
	SaveRouteAssignment(ctx context.Context, r RouteAssignment) error
	// ListRouteAssignments filters by HCR when hcr is not empty.
	ListRouteAssignments(ctx context.Context, orgID, hcr string) ([]RouteAssignment, error)

	GetAutoAssignSettings(ctx context.Context, orgID string) (*AutoAssignSettings, error)
	SaveAutoAssignSettings(ctx context.Context, s AutoAssignSettings) error
	ListAutoAssignSettings(ctx context.Context) ([]AutoAssignSettings, error)
}

// =============================================================================
// STORE - Everything the engine needs, plus transactions
// =============================================================================

type Store interface {
	PartyStore
	LoadStore
	LegStore
	RateStore
	PayableStore
	SettlementStore
	PlanStore
	RouteStore
	generic.AuditLog

	// WithTx executes fn within a transaction.
	// If fn returns error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}
